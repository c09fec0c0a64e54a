package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dosanma1/foundry/internal/config"
	"github.com/dosanma1/foundry/internal/generator"
	"github.com/dosanma1/foundry/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "foundry",
	Short: "Foundry - meta-build orchestrator for Yocto, AGL and Android",
	Long: `Foundry reads a foundry.yaml build description and generates a ninja
build graph that fetches every component's sources and drives its build
system (bitbake, the Android kernel build script or the AOSP make system).

Running foundry without a command is the same as "foundry generate".`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runGenerate,
}

var (
	configPath string
	buildDir   string
	logLevel   string
	logJSON    bool
)

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultFile, "Build description")
	rootCmd.PersistentFlags().StringVarP(&buildDir, "build-dir", "b", ".", "Directory build.ninja and the component build directories are placed in")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Log in JSON")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(targetsCmd)
	rootCmd.AddCommand(captureCmd)
	rootCmd.AddCommand(fetcherdepCmd)
	rootCmd.AddCommand(watchCmd)
}

// newLogger creates the logger of a command. Logs go to stderr so they do
// not mix with command output.
func newLogger() (*zerolog.Logger, error) {
	l, err := logging.New(os.Stderr, logLevel, logJSON)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// session holds what every command needs: the loaded document and a
// generator configured from the persistent flags.
type session struct {
	log  *zerolog.Logger
	doc  *config.Document
	gen  *generator.Generator
	root string
}

func openSession() (*session, error) {
	log, err := newLogger()
	if err != nil {
		return nil, err
	}

	cfg, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}
	root, err := filepath.Abs(buildDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve build directory: %w", err)
	}

	doc, err := config.Load(cfg)
	if err != nil {
		return nil, err
	}

	self, err := os.Executable()
	if err != nil {
		log.Warn().Err(err).Msg("cannot locate foundry executable, regeneration disabled")
		self = ""
	}

	gen := generator.New(doc, generator.Options{
		BuildRoot:  root,
		ConfigPath: cfg,
		Self:       self,
		Log:        log,
	})
	return &session{log: log, doc: doc, gen: gen, root: root}, nil
}
