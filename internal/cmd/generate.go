package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dosanma1/foundry/internal/generator"
)

var generateCmd = &cobra.Command{
	Use:     "generate",
	Aliases: []string{"g"},
	Short:   "Generate build.ninja",
	Long: `Generate the ninja build graph for every component of the build
description. The graph is written atomically; on any configuration error the
previous build.ninja is left untouched.

Examples:
  foundry generate
  foundry generate --config prod.yaml --build-dir /srv/build
  ninja -C /srv/build my-image`,
	Args: cobra.NoArgs,
	RunE: runGenerate,
}

func runGenerate(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(s.root, 0755); err != nil {
		return fmt.Errorf("failed to create build directory: %w", err)
	}
	out := filepath.Join(s.root, generator.NinjaFile)
	if err := s.gen.Write(out); err != nil {
		return err
	}

	if desc := s.doc.Desc(); desc != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "✅ %s: %s\n", desc, out)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "✅ Generated %s\n", out)
	}
	return nil
}
