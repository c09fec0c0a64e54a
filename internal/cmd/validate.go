package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dosanma1/foundry/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the build description",
	Long: `Validates the build description against the JSON Schema and then
constructs every component's builder, reporting the first configuration
error with its file position.`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	if err := config.ValidateSchema(data, configPath); err != nil {
		return err
	}

	s, err := openSession()
	if err != nil {
		return err
	}
	if err := s.gen.Check(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✅ %s is valid!\n", configPath)
	return nil
}
