package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dosanma1/foundry/pkg/xos"
)

var fetcherdepCmd = &cobra.Command{
	Use:    "fetcherdep <component>",
	Short:  "Write the fetch depfile of a component",
	Long:   `Invoked from build.ninja before a bitbake build. Writes a gcc style depfile making the component's targets depend on the build description and its fetched sources.`,
	Args:   cobra.ExactArgs(1),
	Hidden: true,
	RunE:   runFetcherdep,
}

var fetcherdepOutput string

func init() {
	fetcherdepCmd.Flags().StringVarP(&fetcherdepOutput, "output", "o", "", "Depfile to write")
	_ = fetcherdepCmd.MarkFlagRequired("output")
}

func runFetcherdep(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	data, err := s.gen.Depfile(args[0])
	if err != nil {
		return err
	}
	if err := xos.WriteFile(fetcherdepOutput, data, 0644); err != nil {
		return fmt.Errorf("failed to write depfile: %w", err)
	}
	return nil
}
