package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var targetsCmd = &cobra.Command{
	Use:   "targets <component>",
	Short: "Print the files a component builds",
	Args:  cobra.ExactArgs(1),
	RunE:  runTargets,
}

func runTargets(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	targets, err := s.gen.Targets(args[0])
	if err != nil {
		return err
	}
	for _, t := range targets {
		fmt.Fprintln(cmd.OutOrStdout(), t)
	}
	return nil
}
