package cmd

import (
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/dosanma1/foundry/internal/generator"
)

var captureCmd = &cobra.Command{
	Use:   "capture-state",
	Short: "Pin the revisions of the last build in the build description",
	Long: `Records what was actually built so the build can be reproduced: the
commit checked out for every source and, for bitbake based components, the
SRCREV of every VCS recipe as found in buildhistory.

The build description is rewritten in place; the previous version is kept
with a .bak suffix.`,
	Args: cobra.NoArgs,
	RunE: runCapture,
}

func runCapture(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	comps, err := s.doc.Components()
	if err != nil {
		return err
	}

	bar := progressbar.NewOptions(len(comps),
		progressbar.OptionSetDescription("Capturing"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(os.Stderr, "\n")
		}),
	)
	gen := generator.New(s.doc, generator.Options{
		BuildRoot: s.root,
		Log:       s.log,
		Progress: func(component string) {
			bar.Describe("Captured " + component)
			_ = bar.Add(1)
		},
	})
	if err := gen.Capture(cmd.Context()); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✅ Build state captured in %s\n", s.doc.Path())
	return nil
}
