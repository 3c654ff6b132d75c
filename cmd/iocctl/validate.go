package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

func newValidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [manifest]",
		Short: "Report components that can never be resolved",
		Long: `Installs the manifest and lists every handler still waiting for
dependencies, with the dependency cycle or the missing dependencies that keep
it waiting. Exits with status 2 when any handler is waiting.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, cleanup, err := opts.loadTree(args)
			if err != nil {
				return err
			}
			defer cleanup()

			out := cmd.OutOrStdout()
			problems := tree.Validate()
			if len(problems) == 0 {
				fmt.Fprintln(out, text.FgGreen.Sprint("all components resolvable"))
				return nil
			}
			for _, p := range problems {
				kind := "waiting"
				if p.IsCircular() {
					kind = "cycle"
				}
				fmt.Fprintf(out, "%s %s/%s: %v\n", text.FgRed.Sprint(kind), p.Kernel, p.Key, p.Err)
			}
			return fmt.Errorf("%d problem(s): %w", len(problems), errInvalidTree)
		},
	}
}
