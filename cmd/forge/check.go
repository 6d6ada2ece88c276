package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func checkCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <registry>",
		Short: "Resolve a registry and report diagnostics without generating output",
		Long: "Runs C1-C5 plus Pass 7's invariant checks, printing every accumulated " +
			"diagnostic as a table. Exits non-zero if any diagnostic was reported.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := runPipeline(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}

			diagnostics := result.sink.Diagnostics()
			if len(diagnostics) == 0 {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "OK: %d groups, %d attributes, no diagnostics\n",
					len(result.bundle.GroupOrder), result.bundle.Catalog.Len())
				return nil
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), result.sink.Table())
			return fmt.Errorf("check found %d diagnostic(s)", len(diagnostics))
		},
	}
	return cmd
}
