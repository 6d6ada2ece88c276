package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conventionforge/forge/pkg/registry"
)

// resolvedOutput is the serialised form `forge resolve` emits: every group
// in the order C4 Pass 6 produced, with its attributes expanded inline so
// the output is self-contained (spec.md §8.1's determinism target applies
// to this exact byte stream across repeated runs over the same input).
type resolvedOutput struct {
	Groups []resolvedGroupOutput `yaml:"groups"`
}

type resolvedGroupOutput struct {
	registry.ResolvedGroup `yaml:",inline"`
	Attributes              []*registry.ResolvedAttribute `yaml:"resolved_attributes"`
}

func resolveCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <registry>",
		Short: "Resolve a registry and emit the serialised result",
		Long: "Fetch, parse, and resolve a registry and its dependencies (components C1-C5), " +
			"then print the resolved catalog as YAML. Stops after C5; run 'forge generate' to " +
			"render templates against the result.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := runPipeline(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			if result.sink.HasErrors() {
				fmt.Fprintln(cmd.ErrOrStderr(), result.sink.Table())
			}

			out := resolvedOutput{}
			for _, id := range result.bundle.GroupOrder {
				g := result.bundle.Groups[id]
				attrs := make([]*registry.ResolvedAttribute, 0, len(g.AttributeIDs))
				for _, attrIdx := range g.AttributeIDs {
					attrs = append(attrs, result.bundle.Catalog.At(attrIdx))
				}
				out.Groups = append(out.Groups, resolvedGroupOutput{ResolvedGroup: *g, Attributes: attrs})
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(out)
		},
	}
	return cmd
}
