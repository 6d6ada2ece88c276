package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/conventionforge/forge/pkg/gen"
	"github.com/conventionforge/forge/pkg/targetcfg"
	"github.com/conventionforge/forge/pkg/tmplhost"
)

func generateCmd(opts *globalOptions) *cobra.Command {
	var (
		targetDir   string
		outputDir   string
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "generate <registry>",
		Short: "Resolve a registry and render every configured template binding",
		Long: "Runs C1-C5, loads the target's forge.yaml configuration (C6's query " +
			"filters and C7/C8's template bindings), then runs the generation " +
			"orchestrator over every binding.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := runPipeline(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			if result.sink.HasErrors() {
				return fmt.Errorf("registry has unresolved errors, refusing to generate:\n%s", result.sink.Table())
			}

			if targetDir == "" {
				targetDir = "."
			}
			paths, err := targetcfg.DiscoveryPaths(targetDir)
			if err != nil {
				return fmt.Errorf("computing config discovery paths: %w", err)
			}
			cfg, err := targetcfg.Load(paths)
			if err != nil {
				return fmt.Errorf("loading target configuration: %w", err)
			}

			acronyms := make(tmplhost.AcronymSet, len(cfg.Acronyms))
			for _, a := range cfg.Acronyms {
				acronyms[a] = a
			}
			delims := tmplhost.DefaultDelims()
			if s := cfg.TemplateSyntax; s.BlockStart != "" {
				delims.Block = [2]string{s.BlockStart, s.BlockEnd}
			}
			if s := cfg.TemplateSyntax; s.VariableStart != "" {
				delims.Variable = [2]string{s.VariableStart, s.VariableEnd}
			}
			if s := cfg.TemplateSyntax; s.CommentStart != "" {
				delims.Comment = [2]string{s.CommentStart, s.CommentEnd}
			}
			whitespace := tmplhost.Whitespace{
				TrimBlocks:          cfg.WhitespaceControl.TrimBlocks,
				LstripBlocks:        cfg.WhitespaceControl.LstripBlocks,
				KeepTrailingNewline: cfg.WhitespaceControl.KeepTrailingNewline,
			}
			host := tmplhost.New(acronyms, delims, whitespace)

			bindings, err := buildBindings(targetDir, cfg)
			if err != nil {
				return err
			}

			if outputDir == "" {
				outputDir = filepath.Join(targetDir, "generated")
			}
			if concurrency <= 0 {
				concurrency = runtime.NumCPU()
			}

			orch := gen.New(result.bundle, host, result.sink, gen.Options{
				OutputDir:   outputDir,
				Concurrency: concurrency,
			})

			written, err := orch.Run(cmd.Context(), bindings, cfg.Params)
			if err != nil {
				return fmt.Errorf("generation failed: %w", err)
			}

			for _, w := range written {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", w.Binding, w.Path)
			}
			if result.sink.HasErrors() {
				_, _ = fmt.Fprintln(cmd.ErrOrStderr(), result.sink.Table())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&targetDir, "target", "", "target directory to discover forge.yaml from and resolve templates relative to (default: current directory)")
	cmd.Flags().StringVar(&outputDir, "output", "", "output directory for generated files (default: <target>/generated)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "generation worker pool size (default: number of CPUs)")

	return cmd
}

// buildBindings expands each forge.yaml `templates` entry's path-or-glob
// into one gen.Binding per matched file, reading the template source eagerly
// so gen.Orchestrator never touches the filesystem itself (spec.md §9's "no
// global mutable state" extends to keeping I/O at the edges).
func buildBindings(targetDir string, cfg *targetcfg.Config) ([]gen.Binding, error) {
	var bindings []gen.Binding
	for _, tb := range cfg.Templates {
		pattern := tb.Template
		if !filepath.IsAbs(pattern) {
			pattern = filepath.Join(targetDir, pattern)
		}
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid template pattern %q: %w", tb.Template, err)
		}
		if len(matches) == 0 {
			matches = []string{pattern}
		}

		mode := gen.ModeSingle
		if tb.ApplicationMode == string(gen.ModeEach) {
			mode = gen.ModeEach
		}

		for _, path := range matches {
			src, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("reading template %s: %w", path, err)
			}
			rel, err := filepath.Rel(targetDir, path)
			if err != nil {
				rel = path
			}
			bindings = append(bindings, gen.Binding{
				Name:             rel,
				TemplatePath:     path,
				TemplateSource:   string(src),
				Query:            tb.Filter,
				ApplicationMode:  mode,
				FileNameTemplate: tb.FileName,
				Params:           targetcfg.MergeParams(cfg.Params, tb.Params, nil),
			})
		}
	}
	return bindings, nil
}
