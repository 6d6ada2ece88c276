package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/conventionforge/forge/pkg/cache"
)

func cacheCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or prune the on-disk fetch cache",
	}
	cmd.AddCommand(cacheInspectCmd(opts))
	cmd.AddCommand(cachePruneCmd(opts))
	return cmd
}

func openCache(opts *globalOptions) (*cache.Cache, error) {
	dir := opts.cacheDir
	if dir == "" {
		userCache, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("resolving default cache directory: %w", err)
		}
		dir = filepath.Join(userCache, cache.ToolName)
	}
	return cache.Open(dir)
}

func cacheInspectCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "List every entry in the fetch cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openCache(opts)
			if err != nil {
				return err
			}
			defer c.Close()

			entries, err := c.List()
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Hash", "Reference", "Path", "Fetched At"})
			for _, e := range entries {
				t.AppendRow(table.Row{e.Hash[:12], e.Reference, e.Path, e.FetchedAt.Format(time.RFC3339)})
			}
			t.Render()
			return nil
		},
	}
}

func cachePruneCmd(opts *globalOptions) *cobra.Command {
	var maxAge time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove cache entries older than --max-age",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openCache(opts)
			if err != nil {
				return err
			}
			defer c.Close()

			removed, err := c.Prune(maxAge)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "removed %d cache entr(ies)\n", removed)
			return nil
		},
	}
	cmd.Flags().DurationVar(&maxAge, "max-age", 30*24*time.Hour, "remove entries fetched longer ago than this")
	return cmd
}
