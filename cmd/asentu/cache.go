package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newCacheCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the mapping cache",
		Long: `Inspect or clear the mapping cache.

With the ipc backend these commands act on the daemon's shared cache. With the
direct backend the cache only lives as long as this process, so status always
reports EMPTY.`,
	}
	cmd.AddCommand(newCacheStatusCmd(a), newCacheClearCmd(a))
	return cmd
}

func newCacheStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the cache state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := a.newBackend()
			if err != nil {
				return err
			}

			status, err := r.Status(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "state:    %s\n", status.State)
			fmt.Fprintf(out, "ttl:      %s\n", status.TTL)
			if status.FetchedAt != nil {
				fmt.Fprintf(out, "fetched:  %s (%s)\n", humanize.Time(*status.FetchedAt), status.FetchedAt.Format(time.RFC3339))
				fmt.Fprintf(out, "entries:  %s\n", humanize.Comma(int64(status.Entries)))
			}
			return nil
		},
	}
}

func newCacheClearCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Drop the cached mapping so the next lookup refetches it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := a.newBackend()
			if err != nil {
				return err
			}
			if err := r.ClearCache(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "cache cleared")
			return nil
		},
	}
}
