package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/narravoxlabs/narravox/internal/cache"
)

func newCacheCommand(cc *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage locally cached server snapshots",
	}
	cmd.AddCommand(newCacheListCommand(cc))
	cmd.AddCommand(newCacheRemoveCommand(cc))
	cmd.AddCommand(newCachePruneCommand(cc))
	return cmd
}

func newCacheListCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cached snapshots by workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := cache.Open(ctx, cc.cachePath())
			if err != nil {
				return err
			}
			defer store.Close()

			scopes, err := store.Scopes(ctx)
			if err != nil {
				return err
			}
			if len(scopes) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no cached snapshots")
				return nil
			}
			cells := make([][]string, 0, len(scopes))
			for _, sc := range scopes {
				cells = append(cells, []string{
					sc.Scope,
					shortenKey(sc.CacheKey, 16),
					sc.UpdatedAt.Local().Format(time.RFC3339),
				})
			}
			renderTable(cmd.OutOrStdout(), []string{"WORKSPACE", "CACHE KEY", "UPDATED"}, cells)
			return nil
		},
	}
}

func newCacheRemoveCommand(cc *commandContext) *cobra.Command {
	var allScopes bool

	cmd := &cobra.Command{
		Use:   "rm [workspace]",
		Short: "Delete the snapshot for a workspace (default: current directory)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := cache.Open(ctx, cc.cachePath())
			if err != nil {
				return err
			}
			defer store.Close()

			if allScopes {
				scopes, err := store.Scopes(ctx)
				if err != nil {
					return err
				}
				n := 0
				for _, sc := range scopes {
					removed, err := store.DeleteSnapshot(ctx, sc.Scope)
					if err != nil {
						return err
					}
					if removed {
						n++
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %d snapshots\n", n)
				return nil
			}

			scope := ""
			if len(args) == 1 {
				scope = args[0]
			} else {
				scope, err = workspaceScope()
				if err != nil {
					return err
				}
			}
			removed, err := store.DeleteSnapshot(ctx, scope)
			if err != nil {
				return err
			}
			if !removed {
				fmt.Fprintf(cmd.OutOrStdout(), "no snapshot for %s\n", scope)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted snapshot for %s\n", scope)
			return nil
		},
	}

	cmd.Flags().BoolVar(&allScopes, "all", false, "delete every cached snapshot")
	return cmd
}

func newCachePruneCommand(cc *commandContext) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Drop snapshots older than a cutoff",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := cache.Open(ctx, cc.cachePath())
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := store.Prune(ctx, time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "pruned", strconv.FormatInt(n, 10), "snapshots")
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 720*time.Hour, "age threshold, e.g. 168h")
	return cmd
}

// shortenKey trims long cache keys for table display.
func shortenKey(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 1 {
		return "…"
	}
	return s[:n-1] + "…"
}
