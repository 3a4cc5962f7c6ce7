package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/narravoxlabs/narravox/pkg/override"
)

func newEntitiesCommand(cc *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entities",
		Short: "Entity detection state on the server",
	}
	cmd.AddCommand(newEntitiesRefreshCommand(cc))
	return cmd
}

func newEntitiesRefreshCommand(cc *commandContext) *cobra.Command {
	var (
		forceFlag bool
		jsonFlag  bool
	)

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Pull the current detection summary",
		Long: `Asks the server for its detection state and prints the counts. With
--force the server rescans the book even when its cache key is current.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cli, err := cc.client()
			if err != nil {
				return err
			}
			payload, err := cli.RefreshEntities(cmd.Context(), forceFlag, "")
			if err != nil {
				return err
			}

			if jsonFlag {
				return writeJSON(cmd, payload.Summary)
			}

			reg := override.NewRegistry()
			reg.Replace(payload)
			sum := payload.Summary
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "entities:   %d\n", sum.Entities)
			fmt.Fprintf(out, "people:     %d\n", sum.People)
			fmt.Fprintf(out, "heteronyms: %d\n", sum.Heteronyms)
			fmt.Fprintf(out, "chapters:   %d\n", sum.Chapters)
			fmt.Fprintf(out, "overrides:  %d\n", reg.Len())
			if sum.GeneratedAt != "" {
				fmt.Fprintf(out, "generated:  %s\n", sum.GeneratedAt)
			}
			fmt.Fprintf(out, "cache key:  %s\n", payload.CacheKey)
			return nil
		},
	}

	cmd.Flags().BoolVar(&forceFlag, "force", false, "recompute even when the server cache is fresh")
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "emit JSON instead of text")
	return cmd
}
