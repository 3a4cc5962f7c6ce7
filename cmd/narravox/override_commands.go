package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/narravoxlabs/narravox/pkg/client"
	"github.com/narravoxlabs/narravox/pkg/override"
)

func newOverridesCommand(cc *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "overrides",
		Aliases: []string{"ov"},
		Short:   "Inspect and edit pronunciation overrides",
	}
	cmd.AddCommand(newOverridesListCommand(cc))
	cmd.AddCommand(newOverridesSearchCommand(cc))
	cmd.AddCommand(newOverridesSuggestCommand(cc))
	cmd.AddCommand(newOverridesSetCommand(cc))
	cmd.AddCommand(newOverridesRemoveCommand(cc))
	cmd.AddCommand(newOverridesImportCommand(cc))
	return cmd
}

func newOverridesListCommand(cc *commandContext) *cobra.Command {
	var (
		sourceFlag string
		jsonFlag   bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List overrides known to the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cli, err := cc.client()
			if err != nil {
				return err
			}
			payload, err := cli.RefreshEntities(cmd.Context(), false, "")
			if err != nil {
				return err
			}
			reg := override.NewRegistry()
			reg.Replace(payload)

			var rows []override.Override
			switch sourceFlag {
			case "":
				rows = reg.All()
			case string(override.SourceManual):
				rows = reg.Manual()
			case string(override.SourceHistory):
				rows = reg.History()
			default:
				return fmt.Errorf("unknown source %q (want manual or history)", sourceFlag)
			}

			if jsonFlag {
				return writeJSON(cmd, rows)
			}
			cells := make([][]string, 0, len(rows))
			for _, ov := range rows {
				cells = append(cells, []string{ov.Token, ov.Pronunciation, ov.Voice, string(ov.Source)})
			}
			renderTable(cmd.OutOrStdout(), []string{"TOKEN", "PRONUNCIATION", "VOICE", "SOURCE"}, cells)
			return nil
		},
	}

	cmd.Flags().StringVar(&sourceFlag, "source", "", "only overrides from this source (manual or history)")
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "emit JSON instead of a table")
	return cmd
}

func newOverridesSearchCommand(cc *commandContext) *cobra.Command {
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the server's override index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, err := cc.client()
			if err != nil {
				return err
			}
			results, err := cli.SearchOverrides(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if jsonFlag {
				return writeJSON(cmd, results)
			}
			if len(results) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no matches")
				return nil
			}
			cells := make([][]string, 0, len(results))
			for _, ov := range results {
				cells = append(cells, []string{ov.ID, ov.Token, ov.Pronunciation, ov.Voice})
			}
			renderTable(cmd.OutOrStdout(), []string{"ID", "TOKEN", "PRONUNCIATION", "VOICE"}, cells)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonFlag, "json", false, "emit JSON instead of a table")
	return cmd
}

func newOverridesSuggestCommand(cc *commandContext) *cobra.Command {
	var limitFlag int

	cmd := &cobra.Command{
		Use:   "suggest <token>",
		Short: "Suggest existing overrides that sound like a token",
		Long: `Ranks known overrides against the token by Jaro-Winkler similarity and
Double Metaphone overlap. Useful before adding a new override: a close
match usually means the name is already covered under another spelling.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, err := cc.client()
			if err != nil {
				return err
			}
			payload, err := cli.RefreshEntities(cmd.Context(), false, "")
			if err != nil {
				return err
			}
			reg := override.NewRegistry()
			reg.Replace(payload)

			suggestions := override.NewSuggester(reg).Suggest(args[0], limitFlag)
			if len(suggestions) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "nothing similar to %q\n", args[0])
				return nil
			}
			cells := make([][]string, 0, len(suggestions))
			for _, s := range suggestions {
				match := "spelling"
				if s.Phonetic {
					match = "phonetic"
				}
				cells = append(cells, []string{
					s.Override.Token,
					s.Override.Pronunciation,
					strconv.FormatFloat(s.Score, 'f', 2, 64),
					match,
				})
			}
			renderTable(cmd.OutOrStdout(), []string{"TOKEN", "PRONUNCIATION", "SCORE", "MATCH"}, cells)
			return nil
		},
	}

	cmd.Flags().IntVar(&limitFlag, "limit", 5, "maximum number of suggestions")
	return cmd
}

func newOverridesSetCommand(cc *commandContext) *cobra.Command {
	var (
		pronunciationFlag string
		voiceFlag         string
		contextFlag       string
		notesFlag         string
		idFlag            string
	)

	cmd := &cobra.Command{
		Use:   "set <token>",
		Short: "Create or update a manual override",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ov := override.Override{
				ID:            idFlag,
				Token:         strings.TrimSpace(args[0]),
				Normalized:    override.Canonicalize(args[0]),
				Pronunciation: pronunciationFlag,
				Voice:         voiceFlag,
				Context:       contextFlag,
				Notes:         notesFlag,
				Source:        override.SourceManual,
			}
			if err := override.Validate(ov); err != nil {
				return err
			}

			cli, err := cc.client()
			if err != nil {
				return err
			}
			payload, err := cli.UpsertOverride(cmd.Context(), client.UpsertRequest{
				ID:            ov.ID,
				Token:         ov.Token,
				Normalized:    ov.Normalized,
				Context:       ov.Context,
				Pronunciation: ov.Pronunciation,
				Voice:         ov.Voice,
				Notes:         ov.Notes,
				Source:        ov.Source,
			})
			if err != nil {
				return err
			}

			reg := override.NewRegistry()
			reg.Replace(payload)
			if saved, ok := reg.Lookup(ov.Token); ok {
				fmt.Fprintf(cmd.OutOrStdout(), "saved %s as %s\n", saved.Token, saved.ID)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", ov.Token)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&idFlag, "id", "", "update this override instead of matching by token")
	cmd.Flags().StringVar(&pronunciationFlag, "pronunciation", "", "phonetic respelling, e.g. \"VAYL-en-or\"")
	cmd.Flags().StringVar(&voiceFlag, "voice", "", "voice id or mix formula")
	cmd.Flags().StringVar(&contextFlag, "context", "", "disambiguation context for heteronyms")
	cmd.Flags().StringVar(&notesFlag, "notes", "", "free-form notes")
	return cmd
}

func newOverridesRemoveCommand(cc *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"remove", "delete"},
		Short:   "Delete an override by id",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, err := cc.client()
			if err != nil {
				return err
			}
			if _, err := cli.DeleteOverride(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
	return cmd
}

// importRow is one entry in an overrides import file.
type importRow struct {
	Token         string `yaml:"token"`
	Pronunciation string `yaml:"pronunciation"`
	Voice         string `yaml:"voice"`
	Context       string `yaml:"context"`
	Notes         string `yaml:"notes"`
}

func newOverridesImportCommand(cc *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Bulk-add manual overrides from a YAML file",
		Long: `Reads a YAML list of overrides and saves them through the usual batch
pipeline, so imports coalesce and parallelize the same way interactive
edits do. Rows that fail to save stay dirty and are reported at the end.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			var rows []importRow
			dec := yaml.NewDecoder(f)
			dec.KnownFields(true)
			if err := dec.Decode(&rows); err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}
			if len(rows) == 0 {
				return fmt.Errorf("%s contains no overrides", args[0])
			}

			ctx := cmd.Context()
			sess, err := cc.openSession(ctx, false)
			if err != nil {
				return err
			}
			defer sess.close()

			st := sess.studio
			if err := st.RefreshEntities(ctx, false); err != nil {
				return fmt.Errorf("refresh before import: %w", err)
			}

			var rejected []string
			for i, row := range rows {
				_, err := st.AddOverride(override.Override{
					Token:         row.Token,
					Pronunciation: row.Pronunciation,
					Voice:         row.Voice,
					Context:       row.Context,
					Notes:         row.Notes,
					Source:        override.SourceManual,
				})
				if err != nil {
					rejected = append(rejected, fmt.Sprintf("row %d (%s): %v", i+1, row.Token, err))
				}
			}

			settleCtx, cancel := cc.settleContext(ctx)
			defer cancel()
			if err := st.Settle(settleCtx); err != nil {
				return fmt.Errorf("waiting for saves: %w", err)
			}

			snap := st.Snapshot()
			saved := len(rows) - len(rejected) - snap.Dirty
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d of %d overrides\n", saved, len(rows))
			for _, r := range rejected {
				fmt.Fprintln(cmd.OutOrStdout(), "  rejected:", r)
			}
			if snap.Dirty > 0 {
				err := fmt.Errorf("%d overrides did not save", snap.Dirty)
				if snap.LastError != nil {
					err = fmt.Errorf("%d overrides did not save: %w", snap.Dirty, snap.LastError)
				}
				return err
			}
			return nil
		},
	}
	return cmd
}
