package main

import (
	"fmt"
	"math/rand/v2"

	"github.com/spf13/cobra"

	"github.com/narravoxlabs/narravox/pkg/catalog"
	"github.com/narravoxlabs/narravox/pkg/voicemix"
)

func newMixCommand(cc *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mix",
		Short: "Voice mix formula tools",
	}
	cmd.AddCommand(newMixFmtCommand())
	cmd.AddCommand(newMixRandomCommand())
	return cmd
}

func newMixFmtCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "fmt <formula>",
		Short: "Re-serialize a voice mix formula in canonical form",
		Long: `Parses a formula like "af_bella*0.6+af_sky*0.4" leniently (missing
weights default to 1, duplicates last-write-wins) and prints the canonical
form: weights normalized, two decimals, terms sorted by voice id.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m := voicemix.Parse(args[0])
			if len(m) == 0 {
				return fmt.Errorf("%q is not a valid voice mix", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), voicemix.Format(m))
			return nil
		},
	}
}

func newMixRandomCommand() *cobra.Command {
	var (
		gender   string
		countMin int
		countMax int
		seed     uint64
	)

	cmd := &cobra.Command{
		Use:   "random",
		Short: "Generate a surprise voice mix from the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			g := catalog.Gender(gender)
			if !g.IsValid() {
				return fmt.Errorf("gender %q is not one of female, male, any", gender)
			}

			var rng *rand.Rand
			if cmd.Flags().Changed("seed") {
				rng = rand.New(rand.NewPCG(seed, seed))
			}

			m := voicemix.RandomN(catalog.All(), g, countMin, countMax, rng)
			if len(m) == 0 {
				return fmt.Errorf("no catalog voices match gender %q", gender)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, voicemix.Format(m))

			if stdoutIsTerminal() {
				rows := make([][]string, 0, len(m))
				for _, id := range m.Voices() {
					name, lang := "", ""
					if v, ok := catalog.ByID(id); ok {
						name = v.Name
						lang = v.Language.DisplayName()
					}
					rows = append(rows, []string{id, name, lang, fmt.Sprintf("%.2f", m[id])})
				}
				renderTable(out, []string{"VOICE", "NAME", "LANGUAGE", "WEIGHT"}, rows)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&gender, "gender", "any", "restrict the draw to female or male voices")
	cmd.Flags().IntVar(&countMin, "count-min", 1, "minimum number of voices in the mix")
	cmd.Flags().IntVar(&countMax, "count-max", 4, "maximum number of voices in the mix")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "seed for deterministic output")
	return cmd
}
