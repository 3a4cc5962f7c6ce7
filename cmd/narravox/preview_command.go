package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/narravoxlabs/narravox/pkg/override"
	"github.com/narravoxlabs/narravox/pkg/voicemix"
)

func newPreviewCommand(cc *commandContext) *cobra.Command {
	var (
		textFlag    string
		voiceFlag   string
		formulaFlag string
		profileFlag string
		langFlag    string
		speedFlag   float64
		maxSeconds  int
		outFlag     string
	)

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Render a short audio sample to a file",
		Long: `Renders the preview text with a single catalog voice (--voice), a mix
formula (--formula), or the voice assigned to an existing override token
(--profile). With none of those the configured default formula is used.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := cc.configValue()

			selectors := 0
			for _, f := range []string{voiceFlag, formulaFlag, profileFlag} {
				if f != "" {
					selectors++
				}
			}
			if selectors > 1 {
				return errors.New("--voice, --formula and --profile are mutually exclusive")
			}

			req := previewDefaults(cfg)
			if textFlag != "" {
				req.Text = textFlag
			}
			if langFlag != "" {
				req.Language = langFlag
			}
			if cmd.Flags().Changed("speed") {
				req.Speed = speedFlag
			}
			if cmd.Flags().Changed("max-seconds") {
				req.MaxSeconds = maxSeconds
			}

			cli, err := cc.client()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			var audio []byte
			switch {
			case voiceFlag != "":
				req.Profile = ""
				req.Voice = voiceFlag
				audio, err = cli.PreviewSpeaker(ctx, req)
			case formulaFlag != "":
				m := voicemix.Parse(formulaFlag)
				if len(m) == 0 {
					return fmt.Errorf("%q is not a valid voice mix", formulaFlag)
				}
				req.Profile = voicemix.Format(m)
				audio, err = cli.PreviewProfile(ctx, req)
			case profileFlag != "":
				payload, perr := cli.RefreshEntities(ctx, false, "")
				if perr != nil {
					return perr
				}
				reg := override.NewRegistry()
				reg.Replace(payload)
				ov, ok := reg.Lookup(profileFlag)
				if !ok || ov.Voice == "" {
					return fmt.Errorf("no voice assignment found for %q", profileFlag)
				}
				req.Profile = ov.Voice
				audio, err = cli.PreviewProfile(ctx, req)
			default:
				audio, err = cli.PreviewProfile(ctx, req)
			}
			if err != nil {
				return err
			}

			if outFlag == "-" {
				_, err := cmd.OutOrStdout().Write(audio)
				return err
			}
			if err := os.WriteFile(outFlag, audio, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", outFlag, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", outFlag, len(audio))
			return nil
		},
	}

	cmd.Flags().StringVar(&textFlag, "text", "", "sample text to speak (default from config)")
	cmd.Flags().StringVar(&voiceFlag, "voice", "", "single catalog voice id, e.g. af_bella")
	cmd.Flags().StringVar(&formulaFlag, "formula", "", "voice mix formula, e.g. \"af_bella*0.6+af_sky*0.4\"")
	cmd.Flags().StringVar(&profileFlag, "profile", "", "preview the voice assigned to an override token")
	cmd.Flags().StringVar(&langFlag, "language", "", "language code (default from config)")
	cmd.Flags().Float64Var(&speedFlag, "speed", 0, "playback rate multiplier")
	cmd.Flags().IntVar(&maxSeconds, "max-seconds", 0, "clip length cap in seconds")
	cmd.Flags().StringVarP(&outFlag, "out", "o", "preview.wav", "output file, or - for stdout")
	return cmd
}
