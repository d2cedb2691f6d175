package main

import (
	"fmt"
	"os"

	"github.com/example/go-meloplus/internal/config"
	"github.com/example/go-meloplus/internal/synth"
	"github.com/spf13/cobra"
)

func newVoiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "voice",
		Short: "Voice prompt commands",
	}

	cmd.AddCommand(newVoiceExportCmd())

	return cmd
}

func newVoiceExportCmd() *cobra.Command {
	var (
		out        string
		configPath string
	)

	cmd := &cobra.Command{
		Use:   "export <clip.wav>",
		Short: "Export a dataset clip as a pocket-tts voice embedding",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			if out == "" {
				return fmt.Errorf("--out is required")
			}

			ctx, stop := signalContext()
			defer stop()

			opts := synth.VoiceExportOptions{
				ConfigPath: configPath,
				Quiet:      cfg.Synth.Quiet,
			}
			if engine, _ := config.NormalizeEngine(cfg.Synth.Engine); engine == config.EnginePocketTTS {
				opts.ExecutablePath = cfg.Synth.CLIPath
			}
			if !cfg.Synth.Quiet {
				opts.LogWriter = os.Stderr
			}
			if err := synth.ExportVoice(ctx, args[0], out, opts); err != nil {
				return err
			}
			_, err = fmt.Fprintln(os.Stdout, out)
			return err
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "Output .safetensors path")
	cmd.Flags().StringVar(&configPath, "tts-config", "", "Optional pocket-tts model config passed to export-voice")

	return cmd
}
