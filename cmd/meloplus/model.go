package main

import (
	"fmt"
	"io"
	"os"

	"github.com/example/go-meloplus/internal/config"
	"github.com/example/go-meloplus/internal/synth"
	"github.com/spf13/cobra"
)

func newModelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Model checkpoint commands",
	}

	cmd.AddCommand(newModelDownloadCmd())

	return cmd
}

func newModelDownloadCmd() *cobra.Command {
	var progress bool

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download the G_/D_/DUR_ checkpoints and config.json of a model version",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			ctx, stop := signalContext()
			defer stop()

			cache := newModelCache(cfg, progressWriter(progress))
			ckpt, err := cache.Get(ctx, cfg.Synth.ModelRepo, cfg.Synth.ModelVersion)
			if err != nil {
				return err
			}

			for _, p := range []string{ckpt.Generator, ckpt.Discriminator, ckpt.Duration, ckpt.Config} {
				if _, err := fmt.Fprintln(os.Stdout, p); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&progress, "progress", true, "Show per-file progress bars on stderr")

	return cmd
}

// newModelCache builds the checkpoint cache backed by the configured hub.
func newModelCache(cfg config.Config, progress io.Writer) *synth.ModelCache {
	return synth.NewModelCache(synth.HubLoader(newHubClient(cfg, progress), cfg.Synth.ModelDir))
}

// newSynthService builds the engine and service for the configured backend.
func newSynthService(cfg config.Config, cache *synth.ModelCache) (*synth.Service, error) {
	engine, err := synth.NewEngine(cfg.Synth.Engine, synth.EngineOptions{
		ExecutablePath: cfg.Synth.CLIPath,
		Quiet:          cfg.Synth.Quiet,
		Stderr:         os.Stderr,
	})
	if err != nil {
		return nil, err
	}

	return synth.NewService(cache, engine, synth.ServiceOptions{
		OutDir:   cfg.Synth.OutDir,
		Model:    cfg.Synth.ModelRepo,
		Version:  cfg.Synth.ModelVersion,
		Language: cfg.Synth.Language,
		Speaker:  cfg.Synth.Speaker,
		Speed:    cfg.Synth.Speed,
	}), nil
}
