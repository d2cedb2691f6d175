package main

import (
	"log/slog"
	"os"

	"github.com/example/go-meloplus/internal/server"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the synthesis HTTP server",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			cache := newModelCache(cfg, nil)
			svc, err := newSynthService(cfg, cache)
			if err != nil {
				return err
			}

			if err := os.MkdirAll(cfg.Synth.OutDir, 0o755); err != nil {
				return err
			}

			slog.Info("starting server",
				"addr", cfg.Server.ListenAddr,
				"engine", svc.EngineName(),
				"model", cfg.Synth.ModelRepo,
				"version", cfg.Synth.ModelVersion,
				"workers", cfg.Server.Workers,
			)

			ctx, stop := signalContext()
			defer stop()

			return server.New(cfg, server.ServiceSynthesizer{Service: svc}, cache).Start(ctx)
		},
	}
}
