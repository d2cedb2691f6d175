package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/example/go-meloplus/internal/config"
	"github.com/example/go-meloplus/internal/hub"
	"github.com/example/go-meloplus/internal/server"
	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	activeCfg config.Config
)

func NewRootCmd() *cobra.Command {
	defaults := config.DefaultConfig()

	cmd := &cobra.Command{
		Use:           "meloplus",
		Short:         "MeloTTS dataset preparation and synthesis tooling",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.Load(config.LoadOptions{
				Cmd:        cmd,
				ConfigFile: cfgFile,
				Defaults:   defaults,
			})
			if err != nil {
				return err
			}
			activeCfg = loaded
			setupLogger(loaded.LogLevel)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Optional config file (yaml|toml|json)")
	config.RegisterFlags(cmd.PersistentFlags(), defaults)

	cmd.AddCommand(newDatasetCmd())
	cmd.AddCommand(newMetadataCmd())
	cmd.AddCommand(newModelCmd())
	cmd.AddCommand(newSynthCmd())
	cmd.AddCommand(newVoiceCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newHealthCmd())
	cmd.AddCommand(newDoctorCmd())

	return cmd
}

// setupLogger configures the process-wide slog default logger.
func setupLogger(levelStr string) {
	lvl, err := server.ParseLogLevel(levelStr)
	if err != nil {
		lvl = slog.LevelInfo
	}
	h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(h))
}

func requireConfig() (config.Config, error) {
	if activeCfg.Hub.Endpoint == "" {
		return config.Config{}, fmt.Errorf("configuration not loaded")
	}
	return activeCfg, nil
}

// newHubClient builds a hub client from the loaded configuration. Progress
// bars go to progress when it is non-nil.
func newHubClient(cfg config.Config, progress io.Writer) *hub.Client {
	return hub.NewClient(hub.Options{
		Endpoint: cfg.Hub.Endpoint,
		Token:    cfg.Hub.Token,
		Revision: cfg.Hub.Revision,
		Logger:   slog.Default(),
		Progress: progress,
	})
}

// progressWriter returns os.Stderr unless progress output is disabled.
func progressWriter(enabled bool) io.Writer {
	if !enabled {
		return nil
	}
	return os.Stderr
}
