package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/example/go-meloplus/internal/config"
	"github.com/example/go-meloplus/internal/doctor"
	"github.com/example/go-meloplus/internal/synth"
	"github.com/spf13/cobra"
)

func newDoctorCmd() *cobra.Command {
	var (
		offline      bool
		requireModel bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run local environment and hub checks",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			engine, err := config.NormalizeEngine(cfg.Synth.Engine)
			if err != nil {
				return err
			}
			exe := engineExecutable(engine, cfg.Synth.CLIPath)
			_, _ = fmt.Fprintf(os.Stdout, "engine: %s (%s)\n", engine, exe)

			dcfg := doctor.Config{
				EngineName: exe,
				EngineVersion: func() (string, error) {
					return probeVersion(exe)
				},
				PythonVersion: probePythonVersion,
				HasToken:      cfg.Hub.Token != "",
				WritableDirs:  []string{cfg.Dataset.OutputDir, cfg.Synth.OutDir, cfg.Synth.ModelDir},
			}
			if !offline {
				dcfg.HubReachable = func() error {
					return probeHub(cfg.Hub.Endpoint)
				}
			}
			if requireModel && engine == config.EngineCLI {
				dcfg.Files = checkpointPaths(cfg)
			}

			result := doctor.Run(dcfg, os.Stdout)
			if result.Failed() {
				for _, f := range result.Failures() {
					fmt.Fprintf(os.Stderr, "FAIL: %s\n", f)
				}

				return errors.New("doctor checks failed")
			}

			_, _ = fmt.Fprintln(os.Stdout, "doctor checks passed")

			return nil
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "Skip the hub reachability check")
	cmd.Flags().BoolVar(&requireModel, "require-model", false, "Fail when the configured checkpoint set is not downloaded")

	return cmd
}

func engineExecutable(engine, configured string) string {
	if configured != "" {
		return configured
	}
	if engine == config.EnginePocketTTS {
		return "pocket-tts"
	}
	return "melo"
}

// checkpointPaths lists where model download places the configured version.
func checkpointPaths(cfg config.Config) []string {
	dir := filepath.Join(cfg.Synth.ModelDir,
		strings.ReplaceAll(synth.CacheKey(cfg.Synth.ModelRepo, cfg.Synth.ModelVersion), "/", "--"))
	files := synth.CheckpointFiles(cfg.Synth.ModelVersion)
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = filepath.Join(dir, f)
	}
	return out
}

// probeVersion runs `exe --version` and returns its first output line.
func probeVersion(exe string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, exe, "--version").CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%s --version failed: %w", exe, err)
	}

	line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	return line, nil
}

// probePythonVersion tries python3 then python and returns the version string.
func probePythonVersion() (string, error) {
	for _, bin := range []string{"python3", "python"} {
		out, err := exec.CommandContext(context.Background(), bin, "--version").Output()
		if err != nil {
			continue
		}
		raw := strings.TrimPrefix(strings.TrimSpace(string(out)), "Python ")
		if raw != "" {
			return raw, nil
		}
	}

	return "", errors.New("python3/python not found on PATH")
}

func probeHub(endpoint string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}
	return nil
}
