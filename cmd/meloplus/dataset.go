package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/example/go-meloplus/internal/dataset"
	"github.com/example/go-meloplus/internal/extract"
	"github.com/example/go-meloplus/internal/hub"
	"github.com/example/go-meloplus/internal/pipeline"
	"github.com/spf13/cobra"
)

func newDatasetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dataset",
		Short: "Download, inspect, extract and publish speech datasets",
	}

	cmd.AddCommand(newDatasetDownloadCmd())
	cmd.AddCommand(newDatasetInspectCmd())
	cmd.AddCommand(newDatasetExtractCmd())
	cmd.AddCommand(newDatasetRunCmd())
	cmd.AddCommand(newDatasetPublishCmd())

	return cmd
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func newDatasetDownloadCmd() *cobra.Command {
	var (
		file     string
		kind     string
		progress bool
	)

	cmd := &cobra.Command{
		Use:   "download [repo]",
		Short: "Mirror a hub repository snapshot into the dataset output directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			k, err := hub.ParseKind(kind)
			if err != nil {
				return err
			}
			repo := hub.Repo{ID: cfg.Dataset.Repo, Kind: k}
			if len(args) == 1 {
				repo.ID = args[0]
			}

			ctx, stop := signalContext()
			defer stop()

			client := newHubClient(cfg, progressWriter(progress))
			if file != "" {
				path, err := client.FetchFile(ctx, repo, file, cfg.Dataset.OutputDir)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(os.Stdout, path)
				return err
			}

			stats, err := client.FetchSnapshotStats(ctx, repo, cfg.Dataset.OutputDir, cfg.Dataset.Ignore)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(os.Stdout, "%s -> %s (%d files listed, %d ignored, %d downloaded, %d reused)\n",
				repo, cfg.Dataset.OutputDir, stats.Listed, stats.Ignored, stats.Downloaded, stats.Reused)
			return err
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Download a single repository file instead of the whole snapshot")
	cmd.Flags().StringVar(&kind, "repo-type", string(hub.KindDataset), "Repository type (dataset|model)")
	cmd.Flags().BoolVar(&progress, "progress", true, "Show per-file progress bars on stderr")

	return cmd
}

// dataDir resolves the Parquet directory for a command: the explicit
// argument, else the data subdirectory of the configured output directory.
func dataDir(outputDir string, args []string) string {
	if len(args) == 1 {
		return args[0]
	}
	return filepath.Join(outputDir, pipeline.DataSubdir)
}

func newDatasetInspectCmd() *cobra.Command {
	var showSample bool

	cmd := &cobra.Command{
		Use:   "inspect [path]",
		Short: "Print row count, size, columns and sample rows of a Parquet dataset",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			loader := dataset.NewLoader(dataDir(cfg.Dataset.OutputDir, args))
			md, err := loader.Metadata()
			if err != nil {
				return err
			}

			rows := [][]string{
				{"path", loader.Path()},
				{"rows", humanize.Comma(int64(md.RowCount))},
				{"size", fmt.Sprintf("%s (%.2f MB)", md.HumanSize(), md.SizeMB())},
				{"columns", strconv.Itoa(len(md.Columns))},
			}
			_, _ = fmt.Fprintln(os.Stdout, renderTable([]string{"Property", "Value"}, rows))

			if showSample && len(md.Sample) > 0 {
				_, _ = fmt.Fprintln(os.Stdout, renderSample(md.Columns, md.Sample))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showSample, "sample", true, "Print the first rows")

	return cmd
}

func newDatasetExtractCmd() *cobra.Command {
	var (
		outDir   string
		native   bool
		progress bool
	)

	cmd := &cobra.Command{
		Use:   "extract [path]",
		Short: "Write audio payloads and text columns of a Parquet dataset to disk",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			if outDir == "" {
				outDir = filepath.Join(cfg.Dataset.OutputDir, pipeline.ExtractSubdir)
			}

			table, err := dataset.NewLoader(dataDir(cfg.Dataset.OutputDir, args)).Table()
			if err != nil {
				return err
			}

			ctx, stop := signalContext()
			defer stop()

			res, err := extract.Extract(ctx, table, outDir, extract.Options{
				Columns:         cfg.Dataset.Columns,
				Limit:           cfg.Dataset.Limit,
				NativeExtension: native,
				Progress:        progressWriter(progress),
			})
			if err != nil {
				return err
			}
			return printExtractResult(outDir, res)
		},
	}

	cmd.Flags().StringVar(&outDir, "out-dir", "", "Extraction directory (default {dataset-output-dir}/audio_files)")
	cmd.Flags().BoolVar(&native, "native-ext", false, "Name audio files after their detected container instead of .wav")
	cmd.Flags().BoolVar(&progress, "progress", true, "Show a progress bar on stderr")

	return cmd
}

func printExtractResult(dir string, res extract.Result) error {
	_, err := fmt.Fprintf(os.Stdout, "%s: %d audio files, %d text files, %d skipped, %s of WAV audio\n",
		dir, len(res.AudioPaths), res.TextFiles, res.Skipped, res.TotalDuration.Round(time.Millisecond))
	return err
}

func newDatasetRunCmd() *cobra.Command {
	var (
		native   bool
		progress bool
	)

	cmd := &cobra.Command{
		Use:   "run [repo]",
		Short: "Download a dataset, load its Parquet data and extract audio and text",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			repo := cfg.Dataset.Repo
			if len(args) == 1 {
				repo = args[0]
			}

			ctx, stop := signalContext()
			defer stop()

			runner := &pipeline.Runner{Hub: newHubClient(cfg, progressWriter(progress))}
			rep, err := runner.Run(ctx, pipeline.Options{
				Dataset:         repo,
				OutputDir:       cfg.Dataset.OutputDir,
				Ignore:          cfg.Dataset.Ignore,
				Columns:         cfg.Dataset.Columns,
				Limit:           cfg.Dataset.Limit,
				NativeExtension: native,
				Progress:        progressWriter(progress),
			})
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(os.Stdout, "dataset: %s\n", rep.Metadata)
			return printExtractResult(rep.ExtractDir, rep.Extract)
		},
	}

	cmd.Flags().BoolVar(&native, "native-ext", false, "Name audio files after their detected container instead of .wav")
	cmd.Flags().BoolVar(&progress, "progress", true, "Show progress bars on stderr")

	return cmd
}

func newDatasetPublishCmd() *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "publish <local-path> <repo>",
		Short: "Upload a file or directory to a hub repository, one commit per file",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			k, err := hub.ParseKind(kind)
			if err != nil {
				return err
			}

			ctx, stop := signalContext()
			defer stop()

			repo := hub.Repo{ID: args[1], Kind: k}
			if err := newHubClient(cfg, nil).Publish(ctx, args[0], repo); err != nil {
				return err
			}
			_, err = fmt.Fprintf(os.Stdout, "published %s to %s\n", args[0], repo)
			return err
		},
	}

	cmd.Flags().StringVar(&kind, "repo-type", string(hub.KindDataset), "Repository type (dataset|model)")

	return cmd
}
