package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/example/go-meloplus/internal/extract"
	"github.com/example/go-meloplus/internal/manifest"
	"github.com/example/go-meloplus/internal/pipeline"
	"github.com/spf13/cobra"
)

// MeloDir is the default manifest output directory inside the dataset
// output directory.
const MeloDir = "melo"

func newMetadataCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metadata",
		Short: "Build and validate MeloTTS metadata.list manifests",
	}

	cmd.AddCommand(newMetadataBuildCmd())
	cmd.AddCommand(newMetadataCheckCmd())

	return cmd
}

func newMetadataBuildCmd() *cobra.Command {
	var (
		audioDir string
		textDir  string
		outDir   string
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Pair extracted audio with transcripts and write metadata.list",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			extracted := filepath.Join(cfg.Dataset.OutputDir, pipeline.ExtractSubdir)
			if audioDir == "" {
				audioDir = filepath.Join(extracted, extract.AudioDir)
			}
			if textDir == "" {
				column := "text"
				if len(cfg.Dataset.Columns) > 0 {
					column = cfg.Dataset.Columns[0]
				}
				textDir = filepath.Join(extracted, column)
			}
			if outDir == "" {
				outDir = filepath.Join(cfg.Dataset.OutputDir, MeloDir)
			}

			ctx, stop := signalContext()
			defer stop()

			res, err := manifest.Build(ctx, manifest.Options{
				SourceAudioDir: audioDir,
				TextDir:        textDir,
				OutputDir:      outDir,
				Language:       cfg.Manifest.Language,
				Speaker:        cfg.Manifest.Speaker,
				NormalizeText:  cfg.Manifest.NormalizeText,
			})
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(os.Stdout, "%s: %d of %d audio files written\n",
				filepath.Join(outDir, manifest.FileName), res.Written, res.Processed)
			return err
		},
	}

	cmd.Flags().StringVar(&audioDir, "audio-dir", "", "Source audio directory (default {dataset-output-dir}/audio_files/wavs)")
	cmd.Flags().StringVar(&textDir, "text-dir", "", "Transcript directory (default {dataset-output-dir}/audio_files/{first column})")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "Manifest output directory (default {dataset-output-dir}/melo)")

	return cmd
}

func newMetadataCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <metadata.list>",
		Short: "Parse a manifest and verify every referenced audio file exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			content, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			entries, err := manifest.Parse(string(content))
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			base := filepath.Dir(args[0])
			var missing int
			for _, e := range entries {
				p := e.AudioPath
				if !filepath.IsAbs(p) {
					p = filepath.Join(base, p)
				}
				if _, err := os.Stat(p); err != nil {
					missing++
					_, _ = fmt.Fprintf(os.Stderr, "missing audio: %s\n", e.AudioPath)
				}
			}
			if missing > 0 {
				return fmt.Errorf("%d of %d manifest entries reference missing audio", missing, len(entries))
			}

			_, err = fmt.Fprintf(os.Stdout, "%d entries ok\n", len(entries))
			return err
		},
	}
}
