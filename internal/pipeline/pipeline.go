// Package pipeline runs the dataset preparation stages in order: snapshot
// download, table load and per-record extraction.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/example/go-meloplus/internal/dataset"
	"github.com/example/go-meloplus/internal/extract"
	"github.com/example/go-meloplus/internal/hub"
)

// Stage names reported by StageError.
const (
	StageDownload = "download"
	StageLoad     = "load"
	StageExtract  = "extract"
)

const (
	// DataSubdir holds the Parquet fragments inside a dataset snapshot.
	DataSubdir = "data"
	// ExtractSubdir receives the extracted audio and text files.
	ExtractSubdir = "audio_files"
)

// StageError identifies the stage that aborted a run.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("failed to process audio data: %s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// SnapshotFetcher downloads a repository snapshot. *hub.Client implements it.
type SnapshotFetcher interface {
	FetchSnapshot(ctx context.Context, repo hub.Repo, localDir string, ignore []string) (string, error)
}

// TableSource yields the table to extract from.
type TableSource interface {
	Table() (*dataset.Table, error)
	Metadata() (dataset.Metadata, error)
}

// Options configures one run.
type Options struct {
	Dataset   string
	OutputDir string
	Ignore    []string
	Columns   []string
	Limit     int

	NativeExtension bool
	Progress        io.Writer
}

// Report describes a successful run.
type Report struct {
	SnapshotDir string
	DataDir     string
	ExtractDir  string
	Metadata    dataset.Metadata
	Extract     extract.Result
}

// Runner wires the stages together.
type Runner struct {
	Hub SnapshotFetcher
	// NewSource builds the table source for the downloaded data directory.
	// Nil uses dataset.NewLoader.
	NewSource func(dir string) TableSource
	Logger    *slog.Logger
}

// Run executes download, load and extract in sequence. The first failing
// stage aborts the run with a *StageError; nothing is retried.
func (r *Runner) Run(ctx context.Context, opts Options) (Report, error) {
	log := r.Logger
	if log == nil {
		log = slog.Default()
	}

	repo := hub.DatasetRepo(opts.Dataset)
	log.Info("pipeline start", "dataset", repo.ID, "output_dir", opts.OutputDir)

	snapshot, err := r.Hub.FetchSnapshot(ctx, repo, opts.OutputDir, opts.Ignore)
	if err != nil {
		return Report{}, &StageError{Stage: StageDownload, Err: err}
	}

	rep := Report{
		SnapshotDir: snapshot,
		DataDir:     filepath.Join(snapshot, DataSubdir),
		ExtractDir:  filepath.Join(snapshot, ExtractSubdir),
	}

	newSource := r.NewSource
	if newSource == nil {
		newSource = func(dir string) TableSource {
			return dataset.NewLoader(dir, dataset.WithLogger(log))
		}
	}
	src := newSource(rep.DataDir)

	md, err := src.Metadata()
	if err != nil {
		return rep, &StageError{Stage: StageLoad, Err: err}
	}
	rep.Metadata = md
	log.Info("dataset metadata",
		"rows", md.RowCount,
		"size", md.HumanSize(),
		"columns", md.Columns,
	)
	if len(md.Sample) > 0 {
		log.Debug("first row", "row", summarizeRecord(md.Sample[0]))
	}

	table, err := src.Table()
	if err != nil {
		return rep, &StageError{Stage: StageLoad, Err: err}
	}

	res, err := extract.Extract(ctx, table, rep.ExtractDir, extract.Options{
		Columns:         opts.Columns,
		Limit:           opts.Limit,
		NativeExtension: opts.NativeExtension,
		Progress:        opts.Progress,
		Logger:          log,
	})
	if err != nil {
		return rep, &StageError{Stage: StageExtract, Err: err}
	}
	rep.Extract = res

	log.Info("pipeline complete", "audio_files", len(res.AudioPaths), "skipped", res.Skipped, "extract_dir", rep.ExtractDir)
	return rep, nil
}

// summarizeRecord replaces byte payloads with their length for logging.
func summarizeRecord(rec dataset.Record) map[string]any {
	out := make(map[string]any, len(rec))
	for k, v := range rec {
		out[k] = summarizeValue(v)
	}
	return out
}

func summarizeValue(v any) any {
	switch x := v.(type) {
	case []byte:
		return fmt.Sprintf("<%d bytes>", len(x))
	case map[string]any:
		return summarizeRecord(x)
	default:
		return v
	}
}
