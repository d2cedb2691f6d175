// Package extract writes the audio payload and selected text columns of each
// table record to per-record files.
package extract

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/example/go-meloplus/internal/audio"
	"github.com/example/go-meloplus/internal/dataset"
)

// ReservedPrefix marks internal columns excluded from the default selection.
const ReservedPrefix = "__"

// AudioDir is the subdirectory of the output directory receiving audio files.
const AudioDir = "wavs"

// Options controls one extraction run.
type Options struct {
	// Columns to write as text. Nil selects every non-audio, non-reserved
	// column in table order.
	Columns []string
	// Limit restricts processing to the first Limit rows when positive.
	Limit int
	// NativeExtension names audio files after the container sniffed from the
	// payload instead of always using .wav.
	NativeExtension bool
	// Progress receives a progress bar when non-nil.
	Progress io.Writer
	Logger   *slog.Logger
}

// Result summarizes an extraction run.
type Result struct {
	// AudioPaths are the written audio files in row order.
	AudioPaths []string
	Skipped    int
	TextFiles  int
	// TotalDuration sums the durations of payloads that probe as WAV.
	TotalDuration time.Duration
}

type rowStatus int

const (
	rowWritten rowStatus = iota
	rowSkipped
)

// rowOutcome is the per-row result: a written audio path, or a skip reason.
type rowOutcome struct {
	status    rowStatus
	audioPath string
	reason    string
	textFiles int
	duration  time.Duration
}

// DefaultColumns returns the text columns extracted when none are requested.
func DefaultColumns(table *dataset.Table) []string {
	var cols []string
	for _, c := range table.Columns {
		if c == AudioColumn || strings.HasPrefix(c, ReservedPrefix) {
			continue
		}
		cols = append(cols, c)
	}
	return cols
}

// Extract writes one audio file per record with a usable payload into
// outDir/wavs and each non-empty requested column value into
// outDir/{column}/{identifier}.txt. Rows without usable audio are skipped
// entirely. Unknown columns fail with *UnknownColumnError before anything is
// created; I/O failures and cancellation fail with *ExtractionError.
func Extract(ctx context.Context, table *dataset.Table, outDir string, opts Options) (Result, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if table == nil {
		return Result{}, &ExtractionError{Op: "open table", Err: fmt.Errorf("no table")}
	}

	columns := opts.Columns
	if columns == nil {
		columns = DefaultColumns(table)
	} else if err := checkColumns(table, columns); err != nil {
		return Result{}, err
	}

	if err := prepareDirs(outDir, columns); err != nil {
		return Result{}, err
	}

	records := table.Records
	if opts.Limit > 0 && opts.Limit < len(records) {
		records = records[:opts.Limit]
	}

	var bar *progressbar.ProgressBar
	if opts.Progress != nil {
		bar = progressbar.NewOptions(len(records),
			progressbar.OptionSetWriter(opts.Progress),
			progressbar.OptionSetDescription("extracting"),
			progressbar.OptionClearOnFinish(),
		)
	}

	log.Info("extracting records", "rows", len(records), "columns", columns, "output_dir", outDir)

	res := Result{AudioPaths: make([]string, 0, len(records))}
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return res, &ExtractionError{Op: "cancelled", Err: err}
		}

		out, err := extractRow(rec, i, outDir, columns, opts.NativeExtension)
		if err != nil {
			return res, err
		}

		switch out.status {
		case rowSkipped:
			res.Skipped++
			log.Debug("skipping row", "row", i, "reason", out.reason)
		case rowWritten:
			res.AudioPaths = append(res.AudioPaths, out.audioPath)
			res.TextFiles += out.textFiles
			res.TotalDuration += out.duration
		}

		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}

	log.Info("extraction complete",
		"audio_files", len(res.AudioPaths),
		"text_files", res.TextFiles,
		"skipped", res.Skipped,
		"duration", res.TotalDuration.Round(time.Millisecond).String(),
	)
	return res, nil
}

func checkColumns(table *dataset.Table, columns []string) error {
	var missing []string
	for _, c := range columns {
		if !table.HasColumn(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return &UnknownColumnError{Columns: missing}
	}
	return nil
}

func prepareDirs(outDir string, columns []string) error {
	dirs := []string{filepath.Join(outDir, AudioDir)}
	for _, c := range columns {
		if c == "" || c == "." || c == ".." || strings.ContainsAny(c, `/\`) {
			return &ExtractionError{Op: "column directory", Path: c, Err: fmt.Errorf("column name is not a usable directory name")}
		}
		dirs = append(dirs, filepath.Join(outDir, c))
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return &ExtractionError{Op: "mkdir", Path: d, Err: err}
		}
	}
	return nil
}

func extractRow(rec dataset.Record, row int, outDir string, columns []string, native bool) (rowOutcome, error) {
	payload := ResolvePayload(rec)
	if !payload.Usable() {
		reason := "audio is not a byte payload"
		if payload.Kind != PayloadNone {
			reason = "audio payload is empty"
		}
		return rowOutcome{status: rowSkipped, reason: reason}, nil
	}

	id := Identifier(rec, row)
	ext := audio.ExtWAV
	if native {
		ext = audio.SniffExtension(payload.Bytes)
	}

	out := rowOutcome{status: rowWritten, audioPath: filepath.Join(outDir, AudioDir, id+ext)}
	if err := os.WriteFile(out.audioPath, payload.Bytes, 0o644); err != nil {
		return out, &ExtractionError{Op: "write audio", Path: out.audioPath, Err: err}
	}
	if info, err := audio.Probe(payload.Bytes); err == nil {
		out.duration = info.Duration
	}

	for _, c := range columns {
		text, ok := textValue(rec[c])
		if !ok {
			continue
		}
		p := filepath.Join(outDir, c, id+".txt")
		if err := os.WriteFile(p, []byte(text), 0o644); err != nil {
			return out, &ExtractionError{Op: "write text", Path: p, Err: err}
		}
		out.textFiles++
	}
	return out, nil
}

// Identifier names the output files of rec: its id field, else its filename
// field, else the zero-based row position. Values are reduced to a base name
// with any audio extension removed; unusable values are passed over.
func Identifier(rec dataset.Record, row int) string {
	for _, field := range []string{"id", "filename"} {
		v, ok := rec[field]
		if !ok {
			continue
		}
		if id := sanitizeIdentifier(v); id != "" {
			return id
		}
	}
	return strconv.Itoa(row)
}

func sanitizeIdentifier(v any) string {
	s := identifierText(v)
	if s == "" {
		return ""
	}
	s = strings.TrimSpace(strings.ReplaceAll(s, `\`, "/"))
	s = filepath.Base(s)
	if ext := filepath.Ext(s); audio.IsAudioExt(ext) {
		s = strings.TrimSuffix(s, ext)
	}
	if s == "" || s == "." || s == ".." || s == "/" {
		return ""
	}
	return s
}

// identifierText renders an id cell. Only missing, empty string and empty
// byte values count as absent; zero numbers and false are real ids.
func identifierText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case bool:
		if x {
			return "True"
		}
		return "False"
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

// textValue renders a cell as text. Empty strings, empty byte slices, false,
// zero numbers and missing cells are not written.
func textValue(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, x != ""
	case []byte:
		return string(x), len(x) > 0
	case bool:
		return "True", x
	case int64:
		return strconv.FormatInt(x, 10), x != 0
	case int:
		return strconv.Itoa(x), x != 0
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), x != 0
	case []any:
		return fmt.Sprint(x), len(x) > 0
	case map[string]any:
		return fmt.Sprint(x), len(x) > 0
	default:
		s := fmt.Sprint(x)
		return s, s != ""
	}
}
