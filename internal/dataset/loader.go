// Package dataset loads Parquet datasets, either a single file or a directory
// of fragments, into one in-memory Table.
package dataset

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
)

// FragmentExt is the extension of fragment files picked up from a directory.
const FragmentExt = ".parquet"

// SampleRows is the number of rows included in Metadata.Sample.
const SampleRows = 5

type options struct {
	logger *slog.Logger
}

// Option configures a Loader.
type Option func(*options)

// WithLogger sets the logger used for load progress.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Loader builds the Table for path on first use and keeps it for its own
// lifetime. It is not safe for concurrent use.
type Loader struct {
	path  string
	log   *slog.Logger
	table *Table
}

func NewLoader(path string, optFns ...Option) *Loader {
	opts := options{logger: slog.Default()}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Loader{path: path, log: opts.logger}
}

func (l *Loader) Path() string { return l.path }

// Table returns the memoized table, loading it on the first call.
// Directory fragments are concatenated in lexical file name order.
func (l *Loader) Table() (*Table, error) {
	if l.table != nil {
		return l.table, nil
	}

	info, err := os.Stat(l.path)
	if err != nil {
		return nil, &LoadError{Path: l.path, Err: err}
	}

	if !info.IsDir() {
		l.log.Info("loading single parquet file", "path", l.path)
		t, err := readFragment(l.path)
		if err != nil {
			return nil, &LoadError{Path: l.path, Err: err}
		}
		l.table = t
		return t, nil
	}

	l.log.Info("loading parquet files from directory", "dir", l.path)
	fragments, err := listFragments(l.path)
	if err != nil {
		return nil, &LoadError{Path: l.path, Err: err}
	}
	if len(fragments) == 0 {
		return nil, &EmptyDatasetError{Dir: l.path}
	}

	parts := make([]*Table, 0, len(fragments))
	for _, frag := range fragments {
		l.log.Debug("loading parquet file", "path", frag)
		t, err := readFragment(frag)
		if err != nil {
			return nil, &LoadError{Path: frag, Err: err}
		}
		parts = append(parts, t)
	}

	l.table = concat(parts)
	l.log.Info("dataset loaded", "fragments", len(fragments), "rows", l.table.NumRows())
	return l.table, nil
}

func listFragments(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), FragmentExt) {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

// Metadata is a derived view of the loaded table.
type Metadata struct {
	RowCount        int
	ApproxSizeBytes int64
	Columns         []string
	Sample          []Record
}

func (m Metadata) SizeMB() float64 {
	return float64(m.ApproxSizeBytes) / (1024 * 1024)
}

func (m Metadata) HumanSize() string {
	if m.ApproxSizeBytes < 0 {
		return "0 B"
	}
	return humanize.IBytes(uint64(m.ApproxSizeBytes))
}

func (m Metadata) String() string {
	return fmt.Sprintf("%d rows, ~%s, columns %v", m.RowCount, m.HumanSize(), m.Columns)
}

// Metadata recomputes the summary from the cached table on every call.
func (l *Loader) Metadata() (Metadata, error) {
	t, err := l.Table()
	if err != nil {
		return Metadata{}, err
	}

	var size int64
	for _, r := range t.Records {
		size += approxSize(r)
	}

	return Metadata{
		RowCount:        t.NumRows(),
		ApproxSizeBytes: size,
		Columns:         append([]string(nil), t.Columns...),
		Sample:          t.Head(SampleRows).Records,
	}, nil
}
