// Package manifest pairs extracted audio files with their transcripts and
// writes the pipe-delimited metadata.list consumed by training.
package manifest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/example/go-meloplus/internal/audio"
	textpkg "github.com/example/go-meloplus/internal/text"
)

const (
	// FileName is the manifest written into the output directory.
	FileName = "metadata.list"
	// AudioDir receives the copied audio files.
	AudioDir = "wavs"

	DefaultLanguage = "EN"
	DefaultSpeaker  = "default"
)

// Options configures Build.
type Options struct {
	SourceAudioDir string
	TextDir        string
	OutputDir      string
	Language       string
	Speaker        string
	// NormalizeText applies Unicode NFC to transcripts.
	NormalizeText bool
	Logger        *slog.Logger
}

// Result counts the audio files seen and the manifest lines written.
type Result struct {
	Processed int
	Written   int
}

// Build copies every audio file of SourceAudioDir that has a transcript at
// TextDir/{stem}.txt into OutputDir/wavs and writes one manifest line per
// pair to OutputDir/metadata.list, replacing any previous manifest. Audio
// files without a transcript are skipped.
func Build(ctx context.Context, opts Options) (Result, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if opts.Language == "" {
		opts.Language = DefaultLanguage
	}
	if opts.Speaker == "" {
		opts.Speaker = DefaultSpeaker
	}

	files, err := listAudio(opts.SourceAudioDir)
	if err != nil {
		return Result{}, err
	}

	wavsDir := filepath.Join(opts.OutputDir, AudioDir)
	if err := os.MkdirAll(wavsDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create %s: %w", wavsDir, err)
	}

	var (
		res   Result
		lines []string
	)
	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Processed++

		stem := strings.TrimSuffix(name, filepath.Ext(name))
		raw, err := os.ReadFile(filepath.Join(opts.TextDir, stem+".txt"))
		if os.IsNotExist(err) {
			log.Debug("no transcript, skipping", "audio", name)
			continue
		}
		if err != nil {
			return res, fmt.Errorf("read transcript for %s: %w", name, err)
		}

		if err := copyFile(filepath.Join(opts.SourceAudioDir, name), filepath.Join(wavsDir, name)); err != nil {
			return res, err
		}

		text := textpkg.Transcript(string(raw), opts.NormalizeText)
		lines = append(lines, NewEntry(name, opts.Language, opts.Speaker, text).String())
		res.Written++
	}

	out := filepath.Join(opts.OutputDir, FileName)
	if err := os.WriteFile(out, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		return res, fmt.Errorf("write manifest: %w", err)
	}

	log.Info("manifest built",
		"processed", res.Processed,
		"written", res.Written,
		"manifest", out,
	)
	return res, nil
}

func listAudio(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read audio dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !audio.IsAudioExt(filepath.Ext(e.Name())) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// copyFile copies src to dst and carries over the modification time. When
// dst already is src the file is left untouched.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}
	if dstInfo, err := os.Stat(dst); err == nil && os.SameFile(info, dstInfo) {
		return nil
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dst, err)
	}

	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}
