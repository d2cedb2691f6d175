package synth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	pockettts "github.com/MeKo-Christian/go-call-pocket-tts"

	"github.com/example/go-meloplus/internal/audio"
)

// VoiceExportOptions configures ExportVoice.
type VoiceExportOptions struct {
	ExecutablePath string
	ConfigPath     string
	Quiet          bool
	LogWriter      io.Writer
}

// ExportVoice turns a WAV clip, typically one extracted from a dataset, into
// a pocket-tts voice embedding at outPath. It needs the Python pocket-tts
// tooling on PATH.
func ExportVoice(ctx context.Context, audioPath, outPath string, opts VoiceExportOptions) error {
	data, err := os.ReadFile(audioPath)
	if err != nil {
		return fmt.Errorf("read voice prompt: %w", err)
	}
	if _, err := audio.Probe(data); err != nil {
		return fmt.Errorf("voice prompt %s: %w", audioPath, err)
	}
	if outPath == "" {
		return errors.New("output path is required")
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	logw := opts.LogWriter
	if logw == nil {
		logw = io.Discard
	}

	err = pockettts.ExportVoice(ctx, audioPath, outPath, &pockettts.ExportVoiceOptions{
		Config:         opts.ConfigPath,
		Quiet:          opts.Quiet,
		ExecutablePath: opts.ExecutablePath,
		LogWriter:      logw,
	})
	if err != nil {
		var notFound *pockettts.ErrExecutableNotFound
		if errors.As(err, &notFound) {
			return fmt.Errorf("%w: %v", ErrEngineNotFound, err)
		}
		return fmt.Errorf("export voice: %w", err)
	}
	return nil
}
