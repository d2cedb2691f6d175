// Package testutil provides shared fixtures and skip helpers for tests.
//
// Skip helpers call t.Skipf with a readable reason when a prerequisite is
// absent, so integration tests stay runnable in partial environments.
//
// Typical usage:
//
//	func TestMyIntegration(t *testing.T) {
//	    testutil.RequireSynthCLI(t)
//	    ...
//	}
package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"

	"github.com/example/go-meloplus/internal/audio"
)

// SynthCLIEnv names the environment variable overriding the synthesis binary.
const SynthCLIEnv = "MELOPLUS_SYNTH_CLI_PATH"

// RequireSynthCLI skips the test if the synthesis binary is not found in PATH
// or at the path given by MELOPLUS_SYNTH_CLI_PATH.
func RequireSynthCLI(tb testing.TB) {
	tb.Helper()

	exe := os.Getenv(SynthCLIEnv)
	if exe == "" {
		exe = "melo"
	}

	if _, err := exec.LookPath(exe); err != nil {
		tb.Skipf("synthesis binary not available (%q not in PATH); set %s to override", exe, SynthCLIEnv)
	}
}

// RequireEnv skips the test unless the named environment variable is set and
// returns its value.
func RequireEnv(tb testing.TB, name string) string {
	tb.Helper()

	v := os.Getenv(name)
	if v == "" {
		tb.Skipf("%s not set", name)
	}
	return v
}

// WriteParquet writes rows to path as a single-row-group parquet file,
// creating parent directories. The schema is derived from T's struct tags.
func WriteParquet[T any](tb testing.TB, path string, rows []T) {
	tb.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		tb.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}

	f, err := os.Create(path)
	if err != nil {
		tb.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	w := parquet.NewGenericWriter[T](f)
	if _, err := w.Write(rows); err != nil {
		tb.Fatalf("write parquet rows: %v", err)
	}
	if err := w.Close(); err != nil {
		tb.Fatalf("close parquet writer: %v", err)
	}
}

// ToneWAV returns a mono 16-bit WAV of the given length filled with a
// constant non-zero level.
func ToneWAV(tb testing.TB, sampleRate int, samples int) []byte {
	tb.Helper()

	pcm := make([]float32, samples)
	for i := range pcm {
		pcm[i] = 0.1
	}
	data, err := audio.EncodeWAV(pcm, sampleRate)
	if err != nil {
		tb.Fatalf("encode fixture WAV: %v", err)
	}
	return data
}

// WriteFile writes data to path, creating parent directories.
func WriteFile(tb testing.TB, path string, data []byte) {
	tb.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		tb.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		tb.Fatalf("write %s: %v", path, err)
	}
}
