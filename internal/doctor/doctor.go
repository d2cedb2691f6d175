// Package doctor provides environment preflight checks for meloplus.
package doctor

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// PassMark and FailMark are the prefix symbols printed for each check result.
const (
	PassMark = "✓"
	FailMark = "✗"
)

// VersionFunc returns a version string or an error if the component is unavailable.
type VersionFunc func() (string, error)

// Config holds injectable dependencies for each doctor check.
type Config struct {
	// EngineName labels the synthesis engine in output (e.g. "melo").
	EngineName string
	// EngineVersion returns the engine's version output.
	EngineVersion VersionFunc
	SkipEngine    bool
	// PythonVersion returns the Python version string (e.g. "3.11.4").
	PythonVersion VersionFunc
	SkipPython    bool
	// HubReachable probes the hub endpoint. Nil skips the check.
	HubReachable func() error
	// HasToken reports whether a hub token is configured. Informational only.
	HasToken bool
	// WritableDirs must exist or be creatable, and accept a new file.
	WritableDirs []string
	// Files must exist on disk (e.g. previously downloaded checkpoints).
	Files []string
}

// Result collects the outcome of all checks.
type Result struct {
	failures []string
}

// Failed returns true if any check failed.
func (r *Result) Failed() bool { return len(r.failures) > 0 }

// Failures returns the list of failure messages.
func (r *Result) Failures() []string { return append([]string(nil), r.failures...) }

// AddFailure appends an external failure message to the result.
func (r *Result) AddFailure(msg string) { r.failures = append(r.failures, msg) }

func (r *Result) fail(msg string) { r.failures = append(r.failures, msg) }

// Run executes all configured checks and writes human-readable output to w.
// Each check line is prefixed with PassMark or FailMark.
func Run(cfg Config, w io.Writer) Result {
	var res Result

	engine := cfg.EngineName
	if engine == "" {
		engine = "engine"
	}

	// ---- synthesis engine -------------------------------------------------
	if cfg.SkipEngine || cfg.EngineVersion == nil {
		fmt.Fprintf(w, "%s %s binary: skipped\n", PassMark, engine)
	} else {
		ver, err := cfg.EngineVersion()
		if err != nil {
			res.fail(fmt.Sprintf("%s binary: %v", engine, err))
			fmt.Fprintf(w, "%s %s binary: not found (%v)\n", FailMark, engine, err)
		} else {
			fmt.Fprintf(w, "%s %s binary: %s\n", PassMark, engine, ver)
		}
	}

	// ---- Python version ---------------------------------------------------
	if cfg.SkipPython || cfg.PythonVersion == nil {
		fmt.Fprintf(w, "%s python version: skipped\n", PassMark)
	} else {
		pyVer, err := cfg.PythonVersion()
		if err != nil {
			res.fail(fmt.Sprintf("python version: %v", err))
			fmt.Fprintf(w, "%s python version: not found (%v)\n", FailMark, err)
		} else if pyErr := checkPythonVersion(pyVer); pyErr != nil {
			res.fail(fmt.Sprintf("python version: %v", pyErr))
			fmt.Fprintf(w, "%s python version %s: %v\n", FailMark, pyVer, pyErr)
		} else {
			fmt.Fprintf(w, "%s python version: %s\n", PassMark, pyVer)
		}
	}

	// ---- hub --------------------------------------------------------------
	if cfg.HubReachable == nil {
		fmt.Fprintf(w, "%s hub endpoint: skipped\n", PassMark)
	} else if err := cfg.HubReachable(); err != nil {
		res.fail(fmt.Sprintf("hub endpoint: %v", err))
		fmt.Fprintf(w, "%s hub endpoint: unreachable (%v)\n", FailMark, err)
	} else {
		fmt.Fprintf(w, "%s hub endpoint: reachable\n", PassMark)
	}

	if cfg.HasToken {
		fmt.Fprintf(w, "%s hub token: set\n", PassMark)
	} else {
		fmt.Fprintf(w, "%s hub token: not set (private or gated repositories will fail)\n", PassMark)
	}

	// ---- directories ------------------------------------------------------
	for _, dir := range cfg.WritableDirs {
		if err := checkWritable(dir); err != nil {
			res.fail(fmt.Sprintf("directory %q: %v", dir, err))
			fmt.Fprintf(w, "%s directory %s: not writable (%v)\n", FailMark, dir, err)
		} else {
			fmt.Fprintf(w, "%s directory: %s\n", PassMark, dir)
		}
	}

	// ---- files ------------------------------------------------------------
	for _, path := range cfg.Files {
		if _, err := os.Stat(path); err != nil {
			res.fail(fmt.Sprintf("file %q: %v", path, err))
			fmt.Fprintf(w, "%s file %s: not found\n", FailMark, path)
		} else {
			fmt.Fprintf(w, "%s file: %s\n", PassMark, path)
		}
	}

	return res
}

func checkWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(filepath.Clean(name))
}

// checkPythonVersion returns an error if ver is outside [3.9, 3.13).
// ver is expected to be a string like "3.11.4".
func checkPythonVersion(ver string) error {
	major, minor, err := parseMajorMinor(ver)
	if err != nil {
		return fmt.Errorf("cannot parse %q: %w", ver, err)
	}
	if major != 3 {
		return fmt.Errorf("requires Python 3, got %d", major)
	}
	if minor < 9 {
		return fmt.Errorf("requires Python >=3.9, got 3.%d", minor)
	}
	if minor >= 13 {
		return fmt.Errorf("requires Python <3.13, got 3.%d", minor)
	}
	return nil
}

func parseMajorMinor(ver string) (major, minor int, err error) {
	ver = strings.TrimPrefix(strings.TrimSpace(ver), "Python ")
	parts := strings.SplitN(ver, ".", 3)
	if len(parts) < 2 {
		return 0, 0, fmt.Errorf("unexpected version format %q", ver)
	}
	major, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("bad major in %q: %w", ver, err)
	}
	minor, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("bad minor in %q: %w", ver, err)
	}
	return major, minor, nil
}
