package doctor_test

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/go-meloplus/internal/doctor"
)

var errBinaryNotFound = errors.New("executable file not found in $PATH")

func hasFailureContaining(failures []string, substr string) bool {
	for _, f := range failures {
		if strings.Contains(f, substr) {
			return true
		}
	}
	return false
}

func passingConfig() doctor.Config {
	return doctor.Config{
		EngineName:    "melo",
		EngineVersion: func() (string, error) { return "melo 0.1.0", nil },
		PythonVersion: func() (string, error) { return "3.11.4", nil },
		HubReachable:  func() error { return nil },
	}
}

func TestRun_AllChecksPass(t *testing.T) {
	cfg := passingConfig()
	cfg.WritableDirs = []string{t.TempDir()}
	cfg.HasToken = true

	var out strings.Builder
	result := doctor.Run(cfg, &out)

	if result.Failed() {
		t.Errorf("expected all checks to pass; failures: %v", result.Failures())
	}
	for _, want := range []string{"melo binary: melo 0.1.0", "hub endpoint: reachable", "hub token: set"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestRun_EngineMissingFails(t *testing.T) {
	cfg := passingConfig()
	cfg.EngineVersion = func() (string, error) { return "", errBinaryNotFound }

	var out strings.Builder
	result := doctor.Run(cfg, &out)

	if !result.Failed() || !hasFailureContaining(result.Failures(), "melo") {
		t.Errorf("expected failure mentioning melo, got: %v", result.Failures())
	}
}

func TestRun_PythonOutOfRangeFails(t *testing.T) {
	for _, ver := range []string{"3.8.10", "3.13.0"} {
		t.Run(ver, func(t *testing.T) {
			cfg := passingConfig()
			cfg.PythonVersion = func() (string, error) { return ver, nil }

			var out strings.Builder
			result := doctor.Run(cfg, &out)
			if !hasFailureContaining(result.Failures(), "python") {
				t.Errorf("expected python failure for %s, got: %v", ver, result.Failures())
			}
		})
	}
}

func TestRun_HubUnreachableFails(t *testing.T) {
	cfg := passingConfig()
	cfg.HubReachable = func() error { return errors.New("dial tcp: connection refused") }

	var out strings.Builder
	result := doctor.Run(cfg, &out)
	if !hasFailureContaining(result.Failures(), "hub endpoint") {
		t.Errorf("expected hub failure, got: %v", result.Failures())
	}
}

func TestRun_MissingTokenIsInformational(t *testing.T) {
	var out strings.Builder
	result := doctor.Run(passingConfig(), &out)
	if result.Failed() {
		t.Errorf("missing token should not fail: %v", result.Failures())
	}
	if !strings.Contains(out.String(), "hub token: not set") {
		t.Errorf("output should mention missing token:\n%s", out.String())
	}
}

func TestRun_MissingFileFails(t *testing.T) {
	cfg := passingConfig()
	cfg.Files = []string{filepath.Join(t.TempDir(), "G_152000.pth")}

	var out strings.Builder
	result := doctor.Run(cfg, &out)
	if !hasFailureContaining(result.Failures(), "G_152000.pth") {
		t.Errorf("expected missing file failure, got: %v", result.Failures())
	}
}

func TestRun_OutputContainsPassAndFailMarkers(t *testing.T) {
	cfg := passingConfig()
	cfg.EngineVersion = func() (string, error) { return "", errBinaryNotFound }

	var out strings.Builder
	doctor.Run(cfg, &out)

	body := out.String()
	if !strings.Contains(body, doctor.PassMark) || !strings.Contains(body, doctor.FailMark) {
		t.Errorf("output missing markers:\n%s", body)
	}
}

func TestRun_SkipRuntimeChecks(t *testing.T) {
	cfg := doctor.Config{EngineName: "pocket-tts", SkipEngine: true, SkipPython: true}

	var out strings.Builder
	result := doctor.Run(cfg, &out)
	if result.Failed() {
		t.Fatalf("expected no failures when runtime checks are skipped, got: %v", result.Failures())
	}

	body := out.String()
	for _, want := range []string{"pocket-tts binary: skipped", "python version: skipped", "hub endpoint: skipped"} {
		if !strings.Contains(body, want) {
			t.Errorf("output missing %q:\n%s", want, body)
		}
	}
}

func TestResult_AddFailure(t *testing.T) {
	var r doctor.Result
	r.AddFailure("external")
	if !r.Failed() || r.Failures()[0] != "external" {
		t.Errorf("Result = %v", r.Failures())
	}
}
