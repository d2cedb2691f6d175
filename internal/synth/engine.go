package synth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/example/go-meloplus/internal/config"
)

// ErrEngineNotFound is returned when the engine executable cannot be located.
var ErrEngineNotFound = errors.New("synthesis engine executable not found")

// Job is one synthesis call handed to an Engine.
type Job struct {
	Checkpoint Checkpoint
	Language   string
	Speaker    string
	Text       string
	Speed      float64
	OutputPath string
}

// Engine writes synthesized speech for a Job to Job.OutputPath.
type Engine interface {
	Name() string
	// UsesCheckpoint reports whether jobs need a downloaded checkpoint set.
	UsesCheckpoint() bool
	Synthesize(ctx context.Context, job Job) error
}

// EngineOptions configures the subprocess engines.
type EngineOptions struct {
	ExecutablePath string
	Quiet          bool
	// Stderr receives engine diagnostics unless Quiet is set.
	Stderr io.Writer
}

// NewEngine builds the engine named by a config engine value.
func NewEngine(name string, opts EngineOptions) (Engine, error) {
	engine, err := config.NormalizeEngine(name)
	if err != nil {
		return nil, err
	}
	switch engine {
	case config.EnginePocketTTS:
		if opts.ExecutablePath == "" {
			opts.ExecutablePath = "pocket-tts"
		}
		return &pocketEngine{opts: opts}, nil
	default:
		if opts.ExecutablePath == "" {
			opts.ExecutablePath = "melo"
		}
		return &cliEngine{opts: opts}, nil
	}
}

// cliEngine runs a melo-style command line:
//
//	melo TEXT OUTPUT --language L --speaker S --speed X --config_path C --ckpt_path G
type cliEngine struct {
	opts EngineOptions
}

func (e *cliEngine) Name() string         { return config.EngineCLI }
func (e *cliEngine) UsesCheckpoint() bool { return true }

func (e *cliEngine) Synthesize(ctx context.Context, job Job) error {
	return run(ctx, e.opts, cliArgs(job), nil)
}

func cliArgs(job Job) []string {
	args := []string{job.Text, job.OutputPath}
	if job.Language != "" {
		args = append(args, "--language", job.Language)
	}
	if job.Speaker != "" {
		args = append(args, "--speaker", job.Speaker)
	}
	if job.Speed > 0 {
		args = append(args, "--speed", strconv.FormatFloat(job.Speed, 'f', -1, 64))
	}
	if job.Checkpoint.Config != "" {
		args = append(args, "--config_path", job.Checkpoint.Config)
	}
	if job.Checkpoint.Generator != "" {
		args = append(args, "--ckpt_path", job.Checkpoint.Generator)
	}
	return args
}

// pocketEngine runs "pocket-tts generate" with the text on stdin. It has its
// own model and ignores checkpoints and speed.
type pocketEngine struct {
	opts EngineOptions
}

func (e *pocketEngine) Name() string         { return config.EnginePocketTTS }
func (e *pocketEngine) UsesCheckpoint() bool { return false }

func (e *pocketEngine) Synthesize(ctx context.Context, job Job) error {
	return run(ctx, e.opts, pocketArgs(job, e.opts.Quiet), strings.NewReader(job.Text))
}

func pocketArgs(job Job, quiet bool) []string {
	args := []string{"generate", "--text", "-", "--output-path", job.OutputPath}
	if strings.TrimSpace(job.Speaker) != "" {
		args = append(args, "--voice", job.Speaker)
	}
	if quiet {
		args = append(args, "--quiet")
	}
	return args
}

func run(ctx context.Context, opts EngineOptions, args []string, stdin io.Reader) error {
	exe, err := exec.LookPath(opts.ExecutablePath)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrEngineNotFound, opts.ExecutablePath, err)
	}

	cmd := exec.CommandContext(ctx, exe, args...)
	cmd.Stdin = stdin

	var stderr bytes.Buffer
	if opts.Quiet || opts.Stderr == nil {
		cmd.Stderr = &stderr
	} else {
		cmd.Stderr = io.MultiWriter(opts.Stderr, &stderr)
	}

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return fmt.Errorf("engine failed: %w", err)
		}
		return fmt.Errorf("engine failed: %w: %s", err, lastLine(msg))
	}
	return nil
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
