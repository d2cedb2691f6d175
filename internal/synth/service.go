package synth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/example/go-meloplus/internal/audio"
	"github.com/example/go-meloplus/internal/text"
)

// Request describes one synthesis. Empty fields take the service defaults.
type Request struct {
	Text     string
	Model    string
	Version  string
	Language string
	Speaker  string
	Speed    float64
}

// Output is the result of a successful synthesis.
type Output struct {
	Path       string
	Checkpoint Checkpoint
	// Duration is zero when the engine output is not a WAV file.
	Duration time.Duration
	Elapsed  time.Duration
}

// ServiceOptions holds the defaults applied to requests.
type ServiceOptions struct {
	OutDir   string
	Model    string
	Version  string
	Language string
	Speaker  string
	Speed    float64
	Logger   *slog.Logger
}

// Service resolves checkpoints through a ModelCache and runs the engine,
// writing each result to a new uniquely named WAV under OutDir.
type Service struct {
	cache  *ModelCache
	engine Engine
	opts   ServiceOptions
	log    *slog.Logger
}

func NewService(cache *ModelCache, engine Engine, opts ServiceOptions) *Service {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if opts.OutDir == "" {
		opts.OutDir = "."
	}
	return &Service{cache: cache, engine: engine, opts: opts, log: log}
}

func (s *Service) EngineName() string { return s.engine.Name() }

// Synthesize runs one request and returns the written file.
func (s *Service) Synthesize(ctx context.Context, req Request) (Output, error) {
	req = s.withDefaults(req)
	input, err := text.Normalize(req.Text)
	if err != nil {
		return Output{}, err
	}
	req.Text = input

	start := time.Now()

	var ckpt Checkpoint
	if s.engine.UsesCheckpoint() {
		if s.cache == nil {
			return Output{}, errors.New("engine needs a checkpoint but no model cache is configured")
		}
		ckpt, err = s.cache.Get(ctx, req.Model, req.Version)
		if err != nil {
			return Output{}, err
		}
	}

	if err := os.MkdirAll(s.opts.OutDir, 0o755); err != nil {
		return Output{}, fmt.Errorf("create output dir: %w", err)
	}
	out := filepath.Join(s.opts.OutDir, uuid.NewString()+audio.ExtWAV)

	err = s.engine.Synthesize(ctx, Job{
		Checkpoint: ckpt,
		Language:   req.Language,
		Speaker:    req.Speaker,
		Text:       req.Text,
		Speed:      req.Speed,
		OutputPath: out,
	})
	if err != nil {
		_ = os.Remove(out)
		return Output{}, err
	}

	data, err := os.ReadFile(out)
	if err != nil {
		return Output{}, fmt.Errorf("engine produced no output: %w", err)
	}
	if len(data) == 0 {
		_ = os.Remove(out)
		return Output{}, errors.New("engine produced an empty file")
	}

	res := Output{Path: out, Checkpoint: ckpt, Elapsed: time.Since(start)}
	if info, err := audio.Probe(data); err == nil {
		res.Duration = info.Duration
	}

	s.log.InfoContext(ctx, "synthesis complete",
		"engine", s.engine.Name(),
		"model", CacheKey(req.Model, req.Version),
		"text_len", len(req.Text),
		"path", out,
		"audio_duration", res.Duration.String(),
		"elapsed_ms", res.Elapsed.Milliseconds(),
	)
	return res, nil
}

func (s *Service) withDefaults(req Request) Request {
	if req.Model == "" {
		req.Model = s.opts.Model
	}
	if req.Version == "" {
		req.Version = s.opts.Version
	}
	if req.Language == "" {
		req.Language = s.opts.Language
	}
	if req.Speaker == "" {
		req.Speaker = s.opts.Speaker
	}
	if req.Speed <= 0 {
		req.Speed = s.opts.Speed
	}
	return req
}
