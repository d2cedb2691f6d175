package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/example/go-meloplus/internal/server"
	"github.com/example/go-meloplus/internal/synth"
	"github.com/example/go-meloplus/internal/testutil"
)

// stubSynthesizer implements server.Synthesizer for tests.
type stubSynthesizer struct {
	wav  []byte
	err  error
	mu   sync.Mutex
	reqs []synth.Request
}

func (s *stubSynthesizer) Synthesize(_ context.Context, req synth.Request) ([]byte, error) {
	s.mu.Lock()
	s.reqs = append(s.reqs, req)
	s.mu.Unlock()
	return s.wav, s.err
}

type stubModels []string

func (m stubModels) Keys() []string { return m }

func postTTS(h http.Handler, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/tts", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body["error"]
}

// ---------------------------------------------------------------------------
// ParseLogLevel
// ---------------------------------------------------------------------------

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"info", slog.LevelInfo, false},
		{"DEBUG", slog.LevelDebug, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := server.ParseLogLevel(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, %v; want %v (err %v)", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}

// ---------------------------------------------------------------------------
// GET /health, GET /models
// ---------------------------------------------------------------------------

func TestHealth_Returns200WithStatusOK(t *testing.T) {
	h := server.NewHandler(&stubSynthesizer{}, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" || body["version"] == "" {
		t.Errorf("body = %v", body)
	}
}

func TestModels_ListsLoadedKeys(t *testing.T) {
	h := server.NewHandler(&stubSynthesizer{}, stubModels{"Vyvo/MeloTTS-Ljspeech_152000"})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/models", nil))

	var body map[string][]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body["loaded"]) != 1 || body["loaded"][0] != "Vyvo/MeloTTS-Ljspeech_152000" {
		t.Errorf("body = %v", body)
	}

	rec = httptest.NewRecorder()
	server.NewHandler(&stubSynthesizer{}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/models", nil))
	if !strings.Contains(rec.Body.String(), `"loaded":[]`) {
		t.Errorf("nil lister body = %s; want empty list", rec.Body.String())
	}
}

// ---------------------------------------------------------------------------
// POST /tts
// ---------------------------------------------------------------------------

func TestTTS_ReturnsWAVAndForwardsFields(t *testing.T) {
	s := &stubSynthesizer{wav: []byte("RIFF....WAVE")}
	h := server.NewHandler(s, nil)

	rec := postTTS(h, `{"text":"hello","model":"org/m","version":"7","language":"EN","speaker":"EN-US","speed":1.2}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "audio/wav" {
		t.Errorf("Content-Type = %q", ct)
	}
	if rec.Body.String() != "RIFF....WAVE" {
		t.Errorf("body = %q", rec.Body.String())
	}
	want := synth.Request{Text: "hello", Model: "org/m", Version: "7", Language: "EN", Speaker: "EN-US", Speed: 1.2}
	if len(s.reqs) != 1 || s.reqs[0] != want {
		t.Errorf("requests = %+v; want %+v", s.reqs, want)
	}
}

func TestTTS_Validation(t *testing.T) {
	h := server.NewHandler(&stubSynthesizer{}, nil, server.WithMaxTextBytes(10))

	tests := []struct {
		name string
		body string
		code int
	}{
		{"invalid json", `{"text":`, http.StatusBadRequest},
		{"missing text", `{"model":"x"}`, http.StatusBadRequest},
		{"blank text", `{"text":"   "}`, http.StatusBadRequest},
		{"oversized", `{"text":"` + strings.Repeat("x", 11) + `"}`, http.StatusRequestEntityTooLarge},
		{"negative speed", `{"text":"hi","speed":-1}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postTTS(h, tt.body)
			if rec.Code != tt.code {
				t.Fatalf("want %d, got %d", tt.code, rec.Code)
			}
			if decodeError(t, rec) == "" {
				t.Error("want non-empty error field")
			}
		})
	}
}

func TestTTS_TextAtExactLimitIsAccepted(t *testing.T) {
	h := server.NewHandler(&stubSynthesizer{wav: []byte("RIFF")}, nil, server.WithMaxTextBytes(5))
	if rec := postTTS(h, `{"text":"12345"}`); rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
}

func TestTTS_MethodNotAllowed(t *testing.T) {
	h := server.NewHandler(&stubSynthesizer{}, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tts", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("want 405, got %d", rec.Code)
	}
}

func TestTTS_SynthesisErrorSurfacesMessage(t *testing.T) {
	h := server.NewHandler(&stubSynthesizer{err: errors.New("model files could not be downloaded")}, nil)

	rec := postTTS(h, `{"text":"hi"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("want 500, got %d", rec.Code)
	}
	if msg := decodeError(t, rec); msg != "Error: model files could not be downloaded" {
		t.Errorf("error = %q", msg)
	}
}

func TestTTS_TimeoutReturns504(t *testing.T) {
	h := server.NewHandler(&stubSynthesizer{err: context.DeadlineExceeded}, nil)
	if rec := postTTS(h, `{"text":"hi"}`); rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("want 504, got %d", rec.Code)
	}
}

type blockingSynth struct {
	active, peak atomic.Int32
	release      chan struct{}
}

func (b *blockingSynth) Synthesize(ctx context.Context, _ synth.Request) ([]byte, error) {
	n := b.active.Add(1)
	for {
		p := b.peak.Load()
		if n <= p || b.peak.CompareAndSwap(p, n) {
			break
		}
	}
	defer b.active.Add(-1)
	select {
	case <-b.release:
		return []byte("RIFF"), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestTTS_WorkerLimit(t *testing.T) {
	b := &blockingSynth{release: make(chan struct{})}
	h := server.NewHandler(b, nil, server.WithWorkers(2))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			postTTS(h, `{"text":"hi"}`)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(b.release)
	wg.Wait()

	if p := b.peak.Load(); p > 2 {
		t.Errorf("peak concurrency = %d; want <= 2", p)
	}
}

// ---------------------------------------------------------------------------
// ServiceSynthesizer
// ---------------------------------------------------------------------------

type wavEngine struct{ data []byte }

func (e wavEngine) Name() string         { return "fake" }
func (e wavEngine) UsesCheckpoint() bool { return false }
func (e wavEngine) Synthesize(_ context.Context, job synth.Job) error {
	return os.WriteFile(job.OutputPath, e.data, 0o644)
}

func TestServiceSynthesizer_ReturnsBytesAndRemovesFile(t *testing.T) {
	wav := testutil.ToneWAV(t, 24000, 240)
	outDir := t.TempDir()
	svc := synth.NewService(nil, wavEngine{data: wav}, synth.ServiceOptions{
		OutDir: outDir,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	got, err := server.ServiceSynthesizer{Service: svc}.Synthesize(context.Background(), synth.Request{Text: "hi"})
	if err != nil {
		t.Fatalf("Synthesize error = %v", err)
	}
	testutil.AssertValidWAV(t, got, 24000)

	left, _ := filepath.Glob(filepath.Join(outDir, "*.wav"))
	if len(left) != 0 {
		t.Errorf("output files left behind: %v", left)
	}
}
