package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/example/go-meloplus/internal/config"
	"github.com/example/go-meloplus/internal/synth"
)

type okSynth struct{}

func (okSynth) Synthesize(context.Context, synth.Request) ([]byte, error) { return []byte("RIFF"), nil }

func TestStart_LifecycleHealthAndShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	cfg := config.DefaultConfig()
	cfg.Server.ListenAddr = addr

	s := New(cfg, okSynth{}, nil).WithShutdownTimeout(2 * time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start(ctx) }()

	var probeErr error
	for range 50 {
		if probeErr = ProbeHTTP(addr); probeErr == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if probeErr != nil {
		t.Fatalf("server never became healthy: %v", probeErr)
	}

	resp, err := (&http.Client{Timeout: 2 * time.Second}).Get(fmt.Sprintf("http://%s/models", addr))
	if err != nil {
		t.Fatalf("GET /models: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /models status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Start returned %v after cancel; want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}

func TestStart_NoSynthesizer(t *testing.T) {
	if err := New(config.DefaultConfig(), nil, nil).Start(context.Background()); err == nil {
		t.Error("Start without synthesizer = nil; want error")
	}
}

func TestStart_ListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	cfg := config.DefaultConfig()
	cfg.Server.ListenAddr = ln.Addr().String()

	if err := New(cfg, okSynth{}, nil).Start(context.Background()); err == nil {
		t.Error("Start on a busy port = nil; want listen error")
	}
}

func TestProbeHTTP_Unreachable(t *testing.T) {
	if err := ProbeHTTP("127.0.0.1:1"); err == nil {
		t.Error("ProbeHTTP(unreachable) = nil; want error")
	}
}
