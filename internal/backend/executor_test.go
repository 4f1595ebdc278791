package backend

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"routerd/internal/config"
	"routerd/internal/events"
	"routerd/internal/tokenizer"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not supported on windows")
	}
	p := filepath.Join(t.TempDir(), "executor_worker")
	if err := os.WriteFile(p, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return p
}

func TestExecutorPreflight(t *testing.T) {
	dir := t.TempDir()
	if err := NewExecutor(ExecutorConfig{Worker: filepath.Join(dir, "missing")}).Preflight(); err == nil || !strings.Contains(err.Error(), "doesn't exist") {
		t.Fatalf("expected missing path error, got %v", err)
	}
	if err := NewExecutor(ExecutorConfig{Worker: dir}).Preflight(); err == nil {
		t.Fatalf("expected error for directory")
	}
	bin := filepath.Join(dir, "worker")
	if err := os.WriteFile(bin, []byte("x"), 0o755); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := NewExecutor(ExecutorConfig{Worker: bin}).Preflight(); err != nil {
		t.Fatalf("preflight: %v", err)
	}
}

func TestExecutorCapabilities(t *testing.T) {
	c := NewExecutor(ExecutorConfig{}).Capabilities()
	if c.DynamicCapacity || !c.RequiresFastTokenizer || c.StaticDefaults == nil || c.StaticDefaults.MaxInputTokens != 1024 || c.StaticDefaults.MaxTotalTokens != 2048 {
		t.Fatalf("unexpected capabilities: %+v", c)
	}
}

func TestExecutorRequiresFastTokenizer(t *testing.T) {
	e := NewExecutor(ExecutorConfig{Worker: writeScript(t, "exit 0\n")})
	if _, _, err := e.Connect(context.Background(), Request{}); !errors.Is(err, ErrFastTokenizerRequired) {
		t.Fatalf("expected ErrFastTokenizerRequired, got %v", err)
	}
}

func TestExecutorEarlyExit(t *testing.T) {
	pub := events.NewMemoryPublisher()
	e := NewExecutor(ExecutorConfig{
		Worker:       writeScript(t, "echo 'cuda init failed' >&2\nexit 1\n"),
		StartupGrace: 5 * time.Second,
		Logger:       zerolog.Nop(),
		Publisher:    pub,
	})
	_, _, err := e.Connect(context.Background(), Request{Tokenizer: &tokenizer.Fast{Path: "tokenizer.json"}})
	if !errors.Is(err, ErrWorkerExited) || !strings.Contains(err.Error(), "cuda init failed") {
		t.Fatalf("expected early exit with stderr tail, got %v", err)
	}
	names := strings.Join(pub.Names(), ",")
	if names != "worker_start,worker_exit" {
		t.Fatalf("unexpected events: %s", names)
	}
}

func TestExecutorStartAndClose(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "args")
	t.Setenv("ROUTERD_TEST_ARGS", argsFile)
	pub := events.NewMemoryPublisher()
	e := NewExecutor(ExecutorConfig{
		Worker:       writeScript(t, "echo \"$@\" > \"$ROUTERD_TEST_ARGS\"\nexec sleep 30\n"),
		StartupGrace: 200 * time.Millisecond,
		Logger:       zerolog.Nop(),
		Publisher:    pub,
	})
	h, c, err := e.Connect(context.Background(), Request{
		Limits:                Limits{MaxInputTokens: config.Some(100)},
		ModelID:               "org/model",
		MaxConcurrentRequests: 16,
		Tokenizer:             &tokenizer.Fast{Path: "/tmp/tokenizer.json"},
	})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if c.MaxInputTokens != 100 || c.MaxTotalTokens != 2048 || c.SupportsChunking {
		t.Fatalf("unexpected capacity: %+v", c)
	}
	if err := h.Health(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}
	b, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatalf("read args: %v", err)
	}
	args := string(b)
	for _, want := range []string{"--model-id org/model", "--tokenizer /tmp/tokenizer.json", "--max-concurrent-requests 16", "--max-input-tokens 100", "--max-total-tokens 2048"} {
		if !strings.Contains(args, want) {
			t.Fatalf("args %q missing %q", args, want)
		}
	}
	if err := h.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := h.Health(context.Background()); !errors.Is(err, ErrWorkerExited) {
		t.Fatalf("expected exited worker after close, got %v", err)
	}
	if names := strings.Join(pub.Names(), ","); names != "worker_start,worker_ready,worker_stop" {
		t.Fatalf("unexpected events: %s", names)
	}
}
