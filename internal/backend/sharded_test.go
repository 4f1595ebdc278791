package backend

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"routerd/internal/config"
)

type fakeShard struct {
	mu         sync.Mutex
	lastWarmup map[string]any
	warmupCode int
	reply      *warmupResponse
}

// startShard serves the shard protocol on a unix socket and returns its path.
func startShard(t *testing.T, fs *fakeShard) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("unix sockets required")
	}
	dir, err := os.MkdirTemp("", "shard")
	if err != nil {
		t.Fatalf("tempdir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	sock := filepath.Join(dir, "s.sock")
	l, err := net.Listen("unix", sock)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/info", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(shardInfo{SupportsChunking: true, Dtype: "bfloat16"})
	})
	mux.HandleFunc("/warmup", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		fs.mu.Lock()
		fs.lastWarmup = req
		code, reply := fs.warmupCode, fs.reply
		fs.mu.Unlock()
		if code != 0 {
			http.Error(w, "out of memory", code)
			return
		}
		if reply == nil {
			reply = &warmupResponse{MaxInputTokens: 4095, MaxTotalTokens: 4096, MaxBatchTotalTokens: 16000}
		}
		_ = json.NewEncoder(w).Encode(reply)
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	srv := httptest.NewUnstartedServer(mux)
	srv.Listener = l
	srv.Start()
	t.Cleanup(srv.Close)
	return sock
}

func TestShardedConnectReportsCapacity(t *testing.T) {
	fs := &fakeShard{}
	s := NewSharded(startShard(t, fs), zerolog.Nop())
	if !s.Capabilities().DynamicCapacity || s.Capabilities().RequiresFastTokenizer {
		t.Fatalf("unexpected capabilities: %+v", s.Capabilities())
	}
	if err := s.Preflight(); err != nil {
		t.Fatalf("preflight: %v", err)
	}

	h, c, err := s.Connect(context.Background(), Request{Limits: Limits{MaxBatchPrefillTokens: 4096, MaxBatchSize: config.Some(8)}})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer h.Close()
	want := Capacity{MaxInputTokens: 4095, MaxTotalTokens: 4096, MaxBatchTotalTokens: 16000, SupportsChunking: true}
	if c != want {
		t.Fatalf("capacity = %+v, want %+v", c, want)
	}
	fs.mu.Lock()
	got := fs.lastWarmup
	fs.mu.Unlock()
	if got["max_input_tokens"] != nil || got["max_batch_prefill_tokens"] != float64(4096) || got["max_batch_size"] != float64(8) {
		t.Fatalf("unexpected warmup request: %v", got)
	}
	if got["max_waiting_tokens"] != float64(0) || got["waiting_served_ratio"] != float64(0) {
		t.Fatalf("queue policy must always be sent: %v", got)
	}
	if err := h.Health(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}
}

func TestShardedConnectSendsQueuePolicy(t *testing.T) {
	fs := &fakeShard{}
	s := NewSharded(startShard(t, fs), zerolog.Nop())
	cfg := config.Default()
	cfg.MaxWaitingTokens = 77
	cfg.WaitingServedRatio = 3.5
	h, _, err := s.Connect(context.Background(), Request{Limits: LimitsFrom(cfg)})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer h.Close()
	fs.mu.Lock()
	got := fs.lastWarmup
	fs.mu.Unlock()
	if got["max_waiting_tokens"] != float64(77) || got["waiting_served_ratio"] != 3.5 {
		t.Fatalf("queue policy not forwarded: %v", got)
	}
	if got["max_batch_prefill_tokens"] != float64(cfg.MaxBatchPrefillTokens) {
		t.Fatalf("unexpected prefill tokens: %v", got)
	}
}

func TestShardedConnectErrors(t *testing.T) {
	fs := &fakeShard{warmupCode: http.StatusInternalServerError}
	s := NewSharded(startShard(t, fs), zerolog.Nop())
	if _, _, err := s.Connect(context.Background(), Request{}); err == nil {
		t.Fatalf("expected warmup error")
	}

	fs.mu.Lock()
	fs.warmupCode = 0
	fs.reply = &warmupResponse{}
	fs.mu.Unlock()
	if _, _, err := s.Connect(context.Background(), Request{}); err == nil {
		t.Fatalf("expected invalid capacity error")
	}

	missing := NewSharded(filepath.Join(t.TempDir(), "nope.sock"), zerolog.Nop())
	if _, _, err := missing.Connect(context.Background(), Request{}); err == nil {
		t.Fatalf("expected dial error")
	}
}

func TestNewVariant(t *testing.T) {
	for name, want := range map[string]string{"": "sharded", "sharded": "sharded", "executor": "executor"} {
		v, err := New(name, Settings{Logger: zerolog.Nop()})
		if err != nil || v.Name() != want {
			t.Fatalf("%q: got %v, %v", name, v, err)
		}
	}
	if _, err := New("tpu", Settings{}); err == nil {
		t.Fatalf("expected unknown backend error")
	}
}
