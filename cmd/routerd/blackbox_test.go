//go:build integration

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"testing"
	"time"
)

func buildBinary(t *testing.T) string {
	t.Helper()
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	// this file: <root>/cmd/routerd/blackbox_test.go
	root := filepath.Dir(filepath.Dir(filepath.Dir(thisFile)))
	bin := filepath.Join(t.TempDir(), "routerd")
	cmd := exec.Command("go", "build", "-o", bin, "./cmd/routerd")
	cmd.Dir = root
	cmd.Env = append(os.Environ(), "CGO_ENABLED=0")
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("go build failed: %v\n%s", err, string(out))
	}
	return bin
}

// findFreePort picks an available TCP port on localhost.
func findFreePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

// startShard serves a minimal shard protocol on a unix socket.
func startShard(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "shard")
	if err != nil {
		t.Fatalf("tempdir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	sock := filepath.Join(dir, "s.sock")
	l, err := net.Listen("unix", sock)
	if err != nil {
		t.Fatalf("listen unix: %v", err)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/info", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"supports_chunking":false}`)
	})
	mux.HandleFunc("/warmup", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"max_input_tokens":1024,"max_total_tokens":2048,"max_batch_total_tokens":4096}`)
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {})
	srv := httptest.NewUnstartedServer(mux)
	srv.Listener = l
	srv.Start()
	t.Cleanup(srv.Close)
	return sock
}

func exitCode(err error) int {
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	if err != nil {
		return -1
	}
	return 0
}

func TestBlackbox_PrintSchemaExitsZero(t *testing.T) {
	bin := buildBinary(t)
	cmd := exec.Command(bin, "print-schema")
	cmd.Env = append(os.Environ(), "VALIDATION_WORKERS=0")
	out, err := cmd.Output()
	if code := exitCode(err); code != 0 {
		t.Fatalf("exit code %d", code)
	}
	if !strings.Contains(string(out), `"/info"`) {
		t.Fatalf("unexpected schema: %s", out)
	}
}

func TestBlackbox_ValidationExitsOne(t *testing.T) {
	bin := buildBinary(t)
	cmd := exec.Command(bin, "--tokenizer-name", t.TempDir(), "--max-input-tokens", "2048", "--max-total-tokens", "1024")
	out, err := cmd.CombinedOutput()
	if code := exitCode(err); code != 1 {
		t.Fatalf("exit code %d, output %s", code, out)
	}
	if !strings.Contains(string(out), "Argument validation error") {
		t.Fatalf("missing error message: %s", out)
	}
}

func TestBlackbox_ShardedFlow(t *testing.T) {
	bin := buildBinary(t)
	sock := startShard(t)
	port, metricsPort := findFreePort(t), findFreePort(t)
	base := fmt.Sprintf("http://127.0.0.1:%d", port)

	cmd := exec.Command(bin,
		"--tokenizer-name", t.TempDir(),
		"--hostname", "127.0.0.1",
		"--port", fmt.Sprint(port),
		"--prometheus-port", fmt.Sprint(metricsPort),
		"--master-shard-uds-path", sock,
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { _ = cmd.Process.Kill() })

	deadline := time.Now().Add(10 * time.Second)
	for {
		resp, err := http.Get(base + "/health")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("router did not become healthy in time")
		}
		time.Sleep(50 * time.Millisecond)
	}

	resp, err := http.Get(base + "/info")
	if err != nil {
		t.Fatalf("/info: %v", err)
	}
	var info struct {
		MaxInputTokens      int `json:"max_input_tokens"`
		MaxBatchTotalTokens int `json:"max_batch_total_tokens"`
	}
	err = json.NewDecoder(resp.Body).Decode(&info)
	_ = resp.Body.Close()
	if err != nil || info.MaxInputTokens != 1024 || info.MaxBatchTotalTokens != 4096 {
		t.Fatalf("unexpected /info: %+v %v", info, err)
	}

	resp, err = http.Get(fmt.Sprintf("http://127.0.0.1:%d/metrics", metricsPort))
	if err != nil {
		t.Fatalf("/metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if !strings.Contains(string(body), `routerd_limit{name="max_input_tokens"} 1024`) {
		t.Fatalf("limit gauge missing from metrics")
	}

	_ = cmd.Process.Signal(syscall.SIGTERM)
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	select {
	case err := <-done:
		if code := exitCode(err); code != 0 {
			t.Fatalf("exit code after SIGTERM: %d", code)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("router did not exit after SIGTERM")
	}
}
