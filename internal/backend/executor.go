package backend

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"routerd/internal/common/tailbuffer"
	"routerd/internal/events"
)

// stderrTail bounds the worker output quoted in startup errors.
const stderrTail = 4096

// DefaultExecutorWorker is used when no worker path is configured.
const DefaultExecutorWorker = "/usr/local/tgi/bin/executor_worker"

// ExecutorConfig configures the executor variant.
type ExecutorConfig struct {
	Worker string
	// StartupGrace is how long the worker must stay alive before Connect returns.
	StartupGrace time.Duration
	// StopTimeout is how long Close waits after SIGTERM before killing.
	StopTimeout time.Duration
	Logger      zerolog.Logger
	Publisher   events.Publisher
}

// Executor starts an executor worker process with static limits.
type Executor struct {
	cfg ExecutorConfig
	pub events.Publisher
}

// NewExecutor applies defaults to cfg.
func NewExecutor(cfg ExecutorConfig) *Executor {
	if cfg.Worker == "" {
		cfg.Worker = DefaultExecutorWorker
	}
	if cfg.StartupGrace <= 0 {
		cfg.StartupGrace = 2 * time.Second
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 2 * time.Second
	}
	return &Executor{cfg: cfg, pub: events.OrNoop(cfg.Publisher)}
}

func (*Executor) Name() string { return "executor" }

func (*Executor) Capabilities() Capabilities {
	return Capabilities{
		RequiresFastTokenizer: true,
		StaticDefaults:        &StaticDefaults{MaxInputTokens: 1024, MaxTotalTokens: 2048},
	}
}

// Preflight checks that the worker binary exists and is not a directory.
func (e *Executor) Preflight() error {
	fi, err := os.Stat(e.cfg.Worker)
	if err != nil || fi.IsDir() {
		return fmt.Errorf("`executor_worker` specified path doesn't exist: %s", e.cfg.Worker)
	}
	return nil
}

// Connect starts the worker and waits for the startup grace period to pass
// without an exit.
func (e *Executor) Connect(ctx context.Context, req Request) (Handle, Capacity, error) {
	if req.Tokenizer == nil {
		return nil, Capacity{}, ErrFastTokenizerRequired
	}
	capacity := Capacity{
		MaxInputTokens:      req.Limits.MaxInputTokens.Or(1024),
		MaxTotalTokens:      req.Limits.MaxTotalTokens.Or(2048),
		MaxBatchTotalTokens: req.Limits.MaxBatchTotalTokens.Or(0),
	}
	args := []string{
		"--model-id", req.ModelID,
		"--tokenizer", req.Tokenizer.Path,
		"--max-concurrent-requests", strconv.Itoa(req.MaxConcurrentRequests),
		"--max-input-tokens", strconv.Itoa(capacity.MaxInputTokens),
		"--max-total-tokens", strconv.Itoa(capacity.MaxTotalTokens),
	}
	cmd := exec.Command(e.cfg.Worker, args...)
	stderr := tailbuffer.NewTailBuffer(stderrTail)
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return nil, Capacity{}, fmt.Errorf("start executor worker: %w", err)
	}
	pid := cmd.Process.Pid
	e.cfg.Logger.Info().Str("backend", "executor").Str("event", "start").Int("pid", pid).Str("worker", e.cfg.Worker).Msg("executor worker started")
	e.pub.Publish(events.Event{Name: "worker_start", Stage: "connect", Fields: map[string]any{"pid": pid}})

	h := &executorHandle{e: e, cmd: cmd, done: make(chan struct{})}
	go func() {
		h.waitErr = cmd.Wait()
		close(h.done)
	}()

	// Early-exit watcher: surface an exit during the grace period.
	select {
	case <-h.done:
		e.pub.Publish(events.Event{Name: "worker_exit", Stage: "connect", Fields: map[string]any{"pid": pid}})
		return nil, Capacity{}, fmt.Errorf("%w early: %v; stderr tail: %s", ErrWorkerExited, h.waitErr, stderr.String())
	case <-ctx.Done():
		_ = h.Close()
		return nil, Capacity{}, ctx.Err()
	case <-time.After(e.cfg.StartupGrace):
	}
	e.pub.Publish(events.Event{Name: "worker_ready", Stage: "connect", Fields: map[string]any{"pid": pid}})
	return h, capacity, nil
}

type executorHandle struct {
	e       *Executor
	cmd     *exec.Cmd
	done    chan struct{}
	waitErr error
	once    sync.Once
}

func (h *executorHandle) Name() string { return "executor" }

func (h *executorHandle) Health(context.Context) error {
	select {
	case <-h.done:
		return fmt.Errorf("%w: %v", ErrWorkerExited, h.waitErr)
	default:
		return nil
	}
}

// Close terminates the worker: SIGTERM first, then kill after StopTimeout.
func (h *executorHandle) Close() error {
	h.once.Do(func() {
		select {
		case <-h.done:
			return
		default:
		}
		_ = h.cmd.Process.Signal(syscall.SIGTERM)
		select {
		case <-h.done:
		case <-time.After(h.e.cfg.StopTimeout):
			_ = h.cmd.Process.Kill()
			<-h.done
		}
		h.e.cfg.Logger.Info().Str("backend", "executor").Str("event", "stop").Int("pid", h.cmd.Process.Pid).Msg("executor worker stopped")
		h.e.pub.Publish(events.Event{Name: "worker_stop", Stage: "shutdown", Fields: map[string]any{"pid": h.cmd.Process.Pid}})
	})
	return nil
}
