package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"routerd/internal/config"
)

// shardBaseURL is the placeholder host used for requests over the unix socket.
const shardBaseURL = "http://shard"

// Sharded talks to an already running sharded engine over a unix socket.
type Sharded struct {
	socket string
	client *http.Client
	log    zerolog.Logger
}

// NewSharded returns a sharded variant dialing socket.
func NewSharded(socket string, log zerolog.Logger) *Sharded {
	tr := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socket)
		},
		MaxIdleConns:    4,
		IdleConnTimeout: 90 * time.Second,
	}
	// Timeout stays 0: calls carry context deadlines.
	return &Sharded{socket: socket, client: &http.Client{Transport: tr, Timeout: 0}, log: log}
}

func (*Sharded) Name() string { return "sharded" }

func (*Sharded) Capabilities() Capabilities {
	return Capabilities{DynamicCapacity: true}
}

// Preflight has nothing to check locally: the socket may appear while the
// engine is still starting.
func (*Sharded) Preflight() error { return nil }

type shardInfo struct {
	SupportsChunking bool   `json:"supports_chunking"`
	Dtype            string `json:"dtype,omitempty"`
	DeviceType       string `json:"device_type,omitempty"`
	Speculate        int    `json:"speculate,omitempty"`
}

type warmupRequest struct {
	MaxInputTokens        *int `json:"max_input_tokens"`
	MaxTotalTokens        *int `json:"max_total_tokens"`
	MaxBatchPrefillTokens int  `json:"max_batch_prefill_tokens"`
	MaxBatchTotalTokens   *int `json:"max_batch_total_tokens"`
	MaxBatchSize          *int `json:"max_batch_size"`
	// Queue policy of the shard scheduler.
	MaxWaitingTokens   int     `json:"max_waiting_tokens"`
	WaitingServedRatio float64 `json:"waiting_served_ratio"`
}

type warmupResponse struct {
	MaxInputTokens      int `json:"max_input_tokens"`
	MaxTotalTokens      int `json:"max_total_tokens"`
	MaxBatchTotalTokens int `json:"max_batch_total_tokens"`
}

func optionalPtr(o config.OptionalInt) *int {
	if v, ok := o.Get(); ok {
		return &v
	}
	return nil
}

// Connect reads the shard info, warms the engine up with the requested
// limits and returns the capacity it settled on.
func (s *Sharded) Connect(ctx context.Context, req Request) (Handle, Capacity, error) {
	var info shardInfo
	if err := s.call(ctx, http.MethodGet, "/info", nil, &info); err != nil {
		return nil, Capacity{}, fmt.Errorf("shard info via %s: %w", s.socket, err)
	}
	s.log.Info().Bool("supports_chunking", info.SupportsChunking).Str("dtype", info.Dtype).Str("device", info.DeviceType).Msg("connected to shard")

	w := warmupRequest{
		MaxInputTokens:        optionalPtr(req.Limits.MaxInputTokens),
		MaxTotalTokens:        optionalPtr(req.Limits.MaxTotalTokens),
		MaxBatchPrefillTokens: req.Limits.MaxBatchPrefillTokens,
		MaxBatchTotalTokens:   optionalPtr(req.Limits.MaxBatchTotalTokens),
		MaxBatchSize:          optionalPtr(req.Limits.MaxBatchSize),
		MaxWaitingTokens:      req.Limits.MaxWaitingTokens,
		WaitingServedRatio:    req.Limits.WaitingServedRatio,
	}
	var out warmupResponse
	if err := s.call(ctx, http.MethodPost, "/warmup", w, &out); err != nil {
		return nil, Capacity{}, fmt.Errorf("shard warmup: %w", err)
	}
	if out.MaxInputTokens <= 0 || out.MaxTotalTokens <= 0 || out.MaxBatchTotalTokens <= 0 {
		return nil, Capacity{}, fmt.Errorf("shard reported invalid capacity: %+v", out)
	}
	capacity := Capacity{
		MaxInputTokens:      out.MaxInputTokens,
		MaxTotalTokens:      out.MaxTotalTokens,
		MaxBatchTotalTokens: out.MaxBatchTotalTokens,
		SupportsChunking:    info.SupportsChunking,
	}
	return &shardedHandle{s: s}, capacity, nil
}

func (s *Sharded) call(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, shardBaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("shard http error: %s: %s", resp.Status, string(b))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

type shardedHandle struct {
	s *Sharded
}

func (h *shardedHandle) Name() string { return "sharded" }

func (h *shardedHandle) Health(ctx context.Context) error {
	return h.s.call(ctx, http.MethodGet, "/health", nil, nil)
}

func (h *shardedHandle) Close() error {
	h.s.client.CloseIdleConnections()
	return nil
}
