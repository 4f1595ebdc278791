package tokenizer

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"routerd/internal/common/tailbuffer"
	"routerd/internal/config"
)

//go:embed convert.py
var convertScript string

// Converter writes <outputDir>/tokenizer.json for name@revision.
type Converter interface {
	Convert(ctx context.Context, name, revision, outputDir string) error
}

// PythonConverter runs AutoTokenizer.from_pretrained(...).save_pretrained(...)
// in a Python subprocess.
type PythonConverter struct {
	Interpreter string
	Env         config.Environment
	Timeout     time.Duration
	Logger      zerolog.Logger
}

// hubVars are stripped from the inherited environment and re-set from Env.
var hubVars = []string{"HF_TOKEN", "HUGGING_FACE_HUB_TOKEN", "HUGGINGFACE_HUB_CACHE", "HF_HUB_OFFLINE", "HF_ENDPOINT", "HF_HUB_USER_AGENT_ORIGIN"}

func (c PythonConverter) Convert(ctx context.Context, name, revision, outputDir string) error {
	bin := c.Interpreter
	if bin == "" {
		bin = "python3"
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		return fmt.Errorf("converter %q not found: %w", bin, err)
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{"-c", convertScript, "--name", name, "--output", outputDir}
	if revision != "" {
		args = append(args, "--revision", revision)
	}
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Env = c.environ()
	stderr := tailbuffer.NewTailBuffer(4096)
	cmd.Stderr = stderr

	start := time.Now()
	c.Logger.Debug().Str("name", name).Str("revision", revision).Str("interpreter", path).Msg("converter start")
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("converter %s: %w", name, ctx.Err())
		}
		return fmt.Errorf("converter %s exited: %v; stderr tail: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	c.Logger.Debug().Str("name", name).Dur("dur", time.Since(start)).Msg("converter done")
	return nil
}

func (c PythonConverter) environ() []string {
	var out []string
	for _, kv := range os.Environ() {
		k, _, _ := strings.Cut(kv, "=")
		if !slices.Contains(hubVars, k) {
			out = append(out, kv)
		}
	}
	set := func(k, v string) {
		if v != "" {
			out = append(out, k+"="+v)
		}
	}
	set("HF_TOKEN", c.Env.Token())
	set("HUGGINGFACE_HUB_CACHE", c.Env.HubCache)
	set("HF_HUB_OFFLINE", c.Env.Offline)
	set("HF_ENDPOINT", c.Env.Endpoint)
	set("HF_HUB_USER_AGENT_ORIGIN", c.Env.UserAgentOrigin)
	return out
}
