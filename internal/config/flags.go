package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

// BindFlags registers the serving flags on fs. cfg must already hold the
// defaults (see Default); parsed values are written into it.
func BindFlags(fs *pflag.FlagSet, cfg *ServingConfig) {
	fs.IntVar(&cfg.MaxConcurrentRequests, "max-concurrent-requests", cfg.MaxConcurrentRequests, "Maximum number of concurrent requests")
	fs.IntVar(&cfg.MaxBestOf, "max-best-of", cfg.MaxBestOf, "Maximum allowed best_of value")
	fs.IntVar(&cfg.MaxStopSequences, "max-stop-sequences", cfg.MaxStopSequences, "Maximum number of stop sequences per request")
	fs.IntVar(&cfg.MaxTopNTokens, "max-top-n-tokens", cfg.MaxTopNTokens, "Maximum top_n_tokens per request")
	fs.Var(&cfg.MaxInputTokens, "max-input-tokens", "Maximum input tokens per request (default: reported by the backend)")
	fs.Var(&cfg.MaxTotalTokens, "max-total-tokens", "Maximum input plus generated tokens per request (default: reported by the backend)")
	fs.Float64Var(&cfg.WaitingServedRatio, "waiting-served-ratio", cfg.WaitingServedRatio, "Ratio of waiting to running requests before a prefill is forced")
	fs.IntVar(&cfg.MaxBatchPrefillTokens, "max-batch-prefill-tokens", cfg.MaxBatchPrefillTokens, "Maximum tokens in a single prefill batch")
	fs.Var(&cfg.MaxBatchTotalTokens, "max-batch-total-tokens", "Maximum tokens across a running batch (default: reported by the backend)")
	fs.IntVar(&cfg.MaxWaitingTokens, "max-waiting-tokens", cfg.MaxWaitingTokens, "Decode steps a waiting request may be delayed")
	fs.Var(&cfg.MaxBatchSize, "max-batch-size", "Maximum number of requests in a batch")

	fs.StringVar(&cfg.Hostname, "hostname", cfg.Hostname, "Listen address")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "HTTP port")
	fs.IntVar(&cfg.PrometheusPort, "prometheus-port", cfg.PrometheusPort, "Port serving /metrics")
	fs.StringVar(&cfg.MasterShardUDSPath, "master-shard-uds-path", cfg.MasterShardUDSPath, "Unix socket of the master shard (sharded backend)")

	fs.StringVar(&cfg.TokenizerName, "tokenizer-name", cfg.TokenizerName, "Tokenizer identifier: local directory or hub repository id")
	fs.StringVar(&cfg.TokenizerConfigPath, "tokenizer-config-path", cfg.TokenizerConfigPath, "Optional path to a tokenizer_config.json")
	fs.StringVar(&cfg.Revision, "revision", cfg.Revision, "Hub revision (branch, tag or commit) of the tokenizer")
	fs.StringVar(&cfg.ModelID, "model-id", cfg.ModelID, "Model identifier reported by /info (default: tokenizer name)")
	fs.StringVar(&cfg.TokenizerOutputDir, "tokenizer-output-dir", cfg.TokenizerOutputDir, "Directory receiving the converted tokenizer.json")
	fs.StringVar(&cfg.TokenizerConverter, "tokenizer-converter", cfg.TokenizerConverter, "Python interpreter used to convert tokenizers")

	fs.IntVar(&cfg.ValidationWorkers, "validation-workers", cfg.ValidationWorkers, "Number of request validation workers")
	fs.BoolVar(&cfg.JSONOutput, "json-output", cfg.JSONOutput, "Emit JSON logs")
	fs.StringVar(&cfg.OTLPEndpoint, "otlp-endpoint", cfg.OTLPEndpoint, "OTLP gRPC endpoint for traces")
	fs.StringVar(&cfg.OTLPServiceName, "otlp-service-name", cfg.OTLPServiceName, "Service name attached to traces")
	fs.StringSliceVar(&cfg.CORSAllowOrigin, "cors-allow-origin", cfg.CORSAllowOrigin, "Allowed CORS origins (comma separated)")
	fs.IntVar(&cfg.MaxClientBatchSize, "max-client-batch-size", cfg.MaxClientBatchSize, "Maximum inputs in a single client batch")
	fs.StringVar(&cfg.APIKey, "api-key", cfg.APIKey, "Bearer token required on API routes")
	fs.StringVar(&cfg.APIKey, "auth-token", cfg.APIKey, "Alias of --api-key")
	fs.StringVar(&cfg.Backend, "backend", cfg.Backend, "Backend variant: sharded|executor")
	fs.StringVar(&cfg.ExecutorWorker, "executor-worker", cfg.ExecutorWorker, "Path to the executor worker binary (executor backend)")
	fs.Var(&cfg.UsageStats, "usage-stats", "Usage statistics reporting: on|off|no-stack")
	fs.IntVar(&cfg.PayloadLimit, "payload-limit", cfg.PayloadLimit, "Maximum request body size in bytes")
	fs.BoolVar(&cfg.DisableGrammarSupport, "disable-grammar-support", cfg.DisableGrammarSupport, "Disable guided generation")
}

// EnvName maps a flag name to its environment variable (max-input-tokens -> MAX_INPUT_TOKENS).
func EnvName(flag string) string {
	return strings.ToUpper(strings.ReplaceAll(flag, "-", "_"))
}

// Overlay fills flags the operator did not pass on the command line, first
// from the environment and then from config file values. The resulting
// precedence is flag > environment > file > default. Flags named in skip are
// left alone.
func Overlay(fs *pflag.FlagSet, lookup func(string) (string, bool), vals Values, skip ...string) error {
	skipped := map[string]bool{"help": true}
	for _, s := range skip {
		skipped[s] = true
	}

	var firstErr error
	fs.VisitAll(func(f *pflag.Flag) {
		if firstErr != nil || changed(fs, f) || skipped[f.Name] || lookup == nil {
			return
		}
		name := EnvName(f.Name)
		v, ok := lookup(name)
		if !ok || v == "" {
			return
		}
		if err := setFlag(f, v); err != nil {
			firstErr = fmt.Errorf("invalid value %q for %s: %w", v, name, err)
		}
	})
	if firstErr != nil {
		return firstErr
	}

	keys := make([]string, 0, len(vals))
	for k := range vals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		name := strings.ReplaceAll(k, "_", "-")
		f := fs.Lookup(name)
		if f == nil || skipped[name] {
			return fmt.Errorf("unknown config key %q", k)
		}
		if changed(fs, f) {
			continue
		}
		s, err := valueString(vals[k])
		if err != nil {
			return fmt.Errorf("config key %q: %w", k, err)
		}
		if err := setFlag(f, s); err != nil {
			return fmt.Errorf("invalid value %q for config key %q: %w", s, k, err)
		}
	}
	return nil
}

// flagAliases pairs flags bound to the same field.
var flagAliases = map[string]string{"api-key": "auth-token", "auth-token": "api-key"}

func changed(fs *pflag.FlagSet, f *pflag.Flag) bool {
	if f.Changed {
		return true
	}
	if alias, ok := flagAliases[f.Name]; ok {
		if af := fs.Lookup(alias); af != nil {
			return af.Changed
		}
	}
	return false
}

func setFlag(f *pflag.Flag, v string) error {
	if sv, ok := f.Value.(pflag.SliceValue); ok {
		if err := sv.Replace(splitCSV(v)); err != nil {
			return err
		}
	} else if err := f.Value.Set(v); err != nil {
		return err
	}
	f.Changed = true
	return nil
}

func valueString(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", fmt.Errorf("null value")
	case string:
		return x, nil
	case bool:
		return strconv.FormatBool(x), nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case []any:
		parts := make([]string, 0, len(x))
		for _, e := range x {
			s, err := valueString(e)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, ","), nil
	default:
		return "", fmt.Errorf("unsupported value type %T", v)
	}
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
