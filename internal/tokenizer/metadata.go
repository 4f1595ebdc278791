package tokenizer

import (
	"context"

	"github.com/rs/zerolog"

	"routerd/internal/common/fsutil"
	"routerd/internal/hub"
)

// Metadata lists the optional files fetched next to the tokenizer. Empty
// paths and a nil ModelInfo mean the item was absent.
type Metadata struct {
	Config             string
	TokenizerConfig    string
	PreprocessorConfig string
	ProcessorConfig    string
	ModelInfo          *hub.ModelInfo
}

// FetchMetadata fetches every optional file from loc. Failures are recorded
// as absent and never abort resolution. A non-empty tokenizerConfigPath
// replaces the fetched tokenizer_config.json.
func FetchMetadata(ctx context.Context, loc hub.Location, tokenizerConfigPath string, log zerolog.Logger) Metadata {
	fetch := func(file string) string {
		p, err := loc.Fetch(ctx, file)
		if err != nil {
			log.Debug().Err(err).Str("file", file).Msg("optional file unavailable")
			return ""
		}
		return p
	}
	m := Metadata{
		Config:             fetch("config.json"),
		TokenizerConfig:    fetch("tokenizer_config.json"),
		PreprocessorConfig: fetch("preprocessor_config.json"),
		ProcessorConfig:    fetch("processor_config.json"),
	}
	if tokenizerConfigPath != "" {
		if fsutil.IsFile(tokenizerConfigPath) {
			m.TokenizerConfig = tokenizerConfigPath
		} else {
			log.Warn().Str("path", tokenizerConfigPath).Msg("tokenizer config path does not exist, ignoring")
		}
	}
	if loc.Kind() == hub.KindRemoteRepo {
		info, err := loc.ModelInfo(ctx)
		if err != nil || info == nil {
			log.Warn().Err(err).Msg("Could not retrieve model info from the Hugging Face hub.")
		}
		m.ModelInfo = info
	}
	return m
}
