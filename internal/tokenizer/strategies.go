package tokenizer

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"routerd/internal/common/fsutil"
	"routerd/internal/hub"
)

// ssmFallbackTokenizer is used for state-space models whose config carries
// no base model.
const ssmFallbackTokenizer = "EleutherAI/gpt-neox-20b"

// Request is the input every strategy sees.
type Request struct {
	Identifier string
	Revision   string
	Location   hub.Location
	Metadata   Metadata
	OutputDir  string
}

// Strategy is one step of the resolution chain. Attempt reports false when
// the strategy could not produce a tokenizer; the next one is then tried.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, req Request) (Resolved, bool)
}

// DefaultStrategies returns the chain in resolution order.
func DefaultStrategies(conv Converter, log zerolog.Logger) []Strategy {
	return []Strategy{
		transformersStrategy{conv: conv, log: log},
		legacyStrategy{conv: conv, log: log},
		artifactStrategy{log: log},
		externalStrategy{},
	}
}

// convertAndLoad materializes name@revision into outputDir and loads it.
func convertAndLoad(ctx context.Context, conv Converter, log zerolog.Logger, name, revision, outputDir string) (Resolved, bool) {
	if conv == nil {
		return nil, false
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		log.Warn().Err(err).Str("dir", outputDir).Msg("cannot create tokenizer output directory")
		return nil, false
	}
	if err := conv.Convert(ctx, name, revision, outputDir); err != nil {
		log.Warn().Err(err).Str("name", name).Msg("failed to convert tokenizer")
		return nil, false
	}
	fast, err := LoadFast(filepath.Join(outputDir, FileName))
	if err != nil {
		log.Warn().Err(err).Str("name", name).Msg("converted tokenizer could not be loaded")
		return nil, false
	}
	return fast, true
}

type transformersStrategy struct {
	conv Converter
	log  zerolog.Logger
}

func (transformersStrategy) Name() string { return "transformers" }

func (s transformersStrategy) Attempt(ctx context.Context, req Request) (Resolved, bool) {
	return convertAndLoad(ctx, s.conv, s.log, req.Identifier, req.Revision, req.OutputDir)
}

// legacyStrategy converts the tokenizer of the model config.json points at.
type legacyStrategy struct {
	conv Converter
	log  zerolog.Logger
}

func (legacyStrategy) Name() string { return "legacy" }

func (s legacyStrategy) Attempt(ctx context.Context, req Request) (Resolved, bool) {
	name, ok := legacyTokenizerName(req.Metadata.Config)
	if !ok {
		return nil, false
	}
	s.log.Info().Str("tokenizer", name).Msg("falling back to the tokenizer named by config.json")
	return convertAndLoad(ctx, s.conv, s.log, name, hub.DefaultRevision, req.OutputDir)
}

// legacyTokenizerName reads base_model_name_or_path, or the SSM fallback,
// from a config.json.
func legacyTokenizerName(configPath string) (string, bool) {
	if configPath == "" {
		return "", false
	}
	b, err := os.ReadFile(configPath)
	if err != nil || !gjson.ValidBytes(b) {
		return "", false
	}
	if base := gjson.GetBytes(b, "base_model_name_or_path"); base.Type == gjson.String && base.String() != "" {
		return base.String(), true
	}
	if ssm := gjson.GetBytes(b, "ssm_config"); ssm.Exists() && ssm.Type != gjson.Null {
		return ssmFallbackTokenizer, true
	}
	return "", false
}

// artifactStrategy copies a tokenizer.json shipped with the located files
// into the output directory and loads the copy.
type artifactStrategy struct {
	log zerolog.Logger
}

func (artifactStrategy) Name() string { return "artifact" }

func (s artifactStrategy) Attempt(ctx context.Context, req Request) (Resolved, bool) {
	if req.Location == nil {
		return nil, false
	}
	// A listing without tokenizer.json saves the download attempt.
	if mi := req.Metadata.ModelInfo; mi != nil && len(mi.Siblings) > 0 && !mi.HasFile(FileName) {
		return nil, false
	}
	src, err := req.Location.Fetch(ctx, FileName)
	if err != nil {
		return nil, false
	}
	fast, err := LoadFast(src)
	if err != nil {
		s.log.Warn().Err(err).Msg("shipped tokenizer.json could not be loaded")
		return nil, false
	}
	dst := filepath.Join(req.OutputDir, FileName)
	if req.OutputDir == "" || filepath.Clean(src) == filepath.Clean(dst) {
		return fast, true
	}
	_ = fast.Close()

	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		s.log.Warn().Err(err).Str("dir", req.OutputDir).Msg("cannot create tokenizer output directory")
		return nil, false
	}
	if err := fsutil.CopyFile(src, dst, 0o644); err != nil {
		s.log.Warn().Err(err).Str("dst", dst).Msg("cannot copy shipped tokenizer.json")
		return nil, false
	}
	if fast, err = LoadFast(dst); err != nil {
		s.log.Warn().Err(err).Str("dst", dst).Msg("copied tokenizer.json could not be loaded")
		return nil, false
	}
	return fast, true
}

// externalStrategy selects an external tokenizer for any usable identifier.
type externalStrategy struct{}

func (externalStrategy) Name() string { return "external" }

func (externalStrategy) Attempt(_ context.Context, req Request) (Resolved, bool) {
	if hub.ValidateRepoID(req.Identifier) != nil && !fsutil.IsDir(req.Identifier) {
		return nil, false
	}
	return &External{Name: req.Identifier, Revision: req.Revision, TrustRemoteCode: false}, true
}
