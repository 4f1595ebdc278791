package hub

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"path/filepath"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"routerd/internal/common/fsutil"
	"routerd/internal/config"
)

// Kind tags a Location variant.
type Kind int

const (
	KindLocalPath Kind = iota
	KindCachedRepo
	KindRemoteRepo
)

func (k Kind) String() string {
	switch k {
	case KindLocalPath:
		return "local"
	case KindCachedRepo:
		return "cache"
	case KindRemoteRepo:
		return "api"
	default:
		return "unknown"
	}
}

// Location is a resolved source of model files.
type Location interface {
	Kind() Kind
	// Fetch returns a local path for file, downloading it when needed.
	Fetch(ctx context.Context, file string) (string, error)
	// ModelInfo returns hub metadata; sources without one return nil, nil.
	ModelInfo(ctx context.Context) (*ModelInfo, error)
}

// LocalPath serves files from a directory.
type LocalPath struct {
	Dir string
}

func (LocalPath) Kind() Kind { return KindLocalPath }

func (l LocalPath) Fetch(_ context.Context, file string) (string, error) {
	p, err := fsutil.SafeJoin(l.Dir, file)
	if err != nil {
		return "", err
	}
	if !fsutil.IsFile(p) {
		return "", fmt.Errorf("%s: %w", p, fs.ErrNotExist)
	}
	return p, nil
}

func (LocalPath) ModelInfo(context.Context) (*ModelInfo, error) { return nil, nil }

// CachedRepo serves files from the hub cache without network access.
type CachedRepo struct {
	Repo  Repo
	Cache Cache
}

func (CachedRepo) Kind() Kind { return KindCachedRepo }

func (c CachedRepo) Fetch(_ context.Context, file string) (string, error) {
	if p, ok := c.Cache.Repo(c.Repo).Get(file); ok {
		downloadsTotal.WithLabelValues("cached").Inc()
		return p, nil
	}
	return "", fmt.Errorf("%s/%s: %w", c.Repo, file, ErrNotCached)
}

func (CachedRepo) ModelInfo(context.Context) (*ModelInfo, error) { return nil, nil }

// RemoteRepo serves files through the hub API.
type RemoteRepo struct {
	repo *APIRepo
}

func (RemoteRepo) Kind() Kind { return KindRemoteRepo }

func (r RemoteRepo) Fetch(ctx context.Context, file string) (string, error) {
	return r.repo.Get(ctx, file)
}

func (r RemoteRepo) ModelInfo(ctx context.Context) (*ModelInfo, error) {
	return r.repo.Info(ctx)
}

// Locator decides where a tokenizer or model identifier should be read from.
type Locator struct {
	Env        config.Environment
	Logger     zerolog.Logger
	HTTPClient *http.Client
	Backoff    func() backoff.BackOff
}

// Locate maps identifier and revision to a Location. An existing directory is
// used as is unless a revision is given; everything else goes to the hub,
// through the cache only when offline mode is on.
func (l Locator) Locate(identifier, revision string) Location {
	useHub := revision != "" || !fsutil.IsDir(identifier)
	if !useHub {
		return LocalPath{Dir: filepath.Clean(identifier)}
	}
	repo := NewRepo(identifier, revision)
	cache := CacheFromEnv(l.Env)
	if l.Env.OfflineMode() {
		l.Logger.Warn().Str("cache", cache.Root()).Msg("Offline mode active using cache defaults")
		return CachedRepo{Repo: repo, Cache: cache}
	}
	l.Logger.Info().Str("repo", repo.String()).Msg("Using the Hugging Face API")
	api, err := NewAPI(APIConfig{
		Endpoint:        l.Env.Endpoint,
		Token:           l.Env.Token(),
		Cache:           cache,
		UserAgentOrigin: l.Env.UserAgentOrigin,
		HTTPClient:      l.HTTPClient,
		Backoff:         l.Backoff,
		Logger:          l.Logger,
	})
	if err != nil {
		l.Logger.Warn().Err(err).Msg("Could not build the Hugging Face API client, using local path")
		return LocalPath{Dir: filepath.Clean(identifier)}
	}
	return RemoteRepo{repo: api.Repo(repo)}
}
