package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	units "github.com/docker/go-units"
	"github.com/rs/zerolog"
)

// APIConfig configures the remote hub client.
type APIConfig struct {
	Endpoint        string
	Token           string
	Cache           Cache
	UserAgentOrigin string
	// MaxRetries bounds retries of transient failures (network, 429, 5xx).
	MaxRetries uint64
	HTTPClient *http.Client
	// Backoff builds the retry schedule; defaults to exponential backoff.
	Backoff func() backoff.BackOff
	Logger  zerolog.Logger
}

// API is a hub client that downloads files through the local cache.
type API struct {
	endpoint   *url.URL
	token      string
	userAgent  string
	cache      Cache
	client     *http.Client
	noRedirect *http.Client
	retries    uint64
	newBackoff func() backoff.BackOff
	log        zerolog.Logger
}

// NewAPI validates cfg and builds a client. The endpoint must be an absolute
// http(s) URL.
func NewAPI(cfg APIConfig) (*API, error) {
	u, err := url.Parse(strings.TrimRight(cfg.Endpoint, "/"))
	if err != nil {
		return nil, fmt.Errorf("hub endpoint: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("hub endpoint %q: expected an http(s) URL", cfg.Endpoint)
	}
	if cfg.Cache.Root() == "" {
		cfg.Cache = NewCache(DefaultCacheDir())
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Backoff == nil {
		cfg.Backoff = func() backoff.BackOff { return backoff.NewExponentialBackOff() }
	}
	// Timeout stays 0: every request carries a context deadline.
	cli := cfg.HTTPClient
	if cli == nil {
		cli = &http.Client{Timeout: 0}
	}
	nr := *cli
	nr.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }

	ua := "routerd/go; hf-hub/go"
	if cfg.UserAgentOrigin != "" {
		ua += "; origin/" + cfg.UserAgentOrigin
	}
	return &API{
		endpoint:   u,
		token:      cfg.Token,
		userAgent:  ua,
		cache:      cfg.Cache,
		client:     cli,
		noRedirect: &nr,
		retries:    cfg.MaxRetries,
		newBackoff: cfg.Backoff,
		log:        cfg.Logger,
	}, nil
}

// Repo returns a handle on one repository.
func (a *API) Repo(r Repo) *APIRepo {
	return &APIRepo{api: a, repo: r, cache: a.cache.Repo(r)}
}

func (a *API) newRequest(ctx context.Context, method, rawURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", a.userAgent)
	// The token is only sent to the hub itself, never to redirected storage hosts.
	if a.token != "" && req.URL.Host == a.endpoint.Host {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	return req, nil
}

// retry runs op with the configured backoff. Errors that are not worth
// retrying must be wrapped with backoff.Permanent.
func (a *API) retry(ctx context.Context, op func() error) error {
	b := backoff.WithContext(backoff.WithMaxRetries(a.newBackoff(), a.retries), ctx)
	return backoff.Retry(op, b)
}

func classify(err error) error {
	var se statusError
	if errors.As(err, &se) && !se.retryable() {
		return backoff.Permanent(err)
	}
	return err
}

// APIRepo fetches files of one repository.
type APIRepo struct {
	api   *API
	repo  Repo
	cache CacheRepo
}

type fileMetadata struct {
	commit   string
	etag     string
	location string
	size     int64
}

// Get returns the cached snapshot path of file, downloading it on a miss.
func (r *APIRepo) Get(ctx context.Context, file string) (string, error) {
	if p, ok := r.cache.Get(file); ok {
		downloadsTotal.WithLabelValues("cached").Inc()
		return p, nil
	}
	p, err := r.Download(ctx, file)
	if err != nil {
		downloadsTotal.WithLabelValues("error").Inc()
		return "", err
	}
	downloadsTotal.WithLabelValues("downloaded").Inc()
	return p, nil
}

func (r *APIRepo) fileURL(file string) string {
	return fmt.Sprintf("%s/%s/resolve/%s/%s", r.api.endpoint, r.repo.ID, url.PathEscape(r.repo.Revision), file)
}

// Download fetches file into the cache and returns its snapshot path.
func (r *APIRepo) Download(ctx context.Context, file string) (string, error) {
	if err := ValidateRepoID(r.repo.ID); err != nil {
		return "", err
	}
	start := time.Now()
	var meta fileMetadata
	err := r.api.retry(ctx, func() error {
		m, err := r.metadata(ctx, r.fileURL(file))
		if err != nil {
			return classify(err)
		}
		meta = m
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("metadata %s/%s: %w", r.repo, file, err)
	}

	blob, err := r.cache.BlobPath(meta.etag)
	if err != nil {
		return "", err
	}
	var size int64
	err = r.api.retry(ctx, func() error {
		req, err := r.api.newRequest(ctx, http.MethodGet, meta.location)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := r.api.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return classify(statusError{url: meta.location, status: resp.StatusCode, body: string(b)})
		}
		var werr error
		blob, size, werr = r.cache.writeBlob(meta.etag, resp.Body)
		if errors.Is(werr, errDigestMismatch) {
			return backoff.Permanent(werr)
		}
		return werr
	})
	if err != nil {
		return "", fmt.Errorf("download %s/%s: %w", r.repo, file, err)
	}

	p, err := r.cache.linkSnapshot(meta.commit, file, blob)
	if err != nil {
		return "", fmt.Errorf("snapshot %s/%s: %w", r.repo, file, err)
	}
	if r.repo.Revision != meta.commit {
		if err := r.cache.CreateRef(meta.commit); err != nil {
			return "", fmt.Errorf("ref %s: %w", r.repo, err)
		}
	}
	r.api.log.Debug().
		Str("repo", r.repo.ID).
		Str("file", file).
		Str("size", units.HumanSize(float64(size))).
		Dur("dur", time.Since(start)).
		Msg("hub download complete")
	return p, nil
}

// metadata issues a HEAD without following redirects and reads the commit,
// etag and final location of the file.
func (r *APIRepo) metadata(ctx context.Context, fileURL string) (fileMetadata, error) {
	req, err := r.api.newRequest(ctx, http.MethodHead, fileURL)
	if err != nil {
		return fileMetadata{}, backoff.Permanent(err)
	}
	resp, err := r.api.noRedirect.Do(req)
	if err != nil {
		return fileMetadata{}, err
	}
	_ = resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fileMetadata{}, backoff.Permanent(fmt.Errorf("%s: %w", fileURL, ErrEntryNotFound))
	case resp.StatusCode >= 400:
		return fileMetadata{}, statusError{url: fileURL, status: resp.StatusCode}
	}

	m := fileMetadata{
		commit:   resp.Header.Get("X-Repo-Commit"),
		etag:     normalizeETag(firstNonEmpty(resp.Header.Get("X-Linked-Etag"), resp.Header.Get("ETag"))),
		location: fileURL,
	}
	if loc := resp.Header.Get("Location"); loc != "" && resp.StatusCode >= 300 {
		u, err := req.URL.Parse(loc)
		if err != nil {
			return fileMetadata{}, backoff.Permanent(fmt.Errorf("redirect location %q: %w", loc, err))
		}
		m.location = u.String()
	}
	if s := firstNonEmpty(resp.Header.Get("X-Linked-Size"), resp.Header.Get("Content-Length")); s != "" {
		m.size, _ = strconv.ParseInt(s, 10, 64)
	}
	if m.commit == "" || m.etag == "" {
		return fileMetadata{}, backoff.Permanent(fmt.Errorf("%s: hub response is missing commit or etag headers", fileURL))
	}
	return m, nil
}

// Info fetches the model description at the repo revision.
func (r *APIRepo) Info(ctx context.Context) (*ModelInfo, error) {
	if err := ValidateRepoID(r.repo.ID); err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/api/models/%s/revision/%s", r.api.endpoint, r.repo.ID, url.PathEscape(r.repo.Revision))
	var info ModelInfo
	err := r.api.retry(ctx, func() error {
		req, err := r.api.newRequest(ctx, http.MethodGet, u)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := r.api.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			return backoff.Permanent(fmt.Errorf("%s: %w", u, ErrEntryNotFound))
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return classify(statusError{url: u, status: resp.StatusCode, body: string(b)})
		}
		if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
			return backoff.Permanent(fmt.Errorf("decode model info: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &info, nil
}

func normalizeETag(s string) string {
	s = strings.TrimPrefix(strings.TrimSpace(s), "W/")
	return strings.Trim(s, `"`)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
