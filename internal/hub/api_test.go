package hub

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const tokenizerBody = `{"model":{"type":"BPE","vocab":{"a":0,"b":1}}}`

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// fakeHub serves config.json directly and tokenizer.json through an LFS-style redirect.
type fakeHub struct {
	srv        *httptest.Server
	requests   atomic.Int32
	failFirst  atomic.Int32
	lfsEtag    string
	authHeader atomic.Value
	userAgent  atomic.Value
}

func newFakeHub(t *testing.T) *fakeHub {
	t.Helper()
	h := &fakeHub{lfsEtag: sha256Hex(tokenizerBody)}
	h.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.requests.Add(1)
		h.authHeader.Store(r.Header.Get("Authorization"))
		h.userAgent.Store(r.Header.Get("User-Agent"))
		if h.failFirst.Load() > 0 {
			h.failFirst.Add(-1)
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		switch r.URL.Path {
		case "/org/model/resolve/main/config.json":
			w.Header().Set("X-Repo-Commit", testCommit)
			w.Header().Set("ETag", `"small-etag"`)
			if r.Method == http.MethodGet {
				_, _ = w.Write([]byte(`{"model_type":"llama"}`))
			}
		case "/org/model/resolve/main/tokenizer.json":
			w.Header().Set("X-Repo-Commit", testCommit)
			w.Header().Set("X-Linked-Etag", `"`+h.lfsEtag+`"`)
			w.Header().Set("Location", "/cdn/tokenizer")
			w.WriteHeader(http.StatusFound)
		case "/cdn/tokenizer":
			_, _ = w.Write([]byte(tokenizerBody))
		case "/api/models/org/model/revision/main":
			_, _ = w.Write([]byte(`{"id":"org/model","sha":"` + testCommit + `","pipeline_tag":"text-generation","siblings":[{"rfilename":"config.json"}]}`))
		case "/org/forbidden/resolve/main/config.json":
			w.WriteHeader(http.StatusForbidden)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(h.srv.Close)
	return h
}

func newTestAPI(t *testing.T, h *fakeHub, root string) *API {
	t.Helper()
	api, err := NewAPI(APIConfig{
		Endpoint:        h.srv.URL,
		Token:           "secret",
		Cache:           NewCache(root),
		UserAgentOrigin: "unit-tests",
		Backoff:         func() backoff.BackOff { return &backoff.ZeroBackOff{} },
		Logger:          zerolog.Nop(),
	})
	require.NoError(t, err)
	return api
}

func TestAPIDownloadAndCacheHit(t *testing.T) {
	h := newFakeHub(t)
	root := t.TempDir()
	repo := newTestAPI(t, h, root).Repo(NewRepo("org/model", ""))

	p, err := repo.Get(context.Background(), "config.json")
	require.NoError(t, err)
	b, err := os.ReadFile(p)
	require.NoError(t, err)
	require.JSONEq(t, `{"model_type":"llama"}`, string(b))
	require.Equal(t, filepath.Join(root, "models--org--model", "snapshots", testCommit, "config.json"), p)

	ref, err := os.ReadFile(filepath.Join(root, "models--org--model", "refs", "main"))
	require.NoError(t, err)
	require.Equal(t, testCommit, string(ref))
	require.FileExists(t, filepath.Join(root, "models--org--model", "blobs", "small-etag"))

	require.Equal(t, "Bearer secret", h.authHeader.Load())
	require.Contains(t, h.userAgent.Load(), "origin/unit-tests")

	before := h.requests.Load()
	p2, err := repo.Get(context.Background(), "config.json")
	require.NoError(t, err)
	require.Equal(t, p, p2)
	require.Equal(t, before, h.requests.Load(), "cache hit must not touch the network")

	// The offline view sees the same file.
	cached, err := CachedRepo{Repo: NewRepo("org/model", ""), Cache: NewCache(root)}.Fetch(context.Background(), "config.json")
	require.NoError(t, err)
	require.Equal(t, p, cached)
}

func TestAPIDownloadFollowsRedirectAndVerifiesDigest(t *testing.T) {
	h := newFakeHub(t)
	root := t.TempDir()
	repo := newTestAPI(t, h, root).Repo(NewRepo("org/model", ""))

	p, err := repo.Get(context.Background(), "tokenizer.json")
	require.NoError(t, err)
	b, err := os.ReadFile(p)
	require.NoError(t, err)
	require.Equal(t, tokenizerBody, string(b))
	require.FileExists(t, filepath.Join(root, "models--org--model", "blobs", h.lfsEtag))
}

func TestAPIDigestMismatch(t *testing.T) {
	h := newFakeHub(t)
	h.lfsEtag = sha256Hex("something else")
	repo := newTestAPI(t, h, t.TempDir()).Repo(NewRepo("org/model", ""))

	_, err := repo.Get(context.Background(), "tokenizer.json")
	require.ErrorIs(t, err, errDigestMismatch)
}

func TestAPINotFoundIsPermanent(t *testing.T) {
	h := newFakeHub(t)
	repo := newTestAPI(t, h, t.TempDir()).Repo(NewRepo("org/model", ""))

	_, err := repo.Get(context.Background(), "preprocessor_config.json")
	require.ErrorIs(t, err, ErrEntryNotFound)
	require.Equal(t, int32(1), h.requests.Load())

	_, err = newTestAPI(t, h, t.TempDir()).Repo(NewRepo("org/forbidden", "")).Get(context.Background(), "config.json")
	require.Error(t, err)
	require.Equal(t, int32(2), h.requests.Load(), "4xx must not be retried")
}

func TestAPIRetriesTransientFailures(t *testing.T) {
	h := newFakeHub(t)
	h.failFirst.Store(2)
	repo := newTestAPI(t, h, t.TempDir()).Repo(NewRepo("org/model", ""))

	_, err := repo.Get(context.Background(), "config.json")
	require.NoError(t, err)
}

func TestAPIInfo(t *testing.T) {
	h := newFakeHub(t)
	repo := newTestAPI(t, h, t.TempDir()).Repo(NewRepo("org/model", ""))

	info, err := repo.Info(context.Background())
	require.NoError(t, err)
	require.Equal(t, "org/model", info.ID)
	require.Equal(t, "text-generation", info.PipelineTag)
	require.True(t, info.HasFile("config.json"))
	require.False(t, info.HasFile("tokenizer.json"))

	_, err = newTestAPI(t, h, t.TempDir()).Repo(NewRepo("org/missing", "")).Info(context.Background())
	require.ErrorIs(t, err, ErrEntryNotFound)
}

func TestAPIRejectsInvalidRepoAndEndpoint(t *testing.T) {
	h := newFakeHub(t)
	_, err := newTestAPI(t, h, t.TempDir()).Repo(NewRepo("../x", "")).Get(context.Background(), "config.json")
	require.ErrorIs(t, err, ErrInvalidRepoID)

	_, err = NewAPI(APIConfig{Endpoint: "not a url"})
	require.Error(t, err)
	_, err = NewAPI(APIConfig{Endpoint: "ftp://example.com"})
	require.Error(t, err)
}
