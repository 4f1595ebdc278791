package hub

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kirsle/configdir"
	"github.com/moby/sys/atomicwriter"

	"routerd/internal/common/fsutil"
	"routerd/internal/config"
)

var commitPattern = regexp.MustCompile(`^[0-9a-f]{40}$`)

// DefaultCacheDir returns the per-user hub cache (~/.cache/huggingface/hub on Linux).
func DefaultCacheDir() string {
	return configdir.LocalCache("huggingface", "hub")
}

// Cache is a hub cache rooted at a directory.
type Cache struct {
	root string
}

// NewCache returns a cache rooted at root.
func NewCache(root string) Cache { return Cache{root: root} }

// CacheFromEnv uses HUGGINGFACE_HUB_CACHE when set, the default cache otherwise.
func CacheFromEnv(env config.Environment) Cache {
	root := env.HubCache
	if root == "" {
		return NewCache(DefaultCacheDir())
	}
	if p, err := fsutil.ExpandHome(root); err == nil {
		root = p
	}
	return NewCache(root)
}

func (c Cache) Root() string { return c.root }

// Repo returns the cache view of one repository.
func (c Cache) Repo(r Repo) CacheRepo {
	return CacheRepo{dir: filepath.Join(c.root, r.FolderName()), repo: r}
}

// CacheRepo reads and writes one repository inside the cache.
type CacheRepo struct {
	dir  string
	repo Repo
}

func (cr CacheRepo) Dir() string { return cr.dir }

// Commit resolves the cached revision to a commit hash. A revision without a
// ref that already looks like a commit hash is returned unchanged.
func (cr CacheRepo) Commit() (string, bool) {
	refPath, err := fsutil.SafeJoin(cr.dir, "refs", cr.repo.Revision)
	if err != nil {
		return "", false
	}
	if b, err := os.ReadFile(refPath); err == nil {
		if c := strings.TrimSpace(string(b)); c != "" {
			return c, true
		}
	}
	if commitPattern.MatchString(cr.repo.Revision) {
		return cr.repo.Revision, true
	}
	return "", false
}

// Get returns the snapshot path of file when it is present in the cache.
func (cr CacheRepo) Get(file string) (string, bool) {
	commit, ok := cr.Commit()
	if !ok {
		return "", false
	}
	p, err := cr.SnapshotPath(commit, file)
	if err != nil || !fsutil.IsFile(p) {
		return "", false
	}
	return p, true
}

// SnapshotPath is where file lives for commit.
func (cr CacheRepo) SnapshotPath(commit, file string) (string, error) {
	return fsutil.SafeJoin(cr.dir, "snapshots", commit, file)
}

// BlobPath is where the blob with etag is stored.
func (cr CacheRepo) BlobPath(etag string) (string, error) {
	if etag == "" || strings.ContainsAny(etag, `/\`) || strings.Contains(etag, "..") {
		return "", fmt.Errorf("unsafe etag %q", etag)
	}
	return fsutil.SafeJoin(cr.dir, "blobs", etag)
}

// CreateRef records commit as the target of the repo revision.
func (cr CacheRepo) CreateRef(commit string) error {
	refPath, err := fsutil.SafeJoin(cr.dir, "refs", cr.repo.Revision)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(refPath), 0o755); err != nil {
		return err
	}
	return atomicwriter.WriteFile(refPath, []byte(commit), 0o644)
}
