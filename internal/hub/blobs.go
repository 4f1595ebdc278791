package hub

import (
	_ "crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/moby/sys/atomicwriter"
	"github.com/opencontainers/go-digest"

	"routerd/internal/common/fsutil"
)

// maxBlobBytes bounds a single download; startup only fetches configuration
// and tokenizer files.
const maxBlobBytes = 512 << 20

// errDigestMismatch is returned when an LFS blob does not hash to its etag.
var errDigestMismatch = errors.New("blob digest mismatch")

// etagDigest returns the sha256 digest named by an LFS etag, if it is one.
func etagDigest(etag string) (digest.Digest, bool) {
	d := digest.NewDigestFromEncoded(digest.SHA256, etag)
	if d.Validate() != nil {
		return "", false
	}
	return d, true
}

// writeBlob stores r under the blob path for etag. LFS etags are verified
// before anything is committed to disk.
func (cr CacheRepo) writeBlob(etag string, r io.Reader) (string, int64, error) {
	path, err := cr.BlobPath(etag)
	if err != nil {
		return "", 0, err
	}
	if fsutil.IsFile(path) {
		fi, _ := os.Stat(path)
		return path, fi.Size(), nil
	}
	b, err := io.ReadAll(io.LimitReader(r, maxBlobBytes+1))
	if err != nil {
		return "", 0, fmt.Errorf("read blob: %w", err)
	}
	if len(b) > maxBlobBytes {
		return "", 0, fmt.Errorf("blob %s exceeds %d bytes", etag, maxBlobBytes)
	}
	if d, ok := etagDigest(etag); ok {
		if got := digest.FromBytes(b); got != d {
			return "", 0, fmt.Errorf("%w: want %s, got %s", errDigestMismatch, d, got)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", 0, err
	}
	if err := atomicwriter.WriteFile(path, b, 0o644); err != nil {
		return "", 0, fmt.Errorf("write blob: %w", err)
	}
	return path, int64(len(b)), nil
}

// linkSnapshot points snapshots/<commit>/<file> at the blob, copying when
// symlinks are unavailable.
func (cr CacheRepo) linkSnapshot(commit, file, blob string) (string, error) {
	p, err := cr.SnapshotPath(commit, file)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", err
	}
	_ = os.Remove(p)
	rel, err := filepath.Rel(filepath.Dir(p), blob)
	if err == nil {
		if err = os.Symlink(rel, p); err == nil {
			return p, nil
		}
	}
	b, rerr := os.ReadFile(blob)
	if rerr != nil {
		return "", rerr
	}
	if err := atomicwriter.WriteFile(p, b, 0o644); err != nil {
		return "", err
	}
	return p, nil
}
