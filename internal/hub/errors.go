package hub

import (
	"errors"
	"fmt"
)

var (
	// ErrNotCached is returned when an offline lookup misses the cache.
	ErrNotCached = errors.New("file not found in hub cache")
	// ErrInvalidRepoID is returned for identifiers that cannot name a hub repository.
	ErrInvalidRepoID = errors.New("invalid repository id")
	// ErrEntryNotFound is returned when the hub reports a missing file or repository.
	ErrEntryNotFound = errors.New("entry not found on hub")
)

// statusError carries a non-2xx hub response.
type statusError struct {
	url    string
	status int
	body   string
}

func (e statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("hub request %s: status %d", e.url, e.status)
	}
	return fmt.Sprintf("hub request %s: status %d: %s", e.url, e.status, e.body)
}

// retryable reports whether the status is worth retrying.
func (e statusError) retryable() bool {
	return e.status == 429 || e.status >= 500
}
