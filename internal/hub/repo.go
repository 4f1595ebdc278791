package hub

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultRevision is used when no revision is given.
const DefaultRevision = "main"

var repoIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*(/[A-Za-z0-9][A-Za-z0-9._-]*)?$`)

// Repo names a model repository at a revision.
type Repo struct {
	ID       string
	Revision string
}

// NewRepo returns a Repo, defaulting the revision to main.
func NewRepo(id, revision string) Repo {
	if revision == "" {
		revision = DefaultRevision
	}
	return Repo{ID: id, Revision: revision}
}

// ValidateRepoID checks that id can name a hub repository (name or org/name).
func ValidateRepoID(id string) error {
	if id == "" || strings.Contains(id, "..") || strings.HasSuffix(id, ".") || !repoIDPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidRepoID, id)
	}
	return nil
}

// FolderName is the directory of the repo inside the cache (models--org--name).
func (r Repo) FolderName() string {
	return "models--" + strings.ReplaceAll(r.ID, "/", "--")
}

func (r Repo) String() string { return r.ID + "@" + r.Revision }
