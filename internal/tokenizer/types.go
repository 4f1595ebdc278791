package tokenizer

import "fmt"

// Resolved is the outcome of a successful resolution: *Fast or *External.
type Resolved interface {
	isResolved()
	String() string
}

// External names a tokenizer that must be loaded by an external runtime.
type External struct {
	Name            string
	Revision        string
	TrustRemoteCode bool
}

func (*External) isResolved() {}

func (e *External) String() string {
	if e.Revision == "" {
		return "external:" + e.Name
	}
	return fmt.Sprintf("external:%s@%s", e.Name, e.Revision)
}

// State is a step of the resolution state machine.
type State int

const (
	StateInit State = iota
	StateLocated
	StateMetadataFetched
	StateFastLoaded
	StateExternalSelected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateLocated:
		return "located"
	case StateMetadataFetched:
		return "metadata_fetched"
	case StateFastLoaded:
		return "fast_loaded"
	case StateExternalSelected:
		return "external_selected"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
