// Package events carries bootstrap lifecycle events to observers.
package events

// Event represents a bootstrap lifecycle event.
// Minimal and stable: name + stage and optional fields via key/values.
type Event struct {
	Name   string
	Stage  string
	Fields map[string]any
}

// Publisher receives events. Implementations should be lightweight and
// non-blocking; Publish must not panic.
type Publisher interface {
	Publish(Event)
}

// Noop drops events.
type Noop struct{}

func (Noop) Publish(Event) {}

// OrNoop returns p, or Noop when p is nil.
func OrNoop(p Publisher) Publisher {
	if p == nil {
		return Noop{}
	}
	return p
}
