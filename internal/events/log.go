package events

import "github.com/rs/zerolog"

// LogPublisher writes every event to a logger at debug level.
type LogPublisher struct {
	Logger zerolog.Logger
}

func (p LogPublisher) Publish(e Event) {
	ev := p.Logger.Debug().Str("event", e.Name).Str("stage", e.Stage)
	if len(e.Fields) > 0 {
		ev = ev.Fields(e.Fields)
	}
	ev.Msg("lifecycle event")
}
