package sink

import (
	"chat-rooms/domain/event"
	"chat-rooms/observability"
	"context"
)

// StatsSink keeps the observability counters in sync with domain events.
type StatsSink struct {
	stats *observability.Stats
}

func NewStatsSink(stats *observability.Stats) StatsSink {
	return StatsSink{stats: stats}
}

func (s StatsSink) Consume(_ context.Context, e event.DomainEvent) error {
	switch e.(type) {
	case event.PostCreated:
		s.stats.PostsCreated.Add(1)
	case event.ParticipantJoined:
		s.stats.SessionsAttached.Add(1)
	case event.ParticipantLeft:
		s.stats.SessionsDetached.Add(1)
	}
	return nil
}
