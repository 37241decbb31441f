package sink

import (
	"chat-rooms/domain/event"
	"chat-rooms/repositories"
	"context"
	"log/slog"
)

// SearchSink feeds the full-text index from the event pipeline. Indexing
// lives here, off the room worker's hot path, so a slow index merge
// never delays a broadcast.
type SearchSink struct {
	index *repositories.SearchIndex
	log   *slog.Logger
}

func NewSearchSink(index *repositories.SearchIndex, log *slog.Logger) SearchSink {
	return SearchSink{index: index, log: log}
}

func (s SearchSink) Consume(_ context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.PostCreated:
		return s.index.Index(evt.Post)
	default:
		return nil
	}
}
