package workers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"chat-rooms/domain"
	"chat-rooms/domain/event"

	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	fail bool

	mu     sync.Mutex
	events []event.DomainEvent
}

func (s *recordingSink) Consume(_ context.Context, e event.DomainEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	if s.fail {
		return fmt.Errorf("sink is broken")
	}
	return nil
}

func (s *recordingSink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestEventFanout_DeliversToEverySink(t *testing.T) {
	req := require.New(t)
	events := make(chan event.DomainEvent, 4)
	first := &recordingSink{}
	second := &recordingSink{}
	fanout := NewEventFanout(slog.Default(), events, time.Second, first, second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = fanout.Run(ctx) }()

	room := domain.NewRoomID()
	events <- event.PostCreated{Post: domain.Post{Room: room, Message: "hello"}}
	events <- event.ParticipantJoined{Room: room, UserID: "u-1", Username: "Alice"}

	require.Eventually(t, func() bool {
		return first.Count() == 2 && second.Count() == 2
	}, 2*time.Second, 10*time.Millisecond)
	req.Equal(first.events, second.events)
}

func TestEventFanout_FailingSinkDoesNotStarveOthers(t *testing.T) {
	events := make(chan event.DomainEvent, 4)
	broken := &recordingSink{fail: true}
	healthy := &recordingSink{}
	fanout := NewEventFanout(slog.Default(), events, time.Second, broken, healthy)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = fanout.Run(ctx) }()

	events <- event.PostCreated{Post: domain.Post{Room: domain.NewRoomID(), Message: "hello"}}

	require.Eventually(t, func() bool {
		return healthy.Count() == 1
	}, 2*time.Second, 10*time.Millisecond)
}
