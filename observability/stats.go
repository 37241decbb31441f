// Package observability aggregates runtime counters for logs and the
// inspect page.
package observability

import (
	"sync/atomic"
	"time"
)

// Stats holds process-wide counters. All increments are atomic; the room
// workers and sinks update them from their own goroutines.
type Stats struct {
	startedAt time.Time

	PostsCreated       atomic.Uint64
	AppendFailures     atomic.Uint64
	Broadcasts         atomic.Uint64
	DeliveryFailures   atomic.Uint64
	ProtocolViolations atomic.Uint64
	SessionsAttached   atomic.Uint64
	SessionsDetached   atomic.Uint64
}

func NewStats() *Stats {
	return &Stats{startedAt: time.Now().UTC()}
}

// Snapshot flattens the counters for the debug page and telemetry logs.
func (s *Stats) Snapshot() map[string]any {
	return map[string]any{
		"uptime":              time.Since(s.startedAt).Round(time.Second).String(),
		"posts_created":       s.PostsCreated.Load(),
		"append_failures":     s.AppendFailures.Load(),
		"broadcasts":          s.Broadcasts.Load(),
		"delivery_failures":   s.DeliveryFailures.Load(),
		"protocol_violations": s.ProtocolViolations.Load(),
		"sessions_attached":   s.SessionsAttached.Load(),
		"sessions_detached":   s.SessionsDetached.Load(),
	}
}
