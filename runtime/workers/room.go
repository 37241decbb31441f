package workers

import (
	"chat-rooms/contract"
	"chat-rooms/domain"
	"chat-rooms/domain/event"
	"chat-rooms/moderation"
	"chat-rooms/observability"
	"chat-rooms/protocol"
	"chat-rooms/repositories"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Signal is the closed set of inputs a room worker processes. Everything
// that mutates a room's state arrives through the mailbox as one of
// these, so the worker goroutine is the single serialization point.
type Signal interface {
	isSignal()
}

type Attach struct {
	Session contract.Session
}

type Detach struct {
	Session contract.Session
}

type Frame struct {
	Session contract.Session
	Payload []byte
}

func (Attach) isSignal() {}
func (Detach) isSignal() {}
func (Frame) isSignal()  {}

// DeliveryPolicy fixes the order between persisting a post and
// broadcasting it. BroadcastFirst favors latency and accepts a small
// window where a delivered post is lost on crash; PersistFirst makes the
// log the source of truth before anyone sees the post.
type DeliveryPolicy string

const (
	BroadcastFirst DeliveryPolicy = "broadcast-first"
	PersistFirst   DeliveryPolicy = "persist-first"
)

func ParseDeliveryPolicy(s string) (DeliveryPolicy, error) {
	switch DeliveryPolicy(s) {
	case BroadcastFirst, PersistFirst:
		return DeliveryPolicy(s), nil
	default:
		return "", fmt.Errorf("unknown delivery policy %q", s)
	}
}

var _ contract.Worker = (*RoomWorker)(nil)

type participant struct {
	userID   string
	username string
}

// RoomWorker owns one room: its live session set and all writes to its
// log. It drains the mailbox strictly one signal at a time; rooms never
// share state, so distinct rooms run fully concurrently.
type RoomWorker struct {
	room        domain.RoomID
	mailbox     chan Signal
	posts       repositories.IPostRepository
	moderator   *moderation.Moderator
	events      chan<- event.DomainEvent
	stats       *observability.Stats
	policy      DeliveryPolicy
	recentLimit int
	log         *slog.Logger

	sessions map[contract.Session]*participant
	lastDate time.Time
}

func NewRoomWorker(
	room domain.RoomID,
	posts repositories.IPostRepository,
	moderator *moderation.Moderator,
	events chan<- event.DomainEvent,
	stats *observability.Stats,
	policy DeliveryPolicy,
	recentLimit, mailboxSize int,
	log *slog.Logger,
) *RoomWorker {
	return &RoomWorker{
		room:        room,
		mailbox:     make(chan Signal, mailboxSize),
		posts:       posts,
		moderator:   moderator,
		events:      events,
		stats:       stats,
		policy:      policy,
		recentLimit: recentLimit,
		log:         log.With("room", string(room)),
		sessions:    make(map[contract.Session]*participant),
	}
}

func (w *RoomWorker) Room() domain.RoomID {
	return w.room
}

// Mailbox is the only way into the room. Senders must select on it
// together with their own context; the worker never reaches out.
func (w *RoomWorker) Mailbox() chan<- Signal {
	return w.mailbox
}

func (w *RoomWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping worker")
			return ctx.Err()
		case sig, ok := <-w.mailbox:
			if !ok {
				return nil
			}
			switch s := sig.(type) {
			case Attach:
				// Nothing is sent back until the connected handshake.
				w.sessions[s.Session] = &participant{}
			case Detach:
				w.detach(s.Session)
			case Frame:
				w.handleFrame(s)
			}
		}
	}
}

func (w *RoomWorker) detach(session contract.Session) {
	p, ok := w.sessions[session]
	if !ok {
		return
	}
	delete(w.sessions, session)
	if p.userID != "" {
		w.emit(event.ParticipantLeft{Room: w.room, UserID: p.userID})
	}
}

func (w *RoomWorker) handleFrame(frame Frame) {
	p, ok := w.sessions[frame.Session]
	if !ok {
		// Frame raced a detach; the session is already gone.
		return
	}

	inbound, err := protocol.DecodeInbound(frame.Payload)
	if err != nil {
		// Reject the single message, keep the session open.
		w.stats.ProtocolViolations.Add(1)
		w.log.Debug("Rejected payload", "session", frame.Session.ID(), "error", err)
		return
	}

	switch msg := inbound.(type) {
	case protocol.Connected:
		w.handleConnected(frame.Session, p, msg)
	case protocol.Send:
		w.handleSend(msg)
	case protocol.Image:
		// Reserved hook: accepted, no state change, no broadcast.
	}
}

// handleConnected records the session's identity and replies with one
// recent frame, to the requesting session only.
func (w *RoomWorker) handleConnected(session contract.Session, p *participant, msg protocol.Connected) {
	p.userID = msg.UserID
	p.username = msg.Username
	w.emit(event.ParticipantJoined{Room: w.room, UserID: msg.UserID, Username: msg.Username})

	posts, err := w.posts.Recent(w.room, w.recentLimit)
	if err != nil {
		w.log.Error("Failed to load recent posts", "error", err)
		return
	}
	frame, err := protocol.EncodeRecent(posts)
	if err != nil {
		w.log.Error("Failed to encode recent frame", "error", err)
		return
	}
	if !session.Deliver(frame) {
		w.evict(session)
	}
}

func (w *RoomWorker) handleSend(msg protocol.Send) {
	text := msg.Message
	if w.moderator != nil {
		censored, found := w.moderator.Censor(text)
		if len(found) > 0 {
			w.log.Info("Censored message",
				"user_id", msg.UserID,
				"lang", moderation.DetectLanguage(text),
				"words", len(found))
			text = censored
		}
	}

	post := domain.Post{
		ID:       uuid.New(),
		Room:     w.room,
		UserID:   msg.UserID,
		Username: msg.Username,
		Message:  text,
		Date:     w.nextDate(),
	}

	if w.policy == PersistFirst {
		if !w.append(post) {
			// The log is the source of truth under this policy; nobody
			// sees a post that was never recorded.
			return
		}
		w.broadcast(post)
		w.emit(event.PostCreated{Post: post})
		return
	}

	w.broadcast(post)
	w.append(post)
	w.emit(event.PostCreated{Post: post})
}

// append persists the post and reports whether it is durable. A failure
// is recoverable: it is logged and counted, and the room keeps serving.
func (w *RoomWorker) append(post domain.Post) bool {
	if err := w.posts.Append(post); err != nil {
		w.stats.AppendFailures.Add(1)
		w.log.Error("Failed to append post", "post_id", post.ID.String(), "error", err)
		return false
	}
	return true
}

// broadcast fans the post out to every live session, sender included.
// Delivery is non-blocking per session; a session that cannot keep up is
// evicted so one dead client never stalls the room.
func (w *RoomWorker) broadcast(post domain.Post) {
	frame, err := protocol.EncodePost(post)
	if err != nil {
		w.log.Error("Failed to encode post", "post_id", post.ID.String(), "error", err)
		return
	}

	var dead []contract.Session
	for session := range w.sessions {
		if !session.Deliver(frame) {
			dead = append(dead, session)
		}
	}
	w.stats.Broadcasts.Add(1)
	for _, session := range dead {
		w.evict(session)
	}
}

func (w *RoomWorker) evict(session contract.Session) {
	w.stats.DeliveryFailures.Add(1)
	w.log.Warn("Evicting unresponsive session", "session", session.ID())
	w.detach(session)
	session.Close()
}

// nextDate returns the post timestamp, clamped so the sequence within
// the room never goes backwards even if the wall clock does.
func (w *RoomWorker) nextDate() time.Time {
	now := time.Now().UTC()
	if now.Before(w.lastDate) {
		now = w.lastDate
	}
	w.lastDate = now
	return now
}

// emit publishes a domain event for the fan-out pipeline. Best-effort:
// observability must never block or crash a room.
func (w *RoomWorker) emit(e event.DomainEvent) {
	select {
	case w.events <- e:
	default:
		w.log.Debug("Event channel full, dropping event")
	}
}
