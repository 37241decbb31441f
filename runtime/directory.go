package runtime

import (
	"chat-rooms/contract"
	"chat-rooms/domain"
	"chat-rooms/domain/event"
	"chat-rooms/moderation"
	"chat-rooms/observability"
	"chat-rooms/repositories"
	"chat-rooms/runtime/workers"
	"context"
	"log/slog"
	"sync"
)

// Directory maps room ids to their single live worker. It is the only
// entry point external callers use: create-or-fetch happens under one
// mutex, so a race on first resolution always settles on one winner and
// a room id never has two live workers.
type Directory struct {
	mu          sync.Mutex
	log         *slog.Logger
	supervisor  contract.ISupervisor
	posts       repositories.IPostRepository
	moderator   *moderation.Moderator
	events      chan<- event.DomainEvent
	stats       *observability.Stats
	policy      workers.DeliveryPolicy
	recentLimit int
	mailboxSize int

	ctx   context.Context
	rooms map[domain.RoomID]*workers.RoomWorker
}

func NewDirectory(log *slog.Logger, supervisor contract.ISupervisor,
	posts repositories.IPostRepository, moderator *moderation.Moderator,
	events chan<- event.DomainEvent, stats *observability.Stats,
	policy workers.DeliveryPolicy, recentLimit, mailboxSize int) *Directory {
	return &Directory{
		log:         log,
		supervisor:  supervisor,
		posts:       posts,
		moderator:   moderator,
		events:      events,
		stats:       stats,
		policy:      policy,
		recentLimit: recentLimit,
		mailboxSize: mailboxSize,
		rooms:       make(map[domain.RoomID]*workers.RoomWorker),
	}
}

// Start retains the lifecycle context under which room workers are
// spawned. Must be called once before the first Resolve.
func (d *Directory) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ctx = ctx
}

// CreateRoom allocates a fresh opaque identifier. No worker state is
// instantiated; the room becomes live on first Resolve.
func (d *Directory) CreateRoom() domain.RoomID {
	id := domain.NewRoomID()
	d.log.Debug("Allocated room", "room", string(id))
	return id
}

// Resolve returns the single live worker for the room, creating it with
// an empty session set (backed by whatever log already exists for that
// id) and starting it under the supervisor when none is resident.
func (d *Directory) Resolve(room domain.RoomID) *workers.RoomWorker {
	d.mu.Lock()
	defer d.mu.Unlock()

	if worker, ok := d.rooms[room]; ok {
		return worker
	}

	worker := workers.NewRoomWorker(room, d.posts, d.moderator, d.events,
		d.stats, d.policy, d.recentLimit, d.mailboxSize, d.log)
	d.rooms[room] = worker
	d.supervisor.Start(d.ctx, worker)
	d.log.Info("Room worker started", "room", string(room))
	return worker
}

// FetchRecent serves history without opening a live session: a thin
// pass-through to the log read path.
func (d *Directory) FetchRecent(room domain.RoomID, limit int) ([]domain.Post, error) {
	return d.posts.Recent(room, limit)
}

// Attach hands a new session to the room's worker.
func (d *Directory) Attach(ctx context.Context, room domain.RoomID, session contract.Session) error {
	worker := d.Resolve(room)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case worker.Mailbox() <- workers.Attach{Session: session}:
		return nil
	}
}

// Forward pushes one raw client payload into the room's mailbox.
func (d *Directory) Forward(ctx context.Context, room domain.RoomID, session contract.Session, payload []byte) error {
	worker := d.Resolve(room)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case worker.Mailbox() <- workers.Frame{Session: session, Payload: payload}:
		return nil
	}
}

// Detach removes the session from the room. It must not block the
// caller on an in-flight broadcast, so the signal is sent from a spare
// goroutine when the mailbox is momentarily full.
func (d *Directory) Detach(room domain.RoomID, session contract.Session) {
	worker := d.Resolve(room)
	detach := workers.Detach{Session: session}
	select {
	case worker.Mailbox() <- detach:
	default:
		go func() {
			select {
			case worker.Mailbox() <- detach:
			case <-d.ctx.Done():
			}
		}()
	}
}
