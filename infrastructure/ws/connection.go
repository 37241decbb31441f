// Package ws adapts a gorilla WebSocket connection into the Session the
// room workers consume: a buffered outbound queue drained by a single
// writer goroutine, and a read loop feeding raw payloads upstream.
package ws

import (
	"chat-rooms/contract"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var _ contract.Session = (*Connection)(nil)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

type Connection struct {
	id        string
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closed    atomic.Bool
	closeOnce sync.Once
	log       *slog.Logger
}

func NewConnection(conn *websocket.Conn, bufferSize int, log *slog.Logger) *Connection {
	id := uuid.NewString()
	return &Connection{
		id:   id,
		conn: conn,
		send: make(chan []byte, bufferSize),
		done: make(chan struct{}),
		log:  log.With("session", id),
	}
}

func (c *Connection) ID() string {
	return c.id
}

// Deliver queues a frame without blocking. A full queue or a closed
// connection reports false; the room worker decides what that means.
func (c *Connection) Deliver(frame []byte) bool {
	if c.closed.Load() {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Close is idempotent and never blocks on in-flight deliveries.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.done)
		_ = c.conn.Close()
	})
}

// WritePump drains the outbound queue onto the socket and keeps the
// connection alive with pings. The single writer goroutine is a gorilla
// requirement: concurrent writes on one connection are not allowed.
func (c *Connection) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.log.Debug("Write failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ReadPump blocks reading client payloads and hands each one to handle.
// It returns when the client goes away or misbehaves at the transport
// level; closing the connection is the only cancellation signal.
func (c *Connection) ReadPump(handle func(payload []byte)) {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug("Unexpected close", "error", err)
			}
			return
		}
		handle(payload)
	}
}
