// Package domain contains core concepts of the chat system.
// Posts are immutable once created; only the room worker builds them.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// PostTimeLayout is the storage encoding for post timestamps.
// Fixed-width UTC nanoseconds, so the lexicographical order of encoded
// values matches chronological order.
const PostTimeLayout = "2006-01-02T15:04:05.000000000Z"

type RoomID string

// Post represents one persisted chat message.
type Post struct {
	ID       uuid.UUID
	Room     RoomID
	UserID   string
	Username string
	Message  string
	Date     time.Time
}
