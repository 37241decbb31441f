package domain

import "github.com/google/uuid"

// NewRoomID allocates a fresh opaque room identifier.
// Allocation carries no state; a room only becomes live when its worker
// is resolved for the first time.
func NewRoomID() RoomID {
	return RoomID(uuid.NewString())
}
