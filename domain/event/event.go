package event

import (
	"chat-rooms/domain"
)

type DomainEvent interface {
	RoomID() domain.RoomID
}

type PostCreated struct {
	Post domain.Post
}

func (e PostCreated) RoomID() domain.RoomID {
	return e.Post.Room
}

type ParticipantJoined struct {
	Room     domain.RoomID
	UserID   string
	Username string
}

func (e ParticipantJoined) RoomID() domain.RoomID {
	return e.Room
}

type ParticipantLeft struct {
	Room   domain.RoomID
	UserID string
}

func (e ParticipantLeft) RoomID() domain.RoomID {
	return e.Room
}
