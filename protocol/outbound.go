package protocol

import (
	"chat-rooms/domain"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// WirePost is the JSON shape of a post on the wire. The same shape backs
// the durable log values, so stored history replays byte-compatible
// frames.
type WirePost struct {
	Action   string `json:"action"`
	ID       string `json:"id"`
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Message  string `json:"message"`
	Date     string `json:"date"`
}

// RecentFrame is the one-shot history snapshot sent after a successful
// connected handshake.
type RecentFrame struct {
	Action string     `json:"action"`
	Posts  []WirePost `json:"posts"`
}

func ToWirePost(p domain.Post) WirePost {
	return WirePost{
		Action:   "post",
		ID:       p.ID.String(),
		RoomID:   string(p.Room),
		UserID:   p.UserID,
		Username: p.Username,
		Message:  p.Message,
		Date:     p.Date.UTC().Format(domain.PostTimeLayout),
	}
}

func ToWirePosts(posts []domain.Post) []WirePost {
	return lo.Map(posts, func(p domain.Post, _ int) WirePost {
		return ToWirePost(p)
	})
}

func FromWirePost(w WirePost) (domain.Post, error) {
	id, err := uuid.Parse(w.ID)
	if err != nil {
		return domain.Post{}, err
	}
	date, err := time.Parse(domain.PostTimeLayout, w.Date)
	if err != nil {
		return domain.Post{}, err
	}
	return domain.Post{
		ID:       id,
		Room:     domain.RoomID(w.RoomID),
		UserID:   w.UserID,
		Username: w.Username,
		Message:  w.Message,
		Date:     date,
	}, nil
}

func EncodePost(p domain.Post) ([]byte, error) {
	return json.Marshal(ToWirePost(p))
}

func EncodeRecent(posts []domain.Post) ([]byte, error) {
	frame := RecentFrame{Action: "recent", Posts: ToWirePosts(posts)}
	if frame.Posts == nil {
		frame.Posts = []WirePost{}
	}
	return json.Marshal(frame)
}
