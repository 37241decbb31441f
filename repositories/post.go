//go:generate go run go.uber.org/mock/mockgen -source=post.go -destination=../mocks/mock_post_repository.go -package=mocks
package repositories

import (
	"chat-rooms/domain"
	"chat-rooms/protocol"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
)

type IPostRepository interface {
	Append(post domain.Post) error
	Recent(room domain.RoomID, limit int) ([]domain.Post, error)
}

// PostRepository is the append-only room log, backed by BadgerDB.
//
// The key is formatted as "room#{roomId}#date#{timestamp}#id#{uuid}" to:
//  1. Isolate each room's log under its own prefix.
//  2. Ensure chronological sorting: the timestamp encoding is fixed-width
//     UTC nanoseconds, so lexicographical order is chronological order.
//  3. Disambiguate two posts created at the same nanosecond via the UUID.
//
// Values are the JSON wire shape of the post, so history reads replay the
// exact frames clients received at broadcast time.
type PostRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewPostRepository(db *badger.DB, log *slog.Logger) *PostRepository {
	return &PostRepository{db: db, log: log}
}

func postKey(post domain.Post) []byte {
	return []byte(fmt.Sprintf("room#%s#date#%s#id#%s",
		post.Room,
		post.Date.UTC().Format(domain.PostTimeLayout),
		post.ID,
	))
}

func roomPrefix(room domain.RoomID) []byte {
	return []byte(fmt.Sprintf("room#%s#date#", room))
}

// Append durably persists the post. The write transaction has committed
// when Append returns; this is the durability boundary of the system.
func (r *PostRepository) Append(post domain.Post) error {
	value, err := json.Marshal(protocol.ToWirePost(post))
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(postKey(post), value)
	})
}

// Recent returns up to limit posts: the newest ones for the room, in
// ascending chronological order for display. The iterator walks the key
// range backwards from the end of the room's prefix; a forward prefix
// scan would return the oldest entries instead.
func (r *PostRepository) Recent(room domain.RoomID, limit int) ([]domain.Post, error) {
	var values [][]byte
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := roomPrefix(room)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Position past the last possible key of the room, then walk back.
		seekKey := append(append([]byte{}, prefix...), 0xFF)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if limit >= 0 && len(values) == limit {
				break
			}
			err := it.Item().Value(func(value []byte) error {
				values = append(values, append([]byte{}, value...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var posts []domain.Post
	for _, value := range values {
		var wire protocol.WirePost
		if err = json.Unmarshal(value, &wire); err != nil {
			return nil, err
		}
		post, err := protocol.FromWirePost(wire)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	// The reverse walk collected newest first; flip back for display.
	return lo.Reverse(posts), nil
}
