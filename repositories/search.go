package repositories

import (
	"chat-rooms/domain"
	"context"
	"log/slog"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/google/uuid"
)

// SearchIndex maintains a full-text index over posts, fed asynchronously
// by the event fan-out pipeline. It is best-effort: the index is not part
// of the durability boundary and may lag the room log.
type SearchIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewSearchIndex(writer *bluge.Writer, log *slog.Logger) *SearchIndex {
	return &SearchIndex{writer: writer, log: log}
}

func (s *SearchIndex) Index(post domain.Post) error {
	doc := bluge.NewDocument(post.ID.String()).
		AddField(bluge.NewKeywordField("room", string(post.Room)).StoreValue()).
		AddField(bluge.NewKeywordField("userId", post.UserID).StoreValue()).
		AddField(bluge.NewKeywordField("username", post.Username).StoreValue()).
		AddField(bluge.NewTextField("message", post.Message).StoreValue()).
		AddField(bluge.NewKeywordField("date", post.Date.UTC().Format(domain.PostTimeLayout)).StoreValue().Sortable())
	return s.writer.Update(doc.ID(), doc)
}

// Search returns up to limit posts of one room matching the query terms,
// newest first.
func (s *SearchIndex) Search(ctx context.Context, room domain.RoomID, terms string, limit int) ([]domain.Post, error) {
	reader, err := s.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	query := bluge.NewBooleanQuery().
		AddMust(bluge.NewTermQuery(string(room)).SetField("room")).
		AddMust(bluge.NewMatchQuery(terms).SetField("message"))
	request := bluge.NewTopNSearch(limit, query).SortBy([]string{"-date"})

	iterator, err := reader.Search(ctx, request)
	if err != nil {
		return nil, err
	}

	var posts []domain.Post
	for {
		match, err := iterator.Next()
		if err != nil {
			return nil, err
		}
		if match == nil {
			break
		}

		var post domain.Post
		post.Room = room
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				if id, parseErr := uuid.Parse(string(value)); parseErr == nil {
					post.ID = id
				}
			case "userId":
				post.UserID = string(value)
			case "username":
				post.Username = string(value)
			case "message":
				post.Message = string(value)
			case "date":
				if date, parseErr := time.Parse(domain.PostTimeLayout, string(value)); parseErr == nil {
					post.Date = date
				}
			}
			return true
		})
		if err != nil {
			s.log.Debug("Skipping unreadable search hit", "error", err)
			continue
		}
		posts = append(posts, post)
	}
	return posts, nil
}
