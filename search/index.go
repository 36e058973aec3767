// Package search maintains a full-text index over the history log.
package search

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/google/uuid"
)

// Index wraps a Bluge writer. Writes go through a mutex because the
// writer is single-writer by design; reads open their own snapshot.
type Index struct {
	mu     sync.Mutex
	writer *bluge.Writer
	log    *slog.Logger
}

var _ contract.ISearcher = (*Index)(nil)

// Open creates or reopens the on-disk index.
func Open(log *slog.Logger, path string) (*Index, error) {
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(path))
	if err != nil {
		return nil, err
	}
	return &Index{writer: writer, log: log}, nil
}

// OpenInMemory backs the index with memory only, used by tests.
func OpenInMemory(log *slog.Logger) (*Index, error) {
	writer, err := bluge.OpenWriter(bluge.InMemoryOnlyConfig())
	if err != nil {
		return nil, err
	}
	return &Index{writer: writer, log: log}, nil
}

// Add indexes one history row. Re-adding the same row id replaces the
// previous document, so replayed webhooks stay idempotent.
func (i *Index) Add(msg domain.Message) error {
	doc := bluge.NewDocument(msg.ID.String()).
		AddField(bluge.NewTextField("text", msg.Text).StoreValue()).
		AddField(bluge.NewKeywordField("user", msg.User).StoreValue()).
		AddField(bluge.NewKeywordField("kind", string(msg.Kind)).StoreValue()).
		AddField(bluge.NewKeywordField("message_id", msg.MessageID).StoreValue()).
		AddField(bluge.NewKeywordField("at", msg.At.Format(time.RFC3339Nano)).StoreValue())

	i.mu.Lock()
	defer i.mu.Unlock()
	return i.writer.Update(doc.ID(), doc)
}

// Search runs a match query over message text and rebuilds rows from
// stored fields.
func (i *Index) Search(ctx context.Context, query string, limit int) ([]domain.Message, error) {
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := reader.Close(); err != nil {
			i.log.Warn("Search reader not closed cleanly", "error", err)
		}
	}()

	matchQuery := bluge.NewMatchQuery(query).SetField("text")
	request := bluge.NewTopNSearch(limit, matchQuery)

	iterator, err := reader.Search(ctx, request)
	if err != nil {
		return nil, err
	}

	var messages []domain.Message
	for {
		match, err := iterator.Next()
		if err != nil {
			return nil, err
		}
		if match == nil {
			break
		}

		var msg domain.Message
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				if id, parseErr := uuid.Parse(string(value)); parseErr == nil {
					msg.ID = id
				}
			case "text":
				msg.Text = string(value)
			case "user":
				msg.User = string(value)
			case "kind":
				msg.Kind = domain.Kind(value)
			case "message_id":
				msg.MessageID = string(value)
			case "at":
				if at, parseErr := time.Parse(time.RFC3339Nano, string(value)); parseErr == nil {
					msg.At = at
				}
			}
			return true
		})
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.writer.Close()
}
