package sink

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/search"
	"context"
	"log/slog"
)

// SearchSink feeds observed messages into the full-text index. Only
// rows carrying text are worth indexing.
type SearchSink struct {
	index *search.Index
	log   *slog.Logger
}

var _ contract.MessageSink = SearchSink{}

func NewSearchSink(index *search.Index, log *slog.Logger) SearchSink {
	return SearchSink{index: index, log: log}
}

func (s SearchSink) Consume(_ context.Context, msg domain.Message) error {
	if msg.Text == "" {
		return nil
	}
	return s.index.Add(msg)
}
