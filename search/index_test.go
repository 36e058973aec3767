package search

import (
	"chat-relay/domain"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func openIndexForTest(t *testing.T) *Index {
	t.Helper()
	index, err := OpenInMemory(logs.GetLoggerFromLevel(slog.LevelDebug))
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })
	return index
}

func TestIndex_AddAndSearch(t *testing.T) {
	req := require.New(t)
	index := openIndexForTest(t)
	at := time.Now().UTC()

	rows := []domain.Message{
		{ID: uuid.New(), User: "alice", MessageID: "1", Text: "deploying the new relay tonight", Kind: domain.KindText, At: at},
		{ID: uuid.New(), User: "bob", MessageID: "2", Text: "lunch plans anyone", Kind: domain.KindText, At: at.Add(time.Second)},
	}
	for _, msg := range rows {
		req.NoError(index.Add(msg))
	}

	found, err := index.Search(context.Background(), "relay", 10)
	req.NoError(err)
	req.Len(found, 1)
	req.Equal("alice", found[0].User)
	req.Equal("deploying the new relay tonight", found[0].Text)
	req.Equal("1", found[0].MessageID)
	req.Equal(rows[0].ID, found[0].ID)
}

func TestIndex_ReAddingSameRowIsIdempotent(t *testing.T) {
	req := require.New(t)
	index := openIndexForTest(t)

	msg := domain.Message{
		ID:   uuid.New(),
		User: "alice",
		Text: "replayed webhook content",
		Kind: domain.KindText,
		At:   time.Now().UTC(),
	}
	req.NoError(index.Add(msg))
	req.NoError(index.Add(msg))

	found, err := index.Search(context.Background(), "replayed", 10)
	req.NoError(err)
	req.Len(found, 1)
}

func TestIndex_NoMatches(t *testing.T) {
	req := require.New(t)
	index := openIndexForTest(t)

	req.NoError(index.Add(domain.Message{
		ID:   uuid.New(),
		User: "alice",
		Text: "completely unrelated",
		Kind: domain.KindText,
		At:   time.Now().UTC(),
	}))

	found, err := index.Search(context.Background(), "zebra", 10)
	req.NoError(err)
	req.Empty(found)
}

func TestIndex_LimitBoundsResults(t *testing.T) {
	req := require.New(t)
	index := openIndexForTest(t)
	at := time.Now().UTC()

	for i := 0; i < 5; i++ {
		req.NoError(index.Add(domain.Message{
			ID:   uuid.New(),
			User: "alice",
			Text: "repeated keyword gopher",
			Kind: domain.KindText,
			At:   at.Add(time.Duration(i) * time.Second),
		}))
	}

	found, err := index.Search(context.Background(), "gopher", 2)
	req.NoError(err)
	req.Len(found, 2)
}
