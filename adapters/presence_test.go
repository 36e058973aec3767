package adapters

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func TestPresenceAdapter_StartedPlaying(t *testing.T) {
	req := require.New(t)
	adapter := NewPresenceAdapter(logs.GetLoggerFromLevel(slog.LevelDebug))
	now := time.Now().UTC()

	event, err := adapter.Normalize(ProfilePayload{
		Profile: "gaben",
		Status:  "Currently In-Game",
		Game:    "Half-Life 3",
	}, now)

	req.NoError(err)
	req.Equal("steam:gaben", event.SourceKey)
	req.Equal(domain.StartedPlaying, event.Kind)
	req.Equal("Half-Life 3", event.Game)
	req.True(event.Valid())
}

func TestPresenceAdapter_StoppedPlaying(t *testing.T) {
	req := require.New(t)
	adapter := NewPresenceAdapter(logs.GetLoggerFromLevel(slog.LevelDebug))

	event, err := adapter.Normalize(ProfilePayload{
		Profile: "gaben",
		Status:  "Not Playing",
	}, time.Now().UTC())

	req.NoError(err)
	req.Equal(domain.StoppedPlaying, event.Kind)
}

func TestPresenceAdapter_RejectsUnknownStatus(t *testing.T) {
	req := require.New(t)
	adapter := NewPresenceAdapter(logs.GetLoggerFromLevel(slog.LevelDebug))

	_, err := adapter.Normalize(ProfilePayload{
		Profile: "gaben",
		Status:  "Online",
	}, time.Now().UTC())

	req.ErrorIs(err, errors.ErrMalformedEvent)
}

func TestPresenceAdapter_RejectsMissingProfile(t *testing.T) {
	req := require.New(t)
	adapter := NewPresenceAdapter(logs.GetLoggerFromLevel(slog.LevelDebug))

	_, err := adapter.Normalize(ProfilePayload{
		Status: "Not Playing",
	}, time.Now().UTC())

	req.ErrorIs(err, errors.ErrMalformedEvent)
}
