package adapters

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"fmt"
	"log/slog"
	"time"
)

// Steam profile statuses as scraped from the community page.
const (
	statusPlaying    = "Currently In-Game"
	statusNotPlaying = "Not Playing"
)

// ProfilePayload is the inbound game-presence webhook body.
type ProfilePayload struct {
	Profile string `json:"profile" validate:"required"`
	Status  string `json:"status" validate:"required"`
	Game    string `json:"game"`
}

type PresenceAdapter struct {
	log *slog.Logger
}

func NewPresenceAdapter(log *slog.Logger) PresenceAdapter {
	return PresenceAdapter{log: log}
}

// Normalize maps a profile status change onto a presence event. Each
// profile is its own source key so one noisy profile never delays
// another's notification.
func (a PresenceAdapter) Normalize(payload ProfilePayload, receivedAt time.Time) (domain.Event, error) {
	if err := validate.Struct(payload); err != nil {
		return domain.Event{}, fmt.Errorf("%w: %v", errors.ErrMalformedEvent, err)
	}

	var kind domain.EventKind
	switch payload.Status {
	case statusPlaying:
		kind = domain.StartedPlaying
	case statusNotPlaying:
		kind = domain.StoppedPlaying
	default:
		return domain.Event{}, fmt.Errorf("%w: unknown status %q", errors.ErrMalformedEvent, payload.Status)
	}

	return domain.Event{
		SourceKey:  "steam:" + payload.Profile,
		Subject:    domain.User{ID: payload.Profile, Name: payload.Profile},
		Kind:       kind,
		Game:       payload.Game,
		OccurredAt: receivedAt,
	}, nil
}
