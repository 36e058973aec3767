// Package adapters normalizes provider-specific webhook payloads into
// canonical events. Malformed entries are dropped and logged here, at
// the boundary; they never reach the aggregator or block other keys.
package adapters

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

var validate = validator.New()

// VoiceStatePayload is the inbound voice webhook body. Three forms
// are accepted:
//   - legacy single event: {user, channel, users_in_channel, event}
//   - pre-aggregated:      {channel, users_in_channel, events[]}
//   - raw state change:    {user, channel, users_in_channel,
//     before_channel, after_channel}, classified locally so that
//     mute/deaf toggles (identical channels) are suppressed.
type VoiceStatePayload struct {
	User           string              `json:"user"`
	UserID         string              `json:"user_id"`
	Channel        string              `json:"channel" validate:"required"`
	UsersInChannel []string            `json:"users_in_channel"`
	Event          string              `json:"event"`
	BeforeChannel  string              `json:"before_channel"`
	AfterChannel   string              `json:"after_channel"`
	Events         []VoiceEventPayload `json:"events"`
}

type VoiceEventPayload struct {
	User   string `json:"user" validate:"required"`
	UserID string `json:"user_id"`
	Event  string `json:"event" validate:"required"`
}

type VoiceAdapter struct {
	log *slog.Logger
}

func NewVoiceAdapter(log *slog.Logger) VoiceAdapter {
	return VoiceAdapter{log: log}
}

// Normalize turns one webhook payload into canonical events. A payload
// that fails validation is rejected whole; a bad entry inside the
// pre-aggregated form only costs that entry.
func (a VoiceAdapter) Normalize(payload VoiceStatePayload, receivedAt time.Time) ([]domain.Event, error) {
	if err := validate.Struct(payload); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrMalformedEvent, err)
	}

	members := lo.Map(payload.UsersInChannel, func(name string, _ int) domain.User {
		return domain.User{Name: name}
	})

	if len(payload.Events) > 0 {
		return a.normalizeBatch(payload, members, receivedAt), nil
	}

	kind, ok, err := a.classify(payload)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Self-state toggle with no channel delta: nothing to relay.
		a.log.Debug("Suppressing non-channel-changing update",
			"user", payload.User, "channel", payload.Channel)
		return nil, nil
	}

	event := domain.Event{
		SourceKey:      payload.Channel,
		Subject:        domain.User{ID: payload.UserID, Name: payload.User},
		Kind:           kind,
		OccurredAt:     receivedAt,
		ContextMembers: members,
	}
	if !event.Valid() {
		return nil, fmt.Errorf("%w: missing subject", errors.ErrMalformedEvent)
	}
	return []domain.Event{event}, nil
}

func (a VoiceAdapter) normalizeBatch(payload VoiceStatePayload, members []domain.User, receivedAt time.Time) []domain.Event {
	var events []domain.Event
	for _, entry := range payload.Events {
		if err := validate.Struct(entry); err != nil {
			a.log.Warn("Dropping malformed voice event entry",
				"channel", payload.Channel, "error", err)
			continue
		}
		kind, ok := voiceKind(entry.Event)
		if !ok {
			a.log.Warn("Dropping voice event with unknown kind",
				"channel", payload.Channel, "kind", entry.Event)
			continue
		}
		events = append(events, domain.Event{
			SourceKey:      payload.Channel,
			Subject:        domain.User{ID: entry.UserID, Name: entry.User},
			Kind:           kind,
			OccurredAt:     receivedAt,
			ContextMembers: members,
		})
	}
	return events
}

// classify resolves the event kind either from the explicit event
// field or, for raw state changes, from the before/after channels.
func (a VoiceAdapter) classify(payload VoiceStatePayload) (domain.EventKind, bool, error) {
	if payload.Event != "" {
		kind, ok := voiceKind(payload.Event)
		if !ok {
			return "", false, fmt.Errorf("%w: unknown event %q", errors.ErrMalformedEvent, payload.Event)
		}
		return kind, true, nil
	}
	kind, changed := domain.ChannelDelta(
		domain.VoiceState{ChannelID: payload.BeforeChannel},
		domain.VoiceState{ChannelID: payload.AfterChannel},
	)
	return kind, changed, nil
}

func voiceKind(event string) (domain.EventKind, bool) {
	switch event {
	case "joined":
		return domain.Joined, true
	case "left":
		return domain.Left, true
	case "switched", "moved":
		return domain.Switched, true
	}
	return "", false
}
