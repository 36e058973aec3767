package domain

import (
	"time"

	"github.com/google/uuid"
)

// Kind tags a store row with what the message was.
type Kind string

const (
	KindText         Kind = "text"
	KindPhoto        Kind = "photo"
	KindVideo        Kind = "video"
	KindAudio        Kind = "audio"
	KindVoice        Kind = "voice"
	KindDocument     Kind = "document"
	KindSticker      Kind = "sticker"
	KindVideoNote    Kind = "video_note"
	KindDiscordEvent Kind = "discord_event"
	KindSteamEvent   Kind = "steam_event"
)

// Message is one row of the append-only history log: every message
// observed in the destination chat plus every notification the relay
// delivered itself.
type Message struct {
	ID        uuid.UUID
	User      string
	MessageID string
	Text      string
	RepliedTo string
	FromBot   bool
	Kind      Kind
	At        time.Time
}

// DeliveredMessage is the single externally visible message treated as
// current for an aggregation key. Later flushes edit it in place until
// a permanent edit failure forces a new send.
type DeliveredMessage struct {
	AggregationKey string
	MessageID      int64
	Text           string
	DeliveredAt    time.Time
}
