// Package api exposes the inbound HTTP surface: webhook ingestion,
// history reads, allowlist management, and the health report.
package api

import (
	"chat-relay/adapters"
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/projection"
	"chat-relay/runtime"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const defaultHistoryLimit = 100

type Handler struct {
	log       *slog.Logger
	relay     *runtime.Orchestrator
	voice     adapters.VoiceAdapter
	presence  adapters.PresenceAdapter
	allowlist contract.IAllowlistRepository
}

func NewHandler(log *slog.Logger, relay *runtime.Orchestrator,
	voice adapters.VoiceAdapter, presence adapters.PresenceAdapter,
	allowlist contract.IAllowlistRepository) *Handler {
	return &Handler{
		log:       log,
		relay:     relay,
		voice:     voice,
		presence:  presence,
		allowlist: allowlist,
	}
}

// VoiceState ingests one voice webhook payload. Malformed payloads are
// rejected with 400; accepted events enter the aggregation window and
// the handler returns immediately.
func (h *Handler) VoiceState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}

	var payload adapters.VoiceStatePayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	events, err := h.voice.Normalize(payload, time.Now().UTC())
	if err != nil {
		h.relay.Reject()
		writeError(w, http.StatusBadRequest, err)
		return
	}
	for _, event := range events {
		h.relay.Ingest(event)
	}

	writeJSON(w, http.StatusAccepted, map[string]int{"accepted": len(events)})
}

// Profiles ingests one game presence poll result.
func (h *Handler) Profiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}

	var payload adapters.ProfilePayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	event, err := h.presence.Normalize(payload, time.Now().UTC())
	if err != nil {
		h.relay.Reject()
		writeError(w, http.StatusBadRequest, err)
		return
	}
	h.relay.Ingest(event)

	writeJSON(w, http.StatusAccepted, map[string]int{"accepted": 1})
}

type telegramUser struct {
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	IsBot     bool   `json:"is_bot"`
}

type telegramMessage struct {
	MessageID int64        `json:"message_id"`
	From      telegramUser `json:"from"`
	Date      int64        `json:"date"`
	Text      string       `json:"text"`
	Caption   string       `json:"caption"`
	ReplyTo   *struct {
		MessageID int64 `json:"message_id"`
	} `json:"reply_to_message"`
	Photo     []interface{} `json:"photo"`
	Video     interface{}   `json:"video"`
	Audio     interface{}   `json:"audio"`
	Voice     interface{}   `json:"voice"`
	Document  interface{}   `json:"document"`
	Sticker   interface{}   `json:"sticker"`
	VideoNote interface{}   `json:"video_note"`
}

type telegramUpdate struct {
	UpdateID int64            `json:"update_id"`
	Message  *telegramMessage `json:"message"`
	Edited   *telegramMessage `json:"edited_message"`
}

// TelegramUpdate records one observed chat message into the history
// log. Updates without a message payload are acknowledged and skipped.
func (h *Handler) TelegramUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}

	var update telegramUpdate
	if err := decodeJSON(r, &update); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	msg := update.Message
	if msg == nil {
		msg = update.Edited
	}
	if msg == nil {
		writeJSON(w, http.StatusOK, map[string]bool{"recorded": false})
		return
	}

	h.relay.Record(toHistoryRow(msg))
	writeJSON(w, http.StatusOK, map[string]bool{"recorded": true})
}

func toHistoryRow(msg *telegramMessage) domain.Message {
	user := msg.From.Username
	if user == "" {
		user = msg.From.FirstName
	}
	text := msg.Text
	if text == "" {
		text = msg.Caption
	}
	var repliedTo string
	if msg.ReplyTo != nil {
		repliedTo = strconv.FormatInt(msg.ReplyTo.MessageID, 10)
	}
	at := time.Now().UTC()
	if msg.Date > 0 {
		at = time.Unix(msg.Date, 0).UTC()
	}
	return domain.Message{
		ID:        uuid.New(),
		User:      user,
		MessageID: strconv.FormatInt(msg.MessageID, 10),
		Text:      text,
		RepliedTo: repliedTo,
		FromBot:   msg.From.IsBot,
		Kind:      messageKind(msg),
		At:        at,
	}
}

func messageKind(msg *telegramMessage) domain.Kind {
	switch {
	case len(msg.Photo) > 0:
		return domain.KindPhoto
	case msg.Video != nil:
		return domain.KindVideo
	case msg.Audio != nil:
		return domain.KindAudio
	case msg.Voice != nil:
		return domain.KindVoice
	case msg.Document != nil:
		return domain.KindDocument
	case msg.Sticker != nil:
		return domain.KindSticker
	case msg.VideoNote != nil:
		return domain.KindVideoNote
	}
	return domain.KindText
}

// Messages serves recent history rows, newest first, optionally
// filtered by author.
func (h *Handler) Messages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}

	limit := queryLimit(r, defaultHistoryLimit)
	user := strings.TrimSpace(r.URL.Query().Get("user"))

	var (
		messages []domain.Message
		err      error
	)
	if user != "" {
		messages, err = h.relay.GetMessagesByUser(user, limit)
	} else {
		messages, err = h.relay.GetMessages(limit)
	}
	if err != nil {
		h.log.Error("Reading history failed", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(messages),
		"messages": messages,
	})
}

// SearchMessages serves full-text matches over the history log.
func (h *Handler) SearchMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("query parameter q is required"))
		return
	}

	messages, err := h.relay.Search(r.Context(), query, queryLimit(r, defaultHistoryLimit))
	if err != nil {
		h.log.Error("Searching history failed", "query", query, "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(messages),
		"messages": messages,
	})
}

// Digest serves the filtered conversation transcript and its stats.
func (h *Handler) Digest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}

	messages, err := h.relay.GetMessages(queryLimit(r, defaultHistoryLimit))
	if err != nil {
		h.log.Error("Reading history for digest failed", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, projection.Prepare(messages, projection.DefaultMaxChars))
}

type allowedUserPayload struct {
	User string `json:"user"`
}

// AllowedUsers lists or extends the allowlist.
func (h *Handler) AllowedUsers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		users, err := h.allowlist.List()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"users": users})
	case http.MethodPost:
		var payload allowedUserPayload
		if err := decodeJSON(r, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if strings.TrimSpace(payload.User) == "" {
			writeError(w, http.StatusBadRequest, fmt.Errorf("user is required"))
			return
		}
		if err := h.allowlist.Add(payload.User); err != nil {
			if stderrors.Is(err, errors.ErrUserAlreadyAllowed) {
				writeError(w, http.StatusConflict, err)
				return
			}
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"user": payload.User})
	default:
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
	}
}

// AllowedUserByName removes one user from the allowlist.
func (h *Handler) AllowedUserByName(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}

	user := strings.TrimPrefix(r.URL.Path, "/allowed_users/")
	if user == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("user is required"))
		return
	}

	if err := h.allowlist.Remove(user); err != nil {
		if stderrors.Is(err, errors.ErrUserNotAllowed) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"user": user})
}

// Health serves the relay counters and process self-stats.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.relay.Stats())
}

// Root answers liveness probes.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func queryLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return fallback
	}
	return limit
}
