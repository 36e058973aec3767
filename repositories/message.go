package repositories

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

const (
	logPrefix     = "msg:"
	currentPrefix = "current:"
)

type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

var _ contract.IMessageRepository = MessageRepository{}

func NewMessageRepository(db *badger.DB, log *slog.Logger) MessageRepository {
	return MessageRepository{db: db, log: log}
}

// diskMessage is the JSON shape persisted in BadgerDB.
type diskMessage struct {
	ID        string    `json:"id"`
	User      string    `json:"user"`
	MessageID string    `json:"message_id"`
	Text      string    `json:"text"`
	RepliedTo string    `json:"replied_to,omitempty"`
	FromBot   bool      `json:"from_bot"`
	Kind      string    `json:"kind"`
	At        time.Time `json:"at"`
}

type diskDelivered struct {
	AggregationKey string    `json:"aggregation_key"`
	MessageID      int64     `json:"message_id"`
	Text           string    `json:"text"`
	DeliveredAt    time.Time `json:"delivered_at"`
}

// StoreMessage appends a row to the history log.
// The key is formatted as "msg:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Prevent data loss by using UUID as a collision disconnector if two messages
//     arrive at the same nanosecond.
func (m MessageRepository) StoreMessage(msg domain.Message) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	key := fmt.Sprintf("%s%019d:%s", logPrefix, msg.At.UnixNano(), msg.ID)
	bytes, err := json.Marshal(fromMessage(msg))
	if err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), bytes)
	})
}

// GetMessages returns the most recent rows, newest first. Thanks to
// the padded timestamp in the key, a reverse prefix scan is already in
// time order.
func (m MessageRepository) GetMessages(limit int) ([]domain.Message, error) {
	return m.scan(limit, func(diskMessage) bool { return true })
}

// GetMessagesByUser returns the most recent rows authored by one user.
func (m MessageRepository) GetMessagesByUser(user string, limit int) ([]domain.Message, error) {
	return m.scan(limit, func(dm diskMessage) bool { return dm.User == user })
}

func (m MessageRepository) scan(limit int, keep func(diskMessage) bool) ([]domain.Message, error) {
	var rows []diskMessage
	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		prefix := []byte(logPrefix)
		// Seek past the newest possible log key, then walk backwards.
		seekKey := append([]byte{}, prefix...)
		seekKey = append(seekKey, []byte("9999999999999999999:")...)

		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(rows) == limit {
				m.log.Debug(fmt.Sprintf("Maximum of %d messages reached", limit))
				break
			}
			err := it.Item().Value(func(value []byte) error {
				var dm diskMessage
				if err := json.Unmarshal(value, &dm); err != nil {
					return err
				}
				if keep(dm) {
					rows = append(rows, dm)
				}
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

	messages := make([]domain.Message, 0, len(rows))
	for _, dm := range rows {
		msg, err := toMessage(dm)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// CurrentMessage resolves the single editable message for an
// aggregation key. Returns errors.ErrNoCurrentMessage when the key has
// never been published; any other failure means the store could not be
// consulted and the caller must fail safe.
func (m MessageRepository) CurrentMessage(aggregationKey string) (domain.DeliveredMessage, error) {
	var dd diskDelivered
	err := m.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(currentPrefix + aggregationKey))
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return json.Unmarshal(value, &dd)
		})
	})
	if err == badger.ErrKeyNotFound {
		return domain.DeliveredMessage{}, errors.ErrNoCurrentMessage
	}
	if err != nil {
		return domain.DeliveredMessage{}, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}
	return domain.DeliveredMessage{
		AggregationKey: dd.AggregationKey,
		MessageID:      dd.MessageID,
		Text:           dd.Text,
		DeliveredAt:    dd.DeliveredAt.UTC(),
	}, nil
}

// SetCurrentMessage replaces the current pointer for the key. The log
// row recording the send is appended separately; the pointer is an
// index, never history.
func (m MessageRepository) SetCurrentMessage(dm domain.DeliveredMessage) error {
	bytes, err := json.Marshal(diskDelivered{
		AggregationKey: dm.AggregationKey,
		MessageID:      dm.MessageID,
		Text:           dm.Text,
		DeliveredAt:    dm.DeliveredAt,
	})
	if err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(currentPrefix+dm.AggregationKey), bytes)
	})
}

func fromMessage(msg domain.Message) diskMessage {
	return diskMessage{
		ID:        msg.ID.String(),
		User:      msg.User,
		MessageID: msg.MessageID,
		Text:      msg.Text,
		RepliedTo: msg.RepliedTo,
		FromBot:   msg.FromBot,
		Kind:      string(msg.Kind),
		At:        msg.At,
	}
}

func toMessage(dm diskMessage) (domain.Message, error) {
	parsedID, err := uuid.Parse(dm.ID)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:        parsedID,
		User:      dm.User,
		MessageID: dm.MessageID,
		Text:      dm.Text,
		RepliedTo: dm.RepliedTo,
		FromBot:   dm.FromBot,
		Kind:      domain.Kind(dm.Kind),
		At:        dm.At.UTC(),
	}, nil
}

// Users lists distinct authors seen in the log, most recent first.
func (m MessageRepository) Users(limit int) ([]string, error) {
	messages, err := m.GetMessages(0)
	if err != nil {
		return nil, err
	}
	users := lo.Uniq(lo.Map(messages, func(msg domain.Message, _ int) string {
		return msg.User
	}))
	users = lo.Filter(users, func(u string, _ int) bool {
		return strings.TrimSpace(u) != ""
	})
	if limit > 0 && len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}
