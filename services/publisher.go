package services

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"
)

// Publisher correlates each flushed digest with the previously
// delivered message for its aggregation key: edit in place while the
// current message is young enough, send a new message otherwise.
//
// The lookup-then-edit/send sequence is a critical section per key
// (sharded keyed locks), so two racing flushes for the same key can
// never both conclude "no current message" and double-send. Distinct
// keys proceed in parallel.
type Publisher struct {
	repository contract.IMessageRepository
	client     contract.IDeliveryClient
	staleness  time.Duration
	botName    string
	log        *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

var _ contract.IPublisher = (*Publisher)(nil)

func NewPublisher(log *slog.Logger, repository contract.IMessageRepository,
	client contract.IDeliveryClient, staleness time.Duration, botName string) *Publisher {
	return &Publisher{
		repository: repository,
		client:     client,
		staleness:  staleness,
		botName:    botName,
		log:        log,
		locks:      make(map[string]*sync.Mutex),
	}
}

// Publish delivers the rendered text for an aggregation key. After a
// successful return exactly one DeliveredMessage is current for the
// key; superseded rows stay in the log as history.
func (p *Publisher) Publish(ctx context.Context, aggregationKey, text string, kind domain.Kind) error {
	lock := p.keyLock(aggregationKey)
	lock.Lock()
	defer lock.Unlock()

	current, err := p.repository.CurrentMessage(aggregationKey)
	switch {
	case err == nil:
		return p.editOrResend(ctx, aggregationKey, current, text, kind)
	case stderrors.Is(err, errors.ErrNoCurrentMessage):
		return p.sendNew(ctx, aggregationKey, text, kind)
	default:
		// Store unreachable: never guess an edit target, a wrong one
		// could rewrite an unrelated message. A fresh send is safe.
		p.log.Warn("Store lookup failed, falling back to new send",
			"key", aggregationKey, "error", err)
		return p.sendNew(ctx, aggregationKey, text, kind)
	}
}

func (p *Publisher) editOrResend(ctx context.Context, aggregationKey string,
	current domain.DeliveredMessage, text string, kind domain.Kind) error {
	if time.Since(current.DeliveredAt) > p.staleness {
		return p.sendNew(ctx, aggregationKey, text, kind)
	}

	err := p.client.Edit(ctx, current.MessageID, text)
	if err == nil {
		current.Text = text
		if err = p.repository.SetCurrentMessage(current); err != nil {
			p.log.Error("Edited message could not be re-recorded", "key", aggregationKey, "error", err)
		}
		p.record(current.MessageID, text, kind)
		return nil
	}
	if stderrors.Is(err, errors.ErrMessageNotEditable) {
		p.log.Info("Edit target gone, sending a new message",
			"key", aggregationKey, "message_id", current.MessageID)
		return p.sendNew(ctx, aggregationKey, text, kind)
	}
	return fmt.Errorf("edit of message %d failed: %w", current.MessageID, err)
}

func (p *Publisher) sendNew(ctx context.Context, aggregationKey, text string, kind domain.Kind) error {
	messageID, err := p.client.Send(ctx, text)
	if err != nil {
		return fmt.Errorf("send for key %q failed: %w", aggregationKey, err)
	}

	dm := domain.DeliveredMessage{
		AggregationKey: aggregationKey,
		MessageID:      messageID,
		Text:           text,
		DeliveredAt:    time.Now().UTC(),
	}
	if err = p.repository.SetCurrentMessage(dm); err != nil {
		// The message is out; losing the pointer only costs one
		// extra send on the next flush.
		p.log.Error("Current message pointer not persisted", "key", aggregationKey, "error", err)
	}
	p.record(messageID, text, kind)
	return nil
}

// record appends the delivered notification to the history log.
func (p *Publisher) record(messageID int64, text string, kind domain.Kind) {
	err := p.repository.StoreMessage(domain.Message{
		User:      p.botName,
		MessageID: strconv.FormatInt(messageID, 10),
		Text:      text,
		FromBot:   true,
		Kind:      kind,
		At:        time.Now().UTC(),
	})
	if err != nil {
		p.log.Error("Delivered message not appended to history", "error", err)
	}
}

func (p *Publisher) keyLock(aggregationKey string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	lock, ok := p.locks[aggregationKey]
	if !ok {
		lock = &sync.Mutex{}
		p.locks[aggregationKey] = lock
	}
	return lock
}
