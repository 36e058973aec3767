//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-relay/domain"
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// IAggregator buffers events per source key and flushes one digest
// per cooldown window.
type IAggregator interface {
	Record(e domain.Event)
}

// IPublisher resolves a rendered digest into one external message:
// an in-place edit of the current message for the key when possible,
// a new send otherwise.
type IPublisher interface {
	Publish(ctx context.Context, aggregationKey, text string, kind domain.Kind) error
}

// IDeliveryClient performs the outbound messaging API calls.
// Edit returns errors.ErrMessageNotEditable for permanent failures and
// wraps errors.ErrTransientDelivery after its single bounded retry.
type IDeliveryClient interface {
	Send(ctx context.Context, text string) (int64, error)
	Edit(ctx context.Context, messageID int64, text string) error
}

// IMessageRepository is the durable history log plus the current
// message pointer per aggregation key.
type IMessageRepository interface {
	StoreMessage(msg domain.Message) error
	GetMessages(limit int) ([]domain.Message, error)
	GetMessagesByUser(user string, limit int) ([]domain.Message, error)
	CurrentMessage(aggregationKey string) (domain.DeliveredMessage, error)
	SetCurrentMessage(dm domain.DeliveredMessage) error
}

type IAllowlistRepository interface {
	Add(user string) error
	Remove(user string) error
	List() ([]string, error)
	Contains(user string) (bool, error)
}

// MessageSink consumes observed messages for a side effect (disk log,
// search index). Sinks are best-effort: a failing sink is logged and
// never blocks the others.
type MessageSink interface {
	Consume(ctx context.Context, msg domain.Message) error
}

// ISearcher answers full-text queries over the history log.
type ISearcher interface {
	Search(ctx context.Context, query string, limit int) ([]domain.Message, error)
}
