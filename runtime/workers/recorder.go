package workers

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"context"
	"fmt"
	"log/slog"
)

// Ensure *RecorderWorker implements the contract.Worker interface at compile time.
var _ contract.Worker = (*RecorderWorker)(nil)

// RecorderWorker drains observed messages off the record channel and
// fans them out to the registered sinks (disk log, search index).
// A failing sink is logged and never blocks the others, so a broken
// index can't lose history rows.
type RecorderWorker struct {
	records chan domain.Message
	sinks   []contract.MessageSink
	log     *slog.Logger
}

func NewRecorderWorker(records chan domain.Message, sinks []contract.MessageSink, log *slog.Logger) *RecorderWorker {
	return &RecorderWorker{records: records, sinks: sinks, log: log}
}

func (w *RecorderWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping worker")
			return ctx.Err()
		case msg, ok := <-w.records:
			if !ok {
				w.log.Debug("Channel is closed")
				return nil
			}
			w.consume(ctx, msg)
		}
	}
}

func (w *RecorderWorker) consume(ctx context.Context, msg domain.Message) {
	for _, sink := range w.sinks {
		if err := sink.Consume(ctx, msg); err != nil {
			w.log.Error("Sink rejected message",
				"sink", fmt.Sprintf("%T", sink),
				"message_id", msg.MessageID, "error", err)
		}
	}
}
