package sink

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"context"
	"log/slog"
)

// DiskSink appends observed messages to the durable history log.
type DiskSink struct {
	repository contract.IMessageRepository
	log        *slog.Logger
}

var _ contract.MessageSink = DiskSink{}

func NewDiskSink(repository contract.IMessageRepository, log *slog.Logger) DiskSink {
	return DiskSink{repository: repository, log: log}
}

func (d DiskSink) Consume(_ context.Context, msg domain.Message) error {
	return d.repository.StoreMessage(msg)
}
