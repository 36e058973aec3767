// Package runtime wires event ingestion, recording, and supervision.
// It orchestrates the system without containing business logic or domain rules.
package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/observability"
	"chat-relay/runtime/workers"
	"context"
	"log/slog"
	"time"
)

type Orchestrator struct {
	log        *slog.Logger
	supervisor contract.ISupervisor
	aggregator contract.IAggregator
	repository contract.IMessageRepository
	searcher   contract.ISearcher
	monitoring *observability.MonitoringManager
	records    chan domain.Message
	sinks      []contract.MessageSink
	healthTick time.Duration
}

func NewOrchestrator(log *slog.Logger, supervisor contract.ISupervisor,
	aggregator contract.IAggregator, repository contract.IMessageRepository,
	searcher contract.ISearcher, monitoring *observability.MonitoringManager,
	bufferSize int, healthTick time.Duration) *Orchestrator {
	return &Orchestrator{
		log:        log,
		supervisor: supervisor,
		aggregator: aggregator,
		repository: repository,
		searcher:   searcher,
		monitoring: monitoring,
		records:    make(chan domain.Message, bufferSize),
		healthTick: healthTick,
	}
}

// Add registers permanent sinks consuming every recorded message.
func (o *Orchestrator) Add(sinks ...contract.MessageSink) {
	o.sinks = append(o.sinks, sinks...)
}

// Ingest feeds one normalized event into the aggregation pipeline.
func (o *Orchestrator) Ingest(e domain.Event) {
	o.monitoring.IncrEventsReceived()
	o.aggregator.Record(e)
}

// Reject counts an inbound event that failed normalization at the
// boundary and never reached the pipeline.
func (o *Orchestrator) Reject() {
	o.monitoring.IncrEventsDropped()
}

// Record queues an observed message for the recorder worker. The call
// never blocks an HTTP handler: when the buffer is full the row is
// dropped and counted.
func (o *Orchestrator) Record(msg domain.Message) {
	select {
	case o.records <- msg:
		o.monitoring.IncrMessagesStored()
	default:
		o.monitoring.IncrRecordsDropped()
		o.log.Warn("Record channel full, dropping message", "message_id", msg.MessageID)
	}
}

func (o *Orchestrator) GetMessages(limit int) ([]domain.Message, error) {
	return o.repository.GetMessages(limit)
}

func (o *Orchestrator) GetMessagesByUser(user string, limit int) ([]domain.Message, error) {
	return o.repository.GetMessagesByUser(user, limit)
}

func (o *Orchestrator) Search(ctx context.Context, query string, limit int) ([]domain.Message, error) {
	return o.searcher.Search(ctx, query, limit)
}

func (o *Orchestrator) Stats() observability.RelayStats {
	return o.monitoring.Snapshot()
}

// Start registers the background workers and launches the supervisor.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.supervisor.Add(
		workers.NewRecorderWorker(o.records, o.sinks, o.log),
		workers.NewHealthWorker(o.log, o.healthTick, o.monitoring),
	)
	go o.supervisor.Run(ctx)
	return nil
}

func (o *Orchestrator) Stop() {
	o.supervisor.Stop()
}
