package notification

import (
	"context"
	"log/slog"
	"time"
)

// Publisher is the messaging side of the poller; satisfied by
// messaging.Producer.
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// OutboxSource is the storage side of the poller; satisfied by
// OutboxRepository.
type OutboxSource interface {
	FetchUnpublished(ctx context.Context, limit int) ([]OutboxEntry, error)
	MarkPublished(ctx context.Context, id string) error
	RecordAttempt(ctx context.Context, id string) error
}

// Poller drains pending outbox entries to the notification topic. A
// failed publish leaves the row unpublished with its attempt counter
// bumped; the next tick retries it. Entries are keyed by aggregate id
// so notifications for one order keep their relative order.
type Poller struct {
	source    OutboxSource
	publisher Publisher
	logger    *slog.Logger
	tick      time.Duration
	batchSize int
}

func NewPoller(source OutboxSource, publisher Publisher, logger *slog.Logger) *Poller {
	return &Poller{
		source:    source,
		publisher: publisher,
		logger:    logger,
		tick:      time.Second,
		batchSize: 100,
	}
}

func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.drain(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *Poller) drain(ctx context.Context) {
	entries, err := p.source.FetchUnpublished(ctx, p.batchSize)
	if err != nil {
		p.logger.Error("failed to fetch outbox entries", "error", err)
		return
	}

	for _, entry := range entries {
		if err := p.publisher.Publish(ctx, entry.AggregateID, entry.Payload); err != nil {
			p.logger.Error("failed to publish notification", "error", err, "outbox_id", entry.ID, "kind", entry.Kind)
			if err := p.source.RecordAttempt(ctx, entry.ID); err != nil {
				p.logger.Error("failed to record publish attempt", "error", err, "outbox_id", entry.ID)
			}
			continue
		}

		if err := p.source.MarkPublished(ctx, entry.ID); err != nil {
			// the entry will be republished next tick; the consumer
			// tolerates duplicates
			p.logger.Error("failed to mark outbox entry published", "error", err, "outbox_id", entry.ID)
			continue
		}

		p.logger.Info("notification published", "outbox_id", entry.ID, "kind", entry.Kind, "aggregate_id", entry.AggregateID)
	}
}
