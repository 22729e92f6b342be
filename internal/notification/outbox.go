package notification

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OutboxEntry is one queued notification. Rows are written inside the
// transaction that made the notification necessary, so an entry exists
// exactly when its triggering write committed.
type OutboxEntry struct {
	ID          string
	Kind        Kind
	AggregateID string
	Payload     []byte
	Attempts    int
	CreatedAt   time.Time
	PublishedAt *time.Time
}

type OutboxRepository struct {
	db *sql.DB
}

func NewOutboxRepository(db *sql.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// EnqueueTx writes an outbox row on the caller's transaction. The
// payload is wrapped in an Envelope so the consumer can dispatch on
// kind without a topic per notification type.
func EnqueueTx(ctx context.Context, tx *sql.Tx, kind Kind, aggregateID string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}

	envelope, err := json.Marshal(Envelope{Kind: kind, Payload: raw})
	if err != nil {
		return fmt.Errorf("marshal notification envelope: %w", err)
	}

	// string, not []byte: pq would send raw bytes as bytea, which jsonb rejects
	_, err = tx.ExecContext(ctx, `
		INSERT INTO notification_outbox (id, kind, aggregate_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.New().String(), string(kind), aggregateID, string(envelope), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert outbox row: %w", err)
	}

	return nil
}

// FetchUnpublished returns up to limit pending entries, oldest first.
func (r *OutboxRepository) FetchUnpublished(ctx context.Context, limit int) ([]OutboxEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, kind, aggregate_id, payload, attempts, created_at
		FROM notification_outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []OutboxEntry
	for rows.Next() {
		var e OutboxEntry
		var kind string
		if err := rows.Scan(&e.ID, &kind, &e.AggregateID, &e.Payload, &e.Attempts, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Kind = Kind(kind)
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

func (r *OutboxRepository) MarkPublished(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE notification_outbox SET published_at = NOW()
		WHERE id = $1
	`, id)
	return err
}

// RecordAttempt bumps the attempt counter after a failed publish so
// stuck entries are visible in the table.
func (r *OutboxRepository) RecordAttempt(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE notification_outbox SET attempts = attempts + 1
		WHERE id = $1
	`, id)
	return err
}
