package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dondada876/ASEAGI-sub001/internal/core/domain"
)

// QueueRepository is the durable priority queue. Claiming relies on
// FOR UPDATE SKIP LOCKED so concurrent workers never select the same row.
type QueueRepository struct {
	db *sql.DB
}

func NewQueueRepository(db *sql.DB) *QueueRepository {
	return &QueueRepository{db: db}
}

const queueColumns = `id, journal_id, priority, enqueued_at, assigned_worker, assigned_at, attempt_count, status`

func (r *QueueRepository) Enqueue(ctx context.Context, journalID int64, priority, attemptCount int) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO queue_items (journal_id, priority, enqueued_at, attempt_count, status)
VALUES ($1, $2, $3, $4, $5)
`, journalID, priority, time.Now().UTC(), attemptCount, string(domain.QueueStatusQueued))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			// The partial unique index on active items keeps at most one
			// live queue item per ledger entry.
			return domain.WrapError(domain.ErrInvalidTransition, "enqueue", err)
		}
		return fmt.Errorf("enqueue: %w", err)
	}
	return nil
}

// DequeueNext selects and claims the highest-priority, oldest queued item in
// a single statement. Selection order is priority DESC then enqueued_at ASC;
// there is no global FIFO fairness across priorities.
func (r *QueueRepository) DequeueNext(ctx context.Context, workerID string) (*domain.QueueItem, error) {
	row := r.db.QueryRowContext(ctx, `
UPDATE queue_items
SET status = $1, assigned_worker = $2, assigned_at = $3
WHERE id = (
	SELECT id FROM queue_items
	WHERE status = $4
	ORDER BY priority DESC, enqueued_at ASC
	FOR UPDATE SKIP LOCKED
	LIMIT 1
)
RETURNING `+queueColumns,
		string(domain.QueueStatusAssigned), workerID, time.Now().UTC(), string(domain.QueueStatusQueued))

	item, err := scanQueueItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrQueueEmpty
		}
		return nil, fmt.Errorf("dequeue next: %w", err)
	}
	return item, nil
}

func (r *QueueRepository) MarkProcessing(ctx context.Context, itemID int64) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE queue_items SET status = $2 WHERE id = $1 AND status = $3
`, itemID, string(domain.QueueStatusProcessing), string(domain.QueueStatusAssigned))
	if err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark processing rows affected: %w", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrInvalidTransition, "mark processing", sql.ErrNoRows)
	}
	return nil
}

func (r *QueueRepository) Complete(ctx context.Context, journalID int64) (*domain.QueueItem, error) {
	return r.finish(ctx, "complete queue item", journalID, domain.QueueStatusCompleted)
}

func (r *QueueRepository) Fail(ctx context.Context, journalID int64) (*domain.QueueItem, error) {
	return r.finish(ctx, "fail queue item", journalID, domain.QueueStatusFailed)
}

func (r *QueueRepository) finish(ctx context.Context, operation string, journalID int64, to domain.QueueItemStatus) (*domain.QueueItem, error) {
	row := r.db.QueryRowContext(ctx, `
UPDATE queue_items
SET status = $2
WHERE journal_id = $1 AND status IN ($3, $4)
RETURNING `+queueColumns,
		journalID, string(to), string(domain.QueueStatusAssigned), string(domain.QueueStatusProcessing))

	item, err := scanQueueItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrInvalidTransition, operation, err)
		}
		return nil, fmt.Errorf("%s: %w", operation, err)
	}
	return item, nil
}

// FailStale fails claimed items whose worker went silent past the timeout,
// making them eligible for the retry path.
func (r *QueueRepository) FailStale(ctx context.Context, olderThan time.Duration) ([]domain.QueueItem, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	rows, err := r.db.QueryContext(ctx, `
UPDATE queue_items
SET status = $1
WHERE status IN ($2, $3) AND assigned_at < $4
RETURNING `+queueColumns,
		string(domain.QueueStatusFailed), string(domain.QueueStatusAssigned),
		string(domain.QueueStatusProcessing), cutoff)
	if err != nil {
		return nil, fmt.Errorf("fail stale items: %w", err)
	}
	defer rows.Close()

	out := make([]domain.QueueItem, 0)
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stale item: %w", err)
		}
		out = append(out, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stale items: %w", err)
	}
	return out, nil
}

func (r *QueueRepository) Depth(ctx context.Context) (int64, error) {
	var depth int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM queue_items WHERE status = $1`, string(domain.QueueStatusQueued)).Scan(&depth)
	if err != nil {
		return 0, fmt.Errorf("queue depth: %w", err)
	}
	return depth, nil
}

func scanQueueItem(row rowScanner) (*domain.QueueItem, error) {
	var item domain.QueueItem
	var status string
	var worker sql.NullString

	err := row.Scan(
		&item.ID, &item.JournalID, &item.Priority, &item.EnqueuedAt,
		&worker, &item.AssignedAt, &item.AttemptCount, &status,
	)
	if err != nil {
		return nil, err
	}
	item.AssignedWorker = worker.String
	item.Status = domain.QueueItemStatus(status)
	return &item, nil
}
