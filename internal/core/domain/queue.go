package domain

import "time"

type QueueItemStatus string

const (
	QueueStatusQueued     QueueItemStatus = "queued"
	QueueStatusAssigned   QueueItemStatus = "assigned"
	QueueStatusProcessing QueueItemStatus = "processing"
	QueueStatusCompleted  QueueItemStatus = "completed"
	QueueStatusFailed     QueueItemStatus = "failed"
)

// QueueItem is the ephemeral scheduling record for one approved ledger
// entry. At most one active item exists per journal ID; retries archive the
// failed item and insert a fresh one with an incremented attempt count.
type QueueItem struct {
	ID             int64           `json:"id"`
	JournalID      int64           `json:"journal_id"`
	Priority       int             `json:"priority"`
	EnqueuedAt     time.Time       `json:"enqueued_at"`
	AssignedWorker string          `json:"assigned_worker,omitempty"`
	AssignedAt     *time.Time      `json:"assigned_at,omitempty"`
	AttemptCount   int             `json:"attempt_count"`
	Status         QueueItemStatus `json:"status"`
}
