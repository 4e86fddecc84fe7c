package postgres

import (
	"context"
	"database/sql/driver"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dondada876/ASEAGI-sub001/internal/core/domain"
)

func newQueueMock(t *testing.T) (*QueueRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewQueueRepository(db), mock
}

func queueRowColumns() []string {
	return []string{"id", "journal_id", "priority", "enqueued_at", "assigned_worker", "assigned_at", "attempt_count", "status"}
}

func sampleQueueRow(id, journalID int64, status string) []driver.Value {
	now := time.Now().UTC()
	return []driver.Value{id, journalID, 9, now, "worker-1", now, 1, status}
}

func TestEnqueueInsertsQueuedItem(t *testing.T) {
	repo, mock := newQueueMock(t)

	mock.ExpectExec("INSERT INTO queue_items").
		WithArgs(int64(42), 9, sqlmock.AnyArg(), 1, "queued").
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Enqueue(context.Background(), 42, 9, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestEnqueueSecondActiveItemRejected(t *testing.T) {
	repo, mock := newQueueMock(t)

	mock.ExpectExec("INSERT INTO queue_items").
		WillReturnError(&pgconn.PgError{Code: pgUniqueViolation, ConstraintName: "uq_queue_items_active"})

	err := repo.Enqueue(context.Background(), 42, 9, 1)
	if !domain.IsKind(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestDequeueNextClaimsItem(t *testing.T) {
	repo, mock := newQueueMock(t)

	rows := sqlmock.NewRows(queueRowColumns()).AddRow(sampleQueueRow(3, 42, "assigned")...)
	mock.ExpectQuery("UPDATE queue_items").
		WithArgs("assigned", "worker-1", sqlmock.AnyArg(), "queued").
		WillReturnRows(rows)

	item, err := repo.DequeueNext(context.Background(), "worker-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item.JournalID != 42 || item.Status != domain.QueueStatusAssigned {
		t.Fatalf("unexpected item: %+v", item)
	}
	if item.AssignedWorker != "worker-1" {
		t.Fatalf("unexpected worker: %s", item.AssignedWorker)
	}
}

func TestDequeueNextEmptyQueue(t *testing.T) {
	repo, mock := newQueueMock(t)

	mock.ExpectQuery("UPDATE queue_items").
		WillReturnRows(sqlmock.NewRows(queueRowColumns()))

	_, err := repo.DequeueNext(context.Background(), "worker-1")
	if !domain.IsKind(err, domain.ErrQueueEmpty) {
		t.Fatalf("expected ErrQueueEmpty, got %v", err)
	}
}

func TestCompleteRequiresActiveItem(t *testing.T) {
	repo, mock := newQueueMock(t)

	mock.ExpectQuery("UPDATE queue_items").
		WillReturnRows(sqlmock.NewRows(queueRowColumns()))

	_, err := repo.Complete(context.Background(), 42)
	if !domain.IsKind(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestFailReturnsFinishedItem(t *testing.T) {
	repo, mock := newQueueMock(t)

	rows := sqlmock.NewRows(queueRowColumns()).AddRow(sampleQueueRow(3, 42, "failed")...)
	mock.ExpectQuery("UPDATE queue_items").
		WithArgs(int64(42), "failed", "assigned", "processing").
		WillReturnRows(rows)

	item, err := repo.Fail(context.Background(), 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item.Status != domain.QueueStatusFailed || item.AttemptCount != 1 {
		t.Fatalf("unexpected item: %+v", item)
	}
}

func TestFailStaleSweepsAbandonedItems(t *testing.T) {
	repo, mock := newQueueMock(t)

	rows := sqlmock.NewRows(queueRowColumns()).
		AddRow(sampleQueueRow(3, 42, "failed")...).
		AddRow(sampleQueueRow(4, 43, "failed")...)
	mock.ExpectQuery("UPDATE queue_items").
		WithArgs("failed", "assigned", "processing", sqlmock.AnyArg()).
		WillReturnRows(rows)

	swept, err := repo.FailStale(context.Background(), 15*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(swept) != 2 {
		t.Fatalf("expected 2 swept items, got %d", len(swept))
	}
}

func TestDepthCountsQueued(t *testing.T) {
	repo, mock := newQueueMock(t)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("queued").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(12)))

	depth, err := repo.Depth(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if depth != 12 {
		t.Fatalf("expected depth 12, got %d", depth)
	}
}
