package ports

import (
	"context"
	"io"

	"github.com/dondada876/ASEAGI-sub001/internal/core/domain"
)

// SubmissionRequest carries one incoming file with the minimal metadata the
// capture front end provides.
type SubmissionRequest struct {
	Filename      string
	SourceChannel string
	SubmitterID   string
	Urgent        bool
	CaseRef       *string
	Body          io.Reader
}

// SubmissionIntake is the inbound contract for the capture front end. The
// caller always receives an immediate accept/duplicate answer; analysis is
// asynchronous.
type SubmissionIntake interface {
	Submit(ctx context.Context, req SubmissionRequest) (*domain.LedgerEntry, error)
}

// EntryAssessor runs the assessment state machine for one ledger entry.
type EntryAssessor interface {
	AssessByID(ctx context.Context, journalID int64) error
}

// WorkDispatcher is the queue contract exposed to the worker pool.
type WorkDispatcher interface {
	ClaimNext(ctx context.Context, workerID string) (*domain.QueueItem, error)
	ReportCompleted(ctx context.Context, journalID int64, result domain.AnalysisResult) error
	ReportFailed(ctx context.Context, journalID int64, cause string) error
}

// LedgerReader is the read-only surface for reporting and audit consumers.
type LedgerReader interface {
	GetByID(ctx context.Context, journalID int64) (*domain.LedgerEntry, error)
	ListByStatus(ctx context.Context, status domain.EntryStatus, limit int) ([]domain.LedgerEntry, error)
	FindPendingReview(ctx context.Context, limit int) ([]domain.LedgerEntry, error)
}

// RuleAdmin reloads the rule-table snapshot; the only sanctioned mutation
// path for type rules.
type RuleAdmin interface {
	Reload(ctx context.Context) (version int64, err error)
}
