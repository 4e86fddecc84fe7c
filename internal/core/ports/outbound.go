package ports

import (
	"context"
	"io"
	"time"

	"github.com/dondada876/ASEAGI-sub001/internal/core/domain"
)

// LedgerRepository persists the intake ledger. Entries are never deleted;
// Transition is the only way status moves, and it is a guarded
// compare-and-swap against the caller-supplied set of expected statuses.
type LedgerRepository interface {
	Create(ctx context.Context, entry *domain.LedgerEntry) (int64, error)
	GetByID(ctx context.Context, journalID int64) (*domain.LedgerEntry, error)
	FindByFingerprint(ctx context.Context, fingerprint string) (*domain.LedgerEntry, error)
	FindRecentByType(ctx context.Context, documentType string, window time.Duration, limit int) ([]domain.LedgerEntry, error)
	ListByStatus(ctx context.Context, status domain.EntryStatus, limit int) ([]domain.LedgerEntry, error)
	FindPendingReview(ctx context.Context, limit int) ([]domain.LedgerEntry, error)
	Transition(ctx context.Context, journalID int64, from []domain.EntryStatus, to domain.EntryStatus) error
	SetClassification(ctx context.Context, journalID int64, documentType, subtype string) error
	SetDuplicate(ctx context.Context, journalID, duplicateOf int64, tier int, score float64) error
	SetExtractedText(ctx context.Context, journalID int64, text string) error
	SetNeedsReview(ctx context.Context, journalID int64, needsReview bool) error
	SetAnalysisResult(ctx context.Context, journalID int64, result domain.AnalysisResult, needsReview bool) error
	SetError(ctx context.Context, journalID int64, message string) error
}

// QueueRepository is the durable priority queue for approved entries.
// DequeueNext must select and claim in one atomic operation.
type QueueRepository interface {
	Enqueue(ctx context.Context, journalID int64, priority, attemptCount int) error
	DequeueNext(ctx context.Context, workerID string) (*domain.QueueItem, error)
	MarkProcessing(ctx context.Context, itemID int64) error
	Complete(ctx context.Context, journalID int64) (*domain.QueueItem, error)
	Fail(ctx context.Context, journalID int64) (*domain.QueueItem, error)
	FailStale(ctx context.Context, olderThan time.Duration) ([]domain.QueueItem, error)
	Depth(ctx context.Context) (int64, error)
}

// MetricRepository appends step audit records; append-only by contract.
type MetricRepository interface {
	Record(ctx context.Context, metric domain.StepMetric) error
	ListByJournalID(ctx context.Context, journalID int64) ([]domain.StepMetric, error)
}

// ObjectStorage stores raw submitted files.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// EventBus carries submission-accepted events from the intake API to the
// assessment workers.
type EventBus interface {
	PublishSubmissionAccepted(ctx context.Context, journalID int64) error
	SubscribeSubmissionAccepted(ctx context.Context, handler func(context.Context, int64) error) error
}

// TextExtractor performs the cheap text pass used by content-overlap
// deduplication. An empty result with nil error means the format carries no
// cheaply extractable text (for example a phone photo).
type TextExtractor interface {
	Extract(ctx context.Context, entry *domain.LedgerEntry) (string, error)
}

// TypeClassifier maps submission metadata to a document category. It is
// deterministic and never fails; unmatched input classifies as
// domain.TypeUnclassified.
type TypeClassifier interface {
	Classify(filename, sourceChannel string) (documentType, subtype string)
}

// SimilarityTier scores a candidate against its comparison corpus.
type SimilarityTier interface {
	Score(ctx context.Context, candidate *domain.LedgerEntry, corpus []domain.LedgerEntry) (domain.SimilarityResult, error)
}

// Embedder builds vectors for extracted document text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// DocumentAnalyzer invokes the external OCR/AI analysis service.
type DocumentAnalyzer interface {
	Analyze(ctx context.Context, entry *domain.LedgerEntry) (domain.AnalysisResult, error)
}

// RuleSource loads rule-table snapshots.
type RuleSource interface {
	Load() (*domain.RuleTable, error)
}
