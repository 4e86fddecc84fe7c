package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dondada876/ASEAGI-sub001/internal/core/domain"
	"github.com/dondada876/ASEAGI-sub001/internal/core/ports"
)

type DispatchConfig struct {
	MaxAttempts int
	// StaleAfter bounds how long a claimed item may sit without an outcome
	// report before the sweeper fails it; protects against worker crashes.
	StaleAfter time.Duration
}

// DispatchUseCase manages the queue contract for the worker pool: atomic
// claim, outcome reporting with bounded retries, and the stale-item sweep.
// Workers call the external analysis service between claiming and reporting;
// this usecase only moves state.
type DispatchUseCase struct {
	ledger   ports.LedgerRepository
	queue    ports.QueueRepository
	metrics  ports.MetricRepository
	rules    *RuleService
	analyzer ports.DocumentAnalyzer
	cfg      DispatchConfig
}

func NewDispatchUseCase(
	ledger ports.LedgerRepository,
	queue ports.QueueRepository,
	metrics ports.MetricRepository,
	rules *RuleService,
	analyzer ports.DocumentAnalyzer,
	cfg DispatchConfig,
) *DispatchUseCase {
	return &DispatchUseCase{
		ledger:   ledger,
		queue:    queue,
		metrics:  metrics,
		rules:    rules,
		analyzer: analyzer,
		cfg:      cfg,
	}
}

// ClaimNext atomically claims the highest-priority, oldest queued item and
// moves its ledger entry to processing. Returns domain.ErrQueueEmpty when
// nothing is queued.
func (uc *DispatchUseCase) ClaimNext(ctx context.Context, workerID string) (*domain.QueueItem, error) {
	item, err := uc.queue.DequeueNext(ctx, workerID)
	if err != nil {
		return nil, err
	}

	if err := uc.ledger.Transition(ctx, item.JournalID,
		[]domain.EntryStatus{domain.StatusQueued}, domain.StatusProcessing); err != nil {
		return nil, fmt.Errorf("transition entry to processing: %w", err)
	}
	if err := uc.queue.MarkProcessing(ctx, item.ID); err != nil {
		return nil, fmt.Errorf("mark queue item processing: %w", err)
	}
	item.Status = domain.QueueStatusProcessing
	return item, nil
}

// ProcessOne drives one full worker cycle: claim, analyze, report.
func (uc *DispatchUseCase) ProcessOne(ctx context.Context, workerID string) error {
	item, err := uc.ClaimNext(ctx, workerID)
	if err != nil {
		return err
	}
	return uc.AnalyzeClaimed(ctx, item)
}

// AnalyzeClaimed runs analysis for an already-claimed item and reports the
// outcome. Split from ProcessOne so the worker loop can observe the claimed
// item between the two halves.
func (uc *DispatchUseCase) AnalyzeClaimed(ctx context.Context, item *domain.QueueItem) error {
	entry, err := uc.ledger.GetByID(ctx, item.JournalID)
	if err != nil {
		return fmt.Errorf("fetch claimed entry: %w", err)
	}

	started := time.Now()
	result, err := uc.analyzer.Analyze(ctx, entry)
	if err != nil {
		uc.recordAnalysis(ctx, item.JournalID, "error", 0, time.Since(started))
		if reportErr := uc.ReportFailed(ctx, item.JournalID, err.Error()); reportErr != nil {
			return fmt.Errorf("%w; report failure: %v", err, reportErr)
		}
		return err
	}
	uc.recordAnalysis(ctx, item.JournalID, "completed", result.CostUnits, time.Since(started))

	return uc.ReportCompleted(ctx, item.JournalID, result)
}

// ReportCompleted finishes an item. Confidence below the type rule's minimum
// does not fail the entry; it completes flagged for manual review.
func (uc *DispatchUseCase) ReportCompleted(ctx context.Context, journalID int64, result domain.AnalysisResult) error {
	entry, err := uc.ledger.GetByID(ctx, journalID)
	if err != nil {
		return fmt.Errorf("fetch entry for completion: %w", err)
	}
	rule, err := uc.rules.Current().Lookup(entry.DocumentType)
	if err != nil {
		return err
	}
	needsReview := result.Confidence < rule.MinAcceptableConfidence

	if _, err := uc.queue.Complete(ctx, journalID); err != nil {
		return fmt.Errorf("complete queue item: %w", err)
	}
	if err := uc.ledger.SetAnalysisResult(ctx, journalID, result, needsReview); err != nil {
		return fmt.Errorf("persist analysis result: %w", err)
	}
	if err := uc.ledger.Transition(ctx, journalID,
		[]domain.EntryStatus{domain.StatusProcessing}, domain.StatusCompleted); err != nil {
		return fmt.Errorf("transition to completed: %w", err)
	}

	slog.Info("entry_completed",
		"journal_id", journalID,
		"confidence", result.Confidence,
		"needs_review", needsReview,
		"cost_units", result.CostUnits,
	)
	return nil
}

// ReportFailed fails the current attempt and re-enqueues up to the attempt
// bound, after which the entry is terminally failed.
func (uc *DispatchUseCase) ReportFailed(ctx context.Context, journalID int64, cause string) error {
	item, err := uc.queue.Fail(ctx, journalID)
	if err != nil {
		return fmt.Errorf("fail queue item: %w", err)
	}
	if err := uc.ledger.Transition(ctx, journalID,
		[]domain.EntryStatus{domain.StatusProcessing, domain.StatusQueued}, domain.StatusFailed); err != nil {
		return fmt.Errorf("transition to failed: %w", err)
	}
	if err := uc.ledger.SetError(ctx, journalID, cause); err != nil {
		return fmt.Errorf("record failure cause: %w", err)
	}

	if item.AttemptCount >= uc.cfg.MaxAttempts {
		slog.Warn("entry_failed_terminal",
			"journal_id", journalID,
			"attempts", item.AttemptCount,
			"cause", cause,
		)
		return nil
	}

	if err := uc.queue.Enqueue(ctx, journalID, item.Priority, item.AttemptCount+1); err != nil {
		return fmt.Errorf("re-enqueue for retry: %w", err)
	}
	if err := uc.ledger.Transition(ctx, journalID,
		[]domain.EntryStatus{domain.StatusFailed}, domain.StatusQueued); err != nil {
		return fmt.Errorf("transition retry to queued: %w", err)
	}
	slog.Info("entry_requeued", "journal_id", journalID, "attempt", item.AttemptCount+1)
	return nil
}

// SweepStale fails claimed items whose worker never reported back, which
// routes them through the normal retry path.
func (uc *DispatchUseCase) SweepStale(ctx context.Context) (int, error) {
	stale, err := uc.queue.FailStale(ctx, uc.cfg.StaleAfter)
	if err != nil {
		return 0, fmt.Errorf("sweep stale items: %w", err)
	}
	for _, item := range stale {
		if err := uc.requeueSwept(ctx, item); err != nil {
			slog.Warn("stale_requeue_failed", "journal_id", item.JournalID, "error", err)
		}
	}
	return len(stale), nil
}

func (uc *DispatchUseCase) requeueSwept(ctx context.Context, item domain.QueueItem) error {
	if err := uc.ledger.Transition(ctx, item.JournalID,
		[]domain.EntryStatus{domain.StatusProcessing, domain.StatusQueued}, domain.StatusFailed); err != nil {
		return err
	}
	if err := uc.ledger.SetError(ctx, item.JournalID, "processing timed out"); err != nil {
		return err
	}
	if item.AttemptCount >= uc.cfg.MaxAttempts {
		slog.Warn("entry_failed_terminal", "journal_id", item.JournalID, "attempts", item.AttemptCount, "cause", "timeout")
		return nil
	}
	if err := uc.queue.Enqueue(ctx, item.JournalID, item.Priority, item.AttemptCount+1); err != nil {
		return err
	}
	return uc.ledger.Transition(ctx, item.JournalID,
		[]domain.EntryStatus{domain.StatusFailed}, domain.StatusQueued)
}

func (uc *DispatchUseCase) recordAnalysis(ctx context.Context, journalID int64, outcome string, cost float64, duration time.Duration) {
	metric := domain.StepMetric{
		JournalID:  journalID,
		Step:       domain.StepAnalysis,
		Outcome:    outcome,
		CostUnits:  cost,
		Duration:   duration,
		RecordedAt: time.Now().UTC(),
	}
	if err := uc.metrics.Record(ctx, metric); err != nil {
		slog.Warn("step_metric_write_failed", "journal_id", journalID, "step", domain.StepAnalysis, "error", err)
	}
}
