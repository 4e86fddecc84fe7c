package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dondada876/ASEAGI-sub001/internal/core/domain"
	"github.com/dondada876/ASEAGI-sub001/internal/core/ports"
)

// AssessmentConfig carries the tunable knobs of the duplicate gate. The
// threshold boundaries, the recent-window size and the urgency boost are
// deployment decisions, not constants.
type AssessmentConfig struct {
	Tier0 domain.TierThresholds
	Tier1 domain.TierThresholds
	Tier2 domain.TierThresholds

	RecentWindow time.Duration
	RecentLimit  int

	// UrgencyBoost raises the rule's default priority for urgent-flagged
	// submissions. Priority is only ever raised, never lowered.
	UrgencyBoost int
	MaxPriority  int
}

type AssessEntryUseCase struct {
	ledger    ports.LedgerRepository
	queue     ports.QueueRepository
	metrics   ports.MetricRepository
	classify  ports.TypeClassifier
	rules     *RuleService
	tier0     ports.SimilarityTier
	tier1     ports.SimilarityTier
	tier2     ports.SimilarityTier
	extractor ports.TextExtractor
	cfg       AssessmentConfig
}

func NewAssessEntryUseCase(
	ledger ports.LedgerRepository,
	queue ports.QueueRepository,
	metrics ports.MetricRepository,
	classify ports.TypeClassifier,
	rules *RuleService,
	tier0, tier1, tier2 ports.SimilarityTier,
	extractor ports.TextExtractor,
	cfg AssessmentConfig,
) *AssessEntryUseCase {
	return &AssessEntryUseCase{
		ledger:    ledger,
		queue:     queue,
		metrics:   metrics,
		classify:  classify,
		rules:     rules,
		tier0:     tier0,
		tier1:     tier1,
		tier2:     tier2,
		extractor: extractor,
		cfg:       cfg,
	}
}

// AssessByID runs the whole gate for one ledger entry: claim, classify,
// escalate through the similarity tiers, apply the type rule, and either
// enqueue the entry or park it in a terminal skipped status.
func (uc *AssessEntryUseCase) AssessByID(ctx context.Context, journalID int64) error {
	// The claim is the concurrency-safety mechanism: losing the CAS means
	// another worker owns this entry, so back off with no side effects.
	err := uc.ledger.Transition(ctx, journalID, []domain.EntryStatus{domain.StatusPending}, domain.StatusAssessing)
	if err != nil {
		if domain.IsKind(err, domain.ErrInvalidTransition) {
			slog.Debug("assessment_claim_lost", "journal_id", journalID)
			return nil
		}
		return fmt.Errorf("claim entry for assessment: %w", err)
	}

	if err := uc.assess(ctx, journalID); err != nil {
		if failErr := uc.markFailed(ctx, journalID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}
	return nil
}

func (uc *AssessEntryUseCase) assess(ctx context.Context, journalID int64) error {
	entry, err := uc.ledger.GetByID(ctx, journalID)
	if err != nil {
		return fmt.Errorf("fetch entry: %w", err)
	}

	rule, err := uc.classifyEntry(ctx, entry)
	if err != nil {
		return err
	}

	corpus, err := uc.ledger.FindRecentByType(ctx, entry.DocumentType, uc.cfg.RecentWindow, uc.cfg.RecentLimit)
	if err != nil {
		return fmt.Errorf("load recent corpus: %w", err)
	}
	corpus = withoutSelf(corpus, entry.JournalID)

	verdict, result, tier, err := uc.runTiers(ctx, entry, corpus)
	if err != nil {
		return err
	}

	if verdict == domain.VerdictDuplicate {
		return uc.markDuplicate(ctx, entry.JournalID, result, tier)
	}

	needsReview := false
	if tier == 2 && verdict == domain.VerdictInconclusive {
		// Even the embedding tier could not decide. Prefer processing a
		// possible duplicate over silently discarding a unique document,
		// but flag the entry so a human sees it.
		needsReview = true
		if err := uc.ledger.SetNeedsReview(ctx, entry.JournalID, true); err != nil {
			return fmt.Errorf("flag entry for review: %w", err)
		}
	}

	if rule.RequiresManualReview {
		return uc.ledger.Transition(ctx, entry.JournalID,
			[]domain.EntryStatus{domain.StatusAssessing}, domain.StatusSkippedManualReview)
	}

	priority := uc.priorityFor(rule, entry)
	if err := uc.queue.Enqueue(ctx, entry.JournalID, priority, 1); err != nil {
		return fmt.Errorf("enqueue approved entry: %w", err)
	}
	if err := uc.ledger.Transition(ctx, entry.JournalID,
		[]domain.EntryStatus{domain.StatusAssessing}, domain.StatusQueued); err != nil {
		return fmt.Errorf("transition to queued: %w", err)
	}

	slog.Info("entry_approved",
		"journal_id", entry.JournalID,
		"document_type", entry.DocumentType,
		"priority", priority,
		"needs_review", needsReview,
	)
	return nil
}

func (uc *AssessEntryUseCase) classifyEntry(ctx context.Context, entry *domain.LedgerEntry) (domain.TypeRule, error) {
	started := time.Now()
	documentType, subtype := uc.classify.Classify(entry.Filename, entry.SourceChannel)
	uc.recordStep(ctx, entry.JournalID, domain.StepClassify, documentType, 0, time.Since(started))

	if err := uc.ledger.SetClassification(ctx, entry.JournalID, documentType, subtype); err != nil {
		return domain.TypeRule{}, fmt.Errorf("persist classification: %w", err)
	}
	entry.DocumentType = documentType
	entry.DocumentSubtype = subtype

	rule, err := uc.rules.Current().Lookup(documentType)
	if err != nil {
		return domain.TypeRule{}, err
	}
	return rule, nil
}

// runTiers escalates through the similarity tiers. It returns the final
// verdict, the result that produced it and the deciding tier index.
func (uc *AssessEntryUseCase) runTiers(
	ctx context.Context,
	entry *domain.LedgerEntry,
	corpus []domain.LedgerEntry,
) (domain.Verdict, domain.SimilarityResult, int, error) {
	result, verdict, err := uc.scoreTier(ctx, uc.tier0, domain.StepTier0, uc.cfg.Tier0, entry, corpus)
	if err != nil {
		return "", domain.SimilarityResult{}, 0, err
	}
	if verdict != domain.VerdictInconclusive {
		return verdict, result, 0, nil
	}

	if err := uc.ensureExtractedText(ctx, entry); err != nil {
		return "", domain.SimilarityResult{}, 0, err
	}
	if entry.ExtractedText != "" {
		result, verdict, err = uc.scoreTier(ctx, uc.tier1, domain.StepTier1, uc.cfg.Tier1, entry, corpus)
		if err != nil {
			return "", domain.SimilarityResult{}, 0, err
		}
		if verdict != domain.VerdictInconclusive {
			return verdict, result, 1, nil
		}
	}

	result, verdict, err = uc.scoreTier(ctx, uc.tier2, domain.StepTier2, uc.cfg.Tier2, entry, corpus)
	if err != nil {
		return "", domain.SimilarityResult{}, 0, err
	}
	return verdict, result, 2, nil
}

func (uc *AssessEntryUseCase) scoreTier(
	ctx context.Context,
	tier ports.SimilarityTier,
	step string,
	thresholds domain.TierThresholds,
	entry *domain.LedgerEntry,
	corpus []domain.LedgerEntry,
) (domain.SimilarityResult, domain.Verdict, error) {
	started := time.Now()
	result, err := tier.Score(ctx, entry, corpus)
	if err != nil {
		uc.recordStep(ctx, entry.JournalID, step, "error", 0, time.Since(started))
		return domain.SimilarityResult{}, "", fmt.Errorf("%s: %w", step, err)
	}
	verdict := thresholds.Evaluate(result.Score)
	uc.recordStep(ctx, entry.JournalID, step, string(verdict), result.Score, time.Since(started))
	return result, verdict, nil
}

// ensureExtractedText runs the cheap text pass once per entry and persists
// the result so later candidates can compare against it.
func (uc *AssessEntryUseCase) ensureExtractedText(ctx context.Context, entry *domain.LedgerEntry) error {
	if entry.ExtractedText != "" {
		return nil
	}
	text, err := uc.extractor.Extract(ctx, entry)
	if err != nil {
		return fmt.Errorf("extract text: %w", err)
	}
	if text == "" {
		return nil
	}
	entry.ExtractedText = text
	if err := uc.ledger.SetExtractedText(ctx, entry.JournalID, text); err != nil {
		return fmt.Errorf("persist extracted text: %w", err)
	}
	return nil
}

func (uc *AssessEntryUseCase) markDuplicate(ctx context.Context, journalID int64, result domain.SimilarityResult, tier int) error {
	if err := uc.ledger.Transition(ctx, journalID,
		[]domain.EntryStatus{domain.StatusAssessing}, domain.StatusSkippedDuplicate); err != nil {
		return fmt.Errorf("transition to skipped_duplicate: %w", err)
	}
	if err := uc.ledger.SetDuplicate(ctx, journalID, result.MatchedJournalID, tier, result.Score); err != nil {
		return fmt.Errorf("record duplicate linkage: %w", err)
	}
	slog.Info("entry_skipped_duplicate",
		"journal_id", journalID,
		"duplicate_of", result.MatchedJournalID,
		"tier", tier,
		"score", result.Score,
	)
	return nil
}

// markFailed parks the entry in failed with the cause recorded. Assessment
// never reverts an entry to pending; that would reopen the claim race.
func (uc *AssessEntryUseCase) markFailed(ctx context.Context, journalID int64, cause error) error {
	if err := uc.ledger.Transition(ctx, journalID,
		[]domain.EntryStatus{domain.StatusAssessing}, domain.StatusFailed); err != nil {
		return err
	}
	return uc.ledger.SetError(ctx, journalID, cause.Error())
}

func (uc *AssessEntryUseCase) priorityFor(rule domain.TypeRule, entry *domain.LedgerEntry) int {
	priority := rule.DefaultPriority
	if entry.Urgent {
		priority += uc.cfg.UrgencyBoost
	}
	if priority > uc.cfg.MaxPriority {
		priority = uc.cfg.MaxPriority
	}
	return priority
}

func (uc *AssessEntryUseCase) recordStep(ctx context.Context, journalID int64, step, outcome string, score float64, duration time.Duration) {
	metric := domain.StepMetric{
		JournalID:  journalID,
		Step:       step,
		Outcome:    outcome,
		Score:      score,
		Duration:   duration,
		RecordedAt: time.Now().UTC(),
	}
	if err := uc.metrics.Record(ctx, metric); err != nil {
		slog.Warn("step_metric_write_failed", "journal_id", journalID, "step", step, "error", err)
	}
}

func withoutSelf(corpus []domain.LedgerEntry, journalID int64) []domain.LedgerEntry {
	out := corpus[:0]
	for _, entry := range corpus {
		if entry.JournalID != journalID {
			out = append(out, entry)
		}
	}
	return out
}
