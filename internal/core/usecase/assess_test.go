package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/dondada876/ASEAGI-sub001/internal/core/domain"
)

func testAssessmentConfig() AssessmentConfig {
	return AssessmentConfig{
		Tier0:        domain.TierThresholds{Low: 0.35, High: 0.92},
		Tier1:        domain.TierThresholds{Low: 0.40, High: 0.85},
		Tier2:        domain.TierThresholds{Low: 0.60, High: 0.93},
		RecentWindow: 30 * 24 * time.Hour,
		RecentLimit:  200,
		UrgencyBoost: 2,
		MaxPriority:  10,
	}
}

type assessHarness struct {
	ledger    *fakeLedger
	queue     *fakeQueue
	metrics   *fakeMetrics
	tier0     *fakeTier
	tier1     *fakeTier
	tier2     *fakeTier
	extractor *fakeExtractor
	uc        *AssessEntryUseCase
}

func newAssessHarness(rules ...domain.TypeRule) *assessHarness {
	h := &assessHarness{
		ledger:    newFakeLedger(),
		queue:     &fakeQueue{},
		metrics:   &fakeMetrics{},
		tier0:     &fakeTier{result: domain.SimilarityResult{Score: 0.1, Method: "filename"}},
		tier1:     &fakeTier{result: domain.SimilarityResult{Score: 0.1, Method: "text_overlap"}},
		tier2:     &fakeTier{result: domain.SimilarityResult{Score: 0.1, Method: "embedding"}},
		extractor: &fakeExtractor{text: "extracted body text"},
	}
	h.uc = NewAssessEntryUseCase(
		h.ledger, h.queue, h.metrics,
		&fakeClassifier{documentType: "legal_document", subtype: "contract"},
		testRuleService(rules...),
		h.tier0, h.tier1, h.tier2,
		h.extractor,
		testAssessmentConfig(),
	)
	return h
}

func (h *assessHarness) pendingEntry(urgent bool) *domain.LedgerEntry {
	return h.ledger.add(domain.LedgerEntry{
		ContentFingerprint: "abc123",
		Filename:           "contract_v1.pdf",
		SourceChannel:      "web_portal",
		Status:             domain.StatusPending,
		Urgent:             urgent,
		StoragePath:        "abc123_contract_v1.pdf",
		SubmittedAt:        time.Now().UTC(),
	})
}

func TestAssessCleanEntryIsQueued(t *testing.T) {
	h := newAssessHarness()
	entry := h.pendingEntry(false)

	if err := h.uc.AssessByID(context.Background(), entry.JournalID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored := h.ledger.entries[entry.JournalID]
	if stored.Status != domain.StatusQueued {
		t.Fatalf("expected queued, got %s", stored.Status)
	}
	if stored.DocumentType != "legal_document" || stored.DocumentSubtype != "contract" {
		t.Fatalf("classification not persisted: %s/%s", stored.DocumentType, stored.DocumentSubtype)
	}

	item := h.queue.activeFor(entry.JournalID)
	if item == nil {
		t.Fatal("expected an active queue item")
	}
	if item.Priority != 9 {
		t.Fatalf("expected rule priority 9, got %d", item.Priority)
	}
	if item.AttemptCount != 1 {
		t.Fatalf("expected first attempt, got %d", item.AttemptCount)
	}
}

func TestAssessUrgentEntryBoostsPriorityWithCap(t *testing.T) {
	h := newAssessHarness()
	entry := h.pendingEntry(true)

	if err := h.uc.AssessByID(context.Background(), entry.JournalID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	item := h.queue.activeFor(entry.JournalID)
	if item == nil {
		t.Fatal("expected an active queue item")
	}
	// rule priority 9 + boost 2, capped at 10
	if item.Priority != 10 {
		t.Fatalf("expected capped priority 10, got %d", item.Priority)
	}
}

func TestAssessFilenameDuplicateSkipsAtTierZero(t *testing.T) {
	h := newAssessHarness()
	h.tier0.result = domain.SimilarityResult{Score: 0.97, MatchedJournalID: 41, Method: "filename"}
	entry := h.pendingEntry(false)

	if err := h.uc.AssessByID(context.Background(), entry.JournalID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored := h.ledger.entries[entry.JournalID]
	if stored.Status != domain.StatusSkippedDuplicate {
		t.Fatalf("expected skipped_duplicate, got %s", stored.Status)
	}
	if stored.DuplicateOfJournalID == nil || *stored.DuplicateOfJournalID != 41 {
		t.Fatal("expected duplicate linkage to entry 41")
	}
	if stored.DuplicateTier == nil || *stored.DuplicateTier != 0 {
		t.Fatal("expected tier 0 recorded")
	}
	if h.extractor.calls != 0 {
		t.Fatal("decisive tier 0 must not trigger text extraction")
	}
	if h.queue.activeFor(entry.JournalID) != nil {
		t.Fatal("duplicate must not be enqueued")
	}
}

func TestAssessEscalatesToTextOverlapOnGrayZone(t *testing.T) {
	h := newAssessHarness()
	h.tier0.result = domain.SimilarityResult{Score: 0.60, Method: "filename"}
	h.tier1.result = domain.SimilarityResult{Score: 0.95, MatchedJournalID: 7, Method: "text_overlap"}
	entry := h.pendingEntry(false)

	if err := h.uc.AssessByID(context.Background(), entry.JournalID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored := h.ledger.entries[entry.JournalID]
	if stored.Status != domain.StatusSkippedDuplicate {
		t.Fatalf("expected skipped_duplicate, got %s", stored.Status)
	}
	if stored.DuplicateTier == nil || *stored.DuplicateTier != 1 {
		t.Fatal("expected tier 1 recorded")
	}
	if stored.ExtractedText != "extracted body text" {
		t.Fatal("expected extracted text persisted before tier 1")
	}
	if h.tier2.calls != 0 {
		t.Fatal("decisive tier 1 must not reach tier 2")
	}
}

func TestAssessSkipsTextTierWhenNoText(t *testing.T) {
	h := newAssessHarness()
	h.tier0.result = domain.SimilarityResult{Score: 0.60, Method: "filename"}
	h.extractor.text = ""
	h.tier2.result = domain.SimilarityResult{Score: 0.2, Method: "embedding"}
	entry := h.pendingEntry(false)

	if err := h.uc.AssessByID(context.Background(), entry.JournalID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if h.tier1.calls != 0 {
		t.Fatal("tier 1 must be skipped without extracted text")
	}
	if h.tier2.calls != 1 {
		t.Fatal("tier 2 must still run")
	}
	if h.ledger.entries[entry.JournalID].Status != domain.StatusQueued {
		t.Fatalf("expected queued, got %s", h.ledger.entries[entry.JournalID].Status)
	}
}

func TestAssessInconclusiveFinalTierQueuesFlagged(t *testing.T) {
	h := newAssessHarness()
	h.tier0.result = domain.SimilarityResult{Score: 0.60, Method: "filename"}
	h.tier1.result = domain.SimilarityResult{Score: 0.60, Method: "text_overlap"}
	h.tier2.result = domain.SimilarityResult{Score: 0.75, Method: "embedding"}
	entry := h.pendingEntry(false)

	if err := h.uc.AssessByID(context.Background(), entry.JournalID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored := h.ledger.entries[entry.JournalID]
	if stored.Status != domain.StatusQueued {
		t.Fatalf("an undecided entry must still process, got %s", stored.Status)
	}
	if !stored.NeedsReview {
		t.Fatal("an undecided entry must be flagged for review")
	}
}

func TestAssessManualReviewRuleParksEntry(t *testing.T) {
	h := newAssessHarness(
		domain.TypeRule{DocumentType: "legal_document", RequiresManualReview: true, DefaultPriority: 8},
		domain.TypeRule{DocumentType: domain.TypeUnclassified, DefaultPriority: 3},
	)
	entry := h.pendingEntry(false)

	if err := h.uc.AssessByID(context.Background(), entry.JournalID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored := h.ledger.entries[entry.JournalID]
	if stored.Status != domain.StatusSkippedManualReview {
		t.Fatalf("expected skipped_manual_review, got %s", stored.Status)
	}
	if h.queue.activeFor(entry.JournalID) != nil {
		t.Fatal("manual-review entries must not be enqueued")
	}
}

func TestAssessLostClaimIsNoOp(t *testing.T) {
	h := newAssessHarness()
	entry := h.pendingEntry(false)
	h.ledger.entries[entry.JournalID].Status = domain.StatusAssessing

	if err := h.uc.AssessByID(context.Background(), entry.JournalID); err != nil {
		t.Fatalf("losing the claim must not error, got %v", err)
	}
	if h.tier0.calls != 0 {
		t.Fatal("losing the claim must not run any tier")
	}
}

func TestAssessFailureParksEntryWithCause(t *testing.T) {
	h := newAssessHarness()
	h.tier0.result = domain.SimilarityResult{Score: 0.60, Method: "filename"}
	h.extractor.err = context.DeadlineExceeded
	entry := h.pendingEntry(false)

	if err := h.uc.AssessByID(context.Background(), entry.JournalID); err == nil {
		t.Fatal("expected assessment error")
	}

	stored := h.ledger.entries[entry.JournalID]
	if stored.Status != domain.StatusFailed {
		t.Fatalf("expected failed, got %s", stored.Status)
	}
	if stored.Error == "" {
		t.Fatal("expected failure cause recorded")
	}
}

func TestAssessRecordsStepMetrics(t *testing.T) {
	h := newAssessHarness()
	h.tier0.result = domain.SimilarityResult{Score: 0.60, Method: "filename"}
	h.tier1.result = domain.SimilarityResult{Score: 0.60, Method: "text_overlap"}
	h.tier2.result = domain.SimilarityResult{Score: 0.2, Method: "embedding"}
	entry := h.pendingEntry(false)

	if err := h.uc.AssessByID(context.Background(), entry.JournalID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{domain.StepClassify, domain.StepTier0, domain.StepTier1, domain.StepTier2}
	got := h.metrics.steps()
	if len(got) != len(want) {
		t.Fatalf("expected steps %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("step %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}
