package usecase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/dondada876/ASEAGI-sub001/internal/core/domain"
)

type fakeLedger struct {
	entries map[int64]*domain.LedgerEntry
	nextID  int64
	recent  []domain.LedgerEntry

	createErr error
	duplicate bool
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{entries: map[int64]*domain.LedgerEntry{}, nextID: 1}
}

func (f *fakeLedger) add(entry domain.LedgerEntry) *domain.LedgerEntry {
	if entry.JournalID == 0 {
		entry.JournalID = f.nextID
	}
	if entry.JournalID >= f.nextID {
		f.nextID = entry.JournalID + 1
	}
	stored := entry
	f.entries[stored.JournalID] = &stored
	return f.entries[stored.JournalID]
}

func (f *fakeLedger) Create(_ context.Context, entry *domain.LedgerEntry) (int64, error) {
	if f.createErr != nil {
		return 0, f.createErr
	}
	if f.duplicate {
		return 0, domain.WrapError(domain.ErrDuplicateFingerprint, "insert ledger entry", fmt.Errorf("unique violation"))
	}
	stored := f.add(*entry)
	return stored.JournalID, nil
}

func (f *fakeLedger) GetByID(_ context.Context, journalID int64) (*domain.LedgerEntry, error) {
	entry, ok := f.entries[journalID]
	if !ok {
		return nil, domain.WrapError(domain.ErrEntryNotFound, "get entry", fmt.Errorf("id %d", journalID))
	}
	copied := *entry
	return &copied, nil
}

func (f *fakeLedger) FindByFingerprint(_ context.Context, fingerprint string) (*domain.LedgerEntry, error) {
	for _, entry := range f.entries {
		if entry.ContentFingerprint == fingerprint {
			copied := *entry
			return &copied, nil
		}
	}
	return nil, domain.WrapError(domain.ErrEntryNotFound, "find by fingerprint", fmt.Errorf("no match"))
}

func (f *fakeLedger) FindRecentByType(context.Context, string, time.Duration, int) ([]domain.LedgerEntry, error) {
	return f.recent, nil
}

func (f *fakeLedger) ListByStatus(_ context.Context, status domain.EntryStatus, _ int) ([]domain.LedgerEntry, error) {
	var out []domain.LedgerEntry
	for _, entry := range f.entries {
		if entry.Status == status {
			out = append(out, *entry)
		}
	}
	return out, nil
}

func (f *fakeLedger) FindPendingReview(context.Context, int) ([]domain.LedgerEntry, error) {
	var out []domain.LedgerEntry
	for _, entry := range f.entries {
		if entry.NeedsReview || entry.Status == domain.StatusSkippedManualReview {
			out = append(out, *entry)
		}
	}
	return out, nil
}

func (f *fakeLedger) Transition(_ context.Context, journalID int64, from []domain.EntryStatus, to domain.EntryStatus) error {
	entry, ok := f.entries[journalID]
	if !ok {
		return domain.WrapError(domain.ErrEntryNotFound, "transition", fmt.Errorf("id %d", journalID))
	}
	for _, expected := range from {
		if entry.Status == expected {
			entry.Status = to
			return nil
		}
	}
	return domain.WrapError(domain.ErrInvalidTransition, "transition",
		fmt.Errorf("status %s not in expected set", entry.Status))
}

func (f *fakeLedger) SetClassification(_ context.Context, journalID int64, documentType, subtype string) error {
	entry := f.entries[journalID]
	entry.DocumentType = documentType
	entry.DocumentSubtype = subtype
	return nil
}

func (f *fakeLedger) SetDuplicate(_ context.Context, journalID, duplicateOf int64, tier int, score float64) error {
	entry := f.entries[journalID]
	entry.DuplicateOfJournalID = &duplicateOf
	entry.DuplicateTier = &tier
	entry.SimilarityScore = score
	return nil
}

func (f *fakeLedger) SetExtractedText(_ context.Context, journalID int64, text string) error {
	f.entries[journalID].ExtractedText = text
	return nil
}

func (f *fakeLedger) SetNeedsReview(_ context.Context, journalID int64, needsReview bool) error {
	f.entries[journalID].NeedsReview = needsReview
	return nil
}

func (f *fakeLedger) SetAnalysisResult(_ context.Context, journalID int64, result domain.AnalysisResult, needsReview bool) error {
	entry := f.entries[journalID]
	entry.Confidence = result.Confidence
	entry.Findings = result.StructuredFindings
	entry.CostUnits = result.CostUnits
	entry.NeedsReview = needsReview
	now := time.Now().UTC()
	entry.ProcessedAt = &now
	return nil
}

func (f *fakeLedger) SetError(_ context.Context, journalID int64, message string) error {
	f.entries[journalID].Error = message
	return nil
}

type fakeQueue struct {
	items  []domain.QueueItem
	nextID int64

	enqueueErr error
}

func (f *fakeQueue) Enqueue(_ context.Context, journalID int64, priority, attemptCount int) error {
	if f.enqueueErr != nil {
		return f.enqueueErr
	}
	f.nextID++
	f.items = append(f.items, domain.QueueItem{
		ID:           f.nextID,
		JournalID:    journalID,
		Priority:     priority,
		AttemptCount: attemptCount,
		EnqueuedAt:   time.Now().UTC(),
		Status:       domain.QueueStatusQueued,
	})
	return nil
}

func (f *fakeQueue) DequeueNext(_ context.Context, workerID string) (*domain.QueueItem, error) {
	queued := make([]*domain.QueueItem, 0, len(f.items))
	for i := range f.items {
		if f.items[i].Status == domain.QueueStatusQueued {
			queued = append(queued, &f.items[i])
		}
	}
	if len(queued) == 0 {
		return nil, domain.WrapError(domain.ErrQueueEmpty, "dequeue", fmt.Errorf("no queued items"))
	}
	sort.SliceStable(queued, func(i, j int) bool {
		if queued[i].Priority != queued[j].Priority {
			return queued[i].Priority > queued[j].Priority
		}
		return queued[i].EnqueuedAt.Before(queued[j].EnqueuedAt)
	})
	item := queued[0]
	item.Status = domain.QueueStatusAssigned
	item.AssignedWorker = workerID
	copied := *item
	return &copied, nil
}

func (f *fakeQueue) MarkProcessing(_ context.Context, itemID int64) error {
	for i := range f.items {
		if f.items[i].ID == itemID {
			f.items[i].Status = domain.QueueStatusProcessing
			return nil
		}
	}
	return domain.WrapError(domain.ErrEntryNotFound, "mark processing", fmt.Errorf("item %d", itemID))
}

func (f *fakeQueue) Complete(_ context.Context, journalID int64) (*domain.QueueItem, error) {
	return f.finish(journalID, domain.QueueStatusCompleted)
}

func (f *fakeQueue) Fail(_ context.Context, journalID int64) (*domain.QueueItem, error) {
	return f.finish(journalID, domain.QueueStatusFailed)
}

func (f *fakeQueue) finish(journalID int64, status domain.QueueItemStatus) (*domain.QueueItem, error) {
	for i := range f.items {
		item := &f.items[i]
		active := item.Status == domain.QueueStatusAssigned || item.Status == domain.QueueStatusProcessing
		if item.JournalID == journalID && active {
			item.Status = status
			copied := *item
			return &copied, nil
		}
	}
	return nil, domain.WrapError(domain.ErrEntryNotFound, "finish item", fmt.Errorf("journal %d", journalID))
}

func (f *fakeQueue) FailStale(_ context.Context, olderThan time.Duration) ([]domain.QueueItem, error) {
	cutoff := time.Now().Add(-olderThan)
	var swept []domain.QueueItem
	for i := range f.items {
		item := &f.items[i]
		active := item.Status == domain.QueueStatusAssigned || item.Status == domain.QueueStatusProcessing
		if active && item.AssignedAt != nil && item.AssignedAt.Before(cutoff) {
			item.Status = domain.QueueStatusFailed
			swept = append(swept, *item)
		}
	}
	return swept, nil
}

func (f *fakeQueue) Depth(context.Context) (int64, error) {
	var depth int64
	for _, item := range f.items {
		if item.Status == domain.QueueStatusQueued {
			depth++
		}
	}
	return depth, nil
}

func (f *fakeQueue) activeFor(journalID int64) *domain.QueueItem {
	for i := range f.items {
		item := &f.items[i]
		if item.JournalID != journalID {
			continue
		}
		switch item.Status {
		case domain.QueueStatusQueued, domain.QueueStatusAssigned, domain.QueueStatusProcessing:
			return item
		}
	}
	return nil
}

type fakeMetrics struct {
	records []domain.StepMetric
}

func (f *fakeMetrics) Record(_ context.Context, metric domain.StepMetric) error {
	f.records = append(f.records, metric)
	return nil
}

func (f *fakeMetrics) ListByJournalID(_ context.Context, journalID int64) ([]domain.StepMetric, error) {
	var out []domain.StepMetric
	for _, record := range f.records {
		if record.JournalID == journalID {
			out = append(out, record)
		}
	}
	return out, nil
}

func (f *fakeMetrics) steps() []string {
	out := make([]string, 0, len(f.records))
	for _, record := range f.records {
		out = append(out, record.Step)
	}
	return out
}

type fakeClassifier struct {
	documentType string
	subtype      string
}

func (f *fakeClassifier) Classify(string, string) (string, string) {
	return f.documentType, f.subtype
}

type fakeRuleSource struct {
	table *domain.RuleTable
	err   error
}

func (f *fakeRuleSource) Load() (*domain.RuleTable, error) {
	return f.table, f.err
}

type fakeTier struct {
	result domain.SimilarityResult
	err    error
	calls  int
}

func (f *fakeTier) Score(context.Context, *domain.LedgerEntry, []domain.LedgerEntry) (domain.SimilarityResult, error) {
	f.calls++
	return f.result, f.err
}

type fakeExtractor struct {
	text  string
	err   error
	calls int
}

func (f *fakeExtractor) Extract(context.Context, *domain.LedgerEntry) (string, error) {
	f.calls++
	return f.text, f.err
}

type fakeStorage struct {
	saved map[string][]byte
	err   error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{saved: map[string][]byte{}}
}

func (f *fakeStorage) Save(_ context.Context, key string, data io.Reader) error {
	if f.err != nil {
		return f.err
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.saved[key] = raw
	return nil
}

func (f *fakeStorage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	raw, ok := f.saved[key]
	if !ok {
		return nil, fmt.Errorf("no object %q", key)
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

type fakeBus struct {
	published []int64
	err       error
}

func (f *fakeBus) PublishSubmissionAccepted(_ context.Context, journalID int64) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, journalID)
	return nil
}

func (f *fakeBus) SubscribeSubmissionAccepted(context.Context, func(context.Context, int64) error) error {
	return nil
}

type fakeAnalyzer struct {
	result domain.AnalysisResult
	err    error
	calls  int
}

func (f *fakeAnalyzer) Analyze(context.Context, *domain.LedgerEntry) (domain.AnalysisResult, error) {
	f.calls++
	return f.result, f.err
}

func testRuleService(rules ...domain.TypeRule) *RuleService {
	if len(rules) == 0 {
		rules = []domain.TypeRule{
			{DocumentType: "legal_document", RequiresAIAnalysis: true, DefaultPriority: 9, MinAcceptableConfidence: 75},
			{DocumentType: domain.TypeUnclassified, DefaultPriority: 3, MinAcceptableConfidence: 50},
		}
	}
	svc, err := NewRuleService(&fakeRuleSource{table: domain.NewRuleTable(1, rules)})
	if err != nil {
		panic(err)
	}
	return svc
}
