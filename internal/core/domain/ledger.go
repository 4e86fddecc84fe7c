package domain

import (
	"encoding/json"
	"time"
)

type EntryStatus string

const (
	StatusPending             EntryStatus = "pending"
	StatusAssessing           EntryStatus = "assessing"
	StatusQueued              EntryStatus = "queued"
	StatusProcessing          EntryStatus = "processing"
	StatusCompleted           EntryStatus = "completed"
	StatusFailed              EntryStatus = "failed"
	StatusSkippedDuplicate    EntryStatus = "skipped_duplicate"
	StatusSkippedManualReview EntryStatus = "skipped_manual_review"
	StatusArchived            EntryStatus = "archived"
)

// allowedTransitions is the single source of truth for the entry state
// machine. An entry never moves backward into pending or assessing.
var allowedTransitions = map[EntryStatus][]EntryStatus{
	StatusPending:    {StatusAssessing},
	StatusAssessing:  {StatusQueued, StatusSkippedDuplicate, StatusSkippedManualReview, StatusFailed},
	StatusQueued:     {StatusProcessing, StatusFailed},
	StatusProcessing: {StatusCompleted, StatusFailed},
	StatusFailed:     {StatusQueued, StatusArchived},
	StatusCompleted:  {StatusArchived},
}

func CanTransition(from, to EntryStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func IsTerminal(status EntryStatus) bool {
	switch status {
	case StatusCompleted, StatusSkippedDuplicate, StatusSkippedManualReview, StatusArchived:
		return true
	default:
		return false
	}
}

// LedgerEntry is the permanent record of one submitted document. Rows are
// append-mostly: status moves forward through the state machine and the row
// is never deleted, so compliance replay always has the full history.
type LedgerEntry struct {
	JournalID          int64       `json:"journal_id"`
	ContentFingerprint string      `json:"content_fingerprint"`
	Filename           string      `json:"filename"`
	SourceChannel      string      `json:"source_channel"`
	SubmitterID        string      `json:"submitter_id"`
	SubmittedAt        time.Time   `json:"submitted_at"`
	DocumentType       string      `json:"document_type,omitempty"`
	DocumentSubtype    string      `json:"document_subtype,omitempty"`
	Status             EntryStatus `json:"status"`

	// Duplicate linkage. DuplicateOfJournalID is a soft back-reference,
	// informational only; it is set exactly when Status is skipped_duplicate.
	DuplicateOfJournalID *int64  `json:"duplicate_of_journal_id,omitempty"`
	DuplicateTier        *int    `json:"duplicate_tier,omitempty"`
	SimilarityScore      float64 `json:"similarity_score,omitempty"`

	// CaseRef is an optional opaque link into an external case-management
	// record. No referential integrity is enforced on it.
	CaseRef *string `json:"case_ref,omitempty"`

	Urgent        bool   `json:"urgent,omitempty"`
	StoragePath   string `json:"storage_path"`
	ExtractedText string `json:"-"`
	NeedsReview   bool   `json:"needs_review,omitempty"`

	Confidence  int             `json:"confidence,omitempty"`
	Findings    json.RawMessage `json:"findings,omitempty"`
	CostUnits   float64         `json:"cost_units,omitempty"`
	Error       string          `json:"error,omitempty"`
	ProcessedAt *time.Time      `json:"processed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
