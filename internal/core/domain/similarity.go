package domain

// SimilarityResult is the outcome of running one duplicate-detection tier
// against the candidate's comparison corpus.
type SimilarityResult struct {
	Score            float64 `json:"score"`
	MatchedJournalID int64   `json:"matched_journal_id,omitempty"`
	Method           string  `json:"method"`
}

type Verdict string

const (
	// VerdictDuplicate declares the candidate a duplicate of the matched entry.
	VerdictDuplicate Verdict = "duplicate"
	// VerdictDistinct clears the candidate at this tier.
	VerdictDistinct Verdict = "distinct"
	// VerdictInconclusive lands in the gray zone and escalates to the next tier.
	VerdictInconclusive Verdict = "inconclusive"
)

// TierThresholds bound one tier's gray zone. Decisive thresholds are strict:
// a score exactly on a boundary stays inconclusive, so a boundary score is
// never counted as decisive by two tiers at once.
type TierThresholds struct {
	Low  float64 `yaml:"low" json:"low"`
	High float64 `yaml:"high" json:"high"`
}

// Evaluate maps a similarity score to a verdict. Pure; the whole escalation
// policy of the orchestrator reduces to this function per tier.
func (t TierThresholds) Evaluate(score float64) Verdict {
	switch {
	case score > t.High:
		return VerdictDuplicate
	case score < t.Low:
		return VerdictDistinct
	default:
		return VerdictInconclusive
	}
}
