package domain

import "time"

const (
	StepClassify   = "classify"
	StepTier0      = "tier0_filename"
	StepTier1      = "tier1_content"
	StepTier2      = "tier2_embedding"
	StepAnalysis   = "analysis"
	StepDispatched = "dispatch"
)

// StepMetric is one append-only audit record for a pipeline step. It is
// written for tuning and compliance review and never read back by the
// orchestrator to make decisions.
type StepMetric struct {
	ID         int64         `json:"id"`
	JournalID  int64         `json:"journal_id"`
	Step       string        `json:"step"`
	Outcome    string        `json:"outcome"`
	Score      float64       `json:"score,omitempty"`
	Duration   time.Duration `json:"duration"`
	CostUnits  float64       `json:"cost_units,omitempty"`
	RecordedAt time.Time     `json:"recorded_at"`
}
