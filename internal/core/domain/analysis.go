package domain

import "encoding/json"

// AnalysisResult is the contract consumed from the external analysis
// service. StructuredFindings is stored opaquely; the core only reads
// Confidence against the type rule's minimum. RawMessage keeps the
// findings as JSON on the way back out instead of base64.
type AnalysisResult struct {
	Confidence         int             `json:"confidence"`
	ExtractedText      string          `json:"extracted_text"`
	StructuredFindings json.RawMessage `json:"structured_findings"`
	CostUnits          float64         `json:"cost_units"`
}
