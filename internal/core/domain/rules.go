package domain

// TypeUnclassified is the stable fallback category. The rule table always
// carries a rule for it; classification accuracy is refined later by the
// analysis step, not by the intake gate.
const TypeUnclassified = "unclassified"

// TypeRule holds the per-category processing policy applied by the
// assessment orchestrator.
type TypeRule struct {
	DocumentType            string `yaml:"document_type" json:"document_type"`
	RequiresOpticalExtract  bool   `yaml:"requires_optical_extraction" json:"requires_optical_extraction"`
	RequiresAIAnalysis      bool   `yaml:"requires_ai_analysis" json:"requires_ai_analysis"`
	RequiresManualReview    bool   `yaml:"requires_manual_review" json:"requires_manual_review"`
	DefaultPriority         int    `yaml:"default_priority" json:"default_priority"`
	MinAcceptableConfidence int    `yaml:"min_acceptable_confidence" json:"min_acceptable_confidence"`
}

// RuleTable is an immutable snapshot of the per-type rules. The orchestrator
// never mutates it; an administrative reload swaps in a whole new snapshot.
type RuleTable struct {
	version int64
	rules   map[string]TypeRule
}

func NewRuleTable(version int64, rules []TypeRule) *RuleTable {
	byType := make(map[string]TypeRule, len(rules))
	for _, rule := range rules {
		byType[rule.DocumentType] = rule
	}
	return &RuleTable{version: version, rules: byType}
}

func (t *RuleTable) Version() int64 { return t.version }

// Lookup returns the rule for documentType, falling back to the catch-all
// rule. A table without even the catch-all is a configuration defect.
func (t *RuleTable) Lookup(documentType string) (TypeRule, error) {
	if rule, ok := t.rules[documentType]; ok {
		return rule, nil
	}
	if rule, ok := t.rules[TypeUnclassified]; ok {
		return rule, nil
	}
	return TypeRule{}, WrapError(ErrUnknownType, "rule lookup", errMissingCatchAll)
}

var errMissingCatchAll = errString("rule table has no catch-all rule")

type errString string

func (e errString) Error() string { return string(e) }
