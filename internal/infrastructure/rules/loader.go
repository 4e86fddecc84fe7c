package rules

import (
	"fmt"
	"os"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/dondada876/ASEAGI-sub001/internal/core/domain"
)

// Loader builds immutable rule-table snapshots. Rules come from a YAML file
// when one is configured; the compiled-in seed table is used otherwise, so
// the gate can run standalone. Each Load bumps the snapshot version.
type Loader struct {
	path    string
	version atomic.Int64
}

func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

func (l *Loader) Load() (*domain.RuleTable, error) {
	ruleSet := seedRules()
	if l.path != "" {
		loaded, err := l.loadFile()
		if err != nil {
			return nil, err
		}
		ruleSet = mergeRules(ruleSet, loaded)
	}
	for _, rule := range ruleSet {
		if err := validateRule(rule); err != nil {
			return nil, err
		}
	}
	return domain.NewRuleTable(l.version.Add(1), ruleSet), nil
}

func (l *Loader) loadFile() ([]domain.TypeRule, error) {
	raw, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read rule file %s: %w", l.path, err)
	}
	var doc struct {
		Rules []domain.TypeRule `yaml:"rules"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse rule file %s: %w", l.path, err)
	}
	return doc.Rules, nil
}

// mergeRules overlays file rules on the seed set, so a partial file only
// overrides the categories it names.
func mergeRules(seed, overrides []domain.TypeRule) []domain.TypeRule {
	byType := make(map[string]int, len(seed))
	out := make([]domain.TypeRule, len(seed))
	copy(out, seed)
	for i, rule := range out {
		byType[rule.DocumentType] = i
	}
	for _, rule := range overrides {
		if i, ok := byType[rule.DocumentType]; ok {
			out[i] = rule
			continue
		}
		out = append(out, rule)
	}
	return out
}

func validateRule(rule domain.TypeRule) error {
	if rule.DocumentType == "" {
		return fmt.Errorf("rule with empty document_type")
	}
	if rule.DefaultPriority < 1 || rule.DefaultPriority > 10 {
		return fmt.Errorf("rule %s: default_priority %d outside 1-10", rule.DocumentType, rule.DefaultPriority)
	}
	if rule.MinAcceptableConfidence < 0 || rule.MinAcceptableConfidence > 100 {
		return fmt.Errorf("rule %s: min_acceptable_confidence %d outside 0-100", rule.DocumentType, rule.MinAcceptableConfidence)
	}
	return nil
}

func seedRules() []domain.TypeRule {
	return []domain.TypeRule{
		{
			DocumentType:            "legal_document",
			RequiresOpticalExtract:  true,
			RequiresAIAnalysis:      true,
			DefaultPriority:         9,
			MinAcceptableConfidence: 75,
		},
		{
			DocumentType:            "financial_record",
			RequiresOpticalExtract:  true,
			RequiresAIAnalysis:      true,
			DefaultPriority:         7,
			MinAcceptableConfidence: 80,
		},
		{
			DocumentType:            "identity_document",
			RequiresOpticalExtract:  true,
			RequiresManualReview:    true,
			DefaultPriority:         8,
			MinAcceptableConfidence: 90,
		},
		{
			DocumentType:            "photo_capture",
			RequiresOpticalExtract:  true,
			RequiresAIAnalysis:      true,
			DefaultPriority:         5,
			MinAcceptableConfidence: 60,
		},
		{
			DocumentType:            "report",
			RequiresAIAnalysis:      true,
			DefaultPriority:         6,
			MinAcceptableConfidence: 70,
		},
		{
			DocumentType:            domain.TypeUnclassified,
			RequiresOpticalExtract:  true,
			RequiresAIAnalysis:      true,
			DefaultPriority:         3,
			MinAcceptableConfidence: 50,
		},
	}
}
