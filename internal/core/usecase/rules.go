package usecase

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/dondada876/ASEAGI-sub001/internal/core/domain"
	"github.com/dondada876/ASEAGI-sub001/internal/core/ports"
)

// RuleService owns the current rule-table snapshot. Readers get a consistent
// immutable table; Reload swaps the whole snapshot atomically, which is the
// only sanctioned mutation path for type rules.
type RuleService struct {
	source  ports.RuleSource
	current atomic.Pointer[domain.RuleTable]
}

func NewRuleService(source ports.RuleSource) (*RuleService, error) {
	svc := &RuleService{source: source}
	table, err := source.Load()
	if err != nil {
		return nil, fmt.Errorf("load initial rule table: %w", err)
	}
	svc.current.Store(table)
	return svc, nil
}

func (s *RuleService) Current() *domain.RuleTable {
	return s.current.Load()
}

func (s *RuleService) Reload(_ context.Context) (int64, error) {
	table, err := s.source.Load()
	if err != nil {
		return 0, fmt.Errorf("reload rule table: %w", err)
	}
	s.current.Store(table)
	return table.Version(), nil
}
