package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateFingerprint is the benign, expected outcome of resubmitting
	// byte-identical content; surfaced to the caller at submission time.
	ErrDuplicateFingerprint = errors.New("duplicate content fingerprint")
	// ErrInvalidTransition guards the entry state machine against races;
	// callers treat it as a no-op.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrUnknownType means even the catch-all rule is missing from the rule
	// table: a configuration defect, not runtime data.
	ErrUnknownType   = errors.New("unknown document type")
	ErrEntryNotFound = errors.New("ledger entry not found")
	ErrQueueEmpty    = errors.New("queue empty")
	// ErrAnalysisService marks transient analysis-service failures that the
	// dispatcher retries up to the configured attempt bound.
	ErrAnalysisService = errors.New("analysis service failure")
	ErrTemporary       = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
