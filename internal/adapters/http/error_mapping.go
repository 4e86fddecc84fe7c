package httpadapter

import (
	"net/http"

	"github.com/dondada876/ASEAGI-sub001/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrDuplicateFingerprint):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrInvalidTransition):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrEntryNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrTemporary), domain.IsKind(err, domain.ErrAnalysisService):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
