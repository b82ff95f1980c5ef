package httpadapter

import (
	"net/http"

	"github.com/kirillkom/contract-risk-assistant/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrDocumentNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrDuplicateID),
		domain.IsKind(err, domain.ErrInvalidTransition),
		domain.IsKind(err, domain.ErrAnalysisCancelled):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrUnsupportedContent):
		return http.StatusUnsupportedMediaType
	case domain.IsKind(err, domain.ErrInvalidSpan),
		domain.IsKind(err, domain.ErrInvalidEncoding):
		return http.StatusUnprocessableEntity
	case domain.IsKind(err, domain.ErrMalformedAnalysis):
		return http.StatusBadGateway
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
