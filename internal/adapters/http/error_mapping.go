package httpadapter

import (
	"net/http"

	"github.com/saglikai/medrag/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrDocumentNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrUngroundedCitation):
		return http.StatusBadGateway
	case domain.IsKind(err, domain.ErrIndexUnavailable):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// publicErrorMessage hides internal error chains on 5xx responses; the
// full error goes to the log instead.
func publicErrorMessage(status int, err error) string {
	if status < 500 {
		return err.Error()
	}
	switch status {
	case http.StatusBadGateway:
		return "answer could not be grounded in the retrieved sources"
	case http.StatusServiceUnavailable:
		return "service temporarily unavailable"
	default:
		return "internal error"
	}
}
