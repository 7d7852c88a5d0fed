package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/docsync/internal/common"
)

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	var malformed errMalformedJSON
	switch {
	case errors.As(err, &malformed):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrConflict), errors.Is(err, common.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, common.ErrUnauthorized), errors.Is(err, common.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// handleError writes err as a problem document. Internal errors are logged
// and their text is not exposed.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
		if status == http.StatusInternalServerError {
			RespondError(w, status, "internal server error")
			return
		}
	}
	RespondError(w, status, err.Error())
}
