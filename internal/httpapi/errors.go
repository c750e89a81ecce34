package httpapi

import (
	"errors"
	"net/http"

	"unirecords.org/internal/auth"
	"unirecords.org/internal/obs"
)

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, auth.ErrInvalidInput), errors.Is(err, auth.ErrInvalidResetToken):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrIncorrectPassword),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrAccountInactive), errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, auth.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, auth.ErrConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// handleServiceError writes err with its mapped status. Unexpected errors are
// logged and hidden behind a generic message.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	switch code {
	case http.StatusInternalServerError:
		obs.Logger().ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, r, code, "internal server error")
		return
	case http.StatusForbidden:
		if errors.Is(err, auth.ErrForbidden) {
			obs.ObserveAuthzDenied(r.URL.Path)
		}
	case http.StatusUnauthorized:
		if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrUnauthorized) {
			w.Header().Set("WWW-Authenticate", `Bearer realm="unirecords"`)
		}
	}
	writeError(w, r, code, err.Error())
}
