package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"unirecords.org/internal/auth"
	"unirecords.org/internal/obs"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "

	msgMissingToken = "Missing or invalid authorization token"
)

var errMissingToken = auth.PublicError(auth.ErrUnauthorized, msgMissingToken)

// withAuth resolves the bearer token into an auth.Caller or rejects the request with 401.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			unauthorized(w, r, err.Error())
			return
		}
		caller, err := a.auth.Authenticate(r.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidToken) {
				unauthorized(w, r, auth.ErrInvalidToken.Error())
				return
			}
			handleServiceError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.ContextWithCaller(r.Context(), caller)))
	})
}

// RequireRole admits only callers whose role is on the allow-list.
func RequireRole(roles ...auth.Role) func(http.Handler) http.Handler {
	rule := auth.AllowRoles(roles...)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, ok := auth.CallerFromContext(r.Context())
			if !ok {
				unauthorized(w, r, msgMissingToken)
				return
			}
			if err := rule.Authorize(caller, 0); err != nil {
				obs.ObserveAuthzDenied(r.URL.Path)
				w.Header().Set("WWW-Authenticate", `Bearer realm="unirecords", error="insufficient_scope"`)
				writeError(w, r, http.StatusForbidden, auth.ErrForbidden.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter, r *http.Request, msg string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="unirecords"`)
	writeError(w, r, http.StatusUnauthorized, msg)
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if len(header) < len(bearer) || !strings.EqualFold(header[:len(bearer)], bearer) {
		return "", errMissingToken
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errMissingToken
	}
	return token, nil
}

// callerFrom returns the caller set by withAuth. Routes mounted behind withAuth always have one.
func callerFrom(w http.ResponseWriter, r *http.Request) (auth.Caller, bool) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		unauthorized(w, r, msgMissingToken)
	}
	return caller, ok
}
