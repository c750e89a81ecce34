package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"unirecords.org/internal/auth"
	"unirecords.org/internal/obs"
	"unirecords.org/internal/students"
)

// ReadyProbe pings the database when one is configured.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer.
type API struct {
	router     chi.Router
	readyProbe ReadyProbe
	auth       *auth.Service
	students   *students.Service

	version      string
	rateBurst    int
	ratePerSec   int
	maxBodyBytes int64
	corsOrigins  []string
	trusted      []netip.Prefix
}

// Option configures API.
type Option func(*API)

func WithVersion(v string) Option {
	return func(a *API) { a.version = v }
}

// WithRateLimit sets the per-client token bucket applied to public auth routes.
func WithRateLimit(burst, perSecond int) Option {
	return func(a *API) {
		if burst > 0 && perSecond > 0 {
			a.rateBurst, a.ratePerSec = burst, perSecond
		}
	}
}

func WithMaxBodyBytes(n int64) Option {
	return func(a *API) {
		if n > 0 {
			a.maxBodyBytes = n
		}
	}
}

// WithCORSOrigins lists browser origins allowed to call the API.
func WithCORSOrigins(origins []string) Option {
	return func(a *API) { a.corsOrigins = origins }
}

// WithTrustedProxies lists the reverse proxies whose X-Forwarded-For header is
// believed when resolving client addresses. Without it the direct peer is used.
func WithTrustedProxies(prefixes []netip.Prefix) Option {
	return func(a *API) { a.trusted = prefixes }
}

func New(rp ReadyProbe, authSvc *auth.Service, studentSvc *students.Service, opts ...Option) *API {
	a := &API{
		readyProbe:   rp,
		auth:         authSvc,
		students:     studentSvc,
		version:      "dev",
		rateBurst:    10,
		ratePerSec:   5,
		maxBodyBytes: 1 << 20,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.router = a.routes()
	return a
}

// Handler returns the root handler for the HTTP server.
func (a *API) Handler() http.Handler {
	return a.router
}

func (a *API) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(RequestID, ClientIP(a.trusted), obs.Instrument, LoggingJSON, middleware.Recoverer, SecurityHeaders)
	// an empty origin list would make cors allow every origin
	if len(a.corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: a.corsOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", requestIDHeader},
			ExposedHeaders: []string{requestIDHeader},
			MaxAge:         600,
		}))
	}
	r.Use(func(next http.Handler) http.Handler { return MaxBodyBytes(next, a.maxBodyBytes) })

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "resource not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/healthz", a.Healthz)
	r.Get("/readyz", a.Ready)
	r.Get("/v1/info", a.Info)
	r.Handle("/metrics", obs.Handler())

	r.Route("/v1/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(func(next http.Handler) http.Handler { return RateLimit(next, a.rateBurst, a.ratePerSec) })
			r.Post("/login", a.handleLogin)
			r.Post("/forgot-password", a.handleForgotPassword)
			r.Post("/reset-password", a.handleResetPassword)
		})
		r.Group(func(r chi.Router) {
			r.Use(a.withAuth)
			r.Post("/change-password", a.handleChangePassword)
			r.Get("/me", a.handleMe)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(a.withAuth)
		r.With(RequireRole(auth.RoleAdmin, auth.RoleRegistrar)).Post("/v1/users", a.handleCreateUser)
		r.With(RequireRole(auth.RoleAdmin)).Post("/v1/users/{id}/require-password-change", a.handleRequirePasswordChange)
		r.Get("/v1/students", a.handleListStudents)
		r.Get("/v1/students/{id}", a.handleGetStudent)
	})
	return r
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "unirecords-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.readyProbe.Check(ctx); err != nil {
		obs.Logger().WarnContext(r.Context(), "readiness check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "unirecords-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}
