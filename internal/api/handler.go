// Package api exposes the account-lifecycle operations over JSON HTTP. Each
// request resumes a coordinator for the caller's session, runs exactly one
// operation through it, and persists the session changes it produced.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"golang.org/x/text/language"

	"github.com/pocketshop-app/identity/internal/authflow"
	"github.com/pocketshop-app/identity/internal/identity"
	"github.com/pocketshop-app/identity/internal/observability"
	"github.com/pocketshop-app/identity/internal/platform/httpx"
	"github.com/pocketshop-app/identity/internal/provider"
	"github.com/pocketshop-app/identity/internal/shared"
)

// Handler serves the identity HTTP API.
type Handler struct {
	logger   *slog.Logger
	provider *provider.Provider
	sessions *shared.SessionManager
	catalog  *identity.Catalog
	validate *validator.Validate
	metrics  *observability.Metrics

	rateLimit  int
	rateWindow time.Duration
}

// HandlerConfig collects the handler dependencies.
type HandlerConfig struct {
	Logger         *slog.Logger
	Provider       *provider.Provider
	SessionManager *shared.SessionManager
	Catalog        *identity.Catalog
	Metrics        *observability.Metrics
	// AuthRateLimit throttles the credential endpoints per client IP.
	AuthRateLimit       int
	AuthRateLimitWindow time.Duration
}

// NewHandler constructs the API handler.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	catalog := cfg.Catalog
	if catalog == nil {
		catalog = identity.NewCatalog()
	}
	return &Handler{
		logger:   logger,
		provider: cfg.Provider,
		sessions: cfg.SessionManager,
		catalog:  catalog,
		validate: validator.New(),
		metrics:  cfg.Metrics,

		rateLimit:  cfg.AuthRateLimit,
		rateWindow: cfg.AuthRateLimitWindow,
	}
}

// MountRoutes attaches the API routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Use(AuthRateLimiter(h.rateLimit, h.rateWindow))
		r.Post("/login", h.login)
		r.Post("/signup", h.signup)
		r.Post("/logout", h.logout)
		r.Post("/verification-email", h.sendVerificationEmail)
		r.Post("/password-reset", h.resetPassword)
	})
	r.Route("/account", func(r chi.Router) {
		r.Use(h.requireSession)
		r.Get("/", h.account)
		r.Post("/refresh", h.refresh)
		r.Put("/display-name", h.updateDisplayName)
		r.Put("/password", h.changePassword)
		r.Post("/email-change", h.changeEmail)
		r.Delete("/email-change", h.cancelEmailChange)
		r.Delete("/", h.deleteAccount)
	})
	// The GET routes are the link targets from the emails themselves.
	r.Route("/actions", func(r chi.Router) {
		r.Get("/verify-email", h.verifyEmail)
		r.Post("/verify-email", h.verifyEmail)
		r.Post("/reset-password", h.applyPasswordReset)
		r.Get("/confirm-email-change", h.confirmEmailChange)
		r.Post("/confirm-email-change", h.confirmEmailChange)
	})
}

// AuthRateLimiter returns the brute-force limiter applied to /auth routes.
// It keys by client IP so a throttled caller maps onto the too-many-requests
// error the clients already explain to users.
func AuthRateLimiter(limit int, window time.Duration) func(http.Handler) http.Handler {
	if limit <= 0 {
		limit = 10
	}
	if window <= 0 {
		window = time.Minute
	}
	return httprate.Limit(limit, window, httprate.WithKeyFuncs(httprate.KeyByIP))
}

func (h *Handler) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shared.SessionFromContext(r.Context()) == nil {
			httpx.Problem(w, http.StatusUnauthorized, "unauthorized", "missing or expired session")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// resume builds a per-request coordinator bound to the caller's session.
// Callers must invoke the returned cleanup.
func (h *Handler) resume(r *http.Request) (*authflow.Coordinator, *provider.Client, func(), error) {
	var accountID, pendingEmail string
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		accountID = sess.AccountID
		pendingEmail = sess.PendingEmail
	}
	client, err := h.provider.ClientFor(r.Context(), accountID)
	if err != nil {
		return nil, nil, nil, err
	}
	co := authflow.Resume(client, authflow.Config{
		Logger:   h.logger,
		Catalog:  h.catalog,
		Language: h.lang(r),
	}, pendingEmail)
	cleanup := func() {
		co.Close()
		client.Close()
	}
	return co, client, cleanup, nil
}

func (h *Handler) lang(r *http.Request) language.Tag {
	return h.catalog.Match(r.Header.Get("Accept-Language"))
}

func (h *Handler) observe(op string, res authflow.Result) {
	h.metrics.ObserveAuthOperation(op, res.Success)
}

// respondBackendErr maps a backend error to a problem response with a
// localized detail message.
func (h *Handler) respondBackendErr(w http.ResponseWriter, r *http.Request, err error) {
	code := identity.CodeOf(err)
	status := httpx.StatusForCode(code)
	if status >= http.StatusInternalServerError {
		h.logger.Error("backend failure", slog.Any("error", err))
	}
	httpx.Problem(w, status, code.String(), h.catalog.Message(h.lang(r), code))
}
