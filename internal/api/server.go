// Package api exposes the decision engine over HTTP: the three decision
// endpoints, the outcome feedback endpoint, a read-only config view, and the
// rule administration surface.
package api

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/anakin-skynnet/payment-analysis-sub000/internal/audit"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/outcome"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/policy"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/snapshot"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/store"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/telemetry"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/webhook"
)

type Server struct {
	engine      *policy.Engine
	cache       *snapshot.Cache
	store       store.Store
	recorder    *outcome.Recorder
	audit       *audit.Service
	hooks       *webhook.Dispatcher
	adminAPIKey string
	timeout     time.Duration
}

// NewServer wires the HTTP surface. The audit service and webhook dispatcher
// are optional; pass nil to disable rule change auditing or notifications.
func NewServer(engine *policy.Engine, cache *snapshot.Cache, st store.Store, rec *outcome.Recorder,
	auditSvc *audit.Service, hooks *webhook.Dispatcher, adminKey string, timeout time.Duration) *Server {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Server{
		engine:      engine,
		cache:       cache,
		store:       st,
		recorder:    rec,
		audit:       auditSvc,
		hooks:       hooks,
		adminAPIKey: adminKey,
		timeout:     timeout,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(middleware.Timeout(s.timeout))
	r.Use(telemetry.Middleware)

	// health
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/v1/decisions", func(r chi.Router) {
		r.Post("/authentication", s.handleDecision(decisionKindAuthentication))
		r.Post("/retry", s.handleDecision(decisionKindRetry))
		r.Post("/routing", s.handleDecision(decisionKindRouting))
		r.Post("/outcome", s.handleOutcome)
		r.Get("/config", s.handleConfig)
	})

	r.Route("/v1/rules", func(r chi.Router) {
		r.Get("/", s.handleListRules)
		r.Post("/", s.authAdmin(s.handleCreateRule))
		r.Get("/{id}", s.handleGetRule)
		r.Patch("/{id}", s.authAdmin(s.handleUpdateRule))
		r.Delete("/{id}", s.authAdmin(s.handleDeleteRule))
	})

	return r
}

// ---- middleware & helpers ----

func (s *Server) authAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		got := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer"))
		got = strings.TrimSpace(strings.TrimPrefix(got, "Bearer"))
		if got == "" {
			UnauthorizedError(w, r, "missing bearer token")
			return
		}
		// constant-time compare
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.adminAPIKey)) != 1 {
			ForbiddenError(w, r, "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
