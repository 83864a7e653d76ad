package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"billpay-wizard/internal/domain/ports/adapter"
	"billpay-wizard/internal/domain/ports/repository"
	"billpay-wizard/internal/infra/logging"
	"billpay-wizard/internal/usecase"
)

// SessionLimiter throttles session creation per subject. A nil limiter
// disables throttling.
type SessionLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RateConfig bounds session creation per subject.
type RateConfig struct {
	Limit  int
	Window time.Duration
}

// Server exposes the wizard engine to a host UI. The host renders; the
// engine decides.
type Server struct {
	wizard   *usecase.WizardUseCase
	catalog  *usecase.CatalogUseCase
	receipts repository.ReceiptRepository // optional
	auth     *AuthManager
	limiter  SessionLimiter
	rate     RateConfig
	mintKey  string
	log      *zerolog.Logger
}

func NewServer(
	wizard *usecase.WizardUseCase,
	catalog *usecase.CatalogUseCase,
	receipts repository.ReceiptRepository,
	auth *AuthManager,
	limiter SessionLimiter,
	rate RateConfig,
	mintKey string,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		wizard:   wizard,
		catalog:  catalog,
		receipts: receipts,
		auth:     auth,
		limiter:  limiter,
		rate:     rate,
		mintKey:  mintKey,
		log:      logger,
	}
}

// Routes builds the chi router for the engine API.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.traceMiddleware)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/api/v1/auth/token", s.mintTokenHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/services", s.listServicesHandler)
		r.Get("/receipts", s.listReceiptsHandler)
		r.Post("/wizard/sessions", s.createSessionHandler)
		r.Route("/wizard/sessions/{id}", func(r chi.Router) {
			r.Use(s.sessionContext)
			r.Get("/", s.getSessionHandler)
			r.Delete("/", s.cancelSessionHandler)
			r.Post("/fields", s.setFieldHandler)
			r.Post("/charges", s.toggleChargeHandler)
			r.Post("/next", s.nextHandler)
			r.Post("/previous", s.previousHandler)
		})
	})

	return r
}

type ctxKey string

const (
	ctxSubject ctxKey = "subject"
	ctxBearer  ctxKey = "bearer"
)

// traceMiddleware tags every request with a trace id for the log context.
func (s *Server) traceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.WithTraceID(r.Context(), ulid.Make().String())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authMiddleware verifies the host bearer token and stashes the subject and
// the raw credential for pass-through to the submission call.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, raw, err := s.auth.ParseFromRequest(r)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), ctxSubject, claims.Subject)
		ctx = context.WithValue(ctx, ctxBearer, raw)
		ctx = logging.WithSubject(ctx, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sessionContext puts the session id into the log context for all
// per-session handlers.
func (s *Server) sessionContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.WithSessID(r.Context(), chi.URLParam(r, "id"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func authFromContext(ctx context.Context) adapter.AuthContext {
	auth := adapter.AuthContext{}
	if v, ok := ctx.Value(ctxSubject).(string); ok {
		auth.Subject = v
	}
	if v, ok := ctx.Value(ctxBearer).(string); ok {
		auth.Bearer = v
	}
	return auth
}
