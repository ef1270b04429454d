// Package httpadapter serves the REST API, the Telegram webhook, and the
// health, readiness and metrics endpoints.
package httpadapter

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/incident-alert-service/internal/adapter/telegram"
	"github.com/couchcryptid/incident-alert-service/internal/alert"
	"github.com/couchcryptid/incident-alert-service/internal/domain"
	"github.com/couchcryptid/incident-alert-service/internal/ingest"
)

// API is the ingestion surface the REST routes call.
type API interface {
	Ingest(ctx context.Context, sub ingest.Submission) (ingest.Outcome, error)
	Reports(ctx context.Context, status domain.Status, limit int) ([]domain.Report, error)
	Approve(ctx context.Context, id string) (domain.Report, *alert.Result, error)
	NotifyByID(ctx context.Context, id string) (alert.Result, error)
	Subscribe(ctx context.Context, subscriberID, location string, radiusMiles float64) (ingest.SubscribeOutcome, error)
	Unsubscribe(ctx context.Context, subscriberID string) error
	Subscription(ctx context.Context, subscriberID string) (domain.Subscription, bool, error)
}

// UpdateHandler consumes Telegram webhook updates.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, u telegram.Update) error
}

// Config wires a Server. Bot is optional; without it the webhook route is
// not registered.
type Config struct {
	Addr          string
	Ready         sharedobs.ReadinessChecker
	API           API
	Bot           UpdateHandler
	WebhookSecret string
}

// Server exposes the HTTP surface of the service.
type Server struct {
	httpServer *http.Server
	api        API
	bot        UpdateHandler
	secret     string
	logger     *slog.Logger
}

// NewServer creates an HTTP server with health, API and webhook routes.
func NewServer(cfg Config, logger *slog.Logger) *Server {
	router := mux.NewRouter()

	s := &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      router,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		api:    cfg.API,
		bot:    cfg.Bot,
		secret: cfg.WebhookSecret,
		logger: logger,
	}

	router.HandleFunc("/healthz", sharedobs.LivenessHandler()).Methods(http.MethodGet)
	router.HandleFunc("/readyz", sharedobs.ReadinessHandler(cfg.Ready)).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/reports", s.handleCreateReport).Methods(http.MethodPost)
	api.HandleFunc("/reports", s.handleListReports).Methods(http.MethodGet)
	api.HandleFunc("/reports/{id}/approve", s.handleApprove).Methods(http.MethodPost)
	api.HandleFunc("/reports/{id}/notify", s.handleNotify).Methods(http.MethodPost)
	api.HandleFunc("/subscriptions/{subscriberID}", s.handlePutSubscription).Methods(http.MethodPut)
	api.HandleFunc("/subscriptions/{subscriberID}", s.handleGetSubscription).Methods(http.MethodGet)
	api.HandleFunc("/subscriptions/{subscriberID}", s.handleDeleteSubscription).Methods(http.MethodDelete)

	if cfg.Bot != nil {
		router.HandleFunc("/telegram/webhook", s.handleTelegramWebhook).Methods(http.MethodPost)
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client may have gone away
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
