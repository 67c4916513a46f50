// Package api serves the lead intake, listing and sync endpoints.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sells-group/leadsync/internal/enrich"
	"github.com/sells-group/leadsync/internal/metrics"
	"github.com/sells-group/leadsync/internal/model"
	"github.com/sells-group/leadsync/internal/store"
)

// LeadStore is the part of store.Store the handlers use.
type LeadStore interface {
	CreateLead(ctx context.Context, lead model.NewLead) (*model.Lead, error)
	ListLeads(ctx context.Context, filter store.LeadFilter) ([]model.Lead, error)
	Ping(ctx context.Context) error
}

// Processor enriches a batch of names.
type Processor interface {
	Process(ctx context.Context, names []string) ([]enrich.Result, error)
}

// SyncRunner runs the sync task once.
type SyncRunner interface {
	Run(ctx context.Context) (int, error)
}

// Options configures a Server.
type Options struct {
	// SyncSecret must match the x-cron-secret header. Empty rejects every
	// sync request.
	SyncSecret     string
	AllowedOrigins []string
	HealthTimeout  time.Duration
}

// Server holds the HTTP handlers and their dependencies.
type Server struct {
	store     LeadStore
	processor Processor
	syncer    SyncRunner
	opts      Options
}

// New creates a Server.
func New(st LeadStore, processor Processor, syncer SyncRunner, opts Options) *Server {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if opts.HealthTimeout <= 0 {
		opts.HealthTimeout = 2 * time.Second
	}
	return &Server{store: st, processor: processor, syncer: syncer, opts: opts}
}

// Router builds the chi router with middleware and routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", SecretHeader},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Post("/leads", s.handleCreateLeads)
	r.Get("/leads", s.handleListLeads)

	r.Group(func(r chi.Router) {
		r.Use(requireSecret(s.opts.SyncSecret))
		r.Post("/sync", s.handleSync)
		r.Get("/sync", s.handleSync)
	})

	return r
}
