// Package api exposes qualification, lifecycle and automation operations
// over HTTP. Every /v1 route is scoped to the tenant in X-Tenant-ID.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/olvconsultores/stratevo/internal/insights"
	"github.com/olvconsultores/stratevo/internal/lifecycle"
	"github.com/olvconsultores/stratevo/internal/model"
	"github.com/olvconsultores/stratevo/internal/qualify"
)

// Store is the read/write surface handlers use directly.
type Store interface {
	GetCompany(ctx context.Context, tenantID, id string) (*model.Company, error)
	GetICP(ctx context.Context, tenantID, id string) (*model.ICP, error)
	SaveICP(ctx context.Context, icp *model.ICP) error
	SaveRule(ctx context.Context, r *model.AutomationRule) error
}

// Qualifier scores one company against an ICP.
type Qualifier interface {
	QualifyOne(ctx context.Context, icp *model.ICP, company *model.Company) (*qualify.Outcome, error)
}

// Lifecycle applies result and deal transitions.
type Lifecycle interface {
	Quarantine(ctx context.Context, tenantID, resultID string) (*model.QualificationResult, error)
	Approve(ctx context.Context, tenantID, resultID string, in lifecycle.ApproveInput) (*lifecycle.Approval, error)
	Discard(ctx context.Context, tenantID, resultID, reason string) (*model.QualificationResult, error)
	Restore(ctx context.Context, tenantID, resultID, reason string) (*model.QualificationResult, error)
	Purge(ctx context.Context, tenantID, resultID string) error
	AdvanceDeal(ctx context.Context, tenantID, dealID string) (*model.Deal, error)
	CloseDeal(ctx context.Context, tenantID, dealID string, won bool) (*model.Deal, error)
}

// Automation exposes the admin queue of failed deliveries.
type Automation interface {
	ListFailed(ctx context.Context, tenantID string) ([]model.FireMarker, error)
	Retrigger(ctx context.Context, tenantID, ruleID, entityID string) error
}

// Insights analyses call transcripts.
type Insights interface {
	Analyze(ctx context.Context, call insights.Call) (*model.CallInsight, error)
}

// Deps are the services the server routes to. Insights may be nil, in
// which case the call webhook is not mounted.
type Deps struct {
	Store      Store
	Qualifier  Qualifier
	Lifecycle  Lifecycle
	Automation Automation
	Insights   Insights
}

// Options configures the HTTP surface.
type Options struct {
	AllowedOrigins []string
	WebhookSecret  string
	RequestTimeout time.Duration
}

// Server holds the handlers.
type Server struct {
	deps Deps
	opts Options
	log  *zap.Logger
}

// NewServer creates a Server.
func NewServer(deps Deps, opts Options) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	return &Server{
		deps: deps,
		opts: opts,
		log:  zap.L().With(zap.String("component", "api")),
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", TenantHeader, ActorHeader},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(s.opts.RequestTimeout))
		r.Use(s.requireTenant)

		r.Post("/icps", s.createICP)
		r.Post("/companies/{id}/qualify", s.qualifyCompany)

		r.Post("/results/{id}/quarantine", s.quarantine)
		r.Post("/results/{id}/approve", s.approve)
		r.Post("/results/{id}/discard", s.discard)
		r.Post("/results/{id}/restore", s.restore)
		r.Delete("/results/{id}", s.purge)

		r.Post("/deals/{id}/advance", s.advanceDeal)
		r.Post("/deals/{id}/close", s.closeDeal)

		r.Post("/automation/rules", s.createRule)
		r.Get("/automation/failures", s.listFailures)
		r.Post("/automation/failures/retrigger", s.retrigger)

		if s.deps.Insights != nil {
			r.With(s.requireWebhookSecret).Post("/webhooks/calls", s.callWebhook)
		}
	})

	return r
}
