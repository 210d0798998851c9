// Package api wires the REST surface: routing, middleware, and the
// per-module handlers. Every mutating handler runs the same pipeline:
// authenticate, authorize, row-scope, mutate, fan out notifications,
// record audit, envelope.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/meridiancrm/meridian/pkg/audit"
	"github.com/meridiancrm/meridian/pkg/auth"
	"github.com/meridiancrm/meridian/pkg/authz"
	"github.com/meridiancrm/meridian/pkg/crm"
	"github.com/meridiancrm/meridian/pkg/httputil"
	"github.com/meridiancrm/meridian/pkg/notifications"
	"github.com/meridiancrm/meridian/pkg/observability"
)

// Config carries the server's collaborators
type Config struct {
	Logger  *observability.Logger
	Metrics *observability.Metrics
	Policy  *authz.Policy

	Auth      *auth.Service
	Leads     *crm.LeadStore
	Contacts  *crm.ContactStore
	Accounts  *crm.AccountStore
	Deals     *crm.DealStore
	Tasks     *crm.TaskStore
	Campaigns *crm.CampaignStore
	Comms     *crm.CommunicationStore
	Converter *crm.Converter
	Reports   *crm.ReportStore
	Org       *crm.OrganizationStore

	Notifications *notifications.Store
	Fanout        *notifications.Fanout
	AuditStore    *audit.Store
	Recorder      *audit.Recorder

	// Tracing wraps the router in otelhttp when true
	Tracing bool
}

// Server is the HTTP API
type Server struct {
	cfg    Config
	router *mux.Router
}

// NewServer builds the router
func NewServer(cfg Config) *Server {
	s := &Server{cfg: cfg, router: mux.NewRouter()}
	s.routes()
	return s
}

// Handler returns the fully wrapped root handler
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.router
	if s.cfg.Tracing {
		h = otelhttp.NewHandler(h, "meridian-api")
	}
	return h
}

func (s *Server) routes() {
	s.router.Use(
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(s.cfg.Logger),
		s.cfg.Metrics.Middleware(routeTemplate),
		httputil.RecoveryMiddleware,
		httputil.ContentTypeMiddleware,
	)

	s.router.NotFoundHandler = s.withBaseMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteNotFound(w, "route not found")
	}))

	api := s.router.PathPrefix("/api").Subrouter()

	// Auth surface: register/login/refresh are unauthenticated
	authRouter := api.PathPrefix("/auth").Subrouter()
	authRouter.HandleFunc("/register", s.handleRegister).Methods(http.MethodPost)
	authRouter.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	authRouter.HandleFunc("/refresh-token", s.handleRefresh).Methods(http.MethodPost)

	authed := api.NewRoute().Subrouter()
	authed.Use(auth.Middleware(s.cfg.Auth))

	authed.HandleFunc("/auth/logout", s.handleLogout).Methods(http.MethodPost)
	authed.HandleFunc("/auth/me", s.handleMe).Methods(http.MethodGet)

	s.userRoutes(authed)
	s.leadRoutes(authed)
	s.contactRoutes(authed)
	s.accountRoutes(authed)
	s.dealRoutes(authed)
	s.taskRoutes(authed)
	s.campaignRoutes(authed)
	s.communicationRoutes(authed)
	s.notificationRoutes(authed)
	s.reportRoutes(authed)
	s.organizationRoutes(authed)
	s.auditRoutes(authed)
}

// withBaseMiddleware applies the router-level middleware to handlers
// that mux does not route through Use (the 404 catch-all)
func (s *Server) withBaseMiddleware(h http.Handler) http.Handler {
	return httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(s.cfg.Logger),
		httputil.RecoveryMiddleware,
	)(h)
}

// requireRoles gates one route on a static role set
func (s *Server) requireRoles(h http.HandlerFunc, roles ...auth.Role) http.Handler {
	return authz.RequireRoles(s.cfg.Policy, roles...)(h)
}

// routeTemplate labels metrics with the mux route template so ids do
// not explode the label space
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return r.URL.Path
}
