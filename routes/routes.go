package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/upb/arp-template-pdp/app"
	"github.com/upb/arp-template-pdp/handlers"
	"github.com/upb/arp-template-pdp/middleware"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.RequestContext)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(chimiddleware.Recoverer)
	if timeout := deps.Config.Server.RequestTimeout; timeout > 0 {
		r.Use(chimiddleware.Timeout(timeout))
	}

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	health := handlers.NewHealthHandler(healthChecks(deps), deps.Logger)
	pdpHandler := handlers.NewPDPHandler(deps.PDP, deps.Logger)
	auditHandler := handlers.NewAuditHandler(deps.AuditRepo, deps.Logger)

	// Probes
	r.Get("/healthz", health.HandleLiveness)
	r.Get("/readyz", health.HandleReadiness)

	// ARP PDP v1
	r.Route("/v1", func(r chi.Router) {
		// Public routes
		r.Get("/health", pdpHandler.HandleHealth)
		r.Get("/version", pdpHandler.HandleVersion)

		// Routes that carry a bearer token when auth is enabled
		r.Group(func(r chi.Router) {
			protect(r, deps)
			r.Post("/policy:decide", pdpHandler.HandleDecide)

			r.Route("/audit/decisions", func(r chi.Router) {
				r.Get("/", auditHandler.HandleList)
				r.Get("/{id}", auditHandler.HandleGet)
			})
		})
	})

	r.NotFound(handlers.NotFound)
	r.MethodNotAllowed(handlers.MethodNotAllowed)

	return r
}

func protect(r chi.Router, deps *app.Dependencies) {
	if deps.AuthMiddleware == nil {
		return
	}
	r.Use(deps.AuthMiddleware.RequireAuth)
	if scope := deps.Config.Auth.RequiredScope; scope != "" {
		r.Use(deps.AuthMiddleware.RequireScope(scope))
	}
}

func healthChecks(deps *app.Dependencies) map[string]handlers.HealthChecker {
	// A nil checker is reported as disabled
	checks := map[string]handlers.HealthChecker{"audit_db": nil, "audit_queue": nil}
	if deps.AuditDB != nil {
		checks["audit_db"] = deps.AuditDB
	}
	if deps.Audit != nil {
		checks["audit_queue"] = deps.Audit
	}
	return checks
}
