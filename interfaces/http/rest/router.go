package rest

import (
	"net/http"

	"wedding-backend/application/commands/bus"
	querybus "wedding-backend/application/queries/bus"
	"wedding-backend/infrastructure/config"
	"wedding-backend/interfaces/http/rest/handlers"
	"wedding-backend/interfaces/http/rest/middleware"
	"wedding-backend/pkg/auth"
	pkgerrors "wedding-backend/pkg/errors"
	"wedding-backend/pkg/observability"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Router creates and configures the HTTP router
type Router struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	collector  *observability.Collector
	limiter    *auth.IPRateLimiter
	validator  *auth.JWTValidator
	cfg        *config.Config
	logger     *zap.Logger
}

// NewRouter creates a new router instance. validator may be nil, which
// disables the admin endpoints.
func NewRouter(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	collector *observability.Collector,
	limiter *auth.IPRateLimiter,
	validator *auth.JWTValidator,
	cfg *config.Config,
	logger *zap.Logger,
) *Router {
	return &Router{
		commandBus: commandBus,
		queryBus:   queryBus,
		collector:  collector,
		limiter:    limiter,
		validator:  validator,
		cfg:        cfg,
		logger:     logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	errs := pkgerrors.NewErrorHandler(rt.logger, rt.cfg.IsDevelopment())

	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(errs.Middleware)
	router.Use(middleware.Logger(rt.logger))
	router.Use(middleware.Metrics(rt.collector))

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   rt.cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		errs.HandleStatus(w, r, http.StatusNotFound, "route not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		errs.HandleStatus(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	router.Get("/health", rt.healthCheck)
	router.Handle("/metrics", rt.collector.Handler())

	rsvpHandler := handlers.NewRSVPHandler(rt.commandBus, rt.queryBus, errs, rt.logger)
	adminHandler := handlers.NewAdminHandler(rt.commandBus, rt.queryBus, rt.cfg.DefaultEventID, errs, rt.logger)

	router.Route("/api", func(r chi.Router) {
		// Guest endpoints
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(rt.limiter, rt.cfg.RateLimitPerMinute, errs, rt.logger))
			r.Post("/validate-invitation", rsvpHandler.ValidateInvitation)
			r.Post("/submit-rsvp", rsvpHandler.SubmitRSVP)
		})

		// Dashboard endpoints
		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin(rt.validator, errs, rt.logger))

			r.Get("/stats", adminHandler.GetStats)
			r.Get("/responses", adminHandler.RecentResponses)

			r.Route("/guests", func(r chi.Router) {
				r.Get("/", adminHandler.ListGuests)
				r.Put("/", adminHandler.UpdateGuest)
				r.Post("/import", adminHandler.ImportGuests)
				r.Get("/{email}/history", adminHandler.GetGuestHistory)
			})

			r.Route("/events/{eventId}", func(r chi.Router) {
				r.Get("/", adminHandler.GetEvent)
				r.Put("/", adminHandler.PutEvent)
				r.Post("/refresh", adminHandler.RefreshEventCounts)
			})

			r.Post("/groups/{groupId}/recompute", adminHandler.RecomputeGroup)
		})
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}
