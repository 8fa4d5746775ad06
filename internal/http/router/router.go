package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/straye-as/measure-api/internal/auth"
	"github.com/straye-as/measure-api/internal/config"
	"github.com/straye-as/measure-api/internal/database"
	"github.com/straye-as/measure-api/internal/datawarehouse"
	"github.com/straye-as/measure-api/internal/domain"
	"github.com/straye-as/measure-api/internal/http/handler"
	"github.com/straye-as/measure-api/internal/http/middleware"
	"github.com/straye-as/measure-api/internal/metrics"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	_ "github.com/straye-as/measure-api/docs" // Import generated swagger docs
)

const healthCheckTimeout = 5 * time.Second

// Handlers groups the API handlers mounted under /api/v1
type Handlers struct {
	Project           *handler.ProjectHandler
	Contract          *handler.ContractHandler
	MeasurementItem   *handler.MeasurementItemHandler
	Period            *handler.PeriodHandler
	MeasurementDetail *handler.MeasurementDetailHandler
	Attachment        *handler.AttachmentHandler
}

type Router struct {
	cfg             *config.Config
	logger          *zap.Logger
	db              *gorm.DB
	dw              *datawarehouse.Client
	metrics         *metrics.Metrics
	authMiddleware  *auth.Middleware
	rateLimiter     *middleware.RateLimiter
	auditMiddleware *middleware.AuditMiddleware
	handlers        Handlers
}

// NewRouter wires the HTTP surface. dw and m may be nil.
func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	db *gorm.DB,
	dw *datawarehouse.Client,
	m *metrics.Metrics,
	authMiddleware *auth.Middleware,
	rateLimiter *middleware.RateLimiter,
	auditMiddleware *middleware.AuditMiddleware,
	handlers Handlers,
) *Router {
	return &Router{
		cfg:             cfg,
		logger:          logger,
		db:              db,
		dw:              dw,
		metrics:         m,
		authMiddleware:  authMiddleware,
		rateLimiter:     rateLimiter,
		auditMiddleware: auditMiddleware,
		handlers:        handlers,
	}
}

func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logging(rt.logger))
	r.Use(middleware.Recoverer(rt.logger))
	r.Use(middleware.Metrics(rt.metrics))
	r.Use(middleware.SecurityHeaders(&rt.cfg.Security))
	r.Use(middleware.CORS(&rt.cfg.CORS, rt.cfg.App.Environment, rt.logger))
	r.Use(rt.rateLimiter.LimitByIP)
	if timeout := rt.cfg.Server.RequestTimeoutDuration(); timeout > 0 {
		r.Use(chimw.Timeout(timeout))
	}

	// Liveness
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Get("/health/db", rt.databaseHealth)
	r.Get("/health/ready", rt.readiness)

	if rt.cfg.Server.EnableMetrics && rt.metrics != nil {
		r.Handle("/metrics", rt.metrics.Handler())
	}

	if rt.cfg.Server.EnableSwagger {
		r.Get("/swagger/*", httpSwagger.Handler(
			httpSwagger.URL("/swagger/doc.json"),
		))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.authMiddleware.Authenticate)
		r.Use(rt.rateLimiter.LimitByUser)
		r.Use(rt.auditMiddleware.Audit)

		r.Route("/projects", func(r chi.Router) {
			h := rt.handlers.Project
			r.Get("/", h.List)
			r.Post("/", h.Create)
			r.Get("/{id}", h.GetByID)
			r.Put("/{id}", h.Update)
			r.Delete("/{id}", h.Delete)
		})

		r.Route("/contracts", func(r chi.Router) {
			h := rt.handlers.Contract
			r.Get("/", h.List)
			r.Post("/", h.Create)
			r.Get("/{id}", h.GetByID)
			r.Put("/{id}", h.Update)
			r.Delete("/{id}", h.Delete)
			r.Get("/{id}/summary", h.GetSummary)
			r.Get("/{id}/items", h.ListItems)
			r.Post("/{id}/items", h.CreateItem)
		})

		r.Route("/measurement-items", func(r chi.Router) {
			r.Put("/{id}", rt.handlers.MeasurementItem.Update)
			r.Delete("/{id}", rt.handlers.MeasurementItem.Delete)
		})

		r.Route("/periods", func(r chi.Router) {
			h := rt.handlers.Period
			r.Get("/", h.List)
			r.Post("/", h.Create)
			r.Get("/{id}", h.GetByID)
			r.Put("/{id}", h.Update)
			r.Delete("/{id}", h.Delete)
			r.Post("/{id}/archive", h.Archive)
		})

		r.Route("/measurement-details", func(r chi.Router) {
			h := rt.handlers.MeasurementDetail
			r.Get("/", h.List)
			r.Post("/", h.Create)
			r.Get("/{id}", h.GetByID)
			r.Put("/{id}", h.Update)
			r.Delete("/{id}", h.Delete)
			r.Get("/{id}/reviews", h.ListReviews)
			r.With(rt.authMiddleware.RequireRole(domain.RoleReviewer, domain.RoleAdmin)).
				Post("/{id}/review", h.Review)
		})

		r.Route("/attachments", func(r chi.Router) {
			r.With(rt.authMiddleware.RequireRole(domain.RoleAdmin, domain.RoleReviewer, domain.RoleEngineer)).
				Post("/", rt.handlers.Attachment.Upload)
			r.Get("/download", rt.handlers.Attachment.Download)
		})
	})

	return r
}

// databaseHealth is the readiness probe with pool statistics
func (rt *Router) databaseHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	stats, err := database.HealthCheckWithStats(ctx, rt.db)
	if err != nil {
		rt.logger.Error("Database health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":  "unhealthy",
			"error":   err.Error(),
			"service": "database",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "database",
		"stats":   stats,
	})
}

// readiness checks every dependency. The data warehouse is optional and never fails readiness.
func (rt *Router) readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	checks := make(map[string]interface{})
	allHealthy := true

	if err := database.HealthCheck(ctx, rt.db); err != nil {
		rt.logger.Error("Database health check failed", zap.Error(err))
		checks["database"] = map[string]interface{}{"status": "unhealthy", "error": err.Error()}
		allHealthy = false
	} else {
		checks["database"] = map[string]interface{}{"status": "healthy"}
	}
	checks["datawarehouse"] = rt.dw.HealthCheck(ctx)

	status, code := "healthy", http.StatusOK
	if !allHealthy {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]interface{}{
		"status": status,
		"checks": checks,
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
