package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/straye-as/measure-api/internal/auth"
	"go.uber.org/zap"
)

// AuditConfig holds configuration for audit middleware
type AuditConfig struct {
	// SkipPaths are path prefixes that are never audited
	SkipPaths []string
}

// DefaultAuditConfig returns default audit configuration
func DefaultAuditConfig() *AuditConfig {
	return &AuditConfig{
		SkipPaths: []string{"/health", "/metrics", "/swagger"},
	}
}

// AuditMiddleware writes one structured audit entry per successful mutation
type AuditMiddleware struct {
	config *AuditConfig
	logger *zap.Logger
}

// NewAuditMiddleware creates a new audit middleware
func NewAuditMiddleware(config *AuditConfig, logger *zap.Logger) *AuditMiddleware {
	if config == nil {
		config = DefaultAuditConfig()
	}
	return &AuditMiddleware{
		config: config,
		logger: logger.Named("audit"),
	}
}

// AuditEntry describes a mutation in terms of the resource it touched
type AuditEntry struct {
	Action     string
	EntityType string
	EntityID   int64
}

var auditEntities = map[string]string{
	"projects":            "Project",
	"contracts":           "Contract",
	"items":               "MeasurementItem",
	"measurement-items":   "MeasurementItem",
	"periods":             "Period",
	"measurement-details": "MeasurementDetail",
	"attachments":         "Attachment",
}

// Audit returns middleware that logs successful POST, PUT, PATCH and DELETE requests
func (m *AuditMiddleware) Audit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.shouldAudit(r) {
			next.ServeHTTP(w, r)
			return
		}

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		if rw.statusCode < 200 || rw.statusCode >= 300 {
			return
		}

		pattern := r.URL.Path
		var idParam string
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				pattern = p
			}
			idParam = rctx.URLParam("id")
		}
		entry := ParseAuditEntry(r.Method, pattern, idParam)

		fields := []zap.Field{
			zap.String("action", entry.Action),
			zap.String("entity_type", entry.EntityType),
			zap.Int64("entity_id", entry.EntityID),
			zap.Int("status_code", rw.statusCode),
			zap.String("request_id", r.Header.Get(RequestIDHeader)),
		}
		if userCtx, ok := auth.FromContext(r.Context()); ok {
			fields = append(fields,
				zap.String("user_id", userCtx.UserID),
				zap.String("user_name", userCtx.DisplayName),
				zap.Strings("roles", userCtx.RolesAsStrings()))
		}
		m.logger.Info("audit", fields...)
	})
}

func (m *AuditMiddleware) shouldAudit(r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return false
	}
	for _, skip := range m.config.SkipPaths {
		if strings.HasPrefix(r.URL.Path, skip) {
			return false
		}
	}
	return true
}

// ParseAuditEntry derives the audited action and entity from a route pattern such as
// /api/v1/measurement-details/{id}/review. A trailing verb segment becomes the action.
func ParseAuditEntry(method, pattern, idParam string) AuditEntry {
	entry := AuditEntry{EntityType: "Unknown"}
	switch method {
	case http.MethodPost:
		entry.Action = "create"
	case http.MethodPut, http.MethodPatch:
		entry.Action = "update"
	case http.MethodDelete:
		entry.Action = "delete"
	}

	parts := strings.Split(strings.Trim(pattern, "/"), "/")
	for i, part := range parts {
		entity, ok := auditEntities[part]
		if !ok {
			continue
		}
		entry.EntityType = entity
		if i+2 < len(parts) && strings.HasPrefix(parts[i+1], "{") {
			if _, nested := auditEntities[parts[i+2]]; !nested {
				entry.Action = parts[i+2]
			}
		}
	}

	if id, err := strconv.ParseInt(idParam, 10, 64); err == nil {
		entry.EntityID = id
	}
	return entry
}
