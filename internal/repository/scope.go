package repository

import (
	"context"
	"strings"

	"github.com/straye-as/measure-api/internal/auth"
	"gorm.io/gorm"
)

// SortOrder represents the sort direction
type SortOrder string

const (
	SortOrderAsc  SortOrder = "asc"
	SortOrderDesc SortOrder = "desc"
)

// SortConfig holds sorting configuration for list queries
type SortConfig struct {
	Field string // API field name
	Order SortOrder
}

// ParseSortOrder parses a string into SortOrder, defaulting to asc
func ParseSortOrder(s string) SortOrder {
	if strings.ToLower(s) == "desc" {
		return SortOrderDesc
	}
	return SortOrderAsc
}

// BuildOrderClause maps an API field to a whitelisted column.
// Unknown fields fall back to defaultColumn.
func BuildOrderClause(config SortConfig, fieldMap map[string]string, defaultColumn string) string {
	column, ok := fieldMap[config.Field]
	if !ok {
		column = defaultColumn
	}

	order := "ASC"
	if config.Order == SortOrderDesc {
		order = "DESC"
	}
	return column + " " + order
}

// memberPattern builds a LIKE pattern matching a quoted id inside a JSON string array
func memberPattern(userID string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(userID)
	return `%"` + escaped + `"%`
}

// ApplyProjectVisibility restricts a projects query to those the user owns or is a member of
func ApplyProjectVisibility(query *gorm.DB, userID string) *gorm.DB {
	return query.Where(`owner_id = ? OR CAST(members AS TEXT) LIKE ? ESCAPE '\'`, userID, memberPattern(userID))
}

// VisibilityUserID returns the user id list queries are scoped to.
// Administrators and API key callers see everything unless they ask on behalf of a user.
func VisibilityUserID(ctx context.Context, onBehalfOf string) string {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return onBehalfOf
	}
	if userCtx.IsAdmin() {
		return onBehalfOf
	}
	return userCtx.UserID
}
