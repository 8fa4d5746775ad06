package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/straye-as/measure-api/internal/auth"
	"github.com/straye-as/measure-api/internal/repository"
	"gorm.io/gorm"
)

// currentUser returns the authenticated caller
func currentUser(ctx context.Context) (*auth.UserContext, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUnauthorized
	}
	return userCtx, nil
}

// requireWriter ensures the caller may create and edit records
func requireWriter(ctx context.Context) (*auth.UserContext, error) {
	userCtx, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if !userCtx.CanWrite() {
		return nil, ErrPermissionDenied
	}
	return userCtx, nil
}

// ensureProjectAccess checks that the project exists and the caller can see it.
// Administrators see every project.
func ensureProjectAccess(ctx context.Context, projects *repository.ProjectRepository, projectID int64) error {
	userCtx, err := currentUser(ctx)
	if err != nil {
		return err
	}

	if _, err := projects.GetByID(ctx, projectID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProjectNotFound
		}
		return fmt.Errorf("failed to get project: %w", err)
	}

	if userCtx.IsAdmin() {
		return nil
	}
	visible, err := projects.IsVisibleTo(ctx, projectID, userCtx.UserID)
	if err != nil {
		return fmt.Errorf("failed to check project access: %w", err)
	}
	if !visible {
		return ErrPermissionDenied
	}
	return nil
}
