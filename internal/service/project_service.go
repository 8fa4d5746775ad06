package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/straye-as/measure-api/internal/domain"
	"github.com/straye-as/measure-api/internal/mapper"
	"github.com/straye-as/measure-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ProjectService handles business logic for projects
type ProjectService struct {
	projectRepo *repository.ProjectRepository
	logger      *zap.Logger
}

// NewProjectService creates a new project service instance
func NewProjectService(projectRepo *repository.ProjectRepository, logger *zap.Logger) *ProjectService {
	return &ProjectService{
		projectRepo: projectRepo,
		logger:      logger,
	}
}

// List returns the projects visible to the caller in sort order, oldest first by default.
// Administrators may pass onBehalfOf to see the list a given user would see.
func (s *ProjectService) List(ctx context.Context, onBehalfOf, search string, sort repository.SortConfig) ([]domain.ProjectDTO, error) {
	if _, err := currentUser(ctx); err != nil {
		return nil, err
	}

	filters := &repository.ProjectFilters{
		UserID: repository.VisibilityUserID(ctx, onBehalfOf),
		Search: search,
	}
	projects, err := s.projectRepo.List(ctx, filters, sort)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	dtos := make([]domain.ProjectDTO, len(projects))
	for i := range projects {
		dtos[i] = mapper.ToProjectDTO(&projects[i])
	}
	return dtos, nil
}

// GetByID retrieves a project the caller can see
func (s *ProjectService) GetByID(ctx context.Context, id int64) (*domain.ProjectDTO, error) {
	if err := ensureProjectAccess(ctx, s.projectRepo, id); err != nil {
		return nil, err
	}
	project, err := s.projectRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	dto := mapper.ToProjectDTO(project)
	return &dto, nil
}

// Create creates a project owned by the caller
func (s *ProjectService) Create(ctx context.Context, req *domain.CreateProjectRequest) (*domain.ProjectDTO, error) {
	userCtx, err := requireWriter(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.ensureUniqueCode(ctx, req.Code, 0); err != nil {
		return nil, err
	}

	code := req.Code
	if code == "" {
		code = generateProjectCode()
	}

	project := &domain.Project{
		Name:        strings.TrimSpace(req.Name),
		Code:        code,
		Description: req.Description,
		OwnerID:     userCtx.UserID,
		OwnerName:   userCtx.DisplayName,
		Members:     mapper.EncodeMembers(req.Members),
	}
	if err := s.projectRepo.Create(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	s.logger.Info("project created",
		zap.Int64("project_id", project.ID),
		zap.String("owner_id", project.OwnerID))

	dto := mapper.ToProjectDTO(project)
	return &dto, nil
}

// Update updates a project. Only the owner or an administrator may change it.
func (s *ProjectService) Update(ctx context.Context, id int64, req *domain.UpdateProjectRequest) (*domain.ProjectDTO, error) {
	project, err := s.getOwned(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.ensureUniqueCode(ctx, req.Code, id); err != nil {
		return nil, err
	}

	project.Name = strings.TrimSpace(req.Name)
	if req.Code != "" {
		project.Code = req.Code
	}
	project.Description = req.Description
	project.Members = mapper.EncodeMembers(req.Members)

	if err := s.projectRepo.Update(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}

	dto := mapper.ToProjectDTO(project)
	return &dto, nil
}

// Delete removes a project without contracts
func (s *ProjectService) Delete(ctx context.Context, id int64) error {
	if _, err := s.getOwned(ctx, id); err != nil {
		return err
	}

	count, err := s.projectRepo.CountContracts(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to count contracts: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("%w: project has %d contracts", ErrHasDependents, count)
	}

	if err := s.projectRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	s.logger.Info("project deleted", zap.Int64("project_id", id))
	return nil
}

func (s *ProjectService) getOwned(ctx context.Context, id int64) (*domain.Project, error) {
	userCtx, err := requireWriter(ctx)
	if err != nil {
		return nil, err
	}
	project, err := s.projectRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	if !userCtx.IsAdmin() && project.OwnerID != userCtx.UserID {
		return nil, ErrPermissionDenied
	}
	return project, nil
}

func (s *ProjectService) ensureUniqueCode(ctx context.Context, code string, selfID int64) error {
	if code == "" {
		return nil
	}
	existing, err := s.projectRepo.GetByCode(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to check project code: %w", err)
	}
	if existing != nil && existing.ID != selfID {
		return ErrDuplicateProjectCode
	}
	return nil
}

// generateProjectCode returns a unique code for projects created without one
func generateProjectCode() string {
	return "PRJ-" + strings.ToUpper(uuid.NewString()[:8])
}
