package repository

import (
	"context"
	"strings"

	"github.com/straye-as/measure-api/internal/domain"
	"gorm.io/gorm"
)

// ProjectFilters defines filter options for project listing
type ProjectFilters struct {
	// UserID limits the result to projects the user owns or is a member of
	UserID string
	Search string
}

var projectSortableFields = map[string]string{
	"id":        "id",
	"name":      "name",
	"code":      "code",
	"createdAt": "created_at",
	"updatedAt": "updated_at",
}

// ProjectRepository handles project data access operations
type ProjectRepository struct {
	db *gorm.DB
}

// NewProjectRepository creates a new project repository instance
func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// Create creates a new project
func (r *ProjectRepository) Create(ctx context.Context, project *domain.Project) error {
	return r.db.WithContext(ctx).Create(project).Error
}

// GetByID retrieves a project by its ID
func (r *ProjectRepository) GetByID(ctx context.Context, id int64) (*domain.Project, error) {
	var project domain.Project
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&project).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

// GetByCode finds a project by its code, returning nil when absent
func (r *ProjectRepository) GetByCode(ctx context.Context, code string) (*domain.Project, error) {
	var project domain.Project
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&project).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &project, nil
}

// Update saves all fields of an existing project
func (r *ProjectRepository) Update(ctx context.Context, project *domain.Project) error {
	return r.db.WithContext(ctx).Omit("Contracts").Save(project).Error
}

// Delete removes a project
func (r *ProjectRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&domain.Project{}, "id = ?", id).Error
}

// List returns projects matching the filters ordered by the sort config.
// Results are not paginated; the selection chain always needs the full list.
func (r *ProjectRepository) List(ctx context.Context, filters *ProjectFilters, sort SortConfig) ([]domain.Project, error) {
	var projects []domain.Project

	query := r.db.WithContext(ctx).Model(&domain.Project{})
	if filters != nil {
		if filters.UserID != "" {
			query = ApplyProjectVisibility(query, filters.UserID)
		}
		if filters.Search != "" {
			pattern := "%" + strings.ToLower(filters.Search) + "%"
			query = query.Where("LOWER(name) LIKE ? OR LOWER(code) LIKE ?", pattern, pattern)
		}
	}

	err := query.Order(BuildOrderClause(sort, projectSortableFields, "id")).Find(&projects).Error
	return projects, err
}

// IsVisibleTo reports whether the user owns or is a member of the project
func (r *ProjectRepository) IsVisibleTo(ctx context.Context, projectID int64, userID string) (bool, error) {
	var count int64
	err := ApplyProjectVisibility(r.db.WithContext(ctx).Model(&domain.Project{}).Where("id = ?", projectID), userID).
		Count(&count).Error
	return count > 0, err
}

// CountContracts returns the number of contracts under the project
func (r *ProjectRepository) CountContracts(ctx context.Context, projectID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Contract{}).Where("related_project_id = ?", projectID).Count(&count).Error
	return count, err
}
