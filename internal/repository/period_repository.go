package repository

import (
	"context"
	"strings"
	"time"

	"github.com/straye-as/measure-api/internal/domain"
	"gorm.io/gorm"
)

// PeriodFilters defines filter options for period listing
type PeriodFilters struct {
	ProjectID  int64
	ContractID int64
	Name       string
	Archived   *bool
}

// PeriodRepository handles period data access operations
type PeriodRepository struct {
	db *gorm.DB
}

// NewPeriodRepository creates a new period repository instance
func NewPeriodRepository(db *gorm.DB) *PeriodRepository {
	return &PeriodRepository{db: db}
}

func (r *PeriodRepository) Create(ctx context.Context, period *domain.Period) error {
	return r.db.WithContext(ctx).Create(period).Error
}

func (r *PeriodRepository) GetByID(ctx context.Context, id int64) (*domain.Period, error) {
	var period domain.Period
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&period).Error; err != nil {
		return nil, err
	}
	return &period, nil
}

func (r *PeriodRepository) Update(ctx context.Context, period *domain.Period) error {
	return r.db.WithContext(ctx).Save(period).Error
}

func (r *PeriodRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&domain.Period{}, "id = ?", id).Error
}

// List returns periods matching the filters, most recent start date first
func (r *PeriodRepository) List(ctx context.Context, filters *PeriodFilters) ([]domain.Period, error) {
	var periods []domain.Period

	query := r.db.WithContext(ctx).Model(&domain.Period{})
	if filters != nil {
		if filters.ProjectID > 0 {
			query = query.Where("related_project_id = ?", filters.ProjectID)
		}
		if filters.ContractID > 0 {
			query = query.Where("related_contract_id = ?", filters.ContractID)
		}
		if filters.Name != "" {
			query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(filters.Name)+"%")
		}
		if filters.Archived != nil {
			query = query.Where("is_archived = ?", *filters.Archived)
		}
	}

	err := query.Order("start_date DESC, id DESC").Find(&periods).Error
	return periods, err
}

// Archive marks a single period archived
func (r *PeriodRepository) Archive(ctx context.Context, id int64, at time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.Period{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"is_archived": true, "archived_at": at}).Error
}

// ArchiveEndedBefore archives every open period whose end date is before cutoff
func (r *PeriodRepository) ArchiveEndedBefore(ctx context.Context, cutoff, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&domain.Period{}).
		Where("is_archived = ? AND end_date < ?", false, cutoff).
		Updates(map[string]interface{}{"is_archived": true, "archived_at": at})
	return result.RowsAffected, result.Error
}

// CountDetails returns how many measurement details reference the period
func (r *PeriodRepository) CountDetails(ctx context.Context, periodID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.MeasurementDetail{}).
		Where("related_period_id = ?", periodID).
		Count(&count).Error
	return count, err
}
