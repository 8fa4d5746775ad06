package repository

import (
	"context"

	"github.com/straye-as/measure-api/internal/domain"
	"gorm.io/gorm"
)

// MeasurementReviewRepository reads the append-only review history
type MeasurementReviewRepository struct {
	db *gorm.DB
}

// NewMeasurementReviewRepository creates a new measurement review repository instance
func NewMeasurementReviewRepository(db *gorm.DB) *MeasurementReviewRepository {
	return &MeasurementReviewRepository{db: db}
}

// ListByDetail returns a detail's reviews, oldest first
func (r *MeasurementReviewRepository) ListByDetail(ctx context.Context, detailID int64) ([]domain.MeasurementReview, error) {
	var reviews []domain.MeasurementReview
	err := r.db.WithContext(ctx).
		Where("measurement_detail_id = ?", detailID).
		Order("reviewed_at ASC, id ASC").
		Find(&reviews).Error
	return reviews, err
}

// DeleteByDetail removes the history of a deleted detail
func (r *MeasurementReviewRepository) DeleteByDetail(ctx context.Context, detailID int64) error {
	return r.db.WithContext(ctx).Delete(&domain.MeasurementReview{}, "measurement_detail_id = ?", detailID).Error
}
