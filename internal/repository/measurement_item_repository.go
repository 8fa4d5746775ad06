package repository

import (
	"context"

	"github.com/straye-as/measure-api/internal/domain"
	"gorm.io/gorm"
)

// MeasurementItemRepository handles the contract item catalog
type MeasurementItemRepository struct {
	db *gorm.DB
}

// NewMeasurementItemRepository creates a new measurement item repository instance
func NewMeasurementItemRepository(db *gorm.DB) *MeasurementItemRepository {
	return &MeasurementItemRepository{db: db}
}

func (r *MeasurementItemRepository) Create(ctx context.Context, item *domain.MeasurementItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *MeasurementItemRepository) GetByID(ctx context.Context, id int64) (*domain.MeasurementItem, error) {
	var item domain.MeasurementItem
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *MeasurementItemRepository) Update(ctx context.Context, item *domain.MeasurementItem) error {
	return r.db.WithContext(ctx).Save(item).Error
}

func (r *MeasurementItemRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&domain.MeasurementItem{}, "id = ?", id).Error
}

// ListByContract returns the contract's catalog in display order, optionally limited to one type
func (r *MeasurementItemRepository) ListByContract(ctx context.Context, contractID int64, itemType domain.MeasurementItemType) ([]domain.MeasurementItem, error) {
	var items []domain.MeasurementItem
	query := r.db.WithContext(ctx).Where("related_contract_id = ?", contractID)
	if itemType != "" {
		query = query.Where("item_type = ?", itemType)
	}
	err := query.Order("sort_order ASC, id ASC").Find(&items).Error
	return items, err
}

// CountDetails returns how many measurement details reference the item
func (r *MeasurementItemRepository) CountDetails(ctx context.Context, itemID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.MeasurementDetail{}).
		Where("related_measurement_item_id = ?", itemID).
		Count(&count).Error
	return count, err
}
