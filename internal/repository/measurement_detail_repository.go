package repository

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/straye-as/measure-api/internal/domain"
	"gorm.io/gorm"
)

// ErrStatusChanged is returned when a detail left the expected status before a conditional update
var ErrStatusChanged = errors.New("measurement detail status changed concurrently")

// MeasurementDetailFilters defines filter options for measurement detail listing.
// Zero values are ignored.
type MeasurementDetailFilters struct {
	ProjectID  int64
	ContractID int64
	PeriodID   int64
	ItemID     int64
	ItemType   domain.MeasurementItemType
	Status     *domain.MeasurementStatus
}

// MeasurementDetailRepository handles measurement detail data access operations
type MeasurementDetailRepository struct {
	db *gorm.DB
}

// NewMeasurementDetailRepository creates a new measurement detail repository instance
func NewMeasurementDetailRepository(db *gorm.DB) *MeasurementDetailRepository {
	return &MeasurementDetailRepository{db: db}
}

func (r *MeasurementDetailRepository) Create(ctx context.Context, detail *domain.MeasurementDetail) error {
	return r.db.WithContext(ctx).Omit("MeasurementItem", "Period").Create(detail).Error
}

// GetByID retrieves a detail with its item and period
func (r *MeasurementDetailRepository) GetByID(ctx context.Context, id int64) (*domain.MeasurementDetail, error) {
	var detail domain.MeasurementDetail
	err := r.db.WithContext(ctx).
		Preload("MeasurementItem").
		Preload("Period").
		Where("id = ?", id).
		First(&detail).Error
	if err != nil {
		return nil, err
	}
	return &detail, nil
}

// UpdateIfMutable saves the detail only while it is still in expectedStatus
func (r *MeasurementDetailRepository) UpdateIfMutable(ctx context.Context, detail *domain.MeasurementDetail, expectedStatus domain.MeasurementStatus) error {
	result := r.db.WithContext(ctx).Model(&domain.MeasurementDetail{}).
		Where("id = ? AND measurement_status = ?", detail.ID, expectedStatus).
		Select("current_count", "measurement_status", "measurement_comment", "remark", "attachments",
			"related_measurement_item_id", "updated_by_id", "updated_by_name", "updated_at").
		Updates(detail)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStatusChanged
	}
	return nil
}

// DeleteIfMutable deletes the detail unless it has been approved in the meantime
func (r *MeasurementDetailRepository) DeleteIfMutable(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND measurement_status <> ?", id, domain.MeasurementStatusApproved).
		Delete(&domain.MeasurementDetail{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStatusChanged
	}
	return nil
}

// List returns details matching the filters in catalog order
func (r *MeasurementDetailRepository) List(ctx context.Context, filters *MeasurementDetailFilters) ([]domain.MeasurementDetail, error) {
	var details []domain.MeasurementDetail

	query := r.db.WithContext(ctx).Model(&domain.MeasurementDetail{}).
		Joins("JOIN measurement_items mi ON mi.id = measurement_details.related_measurement_item_id")
	if filters != nil {
		if filters.ProjectID > 0 {
			query = query.Where("measurement_details.related_project_id = ?", filters.ProjectID)
		}
		if filters.ContractID > 0 {
			query = query.Where("measurement_details.related_contract_id = ?", filters.ContractID)
		}
		if filters.PeriodID > 0 {
			query = query.Where("measurement_details.related_period_id = ?", filters.PeriodID)
		}
		if filters.ItemID > 0 {
			query = query.Where("measurement_details.related_measurement_item_id = ?", filters.ItemID)
		}
		if filters.ItemType != "" {
			query = query.Where("mi.item_type = ?", filters.ItemType)
		}
		if filters.Status != nil {
			query = query.Where("measurement_details.measurement_status = ?", *filters.Status)
		}
	}

	err := query.
		Preload("MeasurementItem").
		Preload("Period").
		Order("mi.sort_order ASC, mi.id ASC, measurement_details.id ASC").
		Find(&details).Error
	return details, err
}

// CumulativeTotals computes, for each given detail, the summed current count of all
// non-rejected details of the same contract and item whose period starts on or before
// the detail's own period. The details must have Period preloaded. Keyed by detail id.
func (r *MeasurementDetailRepository) CumulativeTotals(ctx context.Context, details []domain.MeasurementDetail) (map[int64]decimal.Decimal, error) {
	totals := make(map[int64]decimal.Decimal, len(details))
	if len(details) == 0 {
		return totals, nil
	}

	type key struct{ contractID, itemID int64 }
	contractIDs := map[int64]struct{}{}
	itemIDs := map[int64]struct{}{}
	for _, d := range details {
		contractIDs[d.RelatedContractID] = struct{}{}
		itemIDs[d.RelatedMeasurementItemID] = struct{}{}
	}

	var history []domain.MeasurementDetail
	err := r.db.WithContext(ctx).
		Preload("Period").
		Where("related_contract_id IN ? AND related_measurement_item_id IN ?", keys(contractIDs), keys(itemIDs)).
		Where("measurement_status <> ?", domain.MeasurementStatusRejected).
		Find(&history).Error
	if err != nil {
		return nil, err
	}

	byKey := make(map[key][]domain.MeasurementDetail)
	for _, h := range history {
		k := key{h.RelatedContractID, h.RelatedMeasurementItemID}
		byKey[k] = append(byKey[k], h)
	}

	for _, d := range details {
		total := decimal.Zero
		for _, h := range byKey[key{d.RelatedContractID, d.RelatedMeasurementItemID}] {
			if h.Period == nil || d.Period == nil {
				continue
			}
			if !h.Period.StartDate.After(d.Period.StartDate) {
				total = total.Add(h.CurrentCount)
			}
		}
		totals[d.ID] = total
	}
	return totals, nil
}

// ListByContract returns every detail of a contract with its item preloaded
func (r *MeasurementDetailRepository) ListByContract(ctx context.Context, contractID int64) ([]domain.MeasurementDetail, error) {
	var details []domain.MeasurementDetail
	err := r.db.WithContext(ctx).
		Preload("MeasurementItem").
		Where("related_contract_id = ?", contractID).
		Find(&details).Error
	return details, err
}

// ApplyReview moves a detail from fromStatus to the review's target status and appends the
// review history row in one transaction. ErrStatusChanged is returned if the detail is no
// longer in fromStatus.
func (r *MeasurementDetailRepository) ApplyReview(ctx context.Context, detail *domain.MeasurementDetail, fromStatus domain.MeasurementStatus, review *domain.MeasurementReview) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&domain.MeasurementDetail{}).
			Where("id = ? AND measurement_status = ?", detail.ID, fromStatus).
			Updates(map[string]interface{}{
				"measurement_status":  detail.MeasurementStatus,
				"measurement_comment": detail.MeasurementComment,
				"reviewed_by_id":      detail.ReviewedByID,
				"reviewed_by_name":    detail.ReviewedByName,
				"reviewed_at":         detail.ReviewedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrStatusChanged
		}
		return tx.Create(review).Error
	})
}

func keys(m map[int64]struct{}) []int64 {
	out := make([]int64, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
