package mapper

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/straye-as/measure-api/internal/domain"
	"gorm.io/datatypes"
)

const (
	timestampLayout = "2006-01-02T15:04:05Z"
	// DateLayout is the wire format for calendar dates
	DateLayout = "2006-01-02"
)

// ToProjectDTO converts Project to ProjectDTO
func ToProjectDTO(project *domain.Project) domain.ProjectDTO {
	return domain.ProjectDTO{
		ID:          project.ID,
		Name:        project.Name,
		Code:        project.Code,
		Description: project.Description,
		OwnerID:     project.OwnerID,
		OwnerName:   project.OwnerName,
		Members:     DecodeMembers(project.Members),
		CreatedAt:   project.CreatedAt.UTC().Format(timestampLayout),
		UpdatedAt:   project.UpdatedAt.UTC().Format(timestampLayout),
	}
}

// ToContractDTO converts Contract to ContractDTO, splitting the preloaded items by category
func ToContractDTO(contract *domain.Contract) domain.ContractDTO {
	dto := domain.ContractDTO{
		ID:               contract.ID,
		RelatedProjectID: contract.RelatedProjectID,
		Name:             contract.Name,
		Code:             contract.Code,
		Amount:           contract.Amount,
		CostItems:        []domain.MeasurementItemDTO{},
		MaterialItems:    []domain.MeasurementItemDTO{},
		CreatedAt:        contract.CreatedAt.UTC().Format(timestampLayout),
		UpdatedAt:        contract.UpdatedAt.UTC().Format(timestampLayout),
	}
	if contract.SignedDate != nil {
		dto.SignedDate = contract.SignedDate.Format(DateLayout)
	}

	items := make([]domain.MeasurementItem, len(contract.Items))
	copy(items, contract.Items)
	SortMeasurementItems(items)
	for i := range items {
		item := ToMeasurementItemDTO(&items[i])
		if item.ItemType == domain.MeasurementItemTypeMaterial {
			dto.MaterialItems = append(dto.MaterialItems, item)
		} else {
			dto.CostItems = append(dto.CostItems, item)
		}
	}
	return dto
}

// SortMeasurementItems orders catalog items by sort order, then id
func SortMeasurementItems(items []domain.MeasurementItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].SortOrder != items[j].SortOrder {
			return items[i].SortOrder < items[j].SortOrder
		}
		return items[i].ID < items[j].ID
	})
}

// ToMeasurementItemDTO converts MeasurementItem to MeasurementItemDTO
func ToMeasurementItemDTO(item *domain.MeasurementItem) domain.MeasurementItemDTO {
	return domain.MeasurementItemDTO{
		ID:                item.ID,
		RelatedContractID: item.RelatedContractID,
		ItemType:          item.ItemType,
		Name:              item.Name,
		Unit:              item.Unit,
		UnitPrice:         item.UnitPrice,
		DesignQuantity:    item.DesignQuantity,
		SortOrder:         item.SortOrder,
	}
}

// ToPeriodDTO converts Period to PeriodDTO
func ToPeriodDTO(period *domain.Period) domain.PeriodDTO {
	dto := domain.PeriodDTO{
		ID:                period.ID,
		RelatedProjectID:  period.RelatedProjectID,
		RelatedContractID: period.RelatedContractID,
		Name:              period.Name,
		StartDate:         period.StartDate.Format(DateLayout),
		EndDate:           period.EndDate.Format(DateLayout),
		IsArchived:        period.IsArchived,
	}
	if period.ArchivedAt != nil {
		dto.ArchivedAt = period.ArchivedAt.UTC().Format(timestampLayout)
	}
	return dto
}

// ToMeasurementDetailDTO converts MeasurementDetail to its DTO. totalCount is the
// cumulative quantity computed by the caller; the preloaded item supplies price and design quantity.
func ToMeasurementDetailDTO(detail *domain.MeasurementDetail, totalCount decimal.Decimal) domain.MeasurementDetailDTO {
	dto := domain.MeasurementDetailDTO{
		ID:                       detail.ID,
		RelatedProjectID:         detail.RelatedProjectID,
		RelatedContractID:        detail.RelatedContractID,
		RelatedPeriodID:          detail.RelatedPeriodID,
		RelatedMeasurementItemID: detail.RelatedMeasurementItemID,
		CurrentCount:             detail.CurrentCount,
		TotalCount:               totalCount,
		MeasurementStatus:        detail.MeasurementStatus,
		MeasurementComment:       detail.MeasurementComment,
		Remark:                   detail.Remark,
		Attachments:              DecodeAttachments(detail.Attachments),
		ReviewedByName:           detail.ReviewedByName,
		CreatedByName:            detail.CreatedByName,
		CreatedAt:                detail.CreatedAt.UTC().Format(timestampLayout),
		UpdatedAt:                detail.UpdatedAt.UTC().Format(timestampLayout),
	}
	if detail.ReviewedAt != nil {
		dto.ReviewedAt = detail.ReviewedAt.UTC().Format(timestampLayout)
	}

	if item := detail.MeasurementItem; item != nil {
		dto.ItemName = item.Name
		dto.ItemType = item.ItemType
		dto.Unit = item.Unit
		dto.UnitPrice = item.UnitPrice
		dto.Amount = detail.CurrentCount.Mul(item.UnitPrice).Round(2)
		if item.ItemType == domain.MeasurementItemTypeMaterial {
			remaining := item.DesignQuantity.Sub(totalCount)
			dto.RemainingCount = &remaining
		}
	}
	return dto
}

// ToMeasurementReviewDTO converts a review history row to its DTO
func ToMeasurementReviewDTO(review *domain.MeasurementReview) domain.MeasurementReviewDTO {
	return domain.MeasurementReviewDTO{
		ID:                  review.ID,
		MeasurementDetailID: review.MeasurementDetailID,
		Decision:            review.Decision,
		FromStatus:          review.FromStatus,
		ToStatus:            review.ToStatus,
		Comment:             review.Comment,
		ReviewerName:        review.ReviewerName,
		ReviewedAt:          review.ReviewedAt.UTC().Format(timestampLayout),
	}
}

// EncodeMembers serializes project member ids into a JSON column
func EncodeMembers(members []string) datatypes.JSON {
	if members == nil {
		members = []string{}
	}
	data, _ := json.Marshal(members)
	return datatypes.JSON(data)
}

// DecodeMembers reads project member ids from a JSON column; malformed data yields an empty list
func DecodeMembers(raw datatypes.JSON) []string {
	members := []string{}
	if len(raw) == 0 {
		return members
	}
	if err := json.Unmarshal(raw, &members); err != nil {
		return []string{}
	}
	return members
}

// EncodeAttachments serializes attachment references into a JSON column
func EncodeAttachments(attachments []domain.Attachment) datatypes.JSON {
	if attachments == nil {
		attachments = []domain.Attachment{}
	}
	data, _ := json.Marshal(attachments)
	return datatypes.JSON(data)
}

// DecodeAttachments reads attachment references from a JSON column
func DecodeAttachments(raw datatypes.JSON) []domain.Attachment {
	attachments := []domain.Attachment{}
	if len(raw) == 0 {
		return attachments
	}
	if err := json.Unmarshal(raw, &attachments); err != nil {
		return []domain.Attachment{}
	}
	return attachments
}

// ParseDate parses a YYYY-MM-DD date in UTC
func ParseDate(value string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", value)
	}
	return t, nil
}

// FormatError creates a formatted error message
func FormatError(entity, operation string, err error) error {
	return fmt.Errorf("failed to %s %s: %w", operation, entity, err)
}
