package domain

import (
	"github.com/shopspring/decimal"
)

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

// ListResponse wraps an unpaginated list
type ListResponse struct {
	Data  interface{} `json:"data"`
	Total int         `json:"total"`
}

type ProjectDTO struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Code        string   `json:"code,omitempty"`
	Description string   `json:"description,omitempty"`
	OwnerID     string   `json:"ownerId"`
	OwnerName   string   `json:"ownerName,omitempty"`
	Members     []string `json:"members"`
	CreatedAt   string   `json:"createdAt"` // ISO 8601
	UpdatedAt   string   `json:"updatedAt"` // ISO 8601
}

type ContractDTO struct {
	ID               int64                `json:"id"`
	RelatedProjectID int64                `json:"relatedProjectId"`
	Name             string               `json:"name"`
	Code             string               `json:"code,omitempty"`
	Amount           decimal.Decimal      `json:"amount"`
	SignedDate       string               `json:"signedDate,omitempty"` // YYYY-MM-DD
	CostItems        []MeasurementItemDTO `json:"costItems"`
	MaterialItems    []MeasurementItemDTO `json:"materialItems"`
	CreatedAt        string               `json:"createdAt"`
	UpdatedAt        string               `json:"updatedAt"`
}

// ContractSummaryDTO compares the contract value with what has been measured and invoiced
type ContractSummaryDTO struct {
	ContractID       int64            `json:"contractId"`
	ContractAmount   decimal.Decimal  `json:"contractAmount"`
	ApprovedAmount   decimal.Decimal  `json:"approvedAmount"`
	PendingAmount    decimal.Decimal  `json:"pendingAmount"`
	InvoicedAmount   *decimal.Decimal `json:"invoicedAmount,omitempty"` // nil when the data warehouse is unavailable
	ApprovedCount    int              `json:"approvedCount"`
	PendingCount     int              `json:"pendingCount"`
	RejectedCount    int              `json:"rejectedCount"`
	CompletionRatio  decimal.Decimal  `json:"completionRatio"`
	InvoicedSyncedAt string           `json:"invoicedSyncedAt,omitempty"`
}

type PeriodDTO struct {
	ID                int64  `json:"id"`
	RelatedProjectID  int64  `json:"relatedProjectId"`
	RelatedContractID int64  `json:"relatedContractId"`
	Name              string `json:"name"`
	StartDate         string `json:"startDate"` // YYYY-MM-DD
	EndDate           string `json:"endDate"`   // YYYY-MM-DD
	IsArchived        bool   `json:"isArchived"`
	ArchivedAt        string `json:"archivedAt,omitempty"`
}

type MeasurementItemDTO struct {
	ID                int64               `json:"id"`
	RelatedContractID int64               `json:"relatedContractId"`
	ItemType          MeasurementItemType `json:"itemType"`
	Name              string              `json:"name"`
	Unit              string              `json:"unit,omitempty"`
	UnitPrice         decimal.Decimal     `json:"unitPrice"`
	DesignQuantity    decimal.Decimal     `json:"designQuantity"`
	SortOrder         int                 `json:"sortOrder"`
}

type MeasurementDetailDTO struct {
	ID                       int64               `json:"id"`
	RelatedProjectID         int64               `json:"relatedProjectId"`
	RelatedContractID        int64               `json:"relatedContractId"`
	RelatedPeriodID          int64               `json:"relatedPeriodId"`
	RelatedMeasurementItemID int64               `json:"relatedMeasurementItemId"`
	ItemName                 string              `json:"itemName,omitempty"`
	ItemType                 MeasurementItemType `json:"itemType,omitempty"`
	Unit                     string              `json:"unit,omitempty"`
	UnitPrice                decimal.Decimal     `json:"unitPrice"`
	CurrentCount             decimal.Decimal     `json:"currentCount"`
	TotalCount               decimal.Decimal     `json:"totalCount"`
	RemainingCount           *decimal.Decimal    `json:"remainingCount,omitempty"` // material items only
	Amount                   decimal.Decimal     `json:"amount"`
	MeasurementStatus        MeasurementStatus   `json:"measurementStatus"`
	MeasurementComment       string              `json:"measurementComment,omitempty"`
	Remark                   string              `json:"remark,omitempty"`
	Attachments              []Attachment        `json:"attachments"`
	ReviewedByName           string              `json:"reviewedByName,omitempty"`
	ReviewedAt               string              `json:"reviewedAt,omitempty"`
	CreatedByName            string              `json:"createdByName,omitempty"`
	CreatedAt                string              `json:"createdAt"`
	UpdatedAt                string              `json:"updatedAt"`
}

type MeasurementReviewDTO struct {
	ID                  int64             `json:"id"`
	MeasurementDetailID int64             `json:"measurementDetailId"`
	Decision            ReviewDecision    `json:"decision"`
	FromStatus          MeasurementStatus `json:"fromStatus"`
	ToStatus            MeasurementStatus `json:"toStatus"`
	Comment             string            `json:"comment,omitempty"`
	ReviewerName        string            `json:"reviewerName,omitempty"`
	ReviewedAt          string            `json:"reviewedAt"`
}

// Request DTOs

type CreateProjectRequest struct {
	Name        string   `json:"name" validate:"required,max=200"`
	Code        string   `json:"code,omitempty" validate:"max=50"`
	Description string   `json:"description,omitempty"`
	Members     []string `json:"members,omitempty"`
}

type UpdateProjectRequest struct {
	Name        string   `json:"name" validate:"required,max=200"`
	Code        string   `json:"code,omitempty" validate:"max=50"`
	Description string   `json:"description,omitempty"`
	Members     []string `json:"members,omitempty"`
}

type CreateContractRequest struct {
	RelatedProjectID int64           `json:"relatedProjectId" validate:"required,gt=0"`
	Name             string          `json:"name" validate:"required,max=200"`
	Code             string          `json:"code,omitempty" validate:"max=50"`
	Amount           decimal.Decimal `json:"amount"`
	SignedDate       string          `json:"signedDate,omitempty"`
}

type UpdateContractRequest struct {
	Name       string          `json:"name" validate:"required,max=200"`
	Code       string          `json:"code,omitempty" validate:"max=50"`
	Amount     decimal.Decimal `json:"amount"`
	SignedDate string          `json:"signedDate,omitempty"`
}

type CreateMeasurementItemRequest struct {
	ItemType       MeasurementItemType `json:"itemType" validate:"required,oneof=cost material"`
	Name           string              `json:"name" validate:"required,max=200"`
	Unit           string              `json:"unit,omitempty" validate:"max=30"`
	UnitPrice      decimal.Decimal     `json:"unitPrice"`
	DesignQuantity decimal.Decimal     `json:"designQuantity"`
	SortOrder      int                 `json:"sortOrder"`
}

type UpdateMeasurementItemRequest struct {
	Name           string          `json:"name" validate:"required,max=200"`
	Unit           string          `json:"unit,omitempty" validate:"max=30"`
	UnitPrice      decimal.Decimal `json:"unitPrice"`
	DesignQuantity decimal.Decimal `json:"designQuantity"`
	SortOrder      int             `json:"sortOrder"`
}

type CreatePeriodRequest struct {
	RelatedProjectID  int64  `json:"relatedProjectId" validate:"required,gt=0"`
	RelatedContractID int64  `json:"relatedContractId" validate:"required,gt=0"`
	Name              string `json:"name" validate:"required,max=100"`
	StartDate         string `json:"startDate" validate:"required"`
	EndDate           string `json:"endDate" validate:"required"`
}

type UpdatePeriodRequest struct {
	Name      string `json:"name" validate:"required,max=100"`
	StartDate string `json:"startDate" validate:"required"`
	EndDate   string `json:"endDate" validate:"required"`
}

// MeasurementDetailPayload is the create/update body for a measurement detail.
// ID is zero on create.
type MeasurementDetailPayload struct {
	ID                       int64           `json:"id,omitempty"`
	RelatedProjectID         int64           `json:"relatedProjectId" validate:"required,gt=0"`
	RelatedContractID        int64           `json:"relatedContractId" validate:"required,gt=0"`
	RelatedPeriodID          int64           `json:"relatedPeriodId" validate:"required,gt=0"`
	RelatedMeasurementItemID int64           `json:"relatedMeasurementItemId" validate:"required,gt=0"`
	CurrentCount             decimal.Decimal `json:"currentCount"`
	Remark                   string          `json:"remark,omitempty"`
	Attachments              []Attachment    `json:"attachments,omitempty"`
}

// ReviewMeasurementDetailRequest approves (isPass) or rejects a pending detail
type ReviewMeasurementDetailRequest struct {
	ID      int64  `json:"id" validate:"required,gt=0"`
	IsPass  bool   `json:"isPass"`
	Comment string `json:"comment,omitempty" validate:"max=2000"`
}
