package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// BaseModel carries the common identity and timestamp columns
type BaseModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// UserRoleType represents a role granted to a caller
type UserRoleType string

const (
	RoleAdmin    UserRoleType = "admin"
	RoleReviewer UserRoleType = "reviewer"
	RoleEngineer UserRoleType = "engineer"
	RoleViewer   UserRoleType = "viewer"
)

// IsValidRole reports whether the role is known
func IsValidRole(role string) bool {
	switch UserRoleType(role) {
	case RoleAdmin, RoleReviewer, RoleEngineer, RoleViewer:
		return true
	}
	return false
}

// Project is the top of the selection chain
type Project struct {
	BaseModel
	Name        string         `gorm:"type:varchar(200);not null"`
	Code        string         `gorm:"type:varchar(50);uniqueIndex"`
	Description string         `gorm:"type:text"`
	OwnerID     string         `gorm:"type:varchar(100);not null;index"`
	OwnerName   string         `gorm:"type:varchar(200)"`
	Members     datatypes.JSON `gorm:"type:jsonb"` // []string of user ids with access
	Contracts   []Contract     `gorm:"foreignKey:RelatedProjectID"`
}

// Contract belongs to a project and owns the measurement item catalog
type Contract struct {
	BaseModel
	RelatedProjectID int64             `gorm:"not null;index"`
	Project          *Project          `gorm:"foreignKey:RelatedProjectID"`
	Name             string            `gorm:"type:varchar(200);not null"`
	Code             string            `gorm:"type:varchar(50);index"`
	Amount           decimal.Decimal   `gorm:"type:decimal(18,2);not null;default:0"`
	SignedDate       *time.Time        `gorm:"type:date"`
	Items            []MeasurementItem `gorm:"foreignKey:RelatedContractID"`
}

// Period is a billing/measurement cycle scoped to a contract
type Period struct {
	BaseModel
	RelatedProjectID  int64      `gorm:"not null;index"`
	RelatedContractID int64      `gorm:"not null;index"`
	Name              string     `gorm:"type:varchar(100);not null"`
	StartDate         time.Time  `gorm:"type:date;not null"`
	EndDate           time.Time  `gorm:"type:date;not null"`
	IsArchived        bool       `gorm:"not null;default:false"`
	ArchivedAt        *time.Time `gorm:"type:timestamp"`
}

// MeasurementItemType distinguishes the two catalog categories
type MeasurementItemType string

const (
	MeasurementItemTypeCost     MeasurementItemType = "cost"
	MeasurementItemTypeMaterial MeasurementItemType = "material"
)

// IsValid reports whether the item type is known
func (t MeasurementItemType) IsValid() bool {
	return t == MeasurementItemTypeCost || t == MeasurementItemTypeMaterial
}

// MeasurementItem is a catalog entry of a contract
type MeasurementItem struct {
	BaseModel
	RelatedContractID int64               `gorm:"not null;index"`
	ItemType          MeasurementItemType `gorm:"type:varchar(20);not null;index"`
	Name              string              `gorm:"type:varchar(200);not null"`
	Unit              string              `gorm:"type:varchar(30)"`
	UnitPrice         decimal.Decimal     `gorm:"type:decimal(18,4);not null;default:0"`
	DesignQuantity    decimal.Decimal     `gorm:"type:decimal(18,4);not null;default:0"` // material items only
	SortOrder         int                 `gorm:"not null;default:0"`
}

// MeasurementStatus is the review state of a measurement detail
type MeasurementStatus int

const (
	MeasurementStatusPending  MeasurementStatus = 0
	MeasurementStatusApproved MeasurementStatus = 1
	MeasurementStatusRejected MeasurementStatus = 2
)

// String returns the lower-case status name
func (s MeasurementStatus) String() string {
	switch s {
	case MeasurementStatusPending:
		return "pending"
	case MeasurementStatusApproved:
		return "approved"
	case MeasurementStatusRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// IsValid reports whether the status is one of the three known states
func (s MeasurementStatus) IsValid() bool {
	return s >= MeasurementStatusPending && s <= MeasurementStatusRejected
}

// IsMutable reports whether a detail in this status may still be edited or deleted.
// Approved is terminal.
func (s MeasurementStatus) IsMutable() bool {
	return s != MeasurementStatusApproved
}

// MeasurementDetail is one periodic measurement against a catalog item
type MeasurementDetail struct {
	BaseModel
	RelatedProjectID         int64             `gorm:"not null;index"`
	RelatedContractID        int64             `gorm:"not null;index:idx_detail_contract_period_item,priority:1"`
	RelatedPeriodID          int64             `gorm:"not null;index:idx_detail_contract_period_item,priority:2"`
	RelatedMeasurementItemID int64             `gorm:"not null;index:idx_detail_contract_period_item,priority:3"`
	MeasurementItem          *MeasurementItem  `gorm:"foreignKey:RelatedMeasurementItemID"`
	Period                   *Period           `gorm:"foreignKey:RelatedPeriodID"`
	CurrentCount             decimal.Decimal   `gorm:"type:decimal(18,4);not null;default:0"`
	MeasurementStatus        MeasurementStatus `gorm:"not null;default:0;index"`
	MeasurementComment       string            `gorm:"type:text"`
	Remark                   string            `gorm:"type:text"`
	Attachments              datatypes.JSON    `gorm:"type:jsonb"` // []Attachment
	ReviewedByID             string            `gorm:"type:varchar(100)"`
	ReviewedByName           string            `gorm:"type:varchar(200)"`
	ReviewedAt               *time.Time        `gorm:"type:timestamp"`
	CreatedByID              string            `gorm:"type:varchar(100)"`
	CreatedByName            string            `gorm:"type:varchar(200)"`
	UpdatedByID              string            `gorm:"type:varchar(100)"`
	UpdatedByName            string            `gorm:"type:varchar(200)"`
}

// Attachment references a file held by the storage backend
type Attachment struct {
	FileName    string `json:"fileName"`
	StoragePath string `json:"storagePath"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// ReviewDecision is the outcome of a review
type ReviewDecision string

const (
	ReviewDecisionApprove ReviewDecision = "approve"
	ReviewDecisionReject  ReviewDecision = "reject"
)

// Status returns the measurement status the decision moves a detail into
func (d ReviewDecision) Status() MeasurementStatus {
	if d == ReviewDecisionApprove {
		return MeasurementStatusApproved
	}
	return MeasurementStatusRejected
}

// DecisionFromPass maps the isPass flag of a review request to a decision
func DecisionFromPass(isPass bool) ReviewDecision {
	if isPass {
		return ReviewDecisionApprove
	}
	return ReviewDecisionReject
}

// MeasurementReview is an append-only history row written for every review
type MeasurementReview struct {
	ID                  int64             `gorm:"primaryKey;autoIncrement"`
	MeasurementDetailID int64             `gorm:"not null;index"`
	Decision            ReviewDecision    `gorm:"type:varchar(20);not null"`
	FromStatus          MeasurementStatus `gorm:"not null"`
	ToStatus            MeasurementStatus `gorm:"not null"`
	Comment             string            `gorm:"type:text"`
	ReviewerID          string            `gorm:"type:varchar(100)"`
	ReviewerName        string            `gorm:"type:varchar(200)"`
	ReviewedAt          time.Time         `gorm:"not null"`
}
