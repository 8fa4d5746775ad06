// Package testutil provides database fixtures for package tests.
package testutil

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/straye-as/measure-api/internal/database"
	"github.com/straye-as/measure-api/internal/domain"
	"github.com/straye-as/measure-api/internal/mapper"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB opens an isolated in-memory SQLite database with the schema migrated
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()) + "_" + uuid.NewString()[:8]
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	return db
}

// Date returns midnight UTC of the given day
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// CreateTestProject creates a project owned by ownerID
func CreateTestProject(t *testing.T, db *gorm.DB, name, ownerID string, members ...string) *domain.Project {
	t.Helper()
	project := &domain.Project{
		Name:      name,
		Code:      "P-" + uuid.NewString()[:8],
		OwnerID:   ownerID,
		OwnerName: "Owner " + ownerID,
		Members:   mapper.EncodeMembers(members),
	}
	require.NoError(t, db.Create(project).Error)
	return project
}

// CreateTestContract creates a contract under the project
func CreateTestContract(t *testing.T, db *gorm.DB, projectID int64, name string) *domain.Contract {
	t.Helper()
	contract := &domain.Contract{
		RelatedProjectID: projectID,
		Name:             name,
		Code:             "K-" + uuid.NewString()[:8],
		Amount:           decimal.NewFromInt(1000000),
	}
	require.NoError(t, db.Create(contract).Error)
	return contract
}

// CreateTestItem creates a catalog item on the contract
func CreateTestItem(t *testing.T, db *gorm.DB, contractID int64, itemType domain.MeasurementItemType, name string, unitPrice, designQuantity float64) *domain.MeasurementItem {
	t.Helper()
	item := &domain.MeasurementItem{
		RelatedContractID: contractID,
		ItemType:          itemType,
		Name:              name,
		Unit:              "m3",
		UnitPrice:         decimal.NewFromFloat(unitPrice),
		DesignQuantity:    decimal.NewFromFloat(designQuantity),
	}
	require.NoError(t, db.Create(item).Error)
	return item
}

// CreateTestPeriod creates a period on the contract
func CreateTestPeriod(t *testing.T, db *gorm.DB, projectID, contractID int64, name string, start, end time.Time) *domain.Period {
	t.Helper()
	period := &domain.Period{
		RelatedProjectID:  projectID,
		RelatedContractID: contractID,
		Name:              name,
		StartDate:         start,
		EndDate:           end,
	}
	require.NoError(t, db.Create(period).Error)
	return period
}

// CreateTestDetail creates a measurement detail in the given status
func CreateTestDetail(t *testing.T, db *gorm.DB, period *domain.Period, item *domain.MeasurementItem, count float64, status domain.MeasurementStatus) *domain.MeasurementDetail {
	t.Helper()
	detail := &domain.MeasurementDetail{
		RelatedProjectID:         period.RelatedProjectID,
		RelatedContractID:        period.RelatedContractID,
		RelatedPeriodID:          period.ID,
		RelatedMeasurementItemID: item.ID,
		CurrentCount:             decimal.NewFromFloat(count),
		MeasurementStatus:        status,
		Attachments:              mapper.EncodeAttachments(nil),
		CreatedByID:              "engineer-1",
		CreatedByName:            "Engineer One",
	}
	require.NoError(t, db.Create(detail).Error)
	return detail
}

// Fixture is a complete project → contract → period → items chain
type Fixture struct {
	Project  *domain.Project
	Contract *domain.Contract
	Period   *domain.Period
	Cost     *domain.MeasurementItem
	Material *domain.MeasurementItem
}

// CreateFixture builds a chain owned by ownerID with one cost and one material item
func CreateFixture(t *testing.T, db *gorm.DB, ownerID string, members ...string) *Fixture {
	t.Helper()
	project := CreateTestProject(t, db, "Harbour Bridge", ownerID, members...)
	contract := CreateTestContract(t, db, project.ID, "Main works")
	return &Fixture{
		Project:  project,
		Contract: contract,
		Period:   CreateTestPeriod(t, db, project.ID, contract.ID, "2024-01", Date(2024, 1, 1), Date(2024, 1, 31)),
		Cost:     CreateTestItem(t, db, contract.ID, domain.MeasurementItemTypeCost, "Site setup", 1500, 0),
		Material: CreateTestItem(t, db, contract.ID, domain.MeasurementItemTypeMaterial, "Concrete C35", 120.5, 400),
	}
}
