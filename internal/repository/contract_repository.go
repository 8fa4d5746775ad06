package repository

import (
	"context"

	"github.com/straye-as/measure-api/internal/domain"
	"gorm.io/gorm"
)

// ContractRepository handles contract data access operations
type ContractRepository struct {
	db *gorm.DB
}

// NewContractRepository creates a new contract repository instance
func NewContractRepository(db *gorm.DB) *ContractRepository {
	return &ContractRepository{db: db}
}

func preloadItems(db *gorm.DB) *gorm.DB {
	return db.Order("sort_order ASC, id ASC")
}

// Create creates a new contract
func (r *ContractRepository) Create(ctx context.Context, contract *domain.Contract) error {
	return r.db.WithContext(ctx).Omit("Project", "Items").Create(contract).Error
}

// GetByID retrieves a contract with its item catalog
func (r *ContractRepository) GetByID(ctx context.Context, id int64) (*domain.Contract, error) {
	var contract domain.Contract
	err := r.db.WithContext(ctx).
		Preload("Items", preloadItems).
		Where("id = ?", id).
		First(&contract).Error
	if err != nil {
		return nil, err
	}
	return &contract, nil
}

// Update saves the contract's own columns
func (r *ContractRepository) Update(ctx context.Context, contract *domain.Contract) error {
	return r.db.WithContext(ctx).Omit("Project", "Items").Save(contract).Error
}

// Delete removes a contract together with its item catalog
func (r *ContractRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&domain.MeasurementItem{}, "related_contract_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&domain.Contract{}, "id = ?", id).Error
	})
}

// ListByProject returns the project's contracts, oldest first, with item catalogs
func (r *ContractRepository) ListByProject(ctx context.Context, projectID int64) ([]domain.Contract, error) {
	var contracts []domain.Contract
	err := r.db.WithContext(ctx).
		Preload("Items", preloadItems).
		Where("related_project_id = ?", projectID).
		Order("id ASC").
		Find(&contracts).Error
	return contracts, err
}

// CountDependents returns the number of periods and measurement details referencing the contract
func (r *ContractRepository) CountDependents(ctx context.Context, contractID int64) (int64, error) {
	var periods, details int64
	db := r.db.WithContext(ctx)
	if err := db.Model(&domain.Period{}).Where("related_contract_id = ?", contractID).Count(&periods).Error; err != nil {
		return 0, err
	}
	if err := db.Model(&domain.MeasurementDetail{}).Where("related_contract_id = ?", contractID).Count(&details).Error; err != nil {
		return 0, err
	}
	return periods + details, nil
}
