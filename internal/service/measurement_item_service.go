package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/straye-as/measure-api/internal/domain"
	"github.com/straye-as/measure-api/internal/mapper"
	"github.com/straye-as/measure-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MeasurementItemService manages a contract's item catalog
type MeasurementItemService struct {
	itemRepo     *repository.MeasurementItemRepository
	contractRepo *repository.ContractRepository
	projectRepo  *repository.ProjectRepository
	logger       *zap.Logger
}

// NewMeasurementItemService creates a new measurement item service instance
func NewMeasurementItemService(
	itemRepo *repository.MeasurementItemRepository,
	contractRepo *repository.ContractRepository,
	projectRepo *repository.ProjectRepository,
	logger *zap.Logger,
) *MeasurementItemService {
	return &MeasurementItemService{
		itemRepo:     itemRepo,
		contractRepo: contractRepo,
		projectRepo:  projectRepo,
		logger:       logger,
	}
}

// ListByContract returns the catalog in display order, optionally one type only
func (s *MeasurementItemService) ListByContract(ctx context.Context, contractID int64, itemType domain.MeasurementItemType) ([]domain.MeasurementItemDTO, error) {
	if itemType != "" && !itemType.IsValid() {
		return nil, fmt.Errorf("%w: unknown item type %q", ErrInvalidInput, itemType)
	}
	if _, err := s.contract(ctx, contractID); err != nil {
		return nil, err
	}

	items, err := s.itemRepo.ListByContract(ctx, contractID, itemType)
	if err != nil {
		return nil, fmt.Errorf("failed to list measurement items: %w", err)
	}

	dtos := make([]domain.MeasurementItemDTO, len(items))
	for i := range items {
		dtos[i] = mapper.ToMeasurementItemDTO(&items[i])
	}
	return dtos, nil
}

// Create adds an item to the contract's catalog
func (s *MeasurementItemService) Create(ctx context.Context, contractID int64, req *domain.CreateMeasurementItemRequest) (*domain.MeasurementItemDTO, error) {
	if _, err := requireWriter(ctx); err != nil {
		return nil, err
	}
	if _, err := s.contract(ctx, contractID); err != nil {
		return nil, err
	}
	if err := validateItemValues(req.ItemType, req.UnitPrice, req.DesignQuantity); err != nil {
		return nil, err
	}

	item := &domain.MeasurementItem{
		RelatedContractID: contractID,
		ItemType:          req.ItemType,
		Name:              req.Name,
		Unit:              req.Unit,
		UnitPrice:         req.UnitPrice,
		DesignQuantity:    designQuantityFor(req.ItemType, req.DesignQuantity),
		SortOrder:         req.SortOrder,
	}
	if err := s.itemRepo.Create(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to create measurement item: %w", err)
	}

	dto := mapper.ToMeasurementItemDTO(item)
	return &dto, nil
}

// Update changes an item's descriptive and pricing fields; the type is fixed
func (s *MeasurementItemService) Update(ctx context.Context, id int64, req *domain.UpdateMeasurementItemRequest) (*domain.MeasurementItemDTO, error) {
	if _, err := requireWriter(ctx); err != nil {
		return nil, err
	}
	item, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := validateItemValues(item.ItemType, req.UnitPrice, req.DesignQuantity); err != nil {
		return nil, err
	}

	item.Name = req.Name
	item.Unit = req.Unit
	item.UnitPrice = req.UnitPrice
	item.DesignQuantity = designQuantityFor(item.ItemType, req.DesignQuantity)
	item.SortOrder = req.SortOrder

	if err := s.itemRepo.Update(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to update measurement item: %w", err)
	}

	dto := mapper.ToMeasurementItemDTO(item)
	return &dto, nil
}

// Delete removes an item that has no measurement details
func (s *MeasurementItemService) Delete(ctx context.Context, id int64) error {
	if _, err := requireWriter(ctx); err != nil {
		return err
	}
	if _, err := s.get(ctx, id); err != nil {
		return err
	}

	count, err := s.itemRepo.CountDetails(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to count measurement details: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("%w: item has %d measurement details", ErrHasDependents, count)
	}
	if err := s.itemRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete measurement item: %w", err)
	}
	return nil
}

func (s *MeasurementItemService) get(ctx context.Context, id int64) (*domain.MeasurementItem, error) {
	item, err := s.itemRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMeasurementItemNotFound
		}
		return nil, fmt.Errorf("failed to get measurement item: %w", err)
	}
	if _, err := s.contract(ctx, item.RelatedContractID); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *MeasurementItemService) contract(ctx context.Context, contractID int64) (*domain.Contract, error) {
	contract, err := s.contractRepo.GetByID(ctx, contractID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrContractNotFound
		}
		return nil, fmt.Errorf("failed to get contract: %w", err)
	}
	if err := ensureProjectAccess(ctx, s.projectRepo, contract.RelatedProjectID); err != nil {
		return nil, err
	}
	return contract, nil
}

func validateItemValues(itemType domain.MeasurementItemType, unitPrice, designQuantity decimal.Decimal) error {
	if !itemType.IsValid() {
		return fmt.Errorf("%w: unknown item type %q", ErrInvalidInput, itemType)
	}
	if unitPrice.IsNegative() {
		return fmt.Errorf("%w: unit price must not be negative", ErrInvalidInput)
	}
	if designQuantity.IsNegative() {
		return fmt.Errorf("%w: design quantity must not be negative", ErrInvalidInput)
	}
	return nil
}

// designQuantityFor drops the design quantity of cost items
func designQuantityFor(itemType domain.MeasurementItemType, quantity decimal.Decimal) decimal.Decimal {
	if itemType != domain.MeasurementItemTypeMaterial {
		return decimal.Zero
	}
	return quantity
}
