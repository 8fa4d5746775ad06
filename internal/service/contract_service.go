package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/straye-as/measure-api/internal/datawarehouse"
	"github.com/straye-as/measure-api/internal/domain"
	"github.com/straye-as/measure-api/internal/mapper"
	"github.com/straye-as/measure-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// InvoiceSource provides ERP invoiced totals per contract code
type InvoiceSource interface {
	IsEnabled() bool
	GetContractInvoicedAmount(ctx context.Context, contractCode string) (*datawarehouse.InvoicedAmount, error)
}

// ContractService handles business logic for contracts
type ContractService struct {
	contractRepo *repository.ContractRepository
	projectRepo  *repository.ProjectRepository
	detailRepo   *repository.MeasurementDetailRepository
	invoices     InvoiceSource
	logger       *zap.Logger
}

// NewContractService creates a new contract service instance. invoices may be nil.
func NewContractService(
	contractRepo *repository.ContractRepository,
	projectRepo *repository.ProjectRepository,
	detailRepo *repository.MeasurementDetailRepository,
	invoices InvoiceSource,
	logger *zap.Logger,
) *ContractService {
	return &ContractService{
		contractRepo: contractRepo,
		projectRepo:  projectRepo,
		detailRepo:   detailRepo,
		invoices:     invoices,
		logger:       logger,
	}
}

// ListByProject returns a project's contracts with their item catalogs
func (s *ContractService) ListByProject(ctx context.Context, projectID int64) ([]domain.ContractDTO, error) {
	if err := ensureProjectAccess(ctx, s.projectRepo, projectID); err != nil {
		return nil, err
	}

	contracts, err := s.contractRepo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list contracts: %w", err)
	}

	dtos := make([]domain.ContractDTO, len(contracts))
	for i := range contracts {
		dtos[i] = mapper.ToContractDTO(&contracts[i])
	}
	return dtos, nil
}

// GetByID retrieves a contract with its item catalog
func (s *ContractService) GetByID(ctx context.Context, id int64) (*domain.ContractDTO, error) {
	contract, err := s.getAccessible(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := mapper.ToContractDTO(contract)
	return &dto, nil
}

// Create creates a contract under an accessible project
func (s *ContractService) Create(ctx context.Context, req *domain.CreateContractRequest) (*domain.ContractDTO, error) {
	if _, err := requireWriter(ctx); err != nil {
		return nil, err
	}
	if err := ensureProjectAccess(ctx, s.projectRepo, req.RelatedProjectID); err != nil {
		return nil, err
	}

	signed, err := parseOptionalDate(req.SignedDate)
	if err != nil {
		return nil, err
	}
	if req.Amount.IsNegative() {
		return nil, fmt.Errorf("%w: amount must not be negative", ErrInvalidInput)
	}

	contract := &domain.Contract{
		RelatedProjectID: req.RelatedProjectID,
		Name:             req.Name,
		Code:             req.Code,
		Amount:           req.Amount,
		SignedDate:       signed,
	}
	if err := s.contractRepo.Create(ctx, contract); err != nil {
		return nil, fmt.Errorf("failed to create contract: %w", err)
	}

	s.logger.Info("contract created",
		zap.Int64("contract_id", contract.ID),
		zap.Int64("project_id", contract.RelatedProjectID))

	dto := mapper.ToContractDTO(contract)
	return &dto, nil
}

// Update updates a contract's own fields
func (s *ContractService) Update(ctx context.Context, id int64, req *domain.UpdateContractRequest) (*domain.ContractDTO, error) {
	if _, err := requireWriter(ctx); err != nil {
		return nil, err
	}
	contract, err := s.getAccessible(ctx, id)
	if err != nil {
		return nil, err
	}

	signed, err := parseOptionalDate(req.SignedDate)
	if err != nil {
		return nil, err
	}
	if req.Amount.IsNegative() {
		return nil, fmt.Errorf("%w: amount must not be negative", ErrInvalidInput)
	}

	contract.Name = req.Name
	contract.Code = req.Code
	contract.Amount = req.Amount
	contract.SignedDate = signed

	if err := s.contractRepo.Update(ctx, contract); err != nil {
		return nil, fmt.Errorf("failed to update contract: %w", err)
	}

	dto := mapper.ToContractDTO(contract)
	return &dto, nil
}

// Delete removes a contract and its catalog when no periods or details reference it
func (s *ContractService) Delete(ctx context.Context, id int64) error {
	if _, err := requireWriter(ctx); err != nil {
		return err
	}
	if _, err := s.getAccessible(ctx, id); err != nil {
		return err
	}

	count, err := s.contractRepo.CountDependents(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to count contract dependents: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("%w: contract has %d periods or measurement details", ErrHasDependents, count)
	}

	if err := s.contractRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete contract: %w", err)
	}
	s.logger.Info("contract deleted", zap.Int64("contract_id", id))
	return nil
}

// GetSummary compares the contract amount with measured and, when available, invoiced amounts
func (s *ContractService) GetSummary(ctx context.Context, id int64) (*domain.ContractSummaryDTO, error) {
	contract, err := s.getAccessible(ctx, id)
	if err != nil {
		return nil, err
	}

	details, err := s.detailRepo.ListByContract(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list measurement details: %w", err)
	}

	summary := &domain.ContractSummaryDTO{
		ContractID:      contract.ID,
		ContractAmount:  contract.Amount,
		ApprovedAmount:  decimal.Zero,
		PendingAmount:   decimal.Zero,
		CompletionRatio: decimal.Zero,
	}
	for _, d := range details {
		amount := decimal.Zero
		if d.MeasurementItem != nil {
			amount = d.CurrentCount.Mul(d.MeasurementItem.UnitPrice)
		}
		switch d.MeasurementStatus {
		case domain.MeasurementStatusApproved:
			summary.ApprovedCount++
			summary.ApprovedAmount = summary.ApprovedAmount.Add(amount)
		case domain.MeasurementStatusPending:
			summary.PendingCount++
			summary.PendingAmount = summary.PendingAmount.Add(amount)
		case domain.MeasurementStatusRejected:
			summary.RejectedCount++
		}
	}
	summary.ApprovedAmount = summary.ApprovedAmount.Round(2)
	summary.PendingAmount = summary.PendingAmount.Round(2)
	if contract.Amount.IsPositive() {
		summary.CompletionRatio = summary.ApprovedAmount.Div(contract.Amount).Round(4)
	}

	if s.invoices != nil && s.invoices.IsEnabled() && contract.Code != "" {
		invoiced, err := s.invoices.GetContractInvoicedAmount(ctx, contract.Code)
		if err != nil {
			// the summary is still useful without ERP figures
			s.logger.Warn("failed to load invoiced amount",
				zap.Int64("contract_id", contract.ID),
				zap.String("contract_code", contract.Code),
				zap.Error(err))
		} else {
			amount := invoiced.Amount.Round(2)
			summary.InvoicedAmount = &amount
			if invoiced.LastPostedAt != nil {
				summary.InvoicedSyncedAt = invoiced.LastPostedAt.Format(time.RFC3339)
			}
		}
	}

	return summary, nil
}

func (s *ContractService) getAccessible(ctx context.Context, id int64) (*domain.Contract, error) {
	contract, err := s.contractRepo.GetByID(ctx, id)
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

func parseOptionalDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := mapper.ParseDate(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return &t, nil
}
