package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/straye-as/measure-api/internal/domain"
	"github.com/straye-as/measure-api/internal/mapper"
	"github.com/straye-as/measure-api/internal/metrics"
	"github.com/straye-as/measure-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PeriodService handles business logic for measurement periods
type PeriodService struct {
	periodRepo   *repository.PeriodRepository
	contractRepo *repository.ContractRepository
	projectRepo  *repository.ProjectRepository
	metrics      *metrics.Metrics
	logger       *zap.Logger
	now          func() time.Time
}

// NewPeriodService creates a new period service instance. m may be nil.
func NewPeriodService(
	periodRepo *repository.PeriodRepository,
	contractRepo *repository.ContractRepository,
	projectRepo *repository.ProjectRepository,
	m *metrics.Metrics,
	logger *zap.Logger,
) *PeriodService {
	return &PeriodService{
		periodRepo:   periodRepo,
		contractRepo: contractRepo,
		projectRepo:  projectRepo,
		metrics:      m,
		logger:       logger,
		now:          time.Now,
	}
}

// List returns the periods of a contract, newest first. Archived periods are included
// unless filtered out.
func (s *PeriodService) List(ctx context.Context, filters *repository.PeriodFilters) ([]domain.PeriodDTO, error) {
	if filters == nil || filters.ProjectID <= 0 {
		return nil, fmt.Errorf("%w: projectId is required", ErrInvalidInput)
	}
	if err := ensureProjectAccess(ctx, s.projectRepo, filters.ProjectID); err != nil {
		return nil, err
	}

	periods, err := s.periodRepo.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list periods: %w", err)
	}

	dtos := make([]domain.PeriodDTO, len(periods))
	for i := range periods {
		dtos[i] = mapper.ToPeriodDTO(&periods[i])
	}
	return dtos, nil
}

// GetByID retrieves a period
func (s *PeriodService) GetByID(ctx context.Context, id int64) (*domain.PeriodDTO, error) {
	period, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := mapper.ToPeriodDTO(period)
	return &dto, nil
}

// Create creates a period on a contract of the given project
func (s *PeriodService) Create(ctx context.Context, req *domain.CreatePeriodRequest) (*domain.PeriodDTO, error) {
	if _, err := requireWriter(ctx); err != nil {
		return nil, err
	}
	if err := ensureProjectAccess(ctx, s.projectRepo, req.RelatedProjectID); err != nil {
		return nil, err
	}

	contract, err := s.contractRepo.GetByID(ctx, req.RelatedContractID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrContractNotFound
		}
		return nil, fmt.Errorf("failed to get contract: %w", err)
	}
	if contract.RelatedProjectID != req.RelatedProjectID {
		return nil, fmt.Errorf("%w: contract %d is not part of project %d", ErrInconsistentSelection, contract.ID, req.RelatedProjectID)
	}

	start, end, err := parseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	period := &domain.Period{
		RelatedProjectID:  req.RelatedProjectID,
		RelatedContractID: req.RelatedContractID,
		Name:              req.Name,
		StartDate:         start,
		EndDate:           end,
	}
	if err := s.periodRepo.Create(ctx, period); err != nil {
		return nil, fmt.Errorf("failed to create period: %w", err)
	}

	s.logger.Info("period created",
		zap.Int64("period_id", period.ID),
		zap.Int64("contract_id", period.RelatedContractID))

	dto := mapper.ToPeriodDTO(period)
	return &dto, nil
}

// Update changes a period's name and dates
func (s *PeriodService) Update(ctx context.Context, id int64, req *domain.UpdatePeriodRequest) (*domain.PeriodDTO, error) {
	if _, err := requireWriter(ctx); err != nil {
		return nil, err
	}
	period, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	start, end, err := parseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	period.Name = req.Name
	period.StartDate = start
	period.EndDate = end
	if err := s.periodRepo.Update(ctx, period); err != nil {
		return nil, fmt.Errorf("failed to update period: %w", err)
	}

	dto := mapper.ToPeriodDTO(period)
	return &dto, nil
}

// Delete removes a period without measurement details
func (s *PeriodService) Delete(ctx context.Context, id int64) error {
	if _, err := requireWriter(ctx); err != nil {
		return err
	}
	if _, err := s.get(ctx, id); err != nil {
		return err
	}

	count, err := s.periodRepo.CountDetails(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to count measurement details: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("%w: period has %d measurement details", ErrHasDependents, count)
	}
	if err := s.periodRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete period: %w", err)
	}
	return nil
}

// Archive closes a period for new measurement details. Archiving twice is a no-op.
func (s *PeriodService) Archive(ctx context.Context, id int64) (*domain.PeriodDTO, error) {
	if _, err := requireWriter(ctx); err != nil {
		return nil, err
	}
	period, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !period.IsArchived {
		at := s.now().UTC()
		if err := s.periodRepo.Archive(ctx, id, at); err != nil {
			return nil, fmt.Errorf("failed to archive period: %w", err)
		}
		period.IsArchived = true
		period.ArchivedAt = &at
		s.metrics.ObserveArchived(1)
		s.logger.Info("period archived", zap.Int64("period_id", id))
	}

	dto := mapper.ToPeriodDTO(period)
	return &dto, nil
}

// ArchiveEndedBefore archives every open period that ended before cutoff
func (s *PeriodService) ArchiveEndedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := s.periodRepo.ArchiveEndedBefore(ctx, cutoff, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to archive periods: %w", err)
	}
	s.metrics.ObserveArchived(n)
	return n, nil
}

func (s *PeriodService) get(ctx context.Context, id int64) (*domain.Period, error) {
	period, err := s.periodRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPeriodNotFound
		}
		return nil, fmt.Errorf("failed to get period: %w", err)
	}
	if err := ensureProjectAccess(ctx, s.projectRepo, period.RelatedProjectID); err != nil {
		return nil, err
	}
	return period, nil
}

func parseDateRange(startValue, endValue string) (time.Time, time.Time, error) {
	start, err := mapper.ParseDate(startValue)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	end, err := mapper.ParseDate(endValue)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, ErrInvalidDateRange
	}
	return start, end, nil
}
