package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/straye-as/measure-api/internal/config"
	"github.com/straye-as/measure-api/internal/domain"
	"github.com/straye-as/measure-api/internal/events"
	"github.com/straye-as/measure-api/internal/mapper"
	"github.com/straye-as/measure-api/internal/metrics"
	"github.com/straye-as/measure-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MeasurementDetailService enforces the measurement workflow:
// details are created pending, reviewed once, and frozen when approved.
type MeasurementDetailService struct {
	detailRepo   *repository.MeasurementDetailRepository
	reviewRepo   *repository.MeasurementReviewRepository
	periodRepo   *repository.PeriodRepository
	itemRepo     *repository.MeasurementItemRepository
	contractRepo *repository.ContractRepository
	projectRepo  *repository.ProjectRepository
	publisher    events.Publisher
	metrics      *metrics.Metrics
	workflow     config.WorkflowConfig
	logger       *zap.Logger
	now          func() time.Time
}

// NewMeasurementDetailService creates a new measurement detail service instance.
// publisher and m may be nil.
func NewMeasurementDetailService(
	detailRepo *repository.MeasurementDetailRepository,
	reviewRepo *repository.MeasurementReviewRepository,
	periodRepo *repository.PeriodRepository,
	itemRepo *repository.MeasurementItemRepository,
	contractRepo *repository.ContractRepository,
	projectRepo *repository.ProjectRepository,
	publisher events.Publisher,
	m *metrics.Metrics,
	workflow config.WorkflowConfig,
	logger *zap.Logger,
) *MeasurementDetailService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &MeasurementDetailService{
		detailRepo:   detailRepo,
		reviewRepo:   reviewRepo,
		periodRepo:   periodRepo,
		itemRepo:     itemRepo,
		contractRepo: contractRepo,
		projectRepo:  projectRepo,
		publisher:    publisher,
		metrics:      m,
		workflow:     workflow,
		logger:       logger,
		now:          time.Now,
	}
}

// List returns the details matching the filters with cumulative counts and amounts
func (s *MeasurementDetailService) List(ctx context.Context, filters *repository.MeasurementDetailFilters) ([]domain.MeasurementDetailDTO, error) {
	if filters == nil || filters.ProjectID <= 0 {
		return nil, fmt.Errorf("%w: projectId is required", ErrInvalidInput)
	}
	if filters.ItemType != "" && !filters.ItemType.IsValid() {
		return nil, fmt.Errorf("%w: unknown item type %q", ErrInvalidInput, filters.ItemType)
	}
	if filters.Status != nil && !filters.Status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %d", ErrInvalidInput, *filters.Status)
	}
	if err := ensureProjectAccess(ctx, s.projectRepo, filters.ProjectID); err != nil {
		return nil, err
	}

	details, err := s.detailRepo.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list measurement details: %w", err)
	}
	return s.toDTOs(ctx, details)
}

// GetByID retrieves a single detail
func (s *MeasurementDetailService) GetByID(ctx context.Context, id int64) (*domain.MeasurementDetailDTO, error) {
	detail, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.toDTO(ctx, detail)
}

// Create records a new pending measurement
func (s *MeasurementDetailService) Create(ctx context.Context, payload *domain.MeasurementDetailPayload) (*domain.MeasurementDetailDTO, error) {
	userCtx, err := requireWriter(ctx)
	if err != nil {
		return nil, err
	}
	if err := ensureProjectAccess(ctx, s.projectRepo, payload.RelatedProjectID); err != nil {
		return nil, err
	}
	if payload.CurrentCount.IsNegative() {
		return nil, fmt.Errorf("%w: currentCount must not be negative", ErrInvalidInput)
	}

	period, err := s.resolveChain(ctx, payload)
	if err != nil {
		return nil, err
	}
	if period.IsArchived && !s.workflow.AllowArchivedPeriods {
		s.metrics.ObserveRejection("period_archived")
		return nil, fmt.Errorf("%w: %s", ErrPeriodArchived, period.Name)
	}

	detail := &domain.MeasurementDetail{
		RelatedProjectID:         payload.RelatedProjectID,
		RelatedContractID:        payload.RelatedContractID,
		RelatedPeriodID:          payload.RelatedPeriodID,
		RelatedMeasurementItemID: payload.RelatedMeasurementItemID,
		CurrentCount:             payload.CurrentCount,
		MeasurementStatus:        domain.MeasurementStatusPending,
		Remark:                   payload.Remark,
		Attachments:              mapper.EncodeAttachments(payload.Attachments),
		CreatedByID:              userCtx.UserID,
		CreatedByName:            userCtx.DisplayName,
		UpdatedByID:              userCtx.UserID,
		UpdatedByName:            userCtx.DisplayName,
	}
	if err := s.detailRepo.Create(ctx, detail); err != nil {
		return nil, fmt.Errorf("failed to create measurement detail: %w", err)
	}

	s.logger.Info("measurement detail created",
		zap.Int64("detail_id", detail.ID),
		zap.Int64("period_id", detail.RelatedPeriodID),
		zap.Int64("item_id", detail.RelatedMeasurementItemID),
		zap.String("user_id", userCtx.UserID))

	return s.GetByID(ctx, detail.ID)
}

// Update changes the measured values of a pending or rejected detail.
// Updating a rejected detail resubmits it for review.
func (s *MeasurementDetailService) Update(ctx context.Context, id int64, payload *domain.MeasurementDetailPayload) (*domain.MeasurementDetailDTO, error) {
	userCtx, err := requireWriter(ctx)
	if err != nil {
		return nil, err
	}
	detail, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !detail.MeasurementStatus.IsMutable() {
		s.metrics.ObserveRejection("approved_immutable")
		return nil, ErrMeasurementDetailApproved
	}
	if payload.CurrentCount.IsNegative() {
		return nil, fmt.Errorf("%w: currentCount must not be negative", ErrInvalidInput)
	}
	if payload.RelatedProjectID != detail.RelatedProjectID ||
		payload.RelatedContractID != detail.RelatedContractID ||
		payload.RelatedPeriodID != detail.RelatedPeriodID {
		return nil, fmt.Errorf("%w: a measurement detail cannot be moved to another project, contract or period", ErrInconsistentSelection)
	}
	if payload.RelatedMeasurementItemID != detail.RelatedMeasurementItemID {
		if _, err := s.resolveChain(ctx, payload); err != nil {
			return nil, err
		}
	}

	expected := detail.MeasurementStatus
	detail.RelatedMeasurementItemID = payload.RelatedMeasurementItemID
	detail.CurrentCount = payload.CurrentCount
	detail.Remark = payload.Remark
	detail.Attachments = mapper.EncodeAttachments(payload.Attachments)
	detail.UpdatedByID = userCtx.UserID
	detail.UpdatedByName = userCtx.DisplayName
	if detail.MeasurementStatus == domain.MeasurementStatusRejected {
		detail.MeasurementStatus = domain.MeasurementStatusPending
		detail.MeasurementComment = ""
	}
	detail.UpdatedAt = s.now().UTC()

	if err := s.detailRepo.UpdateIfMutable(ctx, detail, expected); err != nil {
		if errors.Is(err, repository.ErrStatusChanged) {
			return nil, ErrConcurrentModification
		}
		return nil, fmt.Errorf("failed to update measurement detail: %w", err)
	}

	s.logger.Info("measurement detail updated",
		zap.Int64("detail_id", id),
		zap.Stringer("from_status", expected),
		zap.Stringer("to_status", detail.MeasurementStatus),
		zap.String("user_id", userCtx.UserID))

	return s.GetByID(ctx, id)
}

// Delete removes a detail that has not been approved
func (s *MeasurementDetailService) Delete(ctx context.Context, id int64) error {
	userCtx, err := requireWriter(ctx)
	if err != nil {
		return err
	}
	detail, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if !detail.MeasurementStatus.IsMutable() {
		s.metrics.ObserveRejection("approved_immutable")
		return ErrMeasurementDetailApproved
	}

	if err := s.detailRepo.DeleteIfMutable(ctx, id); err != nil {
		if errors.Is(err, repository.ErrStatusChanged) {
			return ErrConcurrentModification
		}
		return fmt.Errorf("failed to delete measurement detail: %w", err)
	}
	if err := s.reviewRepo.DeleteByDetail(ctx, id); err != nil {
		s.logger.Warn("failed to delete review history", zap.Int64("detail_id", id), zap.Error(err))
	}

	s.logger.Info("measurement detail deleted",
		zap.Int64("detail_id", id),
		zap.String("user_id", userCtx.UserID))
	return nil
}

// Review approves or rejects a detail. Only pending details can be reviewed unless the
// overwrite policy is configured, in which case a differing decision replaces the status,
// approved included, and a repeated identical decision is a no-op.
func (s *MeasurementDetailService) Review(ctx context.Context, id int64, req *domain.ReviewMeasurementDetailRequest) (*domain.MeasurementDetailDTO, error) {
	userCtx, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if !userCtx.CanReview() {
		return nil, ErrPermissionDenied
	}
	detail, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	decision := domain.DecisionFromPass(req.IsPass)
	from := detail.MeasurementStatus
	to := decision.Status()

	if from != domain.MeasurementStatusPending {
		if !s.workflow.OverwriteOnReReview() {
			s.metrics.ObserveRejection("already_reviewed")
			return nil, fmt.Errorf("%w: status is %s", ErrMeasurementDetailAlreadyReviewed, from)
		}
		if from == to {
			return s.toDTO(ctx, detail)
		}
	}

	reviewedAt := s.now().UTC()
	detail.MeasurementStatus = to
	detail.MeasurementComment = req.Comment
	detail.ReviewedByID = userCtx.UserID
	detail.ReviewedByName = userCtx.DisplayName
	detail.ReviewedAt = &reviewedAt

	review := &domain.MeasurementReview{
		MeasurementDetailID: detail.ID,
		Decision:            decision,
		FromStatus:          from,
		ToStatus:            to,
		Comment:             req.Comment,
		ReviewerID:          userCtx.UserID,
		ReviewerName:        userCtx.DisplayName,
		ReviewedAt:          reviewedAt,
	}
	if err := s.detailRepo.ApplyReview(ctx, detail, from, review); err != nil {
		if errors.Is(err, repository.ErrStatusChanged) {
			return nil, ErrConcurrentModification
		}
		return nil, fmt.Errorf("failed to review measurement detail: %w", err)
	}

	s.metrics.ObserveReview(string(decision))
	s.logger.Info("measurement detail reviewed",
		zap.Int64("detail_id", id),
		zap.String("decision", string(decision)),
		zap.Stringer("from_status", from),
		zap.String("reviewer_id", userCtx.UserID))

	evt := events.DetailReviewed{
		DetailID:     detail.ID,
		ProjectID:    detail.RelatedProjectID,
		ContractID:   detail.RelatedContractID,
		PeriodID:     detail.RelatedPeriodID,
		ItemID:       detail.RelatedMeasurementItemID,
		Decision:     string(decision),
		FromStatus:   int(from),
		ToStatus:     int(to),
		Comment:      req.Comment,
		ReviewerID:   userCtx.UserID,
		ReviewerName: userCtx.DisplayName,
		ReviewedAt:   reviewedAt,
	}
	if err := s.publisher.PublishDetailReviewed(ctx, evt); err != nil {
		s.logger.Warn("failed to publish review event", zap.Int64("detail_id", id), zap.Error(err))
	}

	return s.toDTO(ctx, detail)
}

// ListReviews returns a detail's review history, oldest first
func (s *MeasurementDetailService) ListReviews(ctx context.Context, id int64) ([]domain.MeasurementReviewDTO, error) {
	if _, err := s.get(ctx, id); err != nil {
		return nil, err
	}
	reviews, err := s.reviewRepo.ListByDetail(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}

	dtos := make([]domain.MeasurementReviewDTO, len(reviews))
	for i := range reviews {
		dtos[i] = mapper.ToMeasurementReviewDTO(&reviews[i])
	}
	return dtos, nil
}

// resolveChain checks that contract, period and item exist and belong to the payload's project
func (s *MeasurementDetailService) resolveChain(ctx context.Context, payload *domain.MeasurementDetailPayload) (*domain.Period, error) {
	contract, err := s.contractRepo.GetByID(ctx, payload.RelatedContractID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: contract %d does not exist", ErrInconsistentSelection, payload.RelatedContractID)
		}
		return nil, fmt.Errorf("failed to get contract: %w", err)
	}
	if contract.RelatedProjectID != payload.RelatedProjectID {
		return nil, fmt.Errorf("%w: contract %d is not part of project %d", ErrInconsistentSelection, contract.ID, payload.RelatedProjectID)
	}

	period, err := s.periodRepo.GetByID(ctx, payload.RelatedPeriodID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: period %d does not exist", ErrInconsistentSelection, payload.RelatedPeriodID)
		}
		return nil, fmt.Errorf("failed to get period: %w", err)
	}
	if period.RelatedContractID != contract.ID || period.RelatedProjectID != payload.RelatedProjectID {
		return nil, fmt.Errorf("%w: period %d is not part of contract %d", ErrInconsistentSelection, period.ID, contract.ID)
	}

	item, err := s.itemRepo.GetByID(ctx, payload.RelatedMeasurementItemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: measurement item %d does not exist", ErrInconsistentSelection, payload.RelatedMeasurementItemID)
		}
		return nil, fmt.Errorf("failed to get measurement item: %w", err)
	}
	if item.RelatedContractID != contract.ID {
		return nil, fmt.Errorf("%w: measurement item %d is not part of contract %d", ErrInconsistentSelection, item.ID, contract.ID)
	}

	return period, nil
}

func (s *MeasurementDetailService) get(ctx context.Context, id int64) (*domain.MeasurementDetail, error) {
	detail, err := s.detailRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMeasurementDetailNotFound
		}
		return nil, fmt.Errorf("failed to get measurement detail: %w", err)
	}
	if err := ensureProjectAccess(ctx, s.projectRepo, detail.RelatedProjectID); err != nil {
		return nil, err
	}
	return detail, nil
}

func (s *MeasurementDetailService) toDTO(ctx context.Context, detail *domain.MeasurementDetail) (*domain.MeasurementDetailDTO, error) {
	dtos, err := s.toDTOs(ctx, []domain.MeasurementDetail{*detail})
	if err != nil {
		return nil, err
	}
	return &dtos[0], nil
}

func (s *MeasurementDetailService) toDTOs(ctx context.Context, details []domain.MeasurementDetail) ([]domain.MeasurementDetailDTO, error) {
	totals, err := s.detailRepo.CumulativeTotals(ctx, details)
	if err != nil {
		return nil, fmt.Errorf("failed to compute cumulative counts: %w", err)
	}

	dtos := make([]domain.MeasurementDetailDTO, len(details))
	for i := range details {
		dtos[i] = mapper.ToMeasurementDetailDTO(&details[i], totals[details[i].ID])
	}
	return dtos, nil
}
