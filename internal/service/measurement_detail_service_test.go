package service_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/straye-as/measure-api/internal/config"
	"github.com/straye-as/measure-api/internal/domain"
	"github.com/straye-as/measure-api/internal/repository"
	"github.com/straye-as/measure-api/internal/service"
	dbutil "github.com/straye-as/measure-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func payloadFor(f *dbutil.Fixture, item *domain.MeasurementItem, count int64) *domain.MeasurementDetailPayload {
	return &domain.MeasurementDetailPayload{
		RelatedProjectID:         f.Project.ID,
		RelatedContractID:        f.Contract.ID,
		RelatedPeriodID:          f.Period.ID,
		RelatedMeasurementItemID: item.ID,
		CurrentCount:             decimal.NewFromInt(count),
	}
}

func TestMeasurementDetailService_Create(t *testing.T) {
	db := dbutil.SetupTestDB(t)
	svc := newServices(db, defaultWorkflow())
	f := dbutil.CreateFixture(t, db, "engineer-1")

	dto, err := svc.details.Create(engineerCtx(), payloadFor(f, f.Material, 50))
	require.NoError(t, err)

	assert.NotZero(t, dto.ID)
	assert.Equal(t, domain.MeasurementStatusPending, dto.MeasurementStatus)
	assert.Equal(t, f.Project.ID, dto.RelatedProjectID)
	assert.Equal(t, f.Contract.ID, dto.RelatedContractID)
	assert.Equal(t, f.Period.ID, dto.RelatedPeriodID)
	assert.True(t, dto.CurrentCount.Equal(decimal.NewFromInt(50)))
	assert.True(t, dto.TotalCount.Equal(decimal.NewFromInt(50)))
	assert.True(t, dto.Amount.Equal(decimal.RequireFromString("6025")), dto.Amount.String())
	require.NotNil(t, dto.RemainingCount)
	assert.True(t, dto.RemainingCount.Equal(decimal.NewFromInt(350)))
	assert.Equal(t, "User engineer-1", dto.CreatedByName)
}

func TestMeasurementDetailService_CreateRejectsInconsistentChain(t *testing.T) {
	db := dbutil.SetupTestDB(t)
	svc := newServices(db, defaultWorkflow())
	f := dbutil.CreateFixture(t, db, "engineer-1")
	other := dbutil.CreateTestContract(t, db, f.Project.ID, "Side works")
	foreignItem := dbutil.CreateTestItem(t, db, other.ID, domain.MeasurementItemTypeCost, "Other", 1, 0)

	_, err := svc.details.Create(engineerCtx(), payloadFor(f, foreignItem, 1))
	assert.ErrorIs(t, err, service.ErrInconsistentSelection)

	p := payloadFor(f, f.Cost, 1)
	p.RelatedPeriodID = 9999
	_, err = svc.details.Create(engineerCtx(), p)
	assert.ErrorIs(t, err, service.ErrInconsistentSelection)
}

func TestMeasurementDetailService_CreateRequiresProjectAccess(t *testing.T) {
	db := dbutil.SetupTestDB(t)
	svc := newServices(db, defaultWorkflow())
	f := dbutil.CreateFixture(t, db, "someone-else")

	_, err := svc.details.Create(engineerCtx(), payloadFor(f, f.Cost, 1))
	assert.ErrorIs(t, err, service.ErrPermissionDenied)

	_, err = svc.details.Create(userCtx("viewer-1", domain.RoleViewer), payloadFor(f, f.Cost, 1))
	assert.ErrorIs(t, err, service.ErrPermissionDenied)
}

func TestMeasurementDetailService_ArchivedPeriodPolicy(t *testing.T) {
	db := dbutil.SetupTestDB(t)
	f := dbutil.CreateFixture(t, db, "engineer-1")
	require.NoError(t, db.Model(f.Period).Update("is_archived", true).Error)

	strict := newServices(db, defaultWorkflow())
	_, err := strict.details.Create(engineerCtx(), payloadFor(f, f.Cost, 1))
	assert.ErrorIs(t, err, service.ErrPeriodArchived)

	lenient := newServices(db, config.WorkflowConfig{ReReviewPolicy: config.ReReviewPolicyReject, AllowArchivedPeriods: true})
	_, err = lenient.details.Create(engineerCtx(), payloadFor(f, f.Cost, 1))
	assert.NoError(t, err)
}

func TestMeasurementDetailService_ApprovedIsImmutable(t *testing.T) {
	db := dbutil.SetupTestDB(t)
	svc := newServices(db, defaultWorkflow())
	f := dbutil.CreateFixture(t, db, "engineer-1")
	detail := dbutil.CreateTestDetail(t, db, f.Period, f.Cost, 3, domain.MeasurementStatusApproved)

	p := payloadFor(f, f.Cost, 10)
	p.ID = detail.ID
	_, err := svc.details.Update(engineerCtx(), detail.ID, p)
	assert.ErrorIs(t, err, service.ErrMeasurementDetailApproved)

	err = svc.details.Delete(engineerCtx(), detail.ID)
	assert.ErrorIs(t, err, service.ErrMeasurementDetailApproved)

	var reloaded domain.MeasurementDetail
	require.NoError(t, db.First(&reloaded, detail.ID).Error)
	assert.True(t, reloaded.CurrentCount.Equal(decimal.NewFromInt(3)))
}

func TestMeasurementDetailService_UpdateRejectedResubmits(t *testing.T) {
	db := dbutil.SetupTestDB(t)
	svc := newServices(db, defaultWorkflow())
	f := dbutil.CreateFixture(t, db, "engineer-1")
	detail := dbutil.CreateTestDetail(t, db, f.Period, f.Cost, 3, domain.MeasurementStatusRejected)
	require.NoError(t, db.Model(detail).Update("measurement_comment", "wrong quantity").Error)

	p := payloadFor(f, f.Cost, 4)
	dto, err := svc.details.Update(engineerCtx(), detail.ID, p)
	require.NoError(t, err)
	assert.Equal(t, domain.MeasurementStatusPending, dto.MeasurementStatus)
	assert.Empty(t, dto.MeasurementComment)
	assert.True(t, dto.CurrentCount.Equal(decimal.NewFromInt(4)))
}

func TestMeasurementDetailService_UpdateCannotMoveDetail(t *testing.T) {
	db := dbutil.SetupTestDB(t)
	svc := newServices(db, defaultWorkflow())
	f := dbutil.CreateFixture(t, db, "engineer-1")
	detail := dbutil.CreateTestDetail(t, db, f.Period, f.Cost, 3, domain.MeasurementStatusPending)
	next := dbutil.CreateTestPeriod(t, db, f.Project.ID, f.Contract.ID, "2024-02", dbutil.Date(2024, 2, 1), dbutil.Date(2024, 2, 29))

	p := payloadFor(f, f.Cost, 3)
	p.RelatedPeriodID = next.ID
	_, err := svc.details.Update(engineerCtx(), detail.ID, p)
	assert.ErrorIs(t, err, service.ErrInconsistentSelection)
}

func TestMeasurementDetailService_DeletePending(t *testing.T) {
	db := dbutil.SetupTestDB(t)
	svc := newServices(db, defaultWorkflow())
	f := dbutil.CreateFixture(t, db, "engineer-1")
	detail := dbutil.CreateTestDetail(t, db, f.Period, f.Cost, 3, domain.MeasurementStatusPending)

	require.NoError(t, svc.details.Delete(engineerCtx(), detail.ID))
	_, err := svc.details.GetByID(engineerCtx(), detail.ID)
	assert.ErrorIs(t, err, service.ErrMeasurementDetailNotFound)
}

func TestMeasurementDetailService_ReviewOnlyFromPending(t *testing.T) {
	db := dbutil.SetupTestDB(t)
	svc := newServices(db, defaultWorkflow())
	f := dbutil.CreateFixture(t, db, "engineer-1", "reviewer-1")
	detail := dbutil.CreateTestDetail(t, db, f.Period, f.Cost, 3, domain.MeasurementStatusPending)

	dto, err := svc.details.Review(reviewerCtx(), detail.ID, &domain.ReviewMeasurementDetailRequest{ID: detail.ID, IsPass: true, Comment: "ok"})
	require.NoError(t, err)
	assert.Equal(t, domain.MeasurementStatusApproved, dto.MeasurementStatus)
	assert.Equal(t, "ok", dto.MeasurementComment)
	assert.Equal(t, "User reviewer-1", dto.ReviewedByName)
	assert.NotEmpty(t, dto.ReviewedAt)

	_, err = svc.details.Review(reviewerCtx(), detail.ID, &domain.ReviewMeasurementDetailRequest{ID: detail.ID, IsPass: false})
	assert.ErrorIs(t, err, service.ErrMeasurementDetailAlreadyReviewed)

	got, err := svc.details.GetByID(reviewerCtx(), detail.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MeasurementStatusApproved, got.MeasurementStatus)

	reviews, err := svc.details.ListReviews(reviewerCtx(), detail.ID)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, domain.ReviewDecisionApprove, reviews[0].Decision)
	assert.Equal(t, domain.MeasurementStatusPending, reviews[0].FromStatus)
	assert.Equal(t, domain.MeasurementStatusApproved, reviews[0].ToStatus)

	assert.Equal(t, 1.0, testutil.ToFloat64(svc.metrics.DetailReviews.WithLabelValues("approve")))
	assert.Equal(t, 1.0, testutil.ToFloat64(svc.metrics.WorkflowRejections.WithLabelValues("already_reviewed")))
}

func TestMeasurementDetailService_ReviewOverwritePolicy(t *testing.T) {
	db := dbutil.SetupTestDB(t)
	svc := newServices(db, config.WorkflowConfig{ReReviewPolicy: config.ReReviewPolicyOverwrite})
	f := dbutil.CreateFixture(t, db, "engineer-1", "reviewer-1")
	detail := dbutil.CreateTestDetail(t, db, f.Period, f.Cost, 3, domain.MeasurementStatusPending)

	_, err := svc.details.Review(reviewerCtx(), detail.ID, &domain.ReviewMeasurementDetailRequest{ID: detail.ID, IsPass: true})
	require.NoError(t, err)

	// overwrite corrects decisions but never reopens an approved detail for editing
	p := payloadFor(f, f.Cost, 10)
	p.ID = detail.ID
	_, err = svc.details.Update(engineerCtx(), detail.ID, p)
	assert.ErrorIs(t, err, service.ErrMeasurementDetailApproved)

	dto, err := svc.details.Review(reviewerCtx(), detail.ID, &domain.ReviewMeasurementDetailRequest{ID: detail.ID, IsPass: false, Comment: "recount"})
	require.NoError(t, err)
	assert.Equal(t, domain.MeasurementStatusRejected, dto.MeasurementStatus)

	// identical decision is a no-op and writes no history
	_, err = svc.details.Review(reviewerCtx(), detail.ID, &domain.ReviewMeasurementDetailRequest{ID: detail.ID, IsPass: false})
	require.NoError(t, err)

	reviews, err := svc.details.ListReviews(reviewerCtx(), detail.ID)
	require.NoError(t, err)
	assert.Len(t, reviews, 2)
}

func TestMeasurementDetailService_ReviewRequiresReviewer(t *testing.T) {
	db := dbutil.SetupTestDB(t)
	svc := newServices(db, defaultWorkflow())
	f := dbutil.CreateFixture(t, db, "engineer-1")
	detail := dbutil.CreateTestDetail(t, db, f.Period, f.Cost, 3, domain.MeasurementStatusPending)

	_, err := svc.details.Review(engineerCtx(), detail.ID, &domain.ReviewMeasurementDetailRequest{ID: detail.ID, IsPass: true})
	assert.ErrorIs(t, err, service.ErrPermissionDenied)

	dto, err := svc.details.Review(adminCtx(), detail.ID, &domain.ReviewMeasurementDetailRequest{ID: detail.ID, IsPass: false})
	require.NoError(t, err)
	assert.Equal(t, domain.MeasurementStatusRejected, dto.MeasurementStatus)
}

func TestMeasurementDetailService_ListCumulativeTotals(t *testing.T) {
	db := dbutil.SetupTestDB(t)
	svc := newServices(db, defaultWorkflow())
	f := dbutil.CreateFixture(t, db, "engineer-1")
	feb := dbutil.CreateTestPeriod(t, db, f.Project.ID, f.Contract.ID, "2024-02", dbutil.Date(2024, 2, 1), dbutil.Date(2024, 2, 29))

	dbutil.CreateTestDetail(t, db, f.Period, f.Material, 100, domain.MeasurementStatusApproved)
	dbutil.CreateTestDetail(t, db, feb, f.Material, 50, domain.MeasurementStatusPending)
	dbutil.CreateTestDetail(t, db, feb, f.Material, 30, domain.MeasurementStatusRejected)
	dbutil.CreateTestDetail(t, db, feb, f.Cost, 2, domain.MeasurementStatusPending)

	list, err := svc.details.List(engineerCtx(), &repository.MeasurementDetailFilters{
		ProjectID:  f.Project.ID,
		ContractID: f.Contract.ID,
		PeriodID:   feb.ID,
		ItemType:   domain.MeasurementItemTypeMaterial,
	})
	require.NoError(t, err)
	require.Len(t, list, 2)

	for _, d := range list {
		assert.Equal(t, domain.MeasurementItemTypeMaterial, d.ItemType)
		if d.MeasurementStatus == domain.MeasurementStatusPending {
			assert.True(t, d.TotalCount.Equal(decimal.NewFromInt(150)), d.TotalCount.String())
			assert.True(t, d.RemainingCount.Equal(decimal.NewFromInt(250)))
		}
	}

	jan, err := svc.details.List(engineerCtx(), &repository.MeasurementDetailFilters{
		ProjectID: f.Project.ID, ContractID: f.Contract.ID, PeriodID: f.Period.ID, ItemID: f.Material.ID,
	})
	require.NoError(t, err)
	require.Len(t, jan, 1)
	assert.True(t, jan[0].TotalCount.Equal(decimal.NewFromInt(100)))
}

func TestMeasurementDetailService_ListRequiresProject(t *testing.T) {
	db := dbutil.SetupTestDB(t)
	svc := newServices(db, defaultWorkflow())

	_, err := svc.details.List(engineerCtx(), &repository.MeasurementDetailFilters{})
	assert.ErrorIs(t, err, service.ErrInvalidInput)
}
