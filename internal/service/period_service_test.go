package service_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/straye-as/measure-api/internal/domain"
	"github.com/straye-as/measure-api/internal/repository"
	"github.com/straye-as/measure-api/internal/service"
	dbutil "github.com/straye-as/measure-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeriodService_CreateValidatesChainAndDates(t *testing.T) {
	db := dbutil.SetupTestDB(t)
	svc := newServices(db, defaultWorkflow())
	f := dbutil.CreateFixture(t, db, "engineer-1")
	otherProject := dbutil.CreateTestProject(t, db, "Other", "engineer-1")

	_, err := svc.periods.Create(engineerCtx(), &domain.CreatePeriodRequest{
		RelatedProjectID:  otherProject.ID,
		RelatedContractID: f.Contract.ID,
		Name:              "2024-02",
		StartDate:         "2024-02-01",
		EndDate:           "2024-02-29",
	})
	assert.ErrorIs(t, err, service.ErrInconsistentSelection)

	_, err = svc.periods.Create(engineerCtx(), &domain.CreatePeriodRequest{
		RelatedProjectID:  f.Project.ID,
		RelatedContractID: f.Contract.ID,
		Name:              "backwards",
		StartDate:         "2024-02-29",
		EndDate:           "2024-02-01",
	})
	assert.ErrorIs(t, err, service.ErrInvalidDateRange)

	created, err := svc.periods.Create(engineerCtx(), &domain.CreatePeriodRequest{
		RelatedProjectID:  f.Project.ID,
		RelatedContractID: f.Contract.ID,
		Name:              "2024-02",
		StartDate:         "2024-02-01",
		EndDate:           "2024-02-29",
	})
	require.NoError(t, err)
	assert.Equal(t, "2024-02-01", created.StartDate)
	assert.False(t, created.IsArchived)

	list, err := svc.periods.List(engineerCtx(), &repository.PeriodFilters{ProjectID: f.Project.ID, ContractID: f.Contract.ID})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "2024-02", list[0].Name)
}

func TestPeriodService_ArchiveIsIdempotent(t *testing.T) {
	db := dbutil.SetupTestDB(t)
	svc := newServices(db, defaultWorkflow())
	f := dbutil.CreateFixture(t, db, "engineer-1")

	first, err := svc.periods.Archive(engineerCtx(), f.Period.ID)
	require.NoError(t, err)
	assert.True(t, first.IsArchived)
	assert.NotEmpty(t, first.ArchivedAt)

	second, err := svc.periods.Archive(engineerCtx(), f.Period.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ArchivedAt, second.ArchivedAt)
	assert.Equal(t, 1.0, testutil.ToFloat64(svc.metrics.PeriodsArchived))

	archived := true
	list, err := svc.periods.List(engineerCtx(), &repository.PeriodFilters{ProjectID: f.Project.ID, Archived: &archived})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestPeriodService_ArchiveEndedBefore(t *testing.T) {
	db := dbutil.SetupTestDB(t)
	svc := newServices(db, defaultWorkflow())
	f := dbutil.CreateFixture(t, db, "engineer-1")
	dbutil.CreateTestPeriod(t, db, f.Project.ID, f.Contract.ID, "2024-03", dbutil.Date(2024, 3, 1), dbutil.Date(2024, 3, 31))

	n, err := svc.periods.ArchiveEndedBefore(t.Context(), time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = svc.periods.ArchiveEndedBefore(t.Context(), time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := svc.periods.GetByID(engineerCtx(), f.Period.ID)
	require.NoError(t, err)
	assert.True(t, got.IsArchived)
}

func TestPeriodService_DeleteWithDetails(t *testing.T) {
	db := dbutil.SetupTestDB(t)
	svc := newServices(db, defaultWorkflow())
	f := dbutil.CreateFixture(t, db, "engineer-1")
	dbutil.CreateTestDetail(t, db, f.Period, f.Cost, 1, domain.MeasurementStatusPending)

	err := svc.periods.Delete(engineerCtx(), f.Period.ID)
	assert.ErrorIs(t, err, service.ErrHasDependents)
}
