package measurement

import (
	"context"
	"errors"
	"testing"

	"github.com/straye-as/measure-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func engineer() Session { return Session{UserID: "u1", Role: domain.RoleEngineer} }

func newTestController(t *testing.T, opts Options) (*Controller, *fakeGateway, *recorder) {
	t.Helper()
	gw := newFakeGateway()
	rec := &recorder{}
	return NewController(gw, rec, engineer(), opts), gw, rec
}

func TestLoadProjects_SelectsFirstAndCascades(t *testing.T) {
	c, gw, _ := newTestController(t, Options{})
	ctx := context.Background()

	require.NoError(t, c.LoadProjects(ctx, "u1"))

	s := c.Snapshot()
	assert.Equal(t, int64(1), s.SelectedProjectID)
	assert.Equal(t, int64(10), s.SelectedContractID)
	assert.Equal(t, int64(100), s.SelectedPeriodID)
	assert.True(t, s.SelectedItem.IsEmpty())
	assert.Len(t, s.Projects, 2)
	assert.Len(t, s.Contracts, 2)
	assert.Len(t, s.Periods, 2)

	require.Len(t, s.ItemTree.Cost.Children, 2)
	assert.Equal(t, int64(3), s.ItemTree.Cost.Children[0].ItemID, "ordered by sort order")
	require.Len(t, s.ItemTree.Material.Children, 1)

	require.Len(t, gw.detailQueries, 1)
	assert.Equal(t, DetailQuery{ProjectID: 1, ContractID: 10, PeriodID: 100}, gw.detailQueries[0])

	// same data, same default
	require.NoError(t, c.LoadProjects(ctx, "u1"))
	assert.Equal(t, int64(1), c.Snapshot().SelectedProjectID)
}

func TestLoadProjects_EmptyLeavesEverythingEmpty(t *testing.T) {
	c, gw, rec := newTestController(t, Options{})
	ctx := context.Background()
	require.NoError(t, c.LoadProjects(ctx, "u1"))

	gw.projects = nil
	require.NoError(t, c.LoadProjects(ctx, "u1"))

	s := c.Snapshot()
	assert.Zero(t, s.SelectedProjectID)
	assert.Zero(t, s.SelectedContractID)
	assert.Zero(t, s.SelectedPeriodID)
	assert.Empty(t, s.Projects)
	assert.Empty(t, s.Contracts)
	assert.Empty(t, s.Periods)
	assert.Empty(t, s.Details)
	assert.True(t, s.ItemTree.IsEmpty())
	assert.Equal(t, 1, gw.count("QueryContracts"))
	assert.Empty(t, rec.errorMessages())
}

func TestLoadProjects_FailureNotifiesVerbatim(t *testing.T) {
	c, gw, rec := newTestController(t, Options{})
	gw.errs["QueryProjects"] = errors.New("Projects service is down for maintenance")

	err := c.LoadProjects(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrRemote)

	assert.Equal(t, []string{"Projects service is down for maintenance"}, rec.errorMessages())
	s := c.Snapshot()
	assert.Zero(t, s.SelectedProjectID)
	assert.Empty(t, s.Projects)
	assert.Empty(t, s.Contracts)
	assert.Zero(t, gw.count("QueryContracts"))
}

func TestOnProjectChange_ResetsBeforeFetchResolves(t *testing.T) {
	c, gw, _ := newTestController(t, Options{})
	ctx := context.Background()
	require.NoError(t, c.LoadProjects(ctx, "u1"))

	started := make(chan struct{})
	release := make(chan struct{})
	gw.setHook(func(method string, id int64) {
		if method == "QueryContracts" && id == 2 {
			close(started)
			<-release
		}
	})

	done := make(chan error)
	go func() { done <- c.OnProjectChange(ctx, 2) }()
	<-started

	s := c.Snapshot()
	assert.Equal(t, int64(2), s.SelectedProjectID)
	assert.Zero(t, s.SelectedContractID)
	assert.Zero(t, s.SelectedPeriodID)
	assert.True(t, s.SelectedItem.IsEmpty())
	assert.Empty(t, s.Contracts)
	assert.Empty(t, s.Periods)
	assert.Empty(t, s.Details)
	assert.True(t, s.ItemTree.IsEmpty())

	close(release)
	require.NoError(t, <-done)

	s = c.Snapshot()
	assert.Equal(t, int64(20), s.SelectedContractID)
	assert.Equal(t, int64(200), s.SelectedPeriodID)
}

func TestFetchMeasurementDetailList_RequiresFullSelection(t *testing.T) {
	c, gw, rec := newTestController(t, Options{})
	ctx := context.Background()

	details, err := c.FetchMeasurementDetailList(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, details)

	// contract 11 has no periods
	require.NoError(t, c.LoadProjects(ctx, "u1"))
	before := gw.count("QueryMeasurementDetails")
	require.NoError(t, c.OnContractChange(ctx, 11))

	details, err = c.FetchMeasurementDetailList(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, details)
	assert.Equal(t, before, gw.count("QueryMeasurementDetails"))
	assert.Empty(t, rec.errorMessages())
}

func TestOnItemSelect_LeafQueriesByItem(t *testing.T) {
	c, gw, _ := newTestController(t, Options{})
	ctx := context.Background()
	require.NoError(t, c.LoadProjects(ctx, "u1"))

	leaf, ok := c.Snapshot().ItemTree.Find(5)
	require.True(t, ok)
	require.NoError(t, c.OnItemSelect(ctx, leaf))

	sel := c.Snapshot().SelectedItem
	assert.True(t, sel.IsLeaf())
	assert.Equal(t, int64(5), sel.ID)
	assert.Equal(t, domain.MeasurementItemTypeMaterial, sel.Type)
	require.NotNil(t, sel.Item)
	assert.Equal(t, "Concrete C35", sel.Item.Name)

	last := gw.detailQueries[len(gw.detailQueries)-1]
	assert.Equal(t, DetailQuery{
		ProjectID:  1,
		ContractID: 10,
		PeriodID:   100,
		ItemID:     5,
		ItemType:   domain.MeasurementItemTypeMaterial,
	}, last)
}

func TestOnItemSelect_CategorySelectsWholeType(t *testing.T) {
	c, gw, _ := newTestController(t, Options{})
	ctx := context.Background()
	require.NoError(t, c.LoadProjects(ctx, "u1"))

	require.NoError(t, c.OnItemSelect(ctx, c.Snapshot().ItemTree.Root(domain.MeasurementItemTypeCost)))

	sel := c.Snapshot().SelectedItem
	assert.False(t, sel.IsLeaf())
	assert.Nil(t, sel.Item)
	assert.Equal(t, domain.MeasurementItemTypeCost, sel.Type)

	last := gw.detailQueries[len(gw.detailQueries)-1]
	assert.Zero(t, last.ItemID)
	assert.Equal(t, domain.MeasurementItemTypeCost, last.ItemType)
}

func TestItemSelectionSurvivesPeriodChange(t *testing.T) {
	c, gw, _ := newTestController(t, Options{})
	ctx := context.Background()
	require.NoError(t, c.LoadProjects(ctx, "u1"))

	leaf, _ := c.Snapshot().ItemTree.Find(5)
	require.NoError(t, c.OnItemSelect(ctx, leaf))
	require.NoError(t, c.OnPeriodChange(ctx, 101))

	last := gw.detailQueries[len(gw.detailQueries)-1]
	assert.Equal(t, int64(101), last.PeriodID)
	assert.Equal(t, int64(5), last.ItemID)

	require.NoError(t, c.OnContractChange(ctx, 10))
	assert.True(t, c.Snapshot().SelectedItem.IsEmpty())
}

func TestStaleContractResponseIsDropped(t *testing.T) {
	c, gw, _ := newTestController(t, Options{})
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	gw.setHook(func(method string, id int64) {
		if method == "QueryContracts" && id == 1 {
			close(started)
			<-release
		}
	})

	done := make(chan error)
	go func() { done <- c.OnProjectChange(ctx, 1) }()
	<-started

	require.NoError(t, c.OnProjectChange(ctx, 2))
	close(release)
	require.NoError(t, <-done)

	s := c.Snapshot()
	assert.Equal(t, int64(2), s.SelectedProjectID)
	require.Len(t, s.Contracts, 1)
	assert.Equal(t, int64(20), s.Contracts[0].ID)
	assert.Equal(t, int64(20), s.SelectedContractID)
	assert.Equal(t, int64(200), s.SelectedPeriodID)
}

func TestLateProjectListKeepsNewerSelection(t *testing.T) {
	c, gw, _ := newTestController(t, Options{})
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	gw.setHook(func(method string, id int64) {
		if method == "QueryProjects" {
			close(started)
			<-release
		}
	})

	done := make(chan error)
	go func() { done <- c.LoadProjects(ctx, "u1") }()
	<-started

	require.NoError(t, c.OnProjectChange(ctx, 2))
	close(release)
	require.NoError(t, <-done)

	s := c.Snapshot()
	assert.Len(t, s.Projects, 2)
	assert.Equal(t, int64(2), s.SelectedProjectID)
	assert.Equal(t, int64(20), s.SelectedContractID)
	assert.Equal(t, int64(200), s.SelectedPeriodID)
}

func TestLatePeriodListKeepsNewerSelection(t *testing.T) {
	c, gw, _ := newTestController(t, Options{})
	ctx := context.Background()
	require.NoError(t, c.LoadProjects(ctx, "u1"))

	started := make(chan struct{})
	release := make(chan struct{})
	gw.setHook(func(method string, id int64) {
		if method == "QueryPeriods" && id == 10 {
			close(started)
			<-release
		}
	})

	done := make(chan error)
	go func() { done <- c.LoadPeriods(ctx, 1, 10, nil) }()
	<-started

	gw.setHook(nil)
	require.NoError(t, c.OnPeriodChange(ctx, 101))
	close(release)
	require.NoError(t, <-done)

	s := c.Snapshot()
	assert.Len(t, s.Periods, 2)
	assert.Equal(t, int64(101), s.SelectedPeriodID)
}

func TestStaleDetailResponseIsDropped(t *testing.T) {
	c, gw, _ := newTestController(t, Options{})
	ctx := context.Background()
	require.NoError(t, c.LoadProjects(ctx, "u1"))
	gw.addDetail(domain.MeasurementDetailDTO{ID: 1, RelatedPeriodID: 100, RelatedMeasurementItemID: 5})
	gw.addDetail(domain.MeasurementDetailDTO{ID: 2, RelatedPeriodID: 101, RelatedMeasurementItemID: 5})

	started := make(chan struct{})
	release := make(chan struct{})
	gw.setHook(func(method string, id int64) {
		if method == "QueryMeasurementDetails" && id == 100 {
			close(started)
			<-release
		}
	})

	done := make(chan error)
	go func() {
		_, err := c.FetchMeasurementDetailList(ctx, nil)
		done <- err
	}()
	<-started

	require.NoError(t, c.OnPeriodChange(ctx, 101))
	close(release)
	require.NoError(t, <-done)

	s := c.Snapshot()
	assert.Equal(t, int64(101), s.SelectedPeriodID)
	require.Len(t, s.Details, 1)
	assert.Equal(t, int64(2), s.Details[0].ID)
}

func TestContractFailureClearsDependents(t *testing.T) {
	c, gw, rec := newTestController(t, Options{})
	ctx := context.Background()
	require.NoError(t, c.LoadProjects(ctx, "u1"))

	gw.errs["QueryContracts"] = errors.New("no access to project 2")
	err := c.OnProjectChange(ctx, 2)
	assert.ErrorIs(t, err, ErrRemote)

	s := c.Snapshot()
	assert.Equal(t, int64(2), s.SelectedProjectID)
	assert.Empty(t, s.Contracts)
	assert.Empty(t, s.Periods)
	assert.Empty(t, s.Details)
	assert.Equal(t, []string{"no access to project 2"}, rec.errorMessages())
}

func TestDetailFailureClearsList(t *testing.T) {
	c, gw, rec := newTestController(t, Options{})
	ctx := context.Background()
	gw.addDetail(domain.MeasurementDetailDTO{ID: 1, RelatedPeriodID: 100})
	require.NoError(t, c.LoadProjects(ctx, "u1"))
	require.Len(t, c.Snapshot().Details, 1)

	gw.errs["QueryMeasurementDetails"] = errors.New("period 100 not found")
	details, err := c.FetchMeasurementDetailList(ctx, nil)
	assert.ErrorIs(t, err, ErrRemote)
	assert.Nil(t, details)
	assert.Empty(t, c.Snapshot().Details)
	assert.Equal(t, []string{"period 100 not found"}, rec.errorMessages())
}

func TestHideArchivedPeriods(t *testing.T) {
	c, gw, _ := newTestController(t, Options{HideArchivedPeriods: true})
	gw.periods[10][0].IsArchived = true

	require.NoError(t, c.LoadProjects(context.Background(), "u1"))
	s := c.Snapshot()
	require.Len(t, s.Periods, 1)
	assert.Equal(t, int64(101), s.SelectedPeriodID)
}

func TestBuildItemTree(t *testing.T) {
	tree := BuildItemTree(nil)
	assert.True(t, tree.IsEmpty())
	assert.Len(t, tree.Roots(), 2)

	tree = BuildItemTree(&newFakeGateway().contracts[1][0])
	assert.Equal(t, "Cost items", tree.Cost.Title())
	assert.Equal(t, "Material items", tree.Material.Title())
	leaf, ok := tree.Find(5)
	require.True(t, ok)
	assert.Equal(t, "Concrete C35 (m3)", leaf.Title())
	_, ok = tree.Find(99)
	assert.False(t, ok)
}
