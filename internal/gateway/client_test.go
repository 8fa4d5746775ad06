package gateway_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/straye-as/measure-api/internal/config"
	"github.com/straye-as/measure-api/internal/domain"
	"github.com/straye-as/measure-api/internal/gateway"
	"github.com/straye-as/measure-api/internal/measurement"
	"github.com/straye-as/measure-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newClient(t *testing.T, api *testutil.TestAPI, userID string, roles ...domain.UserRoleType) *gateway.HTTPClient {
	t.Helper()
	c, err := gateway.NewHTTPClient(gateway.Config{
		BaseURL: api.Server.URL,
		Token:   testutil.Token(t, userID, roles...),
	}, zap.NewNop())
	require.NoError(t, err)
	return c
}

func defaultWorkflow() config.WorkflowConfig {
	return config.WorkflowConfig{ReReviewPolicy: config.ReReviewPolicyReject}
}

func dec(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

// collect records notifications
type collect struct{ errs []string }

func (c *collect) Notify(level measurement.Level, message string) {
	if level == measurement.LevelError {
		c.errs = append(c.errs, message)
	}
}

func TestNewHTTPClient_Validation(t *testing.T) {
	_, err := gateway.NewHTTPClient(gateway.Config{BaseURL: "not a url", APIKey: "k"}, zap.NewNop())
	assert.Error(t, err)

	_, err = gateway.NewHTTPClient(gateway.Config{BaseURL: "http://localhost:8080"}, zap.NewNop())
	assert.Error(t, err)

	_, err = gateway.NewHTTPClient(gateway.Config{BaseURL: "http://localhost:8080/", APIKey: "k"}, zap.NewNop())
	assert.NoError(t, err)
}

func TestHTTPClient_ControllerEndToEnd(t *testing.T) {
	api := testutil.NewTestAPI(t, defaultWorkflow())
	fx := testutil.CreateFixture(t, api.DB, "engineer-1", "reviewer-1")
	ctx := context.Background()

	notes := &collect{}
	engineer := measurement.NewController(newClient(t, api, "engineer-1", domain.RoleEngineer), notes,
		measurement.Session{UserID: "engineer-1", Role: domain.RoleEngineer}, measurement.Options{})

	require.NoError(t, engineer.LoadProjects(ctx, "engineer-1"))
	snap := engineer.Snapshot()
	require.Equal(t, fx.Project.ID, snap.SelectedProjectID)
	require.Equal(t, fx.Contract.ID, snap.SelectedContractID)
	require.Equal(t, fx.Period.ID, snap.SelectedPeriodID)

	leaf, ok := snap.ItemTree.Find(fx.Material.ID)
	require.True(t, ok)
	require.NoError(t, engineer.OnItemSelect(ctx, leaf))

	flow := measurement.NewWorkflow(engineer)
	flow.New()
	created, err := flow.AddOrUpdate(ctx, measurement.DetailValues{CurrentCount: dec(50)})
	require.NoError(t, err)
	assert.True(t, created.Amount.Equal(decimal.NewFromInt(6025)), created.Amount.String())

	details := engineer.Snapshot().Details
	require.Len(t, details, 1)
	assert.Equal(t, created.ID, details[0].ID)
	assert.Equal(t, domain.MeasurementStatusPending, details[0].MeasurementStatus)

	// reviewer approves through their own controller
	reviewer := measurement.NewController(newClient(t, api, "reviewer-1", domain.RoleReviewer), notes,
		measurement.Session{UserID: "reviewer-1", Role: domain.RoleReviewer}, measurement.Options{})
	require.NoError(t, reviewer.LoadProjects(ctx, "reviewer-1"))
	reviewed, err := measurement.NewWorkflow(reviewer).Review(ctx, created.ID, domain.ReviewDecisionApprove, "ok")
	require.NoError(t, err)
	assert.Equal(t, domain.MeasurementStatusApproved, reviewed.MeasurementStatus)

	// the engineer's refreshed list now refuses edits and deletes locally
	_, err = engineer.FetchMeasurementDetailList(ctx, nil)
	require.NoError(t, err)
	approved := engineer.Snapshot().Details[0]
	assert.ErrorIs(t, flow.Edit(approved), measurement.ErrDetailApproved)
	assert.ErrorIs(t, flow.Delete(ctx, approved.ID), measurement.ErrDetailApproved)

	// status filter
	pending := domain.MeasurementStatusPending
	none, err := engineer.FetchMeasurementDetailList(ctx, &measurement.DetailFilter{Status: &pending})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestHTTPClient_ServerMessagesReachTheUser(t *testing.T) {
	api := testutil.NewTestAPI(t, defaultWorkflow())
	fx := testutil.CreateFixture(t, api.DB, "engineer-1", "reviewer-1")
	require.NoError(t, api.DB.Model(fx.Period).Update("is_archived", true).Error)
	ctx := context.Background()

	notes := &collect{}
	ctrl := measurement.NewController(newClient(t, api, "engineer-1", domain.RoleEngineer), notes,
		measurement.Session{UserID: "engineer-1", Role: domain.RoleEngineer}, measurement.Options{})
	require.NoError(t, ctrl.LoadProjects(ctx, "engineer-1"))
	require.Equal(t, fx.Period.ID, ctrl.Snapshot().SelectedPeriodID)

	flow := measurement.NewWorkflow(ctrl)
	flow.New()
	_, err := flow.AddOrUpdate(ctx, measurement.DetailValues{MeasurementItemID: fx.Material.ID, CurrentCount: dec(5)})
	require.ErrorIs(t, err, measurement.ErrRemote)

	var apiErr *gateway.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, []string{"period is archived: 2024-01"}, notes.errs)
	assert.True(t, flow.FormOpen())
}

func TestHTTPClient_HideArchivedPeriods(t *testing.T) {
	api := testutil.NewTestAPI(t, defaultWorkflow())
	fx := testutil.CreateFixture(t, api.DB, "engineer-1")
	open := testutil.CreateTestPeriod(t, api.DB, fx.Project.ID, fx.Contract.ID, "2023-12", testutil.Date(2023, 12, 1), testutil.Date(2023, 12, 31))
	require.NoError(t, api.DB.Model(fx.Period).Update("is_archived", true).Error)
	ctx := context.Background()

	ctrl := measurement.NewController(newClient(t, api, "engineer-1", domain.RoleEngineer), nil,
		measurement.Session{UserID: "engineer-1", Role: domain.RoleEngineer},
		measurement.Options{HideArchivedPeriods: true})
	require.NoError(t, ctrl.LoadProjects(ctx, "engineer-1"))

	snap := ctrl.Snapshot()
	require.Len(t, snap.Periods, 1)
	assert.Equal(t, open.ID, snap.SelectedPeriodID)
}

func TestHTTPClient_APIKeyScopesProjects(t *testing.T) {
	api := testutil.NewTestAPI(t, defaultWorkflow())
	testutil.CreateTestProject(t, api.DB, "Visible", "engineer-1")
	testutil.CreateTestProject(t, api.DB, "Hidden", "someone-else")

	c, err := gateway.NewHTTPClient(gateway.Config{BaseURL: api.Server.URL, APIKey: testutil.APIKey}, zap.NewNop())
	require.NoError(t, err)

	projects, err := c.QueryProjects(context.Background(), "engineer-1")
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "Visible", projects[0].Name)

	all, err := c.QueryProjects(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestHTTPClient_ErrorBodies(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		contentType string
		body        string
		want        string
	}{
		{"problem", http.StatusConflict, "application/json", `{"type":"conflict","title":"Conflict","status":409,"detail":"period is archived: 2024-01"}`, "period is archived: 2024-01"},
		{"rate limit", http.StatusTooManyRequests, "application/json", `{"error":"rate_limit_exceeded","message":"Too many requests, please try again later","code":429}`, "Too many requests, please try again later"},
		{"plain text", http.StatusUnauthorized, "text/plain", "Unauthorized: token is expired\n", "Unauthorized: token is expired"},
		{"empty", http.StatusBadGateway, "text/plain", "", "Bad Gateway"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "key", r.Header.Get("x-api-key"))
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c, err := gateway.NewHTTPClient(gateway.Config{BaseURL: srv.URL, APIKey: "key"}, zap.NewNop())
			require.NoError(t, err)

			err = c.DeleteMeasurementDetail(context.Background(), 1)
			var apiErr *gateway.APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.want, apiErr.Error())
		})
	}
}

func TestHTTPClient_EncodesDetailQuery(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[],"total":0}`))
	}))
	defer srv.Close()

	c, err := gateway.NewHTTPClient(gateway.Config{BaseURL: srv.URL, Token: "t"}, zap.NewNop())
	require.NoError(t, err)

	rejected := domain.MeasurementStatusRejected
	details, err := c.QueryMeasurementDetails(context.Background(), measurement.DetailQuery{
		ProjectID:  1,
		ContractID: 10,
		PeriodID:   100,
		ItemType:   domain.MeasurementItemTypeCost,
		Filter:     &measurement.DetailFilter{Status: &rejected},
	})
	require.NoError(t, err)
	assert.Empty(t, details)
	assert.Equal(t, "contractId=10&periodId=100&projectId=1&status=2&type=cost", got)
}
