package service_test

import (
	"context"

	"github.com/straye-as/measure-api/internal/auth"
	"github.com/straye-as/measure-api/internal/config"
	"github.com/straye-as/measure-api/internal/domain"
	"github.com/straye-as/measure-api/internal/metrics"
	"github.com/straye-as/measure-api/internal/repository"
	"github.com/straye-as/measure-api/internal/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type services struct {
	projects  *service.ProjectService
	contracts *service.ContractService
	items     *service.MeasurementItemService
	periods   *service.PeriodService
	details   *service.MeasurementDetailService
	metrics   *metrics.Metrics
}

func newServices(db *gorm.DB, workflow config.WorkflowConfig) *services {
	logger := zap.NewNop()
	projectRepo := repository.NewProjectRepository(db)
	contractRepo := repository.NewContractRepository(db)
	itemRepo := repository.NewMeasurementItemRepository(db)
	periodRepo := repository.NewPeriodRepository(db)
	detailRepo := repository.NewMeasurementDetailRepository(db)
	reviewRepo := repository.NewMeasurementReviewRepository(db)
	m := metrics.New()

	return &services{
		projects:  service.NewProjectService(projectRepo, logger),
		contracts: service.NewContractService(contractRepo, projectRepo, detailRepo, nil, logger),
		items:     service.NewMeasurementItemService(itemRepo, contractRepo, projectRepo, logger),
		periods:   service.NewPeriodService(periodRepo, contractRepo, projectRepo, m, logger),
		details: service.NewMeasurementDetailService(detailRepo, reviewRepo, periodRepo, itemRepo,
			contractRepo, projectRepo, nil, m, workflow, logger),
		metrics: m,
	}
}

func defaultWorkflow() config.WorkflowConfig {
	return config.WorkflowConfig{ReReviewPolicy: config.ReReviewPolicyReject}
}

func userCtx(userID string, roles ...domain.UserRoleType) context.Context {
	return auth.WithUserContext(context.Background(), &auth.UserContext{
		UserID:      userID,
		DisplayName: "User " + userID,
		Roles:       roles,
	})
}

func engineerCtx() context.Context { return userCtx("engineer-1", domain.RoleEngineer) }
func reviewerCtx() context.Context { return userCtx("reviewer-1", domain.RoleReviewer) }
func adminCtx() context.Context    { return userCtx("admin-1", domain.RoleAdmin) }
