package testutil

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/straye-as/measure-api/internal/auth"
	"github.com/straye-as/measure-api/internal/config"
	"github.com/straye-as/measure-api/internal/domain"
	"github.com/straye-as/measure-api/internal/events"
	"github.com/straye-as/measure-api/internal/http/handler"
	"github.com/straye-as/measure-api/internal/http/middleware"
	"github.com/straye-as/measure-api/internal/http/router"
	"github.com/straye-as/measure-api/internal/metrics"
	"github.com/straye-as/measure-api/internal/repository"
	"github.com/straye-as/measure-api/internal/service"
	"github.com/straye-as/measure-api/internal/storage"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	// APIKey is accepted by servers started with NewTestAPI
	APIKey = "test-api-key"
	// SigningSecret signs HS256 tokens for servers started with NewTestAPI
	SigningSecret = "test-signing-secret"
)

// TestAPI is a fully wired API server backed by an in-memory database
type TestAPI struct {
	Server  *httptest.Server
	DB      *gorm.DB
	Config  *config.Config
	Metrics *metrics.Metrics
}

// TestConfig returns a configuration suitable for in-process servers
func TestConfig(t *testing.T, workflow config.WorkflowConfig) *config.Config {
	t.Helper()
	return &config.Config{
		App:     config.AppConfig{Name: "measure-api", Environment: "test"},
		AzureAd: config.AzureAdConfig{SigningSecret: SigningSecret},
		ApiKey:  config.ApiKeyConfig{Value: APIKey},
		Storage: config.StorageConfig{Mode: "local", LocalBasePath: t.TempDir(), MaxUploadSizeMB: 1},
		Server:  config.ServerConfig{EnableMetrics: true},
		Security: config.SecurityConfig{
			ContentTypeNosniff: true,
			FrameOptions:       "DENY",
		},
		Workflow: workflow,
	}
}

// NewTestAPI starts an httptest server running the full router
func NewTestAPI(t *testing.T, workflow config.WorkflowConfig) *TestAPI {
	t.Helper()

	cfg := TestConfig(t, workflow)
	db := SetupTestDB(t)
	log := zap.NewNop()
	m := metrics.New()

	store, err := storage.NewLocalStorage(cfg.Storage.LocalBasePath, log)
	require.NoError(t, err)

	projectRepo := repository.NewProjectRepository(db)
	contractRepo := repository.NewContractRepository(db)
	itemRepo := repository.NewMeasurementItemRepository(db)
	periodRepo := repository.NewPeriodRepository(db)
	detailRepo := repository.NewMeasurementDetailRepository(db)
	reviewRepo := repository.NewMeasurementReviewRepository(db)

	projectService := service.NewProjectService(projectRepo, log)
	contractService := service.NewContractService(contractRepo, projectRepo, detailRepo, nil, log)
	itemService := service.NewMeasurementItemService(itemRepo, contractRepo, projectRepo, log)
	periodService := service.NewPeriodService(periodRepo, contractRepo, projectRepo, m, log)
	detailService := service.NewMeasurementDetailService(detailRepo, reviewRepo, periodRepo, itemRepo,
		contractRepo, projectRepo, events.NopPublisher{}, m, cfg.Workflow, log)

	rt := router.NewRouter(
		cfg,
		log,
		db,
		nil,
		m,
		auth.NewMiddleware(cfg, log),
		middleware.NewRateLimiter(&cfg.RateLimit, log),
		middleware.NewAuditMiddleware(nil, log),
		router.Handlers{
			Project:           handler.NewProjectHandler(projectService, log),
			Contract:          handler.NewContractHandler(contractService, itemService, log),
			MeasurementItem:   handler.NewMeasurementItemHandler(itemService, log),
			Period:            handler.NewPeriodHandler(periodService, log),
			MeasurementDetail: handler.NewMeasurementDetailHandler(detailService, log),
			Attachment:        handler.NewAttachmentHandler(store, cfg.Storage.MaxUploadSizeMB, log),
		},
	)

	srv := httptest.NewServer(rt.Setup())
	t.Cleanup(srv.Close)

	return &TestAPI{Server: srv, DB: db, Config: cfg, Metrics: m}
}

// Token signs an HS256 bearer token for the user
func Token(t *testing.T, userID string, roles ...domain.UserRoleType) string {
	t.Helper()
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   userID,
		"name":  "User " + userID,
		"roles": names,
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(SigningSecret))
	require.NoError(t, err)
	return signed
}
