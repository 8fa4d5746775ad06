package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/straye-as/measure-api/internal/secrets"
	"go.uber.org/zap"
)

// Config holds all application configuration
type Config struct {
	App           AppConfig
	Database      DatabaseConfig
	DataWarehouse DataWarehouseConfig
	AzureAd       AzureAdConfig
	ApiKey        ApiKeyConfig
	Storage       StorageConfig
	Secrets       SecretsConfig
	Logging       LoggingConfig
	Server        ServerConfig
	CORS          CORSConfig
	Security      SecurityConfig
	RateLimit     RateLimitConfig
	Events        EventsConfig
	Workflow      WorkflowConfig
	Jobs          JobsConfig
}

type AppConfig struct {
	Name        string
	Environment string
	Port        int
}

type DatabaseConfig struct {
	Host            string
	Port            int
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
	// AutoMigrate runs gorm AutoMigrate on startup (development only)
	AutoMigrate bool
}

// DataWarehouseConfig holds the optional, read-only ERP data warehouse connection
type DataWarehouseConfig struct {
	Enabled bool
	// URL is host:port/database
	URL             string
	User            string
	Password        string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // seconds
	QueryTimeout    int // seconds
}

// AzureAdConfig configures bearer token validation.
// With TenantId set, RS256 tokens are checked against the tenant JWKS.
// SigningSecret enables HS256 tokens issued by internal tooling.
type AzureAdConfig struct {
	TenantId       string
	ClientId       string
	InstanceUrl    string
	RequiredScopes string
	SigningSecret  string
}

type ApiKeyConfig struct {
	SecretName string
	Value      string
}

type StorageConfig struct {
	Mode                  string
	LocalBasePath         string
	CloudConnectionString string
	CloudContainer        string
	MaxUploadSizeMB       int64
}

type SecretsConfig struct {
	// Source is "environment", "vault", or "auto"
	Source       string
	KeyVaultName string
	CacheEnabled bool
	CacheTTL     int // seconds
}

type LoggingConfig struct {
	Level  string
	Format string
}

type ServerConfig struct {
	ReadTimeout    int
	WriteTimeout   int
	RequestTimeout int
	EnableSwagger  bool
	EnableMetrics  bool
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

// SecurityConfig holds security header configuration
type SecurityConfig struct {
	EnableHSTS            bool
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool
	ContentSecurityPolicy string
	FrameOptions          string
	ContentTypeNosniff    bool
	ReferrerPolicy        string
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled               bool
	RequestsPerMinute     int
	RequestsPerMinuteAuth int
	WhitelistIPs          []string
	WhitelistPaths        []string
}

// EventsConfig configures publishing of workflow events to NATS
type EventsConfig struct {
	Enabled       bool
	URL           string
	SubjectPrefix string
	Name          string
}

// WorkflowConfig holds the measurement review policies
type WorkflowConfig struct {
	// AllowArchivedPeriods permits new measurement details in archived periods
	AllowArchivedPeriods bool
	// ReReviewPolicy is "reject" (review only from pending) or "overwrite".
	// Overwrite lets a reviewer correct a decision, including moving an approved detail to
	// rejected. The detail's own fields stay immutable while it is approved.
	ReReviewPolicy string
}

// JobsConfig configures background jobs
type JobsConfig struct {
	Enabled                bool
	PeriodArchiveCron      string
	PeriodArchiveGraceDays int
	PeriodArchiveTimeout   int // seconds
}

const (
	ReReviewPolicyReject    = "reject"
	ReReviewPolicyOverwrite = "overwrite"
)

// ConnectionString builds PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

// ConnMaxLifetimeDuration returns connection max lifetime as duration
func (d *DatabaseConfig) ConnMaxLifetimeDuration() time.Duration {
	return time.Duration(d.ConnMaxLifetime) * time.Second
}

// ConnMaxLifetimeDuration returns connection max lifetime as duration
func (d *DataWarehouseConfig) ConnMaxLifetimeDuration() time.Duration {
	return time.Duration(d.ConnMaxLifetime) * time.Second
}

// QueryTimeoutDuration returns query timeout as duration
func (d *DataWarehouseConfig) QueryTimeoutDuration() time.Duration {
	return time.Duration(d.QueryTimeout) * time.Second
}

// ReadTimeoutDuration returns read timeout as duration
func (s *ServerConfig) ReadTimeoutDuration() time.Duration {
	return time.Duration(s.ReadTimeout) * time.Second
}

// WriteTimeoutDuration returns write timeout as duration
func (s *ServerConfig) WriteTimeoutDuration() time.Duration {
	return time.Duration(s.WriteTimeout) * time.Second
}

// RequestTimeoutDuration returns request timeout as duration
func (s *ServerConfig) RequestTimeoutDuration() time.Duration {
	return time.Duration(s.RequestTimeout) * time.Second
}

// PeriodArchiveTimeoutDuration returns the archive job timeout as duration
func (j *JobsConfig) PeriodArchiveTimeoutDuration() time.Duration {
	return time.Duration(j.PeriodArchiveTimeout) * time.Second
}

// OverwriteOnReReview reports whether an already reviewed detail may be reviewed again
func (w *WorkflowConfig) OverwriteOnReReview() bool {
	return strings.EqualFold(w.ReReviewPolicy, ReReviewPolicyOverwrite)
}

// Load loads configuration from file and environment variables.
// Secrets from Key Vault are resolved by LoadWithSecrets.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.ApiKey.Value == "" {
		cfg.ApiKey.Value = v.GetString("ADMIN_API_KEY")
	}
	if cfg.AzureAd.TenantId == "" {
		cfg.AzureAd.TenantId = v.GetString("AZURE_TENANT_ID")
	}
	if cfg.AzureAd.ClientId == "" {
		cfg.AzureAd.ClientId = v.GetString("AZURE_CLIENT_ID")
	}
	if cfg.AzureAd.SigningSecret == "" {
		cfg.AzureAd.SigningSecret = v.GetString("JWT_SIGNING_SECRET")
	}
	if cfg.Secrets.KeyVaultName == "" {
		cfg.Secrets.KeyVaultName = v.GetString("AZURE_KEY_VAULT_NAME")
	}
	if v.GetBool("DATAWAREHOUSE_ENABLED") {
		cfg.DataWarehouse.Enabled = true
	}
	if url := v.GetString("NATS_URL"); url != "" {
		cfg.Events.URL = url
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values that would otherwise fail late at runtime
func (c *Config) Validate() error {
	switch strings.ToLower(c.Workflow.ReReviewPolicy) {
	case ReReviewPolicyReject, ReReviewPolicyOverwrite:
	default:
		return fmt.Errorf("invalid workflow.reReviewPolicy %q (expected %q or %q)",
			c.Workflow.ReReviewPolicy, ReReviewPolicyReject, ReReviewPolicyOverwrite)
	}
	if c.Jobs.PeriodArchiveGraceDays < 0 {
		return fmt.Errorf("jobs.periodArchiveGraceDays must not be negative")
	}
	return nil
}

// LoadWithSecrets loads configuration and resolves secrets from Azure Key Vault when
// USE_AZURE_KEY_VAULT=true and the environment is staging or production.
// Data warehouse credentials always come from Key Vault when the warehouse is enabled.
func LoadWithSecrets(ctx context.Context, logger *zap.Logger) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	if cfg.DataWarehouse.Enabled && cfg.Secrets.KeyVaultName != "" {
		if err := loadDataWarehouseSecrets(ctx, cfg, logger); err != nil {
			// the warehouse is optional
			logger.Warn("Failed to load data warehouse secrets from Key Vault",
				zap.Error(err),
				zap.String("environment", cfg.App.Environment),
			)
		}
	}

	useKeyVault := strings.ToLower(os.Getenv("USE_AZURE_KEY_VAULT")) == "true"
	isVaultEnv := cfg.App.Environment == "staging" || cfg.App.Environment == "production"

	if !useKeyVault || !isVaultEnv {
		logger.Info("Using environment variables for secrets",
			zap.String("environment", cfg.App.Environment),
			zap.Bool("use_key_vault", useKeyVault),
		)
		return cfg, nil
	}

	if cfg.Secrets.KeyVaultName == "" {
		return nil, fmt.Errorf("AZURE_KEY_VAULT_NAME is required when USE_AZURE_KEY_VAULT=true")
	}

	provider, err := newVaultProvider(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize secrets provider: %w", err)
	}

	logger.Info("Loading secrets from Azure Key Vault",
		zap.String("key_vault_name", cfg.Secrets.KeyVaultName),
	)

	resolve := func(secretName, envName string, target *string) {
		if value, err := provider.GetSecretOrEnv(ctx, secretName, envName); err == nil && value != "" {
			*target = value
		}
	}

	resolve("POSTGRES-MAIN-HOST", "DATABASE_HOST", &cfg.Database.Host)
	resolve("POSTGRES-MAIN-USER", "DATABASE_USER", &cfg.Database.User)
	resolve("POSTGRES-MAIN-PASSWORD", "DATABASE_PASSWORD", &cfg.Database.Password)
	if name := os.Getenv("DEFAULT_DATABASE"); name != "" {
		cfg.Database.Name = name
	}
	if sslMode := os.Getenv("DATABASE_SSLMODE"); sslMode != "" {
		cfg.Database.SSLMode = sslMode
	}

	resolve("azure-tenant-id", "AZURE_TENANT_ID", &cfg.AzureAd.TenantId)
	resolve("azure-client-id", "AZURE_CLIENT_ID", &cfg.AzureAd.ClientId)
	resolve("jwt-signing-secret", "JWT_SIGNING_SECRET", &cfg.AzureAd.SigningSecret)
	resolve("admin-api-key", "ADMIN_API_KEY", &cfg.ApiKey.Value)
	resolve("storage-connection-string", "STORAGE_CLOUDCONNECTIONSTRING", &cfg.Storage.CloudConnectionString)
	resolve("nats-url", "NATS_URL", &cfg.Events.URL)

	logger.Info("Secrets loaded from vault successfully")
	return cfg, nil
}

func newVaultProvider(cfg *Config, logger *zap.Logger) (*secrets.Provider, error) {
	return secrets.NewProvider(&secrets.ProviderConfig{
		Source:       secrets.SourceVault,
		VaultName:    cfg.Secrets.KeyVaultName,
		Environment:  cfg.App.Environment,
		CacheEnabled: cfg.Secrets.CacheEnabled,
		CacheTTL:     time.Duration(cfg.Secrets.CacheTTL) * time.Second,
	}, logger)
}

// loadDataWarehouseSecrets reads warehouse credentials from Key Vault only
func loadDataWarehouseSecrets(ctx context.Context, cfg *Config, logger *zap.Logger) error {
	provider, err := newVaultProvider(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize vault client for data warehouse: %w", err)
	}

	for name, target := range map[string]*string{
		"WAREHOUSE-URL":      &cfg.DataWarehouse.URL,
		"WAREHOUSE-USERNAME": &cfg.DataWarehouse.User,
		"WAREHOUSE-PASSWORD": &cfg.DataWarehouse.Password,
	} {
		value, err := provider.GetSecret(ctx, name)
		if err != nil {
			return fmt.Errorf("failed to get %s from Key Vault: %w", name, err)
		}
		*target = value
	}

	logger.Info("Data warehouse credentials loaded from Key Vault")
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "Measure API")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.port", 8080)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "measure")
	v.SetDefault("database.user", "measure_user")
	v.SetDefault("database.password", "measure_password")
	v.SetDefault("database.sslMode", "disable")
	v.SetDefault("database.maxOpenConns", 25)
	v.SetDefault("database.maxIdleConns", 5)
	v.SetDefault("database.connMaxLifetime", 300)
	v.SetDefault("database.autoMigrate", false)

	v.SetDefault("dataWarehouse.enabled", false)
	v.SetDefault("dataWarehouse.maxOpenConns", 10)
	v.SetDefault("dataWarehouse.maxIdleConns", 2)
	v.SetDefault("dataWarehouse.connMaxLifetime", 300)
	v.SetDefault("dataWarehouse.queryTimeout", 30)

	v.SetDefault("secrets.source", "auto")
	v.SetDefault("secrets.cacheEnabled", true)
	v.SetDefault("secrets.cacheTTL", 300)

	v.SetDefault("azuread.instanceUrl", "https://login.microsoftonline.com/")

	v.SetDefault("storage.mode", "local")
	v.SetDefault("storage.localBasePath", "./storage")
	v.SetDefault("storage.cloudContainer", "measurement-attachments")
	v.SetDefault("storage.maxUploadSizeMB", 25)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)
	v.SetDefault("server.requestTimeout", 60)
	v.SetDefault("server.enableSwagger", true)
	v.SetDefault("server.enableMetrics", true)

	v.SetDefault("cors.allowedOrigins", []string{})
	v.SetDefault("cors.allowedMethods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowedHeaders", []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-ID"})
	v.SetDefault("cors.exposedHeaders", []string{"Location", "X-Request-ID"})
	v.SetDefault("cors.allowCredentials", true)
	v.SetDefault("cors.maxAge", 300)

	v.SetDefault("security.enableHSTS", false)
	v.SetDefault("security.hstsMaxAge", 31536000)
	v.SetDefault("security.hstsIncludeSubdomains", true)
	v.SetDefault("security.contentSecurityPolicy", "default-src 'self'")
	v.SetDefault("security.frameOptions", "DENY")
	v.SetDefault("security.contentTypeNosniff", true)
	v.SetDefault("security.referrerPolicy", "strict-origin-when-cross-origin")

	v.SetDefault("rateLimit.enabled", true)
	v.SetDefault("rateLimit.requestsPerMinute", 60)
	v.SetDefault("rateLimit.requestsPerMinuteAuth", 300)
	v.SetDefault("rateLimit.whitelistIPs", []string{"127.0.0.1", "::1"})
	v.SetDefault("rateLimit.whitelistPaths", []string{"/health", "/health/db", "/health/ready", "/metrics"})

	v.SetDefault("events.enabled", false)
	v.SetDefault("events.url", "nats://localhost:4222")
	v.SetDefault("events.subjectPrefix", "measure")
	v.SetDefault("events.name", "measure-api")

	v.SetDefault("workflow.allowArchivedPeriods", false)
	v.SetDefault("workflow.reReviewPolicy", ReReviewPolicyReject)

	v.SetDefault("jobs.enabled", true)
	v.SetDefault("jobs.periodArchiveCron", "0 0 2 * * *") // 02:00 daily, seconds field
	v.SetDefault("jobs.periodArchiveGraceDays", 30)
	v.SetDefault("jobs.periodArchiveTimeout", 120)
}
