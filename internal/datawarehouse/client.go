// Package datawarehouse provides read-only access to the ERP data warehouse on MS SQL Server.
// It is used to compare measured contract amounts against what has actually been invoiced.
package datawarehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/microsoft/go-mssqldb" // MS SQL Server driver
	"github.com/shopspring/decimal"
	"github.com/straye-as/measure-api/internal/config"
	"go.uber.org/zap"
)

const (
	maxConnectAttempts = 3
	initialBackoff     = 1 * time.Second
	maxBackoff         = 10 * time.Second

	healthCheckTimeout = 5 * time.Second

	// invoicedAmountQuery sums posted invoice lines per contract code
	invoicedAmountQuery = `SELECT SUM(l.NetAmount) AS InvoicedAmount, MAX(l.PostedAt) AS LastPostedAt
FROM dbo.erp_contract_invoice_lines AS l
WHERE l.ContractCode = @p1 AND l.IsCancelled = 0`
)

// ErrDisabled is returned when the warehouse is not configured
var ErrDisabled = errors.New("data warehouse not enabled")

// InvoicedAmount is the ERP view of a contract's invoiced value
type InvoicedAmount struct {
	Amount       decimal.Decimal
	LastPostedAt *time.Time
}

// Client provides read-only access to the data warehouse.
// A nil *Client is valid and reports itself as disabled.
type Client struct {
	db           *sql.DB
	logger       *zap.Logger
	queryTimeout time.Duration
}

// HealthStatus represents the health check result for the data warehouse connection
type HealthStatus struct {
	Status    string `json:"status"`
	LatencyMs int64  `json:"latencyMs"`
	Error     string `json:"error,omitempty"`
	Open      int    `json:"openConnections"`
	InUse     int    `json:"inUse"`
	Idle      int    `json:"idle"`
}

// NewClient connects to the warehouse with retry and exponential backoff.
// Returns nil without error when the warehouse is disabled or lacks credentials.
func NewClient(cfg *config.DataWarehouseConfig, logger *zap.Logger) (*Client, error) {
	if cfg == nil || !cfg.Enabled {
		logger.Info("Data warehouse connection disabled")
		return nil, nil
	}
	if cfg.URL == "" || cfg.User == "" || cfg.Password == "" {
		logger.Warn("Data warehouse enabled but missing credentials, skipping connection",
			zap.Bool("url_present", cfg.URL != ""),
			zap.Bool("user_present", cfg.User != ""),
			zap.Bool("password_present", cfg.Password != ""),
		)
		return nil, nil
	}

	connStr := BuildConnectionString(cfg)

	var lastErr error
	backoff := initialBackoff
	for attempt := 1; attempt <= maxConnectAttempts; attempt++ {
		db, err := open(connStr, cfg)
		if err == nil {
			logger.Info("Data warehouse connection established", zap.Int("attempts_taken", attempt))
			return &Client{db: db, logger: logger, queryTimeout: cfg.QueryTimeoutDuration()}, nil
		}

		lastErr = err
		logger.Warn("Data warehouse connection attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxConnectAttempts),
			zap.Error(err),
		)
		if attempt < maxConnectAttempts {
			time.Sleep(backoff)
			backoff = min(backoff*2, maxBackoff)
		}
	}

	return nil, fmt.Errorf("failed to connect to data warehouse after %d attempts: %w", maxConnectAttempts, lastErr)
}

func open(connStr string, cfg *config.DataWarehouseConfig) (*sql.DB, error) {
	db, err := sql.Open("sqlserver", connStr)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetimeDuration())

	ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// BuildConnectionString turns "host[:port][/database]" plus credentials into a sqlserver URL
func BuildConnectionString(cfg *config.DataWarehouseConfig) string {
	hostPort, database, _ := strings.Cut(cfg.URL, "/")
	if !strings.Contains(hostPort, ":") {
		hostPort += ":1433"
	}

	query := url.Values{}
	query.Add("encrypt", "true")
	query.Add("TrustServerCertificate", "false")
	query.Add("connection timeout", "30")
	query.Add("app name", "measure-api")
	if database != "" {
		query.Add("database", database)
	}

	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     hostPort,
		RawQuery: query.Encode(),
	}
	return u.String()
}

// IsEnabled reports whether the client is connected
func (c *Client) IsEnabled() bool {
	return c != nil && c.db != nil
}

// Close closes the connection pool
func (c *Client) Close() error {
	if !c.IsEnabled() {
		return nil
	}
	if err := c.db.Close(); err != nil {
		return fmt.Errorf("failed to close data warehouse connection: %w", err)
	}
	c.logger.Info("Data warehouse connection closed")
	return nil
}

// HealthCheck pings the warehouse and reports pool statistics
func (c *Client) HealthCheck(ctx context.Context) *HealthStatus {
	if !c.IsEnabled() {
		return &HealthStatus{Status: "disabled"}
	}

	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	start := time.Now()
	err := c.db.PingContext(ctx)
	stats := c.db.Stats()

	status := &HealthStatus{
		Status:    "healthy",
		LatencyMs: time.Since(start).Milliseconds(),
		Open:      stats.OpenConnections,
		InUse:     stats.InUse,
		Idle:      stats.Idle,
	}
	if err != nil {
		status.Status = "unhealthy"
		status.Error = err.Error()
	}
	return status
}

// GetContractInvoicedAmount returns the sum of posted, non-cancelled invoice lines for a contract code
func (c *Client) GetContractInvoicedAmount(ctx context.Context, contractCode string) (*InvoicedAmount, error) {
	if !c.IsEnabled() {
		return nil, ErrDisabled
	}

	ctx, cancel := context.WithTimeout(ctx, c.queryTimeout)
	defer cancel()

	start := time.Now()
	var (
		amount   decimal.NullDecimal
		lastPost sql.NullTime
	)
	if err := c.db.QueryRowContext(ctx, invoicedAmountQuery, contractCode).Scan(&amount, &lastPost); err != nil {
		c.logger.Error("Invoiced amount query failed",
			zap.String("contract_code", contractCode),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("query invoiced amount: %w", err)
	}

	result := &InvoicedAmount{Amount: decimal.Zero}
	if amount.Valid {
		result.Amount = amount.Decimal
	}
	if lastPost.Valid {
		t := lastPost.Time.UTC()
		result.LastPostedAt = &t
	}

	c.logger.Debug("Invoiced amount loaded",
		zap.String("contract_code", contractCode),
		zap.String("amount", result.Amount.String()),
		zap.Duration("duration", time.Since(start)),
	)
	return result, nil
}
