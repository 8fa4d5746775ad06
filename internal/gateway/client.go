// Package gateway is the HTTP client for the measurement API. It implements
// measurement.Gateway so the controller can run against a remote server.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/straye-as/measure-api/internal/domain"
	"github.com/straye-as/measure-api/internal/measurement"
	"go.uber.org/zap"
)

const defaultTimeout = 15 * time.Second

// maxErrorBody caps how much of an error response is read
const maxErrorBody = 64 << 10

// Config holds the connection settings. APIKey takes precedence over Token.
type Config struct {
	BaseURL string
	APIKey  string
	Token   string
	Timeout time.Duration
}

// APIError is a non-2xx response. Message is the server's own wording.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string { return e.Message }

// HTTPClient calls /api/v1 of a measurement server
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	token      string
	logger     *zap.Logger
}

var _ measurement.Gateway = (*HTTPClient)(nil)

// NewHTTPClient creates a client. BaseURL is the server root, without /api/v1.
func NewHTTPClient(cfg Config, logger *zap.Logger) (*HTTPClient, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", cfg.BaseURL)
	}
	if cfg.APIKey == "" && cfg.Token == "" {
		return nil, fmt.Errorf("an API key or a bearer token is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(base.String(), "/") + "/api/v1",
		apiKey:     cfg.APIKey,
		token:      cfg.Token,
		logger:     logger,
	}, nil
}

// listEnvelope mirrors domain.ListResponse with a typed payload
type listEnvelope[T any] struct {
	Data  []T `json:"data"`
	Total int `json:"total"`
}

// QueryProjects lists the projects userID may see. With a bearer token the server scopes
// the list to the token's subject and userID is only a hint.
func (c *HTTPClient) QueryProjects(ctx context.Context, userID string) ([]domain.ProjectDTO, error) {
	q := url.Values{}
	if userID != "" {
		q.Set("userId", userID)
	}
	var out listEnvelope[domain.ProjectDTO]
	if err := c.do(ctx, http.MethodGet, "/projects", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// QueryContracts lists a project's contracts with their item catalogs
func (c *HTTPClient) QueryContracts(ctx context.Context, projectID int64, _ string) ([]domain.ContractDTO, error) {
	q := url.Values{"projectId": {itoa(projectID)}}
	var out listEnvelope[domain.ContractDTO]
	if err := c.do(ctx, http.MethodGet, "/contracts", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// QueryPeriods lists a contract's periods
func (c *HTTPClient) QueryPeriods(ctx context.Context, projectID, contractID int64, query *measurement.PeriodQuery) ([]domain.PeriodDTO, error) {
	q := url.Values{"projectId": {itoa(projectID)}}
	if contractID != 0 {
		q.Set("contractId", itoa(contractID))
	}
	if query != nil {
		if query.Name != "" {
			q.Set("name", query.Name)
		}
		if query.Archived != nil {
			q.Set("archived", strconv.FormatBool(*query.Archived))
		}
	}
	var out listEnvelope[domain.PeriodDTO]
	if err := c.do(ctx, http.MethodGet, "/periods", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// QueryMeasurementDetails lists details for a selection
func (c *HTTPClient) QueryMeasurementDetails(ctx context.Context, query measurement.DetailQuery) ([]domain.MeasurementDetailDTO, error) {
	q := url.Values{"projectId": {itoa(query.ProjectID)}}
	for name, id := range map[string]int64{
		"contractId": query.ContractID,
		"periodId":   query.PeriodID,
		"itemId":     query.ItemID,
	} {
		if id != 0 {
			q.Set(name, itoa(id))
		}
	}
	if query.ItemType != "" {
		q.Set("type", string(query.ItemType))
	}
	if query.Filter != nil && query.Filter.Status != nil {
		q.Set("status", strconv.Itoa(int(*query.Filter.Status)))
	}
	var out listEnvelope[domain.MeasurementDetailDTO]
	if err := c.do(ctx, http.MethodGet, "/measurement-details", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// CreateMeasurementDetail posts a new detail
func (c *HTTPClient) CreateMeasurementDetail(ctx context.Context, payload *domain.MeasurementDetailPayload) (*domain.MeasurementDetailDTO, error) {
	var out domain.MeasurementDetailDTO
	if err := c.do(ctx, http.MethodPost, "/measurement-details", nil, payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateMeasurementDetail replaces the detail named by payload.ID
func (c *HTTPClient) UpdateMeasurementDetail(ctx context.Context, payload *domain.MeasurementDetailPayload) (*domain.MeasurementDetailDTO, error) {
	var out domain.MeasurementDetailDTO
	if err := c.do(ctx, http.MethodPut, "/measurement-details/"+itoa(payload.ID), nil, payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteMeasurementDetail removes a detail
func (c *HTTPClient) DeleteMeasurementDetail(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/measurement-details/"+itoa(id), nil, nil, nil)
}

// ReviewMeasurementDetail approves or rejects a detail
func (c *HTTPClient) ReviewMeasurementDetail(ctx context.Context, req *domain.ReviewMeasurementDetailRequest) (*domain.MeasurementDetailDTO, error) {
	var out domain.MeasurementDetailDTO
	if err := c.do(ctx, http.MethodPost, "/measurement-details/"+itoa(req.ID)+"/review", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do sends one request and decodes a 2xx body into out when out is non-nil
func (c *HTTPClient) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("gateway request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

// decodeError reads the problem body, the rate limiter body or plain text, in that order
func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var problem domain.APIError
	if json.Unmarshal(raw, &problem) == nil && problem.Detail != "" {
		return &APIError{Status: resp.StatusCode, Message: problem.Detail}
	}
	var limited domain.ErrorResponse
	if json.Unmarshal(raw, &limited) == nil && (limited.Message != "" || limited.Error != "") {
		msg := limited.Message
		if msg == "" {
			msg = limited.Error
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if text := strings.TrimSpace(string(raw)); text != "" {
		return &APIError{Status: resp.StatusCode, Message: text}
	}
	return &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
