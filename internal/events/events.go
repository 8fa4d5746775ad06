// Package events publishes measurement workflow events to NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/straye-as/measure-api/internal/config"
	"go.uber.org/zap"
)

// SubjectDetailReviewed is appended to the configured subject prefix
const SubjectDetailReviewed = "detail.reviewed"

// DetailReviewed is published after a measurement detail has been approved or rejected
type DetailReviewed struct {
	DetailID     int64     `json:"detailId"`
	ProjectID    int64     `json:"projectId"`
	ContractID   int64     `json:"contractId"`
	PeriodID     int64     `json:"periodId"`
	ItemID       int64     `json:"itemId"`
	Decision     string    `json:"decision"`
	FromStatus   int       `json:"fromStatus"`
	ToStatus     int       `json:"toStatus"`
	Comment      string    `json:"comment,omitempty"`
	ReviewerID   string    `json:"reviewerId"`
	ReviewerName string    `json:"reviewerName,omitempty"`
	ReviewedAt   time.Time `json:"reviewedAt"`
}

// Publisher emits workflow events
type Publisher interface {
	PublishDetailReviewed(ctx context.Context, evt DetailReviewed) error
	Close()
}

// NewPublisher connects to NATS when events are enabled, otherwise returns a no-op publisher
func NewPublisher(cfg *config.EventsConfig, logger *zap.Logger) (Publisher, error) {
	if !cfg.Enabled {
		logger.Info("Event publishing disabled")
		return NopPublisher{}, nil
	}
	return NewNATSPublisher(cfg, logger)
}

// NATSPublisher publishes JSON events on core NATS subjects
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
	logger *zap.Logger
}

// NewNATSPublisher dials the server with automatic reconnects
func NewNATSPublisher(cfg *config.EventsConfig, logger *zap.Logger) (*NATSPublisher, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	logger.Info("Event publisher connected",
		zap.String("url", conn.ConnectedUrl()),
		zap.String("subject_prefix", cfg.SubjectPrefix),
	)
	return &NATSPublisher{conn: conn, prefix: cfg.SubjectPrefix, logger: logger}, nil
}

// Subject joins the prefix and an event name
func Subject(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

// PublishDetailReviewed publishes the event on <prefix>.detail.reviewed
func (p *NATSPublisher) PublishDetailReviewed(ctx context.Context, evt DetailReviewed) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before publish: %w", err)
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	subject := Subject(p.prefix, SubjectDetailReviewed)
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	p.logger.Debug("Event published", zap.String("subject", subject), zap.Int64("detail_id", evt.DetailID))
	return nil
}

// Close flushes pending messages and closes the connection
func (p *NATSPublisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.logger.Warn("NATS drain failed", zap.Error(err))
		p.conn.Close()
	}
}

// NopPublisher discards events
type NopPublisher struct{}

func (NopPublisher) PublishDetailReviewed(context.Context, DetailReviewed) error { return nil }
func (NopPublisher) Close()                                                      {}
