package repository

import (
	"context"
	"fmt"
	"time"

	"RiskPulse/internal/domain/models"
	domrepo "RiskPulse/internal/domain/repository"
)

// EventReport is the envelope type of published analysis reports.
const EventReport = "report"

// MessageProducer is the slice of the Kafka producer the publisher needs.
type MessageProducer interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

// ReportEvent wraps a report on the wire.
type ReportEvent struct {
	Type        string                 `json:"type"`
	Asset       string                 `json:"asset"`
	UserID      string                 `json:"user_id"`
	RiskIndex   int                    `json:"risk_index"`
	PublishedAt time.Time              `json:"published_at"`
	Report      *models.AnalysisReport `json:"report"`
}

// KafkaReportPublisher publishes reports keyed by asset so one asset's
// reports stay ordered on a partition.
type KafkaReportPublisher struct {
	producer MessageProducer
	topic    string
	now      func() time.Time
}

func NewKafkaReportPublisher(producer MessageProducer, topic string) *KafkaReportPublisher {
	return &KafkaReportPublisher{producer: producer, topic: topic, now: time.Now}
}

func (p *KafkaReportPublisher) Publish(ctx context.Context, r *models.AnalysisReport) error {
	if r == nil {
		return fmt.Errorf("nil report")
	}
	ev := ReportEvent{
		Type:        EventReport,
		Asset:       r.Asset,
		UserID:      r.UserID,
		RiskIndex:   r.MarketMetrics.RiskIndex,
		PublishedAt: p.now().UTC(),
		Report:      r,
	}
	if err := p.producer.Publish(ctx, p.topic, []byte(r.Asset), ev); err != nil {
		return fmt.Errorf("publish report %s: %w", r.Asset, err)
	}
	return nil
}

func (p *KafkaReportPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

var _ domrepo.ReportPublisher = (*KafkaReportPublisher)(nil)
