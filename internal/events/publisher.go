package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/veridist/compliance-engine/internal/config"
	"github.com/veridist/compliance-engine/internal/domain"
	"github.com/veridist/compliance-engine/internal/override"
	"github.com/veridist/compliance-engine/internal/validation"
)

// Publisher emits validation and override outcomes to Kafka for downstream
// consumers (reporting, alerting). Publishing is fire-and-forget: a broker
// problem is logged and never affects the decision path.
type Publisher struct {
	validated *kafka.Writer
	decided   *kafka.Writer
	logger    *zap.Logger
}

// NewPublisher creates a Kafka outcome publisher.
func NewPublisher(cfg config.KafkaConfig, logger *zap.Logger) *Publisher {
	return &Publisher{
		validated: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topics.TransactionValidated,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
		},
		decided: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topics.OverrideDecided,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
		},
		logger: logger,
	}
}

type validatedEvent struct {
	TransactionID    string                  `json:"transaction_id"`
	CustomerID       string                  `json:"customer_id"`
	Status           domain.ValidationStatus `json:"status"`
	CanProceed       bool                    `json:"can_proceed"`
	RequiresOverride bool                    `json:"requires_override"`
	ViolationCodes   []domain.ViolationCode  `json:"violation_codes"`
	OccurredAt       time.Time               `json:"occurred_at"`
}

type overrideEvent struct {
	TransactionID    string                  `json:"transaction_id"`
	ApproverID       string                  `json:"approver_id"`
	OverrideStatus   domain.OverrideStatus   `json:"override_status"`
	ValidationStatus domain.ValidationStatus `json:"validation_status"`
	OccurredAt       time.Time               `json:"occurred_at"`
}

// PublishValidated implements validation.Publisher.
func (p *Publisher) PublishValidated(ctx context.Context, tx *domain.Transaction, result *validation.Result) {
	codes := make([]domain.ViolationCode, 0, len(result.Violations))
	for i := range result.Violations {
		codes = append(codes, result.Violations[i].Code)
	}
	p.publish(ctx, p.validated, tx.ID, validatedEvent{
		TransactionID:    tx.ID,
		CustomerID:       tx.CustomerID,
		Status:           result.Status,
		CanProceed:       result.CanProceed,
		RequiresOverride: result.RequiresOverride,
		ViolationCodes:   codes,
		OccurredAt:       time.Now().UTC(),
	})
}

// PublishOverrideDecided implements override.Publisher.
func (p *Publisher) PublishOverrideDecided(ctx context.Context, tx *domain.Transaction, decision override.Decision) {
	p.publish(ctx, p.decided, tx.ID, overrideEvent{
		TransactionID:    tx.ID,
		ApproverID:       decision.ApproverID,
		OverrideStatus:   decision.OverrideStatus,
		ValidationStatus: decision.ValidationStatus,
		OccurredAt:       decision.DecidedAt,
	})
}

func (p *Publisher) publish(ctx context.Context, writer *kafka.Writer, key string, payload interface{}) {
	value, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error("failed to marshal outcome event", zap.Error(err))
		return
	}
	if err := writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: value}); err != nil {
		p.logger.Error("failed to publish outcome event",
			zap.String("topic", writer.Topic), zap.Error(err))
	}
}

// Close flushes and closes the writers.
func (p *Publisher) Close() error {
	if err := p.validated.Close(); err != nil {
		return err
	}
	return p.decided.Close()
}
