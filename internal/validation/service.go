package validation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/veridist/compliance-engine/internal/domain"
)

// TransactionStore persists a transaction together with its validation
// outcome in one unit of work.
type TransactionStore interface {
	CreateWithOutcome(ctx context.Context, tx *domain.Transaction, violations []domain.Violation, usages []domain.LicenceUsage) error
}

// Auditor captures the append-only audit trail. Implementations must not
// fail the validation path; recording problems are logged, not returned.
type Auditor interface {
	Record(ctx context.Context, actorID, action, entityType, entityID string, details map[string]interface{})
}

// Publisher emits outcome events for downstream consumers.
type Publisher interface {
	PublishValidated(ctx context.Context, tx *domain.Transaction, result *Result)
}

// Observer records validation metrics.
type Observer interface {
	ObserveValidation(status domain.ValidationStatus, violations []domain.Violation, duration time.Duration)
}

// Service drives a validation run end to end: evaluate, stamp the outcome
// onto the transaction, persist, audit, publish.
type Service struct {
	engine    *Engine
	store     TransactionStore
	auditor   Auditor
	publisher Publisher
	observer  Observer
	logger    *zap.Logger
}

// NewService wires the validation service. Auditor, publisher and observer
// may be nil; the decision path never depends on them.
func NewService(engine *Engine, store TransactionStore, auditor Auditor, publisher Publisher, observer Observer, logger *zap.Logger) *Service {
	return &Service{
		engine:    engine,
		store:     store,
		auditor:   auditor,
		publisher: publisher,
		observer:  observer,
		logger:    logger,
	}
}

// ValidateTransaction evaluates the proposed transaction, persists it with
// its violations and licence usages, and opens the override workflow when
// the failure is overridable.
func (s *Service) ValidateTransaction(ctx context.Context, tx *domain.Transaction) (*Result, error) {
	started := time.Now()
	s.prepare(tx)

	result, err := s.engine.Evaluate(ctx, tx)
	if err != nil {
		return nil, err
	}

	tx.ValidationStatus = result.Status
	if result.RequiresOverride {
		tx.OverrideStatus = domain.OverridePending
	} else {
		tx.OverrideStatus = domain.OverrideNotRequired
	}
	tx.UpdatedAt = time.Now().UTC()

	now := tx.UpdatedAt
	for i := range result.Violations {
		result.Violations[i].ID = uuid.NewString()
		result.Violations[i].TransactionID = tx.ID
		result.Violations[i].CreatedAt = now
	}
	for i := range result.LicenceUsages {
		result.LicenceUsages[i].ID = uuid.NewString()
		result.LicenceUsages[i].TransactionID = tx.ID
		result.LicenceUsages[i].CreatedAt = now
	}

	if err := s.store.CreateWithOutcome(ctx, tx, result.Violations, result.LicenceUsages); err != nil {
		return nil, fmt.Errorf("persist validation outcome: %w", err)
	}

	if s.auditor != nil {
		s.auditor.Record(ctx, "system", "transaction_validated", "transaction", tx.ID, map[string]interface{}{
			"status":            string(result.Status),
			"violations":        len(result.Violations),
			"requires_override": result.RequiresOverride,
			"can_proceed":       result.CanProceed,
		})
	}
	if s.publisher != nil {
		s.publisher.PublishValidated(ctx, tx, result)
	}
	if s.observer != nil {
		s.observer.ObserveValidation(result.Status, result.Violations, time.Since(started))
	}

	s.logger.Info("transaction validated",
		zap.String("transaction_id", tx.ID),
		zap.String("customer_id", tx.CustomerID),
		zap.String("status", string(result.Status)),
		zap.Int("violations", len(result.Violations)))

	return result, nil
}

// prepare fills in identity, line numbers and derived totals on a freshly
// submitted transaction.
func (s *Service) prepare(tx *domain.Transaction) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	tx.CreatedAt = now
	tx.UpdatedAt = now
	tx.ValidationStatus = domain.ValidationNotValidated
	tx.OverrideStatus = domain.OverrideNotRequired

	total := decimal.Zero
	for i := range tx.Lines {
		if tx.Lines[i].LineNumber == 0 {
			tx.Lines[i].LineNumber = i + 1
		}
		if tx.Lines[i].BaseQuantity.IsZero() && !tx.Lines[i].Quantity.IsZero() {
			tx.Lines[i].BaseQuantity = tx.Lines[i].Quantity
		}
		total = total.Add(tx.Lines[i].BaseQuantity)
	}
	tx.TotalBaseQuantity = total
}
