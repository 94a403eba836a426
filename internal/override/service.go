package override

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/veridist/compliance-engine/internal/domain"
)

// Decision is a resolved override: either an approval with justification or
// a rejection with reason. DecidedAt and Approver are part of the
// append-only audit record on the transaction.
type Decision struct {
	OverrideStatus   domain.OverrideStatus
	ValidationStatus domain.ValidationStatus
	ApproverID       string
	Justification    string
	RejectionReason  string
	DecidedAt        time.Time
}

// Store is the persistence port for override decisions. DecideOverride must
// apply the decision only when the stored row still carries the expected
// version and a pending override, and distinguish the three failure modes:
// domain.ErrNotFound, domain.ErrInvalidState, domain.ErrVersionConflict.
type Store interface {
	GetByID(ctx context.Context, transactionID string) (*domain.Transaction, error)
	DecideOverride(ctx context.Context, transactionID string, expectedVersion int64, decision Decision) error
	ListPendingOverrides(ctx context.Context) ([]domain.Transaction, error)
	CountPendingOverrides(ctx context.Context) (int, error)
}

// Auditor mirrors validation.Auditor; kept local to avoid a package cycle.
type Auditor interface {
	Record(ctx context.Context, actorID, action, entityType, entityID string, details map[string]interface{})
}

// Publisher emits override decision events.
type Publisher interface {
	PublishOverrideDecided(ctx context.Context, tx *domain.Transaction, decision Decision)
}

// Observer records override metrics.
type Observer interface {
	ObserveOverride(status domain.OverrideStatus)
}

// Service drives the override workflow state machine:
// pending -> approved | rejected, both terminal. There is no path back to
// pending; corrections require a new transaction submission.
type Service struct {
	store     Store
	auditor   Auditor
	publisher Publisher
	observer  Observer
	logger    *zap.Logger
}

// NewService wires the override workflow service. Auditor, publisher and
// observer may be nil.
func NewService(store Store, auditor Auditor, publisher Publisher, observer Observer, logger *zap.Logger) *Service {
	return &Service{
		store:     store,
		auditor:   auditor,
		publisher: publisher,
		observer:  observer,
		logger:    logger,
	}
}

// Approve resolves a pending override with a business justification.
func (s *Service) Approve(ctx context.Context, transactionID, approverID, justification string) (*domain.Transaction, error) {
	if strings.TrimSpace(justification) == "" {
		return nil, fmt.Errorf("%w: justification must not be empty", domain.ErrValidation)
	}
	decision := Decision{
		OverrideStatus:   domain.OverrideApproved,
		ValidationStatus: domain.ValidationApprovedWithOverride,
		ApproverID:       approverID,
		Justification:    justification,
		DecidedAt:        time.Now().UTC(),
	}
	return s.decide(ctx, transactionID, decision, "override_approved")
}

// Reject resolves a pending override with a rejection reason.
func (s *Service) Reject(ctx context.Context, transactionID, approverID, reason string) (*domain.Transaction, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("%w: rejection reason must not be empty", domain.ErrValidation)
	}
	decision := Decision{
		OverrideStatus:   domain.OverrideRejected,
		ValidationStatus: domain.ValidationRejectedOverride,
		ApproverID:       approverID,
		RejectionReason:  reason,
		DecidedAt:        time.Now().UTC(),
	}
	return s.decide(ctx, transactionID, decision, "override_rejected")
}

func (s *Service) decide(ctx context.Context, transactionID string, decision Decision, action string) (*domain.Transaction, error) {
	tx, err := s.store.GetByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx.OverrideStatus != domain.OverridePending {
		return nil, fmt.Errorf("%w: transaction %s override status is %s", domain.ErrInvalidState, transactionID, tx.OverrideStatus)
	}

	// Optimistic concurrency: two approvers racing to decide the same
	// pending override cannot both win. The loser gets a conflict and
	// must retry against the latest state.
	if err := s.store.DecideOverride(ctx, transactionID, tx.RowVersion, decision); err != nil {
		return nil, err
	}

	tx.OverrideStatus = decision.OverrideStatus
	tx.ValidationStatus = decision.ValidationStatus
	tx.OverrideBy = &decision.ApproverID
	tx.OverrideAt = &decision.DecidedAt
	if decision.Justification != "" {
		tx.OverrideJustification = &decision.Justification
	}
	if decision.RejectionReason != "" {
		tx.OverrideRejectionReason = &decision.RejectionReason
	}
	tx.RowVersion++

	if s.auditor != nil {
		s.auditor.Record(ctx, decision.ApproverID, action, "transaction", transactionID, map[string]interface{}{
			"override_status":   string(decision.OverrideStatus),
			"validation_status": string(decision.ValidationStatus),
			"justification":     decision.Justification,
			"rejection_reason":  decision.RejectionReason,
		})
	}
	if s.publisher != nil {
		s.publisher.PublishOverrideDecided(ctx, tx, decision)
	}
	if s.observer != nil {
		s.observer.ObserveOverride(decision.OverrideStatus)
	}

	s.logger.Info("override decided",
		zap.String("transaction_id", transactionID),
		zap.String("approver_id", decision.ApproverID),
		zap.String("override_status", string(decision.OverrideStatus)))

	return tx, nil
}

// PendingOverrides lists transactions awaiting an override decision.
func (s *Service) PendingOverrides(ctx context.Context) ([]domain.Transaction, error) {
	return s.store.ListPendingOverrides(ctx)
}

// PendingOverrideCount returns the number of transactions awaiting an
// override decision.
func (s *Service) PendingOverrideCount(ctx context.Context) (int, error) {
	return s.store.CountPendingOverrides(ctx)
}
