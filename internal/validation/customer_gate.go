package validation

import (
	"context"
	"errors"
	"fmt"

	"github.com/veridist/compliance-engine/internal/domain"
)

// checkCustomer applies the customer status gate. It emits at most one
// violation; suspension takes precedence over approval state. A missing
// customer is fatal (not overridable) but does not stop the remaining
// checks, so the caller still gets complete diagnostics.
func (e *Engine) checkCustomer(ctx context.Context, tx *domain.Transaction) ([]domain.Violation, error) {
	customer, err := e.customers.GetComplianceStatus(ctx, tx.CustomerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return []domain.Violation{{
				Code:        domain.CodeNotFound,
				Message:     fmt.Sprintf("customer %s not found", tx.CustomerID),
				Severity:    domain.SeverityCritical,
				CanOverride: false,
			}}, nil
		}
		return nil, fmt.Errorf("customer lookup: %w", err)
	}

	if customer.IsSuspended {
		msg := fmt.Sprintf("customer %s is suspended", tx.CustomerID)
		if customer.SuspensionReason != "" {
			msg = fmt.Sprintf("%s: %s", msg, customer.SuspensionReason)
		}
		return []domain.Violation{{
			Code:        domain.CodeCustomerSuspended,
			Message:     msg,
			Severity:    domain.SeverityCritical,
			CanOverride: true,
		}}, nil
	}

	switch customer.ApprovalStatus {
	case domain.ApprovalPending, domain.ApprovalRejected:
		return []domain.Violation{{
			Code:        domain.CodeCustomerNotApproved,
			Message:     fmt.Sprintf("customer %s approval status is %s", tx.CustomerID, customer.ApprovalStatus),
			Severity:    domain.SeverityWarning,
			CanOverride: true,
		}}, nil
	}

	return nil, nil
}
