package validation

import (
	"context"
	"errors"
	"fmt"

	"github.com/veridist/compliance-engine/internal/domain"
)

// checkCrossBorder confirms a valid permit covers the country pair of an
// inbound or outbound movement. Internal movements skip the check entirely,
// no lookup issued.
func (e *Engine) checkCrossBorder(ctx context.Context, tx *domain.Transaction) ([]domain.Violation, error) {
	if !tx.CrossesBorder() {
		return nil, nil
	}

	permit, err := e.licences.FindCrossBorderPermit(ctx, tx.CustomerID, tx.OriginCountry, tx.DestinationCountry, tx.TransactionDate)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("cross-border permit lookup %s->%s: %w", tx.OriginCountry, tx.DestinationCountry, err)
	}

	if permit != nil && permit.CoversDate(tx.TransactionDate) {
		return nil, nil
	}

	return []domain.Violation{{
		Code:        domain.CodeMissingPermit,
		Message:     fmt.Sprintf("no valid cross-border permit for %s -> %s", tx.OriginCountry, tx.DestinationCountry),
		Severity:    domain.SeverityCritical,
		CanOverride: true,
	}}, nil
}
