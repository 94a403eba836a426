package validation

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/veridist/compliance-engine/internal/domain"
)

// Engine runs the transaction compliance checks. Every rule is evaluated
// (no short-circuiting) so the caller always receives the complete
// violation set, in the fixed order: customer gate, per-line licence and
// transaction limits, per-period thresholds, cross-border. The engine is a
// pure read path over its ports; persistence belongs to the Service.
type Engine struct {
	customers  CustomerReader
	licences   LicenceReader
	history    HistoryReader
	thresholds ThresholdReader
	substances SubstanceReader
	logger     *zap.Logger
}

// NewEngine creates a validation engine over the given read ports.
func NewEngine(
	customers CustomerReader,
	licences LicenceReader,
	history HistoryReader,
	thresholds ThresholdReader,
	substances SubstanceReader,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		customers:  customers,
		licences:   licences,
		history:    history,
		thresholds: thresholds,
		substances: substances,
		logger:     logger,
	}
}

// Evaluate validates a transaction against all compliance rules.
// Infrastructure faults and cancellation propagate as errors; rule failures
// never do. Aborting mid-evaluation returns the context error, not a
// partial result.
func (e *Engine) Evaluate(ctx context.Context, tx *domain.Transaction) (*Result, error) {
	if len(tx.Lines) == 0 {
		return nil, fmt.Errorf("%w: transaction has no lines", domain.ErrValidation)
	}

	violations := make([]domain.Violation, 0, 4)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	customerViolations, err := e.checkCustomer(ctx, tx)
	if err != nil {
		return nil, err
	}
	violations = append(violations, customerViolations...)

	// Licence resolution and per-transaction limits, line by line. The
	// first successful resolution per substance also feeds the period
	// accumulation below.
	resolutions := make(map[string]*lineResolution, len(tx.Lines))
	usages := newUsageAccumulator()
	for _, line := range tx.Lines {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		lineViolations, res, err := e.resolveLine(ctx, tx, line)
		if err != nil {
			return nil, err
		}
		violations = append(violations, lineViolations...)
		if res != nil {
			if _, ok := resolutions[line.SubstanceCode]; !ok {
				resolutions[line.SubstanceCode] = res
			}
			usages.add(res, line)
		}
	}

	for _, code := range tx.SubstanceCodes() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		periodViolations, err := e.checkPeriodThreshold(ctx, tx, code, resolutions[code])
		if err != nil {
			return nil, err
		}
		violations = append(violations, periodViolations...)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	borderViolations, err := e.checkCrossBorder(ctx, tx)
	if err != nil {
		return nil, err
	}
	violations = append(violations, borderViolations...)

	result := &Result{
		TransactionID: tx.ID,
		Violations:    violations,
		LicenceUsages: usages.list(),
	}
	result.Status, result.CanProceed, result.RequiresOverride = deriveStatus(violations)

	e.logger.Debug("transaction evaluated",
		zap.String("transaction_id", tx.ID),
		zap.String("status", string(result.Status)),
		zap.Int("violations", len(violations)),
		zap.Bool("requires_override", result.RequiresOverride))

	return result, nil
}

// deriveStatus computes the overall outcome from the violation list.
// Warnings alone never block. A non-overridable violation makes the
// failure final; otherwise a critical violation opens the override path.
func deriveStatus(violations []domain.Violation) (domain.ValidationStatus, bool, bool) {
	if len(violations) == 0 {
		return domain.ValidationPassed, true, false
	}

	anyFatal := false
	anyCritical := false
	for i := range violations {
		if violations[i].Severity == domain.SeverityCritical {
			anyCritical = true
			if !violations[i].CanOverride {
				anyFatal = true
			}
		}
	}

	switch {
	case anyFatal:
		return domain.ValidationFailed, false, false
	case anyCritical:
		return domain.ValidationFailed, false, true
	default:
		return domain.ValidationPassed, true, false
	}
}

// usageAccumulator merges per-line licence coverage into one usage record
// per mapping, keeping line order stable.
type usageAccumulator struct {
	order []string
	byID  map[string]*domain.LicenceUsage
}

func newUsageAccumulator() *usageAccumulator {
	return &usageAccumulator{byID: make(map[string]*domain.LicenceUsage)}
}

func (u *usageAccumulator) add(res *lineResolution, line domain.TransactionLine) {
	usage, ok := u.byID[res.mapping.ID]
	if !ok {
		usage = &domain.LicenceUsage{
			LicenceID:     res.licence.ID,
			MappingID:     res.mapping.ID,
			SubstanceCode: line.SubstanceCode,
		}
		u.byID[res.mapping.ID] = usage
		u.order = append(u.order, res.mapping.ID)
	}
	usage.LineNumbers = append(usage.LineNumbers, line.LineNumber)
	usage.Quantity = usage.Quantity.Add(line.BaseQuantity)
}

func (u *usageAccumulator) list() []domain.LicenceUsage {
	out := make([]domain.LicenceUsage, 0, len(u.order))
	for _, id := range u.order {
		out = append(out, *u.byID[id])
	}
	return out
}
