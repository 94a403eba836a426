package validation

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/veridist/compliance-engine/internal/domain"
)

// historyStatuses are the validation outcomes that count toward period
// accumulation: transactions that actually went (or may still go) through.
var historyStatuses = []domain.ValidationStatus{
	domain.ValidationPassed,
	domain.ValidationApprovedWithOverride,
}

// periodLimit is the effective per-period constraint for one substance,
// merged from the winning mapping and the configured threshold record.
type periodLimit struct {
	limit         decimal.Decimal
	period        domain.PeriodType
	warnBoundary  decimal.Decimal
	allowOverride bool
	ceiling       decimal.Decimal
	hasCeiling    bool
	source        string
}

// checkPeriodThreshold accumulates the rolling-period quantity for one
// substance and compares it against the effective limit. The read is
// best-effort over whatever consistency the store provides; an empty
// history is a zero sum, not an error.
func (e *Engine) checkPeriodThreshold(ctx context.Context, tx *domain.Transaction, substanceCode string, res *lineResolution) ([]domain.Violation, error) {
	pl, err := e.effectivePeriodLimit(ctx, tx, substanceCode, res)
	if err != nil || pl == nil {
		return nil, err
	}

	windowStart := pl.period.WindowStart(tx.TransactionDate)
	prior, err := e.history.SumQuantity(ctx, tx.CustomerID, substanceCode, windowStart, tx.TransactionDate, historyStatuses)
	if err != nil {
		return nil, fmt.Errorf("history sum for %s: %w", substanceCode, err)
	}

	total := prior.Add(tx.QuantityForSubstance(substanceCode))

	if total.GreaterThan(pl.limit) {
		canOverride := pl.allowOverride && (!pl.hasCeiling || total.LessThanOrEqual(pl.ceiling))
		return []domain.Violation{{
			Code:          domain.CodeThresholdExceeded,
			Message:       fmt.Sprintf("%s period total %s exceeds limit %s for substance %s (%s)", pl.period, total, pl.limit, substanceCode, pl.source),
			Severity:      domain.SeverityCritical,
			SubstanceCode: substanceCode,
			CanOverride:   canOverride,
		}}, nil
	}

	if total.GreaterThan(pl.warnBoundary) {
		return []domain.Violation{{
			Code:          domain.CodeThresholdExceeded,
			Message:       fmt.Sprintf("%s period total %s is approaching limit %s for substance %s (%s)", pl.period, total, pl.limit, substanceCode, pl.source),
			Severity:      domain.SeverityWarning,
			SubstanceCode: substanceCode,
			CanOverride:   true,
		}}, nil
	}

	return nil, nil
}

// effectivePeriodLimit merges the mapping's MaxQuantityPerPeriod with the
// configured ComplianceThreshold. The mapping limit wins when both exist;
// the threshold record still contributes warning and override parameters.
// Returns nil when no period constraint applies to the substance.
func (e *Engine) effectivePeriodLimit(ctx context.Context, tx *domain.Transaction, substanceCode string, res *lineResolution) (*periodLimit, error) {
	threshold, err := e.thresholds.GetThreshold(ctx, substanceCode, tx.TransactionDate)
	if err != nil {
		return nil, fmt.Errorf("threshold lookup for %s: %w", substanceCode, err)
	}
	if threshold != nil && !threshold.ActiveOn(tx.TransactionDate) {
		threshold = nil
	}

	var mappingLimit *decimal.Decimal
	mappingPeriod := domain.PeriodMonthly
	mappingAllow := false
	if res != nil {
		mappingLimit = res.mapping.MaxQuantityPerPeriod
		if res.mapping.PeriodType != "" {
			mappingPeriod = res.mapping.PeriodType
		}
		mappingAllow = res.mapping.AllowOverride
	}

	switch {
	case mappingLimit != nil:
		pl := &periodLimit{
			limit:         *mappingLimit,
			period:        mappingPeriod,
			allowOverride: mappingAllow,
			source:        "licence mapping",
		}
		warnPct := domain.DefaultWarningPercent
		if threshold != nil {
			pl.allowOverride = pl.allowOverride || threshold.AllowOverride
			if threshold.WarningPercent > 0 {
				warnPct = threshold.WarningPercent
			}
			if threshold.MaxOverridePercent > 0 {
				pl.ceiling = pl.limit.Mul(decimal.NewFromInt(int64(threshold.MaxOverridePercent))).Div(decimal.NewFromInt(100))
				pl.hasCeiling = true
			}
		}
		pl.warnBoundary = pl.limit.Mul(decimal.NewFromInt(int64(warnPct))).Div(decimal.NewFromInt(100))
		return pl, nil

	case threshold != nil:
		pl := &periodLimit{
			limit:         threshold.MaxQuantity,
			period:        threshold.PeriodType,
			warnBoundary:  threshold.WarningBoundary(),
			allowOverride: threshold.AllowOverride,
			source:        threshold.Name,
		}
		pl.ceiling, pl.hasCeiling = threshold.OverrideCeiling()
		return pl, nil
	}

	return nil, nil
}
