package validation

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/veridist/compliance-engine/internal/domain"
)

// lineResolution is the successful outcome of licence resolution for one
// line: the winning mapping and the licence that backs it. The engine
// reuses it for the per-period accumulation.
type lineResolution struct {
	mapping domain.SubstanceMapping
	licence *domain.Licence
}

// candidate pairs a mapping with its loaded licence during resolution.
type candidate struct {
	mapping domain.SubstanceMapping
	licence *domain.Licence
}

// resolveLine finds the licence authorization covering one transaction line
// and checks the winning mapping's per-transaction quantity limit.
func (e *Engine) resolveLine(ctx context.Context, tx *domain.Transaction, line domain.TransactionLine) ([]domain.Violation, *lineResolution, error) {
	lineNo := line.LineNumber

	mappings, err := e.licences.GetActiveMappingsForSubstance(ctx, tx.CustomerID, line.SubstanceCode, tx.TransactionDate)
	if err != nil {
		return nil, nil, fmt.Errorf("mapping lookup for %s: %w", line.SubstanceCode, err)
	}

	covering := mappings[:0:0]
	for _, m := range mappings {
		if m.CoversDate(tx.TransactionDate) {
			covering = append(covering, m)
		}
	}
	if len(covering) == 0 {
		return []domain.Violation{{
			Code:          domain.CodeLicenceMissing,
			Message:       fmt.Sprintf("no licence covers substance %s on %s", line.SubstanceCode, tx.TransactionDate.Format("2006-01-02")),
			Severity:      domain.SeverityCritical,
			LineNumber:    &lineNo,
			SubstanceCode: line.SubstanceCode,
			CanOverride:   true,
		}}, nil, nil
	}

	candidates := make([]candidate, 0, len(covering))
	for _, m := range covering {
		lic, err := e.licences.GetLicence(ctx, m.LicenceID)
		if err != nil {
			return nil, nil, fmt.Errorf("licence lookup %s: %w", m.LicenceID, err)
		}
		candidates = append(candidates, candidate{mapping: m, licence: lic})
	}

	valid := make([]candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.licence.Status == domain.LicenceValid {
			valid = append(valid, c)
		}
	}

	if len(valid) == 0 {
		best := pickBest(candidates)
		return []domain.Violation{licenceStatusViolation(best, line)}, nil, nil
	}

	winner := pickBest(valid)

	required, err := e.impliedActivities(ctx, tx, line.SubstanceCode)
	if err != nil {
		return nil, nil, err
	}
	if !winner.licence.PermittedActivities.Has(required) {
		return []domain.Violation{{
			Code:          domain.CodeSubstanceNotAuthorized,
			Message:       fmt.Sprintf("licence %s does not permit %s for substance %s", winner.licence.ID, required, line.SubstanceCode),
			Severity:      domain.SeverityCritical,
			LineNumber:    &lineNo,
			SubstanceCode: line.SubstanceCode,
			CanOverride:   true,
		}}, nil, nil
	}

	res := &lineResolution{mapping: winner.mapping, licence: winner.licence}

	violations, err := e.checkTransactionLimit(ctx, tx, line, winner.mapping)
	if err != nil {
		return nil, nil, err
	}
	return violations, res, nil
}

// checkTransactionLimit enforces MaxQuantityPerTransaction on the winning
// mapping. Exceeding the limit within the override allowance is a warning;
// beyond it the violation turns critical.
func (e *Engine) checkTransactionLimit(ctx context.Context, tx *domain.Transaction, line domain.TransactionLine, mapping domain.SubstanceMapping) ([]domain.Violation, error) {
	if mapping.MaxQuantityPerTransaction == nil {
		return nil, nil
	}
	limit := *mapping.MaxQuantityPerTransaction
	if line.BaseQuantity.LessThanOrEqual(limit) {
		return nil, nil
	}

	threshold, err := e.thresholds.GetThreshold(ctx, line.SubstanceCode, tx.TransactionDate)
	if err != nil {
		return nil, fmt.Errorf("threshold lookup for %s: %w", line.SubstanceCode, err)
	}

	allowOverride := mapping.AllowOverride
	ceiling := decimal.Decimal{}
	hasCeiling := false
	if threshold != nil {
		allowOverride = allowOverride || threshold.AllowOverride
		if pct := threshold.MaxOverridePercent; pct > 0 {
			ceiling = limit.Mul(decimal.NewFromInt(int64(pct))).Div(decimal.NewFromInt(100))
			hasCeiling = true
		}
	}

	withinAllowance := hasCeiling && line.BaseQuantity.LessThanOrEqual(ceiling)
	severity := domain.SeverityCritical
	if withinAllowance {
		severity = domain.SeverityWarning
	}
	canOverride := allowOverride && (!hasCeiling || line.BaseQuantity.LessThanOrEqual(ceiling))
	if severity == domain.SeverityWarning {
		canOverride = true
	}

	lineNo := line.LineNumber
	return []domain.Violation{{
		Code:          domain.CodeThresholdExceeded,
		Message:       fmt.Sprintf("line %d quantity %s exceeds per-transaction limit %s for substance %s", lineNo, line.BaseQuantity, limit, line.SubstanceCode),
		Severity:      severity,
		LineNumber:    &lineNo,
		SubstanceCode: line.SubstanceCode,
		CanOverride:   canOverride,
	}}, nil
}

// impliedActivities derives the licence activities a transaction requires:
// inbound means import, outbound across a border means export, everything
// else is distribution. Precursor-classified substances additionally
// require the precursor handling activity as of the transaction date.
func (e *Engine) impliedActivities(ctx context.Context, tx *domain.Transaction, substanceCode string) (domain.Activity, error) {
	var required domain.Activity
	switch tx.Direction {
	case domain.DirectionInbound:
		required = domain.ActivityImport
	case domain.DirectionOutbound:
		if tx.CrossesBorder() {
			required = domain.ActivityExport
		} else {
			required = domain.ActivityDistribute
		}
	default:
		required = domain.ActivityDistribute
	}

	classification, err := e.substances.GetClassification(ctx, substanceCode, tx.TransactionDate)
	if err != nil {
		return 0, fmt.Errorf("classification lookup for %s: %w", substanceCode, err)
	}
	if classification.IsPrecursor() {
		required = required.Add(domain.ActivityHandlePrecursors)
	}
	return required, nil
}

// licenceStatusViolation reports the best non-valid candidate. Expired and
// suspended licences are overridable; a revoked licence is terminal and
// yields a non-overridable violation.
func licenceStatusViolation(c candidate, line domain.TransactionLine) domain.Violation {
	lineNo := line.LineNumber
	v := domain.Violation{
		Severity:      domain.SeverityCritical,
		LineNumber:    &lineNo,
		SubstanceCode: line.SubstanceCode,
		CanOverride:   true,
	}
	switch c.licence.Status {
	case domain.LicenceExpired:
		v.Code = domain.CodeLicenceExpired
		v.Message = fmt.Sprintf("licence %s covering substance %s is expired", c.licence.ID, line.SubstanceCode)
	case domain.LicenceRevoked:
		v.Code = domain.CodeLicenceSuspended
		v.Message = fmt.Sprintf("licence %s covering substance %s is revoked", c.licence.ID, line.SubstanceCode)
		v.CanOverride = false
	default:
		v.Code = domain.CodeLicenceSuspended
		v.Message = fmt.Sprintf("licence %s covering substance %s is suspended", c.licence.ID, line.SubstanceCode)
	}
	return v
}

// pickBest applies the mapping tie-break: latest effective date, then the
// larger per-transaction limit (absent limit counts as unlimited), then
// lowest mapping id for determinism.
func pickBest(candidates []candidate) candidate {
	sorted := make([]candidate, len(candidates))
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool {
		mi, mj := sorted[i].mapping, sorted[j].mapping
		if !mi.EffectiveDate.Equal(mj.EffectiveDate) {
			return mi.EffectiveDate.After(mj.EffectiveDate)
		}
		li, lj := perTxLimit(mi), perTxLimit(mj)
		if !li.Equal(lj) {
			return li.GreaterThan(lj)
		}
		return mi.ID < mj.ID
	})
	return sorted[0]
}

// perTxLimit treats an absent limit as effectively unlimited for tie-break
// ordering.
func perTxLimit(m domain.SubstanceMapping) decimal.Decimal {
	if m.MaxQuantityPerTransaction == nil {
		return decimal.NewFromInt(1 << 50)
	}
	return *m.MaxQuantityPerTransaction
}
