package validation

import (
	"github.com/veridist/compliance-engine/internal/domain"
)

// Result is the outcome of a validation run. Violations keep the fixed
// evaluation order (customer, per-line licence and transaction limits,
// period thresholds, cross-border) so repeated runs over unchanged
// reference data produce identical output.
type Result struct {
	TransactionID    string                  `json:"transaction_id"`
	Status           domain.ValidationStatus `json:"status"`
	CanProceed       bool                    `json:"can_proceed"`
	RequiresOverride bool                    `json:"requires_override"`
	Violations       []domain.Violation      `json:"violations"`
	LicenceUsages    []domain.LicenceUsage   `json:"licence_usages"`
}

// HasCritical reports whether any violation carries critical severity.
func (r *Result) HasCritical() bool {
	for i := range r.Violations {
		if r.Violations[i].Severity == domain.SeverityCritical {
			return true
		}
	}
	return false
}

// HasFatal reports whether any violation is critical and non-overridable.
func (r *Result) HasFatal() bool {
	for i := range r.Violations {
		if r.Violations[i].IsFatal() {
			return true
		}
	}
	return false
}
