package domain

import "time"

// ViolationCode is the closed taxonomy of rule failures.
type ViolationCode string

const (
	CodeCustomerNotApproved    ViolationCode = "CUSTOMER_NOT_APPROVED"
	CodeCustomerSuspended      ViolationCode = "CUSTOMER_SUSPENDED"
	CodeLicenceMissing         ViolationCode = "LICENCE_MISSING"
	CodeLicenceExpired         ViolationCode = "LICENCE_EXPIRED"
	CodeLicenceSuspended       ViolationCode = "LICENCE_SUSPENDED"
	CodeSubstanceNotAuthorized ViolationCode = "SUBSTANCE_NOT_AUTHORIZED"
	CodeThresholdExceeded      ViolationCode = "THRESHOLD_EXCEEDED"
	CodeMissingPermit          ViolationCode = "MISSING_PERMIT"
	CodeNotFound               ViolationCode = "NOT_FOUND"
	CodeValidationError        ViolationCode = "VALIDATION_ERROR"
)

// Severity of a violation. Warnings never block; criticals block unless
// overridden.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Violation is a single rule failure attached to a transaction. Rule
// failures are values, never errors; only infrastructure faults propagate
// as errors.
type Violation struct {
	ID            string        `db:"id" json:"id"`
	TransactionID string        `db:"transaction_id" json:"transaction_id"`
	Code          ViolationCode `db:"code" json:"code"`
	Message       string        `db:"message" json:"message"`
	Severity      Severity      `db:"severity" json:"severity"`
	LineNumber    *int          `db:"line_number" json:"line_number,omitempty"`
	SubstanceCode string        `db:"substance_code" json:"substance_code,omitempty"`
	CanOverride   bool          `db:"can_override" json:"can_override"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
}

// IsFatal reports whether the violation blocks the transaction with no
// override path.
func (v *Violation) IsFatal() bool {
	return v.Severity == SeverityCritical && !v.CanOverride
}
