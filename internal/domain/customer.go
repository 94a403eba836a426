package domain

import "time"

// ApprovalStatus is the qualification state of a transacting party.
type ApprovalStatus string

const (
	ApprovalPending               ApprovalStatus = "pending"
	ApprovalApproved              ApprovalStatus = "approved"
	ApprovalConditionallyApproved ApprovalStatus = "conditionally_approved"
	ApprovalRejected              ApprovalStatus = "rejected"
	ApprovalSuspended             ApprovalStatus = "suspended"
)

// Customer is reference data looked up, never mutated, during validation.
type Customer struct {
	ID                  string         `db:"id" json:"id"`
	Name                string         `db:"name" json:"name"`
	ApprovalStatus      ApprovalStatus `db:"approval_status" json:"approval_status"`
	IsSuspended         bool           `db:"is_suspended" json:"is_suspended"`
	SuspensionReason    string         `db:"suspension_reason" json:"suspension_reason"`
	ReverificationDueAt *time.Time     `db:"reverification_due_at" json:"reverification_due_at,omitempty"`
	CreatedAt           time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at" json:"updated_at"`
}

// CanTransact is true iff the customer is approved (conditional approval
// counts) and not suspended.
func (c *Customer) CanTransact() bool {
	if c.IsSuspended {
		return false
	}
	return c.ApprovalStatus == ApprovalApproved || c.ApprovalStatus == ApprovalConditionallyApproved
}
