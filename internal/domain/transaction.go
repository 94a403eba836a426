package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies the commercial event being validated.
type TransactionType string

const (
	TransactionOrder    TransactionType = "order"
	TransactionShipment TransactionType = "shipment"
	TransactionReturn   TransactionType = "return"
	TransactionTransfer TransactionType = "transfer"
)

// Direction indicates whether goods cross the organisation boundary.
type Direction string

const (
	DirectionInternal Direction = "internal"
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// ValidationStatus is the overall compliance outcome of a transaction.
type ValidationStatus string

const (
	ValidationNotValidated         ValidationStatus = "not_validated"
	ValidationPassed               ValidationStatus = "passed"
	ValidationFailed               ValidationStatus = "failed"
	ValidationApprovedWithOverride ValidationStatus = "approved_with_override"
	ValidationRejectedOverride     ValidationStatus = "rejected_override"
)

// OverrideStatus tracks the override workflow state machine.
// not_required and approved/rejected are terminal; only pending may transition.
type OverrideStatus string

const (
	OverrideNotRequired OverrideStatus = "not_required"
	OverridePending     OverrideStatus = "pending"
	OverrideApproved    OverrideStatus = "approved"
	OverrideRejected    OverrideStatus = "rejected"
)

// TransactionLine is a single substance position on a transaction.
// BaseQuantity is the quantity normalised to the substance base unit (grams).
type TransactionLine struct {
	LineNumber    int             `db:"line_number" json:"line_number"`
	SubstanceCode string          `db:"substance_code" json:"substance_code"`
	Quantity      decimal.Decimal `db:"quantity" json:"quantity"`
	Unit          string          `db:"unit" json:"unit"`
	BaseQuantity  decimal.Decimal `db:"base_quantity" json:"base_quantity"`
}

// Transaction is the unit of compliance validation. It owns its lines and,
// once validated, its violations and licence usages. Rows are never deleted,
// only superseded by a new submission.
type Transaction struct {
	ID                      string            `db:"id" json:"id"`
	ExternalReference       string            `db:"external_reference" json:"external_reference"`
	Type                    TransactionType   `db:"type" json:"type"`
	Direction               Direction         `db:"direction" json:"direction"`
	CustomerID              string            `db:"customer_id" json:"customer_id"`
	OriginCountry           string            `db:"origin_country" json:"origin_country"`
	DestinationCountry      string            `db:"destination_country" json:"destination_country"`
	TransactionDate         time.Time         `db:"transaction_date" json:"transaction_date"`
	Lines                   []TransactionLine `db:"-" json:"lines"`
	TotalBaseQuantity       decimal.Decimal   `db:"total_base_quantity" json:"total_base_quantity"`
	ValidationStatus        ValidationStatus  `db:"validation_status" json:"validation_status"`
	OverrideStatus          OverrideStatus    `db:"override_status" json:"override_status"`
	OverrideBy              *string           `db:"override_by" json:"override_by,omitempty"`
	OverrideAt              *time.Time        `db:"override_at" json:"override_at,omitempty"`
	OverrideJustification   *string           `db:"override_justification" json:"override_justification,omitempty"`
	OverrideRejectionReason *string           `db:"override_rejection_reason" json:"override_rejection_reason,omitempty"`
	RowVersion              int64             `db:"row_version" json:"row_version"`
	CreatedAt               time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt               time.Time         `db:"updated_at" json:"updated_at"`
}

// CrossesBorder reports whether cross-border permit rules apply.
// Internal movements never do, whatever the country fields say.
func (t *Transaction) CrossesBorder() bool {
	if t.Direction != DirectionInbound && t.Direction != DirectionOutbound {
		return false
	}
	return t.DestinationCountry != "" && t.OriginCountry != t.DestinationCountry
}

// QuantityForSubstance sums the base-unit quantity of all lines carrying the
// given substance.
func (t *Transaction) QuantityForSubstance(code string) decimal.Decimal {
	total := decimal.Zero
	for _, line := range t.Lines {
		if line.SubstanceCode == code {
			total = total.Add(line.BaseQuantity)
		}
	}
	return total
}

// SubstanceCodes returns the distinct substance codes in line order.
func (t *Transaction) SubstanceCodes() []string {
	seen := make(map[string]struct{}, len(t.Lines))
	codes := make([]string, 0, len(t.Lines))
	for _, line := range t.Lines {
		if _, ok := seen[line.SubstanceCode]; ok {
			continue
		}
		seen[line.SubstanceCode] = struct{}{}
		codes = append(codes, line.SubstanceCode)
	}
	return codes
}

// LicenceUsage records which licence covered which lines and quantity,
// kept for audit and usage reporting.
type LicenceUsage struct {
	ID            string          `db:"id" json:"id"`
	TransactionID string          `db:"transaction_id" json:"transaction_id"`
	LicenceID     string          `db:"licence_id" json:"licence_id"`
	MappingID     string          `db:"mapping_id" json:"mapping_id"`
	SubstanceCode string          `db:"substance_code" json:"substance_code"`
	LineNumbers   []int           `db:"-" json:"line_numbers"`
	Quantity      decimal.Decimal `db:"quantity" json:"quantity"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}
