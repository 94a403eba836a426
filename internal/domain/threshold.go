package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PeriodType defines the rolling window of a period-based quantity limit.
type PeriodType string

const (
	PeriodMonthly   PeriodType = "monthly"
	PeriodQuarterly PeriodType = "quarterly"
	PeriodAnnual    PeriodType = "annual"
)

// WindowStart returns the inclusive start of the rolling period ending at
// the given date: same day previous month, 3 months back, or 1 year back.
func (p PeriodType) WindowStart(end time.Time) time.Time {
	switch p {
	case PeriodQuarterly:
		return end.AddDate(0, -3, 0)
	case PeriodAnnual:
		return end.AddDate(-1, 0, 0)
	default:
		return end.AddDate(0, -1, 0)
	}
}

// ComplianceThreshold is a named quantity limit scoped to a substance (or
// customer category) and period, with warning and override parameters.
type ComplianceThreshold struct {
	ID                 string          `db:"id" json:"id"`
	Name               string          `db:"name" json:"name"`
	SubstanceCode      string          `db:"substance_code" json:"substance_code"`
	CustomerCategory   string          `db:"customer_category" json:"customer_category"`
	PeriodType         PeriodType      `db:"period_type" json:"period_type"`
	MaxQuantity        decimal.Decimal `db:"max_quantity" json:"max_quantity"`
	WarningPercent     int             `db:"warning_percent" json:"warning_percent"`
	AllowOverride      bool            `db:"allow_override" json:"allow_override"`
	MaxOverridePercent int             `db:"max_override_percent" json:"max_override_percent"`
	ActiveFrom         time.Time       `db:"active_from" json:"active_from"`
	ActiveUntil        *time.Time      `db:"active_until" json:"active_until,omitempty"`
	CreatedAt          time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at" json:"updated_at"`
}

// DefaultWarningPercent applies when a threshold record leaves the warning
// boundary unset.
const DefaultWarningPercent = 80

// WarningBoundary returns the quantity above which a warning is raised.
func (t *ComplianceThreshold) WarningBoundary() decimal.Decimal {
	pct := t.WarningPercent
	if pct <= 0 {
		pct = DefaultWarningPercent
	}
	return t.MaxQuantity.Mul(decimal.NewFromInt(int64(pct))).Div(decimal.NewFromInt(100))
}

// OverrideCeiling returns the maximum quantity still eligible for override
// and whether a ceiling is configured at all. The ceiling is inclusive;
// above it the violation is not overridable whatever AllowOverride says.
func (t *ComplianceThreshold) OverrideCeiling() (decimal.Decimal, bool) {
	if t.MaxOverridePercent <= 0 {
		return decimal.Zero, false
	}
	return t.MaxQuantity.Mul(decimal.NewFromInt(int64(t.MaxOverridePercent))).Div(decimal.NewFromInt(100)), true
}

// ActiveOn reports whether the threshold applies on the given date.
func (t *ComplianceThreshold) ActiveOn(date time.Time) bool {
	if date.Before(t.ActiveFrom) {
		return false
	}
	if t.ActiveUntil != nil && date.After(*t.ActiveUntil) {
		return false
	}
	return true
}
