package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestActivityHas(t *testing.T) {
	granted := ActivityPossess.Add(ActivityStore).Add(ActivityDistribute)

	assert.True(t, granted.Has(ActivityPossess))
	assert.True(t, granted.Has(ActivityPossess.Add(ActivityDistribute)))
	assert.False(t, granted.Has(ActivityImport))
	assert.False(t, granted.Has(ActivityDistribute.Add(ActivityExport)))
}

func TestActivityValues(t *testing.T) {
	// Persisted by the upstream ERP contract; a change here corrupts data.
	assert.Equal(t, Activity(1), ActivityPossess)
	assert.Equal(t, Activity(2), ActivityStore)
	assert.Equal(t, Activity(4), ActivityDistribute)
	assert.Equal(t, Activity(8), ActivityImport)
	assert.Equal(t, Activity(16), ActivityExport)
	assert.Equal(t, Activity(32), ActivityManufacture)
	assert.Equal(t, Activity(64), ActivityHandlePrecursors)
}

func TestActivityString(t *testing.T) {
	assert.Equal(t, "none", Activity(0).String())
	assert.Equal(t, "import|export", ActivityImport.Add(ActivityExport).String())
}

func TestPeriodWindowStart(t *testing.T) {
	end := date(2026, time.June, 15)

	assert.Equal(t, date(2026, time.May, 15), PeriodMonthly.WindowStart(end))
	assert.Equal(t, date(2026, time.March, 15), PeriodQuarterly.WindowStart(end))
	assert.Equal(t, date(2025, time.June, 15), PeriodAnnual.WindowStart(end))
}

func TestCustomerCanTransact(t *testing.T) {
	tests := []struct {
		name     string
		customer Customer
		want     bool
	}{
		{"approved", Customer{ApprovalStatus: ApprovalApproved}, true},
		{"conditionally approved", Customer{ApprovalStatus: ApprovalConditionallyApproved}, true},
		{"pending", Customer{ApprovalStatus: ApprovalPending}, false},
		{"rejected", Customer{ApprovalStatus: ApprovalRejected}, false},
		{"approved but suspended", Customer{ApprovalStatus: ApprovalApproved, IsSuspended: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.customer.CanTransact())
		})
	}
}

func TestTransactionCrossesBorder(t *testing.T) {
	tests := []struct {
		name string
		tx   Transaction
		want bool
	}{
		{"internal never crosses", Transaction{Direction: DirectionInternal, OriginCountry: "NL", DestinationCountry: "DE"}, false},
		{"outbound different countries", Transaction{Direction: DirectionOutbound, OriginCountry: "NL", DestinationCountry: "DE"}, true},
		{"inbound different countries", Transaction{Direction: DirectionInbound, OriginCountry: "BE", DestinationCountry: "NL"}, true},
		{"outbound same country", Transaction{Direction: DirectionOutbound, OriginCountry: "NL", DestinationCountry: "NL"}, false},
		{"outbound destination unknown", Transaction{Direction: DirectionOutbound, OriginCountry: "NL"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.tx.CrossesBorder())
		})
	}
}

func TestTransactionQuantityForSubstance(t *testing.T) {
	tx := Transaction{Lines: []TransactionLine{
		{LineNumber: 1, SubstanceCode: "MORPH", BaseQuantity: decimal.NewFromInt(100)},
		{LineNumber: 2, SubstanceCode: "CODE", BaseQuantity: decimal.NewFromInt(50)},
		{LineNumber: 3, SubstanceCode: "MORPH", BaseQuantity: decimal.NewFromInt(25)},
	}}

	assert.True(t, tx.QuantityForSubstance("MORPH").Equal(decimal.NewFromInt(125)))
	assert.True(t, tx.QuantityForSubstance("CODE").Equal(decimal.NewFromInt(50)))
	assert.True(t, tx.QuantityForSubstance("NONE").IsZero())
	assert.Equal(t, []string{"MORPH", "CODE"}, tx.SubstanceCodes())
}

func TestSubstanceMappingCoversDate(t *testing.T) {
	expiry := date(2026, time.December, 31)
	m := SubstanceMapping{EffectiveDate: date(2026, time.January, 1), ExpiryDate: &expiry}

	assert.False(t, m.CoversDate(date(2025, time.December, 31)))
	assert.True(t, m.CoversDate(date(2026, time.January, 1)))
	assert.True(t, m.CoversDate(date(2026, time.December, 31)), "expiry bound is inclusive")
	assert.False(t, m.CoversDate(date(2027, time.January, 1)))

	open := SubstanceMapping{EffectiveDate: date(2026, time.January, 1)}
	assert.True(t, open.CoversDate(date(2030, time.June, 1)))
}

func TestCrossBorderPermitCoversDate(t *testing.T) {
	expiry := date(2026, time.June, 30)
	p := CrossBorderPermit{Status: LicenceValid, IssuedAt: date(2026, time.January, 1), ExpiresAt: &expiry}

	assert.True(t, p.CoversDate(date(2026, time.March, 1)))
	assert.True(t, p.CoversDate(expiry))
	assert.False(t, p.CoversDate(date(2026, time.July, 1)))

	p.Status = LicenceSuspended
	assert.False(t, p.CoversDate(date(2026, time.March, 1)))
}

func TestClassificationTimelineAsOf(t *testing.T) {
	timeline := NewClassificationTimeline(ClassificationPrecursor3, []Reclassification{
		{SubstanceCode: "EPHED", Classification: ClassificationPrecursor1, EffectiveDate: date(2026, time.July, 1)},
		{SubstanceCode: "EPHED", Classification: ClassificationPrecursor2, EffectiveDate: date(2026, time.March, 1)},
	})

	assert.Equal(t, ClassificationPrecursor3, timeline.AsOf(date(2026, time.February, 1)))
	assert.Equal(t, ClassificationPrecursor2, timeline.AsOf(date(2026, time.March, 1)))
	assert.Equal(t, ClassificationPrecursor2, timeline.AsOf(date(2026, time.June, 30)))
	assert.Equal(t, ClassificationPrecursor1, timeline.AsOf(date(2026, time.July, 1)))
	assert.Equal(t, ClassificationPrecursor1, timeline.AsOf(date(2030, time.January, 1)))
}

func TestClassificationIsPrecursor(t *testing.T) {
	assert.True(t, ClassificationPrecursor1.IsPrecursor())
	assert.True(t, ClassificationPrecursor3.IsPrecursor())
	assert.False(t, ClassificationOpiumListI.IsPrecursor())
	assert.False(t, ClassificationUnscheduled.IsPrecursor())
}

func TestThresholdBoundaries(t *testing.T) {
	threshold := ComplianceThreshold{
		MaxQuantity:        decimal.NewFromInt(1000),
		WarningPercent:     75,
		MaxOverridePercent: 110,
	}

	assert.True(t, threshold.WarningBoundary().Equal(decimal.NewFromInt(750)))

	ceiling, ok := threshold.OverrideCeiling()
	require.True(t, ok)
	assert.True(t, ceiling.Equal(decimal.NewFromInt(1100)))

	threshold.WarningPercent = 0
	assert.True(t, threshold.WarningBoundary().Equal(decimal.NewFromInt(800)), "defaults to %d%%", DefaultWarningPercent)

	threshold.MaxOverridePercent = 0
	_, ok = threshold.OverrideCeiling()
	assert.False(t, ok, "no ceiling configured means no cap")
}

func TestThresholdActiveOn(t *testing.T) {
	until := date(2026, time.June, 30)
	threshold := ComplianceThreshold{ActiveFrom: date(2026, time.January, 1), ActiveUntil: &until}

	assert.False(t, threshold.ActiveOn(date(2025, time.December, 31)))
	assert.True(t, threshold.ActiveOn(date(2026, time.January, 1)))
	assert.True(t, threshold.ActiveOn(until))
	assert.False(t, threshold.ActiveOn(date(2026, time.July, 1)))
}

func TestViolationIsFatal(t *testing.T) {
	fatal := Violation{Severity: SeverityCritical, CanOverride: false}
	overridable := Violation{Severity: SeverityCritical, CanOverride: true}
	warning := Violation{Severity: SeverityWarning, CanOverride: true}

	assert.True(t, fatal.IsFatal())
	assert.False(t, overridable.IsFatal())
	assert.False(t, warning.IsFatal())
}
