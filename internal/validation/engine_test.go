package validation

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/veridist/compliance-engine/internal/domain"
)

// In-memory fixtures for the engine's read ports.

type fakeCustomers struct {
	customers map[string]*domain.Customer
}

func (f *fakeCustomers) GetComplianceStatus(_ context.Context, customerID string) (*domain.Customer, error) {
	customer, ok := f.customers[customerID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return customer, nil
}

type fakeLicences struct {
	mappings map[string][]domain.SubstanceMapping
	licences map[string]*domain.Licence
	permits  []domain.CrossBorderPermit
}

func (f *fakeLicences) GetActiveMappingsForSubstance(_ context.Context, _, substanceCode string, _ time.Time) ([]domain.SubstanceMapping, error) {
	return f.mappings[substanceCode], nil
}

func (f *fakeLicences) GetLicence(_ context.Context, licenceID string) (*domain.Licence, error) {
	licence, ok := f.licences[licenceID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return licence, nil
}

func (f *fakeLicences) FindCrossBorderPermit(_ context.Context, _, origin, destination string, _ time.Time) (*domain.CrossBorderPermit, error) {
	for i := range f.permits {
		if f.permits[i].OriginCountry == origin && f.permits[i].DestinationCountry == destination {
			return &f.permits[i], nil
		}
	}
	return nil, nil
}

type fakeHistory struct {
	sums     map[string]decimal.Decimal
	lastFrom time.Time
	lastTo   time.Time
}

func (f *fakeHistory) SumQuantity(_ context.Context, customerID, substanceCode string, from, to time.Time, _ []domain.ValidationStatus) (decimal.Decimal, error) {
	f.lastFrom, f.lastTo = from, to
	if sum, ok := f.sums[customerID+"/"+substanceCode]; ok {
		return sum, nil
	}
	return decimal.Zero, nil
}

type fakeThresholds struct {
	thresholds map[string]*domain.ComplianceThreshold
}

func (f *fakeThresholds) GetThreshold(_ context.Context, substanceCode string, _ time.Time) (*domain.ComplianceThreshold, error) {
	return f.thresholds[substanceCode], nil
}

type fakeSubstances struct {
	classes map[string]domain.Classification
}

func (f *fakeSubstances) GetClassification(_ context.Context, substanceCode string, _ time.Time) (domain.Classification, error) {
	if class, ok := f.classes[substanceCode]; ok {
		return class, nil
	}
	return domain.ClassificationUnscheduled, nil
}

// fixture is a fully wired engine over mutable in-memory data. The default
// state is one approved customer holding one valid licence covering MORPH
// with no quantity limits.
type fixture struct {
	customers  *fakeCustomers
	licences   *fakeLicences
	history    *fakeHistory
	thresholds *fakeThresholds
	substances *fakeSubstances
	engine     *Engine
}

const (
	custID = "CUST-1"
	licID  = "LIC-1"
	mapID  = "MAP-1"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func decPtr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func newFixture() *fixture {
	f := &fixture{
		customers: &fakeCustomers{customers: map[string]*domain.Customer{
			custID: {ID: custID, Name: "Medifarma BV", ApprovalStatus: domain.ApprovalApproved},
		}},
		licences: &fakeLicences{
			mappings: map[string][]domain.SubstanceMapping{
				"MORPH": {{
					ID:            mapID,
					LicenceID:     licID,
					SubstanceCode: "MORPH",
					EffectiveDate: day(2025, time.January, 1),
				}},
			},
			licences: map[string]*domain.Licence{
				licID: {
					ID:       licID,
					HolderID: custID,
					Status:   domain.LicenceValid,
					IssuedAt: day(2025, time.January, 1),
					PermittedActivities: domain.ActivityPossess.
						Add(domain.ActivityStore).
						Add(domain.ActivityDistribute).
						Add(domain.ActivityImport).
						Add(domain.ActivityExport).
						Add(domain.ActivityHandlePrecursors),
				},
			},
		},
		history:    &fakeHistory{sums: map[string]decimal.Decimal{}},
		thresholds: &fakeThresholds{thresholds: map[string]*domain.ComplianceThreshold{}},
		substances: &fakeSubstances{classes: map[string]domain.Classification{
			"MORPH": domain.ClassificationOpiumListI,
		}},
	}
	f.engine = NewEngine(f.customers, f.licences, f.history, f.thresholds, f.substances, zap.NewNop())
	return f
}

func newTx(quantity int64) *domain.Transaction {
	return &domain.Transaction{
		ID:              "TX-1",
		Type:            domain.TransactionOrder,
		Direction:       domain.DirectionOutbound,
		CustomerID:      custID,
		OriginCountry:   "NL",
		TransactionDate: day(2026, time.June, 15),
		Lines: []domain.TransactionLine{
			{LineNumber: 1, SubstanceCode: "MORPH", Quantity: dec(quantity), Unit: "g", BaseQuantity: dec(quantity)},
		},
	}
}

func findViolation(t *testing.T, violations []domain.Violation, code domain.ViolationCode) domain.Violation {
	t.Helper()
	for _, v := range violations {
		if v.Code == code {
			return v
		}
	}
	t.Fatalf("no %s violation in %v", code, violations)
	return domain.Violation{}
}

func TestEvaluateCleanTransactionPasses(t *testing.T) {
	f := newFixture()

	result, err := f.engine.Evaluate(context.Background(), newTx(100))
	require.NoError(t, err)

	assert.Equal(t, domain.ValidationPassed, result.Status)
	assert.True(t, result.CanProceed)
	assert.False(t, result.RequiresOverride)
	assert.Empty(t, result.Violations)

	require.Len(t, result.LicenceUsages, 1)
	assert.Equal(t, licID, result.LicenceUsages[0].LicenceID)
	assert.Equal(t, mapID, result.LicenceUsages[0].MappingID)
	assert.Equal(t, []int{1}, result.LicenceUsages[0].LineNumbers)
	assert.True(t, result.LicenceUsages[0].Quantity.Equal(dec(100)))
}

func TestEvaluateExpiredLicence(t *testing.T) {
	f := newFixture()
	f.licences.licences[licID].Status = domain.LicenceExpired

	result, err := f.engine.Evaluate(context.Background(), newTx(100))
	require.NoError(t, err)

	v := findViolation(t, result.Violations, domain.CodeLicenceExpired)
	assert.Equal(t, domain.SeverityCritical, v.Severity)
	assert.True(t, v.CanOverride)
	assert.Equal(t, domain.ValidationFailed, result.Status)
	assert.False(t, result.CanProceed)
	assert.True(t, result.RequiresOverride)
	assert.Empty(t, result.LicenceUsages, "no usage recorded without a valid licence")
}

func TestEvaluateSuspendedCustomer(t *testing.T) {
	f := newFixture()
	f.customers.customers[custID].IsSuspended = true
	f.customers.customers[custID].SuspensionReason = "Under investigation"

	result, err := f.engine.Evaluate(context.Background(), newTx(100))
	require.NoError(t, err)

	v := findViolation(t, result.Violations, domain.CodeCustomerSuspended)
	assert.Contains(t, v.Message, "Under investigation")
	assert.Equal(t, domain.SeverityCritical, v.Severity)
	assert.True(t, v.CanOverride)
	assert.False(t, result.CanProceed)
}

func TestEvaluateSuspensionTakesPrecedenceOverApprovalState(t *testing.T) {
	f := newFixture()
	f.customers.customers[custID].ApprovalStatus = domain.ApprovalPending
	f.customers.customers[custID].IsSuspended = true

	result, err := f.engine.Evaluate(context.Background(), newTx(100))
	require.NoError(t, err)

	findViolation(t, result.Violations, domain.CodeCustomerSuspended)
	for _, v := range result.Violations {
		assert.NotEqual(t, domain.CodeCustomerNotApproved, v.Code)
	}
}

func TestEvaluatePendingCustomerWarnsButProceeds(t *testing.T) {
	f := newFixture()
	f.customers.customers[custID].ApprovalStatus = domain.ApprovalPending

	result, err := f.engine.Evaluate(context.Background(), newTx(100))
	require.NoError(t, err)

	v := findViolation(t, result.Violations, domain.CodeCustomerNotApproved)
	assert.Equal(t, domain.SeverityWarning, v.Severity)
	assert.True(t, v.CanOverride)
	assert.Equal(t, domain.ValidationPassed, result.Status)
	assert.True(t, result.CanProceed)
	assert.False(t, result.RequiresOverride)
}

func TestEvaluateUnknownCustomerIsFatal(t *testing.T) {
	f := newFixture()

	tx := newTx(100)
	tx.CustomerID = "CUST-MISSING"
	result, err := f.engine.Evaluate(context.Background(), tx)
	require.NoError(t, err)

	v := findViolation(t, result.Violations, domain.CodeNotFound)
	assert.True(t, v.IsFatal())
	assert.Equal(t, domain.ValidationFailed, result.Status)
	assert.False(t, result.CanProceed)
	assert.False(t, result.RequiresOverride, "no override path past a missing customer")
}

func TestEvaluateMissingLicence(t *testing.T) {
	f := newFixture()

	tx := newTx(100)
	tx.Lines[0].SubstanceCode = "FENT"
	result, err := f.engine.Evaluate(context.Background(), tx)
	require.NoError(t, err)

	v := findViolation(t, result.Violations, domain.CodeLicenceMissing)
	assert.Equal(t, domain.SeverityCritical, v.Severity)
	assert.True(t, v.CanOverride)
	require.NotNil(t, v.LineNumber)
	assert.Equal(t, 1, *v.LineNumber)
	assert.Equal(t, "FENT", v.SubstanceCode)
}

func TestEvaluateRevokedLicenceIsNotOverridable(t *testing.T) {
	f := newFixture()
	f.licences.licences[licID].Status = domain.LicenceRevoked

	result, err := f.engine.Evaluate(context.Background(), newTx(100))
	require.NoError(t, err)

	v := findViolation(t, result.Violations, domain.CodeLicenceSuspended)
	assert.Contains(t, v.Message, "revoked")
	assert.True(t, v.IsFatal())
	assert.Equal(t, domain.ValidationFailed, result.Status)
	assert.False(t, result.RequiresOverride)
}

func TestEvaluateSuspendedLicenceIsOverridable(t *testing.T) {
	f := newFixture()
	f.licences.licences[licID].Status = domain.LicenceSuspended

	result, err := f.engine.Evaluate(context.Background(), newTx(100))
	require.NoError(t, err)

	v := findViolation(t, result.Violations, domain.CodeLicenceSuspended)
	assert.Contains(t, v.Message, "suspended")
	assert.True(t, v.CanOverride)
	assert.True(t, result.RequiresOverride)
}

func TestEvaluateActivityNotPermitted(t *testing.T) {
	f := newFixture()
	f.licences.licences[licID].PermittedActivities = domain.ActivityPossess.Add(domain.ActivityStore)

	result, err := f.engine.Evaluate(context.Background(), newTx(100))
	require.NoError(t, err)

	v := findViolation(t, result.Violations, domain.CodeSubstanceNotAuthorized)
	assert.Equal(t, domain.SeverityCritical, v.Severity)
	assert.True(t, v.CanOverride)
}

func TestEvaluatePrecursorRequiresHandlingActivity(t *testing.T) {
	f := newFixture()
	f.substances.classes["MORPH"] = domain.ClassificationPrecursor1
	f.licences.licences[licID].PermittedActivities = domain.ActivityDistribute

	result, err := f.engine.Evaluate(context.Background(), newTx(100))
	require.NoError(t, err)

	findViolation(t, result.Violations, domain.CodeSubstanceNotAuthorized)

	f.licences.licences[licID].PermittedActivities = domain.ActivityDistribute.Add(domain.ActivityHandlePrecursors)
	result, err = f.engine.Evaluate(context.Background(), newTx(100))
	require.NoError(t, err)
	assert.Empty(t, result.Violations)
}

func TestEvaluateInboundRequiresImport(t *testing.T) {
	f := newFixture()
	f.licences.licences[licID].PermittedActivities = domain.ActivityDistribute

	tx := newTx(100)
	tx.Direction = domain.DirectionInbound
	tx.OriginCountry = "NL"
	tx.DestinationCountry = "NL"
	result, err := f.engine.Evaluate(context.Background(), tx)
	require.NoError(t, err)

	v := findViolation(t, result.Violations, domain.CodeSubstanceNotAuthorized)
	assert.Contains(t, v.Message, "import")
}

func TestEvaluateReclassificationChangesRequiredActivities(t *testing.T) {
	// The same transaction on a later date requires precursor handling once
	// the substance has been reclassified.
	f := newFixture()
	f.licences.licences[licID].PermittedActivities = domain.ActivityDistribute
	f.substances.classes["MORPH"] = domain.ClassificationUnscheduled

	result, err := f.engine.Evaluate(context.Background(), newTx(100))
	require.NoError(t, err)
	assert.Empty(t, result.Violations)

	f.substances.classes["MORPH"] = domain.ClassificationPrecursor2
	result, err = f.engine.Evaluate(context.Background(), newTx(100))
	require.NoError(t, err)
	findViolation(t, result.Violations, domain.CodeSubstanceNotAuthorized)
}

func TestEvaluatePerTransactionLimit(t *testing.T) {
	f := newFixture()
	f.licences.mappings["MORPH"][0].MaxQuantityPerTransaction = decPtr(500)
	f.licences.mappings["MORPH"][0].AllowOverride = true

	result, err := f.engine.Evaluate(context.Background(), newTx(600))
	require.NoError(t, err)

	v := findViolation(t, result.Violations, domain.CodeThresholdExceeded)
	assert.Equal(t, domain.SeverityCritical, v.Severity)
	assert.True(t, v.CanOverride)
	require.NotNil(t, v.LineNumber)
	assert.Equal(t, 1, *v.LineNumber)

	// At the limit exactly there is no violation.
	result, err = f.engine.Evaluate(context.Background(), newTx(500))
	require.NoError(t, err)
	assert.Empty(t, result.Violations)
}

func TestEvaluatePerTransactionLimitWithinAllowanceIsWarning(t *testing.T) {
	f := newFixture()
	f.licences.mappings["MORPH"][0].MaxQuantityPerTransaction = decPtr(500)
	f.thresholds.thresholds["MORPH"] = &domain.ComplianceThreshold{
		ID:                 "THR-1",
		Name:               "morphine tx limit",
		SubstanceCode:      "MORPH",
		PeriodType:         domain.PeriodMonthly,
		MaxQuantity:        dec(10000),
		AllowOverride:      true,
		MaxOverridePercent: 110,
		ActiveFrom:         day(2025, time.January, 1),
	}

	// 540 is within 110% of the 500 per-transaction limit.
	result, err := f.engine.Evaluate(context.Background(), newTx(540))
	require.NoError(t, err)
	v := findViolation(t, result.Violations, domain.CodeThresholdExceeded)
	assert.Equal(t, domain.SeverityWarning, v.Severity)
	assert.True(t, v.CanOverride)
	assert.Equal(t, domain.ValidationPassed, result.Status)

	// 600 exceeds the ceiling; critical and not overridable.
	result, err = f.engine.Evaluate(context.Background(), newTx(600))
	require.NoError(t, err)
	v = findViolation(t, result.Violations, domain.CodeThresholdExceeded)
	assert.Equal(t, domain.SeverityCritical, v.Severity)
	assert.False(t, v.CanOverride)
}

func TestEvaluatePeriodThresholdExceeded(t *testing.T) {
	f := newFixture()
	f.licences.mappings["MORPH"][0].MaxQuantityPerPeriod = decPtr(1000)
	f.licences.mappings["MORPH"][0].PeriodType = domain.PeriodMonthly
	f.licences.mappings["MORPH"][0].AllowOverride = true
	f.history.sums[custID+"/MORPH"] = dec(950)

	result, err := f.engine.Evaluate(context.Background(), newTx(100))
	require.NoError(t, err)

	v := findViolation(t, result.Violations, domain.CodeThresholdExceeded)
	assert.Equal(t, domain.SeverityCritical, v.Severity)
	assert.True(t, v.CanOverride, "overridable with no configured ceiling")
	assert.Equal(t, domain.ValidationFailed, result.Status)
	assert.True(t, result.RequiresOverride)

	// The window is the rolling month ending on the transaction date.
	tx := newTx(100)
	assert.Equal(t, tx.TransactionDate.AddDate(0, -1, 0), f.history.lastFrom)
	assert.Equal(t, tx.TransactionDate, f.history.lastTo)
}

func TestEvaluatePeriodThresholdOverrideCeiling(t *testing.T) {
	f := newFixture()
	f.licences.mappings["MORPH"][0].MaxQuantityPerPeriod = decPtr(1000)
	f.licences.mappings["MORPH"][0].AllowOverride = true
	f.thresholds.thresholds["MORPH"] = &domain.ComplianceThreshold{
		ID:                 "THR-1",
		Name:               "morphine monthly cap",
		SubstanceCode:      "MORPH",
		PeriodType:         domain.PeriodMonthly,
		MaxQuantity:        dec(1000),
		AllowOverride:      true,
		MaxOverridePercent: 110,
		ActiveFrom:         day(2025, time.January, 1),
	}
	f.history.sums[custID+"/MORPH"] = dec(950)

	// 1050 total is 105% of the limit, inside the 110% ceiling.
	result, err := f.engine.Evaluate(context.Background(), newTx(100))
	require.NoError(t, err)
	v := findViolation(t, result.Violations, domain.CodeThresholdExceeded)
	assert.Equal(t, domain.SeverityCritical, v.Severity)
	assert.True(t, v.CanOverride)

	// 1150 total is past the ceiling; the override path closes.
	result, err = f.engine.Evaluate(context.Background(), newTx(200))
	require.NoError(t, err)
	v = findViolation(t, result.Violations, domain.CodeThresholdExceeded)
	assert.False(t, v.CanOverride)
	assert.Equal(t, domain.ValidationFailed, result.Status)
	assert.False(t, result.RequiresOverride)
}

func TestEvaluatePeriodThresholdWarningBand(t *testing.T) {
	f := newFixture()
	f.thresholds.thresholds["MORPH"] = &domain.ComplianceThreshold{
		ID:            "THR-1",
		Name:          "morphine monthly cap",
		SubstanceCode: "MORPH",
		PeriodType:    domain.PeriodMonthly,
		MaxQuantity:   dec(1000),
		ActiveFrom:    day(2025, time.January, 1),
	}
	f.history.sums[custID+"/MORPH"] = dec(750)

	// 850 of 1000 is past the default 80% warning boundary.
	result, err := f.engine.Evaluate(context.Background(), newTx(100))
	require.NoError(t, err)

	v := findViolation(t, result.Violations, domain.CodeThresholdExceeded)
	assert.Equal(t, domain.SeverityWarning, v.Severity)
	assert.True(t, v.CanOverride)
	assert.Equal(t, domain.ValidationPassed, result.Status)
	assert.True(t, result.CanProceed)

	// Below the boundary no violation is raised.
	f.history.sums[custID+"/MORPH"] = dec(600)
	result, err = f.engine.Evaluate(context.Background(), newTx(100))
	require.NoError(t, err)
	assert.Empty(t, result.Violations)
}

func TestEvaluateMultiLineAccumulatesPerSubstance(t *testing.T) {
	f := newFixture()
	f.licences.mappings["MORPH"][0].MaxQuantityPerPeriod = decPtr(1000)
	f.licences.mappings["MORPH"][0].AllowOverride = true

	tx := newTx(600)
	tx.Lines = append(tx.Lines, domain.TransactionLine{
		LineNumber: 2, SubstanceCode: "MORPH", Quantity: dec(600), Unit: "g", BaseQuantity: dec(600),
	})

	result, err := f.engine.Evaluate(context.Background(), tx)
	require.NoError(t, err)

	// 1200 across two lines exceeds the period limit once, not per line.
	var count int
	for _, v := range result.Violations {
		if v.Code == domain.CodeThresholdExceeded {
			count++
		}
	}
	assert.Equal(t, 1, count)

	// Both lines fold into one usage record for the same mapping.
	require.Len(t, result.LicenceUsages, 1)
	assert.Equal(t, []int{1, 2}, result.LicenceUsages[0].LineNumbers)
	assert.True(t, result.LicenceUsages[0].Quantity.Equal(dec(1200)))
}

func TestEvaluateCrossBorder(t *testing.T) {
	f := newFixture()

	tx := newTx(100)
	tx.DestinationCountry = "DE"
	result, err := f.engine.Evaluate(context.Background(), tx)
	require.NoError(t, err)

	v := findViolation(t, result.Violations, domain.CodeMissingPermit)
	assert.Equal(t, domain.SeverityCritical, v.Severity)
	assert.True(t, v.CanOverride)

	f.licences.permits = append(f.licences.permits, domain.CrossBorderPermit{
		ID:                 "CBP-1",
		HolderID:           custID,
		OriginCountry:      "NL",
		DestinationCountry: "DE",
		Status:             domain.LicenceValid,
		IssuedAt:           day(2025, time.January, 1),
	})
	result, err = f.engine.Evaluate(context.Background(), tx)
	require.NoError(t, err)
	assert.Empty(t, result.Violations)
}

func TestEvaluateExpiredPermitIsMissing(t *testing.T) {
	f := newFixture()
	expired := day(2026, time.January, 1)
	f.licences.permits = append(f.licences.permits, domain.CrossBorderPermit{
		ID:                 "CBP-1",
		HolderID:           custID,
		OriginCountry:      "NL",
		DestinationCountry: "DE",
		Status:             domain.LicenceValid,
		IssuedAt:           day(2025, time.January, 1),
		ExpiresAt:          &expired,
	})

	tx := newTx(100)
	tx.DestinationCountry = "DE"
	result, err := f.engine.Evaluate(context.Background(), tx)
	require.NoError(t, err)

	findViolation(t, result.Violations, domain.CodeMissingPermit)
}

func TestEvaluateInternalMovementSkipsPermitCheck(t *testing.T) {
	f := newFixture()

	tx := newTx(100)
	tx.Direction = domain.DirectionInternal
	tx.DestinationCountry = "DE"
	result, err := f.engine.Evaluate(context.Background(), tx)
	require.NoError(t, err)
	assert.Empty(t, result.Violations)
}

func TestEvaluateMappingTieBreak(t *testing.T) {
	f := newFixture()
	f.licences.licences["LIC-2"] = &domain.Licence{
		ID:                  "LIC-2",
		HolderID:            custID,
		Status:              domain.LicenceValid,
		IssuedAt:            day(2025, time.June, 1),
		PermittedActivities: f.licences.licences[licID].PermittedActivities,
	}
	// Later effective date wins regardless of slice order.
	f.licences.mappings["MORPH"] = append([]domain.SubstanceMapping{{
		ID:            "MAP-2",
		LicenceID:     "LIC-2",
		SubstanceCode: "MORPH",
		EffectiveDate: day(2025, time.June, 1),
	}}, f.licences.mappings["MORPH"]...)

	result, err := f.engine.Evaluate(context.Background(), newTx(100))
	require.NoError(t, err)

	require.Len(t, result.LicenceUsages, 1)
	assert.Equal(t, "MAP-2", result.LicenceUsages[0].MappingID)
	assert.Equal(t, "LIC-2", result.LicenceUsages[0].LicenceID)
}

func TestEvaluateTieBreakPrefersLargerLimitThenLowestID(t *testing.T) {
	f := newFixture()
	effective := day(2025, time.January, 1)
	f.licences.mappings["MORPH"] = []domain.SubstanceMapping{
		{ID: "MAP-B", LicenceID: licID, SubstanceCode: "MORPH", EffectiveDate: effective, MaxQuantityPerTransaction: decPtr(500)},
		{ID: "MAP-A", LicenceID: licID, SubstanceCode: "MORPH", EffectiveDate: effective, MaxQuantityPerTransaction: decPtr(900)},
	}

	result, err := f.engine.Evaluate(context.Background(), newTx(100))
	require.NoError(t, err)
	require.Len(t, result.LicenceUsages, 1)
	assert.Equal(t, "MAP-A", result.LicenceUsages[0].MappingID, "larger per-transaction limit wins")

	f.licences.mappings["MORPH"][1].MaxQuantityPerTransaction = decPtr(500)
	result, err = f.engine.Evaluate(context.Background(), newTx(100))
	require.NoError(t, err)
	require.Len(t, result.LicenceUsages, 1)
	assert.Equal(t, "MAP-A", result.LicenceUsages[0].MappingID, "equal limits fall back to lowest id")
}

func TestEvaluateCollectsAllViolations(t *testing.T) {
	f := newFixture()
	f.customers.customers[custID].IsSuspended = true
	f.licences.licences[licID].Status = domain.LicenceExpired

	tx := newTx(100)
	tx.DestinationCountry = "DE"
	result, err := f.engine.Evaluate(context.Background(), tx)
	require.NoError(t, err)

	// No short-circuiting: every failing rule reports.
	findViolation(t, result.Violations, domain.CodeCustomerSuspended)
	findViolation(t, result.Violations, domain.CodeLicenceExpired)
	findViolation(t, result.Violations, domain.CodeMissingPermit)
}

func TestEvaluateIsDeterministic(t *testing.T) {
	f := newFixture()
	f.customers.customers[custID].IsSuspended = true
	f.licences.mappings["MORPH"][0].MaxQuantityPerTransaction = decPtr(50)

	tx := newTx(100)
	tx.DestinationCountry = "DE"

	first, err := f.engine.Evaluate(context.Background(), tx)
	require.NoError(t, err)
	second, err := f.engine.Evaluate(context.Background(), tx)
	require.NoError(t, err)

	assert.Equal(t, first.Status, second.Status)
	require.Equal(t, len(first.Violations), len(second.Violations))
	for i := range first.Violations {
		assert.Equal(t, first.Violations[i].Code, second.Violations[i].Code)
		assert.Equal(t, first.Violations[i].Severity, second.Violations[i].Severity)
	}
}

func TestEvaluateEmptyTransaction(t *testing.T) {
	f := newFixture()

	tx := newTx(100)
	tx.Lines = nil
	_, err := f.engine.Evaluate(context.Background(), tx)
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestEvaluateCancelledContext(t *testing.T) {
	f := newFixture()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.engine.Evaluate(ctx, newTx(100))
	require.ErrorIs(t, err, context.Canceled)
}
