package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// LicenceStatus is the lifecycle state of a licence.
type LicenceStatus string

const (
	LicenceValid     LicenceStatus = "valid"
	LicenceExpired   LicenceStatus = "expired"
	LicenceSuspended LicenceStatus = "suspended"
	LicenceRevoked   LicenceStatus = "revoked"
)

// Activity is a bitmask of operations a licence permits. The numeric values
// are persisted by the upstream ERP contract and must not change.
type Activity int64

const (
	ActivityPossess          Activity = 1
	ActivityStore            Activity = 2
	ActivityDistribute       Activity = 4
	ActivityImport           Activity = 8
	ActivityExport           Activity = 16
	ActivityManufacture      Activity = 32
	ActivityHandlePrecursors Activity = 64
)

// Has reports whether every activity in required is present.
func (a Activity) Has(required Activity) bool {
	return a&required == required
}

// Add returns the union of the two activity sets.
func (a Activity) Add(other Activity) Activity {
	return a | other
}

func (a Activity) String() string {
	names := []struct {
		bit  Activity
		name string
	}{
		{ActivityPossess, "possess"},
		{ActivityStore, "store"},
		{ActivityDistribute, "distribute"},
		{ActivityImport, "import"},
		{ActivityExport, "export"},
		{ActivityManufacture, "manufacture"},
		{ActivityHandlePrecursors, "handle_precursors"},
	}
	parts := make([]string, 0, len(names))
	for _, n := range names {
		if a&n.bit != 0 {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Licence is a wholesale distribution or controlled-substance authorisation
// held by a customer.
type Licence struct {
	ID                  string        `db:"id" json:"id"`
	HolderID            string        `db:"holder_id" json:"holder_id"`
	IssuingAuthority    string        `db:"issuing_authority" json:"issuing_authority"`
	Status              LicenceStatus `db:"status" json:"status"`
	IssuedAt            time.Time     `db:"issued_at" json:"issued_at"`
	ExpiresAt           *time.Time    `db:"expires_at" json:"expires_at,omitempty"`
	PermittedActivities Activity      `db:"permitted_activities" json:"permitted_activities"`
	Scope               string        `db:"scope" json:"scope"`
	CreatedAt           time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time     `db:"updated_at" json:"updated_at"`
}

// SubstanceMapping links a licence to a substance with validity dates and
// optional quantity limits. (LicenceID, SubstanceCode, EffectiveDate) is
// unique; ExpiryDate must fall inside the parent licence validity.
type SubstanceMapping struct {
	ID                        string           `db:"id" json:"id"`
	LicenceID                 string           `db:"licence_id" json:"licence_id"`
	SubstanceCode             string           `db:"substance_code" json:"substance_code"`
	EffectiveDate             time.Time        `db:"effective_date" json:"effective_date"`
	ExpiryDate                *time.Time       `db:"expiry_date" json:"expiry_date,omitempty"`
	MaxQuantityPerTransaction *decimal.Decimal `db:"max_quantity_per_transaction" json:"max_quantity_per_transaction,omitempty"`
	MaxQuantityPerPeriod      *decimal.Decimal `db:"max_quantity_per_period" json:"max_quantity_per_period,omitempty"`
	PeriodType                PeriodType       `db:"period_type" json:"period_type"`
	AllowOverride             bool             `db:"allow_override" json:"allow_override"`
	Restrictions              string           `db:"restrictions" json:"restrictions"`
	CreatedAt                 time.Time        `db:"created_at" json:"created_at"`
}

// CoversDate reports whether the mapping is effective on the given date.
// The expiry bound is inclusive.
func (m *SubstanceMapping) CoversDate(date time.Time) bool {
	if date.Before(m.EffectiveDate) {
		return false
	}
	if m.ExpiryDate != nil && date.After(*m.ExpiryDate) {
		return false
	}
	return true
}

// CrossBorderPermit authorises movements between a specific country pair.
type CrossBorderPermit struct {
	ID                 string        `db:"id" json:"id"`
	HolderID           string        `db:"holder_id" json:"holder_id"`
	OriginCountry      string        `db:"origin_country" json:"origin_country"`
	DestinationCountry string        `db:"destination_country" json:"destination_country"`
	Status             LicenceStatus `db:"status" json:"status"`
	IssuedAt           time.Time     `db:"issued_at" json:"issued_at"`
	ExpiresAt          *time.Time    `db:"expires_at" json:"expires_at,omitempty"`
}

// CoversDate reports whether the permit is valid on the given date.
func (p *CrossBorderPermit) CoversDate(date time.Time) bool {
	if p.Status != LicenceValid {
		return false
	}
	if date.Before(p.IssuedAt) {
		return false
	}
	if p.ExpiresAt != nil && date.After(*p.ExpiresAt) {
		return false
	}
	return true
}
