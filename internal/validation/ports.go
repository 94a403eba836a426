package validation

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/veridist/compliance-engine/internal/domain"
)

// The engine depends only on narrow read ports so the decision logic can be
// tested against in-memory fixtures. Implementations live in
// internal/database (and internal/cache for the threshold decorator).

// CustomerReader resolves the compliance state of a transacting party.
type CustomerReader interface {
	// GetComplianceStatus returns domain.ErrNotFound when the customer
	// does not exist.
	GetComplianceStatus(ctx context.Context, customerID string) (*domain.Customer, error)
}

// LicenceReader resolves licences, substance mappings and cross-border
// permits. Mappings are returned for any licence status; the resolver
// decides how a non-valid licence is reported.
type LicenceReader interface {
	GetActiveMappingsForSubstance(ctx context.Context, customerID, substanceCode string, asOf time.Time) ([]domain.SubstanceMapping, error)
	GetLicence(ctx context.Context, licenceID string) (*domain.Licence, error)
	// FindCrossBorderPermit returns nil, nil when no permit covers the
	// country pair.
	FindCrossBorderPermit(ctx context.Context, holderID, origin, destination string, asOf time.Time) (*domain.CrossBorderPermit, error)
}

// HistoryReader sums historical transaction quantities. The read is
// advisory: the engine tolerates eventually consistent totals.
type HistoryReader interface {
	SumQuantity(ctx context.Context, customerID, substanceCode string, from, to time.Time, statuses []domain.ValidationStatus) (decimal.Decimal, error)
}

// ThresholdReader resolves the configured period limit for a substance.
// A nil threshold with nil error means no limit is configured.
type ThresholdReader interface {
	GetThreshold(ctx context.Context, substanceCode string, asOf time.Time) (*domain.ComplianceThreshold, error)
}

// SubstanceReader answers time-bounded classification lookups.
type SubstanceReader interface {
	// GetClassification returns the tier in force on asOf. Unknown
	// substance codes resolve to ClassificationUnscheduled.
	GetClassification(ctx context.Context, substanceCode string, asOf time.Time) (domain.Classification, error)
}
