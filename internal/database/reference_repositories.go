package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/veridist/compliance-engine/internal/domain"
)

// Reference data repositories: customers, licences, thresholds and
// substances are read-only during validation.

// CustomerRepository resolves customer compliance state.
type CustomerRepository struct {
	BaseRepository
	logger *zap.Logger
}

// NewCustomerRepository creates a new customer repository
func NewCustomerRepository(db *sqlx.DB, logger *zap.Logger) *CustomerRepository {
	return &CustomerRepository{BaseRepository: BaseRepository{db: db}, logger: logger}
}

// GetComplianceStatus returns the customer's current compliance state.
func (r *CustomerRepository) GetComplianceStatus(ctx context.Context, customerID string) (*domain.Customer, error) {
	const query = `SELECT * FROM customers WHERE id = $1`

	var customer domain.Customer
	if err := r.db.GetContext(ctx, &customer, query, customerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get customer %s: %w", customerID, err)
	}
	return &customer, nil
}

// LicenceRepository resolves licences, substance mappings and cross-border
// permits.
type LicenceRepository struct {
	BaseRepository
	logger *zap.Logger
}

// NewLicenceRepository creates a new licence repository
func NewLicenceRepository(db *sqlx.DB, logger *zap.Logger) *LicenceRepository {
	return &LicenceRepository{BaseRepository: BaseRepository{db: db}, logger: logger}
}

// GetActiveMappingsForSubstance returns the customer's mappings for a
// substance whose effective window covers asOf, whatever the licence
// status. The resolver decides how non-valid licences are reported.
func (r *LicenceRepository) GetActiveMappingsForSubstance(ctx context.Context, customerID, substanceCode string, asOf time.Time) ([]domain.SubstanceMapping, error) {
	const query = `
		SELECT m.* FROM licence_substance_mappings m
		JOIN licences l ON l.id = m.licence_id
		WHERE l.holder_id = $1
		  AND m.substance_code = $2
		  AND m.effective_date <= $3
		  AND (m.expiry_date IS NULL OR m.expiry_date >= $3)
		ORDER BY m.effective_date DESC, m.id ASC`

	var mappings []domain.SubstanceMapping
	if err := r.db.SelectContext(ctx, &mappings, query, customerID, substanceCode, asOf); err != nil {
		return nil, fmt.Errorf("get mappings %s/%s: %w", customerID, substanceCode, err)
	}
	return mappings, nil
}

// GetLicence retrieves a licence by id.
func (r *LicenceRepository) GetLicence(ctx context.Context, licenceID string) (*domain.Licence, error) {
	const query = `SELECT * FROM licences WHERE id = $1`

	var licence domain.Licence
	if err := r.db.GetContext(ctx, &licence, query, licenceID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get licence %s: %w", licenceID, err)
	}
	return &licence, nil
}

// FindCrossBorderPermit returns the holder's permit for the country pair,
// or nil when none exists. When several cover the pair the latest issued
// valid one wins.
func (r *LicenceRepository) FindCrossBorderPermit(ctx context.Context, holderID, origin, destination string, asOf time.Time) (*domain.CrossBorderPermit, error) {
	const query = `
		SELECT * FROM cross_border_permits
		WHERE holder_id = $1
		  AND origin_country = $2
		  AND destination_country = $3
		ORDER BY (status = 'valid') DESC, issued_at DESC
		LIMIT 1`

	var permit domain.CrossBorderPermit
	if err := r.db.GetContext(ctx, &permit, query, holderID, origin, destination); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find cross-border permit %s->%s: %w", origin, destination, err)
	}
	return &permit, nil
}

// ThresholdRepository resolves configured compliance thresholds.
type ThresholdRepository struct {
	BaseRepository
	logger *zap.Logger
}

// NewThresholdRepository creates a new threshold repository
func NewThresholdRepository(db *sqlx.DB, logger *zap.Logger) *ThresholdRepository {
	return &ThresholdRepository{BaseRepository: BaseRepository{db: db}, logger: logger}
}

// GetThreshold returns the threshold active for a substance on asOf, or
// nil when none is configured. The most recently activated record wins.
func (r *ThresholdRepository) GetThreshold(ctx context.Context, substanceCode string, asOf time.Time) (*domain.ComplianceThreshold, error) {
	const query = `
		SELECT * FROM compliance_thresholds
		WHERE substance_code = $1
		  AND active_from <= $2
		  AND (active_until IS NULL OR active_until >= $2)
		ORDER BY active_from DESC, id ASC
		LIMIT 1`

	var threshold domain.ComplianceThreshold
	if err := r.db.GetContext(ctx, &threshold, query, substanceCode, asOf); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get threshold %s: %w", substanceCode, err)
	}
	return &threshold, nil
}

// SubstanceRepository answers time-bounded classification lookups over the
// append-only reclassification timeline.
type SubstanceRepository struct {
	BaseRepository
	logger *zap.Logger
}

// NewSubstanceRepository creates a new substance repository
func NewSubstanceRepository(db *sqlx.DB, logger *zap.Logger) *SubstanceRepository {
	return &SubstanceRepository{BaseRepository: BaseRepository{db: db}, logger: logger}
}

// GetClassification returns the classification in force for a substance on
// asOf. Unknown codes resolve to unscheduled rather than an error; the
// licence rules still apply through mappings either way.
func (r *SubstanceRepository) GetClassification(ctx context.Context, substanceCode string, asOf time.Time) (domain.Classification, error) {
	var substance domain.ControlledSubstance
	err := r.db.GetContext(ctx, &substance, `SELECT * FROM controlled_substances WHERE code = $1`, substanceCode)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ClassificationUnscheduled, nil
	}
	if err != nil {
		return "", fmt.Errorf("get substance %s: %w", substanceCode, err)
	}

	var records []domain.Reclassification
	const recQuery = `
		SELECT * FROM substance_reclassifications
		WHERE substance_code = $1
		ORDER BY effective_date ASC`
	if err := r.db.SelectContext(ctx, &records, recQuery, substanceCode); err != nil {
		return "", fmt.Errorf("get reclassifications %s: %w", substanceCode, err)
	}

	timeline := domain.NewClassificationTimeline(substance.Classification, records)
	return timeline.AsOf(asOf), nil
}
