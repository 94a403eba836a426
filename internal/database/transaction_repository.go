package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/veridist/compliance-engine/internal/domain"
	"github.com/veridist/compliance-engine/internal/override"
)

// TransactionRepository handles transaction, violation and licence usage
// data operations.
type TransactionRepository struct {
	BaseRepository
	logger *zap.Logger
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *sqlx.DB, logger *zap.Logger) *TransactionRepository {
	return &TransactionRepository{
		BaseRepository: BaseRepository{db: db},
		logger:         logger,
	}
}

// CreateWithOutcome persists a validated transaction together with its
// lines, violations and licence usages in one database transaction.
func (r *TransactionRepository) CreateWithOutcome(ctx context.Context, tx *domain.Transaction, violations []domain.Violation, usages []domain.LicenceUsage) error {
	err := r.Transaction(func(dbtx *sqlx.Tx) error {
		const insertTx = `
			INSERT INTO transactions (
				id, external_reference, type, direction, customer_id,
				origin_country, destination_country, transaction_date,
				total_base_quantity, validation_status, override_status,
				row_version, created_at, updated_at
			) VALUES (
				:id, :external_reference, :type, :direction, :customer_id,
				:origin_country, :destination_country, :transaction_date,
				:total_base_quantity, :validation_status, :override_status,
				:row_version, :created_at, :updated_at
			)`
		if tx.RowVersion == 0 {
			tx.RowVersion = 1
		}
		if _, err := dbtx.NamedExecContext(ctx, insertTx, tx); err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}

		const insertLine = `
			INSERT INTO transaction_lines (
				transaction_id, line_number, substance_code, quantity, unit, base_quantity
			) VALUES ($1, $2, $3, $4, $5, $6)`
		for _, line := range tx.Lines {
			if _, err := dbtx.ExecContext(ctx, insertLine,
				tx.ID, line.LineNumber, line.SubstanceCode, line.Quantity, line.Unit, line.BaseQuantity); err != nil {
				return fmt.Errorf("insert line %d: %w", line.LineNumber, err)
			}
		}

		const insertViolation = `
			INSERT INTO violations (
				id, transaction_id, code, message, severity, line_number,
				substance_code, can_override, created_at
			) VALUES (
				:id, :transaction_id, :code, :message, :severity, :line_number,
				:substance_code, :can_override, :created_at
			)`
		for i := range violations {
			if _, err := dbtx.NamedExecContext(ctx, insertViolation, &violations[i]); err != nil {
				return fmt.Errorf("insert violation %s: %w", violations[i].Code, err)
			}
		}

		const insertUsage = `
			INSERT INTO licence_usages (
				id, transaction_id, licence_id, mapping_id, substance_code,
				line_numbers, quantity, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
		for i := range usages {
			u := &usages[i]
			if _, err := dbtx.ExecContext(ctx, insertUsage,
				u.ID, u.TransactionID, u.LicenceID, u.MappingID, u.SubstanceCode,
				pq.Array(u.LineNumbers), u.Quantity, u.CreatedAt); err != nil {
				return fmt.Errorf("insert licence usage %s: %w", u.LicenceID, err)
			}
		}

		return nil
	})
	if err != nil {
		r.logger.Error("failed to persist validation outcome",
			zap.String("transaction_id", tx.ID), zap.Error(err))
		return err
	}

	return nil
}

// GetByID retrieves a transaction with its lines.
func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	const query = `SELECT * FROM transactions WHERE id = $1`

	var tx domain.Transaction
	if err := r.db.GetContext(ctx, &tx, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get transaction %s: %w", id, err)
	}

	const lineQuery = `
		SELECT line_number, substance_code, quantity, unit, base_quantity
		FROM transaction_lines
		WHERE transaction_id = $1
		ORDER BY line_number`
	if err := r.db.SelectContext(ctx, &tx.Lines, lineQuery, id); err != nil {
		return nil, fmt.Errorf("get transaction lines %s: %w", id, err)
	}

	return &tx, nil
}

// DecideOverride applies an override decision with an optimistic
// concurrency check. The guarded update only succeeds against the expected
// row version and a still-pending override; on zero rows affected the
// current row is re-read to tell the caller which precondition failed.
func (r *TransactionRepository) DecideOverride(ctx context.Context, transactionID string, expectedVersion int64, decision override.Decision) error {
	const query = `
		UPDATE transactions SET
			override_status = $3,
			validation_status = $4,
			override_by = $5,
			override_at = $6,
			override_justification = NULLIF($7, ''),
			override_rejection_reason = NULLIF($8, ''),
			row_version = row_version + 1,
			updated_at = NOW()
		WHERE id = $1
		  AND row_version = $2
		  AND override_status = 'pending'`

	result, err := r.db.ExecContext(ctx, query,
		transactionID, expectedVersion,
		decision.OverrideStatus, decision.ValidationStatus,
		decision.ApproverID, decision.DecidedAt,
		decision.Justification, decision.RejectionReason)
	if err != nil {
		return fmt.Errorf("decide override %s: %w", transactionID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("decide override rows affected: %w", err)
	}
	if affected > 0 {
		r.logger.Info("override decision persisted",
			zap.String("transaction_id", transactionID),
			zap.String("override_status", string(decision.OverrideStatus)))
		return nil
	}

	var current struct {
		OverrideStatus domain.OverrideStatus `db:"override_status"`
		RowVersion     int64                 `db:"row_version"`
	}
	err = r.db.GetContext(ctx, &current,
		`SELECT override_status, row_version FROM transactions WHERE id = $1`, transactionID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("decide override recheck %s: %w", transactionID, err)
	}
	if current.OverrideStatus != domain.OverridePending {
		return fmt.Errorf("%w: override already %s", domain.ErrInvalidState, current.OverrideStatus)
	}
	return domain.ErrVersionConflict
}

// ListPendingOverrides returns transactions awaiting an override decision,
// oldest first so approvers work the queue in submission order.
func (r *TransactionRepository) ListPendingOverrides(ctx context.Context) ([]domain.Transaction, error) {
	const query = `
		SELECT * FROM transactions
		WHERE override_status = 'pending'
		ORDER BY created_at ASC`

	var txs []domain.Transaction
	if err := r.db.SelectContext(ctx, &txs, query); err != nil {
		return nil, fmt.Errorf("list pending overrides: %w", err)
	}
	return txs, nil
}

// CountPendingOverrides returns the number of transactions awaiting an
// override decision.
func (r *TransactionRepository) CountPendingOverrides(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM transactions WHERE override_status = 'pending'`

	var count int
	if err := r.db.GetContext(ctx, &count, query); err != nil {
		return 0, fmt.Errorf("count pending overrides: %w", err)
	}
	return count, nil
}

// SumQuantity sums base-unit line quantities of a customer's prior
// transactions for a substance within the inclusive date window, counting
// only the given validation statuses. An empty history sums to zero.
func (r *TransactionRepository) SumQuantity(ctx context.Context, customerID, substanceCode string, from, to time.Time, statuses []domain.ValidationStatus) (decimal.Decimal, error) {
	const query = `
		SELECT COALESCE(SUM(l.base_quantity), 0)
		FROM transactions t
		JOIN transaction_lines l ON l.transaction_id = t.id
		WHERE t.customer_id = $1
		  AND l.substance_code = $2
		  AND t.transaction_date >= $3
		  AND t.transaction_date <= $4
		  AND t.validation_status = ANY($5)`

	statusStrings := make([]string, len(statuses))
	for i, s := range statuses {
		statusStrings[i] = string(s)
	}

	var sum decimal.Decimal
	if err := r.db.GetContext(ctx, &sum, query, customerID, substanceCode, from, to, pq.Array(statusStrings)); err != nil {
		return decimal.Zero, fmt.Errorf("sum quantity %s/%s: %w", customerID, substanceCode, err)
	}
	return sum, nil
}
