package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/veridist/compliance-engine/internal/audit"
)

// AuditRepository persists the append-only audit trail.
type AuditRepository struct {
	BaseRepository
	logger *zap.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *sqlx.DB, logger *zap.Logger) *AuditRepository {
	return &AuditRepository{BaseRepository: BaseRepository{db: db}, logger: logger}
}

// InsertEntry appends one audit entry. Entries are never updated.
func (r *AuditRepository) InsertEntry(ctx context.Context, entry audit.Entry) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}

	const query = `
		INSERT INTO audit_log (id, actor_id, action, entity_type, entity_id, details, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	if _, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.ActorID, entry.Action, entry.EntityType, entry.EntityID, details, entry.RecordedAt); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}
