package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Entry is one append-only audit trail record. Entries are never updated
// or deleted.
type Entry struct {
	ID         string                 `db:"id" json:"id"`
	ActorID    string                 `db:"actor_id" json:"actor_id"`
	Action     string                 `db:"action" json:"action"`
	EntityType string                 `db:"entity_type" json:"entity_type"`
	EntityID   string                 `db:"entity_id" json:"entity_id"`
	Details    map[string]interface{} `db:"-" json:"details"`
	RecordedAt time.Time              `db:"recorded_at" json:"recorded_at"`
}

// Store persists audit entries.
type Store interface {
	InsertEntry(ctx context.Context, entry Entry) error
}

// Recorder captures the audit trail for validation runs and override
// decisions. Recording never fails the calling operation; storage problems
// are logged and dropped.
type Recorder struct {
	store  Store
	logger *zap.Logger
}

// NewRecorder creates an audit recorder backed by the given store.
func NewRecorder(store Store, logger *zap.Logger) *Recorder {
	return &Recorder{store: store, logger: logger}
}

// Record appends one audit entry.
func (r *Recorder) Record(ctx context.Context, actorID, action, entityType, entityID string, details map[string]interface{}) {
	entry := Entry{
		ID:         uuid.NewString(),
		ActorID:    actorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    details,
		RecordedAt: time.Now().UTC(),
	}

	if err := r.store.InsertEntry(ctx, entry); err != nil {
		r.logger.Error("failed to record audit entry",
			zap.String("action", action),
			zap.String("entity_id", entityID),
			zap.Error(err))
	}
}
