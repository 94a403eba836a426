package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type captureStore struct {
	entries []Entry
	err     error
}

func (s *captureStore) InsertEntry(_ context.Context, entry Entry) error {
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, entry)
	return nil
}

func TestRecord(t *testing.T) {
	store := &captureStore{}
	recorder := NewRecorder(store, zap.NewNop())

	recorder.Record(context.Background(), "USER-9", "override_approved", "transaction", "TX-1", map[string]interface{}{
		"justification": "Business justification",
	})

	require.Len(t, store.entries, 1)
	entry := store.entries[0]
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, "USER-9", entry.ActorID)
	assert.Equal(t, "override_approved", entry.Action)
	assert.Equal(t, "transaction", entry.EntityType)
	assert.Equal(t, "TX-1", entry.EntityID)
	assert.Equal(t, "Business justification", entry.Details["justification"])
	assert.False(t, entry.RecordedAt.IsZero())
}

func TestRecordSwallowsStoreFailures(t *testing.T) {
	store := &captureStore{err: errors.New("connection refused")}
	recorder := NewRecorder(store, zap.NewNop())

	// Must not panic or propagate; the decision path does not depend on
	// the audit trail.
	recorder.Record(context.Background(), "system", "transaction_validated", "transaction", "TX-1", nil)
	assert.Empty(t, store.entries)
}
