package sqlstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/arcreview/internal/arcreview/types"
)

func TestAuditStore_AppendAndList_OldestFirst(t *testing.T) {
	s := newTestStore(t, openTestDB(t))
	ctx := context.Background()

	require.NoError(t, s.Audit().AppendEntry(ctx, types.AuditEntry{
		RequestID:  "req-1",
		Action:     types.AuditRequestSubmitted,
		FromStatus: types.StatusDraft,
		ToStatus:   types.StatusSubmitted,
		ActorID:    "owner-1",
		Timestamp:  t0,
	}))
	require.NoError(t, s.Audit().AppendEntry(ctx, types.AuditEntry{
		RequestID:  "req-1",
		Action:     types.AuditAutoApproved,
		FromStatus: types.StatusARCReview,
		ToStatus:   types.StatusARCApproved,
		ActorID:    types.SystemActor,
		Reason:     types.AutoApproveReasonDeadline,
		Timestamp:  t0.Add(time.Hour),
		Metadata:   map[string]string{"basis": "statutory_deadline"},
	}))
	require.NoError(t, s.Audit().AppendEntry(ctx, types.AuditEntry{
		RequestID: "other", Action: types.AuditRequestCreated, ActorID: "x", Timestamp: t0,
	}))

	got, err := s.AuditLog().ListEntries(ctx, "req-1")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, types.AuditRequestSubmitted, got[0].Action)
	assert.Nil(t, got[0].Metadata)
	assert.NotEmpty(t, got[0].ID)

	assert.Equal(t, types.AuditAutoApproved, got[1].Action)
	assert.Equal(t, types.SystemActor, got[1].ActorID)
	assert.Equal(t, "statutory_deadline", got[1].Metadata["basis"])
	assert.True(t, t0.Add(time.Hour).Equal(got[1].Timestamp))
}

func TestAuditStore_TableRejectsUpdateAndDelete(t *testing.T) {
	conn := openTestDB(t)
	s := newTestStore(t, conn)
	ctx := context.Background()

	require.NoError(t, s.Audit().AppendEntry(ctx, types.AuditEntry{
		RequestID: "req-1", Action: types.AuditVoteCast, ActorID: "arc-1", Timestamp: t0,
	}))

	_, err := conn.ExecContext(ctx, `UPDATE audit_entries SET reason = 'tampered'`)
	assert.Error(t, err)

	_, err = conn.ExecContext(ctx, `DELETE FROM audit_entries`)
	assert.Error(t, err)

	got, err := s.AuditLog().ListEntries(ctx, "req-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Empty(t, got[0].Reason)
}
