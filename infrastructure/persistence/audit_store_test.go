package persistence_test

import (
	"context"
	"testing"
	"time"

	"github.com/helixml/semandoc/domain/audit"
	"github.com/helixml/semandoc/infrastructure/persistence"
	"github.com/helixml/semandoc/internal/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ audit.RecordStore = persistence.AuditStore{}

func TestAuditStore_SaveAndRecent(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewAuditStore(testdb.New(t))

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Save(ctx,
		audit.ReconstructRecord(0, audit.ActionCreate, "doc-1", "", base),
		audit.ReconstructRecord(0, audit.ActionUpdate, "doc-1", "content changed", base.Add(time.Minute)),
		audit.ReconstructRecord(0, audit.ActionSave, "", "2 documents", base.Add(2*time.Minute)),
	))

	recent, err := store.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, audit.ActionSave, recent[0].Action())
	assert.Equal(t, audit.ActionUpdate, recent[1].Action())
	assert.Equal(t, "content changed", recent[1].Detail())
	assert.NotZero(t, recent[1].ID())

	all, err := store.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestAuditStore_SaveNothing(t *testing.T) {
	store := persistence.NewAuditStore(testdb.New(t))
	require.NoError(t, store.Save(context.Background()))

	all, err := store.Recent(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestAuditStore_ForDocument(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewAuditStore(testdb.New(t))

	require.NoError(t, store.Save(ctx,
		audit.NewRecord(audit.ActionCreate, "doc-1", ""),
		audit.NewRecord(audit.ActionCreate, "doc-2", ""),
		audit.NewRecord(audit.ActionDelete, "doc-1", ""),
	))

	history, err := store.ForDocument(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, audit.ActionCreate, history[0].Action())
	assert.Equal(t, audit.ActionDelete, history[1].Action())

	none, err := store.ForDocument(ctx, "doc-3")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestAuditStore_CountByAction(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewAuditStore(testdb.New(t))

	require.NoError(t, store.Save(ctx,
		audit.NewRecord(audit.ActionCreate, "a", ""),
		audit.NewRecord(audit.ActionCreate, "b", ""),
		audit.NewRecord(audit.ActionReset, "", "2 of 2"),
	))

	creates, err := store.CountByAction(ctx, audit.ActionCreate)
	require.NoError(t, err)
	assert.Equal(t, int64(2), creates)

	deletes, err := store.CountByAction(ctx, audit.ActionDelete)
	require.NoError(t, err)
	assert.Zero(t, deletes)
}
