package inventory_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openshelf/stock-engine/docstore/memory"
	"github.com/openshelf/stock-engine/inventory"
)

func TestArchive_QueryEqualsFullReplay(t *testing.T) {
	// The equivalence invariant: snapshot + delta == whole-ledger replay,
	// checked before any checkpoint, after one, and after it goes stale.

	eng, clock := newTestEngine(t)
	ctx := context.Background()

	check := func() {
		t.Helper()
		archived, err := eng.Archive.Query(ctx)
		require.NoError(t, err)
		replayed, err := eng.Stock.Query(ctx, inventory.Window{})
		require.NoError(t, err)
		assert.Equal(t, replayed, archived)
	}

	inboundWith(t, eng, "a", inventory.BookRow{ISBN: "X", Quantity: 5})
	check()

	require.NoError(t, eng.Archive.EnsureFresh(ctx))
	check()

	// Cross a month boundary so the checkpoint is stale, commit more,
	// and refresh again.
	clock.Advance(31 * 24 * time.Hour)
	inboundWith(t, eng, "b", inventory.BookRow{ISBN: "X", Quantity: 2})
	check()

	require.NoError(t, eng.Archive.EnsureFresh(ctx))
	check()

	out, err := eng.Notes.Create(ctx, "", inventory.NoteOutbound)
	require.NoError(t, err)
	_, err = eng.Notes.AddVolumes(ctx, out.ID, inventory.BookRow{ISBN: "X", Quantity: 3, WarehouseID: "a"})
	require.NoError(t, err)
	_, err = eng.Notes.Commit(ctx, out.ID)
	require.NoError(t, err)
	check()
}

func TestArchive_EnsureFreshStampsCurrentMonth(t *testing.T) {
	// GIVEN: A pinned clock in August 2026
	// WHEN: The archive is refreshed twice
	// THEN: One snapshot document exists, labeled "2026-08", at rev 1

	store := memory.New()
	clock := newTestClock()
	eng := inventory.New(store,
		inventory.WithClock(clock.Now),
		inventory.WithIDGenerator(seqIDs()),
	)
	t.Cleanup(eng.Close)
	ctx := context.Background()

	inboundWith(t, eng, "a", inventory.BookRow{ISBN: "X", Quantity: 5})

	require.NoError(t, eng.Archive.EnsureFresh(ctx))
	require.NoError(t, eng.Archive.EnsureFresh(ctx), "refresh must be idempotent within a month")

	doc, err := store.Get(ctx, inventory.ArchiveDocID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), doc.Rev, "second refresh must not write")

	var snapshot struct {
		Month string `json:"month"`
	}
	require.NoError(t, json.Unmarshal(doc.Data, &snapshot))
	assert.Equal(t, "2026-08", snapshot.Month)
}

func TestArchive_CheckpointExcludesCurrentMonthCommits(t *testing.T) {
	// Commits inside the current month stay in the live delta: the
	// snapshot only covers history up to the month boundary.

	store := memory.New()
	clock := newTestClock()
	eng := inventory.New(store,
		inventory.WithClock(clock.Now),
		inventory.WithIDGenerator(seqIDs()),
	)
	t.Cleanup(eng.Close)
	ctx := context.Background()

	inboundWith(t, eng, "a", inventory.BookRow{ISBN: "X", Quantity: 5})
	require.NoError(t, eng.Archive.EnsureFresh(ctx))

	doc, err := store.Get(ctx, inventory.ArchiveDocID)
	require.NoError(t, err)
	var snapshot struct {
		Entries []json.RawMessage `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(doc.Data, &snapshot))
	assert.Empty(t, snapshot.Entries, "mid-month commit must not be snapshotted yet")

	// ...but it is still visible through the merged read.
	stock, err := eng.Archive.Query(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, stock[inventory.StockKey{ISBN: "X", WarehouseID: "v1/a"}])

	// After the month rolls over, the refresh folds it in.
	clock.Advance(31 * 24 * time.Hour)
	require.NoError(t, eng.Archive.EnsureFresh(ctx))
	doc, err = store.Get(ctx, inventory.ArchiveDocID)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(doc.Data, &snapshot))
	assert.Len(t, snapshot.Entries, 1)
}
