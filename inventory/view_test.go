package inventory_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openshelf/stock-engine/docstore"
	"github.com/openshelf/stock-engine/docstore/memory"
	"github.com/openshelf/stock-engine/inventory"
)

// latest drains the conflated channel down to its most recent value.
func latest[T any](t *testing.T, c <-chan inventory.Result[T]) inventory.Result[T] {
	t.Helper()
	var r inventory.Result[T]
	got := false
	for {
		select {
		case v, ok := <-c:
			require.True(t, ok, "channel closed while draining")
			r, got = v, true
		default:
			require.True(t, got, "no result available")
			return r
		}
	}
}

func TestView_StreamNotes_InitialValueThenLiveUpdates(t *testing.T) {
	// GIVEN: One existing draft note
	// WHEN: A subscription starts and a second note is created
	// THEN: The initial result holds one note, the next result two

	eng, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.Notes.Create(ctx, "a", inventory.NoteInbound)
	require.NoError(t, err)

	sub, err := eng.Views.StreamNotes(ctx, "", 1)
	require.NoError(t, err)
	defer sub.Cancel()

	initial := latest(t, sub.C)
	assert.Equal(t, 1, initial.Total)

	_, err = eng.Notes.Create(ctx, "a", inventory.NoteInbound)
	require.NoError(t, err)

	updated := latest(t, sub.C)
	assert.Equal(t, 2, updated.Total)
	assert.Len(t, updated.Rows, 2)
}

func TestView_StreamNotes_ScopedToWarehouse(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.Notes.Create(ctx, "a", inventory.NoteInbound)
	require.NoError(t, err)

	sub, err := eng.Views.StreamNotes(ctx, "a", 1)
	require.NoError(t, err)
	defer sub.Cancel()
	_ = latest(t, sub.C)

	// A note in another warehouse must not wake this subscription.
	_, err = eng.Notes.Create(ctx, "b", inventory.NoteInbound)
	require.NoError(t, err)

	select {
	case r := <-sub.C:
		t.Fatalf("unexpected recompute: %+v", r)
	default:
	}
}

func TestView_StreamNotes_ExcludesDeleted(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	n, err := eng.Notes.Create(ctx, "a", inventory.NoteInbound)
	require.NoError(t, err)

	sub, err := eng.Views.StreamNotes(ctx, "a", 1)
	require.NoError(t, err)
	defer sub.Cancel()
	_ = latest(t, sub.C)

	_, err = eng.Notes.Delete(ctx, n.ID)
	require.NoError(t, err)

	updated := latest(t, sub.C)
	assert.Zero(t, updated.Total)
}

func TestView_Pagination_WindowsAndTotals(t *testing.T) {
	// GIVEN: 15 notes and PageSize 10
	// THEN: Page 1 holds 10 rows, page 2 holds 5, page 9 is empty with
	//       the totals intact

	eng, _ := newTestEngine(t)
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		_, err := eng.Notes.Create(ctx, fmt.Sprintf("wh%02d", i), inventory.NoteInbound)
		require.NoError(t, err)
	}

	page1, err := eng.Views.StreamNotes(ctx, "", 1)
	require.NoError(t, err)
	defer page1.Cancel()
	page2, err := eng.Views.StreamNotes(ctx, "", 2)
	require.NoError(t, err)
	defer page2.Cancel()
	page9, err := eng.Views.StreamNotes(ctx, "", 9)
	require.NoError(t, err)
	defer page9.Cancel()

	r1 := latest(t, page1.C)
	assert.Len(t, r1.Rows, 10)
	assert.Equal(t, 15, r1.Total)
	assert.Equal(t, 2, r1.TotalPages)
	assert.Equal(t, 1, r1.Page)

	r2 := latest(t, page2.C)
	assert.Len(t, r2.Rows, 5)
	assert.Equal(t, 2, r2.Page)

	r9 := latest(t, page9.C)
	assert.Empty(t, r9.Rows)
	assert.Equal(t, 15, r9.Total)
}

func TestView_Cancel_ClosesChannelAndStopsDelivery(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	sub, err := eng.Views.StreamNotes(ctx, "", 1)
	require.NoError(t, err)
	_ = latest(t, sub.C)

	sub.Cancel()
	sub.Cancel() // idempotent

	_, ok := <-sub.C
	assert.False(t, ok, "channel must be closed")

	// A mutation after cancel must not panic on the closed channel.
	_, err = eng.Notes.Create(ctx, "a", inventory.NoteInbound)
	require.NoError(t, err)
}

func TestView_StreamWarehouses_CarriesStockTotals(t *testing.T) {
	// GIVEN: Stock in two warehouses
	// THEN: Each nav entry carries its own total and the default
	//       pseudo-warehouse carries the grand total

	eng, _ := newTestEngine(t)
	ctx := context.Background()

	inboundWith(t, eng, "a", inventory.BookRow{ISBN: "X", Quantity: 5})
	inboundWith(t, eng, "b", inventory.BookRow{ISBN: "Y", Quantity: 2})

	sub, err := eng.Views.StreamWarehouses(ctx, 1)
	require.NoError(t, err)
	defer sub.Cancel()

	r := latest(t, sub.C)
	totals := make(map[string]int)
	for _, entry := range r.Rows {
		totals[entry.ID] = entry.TotalBooks
	}
	assert.Equal(t, 5, totals["v1/a"])
	assert.Equal(t, 2, totals["v1/b"])

	// Commits move the totals live.
	out, err := eng.Notes.Create(ctx, "", inventory.NoteOutbound)
	require.NoError(t, err)
	_, err = eng.Notes.AddVolumes(ctx, out.ID, inventory.BookRow{ISBN: "X", Quantity: 3, WarehouseID: "a"})
	require.NoError(t, err)
	_, err = eng.Notes.Commit(ctx, out.ID)
	require.NoError(t, err)

	r = latest(t, sub.C)
	totals = make(map[string]int)
	for _, entry := range r.Rows {
		totals[entry.ID] = entry.TotalBooks
	}
	assert.Equal(t, 2, totals["v1/a"])
	assert.Equal(t, 4, totals[inventory.DefaultWarehouseID], "pseudo warehouse carries the grand total")
}

func TestView_StreamStock_FiltersAndDecorates(t *testing.T) {
	eng := inventory.New(newTestStore(t),
		inventory.WithClock(newTestClock().Now),
		inventory.WithIDGenerator(seqIDs()),
		inventory.WithMetadata(staticMetadata{"X": "Dune"}),
	)
	t.Cleanup(eng.Close)
	ctx := context.Background()

	inboundWith(t, eng, "a", inventory.BookRow{ISBN: "X", Quantity: 5})
	inboundWith(t, eng, "b", inventory.BookRow{ISBN: "Y", Quantity: 2})

	sub, err := eng.Views.StreamStock(ctx, "a", 1)
	require.NoError(t, err)
	defer sub.Cancel()

	r := latest(t, sub.C)
	require.Len(t, r.Rows, 1)
	assert.Equal(t, "X", r.Rows[0].ISBN)
	assert.Equal(t, 5, r.Rows[0].Quantity)
	assert.Equal(t, "Dune", r.Rows[0].Book.Title)
}

// plantingStore injects one extra note the first time an armed query
// runs, reproducing a write racing subscription setup: the injected
// change broadcasts before the subscription is registered.
type plantingStore struct {
	*memory.Store
	armed   bool
	planted bool
	plant   docstore.Document
}

func (s *plantingStore) Query(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	docs, err := s.Store.Query(ctx, q)
	if err == nil && s.armed && !s.planted {
		s.planted = true
		if _, perr := s.Store.Put(ctx, s.plant); perr != nil {
			return nil, perr
		}
	}
	return docs, err
}

func TestView_Subscribe_SeesWriteRacingSetup(t *testing.T) {
	// GIVEN: A note that lands while the subscription's initial query is
	//        in flight, so its change notification finds no subscriber
	// WHEN: The subscription finishes registering
	// THEN: The first delivered result already includes the note

	ps := &plantingStore{Store: memory.New(), plant: docstore.Document{
		ID:   "v1/a/inbound/raced",
		Data: []byte(`{"docType":"note","noteType":"inbound","displayName":"raced","entries":[]}`),
	}}
	t.Cleanup(func() { _ = ps.Close() })
	eng := inventory.New(ps,
		inventory.WithClock(newTestClock().Now),
		inventory.WithIDGenerator(seqIDs()),
	)
	t.Cleanup(eng.Close)

	ps.armed = true
	sub, err := eng.Views.StreamNotes(context.Background(), "", 1)
	require.NoError(t, err)
	defer sub.Cancel()

	r := latest(t, sub.C)
	assert.Equal(t, 1, r.Total)
}
