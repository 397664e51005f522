package inventory_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openshelf/stock-engine/inventory"
)

// catalog is a priced metadata provider for receipt scenarios.
type catalog map[string]inventory.BookEntry

func (c catalog) Fetch(_ context.Context, isbn string) (inventory.BookEntry, error) {
	entry, ok := c[isbn]
	if !ok {
		return inventory.BookEntry{ISBN: isbn}, nil
	}
	return entry, nil
}

func TestScenario_PurchaseThenSale(t *testing.T) {
	// The central flow: stock arrives through a committed inbound note,
	// leaves through a committed outbound note, and every intermediate
	// read reflects exactly the committed ledger.

	eng, _ := newTestEngine(t)
	ctx := context.Background()

	in, err := eng.Notes.Create(ctx, "science", inventory.NoteInbound)
	require.NoError(t, err)
	_, err = eng.Notes.AddVolumes(ctx, in.ID, inventory.BookRow{ISBN: "9780441013593", Quantity: 5})
	require.NoError(t, err)

	// Drafts are invisible to stock.
	stock, err := eng.Archive.Query(ctx)
	require.NoError(t, err)
	assert.Empty(t, stock)

	_, err = eng.Notes.Commit(ctx, in.ID)
	require.NoError(t, err)

	stock, err = eng.Archive.Query(ctx)
	require.NoError(t, err)
	key := inventory.StockKey{ISBN: "9780441013593", WarehouseID: "v1/science"}
	assert.Equal(t, 5, stock[key])

	out, err := eng.Notes.Create(ctx, "", inventory.NoteOutbound)
	require.NoError(t, err)
	_, err = eng.Notes.SetDefaultWarehouse(ctx, out.ID, "science")
	require.NoError(t, err)
	_, err = eng.Notes.AddVolumes(ctx, out.ID, inventory.BookRow{ISBN: "9780441013593", Quantity: 3})
	require.NoError(t, err)
	_, err = eng.Notes.Commit(ctx, out.ID)
	require.NoError(t, err)

	stock, err = eng.Archive.Query(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stock[key])
}

func TestScenario_ReceiptWithDiscountAndCustomItem(t *testing.T) {
	// GIVEN: A 25 EUR book sold from a warehouse with a 10% discount,
	//        plus a 3 EUR custom item
	// THEN: The receipt totals 22.50 + 3.00 = 25.50

	books := catalog{
		"1111": {ISBN: "1111", Title: "Dune", Price: decimal.NewFromInt(25)},
	}
	eng := inventory.New(newTestStore(t),
		inventory.WithClock(newTestClock().Now),
		inventory.WithIDGenerator(seqIDs()),
		inventory.WithMetadata(books),
	)
	t.Cleanup(eng.Close)
	ctx := context.Background()

	_, err := eng.Warehouses.Create(ctx, "shop")
	require.NoError(t, err)
	discount := decimal.NewFromInt(10)
	_, err = eng.Warehouses.Update(ctx, "shop", inventory.WarehousePatch{Discount: &discount})
	require.NoError(t, err)

	inboundWith(t, eng, "shop", inventory.BookRow{ISBN: "1111", Quantity: 2})

	out, err := eng.Notes.Create(ctx, "", inventory.NoteOutbound)
	require.NoError(t, err)
	_, err = eng.Notes.AddVolumes(ctx, out.ID,
		inventory.BookRow{ISBN: "1111", Quantity: 1, WarehouseID: "shop"},
		inventory.CustomRow{Title: "Tote bag", Price: decimal.NewFromInt(3)},
	)
	require.NoError(t, err)

	receipt, err := eng.IntoReceipt(ctx, out.ID)
	require.NoError(t, err)
	require.Len(t, receipt.Items, 2)

	book := receipt.Items[0]
	assert.Equal(t, "Dune", book.Title)
	assert.True(t, book.Total.Equal(decimal.RequireFromString("22.5")), "got %s", book.Total)

	custom := receipt.Items[1]
	assert.Equal(t, "Tote bag", custom.Title)
	assert.True(t, custom.Total.Equal(decimal.NewFromInt(3)))

	assert.True(t, receipt.Total.Equal(decimal.RequireFromString("25.5")), "got %s", receipt.Total)
}

func TestScenario_ReceiptForUnknownNoteIsEmpty(t *testing.T) {
	eng, _ := newTestEngine(t)

	receipt, err := eng.IntoReceipt(context.Background(), "v1/a/outbound/missing")
	require.NoError(t, err)
	assert.Empty(t, receipt.Items)
	assert.True(t, receipt.Total.IsZero())
}
