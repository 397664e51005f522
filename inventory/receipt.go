/*
receipt.go - Read-only display projections of a note

PURPOSE:
  The formatting layer (receipts, exports) consumes notes through these
  projections instead of raw entries. IntoReceipt prices every row:
  book rows get their catalogue price with the target warehouse's
  discount applied, custom rows pass their price through unchanged.
  All arithmetic is decimal - never float - and nothing here writes.
*/
package inventory

import (
	"context"

	"github.com/shopspring/decimal"
)

// ReceiptItem is one priced line of a receipt.
type ReceiptItem struct {
	Title    string
	Quantity int
	Price    decimal.Decimal // unit price before discount
	Discount decimal.Decimal // percentage applied, 0-100
	Total    decimal.Decimal // quantity * price * (1 - discount/100)
}

// Receipt is the printable projection of a note.
type Receipt struct {
	NoteID string
	Items  []ReceiptItem
	Total  decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// IntoReceipt projects the note with the given id into priced lines.
// Book prices come from the metadata provider; discounts from each
// row's warehouse. An absent note yields an empty receipt.
func (e *Engine) IntoReceipt(ctx context.Context, noteID string) (Receipt, error) {
	n, err := e.Notes.Get(ctx, noteID)
	if err != nil {
		return Receipt{}, err
	}
	receipt := Receipt{NoteID: noteID, Total: decimal.Zero}
	if n == nil {
		return receipt, nil
	}

	// Discounts by warehouse, looked up once per warehouse.
	discounts := make(map[string]decimal.Decimal)
	discountFor := func(warehouseID string) (decimal.Decimal, error) {
		if d, ok := discounts[warehouseID]; ok {
			return d, nil
		}
		w, err := e.Warehouses.Get(ctx, warehouseID)
		if err != nil {
			return decimal.Zero, err
		}
		d := decimal.Zero
		if w != nil {
			d = w.Discount
		}
		discounts[warehouseID] = d
		return d, nil
	}

	for _, entry := range n.Entries {
		switch row := entry.(type) {
		case BookRow:
			book, err := e.meta.Fetch(ctx, row.ISBN)
			if err != nil {
				return Receipt{}, err
			}
			warehouseID := row.WarehouseID
			if n.Type == NoteInbound {
				warehouseID = n.WarehouseID
			}
			discount, err := discountFor(warehouseID)
			if err != nil {
				return Receipt{}, err
			}
			title := book.Title
			if title == "" {
				title = row.ISBN
			}
			total := book.Price.
				Mul(decimal.NewFromInt(int64(row.Quantity))).
				Mul(hundred.Sub(discount)).
				Div(hundred)
			receipt.Items = append(receipt.Items, ReceiptItem{
				Title:    title,
				Quantity: row.Quantity,
				Price:    book.Price,
				Discount: discount,
				Total:    total,
			})
			receipt.Total = receipt.Total.Add(total)

		case CustomRow:
			receipt.Items = append(receipt.Items, ReceiptItem{
				Title:    row.Title,
				Quantity: 1,
				Price:    row.Price,
				Discount: decimal.Zero,
				Total:    row.Price,
			})
			receipt.Total = receipt.Total.Add(row.Price)
		}
	}
	return receipt, nil
}
