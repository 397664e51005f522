/*
aggregate.go - Ledger aggregator

PURPOSE:
  Computes stock by replaying committed notes. Stock is never stored as
  a mutable counter: every read is a signed sum over the ledger, which
  is what keeps it consistent under concurrent commits.

ALGORITHM:
  For every committed note whose commit timestamp falls in the window
  [From, To): add each book row's quantity for inbound notes, subtract
  it for outbound notes, keyed by (isbn, warehouse). Inbound rows count
  toward the note's own warehouse, outbound rows toward their own
  per-row warehouse. Custom rows never affect stock.

ASSOCIATIVITY:
  The signed sum splits over windows:
  Query([a,c)) == Query([a,b)) merged with Query([b,c)) for a <= b <= c.
  The archive manager exploits this to bound replay cost.

SEE ALSO:
  - archive.go: Checkpointed snapshot + delta replay
  - note.go: Commit validation (the non-negativity gate)
*/
package inventory

import (
	"context"
	"time"

	"github.com/openshelf/stock-engine/docstore"
)

// Window is a half-open commit-time interval [From, To). A zero From
// means "from the beginning", a zero To means "up to now".
type Window struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	if !w.From.IsZero() && t.Before(w.From) {
		return false
	}
	if !w.To.IsZero() && !t.Before(w.To) {
		return false
	}
	return true
}

// Aggregator replays committed notes into stock maps.
type Aggregator struct {
	store docstore.Store
}

// Query replays every committed note inside w and returns the signed
// stock sum.
func (a *Aggregator) Query(ctx context.Context, w Window) (StockMap, error) {
	docs, err := a.store.Query(ctx, docstore.Query{
		Prefix: Version + "/",
		Match:  func(d docstore.Document) bool { return docType(d) == docTypeNote },
	})
	if err != nil {
		return nil, err
	}

	stock := make(StockMap)
	for _, doc := range docs {
		n, err := decodeNote(doc)
		if err != nil {
			return nil, err
		}
		if !n.Committed || !w.Contains(n.CommittedAt) {
			continue
		}
		applyNote(stock, n)
	}
	return stock, nil
}

// applyNote folds one committed note into stock.
func applyNote(stock StockMap, n Note) {
	sign := 1
	if n.Type == NoteOutbound {
		sign = -1
	}
	for _, e := range n.Entries {
		row, ok := e.(BookRow)
		if !ok {
			continue
		}
		warehouseID := row.WarehouseID
		if n.Type == NoteInbound {
			warehouseID = n.WarehouseID
		}
		stock.Add(StockKey{ISBN: row.ISBN, WarehouseID: warehouseID}, sign*row.Quantity)
	}
}
