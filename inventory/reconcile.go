/*
reconcile.go - Stock reconciliation for blocked outbound notes

PURPOSE:
  An outbound note that asks for more than a warehouse holds cannot be
  committed. Rather than editing the note, reconciliation synthesizes
  the missing stock: for every short row it computes
  shortfall = requested - available, groups shortfalls by warehouse,
  and per warehouse creates and immediately commits an inbound note
  flagged as a reconciliation note carrying exactly the shortfalls.

  The original outbound note is never touched. After reconciliation a
  re-issued Commit re-validates against the topped-up stock and
  succeeds - by exactly the amount needed, no more.

SEE ALSO:
  - note.go: OutOfStockError produced by the blocked commit
  - archive.go: The stock read shortfalls are computed against
*/
package inventory

import (
	"context"
	"fmt"
	"sort"
)

// Reconciler synthesizes compensating inbound notes.
type Reconciler struct {
	notes *NoteRepo
	stock stockReader
}

// reconciliationBaseName seeds the display names of synthesized notes.
const reconciliationBaseName = "Reconciliation Note"

// Reconcile inspects the draft outbound note with the given id and
// creates one committed inbound reconciliation note per warehouse with
// a shortfall. Returns the synthesized notes (none when stock already
// suffices). Rows without an assigned warehouse are skipped - they
// cannot be reconciled against any stock.
func (r *Reconciler) Reconcile(ctx context.Context, noteID string) ([]Note, error) {
	n, err := r.notes.Get(ctx, noteID)
	if err != nil {
		return nil, err
	}
	if n == nil || n.Type != NoteOutbound || !n.Draft() {
		return nil, fmt.Errorf("%w: %s", ErrNotOutbound, noteID)
	}

	stock, err := r.stock.Query(ctx)
	if err != nil {
		return nil, err
	}

	// Group shortfalls by warehouse.
	shortfalls := make(map[string]StockMap)
	for _, e := range n.Entries {
		row, ok := e.(BookRow)
		if !ok || row.WarehouseID == "" {
			continue
		}
		key := StockKey{ISBN: row.ISBN, WarehouseID: row.WarehouseID}
		short := row.Quantity - stock[key]
		if short <= 0 {
			continue
		}
		if shortfalls[row.WarehouseID] == nil {
			shortfalls[row.WarehouseID] = make(StockMap)
		}
		shortfalls[row.WarehouseID].Add(key, short)
	}

	warehouseIDs := make([]string, 0, len(shortfalls))
	for id := range shortfalls {
		warehouseIDs = append(warehouseIDs, id)
	}
	sort.Strings(warehouseIDs)

	var created []Note
	for _, warehouseID := range warehouseIDs {
		compensation, err := r.compensate(ctx, warehouseID, shortfalls[warehouseID])
		if err != nil {
			return created, err
		}
		created = append(created, compensation)
	}
	return created, nil
}

// compensate creates and commits one inbound reconciliation note.
func (r *Reconciler) compensate(ctx context.Context, warehouseID string, short StockMap) (Note, error) {
	n, err := r.notes.Create(ctx, warehouseID, NoteInbound)
	if err != nil {
		return Note{}, err
	}
	name, err := r.notes.nextDisplayName(ctx, reconciliationBaseName)
	if err != nil {
		return Note{}, err
	}
	if _, err := r.notes.SetDisplayName(ctx, n.ID, name); err != nil {
		return Note{}, err
	}
	if _, err := r.notes.mutateDraft(ctx, n.ID, func(note *Note) error {
		note.ReconciliationNote = true
		return nil
	}); err != nil {
		return Note{}, err
	}

	entries := make([]Entry, 0, len(short))
	for _, row := range short.Rows() {
		entries = append(entries, BookRow{
			ISBN:        row.ISBN,
			Quantity:    row.Quantity,
			WarehouseID: row.WarehouseID,
		})
	}
	if _, err := r.notes.AddVolumes(ctx, n.ID, entries...); err != nil {
		return Note{}, err
	}
	return r.notes.Commit(ctx, n.ID)
}
