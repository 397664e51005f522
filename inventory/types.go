/*
Package inventory provides the embedded stock ledger and aggregation engine.

PURPOSE:
  This package contains the core domain: warehouses as stock partitions,
  notes as batches of stock-affecting transactions, a ledger aggregator
  that replays committed notes into stock levels, an archive that bounds
  replay cost with monthly checkpoints, and live reactive views.

KEY CONCEPTS IN THIS FILE (types.go):
  - Entry: A note row - either a book row (counts toward stock) or a
    custom-item row (priced free-form line, never affects stock)
  - StockKey/StockMap: Aggregated stock keyed by (isbn, warehouse)
  - Versioned ids: "v1/<warehouse>" and "v1/<warehouse>/<type>/<note>"

DESIGN PRINCIPLES:
  1. Single source of truth: stock is always computed from committed
     notes, never stored as a mutable counter
  2. Closed unions: the two row variants are concrete types behind a
     sealed interface, decoded explicitly at the store boundary
  3. Precision: decimal.Decimal for prices and discounts, never float

SEE ALSO:
  - note.go: Note state machine and commit validation
  - aggregate.go: Ledger replay
  - archive.go: Checkpointed snapshots
*/
package inventory

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS - Version-namespaced composite ids
// =============================================================================

// Version is the namespace prefix for all entity ids.
const Version = "v1"

// DefaultWarehouseID is the well-known pseudo warehouse holding "all
// stock". Outbound notes are bound to it; their rows carry the true
// target warehouse individually.
const DefaultWarehouseID = Version + "/all"

// NamespaceID idempotently prefixes a bare id with the version namespace.
func NamespaceID(id string) string {
	if strings.HasPrefix(id, Version+"/") {
		return id
	}
	return Version + "/" + id
}

// NoteType distinguishes stock receipts from stock dispatches.
type NoteType string

const (
	NoteInbound  NoteType = "inbound"
	NoteOutbound NoteType = "outbound"
)

func (t NoteType) valid() bool {
	return t == NoteInbound || t == NoteOutbound
}

// noteDocID builds the composite note id: v1/<warehouse>/<type>/<note>.
// warehouseID must already be namespaced.
func noteDocID(warehouseID string, t NoteType, noteID string) string {
	return fmt.Sprintf("%s/%s/%s", warehouseID, t, noteID)
}

// splitNoteID recovers (warehouseID, noteType) from a composite note id.
func splitNoteID(id string) (warehouseID string, t NoteType, ok bool) {
	parts := strings.Split(id, "/")
	if len(parts) != 4 || parts[0] != Version {
		return "", "", false
	}
	t = NoteType(parts[2])
	if !t.valid() {
		return "", "", false
	}
	return parts[0] + "/" + parts[1], t, true
}

// =============================================================================
// ENTRY - Note row, a closed two-variant union
// =============================================================================

// Entry is a single note row. Exactly two implementations exist:
// BookRow and CustomRow. The interface is sealed so the union stays
// closed at compile time.
type Entry interface {
	sealedEntry()
}

// BookRow records quantity of an ISBN moving in or out of a warehouse.
// Only book rows participate in stock aggregation.
type BookRow struct {
	ISBN        string
	Quantity    int
	WarehouseID string
}

func (BookRow) sealedEntry() {}

// CustomRow is a free-form priced line (gift wrap, postage, used items).
// It never affects stock.
type CustomRow struct {
	ID    string
	Title string
	Price decimal.Decimal
}

func (CustomRow) sealedEntry() {}

// =============================================================================
// STOCK MAP - Aggregated stock keyed by (isbn, warehouse)
// =============================================================================

// StockKey identifies one stock bucket.
type StockKey struct {
	ISBN        string
	WarehouseID string
}

// StockMap is a signed multiset of quantities per stock bucket. It is a
// derived value: the aggregator produces it, nothing persists it except
// the archive snapshot.
type StockMap map[StockKey]int

// Add accumulates qty (which may be negative) under key, pruning zeroed
// buckets so equality comparisons stay meaningful.
func (m StockMap) Add(key StockKey, qty int) {
	next := m[key] + qty
	if next == 0 {
		delete(m, key)
		return
	}
	m[key] = next
}

// Merge folds other into m additively.
func (m StockMap) Merge(other StockMap) {
	for key, qty := range other {
		m.Add(key, qty)
	}
}

// Clone returns an independent copy of m.
func (m StockMap) Clone() StockMap {
	out := make(StockMap, len(m))
	for key, qty := range m {
		out[key] = qty
	}
	return out
}

// StockRow is one bucket of a StockMap in list form.
type StockRow struct {
	ISBN        string
	WarehouseID string
	Quantity    int
}

// Rows returns the map as a deterministic slice, sorted by isbn then
// warehouse.
func (m StockMap) Rows() []StockRow {
	rows := make([]StockRow, 0, len(m))
	for key, qty := range m {
		rows = append(rows, StockRow{ISBN: key.ISBN, WarehouseID: key.WarehouseID, Quantity: qty})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].ISBN != rows[j].ISBN {
			return rows[i].ISBN < rows[j].ISBN
		}
		return rows[i].WarehouseID < rows[j].WarehouseID
	})
	return rows
}

// ForWarehouse filters m down to a single warehouse.
func (m StockMap) ForWarehouse(warehouseID string) StockMap {
	out := make(StockMap)
	for key, qty := range m {
		if key.WarehouseID == warehouseID {
			out[key] = qty
		}
	}
	return out
}

// =============================================================================
// NAV PROJECTIONS - Lightweight id -> display-name views
// =============================================================================

// NavEntry is a navigation-list projection of a warehouse or note.
type NavEntry struct {
	ID          string
	DisplayName string
	TotalBooks  int
}
