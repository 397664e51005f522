/*
view.go - Reactive view layer

PURPOSE:
  Turns store change notifications into live, paginated result streams.
  A subscription runs its query once up front (so late subscribers get
  the current value immediately) and re-runs it whenever a change lands
  on a document in its dependency set, pushing the fresh result to its
  channel.

SCHEDULING:
  Cooperative and effectively single-threaded: one store watch feeds a
  registry of subscriptions, and each notification triggers a full
  recompute-and-push step per affected subscription, in sequence, under
  the hub lock. Results are conflated - a slow consumer sees the most
  recent value, never a partial or stale intermediate.

PAGINATION:
  A derived parameter: the query always produces the full result set
  and the page window (fixed size 10) is re-applied on every
  recomputation, so page boundaries shift as rows appear and disappear.

CANCELLATION:
  Cancel removes the subscription under the hub lock and closes the
  channel. Once it returns, no further pushes happen.

SEE ALSO:
  - docstore/store.go: The Watch primitive
  - engine.go: Hub construction and the store watch lifetime
*/
package inventory

import (
	"context"
	"strings"
	"sync"

	"github.com/openshelf/stock-engine/docstore"
)

// PageSize is the fixed page length of every paginated view.
const PageSize = 10

// Result is one internally-consistent snapshot of a paginated query.
type Result[T any] struct {
	Rows       []T
	Total      int
	TotalPages int
	Page       int
}

// paginate applies the page window to a full result set. Pages are
// 1-based; out-of-range pages yield empty rows with correct totals.
func paginate[T any](rows []T, page int) Result[T] {
	if page < 1 {
		page = 1
	}
	total := len(rows)
	totalPages := (total + PageSize - 1) / PageSize

	start := (page - 1) * PageSize
	if start > total {
		start = total
	}
	end := start + PageSize
	if end > total {
		end = total
	}
	return Result[T]{
		Rows:       rows[start:end],
		Total:      total,
		TotalPages: totalPages,
		Page:       page,
	}
}

// =============================================================================
// HUB - Subscription registry fed by one store watch
// =============================================================================

// ViewHub owns the subscriptions and the single store watch feeding
// them.
type ViewHub struct {
	store      docstore.Store
	notes      *NoteRepo
	warehouses *WarehouseRepo
	archive    *ArchiveManager
	meta       MetadataProvider

	mu          sync.Mutex
	subs        map[int]*viewSub
	next        int
	cancelWatch func()
}

type viewSub struct {
	depends   func(docstore.Change) bool
	recompute func()
}

func newViewHub(store docstore.Store, notes *NoteRepo, warehouses *WarehouseRepo, archive *ArchiveManager, meta MetadataProvider) *ViewHub {
	h := &ViewHub{
		store:      store,
		notes:      notes,
		warehouses: warehouses,
		archive:    archive,
		meta:       meta,
		subs:       make(map[int]*viewSub),
	}
	h.cancelWatch = store.Watch(h.onChange)
	return h
}

// onChange is the single recompute-and-broadcast step per notification.
func (h *ViewHub) onChange(c docstore.Change) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subs {
		if sub.depends(c) {
			sub.recompute()
		}
	}
}

// Close stops the store watch and drops every subscription.
func (h *ViewHub) Close() {
	h.cancelWatch()
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs = make(map[int]*viewSub)
}

// =============================================================================
// SUBSCRIPTION - Live handle to one query
// =============================================================================

// Subscription delivers fresh results on C until cancelled.
type Subscription[T any] struct {
	C <-chan Result[T]

	ch     chan Result[T]
	cancel func()
	once   sync.Once
}

// Cancel synchronously stops delivery and closes C.
func (s *Subscription[T]) Cancel() {
	s.once.Do(func() {
		s.cancel()
		close(s.ch)
	})
}

// subscribe registers a new live query: it runs query once for the
// initial value, then re-runs it on every matching change.
func subscribe[T any](ctx context.Context, h *ViewHub, depends func(docstore.Change) bool, query func(context.Context) ([]T, error), page int) (*Subscription[T], error) {
	// Initial result outside the lock; also surfaces query errors.
	rows, err := query(ctx)
	if err != nil {
		return nil, err
	}

	ch := make(chan Result[T], 1)
	ch <- paginate(rows, page)

	h.mu.Lock()
	id := h.next
	h.next++
	vs := &viewSub{
		depends: depends,
		recompute: func() {
			rows, err := query(ctx)
			if err != nil {
				// Store failures on recompute keep the last good value;
				// the next change triggers another attempt.
				return
			}
			push(ch, paginate(rows, page))
		},
	}
	h.subs[id] = vs
	// A change can land between the initial query and registration and
	// would never wake this subscription; recompute once under the lock
	// so the first delivered result is at least as fresh as registration.
	vs.recompute()
	h.mu.Unlock()

	sub := &Subscription[T]{C: ch, ch: ch}
	sub.cancel = func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}
	return sub, nil
}

// push conflates: the channel always holds the most recent result.
func push[T any](ch chan Result[T], r Result[T]) {
	for {
		select {
		case ch <- r:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}

// =============================================================================
// CHANGE PREDICATES
// =============================================================================

func isNoteChange(c docstore.Change) bool {
	return strings.Count(c.ID, "/") == 3 && strings.HasPrefix(c.ID, Version+"/")
}

func isWarehouseChange(c docstore.Change) bool {
	return strings.Count(c.ID, "/") == 1 && strings.HasPrefix(c.ID, Version+"/")
}

func isArchiveChange(c docstore.Change) bool {
	return c.ID == ArchiveDocID
}

// =============================================================================
// STREAMS
// =============================================================================

// StreamNotes is a live, paginated list of the notes under warehouseID
// (every note when empty). Deleted notes are excluded.
func (h *ViewHub) StreamNotes(ctx context.Context, warehouseID string, page int) (*Subscription[Note], error) {
	prefix := Version + "/"
	if warehouseID != "" {
		prefix = NamespaceID(warehouseID) + "/"
	}
	depends := func(c docstore.Change) bool {
		return isNoteChange(c) && strings.HasPrefix(c.ID, prefix)
	}
	query := func(ctx context.Context) ([]Note, error) {
		return h.notes.List(ctx, warehouseID)
	}
	return subscribe(ctx, h, depends, query, page)
}

// StreamWarehouses is a live navigation list of warehouses with their
// current total stock. Depends on warehouse documents (names), note
// documents (commits move stock) and the archive (checkpoint shifts).
func (h *ViewHub) StreamWarehouses(ctx context.Context, page int) (*Subscription[NavEntry], error) {
	depends := func(c docstore.Change) bool {
		return isWarehouseChange(c) || isNoteChange(c) || isArchiveChange(c)
	}
	query := func(ctx context.Context) ([]NavEntry, error) {
		warehouses, err := h.warehouses.List(ctx)
		if err != nil {
			return nil, err
		}
		stock, err := h.archive.Query(ctx)
		if err != nil {
			return nil, err
		}

		totals := make(map[string]int)
		for key, qty := range stock {
			totals[key.WarehouseID] += qty
			totals[DefaultWarehouseID] += qty
		}

		nav := make([]NavEntry, 0, len(warehouses))
		for _, w := range warehouses {
			nav = append(nav, NavEntry{
				ID:          w.ID,
				DisplayName: w.DisplayName,
				TotalBooks:  totals[w.ID],
			})
		}
		return nav, nil
	}
	return subscribe(ctx, h, depends, query, page)
}

// StreamStock is a live, paginated stock listing for one warehouse
// (every warehouse when empty), decorated with book metadata.
func (h *ViewHub) StreamStock(ctx context.Context, warehouseID string, page int) (*Subscription[StockEntry], error) {
	if warehouseID != "" {
		warehouseID = NamespaceID(warehouseID)
	}
	depends := func(c docstore.Change) bool {
		return isNoteChange(c) || isArchiveChange(c)
	}
	query := func(ctx context.Context) ([]StockEntry, error) {
		stock, err := h.archive.Query(ctx)
		if err != nil {
			return nil, err
		}
		if warehouseID != "" && warehouseID != DefaultWarehouseID {
			stock = stock.ForWarehouse(warehouseID)
		}

		entries := make([]StockEntry, 0, len(stock))
		for _, row := range stock.Rows() {
			entry := StockEntry{StockRow: row}
			if book, err := h.meta.Fetch(ctx, row.ISBN); err == nil {
				entry.Book = book
			}
			entries = append(entries, entry)
		}
		return entries, nil
	}
	return subscribe(ctx, h, depends, query, page)
}

// StockEntry is a stock row decorated with display metadata.
type StockEntry struct {
	StockRow
	Book BookEntry
}
