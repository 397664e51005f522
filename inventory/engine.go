/*
engine.go - Engine composition root

PURPOSE:
  Wires the repositories, aggregator, archive, reconciler and view hub
  over one document store. Everything is dependency-injected here:
  the clock and id generator for deterministic tests, the metadata
  provider for catalogue lookups.

USAGE:
  store := memory.New()            // or sqlite.New(path)
  eng := inventory.New(store)
  defer eng.Close()

  wh, _ := eng.Warehouses.Create(ctx, "science")
  n, _  := eng.Notes.Create(ctx, wh.ID, inventory.NoteInbound)
  eng.Notes.AddVolumes(ctx, n.ID, inventory.BookRow{ISBN: "0123456789", Quantity: 5})
  eng.Notes.Commit(ctx, n.ID)
*/
package inventory

import (
	"time"

	"github.com/google/uuid"

	"github.com/openshelf/stock-engine/docstore"
)

// Engine bundles the inventory components over one document store.
type Engine struct {
	Warehouses *WarehouseRepo
	Notes      *NoteRepo
	Stock      *Aggregator
	Archive    *ArchiveManager
	Reconciler *Reconciler
	Views      *ViewHub

	store docstore.Store
	meta  MetadataProvider
}

// Option customizes engine construction.
type Option func(*options)

type options struct {
	clock func() time.Time
	newID func() string
	meta  MetadataProvider
}

// WithClock injects the time source (tests pin it).
func WithClock(clock func() time.Time) Option {
	return func(o *options) { o.clock = clock }
}

// WithIDGenerator injects the note/row id generator.
func WithIDGenerator(newID func() string) Option {
	return func(o *options) { o.newID = newID }
}

// WithMetadata injects the book-metadata capability.
func WithMetadata(meta MetadataProvider) Option {
	return func(o *options) { o.meta = meta }
}

// New builds an engine over store. The returned engine is ready: its
// view hub is already watching the store.
func New(store docstore.Store, opts ...Option) *Engine {
	o := options{
		clock: time.Now,
		newID: uuid.NewString,
		meta:  NoopMetadata{},
	}
	for _, opt := range opts {
		opt(&o)
	}

	warehouses := &WarehouseRepo{store: store, clock: o.clock}
	agg := &Aggregator{store: store}
	archive := &ArchiveManager{store: store, agg: agg, clock: o.clock}
	notes := &NoteRepo{
		store:      store,
		warehouses: warehouses,
		stock:      archive,
		clock:      o.clock,
		newID:      o.newID,
	}
	reconciler := &Reconciler{notes: notes, stock: archive}
	views := newViewHub(store, notes, warehouses, archive, o.meta)

	return &Engine{
		Warehouses: warehouses,
		Notes:      notes,
		Stock:      agg,
		Archive:    archive,
		Reconciler: reconciler,
		Views:      views,
		store:      store,
		meta:       o.meta,
	}
}

// Close releases the engine's store watch. The store itself belongs to
// the caller.
func (e *Engine) Close() {
	e.Views.Close()
}
