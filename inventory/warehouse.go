/*
warehouse.go - Warehouse entity

PURPOSE:
  A warehouse is a named stock partition. It owns notes only by
  back-reference: a note stores its warehouse id, the warehouse stores
  nothing about its notes.

LIFECYCLE:
  Warehouses are created lazily the first time they are referenced -
  explicitly via Create, or implicitly when a note is created under
  them. Create is a no-op when the document already exists, so callers
  never need an exists-check first.

  Delete detaches rather than cascades: draft notes under the warehouse
  are flagged deleted, committed notes stay untouched (they are ledger
  history), then the warehouse document itself is removed. The default
  pseudo warehouse cannot be deleted.

SEE ALSO:
  - note.go: The owned side of the back-reference
  - naming.go: Default display-name sequence
*/
package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openshelf/stock-engine/docstore"
)

// defaultWarehouseBaseName seeds the display-name sequence.
const defaultWarehouseBaseName = "New Warehouse"

// Warehouse is a named stock partition.
type Warehouse struct {
	ID          string
	DisplayName string
	Discount    decimal.Decimal // percentage, 0-100
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// WarehousePatch is a partial update; nil fields are left unchanged.
type WarehousePatch struct {
	DisplayName *string
	Discount    *decimal.Decimal
}

// WarehouseRepo persists warehouses in the document store.
type WarehouseRepo struct {
	store docstore.Store
	clock func() time.Time
}

// Create makes the warehouse with the given id exist. If the document is
// already present this is a no-op returning the stored state. A fresh
// warehouse receives the next sequenced display name ("New Warehouse",
// "New Warehouse (2)", ...); the default pseudo warehouse is named "All".
func (r *WarehouseRepo) Create(ctx context.Context, id string) (Warehouse, error) {
	id = NamespaceID(id)

	doc, err := updateWithRetry(ctx, r.store, id, func(current docstore.Document) ([]byte, bool, error) {
		if current.Rev != 0 {
			return nil, true, nil
		}
		name, err := r.nextDisplayName(ctx, id)
		if err != nil {
			return nil, false, err
		}
		now := r.clock()
		data, err := encodeWarehouse(Warehouse{
			DisplayName: name,
			Discount:    decimal.Zero,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		return data, false, err
	})
	if err != nil {
		return Warehouse{}, err
	}
	return decodeWarehouse(doc)
}

// Get returns the warehouse, or nil if the document is absent.
func (r *WarehouseRepo) Get(ctx context.Context, id string) (*Warehouse, error) {
	doc, err := r.store.Get(ctx, NamespaceID(id))
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	w, err := decodeWarehouse(doc)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// List returns every warehouse, default pseudo warehouse included,
// ordered by id.
func (r *WarehouseRepo) List(ctx context.Context) ([]Warehouse, error) {
	docs, err := r.store.Query(ctx, docstore.Query{
		Prefix: Version + "/",
		Match:  func(d docstore.Document) bool { return docType(d) == docTypeWarehouse },
	})
	if err != nil {
		return nil, err
	}
	out := make([]Warehouse, 0, len(docs))
	for _, doc := range docs {
		w, err := decodeWarehouse(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

// Update applies patch. An absent warehouse is created first (lazy
// creation), so patching an unreferenced id is valid.
func (r *WarehouseRepo) Update(ctx context.Context, id string, patch WarehousePatch) (Warehouse, error) {
	id = NamespaceID(id)

	doc, err := updateWithRetry(ctx, r.store, id, func(current docstore.Document) ([]byte, bool, error) {
		var w Warehouse
		if current.Rev == 0 {
			name, err := r.nextDisplayName(ctx, id)
			if err != nil {
				return nil, false, err
			}
			w = Warehouse{DisplayName: name, Discount: decimal.Zero, CreatedAt: r.clock()}
		} else {
			var err error
			w, err = decodeWarehouse(current)
			if err != nil {
				return nil, false, err
			}
		}

		if patch.DisplayName != nil {
			w.DisplayName = *patch.DisplayName
		}
		if patch.Discount != nil {
			w.Discount = *patch.Discount
		}
		w.UpdatedAt = r.clock()

		data, err := encodeWarehouse(w)
		return data, false, err
	})
	if err != nil {
		return Warehouse{}, err
	}
	return decodeWarehouse(doc)
}

// Delete removes the warehouse document after flagging its draft notes
// deleted. Committed notes are ledger history and stay untouched.
// Deleting an absent warehouse is a no-op.
func (r *WarehouseRepo) Delete(ctx context.Context, id string) error {
	id = NamespaceID(id)
	if id == DefaultWarehouseID {
		return fmt.Errorf("cannot delete the default warehouse %s", id)
	}

	// Detach: flip the deleted flag on every draft note under this
	// warehouse. Each flip goes through the usual CAS cycle.
	docs, err := r.store.Query(ctx, docstore.Query{
		Prefix: id + "/",
		Match:  func(d docstore.Document) bool { return docType(d) == docTypeNote },
	})
	if err != nil {
		return err
	}
	for _, doc := range docs {
		n, err := decodeNote(doc)
		if err != nil {
			return err
		}
		if n.Committed || n.Deleted {
			continue
		}
		if _, err := updateWithRetry(ctx, r.store, n.ID, func(current docstore.Document) ([]byte, bool, error) {
			if current.Rev == 0 {
				return nil, true, nil
			}
			note, err := decodeNote(current)
			if err != nil {
				return nil, false, err
			}
			if note.Committed || note.Deleted {
				return nil, true, nil
			}
			note.Deleted = true
			note.UpdatedAt = r.clock()
			data, err := encodeNote(note)
			return data, false, err
		}); err != nil {
			return err
		}
	}

	for attempt := 0; attempt < retryBudget; attempt++ {
		doc, err := r.store.Get(ctx, id)
		if errors.Is(err, docstore.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		err = r.store.Delete(ctx, id, doc.Rev)
		if err == nil {
			return nil
		}
		if !errors.Is(err, docstore.ErrRevConflict) {
			return err
		}
	}
	return fmt.Errorf("%w: deleting %s", ErrTooMuchContention, id)
}

// nextDisplayName scans existing warehouse names for the sequence base.
func (r *WarehouseRepo) nextDisplayName(ctx context.Context, id string) (string, error) {
	if id == DefaultWarehouseID {
		return "All", nil
	}
	existing, err := r.List(ctx)
	if err != nil {
		return "", err
	}
	names := make([]string, 0, len(existing))
	for _, w := range existing {
		names = append(names, w.DisplayName)
	}
	return nextSequencedName(names, defaultWarehouseBaseName), nil
}
