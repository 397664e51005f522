/*
note.go - Note entity and its state machine

PURPOSE:
  A note is an ordered batch of stock-affecting rows bound to exactly
  one warehouse. It is the only thing that ever changes stock, and it
  does so solely by being committed.

STATE MACHINE:
  draft -> committed   (terminal, exactly once, via Commit)
  draft -> deleted     (terminal, via Delete)

  No transition leaves committed. Mutators on a committed or deleted
  note decline silently and return the stored state unchanged - the
  frozen fields are the ledger's integrity, so "fail silently" beats
  forcing every caller to pre-check.

ROW AGGREGATION:
  Book rows are unique per (isbn, effective warehouse) within a note.
  Adding an existing key adds quantities instead of appending; updating
  a row re-inserts it through the same rule, so changing a row's
  warehouse can merge it into an existing row.

COMMIT VALIDATION:
  All checks run read-only before any write; a rejected commit leaves
  the note byte-identical. Outbound stock checks read a fresh
  archive-plus-delta aggregation on every attempt, so two outbound
  notes racing for the same stock each re-validate against the stock
  the other one just spent.

SEE ALSO:
  - errors.go: The four validation errors
  - aggregate.go, archive.go: The stock read used by outbound commits
*/
package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openshelf/stock-engine/docstore"
)

// defaultNoteBaseName seeds the display-name sequence.
const defaultNoteBaseName = "New Note"

// Note is a batch of stock-affecting rows.
type Note struct {
	ID          string
	WarehouseID string // the bound warehouse; DefaultWarehouseID for outbound
	Type        NoteType
	DisplayName string
	Entries     []Entry

	Committed          bool
	Deleted            bool
	ReconciliationNote bool

	// DefaultWarehouse, when set on an outbound note, is assigned to
	// book rows added without an explicit warehouse.
	DefaultWarehouse string

	CreatedAt   time.Time
	UpdatedAt   time.Time
	CommittedAt time.Time // zero until committed
}

// Draft reports whether the note still accepts mutations.
func (n *Note) Draft() bool { return !n.Committed && !n.Deleted }

// TotalBooks returns the summed quantity of all book rows.
func (n *Note) TotalBooks() int {
	total := 0
	for _, e := range n.Entries {
		if row, ok := e.(BookRow); ok {
			total += row.Quantity
		}
	}
	return total
}

// =============================================================================
// ROW KEYS - Matching rows for update/remove
// =============================================================================

// RowKey identifies one row within a note: book rows by
// (isbn, warehouse), custom rows by generated id.
type RowKey struct {
	ISBN        string
	WarehouseID string
	CustomID    string
}

// Key returns the matching key for an entry.
func Key(e Entry) RowKey {
	switch row := e.(type) {
	case BookRow:
		return RowKey{ISBN: row.ISBN, WarehouseID: row.WarehouseID}
	case CustomRow:
		return RowKey{CustomID: row.ID}
	default:
		return RowKey{}
	}
}

// =============================================================================
// NOTE REPO
// =============================================================================

// NoteRepo persists notes and drives their state machine.
type NoteRepo struct {
	store      docstore.Store
	warehouses *WarehouseRepo
	stock      stockReader
	clock      func() time.Time
	newID      func() string
}

// stockReader is the aggregation read used by outbound commit
// validation. Satisfied by ArchiveManager.
type stockReader interface {
	Query(ctx context.Context) (StockMap, error)
}

// Create makes a new draft note. Inbound notes bind to the given
// warehouse (created lazily if absent); outbound notes always bind to
// the default pseudo warehouse. The note gets the next sequenced
// display name.
func (r *NoteRepo) Create(ctx context.Context, warehouseID string, t NoteType) (Note, error) {
	if !t.valid() {
		return Note{}, fmt.Errorf("invalid note type %q", t)
	}

	warehouseID = NamespaceID(warehouseID)
	if t == NoteOutbound {
		warehouseID = DefaultWarehouseID
	} else if warehouseID == DefaultWarehouseID {
		return Note{}, fmt.Errorf("inbound note cannot bind to the default warehouse")
	}

	// Causal link: the warehouse must exist before its first note does.
	if _, err := r.warehouses.Create(ctx, warehouseID); err != nil {
		return Note{}, err
	}

	name, err := r.nextDisplayName(ctx, defaultNoteBaseName)
	if err != nil {
		return Note{}, err
	}

	now := r.clock()
	id := noteDocID(warehouseID, t, r.newID())
	n := Note{
		ID:          id,
		WarehouseID: warehouseID,
		Type:        t,
		DisplayName: name,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	data, err := encodeNote(n)
	if err != nil {
		return Note{}, err
	}
	doc, err := r.store.Put(ctx, docstore.Document{ID: id, Rev: 0, Data: data})
	if err != nil {
		return Note{}, err
	}
	return decodeNote(doc)
}

// Get returns the note, or nil if the document is absent.
func (r *NoteRepo) Get(ctx context.Context, id string) (*Note, error) {
	doc, err := r.store.Get(ctx, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	n, err := decodeNote(doc)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// List returns notes under one warehouse, or every note when
// warehouseID is empty. Deleted notes are excluded.
func (r *NoteRepo) List(ctx context.Context, warehouseID string) ([]Note, error) {
	prefix := Version + "/"
	if warehouseID != "" {
		prefix = NamespaceID(warehouseID) + "/"
	}
	docs, err := r.store.Query(ctx, docstore.Query{
		Prefix: prefix,
		Match:  func(d docstore.Document) bool { return docType(d) == docTypeNote },
	})
	if err != nil {
		return nil, err
	}
	out := make([]Note, 0, len(docs))
	for _, doc := range docs {
		n, err := decodeNote(doc)
		if err != nil {
			return nil, err
		}
		if n.Deleted {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

// =============================================================================
// DRAFT MUTATORS
// =============================================================================

// AddVolumes adds rows to a draft note. Book rows aggregate into an
// existing (isbn, effective warehouse) row when one exists; custom rows
// always append (with a generated id when absent).
func (r *NoteRepo) AddVolumes(ctx context.Context, id string, entries ...Entry) (Note, error) {
	return r.mutateDraft(ctx, id, func(n *Note) error {
		for _, e := range entries {
			if err := r.addEntry(n, e); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpdateRow replaces the row matching key with replacement. The
// replacement is re-inserted through the aggregation rule, so changing
// a row's warehouse can silently merge it into an existing row.
// Matching nothing is a no-op.
func (r *NoteRepo) UpdateRow(ctx context.Context, id string, match RowKey, replacement Entry) (Note, error) {
	return r.mutateDraft(ctx, id, func(n *Note) error {
		if !removeKeys(n, match) {
			return nil
		}
		return r.addEntry(n, replacement)
	})
}

// RemoveRows filters out the rows matching keys. No-op when nothing
// matches.
func (r *NoteRepo) RemoveRows(ctx context.Context, id string, keys ...RowKey) (Note, error) {
	return r.mutateDraft(ctx, id, func(n *Note) error {
		removeKeys(n, keys...)
		return nil
	})
}

// SetDefaultWarehouse sets the warehouse assigned to outbound rows
// added without one. Draft-only.
func (r *NoteRepo) SetDefaultWarehouse(ctx context.Context, id, warehouseID string) (Note, error) {
	return r.mutateDraft(ctx, id, func(n *Note) error {
		n.DefaultWarehouse = NamespaceID(warehouseID)
		return nil
	})
}

// SetDisplayName renames the note. The display name is not a ledger
// field, so renaming stays possible after commit; deleted notes decline.
func (r *NoteRepo) SetDisplayName(ctx context.Context, id, name string) (Note, error) {
	doc, err := updateWithRetry(ctx, r.store, id, func(current docstore.Document) ([]byte, bool, error) {
		if current.Rev == 0 {
			return nil, true, nil
		}
		n, err := decodeNote(current)
		if err != nil {
			return nil, false, err
		}
		if n.Deleted {
			return nil, true, nil
		}
		n.DisplayName = name
		n.UpdatedAt = r.clock()
		data, err := encodeNote(n)
		return data, false, err
	})
	return r.decodeOrZero(doc, err)
}

// Delete marks a draft note deleted. Committed notes decline silently;
// a deleted note stays deleted.
func (r *NoteRepo) Delete(ctx context.Context, id string) (Note, error) {
	doc, err := updateWithRetry(ctx, r.store, id, func(current docstore.Document) ([]byte, bool, error) {
		if current.Rev == 0 {
			return nil, true, nil
		}
		n, err := decodeNote(current)
		if err != nil {
			return nil, false, err
		}
		if !n.Draft() {
			return nil, true, nil
		}
		n.Deleted = true
		n.UpdatedAt = r.clock()
		data, err := encodeNote(n)
		return data, false, err
	})
	return r.decodeOrZero(doc, err)
}

// mutateDraft runs apply against the decoded note inside the CAS cycle,
// declining silently unless the note exists and is a draft.
func (r *NoteRepo) mutateDraft(ctx context.Context, id string, apply func(*Note) error) (Note, error) {
	doc, err := updateWithRetry(ctx, r.store, id, func(current docstore.Document) ([]byte, bool, error) {
		if current.Rev == 0 {
			return nil, true, nil
		}
		n, err := decodeNote(current)
		if err != nil {
			return nil, false, err
		}
		if !n.Draft() {
			return nil, true, nil
		}
		if err := apply(&n); err != nil {
			return nil, false, err
		}
		n.UpdatedAt = r.clock()
		data, err := encodeNote(n)
		return data, false, err
	})
	return r.decodeOrZero(doc, err)
}

// addEntry inserts one entry following the aggregation rule.
func (r *NoteRepo) addEntry(n *Note, e Entry) error {
	switch row := e.(type) {
	case BookRow:
		if row.Quantity <= 0 {
			return fmt.Errorf("%w: %s got %d", ErrInvalidQuantity, row.ISBN, row.Quantity)
		}
		row.WarehouseID = r.effectiveWarehouse(n, row)
		for i, existing := range n.Entries {
			b, ok := existing.(BookRow)
			if ok && b.ISBN == row.ISBN && b.WarehouseID == row.WarehouseID {
				b.Quantity += row.Quantity
				n.Entries[i] = b
				return nil
			}
		}
		n.Entries = append(n.Entries, row)
		return nil
	case CustomRow:
		if row.ID == "" {
			row.ID = r.newID()
		}
		n.Entries = append(n.Entries, row)
		return nil
	default:
		return fmt.Errorf("unknown entry type %T", e)
	}
}

// effectiveWarehouse resolves the warehouse a book row belongs to. An
// explicit row warehouse always wins (commit validation catches it if
// it contradicts an inbound note's binding); an empty one defaults to
// the note's own warehouse for inbound notes and the note's default
// warehouse for outbound notes.
func (r *NoteRepo) effectiveWarehouse(n *Note, row BookRow) string {
	if row.WarehouseID != "" {
		return NamespaceID(row.WarehouseID)
	}
	if n.Type == NoteInbound {
		return n.WarehouseID
	}
	return n.DefaultWarehouse
}

func removeKeys(n *Note, keys ...RowKey) bool {
	// Stored book rows always carry namespaced warehouse ids; accept
	// bare ones in keys the same way addEntry does.
	norm := make([]RowKey, len(keys))
	for i, k := range keys {
		if k.CustomID == "" && k.WarehouseID != "" {
			k.WarehouseID = NamespaceID(k.WarehouseID)
		}
		norm[i] = k
	}
	removed := false
	kept := n.Entries[:0]
	for _, e := range n.Entries {
		match := false
		for _, k := range norm {
			if Key(e) == k {
				match = true
				break
			}
		}
		if match {
			removed = true
			continue
		}
		kept = append(kept, e)
	}
	n.Entries = kept
	return removed
}

func (r *NoteRepo) decodeOrZero(doc docstore.Document, err error) (Note, error) {
	if err != nil {
		return Note{}, err
	}
	if doc.Rev == 0 {
		// Absent entity: mutators decline, not-found is not an error.
		return Note{ID: doc.ID}, nil
	}
	return decodeNote(doc)
}

func (r *NoteRepo) nextDisplayName(ctx context.Context, base string) (string, error) {
	notes, err := r.List(ctx, "")
	if err != nil {
		return "", err
	}
	names := make([]string, 0, len(notes))
	for _, n := range notes {
		names = append(names, n.DisplayName)
	}
	return nextSequencedName(names, base), nil
}

// =============================================================================
// COMMIT
// =============================================================================

type commitConfig struct {
	force bool
}

// CommitOption tweaks commit behavior.
type CommitOption func(*commitConfig)

// WithForce allows committing an empty note.
func WithForce() CommitOption {
	return func(c *commitConfig) { c.force = true }
}

// Commit validates the note and flips it to committed exactly once.
// Validation order: empty check, then warehouse binding (inbound) or
// warehouse assignment plus stock availability (outbound). Every check
// runs before any write; a rejected commit has written nothing.
// Committing an already-committed note is a no-op.
func (r *NoteRepo) Commit(ctx context.Context, id string, opts ...CommitOption) (Note, error) {
	var cfg commitConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	doc, err := updateWithRetry(ctx, r.store, id, func(current docstore.Document) ([]byte, bool, error) {
		if current.Rev == 0 {
			return nil, true, nil
		}
		n, err := decodeNote(current)
		if err != nil {
			return nil, false, err
		}
		if n.Committed {
			return nil, true, nil
		}
		if n.Deleted {
			return nil, false, fmt.Errorf("%w: %s", ErrNoteDeleted, id)
		}

		if err := r.validateCommit(ctx, &n, cfg); err != nil {
			return nil, false, err
		}

		now := r.clock()
		n.Committed = true
		n.CommittedAt = now
		n.UpdatedAt = now
		data, err := encodeNote(n)
		return data, false, err
	})
	return r.decodeOrZero(doc, err)
}

// validateCommit runs the read-only commit checks.
func (r *NoteRepo) validateCommit(ctx context.Context, n *Note, cfg commitConfig) error {
	if len(n.Entries) == 0 && !cfg.force {
		return &EmptyNoteError{NoteID: n.ID}
	}

	// The mutators never store a non-positive row; this guards documents
	// written around them. A negative row would drive stock below zero on
	// an inbound note or mint stock on an outbound one.
	for _, e := range n.Entries {
		if row, ok := e.(BookRow); ok && row.Quantity <= 0 {
			return fmt.Errorf("%w: %s in %s got %d", ErrInvalidQuantity, row.ISBN, n.ID, row.Quantity)
		}
	}

	switch n.Type {
	case NoteInbound:
		var mismatched []BookRow
		for _, e := range n.Entries {
			row, ok := e.(BookRow)
			if ok && row.WarehouseID != n.WarehouseID {
				mismatched = append(mismatched, row)
			}
		}
		if len(mismatched) > 0 {
			return &TransactionWarehouseMismatchError{
				NoteID:      n.ID,
				WarehouseID: n.WarehouseID,
				Rows:        mismatched,
			}
		}
		return nil

	case NoteOutbound:
		var unassigned []BookRow
		for _, e := range n.Entries {
			row, ok := e.(BookRow)
			if ok && row.WarehouseID == "" {
				unassigned = append(unassigned, row)
			}
		}
		if len(unassigned) > 0 {
			return &NoWarehouseSelectedError{NoteID: n.ID, Rows: unassigned}
		}

		// Fresh read: the stock another racing note just spent must be
		// visible here, so no cached value is acceptable.
		stock, err := r.stock.Query(ctx)
		if err != nil {
			return err
		}
		var short []OutOfStockRow
		for _, e := range n.Entries {
			row, ok := e.(BookRow)
			if !ok {
				continue
			}
			available := stock[StockKey{ISBN: row.ISBN, WarehouseID: row.WarehouseID}]
			if row.Quantity > available {
				short = append(short, OutOfStockRow{
					ISBN:        row.ISBN,
					WarehouseID: row.WarehouseID,
					Quantity:    row.Quantity,
					Available:   available,
				})
			}
		}
		if len(short) > 0 {
			return &OutOfStockError{NoteID: n.ID, Rows: short}
		}
		return nil

	default:
		return fmt.Errorf("invalid note type %q", n.Type)
	}
}
