/*
codec.go - Document encoding at the store boundary

PURPOSE:
  Every persisted document carries a "docType" discriminator. This file
  is the ONLY place that discriminator is read or written: the rest of
  the engine works with concrete Go types, and unknown kinds are decode
  errors, never silently-ignored strings.

DOCUMENT SHAPES:
  warehouse: { docType, displayName, discountPercentage, createdAt, updatedAt }
  note:      { docType, noteType, displayName, entries, committed,
               deleted, reconciliationNote, defaultWarehouse,
               createdAt, updatedAt, committedAt }
  archive:   { docType, month, entries: [{isbn, warehouseId, quantity}] }

ENTRY VARIANTS:
  entries[] rows carry "__kind": "book" or "custom" and decode into the
  closed Entry union from types.go.

SEE ALSO:
  - types.go: The in-memory shapes
  - docstore/store.go: The raw document contract
*/
package inventory

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openshelf/stock-engine/docstore"
)

// =============================================================================
// DISCRIMINATORS
// =============================================================================

const (
	docTypeWarehouse = "warehouse"
	docTypeNote      = "note"
	docTypeArchive   = "archive"

	entryKindBook   = "book"
	entryKindCustom = "custom"
)

type envelope struct {
	DocType string `json:"docType"`
}

// docType peeks at the discriminator without decoding the full payload.
func docType(doc docstore.Document) string {
	var env envelope
	if err := json.Unmarshal(doc.Data, &env); err != nil {
		return ""
	}
	return env.DocType
}

// =============================================================================
// WAREHOUSE
// =============================================================================

type warehouseDoc struct {
	DocType     string          `json:"docType"`
	DisplayName string          `json:"displayName"`
	Discount    decimal.Decimal `json:"discountPercentage"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

func encodeWarehouse(w Warehouse) ([]byte, error) {
	return json.Marshal(warehouseDoc{
		DocType:     docTypeWarehouse,
		DisplayName: w.DisplayName,
		Discount:    w.Discount,
		CreatedAt:   w.CreatedAt.UTC(),
		UpdatedAt:   w.UpdatedAt.UTC(),
	})
}

func decodeWarehouse(doc docstore.Document) (Warehouse, error) {
	var d warehouseDoc
	if err := json.Unmarshal(doc.Data, &d); err != nil {
		return Warehouse{}, fmt.Errorf("decode warehouse %s: %w", doc.ID, err)
	}
	if d.DocType != docTypeWarehouse {
		return Warehouse{}, fmt.Errorf("decode warehouse %s: unexpected docType %q", doc.ID, d.DocType)
	}
	return Warehouse{
		ID:          doc.ID,
		DisplayName: d.DisplayName,
		Discount:    d.Discount,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}, nil
}

// =============================================================================
// NOTE
// =============================================================================

type noteDoc struct {
	DocType            string     `json:"docType"`
	NoteType           NoteType   `json:"noteType"`
	DisplayName        string     `json:"displayName"`
	Entries            []entryDoc `json:"entries"`
	Committed          bool       `json:"committed"`
	Deleted            bool       `json:"deleted"`
	ReconciliationNote bool       `json:"reconciliationNote"`
	DefaultWarehouse   string     `json:"defaultWarehouse,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
	CommittedAt        *time.Time `json:"committedAt,omitempty"`
}

type entryDoc struct {
	Kind        string          `json:"__kind"`
	ISBN        string          `json:"isbn,omitempty"`
	Quantity    int             `json:"quantity,omitempty"`
	WarehouseID string          `json:"warehouseId,omitempty"`
	ID          string          `json:"id,omitempty"`
	Title       string          `json:"title,omitempty"`
	Price       decimal.Decimal `json:"price"`
}

func encodeNote(n Note) ([]byte, error) {
	d := noteDoc{
		DocType:            docTypeNote,
		NoteType:           n.Type,
		DisplayName:        n.DisplayName,
		Entries:            make([]entryDoc, 0, len(n.Entries)),
		Committed:          n.Committed,
		Deleted:            n.Deleted,
		ReconciliationNote: n.ReconciliationNote,
		DefaultWarehouse:   n.DefaultWarehouse,
		CreatedAt:          n.CreatedAt.UTC(),
		UpdatedAt:          n.UpdatedAt.UTC(),
	}
	if !n.CommittedAt.IsZero() {
		at := n.CommittedAt.UTC()
		d.CommittedAt = &at
	}
	for _, entry := range n.Entries {
		switch row := entry.(type) {
		case BookRow:
			d.Entries = append(d.Entries, entryDoc{
				Kind:        entryKindBook,
				ISBN:        row.ISBN,
				Quantity:    row.Quantity,
				WarehouseID: row.WarehouseID,
			})
		case CustomRow:
			d.Entries = append(d.Entries, entryDoc{
				Kind:  entryKindCustom,
				ID:    row.ID,
				Title: row.Title,
				Price: row.Price,
			})
		default:
			return nil, fmt.Errorf("encode note %s: unknown entry type %T", n.ID, entry)
		}
	}
	return json.Marshal(d)
}

func decodeNote(doc docstore.Document) (Note, error) {
	var d noteDoc
	if err := json.Unmarshal(doc.Data, &d); err != nil {
		return Note{}, fmt.Errorf("decode note %s: %w", doc.ID, err)
	}
	if d.DocType != docTypeNote {
		return Note{}, fmt.Errorf("decode note %s: unexpected docType %q", doc.ID, d.DocType)
	}
	warehouseID, noteType, ok := splitNoteID(doc.ID)
	if !ok {
		return Note{}, fmt.Errorf("decode note: malformed id %q", doc.ID)
	}
	if d.NoteType != "" && d.NoteType != noteType {
		return Note{}, fmt.Errorf("decode note %s: noteType %q disagrees with id", doc.ID, d.NoteType)
	}

	n := Note{
		ID:                 doc.ID,
		WarehouseID:        warehouseID,
		Type:               noteType,
		DisplayName:        d.DisplayName,
		Entries:            make([]Entry, 0, len(d.Entries)),
		Committed:          d.Committed,
		Deleted:            d.Deleted,
		ReconciliationNote: d.ReconciliationNote,
		DefaultWarehouse:   d.DefaultWarehouse,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}
	if d.CommittedAt != nil {
		n.CommittedAt = *d.CommittedAt
	}
	for i, e := range d.Entries {
		switch e.Kind {
		case entryKindBook:
			n.Entries = append(n.Entries, BookRow{
				ISBN:        e.ISBN,
				Quantity:    e.Quantity,
				WarehouseID: e.WarehouseID,
			})
		case entryKindCustom:
			n.Entries = append(n.Entries, CustomRow{
				ID:    e.ID,
				Title: e.Title,
				Price: e.Price,
			})
		default:
			return Note{}, fmt.Errorf("decode note %s: entry %d has unknown kind %q", doc.ID, i, e.Kind)
		}
	}
	return n, nil
}

// =============================================================================
// ARCHIVE
// =============================================================================

// ArchiveDocID is the fixed id of the singleton stock archive document.
const ArchiveDocID = "archive/stock"

type archiveDoc struct {
	DocType string            `json:"docType"`
	Month   string            `json:"month"`
	Entries []archiveEntryDoc `json:"entries"`
}

type archiveEntryDoc struct {
	ISBN        string `json:"isbn"`
	WarehouseID string `json:"warehouseId"`
	Quantity    int    `json:"quantity"`
}

func encodeArchive(month string, stock StockMap) ([]byte, error) {
	d := archiveDoc{DocType: docTypeArchive, Month: month, Entries: []archiveEntryDoc{}}
	for _, row := range stock.Rows() {
		d.Entries = append(d.Entries, archiveEntryDoc{
			ISBN:        row.ISBN,
			WarehouseID: row.WarehouseID,
			Quantity:    row.Quantity,
		})
	}
	return json.Marshal(d)
}

func decodeArchive(doc docstore.Document) (month string, stock StockMap, err error) {
	var d archiveDoc
	if err := json.Unmarshal(doc.Data, &d); err != nil {
		return "", nil, fmt.Errorf("decode archive: %w", err)
	}
	if d.DocType != docTypeArchive {
		return "", nil, fmt.Errorf("decode archive: unexpected docType %q", d.DocType)
	}
	stock = make(StockMap, len(d.Entries))
	for _, e := range d.Entries {
		stock.Add(StockKey{ISBN: e.ISBN, WarehouseID: e.WarehouseID}, e.Quantity)
	}
	return d.Month, stock, nil
}
