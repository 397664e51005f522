/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types
  decouple the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request types carry validator struct tags and are checked in the
  handlers before touching the engine.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/openshelf/stock-engine/inventory"
)

// =============================================================================
// WAREHOUSES
// =============================================================================

type WarehouseDTO struct {
	ID          string          `json:"id"`
	DisplayName string          `json:"displayName"`
	Discount    decimal.Decimal `json:"discountPercentage"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

func toWarehouseDTO(w inventory.Warehouse) WarehouseDTO {
	return WarehouseDTO{
		ID:          w.ID,
		DisplayName: w.DisplayName,
		Discount:    w.Discount,
		CreatedAt:   w.CreatedAt,
		UpdatedAt:   w.UpdatedAt,
	}
}

type CreateWarehouseRequest struct {
	ID string `json:"id" validate:"required"`
}

type UpdateWarehouseRequest struct {
	DisplayName *string          `json:"displayName,omitempty"`
	Discount    *decimal.Decimal `json:"discountPercentage,omitempty"`
}

type NavEntryDTO struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	TotalBooks  int    `json:"totalBooks"`
}

// =============================================================================
// NOTES
// =============================================================================

type NoteDTO struct {
	ID                 string     `json:"id"`
	WarehouseID        string     `json:"warehouseId"`
	NoteType           string     `json:"noteType"`
	DisplayName        string     `json:"displayName"`
	Entries            []EntryDTO `json:"entries"`
	Committed          bool       `json:"committed"`
	ReconciliationNote bool       `json:"reconciliationNote"`
	DefaultWarehouse   string     `json:"defaultWarehouse,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
	CommittedAt        *time.Time `json:"committedAt,omitempty"`
}

// EntryDTO is the wire form of the two row variants, discriminated by
// "kind".
type EntryDTO struct {
	Kind        string          `json:"kind" validate:"required,oneof=book custom"`
	ISBN        string          `json:"isbn,omitempty" validate:"required_if=Kind book"`
	Quantity    int             `json:"quantity,omitempty" validate:"required_if=Kind book,omitempty,gt=0"`
	WarehouseID string          `json:"warehouseId,omitempty"`
	ID          string          `json:"id,omitempty"`
	Title       string          `json:"title,omitempty" validate:"required_if=Kind custom"`
	Price       decimal.Decimal `json:"price"`
}

func toNoteDTO(n inventory.Note) NoteDTO {
	dto := NoteDTO{
		ID:                 n.ID,
		WarehouseID:        n.WarehouseID,
		NoteType:           string(n.Type),
		DisplayName:        n.DisplayName,
		Entries:            make([]EntryDTO, 0, len(n.Entries)),
		Committed:          n.Committed,
		ReconciliationNote: n.ReconciliationNote,
		DefaultWarehouse:   n.DefaultWarehouse,
		CreatedAt:          n.CreatedAt,
		UpdatedAt:          n.UpdatedAt,
	}
	if !n.CommittedAt.IsZero() {
		at := n.CommittedAt
		dto.CommittedAt = &at
	}
	for _, e := range n.Entries {
		dto.Entries = append(dto.Entries, toEntryDTO(e))
	}
	return dto
}

func toEntryDTO(e inventory.Entry) EntryDTO {
	switch row := e.(type) {
	case inventory.BookRow:
		return EntryDTO{Kind: "book", ISBN: row.ISBN, Quantity: row.Quantity, WarehouseID: row.WarehouseID}
	case inventory.CustomRow:
		return EntryDTO{Kind: "custom", ID: row.ID, Title: row.Title, Price: row.Price}
	default:
		return EntryDTO{}
	}
}

func fromEntryDTO(e EntryDTO) inventory.Entry {
	if e.Kind == "custom" {
		return inventory.CustomRow{ID: e.ID, Title: e.Title, Price: e.Price}
	}
	return inventory.BookRow{ISBN: e.ISBN, Quantity: e.Quantity, WarehouseID: e.WarehouseID}
}

type CreateNoteRequest struct {
	WarehouseID string `json:"warehouseId" validate:"required_if=NoteType inbound"`
	NoteType    string `json:"noteType" validate:"required,oneof=inbound outbound"`
}

type NoteOpRequest struct {
	ID string `json:"id" validate:"required"`
}

type CommitNoteRequest struct {
	ID    string `json:"id" validate:"required"`
	Force bool   `json:"force,omitempty"`
}

type RenameNoteRequest struct {
	ID          string `json:"id" validate:"required"`
	DisplayName string `json:"displayName" validate:"required"`
}

type AddVolumesRequest struct {
	ID      string     `json:"id" validate:"required"`
	Entries []EntryDTO `json:"entries" validate:"required,min=1,dive"`
}

type RowKeyDTO struct {
	ISBN        string `json:"isbn,omitempty"`
	WarehouseID string `json:"warehouseId,omitempty"`
	CustomID    string `json:"customId,omitempty"`
}

func fromRowKeyDTO(k RowKeyDTO) inventory.RowKey {
	return inventory.RowKey{ISBN: k.ISBN, WarehouseID: k.WarehouseID, CustomID: k.CustomID}
}

type UpdateRowRequest struct {
	ID          string    `json:"id" validate:"required"`
	Match       RowKeyDTO `json:"match" validate:"required"`
	Replacement EntryDTO  `json:"replacement" validate:"required"`
}

type RemoveRowsRequest struct {
	ID   string      `json:"id" validate:"required"`
	Keys []RowKeyDTO `json:"keys" validate:"required,min=1"`
}

type SetDefaultWarehouseRequest struct {
	ID          string `json:"id" validate:"required"`
	WarehouseID string `json:"warehouseId" validate:"required"`
}

// =============================================================================
// STOCK / ARCHIVE / RECEIPTS
// =============================================================================

type StockRowDTO struct {
	ISBN        string `json:"isbn"`
	WarehouseID string `json:"warehouseId"`
	Quantity    int    `json:"quantity"`
	Title       string `json:"title,omitempty"`
	Authors     string `json:"authors,omitempty"`
}

type ArchiveDTO struct {
	Month   string        `json:"month"`
	Entries []StockRowDTO `json:"entries"`
}

type ReceiptItemDTO struct {
	Title    string          `json:"title"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
}

type ReceiptDTO struct {
	NoteID string           `json:"noteId"`
	Items  []ReceiptItemDTO `json:"items"`
	Total  decimal.Decimal  `json:"total"`
}

// PageDTO is the paginated result wrapper: { rows, total, totalPages }.
type PageDTO[T any] struct {
	Rows       []T `json:"rows"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
	Page       int `json:"page"`
}

func toPageDTO[T, U any](r inventory.Result[T], convert func(T) U) PageDTO[U] {
	rows := make([]U, 0, len(r.Rows))
	for _, row := range r.Rows {
		rows = append(rows, convert(row))
	}
	return PageDTO[U]{Rows: rows, Total: r.Total, TotalPages: r.TotalPages, Page: r.Page}
}
