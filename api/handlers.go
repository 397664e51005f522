/*
handlers.go - HTTP handlers over the inventory engine

PURPOSE:
  Thin translation layer: decode + validate the request, call the
  engine, map the result (or error) onto HTTP. No business rules live
  here.

ERROR MAPPING:
  Commit validation errors  -> 422 with the offending rows attached
  Contention budget blown   -> 503 (retry later)
  Malformed input           -> 400
  Everything else           -> 500

NOTE IDS IN URLS:
  Note ids contain slashes (v1/<warehouse>/<type>/<note>), so reads use
  a catch-all route parameter and mutations carry the id in the body.

SEE ALSO:
  - dto.go: Request/response shapes
  - server.go: Routing
*/
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/openshelf/stock-engine/inventory"
)

// Handler holds the engine and request validator.
type Handler struct {
	Engine   *inventory.Engine
	validate *validator.Validate
}

func NewHandler(engine *inventory.Engine) *Handler {
	return &Handler{
		Engine:   engine,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// =============================================================================
// WAREHOUSES
// =============================================================================

func (h *Handler) ListWarehouses(w http.ResponseWriter, r *http.Request) {
	warehouses, err := h.Engine.Warehouses.List(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	dtos := make([]WarehouseDTO, 0, len(warehouses))
	for _, wh := range warehouses {
		dtos = append(dtos, toWarehouseDTO(wh))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateWarehouse(w http.ResponseWriter, r *http.Request) {
	var req CreateWarehouseRequest
	if !h.decode(w, r, &req) {
		return
	}
	wh, err := h.Engine.Warehouses.Create(r.Context(), req.ID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toWarehouseDTO(wh))
}

func (h *Handler) GetWarehouse(w http.ResponseWriter, r *http.Request) {
	wh, err := h.Engine.Warehouses.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if wh == nil {
		writeError(w, http.StatusNotFound, "warehouse not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toWarehouseDTO(*wh))
}

func (h *Handler) UpdateWarehouse(w http.ResponseWriter, r *http.Request) {
	var req UpdateWarehouseRequest
	if !h.decode(w, r, &req) {
		return
	}
	wh, err := h.Engine.Warehouses.Update(r.Context(), chi.URLParam(r, "id"), inventory.WarehousePatch{
		DisplayName: req.DisplayName,
		Discount:    req.Discount,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toWarehouseDTO(wh))
}

func (h *Handler) DeleteWarehouse(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.Warehouses.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListWarehouseNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := h.Engine.Notes.List(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	dtos := make([]NoteDTO, 0, len(notes))
	for _, n := range notes {
		dtos = append(dtos, toNoteDTO(n))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// NOTES
// =============================================================================

func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req CreateNoteRequest
	if !h.decode(w, r, &req) {
		return
	}
	n, err := h.Engine.Notes.Create(r.Context(), req.WarehouseID, inventory.NoteType(req.NoteType))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toNoteDTO(n))
}

func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	n, err := h.Engine.Notes.Get(r.Context(), chi.URLParam(r, "*"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if n == nil {
		writeError(w, http.StatusNotFound, "note not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toNoteDTO(*n))
}

func (h *Handler) AddVolumes(w http.ResponseWriter, r *http.Request) {
	var req AddVolumesRequest
	if !h.decode(w, r, &req) {
		return
	}
	entries := make([]inventory.Entry, 0, len(req.Entries))
	for _, e := range req.Entries {
		entries = append(entries, fromEntryDTO(e))
	}
	n, err := h.Engine.Notes.AddVolumes(r.Context(), req.ID, entries...)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toNoteDTO(n))
}

func (h *Handler) UpdateRow(w http.ResponseWriter, r *http.Request) {
	var req UpdateRowRequest
	if !h.decode(w, r, &req) {
		return
	}
	n, err := h.Engine.Notes.UpdateRow(r.Context(), req.ID, fromRowKeyDTO(req.Match), fromEntryDTO(req.Replacement))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toNoteDTO(n))
}

func (h *Handler) RemoveRows(w http.ResponseWriter, r *http.Request) {
	var req RemoveRowsRequest
	if !h.decode(w, r, &req) {
		return
	}
	keys := make([]inventory.RowKey, 0, len(req.Keys))
	for _, k := range req.Keys {
		keys = append(keys, fromRowKeyDTO(k))
	}
	n, err := h.Engine.Notes.RemoveRows(r.Context(), req.ID, keys...)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toNoteDTO(n))
}

func (h *Handler) RenameNote(w http.ResponseWriter, r *http.Request) {
	var req RenameNoteRequest
	if !h.decode(w, r, &req) {
		return
	}
	n, err := h.Engine.Notes.SetDisplayName(r.Context(), req.ID, req.DisplayName)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toNoteDTO(n))
}

func (h *Handler) SetDefaultWarehouse(w http.ResponseWriter, r *http.Request) {
	var req SetDefaultWarehouseRequest
	if !h.decode(w, r, &req) {
		return
	}
	n, err := h.Engine.Notes.SetDefaultWarehouse(r.Context(), req.ID, req.WarehouseID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toNoteDTO(n))
}

func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	var req NoteOpRequest
	if !h.decode(w, r, &req) {
		return
	}
	n, err := h.Engine.Notes.Delete(r.Context(), req.ID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toNoteDTO(n))
}

func (h *Handler) CommitNote(w http.ResponseWriter, r *http.Request) {
	var req CommitNoteRequest
	if !h.decode(w, r, &req) {
		return
	}
	var opts []inventory.CommitOption
	if req.Force {
		opts = append(opts, inventory.WithForce())
	}
	n, err := h.Engine.Notes.Commit(r.Context(), req.ID, opts...)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toNoteDTO(n))
}

func (h *Handler) ReconcileNote(w http.ResponseWriter, r *http.Request) {
	var req NoteOpRequest
	if !h.decode(w, r, &req) {
		return
	}
	created, err := h.Engine.Reconciler.Reconcile(r.Context(), req.ID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	dtos := make([]NoteDTO, 0, len(created))
	for _, n := range created {
		dtos = append(dtos, toNoteDTO(n))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetReceipt(w http.ResponseWriter, r *http.Request) {
	receipt, err := h.Engine.IntoReceipt(r.Context(), r.URL.Query().Get("note"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	dto := ReceiptDTO{NoteID: receipt.NoteID, Items: []ReceiptItemDTO{}, Total: receipt.Total}
	for _, item := range receipt.Items {
		dto.Items = append(dto.Items, ReceiptItemDTO(item))
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// STOCK & ARCHIVE
// =============================================================================

func (h *Handler) GetStock(w http.ResponseWriter, r *http.Request) {
	stock, err := h.Engine.Archive.Query(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if wh := r.URL.Query().Get("warehouse"); wh != "" {
		stock = stock.ForWarehouse(inventory.NamespaceID(wh))
	}

	rows := stock.Rows()
	dtos := make([]StockRowDTO, 0, len(rows))
	for _, row := range rows {
		dtos = append(dtos, StockRowDTO{ISBN: row.ISBN, WarehouseID: row.WarehouseID, Quantity: row.Quantity})
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) RefreshArchive(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.Archive.EnsureFresh(r.Context()); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// HELPERS
// =============================================================================

// decode unmarshals and validates the request body; on failure it has
// already written the 400.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body", err)
		return false
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", err)
		return false
	}
	return true
}

func pageParam(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[API] encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	body := map[string]any{"error": message}
	if err != nil {
		body["detail"] = err.Error()
	}
	writeJSON(w, status, body)
}

// writeEngineError maps engine errors onto HTTP statuses, attaching the
// offending rows of commit rejections.
func writeEngineError(w http.ResponseWriter, err error) {
	var (
		empty    *inventory.EmptyNoteError
		noWh     *inventory.NoWarehouseSelectedError
		mismatch *inventory.TransactionWarehouseMismatchError
		oos      *inventory.OutOfStockError
	)
	switch {
	case errors.As(err, &empty):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error": "empty_note", "noteId": empty.NoteID,
		})
	case errors.As(err, &noWh):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error": "no_warehouse_selected", "noteId": noWh.NoteID, "rows": noWh.Rows,
		})
	case errors.As(err, &mismatch):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error": "transaction_warehouse_mismatch", "noteId": mismatch.NoteID,
			"warehouseId": mismatch.WarehouseID, "rows": mismatch.Rows,
		})
	case errors.As(err, &oos):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error": "out_of_stock", "noteId": oos.NoteID, "rows": oos.Rows,
		})
	case errors.Is(err, inventory.ErrInvalidQuantity):
		writeError(w, http.StatusUnprocessableEntity, err.Error(), nil)
	case errors.Is(err, inventory.ErrNoteDeleted), errors.Is(err, inventory.ErrNotOutbound):
		writeError(w, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, inventory.ErrTooMuchContention):
		writeError(w, http.StatusServiceUnavailable, "write contention, retry later", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal error", err)
	}
}
