/*
sse.go - Server-sent-event endpoints over the reactive views

PURPOSE:
  Exposes the engine's live subscriptions as SSE streams. Each request
  opens one subscription; the initial result is delivered immediately
  (most-recent-value replay), every recomputation after a relevant
  change pushes a fresh event, and closing the connection cancels the
  subscription synchronously.
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/openshelf/stock-engine/inventory"
)

func (h *Handler) StreamNotes(w http.ResponseWriter, r *http.Request) {
	sub, err := h.Engine.Views.StreamNotes(r.Context(), r.URL.Query().Get("warehouse"), pageParam(r))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	defer sub.Cancel()
	serveSSE(r.Context(), w, sub.C, func(res inventory.Result[inventory.Note]) any {
		return toPageDTO(res, toNoteDTO)
	})
}

func (h *Handler) StreamWarehouses(w http.ResponseWriter, r *http.Request) {
	sub, err := h.Engine.Views.StreamWarehouses(r.Context(), pageParam(r))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	defer sub.Cancel()
	serveSSE(r.Context(), w, sub.C, func(res inventory.Result[inventory.NavEntry]) any {
		return toPageDTO(res, func(n inventory.NavEntry) NavEntryDTO {
			return NavEntryDTO{ID: n.ID, DisplayName: n.DisplayName, TotalBooks: n.TotalBooks}
		})
	})
}

func (h *Handler) StreamStock(w http.ResponseWriter, r *http.Request) {
	sub, err := h.Engine.Views.StreamStock(r.Context(), r.URL.Query().Get("warehouse"), pageParam(r))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	defer sub.Cancel()
	serveSSE(r.Context(), w, sub.C, func(res inventory.Result[inventory.StockEntry]) any {
		return toPageDTO(res, func(e inventory.StockEntry) StockRowDTO {
			return StockRowDTO{
				ISBN:        e.ISBN,
				WarehouseID: e.WarehouseID,
				Quantity:    e.Quantity,
				Title:       e.Book.Title,
				Authors:     e.Book.Authors,
			}
		})
	})
}

// serveSSE pumps results to the client until it disconnects.
func serveSSE[T any](ctx context.Context, w http.ResponseWriter, results <-chan inventory.Result[T], convert func(inventory.Result[T]) any) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported", nil)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for {
		select {
		case <-ctx.Done():
			return
		case res, ok := <-results:
			if !ok {
				return
			}
			data, err := json.Marshal(convert(res))
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}
