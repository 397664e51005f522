/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/warehouses/*   Warehouse CRUD + per-warehouse note lists
  /api/notes/*        Note lifecycle (mutations carry ids in the body)
  /api/stock          Current stock (archive + live delta)
  /api/archive        Archive inspection and manual refresh
  /api/stream/*       Server-sent-event live views

SEE ALSO:
  - handlers.go: Handler implementations
  - sse.go: Stream endpoints
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/warehouses", func(r chi.Router) {
			r.Get("/", h.ListWarehouses)
			r.Post("/", h.CreateWarehouse)
			r.Get("/{id}", h.GetWarehouse)
			r.Patch("/{id}", h.UpdateWarehouse)
			r.Delete("/{id}", h.DeleteWarehouse)
			r.Get("/{id}/notes", h.ListWarehouseNotes)
		})

		r.Route("/notes", func(r chi.Router) {
			r.Post("/", h.CreateNote)
			r.Post("/add-volumes", h.AddVolumes)
			r.Post("/update-row", h.UpdateRow)
			r.Post("/remove-rows", h.RemoveRows)
			r.Post("/rename", h.RenameNote)
			r.Post("/default-warehouse", h.SetDefaultWarehouse)
			r.Post("/delete", h.DeleteNote)
			r.Post("/commit", h.CommitNote)
			r.Post("/reconcile", h.ReconcileNote)
			r.Get("/*", h.GetNote)
		})

		r.Get("/stock", h.GetStock)
		r.Get("/receipt", h.GetReceipt)
		r.Post("/archive/refresh", h.RefreshArchive)

		r.Route("/stream", func(r chi.Router) {
			r.Get("/notes", h.StreamNotes)
			r.Get("/warehouses", h.StreamWarehouses)
			r.Get("/stock", h.StreamStock)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return r
}
