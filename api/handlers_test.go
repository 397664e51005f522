package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openshelf/stock-engine/docstore/memory"
	"github.com/openshelf/stock-engine/inventory"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	eng := inventory.New(memory.New())
	t.Cleanup(eng.Close)
	srv := httptest.NewServer(NewRouter(NewHandler(eng)))
	t.Cleanup(srv.Close)
	return srv
}

// do issues a request and decodes the JSON response into out (when
// out is non-nil).
func do(t *testing.T, srv *httptest.Server, method, path string, body, out any) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestAPI_WarehouseLifecycle(t *testing.T) {
	srv := newTestServer(t)

	var created WarehouseDTO
	resp := do(t, srv, http.MethodPost, "/api/warehouses", CreateWarehouseRequest{ID: "science"}, &created)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "v1/science", created.ID)
	assert.Equal(t, "New Warehouse", created.DisplayName)

	name := "Science"
	var updated WarehouseDTO
	resp = do(t, srv, http.MethodPatch, "/api/warehouses/science", UpdateWarehouseRequest{DisplayName: &name}, &updated)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Science", updated.DisplayName)

	var got WarehouseDTO
	resp = do(t, srv, http.MethodGet, "/api/warehouses/science", nil, &got)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Science", got.DisplayName)

	resp = do(t, srv, http.MethodGet, "/api/warehouses/absent", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, srv, http.MethodDelete, "/api/warehouses/science", nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestAPI_NoteFlowThroughCommit(t *testing.T) {
	srv := newTestServer(t)

	var note NoteDTO
	resp := do(t, srv, http.MethodPost, "/api/notes", CreateNoteRequest{WarehouseID: "main", NoteType: "inbound"}, &note)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "v1/main", note.WarehouseID)
	assert.False(t, note.Committed)

	resp = do(t, srv, http.MethodPost, "/api/notes/add-volumes", AddVolumesRequest{
		ID:      note.ID,
		Entries: []EntryDTO{{Kind: "book", ISBN: "1111", Quantity: 3}},
	}, &note)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, note.Entries, 1)
	assert.Equal(t, 3, note.Entries[0].Quantity)

	resp = do(t, srv, http.MethodPost, "/api/notes/commit", CommitNoteRequest{ID: note.ID}, &note)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, note.Committed)
	require.NotNil(t, note.CommittedAt)

	// Note ids contain slashes; reads go through the catch-all route.
	var read NoteDTO
	resp = do(t, srv, http.MethodGet, "/api/notes/"+note.ID, nil, &read)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, note.ID, read.ID)

	var stock []StockRowDTO
	resp = do(t, srv, http.MethodGet, "/api/stock?warehouse=main", nil, &stock)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, stock, 1)
	assert.Equal(t, StockRowDTO{ISBN: "1111", WarehouseID: "v1/main", Quantity: 3}, stock[0])
}

func TestAPI_CommitRejectionsMapTo422(t *testing.T) {
	srv := newTestServer(t)

	var note NoteDTO
	do(t, srv, http.MethodPost, "/api/notes", CreateNoteRequest{WarehouseID: "main", NoteType: "inbound"}, &note)

	// Empty note.
	var body map[string]any
	resp := do(t, srv, http.MethodPost, "/api/notes/commit", CommitNoteRequest{ID: note.ID}, &body)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "empty_note", body["error"])

	// Out of stock.
	var out NoteDTO
	do(t, srv, http.MethodPost, "/api/notes", CreateNoteRequest{NoteType: "outbound"}, &out)
	do(t, srv, http.MethodPost, "/api/notes/add-volumes", AddVolumesRequest{
		ID:      out.ID,
		Entries: []EntryDTO{{Kind: "book", ISBN: "1111", Quantity: 2, WarehouseID: "main"}},
	}, nil)
	resp = do(t, srv, http.MethodPost, "/api/notes/commit", CommitNoteRequest{ID: out.ID}, &body)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "out_of_stock", body["error"])

	// Force only overrides the empty check.
	resp = do(t, srv, http.MethodPost, "/api/notes/commit", CommitNoteRequest{ID: note.ID, Force: true}, &note)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, note.Committed)
}

func TestAPI_ValidationRejectsMalformedRequests(t *testing.T) {
	srv := newTestServer(t)

	// Unknown note type.
	resp := do(t, srv, http.MethodPost, "/api/notes", CreateNoteRequest{WarehouseID: "main", NoteType: "sideways"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Book entry without an isbn.
	var note NoteDTO
	do(t, srv, http.MethodPost, "/api/notes", CreateNoteRequest{WarehouseID: "main", NoteType: "inbound"}, &note)
	resp = do(t, srv, http.MethodPost, "/api/notes/add-volumes", AddVolumesRequest{
		ID:      note.ID,
		Entries: []EntryDTO{{Kind: "book", Quantity: 1}},
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Empty entry list.
	resp = do(t, srv, http.MethodPost, "/api/notes/add-volumes", AddVolumesRequest{ID: note.ID}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_ReconcileEndpoint(t *testing.T) {
	srv := newTestServer(t)

	var out NoteDTO
	do(t, srv, http.MethodPost, "/api/notes", CreateNoteRequest{NoteType: "outbound"}, &out)
	do(t, srv, http.MethodPost, "/api/notes/add-volumes", AddVolumesRequest{
		ID:      out.ID,
		Entries: []EntryDTO{{Kind: "book", ISBN: "1111", Quantity: 2, WarehouseID: "main"}},
	}, nil)

	var created []NoteDTO
	resp := do(t, srv, http.MethodPost, "/api/notes/reconcile", NoteOpRequest{ID: out.ID}, &created)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, created, 1)
	assert.True(t, created[0].Committed)
	assert.True(t, created[0].ReconciliationNote)

	resp = do(t, srv, http.MethodPost, "/api/notes/commit", CommitNoteRequest{ID: out.ID}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Reconciling a committed note is a conflict.
	resp = do(t, srv, http.MethodPost, "/api/notes/reconcile", NoteOpRequest{ID: out.ID}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAPI_HealthAndArchiveRefresh(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, srv, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, srv, http.MethodPost, "/api/archive/refresh", nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}
