/*
store.go - Revision-checked document store contract

PURPOSE:
  Defines the interface between the inventory engine and its persistence
  layer. The engine never talks to a database directly - it sees documents
  with monotonically increasing revisions, and every write is a
  compare-and-swap against the revision the writer last read.

CAPABILITIES:
  Get:   Point lookup by document id. Absence is NOT an error condition
         for callers - they receive ErrNotFound and treat it as "empty".
  Put:   Atomic compare-and-swap write. Rev 0 means "create"; any other
         rev must match the stored revision or the write is rejected
         with ErrRevConflict and the caller re-reads and retries.
  Delete: Revision-checked removal. Rarely used - the engine soft-deletes
         by flipping a flag inside the document.
  Query: Returns every document whose id starts with a prefix, optionally
         filtered by a predicate over the raw document.
  Watch: Change-notification stream. The returned cancel function stops
         delivery synchronously - once it returns, no further callbacks.

CONCURRENCY:
  The store makes no ordering promises across documents. Per document,
  revisions are a total order and a successful Put observed rev N-1.
  Conflict recovery (re-read + retry) lives in the engine, not here.

IMPLEMENTATIONS:
  - docstore/memory: In-memory, for tests and development.
  - docstore/sqlite: SQLite-backed, WAL mode, for production.

SEE ALSO:
  - inventory/entity.go: Retry loop built on this contract
  - docstore/memory/memory.go, docstore/sqlite/sqlite.go
*/
package docstore

import (
	"context"
	"encoding/json"
	"errors"
)

// =============================================================================
// DOCUMENT - Unit of storage
// =============================================================================

// Document is a JSON payload with an id and a revision counter.
// Rev starts at 1 on create and increases by 1 on every successful Put.
type Document struct {
	ID   string
	Rev  int64
	Data json.RawMessage
}

// Change describes a single mutation, delivered to Watch callbacks.
type Change struct {
	ID      string
	Rev     int64
	Deleted bool
}

// =============================================================================
// STORE - The persistence contract
// =============================================================================

// Store is a document store with per-document atomic compare-and-swap
// writes, point lookups, prefix/predicate queries, and change
// notifications.
type Store interface {
	// Get returns the document with the given id, or ErrNotFound.
	Get(ctx context.Context, id string) (Document, error)

	// Put writes doc atomically. doc.Rev must be 0 for a create, or the
	// current stored revision for an update; otherwise ErrRevConflict.
	// Returns the document as stored (with the new revision).
	Put(ctx context.Context, doc Document) (Document, error)

	// Delete removes the document if rev matches the stored revision.
	// Deleting an absent document is a no-op.
	Delete(ctx context.Context, id string, rev int64) error

	// Query returns all documents matching q, in id order.
	Query(ctx context.Context, q Query) ([]Document, error)

	// Watch registers fn to be called after every successful Put/Delete.
	// The cancel function stops delivery synchronously.
	Watch(fn func(Change)) (cancel func())

	// Close releases underlying resources.
	Close() error
}

// Query selects documents by id prefix and an optional predicate.
// A nil Match accepts every document under Prefix.
type Query struct {
	Prefix string
	Match  func(Document) bool
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotFound is returned by Get for absent documents. Callers treat
	// absence as an empty value, not a failure.
	ErrNotFound = errors.New("document not found")

	// ErrRevConflict is returned by Put/Delete when the supplied revision
	// does not match the stored one. Recoverable: re-read and retry.
	ErrRevConflict = errors.New("revision conflict")
)
