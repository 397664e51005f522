/*
entity.go - Optimistic-concurrency write loop shared by every entity

PURPOSE:
  Warehouses, notes and the archive are all versioned documents. Every
  mutation goes through the same read-modify-write cycle:

    1. Read the latest revision (absent resolves to an empty document)
    2. Apply the mutation to the decoded value
    3. Put with the revision we read
    4. On ErrRevConflict: someone else won the race - re-read and retry

  The retry budget is bounded. Exceeding it surfaces
  ErrTooMuchContention rather than spinning forever: past a handful of
  lost races against a single document, something is pathologically
  wrong (a hot loop elsewhere, or a misbehaving store).

MUTATION CONTRACT:
  The mutate callback may decline the write (committed notes swallow
  updates silently) by returning skip=true; the caller then gets the
  unchanged document back. Validation errors abort the loop immediately
  and are guaranteed to have written nothing.

SEE ALSO:
  - docstore/store.go: The CAS primitive
  - note.go, warehouse.go, archive.go: Users of this loop
*/
package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/openshelf/stock-engine/docstore"
)

// retryBudget bounds CAS retries per logical write.
const retryBudget = 5

// mutateFunc inspects the current document (Rev 0 and nil Data when
// absent) and returns the new payload. skip=true declines the write.
type mutateFunc func(current docstore.Document) (next []byte, skip bool, err error)

// updateWithRetry runs the read-modify-write cycle against id.
// It returns the document as stored (or as found, when skipped).
func updateWithRetry(ctx context.Context, store docstore.Store, id string, mutate mutateFunc) (docstore.Document, error) {
	var lastErr error
	for attempt := 0; attempt < retryBudget; attempt++ {
		if err := ctx.Err(); err != nil {
			return docstore.Document{}, err
		}

		current, err := store.Get(ctx, id)
		if err != nil && !errors.Is(err, docstore.ErrNotFound) {
			return docstore.Document{}, err
		}
		current.ID = id

		next, skip, err := mutate(current)
		if err != nil {
			return docstore.Document{}, err
		}
		if skip {
			return current, nil
		}

		stored, err := store.Put(ctx, docstore.Document{ID: id, Rev: current.Rev, Data: next})
		if err == nil {
			return stored, nil
		}
		if !errors.Is(err, docstore.ErrRevConflict) {
			return docstore.Document{}, err
		}
		lastErr = err
	}
	return docstore.Document{}, fmt.Errorf("%w: %s after %d attempts: %v",
		ErrTooMuchContention, id, retryBudget, lastErr)
}
