/*
errors.go - Centralized error types for the inventory engine

PURPOSE:
  All error types in one place for consistency and discoverability.

ERROR CATEGORIES:
  1. Validation errors - Commit rules violated; deterministic, carry the
     offending rows, never retried, state guaranteed unchanged.
  2. Concurrency conflicts - Revision mismatch on write; recovered with
     a bounded retry, escalated to ErrTooMuchContention past the budget.
  3. Store failures - Propagate unchanged from the docstore.

  Not-found is NOT an error: absent documents resolve to empty values.

USAGE:
  var oos *inventory.OutOfStockError
  if errors.As(err, &oos) {
      for _, row := range oos.Rows { ... }
  }

SEE ALSO:
  - note.go: Commit validation producing the validation errors
  - entity.go: Retry loop producing ErrTooMuchContention
*/
package inventory

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrEmptyNote is returned when committing a note with no entries.
	ErrEmptyNote = errors.New("empty note")

	// ErrNoWarehouseSelected is returned when an outbound note has book
	// rows without a target warehouse.
	ErrNoWarehouseSelected = errors.New("no warehouse selected")

	// ErrWarehouseMismatch is returned when an inbound note carries rows
	// bound to a different warehouse than the note itself.
	ErrWarehouseMismatch = errors.New("transaction warehouse mismatch")

	// ErrOutOfStock is returned when an outbound note requests more than
	// is available in a warehouse.
	ErrOutOfStock = errors.New("out of stock")

	// ErrInvalidQuantity is returned when a book row carries a zero or
	// negative quantity. Row quantities are magnitudes; direction comes
	// from the note type alone.
	ErrInvalidQuantity = errors.New("quantity must be positive")

	// ErrTooMuchContention is returned when a write keeps losing races
	// past the retry budget. Unrecoverable: signals pathological
	// contention or a failing store.
	ErrTooMuchContention = errors.New("too much contention")

	// ErrNoteDeleted is returned when mutating a deleted note.
	ErrNoteDeleted = errors.New("note deleted")

	// ErrNotOutbound is returned when reconciling anything but a draft
	// outbound note.
	ErrNotOutbound = errors.New("not a draft outbound note")
)

// =============================================================================
// VALIDATION ERRORS - Carry the offending rows
// =============================================================================

// EmptyNoteError rejects a commit of a note without entries.
type EmptyNoteError struct {
	NoteID string
}

func (e *EmptyNoteError) Error() string {
	return fmt.Sprintf("cannot commit %s: note has no entries", e.NoteID)
}

func (e *EmptyNoteError) Unwrap() error { return ErrEmptyNote }

// NoWarehouseSelectedError rejects an outbound commit with unassigned rows.
type NoWarehouseSelectedError struct {
	NoteID string
	Rows   []BookRow
}

func (e *NoWarehouseSelectedError) Error() string {
	return fmt.Sprintf("cannot commit %s: %d row(s) have no warehouse selected", e.NoteID, len(e.Rows))
}

func (e *NoWarehouseSelectedError) Unwrap() error { return ErrNoWarehouseSelected }

// TransactionWarehouseMismatchError rejects an inbound commit whose rows
// point at a different warehouse than the note's own.
type TransactionWarehouseMismatchError struct {
	NoteID      string
	WarehouseID string
	Rows        []BookRow
}

func (e *TransactionWarehouseMismatchError) Error() string {
	return fmt.Sprintf("cannot commit %s: %d row(s) bound to a warehouse other than %s",
		e.NoteID, len(e.Rows), e.WarehouseID)
}

func (e *TransactionWarehouseMismatchError) Unwrap() error { return ErrWarehouseMismatch }

// OutOfStockRow pairs a requested quantity with the stock actually
// available at validation time.
type OutOfStockRow struct {
	ISBN        string
	WarehouseID string
	Quantity    int // requested
	Available   int
}

// OutOfStockError rejects an outbound commit exceeding available stock.
type OutOfStockError struct {
	NoteID string
	Rows   []OutOfStockRow
}

func (e *OutOfStockError) Error() string {
	if len(e.Rows) == 1 {
		r := e.Rows[0]
		return fmt.Sprintf("cannot commit %s: %s in %s out of stock (requested %d, available %d)",
			e.NoteID, r.ISBN, r.WarehouseID, r.Quantity, r.Available)
	}
	return fmt.Sprintf("cannot commit %s: %d row(s) out of stock", e.NoteID, len(e.Rows))
}

func (e *OutOfStockError) Unwrap() error { return ErrOutOfStock }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsValidationError reports whether err is one of the deterministic
// validation rejections. These are never retried and leave state unchanged.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrEmptyNote) ||
		errors.Is(err, ErrNoWarehouseSelected) ||
		errors.Is(err, ErrWarehouseMismatch) ||
		errors.Is(err, ErrOutOfStock) ||
		errors.Is(err, ErrInvalidQuantity)
}

// IsRetryable reports whether the operation might succeed if retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTooMuchContention)
}
