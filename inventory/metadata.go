package inventory

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// BOOK METADATA - Injected capability, no-op by default
// =============================================================================

// BookEntry is display metadata for an ISBN. The ledger never stores
// it; views fetch it on demand.
type BookEntry struct {
	ISBN      string
	Title     string
	Authors   string
	Publisher string
	Year      int
	Price     decimal.Decimal
}

// MetadataProvider resolves ISBNs to display metadata. Implementations
// wrap whatever catalogue the deployment has; the engine only needs
// this one method.
type MetadataProvider interface {
	Fetch(ctx context.Context, isbn string) (BookEntry, error)
}

// NoopMetadata is the default provider: every ISBN resolves to a bare
// entry carrying only the ISBN itself.
type NoopMetadata struct{}

func (NoopMetadata) Fetch(_ context.Context, isbn string) (BookEntry, error) {
	return BookEntry{ISBN: isbn}, nil
}
