/*
archive.go - Checkpointed stock snapshot

PURPOSE:
  Live stock reads replay the ledger. Replay cost grows with history,
  so the archive materializes the signed sum up to a checkpoint (the
  start of the current calendar month) in a singleton document. A live
  read then merges the snapshot with a replay of only the delta - the
  notes committed since the checkpoint - which bounds the replay window
  no matter how long the ledger gets.

EQUIVALENCE INVARIANT:
  merge(archive(t0), Query([t0, t1))) == Query([-inf, t1))
  for any checkpoint t0 <= t1. This holds because the signed sum is
  associative over window splits (see aggregate.go).

DOCUMENT:
  { id: "archive/stock", month: "2026-08" | "", entries: [...] }
  An empty month means no checkpoint was ever taken: the delta is the
  whole ledger.

SEE ALSO:
  - aggregate.go: The replay the archive is a cache of
  - api/refresher.go: Periodic EnsureFresh driver
*/
package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openshelf/stock-engine/docstore"
)

// monthLayout is the ISO month label stored as the checkpoint.
const monthLayout = "2006-01"

// ArchiveManager materializes and serves checkpointed stock.
type ArchiveManager struct {
	store docstore.Store
	agg   *Aggregator
	clock func() time.Time
}

// checkpoint parses the archive's month label into the instant the
// snapshot covers up to (exclusive). A zero return means "no
// checkpoint".
func checkpoint(month string) (time.Time, error) {
	if month == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(monthLayout, month, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed archive month %q: %w", month, err)
	}
	return t, nil
}

// currentBoundary is the start of the calendar month containing now.
func (m *ArchiveManager) currentBoundary() time.Time {
	now := m.clock().UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// load reads the archive document. Absence resolves to an empty archive.
func (m *ArchiveManager) load(ctx context.Context) (month string, stock StockMap, rev int64, err error) {
	doc, err := m.store.Get(ctx, ArchiveDocID)
	if errors.Is(err, docstore.ErrNotFound) {
		return "", make(StockMap), 0, nil
	}
	if err != nil {
		return "", nil, 0, err
	}
	month, stock, err = decodeArchive(doc)
	if err != nil {
		return "", nil, 0, err
	}
	return month, stock, doc.Rev, nil
}

// EnsureFresh advances the archive to the current period boundary.
// Stale by one or more months: the delta [checkpoint, boundary) is
// replayed once and merged into the snapshot. Already fresh: no write.
func (m *ArchiveManager) EnsureFresh(ctx context.Context) error {
	boundary := m.currentBoundary()
	label := boundary.Format(monthLayout)

	for attempt := 0; attempt < retryBudget; attempt++ {
		month, stock, rev, err := m.load(ctx)
		if err != nil {
			return err
		}
		if month == label {
			return nil
		}

		from, err := checkpoint(month)
		if err != nil {
			return err
		}
		delta, err := m.agg.Query(ctx, Window{From: from, To: boundary})
		if err != nil {
			return err
		}
		stock.Merge(delta)

		data, err := encodeArchive(label, stock)
		if err != nil {
			return err
		}
		_, err = m.store.Put(ctx, docstore.Document{ID: ArchiveDocID, Rev: rev, Data: data})
		if err == nil {
			return nil
		}
		if !errors.Is(err, docstore.ErrRevConflict) {
			return err
		}
		// Lost the race to another refresher; re-read and retry.
	}
	return fmt.Errorf("%w: refreshing %s", ErrTooMuchContention, ArchiveDocID)
}

// Query returns current stock: the snapshot merged with a live replay
// of the delta since the checkpoint.
func (m *ArchiveManager) Query(ctx context.Context) (StockMap, error) {
	month, stock, _, err := m.load(ctx)
	if err != nil {
		return nil, err
	}
	from, err := checkpoint(month)
	if err != nil {
		return nil, err
	}
	delta, err := m.agg.Query(ctx, Window{From: from})
	if err != nil {
		return nil, err
	}
	stock.Merge(delta)
	return stock, nil
}
