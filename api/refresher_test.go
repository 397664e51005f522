package api

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openshelf/stock-engine/docstore/memory"
	"github.com/openshelf/stock-engine/inventory"
)

func TestArchiveRefresher_RestartsAfterStop(t *testing.T) {
	// GIVEN: A refresher that has been started and stopped
	// WHEN: It is started again
	// THEN: The second run works like the first and Stop returns

	store := memory.New()
	eng := inventory.New(store)
	t.Cleanup(eng.Close)

	r := NewArchiveRefresher(eng)
	r.CheckInterval = time.Hour

	r.Start()
	r.Stop()
	r.Start()
	r.Stop()

	// Each run performs an immediate refresh before ticking; the second
	// one found the snapshot fresh and left it alone.
	doc, err := store.Get(context.Background(), inventory.ArchiveDocID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), doc.Rev)
}

func TestArchiveRefresher_StartAndStopAreIdempotent(t *testing.T) {
	eng := inventory.New(memory.New())
	t.Cleanup(eng.Close)

	r := NewArchiveRefresher(eng)
	r.CheckInterval = time.Hour

	// Stop before any Start is a no-op.
	r.Stop()

	r.Start()
	r.Start()
	r.Stop()
	r.Stop()
}
