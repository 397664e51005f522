/*
refresher.go - Periodic archive refresh

PURPOSE:
  Keeps the stock archive's checkpoint at the start of the current
  month without anyone asking. The archive also self-heals on demand
  (EnsureFresh is cheap when already fresh), so this is purely about
  not paying a month's replay on the first read after a boundary.

DESIGN:
  - Runs a background goroutine with a configurable check interval
  - Each tick calls EnsureFresh; a no-op when the checkpoint is current
  - Stop() blocks until the goroutine has exited

USAGE:
  refresher := api.NewArchiveRefresher(engine)
  refresher.Start()
  defer refresher.Stop()
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/openshelf/stock-engine/inventory"
)

// ArchiveRefresher periodically advances the archive checkpoint.
type ArchiveRefresher struct {
	Engine        *inventory.Engine
	CheckInterval time.Duration

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func NewArchiveRefresher(engine *inventory.Engine) *ArchiveRefresher {
	return &ArchiveRefresher{
		Engine:        engine,
		CheckInterval: 1 * time.Hour,
	}
}

// Start begins the refresh loop. An immediate first refresh runs before
// the ticker takes over. Calling Start on a running refresher is a no-op;
// a stopped refresher can be started again.
func (ar *ArchiveRefresher) Start() {
	ar.mu.Lock()
	defer ar.mu.Unlock()

	if ar.ticker != nil {
		return
	}
	// Fresh channel per run: the previous Stop closed the old one.
	ar.stop = make(chan struct{})
	ar.ticker = time.NewTicker(ar.CheckInterval)
	ar.wg.Add(1)
	go ar.run(ar.stop, ar.ticker.C)

	log.Printf("[Refresher] Started with check interval: %v", ar.CheckInterval)
}

// Stop ends the refresh loop and waits for it to exit.
func (ar *ArchiveRefresher) Stop() {
	ar.mu.Lock()
	defer ar.mu.Unlock()

	if ar.ticker == nil {
		return
	}
	ar.ticker.Stop()
	close(ar.stop)
	ar.wg.Wait()
	ar.ticker = nil

	log.Println("[Refresher] Stopped")
}

func (ar *ArchiveRefresher) run(stop <-chan struct{}, tick <-chan time.Time) {
	defer ar.wg.Done()

	ar.refresh()
	for {
		select {
		case <-stop:
			return
		case <-tick:
			ar.refresh()
		}
	}
}

func (ar *ArchiveRefresher) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := ar.Engine.Archive.EnsureFresh(ctx); err != nil {
		log.Printf("[Refresher] EnsureFresh failed: %v", err)
	}
}
