package docstore

import "sync"

// =============================================================================
// NOTIFIER - Shared Watch implementation for store backends
// =============================================================================

// Notifier is a small fan-out registry used by the concrete stores to
// implement Watch. Broadcast is synchronous: it returns only after every
// registered callback has run, and a cancelled watcher is guaranteed to
// receive nothing after its cancel function returns.
type Notifier struct {
	mu       sync.Mutex
	next     int
	watchers map[int]func(Change)
}

func NewNotifier() *Notifier {
	return &Notifier{watchers: make(map[int]func(Change))}
}

// Watch registers fn and returns a cancel function.
func (n *Notifier) Watch(fn func(Change)) (cancel func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.next
	n.next++
	n.watchers[id] = fn

	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.watchers, id)
	}
}

// Broadcast delivers c to every registered watcher. Callbacks run under
// the notifier lock so cancellation is synchronous with delivery.
func (n *Notifier) Broadcast(c Change) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, fn := range n.watchers {
		fn(c)
	}
}
