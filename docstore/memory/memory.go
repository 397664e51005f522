// Package memory provides an in-memory docstore.Store for tests and dev.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/openshelf/stock-engine/docstore"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Store struct {
	mu       sync.RWMutex
	docs     map[string]docstore.Document
	notifier *docstore.Notifier
}

func New() *Store {
	return &Store{
		docs:     make(map[string]docstore.Document),
		notifier: docstore.NewNotifier(),
	}
}

func (s *Store) Get(_ context.Context, id string) (docstore.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[id]
	if !ok {
		return docstore.Document{}, docstore.ErrNotFound
	}
	return cloneDoc(doc), nil
}

func (s *Store) Put(_ context.Context, doc docstore.Document) (docstore.Document, error) {
	s.mu.Lock()
	current, exists := s.docs[doc.ID]

	// Compare-and-swap: rev 0 creates, otherwise rev must match.
	if exists && current.Rev != doc.Rev {
		s.mu.Unlock()
		return docstore.Document{}, docstore.ErrRevConflict
	}
	if !exists && doc.Rev != 0 {
		s.mu.Unlock()
		return docstore.Document{}, docstore.ErrRevConflict
	}

	stored := docstore.Document{
		ID:   doc.ID,
		Rev:  doc.Rev + 1,
		Data: append([]byte(nil), doc.Data...),
	}
	s.docs[doc.ID] = stored
	s.mu.Unlock()

	// Notify outside the data lock so watchers may re-query the store.
	s.notifier.Broadcast(docstore.Change{ID: stored.ID, Rev: stored.Rev})
	return cloneDoc(stored), nil
}

func (s *Store) Delete(_ context.Context, id string, rev int64) error {
	s.mu.Lock()
	current, exists := s.docs[id]
	if !exists {
		s.mu.Unlock()
		return nil
	}
	if current.Rev != rev {
		s.mu.Unlock()
		return docstore.ErrRevConflict
	}
	delete(s.docs, id)
	s.mu.Unlock()

	s.notifier.Broadcast(docstore.Change{ID: id, Rev: rev, Deleted: true})
	return nil
}

func (s *Store) Query(_ context.Context, q docstore.Query) ([]docstore.Document, error) {
	s.mu.RLock()
	var result []docstore.Document
	for id, doc := range s.docs {
		if !strings.HasPrefix(id, q.Prefix) {
			continue
		}
		if q.Match != nil && !q.Match(doc) {
			continue
		}
		result = append(result, cloneDoc(doc))
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *Store) Watch(fn func(docstore.Change)) (cancel func()) {
	return s.notifier.Watch(fn)
}

func (s *Store) Close() error { return nil }

func cloneDoc(doc docstore.Document) docstore.Document {
	return docstore.Document{
		ID:   doc.ID,
		Rev:  doc.Rev,
		Data: append([]byte(nil), doc.Data...),
	}
}
