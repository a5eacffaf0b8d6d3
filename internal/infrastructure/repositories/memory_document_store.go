package repositories

import (
	"context"
	"sort"
	"sync"

	"github.com/avatarctic/tenancy-engine/internal/core/ports"
)

// MemoryDocumentStore keeps versioned documents in process. Commit holds one lock for the whole
// check-then-apply, which makes it trivially serializable.
type MemoryDocumentStore struct {
	mu   sync.RWMutex
	docs map[ports.DocumentKey]*ports.Document
}

func NewMemoryDocumentStore() *MemoryDocumentStore {
	return &MemoryDocumentStore{docs: make(map[ports.DocumentKey]*ports.Document)}
}

func copyDocument(d *ports.Document) *ports.Document {
	return &ports.Document{Key: d.Key, Version: d.Version, Body: append([]byte(nil), d.Body...)}
}

func (s *MemoryDocumentStore) Get(_ context.Context, key ports.DocumentKey) (*ports.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.docs[key]
	if !ok {
		return nil, ports.ErrDocumentNotFound
	}
	return copyDocument(d), nil
}

func (s *MemoryDocumentStore) List(_ context.Context, kind ports.DocumentKind) ([]*ports.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*ports.Document, 0)
	for k, d := range s.docs {
		if k.Kind == kind {
			out = append(out, copyDocument(d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.ID < out[j].Key.ID })
	return out, nil
}

func (s *MemoryDocumentStore) version(key ports.DocumentKey) int64 {
	if d, ok := s.docs[key]; ok {
		return d.Version
	}
	return 0
}

func (s *MemoryDocumentStore) Commit(ctx context.Context, reads []ports.DocumentVersion, writes []ports.DocumentWrite) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, w := range writes {
		if w.CreateOnly && s.version(w.Key) != 0 {
			return ports.ErrDuplicateKey
		}
	}
	for _, r := range reads {
		if s.version(r.Key) != r.Version {
			return ports.ErrVersionConflict
		}
	}
	for _, w := range writes {
		if !w.CreateOnly && s.version(w.Key) != w.ExpectedVersion {
			return ports.ErrVersionConflict
		}
	}
	for _, w := range writes {
		s.docs[w.Key] = &ports.Document{Key: w.Key, Version: w.ExpectedVersion + 1, Body: append([]byte(nil), w.Body...)}
	}
	return nil
}
