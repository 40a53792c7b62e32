// Package memory implements docstore.Store in process memory for development
// runs and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/JakeFAU/dining-menu-sync/internal/docstore"
)

// DefaultMaxBatchOps mirrors the limit hosted document stores enforce.
const DefaultMaxBatchOps = 500

// Store keeps documents in a map keyed by path.
type Store struct {
	mu          sync.RWMutex
	docs        map[string]docstore.Fields
	now         func() time.Time
	maxBatchOps int
	commits     int
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the server timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithMaxBatchOps overrides the per-commit operation limit.
func WithMaxBatchOps(n int) Option {
	return func(s *Store) { s.maxBatchOps = n }
}

// New returns an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		docs:        make(map[string]docstore.Fields),
		now:         func() time.Time { return time.Now().UTC() },
		maxBatchOps: DefaultMaxBatchOps,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns a copy of the stored document.
func (s *Store) Get(_ context.Context, ref docstore.Ref) (docstore.Fields, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[ref.Path()]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", ref, docstore.ErrNotFound)
	}
	return copyFields(doc), nil
}

// SetMerge applies a single merge write.
func (s *Store) SetMerge(ctx context.Context, ref docstore.Ref, fields docstore.Fields) error {
	b := s.NewBatch()
	b.SetMerge(ref, fields)
	return b.Commit(ctx)
}

// NewBatch starts an empty batch.
func (s *Store) NewBatch() docstore.Batch {
	return &batch{store: s}
}

// DeleteCollection removes every document under the collection path.
func (s *Store) DeleteCollection(_ context.Context, collection string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := strings.TrimSuffix(collection, "/") + "/"
	deleted := 0
	for path := range s.docs {
		if strings.HasPrefix(path, prefix) {
			delete(s.docs, path)
			deleted++
		}
	}
	return deleted, nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

// Documents returns the ids of the documents directly inside collection,
// sorted.
func (s *Store) Documents(collection string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prefix := strings.TrimSuffix(collection, "/") + "/"
	var ids []string
	for path := range s.docs {
		rest, ok := strings.CutPrefix(path, prefix)
		if ok && !strings.Contains(rest, "/") {
			ids = append(ids, rest)
		}
	}
	sort.Strings(ids)
	return ids
}

// Commits returns how many batches have been committed.
func (s *Store) Commits() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.commits
}

type write struct {
	ref    docstore.Ref
	fields docstore.Fields
}

type batch struct {
	store  *Store
	writes []write
}

func (b *batch) SetMerge(ref docstore.Ref, fields docstore.Fields) {
	b.writes = append(b.writes, write{ref: ref, fields: fields})
}

func (b *batch) Len() int { return len(b.writes) }

// Commit applies every write or none of them.
func (b *batch) Commit(_ context.Context) error {
	s := b.store
	if s.maxBatchOps > 0 && len(b.writes) > s.maxBatchOps {
		return fmt.Errorf("batch of %d writes exceeds limit of %d", len(b.writes), s.maxBatchOps)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	staged := make(map[string]docstore.Fields, len(b.writes))
	for _, w := range b.writes {
		current, ok := staged[w.ref.Path()]
		if !ok {
			current = s.docs[w.ref.Path()]
		}
		merged, err := docstore.Apply(current, w.fields, now)
		if err != nil {
			return fmt.Errorf("apply %s: %w", w.ref, err)
		}
		staged[w.ref.Path()] = merged
	}
	for path, doc := range staged {
		s.docs[path] = doc
	}
	s.commits++
	return nil
}

func copyFields(in docstore.Fields) docstore.Fields {
	out := make(docstore.Fields, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
