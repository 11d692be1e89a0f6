// Package store persists API documents grouped by collection name.
package store

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/fairyhunter13/inventory-manager/internal/model"
)

// ErrNotFound is returned when no document has the requested id.
var ErrNotFound = errors.New("store: document not found")

// ErrConflict is returned by Insert when the id is already taken.
var ErrConflict = errors.New("store: document already exists")

// Store is a document store. Lists come back in insertion order.
type Store interface {
	List(ctx context.Context, collection string) ([]*model.Document, error)
	Get(ctx context.Context, collection, id string) (*model.Document, error)
	Insert(ctx context.Context, collection, id string, doc *model.Document) error
	// Update shallow-merges changes into the stored document and returns the result.
	Update(ctx context.Context, collection, id string, changes *model.Document) (*model.Document, error)
	Delete(ctx context.Context, collection, id string) error
	Close() error
}

type docState struct {
	doc *model.Document
	seq uint64
}

// Memory is an in-process Store.
type Memory struct {
	mu  sync.RWMutex
	m   map[string]map[string]docState
	seq uint64
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{m: make(map[string]map[string]docState)}
}

func (s *Memory) List(_ context.Context, collection string) ([]*model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	coll := s.m[collection]
	states := make([]docState, 0, len(coll))
	for _, st := range coll {
		states = append(states, st)
	}
	sort.Slice(states, func(i, j int) bool { return states[i].seq < states[j].seq })
	out := make([]*model.Document, len(states))
	for i, st := range states {
		out[i] = st.doc.Clone()
	}
	return out, nil
}

func (s *Memory) Get(_ context.Context, collection, id string) (*model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.m[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return st.doc.Clone(), nil
}

func (s *Memory) Insert(_ context.Context, collection, id string, doc *model.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	coll, ok := s.m[collection]
	if !ok {
		coll = make(map[string]docState)
		s.m[collection] = coll
	}
	if _, exists := coll[id]; exists {
		return ErrConflict
	}
	s.seq++
	coll[id] = docState{doc: doc.Clone(), seq: s.seq}
	return nil
}

func (s *Memory) Update(_ context.Context, collection, id string, changes *model.Document) (*model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.m[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	st.doc = st.doc.Merge(changes)
	s.m[collection][id] = st
	return st.doc.Clone(), nil
}

func (s *Memory) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[collection][id]; !ok {
		return ErrNotFound
	}
	delete(s.m[collection], id)
	return nil
}

func (s *Memory) Close() error { return nil }
