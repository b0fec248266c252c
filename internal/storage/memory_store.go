package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"git.home.luguber.info/inful/docfold/internal/contentid"
)

// MemoryStore is an in-memory ObjectStore for tests and one-shot renders.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]*Object
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]*Object)}
}

func (m *MemoryStore) Put(_ context.Context, obj *Object) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	hash := obj.Hash
	if hash == "" {
		hash = contentid.Blob(obj.Data)
	}
	if existing, ok := m.objects[hash]; ok {
		existing.Metadata.RefCount++
		return hash, nil
	}

	now := time.Now()
	data := make([]byte, len(obj.Data))
	copy(data, obj.Data)
	m.objects[hash] = &Object{
		Hash:        hash,
		Kind:        obj.Kind,
		ContentType: obj.ContentType,
		Size:        int64(len(data)),
		Data:        data,
		Metadata: Metadata{
			CreatedAt:    now,
			LastAccessed: now,
			RefCount:     1,
			Custom:       obj.Metadata.Custom,
		},
	}
	return hash, nil
}

func (m *MemoryStore) Get(_ context.Context, hash string) (*Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	obj, ok := m.objects[hash]
	if !ok {
		return nil, ErrNotFound{Hash: hash}
	}
	obj.Metadata.LastAccessed = time.Now()
	out := *obj
	return &out, nil
}

func (m *MemoryStore) Exists(_ context.Context, hash string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[hash]
	return ok, nil
}

func (m *MemoryStore) Delete(_ context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[hash]; !ok {
		return ErrNotFound{Hash: hash}
	}
	delete(m.objects, hash)
	return nil
}

func (m *MemoryStore) List(_ context.Context, kind ObjectKind) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hashes := make([]string, 0, len(m.objects))
	for hash, obj := range m.objects {
		if kind == "" || obj.Kind == kind {
			hashes = append(hashes, hash)
		}
	}
	sort.Strings(hashes)
	return hashes, nil
}

func (m *MemoryStore) Close() error {
	return nil
}
