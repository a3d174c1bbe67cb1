package repository

import (
	"context"
	"sort"
	"sync"

	"edu-arena/internal/rendezvous"
)

type InMemoryRegistry struct {
	mu    sync.RWMutex
	peers map[string]rendezvous.Registration
}

func NewInMemoryRegistry() *InMemoryRegistry {
	return &InMemoryRegistry{
		peers: make(map[string]rendezvous.Registration),
	}
}

func (r *InMemoryRegistry) Register(ctx context.Context, reg rendezvous.Registration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.peers[reg.ID]; exists {
		return rendezvous.ErrIDTaken
	}
	r.peers[reg.ID] = reg
	return nil
}

func (r *InMemoryRegistry) Lookup(ctx context.Context, id string) (rendezvous.Registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.peers[id]
	if !ok {
		return rendezvous.Registration{}, rendezvous.ErrNotFound
	}
	return reg, nil
}

func (r *InMemoryRegistry) Release(ctx context.Context, id, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.peers[id]
	if !ok {
		return rendezvous.ErrNotFound
	}
	if reg.Token != token {
		return rendezvous.ErrTokenMismatch
	}
	delete(r.peers, id)
	return nil
}

func (r *InMemoryRegistry) List(ctx context.Context) ([]rendezvous.Registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]rendezvous.Registration, 0, len(r.peers))
	for _, reg := range r.peers {
		reg.Token = ""
		out = append(out, reg)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
