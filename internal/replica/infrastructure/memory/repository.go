// Package memory holds an in-process replica repository.
package memory

import (
	"context"
	"sort"
	"sync"

	replica "wms-core/internal/replica/domain"
)

// Repository stores replicas by application name.
type Repository struct {
	mu    sync.RWMutex
	items map[string]replica.Replica
}

// NewRepository constructs a repository seeded with replicas.
func NewRepository(replicas ...replica.Replica) *Repository {
	repo := &Repository{items: make(map[string]replica.Replica)}
	for _, r := range replicas {
		repo.items[r.ApplicationName] = r
	}
	return repo
}

func (r *Repository) Get(_ context.Context, applicationName string) (*replica.Replica, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.items[applicationName]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (r *Repository) Upsert(_ context.Context, item *replica.Replica) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[item.ApplicationName] = *item
	return nil
}

func (r *Repository) ListRegistered(_ context.Context) ([]replica.Replica, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]replica.Replica, 0, len(r.items))
	for _, item := range r.items {
		if item.Registered() {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ApplicationName < out[j].ApplicationName })
	return out, nil
}

// Len returns the number of stored rows.
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}
