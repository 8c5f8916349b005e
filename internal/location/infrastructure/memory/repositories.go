// Package memory holds in-process location repositories.
package memory

import (
	"context"
	"sort"
	"sync"

	location "wms-core/internal/location/domain"
)

// LocationRepository stores locations by persistent key.
type LocationRepository struct {
	mu    sync.RWMutex
	items map[string]location.Location
}

// NewLocationRepository constructs a repository seeded with locs.
func NewLocationRepository(locs ...location.Location) *LocationRepository {
	repo := &LocationRepository{items: make(map[string]location.Location)}
	for _, loc := range locs {
		repo.items[loc.ID] = loc
	}
	return repo
}

func (r *LocationRepository) Get(_ context.Context, id string) (*location.Location, error) {
	return r.find(func(loc location.Location) bool { return loc.ID == id }), nil
}

func (r *LocationRepository) FindByPK(_ context.Context, pk location.LocationPK) (*location.Location, error) {
	return r.find(func(loc location.Location) bool { return loc.PK == pk }), nil
}

func (r *LocationRepository) FindByPLCCode(_ context.Context, plcCode string) (*location.Location, error) {
	return r.find(func(loc location.Location) bool { return loc.PLCCode != "" && loc.PLCCode == plcCode }), nil
}

func (r *LocationRepository) FindByERPCode(_ context.Context, erpCode string) (*location.Location, error) {
	return r.find(func(loc location.Location) bool { return loc.ERPCode != "" && loc.ERPCode == erpCode }), nil
}

func (r *LocationRepository) Save(_ context.Context, loc *location.Location) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[loc.ID] = *loc
	return nil
}

// List returns locations ordered by coordinate.
func (r *LocationRepository) List(_ context.Context) ([]location.Location, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]location.Location, 0, len(r.items))
	for _, loc := range r.items {
		out = append(out, loc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PK.String() < out[j].PK.String() })
	return out, nil
}

func (r *LocationRepository) find(match func(location.Location) bool) *location.Location {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, loc := range r.items {
		if match(loc) {
			found := loc
			return &found
		}
	}
	return nil
}

// GroupRepository stores location groups by name.
type GroupRepository struct {
	mu    sync.RWMutex
	items map[string]location.LocationGroup
}

// NewGroupRepository constructs a repository seeded with groups.
func NewGroupRepository(groups ...location.LocationGroup) *GroupRepository {
	repo := &GroupRepository{items: make(map[string]location.LocationGroup)}
	for _, group := range groups {
		repo.items[group.Name] = group
	}
	return repo
}

func (r *GroupRepository) Get(_ context.Context, name string) (*location.LocationGroup, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	group, ok := r.items[name]
	if !ok {
		return nil, nil
	}
	return &group, nil
}

func (r *GroupRepository) Save(_ context.Context, group *location.LocationGroup) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[group.Name] = *group
	return nil
}

// List returns groups ordered by name.
func (r *GroupRepository) List(_ context.Context) ([]location.LocationGroup, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]location.LocationGroup, 0, len(r.items))
	for _, group := range r.items {
		out = append(out, group)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
