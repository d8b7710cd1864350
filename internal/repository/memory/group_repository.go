package memory

import (
	"context"
	"sync"

	"resonance-field-be/internal/entity"
	"resonance-field-be/internal/repository/contract"
)

// GroupRepository keeps group records in process memory, with the same
// copy-in/copy-out discipline as the session repository.
type GroupRepository struct {
	mu     sync.RWMutex
	groups map[string]*entity.Group
}

func NewGroupRepository() contract.IGroupRepository {
	return &GroupRepository{
		groups: make(map[string]*entity.Group),
	}
}

func (r *GroupRepository) Save(_ context.Context, group *entity.Group) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.groups[group.Id] = group.Clone()
	return nil
}

func (r *GroupRepository) Find(_ context.Context, id string) (*entity.Group, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if g, ok := r.groups[id]; ok {
		return g.Clone(), nil
	}
	return nil, nil
}

func (r *GroupRepository) FindAll(_ context.Context) (map[string]*entity.Group, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*entity.Group, len(r.groups))
	for id, g := range r.groups {
		out[id] = g.Clone()
	}
	return out, nil
}

func (r *GroupRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.groups, id)
	return nil
}
