package memory

import (
	"context"
	"sync"

	"resonance-field-be/internal/entity"
	"resonance-field-be/internal/repository/contract"
)

// SessionRepository keeps session records in process memory. Records are
// deep-copied on the way in and out so callers never share state with the
// store.
type SessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*entity.Session
}

func NewSessionRepository() contract.ISessionRepository {
	return &SessionRepository{
		sessions: make(map[string]*entity.Session),
	}
}

func (r *SessionRepository) Save(_ context.Context, session *entity.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.Id] = session.Clone()
	return nil
}

func (r *SessionRepository) Update(_ context.Context, id string, fn func(*entity.Session) error) (*entity.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	next := s.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	r.sessions[id] = next
	return next.Clone(), nil
}

func (r *SessionRepository) Find(_ context.Context, id string) (*entity.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.sessions[id]; ok {
		return s.Clone(), nil
	}
	return nil, nil
}

func (r *SessionRepository) FindAll(_ context.Context) (map[string]*entity.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*entity.Session, len(r.sessions))
	for id, s := range r.sessions {
		out[id] = s.Clone()
	}
	return out, nil
}

func (r *SessionRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

func (r *SessionRepository) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions), nil
}
