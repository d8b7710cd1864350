package service

import (
	"context"
	"sync"
)

// IDisconnectRegistry holds cleanup actions tied to a live connection.
// Correctness of presence depends on these firing: when a tab closes
// without a goodbye, the registered actions are the only thing standing
// between the field and orphaned records. Actions are registered together
// with the record they clean up (session on connect, group membership on
// create/accept/join) and run exactly once, on graceful disconnect and on
// abrupt connection loss alike.
type IDisconnectRegistry interface {
	// Register stores an action under (sessionId, key). Re-registering the
	// same key replaces the previous action.
	Register(sessionId, key string, action func(ctx context.Context))

	// Deregister drops a single action, e.g. when a membership is cleaned
	// up explicitly before the connection ends.
	Deregister(sessionId, key string)

	// Run executes and clears every action registered for the session.
	Run(ctx context.Context, sessionId string)
}

type disconnectRegistry struct {
	mu      sync.Mutex
	actions map[string]map[string]func(ctx context.Context)
}

func NewDisconnectRegistry() IDisconnectRegistry {
	return &disconnectRegistry{
		actions: make(map[string]map[string]func(ctx context.Context)),
	}
}

func (r *disconnectRegistry) Register(sessionId, key string, action func(ctx context.Context)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.actions[sessionId] == nil {
		r.actions[sessionId] = make(map[string]func(ctx context.Context))
	}
	r.actions[sessionId][key] = action
}

func (r *disconnectRegistry) Deregister(sessionId, key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if acts, ok := r.actions[sessionId]; ok {
		delete(acts, key)
		if len(acts) == 0 {
			delete(r.actions, sessionId)
		}
	}
}

func (r *disconnectRegistry) Run(ctx context.Context, sessionId string) {
	r.mu.Lock()
	acts := r.actions[sessionId]
	delete(r.actions, sessionId)
	r.mu.Unlock()

	// Run outside the lock: actions call back into services that may
	// register or deregister other actions.
	for _, action := range acts {
		action(ctx)
	}
}
