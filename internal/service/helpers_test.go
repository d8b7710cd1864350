package service

import (
	"context"
	"sync"
	"time"

	"resonance-field-be/internal/config"
	"resonance-field-be/internal/dto"
	"resonance-field-be/internal/entity"
	"resonance-field-be/internal/repository/contract"
	"resonance-field-be/internal/repository/memory"
)

type nopLogger struct{}

func (nopLogger) Debug(string, string, map[string]interface{}) {}
func (nopLogger) Info(string, string, map[string]interface{})  {}
func (nopLogger) Warn(string, string, map[string]interface{})  {}
func (nopLogger) Error(string, string, map[string]interface{}) {}
func (nopLogger) Sync() error                                  { return nil }

// recordingFeed captures every feed publication for assertions.
type recordingFeed struct {
	mu            sync.Mutex
	added         []string
	changed       []string
	removed       []string
	counts        []int
	deltas        []dto.ResonanceDeltaEvent
	groupsCreated []*entity.Group
	groupsUpdated []*entity.Group
	groupsRemoved []string
	invites       map[string]dto.GroupInviteEvent
}

func newRecordingFeed() *recordingFeed {
	return &recordingFeed{invites: make(map[string]dto.GroupInviteEvent)}
}

func (f *recordingFeed) SessionAdded(_ context.Context, s *entity.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added = append(f.added, s.Id)
	return nil
}

func (f *recordingFeed) SessionChanged(_ context.Context, s *entity.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changed = append(f.changed, s.Id)
	return nil
}

func (f *recordingFeed) SessionRemoved(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, id)
	return nil
}

func (f *recordingFeed) CountChanged(_ context.Context, count int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts = append(f.counts, count)
	return nil
}

func (f *recordingFeed) ResonanceChanged(_ context.Context, delta dto.ResonanceDeltaEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deltas = append(f.deltas, delta)
	return nil
}

func (f *recordingFeed) GroupCreated(_ context.Context, _ string, g *entity.Group) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.groupsCreated = append(f.groupsCreated, g.Clone())
	return nil
}

func (f *recordingFeed) GroupUpdated(_ context.Context, _ string, g *entity.Group) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.groupsUpdated = append(f.groupsUpdated, g.Clone())
	return nil
}

func (f *recordingFeed) GroupRemoved(_ context.Context, _ string, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.groupsRemoved = append(f.groupsRemoved, id)
	return nil
}

func (f *recordingFeed) InviteSent(_ context.Context, target string, invite dto.GroupInviteEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invites[target] = invite
	return nil
}

func (f *recordingFeed) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (f *recordingFeed) lastDelta() dto.ResonanceDeltaEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.deltas) == 0 {
		return dto.ResonanceDeltaEvent{}
	}
	return f.deltas[len(f.deltas)-1]
}

// fieldStack bundles a fully wired in-memory field for tests.
type fieldStack struct {
	sessionRepo contract.ISessionRepository
	groupRepo   contract.IGroupRepository
	feed        *recordingFeed
	registry    IDisconnectRegistry
	capacity    ICapacityService
	resonance   IResonanceService
	sessions    ISessionService
	groups      IGroupService
}

func testFieldConfig() config.FieldConfig {
	return config.FieldConfig{
		MaxSessions:       100,
		WarningThreshold:  0.9,
		HeartbeatInterval: 30 * time.Second,
		SweepInterval:     60 * time.Second,
		StaleThreshold:    120 * time.Second,
		PositionInterval:  100 * time.Millisecond,
	}
}

func newFieldStack(cfg config.FieldConfig) *fieldStack {
	log := nopLogger{}
	sessionRepo := memory.NewSessionRepository()
	groupRepo := memory.NewGroupRepository()
	feed := newRecordingFeed()
	registry := NewDisconnectRegistry()
	capacity := NewCapacityService(sessionRepo, cfg.MaxSessions, cfg.WarningThreshold, log)
	resonance := NewResonanceService(sessionRepo, feed, log)
	groups := NewGroupService(sessionRepo, groupRepo, feed, registry, log)
	sessions := NewSessionService(sessionRepo, feed, resonance, capacity, registry, log, cfg)
	return &fieldStack{
		sessionRepo: sessionRepo,
		groupRepo:   groupRepo,
		feed:        feed,
		registry:    registry,
		capacity:    capacity,
		resonance:   resonance,
		sessions:    sessions,
		groups:      groups,
	}
}

func (s *fieldStack) connect(ctx context.Context, name, affinity string) *entity.Session {
	session, err := s.sessions.Connect(ctx, &dto.ConnectRequest{DisplayName: name, Affinity: affinity})
	if err != nil {
		panic(err)
	}
	return session
}
