package service

import (
	"context"
	"fmt"
	"time"

	"resonance-field-be/internal/config"
	"resonance-field-be/internal/constant"
	"resonance-field-be/internal/dto"
	"resonance-field-be/internal/entity"
	"resonance-field-be/internal/pkg/logger"
	"resonance-field-be/internal/repository/contract"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

const disconnectKeySession = "session"

// ISessionService owns the session lifecycle: capacity-checked connect,
// idempotent disconnect, self-only partial updates, the directed resonance
// set, heartbeat refresh, and the stale sweeper that force-removes records
// whose last-seen stamp went quiet. Disconnect cleanup is registered with
// the record itself, so presence converges even when a client vanishes
// without a goodbye.
type ISessionService interface {
	Connect(ctx context.Context, req *dto.ConnectRequest) (*entity.Session, error)
	Disconnect(ctx context.Context, id string) error
	UpdateSelf(ctx context.Context, id string, req *dto.UpdateSessionRequest) (*entity.Session, error)
	GetSelf(ctx context.Context, id string) (*entity.Session, error)

	// ListAll is the point-in-time snapshot a joining client is seeded
	// with, excluding its own record.
	ListAll(ctx context.Context, selfId string) (map[string]*entity.Session, error)

	Resonate(ctx context.Context, id, peerId string) error
	Unresonate(ctx context.Context, id, peerId string) error

	// Touch refreshes the session's last-seen stamp. Best effort: errors
	// are logged, never surfaced.
	Touch(ctx context.Context, id string)

	// RunSweeper blocks, periodically force-removing stale sessions,
	// until ctx is cancelled.
	RunSweeper(ctx context.Context)
}

type sessionService struct {
	sessionRepo contract.ISessionRepository
	feed        IPresenceFeed
	resonance   IResonanceService
	capacity    ICapacityService
	registry    IDisconnectRegistry
	logger      logger.ILogger
	cfg         config.FieldConfig

	// Per-session broadcast throttle for continuous position writes.
	positionGate *cache.Cache
}

func NewSessionService(
	sessionRepo contract.ISessionRepository,
	feed IPresenceFeed,
	resonance IResonanceService,
	capacity ICapacityService,
	registry IDisconnectRegistry,
	log logger.ILogger,
	cfg config.FieldConfig,
) ISessionService {
	return &sessionService{
		sessionRepo:  sessionRepo,
		feed:         feed,
		resonance:    resonance,
		capacity:     capacity,
		registry:     registry,
		logger:       log,
		cfg:          cfg,
		positionGate: cache.New(cfg.PositionInterval, 10*cfg.PositionInterval),
	}
}

func (s *sessionService) Connect(ctx context.Context, req *dto.ConnectRequest) (*entity.Session, error) {
	status, err := s.capacity.CheckCapacity(ctx)
	if err != nil {
		return nil, err
	}
	if !status.CanConnect {
		return nil, fmt.Errorf("%w: %d/%d", ErrCapacityExceeded, status.CurrentCount, status.MaxCount)
	}

	now := time.Now()
	session := &entity.Session{
		Id:             req.Id,
		DisplayName:    req.DisplayName,
		Note:           req.Note,
		Affinity:       req.Affinity,
		Mood:           req.Mood,
		ConnectedAt:    now,
		LastSeen:       now,
		ResonatingWith: make(map[string]bool),
	}
	if session.Id == "" {
		session.Id = uuid.NewString()
	}
	if session.DisplayName == "" {
		session.DisplayName = constant.DefaultDisplayName
	}
	if session.Note == "" {
		session.Note = constant.DefaultNote
	}
	if session.Affinity == "" {
		session.Affinity = constant.DefaultAffinity
	}
	if session.Mood == "" {
		session.Mood = constant.DefaultMood
	}
	if req.Position != nil {
		session.Position = *req.Position
	}

	if err := s.sessionRepo.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	// The removal guarantee, registered with the record it protects.
	id := session.Id
	s.registry.Register(id, disconnectKeySession, func(actx context.Context) {
		s.remove(actx, id, "connection lost")
	})

	s.logger.Info("SessionService", "Session joined the field", map[string]interface{}{
		"session_id": session.Id,
		"affinity":   session.Affinity,
	})

	s.publishAfterMembershipChange(ctx, dto.EventSessionAdded, session)
	if err := s.resonance.Refresh(ctx); err != nil {
		s.logger.Warn("SessionService", "Resonance refresh failed after connect", map[string]interface{}{"error": err.Error()})
	}
	return session, nil
}

// Disconnect is the graceful teardown path. Idempotent: a second call, or
// a call racing the automatic cleanup, finds nothing left to do.
func (s *sessionService) Disconnect(ctx context.Context, id string) error {
	s.registry.Run(ctx, id)
	return nil
}

func (s *sessionService) remove(ctx context.Context, id, reason string) {
	existing, err := s.sessionRepo.Find(ctx, id)
	if err != nil {
		s.logger.Error("SessionService", "Session removal lookup failed", map[string]interface{}{"session_id": id, "error": err.Error()})
		return
	}
	if existing == nil {
		return
	}
	if err := s.sessionRepo.Delete(ctx, id); err != nil {
		s.logger.Error("SessionService", "Session removal failed", map[string]interface{}{"session_id": id, "error": err.Error()})
		return
	}
	s.positionGate.Delete(id)

	s.logger.Info("SessionService", "Session left the field", map[string]interface{}{
		"session_id": id,
		"reason":     reason,
	})

	if err := s.feed.SessionRemoved(ctx, id); err != nil {
		s.logger.Warn("SessionService", "Failed to publish session removal", map[string]interface{}{"error": err.Error()})
	}
	s.publishCount(ctx)
	if err := s.resonance.Refresh(ctx); err != nil {
		s.logger.Warn("SessionService", "Resonance refresh failed after removal", map[string]interface{}{"error": err.Error()})
	}
}

func (s *sessionService) UpdateSelf(ctx context.Context, id string, req *dto.UpdateSessionRequest) (*entity.Session, error) {
	positionOnly := req.Position != nil &&
		req.DisplayName == nil && req.Note == nil && req.Affinity == nil && req.Mood == nil

	// The merge runs under the store lock so a concurrent writer to other
	// fields of the same record (an inviter setting the group invite, for
	// one) is never clobbered by this read-modify-write.
	session, err := s.sessionRepo.Update(ctx, id, func(session *entity.Session) error {
		if req.DisplayName != nil {
			session.DisplayName = *req.DisplayName
			if session.DisplayName == "" {
				session.DisplayName = constant.DefaultDisplayName
			}
		}
		if req.Note != nil {
			session.Note = *req.Note
			if session.Note == "" {
				session.Note = constant.DefaultNote
			}
		}
		if req.Affinity != nil {
			if !constant.ValidAffinity(*req.Affinity) {
				return fmt.Errorf("unknown affinity %q", *req.Affinity)
			}
			session.Affinity = *req.Affinity
		}
		if req.Mood != nil {
			if !constant.ValidMood(*req.Mood) {
				return fmt.Errorf("unknown mood %q", *req.Mood)
			}
			session.Mood = *req.Mood
		}
		if req.Position != nil {
			session.Position = *req.Position
		}
		session.LastSeen = time.Now()
		return nil
	})
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrNotConnected
	}

	// Continuous movement is saved every time but only broadcast at the
	// configured rate, so a moving participant does not flood the feed.
	if positionOnly {
		if err := s.positionGate.Add(id, struct{}{}, cache.DefaultExpiration); err != nil {
			return session, nil
		}
	}

	if err := s.feed.SessionChanged(ctx, session); err != nil {
		s.logger.Warn("SessionService", "Failed to publish session change", map[string]interface{}{"error": err.Error()})
	}
	return session, nil
}

func (s *sessionService) GetSelf(ctx context.Context, id string) (*entity.Session, error) {
	return s.sessionRepo.Find(ctx, id)
}

func (s *sessionService) ListAll(ctx context.Context, selfId string) (map[string]*entity.Session, error) {
	sessions, err := s.sessionRepo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	delete(sessions, selfId)
	return sessions, nil
}

func (s *sessionService) Resonate(ctx context.Context, id, peerId string) error {
	return s.setResonance(ctx, id, peerId, true)
}

func (s *sessionService) Unresonate(ctx context.Context, id, peerId string) error {
	return s.setResonance(ctx, id, peerId, false)
}

func (s *sessionService) setResonance(ctx context.Context, id, peerId string, on bool) error {
	if peerId == id {
		// The UI never offers self as a target; tolerate it anyway.
		return nil
	}
	session, err := s.sessionRepo.Update(ctx, id, func(session *entity.Session) error {
		if on {
			session.ResonatingWith[peerId] = true
		} else {
			delete(session.ResonatingWith, peerId)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("resonance: %w", err)
	}
	if session == nil {
		return ErrNotConnected
	}
	if err := s.feed.SessionChanged(ctx, session); err != nil {
		s.logger.Warn("SessionService", "Failed to publish resonance change", map[string]interface{}{"error": err.Error()})
	}
	return s.resonance.Refresh(ctx)
}

func (s *sessionService) Touch(ctx context.Context, id string) {
	if _, err := s.sessionRepo.Update(ctx, id, func(session *entity.Session) error {
		session.LastSeen = time.Now()
		return nil
	}); err != nil {
		s.logger.Warn("SessionService", "Heartbeat refresh failed", map[string]interface{}{"session_id": id, "error": err.Error()})
	}
}

// RunSweeper is the redundancy behind the disconnect guarantee: if the
// connection-scoped cleanup never fired (process kill, starved event
// loop), the sweep catches the leftover record once its last-seen stamp
// exceeds the staleness threshold.
func (s *sessionService) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *sessionService) sweep(ctx context.Context) {
	sessions, err := s.sessionRepo.FindAll(ctx)
	if err != nil {
		s.logger.Warn("SessionService", "Stale sweep scan failed", map[string]interface{}{"error": err.Error()})
		return
	}
	cutoff := time.Now().Add(-s.cfg.StaleThreshold)
	for id, session := range sessions {
		if session.LastSeen.Before(cutoff) {
			s.logger.Warn("SessionService", "Removing stale session", map[string]interface{}{
				"session_id": id,
				"last_seen":  session.LastSeen,
			})
			s.registry.Run(ctx, id)
		}
	}
}

func (s *sessionService) publishAfterMembershipChange(ctx context.Context, eventType string, session *entity.Session) {
	var err error
	if eventType == dto.EventSessionAdded {
		err = s.feed.SessionAdded(ctx, session)
	} else {
		err = s.feed.SessionChanged(ctx, session)
	}
	if err != nil {
		s.logger.Warn("SessionService", "Failed to publish session event", map[string]interface{}{"error": err.Error()})
	}
	s.publishCount(ctx)
}

func (s *sessionService) publishCount(ctx context.Context) {
	count, err := s.sessionRepo.Count(ctx)
	if err != nil {
		s.logger.Warn("SessionService", "Count read failed", map[string]interface{}{"error": err.Error()})
		return
	}
	if err := s.feed.CountChanged(ctx, count); err != nil {
		s.logger.Warn("SessionService", "Failed to publish count", map[string]interface{}{"error": err.Error()})
	}
	s.capacity.Notify(ctx, count)
}
