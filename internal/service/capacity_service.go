package service

import (
	"context"
	"fmt"

	"resonance-field-be/internal/pkg/logger"
	"resonance-field-be/internal/repository/contract"
)

// CapacityStatus is the advisory point-in-time admission check result.
type CapacityStatus struct {
	CanConnect   bool `json:"can_connect"`
	CurrentCount int  `json:"current_count"`
	MaxCount     int  `json:"max_count"`
}

// ICapacityService guards the session ceiling. The check is advisory:
// two joins can both pass it and transiently exceed the maximum. The
// ceiling is a soft limit, not admission control.
type ICapacityService interface {
	CheckCapacity(ctx context.Context) (CapacityStatus, error)

	// Notify re-evaluates the warning state after a membership change.
	Notify(ctx context.Context, count int)

	// OnWarning fires while the count is at or above the warning threshold
	// but still under max. OnCapacityReached fires at or above max.
	OnWarning(fn func(count, max int))
	OnCapacityReached(fn func(count, max int))
}

type capacityService struct {
	sessionRepo contract.ISessionRepository
	max         int
	warnAt      int
	logger      logger.ILogger

	onWarning  func(count, max int)
	onCapacity func(count, max int)
}

func NewCapacityService(sessionRepo contract.ISessionRepository, max int, warningThreshold float64, log logger.ILogger) ICapacityService {
	warnAt := int(float64(max) * warningThreshold)
	if warnAt < 1 {
		warnAt = 1
	}
	return &capacityService{
		sessionRepo: sessionRepo,
		max:         max,
		warnAt:      warnAt,
		logger:      log,
	}
}

func (s *capacityService) CheckCapacity(ctx context.Context) (CapacityStatus, error) {
	count, err := s.sessionRepo.Count(ctx)
	if err != nil {
		return CapacityStatus{}, fmt.Errorf("capacity check: %w", err)
	}
	return CapacityStatus{
		CanConnect:   count < s.max,
		CurrentCount: count,
		MaxCount:     s.max,
	}, nil
}

func (s *capacityService) Notify(_ context.Context, count int) {
	switch {
	case count >= s.max:
		s.logger.Warn("CapacityService", "Field is at capacity", map[string]interface{}{"count": count, "max": s.max})
		if s.onCapacity != nil {
			s.onCapacity(count, s.max)
		}
	case count >= s.warnAt:
		s.logger.Warn("CapacityService", "Field approaching capacity", map[string]interface{}{"count": count, "max": s.max})
		if s.onWarning != nil {
			s.onWarning(count, s.max)
		}
	}
}

func (s *capacityService) OnWarning(fn func(count, max int)) {
	s.onWarning = fn
}

func (s *capacityService) OnCapacityReached(fn func(count, max int)) {
	s.onCapacity = fn
}
