package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"resonance-field-be/internal/dto"
	"resonance-field-be/internal/entity"
	"resonance-field-be/internal/pkg/logger"
	"resonance-field-be/internal/repository/contract"
)

// IResonanceService derives the active connection set from all sessions'
// resonance sets. Recompute is a pure function of a snapshot; Refresh
// recomputes from the store, diffs against the previous result, and emits
// an incremental delta on the feed so rendering collaborators can update
// threads without a full rebuild.
type IResonanceService interface {
	Recompute(sessions map[string]*entity.Session) map[string]dto.ConnectionDTO
	Refresh(ctx context.Context) error
	Current() []dto.ConnectionDTO
}

type resonanceService struct {
	sessionRepo contract.ISessionRepository
	feed        IPresenceFeed
	logger      logger.ILogger

	mu      sync.Mutex
	current map[string]dto.ConnectionDTO
}

func NewResonanceService(sessionRepo contract.ISessionRepository, feed IPresenceFeed, log logger.ILogger) IResonanceService {
	return &resonanceService{
		sessionRepo: sessionRepo,
		feed:        feed,
		logger:      log,
		current:     make(map[string]dto.ConnectionDTO),
	}
}

// PairKey canonicalizes an unordered session pair, ids sorted.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}

// Recompute walks every session's resonance set and emits one connection
// per unordered pair whose sides both exist. Mutual when both directions
// are present. Edges into absent peers and self-edges are skipped, never
// errors.
func (s *resonanceService) Recompute(sessions map[string]*entity.Session) map[string]dto.ConnectionDTO {
	out := make(map[string]dto.ConnectionDTO)
	for id, session := range sessions {
		for peerId := range session.ResonatingWith {
			if peerId == id {
				continue
			}
			peer, present := sessions[peerId]
			if !present {
				continue
			}
			a, b := id, peerId
			if b < a {
				a, b = b, a
			}
			key := PairKey(a, b)
			out[key] = dto.ConnectionDTO{
				Key:    key,
				A:      a,
				B:      b,
				Mutual: peer.ResonatingWith[id],
			}
		}
	}
	return out
}

func (s *resonanceService) Refresh(ctx context.Context) error {
	sessions, err := s.sessionRepo.FindAll(ctx)
	if err != nil {
		return fmt.Errorf("resonance refresh: %w", err)
	}
	next := s.Recompute(sessions)

	s.mu.Lock()
	prev := s.current
	s.current = next
	s.mu.Unlock()

	delta := diffConnections(prev, next)
	if len(delta.Added) == 0 && len(delta.Updated) == 0 && len(delta.Removed) == 0 {
		return nil
	}
	if err := s.feed.ResonanceChanged(ctx, delta); err != nil {
		return fmt.Errorf("resonance publish: %w", err)
	}
	return nil
}

func (s *resonanceService) Current() []dto.ConnectionDTO {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]dto.ConnectionDTO, 0, len(s.current))
	for _, c := range s.current {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func diffConnections(prev, next map[string]dto.ConnectionDTO) dto.ResonanceDeltaEvent {
	var delta dto.ResonanceDeltaEvent
	for key, conn := range next {
		old, existed := prev[key]
		switch {
		case !existed:
			delta.Added = append(delta.Added, conn)
		case old.Mutual != conn.Mutual:
			delta.Updated = append(delta.Updated, conn)
		}
	}
	for key := range prev {
		if _, still := next[key]; !still {
			delta.Removed = append(delta.Removed, key)
		}
	}
	sort.Slice(delta.Added, func(i, j int) bool { return delta.Added[i].Key < delta.Added[j].Key })
	sort.Slice(delta.Updated, func(i, j int) bool { return delta.Updated[i].Key < delta.Updated[j].Key })
	sort.Strings(delta.Removed)
	return delta
}
