package service

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"resonance-field-be/internal/dto"
	"resonance-field-be/internal/entity"
	"resonance-field-be/internal/pkg/logger"
	"resonance-field-be/internal/repository/contract"

	"github.com/google/uuid"
)

// IGroupService runs the gathering state machine: no-group → pending or
// active member → active → no-group. Multi-step write sequences are not
// atomic; every mutation is an idempotent merge keyed by session id, and a
// missing group lookup means "this reference is no longer valid", not a
// failure.
type IGroupService interface {
	Create(ctx context.Context, callerId, targetId string) (*entity.Group, error)
	AcceptInvite(ctx context.Context, callerId, groupId string) (*entity.Group, error)
	DeclineInvite(ctx context.Context, callerId string) error
	JoinOpen(ctx context.Context, callerId, groupId string) (*entity.Group, error)
	Leave(ctx context.Context, callerId string) error
	ListAll(ctx context.Context) (map[string]*entity.Group, error)
}

type groupService struct {
	sessionRepo contract.ISessionRepository
	groupRepo   contract.IGroupRepository
	feed        IPresenceFeed
	registry    IDisconnectRegistry
	logger      logger.ILogger
}

func NewGroupService(
	sessionRepo contract.ISessionRepository,
	groupRepo contract.IGroupRepository,
	feed IPresenceFeed,
	registry IDisconnectRegistry,
	log logger.ILogger,
) IGroupService {
	return &groupService{
		sessionRepo: sessionRepo,
		groupRepo:   groupRepo,
		feed:        feed,
		registry:    registry,
		logger:      log,
	}
}

func membershipKey(groupId string) string {
	return "group:" + groupId
}

func (s *groupService) Create(ctx context.Context, callerId, targetId string) (*entity.Group, error) {
	caller, err := s.sessionRepo.Find(ctx, callerId)
	if err != nil {
		return nil, fmt.Errorf("group create: %w", err)
	}
	if caller == nil {
		return nil, fmt.Errorf("%w: caller session missing", ErrInvalidTarget)
	}
	if caller.GroupId != "" {
		return nil, ErrAlreadyInGroup
	}
	target, err := s.sessionRepo.Find(ctx, targetId)
	if err != nil {
		return nil, fmt.Errorf("group create: %w", err)
	}
	if target == nil || targetId == callerId {
		return nil, fmt.Errorf("%w: invitee session missing", ErrInvalidTarget)
	}

	now := time.Now()
	group := &entity.Group{
		Id:                     uuid.NewString(),
		CreatedBy:              callerId,
		CreatorDisplayName:     caller.DisplayName,
		CreatedAt:              now,
		Center:                 caller.Position.Midpoint(target.Position),
		DominantAffinity:       caller.Affinity,
		Seed:                   rand.Int63(),
		TotalMembersEverJoined: 2,
		Members: map[string]*entity.GroupMember{
			callerId: {
				JoinedAt:    now,
				Affinity:    caller.Affinity,
				DisplayName: caller.DisplayName,
			},
			targetId: {
				JoinedAt:    now,
				Affinity:    target.Affinity,
				DisplayName: target.DisplayName,
				Pending:     true,
			},
		},
	}
	if err := s.groupRepo.Save(ctx, group); err != nil {
		return nil, fmt.Errorf("group create: %w", err)
	}

	caller, err = s.sessionRepo.Update(ctx, callerId, func(session *entity.Session) error {
		session.GroupId = group.Id
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("group create: %w", err)
	}
	target, err = s.sessionRepo.Update(ctx, targetId, func(session *entity.Session) error {
		session.GroupInvite = &entity.GroupInvite{GroupId: group.Id, InvitedBy: callerId}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("group create: %w", err)
	}

	s.registerCleanup(callerId, group.Id)
	// The invitee's pending slot gets the same guarantee: a tab that
	// closes mid-invite leaves no orphaned entry behind.
	s.registerCleanup(targetId, group.Id)

	s.logger.Info("GroupService", "Group formed", map[string]interface{}{
		"group_id":   group.Id,
		"created_by": callerId,
		"invited":    targetId,
	})

	s.publishGroup(ctx, dto.EventGroupCreated, callerId, group)
	s.publishSession(ctx, caller)
	s.publishSession(ctx, target)
	if err := s.feed.InviteSent(ctx, targetId, dto.GroupInviteEvent{
		GroupId:            group.Id,
		InvitedBy:          callerId,
		InviterDisplayName: group.CreatorDisplayName,
	}); err != nil {
		s.logger.Warn("GroupService", "Failed to publish invite", map[string]interface{}{"error": err.Error()})
	}
	return group, nil
}

func (s *groupService) AcceptInvite(ctx context.Context, callerId, groupId string) (*entity.Group, error) {
	caller, err := s.sessionRepo.Find(ctx, callerId)
	if err != nil {
		return nil, fmt.Errorf("accept invite: %w", err)
	}
	if caller == nil {
		return nil, ErrNotConnected
	}
	if caller.GroupInvite == nil || caller.GroupInvite.GroupId != groupId {
		return nil, ErrNoPendingInvite
	}

	group, err := s.groupRepo.Find(ctx, groupId)
	if err != nil {
		return nil, fmt.Errorf("accept invite: %w", err)
	}
	if group == nil {
		// The group dissolved while the invite was pending. Clear the
		// stale reference; the invite is simply no longer valid.
		caller, err = s.sessionRepo.Update(ctx, callerId, func(session *entity.Session) error {
			session.GroupInvite = nil
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("accept invite: %w", err)
		}
		s.publishSession(ctx, caller)
		return nil, fmt.Errorf("%w: group no longer exists", ErrNoPendingInvite)
	}

	// At most one group at a time: accepting while in another group
	// implies leaving it first.
	if caller.GroupId != "" && caller.GroupId != groupId {
		if err := s.Leave(ctx, callerId); err != nil {
			return nil, fmt.Errorf("accept invite: %w", err)
		}
	}

	now := time.Now()
	member := group.Members[callerId]
	if member == nil {
		member = &entity.GroupMember{}
		group.Members[callerId] = member
	}
	member.Pending = false
	member.JoinedAt = now
	member.Affinity = caller.Affinity
	member.DisplayName = caller.DisplayName
	recomputeDominantAffinity(group)
	if err := s.groupRepo.Save(ctx, group); err != nil {
		return nil, fmt.Errorf("accept invite: %w", err)
	}

	caller, err = s.sessionRepo.Update(ctx, callerId, func(session *entity.Session) error {
		session.GroupId = groupId
		session.GroupInvite = nil
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("accept invite: %w", err)
	}
	s.registerCleanup(callerId, groupId)

	s.publishGroup(ctx, dto.EventGroupUpdated, callerId, group)
	s.publishSession(ctx, caller)
	return group, nil
}

// DeclineInvite removes the caller's pending slot and clears the invite.
// Declining never deletes the group, even when it leaves zero active
// members behind.
func (s *groupService) DeclineInvite(ctx context.Context, callerId string) error {
	caller, err := s.sessionRepo.Find(ctx, callerId)
	if err != nil {
		return fmt.Errorf("decline invite: %w", err)
	}
	if caller == nil {
		return ErrNotConnected
	}
	if caller.GroupInvite == nil {
		return ErrNoPendingInvite
	}
	groupId := caller.GroupInvite.GroupId

	group, err := s.groupRepo.Find(ctx, groupId)
	if err != nil {
		return fmt.Errorf("decline invite: %w", err)
	}
	// Decline only removes a still-pending entry. An active membership in
	// the same group (the caller joined through another path) stays; only
	// the stale invite is cleared.
	removedPending := false
	if group != nil {
		if member, ok := group.Members[callerId]; ok && member.Pending {
			delete(group.Members, callerId)
			removedPending = true
			if err := s.groupRepo.Save(ctx, group); err != nil {
				return fmt.Errorf("decline invite: %w", err)
			}
			s.publishGroup(ctx, dto.EventGroupUpdated, callerId, group)
		}
	}

	caller, err = s.sessionRepo.Update(ctx, callerId, func(session *entity.Session) error {
		session.GroupInvite = nil
		return nil
	})
	if err != nil {
		return fmt.Errorf("decline invite: %w", err)
	}
	if removedPending {
		s.registry.Deregister(callerId, membershipKey(groupId))
	}
	s.publishSession(ctx, caller)
	return nil
}

// JoinOpen adds the caller directly as an active member of a group it was
// not invited to (discovered via a group browser).
func (s *groupService) JoinOpen(ctx context.Context, callerId, groupId string) (*entity.Group, error) {
	caller, err := s.sessionRepo.Find(ctx, callerId)
	if err != nil {
		return nil, fmt.Errorf("join group: %w", err)
	}
	if caller == nil {
		return nil, ErrNotConnected
	}
	group, err := s.groupRepo.Find(ctx, groupId)
	if err != nil {
		return nil, fmt.Errorf("join group: %w", err)
	}
	if group == nil {
		return nil, fmt.Errorf("%w: group missing", ErrInvalidTarget)
	}
	if caller.GroupId == groupId {
		return group, nil
	}
	if caller.GroupId != "" {
		if err := s.Leave(ctx, callerId); err != nil {
			return nil, fmt.Errorf("join group: %w", err)
		}
	}

	// A pending invitee joining through the open path activates its
	// existing entry; it was already counted at create time.
	member := group.Members[callerId]
	if member == nil {
		member = &entity.GroupMember{}
		group.Members[callerId] = member
		group.TotalMembersEverJoined++
	}
	member.Pending = false
	member.JoinedAt = time.Now()
	member.Affinity = caller.Affinity
	member.DisplayName = caller.DisplayName
	recomputeDominantAffinity(group)
	if err := s.groupRepo.Save(ctx, group); err != nil {
		return nil, fmt.Errorf("join group: %w", err)
	}

	caller, err = s.sessionRepo.Update(ctx, callerId, func(session *entity.Session) error {
		session.GroupId = groupId
		// Joining makes an invite into the same group moot.
		if session.GroupInvite != nil && session.GroupInvite.GroupId == groupId {
			session.GroupInvite = nil
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("join group: %w", err)
	}
	s.registerCleanup(callerId, groupId)

	s.publishGroup(ctx, dto.EventGroupUpdated, callerId, group)
	s.publishSession(ctx, caller)
	return group, nil
}

func (s *groupService) Leave(ctx context.Context, callerId string) error {
	caller, err := s.sessionRepo.Find(ctx, callerId)
	if err != nil {
		return fmt.Errorf("leave group: %w", err)
	}
	if caller == nil {
		return ErrNotConnected
	}
	if caller.GroupId == "" {
		return ErrNotInGroup
	}
	groupId := caller.GroupId

	s.removeMembership(ctx, callerId, groupId)

	caller, err = s.sessionRepo.Update(ctx, callerId, func(session *entity.Session) error {
		session.GroupId = ""
		return nil
	})
	if err != nil {
		return fmt.Errorf("leave group: %w", err)
	}
	s.registry.Deregister(callerId, membershipKey(groupId))
	s.publishSession(ctx, caller)
	return nil
}

func (s *groupService) ListAll(ctx context.Context) (map[string]*entity.Group, error) {
	return s.groupRepo.FindAll(ctx)
}

// removeMembership drops the member entry and dissolves the group when the
// departure of an active member leaves zero active members. A departing
// pending member never triggers dissolution (same rule as decline).
func (s *groupService) removeMembership(ctx context.Context, sessionId, groupId string) {
	group, err := s.groupRepo.Find(ctx, groupId)
	if err != nil {
		s.logger.Error("GroupService", "Membership lookup failed", map[string]interface{}{"group_id": groupId, "error": err.Error()})
		return
	}
	if group == nil {
		return
	}
	member := group.Members[sessionId]
	if member == nil {
		return
	}
	wasPending := member.Pending
	delete(group.Members, sessionId)

	if !wasPending && group.ActiveCount() == 0 {
		if err := s.groupRepo.Delete(ctx, groupId); err != nil {
			s.logger.Error("GroupService", "Group delete failed", map[string]interface{}{"group_id": groupId, "error": err.Error()})
			return
		}
		s.logger.Info("GroupService", "Group dissolved", map[string]interface{}{"group_id": groupId})
		if err := s.feed.GroupRemoved(ctx, sessionId, groupId); err != nil {
			s.logger.Warn("GroupService", "Failed to publish group removal", map[string]interface{}{"error": err.Error()})
		}
		return
	}

	recomputeDominantAffinity(group)
	if err := s.groupRepo.Save(ctx, group); err != nil {
		s.logger.Error("GroupService", "Group save failed", map[string]interface{}{"group_id": groupId, "error": err.Error()})
		return
	}
	s.publishGroup(ctx, dto.EventGroupUpdated, sessionId, group)
}

// registerCleanup ties the membership entry to the member's connection.
// Pending and active entries both get it; on disconnect the entry is
// removed via the same path as leave (active) or decline (pending).
func (s *groupService) registerCleanup(sessionId, groupId string) {
	s.registry.Register(sessionId, membershipKey(groupId), func(ctx context.Context) {
		s.removeMembership(ctx, sessionId, groupId)
	})
}

func (s *groupService) publishGroup(ctx context.Context, eventType, origin string, group *entity.Group) {
	var err error
	switch eventType {
	case dto.EventGroupCreated:
		err = s.feed.GroupCreated(ctx, origin, group)
	case dto.EventGroupRemoved:
		err = s.feed.GroupRemoved(ctx, origin, group.Id)
	default:
		err = s.feed.GroupUpdated(ctx, origin, group)
	}
	if err != nil {
		s.logger.Warn("GroupService", "Failed to publish group event", map[string]interface{}{"error": err.Error()})
	}
}

// publishSession tolerates a nil session: the record can vanish between
// an update and its publication when the connection drops mid-operation.
func (s *groupService) publishSession(ctx context.Context, session *entity.Session) {
	if session == nil {
		return
	}
	if err := s.feed.SessionChanged(ctx, session); err != nil {
		s.logger.Warn("GroupService", "Failed to publish session change", map[string]interface{}{"error": err.Error()})
	}
}

// recomputeDominantAffinity tallies affinities over active members only.
// The previous dominant value is read first and retained on ties, so two
// equally common intentions never flicker.
func recomputeDominantAffinity(group *entity.Group) {
	counts := make(map[string]int)
	for _, m := range group.Members {
		if !m.Pending {
			counts[m.Affinity]++
		}
	}
	if len(counts) == 0 {
		return
	}
	best := group.DominantAffinity
	bestCount := counts[best]
	tags := make([]string, 0, len(counts))
	for tag := range counts {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	for _, tag := range tags {
		if counts[tag] > bestCount {
			best = tag
			bestCount = counts[tag]
		}
	}
	group.DominantAffinity = best
}

// MemberSlot places the index-th active member on the group's orbit: a
// circle whose radius grows with member count, evenly spaced, rotated by
// the group-wide phase so the whole arrangement slowly turns. Pure
// presentation, consumed by the rendering collaborator.
func MemberSlot(index, totalActive int, rotationPhase float64) entity.Vec3 {
	if totalActive <= 0 {
		return entity.Vec3{}
	}
	radius := 2.0 + 0.6*float64(totalActive)
	angle := rotationPhase + 2*math.Pi*float64(index)/float64(totalActive)
	return entity.Vec3{
		X: radius * math.Cos(angle),
		Y: 0,
		Z: radius * math.Sin(angle),
	}
}
