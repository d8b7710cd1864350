package entity

import (
	"time"
)

// Vec3 is a position in the shared field space.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Midpoint returns the point halfway between a and b.
func (a Vec3) Midpoint(b Vec3) Vec3 {
	return Vec3{
		X: (a.X + b.X) / 2,
		Y: (a.Y + b.Y) / 2,
		Z: (a.Z + b.Z) / 2,
	}
}

// GroupInvite is the pending invitation written onto the invitee's record
// by the inviter. This is the single deliberate exception to the rule that
// a session is mutated only by its own client.
type GroupInvite struct {
	GroupId   string `json:"group_id"`
	InvitedBy string `json:"invited_by"`
}

// Session is one ephemeral record per connected participant. It exists only
// while the owning connection is alive; there is no durable copy anywhere.
type Session struct {
	Id          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Note        string    `json:"note"`
	Affinity    string    `json:"affinity"`
	Mood        string    `json:"mood"`
	Position    Vec3      `json:"position"`
	ConnectedAt time.Time `json:"connected_at"`
	LastSeen    time.Time `json:"last_seen"`

	// Directed resonance set: peer session ids this participant has chosen
	// to resonate with. Never contains the session's own id.
	ResonatingWith map[string]bool `json:"resonating_with"`

	// At most one group at a time. Empty when not in a group.
	GroupId     string       `json:"group_id,omitempty"`
	GroupInvite *GroupInvite `json:"group_invite,omitempty"`
}

// Clone returns a deep copy so repository snapshots can be handed out
// without exposing shared mutable state.
func (s *Session) Clone() *Session {
	cp := *s
	cp.ResonatingWith = make(map[string]bool, len(s.ResonatingWith))
	for id := range s.ResonatingWith {
		cp.ResonatingWith[id] = true
	}
	if s.GroupInvite != nil {
		invite := *s.GroupInvite
		cp.GroupInvite = &invite
	}
	return &cp
}
