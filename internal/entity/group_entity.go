package entity

import (
	"time"
)

// GroupMember is one membership entry inside a group. Snapshots of the
// member's affinity and display name are taken at join time so the group
// can render without a session lookup.
type GroupMember struct {
	JoinedAt    time.Time `json:"joined_at"`
	Affinity    string    `json:"affinity"`
	DisplayName string    `json:"display_name"`

	// Pending members occupy a slot but do not count toward the dominant
	// affinity or the empty-group check.
	Pending bool `json:"pending"`
}

// Group is one active multi-party gathering in the field.
type Group struct {
	Id                 string    `json:"id"`
	CreatedBy          string    `json:"created_by"`
	CreatorDisplayName string    `json:"creator_display_name"`
	CreatedAt          time.Time `json:"created_at"`

	// Midpoint of creator and first invitee at creation time.
	Center Vec3 `json:"center"`

	// Most common affinity among active members; ties keep the prior value.
	DominantAffinity string `json:"dominant_affinity"`

	// Fixed at creation, parameterizes the client-side visual pattern only.
	Seed int64 `json:"seed"`

	// Monotonic counter, informational display only.
	TotalMembersEverJoined int `json:"total_members_ever_joined"`

	Members map[string]*GroupMember `json:"members"`
}

// ActiveCount returns the number of non-pending members.
func (g *Group) ActiveCount() int {
	n := 0
	for _, m := range g.Members {
		if !m.Pending {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of the group.
func (g *Group) Clone() *Group {
	cp := *g
	cp.Members = make(map[string]*GroupMember, len(g.Members))
	for id, m := range g.Members {
		member := *m
		cp.Members[id] = &member
	}
	return &cp
}
