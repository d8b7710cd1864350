package dto

import (
	"encoding/json"

	"resonance-field-be/internal/entity"
)

// ConnectRequest is the first frame a client sends after the websocket
// upgrade. The id is client-generated and stable for the tab's lifetime;
// when omitted the server assigns one.
type ConnectRequest struct {
	Id          string       `json:"id" validate:"omitempty,max=64"`
	DisplayName string       `json:"display_name" validate:"omitempty,max=64"`
	Note        string       `json:"note" validate:"omitempty,max=140"`
	Affinity    string       `json:"affinity" validate:"omitempty,oneof=observer healing gratitude unity creation wisdom love"`
	Mood        string       `json:"mood" validate:"omitempty,oneof=calm joy wonder serenity melancholy longing"`
	Position    *entity.Vec3 `json:"position"`
}

// UpdateSessionRequest merges non-nil fields into the caller's own record.
type UpdateSessionRequest struct {
	DisplayName *string      `json:"display_name" validate:"omitempty,max=64"`
	Note        *string      `json:"note" validate:"omitempty,max=140"`
	Affinity    *string      `json:"affinity" validate:"omitempty,oneof=observer healing gratitude unity creation wisdom love"`
	Mood        *string      `json:"mood" validate:"omitempty,oneof=calm joy wonder serenity melancholy longing"`
	Position    *entity.Vec3 `json:"position"`
}

// ResonateRequest adds or removes a directed resonance edge.
type ResonateRequest struct {
	PeerId string `json:"peer_id" validate:"required,max=64"`
}

// GroupCreateRequest seeds a group with the caller and one invitee.
type GroupCreateRequest struct {
	TargetId string `json:"target_id" validate:"required,max=64"`
}

// GroupActionRequest is accept-invite and join-open.
type GroupActionRequest struct {
	GroupId string `json:"group_id" validate:"required,max=64"`
}

// Command is the inbound websocket frame: an action tag plus its payload.
type Command struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload"`
}

// Inbound command actions.
const (
	ActionConnect       = "connect"
	ActionUpdate        = "update"
	ActionHeartbeat     = "heartbeat"
	ActionResonate      = "resonate"
	ActionUnresonate    = "unresonate"
	ActionGroupCreate   = "group_create"
	ActionGroupAccept   = "group_accept"
	ActionGroupDecline  = "group_decline"
	ActionGroupJoin     = "group_join"
	ActionGroupLeave    = "group_leave"
	ActionListSessions  = "list_sessions"
	ActionCheckCapacity = "check_capacity"
)

// Event is the outbound websocket frame.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Outbound event types.
const (
	EventConnected      = "connected"
	EventSessions       = "sessions"
	EventCapacity       = "capacity"
	EventSessionAdded   = "session_added"
	EventSessionChanged = "session_changed"
	EventSessionRemoved = "session_removed"
	EventFieldCount     = "field_count"
	EventResonance      = "resonance"
	EventGroupCreated   = "group_created"
	EventGroupUpdated   = "group_updated"
	EventGroupRemoved   = "group_removed"
	EventGroupInvite    = "group_invite"
	EventError          = "error"
)

// SessionEvent carries a session snapshot on added/changed frames.
type SessionEvent struct {
	Id      string          `json:"id"`
	Session *entity.Session `json:"session"`
}

// SessionRemovedEvent is terminal for the id; a later re-add with the same
// id is a fresh presence.
type SessionRemovedEvent struct {
	Id string `json:"id"`
}

// FieldCountEvent fires on every membership change, even when the value
// itself has not moved.
type FieldCountEvent struct {
	Count int `json:"count"`
}

// ConnectionDTO is one derived resonance connection. The key is the
// canonical unordered pair, ids sorted.
type ConnectionDTO struct {
	Key    string `json:"key"`
	A      string `json:"a"`
	B      string `json:"b"`
	Mutual bool   `json:"mutual"`
}

// ResonanceDeltaEvent carries the incremental change set so rendering
// collaborators can draw and drop threads without a full rebuild.
type ResonanceDeltaEvent struct {
	Added   []ConnectionDTO `json:"added,omitempty"`
	Updated []ConnectionDTO `json:"updated,omitempty"`
	Removed []string        `json:"removed,omitempty"`
}

// GroupEvent carries a full group snapshot.
type GroupEvent struct {
	Id    string        `json:"id"`
	Group *entity.Group `json:"group"`
}

// GroupRemovedEvent is terminal for the group id.
type GroupRemovedEvent struct {
	Id string `json:"id"`
}

// GroupInviteEvent is delivered only to the invitee.
type GroupInviteEvent struct {
	GroupId            string `json:"group_id"`
	InvitedBy          string `json:"invited_by"`
	InviterDisplayName string `json:"inviter_display_name"`
}

// FieldStatsResponse is the REST stats payload.
type FieldStatsResponse struct {
	CurrentCount int  `json:"current_count"`
	MaxCount     int  `json:"max_count"`
	CanConnect   bool `json:"can_connect"`
	GroupCount   int  `json:"group_count"`
}

// CatalogResponse lists the fixed intention and emotion tags.
type CatalogResponse struct {
	Affinities []string `json:"affinities"`
	Moods      []string `json:"moods"`
}
