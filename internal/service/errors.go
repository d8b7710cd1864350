package service

import "errors"

// Field protocol failures surfaced to callers. Background paths (heartbeat
// refresh, stale sweep, position writes) log and continue instead.
var (
	// ErrCapacityExceeded: connect attempted at or above the session
	// ceiling. Not retried automatically.
	ErrCapacityExceeded = errors.New("field capacity exceeded")

	// ErrNotConnected: operation on a session id with no live record.
	ErrNotConnected = errors.New("session not connected")

	// ErrInvalidTarget: group operation names a session or group that
	// does not exist.
	ErrInvalidTarget = errors.New("invalid target")

	// ErrAlreadyInGroup: caller already belongs to a group.
	ErrAlreadyInGroup = errors.New("already in a group")

	// ErrNoPendingInvite: accept/decline without a matching invite.
	ErrNoPendingInvite = errors.New("no pending invite")

	// ErrNotInGroup: leave without a group membership.
	ErrNotInGroup = errors.New("not in a group")
)
