package contract

import (
	"context"

	"resonance-field-be/internal/entity"
)

// ISessionRepository holds the ephemeral session records. Lookups for an
// absent id return (nil, nil): a missing record is an expected state (the
// peer vanished), not a failure.
type ISessionRepository interface {
	Save(ctx context.Context, session *entity.Session) error
	Find(ctx context.Context, id string) (*entity.Session, error)
	FindAll(ctx context.Context) (map[string]*entity.Session, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)

	// Update applies fn to the stored record under the store lock and
	// returns the updated copy. Concurrent writers to different fields of
	// the same record cannot clobber each other through it. Absent id is
	// (nil, nil); an error from fn aborts the update and is passed back.
	Update(ctx context.Context, id string, fn func(*entity.Session) error) (*entity.Session, error)
}
