package contract

import (
	"context"

	"resonance-field-be/internal/entity"
)

// IGroupRepository holds the active groups. Same absence convention as
// ISessionRepository: a vanished group is (nil, nil), never an error.
type IGroupRepository interface {
	Save(ctx context.Context, group *entity.Group) error
	Find(ctx context.Context, id string) (*entity.Group, error)
	FindAll(ctx context.Context) (map[string]*entity.Group, error)
	Delete(ctx context.Context, id string) error
}
