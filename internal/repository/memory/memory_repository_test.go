package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"resonance-field-be/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRepositoryIsolation(t *testing.T) {
	repo := NewSessionRepository()
	ctx := context.Background()

	session := &entity.Session{
		Id:             "s1",
		DisplayName:    "drifter",
		ResonatingWith: map[string]bool{"s2": true},
	}
	require.NoError(t, repo.Save(ctx, session))

	// Mutating the caller's copy after save must not touch the store.
	session.DisplayName = "changed"
	session.ResonatingWith["s3"] = true

	got, err := repo.Find(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "drifter", got.DisplayName)
	assert.Equal(t, map[string]bool{"s2": true}, got.ResonatingWith)

	// And mutating a read copy must not either.
	got.ResonatingWith["s4"] = true
	again, err := repo.Find(ctx, "s1")
	require.NoError(t, err)
	assert.NotContains(t, again.ResonatingWith, "s4")
}

func TestSessionRepositoryAbsentIsNilNil(t *testing.T) {
	repo := NewSessionRepository()
	got, err := repo.Find(context.Background(), "missing")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestSessionRepositoryCountAndDelete(t *testing.T) {
	repo := NewSessionRepository()
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, &entity.Session{Id: "a"}))
	require.NoError(t, repo.Save(ctx, &entity.Session{Id: "b"}))
	require.NoError(t, repo.Save(ctx, &entity.Session{Id: "a"})) // upsert

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, repo.Delete(ctx, "a"))
	require.NoError(t, repo.Delete(ctx, "a")) // deleting twice is fine

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Contains(t, all, "b")
}

func TestSessionRepositoryUpdateIsAtomic(t *testing.T) {
	repo := NewSessionRepository()
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, &entity.Session{
		Id:             "s1",
		ResonatingWith: map[string]bool{},
	}))

	// Concurrent read-modify-writes of the same record must all land.
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := repo.Update(ctx, "s1", func(s *entity.Session) error {
				s.ResonatingWith[fmt.Sprintf("peer-%d", n)] = true
				return nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := repo.Find(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, got.ResonatingWith, 50)
}

func TestSessionRepositoryUpdateAbsentAndAbort(t *testing.T) {
	repo := NewSessionRepository()
	ctx := context.Background()

	got, err := repo.Update(ctx, "missing", func(*entity.Session) error { return nil })
	assert.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, repo.Save(ctx, &entity.Session{Id: "s1", DisplayName: "drifter"}))

	// An error from the mutator leaves the stored record untouched.
	boom := errors.New("boom")
	_, err = repo.Update(ctx, "s1", func(s *entity.Session) error {
		s.DisplayName = "changed"
		return boom
	})
	assert.ErrorIs(t, err, boom)

	kept, err := repo.Find(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "drifter", kept.DisplayName)
}

func TestGroupRepositoryIsolation(t *testing.T) {
	repo := NewGroupRepository()
	ctx := context.Background()

	group := &entity.Group{
		Id:        "g1",
		CreatedAt: time.Now(),
		Members: map[string]*entity.GroupMember{
			"s1": {DisplayName: "drifter"},
		},
	}
	require.NoError(t, repo.Save(ctx, group))

	group.Members["s2"] = &entity.GroupMember{Pending: true}
	group.Members["s1"].DisplayName = "changed"

	got, err := repo.Find(ctx, "g1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Len(t, got.Members, 1)
	assert.Equal(t, "drifter", got.Members["s1"].DisplayName)

	missing, err := repo.Find(ctx, "nope")
	assert.NoError(t, err)
	assert.Nil(t, missing)
}
