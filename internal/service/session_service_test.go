package service

import (
	"context"
	"testing"
	"time"

	"resonance-field-be/internal/constant"
	"resonance-field-be/internal/dto"
	"resonance-field-be/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectAppliesDefaults(t *testing.T) {
	stack := newFieldStack(testFieldConfig())
	ctx := context.Background()

	session, err := stack.sessions.Connect(ctx, &dto.ConnectRequest{})
	require.NoError(t, err)

	assert.NotEmpty(t, session.Id)
	assert.Equal(t, constant.DefaultDisplayName, session.DisplayName)
	assert.Equal(t, constant.DefaultNote, session.Note)
	assert.Equal(t, constant.AffinityObserver, session.Affinity)
	assert.Equal(t, constant.MoodCalm, session.Mood)
	assert.False(t, session.ConnectedAt.IsZero())
	assert.False(t, session.LastSeen.IsZero())
	assert.Empty(t, session.ResonatingWith)

	assert.Equal(t, []string{session.Id}, stack.feed.added)
	assert.Equal(t, []int{1}, stack.feed.counts)
}

func TestConnectKeepsClientId(t *testing.T) {
	stack := newFieldStack(testFieldConfig())
	session, err := stack.sessions.Connect(context.Background(), &dto.ConnectRequest{Id: "tab-42"})
	require.NoError(t, err)
	assert.Equal(t, "tab-42", session.Id)
}

func TestConnectCapacityExceeded(t *testing.T) {
	cfg := testFieldConfig()
	cfg.MaxSessions = 2
	stack := newFieldStack(cfg)
	ctx := context.Background()

	stack.connect(ctx, "one", "")
	stack.connect(ctx, "two", "")

	_, err := stack.sessions.Connect(ctx, &dto.ConnectRequest{DisplayName: "three"})
	require.ErrorIs(t, err, ErrCapacityExceeded)

	count, _ := stack.sessionRepo.Count(ctx)
	assert.Equal(t, 2, count)
}

func TestDisconnectIsIdempotent(t *testing.T) {
	stack := newFieldStack(testFieldConfig())
	ctx := context.Background()
	session := stack.connect(ctx, "x", "")

	require.NoError(t, stack.sessions.Disconnect(ctx, session.Id))
	require.NoError(t, stack.sessions.Disconnect(ctx, session.Id))

	got, err := stack.sessions.GetSelf(ctx, session.Id)
	require.NoError(t, err)
	assert.Nil(t, got)
	// Removed event fired exactly once.
	assert.Equal(t, []string{session.Id}, stack.feed.removed)
	// Count fired on join and on the single removal.
	assert.Equal(t, []int{1, 0}, stack.feed.counts)
}

func TestUpdateSelfNotConnected(t *testing.T) {
	stack := newFieldStack(testFieldConfig())
	_, err := stack.sessions.UpdateSelf(context.Background(), "nobody", &dto.UpdateSessionRequest{})
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestUpdateSelfMergesFields(t *testing.T) {
	stack := newFieldStack(testFieldConfig())
	ctx := context.Background()
	session := stack.connect(ctx, "x", "")

	name := "luminous drifter"
	affinity := constant.AffinityHealing
	updated, err := stack.sessions.UpdateSelf(ctx, session.Id, &dto.UpdateSessionRequest{
		DisplayName: &name,
		Affinity:    &affinity,
	})
	require.NoError(t, err)
	assert.Equal(t, name, updated.DisplayName)
	assert.Equal(t, affinity, updated.Affinity)
	// Untouched fields keep their values.
	assert.Equal(t, constant.DefaultNote, updated.Note)
	assert.Equal(t, constant.MoodCalm, updated.Mood)
}

func TestUpdateSelfRejectsUnknownTags(t *testing.T) {
	stack := newFieldStack(testFieldConfig())
	ctx := context.Background()
	session := stack.connect(ctx, "x", "")

	bad := "chaos"
	_, err := stack.sessions.UpdateSelf(ctx, session.Id, &dto.UpdateSessionRequest{Affinity: &bad})
	assert.Error(t, err)
	_, err = stack.sessions.UpdateSelf(ctx, session.Id, &dto.UpdateSessionRequest{Mood: &bad})
	assert.Error(t, err)
}

func TestUpdateSelfRejectedMergeChangesNothing(t *testing.T) {
	stack := newFieldStack(testFieldConfig())
	ctx := context.Background()
	session := stack.connect(ctx, "x", "")

	name := "luminous drifter"
	bad := "chaos"
	_, err := stack.sessions.UpdateSelf(ctx, session.Id, &dto.UpdateSessionRequest{
		DisplayName: &name,
		Affinity:    &bad,
	})
	require.Error(t, err)

	// The whole merge is discarded, valid fields included.
	got, err := stack.sessions.GetSelf(ctx, session.Id)
	require.NoError(t, err)
	assert.Equal(t, "x", got.DisplayName)
	assert.Equal(t, constant.AffinityObserver, got.Affinity)
}

func TestPositionUpdatesAreThrottled(t *testing.T) {
	stack := newFieldStack(testFieldConfig())
	ctx := context.Background()
	session := stack.connect(ctx, "x", "")

	before := len(stack.feed.changed)
	for i := 0; i < 5; i++ {
		pos := entity.Vec3{X: float64(i)}
		_, err := stack.sessions.UpdateSelf(ctx, session.Id, &dto.UpdateSessionRequest{Position: &pos})
		require.NoError(t, err)
	}

	// Every write lands in the store...
	got, err := stack.sessions.GetSelf(ctx, session.Id)
	require.NoError(t, err)
	assert.Equal(t, 4.0, got.Position.X)
	// ...but only the first burst frame is broadcast.
	assert.Equal(t, before+1, len(stack.feed.changed))
}

func TestResonateBecomesMutual(t *testing.T) {
	stack := newFieldStack(testFieldConfig())
	ctx := context.Background()
	x := stack.connect(ctx, "x", "")
	y := stack.connect(ctx, "y", "")

	require.NoError(t, stack.sessions.Resonate(ctx, x.Id, y.Id))
	delta := stack.feed.lastDelta()
	require.Len(t, delta.Added, 1)
	assert.False(t, delta.Added[0].Mutual)

	require.NoError(t, stack.sessions.Resonate(ctx, y.Id, x.Id))
	delta = stack.feed.lastDelta()
	require.Len(t, delta.Updated, 1)
	assert.True(t, delta.Updated[0].Mutual)
	assert.Equal(t, PairKey(x.Id, y.Id), delta.Updated[0].Key)

	require.NoError(t, stack.sessions.Unresonate(ctx, x.Id, y.Id))
	delta = stack.feed.lastDelta()
	require.Len(t, delta.Updated, 1)
	assert.False(t, delta.Updated[0].Mutual)
}

func TestResonateWithSelfIsIgnored(t *testing.T) {
	stack := newFieldStack(testFieldConfig())
	ctx := context.Background()
	x := stack.connect(ctx, "x", "")

	require.NoError(t, stack.sessions.Resonate(ctx, x.Id, x.Id))
	got, err := stack.sessions.GetSelf(ctx, x.Id)
	require.NoError(t, err)
	assert.Empty(t, got.ResonatingWith)
}

func TestListAllExcludesSelf(t *testing.T) {
	stack := newFieldStack(testFieldConfig())
	ctx := context.Background()
	x := stack.connect(ctx, "x", "")
	y := stack.connect(ctx, "y", "")

	peers, err := stack.sessions.ListAll(ctx, x.Id)
	require.NoError(t, err)
	assert.NotContains(t, peers, x.Id)
	assert.Contains(t, peers, y.Id)
}

func TestTouchRefreshesLastSeen(t *testing.T) {
	stack := newFieldStack(testFieldConfig())
	ctx := context.Background()
	session := stack.connect(ctx, "x", "")

	stale := session.Clone()
	stale.LastSeen = time.Now().Add(-90 * time.Second)
	require.NoError(t, stack.sessionRepo.Save(ctx, stale))

	stack.sessions.Touch(ctx, session.Id)
	got, err := stack.sessions.GetSelf(ctx, session.Id)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), got.LastSeen, 5*time.Second)
}

func TestSweepRemovesStaleSessions(t *testing.T) {
	stack := newFieldStack(testFieldConfig())
	ctx := context.Background()
	stale := stack.connect(ctx, "stale", "")
	fresh := stack.connect(ctx, "fresh", "")

	rec := stale.Clone()
	rec.LastSeen = time.Now().Add(-121 * time.Second)
	require.NoError(t, stack.sessionRepo.Save(ctx, rec))

	rec = fresh.Clone()
	rec.LastSeen = time.Now().Add(-60 * time.Second)
	require.NoError(t, stack.sessionRepo.Save(ctx, rec))

	stack.sessions.(*sessionService).sweep(ctx)

	gone, err := stack.sessions.GetSelf(ctx, stale.Id)
	require.NoError(t, err)
	assert.Nil(t, gone)

	kept, err := stack.sessions.GetSelf(ctx, fresh.Id)
	require.NoError(t, err)
	assert.NotNil(t, kept)
}
