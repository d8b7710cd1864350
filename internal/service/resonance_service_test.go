package service

import (
	"context"
	"testing"

	"resonance-field-be/internal/entity"
	"resonance-field-be/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sessionWith(id string, resonating ...string) *entity.Session {
	s := &entity.Session{Id: id, ResonatingWith: make(map[string]bool)}
	for _, peer := range resonating {
		s.ResonatingWith[peer] = true
	}
	return s
}

func TestRecompute(t *testing.T) {
	svc := &resonanceService{}

	tests := []struct {
		name       string
		sessions   []*entity.Session
		wantKeys   []string
		wantMutual map[string]bool
	}{
		{
			name:     "no resonance, no connections",
			sessions: []*entity.Session{sessionWith("a"), sessionWith("b")},
		},
		{
			name:       "one-directional edge",
			sessions:   []*entity.Session{sessionWith("a", "b"), sessionWith("b")},
			wantKeys:   []string{"a|b"},
			wantMutual: map[string]bool{"a|b": false},
		},
		{
			name:       "mutual edge",
			sessions:   []*entity.Session{sessionWith("a", "b"), sessionWith("b", "a")},
			wantKeys:   []string{"a|b"},
			wantMutual: map[string]bool{"a|b": true},
		},
		{
			name:       "key canonicalized regardless of direction",
			sessions:   []*entity.Session{sessionWith("z", "a"), sessionWith("a")},
			wantKeys:   []string{"a|z"},
			wantMutual: map[string]bool{"a|z": false},
		},
		{
			name:     "edge to absent peer skipped",
			sessions: []*entity.Session{sessionWith("a", "ghost")},
		},
		{
			name:     "self edge ignored",
			sessions: []*entity.Session{sessionWith("a", "a")},
		},
		{
			name: "multiple pairs",
			sessions: []*entity.Session{
				sessionWith("a", "b", "c"),
				sessionWith("b", "a"),
				sessionWith("c"),
			},
			wantKeys:   []string{"a|b", "a|c"},
			wantMutual: map[string]bool{"a|b": true, "a|c": false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snapshot := make(map[string]*entity.Session)
			for _, s := range tt.sessions {
				snapshot[s.Id] = s
			}
			got := svc.Recompute(snapshot)

			require.Len(t, got, len(tt.wantKeys))
			for _, key := range tt.wantKeys {
				conn, ok := got[key]
				require.True(t, ok, "missing connection %s", key)
				assert.Equal(t, key, conn.Key)
				assert.Equal(t, tt.wantMutual[key], conn.Mutual)
				// Canonical order inside the pair too.
				assert.Less(t, conn.A, conn.B)
			}

			// No connection may reference an id outside the snapshot.
			for _, conn := range got {
				assert.Contains(t, snapshot, conn.A)
				assert.Contains(t, snapshot, conn.B)
			}
		})
	}
}

func TestRefreshEmitsDeltas(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewSessionRepository()
	feed := newRecordingFeed()
	svc := NewResonanceService(repo, feed, nopLogger{})

	require.NoError(t, repo.Save(ctx, sessionWith("a", "b")))
	require.NoError(t, repo.Save(ctx, sessionWith("b")))

	// First refresh: the a->b edge appears.
	require.NoError(t, svc.Refresh(ctx))
	delta := feed.lastDelta()
	require.Len(t, delta.Added, 1)
	assert.Equal(t, "a|b", delta.Added[0].Key)
	assert.False(t, delta.Added[0].Mutual)

	// Reverse direction added: same pair flips to mutual.
	require.NoError(t, repo.Save(ctx, sessionWith("b", "a")))
	require.NoError(t, svc.Refresh(ctx))
	delta = feed.lastDelta()
	require.Len(t, delta.Updated, 1)
	assert.Equal(t, "a|b", delta.Updated[0].Key)
	assert.True(t, delta.Updated[0].Mutual)

	// Nothing changed: no delta published.
	before := len(feed.deltas)
	require.NoError(t, svc.Refresh(ctx))
	assert.Len(t, feed.deltas, before)

	// Peer vanishes: connection removed.
	require.NoError(t, repo.Delete(ctx, "b"))
	require.NoError(t, svc.Refresh(ctx))
	delta = feed.lastDelta()
	require.Len(t, delta.Removed, 1)
	assert.Equal(t, "a|b", delta.Removed[0])
	assert.Empty(t, svc.Current())
}

func TestPairKey(t *testing.T) {
	assert.Equal(t, "a|b", PairKey("a", "b"))
	assert.Equal(t, "a|b", PairKey("b", "a"))
}
