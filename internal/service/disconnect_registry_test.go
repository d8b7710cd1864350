package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistryRunsActionsOnce(t *testing.T) {
	registry := NewDisconnectRegistry()
	ctx := context.Background()

	var fired []string
	registry.Register("s1", "session", func(context.Context) { fired = append(fired, "session") })
	registry.Register("s1", "group:g1", func(context.Context) { fired = append(fired, "group") })
	registry.Register("s2", "session", func(context.Context) { fired = append(fired, "other") })

	registry.Run(ctx, "s1")
	assert.ElementsMatch(t, []string{"session", "group"}, fired)

	// A second run finds nothing left.
	registry.Run(ctx, "s1")
	assert.Len(t, fired, 2)

	// s2 is untouched until its own run.
	registry.Run(ctx, "s2")
	assert.Contains(t, fired, "other")
}

func TestRegistryReplaceAndDeregister(t *testing.T) {
	registry := NewDisconnectRegistry()
	ctx := context.Background()

	var fired []string
	registry.Register("s1", "group:g1", func(context.Context) { fired = append(fired, "old") })
	registry.Register("s1", "group:g1", func(context.Context) { fired = append(fired, "new") })
	registry.Register("s1", "group:g2", func(context.Context) { fired = append(fired, "kept") })
	registry.Deregister("s1", "group:g2")

	registry.Run(ctx, "s1")
	assert.Equal(t, []string{"new"}, fired)
}

func TestRegistryActionsMayReenter(t *testing.T) {
	registry := NewDisconnectRegistry()
	ctx := context.Background()

	var fired []string
	registry.Register("s1", "session", func(context.Context) {
		// Cleanup handlers call back into the registry for other sessions.
		registry.Register("s2", "session", func(context.Context) { fired = append(fired, "chained") })
		registry.Deregister("s1", "group:g1")
	})
	registry.Run(ctx, "s1")
	registry.Run(ctx, "s2")
	assert.Equal(t, []string{"chained"}, fired)
}
