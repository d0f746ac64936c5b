package challenge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/swarmnet/arbiter/world"
)

func testSpec() Spec {
	return Spec{
		Seed: 42,
		Tier: TierBasic,
		WorldBounds: world.AABB{
			Min: world.Vec3{X: -30, Y: -30, Z: 0},
			Max: world.Vec3{X: 30, Y: 30, Z: 20},
		},
		Start: world.Vec3{Z: 1},
		Goal:  world.Goal{Position: world.Vec3{X: 10, Y: 5, Z: 3}},
		Obstacles: []world.Obstacle{
			{Kind: world.ObstacleSphere, Center: world.Vec3{X: 5}, Size: world.Vec3{X: 1}},
		},
		PhysicsStep:   20 * time.Millisecond,
		Horizon:       30 * time.Second,
		CaptureRadius: 2,
	}
}

func TestSpecID(t *testing.T) {
	t.Parallel()
	spec := testSpec()
	other := testSpec()

	require.Len(t, spec.ID(), 64)
	require.Equal(t, spec.ID(), other.ID())

	other.Seed++
	require.NotEqual(t, spec.ID(), other.ID())

	other = testSpec()
	other.Goal.Position.X += 0.001
	require.NotEqual(t, spec.ID(), other.ID())
}

func TestSpecSteps(t *testing.T) {
	t.Parallel()
	spec := testSpec()
	require.Equal(t, 1500, spec.Steps())

	spec.PhysicsStep = 0
	require.Equal(t, 0, spec.Steps())
}

func TestTierFlag(t *testing.T) {
	t.Parallel()
	for _, name := range []string{"basic", "moving", "orbital", "expert"} {
		var tier Tier
		require.NoError(t, tier.UnmarshalFlag(name))
		require.Equal(t, name, tier.String())
	}

	var tier Tier
	require.NoError(t, tier.UnmarshalFlag("2"))
	require.Equal(t, TierOrbital, tier)

	require.Error(t, tier.UnmarshalFlag("nightmare"))
	require.Error(t, tier.UnmarshalFlag("7"))
}
