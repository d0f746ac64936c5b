package mapgen

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/swarmnet/arbiter/challenge"
	"github.com/swarmnet/arbiter/world"
)

func TestGenerateDeterministic(t *testing.T) {
	t.Parallel()
	for tier := challenge.Tier(0); tier.Valid(); tier++ {
		spec, err := Generate(42, tier)
		require.NoError(t, err)
		again, err := Generate(42, tier)
		require.NoError(t, err)

		require.True(t, reflect.DeepEqual(spec, again), "regeneration must be bit-identical")
		require.Equal(t, spec.ID(), again.ID())
	}
}

func TestGenerateVariesWithSeed(t *testing.T) {
	t.Parallel()
	a, err := Generate(1, challenge.TierBasic)
	require.NoError(t, err)
	b, err := Generate(2, challenge.TierBasic)
	require.NoError(t, err)
	require.NotEqual(t, a.ID(), b.ID())
}

func TestGenerateRejectsInvalidTier(t *testing.T) {
	t.Parallel()
	_, err := Generate(1, challenge.Tier(challenge.NumTiers))
	require.Error(t, err)
}

func TestGeneratedSpecsAreSolvable(t *testing.T) {
	t.Parallel()
	for tier := challenge.Tier(0); tier.Valid(); tier++ {
		tier := tier
		t.Run(tier.String(), func(t *testing.T) {
			t.Parallel()
			p := tiers[tier]
			for seed := int64(0); seed < 25; seed++ {
				spec, err := Generate(seed, tier)
				require.NoError(t, err, "seed %d", seed)

				require.Equal(t, seed, spec.Seed)
				require.Equal(t, tier, spec.Tier)
				require.Len(t, spec.Obstacles, p.obstacles)
				require.Len(t, spec.NoFlyZones, int(tier))
				require.Equal(t, p.captureRadius, spec.CaptureRadius)

				goal := spec.Goal.Position
				require.True(t, spec.WorldBounds.Contains(goal), "goal outside world")

				dist := spec.Start.Dist(goal)
				require.GreaterOrEqual(t, dist, p.goalDistMin)
				require.LessOrEqual(t, dist, spec.Horizon.Seconds()*NominalSpeedMPS*p.capFraction,
					"goal unreachable within the horizon at cruise speed")

				clearance := spec.CaptureRadius + DroneClearance
				for i, o := range spec.Obstacles {
					require.False(t, o.Hit(goal, clearance, 0), "obstacle %d blocks the goal", i)
					require.False(t, o.Hit(spec.Start, DroneClearance, 0), "obstacle %d blocks the start", i)
				}
				for i, z := range spec.NoFlyZones {
					require.False(t, z.Contains(goal), "no-fly zone %d contains the goal", i)
					require.False(t, z.Contains(spec.Start), "no-fly zone %d contains the start", i)
				}
			}
		})
	}
}

func TestBasicTierIsFullyStatic(t *testing.T) {
	t.Parallel()
	for seed := int64(0); seed < 10; seed++ {
		spec, err := Generate(seed, challenge.TierBasic)
		require.NoError(t, err)
		require.Equal(t, world.MotionStatic, spec.Goal.Motion.Kind)
		for i, o := range spec.Obstacles {
			require.Equal(t, world.MotionStatic, o.Motion.Kind, "obstacle %d moves in the basic tier", i)
		}
	}
}

func TestGeneratorCache(t *testing.T) {
	t.Parallel()
	gen, err := New()
	require.NoError(t, err)

	spec, err := gen.Generate(42, challenge.TierMoving)
	require.NoError(t, err)
	cached, err := gen.Generate(42, challenge.TierMoving)
	require.NoError(t, err)
	require.True(t, reflect.DeepEqual(spec, cached))

	_, err = gen.Generate(42, challenge.Tier(99))
	require.Error(t, err)
}
