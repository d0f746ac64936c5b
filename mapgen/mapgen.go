// Package mapgen deterministically derives a challenge specification from
// a seed and a difficulty tier. Generation uses only the seeded PRNG, so
// any validator re-running Generate with the same inputs reproduces the
// spec bit for bit.
package mapgen

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/swarmnet/arbiter/challenge"
	"github.com/swarmnet/arbiter/world"
)

const (
	// MaxResampleAttempts bounds goal resampling when a draw violates the
	// solvability checks. Exhausting it means the tier parameters are
	// misconfigured, not that the caller got unlucky.
	MaxResampleAttempts = 64

	// NominalSpeedMPS is the cruise speed assumed by the solvability cap:
	// the straight-line start-goal distance must be coverable within the
	// horizon at this speed, scaled by the tier's cap fraction.
	NominalSpeedMPS = 5.0

	// DroneClearance inflates obstacles around the start and the goal so
	// launching and capturing are always physically possible.
	DroneClearance = 0.5

	worldRange  = 30.0 // scenery is placed in ±worldRange meters
	worldHeight = 20.0 // ceiling of the flight volume
	startHeight = 1.0

	physicsStep = 20 * time.Millisecond // 50 Hz
	horizon     = 30 * time.Second
)

// ErrResampleBudget is returned when no solvable layout was found within
// MaxResampleAttempts. It is fatal to the round.
var ErrResampleBudget = errors.New("map generator exceeded its resample budget")

// tierParams are the per-tier generation ranges. Every range widens
// monotonically with the tier.
type tierParams struct {
	obstacles     int
	goalDistMin   float64
	goalDistMax   float64
	heightMin     float64
	heightMax     float64
	captureRadius float64
	capFraction   float64 // fraction of horizon*NominalSpeedMPS allowed as goal distance
	linearMotion  bool
	circularMotion bool
}

var tiers = [challenge.NumTiers]tierParams{
	challenge.TierBasic: {
		obstacles: 20, goalDistMin: 10, goalDistMax: 18,
		heightMin: 2, heightMax: 5, captureRadius: 2.0, capFraction: 0.25,
	},
	challenge.TierMoving: {
		obstacles: 40, goalDistMin: 12, goalDistMax: 22,
		heightMin: 2, heightMax: 7, captureRadius: 1.5, capFraction: 0.35,
		linearMotion: true,
	},
	challenge.TierOrbital: {
		obstacles: 70, goalDistMin: 15, goalDistMax: 26,
		heightMin: 2, heightMax: 9, captureRadius: 1.2, capFraction: 0.45,
		linearMotion: true, circularMotion: true,
	},
	challenge.TierExpert: {
		obstacles: 100, goalDistMin: 18, goalDistMax: 30,
		heightMin: 2, heightMax: 10, captureRadius: 1.0, capFraction: 0.6,
		linearMotion: true, circularMotion: true,
	},
}

// Generate derives the challenge spec for (seed, tier). It is pure with
// respect to its inputs and never blocks. The only failure mode is
// exceeding the resample budget.
func Generate(seed int64, tier challenge.Tier) (challenge.Spec, error) {
	if !tier.Valid() {
		return challenge.Spec{}, fmt.Errorf("invalid difficulty tier %d", tier)
	}
	p := tiers[tier]

	bounds := world.AABB{
		Min: world.Vec3{X: -worldRange, Y: -worldRange, Z: 0},
		Max: world.Vec3{X: worldRange, Y: worldRange, Z: worldHeight},
	}
	start := world.Vec3{Z: startHeight}

	// Sub-seeded streams keep each section's draws independent of how many
	// values the other sections consume.
	layoutRng := subRng(seed, 0x6f62)
	goalRng := subRng(seed, 0x676f)

	obstacles, err := genObstacles(layoutRng, p, start)
	if err != nil {
		return challenge.Spec{}, err
	}
	noFly := genNoFlyZones(layoutRng, tier, start)

	goal, err := placeGoal(goalRng, p, bounds, start, obstacles, noFly)
	if err != nil {
		return challenge.Spec{}, err
	}

	return challenge.Spec{
		Seed:          seed,
		Tier:          tier,
		WorldBounds:   bounds,
		Start:         start,
		Goal:          goal,
		Obstacles:     obstacles,
		NoFlyZones:    noFly,
		PhysicsStep:   physicsStep,
		Horizon:       horizon,
		CaptureRadius: p.captureRadius,
	}, nil
}

func subRng(seed int64, salt int64) *rand.Rand {
	return rand.New(rand.NewSource(seed ^ salt<<32))
}

// genObstacles draws the scenery. Draws covering the start position are
// redrawn, so a drone can always at least launch.
func genObstacles(rng *rand.Rand, p tierParams, start world.Vec3) ([]world.Obstacle, error) {
	obstacles := make([]world.Obstacle, 0, p.obstacles)
	for attempt := 0; len(obstacles) < p.obstacles; attempt++ {
		if attempt >= p.obstacles+MaxResampleAttempts {
			return nil, ErrResampleBudget
		}
		o := world.Obstacle{
			Center: world.Vec3{
				X: rng.Float64()*2*worldRange - worldRange,
				Y: rng.Float64()*2*worldRange - worldRange,
				Z: p.heightMin + rng.Float64()*(p.heightMax-p.heightMin),
			},
		}
		if rng.Intn(2) == 0 {
			o.Kind = world.ObstacleSphere
			r := 0.5 + rng.Float64()*1.5
			o.Size = world.Vec3{X: r}
		} else {
			o.Kind = world.ObstacleBox
			o.Size = world.Vec3{
				X: 0.5 + rng.Float64()*1.5,
				Y: 0.5 + rng.Float64()*1.5,
				Z: 0.5 + rng.Float64()*2.5,
			}
		}
		o.Motion = genMotion(rng, p)
		if o.Hit(start, DroneClearance, 0) {
			continue
		}
		obstacles = append(obstacles, o)
	}
	return obstacles, nil
}

func genMotion(rng *rand.Rand, p tierParams) world.Motion {
	switch {
	case p.circularMotion && rng.Float64() < 0.2:
		return world.Motion{
			Kind:       world.MotionCircular,
			Radius:     1 + rng.Float64()*3,
			AngularVel: 0.2 + rng.Float64()*0.8,
			Phase:      rng.Float64() * 2 * math.Pi,
		}
	case p.linearMotion && rng.Float64() < 0.2:
		a := rng.Float64() * 2 * math.Pi
		v := 0.2 + rng.Float64()*0.8
		return world.Motion{
			Kind:     world.MotionLinear,
			Velocity: world.Vec3{X: v * math.Cos(a), Y: v * math.Sin(a)},
		}
	default:
		return world.Motion{Kind: world.MotionStatic}
	}
}

// genNoFlyZones draws full-height restricted columns. Zones covering the
// start position are redrawn.
func genNoFlyZones(rng *rand.Rand, tier challenge.Tier, start world.Vec3) []world.AABB {
	zones := make([]world.AABB, 0, int(tier))
	for len(zones) < int(tier) {
		cx := rng.Float64()*2*worldRange - worldRange
		cy := rng.Float64()*2*worldRange - worldRange
		hx := 1 + rng.Float64()*2
		hy := 1 + rng.Float64()*2
		zone := world.AABB{
			Min: world.Vec3{X: cx - hx - DroneClearance, Y: cy - hy - DroneClearance, Z: 0},
			Max: world.Vec3{X: cx + hx + DroneClearance, Y: cy + hy + DroneClearance, Z: worldHeight},
		}
		if zone.Contains(start) {
			continue
		}
		zones = append(zones, world.AABB{
			Min: world.Vec3{X: cx - hx, Y: cy - hy, Z: 0},
			Max: world.Vec3{X: cx + hx, Y: cy + hy, Z: worldHeight},
		})
	}
	return zones
}

// placeGoal draws goal positions until one passes the solvability checks,
// within the resample budget.
func placeGoal(
	rng *rand.Rand,
	p tierParams,
	bounds world.AABB,
	start world.Vec3,
	obstacles []world.Obstacle,
	noFly []world.AABB,
) (world.Goal, error) {
	maxDist := horizon.Seconds() * NominalSpeedMPS * p.capFraction

	for attempt := 0; attempt < MaxResampleAttempts; attempt++ {
		a := rng.Float64() * 2 * math.Pi
		r := p.goalDistMin + rng.Float64()*(p.goalDistMax-p.goalDistMin)
		pos := world.Vec3{
			X: start.X + r*math.Cos(a),
			Y: start.Y + r*math.Sin(a),
			Z: p.heightMin + rng.Float64()*(p.heightMax-p.heightMin),
		}
		goal := world.Goal{Position: pos, Motion: genMotion(rng, p)}

		if !solvable(p, bounds, start, pos, maxDist, obstacles, noFly) {
			continue
		}
		return goal, nil
	}
	return world.Goal{}, ErrResampleBudget
}

func solvable(
	p tierParams,
	bounds world.AABB,
	start, goal world.Vec3,
	maxDist float64,
	obstacles []world.Obstacle,
	noFly []world.AABB,
) bool {
	if !bounds.Contains(goal) {
		return false
	}
	if start.Dist(goal) > maxDist {
		return false
	}
	clearance := p.captureRadius + DroneClearance
	for _, o := range obstacles {
		if o.Hit(goal, clearance, 0) {
			return false
		}
	}
	for _, z := range noFly {
		if z.Contains(goal) {
			return false
		}
	}
	return true
}
