// Package reward maps replay outcomes to bounded scores and converts
// trust vectors into publication weights.
package reward

import (
	"math"
	"time"

	"github.com/swarmnet/arbiter/challenge"
	"github.com/swarmnet/arbiter/replay"
)

// Score bounds and composition weights. The ordering guarantees hold for
// any weights with GoalBase > AttemptFloor > MinScore and
// SpeedWeight > EfficiencyWeight; the exact values are policy.
const (
	MinScore = 0.0
	MaxScore = 1.0

	// AttemptFloor is awarded to a clean flight that never reached the
	// goal. It keeps honest timeouts above collisions and garbage.
	AttemptFloor = 0.01

	// GoalBase is the fixed component for reaching the goal at all. It
	// exceeds AttemptFloor + 0 so any capture outscores any non-capture.
	GoalBase = 0.2

	// SpeedWeight scales the time sub-score. It is strictly larger than
	// EfficiencyWeight so speed breaks ties.
	SpeedWeight = 0.5

	// EfficiencyWeight scales the energy sub-score.
	EfficiencyWeight = 0.3

	// BestSpeedMPS is the sprint speed assumed when computing the
	// best-possible time the speed sub-score saturates at.
	BestSpeedMPS = 15.0
)

// Score converts one replay result into a score in [MinScore, MaxScore].
// Pure and total.
//
// Collisions and invalid input dominate everything and score the minimum.
// A clean non-reaching attempt gets the floor. A capture gets the base
// plus monotonic speed and efficiency terms, with speed taking
// precedence.
func Score(res replay.Result, spec challenge.Spec, prof challenge.Capability) float64 {
	if res.Collided || res.Termination == replay.TerminationInvalid {
		return MinScore
	}
	if !res.GoalReached {
		return AttemptFloor
	}

	s := GoalBase
	s += SpeedWeight * speedTerm(res.TimeToGoal, spec)
	s += EfficiencyWeight * efficiencyTerm(res.EnergyUsed, prof)
	return clamp(s, MinScore, MaxScore)
}

// speedTerm is 1 at (or below) the best-possible straight-line time and
// decays linearly to 0 at the horizon.
func speedTerm(timeToGoal time.Duration, spec challenge.Spec) float64 {
	best := time.Duration(spec.Start.Dist(spec.Goal.Position) / BestSpeedMPS * float64(time.Second))
	if spec.Horizon <= best {
		return 0
	}
	f := float64(spec.Horizon-timeToGoal) / float64(spec.Horizon-best)
	return clamp(f, 0, 1)
}

// efficiencyTerm is 1 for zero energy and 0 for a fully drained battery.
func efficiencyTerm(energy float64, prof challenge.Capability) float64 {
	if prof.BatteryJ <= 0 {
		return 0
	}
	return clamp(1-energy/prof.BatteryJ, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
