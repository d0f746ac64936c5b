// Package replay re-executes submitted flight plans inside a fixed-step
// physics simulation the arbiter fully controls. It is the trust
// boundary: participant input is sampled as control outputs only, clamped
// to the declared capability envelope, and can never run code or touch
// another participant's replay.
package replay

import (
	"context"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/swarmnet/arbiter/challenge"
	"github.com/swarmnet/arbiter/logging"
	"github.com/swarmnet/arbiter/world"
)

// Physics and energy policy constants.
const (
	// Gravity along -Z, m/s².
	Gravity = 9.81

	// DroneRadius is the collision radius of the simulated airframe.
	DroneRadius = 0.15

	// DragCoefficient is the linear velocity damping applied each step.
	DragCoefficient = 0.3

	// PropulsionEfficiency converts commanded mechanical power into the
	// electrical draw charged against the battery.
	PropulsionEfficiency = 0.60

	// PowerPerNewton is the mechanical power cost of sustaining one newton
	// of commanded thrust, W/N.
	PowerPerNewton = 12.0
)

// Termination is the reason a replay ended.
type Termination uint8

const (
	TerminationGoal Termination = iota
	TerminationTimeout
	TerminationCollision
	TerminationBattery
	TerminationInvalid
)

func (t Termination) String() string {
	switch t {
	case TerminationGoal:
		return "goal"
	case TerminationTimeout:
		return "timeout"
	case TerminationCollision:
		return "collision"
	case TerminationBattery:
		return "battery-depleted"
	case TerminationInvalid:
		return "invalid-input"
	default:
		return "unknown"
	}
}

// Result holds the objective outcome metrics of one replay. Immutable
// once produced.
type Result struct {
	GoalReached bool
	TimeToGoal  time.Duration // valid only when GoalReached
	EnergyUsed  float64       // J
	Collided    bool
	OutOfBounds bool
	Clamped     int // number of steps where the command was clamped
	Termination Termination
}

// implement zap.ObjectMarshaler interface.
func (r Result) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("termination", r.Termination.String())
	enc.AddBool("goal_reached", r.GoalReached)
	enc.AddDuration("time_to_goal", r.TimeToGoal)
	enc.AddFloat64("energy_j", r.EnergyUsed)
	enc.AddInt("clamped_steps", r.Clamped)
	return nil
}

// Engine replays flight plans. It holds no mutable simulation state, so a
// single engine is safe for concurrent replays.
type Engine struct {
	catalog *challenge.Catalog
}

func NewEngine(catalog *challenge.Catalog) *Engine {
	return &Engine{catalog: catalog}
}

// Replay re-executes plan against spec. It never fails: malformed input
// short-circuits to an invalid-input result with worst-case metrics and
// the physics loop untouched.
func (e *Engine) Replay(ctx context.Context, spec challenge.Spec, plan *challenge.FlightPlan) Result {
	prof, reason := e.validate(spec, plan)
	if reason != "" {
		logging.FromContext(ctx).Debug("rejecting flight plan", zap.String("reason", reason))
		return invalidResult(prof)
	}

	return simulate(spec, prof, commandTable(spec, prof, plan))
}

// validate checks the plan before any physics runs. It returns the
// declared capability (when resolvable) and a non-empty rejection reason
// for malformed input.
func (e *Engine) validate(spec challenge.Spec, plan *challenge.FlightPlan) (challenge.Capability, string) {
	if plan == nil {
		return challenge.Capability{}, "no plan"
	}
	prof, ok := e.catalog.Lookup(plan.Capability)
	if !ok {
		return challenge.Capability{}, "capability not allow-listed"
	}
	if plan.ChallengeID != spec.ID() {
		return prof, "challenge id mismatch"
	}
	if len(plan.Commands) == 0 {
		return prof, "empty command sequence"
	}
	for _, c := range plan.Commands {
		if c.T < 0 || c.T > spec.Horizon {
			return prof, "command timestamp out of range"
		}
		if !c.Thrust.Finite() {
			return prof, "non-finite thrust command"
		}
	}
	return prof, ""
}

// invalidResult is the worst-case outcome assigned to malformed input.
func invalidResult(prof challenge.Capability) Result {
	return Result{
		EnergyUsed:  prof.BatteryJ,
		Termination: TerminationInvalid,
	}
}

// commandTable expands the ragged command list into one thrust vector per
// physics step, holding the last command once the plan ends.
func commandTable(spec challenge.Spec, prof challenge.Capability, plan *challenge.FlightPlan) []world.Vec3 {
	steps := spec.Steps()
	table := make([]world.Vec3, steps)

	cmds := make([]challenge.ControlSample, len(plan.Commands))
	copy(cmds, plan.Commands)
	sort.SliceStable(cmds, func(i, j int) bool { return cmds[i].T < cmds[j].T })

	var last world.Vec3
	idx := 0
	for _, c := range cmds {
		k := int(c.T / spec.PhysicsStep)
		if k >= steps {
			k = steps - 1
		}
		for ; idx < k; idx++ {
			table[idx] = last
		}
		last = c.Thrust
		if k < steps {
			table[k] = last
			idx = k + 1
		}
	}
	for ; idx < steps; idx++ {
		table[idx] = last
	}
	return table
}

// clampCommand bounds the commanded thrust to the capability envelope:
// magnitude at most MaxThrustN, tilt from vertical at most MaxTiltRad.
func clampCommand(cmd world.Vec3, prof challenge.Capability) (world.Vec3, bool) {
	clamped := false

	if mag := cmd.Norm(); mag > prof.MaxThrustN {
		cmd = cmd.Scale(prof.MaxThrustN / mag)
		clamped = true
	}

	horiz := math.Hypot(cmd.X, cmd.Y)
	if horiz > 0 {
		maxHoriz := 0.0
		if cmd.Z > 0 {
			maxHoriz = cmd.Z * math.Tan(prof.MaxTiltRad)
		}
		if horiz > maxHoriz {
			scale := maxHoriz / horiz
			cmd.X *= scale
			cmd.Y *= scale
			clamped = true
		}
	}
	return cmd, clamped
}

// simulate steps the point-mass dynamics to the first terminating
// condition. Termination precedence per step: collision, battery, goal,
// then horizon timeout after the last step.
func simulate(spec challenge.Spec, prof challenge.Capability, table []world.Vec3) Result {
	var res Result

	pos := spec.Start
	var vel world.Vec3
	dt := spec.PhysicsStep.Seconds()

	for k := range table {
		cmd, wasClamped := clampCommand(table[k], prof)
		if wasClamped {
			res.Clamped++
		}

		// Semi-implicit Euler integration.
		acc := cmd.Scale(1 / prof.MassKg)
		acc.Z -= Gravity
		acc = acc.Sub(vel.Scale(DragCoefficient))
		vel = vel.Add(acc.Scale(dt))
		pos = pos.Add(vel.Scale(dt))

		elapsed := time.Duration(k+1) * spec.PhysicsStep

		res.EnergyUsed += (prof.HoverPowerW + cmd.Norm()*PowerPerNewton/PropulsionEfficiency) * dt

		if hit, oob := collided(spec, pos, elapsed); hit {
			res.Collided = true
			res.OutOfBounds = oob
			res.Termination = TerminationCollision
			return res
		}
		if res.EnergyUsed > prof.BatteryJ {
			res.EnergyUsed = prof.BatteryJ
			res.Termination = TerminationBattery
			return res
		}
		if pos.Dist(spec.Goal.At(elapsed)) <= spec.CaptureRadius {
			res.GoalReached = true
			res.TimeToGoal = elapsed
			res.Termination = TerminationGoal
			return res
		}
	}

	res.Termination = TerminationTimeout
	return res
}

// collided checks ground, obstacles, no-fly zones and the world bounds.
func collided(spec challenge.Spec, pos world.Vec3, elapsed time.Duration) (hit, outOfBounds bool) {
	if pos.Z <= DroneRadius {
		return true, false
	}
	if !spec.WorldBounds.Contains(pos) {
		return true, true
	}
	for _, z := range spec.NoFlyZones {
		if z.Contains(pos) {
			return true, false
		}
	}
	for _, o := range spec.Obstacles {
		if o.Hit(pos, DroneRadius, elapsed) {
			return true, false
		}
	}
	return false, false
}
