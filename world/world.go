// Package world holds the geometric primitives shared by the challenge
// generator and the replay engine: vectors, axis-aligned boxes, obstacles
// and the motion laws that let goals and obstacles move over time.
package world

import (
	"math"
	"time"
)

type Vec3 struct {
	X float64
	Y float64
	Z float64
}

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }

func (v Vec3) Norm() float64 { return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z) }

func (v Vec3) Dist(o Vec3) float64 { return v.Sub(o).Norm() }

// Finite reports whether all components are finite numbers.
func (v Vec3) Finite() bool {
	for _, c := range [...]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// AABB is an axis-aligned box given by its two extreme corners.
type AABB struct {
	Min Vec3
	Max Vec3
}

func (b AABB) Contains(p Vec3) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

func (b AABB) Center() Vec3 {
	return b.Min.Add(b.Max).Scale(0.5)
}

// MotionKind tags a motion law variant.
type MotionKind uint8

const (
	MotionStatic MotionKind = iota
	MotionLinear
	MotionCircular
)

func (k MotionKind) String() string {
	switch k {
	case MotionStatic:
		return "static"
	case MotionLinear:
		return "linear"
	case MotionCircular:
		return "circular"
	default:
		return "unknown"
	}
}

// Motion is a tagged-variant motion law. Only the fields of the active
// variant are meaningful; the rest stay zero so encoded values remain
// canonical.
type Motion struct {
	Kind MotionKind

	// MotionLinear: constant velocity in m/s.
	Velocity Vec3

	// MotionCircular: orbit in the XY plane around the base position.
	Radius     float64
	AngularVel float64 // rad/s
	Phase      float64 // rad
}

// At evaluates the position of a body with base position `base` after
// `elapsed` of simulated time.
func (m Motion) At(base Vec3, elapsed time.Duration) Vec3 {
	t := elapsed.Seconds()
	switch m.Kind {
	case MotionLinear:
		return base.Add(m.Velocity.Scale(t))
	case MotionCircular:
		a := m.Phase + m.AngularVel*t
		return Vec3{
			X: base.X + m.Radius*math.Cos(a) - m.Radius*math.Cos(m.Phase),
			Y: base.Y + m.Radius*math.Sin(a) - m.Radius*math.Sin(m.Phase),
			Z: base.Z,
		}
	default:
		return base
	}
}

// ObstacleKind tags the geometric primitive of an obstacle.
type ObstacleKind uint8

const (
	ObstacleSphere ObstacleKind = iota
	ObstacleBox
)

// Obstacle is a solid primitive placed in the world. Size is the radius
// (X component) for spheres and the half-extents for boxes.
type Obstacle struct {
	Kind   ObstacleKind
	Center Vec3
	Size   Vec3
	Motion Motion
}

// Hit reports whether a point inflated by `radius` intersects the obstacle
// at the given elapsed time.
func (o Obstacle) Hit(p Vec3, radius float64, elapsed time.Duration) bool {
	c := o.Motion.At(o.Center, elapsed)
	switch o.Kind {
	case ObstacleBox:
		// Distance from p to the box surface.
		dx := math.Max(math.Max(c.X-o.Size.X-p.X, p.X-(c.X+o.Size.X)), 0)
		dy := math.Max(math.Max(c.Y-o.Size.Y-p.Y, p.Y-(c.Y+o.Size.Y)), 0)
		dz := math.Max(math.Max(c.Z-o.Size.Z-p.Z, p.Z-(c.Z+o.Size.Z)), 0)
		return math.Sqrt(dx*dx+dy*dy+dz*dz) <= radius
	default:
		return c.Dist(p) <= o.Size.X+radius
	}
}

// Goal is the capture target of a challenge. Its position at time t is
// Motion.At(Position, t).
type Goal struct {
	Position Vec3
	Motion   Motion
}

func (g Goal) At(elapsed time.Duration) Vec3 {
	return g.Motion.At(g.Position, elapsed)
}
