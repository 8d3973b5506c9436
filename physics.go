package vct

import (
	"github.com/gekko3d/vct/voxelrt/rt/core"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Body is an axis aligned box that drives the position of its scene node.
type Body struct {
	Node         *core.Node
	Velocity     mgl32.Vec3
	Mass         float32
	GravityScale float32
	Static       bool
	Sleeping     bool
	IdleTime     float32
	// Half size of the box in world units.
	HalfExtents mgl32.Vec3
	Friction    float32
	Restitution float32
}

func (b *Body) Position() mgl32.Vec3 {
	return b.Node.Transform.Position
}

func (b *Body) Wake() {
	b.Sleeping = false
	b.IdleTime = 0
}

func (b *Body) ApplyImpulse(impulse mgl32.Vec3) {
	b.Wake()
	if b.Mass > 0 {
		b.Velocity = b.Velocity.Add(impulse.Mul(1 / b.Mass))
	} else {
		b.Velocity = b.Velocity.Add(impulse)
	}
}

func (b *Body) bounds(pos mgl32.Vec3) (mgl32.Vec3, mgl32.Vec3) {
	return pos.Sub(b.HalfExtents), pos.Add(b.HalfExtents)
}

// PhysicsWorld steps rigid boxes under gravity against each other and an
// optional ground plane. Bodies write their position into their node's local
// transform, so they should hang directly off the scene root.
type PhysicsWorld struct {
	Gravity mgl32.Vec3
	// Height of the ground plane; no plane when HasGround is false.
	GroundY        float32
	HasGround      bool
	SleepThreshold float32
	SleepTime      float32
	Bodies         []*Body
}

func NewPhysicsWorld(cfg PhysicsConfig) *PhysicsWorld {
	return &PhysicsWorld{
		Gravity:        mgl32.Vec3(cfg.Gravity),
		SleepThreshold: cfg.SleepThreshold,
		SleepTime:      cfg.SleepTime,
	}
}

// Add registers a dynamic body for node with the given half extents.
func (w *PhysicsWorld) Add(node *core.Node, halfExtents mgl32.Vec3, mass float32) *Body {
	b := &Body{
		Node:         node,
		Mass:         mass,
		GravityScale: 1,
		HalfExtents:  halfExtents,
		Friction:     0.2,
		Restitution:  0.3,
	}
	w.Bodies = append(w.Bodies, b)
	return b
}

// AddStatic registers a body that collides but never moves.
func (w *PhysicsWorld) AddStatic(node *core.Node, halfExtents mgl32.Vec3) *Body {
	b := w.Add(node, halfExtents, 0)
	b.Static = true
	b.GravityScale = 0
	return b
}

// Awake counts the bodies that are neither static nor sleeping.
func (w *PhysicsWorld) Awake() int {
	n := 0
	for _, b := range w.Bodies {
		if !b.Static && !b.Sleeping {
			n++
		}
	}
	return n
}

// Step advances the world by dt seconds with semi-implicit Euler, resolving
// contacts one axis at a time starting with Y. Steps longer than a second
// are dropped.
func (w *PhysicsWorld) Step(dt float32) {
	if dt <= 0 || dt > 1 {
		return
	}
	for _, b := range w.Bodies {
		if b.Static || b.Sleeping {
			continue
		}
		if b.GravityScale != 0 {
			b.Velocity = b.Velocity.Add(w.Gravity.Mul(b.GravityScale * dt))
		}
		l := b.Velocity.Len()
		if math32.IsNaN(l) || math32.IsInf(l, 0) {
			b.Velocity = mgl32.Vec3{}
			continue
		}

		start := b.Position()
		pos := start
		for _, axis := range [3]int{1, 0, 2} {
			pos = w.resolveAxis(b, pos, b.Velocity[axis]*dt, axis)
		}
		if pos != start {
			b.Node.SetPosition(pos)
		}

		if pos.Sub(start).Len() > 1e-3 {
			w.wakeNeighbours(b)
		}

		if b.Velocity.Len() < w.SleepThreshold {
			b.IdleTime += dt
			if b.IdleTime > w.SleepTime {
				b.Sleeping = true
				b.Velocity = mgl32.Vec3{}
			}
		} else {
			b.IdleTime = 0
		}
	}
}

// resolveAxis moves b by dist along axis and stops it at the first surface in
// the way, reflecting the velocity component with restitution and applying
// friction to the others.
func (w *PhysicsWorld) resolveAxis(b *Body, pos mgl32.Vec3, dist float32, axis int) mgl32.Vec3 {
	if math32.Abs(dist) < 1e-5 {
		return pos
	}
	lo, hi := b.bounds(pos)
	limit := dist
	hit := false

	if w.HasGround && axis == 1 && dist < 0 {
		if gap := w.GroundY - lo.Y(); gap > limit {
			limit, hit = min(gap, 0), true
		}
	}
	for _, o := range w.Bodies {
		if o == b {
			continue
		}
		olo, ohi := o.bounds(o.Position())
		if !overlapsExcept(lo, hi, olo, ohi, axis) {
			continue
		}
		if dist > 0 && olo[axis] >= hi[axis]-1e-5 {
			if gap := olo[axis] - hi[axis]; gap < limit {
				limit, hit = max(gap, 0), true
			}
		} else if dist < 0 && ohi[axis] <= lo[axis]+1e-5 {
			if gap := ohi[axis] - lo[axis]; gap > limit {
				limit, hit = min(gap, 0), true
			}
		}
	}

	pos[axis] += limit
	if hit {
		v := b.Velocity
		v[axis] = -v[axis] * b.Restitution
		if math32.Abs(v[axis]) < 0.1 {
			v[axis] = 0
		}
		for a := 0; a < 3; a++ {
			if a == axis {
				continue
			}
			v[a] *= 1 - b.Friction
			if math32.Abs(v[a]) < 0.01 {
				v[a] = 0
			}
		}
		b.Velocity = v
	}
	return pos
}

func overlapsExcept(alo, ahi, blo, bhi mgl32.Vec3, axis int) bool {
	for a := 0; a < 3; a++ {
		if a == axis {
			continue
		}
		if ahi[a] <= blo[a] || bhi[a] <= alo[a] {
			return false
		}
	}
	return true
}

func (w *PhysicsWorld) wakeNeighbours(b *Body) {
	const margin = 0.05
	p := b.Position()
	for _, o := range w.Bodies {
		if o == b || !o.Sleeping {
			continue
		}
		d := o.Position().Sub(p)
		if math32.Abs(d.X()) < o.HalfExtents.X()+b.HalfExtents.X()+margin &&
			math32.Abs(d.Y()) < o.HalfExtents.Y()+b.HalfExtents.Y()+margin &&
			math32.Abs(d.Z()) < o.HalfExtents.Z()+b.HalfExtents.Z()+margin {
			o.Wake()
		}
	}
}
