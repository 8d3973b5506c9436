package vct

import (
	"testing"

	"github.com/gekko3d/vct/voxelrt/rt/core"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testWorld() (*PhysicsWorld, *core.Node) {
	w := NewPhysicsWorld(DefaultConfig().Physics)
	w.HasGround = true
	return w, core.NewNode("root", nil)
}

func TestPhysicsBodyFalls(t *testing.T) {
	w, root := testWorld()
	w.HasGround = false
	b := w.Add(core.NewNode("box", root).SetPosition(mgl32.Vec3{0, 10, 0}), mgl32.Vec3{0.5, 0.5, 0.5}, 1)

	for i := 0; i < 10; i++ {
		w.Step(0.1)
	}
	assert.Less(t, b.Position().Y(), float32(10))
	assert.Less(t, b.Velocity.Y(), float32(0))
	assert.True(t, b.Node.Dirty())
}

func TestPhysicsBodyRestsOnGround(t *testing.T) {
	w, root := testWorld()
	b := w.Add(core.NewNode("box", root).SetPosition(mgl32.Vec3{0, 1, 0}), mgl32.Vec3{0.25, 0.25, 0.25}, 1)

	for i := 0; i < 300; i++ {
		w.Step(1.0 / 60)
	}
	assert.InDelta(t, 0.25, b.Position().Y(), 1e-4)
	assert.True(t, b.Sleeping)
	assert.Equal(t, mgl32.Vec3{}, b.Velocity)
	assert.Equal(t, 0, w.Awake())
}

func TestPhysicsBodiesStack(t *testing.T) {
	w, root := testWorld()
	half := mgl32.Vec3{0.1, 0.1, 0.1}
	low := w.Add(core.NewNode("low", root).SetPosition(mgl32.Vec3{0, 0.5, 0}), half, 1)
	high := w.Add(core.NewNode("high", root).SetPosition(mgl32.Vec3{0.05, 1.0, 0}), half, 1)

	for i := 0; i < 400; i++ {
		w.Step(1.0 / 60)
	}
	assert.InDelta(t, 0.1, low.Position().Y(), 1e-4)
	assert.InDelta(t, 0.3, high.Position().Y(), 1e-4)
}

func TestPhysicsStaticBodyNeverMoves(t *testing.T) {
	w, root := testWorld()
	w.HasGround = false
	n := core.NewNode("floor", root).SetPosition(mgl32.Vec3{0, -1, 0})
	floor := w.AddStatic(n, mgl32.Vec3{2, 0.1, 2})
	box := w.Add(core.NewNode("box", root).SetPosition(mgl32.Vec3{0, 0, 0}), mgl32.Vec3{0.2, 0.2, 0.2}, 1)

	for i := 0; i < 200; i++ {
		w.Step(1.0 / 60)
	}
	assert.Equal(t, mgl32.Vec3{0, -1, 0}, floor.Position())
	assert.InDelta(t, -0.7, box.Position().Y(), 1e-4)
}

func TestPhysicsSleeping(t *testing.T) {
	w, root := testWorld()
	w.SleepThreshold = 0.1
	w.SleepTime = 0.2
	b := w.Add(core.NewNode("box", root), mgl32.Vec3{0.5, 0.5, 0.5}, 1)
	b.GravityScale = 0
	b.Velocity = mgl32.Vec3{0.05, 0, 0}

	for i := 0; i < 5; i++ {
		w.Step(0.1)
	}
	require.True(t, b.Sleeping)
	assert.Equal(t, mgl32.Vec3{}, b.Velocity)

	b.ApplyImpulse(mgl32.Vec3{2, 0, 0})
	assert.False(t, b.Sleeping)
	assert.Equal(t, float32(2), b.Velocity.X())
}

func TestPhysicsMovingBodyWakesNeighbour(t *testing.T) {
	w, root := testWorld()
	w.HasGround = false
	half := mgl32.Vec3{0.1, 0.1, 0.1}
	sleeper := w.Add(core.NewNode("sleeper", root).SetPosition(mgl32.Vec3{0.98, 0, 0}), half, 1)
	sleeper.Sleeping = true
	mover := w.Add(core.NewNode("mover", root).SetPosition(mgl32.Vec3{0.7, 0, 0}), half, 1)
	mover.GravityScale = 0
	mover.Velocity = mgl32.Vec3{1, 0, 0}

	w.Step(0.05)
	assert.False(t, sleeper.Sleeping)
}

func TestPhysicsIgnoresBadSteps(t *testing.T) {
	w, root := testWorld()
	b := w.Add(core.NewNode("box", root).SetPosition(mgl32.Vec3{0, 1, 0}), mgl32.Vec3{0.1, 0.1, 0.1}, 1)
	w.Step(0)
	w.Step(2)
	assert.Equal(t, mgl32.Vec3{0, 1, 0}, b.Position())
}
