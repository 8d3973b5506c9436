package editor

import (
	"github.com/gekko3d/vct/voxelrt/rt/core"

	"github.com/go-gl/mathgl/mgl32"
)

// Editor picks scene nodes under the cursor and rescales the selection.
type Editor struct {
	Selected *core.Node

	// Debounced scaling. Every rescale moves the node, which rebuilds the
	// scene octree on the next commit.
	PendingScaleFactor  float32
	LastScaleInputTime  float64
	LastScaleUpdateTime float64
}

func NewEditor() *Editor {
	return &Editor{PendingScaleFactor: 1.0}
}

type HitResult struct {
	Drawable *core.Drawable
	T        float32
	Point    mgl32.Vec3
	Normal   mgl32.Vec3
}

// Pick traces the pixel (px, py) of cam through the committed octree.
func (e *Editor) Pick(scene *core.Scene, cam *core.Camera, px, py int) *HitResult {
	if px < 0 || py < 0 || px >= cam.Width || py >= cam.Height {
		return nil
	}
	origin, dir := cam.Ray(px, py)
	hit, d, ok := scene.Raycast(origin, dir, cam.Far)
	if !ok || d == nil {
		return nil
	}
	n := hit.Normal
	if n.Dot(dir) > 0 {
		n = n.Mul(-1)
	}
	return &HitResult{Drawable: d, T: hit.T, Point: hit.Point, Normal: n.Normalize()}
}

// Select replaces the selection with whatever is under the pixel, clearing it
// on a miss.
func (e *Editor) Select(scene *core.Scene, cam *core.Camera, px, py int) *HitResult {
	hit := e.Pick(scene, cam, px, py)
	if hit != nil {
		e.Selected = hit.Drawable.Node
	} else {
		e.Selected = nil
	}
	e.PendingScaleFactor = 1.0
	return hit
}

func (e *Editor) ScaleSelected(factor float32, now float64) {
	if e.Selected == nil {
		return
	}
	e.PendingScaleFactor *= factor
	e.LastScaleInputTime = now
}

// Update applies the pending scale after 200ms without input, or every
// 100ms while input keeps coming. It reports whether the node changed.
func (e *Editor) Update(now float64) bool {
	if e.Selected == nil || e.PendingScaleFactor == 1.0 {
		return false
	}
	idle := (now - e.LastScaleInputTime) > 0.2
	periodic := (now - e.LastScaleUpdateTime) > 0.1
	if !idle && !periodic {
		return false
	}
	e.Selected.SetScale(e.Selected.Transform.Scale.Mul(e.PendingScaleFactor))
	e.PendingScaleFactor = 1.0
	e.LastScaleUpdateTime = now
	return true
}
