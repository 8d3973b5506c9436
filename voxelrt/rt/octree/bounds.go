package octree

import (
	"github.com/go-gl/mathgl/mgl32"
)

// BoundingBox is an axis aligned box. Size is always Max - Min.
type BoundingBox struct {
	Min  mgl32.Vec3
	Max  mgl32.Vec3
	Size mgl32.Vec3
}

func NewBoundingBox(minPoint, maxPoint mgl32.Vec3) BoundingBox {
	return BoundingBox{
		Min:  minPoint,
		Max:  maxPoint,
		Size: maxPoint.Sub(minPoint),
	}
}

// NewBoundingBoxSize returns a box of the given size centered on the origin.
func NewBoundingBoxSize(size mgl32.Vec3) BoundingBox {
	half := size.Mul(0.5)
	return BoundingBox{
		Min:  half.Mul(-1),
		Max:  half,
		Size: size,
	}
}

func (b BoundingBox) Center() mgl32.Vec3 {
	return b.Min.Add(b.Size.Mul(0.5))
}

func (b BoundingBox) Volume() float32 {
	return b.Size.X() * b.Size.Y() * b.Size.Z()
}

// ContainsPoint tests the closed interval [Min, Max] on every axis.
func (b BoundingBox) ContainsPoint(p mgl32.Vec3) bool {
	for i := 0; i < 3; i++ {
		if p[i] > b.Max[i] || p[i] < b.Min[i] {
			return false
		}
	}
	return true
}

// ContainsBox reports whether both corners of other lie inside b.
func (b BoundingBox) ContainsBox(other BoundingBox) bool {
	return b.ContainsPoint(other.Min) && b.ContainsPoint(other.Max)
}

// ContainsTriangle tests the three world space vertices. There is no epsilon:
// a vertex lying exactly on a face is inside.
func (b BoundingBox) ContainsTriangle(tri Triangle) bool {
	return b.ContainsPoint(tri[0]) && b.ContainsPoint(tri[1]) && b.ContainsPoint(tri[2])
}

// Contains transforms the primitive to world space and tests it.
func (b BoundingBox) Contains(p *Primitive) bool {
	return b.ContainsTriangle(p.WorldTriangle())
}

// Overlaps reports whether the two closed boxes share at least one point.
func (b BoundingBox) Overlaps(other BoundingBox) bool {
	for i := 0; i < 3; i++ {
		if other.Min[i] > b.Max[i] || other.Max[i] < b.Min[i] {
			return false
		}
	}
	return true
}

// Intersection returns the overlapping region and whether it has positive volume.
func (b BoundingBox) Intersection(other BoundingBox) (BoundingBox, bool) {
	var lo, hi mgl32.Vec3
	for i := 0; i < 3; i++ {
		lo[i] = max(b.Min[i], other.Min[i])
		hi[i] = min(b.Max[i], other.Max[i])
		if hi[i] <= lo[i] {
			return BoundingBox{}, false
		}
	}
	return NewBoundingBox(lo, hi), true
}

// IntersectRay is the slab test. It returns the entry and exit distances.
func (b BoundingBox) IntersectRay(origin, dir mgl32.Vec3) (float32, float32, bool) {
	tMin := float32(-1e30)
	tMax := float32(1e30)
	for i := 0; i < 3; i++ {
		if dir[i] == 0 {
			if origin[i] < b.Min[i] || origin[i] > b.Max[i] {
				return 0, 0, false
			}
			continue
		}
		inv := 1 / dir[i]
		t0 := (b.Min[i] - origin[i]) * inv
		t1 := (b.Max[i] - origin[i]) * inv
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		tMin = max(tMin, t0)
		tMax = min(tMax, t1)
		if tMax < tMin {
			return 0, 0, false
		}
	}
	return tMin, tMax, tMax >= 0
}
