package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

type DrawableKind int

const (
	// KindVoxelized feeds the voxelization pass only.
	KindVoxelized DrawableKind = iota
	// KindGeometry is rendered into the G-buffer.
	KindGeometry
	// KindRay is traced by the octree ray tracer.
	KindRay
)

func (k DrawableKind) String() string {
	switch k {
	case KindVoxelized:
		return "voxelized"
	case KindGeometry:
		return "geometry"
	case KindRay:
		return "ray"
	}
	return "unknown"
}

// Traced reports whether drawables of this kind are indexed by the scene octree.
func (k DrawableKind) Traced() bool {
	return k == KindGeometry || k == KindRay
}

type Drawable struct {
	Kind     DrawableKind
	Name     string
	Node     *Node
	Mesh     *Mesh
	Material Material
}

// WorldAABB transforms the eight corners of the mesh bounds.
func (d *Drawable) WorldAABB() [2]mgl32.Vec3 {
	inf := float32(1e20)
	minB := mgl32.Vec3{inf, inf, inf}
	maxB := mgl32.Vec3{-inf, -inf, -inf}
	for _, p := range d.Mesh.Positions {
		minB = mgl32.Vec3{min(minB.X(), p.X()), min(minB.Y(), p.Y()), min(minB.Z(), p.Z())}
		maxB = mgl32.Vec3{max(maxB.X(), p.X()), max(maxB.Y(), p.Y()), max(maxB.Z(), p.Z())}
	}
	if minB.X() > maxB.X() {
		return [2]mgl32.Vec3{}
	}

	corners := [8]mgl32.Vec3{
		{minB.X(), minB.Y(), minB.Z()},
		{maxB.X(), minB.Y(), minB.Z()},
		{minB.X(), maxB.Y(), minB.Z()},
		{maxB.X(), maxB.Y(), minB.Z()},
		{minB.X(), minB.Y(), maxB.Z()},
		{maxB.X(), minB.Y(), maxB.Z()},
		{minB.X(), maxB.Y(), maxB.Z()},
		{maxB.X(), maxB.Y(), maxB.Z()},
	}

	o2w := d.Node.AbsoluteTransformationMatrix()
	wMin := mgl32.Vec3{inf, inf, inf}
	wMax := mgl32.Vec3{-inf, -inf, -inf}
	for _, c := range corners {
		wc := o2w.Mul4x1(c.Vec4(1.0)).Vec3()
		wMin = mgl32.Vec3{min(wMin.X(), wc.X()), min(wMin.Y(), wc.Y()), min(wMin.Z(), wc.Z())}
		wMax = mgl32.Vec3{max(wMax.X(), wc.X()), max(wMax.Y(), wc.Y()), max(wMax.Z(), wc.Z())}
	}
	return [2]mgl32.Vec3{wMin, wMax}
}
