package core

import (
	"github.com/chewxy/math32"
	"github.com/gekko3d/vct/voxelrt/rt/octree"
	"github.com/go-gl/mathgl/mgl32"
)

// Mesh is an indexed triangle list in object space.
type Mesh struct {
	Positions []mgl32.Vec3
	Normals   []mgl32.Vec3
	Indices   []uint32
}

func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

func (m *Mesh) Triangle(i int) octree.Triangle {
	return octree.Triangle{
		m.Positions[m.Indices[i*3]],
		m.Positions[m.Indices[i*3+1]],
		m.Positions[m.Indices[i*3+2]],
	}
}

func (m *Mesh) TriangleNormals(i int) [3]mgl32.Vec3 {
	return [3]mgl32.Vec3{
		m.Normals[m.Indices[i*3]],
		m.Normals[m.Indices[i*3+1]],
		m.Normals[m.Indices[i*3+2]],
	}
}

func (m *Mesh) Triangles() []octree.Triangle {
	out := make([]octree.Triangle, m.TriangleCount())
	for i := range out {
		out[i] = m.Triangle(i)
	}
	return out
}

// Cube returns a solid cube spanning [-1, 1] on every axis with flat normals.
func Cube() *Mesh {
	m := &Mesh{}
	faces := []struct {
		normal, u, v mgl32.Vec3
	}{
		{mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{0, 1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}},
		{mgl32.Vec3{0, -1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, 1}},
		{mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{0, 0, -1}, mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 1, 0}},
	}
	for _, f := range faces {
		base := uint32(len(m.Positions))
		corners := [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}
		for _, c := range corners {
			p := f.normal.Add(f.u.Mul(c[0])).Add(f.v.Mul(c[1]))
			m.Positions = append(m.Positions, p)
			m.Normals = append(m.Normals, f.normal)
		}
		m.Indices = append(m.Indices, base, base+1, base+2, base, base+2, base+3)
	}
	return m
}

// UVSphere returns a unit sphere with the given ring and segment counts.
func UVSphere(rings, segments int) *Mesh {
	if rings < 2 {
		rings = 2
	}
	if segments < 3 {
		segments = 3
	}
	m := &Mesh{}
	for r := 0; r <= rings; r++ {
		theta := math32.Pi * float32(r) / float32(rings)
		st, ct := math32.Sincos(theta)
		for s := 0; s <= segments; s++ {
			phi := 2 * math32.Pi * float32(s) / float32(segments)
			sp, cp := math32.Sincos(phi)
			p := mgl32.Vec3{st * cp, ct, st * sp}
			m.Positions = append(m.Positions, p)
			m.Normals = append(m.Normals, p)
		}
	}
	stride := uint32(segments + 1)
	for r := 0; r < rings; r++ {
		for s := 0; s < segments; s++ {
			a := uint32(r)*stride + uint32(s)
			b := a + stride
			if r != 0 {
				m.Indices = append(m.Indices, a, a+1, b)
			}
			if r != rings-1 {
				m.Indices = append(m.Indices, a+1, b+1, b)
			}
		}
	}
	return m
}
