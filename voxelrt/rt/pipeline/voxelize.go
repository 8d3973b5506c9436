package pipeline

import (
	"sync/atomic"

	"github.com/gekko3d/vct/voxelrt/rt/core"
	"github.com/gekko3d/vct/voxelrt/rt/volume"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

const localSize1D = 64

// VoxelTriangle is a world space triangle with its shading inputs, the
// vertex data of one voxelization draw.
type VoxelTriangle struct {
	Pos      [3]mgl32.Vec3
	Normals  [3]mgl32.Vec3
	Albedo   mgl32.Vec4
	Emission mgl32.Vec4
}

func WorldTriangles(d *core.Drawable) []VoxelTriangle {
	model := d.Node.AbsoluteTransformationMatrix()
	normalMat := d.Node.NormalMatrix()
	out := make([]VoxelTriangle, d.Mesh.TriangleCount())
	for i := range out {
		tri := d.Mesh.Triangle(i).Transform(model)
		ns := d.Mesh.TriangleNormals(i)
		vt := VoxelTriangle{Pos: [3]mgl32.Vec3(tri), Albedo: d.Material.Diffuse, Emission: d.Material.Emission}
		for k := 0; k < 3; k++ {
			n := normalMat.Mul3x1(ns[k])
			if n.Len() > 0 {
				n = n.Normalize()
			}
			vt.Normals[k] = n
		}
		out[i] = vt
	}
	return out
}

// Voxelize rasterizes every voxelized drawable into albedo, normal and
// emission. Each triangle is rasterized once per cardinal axis; fragments
// landing in the same cell are averaged. Returns the number of fragments.
func (r *Renderer) Voxelize(scene *core.Scene) int {
	var fragments atomic.Int64
	for _, d := range scene.Drawables {
		if d.Kind != core.KindVoxelized {
			continue
		}
		tris := WorldTriangles(d)
		if len(tris) == 0 {
			continue
		}
		n := len(tris)
		r.dev.Dispatch("voxelize "+d.Name, [3]int{WorkGroups(n, localSize1D), 1, 1}, [3]int{localSize1D, 1, 1}, func(id [3]int) {
			if id[0] >= n {
				return
			}
			fragments.Add(int64(r.rasterize(&tris[id[0]])))
		})
	}
	// dispatches above are asynchronous; the count is read after they finish
	r.dev.Barrier(BarrierAll)
	return int(fragments.Load())
}

// rasterize projects t along each axis and writes one fragment per covered
// pixel center.
func (r *Renderer) rasterize(t *VoxelTriangle) int {
	dim := r.Volume.Dimension
	fdim := float32(dim)
	tolerance := float32(0)
	if r.cfg.ConservativeRasterization {
		// half the pixel diagonal
		tolerance = 0.70710678
	}

	written := 0
	for axis := 0; axis < 3; axis++ {
		proj := r.Projections[axis]
		var p [3]mgl32.Vec3
		for k := 0; k < 3; k++ {
			c := proj.Mul4x1(t.Pos[k].Vec4(1)).Vec3()
			p[k] = c.Mul(0.5).Add(mgl32.Vec3{0.5, 0.5, 0.5}).Mul(fdim)
		}
		area := edge(p[0], p[1], p[2])
		if math32.Abs(area) < 1e-8 {
			continue
		}
		sign := float32(1)
		if area < 0 {
			sign = -1
		}
		lens := [3]float32{
			p[2].Vec2().Sub(p[1].Vec2()).Len(),
			p[0].Vec2().Sub(p[2].Vec2()).Len(),
			p[1].Vec2().Sub(p[0].Vec2()).Len(),
		}

		x0, x1, okx := pixSpan(min(p[0].X(), p[1].X(), p[2].X())-tolerance, max(p[0].X(), p[1].X(), p[2].X())+tolerance, dim)
		y0, y1, oky := pixSpan(min(p[0].Y(), p[1].Y(), p[2].Y())-tolerance, max(p[0].Y(), p[1].Y(), p[2].Y())+tolerance, dim)
		if !okx || !oky {
			continue
		}

		u, w := (axis+1)%3, (axis+2)%3
		for j := y0; j <= y1; j++ {
			for i := x0; i <= x1; i++ {
				c := mgl32.Vec3{float32(i) + 0.5, float32(j) + 0.5, 0}
				e := [3]float32{edge(p[1], p[2], c), edge(p[2], p[0], c), edge(p[0], p[1], c)}
				inside := true
				for k := 0; k < 3; k++ {
					if e[k]*sign/max(lens[k], 1e-12) < -tolerance {
						inside = false
						break
					}
				}
				if !inside {
					continue
				}
				bary := barycentric(e, area)
				depth := bary[0]*p[0].Z() + bary[1]*p[1].Z() + bary[2]*p[2].Z()
				// clipped by the near and far planes of the projection
				if depth < 0 || depth >= fdim {
					continue
				}
				k := int(math32.Floor(depth))

				var cell [3]int
				cell[u], cell[w], cell[axis] = i, j, k
				n := t.Normals[0].Mul(bary[0]).Add(t.Normals[1].Mul(bary[1])).Add(t.Normals[2].Mul(bary[2]))
				if n.Len() > 0 {
					n = n.Normalize()
				}
				r.accumulate(cell, t.Albedo, n, t.Emission)
				written++
			}
		}
	}
	return written
}

func edge(a, b, c mgl32.Vec3) float32 {
	return (b.X()-a.X())*(c.Y()-a.Y()) - (b.Y()-a.Y())*(c.X()-a.X())
}

// barycentric clamps to the triangle so dilated fragments take edge values.
func barycentric(e [3]float32, area float32) [3]float32 {
	var b [3]float32
	sum := float32(0)
	for k := 0; k < 3; k++ {
		b[k] = max(e[k]/area, 0)
		sum += b[k]
	}
	if sum == 0 {
		return [3]float32{1.0 / 3, 1.0 / 3, 1.0 / 3}
	}
	for k := range b {
		b[k] /= sum
	}
	return b
}

// pixSpan returns the pixels of [0, dim) whose range [lo, hi] may cover.
func pixSpan(lo, hi float32, dim int) (int, int, bool) {
	if hi < 0 || lo >= float32(dim) {
		return 0, 0, false
	}
	a := max(int(math32.Floor(lo)), 0)
	b := min(int(math32.Ceil(hi)), dim-1)
	return a, b, a <= b
}

// accumulate folds a fragment into the running mean of its cell. The normal
// alpha counts the fragments seen so far.
func (r *Renderer) accumulate(cell [3]int, albedo mgl32.Vec4, normal mgl32.Vec3, emission mgl32.Vec4) {
	v := r.Volume
	x, y, z := cell[0], cell[1], cell[2]
	idx := (z*v.Dimension+y)*v.Dimension + x

	r.locks.lock(idx)
	defer r.locks.unlock(idx)

	prev := v.Normal.LoadRaw(0, x, y, z)
	count := float32(min(prev[3], 254))
	mix := func(old, val mgl32.Vec4) mgl32.Vec4 {
		return old.Mul(count / (count + 1)).Add(val.Mul(1 / (count + 1)))
	}

	a := mix(v.Albedo.Load(0, x, y, z), albedo)
	a[3] = 1
	v.Albedo.Store(0, x, y, z, a)

	n := mix(volume.Unpack(prev), volume.EncodeNormal(normal).Vec4(0))
	np := volume.Pack(n)
	np[3] = uint8(count) + 1
	v.Normal.StoreRaw(0, x, y, z, np)

	v.Emission.Store(0, x, y, z, mix(v.Emission.Load(0, x, y, z), emission))
}
