package pipeline

import (
	"fmt"

	"github.com/gekko3d/vct/voxelrt/rt/volume"

	"github.com/go-gl/mathgl/mgl32"
)

var directionVectors = [6]mgl32.Vec3{
	{1, 0, 0}, {-1, 0, 0},
	{0, 1, 0}, {0, -1, 0},
	{0, 0, 1}, {0, 0, -1},
}

// columns returns, for the 2x2x2 block at the origin, the four (near, far)
// child offset pairs along direction d. near is the child on the side the
// direction points to.
func columns(d volume.Direction) [4][2][3]int {
	axis, sign := d.Axis()
	u, w := (axis+1)%3, (axis+2)%3
	nearOff, farOff := 1, 0
	if sign < 0 {
		nearOff, farOff = 0, 1
	}
	var out [4][2][3]int
	for i := 0; i < 4; i++ {
		var near, far [3]int
		near[u], near[w] = i&1, i>>1
		far[u], far[w] = i&1, i>>1
		near[axis], far[axis] = nearOff, farOff
		out[i] = [2][3]int{near, far}
	}
	return out
}

// under composites a premultiplied sample behind acc.
func under(acc, s mgl32.Vec4) mgl32.Vec4 {
	return acc.Add(s.Mul(1 - acc.W()))
}

// MipMapBase downsamples radiance into level 0 of the six directional
// textures. Each child is weighted by how much its voxel normal faces the
// texture's direction; the two children of every column along that
// direction are composited front to back and the four columns averaged.
func (r *Renderer) MipMapBase() {
	v := r.Volume
	half := v.Dimension / 2
	n := WorkGroups(half, localSize3D)
	var cols [6][4][2][3]int
	for d := range cols {
		cols[d] = columns(volume.Direction(d))
	}
	r.dev.Dispatch("mipmap base", [3]int{n, n, n}, [3]int{localSize3D, localSize3D, localSize3D}, func(id [3]int) {
		x, y, z := id[0], id[1], id[2]
		if x >= half || y >= half || z >= half {
			return
		}
		var children [2][2][2]mgl32.Vec4
		var normals [2][2][2]mgl32.Vec3
		for c := 0; c < 8; c++ {
			cx, cy, cz := c&1, (c>>1)&1, c>>2
			gx, gy, gz := x*2+cx, y*2+cy, z*2+cz
			children[cx][cy][cz] = v.Radiance.Load(0, gx, gy, gz)
			if children[cx][cy][cz].W() > 0 {
				normals[cx][cy][cz] = volume.DecodeNormal(v.Normal.Load(0, gx, gy, gz).Vec3())
			}
		}
		for d := 0; d < 6; d++ {
			dir := directionVectors[d]
			weighted := func(o [3]int) mgl32.Vec4 {
				s := children[o[0]][o[1]][o[2]]
				if s.W() == 0 {
					return mgl32.Vec4{}
				}
				nrm := normals[o[0]][o[1]][o[2]]
				facing := float32(1)
				if nrm.Len() > 0 {
					facing = max(nrm.Dot(dir), 0)
				}
				rgb := s.Vec3().Mul(facing * s.W())
				return rgb.Vec4(s.W())
			}
			var sum mgl32.Vec4
			for _, col := range cols[d] {
				sum = sum.Add(under(weighted(col[0]), weighted(col[1])))
			}
			v.Directional[d].Store(0, x, y, z, sum.Mul(0.25))
		}
	})
}

// MipMapVolume fills the remaining levels of the directional textures, one
// dispatch per level with a barrier in between. It returns the dimension
// written by each dispatch, ending at 1.
func (r *Renderer) MipMapVolume() []int {
	v := r.Volume
	var cols [6][4][2][3]int
	for d := range cols {
		cols[d] = columns(volume.Direction(d))
	}

	var dims []int
	mipDim := v.Dimension / 4
	level := 0
	for mipDim >= 1 {
		dim, src := mipDim, level
		n := WorkGroups(dim, localSize3D)
		r.dev.Dispatch(fmt.Sprintf("mipmap volume level %d", src+1), [3]int{n, n, n}, [3]int{localSize3D, localSize3D, localSize3D}, func(id [3]int) {
			x, y, z := id[0], id[1], id[2]
			if x >= dim || y >= dim || z >= dim {
				return
			}
			for d := 0; d < 6; d++ {
				tex := v.Directional[d]
				var sum mgl32.Vec4
				for _, col := range cols[d] {
					near := tex.Load(src, x*2+col[0][0], y*2+col[0][1], z*2+col[0][2])
					far := tex.Load(src, x*2+col[1][0], y*2+col[1][1], z*2+col[1][2])
					sum = sum.Add(under(near, far))
				}
				tex.Store(src+1, x, y, z, sum.Mul(0.25))
			}
		})
		r.dev.Barrier(BarrierAll)
		dims = append(dims, dim)
		level++
		mipDim /= 2
	}
	return dims
}
