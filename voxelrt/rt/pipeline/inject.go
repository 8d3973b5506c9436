package pipeline

import (
	"github.com/gekko3d/vct/voxelrt/rt/core"
	"github.com/gekko3d/vct/voxelrt/rt/volume"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// InjectRadiance lights every occupied cell:
// radiance = albedo * sum(light * lambert * shadow) + emission.
func (r *Renderer) InjectRadiance(lights []core.Light) {
	v := r.Volume
	dim := v.Dimension
	n := WorkGroups(dim, localSize3D)
	r.dev.Dispatch("inject radiance", [3]int{n, n, n}, [3]int{localSize3D, localSize3D, localSize3D}, func(id [3]int) {
		x, y, z := id[0], id[1], id[2]
		if x >= dim || y >= dim || z >= dim {
			return
		}
		albedo := v.Albedo.Load(0, x, y, z)
		if albedo.W() == 0 {
			v.Radiance.StoreRaw(0, x, y, z, [4]uint8{})
			return
		}
		normal := volume.DecodeNormal(v.Normal.Load(0, x, y, z).Vec3())
		pos := v.VoxelCenter(x, y, z)

		var direct mgl32.Vec3
		for _, l := range lights {
			toLight, dist, radiance := l.Incidence(pos)
			lambert := float32(1)
			if normal.Len() > 0 {
				lambert = max(normal.Dot(toLight), 0)
			}
			if lambert == 0 || radiance == (mgl32.Vec3{}) {
				continue
			}
			visibility := float32(1)
			if r.cfg.TraceShadowHit > 0 {
				maxDist := float32(1)
				if !math32.IsInf(dist, 1) {
					maxDist = dist * v.VoxelScale()
				}
				visibility = r.traceShadow(v.WorldToUVW(pos), toLight, maxDist)
			}
			direct = direct.Add(radiance.Mul(lambert * visibility))
		}

		emission := v.Emission.Load(0, x, y, z)
		out := mulVec(albedo.Vec3(), direct).Add(emission.Vec3())
		v.Radiance.Store(0, x, y, z, out.Vec4(1))
	})
}

// traceShadow marches the albedo occupancy from uvw toward the light.
// Samples are weighted by TraceShadowHit squared and by inverse distance;
// a weight of one or more ends the march in full shadow.
func (r *Renderer) traceShadow(uvw, dir mgl32.Vec3, maxDist float32) float32 {
	v := r.Volume
	k := r.cfg.TraceShadowHit * r.cfg.TraceShadowHit
	step := 1 / float32(v.Dimension)
	// two cells out so the march leaves the surface it starts on
	dst := step * 2
	visibility := float32(0)
	for visibility <= 1 && dst <= maxDist {
		p := uvw.Add(dir.Mul(dst))
		if p.X() < 0 || p.Y() < 0 || p.Z() < 0 || p.X() > 1 || p.Y() > 1 || p.Z() > 1 {
			break
		}
		sample := math32.Ceil(v.Albedo.Sample(p, 0).W()) * k
		if sample > 1-1e-6 {
			return 0
		}
		visibility += (1 - visibility) * sample / dst
		dst += step
	}
	return max(1-visibility, 0)
}
