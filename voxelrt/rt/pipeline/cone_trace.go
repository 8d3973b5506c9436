package pipeline

import (
	"github.com/gekko3d/vct/voxelrt/rt/core"
	"github.com/gekko3d/vct/voxelrt/rt/volume"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Diffuse cones: one along the normal and five at 60 degrees around it.
var (
	diffuseAperture = math32.Tan(math32.Pi / 6)
	diffuseWeights  = [6]float32{math32.Pi / 4, 3 * math32.Pi / 20, 3 * math32.Pi / 20, 3 * math32.Pi / 20, 3 * math32.Pi / 20, 3 * math32.Pi / 20}
)

func diffuseDirections(n mgl32.Vec3) [6]mgl32.Vec3 {
	guide := mgl32.Vec3{0, 1, 0}
	if math32.Abs(n.Dot(guide)) > 0.99 {
		guide = mgl32.Vec3{0, 0, 1}
	}
	right := guide.Cross(n).Normalize()
	up := n.Cross(right)

	out := [6]mgl32.Vec3{n}
	sin60, cos60 := math32.Sin(math32.Pi/3), float32(0.5)
	for i := 0; i < 5; i++ {
		phi := float32(i) * 2 * math32.Pi / 5
		s, c := math32.Sincos(phi)
		out[i+1] = n.Mul(cos60).Add(right.Mul(sin60 * c)).Add(up.Mul(sin60 * s)).Normalize()
	}
	return out
}

// sampleAnisotropic reads the directional chain the way a cone moving along
// dir sees it: light travelling against dir, blended by the squared
// direction components.
func (r *Renderer) sampleAnisotropic(uvw, dir mgl32.Vec3, lod float32) mgl32.Vec4 {
	v := r.Volume
	var out mgl32.Vec4
	for a := 0; a < 3; a++ {
		w := dir[a] * dir[a]
		if w == 0 {
			continue
		}
		d := volume.Direction(a*2 + 1)
		if dir[a] < 0 {
			d = volume.Direction(a * 2)
		}
		out = out.Add(v.Directional[d].Sample(uvw, lod).Mul(w))
	}
	return out
}

// coneSample returns the filtered volume at uvw for a footprint of the given
// diameter (in normalized volume units).
func (r *Renderer) coneSample(uvw, dir mgl32.Vec3, diameter float32) mgl32.Vec4 {
	v := r.Volume
	texel := 1 / float32(v.Dimension)
	mip := math32.Log2(max(diameter/texel, 1))
	if mip >= 1 {
		// directional level 0 already spans two base cells
		return r.sampleAnisotropic(uvw, dir, mip-1)
	}
	base := v.Radiance.Sample(uvw, 0)
	aniso := r.sampleAnisotropic(uvw, dir, 0)
	return base.Mul(1 - mip).Add(aniso.Mul(mip))
}

func inside01(p mgl32.Vec3) bool {
	return p.X() >= 0 && p.Y() >= 0 && p.Z() >= 0 && p.X() <= 1 && p.Y() <= 1 && p.Z() <= 1
}

// traceCone marches front to back from uvw along dir. It returns the
// accumulated premultiplied color and opacity plus the distance weighted
// occlusion used for ambient occlusion.
func (r *Renderer) traceCone(uvw, normal, dir mgl32.Vec3, aperture, maxDist float32) (mgl32.Vec4, float32) {
	texel := 1 / float32(r.Volume.Dimension)
	// start one texel off the surface
	origin := uvw.Add(normal.Mul(texel))
	var acc mgl32.Vec4
	occlusion := float32(0)
	dst := texel
	for acc.W() < 1 && dst <= maxDist {
		p := origin.Add(dir.Mul(dst))
		if !inside01(p) {
			break
		}
		diameter := max(2*aperture*dst, texel)
		s := r.coneSample(p, dir, diameter)
		acc = under(acc, s)
		occlusion += (1 - occlusion) * s.W() / (1 + r.cfg.AOFalloff*diameter)
		dst += diameter * r.cfg.SamplingFactor
	}
	return acc, occlusion
}

// traceShadowCone returns light visibility along dir. Samples at least as
// opaque as 1-ConeShadowTolerance block the light completely.
func (r *Renderer) traceShadowCone(uvw, normal, dir mgl32.Vec3, maxDist float32) float32 {
	texel := 1 / float32(r.Volume.Dimension)
	origin := uvw.Add(normal.Mul(texel * 2))
	aperture := r.cfg.ConeShadowAperture
	occlusion := float32(0)
	dst := texel
	for occlusion < 1 && dst <= maxDist {
		p := origin.Add(dir.Mul(dst))
		if !inside01(p) {
			break
		}
		diameter := max(2*aperture*dst, texel)
		a := r.coneSample(p, dir, diameter).W()
		if a >= 1-r.cfg.ConeShadowTolerance {
			return 0
		}
		occlusion += (1 - occlusion) * a
		dst += diameter * r.cfg.SamplingFactor
	}
	return 1 - min(occlusion, 1)
}

// specularAperture narrows with shininess.
func specularAperture(shininess float32) float32 {
	a := 1 / math32.Sqrt(max(shininess, 1))
	return max(0.0174533, min(a, 1))
}

// shadePixel returns the linear color of a G-buffer sample at world position pos.
func (r *Renderer) shadePixel(lights []core.Light, eye, pos, n mgl32.Vec3, albedo, specular, emission mgl32.Vec4) mgl32.Vec3 {
	v := r.Volume
	cfg := r.cfg
	uvw := v.WorldToUVW(pos)
	view := eye.Sub(pos).Normalize()
	specColor := specular.Vec3()
	shininess := specular.W()

	var direct mgl32.Vec3
	if cfg.DirectLight {
		for _, l := range lights {
			toLight, dist, radiance := l.Incidence(pos)
			lambert := max(n.Dot(toLight), 0)
			if lambert == 0 || radiance == (mgl32.Vec3{}) {
				continue
			}
			maxDist := cfg.MaxTracingDistance
			if !math32.IsInf(dist, 1) {
				maxDist = min(maxDist, dist*v.VoxelScale())
			}
			visibility := r.traceShadowCone(uvw, n, toLight, maxDist)
			if visibility == 0 {
				continue
			}
			diffuse := albedo.Vec3().Mul(lambert)
			half := toLight.Add(view)
			var spec mgl32.Vec3
			if half.Len() > 0 && shininess > 0 {
				spec = specColor.Mul(math32.Pow(max(n.Dot(half.Normalize()), 0), shininess))
			}
			c := diffuse.Add(spec)
			direct = direct.Add(mulVec(c, radiance).Mul(visibility))
		}
	}

	var indirect mgl32.Vec3
	occlusion := float32(0)
	if cfg.IndirectDiffuse || cfg.AmbientOcclusion {
		var diffuse mgl32.Vec3
		total := float32(0)
		for i, d := range diffuseDirections(n) {
			c, ao := r.traceCone(uvw, n, d, diffuseAperture, cfg.MaxTracingDistance)
			diffuse = diffuse.Add(c.Vec3().Mul(diffuseWeights[i]))
			occlusion += ao * diffuseWeights[i]
			total += diffuseWeights[i]
		}
		occlusion /= total
		if cfg.IndirectDiffuse {
			diffuse = diffuse.Mul(1 / total)
			indirect = indirect.Add(mulVec(diffuse, albedo.Vec3()))
		}
	}
	if cfg.IndirectSpecular && specColor != (mgl32.Vec3{}) {
		refl := view.Mul(-1).Sub(n.Mul(2 * n.Dot(view.Mul(-1)))).Normalize()
		c, _ := r.traceCone(uvw, n, refl, specularAperture(shininess), cfg.MaxTracingDistance)
		indirect = indirect.Add(mulVec(c.Vec3(), specColor))
	}
	indirect = indirect.Mul(cfg.BounceStrength)

	out := direct.Add(indirect)
	if cfg.AmbientOcclusion {
		out = out.Mul(1 - cfg.AOAlpha*min(occlusion, 1))
	}
	return out.Add(emission.Vec3())
}

// ConeTrace composites the G-buffer with cone traced lighting into Output.
func (r *Renderer) ConeTrace(scene *core.Scene, cam *core.Camera) {
	g := r.GBuffer
	out := r.Output
	w, h := g.Width, g.Height
	lights := scene.Lights
	ambient := scene.Ambient
	exposure := r.cfg.Exposure
	r.dev.Dispatch("cone trace", [3]int{WorkGroups(w, localSize2D), WorkGroups(h, localSize2D), 1}, [3]int{localSize2D, localSize2D, 1}, func(id [3]int) {
		px, py := id[0], id[1]
		if px >= w || py >= h {
			return
		}
		depth := g.DepthAt(px, py)
		if depth >= 1 {
			out.Store(px, py, mgl32.Vec4{0, 0, 0, 1})
			return
		}
		pos := cam.Unproject(px, py, depth)
		n := g.Normal.Load(px, py).Vec3()
		albedo := g.Albedo.Load(px, py)
		c := r.shadePixel(lights, cam.Eye, pos, n, albedo, g.Specular.Load(px, py), g.Emission.Load(px, py))
		c = c.Add(mulVec(ambient, albedo.Vec3()))
		out.Store(px, py, volume.ToneMap(c, exposure).Vec4(1))
	})
}
