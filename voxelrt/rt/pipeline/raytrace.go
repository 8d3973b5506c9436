package pipeline

import (
	"github.com/gekko3d/vct/voxelrt/rt/core"
	"github.com/gekko3d/vct/voxelrt/rt/volume"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	shadowBias    = 1e-3
	reflectionMin = 0.01
)

// Raytrace renders the traced drawables of scene with Phong shading, hard
// shadows and up to depth mirror bounces, all through the scene octree. It
// writes the tone mapped result into Output.
func (r *Renderer) Raytrace(scene *core.Scene, cam *core.Camera, depth int) {
	if r.Output == nil || r.Output.Width != cam.Width || r.Output.Height != cam.Height {
		panic("pipeline: Raytrace needs a Resize matching the camera viewport")
	}
	out := r.Output
	w, h := out.Width, out.Height
	exposure := r.cfg.Exposure
	r.dev.Dispatch("raytrace", [3]int{WorkGroups(w, localSize2D), WorkGroups(h, localSize2D), 1}, [3]int{localSize2D, localSize2D, 1}, func(id [3]int) {
		px, py := id[0], id[1]
		if px >= w || py >= h {
			return
		}
		origin, dir := cam.Ray(px, py)
		c := traceRay(scene, origin, dir, cam.Far, depth)
		out.Store(px, py, volume.ToneMap(c, exposure).Vec4(1))
	})
	r.dev.Barrier(BarrierAll)
}

func traceRay(scene *core.Scene, origin, dir mgl32.Vec3, tMax float32, depth int) mgl32.Vec3 {
	hit, d, ok := scene.Raycast(origin, dir, tMax)
	if !ok || d == nil {
		return mgl32.Vec3{}
	}
	n := hit.Normal
	if n.Dot(dir) > 0 {
		n = n.Mul(-1)
	}
	n = n.Normalize()
	m := d.Material
	p := hit.Point.Add(n.Mul(shadowBias))
	view := dir.Mul(-1)

	diffuse := m.Diffuse.Vec3()
	color := mulVec(scene.Ambient, diffuse).Add(m.Emission.Vec3())
	for _, l := range scene.Lights {
		toLight, dist, radiance := l.Incidence(p)
		lambert := n.Dot(toLight)
		if lambert <= 0 || radiance == (mgl32.Vec3{}) {
			continue
		}
		limit := dist
		if math32.IsInf(dist, 1) {
			limit = tMax
		}
		if _, _, blocked := scene.Raycast(p, toLight, limit); blocked {
			continue
		}
		half := toLight.Add(view).Normalize()
		spec := m.Specular.Vec3().Mul(math32.Pow(max(n.Dot(half), 0), m.Shininess))
		color = color.Add(mulVec(diffuse.Mul(lambert).Add(spec), radiance))
	}

	ks := m.Specular.Vec3()
	if depth > 0 && max(ks.X(), ks.Y(), ks.Z()) > reflectionMin {
		refl := dir.Sub(n.Mul(2 * dir.Dot(n))).Normalize()
		bounce := traceRay(scene, p, refl, tMax, depth-1)
		color = color.Add(mulVec(bounce, ks).Mul(0.5))
	}
	return color
}

func mulVec(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{a.X() * b.X(), a.Y() * b.Y(), a.Z() * b.Z()}
}
