package pipeline

import (
	"github.com/gekko3d/vct/voxelrt/rt/core"
)

const localSize2D = 8

// Geometry fills the G-buffer by casting one primary ray per pixel through
// the scene octree. Only geometry drawables are visible to this pass.
func (r *Renderer) Geometry(scene *core.Scene, cam *core.Camera) {
	g := r.GBuffer
	g.Clear()
	w, h := g.Width, g.Height
	r.dev.Dispatch("geometry", [3]int{WorkGroups(w, localSize2D), WorkGroups(h, localSize2D), 1}, [3]int{localSize2D, localSize2D, 1}, func(id [3]int) {
		px, py := id[0], id[1]
		if px >= w || py >= h {
			return
		}
		origin, dir := cam.Ray(px, py)
		hit, d, ok := scene.Raycast(origin, dir, cam.Far)
		if !ok || d == nil || d.Kind != core.KindGeometry {
			return
		}
		n := hit.Normal
		if n.Dot(dir) > 0 {
			n = n.Mul(-1)
		}
		if n.Len() > 0 {
			n = n.Normalize()
		}
		m := d.Material
		g.Albedo.Store(px, py, m.Diffuse)
		g.Normal.Store(px, py, n.Vec4(0))
		g.Specular.Store(px, py, m.Specular.Vec3().Vec4(m.Shininess))
		g.Emission.Store(px, py, m.Emission)
		g.SetDepth(px, py, cam.Depth(hit.Point))
	})
}
