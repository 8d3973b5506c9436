package pipeline

import (
	"fmt"

	"github.com/gekko3d/vct/voxelrt/rt/core"
	"github.com/gekko3d/vct/voxelrt/rt/octree"
	"github.com/gekko3d/vct/voxelrt/rt/volume"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// VoxelTexture looks a volume texture up by name: albedo, normal, emission,
// radiance, or a direction such as "+x" for the directional chain.
func (r *Renderer) VoxelTexture(name string) (*volume.Texture3D, error) {
	v := r.Volume
	switch name {
	case "albedo":
		return v.Albedo, nil
	case "normal":
		return v.Normal, nil
	case "emission":
		return v.Emission, nil
	case "radiance":
		return v.Radiance, nil
	}
	d, err := volume.ParseDirection(name)
	if err != nil {
		return nil, fmt.Errorf("unknown voxel texture %q", name)
	}
	return v.Directional[d], nil
}

// VisualizeVoxels renders one level of tex as opaque cubes seen from cam.
// Every pixel marches its ray through the grid cell by cell and stops at the
// first non-empty texel.
func (r *Renderer) VisualizeVoxels(cam *core.Camera, tex *volume.Texture3D, level int) *volume.Texture2D {
	if level < 0 || level >= tex.Levels() {
		panic(fmt.Sprintf("pipeline: level %d outside texture %q with %d levels", level, tex.Label, tex.Levels()))
	}
	v := r.Volume
	w, h := cam.Width, cam.Height
	img := volume.NewTexture2D("voxels "+tex.Label, w, h)
	img.Fill(mgl32.Vec4{0, 0, 0, 1})
	box := octree.NewBoundingBox(v.Min, v.Max)
	dim := tex.Dim(level)
	cell := v.Size / float32(dim)

	r.dev.Dispatch("visualize voxels", [3]int{WorkGroups(w, localSize2D), WorkGroups(h, localSize2D), 1}, [3]int{localSize2D, localSize2D, 1}, func(id [3]int) {
		px, py := id[0], id[1]
		if px >= w || py >= h {
			return
		}
		origin, dir := cam.Ray(px, py)
		tNear, tFar, ok := box.IntersectRay(origin, dir)
		if !ok {
			return
		}
		tNear = max(tNear, 0)
		var acc mgl32.Vec4
		for t := tNear; t <= tFar && acc.W() < 0.99; t += cell * 0.5 {
			uvw := v.WorldToUVW(origin.Add(dir.Mul(t)))
			x := clampCell(uvw.X(), dim)
			y := clampCell(uvw.Y(), dim)
			z := clampCell(uvw.Z(), dim)
			s := tex.Load(level, x, y, z)
			if s == (mgl32.Vec4{}) {
				continue
			}
			// opaque cubes, alpha only scales the color
			acc = under(acc, s.Vec3().Vec4(1))
		}
		img.Store(px, py, acc.Vec3().Vec4(1))
	})
	r.dev.Barrier(BarrierAll)
	return img
}

func clampCell(u float32, dim int) int {
	return max(0, min(int(math32.Floor(u*float32(dim))), dim-1))
}
