package pipeline

const localSize3D = 8

// Clear zeroes albedo, normal, emission and radiance over the whole volume.
func (r *Renderer) Clear() {
	v := r.Volume
	dim := v.Dimension
	n := WorkGroups(dim, localSize3D)
	zero := [4]uint8{}
	r.dev.Dispatch("clear voxels", [3]int{n, n, n}, [3]int{localSize3D, localSize3D, localSize3D}, func(id [3]int) {
		x, y, z := id[0], id[1], id[2]
		if x >= dim || y >= dim || z >= dim {
			return
		}
		v.Albedo.StoreRaw(0, x, y, z, zero)
		v.Normal.StoreRaw(0, x, y, z, zero)
		v.Emission.StoreRaw(0, x, y, z, zero)
		v.Radiance.StoreRaw(0, x, y, z, zero)
	})
}
