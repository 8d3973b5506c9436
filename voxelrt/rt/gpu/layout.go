package gpu

import (
	"encoding/binary"
	"math"

	"github.com/gekko3d/vct/voxelrt/rt/core"
	"github.com/gekko3d/vct/voxelrt/rt/octree"
	"github.com/gekko3d/vct/voxelrt/rt/pipeline"

	"github.com/go-gl/mathgl/mgl32"
)

// Matches WGSL Params
// struct Params {
//    volume_min : vec4<f32>; xyz, voxel size
//    tracing : vec4<f32>;    ao alpha, ao falloff, max tracing distance, sampling factor
//    shadows : vec4<f32>;    bounce strength, cone shadow tolerance, cone shadow aperture, trace shadow hit
//    extra : vec4<f32>;      voxel scale, exposure, conservative, 0
//    dims : vec4<u32>;       volume dim, triangles, lights, flags
//    viewport : vec4<u32>;   width, height, primitives, nodes
// }; -> 96 bytes
const ParamsSize = 96

// Matches WGSL Camera { view_proj, inv_view_proj : mat4x4; eye (xyz, far), ambient : vec4 } -> 160 bytes
const CameraSize = 160

// Matches WGSL VoxelTriangle: three positions, three normals, albedo, emission -> 128 bytes
const VoxelTriangleSize = 128

// Matches WGSL Primitive: three positions, material index in p0.w and kind in p1.w -> 48 bytes
const PrimitiveSize = 48

// Matches WGSL GTexel: albedo, normal + depth, specular + shininess, emission -> 64 bytes
const GTexelSize = 64

const (
	ProjectionsSize = 3 * 64
	MipLevelSize    = 16
)

// Term flags packed into Params.dims.w.
const (
	FlagDirect uint32 = 1 << iota
	FlagDiffuse
	FlagSpecular
	FlagAO
)

// FrameCounts are the sizes the shaders bound their loops with.
type FrameCounts struct {
	Triangles  int
	Lights     int
	Width      int
	Height     int
	Primitives int
	Nodes      int
}

type writer struct {
	buf []byte
	off int
}

func newWriter(size int) *writer {
	return &writer{buf: make([]byte, size)}
}

func (w *writer) f32(v float32) {
	binary.LittleEndian.PutUint32(w.buf[w.off:], math.Float32bits(v))
	w.off += 4
}

func (w *writer) u32(v uint32) {
	binary.LittleEndian.PutUint32(w.buf[w.off:], v)
	w.off += 4
}

func (w *writer) vec4(v mgl32.Vec4) {
	for i := 0; i < 4; i++ {
		w.f32(v[i])
	}
}

func (w *writer) vec3(v mgl32.Vec3, last float32) {
	w.vec4(v.Vec4(last))
}

func (w *writer) mat4(m mgl32.Mat4) {
	for _, v := range m {
		w.f32(v)
	}
}

func boolf(b bool) float32 {
	if b {
		return 1
	}
	return 0
}

func TermFlags(cfg pipeline.Config) uint32 {
	var f uint32
	if cfg.DirectLight {
		f |= FlagDirect
	}
	if cfg.IndirectDiffuse {
		f |= FlagDiffuse
	}
	if cfg.IndirectSpecular {
		f |= FlagSpecular
	}
	if cfg.AmbientOcclusion {
		f |= FlagAO
	}
	return f
}

// VolumeMin is the low corner of the voxelized cube, which is centered on
// the origin.
func VolumeMin(cfg pipeline.Config) mgl32.Vec3 {
	h := cfg.VolumeSize / 2
	return mgl32.Vec3{-h, -h, -h}
}

func EncodeParams(cfg pipeline.Config, n FrameCounts) []byte {
	w := newWriter(ParamsSize)
	w.vec3(VolumeMin(cfg), cfg.VoxelSize())
	w.vec4(mgl32.Vec4{cfg.AOAlpha, cfg.AOFalloff, cfg.MaxTracingDistance, cfg.SamplingFactor})
	w.vec4(mgl32.Vec4{cfg.BounceStrength, cfg.ConeShadowTolerance, cfg.ConeShadowAperture, cfg.TraceShadowHit})
	w.vec4(mgl32.Vec4{cfg.VoxelScale(), cfg.Exposure, boolf(cfg.ConservativeRasterization), 0})
	w.u32(uint32(cfg.VolumeDimension))
	w.u32(uint32(n.Triangles))
	w.u32(uint32(n.Lights))
	w.u32(TermFlags(cfg))
	w.u32(uint32(n.Width))
	w.u32(uint32(n.Height))
	w.u32(uint32(n.Primitives))
	w.u32(uint32(n.Nodes))
	return w.buf
}

func EncodeCamera(cam *core.Camera, ambient mgl32.Vec3) []byte {
	w := newWriter(CameraSize)
	w.mat4(cam.ViewProjection())
	w.mat4(cam.InverseProjectionView())
	w.vec3(cam.Eye, cam.Far)
	w.vec3(ambient, 0)
	return w.buf
}

func EncodeProjections(p [3]mgl32.Mat4) []byte {
	w := newWriter(ProjectionsSize)
	for _, m := range p {
		w.mat4(m)
	}
	return w.buf
}

func EncodeMipLevel(level int) []byte {
	w := newWriter(MipLevelSize)
	w.u32(uint32(level))
	return w.buf
}

// EncodeVoxelTriangles gathers the world space triangles of every voxelized
// drawable. It returns the encoded triangles and their count; an empty
// scene still yields one zeroed triangle so the buffer is never empty.
func EncodeVoxelTriangles(scene *core.Scene) ([]byte, int) {
	var tris []pipeline.VoxelTriangle
	for _, d := range scene.DrawablesOf(core.KindVoxelized) {
		tris = append(tris, pipeline.WorldTriangles(d)...)
	}
	if len(tris) == 0 {
		return make([]byte, VoxelTriangleSize), 0
	}
	w := newWriter(len(tris) * VoxelTriangleSize)
	for _, t := range tris {
		for _, p := range t.Pos {
			w.vec3(p, 1)
		}
		for _, n := range t.Normals {
			w.vec3(n, 0)
		}
		w.vec4(t.Albedo)
		w.vec4(t.Emission)
	}
	return w.buf, len(tris)
}

// EncodePrimitives lays out the octree primitives in ID order with their
// owner's material index and kind, plus the material table they index.
func EncodePrimitives(scene *core.Scene) ([]byte, []byte) {
	if len(scene.Primitives) == 0 {
		return make([]byte, PrimitiveSize), make([]byte, core.MaterialGPUSize)
	}
	index := map[*core.Drawable]int{}
	var materials []byte
	w := newWriter(len(scene.Primitives) * PrimitiveSize)
	for _, p := range scene.Primitives {
		d := scene.Owner(p)
		mi, ok := index[d]
		if !ok {
			mi = len(index)
			index[d] = mi
			materials = append(materials, d.Material.ToBytes()...)
		}
		tri := p.WorldTriangle()
		w.vec3(tri[0], float32(mi))
		w.vec3(tri[1], float32(d.Kind))
		w.vec3(tri[2], 0)
	}
	return w.buf, materials
}

// EncodeOctree flattens the scene octree. It returns the node and object
// buffers and the node count; a scene without an octree encodes as empty.
func EncodeOctree(scene *core.Scene) ([]byte, []byte, int) {
	if scene.Octree == nil {
		return octree.NodesBytes(nil), octree.ObjectsBytes(nil), 0
	}
	nodes, objects := scene.Octree.Flatten()
	return octree.NodesBytes(nodes), octree.ObjectsBytes(objects), len(nodes)
}

// AtlasExtent is the size of the directional atlas: the six half resolution
// volumes side by side along x.
func AtlasExtent(dim int) (int, int, int) {
	half := dim / 2
	return 6 * half, half, half
}

// AtlasLevels is the mip count of the atlas, one per directional level.
func AtlasLevels(dim int) int {
	n := 0
	for d := dim / 2; d >= 1; d /= 2 {
		n++
	}
	return n
}
