package gpu

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/gekko3d/vct/voxelrt/rt/core"
	"github.com/gekko3d/vct/voxelrt/rt/octree"
	"github.com/gekko3d/vct/voxelrt/rt/pipeline"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f32At(b []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b[off:]))
}

func u32At(b []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(b[off:])
}

func TestEncodeParamsLayout(t *testing.T) {
	cfg := pipeline.DefaultConfig()
	cfg.IndirectSpecular = false
	b := EncodeParams(cfg, FrameCounts{Triangles: 12, Lights: 2, Width: 640, Height: 480, Primitives: 30, Nodes: 9})
	require.Len(t, b, ParamsSize)

	assert.Equal(t, float32(-1), f32At(b, 0))
	assert.InDelta(t, 2.0/128, f32At(b, 12), 1e-7)
	assert.Equal(t, cfg.AOFalloff, f32At(b, 20))
	assert.Equal(t, cfg.TraceShadowHit, f32At(b, 44))
	assert.Equal(t, cfg.Exposure, f32At(b, 52))
	assert.Equal(t, uint32(128), u32At(b, 64))
	assert.Equal(t, uint32(12), u32At(b, 68))
	assert.Equal(t, uint32(2), u32At(b, 72))
	assert.Equal(t, FlagDirect|FlagDiffuse|FlagAO, u32At(b, 76))
	assert.Equal(t, uint32(640), u32At(b, 80))
	assert.Equal(t, uint32(9), u32At(b, 92))
}

func TestEncodeCameraStoresFarAndAmbient(t *testing.T) {
	cam := core.NewCamera(4, 4)
	b := EncodeCamera(cam, mgl32.Vec3{0.1, 0.2, 0.3})
	require.Len(t, b, CameraSize)
	vp := cam.ViewProjection()
	assert.Equal(t, vp[0], f32At(b, 0))
	assert.Equal(t, vp[15], f32At(b, 60))
	assert.Equal(t, cam.Eye.X(), f32At(b, 128))
	assert.Equal(t, cam.Far, f32At(b, 140))
	assert.Equal(t, float32(0.3), f32At(b, 152))
}

func TestEncodeSceneBuffers(t *testing.T) {
	scene := core.NewScene()
	red := core.NewMaterial(core.Color(1, 0, 0), mgl32.Vec4{})
	scene.AddShape("a", core.Cube(), red)
	scene.AddShape("b", core.Cube(), red)
	scene.Add(core.KindRay, "mirror", core.Cube(), core.DefaultMaterial(), nil)
	scene.Commit(octree.DefaultOptions())

	tris, n := EncodeVoxelTriangles(scene)
	assert.Equal(t, 24, n)
	assert.Len(t, tris, 24*VoxelTriangleSize)
	// albedo of the first triangle
	assert.Equal(t, float32(1), f32At(tris, 96))

	prims, materials := EncodePrimitives(scene)
	require.Len(t, prims, len(scene.Primitives)*PrimitiveSize)
	// one material per owning drawable
	assert.Len(t, materials, 3*core.MaterialGPUSize)
	last := (len(scene.Primitives) - 1) * PrimitiveSize
	assert.Equal(t, float32(2), f32At(prims, last+12))
	assert.Equal(t, float32(core.KindRay), f32At(prims, last+28))
	assert.Equal(t, float32(core.KindGeometry), f32At(prims, 28))

	nodes, objects, count := EncodeOctree(scene)
	assert.Positive(t, count)
	assert.Len(t, nodes, count*octree.GPUNodeSize)
	assert.Len(t, objects, len(scene.Primitives)*octree.GPUObjectSize)
}

func TestEncodeEmptyScene(t *testing.T) {
	scene := core.NewScene()
	tris, n := EncodeVoxelTriangles(scene)
	assert.Zero(t, n)
	assert.Len(t, tris, VoxelTriangleSize)
	prims, materials := EncodePrimitives(scene)
	assert.Len(t, prims, PrimitiveSize)
	assert.Len(t, materials, core.MaterialGPUSize)
	_, _, nodes := EncodeOctree(scene)
	assert.Zero(t, nodes)
}

func TestAtlasShape(t *testing.T) {
	w, h, d := AtlasExtent(128)
	assert.Equal(t, [3]int{384, 64, 64}, [3]int{w, h, d})
	assert.Equal(t, 7, AtlasLevels(128))
	assert.Equal(t, 2, AtlasLevels(4))
	// every level keeps six regions side by side
	for l := 0; l < AtlasLevels(128); l++ {
		assert.Equal(t, 6*(64>>l), w>>l)
	}
}

func TestMipLevelAndProjections(t *testing.T) {
	assert.Equal(t, uint32(3), u32At(EncodeMipLevel(3), 0))
	cfg := pipeline.DefaultConfig()
	p := pipeline.VoxelProjections(VolumeMin(cfg), cfg.VolumeSize)
	b := EncodeProjections(p)
	require.Len(t, b, ProjectionsSize)
	assert.Equal(t, p[2][5], f32At(b, 128+20))
}
