package pipeline

import (
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gekko3d/vct/voxelrt/rt/core"
	"github.com/gekko3d/vct/voxelrt/rt/octree"
	"github.com/gekko3d/vct/voxelrt/rt/volume"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRenderer(t *testing.T, dim, w, h int) (*Renderer, *CPUDevice) {
	t.Helper()
	dev := NewCPUDevice(4)
	t.Cleanup(dev.Close)
	cfg := DefaultConfig()
	cfg.VolumeDimension = dim
	r, err := NewRenderer(cfg, dev, nil)
	require.NoError(t, err)
	if w > 0 {
		r.Resize(w, h)
	}
	return r, dev
}

// flatTriangle is a single +Y facing triangle at height y.
func flatTriangle(y float32) *core.Mesh {
	up := mgl32.Vec3{0, 1, 0}
	return &core.Mesh{
		Positions: []mgl32.Vec3{{-0.5, y, -0.5}, {0, y, 0.5}, {0.5, y, -0.5}},
		Normals:   []mgl32.Vec3{up, up, up},
		Indices:   []uint32{0, 1, 2},
	}
}

func sunFromAbove() core.Light {
	l := core.NewLight(core.LightInfinite, mgl32.Vec3{1, 1, 1}, 1)
	l.Direction = mgl32.Vec3{0, -1, 0}
	return l
}

func TestCPUDeviceRunsEveryInvocationOnce(t *testing.T) {
	dev := NewCPUDevice(3)
	defer dev.Close()

	var mu sync.Mutex
	seen := map[[3]int]int{}
	var calls atomic.Int32
	dev.Dispatch("count", [3]int{3, 2, 1}, [3]int{4, 4, 1}, func(id [3]int) {
		calls.Add(1)
		mu.Lock()
		seen[id]++
		mu.Unlock()
	})
	dev.Barrier(BarrierAll)

	assert.Equal(t, int32(96), calls.Load())
	assert.Len(t, seen, 96)
	for id, n := range seen {
		assert.Equal(t, 1, n, "invocation %v", id)
		assert.Less(t, id[0], 12)
		assert.Less(t, id[1], 8)
	}

	trace := dev.Trace()
	require.Len(t, trace, 2)
	assert.Equal(t, EventDispatch, trace[0].Kind)
	assert.Equal(t, EventBarrier, trace[1].Kind)
	assert.Equal(t, "image|fetch|storage", trace[1].Barrier.String())
}

func TestCPUDeviceDispatchAfterClosePanics(t *testing.T) {
	dev := NewCPUDevice(2)
	dev.Close()
	dev.Close()

	assert.PanicsWithValue(t, `pipeline: dispatch "late" on a closed device`, func() {
		dev.Dispatch("late", [3]int{1, 1, 1}, [3]int{1, 1, 1}, func([3]int) {})
	})
	assert.NotPanics(t, func() { dev.Barrier(BarrierAll) })
}

func TestConfigValidation(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.InDelta(t, 2.0/128, cfg.VoxelSize(), 1e-9)
	assert.InDelta(t, 0.5, cfg.VoxelScale(), 1e-9)

	cfg.VolumeDimension = 100
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.VolumeSize = 0
	assert.Error(t, cfg.Validate())

	_, err := NewRenderer(cfg, NewCPUDevice(1), nil)
	assert.Error(t, err)
	assert.Equal(t, 4, WorkGroups(32, 8))
	assert.Equal(t, 5, WorkGroups(33, 8))
}

func TestStageOrderingLitTriangle(t *testing.T) {
	r, _ := newTestRenderer(t, 16, 0, 0)
	scene := core.NewScene()
	red := core.NewMaterial(core.Color(0.9, 0.1, 0.1), mgl32.Vec4{})
	scene.Add(core.KindVoxelized, "tri", flatTriangle(0.1), red, nil)
	scene.AddLight(sunFromAbove())

	r.VoxelizeOnly(scene)
	v := r.Volume

	centroid := mgl32.Vec3{0, 0.1, -1.0 / 6}
	x, y, z, ok := v.WorldToVoxel(centroid)
	require.True(t, ok)

	rad := v.Radiance.Load(0, x, y, z)
	assert.Greater(t, rad.W(), float32(0))
	assert.Greater(t, rad.X(), rad.Y())
	assert.Greater(t, rad.X(), rad.Z())
	assert.InDelta(t, 0.9, rad.X(), 0.02)

	// +Y facing geometry shows up in the +Y chain only
	posY := v.Directional[volume.PosY].Load(0, x/2, y/2, z/2)
	negY := v.Directional[volume.NegY].Load(0, x/2, y/2, z/2)
	assert.Greater(t, posY.X(), float32(0))
	assert.Greater(t, posY.X(), posY.Y())
	assert.Equal(t, float32(0), negY.X())
	assert.Greater(t, negY.W(), float32(0))

	// far corner stays empty through every stage
	for _, tex := range []*volume.Texture3D{v.Albedo, v.Normal, v.Emission, v.Radiance} {
		assert.Equal(t, [4]uint8{}, tex.LoadRaw(0, 0, 0, 0), tex.Label)
	}
	for d := range v.Directional {
		assert.Equal(t, [4]uint8{}, v.Directional[d].LoadRaw(0, 0, 0, 0))
		assert.Equal(t, [4]uint8{}, v.Directional[d].LoadRaw(1, 0, 0, 0))
	}

	last := v.Directional[volume.PosY].Levels() - 1
	assert.Equal(t, 1, v.Directional[volume.PosY].Dim(last))
	assert.Greater(t, v.Directional[volume.PosY].Load(last, 0, 0, 0).W(), float32(0))
}

func TestShadowedCellReceivesNoDirectLight(t *testing.T) {
	r, _ := newTestRenderer(t, 16, 0, 0)
	scene := core.NewScene()
	white := core.NewMaterial(core.Color(1, 1, 1), mgl32.Vec4{})
	scene.Add(core.KindVoxelized, "floor", flatTriangle(-0.5), white, nil)
	scene.Add(core.KindVoxelized, "roof", flatTriangle(0.5), white, nil)
	scene.AddLight(sunFromAbove())

	r.VoxelizeOnly(scene)
	v := r.Volume

	x, y, z, _ := v.WorldToVoxel(mgl32.Vec3{0, 0.5, -1.0 / 6})
	assert.Greater(t, v.Radiance.Load(0, x, y, z).X(), float32(0.5))

	x, y, z, _ = v.WorldToVoxel(mgl32.Vec3{0, -0.5, -1.0 / 6})
	lit := v.Radiance.Load(0, x, y, z)
	assert.Equal(t, float32(1), lit.W())
	assert.Equal(t, float32(0), lit.X())
}

func TestClearZeroesEveryCell(t *testing.T) {
	r, dev := newTestRenderer(t, 8, 0, 0)
	v := r.Volume
	junk := mgl32.Vec4{1, 0.5, 0.25, 1}
	for z := 0; z < 8; z++ {
		for y := 0; y < 8; y++ {
			for x := 0; x < 8; x++ {
				v.Albedo.Store(0, x, y, z, junk)
				v.Normal.Store(0, x, y, z, junk)
				v.Emission.Store(0, x, y, z, junk)
				v.Radiance.Store(0, x, y, z, junk)
			}
		}
	}

	r.Clear()
	dev.Barrier(BarrierAll)

	for _, tex := range []*volume.Texture3D{v.Albedo, v.Normal, v.Emission, v.Radiance} {
		assert.Equal(t, 0, tex.CountNonZero(0), tex.Label)
		assert.Equal(t, mgl32.Vec4{}, tex.Sample(mgl32.Vec3{0.3, 0.6, 0.9}, 0), tex.Label)
	}
}

func TestMipChainBottomsOutAtOne(t *testing.T) {
	r, dev := newTestRenderer(t, 128, 0, 0)
	dev.ResetTrace()

	dims := r.MipMapVolume()
	assert.Equal(t, []int{32, 16, 8, 4, 2, 1}, dims)

	var labels []string
	trace := dev.Trace()
	for i, e := range trace {
		if e.Kind != EventDispatch {
			continue
		}
		labels = append(labels, e.Label)
		require.Less(t, i+1, len(trace))
		assert.Equal(t, EventBarrier, trace[i+1].Kind, "level dispatch %q must be followed by a barrier", e.Label)
	}
	assert.Equal(t, []string{
		"mipmap volume level 1",
		"mipmap volume level 2",
		"mipmap volume level 3",
		"mipmap volume level 4",
		"mipmap volume level 5",
		"mipmap volume level 6",
	}, labels)
	assert.Equal(t, 7, r.Volume.Directional[0].Levels())
}

func TestVoxelizeAveragesOverlappingFragments(t *testing.T) {
	r, dev := newTestRenderer(t, 16, 0, 0)
	scene := core.NewScene()
	scene.Add(core.KindVoxelized, "red", flatTriangle(0.1), core.NewMaterial(core.Color(1, 0, 0), mgl32.Vec4{}), nil)
	scene.Add(core.KindVoxelized, "blue", flatTriangle(0.1), core.NewMaterial(core.Color(0, 0, 1), mgl32.Vec4{}), nil)

	r.Clear()
	dev.Barrier(BarrierAll)
	n := r.Voxelize(scene)
	assert.Greater(t, n, 0)

	x, y, z, _ := r.Volume.WorldToVoxel(mgl32.Vec3{0, 0.1, -1.0 / 6})
	a := r.Volume.Albedo.Load(0, x, y, z)
	assert.InDelta(t, 0.5, a.X(), 0.01)
	assert.InDelta(t, 0.5, a.Z(), 0.01)
	assert.Equal(t, float32(1), a.W())
	assert.Equal(t, uint8(2), r.Volume.Normal.LoadRaw(0, x, y, z)[3])

	nrm := volume.DecodeNormal(r.Volume.Normal.Load(0, x, y, z).Vec3())
	assert.InDelta(t, 1, nrm.Y(), 0.02)
}

func TestConservativeRasterizationDilates(t *testing.T) {
	count := func(conservative bool) int {
		r, dev := newTestRenderer(t, 16, 0, 0)
		cfg := r.Config()
		cfg.ConservativeRasterization = conservative
		require.NoError(t, r.SetConfig(cfg))
		scene := core.NewScene()
		scene.Add(core.KindVoxelized, "tri", flatTriangle(0.1), core.DefaultMaterial(), nil)
		r.Clear()
		dev.Barrier(BarrierAll)
		r.Voxelize(scene)
		return r.Volume.Albedo.CountNonZero(0)
	}
	plain, dilated := count(false), count(true)
	assert.Greater(t, plain, 0)
	assert.Greater(t, dilated, plain)
}

func TestVoxelizeClipsGeometryOutsideVolume(t *testing.T) {
	for _, conservative := range []bool{false, true} {
		r, dev := newTestRenderer(t, 16, 0, 0)
		cfg := r.Config()
		cfg.ConservativeRasterization = conservative
		require.NoError(t, r.SetConfig(cfg))

		scene := core.NewScene()
		scene.Add(core.KindVoxelized, "above", flatTriangle(1.5), core.DefaultMaterial(), nil)
		scene.Add(core.KindVoxelized, "below", flatTriangle(-1.2), core.DefaultMaterial(), nil)
		beside := scene.Add(core.KindVoxelized, "beside", flatTriangle(0.1), core.DefaultMaterial(), nil)
		beside.Node.SetPosition(mgl32.Vec3{3, 0, 0})

		r.Clear()
		dev.Barrier(BarrierAll)
		assert.Equal(t, 0, r.Voxelize(scene), "conservative=%v", conservative)
		assert.Equal(t, 0, r.Volume.Albedo.CountNonZero(0), "conservative=%v", conservative)
		assert.Equal(t, 0, r.Volume.Normal.CountNonZero(0), "conservative=%v", conservative)
	}
}

func floorScene() (*core.Scene, *core.Camera) {
	scene := core.NewScene()
	floor := scene.AddShape("floor", core.Cube(), core.NewMaterial(core.Color(0.2, 0.8, 0.2), mgl32.Vec4{}))
	floor.SetScale(mgl32.Vec3{0.8, 0.05, 0.8})
	scene.AddLight(sunFromAbove())
	scene.Commit(octree.DefaultOptions())

	cam := core.NewCamera(9, 9)
	cam.Eye = mgl32.Vec3{0, 1.5, 1.5}
	cam.Target = mgl32.Vec3{0, 0, 0}
	return scene, cam
}

func TestFrameRunsStagesInOrderWithBarriers(t *testing.T) {
	r, dev := newTestRenderer(t, 16, 9, 9)
	scene, cam := floorScene()
	dev.ResetTrace()

	stats := r.Frame(scene, cam)
	assert.Equal(t, []int{4, 2, 1}, stats.MipDimensions)
	assert.Greater(t, stats.Voxelized, 0)
	require.Len(t, stats.Stages, 7)
	assert.Equal(t, "clear", stats.Stages[0].Name)
	assert.Equal(t, "cone trace", stats.Stages[6].Name)

	stage := func(label string) string {
		for _, p := range []string{"clear", "voxelize", "inject", "mipmap base", "mipmap volume", "geometry", "cone trace"} {
			if strings.HasPrefix(label, p) {
				return p
			}
		}
		return label
	}
	order := []string{"clear", "voxelize", "inject", "mipmap base", "mipmap volume", "geometry", "cone trace"}

	var seen []string
	prev := ""
	barrierSince := true
	for _, e := range dev.Trace() {
		if e.Kind == EventBarrier {
			barrierSince = true
			assert.Equal(t, BarrierAll, e.Barrier)
			continue
		}
		s := stage(e.Label)
		if s != prev {
			assert.True(t, barrierSince, "no barrier between %q and %q", prev, s)
			seen = append(seen, s)
			prev = s
		}
		barrierSince = false
	}
	assert.Equal(t, order, seen)

	center := r.Output.Load(4, 4)
	assert.Greater(t, center.Y(), center.X(), "floor is green")
	assert.Greater(t, center.Y(), float32(0.2))
	assert.Equal(t, mgl32.Vec4{0, 0, 0, 1}, r.Output.Load(0, 0))
	assert.Less(t, r.GBuffer.DepthAt(4, 4), float32(1))
	assert.Equal(t, float32(1), r.GBuffer.DepthAt(0, 0))
}

func TestFrameBeforeResizePanics(t *testing.T) {
	r, _ := newTestRenderer(t, 8, 0, 0)
	scene, cam := floorScene()
	assert.PanicsWithValue(t, "pipeline: Frame called before Reinit and Resize", func() {
		r.Frame(scene, cam)
	})
	r.Resize(4, 4)
	assert.Panics(t, func() { r.Frame(scene, cam) }, "camera viewport must match")
}

func TestReinitReallocatesVolume(t *testing.T) {
	r, _ := newTestRenderer(t, 8, 0, 0)
	old := r.Volume
	r.Reinit(32)
	assert.NotSame(t, old, r.Volume)
	assert.Equal(t, 32, r.Volume.Dimension)
	assert.Equal(t, 32, r.Config().VolumeDimension)
	assert.Panics(t, func() { r.Reinit(12) })

	// projections map the volume corners onto the clip cube
	for a := 0; a < 3; a++ {
		lo := r.Projections[a].Mul4x1(r.Volume.Min.Vec4(1))
		hi := r.Projections[a].Mul4x1(r.Volume.Max.Vec4(1))
		assert.Equal(t, mgl32.Vec4{-1, -1, -1, 1}, lo)
		assert.Equal(t, mgl32.Vec4{1, 1, 1, 1}, hi)
	}
}

func TestVisualizeVoxelsShowsAlbedo(t *testing.T) {
	r, _ := newTestRenderer(t, 16, 0, 0)
	scene := core.NewScene()
	scene.Add(core.KindVoxelized, "tri", flatTriangle(0.1), core.NewMaterial(core.Color(1, 0, 0), mgl32.Vec4{}), nil)
	r.VoxelizeOnly(scene)

	cam := core.NewCamera(9, 9)
	cam.Eye = mgl32.Vec3{0, 1.5, 1}
	cam.Target = mgl32.Vec3{0, 0.1, -1.0 / 6}

	tex, err := r.VoxelTexture("albedo")
	require.NoError(t, err)
	img := r.VisualizeVoxels(cam, tex, 0)
	c := img.Load(4, 4)
	assert.Greater(t, c.X(), float32(0.9))
	assert.Equal(t, mgl32.Vec4{0, 0, 0, 1}, img.Load(0, 0))

	_, err = r.VoxelTexture("-z")
	assert.NoError(t, err)
	_, err = r.VoxelTexture("depth")
	assert.Error(t, err)
	assert.Panics(t, func() { r.VisualizeVoxels(cam, tex, 1) })
}

func TestRaytraceLightsAndShadows(t *testing.T) {
	r, _ := newTestRenderer(t, 8, 9, 9)
	scene := core.NewScene()
	ground := scene.Add(core.KindRay, "ground", core.Cube(), core.NewMaterial(core.Color(0, 0.3, 0.8), mgl32.Vec4{}), nil)
	ground.Node.SetScale(mgl32.Vec3{2, 0.1, 2})
	scene.AddLight(sunFromAbove())
	scene.Commit(octree.DefaultOptions())

	cam := core.NewCamera(9, 9)
	cam.Eye = mgl32.Vec3{0, 3, 3}
	r.Raytrace(scene, cam, 2)
	lit := r.Output.Load(4, 4)
	assert.Greater(t, lit.Z(), lit.X())

	blocker := scene.Add(core.KindRay, "blocker", core.Cube(), core.DefaultMaterial(), nil)
	blocker.Node.SetScale(mgl32.Vec3{0.5, 0.05, 0.5})
	blocker.Node.SetPosition(mgl32.Vec3{0, 2, 0})
	scene.Commit(octree.DefaultOptions())

	// the shadow of the blocker falls on the ground below it
	origin := mgl32.Vec3{0.1, 1, 0.1}
	shaded := traceRay(scene, origin, mgl32.Vec3{0, -1, 0}, 10, 0)
	unshaded := traceRay(scene, mgl32.Vec3{1.5, 1, 1.5}, mgl32.Vec3{0, -1, 0}, 10, 0)
	assert.Less(t, shaded.Z(), unshaded.Z())
}
