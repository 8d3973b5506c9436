//go:build !nogpu

package gpu

import (
	"github.com/gekko3d/vct/voxelrt/rt/core"
	"github.com/gekko3d/vct/voxelrt/rt/pipeline"

	"github.com/cogentcore/webgpu/wgpu"
)

const (
	HeadroomTriangles = 64 * VoxelTriangleSize
	HeadroomTables    = 64 * 1024
)

// GpuBufferManager owns every buffer and texture the cone tracing passes
// bind. Buffers grow on demand and are rewritten in place otherwise.
type GpuBufferManager struct {
	Device *wgpu.Device

	ParamsBuf      *wgpu.Buffer
	CameraBuf      *wgpu.Buffer
	ProjectionsBuf *wgpu.Buffer
	LightsBuf      *wgpu.Buffer

	TrianglesBuf  *wgpu.Buffer
	NodesBuf      *wgpu.Buffer
	ObjectsBuf    *wgpu.Buffer
	PrimitivesBuf *wgpu.Buffer
	MaterialBuf   *wgpu.Buffer

	// Packed RGBA8 voxel attributes, the top byte counts fragments.
	AlbedoBuf   *wgpu.Buffer
	NormalBuf   *wgpu.Buffer
	EmissionBuf *wgpu.Buffer

	Radiance     *wgpu.Texture
	RadianceView *wgpu.TextureView
	// Directional volumes side by side along x, one view per mip level
	// plus AtlasView covering the whole chain.
	Atlas        *wgpu.Texture
	AtlasView    *wgpu.TextureView
	AtlasViews   []*wgpu.TextureView
	MipLevelBufs []*wgpu.Buffer

	GBufferBuf *wgpu.Buffer
	Output     *wgpu.Texture
	OutputView *wgpu.TextureView

	Dimension int
	Width     int
	Height    int
	Counts    FrameCounts
}

func NewGpuBufferManager(device *wgpu.Device) *GpuBufferManager {
	return &GpuBufferManager{Device: device}
}

func (m *GpuBufferManager) ensureBuffer(name string, buf **wgpu.Buffer, data []byte, usage wgpu.BufferUsage, headroom int) bool {
	neededSize := uint64(len(data) + headroom)
	if neededSize%4 != 0 {
		neededSize += 4 - (neededSize % 4)
	}

	current := *buf
	if current == nil || current.GetSize() < neededSize {
		if current != nil {
			current.Release()
		}
		newBuf, err := m.Device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: name,
			Size:  neededSize,
			Usage: usage | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			panic(err)
		}
		*buf = newBuf
		if len(data) > 0 {
			m.Device.GetQueue().WriteBuffer(*buf, 0, data)
		}
		return true
	}
	if len(data) > 0 {
		m.Device.GetQueue().WriteBuffer(*buf, 0, data)
	}
	return false
}

// UpdateScene uploads everything the voxelization and geometry passes read.
// It reports whether any buffer was reallocated.
func (m *GpuBufferManager) UpdateScene(scene *core.Scene) bool {
	tris, count := EncodeVoxelTriangles(scene)
	prims, materials := EncodePrimitives(scene)
	nodes, objects, nodeCount := EncodeOctree(scene)

	recreated := false
	recreated = m.ensureBuffer("VoxelTriangles", &m.TrianglesBuf, tris, wgpu.BufferUsageStorage, HeadroomTriangles) || recreated
	recreated = m.ensureBuffer("Primitives", &m.PrimitivesBuf, prims, wgpu.BufferUsageStorage, HeadroomTables) || recreated
	recreated = m.ensureBuffer("Materials", &m.MaterialBuf, materials, wgpu.BufferUsageStorage, HeadroomTables) || recreated
	recreated = m.ensureBuffer("OctreeNodes", &m.NodesBuf, nodes, wgpu.BufferUsageStorage, HeadroomTables) || recreated
	recreated = m.ensureBuffer("OctreeObjects", &m.ObjectsBuf, objects, wgpu.BufferUsageStorage, HeadroomTables) || recreated
	recreated = m.ensureBuffer("Lights", &m.LightsBuf, core.LightsBytes(scene.Lights), wgpu.BufferUsageStorage, 0) || recreated

	m.Counts.Triangles = count
	m.Counts.Lights = len(scene.Lights)
	m.Counts.Primitives = len(scene.Primitives)
	m.Counts.Nodes = nodeCount
	return recreated
}

func (m *GpuBufferManager) UpdateCamera(cam *core.Camera, scene *core.Scene) {
	m.ensureBuffer("CameraUB", &m.CameraBuf, EncodeCamera(cam, scene.Ambient), wgpu.BufferUsageUniform, 0)
}

// UpdateParams writes the pipeline tunables together with the counts from
// the last UpdateScene and SetupGBuffer.
func (m *GpuBufferManager) UpdateParams(cfg pipeline.Config) {
	m.ensureBuffer("ParamsUB", &m.ParamsBuf, EncodeParams(cfg, m.Counts), wgpu.BufferUsageUniform, 0)
	m.ensureBuffer("ProjectionsUB", &m.ProjectionsBuf, EncodeProjections(pipeline.VoxelProjections(VolumeMin(cfg), cfg.VolumeSize)), wgpu.BufferUsageUniform, 0)
}

// SetupGBuffer sizes the G-buffer and the output image for a viewport.
func (m *GpuBufferManager) SetupGBuffer(width, height int) {
	if m.Output != nil {
		m.OutputView.Release()
		m.Output.Release()
	}
	m.Width, m.Height = width, height
	m.Counts.Width, m.Counts.Height = width, height
	m.ensureBuffer("GBuffer", &m.GBufferBuf, make([]byte, width*height*GTexelSize), wgpu.BufferUsageStorage, 0)

	var err error
	m.Output, err = m.Device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "VCT Output",
		Size:          wgpu.Extent3D{Width: uint32(width), Height: uint32(height), DepthOrArrayLayers: 1},
		Format:        wgpu.TextureFormatRGBA8Unorm,
		Usage:         wgpu.TextureUsageStorageBinding | wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopySrc | wgpu.TextureUsageCopyDst,
		Dimension:     wgpu.TextureDimension2D,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		panic(err)
	}
	m.OutputView, err = m.Output.CreateView(nil)
	if err != nil {
		panic(err)
	}
}
