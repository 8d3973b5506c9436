//go:build !nogpu

package gpu

import (
	"fmt"
	"image"

	"github.com/gekko3d/vct/voxelrt/rt/core"
	"github.com/gekko3d/vct/voxelrt/rt/pipeline"
	"github.com/gekko3d/vct/voxelrt/rt/shaders"

	"github.com/cogentcore/webgpu/wgpu"
)

// Renderer records the cone tracing pipeline into a command encoder. Every
// stage runs in its own compute pass so its writes are visible to the next.
type Renderer struct {
	Device  *wgpu.Device
	Buffers *GpuBufferManager

	cfg       pipeline.Config
	log       pipeline.Logger
	pipelines map[string]*wgpu.ComputePipeline
	// bind groups of the frame in flight, released on the next Encode
	frameGroups []*wgpu.BindGroup
}

func NewRenderer(device *wgpu.Device, cfg pipeline.Config, log pipeline.Logger) (*Renderer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = pipeline.NopLogger()
	}
	r := &Renderer{
		Device:    device,
		Buffers:   NewGpuBufferManager(device),
		cfg:       cfg,
		log:       log,
		pipelines: map[string]*wgpu.ComputePipeline{},
	}
	for _, s := range shaders.Compute() {
		module, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
			Label:          s.Label + " CS",
			WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: s.Source},
		})
		if err != nil {
			return nil, fmt.Errorf("shader %q: %w", s.Label, err)
		}
		p, err := device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
			Label: s.Label + " Pipeline",
			Compute: wgpu.ProgrammableStageDescriptor{
				Module:     module,
				EntryPoint: "main",
			},
		})
		module.Release()
		if err != nil {
			return nil, fmt.Errorf("pipeline %q: %w", s.Label, err)
		}
		r.pipelines[s.Label] = p
	}
	r.Buffers.SetupVolume(cfg.VolumeDimension)
	log.Infof("gpu renderer ready, volume %d^3", cfg.VolumeDimension)
	return r, nil
}

func (r *Renderer) Config() pipeline.Config {
	return r.cfg
}

// SetConfig applies new tunables. A new volume dimension reallocates the
// volume resources.
func (r *Renderer) SetConfig(cfg pipeline.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.VolumeDimension != r.Buffers.Dimension {
		r.Buffers.SetupVolume(cfg.VolumeDimension)
		r.log.Infof("gpu volume reallocated at %d^3", cfg.VolumeDimension)
	}
	r.cfg = cfg
	return nil
}

func (r *Renderer) Resize(width, height int) {
	if width == r.Buffers.Width && height == r.Buffers.Height && r.Buffers.Output != nil {
		return
	}
	r.Buffers.SetupGBuffer(width, height)
}

// Update uploads the scene, camera and tunables for the next Encode.
func (r *Renderer) Update(scene *core.Scene, cam *core.Camera) {
	if cam.Width != r.Buffers.Width || cam.Height != r.Buffers.Height {
		panic(fmt.Sprintf("gpu: camera viewport %dx%d does not match %dx%d", cam.Width, cam.Height, r.Buffers.Width, r.Buffers.Height))
	}
	r.Buffers.UpdateScene(scene)
	r.Buffers.UpdateCamera(cam, scene)
	r.Buffers.UpdateParams(r.cfg)
}

// OutputView is the tone mapped frame written by the cone trace pass.
func (r *Renderer) OutputView() *wgpu.TextureView {
	return r.Buffers.OutputView
}

type binding struct {
	buf  *wgpu.Buffer
	view *wgpu.TextureView
}

func (r *Renderer) bindGroup(label string, entries ...binding) *wgpu.BindGroup {
	p := r.pipelines[label]
	layout := p.GetBindGroupLayout(0)
	defer layout.Release()
	desc := &wgpu.BindGroupDescriptor{Label: label + " BG", Layout: layout}
	for i, e := range entries {
		if e.view != nil {
			desc.Entries = append(desc.Entries, wgpu.BindGroupEntry{Binding: uint32(i), TextureView: e.view})
		} else {
			desc.Entries = append(desc.Entries, wgpu.BindGroupEntry{Binding: uint32(i), Buffer: e.buf, Size: wgpu.WholeSize})
		}
	}
	bg, err := r.Device.CreateBindGroup(desc)
	if err != nil {
		panic(fmt.Errorf("bind group %q: %w", label, err))
	}
	r.frameGroups = append(r.frameGroups, bg)
	return bg
}

func (r *Renderer) dispatch(encoder *wgpu.CommandEncoder, label string, bg *wgpu.BindGroup, x, y, z int) error {
	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(r.pipelines[label])
	pass.SetBindGroup(0, bg, nil)
	pass.DispatchWorkgroups(uint32(x), uint32(y), uint32(z))
	if err := pass.End(); err != nil {
		return fmt.Errorf("%s pass: %w", label, err)
	}
	return nil
}

func buf(b *wgpu.Buffer) binding      { return binding{buf: b} }
func tex(v *wgpu.TextureView) binding { return binding{view: v} }
func groups(n, size int) int          { return pipeline.WorkGroups(n, size) }

// Encode records clear, voxelize, inject radiance, mip base, the mip chain,
// geometry and cone trace, in that order.
func (r *Renderer) Encode(encoder *wgpu.CommandEncoder) error {
	m := r.Buffers
	if m.Output == nil {
		panic("gpu: Encode called before Resize")
	}
	for _, bg := range r.frameGroups {
		bg.Release()
	}
	r.frameGroups = r.frameGroups[:0]

	dim := m.Dimension
	n := groups(dim, 8)
	half := groups(dim/2, 8)

	steps := []struct {
		label   string
		bg      *wgpu.BindGroup
		x, y, z int
	}{
		{"clear voxels", r.bindGroup("clear voxels", buf(m.ParamsBuf), buf(m.AlbedoBuf), buf(m.NormalBuf), buf(m.EmissionBuf), tex(m.RadianceView)), n, n, n},
		{"voxelize", r.bindGroup("voxelize", buf(m.ParamsBuf), buf(m.TrianglesBuf), buf(m.AlbedoBuf), buf(m.NormalBuf), buf(m.EmissionBuf), buf(m.ProjectionsBuf)), max(groups(m.Counts.Triangles, 64), 1), 1, 1},
		{"inject radiance", r.bindGroup("inject radiance", buf(m.ParamsBuf), buf(m.AlbedoBuf), buf(m.NormalBuf), buf(m.EmissionBuf), buf(m.LightsBuf), tex(m.RadianceView)), n, n, n},
		{"mipmap base", r.bindGroup("mipmap base", buf(m.ParamsBuf), buf(m.NormalBuf), tex(m.RadianceView), tex(m.AtlasViews[0])), half, half, half},
	}
	for _, s := range steps {
		if err := r.dispatch(encoder, s.label, s.bg, s.x, s.y, s.z); err != nil {
			return err
		}
	}

	for level := 0; level+1 < len(m.AtlasViews); level++ {
		d := (dim / 4) >> level
		bg := r.bindGroup("mipmap volume", buf(m.ParamsBuf), buf(m.MipLevelBufs[level]), tex(m.AtlasViews[level]), tex(m.AtlasViews[level+1]))
		g := groups(d, 8)
		if err := r.dispatch(encoder, "mipmap volume", bg, g, g, g); err != nil {
			return err
		}
	}

	wx, wy := groups(m.Width, 8), groups(m.Height, 8)
	geometry := r.bindGroup("geometry", buf(m.ParamsBuf), buf(m.CameraBuf), buf(m.NodesBuf), buf(m.ObjectsBuf), buf(m.PrimitivesBuf), buf(m.MaterialBuf), buf(m.GBufferBuf))
	if err := r.dispatch(encoder, "geometry", geometry, wx, wy, 1); err != nil {
		return err
	}
	cone := r.bindGroup("cone trace", buf(m.ParamsBuf), buf(m.CameraBuf), buf(m.GBufferBuf), buf(m.LightsBuf), tex(m.RadianceView), tex(m.AtlasView), tex(m.OutputView))
	return r.dispatch(encoder, "cone trace", cone, wx, wy, 1)
}

// Upload replaces the output with a frame rendered elsewhere, such as the
// CPU ray tracer. img must match the viewport.
func (r *Renderer) Upload(img *image.RGBA) {
	m := r.Buffers
	b := img.Bounds()
	if b.Dx() != m.Width || b.Dy() != m.Height {
		panic(fmt.Sprintf("gpu: upload of %dx%d into %dx%d output", b.Dx(), b.Dy(), m.Width, m.Height))
	}
	r.Device.GetQueue().WriteTexture(m.Output.AsImageCopy(), img.Pix, &wgpu.TextureDataLayout{
		Offset:       0,
		BytesPerRow:  uint32(img.Stride),
		RowsPerImage: uint32(m.Height),
	}, &wgpu.Extent3D{Width: uint32(m.Width), Height: uint32(m.Height), DepthOrArrayLayers: 1})
}

func (r *Renderer) Release() {
	for _, bg := range r.frameGroups {
		bg.Release()
	}
	r.frameGroups = nil
	for _, p := range r.pipelines {
		p.Release()
	}
	r.Buffers.releaseVolume()
}
