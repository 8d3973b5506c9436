//go:build !nogpu

package app

import (
	"fmt"
	"time"

	"github.com/gekko3d/vct"
	"github.com/gekko3d/vct/voxelrt/rt/editor"
	"github.com/gekko3d/vct/voxelrt/rt/gpu"
	"github.com/gekko3d/vct/voxelrt/rt/shaders"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"
)

// App shows the engine's scene in a glfw window. Cone tracing scenes run on
// the GPU; the ray tracer and the CPU mode render on the CPU device and
// upload the frame.
type App struct {
	Window   *glfw.Window
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Queue    *wgpu.Queue
	Surface  *wgpu.Surface
	Config   *wgpu.SurfaceConfiguration

	RenderPipeline *wgpu.RenderPipeline
	Sampler        *wgpu.Sampler
	RenderBG       *wgpu.BindGroup // Blit

	Engine   *vct.Engine
	Renderer *gpu.Renderer
	Profiler *Profiler
	Editor   *editor.Editor
	log      vct.Logger

	// CPU renders every frame with the CPU pipeline.
	CPU bool
	// Degrees per second the demo cube turns.
	SpinSpeed float32

	dragging   bool
	lastX      float64
	lastY      float64
	renderView *wgpu.TextureView

	FrameCount int
	FPS        float64
	FPSTime    float64
	LastReport time.Time
}

func NewApp(window *glfw.Window, engine *vct.Engine, log vct.Logger) *App {
	return &App{
		Window:   window,
		Engine:   engine,
		Profiler: NewProfiler(),
		Editor:   editor.NewEditor(),
		log:      log,
	}
}

func (a *App) Init() error {
	a.Instance = wgpu.CreateInstance(nil)
	a.Surface = a.Instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(a.Window))

	adapter, err := a.Instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: a.Surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return fmt.Errorf("request adapter: %w", err)
	}
	a.Adapter = adapter

	a.Device, err = adapter.RequestDevice(nil)
	if err != nil {
		return fmt.Errorf("request device: %w", err)
	}
	a.Queue = a.Device.GetQueue()

	width, height := a.Window.GetFramebufferSize()
	caps := a.Surface.GetCapabilities(adapter)
	a.Config = &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      caps.Formats[0],
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   caps.AlphaModes[0],
	}
	a.Surface.Configure(adapter, a.Device, a.Config)

	blit, err := a.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Fullscreen VS/FS",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.FullscreenWGSL},
	})
	if err != nil {
		return fmt.Errorf("blit shader: %w", err)
	}
	defer blit.Release()

	a.RenderPipeline, err = a.Device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: "Blit Pipeline",
		Vertex: wgpu.VertexState{
			Module:     blit,
			EntryPoint: "vs_main",
		},
		Fragment: &wgpu.FragmentState{
			Module:     blit,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format:    a.Config.Format,
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology: wgpu.PrimitiveTopologyTriangleList,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return fmt.Errorf("blit pipeline: %w", err)
	}

	a.Sampler, err = a.Device.CreateSampler(&wgpu.SamplerDescriptor{
		MinFilter:     wgpu.FilterModeLinear,
		MagFilter:     wgpu.FilterModeLinear,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return fmt.Errorf("sampler: %w", err)
	}

	a.Renderer, err = gpu.NewRenderer(a.Device, a.Engine.Config().Pipeline, a.log)
	if err != nil {
		return fmt.Errorf("gpu renderer: %w", err)
	}
	a.Engine.Resize(width, height)
	a.Renderer.Resize(width, height)
	a.setupBindGroup()

	a.Engine.Clock = vct.NewClock()
	a.LastReport = time.Now()
	return nil
}

func (a *App) setupBindGroup() {
	view := a.Renderer.OutputView()
	if a.RenderBG != nil && view == a.renderView {
		return
	}
	if a.RenderBG != nil {
		a.RenderBG.Release()
	}
	var err error
	a.RenderBG, err = a.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout: a.RenderPipeline.GetBindGroupLayout(0),
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: view},
			{Binding: 1, Sampler: a.Sampler},
		},
	})
	if err != nil {
		panic(err)
	}
	a.renderView = view
}

func (a *App) Resize(w, h int) {
	if w <= 0 || h <= 0 {
		return
	}
	a.Config.Width = uint32(w)
	a.Config.Height = uint32(h)
	a.Surface.Configure(a.Adapter, a.Device, a.Config)
	a.Engine.Resize(w, h)
	a.Renderer.Resize(w, h)
	a.setupBindGroup()
}

func (a *App) cpuFrame() bool {
	return a.CPU || a.Engine.Config().Scene == vct.SceneRaytracing
}

// Update advances the engine and uploads whatever the next Render needs.
func (a *App) Update() {
	dt := float32(a.Engine.Clock.Tick().Seconds())
	a.Editor.Update(glfw.GetTime())
	if a.SpinSpeed != 0 {
		a.Engine.Demo.Spin(dt, a.SpinSpeed)
	}

	if a.cpuFrame() {
		a.Profiler.BeginScope("cpu frame")
		res := a.Engine.Frame(dt)
		a.Profiler.EndScope("cpu frame")
		a.Profiler.RecordFrame(res.Stats)
		a.Renderer.Upload(res.Image.Image())
		return
	}

	a.Profiler.BeginScope("step")
	a.Engine.Step(dt)
	a.Profiler.EndScope("step")

	if cfg := a.Engine.Config().Pipeline; cfg != a.Renderer.Config() {
		if err := a.Renderer.SetConfig(cfg); err != nil {
			a.log.Warnf("gpu config rejected: %v", err)
		}
	}
	a.Profiler.BeginScope("upload")
	a.Renderer.Update(a.Engine.Demo.Scene, a.Engine.Demo.Camera)
	a.Profiler.EndScope("upload")
	a.Profiler.SetCount("primitives", len(a.Engine.Demo.Scene.Primitives))
}

func (a *App) Render() {
	next, err := a.Surface.GetCurrentTexture()
	if err != nil {
		a.log.Errorf("GetCurrentTexture failed: %v", err)
		return
	}
	defer next.Release()

	view, err := next.CreateView(nil)
	if err != nil {
		a.log.Errorf("CreateView failed: %v", err)
		return
	}
	defer view.Release()

	encoder, err := a.Device.CreateCommandEncoder(nil)
	if err != nil {
		a.log.Errorf("CreateCommandEncoder failed: %v", err)
		return
	}

	a.Profiler.BeginScope("encode")
	if !a.cpuFrame() {
		if err := a.Renderer.Encode(encoder); err != nil {
			a.log.Errorf("cone tracing passes failed: %v", err)
		}
	}

	rPass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{0, 0, 0, 1},
		}},
	})
	rPass.SetPipeline(a.RenderPipeline)
	rPass.SetBindGroup(0, a.RenderBG, nil)
	rPass.Draw(3, 1, 0, 0)
	if err := rPass.End(); err != nil {
		a.log.Errorf("blit pass End failed: %v", err)
	}

	cmd, err := encoder.Finish(nil)
	if err != nil {
		a.log.Errorf("encoder Finish failed: %v", err)
		return
	}
	a.Queue.Submit(cmd)
	a.Surface.Present()
	a.Profiler.EndScope("encode")

	a.FrameCount++
	now := time.Now()
	if elapsed := now.Sub(a.LastReport); elapsed >= time.Second {
		a.FPS = float64(a.FrameCount) / elapsed.Seconds()
		a.FPSTime = elapsed.Seconds()
		a.FrameCount = 0
		a.LastReport = now
		a.Window.SetTitle(fmt.Sprintf("%s - %.1f fps", a.Engine.Config().Window.Title, a.FPS))
		if a.log.DebugEnabled() {
			a.log.Debugf("frame profile\n%s", a.Profiler.String())
		}
	}
}

// HandleCursor orbits the camera while the left button is held.
func (a *App) HandleCursor(x, y float64) {
	if a.dragging {
		const speed = 0.005
		a.Engine.Demo.Camera.Orbit(float32(a.lastX-x)*speed, float32(y-a.lastY)*speed)
	}
	a.lastX, a.lastY = x, y
}

// HandleButton orbits with the left button and selects with the right.
func (a *App) HandleButton(button glfw.MouseButton, action glfw.Action) {
	switch button {
	case glfw.MouseButtonLeft:
		a.dragging = action == glfw.Press
	case glfw.MouseButtonRight:
		if action != glfw.Press {
			return
		}
		// cursor positions are in window coordinates, the camera in pixels
		ww, wh := a.Window.GetSize()
		cam := a.Engine.Demo.Camera
		if ww == 0 || wh == 0 {
			return
		}
		px := int(a.lastX * float64(cam.Width) / float64(ww))
		py := int(a.lastY * float64(cam.Height) / float64(wh))
		if hit := a.Editor.Select(a.Engine.Demo.Scene, cam, px, py); hit != nil {
			a.log.Infof("selected %s at %v", hit.Drawable.Name, hit.Point)
		}
	}
}

func (a *App) HandleScroll(yoff float64) {
	if yoff > 0 {
		a.Engine.Demo.Camera.Zoom(0.9)
	} else if yoff < 0 {
		a.Engine.Demo.Camera.Zoom(1.1)
	}
}

// HandleKey toggles the composite terms with 1-4 and the CPU mode with C,
// kicks the physics bodies with space and rescales the selection with +/-.
func (a *App) HandleKey(key glfw.Key, action glfw.Action) {
	if action != glfw.Press {
		return
	}
	cfg := a.Engine.Config()
	p := &cfg.Pipeline
	switch key {
	case glfw.KeyEscape:
		a.Window.SetShouldClose(true)
		return
	case glfw.Key1:
		p.DirectLight = !p.DirectLight
	case glfw.Key2:
		p.IndirectDiffuse = !p.IndirectDiffuse
	case glfw.Key3:
		p.IndirectSpecular = !p.IndirectSpecular
	case glfw.Key4:
		p.AmbientOcclusion = !p.AmbientOcclusion
	case glfw.KeyC:
		a.CPU = !a.CPU
		a.log.Infof("cpu rendering %v", a.CPU)
		return
	case glfw.KeySpace:
		for _, b := range a.Engine.Demo.Physics.Bodies {
			if !b.Static {
				b.ApplyImpulse(mgl32.Vec3{0, 2 * b.Mass, 0})
			}
		}
		return
	case glfw.KeyEqual, glfw.KeyKPAdd:
		a.Editor.ScaleSelected(1.1, glfw.GetTime())
		return
	case glfw.KeyMinus, glfw.KeyKPSubtract:
		a.Editor.ScaleSelected(1/1.1, glfw.GetTime())
		return
	case glfw.KeyP:
		a.log.Infof("frame profile\n%s", a.Profiler.String())
		return
	default:
		return
	}
	a.Engine.ApplyConfig(cfg)
}

func (a *App) Release() {
	if a.RenderBG != nil {
		a.RenderBG.Release()
	}
	if a.Renderer != nil {
		a.Renderer.Release()
	}
	if a.RenderPipeline != nil {
		a.RenderPipeline.Release()
	}
	if a.Sampler != nil {
		a.Sampler.Release()
	}
}
