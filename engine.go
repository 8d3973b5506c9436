package vct

import (
	"fmt"
	"sync"
	"time"

	"github.com/gekko3d/vct/voxelrt/rt/pipeline"
	"github.com/gekko3d/vct/voxelrt/rt/volume"
)

// Clock measures the time between ticks.
type Clock struct {
	Time time.Time
	Dt   time.Duration
}

func NewClock() Clock {
	return Clock{Time: time.Now()}
}

func (c *Clock) Tick() time.Duration {
	now := time.Now()
	c.Dt = now.Sub(c.Time)
	c.Time = now
	return c.Dt
}

// FrameResult is what one engine frame produced.
type FrameResult struct {
	Image *volume.Texture2D
	Stats pipeline.FrameStats
	// Whether the scene octree was rebuilt this frame.
	Rebuilt bool
}

// Engine runs physics, scene commit and rendering in that order every frame.
// The cone tracing scenes go through the voxel pipeline and the raytracing
// scene through the octree ray tracer.
type Engine struct {
	log      Logger
	cfg      Config
	Demo     *Demo
	Device   *pipeline.CPUDevice
	Renderer *pipeline.Renderer
	Clock    Clock

	mu      sync.Mutex
	pending *Config
}

func NewEngine(cfg Config, log Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if log == nil {
		log = NewNopLogger()
	}
	demo, err := NewDemo(cfg)
	if err != nil {
		return nil, err
	}
	dev := pipeline.NewCPUDevice(cfg.Workers)
	r, err := pipeline.NewRenderer(cfg.Pipeline, dev, log)
	if err != nil {
		dev.Close()
		return nil, err
	}
	r.Resize(cfg.Window.Width, cfg.Window.Height)
	log.Infof("engine: scene %q, volume %d^3, viewport %dx%d", cfg.Scene, cfg.Pipeline.VolumeDimension, cfg.Window.Width, cfg.Window.Height)
	return &Engine{
		log:      log,
		cfg:      cfg,
		Demo:     demo,
		Device:   dev,
		Renderer: r,
		Clock:    NewClock(),
	}, nil
}

func (e *Engine) Config() Config {
	return e.cfg
}

// ApplyConfig queues cfg for the start of the next frame. It is safe to call
// from another goroutine, such as a config watcher.
func (e *Engine) ApplyConfig(cfg Config) {
	e.mu.Lock()
	e.pending = &cfg
	e.mu.Unlock()
}

func (e *Engine) applyPending() error {
	e.mu.Lock()
	next := e.pending
	e.pending = nil
	e.mu.Unlock()
	if next == nil {
		return nil
	}
	if err := next.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	prev := e.cfg
	if err := e.Renderer.SetConfig(next.Pipeline); err != nil {
		return err
	}
	if next.Window.Width != prev.Window.Width || next.Window.Height != prev.Window.Height {
		e.Renderer.Resize(next.Window.Width, next.Window.Height)
		e.Demo.Camera.Width = next.Window.Width
		e.Demo.Camera.Height = next.Window.Height
	}
	if next.Scene != prev.Scene || next.Physics != prev.Physics {
		demo, err := NewDemo(*next)
		if err != nil {
			return err
		}
		e.Demo = demo
	}
	if next.Debug != prev.Debug {
		e.log.SetDebug(next.Debug)
	}
	if next.Workers != prev.Workers {
		e.log.Warnf("engine: worker count changes apply on restart")
	}
	e.cfg = *next
	e.log.Infof("engine: config applied, volume %d^3", next.Pipeline.VolumeDimension)
	return nil
}

// Tick runs one frame with the wall time since the previous tick.
func (e *Engine) Tick() FrameResult {
	dt := e.Clock.Tick()
	return e.Frame(float32(dt.Seconds()))
}

// Step applies a queued config, advances physics by dt seconds and commits
// the scene. It reports whether the octree was rebuilt. A queued config that
// fails validation is logged and dropped.
func (e *Engine) Step(dt float32) bool {
	if err := e.applyPending(); err != nil {
		e.log.Warnf("engine: config rejected: %v", err)
	}
	d := e.Demo
	if e.cfg.Physics.Enabled {
		d.Physics.Step(dt)
	}
	rebuilt := d.Scene.Commit(e.cfg.OctreeOptions())
	if rebuilt {
		e.log.Debugf("engine: octree rebuilt, %d primitives", len(d.Scene.Primitives))
	}
	return rebuilt
}

// Frame steps the engine and renders the scene on the CPU device.
func (e *Engine) Frame(dt float32) FrameResult {
	var res FrameResult
	res.Rebuilt = e.Step(dt)
	d := e.Demo
	cam := d.Camera
	if out := e.Renderer.Output; out == nil || out.Width != cam.Width || out.Height != cam.Height {
		guard(e.log, "engine: camera viewport %dx%d does not match the render targets", cam.Width, cam.Height)
	}
	if e.cfg.Scene == SceneRaytracing {
		start := time.Now()
		e.Renderer.Raytrace(d.Scene, cam, e.cfg.ReflectionDepth)
		res.Stats.Stages = []pipeline.StageTiming{{Name: "raytrace", Duration: time.Since(start)}}
	} else {
		res.Stats = e.Renderer.Frame(d.Scene, cam)
	}
	res.Image = e.Renderer.Output
	return res
}

// Resize changes the viewport immediately. Zero sizes, as reported for a
// minimized window, are ignored.
func (e *Engine) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	e.cfg.Window.Width, e.cfg.Window.Height = width, height
	e.Renderer.Resize(width, height)
	e.Demo.Camera.Width, e.Demo.Camera.Height = width, height
}

func (e *Engine) Close() {
	e.Device.Close()
}
