package pipeline

import (
	"fmt"
	"time"

	"github.com/gekko3d/vct/voxelrt/rt/core"
	"github.com/gekko3d/vct/voxelrt/rt/volume"

	"github.com/go-gl/mathgl/mgl32"
)

// Logger is the subset of the engine logger the renderer reports through.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}

// NopLogger discards everything.
func NopLogger() Logger {
	return nopLogger{}
}

// StageTiming is the wall time of one stage, measured up to its barrier.
type StageTiming struct {
	Name     string
	Duration time.Duration
}

type FrameStats struct {
	Stages        []StageTiming
	Voxelized     int
	MipDimensions []int
}

// Renderer owns every texture of the cone tracing pipeline. Textures are
// allocated by Reinit and Resize only and reused across frames.
type Renderer struct {
	cfg Config
	dev Device
	log Logger

	Volume  *volume.VoxelVolume
	GBuffer *volume.GBuffer
	Output  *volume.Texture2D
	// Orthographic projections of the voxel grid along x, y and z. Each maps
	// the volume onto clip space with the projection axis in z.
	Projections [3]mgl32.Mat4

	locks shardLocks
}

// NewRenderer validates cfg and allocates the voxel volume. The G-buffer is
// allocated by the first Resize.
func NewRenderer(cfg Config, dev Device, log Logger) (*Renderer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}
	if log == nil {
		log = nopLogger{}
	}
	r := &Renderer{cfg: cfg, dev: dev, log: log}
	r.Reinit(cfg.VolumeDimension)
	return r, nil
}

func (r *Renderer) Config() Config {
	return r.cfg
}

func (r *Renderer) Device() Device {
	return r.dev
}

// SetConfig swaps the tunables, reallocating the volume when its layout changed.
func (r *Renderer) SetConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid pipeline config: %w", err)
	}
	layout := cfg.VolumeDimension != r.cfg.VolumeDimension || cfg.VolumeSize != r.cfg.VolumeSize
	r.cfg = cfg
	if layout {
		r.Reinit(cfg.VolumeDimension)
	}
	return nil
}

// Reinit reallocates the voxel volume at a new dimension.
func (r *Renderer) Reinit(dim int) {
	if !volume.ValidDimension(dim) {
		r.log.Errorf("reinit with invalid volume dimension %d", dim)
		panic(fmt.Sprintf("pipeline: volume dimension %d is not a power of two >= 4", dim))
	}
	r.cfg.VolumeDimension = dim
	r.Volume = volume.NewVoxelVolume(dim, r.cfg.VolumeSize)
	r.Projections = VoxelProjections(r.Volume.Min, r.Volume.Size)
	r.log.Debugf("voxel volume %d^3 over %v..%v", dim, r.Volume.Min, r.Volume.Max)
}

// Resize reallocates the viewport sized targets.
func (r *Renderer) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		panic(fmt.Sprintf("pipeline: invalid viewport %dx%d", width, height))
	}
	if r.GBuffer != nil && r.GBuffer.Width == width && r.GBuffer.Height == height {
		return
	}
	r.GBuffer = volume.NewGBuffer(width, height)
	r.Output = volume.NewTexture2D("output", width, height)
}

// VoxelProjections builds one orthographic projection per axis for the cube
// of edge size starting at lo. The projection for axis a sends the other two
// axes to clip x and y in cyclic order and axis a to clip z.
func VoxelProjections(lo mgl32.Vec3, size float32) [3]mgl32.Mat4 {
	// world -> [-1, 1]^3
	s := 2 / size
	normalize := mgl32.Translate3D(-1, -1, -1).Mul4(mgl32.Scale3D(s, s, s)).Mul4(mgl32.Translate3D(-lo.X(), -lo.Y(), -lo.Z()))
	var out [3]mgl32.Mat4
	for a := 0; a < 3; a++ {
		u, w := (a+1)%3, (a+2)%3
		var swizzle mgl32.Mat4
		swizzle.Set(0, u, 1)
		swizzle.Set(1, w, 1)
		swizzle.Set(2, a, 1)
		swizzle.Set(3, 3, 1)
		out[a] = swizzle.Mul4(normalize)
	}
	return out
}

// Frame runs the whole pipeline for one frame: clear, voxelize, inject
// radiance, mip base, mip chain, geometry and cone trace. A barrier
// separates every stage from the next one.
func (r *Renderer) Frame(scene *core.Scene, cam *core.Camera) FrameStats {
	if r.Volume == nil || r.GBuffer == nil {
		r.log.Errorf("frame before Reinit/Resize")
		panic("pipeline: Frame called before Reinit and Resize")
	}
	if cam.Width != r.GBuffer.Width || cam.Height != r.GBuffer.Height {
		r.log.Errorf("camera viewport %dx%d does not match render targets %dx%d", cam.Width, cam.Height, r.GBuffer.Width, r.GBuffer.Height)
		panic(fmt.Sprintf("pipeline: camera viewport %dx%d does not match render targets %dx%d", cam.Width, cam.Height, r.GBuffer.Width, r.GBuffer.Height))
	}

	var stats FrameStats
	stage := func(name string, run func()) {
		start := time.Now()
		run()
		r.dev.Barrier(BarrierAll)
		stats.Stages = append(stats.Stages, StageTiming{Name: name, Duration: time.Since(start)})
	}

	stage("clear", r.Clear)
	stage("voxelize", func() { stats.Voxelized = r.Voxelize(scene) })
	stage("inject radiance", func() { r.InjectRadiance(scene.Lights) })
	stage("mipmap base", r.MipMapBase)
	// the chain places its own barriers between levels
	stage("mipmap volume", func() { stats.MipDimensions = r.MipMapVolume() })
	stage("geometry", func() { r.Geometry(scene, cam) })
	stage("cone trace", func() { r.ConeTrace(scene, cam) })
	return stats
}

// VoxelizeOnly runs the voxel chain without rendering an image.
func (r *Renderer) VoxelizeOnly(scene *core.Scene) {
	if r.Volume == nil {
		panic("pipeline: VoxelizeOnly called before Reinit")
	}
	r.Clear()
	r.dev.Barrier(BarrierAll)
	r.Voxelize(scene)
	r.dev.Barrier(BarrierAll)
	r.InjectRadiance(scene.Lights)
	r.dev.Barrier(BarrierAll)
	r.MipMapBase()
	r.dev.Barrier(BarrierAll)
	r.MipMapVolume()
	r.dev.Barrier(BarrierAll)
}
