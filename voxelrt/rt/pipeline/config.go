package pipeline

import (
	"fmt"

	"github.com/gekko3d/vct/voxelrt/rt/volume"
)

// Config holds the pipeline wide tunables. Nothing here is per object.
type Config struct {
	// Voxels per axis. Must be a power of two so the mip chain ends at 1.
	VolumeDimension int `yaml:"volume_dimension"`
	// Edge length of the voxelized cube in world units, centered on the origin.
	VolumeSize float32 `yaml:"volume_size"`

	AOAlpha             float32 `yaml:"ao_alpha"`
	AOFalloff           float32 `yaml:"ao_falloff"`
	MaxTracingDistance  float32 `yaml:"max_tracing_distance"`
	SamplingFactor      float32 `yaml:"sampling_factor"`
	BounceStrength      float32 `yaml:"bounce_strength"`
	ConeShadowTolerance float32 `yaml:"cone_shadow_tolerance"`
	ConeShadowAperture  float32 `yaml:"cone_shadow_aperture"`
	// Occlusion cap for the shadow march during radiance injection; 0 disables it.
	TraceShadowHit float32 `yaml:"trace_shadow_hit"`
	// Dilates voxelized triangles by half a voxel.
	ConservativeRasterization bool `yaml:"conservative_rasterization"`
	Exposure                  float32 `yaml:"exposure"`

	// Enable or disable terms of the composite.
	DirectLight      bool `yaml:"direct_light"`
	IndirectDiffuse  bool `yaml:"indirect_diffuse"`
	IndirectSpecular bool `yaml:"indirect_specular"`
	AmbientOcclusion bool `yaml:"ambient_occlusion"`
}

func DefaultConfig() Config {
	return Config{
		VolumeDimension:     128,
		VolumeSize:          2,
		AOAlpha:             0,
		AOFalloff:           800,
		MaxTracingDistance:  0.95,
		SamplingFactor:      0.1,
		BounceStrength:      0.2,
		ConeShadowTolerance: 0.2,
		ConeShadowAperture:  0.2,
		TraceShadowHit:      0.8,
		Exposure:            1.5,
		DirectLight:         true,
		IndirectDiffuse:     true,
		IndirectSpecular:    true,
		AmbientOcclusion:    true,
	}
}

func (c Config) Validate() error {
	if !volume.ValidDimension(c.VolumeDimension) {
		return fmt.Errorf("volume dimension %d must be a power of two >= 4", c.VolumeDimension)
	}
	if c.VolumeSize <= 0 {
		return fmt.Errorf("volume size %g must be positive", c.VolumeSize)
	}
	if c.SamplingFactor <= 0 {
		return fmt.Errorf("sampling factor %g must be positive", c.SamplingFactor)
	}
	if c.MaxTracingDistance <= 0 {
		return fmt.Errorf("max tracing distance %g must be positive", c.MaxTracingDistance)
	}
	if c.TraceShadowHit < 0 || c.TraceShadowHit > 1 {
		return fmt.Errorf("trace shadow hit %g must be within [0, 1]", c.TraceShadowHit)
	}
	return nil
}

func (c Config) VoxelSize() float32 {
	return c.VolumeSize / float32(c.VolumeDimension)
}

func (c Config) VoxelScale() float32 {
	return 1 / c.VolumeSize
}

// WorkGroups returns ceil(n / size).
func WorkGroups(n, size int) int {
	return (n + size - 1) / size
}
