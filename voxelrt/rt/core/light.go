package core

import (
	"encoding/binary"
	"math"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

type LightType uint32

const (
	// LightInfinite is infinitely far away; its rays are parallel to Direction.
	LightInfinite LightType = iota
	LightPoint
	// LightSpot radiates around Direction within SpotCutoff.
	LightSpot
)

func (t LightType) String() string {
	switch t {
	case LightInfinite:
		return "infinite"
	case LightPoint:
		return "point"
	case LightSpot:
		return "spot"
	}
	return "unknown"
}

type Light struct {
	Type      LightType
	Position  mgl32.Vec3
	Direction mgl32.Vec3
	Color     mgl32.Vec3
	Intensity float32
	// Constant, linear and quadratic falloff terms.
	Attenuation  mgl32.Vec3
	SpotExponent float32
	// Half angle of the spot cone in radians.
	SpotCutoff float32
}

func NewLight(t LightType, color mgl32.Vec3, intensity float32) Light {
	return Light{
		Type:         t,
		Direction:    mgl32.Vec3{0, 0, 1},
		Color:        color,
		Intensity:    intensity,
		Attenuation:  mgl32.Vec3{1, 0, 0},
		SpotExponent: 1,
		SpotCutoff:   math32.Pi / 2,
	}
}

// DefaultLight is the white point light the demo scenes start with.
func DefaultLight() Light {
	l := NewLight(LightPoint, mgl32.Vec3{1, 1, 1}, 1)
	l.Position = mgl32.Vec3{0, 0.75, -0.5}
	l.Direction = mgl32.Vec3{1, 0, 0}
	return l
}

// Incidence returns the unit vector from p toward the light, the distance to
// it and the light's colored radiance arriving at p.
func (l Light) Incidence(p mgl32.Vec3) (mgl32.Vec3, float32, mgl32.Vec3) {
	if l.Type == LightInfinite {
		dir := l.Direction.Mul(-1)
		if dir.Len() > 0 {
			dir = dir.Normalize()
		}
		return dir, math32.Inf(1), l.Color.Mul(l.Intensity)
	}

	toLight := l.Position.Sub(p)
	dist := toLight.Len()
	if dist == 0 {
		return mgl32.Vec3{0, 1, 0}, 0, l.Color.Mul(l.Intensity)
	}
	toLight = toLight.Mul(1 / dist)

	att := l.Attenuation
	denom := att.X() + att.Y()*dist + att.Z()*dist*dist
	falloff := float32(1)
	if denom > 0 {
		falloff = 1 / denom
	}

	if l.Type == LightSpot {
		axis := l.Direction
		if axis.Len() > 0 {
			axis = axis.Normalize()
		}
		cosAngle := toLight.Mul(-1).Dot(axis)
		if cosAngle < math32.Cos(l.SpotCutoff) {
			return toLight, dist, mgl32.Vec3{}
		}
		falloff *= math32.Pow(max(cosAngle, 0), l.SpotExponent)
	}
	return toLight, dist, l.Color.Mul(l.Intensity * falloff)
}

// Matches WGSL Light
// struct Light {
//    position : vec4<f32>; xyz, type
//    direction : vec4<f32>; xyz, cos(spot_cutoff)
//    color : vec4<f32>; rgb, intensity
//    params : vec4<f32>; constant, linear, quadratic, spot_exponent
// }; -> 64 bytes
const LightGPUSize = 64

func (l Light) ToBytes() []byte {
	buf := make([]byte, LightGPUSize)
	vals := [16]float32{
		l.Position.X(), l.Position.Y(), l.Position.Z(), float32(l.Type),
		l.Direction.X(), l.Direction.Y(), l.Direction.Z(), math32.Cos(l.SpotCutoff),
		l.Color.X(), l.Color.Y(), l.Color.Z(), l.Intensity,
		l.Attenuation.X(), l.Attenuation.Y(), l.Attenuation.Z(), l.SpotExponent,
	}
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func LightsBytes(lights []Light) []byte {
	if len(lights) == 0 {
		return make([]byte, LightGPUSize)
	}
	out := make([]byte, 0, len(lights)*LightGPUSize)
	for _, l := range lights {
		out = append(out, l.ToBytes()...)
	}
	return out
}
