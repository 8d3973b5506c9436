package core

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

type Material struct {
	Diffuse   mgl32.Vec4
	Specular  mgl32.Vec4
	Emission  mgl32.Vec4
	Shininess float32
}

func NewMaterial(diffuse, emission mgl32.Vec4) Material {
	return Material{
		Diffuse:   diffuse,
		Specular:  mgl32.Vec4{0.2, 0.2, 0.2, 1},
		Emission:  emission,
		Shininess: 16,
	}
}

// Helper for default white
func DefaultMaterial() Material {
	return NewMaterial(mgl32.Vec4{1, 1, 1, 1}, mgl32.Vec4{0, 0, 0, 0})
}

func Color(r, g, b float32) mgl32.Vec4 {
	return mgl32.Vec4{r, g, b, 1}
}

// Matches WGSL Material
// struct Material {
//    diffuse : vec4<f32>;
//    specular : vec4<f32>;
//    emission : vec4<f32>;
//    shininess : f32; padding : f32[3];
// }; -> 64 bytes
const MaterialGPUSize = 64

func (m Material) ToBytes() []byte {
	buf := make([]byte, MaterialGPUSize)
	put := func(off int, v mgl32.Vec4) {
		for i := 0; i < 4; i++ {
			binary.LittleEndian.PutUint32(buf[off+i*4:], math.Float32bits(v[i]))
		}
	}
	put(0, m.Diffuse)
	put(16, m.Specular)
	put(32, m.Emission)
	binary.LittleEndian.PutUint32(buf[48:], math.Float32bits(m.Shininess))
	return buf
}
