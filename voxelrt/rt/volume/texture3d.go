package volume

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

type texLevel struct {
	dim  int
	data []uint8
}

// Texture3D is a cubic RGBA8 texture with an optional mip chain. Level l has
// max(dim>>l, 1) texels per side. Writes to distinct texels may run in
// parallel; anything else needs external synchronization.
type Texture3D struct {
	Label  string
	levels []texLevel
}

func NewTexture3D(label string, dim, levels int) *Texture3D {
	if dim < 1 || levels < 1 {
		panic(fmt.Sprintf("volume: invalid texture %q: dim=%d levels=%d", label, dim, levels))
	}
	t := &Texture3D{Label: label}
	for l := 0; l < levels; l++ {
		d := max(dim>>uint(l), 1)
		t.levels = append(t.levels, texLevel{dim: d, data: make([]uint8, d*d*d*4)})
	}
	return t
}

func (t *Texture3D) Levels() int {
	return len(t.levels)
}

func (t *Texture3D) Dim(level int) int {
	return t.levels[level].dim
}

func (t *Texture3D) offset(level, x, y, z int) int {
	d := t.levels[level].dim
	return ((z*d+y)*d + x) * 4
}

func (t *Texture3D) InBounds(level, x, y, z int) bool {
	d := t.levels[level].dim
	return x >= 0 && y >= 0 && z >= 0 && x < d && y < d && z < d
}

func (t *Texture3D) LoadRaw(level, x, y, z int) [4]uint8 {
	o := t.offset(level, x, y, z)
	px := t.levels[level].data[o : o+4]
	return [4]uint8{px[0], px[1], px[2], px[3]}
}

func (t *Texture3D) StoreRaw(level, x, y, z int, v [4]uint8) {
	o := t.offset(level, x, y, z)
	copy(t.levels[level].data[o:o+4], v[:])
}

// Load returns the texel normalized to [0, 1].
func (t *Texture3D) Load(level, x, y, z int) mgl32.Vec4 {
	return Unpack(t.LoadRaw(level, x, y, z))
}

func (t *Texture3D) Store(level, x, y, z int, v mgl32.Vec4) {
	t.StoreRaw(level, x, y, z, Pack(v))
}

func (t *Texture3D) Clear() {
	for l := range t.levels {
		t.ClearLevel(l)
	}
}

func (t *Texture3D) ClearLevel(level int) {
	clear(t.levels[level].data)
}

// Bytes exposes the raw storage of one level, x fastest.
func (t *Texture3D) Bytes(level int) []byte {
	return t.levels[level].data
}

// CountNonZero counts texels with any non-zero channel.
func (t *Texture3D) CountNonZero(level int) int {
	data := t.levels[level].data
	n := 0
	for i := 0; i < len(data); i += 4 {
		if data[i]|data[i+1]|data[i+2]|data[i+3] != 0 {
			n++
		}
	}
	return n
}

// Sample filters trilinearly inside a level and linearly between levels.
// uvw is in [0, 1]; coordinates outside are clamped to the edge.
func (t *Texture3D) Sample(uvw mgl32.Vec3, lod float32) mgl32.Vec4 {
	maxLevel := float32(len(t.levels) - 1)
	lod = math32.Max(0, math32.Min(lod, maxLevel))
	lo := int(math32.Floor(lod))
	frac := lod - float32(lo)
	a := t.sampleLevel(lo, uvw)
	if frac == 0 || lo+1 >= len(t.levels) {
		return a
	}
	b := t.sampleLevel(lo+1, uvw)
	return a.Mul(1 - frac).Add(b.Mul(frac))
}

func (t *Texture3D) sampleLevel(level int, uvw mgl32.Vec3) mgl32.Vec4 {
	d := t.levels[level].dim
	var i0, i1 [3]int
	var f [3]float32
	for a := 0; a < 3; a++ {
		c := uvw[a]*float32(d) - 0.5
		fl := math32.Floor(c)
		f[a] = c - fl
		i0[a] = clampInt(int(fl), 0, d-1)
		i1[a] = clampInt(int(fl)+1, 0, d-1)
	}

	var out mgl32.Vec4
	for corner := 0; corner < 8; corner++ {
		w := float32(1)
		var idx [3]int
		for a := 0; a < 3; a++ {
			if corner&(1<<uint(a)) != 0 {
				idx[a] = i1[a]
				w *= f[a]
			} else {
				idx[a] = i0[a]
				w *= 1 - f[a]
			}
		}
		if w == 0 {
			continue
		}
		out = out.Add(t.Load(level, idx[0], idx[1], idx[2]).Mul(w))
	}
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Pack converts a [0, 1] color to RGBA8 with rounding.
func Pack(v mgl32.Vec4) [4]uint8 {
	var out [4]uint8
	for i := 0; i < 4; i++ {
		c := math32.Max(0, math32.Min(1, v[i]))
		out[i] = uint8(c*255 + 0.5)
	}
	return out
}

func Unpack(p [4]uint8) mgl32.Vec4 {
	return mgl32.Vec4{
		float32(p[0]) / 255,
		float32(p[1]) / 255,
		float32(p[2]) / 255,
		float32(p[3]) / 255,
	}
}
