package volume

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextureMipDimensions(t *testing.T) {
	tex := NewTexture3D("t", 64, MipLevels(64))
	require.Equal(t, 7, tex.Levels())
	for l := 0; l < tex.Levels(); l++ {
		assert.Equal(t, 64>>uint(l), tex.Dim(l))
	}
	assert.Equal(t, 1, tex.Dim(tex.Levels()-1))
}

func TestStoreLoadRoundsToRGBA8(t *testing.T) {
	tex := NewTexture3D("t", 4, 1)
	tex.Store(0, 1, 2, 3, mgl32.Vec4{1, 0.5, 0, 2})
	assert.Equal(t, [4]uint8{255, 128, 0, 255}, tex.LoadRaw(0, 1, 2, 3))
	assert.Equal(t, 1, tex.CountNonZero(0))

	tex.Clear()
	assert.Equal(t, 0, tex.CountNonZero(0))
}

func TestSampleInterpolates(t *testing.T) {
	tex := NewTexture3D("t", 2, 2)
	tex.Store(0, 0, 0, 0, mgl32.Vec4{1, 1, 1, 1})
	tex.Store(1, 0, 0, 0, mgl32.Vec4{0.5, 0.5, 0.5, 0.5})

	// texel center of (0,0,0)
	c := tex.Sample(mgl32.Vec3{0.25, 0.25, 0.25}, 0)
	assert.InDelta(t, 1, c.W(), 1e-6)

	// halfway between the two texel centers along x
	m := tex.Sample(mgl32.Vec3{0.5, 0.25, 0.25}, 0)
	assert.InDelta(t, 0.5, m.W(), 1e-6)

	// clamps outside the texture
	o := tex.Sample(mgl32.Vec3{-3, -3, -3}, 0)
	assert.InDelta(t, 1, o.W(), 1e-6)

	// lod 0.5 blends level 0 and level 1
	l := tex.Sample(mgl32.Vec3{0.25, 0.25, 0.25}, 0.5)
	assert.InDelta(t, 0.75, l.W(), 0.01)
}

func TestVoxelVolumeLayout(t *testing.T) {
	v := NewVoxelVolume(128, 2)
	assert.InDelta(t, 2.0/128, v.VoxelSize(), 1e-9)
	assert.InDelta(t, 0.5, v.VoxelScale(), 1e-9)
	assert.Equal(t, mgl32.Vec3{-1, -1, -1}, v.Min)
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, v.Max)

	for d := range v.Directional {
		assert.Equal(t, 64, v.Directional[d].Dim(0))
		assert.Equal(t, 7, v.Directional[d].Levels())
	}

	x, y, z, ok := v.WorldToVoxel(mgl32.Vec3{-1, -1, -1})
	assert.True(t, ok)
	assert.Equal(t, [3]int{0, 0, 0}, [3]int{x, y, z})

	x, y, z, ok = v.WorldToVoxel(mgl32.Vec3{1, 1, 1})
	assert.True(t, ok, "max face belongs to the last cell")
	assert.Equal(t, [3]int{127, 127, 127}, [3]int{x, y, z})

	_, _, _, ok = v.WorldToVoxel(mgl32.Vec3{1.01, 0, 0})
	assert.False(t, ok)

	c := v.VoxelCenter(64, 64, 64)
	assert.InDelta(t, v.VoxelSize()/2, c.X(), 1e-6)
}

func TestInvalidDimensionPanics(t *testing.T) {
	assert.False(t, ValidDimension(96))
	assert.False(t, ValidDimension(2))
	assert.True(t, ValidDimension(4))
	assert.Panics(t, func() { NewVoxelVolume(100, 2) })
}

func TestNormalEncoding(t *testing.T) {
	n := mgl32.Vec3{0, -1, 0}
	assert.Equal(t, mgl32.Vec3{0.5, 0, 0.5}, EncodeNormal(n))
	assert.Equal(t, n, DecodeNormal(EncodeNormal(n)))
}

func TestDirectionAxis(t *testing.T) {
	a, s := NegY.Axis()
	assert.Equal(t, 1, a)
	assert.Equal(t, float32(-1), s)
	d, err := ParseDirection("+z")
	require.NoError(t, err)
	assert.Equal(t, PosZ, d)
	_, err = ParseDirection("up")
	assert.Error(t, err)
}

func TestGBufferClearMarksBackground(t *testing.T) {
	g := NewGBuffer(4, 3)
	g.SetDepth(1, 1, 0.3)
	g.Albedo.Store(1, 1, mgl32.Vec4{1, 0, 0, 1})
	g.Clear()
	assert.Equal(t, float32(1), g.DepthAt(1, 1))
	assert.Equal(t, mgl32.Vec4{}, g.Albedo.Load(1, 1))
	assert.Equal(t, 4, g.Albedo.Image().Bounds().Dx())
}
