package volume

import (
	"fmt"
	"math/bits"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Direction indexes the six anisotropic mip volumes.
type Direction int

const (
	PosX Direction = iota
	NegX
	PosY
	NegY
	PosZ
	NegZ
)

var directionNames = [6]string{"+x", "-x", "+y", "-y", "+z", "-z"}

func (d Direction) String() string {
	if d < 0 || int(d) >= len(directionNames) {
		return "?"
	}
	return directionNames[d]
}

// Axis returns the axis index and the sign of the direction.
func (d Direction) Axis() (int, float32) {
	sign := float32(1)
	if d%2 == 1 {
		sign = -1
	}
	return int(d) / 2, sign
}

// ParseDirection accepts the String form of a direction.
func ParseDirection(s string) (Direction, error) {
	for i, n := range directionNames {
		if n == s {
			return Direction(i), nil
		}
	}
	return 0, fmt.Errorf("unknown direction %q", s)
}

// VoxelVolume is the set of 3D textures the cone tracer works on. The grid
// covers the cube [Min, Max] with Dimension cells per side.
//
// The normal texture's alpha holds the number of fragments averaged into the
// cell so far, so its rgb stays a running mean.
type VoxelVolume struct {
	Dimension int
	Size      float32
	Min       mgl32.Vec3
	Max       mgl32.Vec3

	Albedo   *Texture3D
	Normal   *Texture3D
	Emission *Texture3D
	Radiance *Texture3D
	// Directional[d] level 0 has Dimension/2 cells per side.
	Directional [6]*Texture3D
}

// ValidDimension reports whether dim can back a volume and its mip chain.
func ValidDimension(dim int) bool {
	return dim >= 4 && bits.OnesCount(uint(dim)) == 1
}

func NewVoxelVolume(dim int, size float32) *VoxelVolume {
	if !ValidDimension(dim) {
		panic(fmt.Sprintf("volume: dimension %d is not a power of two >= 4", dim))
	}
	half := size / 2
	v := &VoxelVolume{
		Dimension: dim,
		Size:      size,
		Min:       mgl32.Vec3{-half, -half, -half},
		Max:       mgl32.Vec3{half, half, half},
		Albedo:    NewTexture3D("albedo", dim, 1),
		Normal:    NewTexture3D("normal", dim, 1),
		Emission:  NewTexture3D("emission", dim, 1),
		Radiance:  NewTexture3D("radiance", dim, 1),
	}
	mipDim := dim / 2
	for d := range v.Directional {
		v.Directional[d] = NewTexture3D(fmt.Sprintf("voxels %s", Direction(d)), mipDim, MipLevels(mipDim))
	}
	return v
}

// MipLevels is log2(dim) + 1.
func MipLevels(dim int) int {
	return bits.Len(uint(dim))
}

func (v *VoxelVolume) VoxelSize() float32 {
	return v.Size / float32(v.Dimension)
}

func (v *VoxelVolume) VoxelScale() float32 {
	return 1 / v.Size
}

// WorldToUVW maps a world position to normalized volume coordinates.
func (v *VoxelVolume) WorldToUVW(p mgl32.Vec3) mgl32.Vec3 {
	return p.Sub(v.Min).Mul(v.VoxelScale())
}

// WorldToVoxel returns the cell holding p and whether p is inside the grid.
func (v *VoxelVolume) WorldToVoxel(p mgl32.Vec3) (int, int, int, bool) {
	uvw := v.WorldToUVW(p)
	var c [3]int
	inside := true
	for a := 0; a < 3; a++ {
		f := uvw[a] * float32(v.Dimension)
		c[a] = int(math32.Floor(f))
		if c[a] == v.Dimension && f == float32(v.Dimension) {
			c[a] = v.Dimension - 1
		}
		if c[a] < 0 || c[a] >= v.Dimension {
			inside = false
		}
	}
	return c[0], c[1], c[2], inside
}

func (v *VoxelVolume) VoxelCenter(x, y, z int) mgl32.Vec3 {
	s := v.VoxelSize()
	return v.Min.Add(mgl32.Vec3{
		(float32(x) + 0.5) * s,
		(float32(y) + 0.5) * s,
		(float32(z) + 0.5) * s,
	})
}

// Textures lists every texture owned by the volume.
func (v *VoxelVolume) Textures() []*Texture3D {
	out := []*Texture3D{v.Albedo, v.Normal, v.Emission, v.Radiance}
	return append(out, v.Directional[:]...)
}

// EncodeNormal maps a unit normal to [0, 1].
func EncodeNormal(n mgl32.Vec3) mgl32.Vec3 {
	return n.Mul(0.5).Add(mgl32.Vec3{0.5, 0.5, 0.5})
}

func DecodeNormal(c mgl32.Vec3) mgl32.Vec3 {
	n := c.Mul(2).Sub(mgl32.Vec3{1, 1, 1})
	if n.Len() == 0 {
		return n
	}
	return n.Normalize()
}
