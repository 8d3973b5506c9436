package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Camera is a look-at perspective camera with Y up.
type Camera struct {
	Eye    mgl32.Vec3
	Target mgl32.Vec3
	Up     mgl32.Vec3
	// Vertical field of view in degrees.
	Fov    float32
	Near   float32
	Far    float32
	Width  int
	Height int
}

func NewCamera(width, height int) *Camera {
	return &Camera{
		Eye:    mgl32.Vec3{2, 1, 1},
		Target: mgl32.Vec3{0, 0, 0},
		Up:     mgl32.Vec3{0, 1, 0},
		Fov:    45,
		Near:   0.2,
		Far:    50,
		Width:  width,
		Height: height,
	}
}

func (c *Camera) Aspect() float32 {
	if c.Height == 0 {
		return 1
	}
	return float32(c.Width) / float32(c.Height)
}

func (c *Camera) View() mgl32.Mat4 {
	return mgl32.LookAtV(c.Eye, c.Target, c.Up)
}

func (c *Camera) Projection() mgl32.Mat4 {
	return mgl32.Perspective(mgl32.DegToRad(c.Fov), c.Aspect(), c.Near, c.Far)
}

func (c *Camera) ViewProjection() mgl32.Mat4 {
	return c.Projection().Mul4(c.View())
}

func (c *Camera) InverseProjectionView() mgl32.Mat4 {
	return c.View().Inv().Mul4(c.Projection().Inv())
}

// Ray returns the world space primary ray through the center of pixel (px, py),
// with py growing downward.
func (c *Camera) Ray(px, py int) (mgl32.Vec3, mgl32.Vec3) {
	ndcX := (float32(px)+0.5)/float32(c.Width)*2 - 1
	ndcY := 1 - (float32(py)+0.5)/float32(c.Height)*2
	inv := c.InverseProjectionView()
	far := inv.Mul4x1(mgl32.Vec4{ndcX, ndcY, 1, 1})
	far = far.Mul(1 / far.W())
	dir := far.Vec3().Sub(c.Eye).Normalize()
	return c.Eye, dir
}

// Depth maps a world position to window depth in [0, 1].
func (c *Camera) Depth(p mgl32.Vec3) float32 {
	clip := c.ViewProjection().Mul4x1(p.Vec4(1))
	if clip.W() == 0 {
		return 1
	}
	return clip.Z()/clip.W()*0.5 + 0.5
}

// Unproject rebuilds a world position from pixel coordinates and window depth.
func (c *Camera) Unproject(px, py int, depth float32) mgl32.Vec3 {
	ndc := mgl32.Vec4{
		(float32(px)+0.5)/float32(c.Width)*2 - 1,
		1 - (float32(py)+0.5)/float32(c.Height)*2,
		depth*2 - 1,
		1,
	}
	w := c.InverseProjectionView().Mul4x1(ndc)
	return w.Vec3().Mul(1 / w.W())
}

// Orbit rotates the eye around the target by yaw and pitch radians.
func (c *Camera) Orbit(yaw, pitch float32) {
	offset := c.Eye.Sub(c.Target)
	r := offset.Len()
	if r == 0 {
		return
	}
	theta := math.Atan2(float64(offset.X()), float64(offset.Z())) + float64(yaw)
	phi := math.Asin(float64(offset.Y()/r)) + float64(pitch)
	phi = math.Max(-1.5, math.Min(1.5, phi))
	c.Eye = c.Target.Add(mgl32.Vec3{
		r * float32(math.Cos(phi)*math.Sin(theta)),
		r * float32(math.Sin(phi)),
		r * float32(math.Cos(phi)*math.Cos(theta)),
	})
}

// Zoom scales the eye distance to the target.
func (c *Camera) Zoom(factor float32) {
	offset := c.Eye.Sub(c.Target).Mul(factor)
	if offset.Len() < c.Near*2 {
		return
	}
	c.Eye = c.Target.Add(offset)
}

// ExtractFrustum extracts the 6 planes of the frustum from the view-projection matrix.
// Returns planes in order: Left, Right, Bottom, Top, Near, Far.
// Plane is Ax + By + Cz + D = 0.
func ExtractFrustum(vp mgl32.Mat4) [6]mgl32.Vec4 {
	var planes [6]mgl32.Vec4
	for i := 0; i < 3; i++ {
		for j := 0; j < 4; j++ {
			planes[i*2][j] = vp.At(3, j) + vp.At(i, j)
			planes[i*2+1][j] = vp.At(3, j) - vp.At(i, j)
		}
	}

	for i := 0; i < 6; i++ {
		length := float32(math.Sqrt(float64(planes[i][0]*planes[i][0] + planes[i][1]*planes[i][1] + planes[i][2]*planes[i][2])))
		if length > 0 {
			planes[i] = planes[i].Mul(1.0 / length)
		}
	}
	return planes
}

// AABBInFrustum checks if an AABB is visible within the frustum defined by 6 planes.
// Planes are expected to have their normal pointing inside.
func AABBInFrustum(aabb [2]mgl32.Vec3, planes [6]mgl32.Vec4) bool {
	for i := 0; i < 6; i++ {
		plane := planes[i]
		// Most inside corner; if it is still behind the plane the box is out.
		var p mgl32.Vec3
		for a := 0; a < 3; a++ {
			if plane[a] > 0 {
				p[a] = aabb[1][a]
			} else {
				p[a] = aabb[0][a]
			}
		}
		if plane[0]*p[0]+plane[1]*p[1]+plane[2]*p[2]+plane[3] < 0 {
			return false
		}
	}
	return true
}
