package octree

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Triangle holds three vertices A, B, C.
type Triangle [3]mgl32.Vec3

func (t Triangle) Transform(m mgl32.Mat4) Triangle {
	var out Triangle
	for i, v := range t {
		out[i] = m.Mul4x1(v.Vec4(1)).Vec3()
	}
	return out
}

func (t Triangle) Normal() mgl32.Vec3 {
	n := t[1].Sub(t[0]).Cross(t[2].Sub(t[0]))
	if n.Len() == 0 {
		return n
	}
	return n.Normalize()
}

func (t Triangle) Bounds() BoundingBox {
	lo, hi := t[0], t[0]
	for _, v := range t[1:] {
		for i := 0; i < 3; i++ {
			lo[i] = min(lo[i], v[i])
			hi[i] = max(hi[i], v[i])
		}
	}
	return NewBoundingBox(lo, hi)
}

// Transformer is the scene graph node a primitive hangs off.
type Transformer interface {
	AbsoluteTransformationMatrix() mgl32.Mat4
}

// Primitive is one object space triangle owned by a scene node. The octree
// only keeps pointers; the caller owns primitives and their nodes.
type Primitive struct {
	ID       uint32
	Object   Transformer
	Triangle Triangle
}

func NewPrimitive(id uint32, object Transformer, tri Triangle) *Primitive {
	return &Primitive{ID: id, Object: object, Triangle: tri}
}

// WorldTriangle applies the owner's current absolute transform. A nil owner
// means the triangle is already in world space.
func (p *Primitive) WorldTriangle() Triangle {
	if p.Object == nil {
		return p.Triangle
	}
	return p.Triangle.Transform(p.Object.AbsoluteTransformationMatrix())
}
