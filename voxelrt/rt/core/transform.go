package core

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

type Transform struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    mgl32.Vec3
	Dirty    bool
}

func NewTransform() *Transform {
	return &Transform{
		Position: mgl32.Vec3{0, 0, 0},
		Rotation: mgl32.QuatIdent(),
		Scale:    mgl32.Vec3{1, 1, 1},
		Dirty:    true,
	}
}

func (t *Transform) ObjectToWorld() mgl32.Mat4 {
	// M = T * R * S
	translate := mgl32.Translate3D(t.Position.X(), t.Position.Y(), t.Position.Z())
	rotate := t.Rotation.Mat4()
	scale := mgl32.Scale3D(t.Scale.X(), t.Scale.Y(), t.Scale.Z())

	return translate.Mul4(rotate).Mul4(scale)
}

func (t *Transform) WorldToObject() mgl32.Mat4 {
	// inv(M) = inv(S) * inv(R) * inv(T)
	invScale := mgl32.Scale3D(1.0/t.Scale.X(), 1.0/t.Scale.Y(), 1.0/t.Scale.Z())
	invRotate := t.Rotation.Conjugate().Mat4()
	invTranslate := mgl32.Translate3D(-t.Position.X(), -t.Position.Y(), -t.Position.Z())

	return invScale.Mul4(invRotate).Mul4(invTranslate)
}

// Node is a scene graph entry. Its absolute transform is the product of the
// local transforms from the root down.
type Node struct {
	ID        string
	Name      string
	Transform *Transform

	parent   *Node
	children []*Node
}

func NewNode(name string, parent *Node) *Node {
	n := &Node{
		ID:        uuid.NewString(),
		Name:      name,
		Transform: NewTransform(),
	}
	n.SetParent(parent)
	return n
}

func (n *Node) Parent() *Node {
	return n.parent
}

func (n *Node) Children() []*Node {
	return n.children
}

func (n *Node) SetParent(parent *Node) {
	if n.parent != nil {
		siblings := n.parent.children
		for i, c := range siblings {
			if c == n {
				n.parent.children = append(siblings[:i], siblings[i+1:]...)
				break
			}
		}
	}
	n.parent = parent
	if parent != nil {
		parent.children = append(parent.children, n)
	}
	n.Transform.Dirty = true
}

func (n *Node) AbsoluteTransformationMatrix() mgl32.Mat4 {
	m := n.Transform.ObjectToWorld()
	for p := n.parent; p != nil; p = p.parent {
		m = p.Transform.ObjectToWorld().Mul4(m)
	}
	return m
}

// NormalMatrix is the inverse transpose of the absolute rotation-scale part.
func (n *Node) NormalMatrix() mgl32.Mat3 {
	return n.AbsoluteTransformationMatrix().Mat3().Inv().Transpose()
}

func (n *Node) WorldPosition() mgl32.Vec3 {
	return n.AbsoluteTransformationMatrix().Col(3).Vec3()
}

// Dirty reports whether this node or any ancestor moved since the last ClearDirty.
func (n *Node) Dirty() bool {
	for p := n; p != nil; p = p.parent {
		if p.Transform.Dirty {
			return true
		}
	}
	return false
}

func (n *Node) ClearDirty() {
	n.Transform.Dirty = false
	for _, c := range n.children {
		c.ClearDirty()
	}
}

func (n *Node) Translate(v mgl32.Vec3) *Node {
	n.Transform.Position = n.Transform.Position.Add(v)
	n.Transform.Dirty = true
	return n
}

func (n *Node) SetPosition(v mgl32.Vec3) *Node {
	n.Transform.Position = v
	n.Transform.Dirty = true
	return n
}

// RotateY rotates about the local Y axis by deg degrees.
func (n *Node) RotateY(deg float32) *Node {
	q := mgl32.QuatRotate(mgl32.DegToRad(deg), mgl32.Vec3{0, 1, 0})
	n.Transform.Rotation = n.Transform.Rotation.Mul(q).Normalize()
	n.Transform.Dirty = true
	return n
}

func (n *Node) SetScale(v mgl32.Vec3) *Node {
	n.Transform.Scale = v
	n.Transform.Dirty = true
	return n
}
