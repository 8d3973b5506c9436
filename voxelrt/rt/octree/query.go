package octree

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Walk visits the subtree rooted at id depth first, parents before children.
// Returning false from visit skips that node's children.
func (t *Octree) Walk(id NodeID, visit func(id NodeID, n *Node, depth int) bool) {
	t.walk(id, 0, visit)
}

func (t *Octree) walk(id NodeID, depth int, visit func(NodeID, *Node, int) bool) {
	if !visit(id, &t.nodes[id], depth) {
		return
	}
	for _, c := range t.nodes[id].Children {
		if c != NoNode {
			t.walk(c, depth+1, visit)
		}
	}
}

// Primitives returns every primitive stored in the subtree rooted at id.
func (t *Octree) Primitives(id NodeID) []*Primitive {
	var out []*Primitive
	t.Walk(id, func(_ NodeID, n *Node, _ int) bool {
		out = append(out, n.Objects...)
		return true
	})
	return out
}

// Find returns the node currently holding p, or NoNode.
func (t *Octree) Find(p *Primitive) NodeID {
	found := NoNode
	t.Walk(RootID, func(id NodeID, n *Node, _ int) bool {
		if found != NoNode {
			return false
		}
		for _, o := range n.Objects {
			if o == p {
				found = id
				return false
			}
		}
		return true
	})
	return found
}

// QueryBox returns primitives whose world space bounds overlap box.
func (t *Octree) QueryBox(box BoundingBox) []*Primitive {
	var out []*Primitive
	t.Walk(RootID, func(_ NodeID, n *Node, _ int) bool {
		if !n.Bounds.Overlaps(box) && n.Parent != NoNode {
			return false
		}
		for _, p := range n.Objects {
			if p.WorldTriangle().Bounds().Overlaps(box) {
				out = append(out, p)
			}
		}
		return true
	})
	return out
}

type Hit struct {
	Primitive *Primitive
	T         float32
	// Barycentric coordinates of the hit for vertices B and C.
	U, V   float32
	Point  mgl32.Vec3
	Normal mgl32.Vec3
}

// Raycast returns the closest hit along origin + t*dir with t in (0, tMax].
// Primitives stored at the root are tested even when the ray misses its box,
// since straddling triangles may poke out of an unbuilt root.
func (t *Octree) Raycast(origin, dir mgl32.Vec3, tMax float32) (Hit, bool) {
	best := Hit{T: tMax}
	found := false
	var visit func(id NodeID)
	visit = func(id NodeID) {
		n := &t.nodes[id]
		if n.Parent != NoNode {
			tNear, _, ok := n.Bounds.IntersectRay(origin, dir)
			if !ok || tNear > best.T {
				return
			}
		}
		for _, p := range n.Objects {
			tri := p.WorldTriangle()
			if tt, u, v, ok := IntersectTriangle(origin, dir, tri); ok && tt < best.T {
				best = Hit{
					Primitive: p,
					T:         tt,
					U:         u,
					V:         v,
					Point:     origin.Add(dir.Mul(tt)),
					Normal:    tri.Normal(),
				}
				found = true
			}
		}
		for i, c := range n.Children {
			if c != NoNode && n.IsActive(i) {
				visit(c)
			}
		}
	}
	visit(RootID)
	return best, found
}

const triangleEpsilon = 1e-7

// IntersectTriangle is the Moller-Trumbore test.
func IntersectTriangle(origin, dir mgl32.Vec3, tri Triangle) (float32, float32, float32, bool) {
	e1 := tri[1].Sub(tri[0])
	e2 := tri[2].Sub(tri[0])
	pv := dir.Cross(e2)
	det := e1.Dot(pv)
	if det > -triangleEpsilon && det < triangleEpsilon {
		return 0, 0, 0, false
	}
	inv := 1 / det
	tv := origin.Sub(tri[0])
	u := tv.Dot(pv) * inv
	if u < 0 || u > 1 {
		return 0, 0, 0, false
	}
	qv := tv.Cross(e1)
	v := dir.Dot(qv) * inv
	if v < 0 || u+v > 1 {
		return 0, 0, 0, false
	}
	tt := e2.Dot(qv) * inv
	if tt <= triangleEpsilon {
		return 0, 0, 0, false
	}
	return tt, u, v, true
}

type Stats struct {
	Nodes       int
	ActiveNodes int
	Leaves      int
	MaxDepth    int
	Primitives  int
	// Primitives stored per depth.
	PerDepth []int
	// Largest local list of any node.
	MaxLeafFill int
	SmallestBox float32
}

func (t *Octree) Stats() Stats {
	s := Stats{SmallestBox: float32(math.Inf(1))}
	t.Walk(RootID, func(_ NodeID, n *Node, depth int) bool {
		s.Nodes++
		if len(n.Objects) > 0 || n.Active != 0 {
			s.ActiveNodes++
		}
		if n.IsLeaf() {
			s.Leaves++
		}
		if depth > s.MaxDepth {
			s.MaxDepth = depth
		}
		for len(s.PerDepth) <= depth {
			s.PerDepth = append(s.PerDepth, 0)
		}
		s.PerDepth[depth] += len(n.Objects)
		s.Primitives += len(n.Objects)
		if len(n.Objects) > s.MaxLeafFill {
			s.MaxLeafFill = len(n.Objects)
		}
		if m := min(n.Bounds.Size.X(), n.Bounds.Size.Y(), n.Bounds.Size.Z()); m < s.SmallestBox {
			s.SmallestBox = m
		}
		return true
	})
	return s
}
