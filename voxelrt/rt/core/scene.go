package core

import (
	"github.com/gekko3d/vct/voxelrt/rt/octree"

	"github.com/go-gl/mathgl/mgl32"
)

type Scene struct {
	Root      *Node
	Drawables []*Drawable
	Lights    []Light
	Ambient   mgl32.Vec3

	// Octree indexes the triangles of every traced drawable. Primitive IDs
	// index Primitives and the owner table.
	Octree     *octree.Octree
	Primitives []*octree.Primitive
	owners     []*Drawable

	// Drawables added since the last Commit that are not indexed yet.
	pending    []*Drawable
	structural bool
}

func NewScene() *Scene {
	return &Scene{
		Root:      NewNode("root", nil),
		Drawables: []*Drawable{},
	}
}

// Add creates a drawable on a new node under parent, or under the scene root
// when parent is nil.
func (s *Scene) Add(kind DrawableKind, name string, mesh *Mesh, mat Material, parent *Node) *Drawable {
	if parent == nil {
		parent = s.Root
	}
	d := &Drawable{
		Kind:     kind,
		Name:     name,
		Node:     NewNode(name, parent),
		Mesh:     mesh,
		Material: mat,
	}
	s.AddDrawable(d)
	return d
}

func (s *Scene) AddDrawable(d *Drawable) {
	s.Drawables = append(s.Drawables, d)
	if d.Kind.Traced() {
		s.pending = append(s.pending, d)
	}
}

// AddShape registers the same mesh on one node as both a voxelized and a
// geometry drawable, which is how the cone tracing scenes are populated.
func (s *Scene) AddShape(name string, mesh *Mesh, mat Material) *Node {
	v := s.Add(KindVoxelized, name, mesh, mat, nil)
	s.AddDrawable(&Drawable{
		Kind:     KindGeometry,
		Name:     name,
		Node:     v.Node,
		Mesh:     mesh,
		Material: mat,
	})
	return v.Node
}

func (s *Scene) RemoveDrawable(d *Drawable) {
	for i, o := range s.Drawables {
		if o == d {
			s.Drawables = append(s.Drawables[:i], s.Drawables[i+1:]...)
			if d.Kind.Traced() {
				s.structural = true
			}
			return
		}
	}
}

func (s *Scene) AddLight(l Light) {
	s.Lights = append(s.Lights, l)
}

func (s *Scene) DrawablesOf(kind DrawableKind) []*Drawable {
	var out []*Drawable
	for _, d := range s.Drawables {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}

func (s *Scene) isPending(d *Drawable) bool {
	for _, p := range s.pending {
		if p == d {
			return true
		}
	}
	return false
}

func (s *Scene) moved() bool {
	for _, d := range s.Drawables {
		if d.Kind.Traced() && !s.isPending(d) && d.Node.Dirty() {
			return true
		}
	}
	return false
}

// Commit brings the octree up to date and reports whether it changed.
//
// Moving or removing a traced drawable rebuilds the tree from scratch.
// Drawables added to an otherwise unchanged scene are inserted into the
// existing tree when they fit inside its root.
func (s *Scene) Commit(opts octree.Options) bool {
	if s.Octree == nil || s.structural || s.moved() {
		s.rebuild(opts)
		return true
	}
	if len(s.pending) == 0 {
		return false
	}

	var prims []*octree.Primitive
	var owners []*Drawable
	root := s.Octree.Root().Bounds
	for _, d := range s.pending {
		for i := 0; i < d.Mesh.TriangleCount(); i++ {
			p := octree.NewPrimitive(uint32(len(s.Primitives)+len(prims)), d.Node, d.Mesh.Triangle(i))
			if !root.Contains(p) {
				s.rebuild(opts)
				return true
			}
			prims = append(prims, p)
			owners = append(owners, d)
		}
	}
	for i, p := range prims {
		s.Primitives = append(s.Primitives, p)
		s.owners = append(s.owners, owners[i])
		s.Octree.Add(p)
	}
	// a root still accumulating splits once it holds enough primitives
	s.Octree.Update(octree.RootID)
	for _, d := range s.pending {
		d.Node.ClearDirty()
	}
	s.pending = s.pending[:0]
	return true
}

func (s *Scene) rebuild(opts octree.Options) {
	s.Primitives = s.Primitives[:0]
	s.owners = s.owners[:0]
	for _, d := range s.Drawables {
		if !d.Kind.Traced() {
			continue
		}
		for i := 0; i < d.Mesh.TriangleCount(); i++ {
			s.Primitives = append(s.Primitives, octree.NewPrimitive(uint32(len(s.Primitives)), d.Node, d.Mesh.Triangle(i)))
			s.owners = append(s.owners, d)
		}
	}

	s.Octree = octree.New(s.bounds(), opts)
	for _, p := range s.Primitives {
		s.Octree.Add(p)
	}
	s.Octree.Update(octree.RootID)

	s.pending = s.pending[:0]
	s.structural = false
	s.Root.ClearDirty()
}

// bounds is a cube around every traced triangle, padded so that later
// inserts close to the surface still fit.
func (s *Scene) bounds() octree.BoundingBox {
	if len(s.Primitives) == 0 {
		return octree.NewBoundingBoxSize(mgl32.Vec3{2, 2, 2})
	}
	inf := float32(1e20)
	lo := mgl32.Vec3{inf, inf, inf}
	hi := mgl32.Vec3{-inf, -inf, -inf}
	for _, p := range s.Primitives {
		b := p.WorldTriangle().Bounds()
		for a := 0; a < 3; a++ {
			lo[a] = min(lo[a], b.Min[a])
			hi[a] = max(hi[a], b.Max[a])
		}
	}
	center := lo.Add(hi).Mul(0.5)
	extent := max(hi.X()-lo.X(), hi.Y()-lo.Y(), hi.Z()-lo.Z())
	half := extent*0.5*1.05 + 1e-3
	h := mgl32.Vec3{half, half, half}
	return octree.NewBoundingBox(center.Sub(h), center.Add(h))
}

// Owner returns the drawable a primitive came from.
func (s *Scene) Owner(p *octree.Primitive) *Drawable {
	if p == nil || int(p.ID) >= len(s.owners) {
		return nil
	}
	return s.owners[p.ID]
}

// Raycast traces against the committed octree.
func (s *Scene) Raycast(origin, dir mgl32.Vec3, tMax float32) (octree.Hit, *Drawable, bool) {
	if s.Octree == nil {
		return octree.Hit{}, nil, false
	}
	hit, ok := s.Octree.Raycast(origin, dir, tMax)
	if !ok {
		return hit, nil, false
	}
	return hit, s.Owner(hit.Primitive), true
}

// VisibleDrawables returns drawables of the given kind whose bounds intersect
// the view frustum.
func (s *Scene) VisibleDrawables(kind DrawableKind, viewProj mgl32.Mat4) []*Drawable {
	planes := ExtractFrustum(viewProj)
	var out []*Drawable
	for _, d := range s.Drawables {
		if d.Kind == kind && AABBInFrustum(d.WorldAABB(), planes) {
			out = append(out, d)
		}
	}
	return out
}
