package octree

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// NodeID addresses a node inside the octree arena.
type NodeID int32

const (
	NoNode NodeID = -1
	RootID NodeID = 0
)

type Options struct {
	// A node holding this many primitives or fewer is never split.
	MinObjects int
	// A node with any side this short or shorter is never split.
	MinSize float32
}

func DefaultOptions() Options {
	return Options{
		MinObjects: 2,
		MinSize:    0.25,
	}
}

type Node struct {
	Bounds   BoundingBox
	Parent   NodeID
	Children [8]NodeID
	// Bit i is set once child i holds primitives.
	Active  uint8
	Objects []*Primitive
	Built   bool
}

func (n *Node) HasChild(i int) bool {
	return n.Children[i] != NoNode
}

func (n *Node) IsActive(i int) bool {
	return n.Active&(1<<uint(i)) != 0
}

func (n *Node) IsLeaf() bool {
	return n.Active == 0
}

// Octree is an arena of nodes rooted at RootID. It only grows: there is no
// removal and no rebalancing. Not safe for concurrent use.
type Octree struct {
	opts  Options
	nodes []Node
}

func New(bounds BoundingBox, opts Options) *Octree {
	t := &Octree{opts: opts}
	t.newNode(bounds, NoNode)
	return t
}

func (t *Octree) Options() Options {
	return t.opts
}

func (t *Octree) Len() int {
	return len(t.nodes)
}

// Node returns the node with the given id. The pointer is only valid until
// the next Insert or Build.
func (t *Octree) Node(id NodeID) *Node {
	return &t.nodes[id]
}

func (t *Octree) Root() *Node {
	return &t.nodes[RootID]
}

func (t *Octree) newNode(bounds BoundingBox, parent NodeID) NodeID {
	id := NodeID(len(t.nodes))
	n := Node{Bounds: bounds, Parent: parent}
	for i := range n.Children {
		n.Children[i] = NoNode
	}
	t.nodes = append(t.nodes, n)
	return id
}

func (t *Octree) tooSmall(b BoundingBox) bool {
	return b.Size.X() <= t.opts.MinSize || b.Size.Y() <= t.opts.MinSize || b.Size.Z() <= t.opts.MinSize
}

// octantUpper selects, per octant and per axis, the upper half of the parent.
// The order is shared by Insert and Build.
var octantUpper = [8][3]bool{
	{false, false, false},
	{true, false, false},
	{true, false, true},
	{false, false, true},
	{false, true, false},
	{true, true, false},
	{true, true, true},
	{false, true, true},
}

// Octants splits b at its center into eight boxes that tile it.
func Octants(b BoundingBox) [8]BoundingBox {
	center := b.Center()
	var out [8]BoundingBox
	for i, upper := range octantUpper {
		var lo, hi mgl32.Vec3
		for a := 0; a < 3; a++ {
			if upper[a] {
				lo[a], hi[a] = center[a], b.Max[a]
			} else {
				lo[a], hi[a] = b.Min[a], center[a]
			}
		}
		out[i] = NewBoundingBox(lo, hi)
	}
	return out
}

// octants reuses the boxes of children that already exist.
func (t *Octree) octants(id NodeID) [8]BoundingBox {
	n := &t.nodes[id]
	out := Octants(n.Bounds)
	for i, c := range n.Children {
		if c != NoNode {
			out[i] = t.nodes[c].Bounds
		}
	}
	return out
}

// Insert adds p to the subtree rooted at id.
//
// An unbuilt node only accumulates. A built node keeps p locally while it is
// an under-populated leaf or too small to split, otherwise it pushes p into
// the first octant that fully contains it, creating that child on demand.
// Primitives straddling octants stay at the node.
//
// Only the root checks containment: inserting into a built root a primitive
// its box does not contain panics. Subtrees trust their parent's routing.
func (t *Octree) Insert(id NodeID, p *Primitive) {
	n := &t.nodes[id]
	if !n.Built {
		n.Objects = append(n.Objects, p)
		return
	}
	if n.Parent == NoNode && !n.Bounds.Contains(p) {
		panic(fmt.Sprintf("octree: insert of primitive %d outside node %d bounds", p.ID, id))
	}
	if len(n.Objects) < t.opts.MinObjects && n.Active == 0 {
		n.Objects = append(n.Objects, p)
		return
	}
	if t.tooSmall(n.Bounds) {
		n.Objects = append(n.Objects, p)
		return
	}

	boxes := t.octants(id)
	for i, box := range boxes {
		if !box.Contains(p) {
			continue
		}
		child := t.nodes[id].Children[i]
		if child == NoNode {
			child = t.newNode(box, id)
			t.nodes[id].Children[i] = child
			t.Build(child)
		}
		t.nodes[id].Active |= 1 << uint(i)
		t.Insert(child, p)
		return
	}
	t.nodes[id].Objects = append(t.nodes[id].Objects, p)
}

// Add inserts into the root.
func (t *Octree) Add(p *Primitive) {
	t.Insert(RootID, p)
}

// Build partitions the node's accumulated primitives into eight children and
// recurses into every non-empty one. It does nothing for an already built,
// under-populated or too small node.
func (t *Octree) Build(id NodeID) {
	n := &t.nodes[id]
	if n.Built || len(n.Objects) <= t.opts.MinObjects || t.tooSmall(n.Bounds) {
		return
	}

	boxes := Octants(n.Bounds)
	var children [8]NodeID
	for i, box := range boxes {
		children[i] = t.newNode(box, id)
	}
	t.nodes[id].Children = children

	objects := t.nodes[id].Objects
	kept := make([]*Primitive, 0, len(objects))
	for _, p := range objects {
		routed := false
		for i, box := range boxes {
			if box.Contains(p) {
				t.Insert(children[i], p)
				routed = true
				break
			}
		}
		if !routed {
			kept = append(kept, p)
		}
	}
	t.nodes[id].Objects = kept

	for i, c := range children {
		if len(t.nodes[c].Objects) > 0 {
			t.Build(c)
			t.nodes[id].Active |= 1 << uint(i)
		}
	}
	t.nodes[id].Built = true
}

// Update builds the node if it has not been built yet.
func (t *Octree) Update(id NodeID) {
	if !t.nodes[id].Built {
		t.Build(id)
	}
}
