package octree

import (
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type translated struct {
	offset mgl32.Vec3
}

func (t translated) AbsoluteTransformationMatrix() mgl32.Mat4 {
	return mgl32.Translate3D(t.offset.X(), t.offset.Y(), t.offset.Z())
}

func smallTri(id uint32, at mgl32.Vec3, edge float32) *Primitive {
	return NewPrimitive(id, nil, Triangle{
		at,
		at.Add(mgl32.Vec3{edge, 0, 0}),
		at.Add(mgl32.Vec3{0, edge, 0}),
	})
}

func randomPrims(n int, seed int64) []*Primitive {
	rng := rand.New(rand.NewSource(seed))
	out := make([]*Primitive, n)
	for i := range out {
		at := mgl32.Vec3{
			rng.Float32()*3.8 - 1.9,
			rng.Float32()*3.8 - 1.9,
			rng.Float32()*3.8 - 1.9,
		}
		out[i] = smallTri(uint32(i), at, 0.05)
	}
	return out
}

func newTree() *Octree {
	return New(NewBoundingBoxSize(mgl32.Vec3{4, 4, 4}), DefaultOptions())
}

func TestBoundingBoxFromSizeIsCentered(t *testing.T) {
	b := NewBoundingBoxSize(mgl32.Vec3{2, 4, 6})
	assert.Equal(t, mgl32.Vec3{-1, -2, -3}, b.Min)
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, b.Max)
	assert.Equal(t, mgl32.Vec3{2, 4, 6}, b.Size)
	assert.Equal(t, mgl32.Vec3{0, 0, 0}, b.Center())
}

func TestContainmentIsClosedInterval(t *testing.T) {
	b := NewBoundingBox(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{1, 1, 1})

	onFace := Triangle{{0, 0, 0}, {1, 0, 0}, {0, 1, 1}}
	assert.True(t, b.ContainsTriangle(onFace), "vertices on faces are inside")

	poking := Triangle{{0, 0, 0}, {1.0001, 0, 0}, {0, 1, 1}}
	assert.False(t, b.ContainsTriangle(poking))

	assert.True(t, b.ContainsBox(b))
	assert.False(t, b.ContainsBox(NewBoundingBox(mgl32.Vec3{-0.5, 0, 0}, mgl32.Vec3{0.5, 1, 1})))
}

func TestContainsUsesAbsoluteTransform(t *testing.T) {
	b := NewBoundingBox(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{1, 1, 1})
	tri := Triangle{{0, 0, 0}, {0.1, 0, 0}, {0, 0.1, 0}}

	inside := NewPrimitive(1, translated{mgl32.Vec3{0.5, 0.5, 0.5}}, tri)
	outside := NewPrimitive(2, translated{mgl32.Vec3{5, 0, 0}}, tri)

	assert.True(t, b.Contains(inside))
	assert.False(t, b.Contains(outside))
}

func TestOctantsTileParent(t *testing.T) {
	parent := NewBoundingBox(mgl32.Vec3{-1, -2, 0}, mgl32.Vec3{3, 2, 8})
	octants := Octants(parent)

	var total float32
	for i, o := range octants {
		assert.True(t, parent.ContainsBox(o), "octant %d escapes parent", i)
		assert.InDelta(t, parent.Volume()/8, o.Volume(), 1e-4)
		total += o.Volume()
		for j := i + 1; j < len(octants); j++ {
			_, overlap := o.Intersection(octants[j])
			assert.False(t, overlap, "octants %d and %d overlap with volume", i, j)
		}
	}
	assert.InDelta(t, parent.Volume(), total, 1e-3)

	c := parent.Center()
	assert.Equal(t, parent.Min, octants[0].Min)
	assert.Equal(t, c, octants[0].Max)
	assert.Equal(t, c, octants[6].Min)
	assert.Equal(t, parent.Max, octants[6].Max)
	assert.Equal(t, mgl32.Vec3{c.X(), parent.Min.Y(), parent.Min.Z()}, octants[1].Min)
	assert.Equal(t, mgl32.Vec3{parent.Min.X(), c.Y(), c.Z()}, octants[7].Min)
}

func TestBuildConservesPrimitives(t *testing.T) {
	tree := newTree()
	prims := randomPrims(300, 1)
	for _, p := range prims {
		tree.Add(p)
	}
	tree.Update(RootID)

	got := tree.Primitives(RootID)
	require.Len(t, got, len(prims))

	seen := make(map[*Primitive]int)
	for _, p := range got {
		seen[p]++
	}
	for _, p := range prims {
		assert.Equal(t, 1, seen[p], "primitive %d stored %d times", p.ID, seen[p])
	}
	assert.True(t, tree.Root().Built)
	assert.Greater(t, tree.Len(), 1)
}

func TestContainmentClosure(t *testing.T) {
	tree := newTree()
	prims := randomPrims(150, 2)
	for _, p := range prims[:100] {
		tree.Add(p)
	}
	tree.Update(RootID)
	for _, p := range prims[100:] {
		tree.Add(p)
	}

	for _, p := range prims {
		id := tree.Find(p)
		require.NotEqual(t, NoNode, id, "primitive %d lost", p.ID)
		for cur := id; cur != NoNode; cur = tree.Node(cur).Parent {
			assert.True(t, tree.Node(cur).Bounds.Contains(p), "node %d does not contain primitive %d", cur, p.ID)
		}
	}
}

type nodeSnapshot struct {
	bounds   BoundingBox
	parent   NodeID
	children [8]NodeID
	active   uint8
	objects  int
	built    bool
}

func snapshot(tree *Octree) []nodeSnapshot {
	out := make([]nodeSnapshot, tree.Len())
	for i := range out {
		n := tree.Node(NodeID(i))
		out[i] = nodeSnapshot{n.Bounds, n.Parent, n.Children, n.Active, len(n.Objects), n.Built}
	}
	return out
}

func TestUpdateIsIdempotent(t *testing.T) {
	tree := newTree()
	for _, p := range randomPrims(80, 3) {
		tree.Add(p)
	}
	tree.Update(RootID)
	first := snapshot(tree)

	tree.Update(RootID)
	assert.Equal(t, first, snapshot(tree))
}

func TestThresholdBoundary(t *testing.T) {
	opts := DefaultOptions()
	corners := []mgl32.Vec3{{-1.5, -1.5, -1.5}, {1.5, 1.5, 1.5}, {1.5, -1.5, -1.5}}

	atThreshold := newTree()
	for i := 0; i < opts.MinObjects; i++ {
		atThreshold.Add(smallTri(uint32(i), corners[i], 0.1))
	}
	atThreshold.Update(RootID)
	assert.False(t, atThreshold.Root().Built)
	assert.Equal(t, 1, atThreshold.Len())
	assert.Len(t, atThreshold.Root().Objects, opts.MinObjects)

	overThreshold := newTree()
	for i := 0; i < opts.MinObjects+1; i++ {
		overThreshold.Add(smallTri(uint32(i), corners[i], 0.1))
	}
	overThreshold.Update(RootID)
	root := overThreshold.Root()
	assert.True(t, root.Built)
	assert.Equal(t, 9, overThreshold.Len())
	assert.Empty(t, root.Objects)
	assert.Equal(t, uint8(1<<0|1<<6|1<<1), root.Active)
}

func TestTinyNodeNeverSplits(t *testing.T) {
	opts := DefaultOptions()
	tree := New(NewBoundingBoxSize(mgl32.Vec3{opts.MinSize, 1, 1}), opts)
	for i := 0; i < 20; i++ {
		tree.Add(NewPrimitive(uint32(i), nil, Triangle{{0, 0, 0}, {0.01, 0, 0}, {0, 0.01, 0}}))
	}
	tree.Update(RootID)
	assert.Equal(t, 1, tree.Len())
	assert.Len(t, tree.Root().Objects, 20)
}

func TestInsertOutsideBuiltRootPanics(t *testing.T) {
	tree := newTree()
	for _, p := range randomPrims(10, 4) {
		tree.Add(p)
	}
	tree.Update(RootID)
	require.True(t, tree.Root().Built)

	outside := smallTri(99, mgl32.Vec3{10, 0, 0}, 0.1)
	require.PanicsWithValue(t, "octree: insert of primitive 99 outside node 0 bounds", func() {
		tree.Add(outside)
	})
}

func TestInsertIntoUnbuiltNodeOnlyAccumulates(t *testing.T) {
	tree := newTree()
	outside := smallTri(7, mgl32.Vec3{10, 0, 0}, 0.1)
	require.NotPanics(t, func() { tree.Add(outside) })
	assert.Len(t, tree.Root().Objects, 1)
	assert.Equal(t, 1, tree.Len())
}

func TestInsertAfterBuildRoutesIntoOctant(t *testing.T) {
	tree := newTree()
	for _, p := range randomPrims(40, 5) {
		tree.Add(p)
	}
	tree.Update(RootID)

	p := smallTri(1000, mgl32.Vec3{1.7, 1.7, 1.7}, 0.05)
	tree.Add(p)

	id := tree.Find(p)
	require.NotEqual(t, NoNode, id)
	assert.NotEqual(t, RootID, id)

	// every ancestor marks the path as active
	for cur := id; tree.Node(cur).Parent != NoNode; cur = tree.Node(cur).Parent {
		parent := tree.Node(tree.Node(cur).Parent)
		slot := -1
		for i, c := range parent.Children {
			if c == cur {
				slot = i
			}
		}
		require.NotEqual(t, -1, slot)
		assert.True(t, parent.IsActive(slot))
	}
}

func TestStraddlingPrimitiveStaysAtNode(t *testing.T) {
	tree := newTree()
	for _, p := range randomPrims(30, 6) {
		tree.Add(p)
	}
	tree.Update(RootID)

	straddle := NewPrimitive(500, nil, Triangle{{-0.5, -0.5, -0.5}, {0.5, 0.5, 0.5}, {0.5, -0.5, 0.5}})
	tree.Add(straddle)
	assert.Equal(t, RootID, tree.Find(straddle))
}

func TestFlattenProducesConsistentIndices(t *testing.T) {
	tree := newTree()
	prims := randomPrims(200, 7)
	for _, p := range prims[:150] {
		tree.Add(p)
	}
	tree.Update(RootID)
	for _, p := range prims[150:] {
		tree.Add(p)
	}

	nodes, objects := tree.Flatten()
	require.NotEmpty(t, nodes)
	assert.Equal(t, tree.Root().Bounds.Min, nodes[0].Min)

	seen := make(map[int32]int)
	reached := make([]bool, len(nodes))
	var visit func(i int32)
	visit = func(i int32) {
		require.True(t, i >= 0 && int(i) < len(nodes), "node index %d out of range", i)
		require.False(t, reached[i], "node %d reached twice", i)
		reached[i] = true
		for o := nodes[i].FirstObject; o != -1; o = objects[o].Next {
			require.True(t, o >= 0 && int(o) < len(objects))
			seen[objects[o].ObjectID]++
		}
		for _, c := range nodes[i].Children {
			if c != -1 {
				visit(c)
			}
		}
	}
	visit(0)

	assert.Len(t, objects, len(prims))
	for _, p := range prims {
		assert.Equal(t, 1, seen[int32(p.ID)], "primitive %d", p.ID)
	}
	for i, r := range reached {
		assert.True(t, r, "node %d unreachable", i)
	}
}

func TestRaycastReturnsNearestHit(t *testing.T) {
	tree := newTree()
	for _, p := range randomPrims(60, 8) {
		tree.Add(p)
	}
	near := NewPrimitive(900, nil, Triangle{{-0.3, -0.3, 1.0}, {0.3, -0.3, 1.0}, {0, 0.3, 1.0}})
	far := NewPrimitive(901, nil, Triangle{{-0.3, -0.3, -1.0}, {0.3, -0.3, -1.0}, {0, 0.3, -1.0}})
	tree.Add(far)
	tree.Add(near)
	tree.Update(RootID)

	hit, ok := tree.Raycast(mgl32.Vec3{0, 0, 1.95}, mgl32.Vec3{0, 0, -1}, 100)
	require.True(t, ok)
	assert.Same(t, near, hit.Primitive)
	assert.InDelta(t, 0.95, hit.T, 1e-5)

	_, ok = tree.Raycast(mgl32.Vec3{0, 0, 1.95}, mgl32.Vec3{0, 0, 1}, 100)
	assert.False(t, ok)
}

func TestQueryBox(t *testing.T) {
	tree := newTree()
	a := smallTri(1, mgl32.Vec3{1, 1, 1}, 0.1)
	b := smallTri(2, mgl32.Vec3{-1, -1, -1}, 0.1)
	c := smallTri(3, mgl32.Vec3{1.05, 1.05, 1.0}, 0.1)
	for _, p := range []*Primitive{a, b, c} {
		tree.Add(p)
	}
	tree.Update(RootID)

	got := tree.QueryBox(NewBoundingBox(mgl32.Vec3{0.9, 0.9, 0.9}, mgl32.Vec3{1.2, 1.2, 1.2}))
	assert.ElementsMatch(t, []*Primitive{a, c}, got)
}

func TestStatsCountsEverything(t *testing.T) {
	tree := newTree()
	for _, p := range randomPrims(100, 9) {
		tree.Add(p)
	}
	tree.Update(RootID)

	s := tree.Stats()
	assert.Equal(t, tree.Len(), s.Nodes)
	assert.Equal(t, 100, s.Primitives)
	sum := 0
	for _, n := range s.PerDepth {
		sum += n
	}
	assert.Equal(t, 100, sum)
	assert.Greater(t, s.MaxDepth, 0)
}
