package octree

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Matches WGSL OctreeNode
// struct OctreeNode {
//    min_point : vec4<f32>; (16)
//    max_point : vec4<f32>; (16)
//    first_object : i32; (4)
//    children : array<i32, 8>; (32)
//    padding : i32[3]; (12)
// }; -> 80 bytes
const GPUNodeSize = 80

// Matches WGSL OctreeObject { object_id : i32, next_object : i32 } -> 8 bytes
const GPUObjectSize = 8

type GPUNode struct {
	Min         mgl32.Vec3
	Max         mgl32.Vec3
	FirstObject int32
	Children    [8]int32
}

func (n *GPUNode) ToBytes() []byte {
	buf := make([]byte, GPUNodeSize)

	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(n.Min.X()))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(n.Min.Y()))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(n.Min.Z()))
	binary.LittleEndian.PutUint32(buf[12:16], math.Float32bits(1))

	binary.LittleEndian.PutUint32(buf[16:20], math.Float32bits(n.Max.X()))
	binary.LittleEndian.PutUint32(buf[20:24], math.Float32bits(n.Max.Y()))
	binary.LittleEndian.PutUint32(buf[24:28], math.Float32bits(n.Max.Z()))
	binary.LittleEndian.PutUint32(buf[28:32], math.Float32bits(1))

	binary.LittleEndian.PutUint32(buf[32:36], uint32(n.FirstObject))
	for i, c := range n.Children {
		off := 36 + i*4
		binary.LittleEndian.PutUint32(buf[off:off+4], uint32(c))
	}
	return buf
}

// GPUObject is one entry of a node's object list. Next is -1 at the end.
type GPUObject struct {
	ObjectID int32
	Next     int32
}

func (o *GPUObject) ToBytes() []byte {
	buf := make([]byte, GPUObjectSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(o.ObjectID))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(o.Next))
	return buf
}

// Flatten lays the tree out in pre-order for the GPU traversal. Only active
// children are emitted; every child index refers into the returned nodes and
// every object list is a linked list inside the returned objects.
func (t *Octree) Flatten() ([]GPUNode, []GPUObject) {
	nodes := []GPUNode{}
	objects := []GPUObject{}
	t.flatten(RootID, &nodes, &objects)
	return nodes, objects
}

func (t *Octree) flatten(id NodeID, nodes *[]GPUNode, objects *[]GPUObject) int32 {
	idx := int32(len(*nodes))
	n := &t.nodes[id]
	gn := GPUNode{Min: n.Bounds.Min, Max: n.Bounds.Max, FirstObject: -1}
	for i := range gn.Children {
		gn.Children[i] = -1
	}

	if len(n.Objects) > 0 {
		first := int32(len(*objects))
		gn.FirstObject = first
		for i, p := range n.Objects {
			next := first + int32(i) + 1
			if i == len(n.Objects)-1 {
				next = -1
			}
			*objects = append(*objects, GPUObject{ObjectID: int32(p.ID), Next: next})
		}
	}
	*nodes = append(*nodes, gn)

	for i, c := range n.Children {
		if c != NoNode && n.IsActive(i) {
			ci := t.flatten(c, nodes, objects)
			(*nodes)[idx].Children[i] = ci
		}
	}
	return idx
}

// NodesBytes encodes nodes back to back. An empty slice yields one zeroed
// node so the GPU buffer is never empty.
func NodesBytes(nodes []GPUNode) []byte {
	if len(nodes) == 0 {
		return make([]byte, GPUNodeSize)
	}
	out := make([]byte, 0, len(nodes)*GPUNodeSize)
	for i := range nodes {
		out = append(out, nodes[i].ToBytes()...)
	}
	return out
}

func ObjectsBytes(objects []GPUObject) []byte {
	if len(objects) == 0 {
		return make([]byte, GPUObjectSize)
	}
	out := make([]byte, 0, len(objects)*GPUObjectSize)
	for i := range objects {
		out = append(out, objects[i].ToBytes()...)
	}
	return out
}
