package pipeline

import (
	"fmt"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
)

// MemoryBarrier selects which kinds of writes a Barrier makes visible.
type MemoryBarrier uint32

const (
	BarrierShaderImageAccess MemoryBarrier = 1 << iota
	BarrierTextureFetch
	BarrierShaderStorage

	// BarrierAll is what every stage boundary of a frame uses.
	BarrierAll = BarrierShaderImageAccess | BarrierTextureFetch | BarrierShaderStorage
)

func (b MemoryBarrier) String() string {
	var parts []string
	if b&BarrierShaderImageAccess != 0 {
		parts = append(parts, "image")
	}
	if b&BarrierTextureFetch != 0 {
		parts = append(parts, "fetch")
	}
	if b&BarrierShaderStorage != 0 {
		parts = append(parts, "storage")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Kernel runs one invocation. id is the global invocation id.
type Kernel func(id [3]int)

// Device executes compute dispatches. Invocations of a dispatch, and
// dispatches not separated by a Barrier, run in no particular order.
type Device interface {
	Dispatch(label string, groups, local [3]int, k Kernel)
	Barrier(bits MemoryBarrier)
}

type EventKind int

const (
	EventDispatch EventKind = iota
	EventBarrier
)

func (k EventKind) String() string {
	if k == EventBarrier {
		return "barrier"
	}
	return "dispatch"
}

type TraceEvent struct {
	Kind    EventKind
	Label   string
	Groups  [3]int
	Local   [3]int
	Barrier MemoryBarrier
}

func (e TraceEvent) String() string {
	if e.Kind == EventBarrier {
		return fmt.Sprintf("barrier(%s)", e.Barrier)
	}
	return fmt.Sprintf("dispatch %s %v", e.Label, e.Groups)
}

type workgroup struct {
	group [3]int
	local [3]int
	k     Kernel
}

// CPUDevice runs workgroups on a fixed pool of goroutines.
type CPUDevice struct {
	jobs    chan workgroup
	pending sync.WaitGroup
	once    sync.Once
	closed  atomic.Bool

	mu    sync.Mutex
	trace []TraceEvent
}

// NewCPUDevice starts workers goroutines; workers <= 0 uses one per CPU.
func NewCPUDevice(workers int) *CPUDevice {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	d := &CPUDevice{jobs: make(chan workgroup, workers*4)}
	for w := 0; w < workers; w++ {
		go d.worker()
	}
	return d
}

func (d *CPUDevice) worker() {
	for wg := range d.jobs {
		runGroup(wg)
		d.pending.Done()
	}
}

func runGroup(wg workgroup) {
	base := [3]int{wg.group[0] * wg.local[0], wg.group[1] * wg.local[1], wg.group[2] * wg.local[2]}
	for z := 0; z < wg.local[2]; z++ {
		for y := 0; y < wg.local[1]; y++ {
			for x := 0; x < wg.local[0]; x++ {
				wg.k([3]int{base[0] + x, base[1] + y, base[2] + z})
			}
		}
	}
}

// Dispatch queues every workgroup and returns without waiting for them.
// Dispatching on a closed device panics.
func (d *CPUDevice) Dispatch(label string, groups, local [3]int, k Kernel) {
	if d.closed.Load() {
		panic(fmt.Sprintf("pipeline: dispatch %q on a closed device", label))
	}
	for a := 0; a < 3; a++ {
		if local[a] < 1 {
			local[a] = 1
		}
	}
	d.record(TraceEvent{Kind: EventDispatch, Label: label, Groups: groups, Local: local})

	n := groups[0] * groups[1] * groups[2]
	if n <= 0 {
		return
	}
	d.pending.Add(n)
	for z := 0; z < groups[2]; z++ {
		for y := 0; y < groups[1]; y++ {
			for x := 0; x < groups[0]; x++ {
				d.jobs <- workgroup{group: [3]int{x, y, z}, local: local, k: k}
			}
		}
	}
}

// Barrier blocks until every dispatch issued so far has finished.
func (d *CPUDevice) Barrier(bits MemoryBarrier) {
	d.pending.Wait()
	d.record(TraceEvent{Kind: EventBarrier, Barrier: bits})
}

func (d *CPUDevice) record(e TraceEvent) {
	d.mu.Lock()
	d.trace = append(d.trace, e)
	d.mu.Unlock()
}

// Trace returns a copy of the events recorded since the last ResetTrace.
func (d *CPUDevice) Trace() []TraceEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]TraceEvent, len(d.trace))
	copy(out, d.trace)
	return out
}

func (d *CPUDevice) ResetTrace() {
	d.mu.Lock()
	d.trace = d.trace[:0]
	d.mu.Unlock()
}

// Close waits for outstanding work and stops the workers.
func (d *CPUDevice) Close() {
	d.once.Do(func() {
		d.closed.Store(true)
		d.pending.Wait()
		close(d.jobs)
	})
}

const numShards = 256

// shardLocks serializes read-modify-write on voxel cells that hash to the
// same shard.
type shardLocks struct{ mu [numShards]sync.Mutex }

func (sl *shardLocks) lock(idx int)   { sl.mu[idx&(numShards-1)].Lock() }
func (sl *shardLocks) unlock(idx int) { sl.mu[idx&(numShards-1)].Unlock() }
