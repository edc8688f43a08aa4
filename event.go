package flitsim

//
// Discrete-event kernel
//

import (
	"container/heap"
	"fmt"
)

// VirtualTime is a pair (tick, epsilon) totally ordering events that
// land on the same tick. Epsilon lets same-tick events (credit
// release, then allocation, then flit transfer) be ordered
// deterministically (spec §3 "Time").
type VirtualTime struct {
	Tick    uint64
	Epsilon uint8
}

// Less reports whether vt strictly precedes other.
func (vt VirtualTime) Less(other VirtualTime) bool {
	if vt.Tick != other.Tick {
		return vt.Tick < other.Tick
	}
	return vt.Epsilon < other.Epsilon
}

func (vt VirtualTime) String() string {
	return fmt.Sprintf("%d:%d", vt.Tick, vt.Epsilon)
}

// EventHandler receives dispatched events from the Kernel. Components
// implement this interface (directly, or via an adapter closure) to
// react at their scheduled virtual time.
type EventHandler interface {
	ProcessEvent(payload any, kind int32)
}

// EventHandlerFunc adapts a plain function to an EventHandler.
type EventHandlerFunc func(payload any, kind int32)

func (f EventHandlerFunc) ProcessEvent(payload any, kind int32) { f(payload, kind) }

// event is one entry in the kernel's priority queue.
type event struct {
	when    VirtualTime
	handler EventHandler
	payload any
	kind    int32
	seq     uint64 // insertion order, breaks ties among equal (tick,epsilon) from distinct schedule calls in pre-run phase
}

// eventHeap implements container/heap.Interface ordering by
// (tick, epsilon, seq).
type eventHeap []*event

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if h[i].when != h[j].when {
		return h[i].when.Less(h[j].when)
	}
	return h[i].seq < h[j].seq
}

func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) { *h = append(*h, x.(*event)) }

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// Kernel is the single global priority queue driving the simulation.
// It orders (time, epsilon, component, payload, type) tuples with
// strict less-than on (time, epsilon) and dispatches the minimum
// element's component at each step (spec §4.1).
//
// The zero value is not usable; construct with NewKernel.
type Kernel struct {
	clocks  *Clocks
	queue   eventHeap
	now     VirtualTime
	preRun  bool
	stopped bool
	nextSeq uint64
}

// NewKernel creates an empty Kernel bound to the given clock table.
func NewKernel(clocks *Clocks) *Kernel {
	return &Kernel{
		clocks: clocks,
		queue:  eventHeap{},
		preRun: true,
	}
}

// Now returns the kernel's current virtual time.
func (k *Kernel) Now() VirtualTime { return k.now }

// Clocks returns the clock table the kernel was constructed with.
func (k *Kernel) Clocks() *Clocks { return k.clocks }

// QueueSize returns the number of pending events.
func (k *Kernel) QueueSize() int { return len(k.queue) }

// CycleTime returns the tick of the start of the current cycle of the
// given clock domain.
func (k *Kernel) CycleTime(clock Clock) uint64 {
	return k.clocks.Cycle(clock, k.now.Tick) * k.clocks.Period(clock)
}

// FutureCycle returns the tick of the n-th cycle boundary of clock
// strictly after the current time.
func (k *Kernel) FutureCycle(clock Clock, n uint32) uint64 {
	return k.clocks.FutureCycle(clock, k.now.Tick, n)
}

// Schedule enqueues an event. The event must be either in the kernel's
// pre-run phase (before Run has started consuming events) or strictly
// in the future relative to Now(): an ill-ordered schedule is a
// program bug and this function panics (spec §4.1, §7, §8).
func (k *Kernel) Schedule(when VirtualTime, handler EventHandler, payload any, kind int32) {
	if !k.preRun && !k.now.Less(when) {
		panic(fmt.Sprintf("flitsim: event scheduled out of order: now=%s requested=%s", k.now, when))
	}
	e := &event{when: when, handler: handler, payload: payload, kind: kind, seq: k.nextSeq}
	k.nextSeq++
	heap.Push(&k.queue, e)
}

// Stop requests that Run halt after the current event finishes
// dispatching.
func (k *Kernel) Stop() { k.stopped = true }

// Run repeatedly pops the minimum-time event, advances virtual time to
// it, dispatches it, and repeats until the queue empties or Stop is
// called.
func (k *Kernel) Run() {
	k.preRun = false
	k.stopped = false
	for len(k.queue) > 0 && !k.stopped {
		e := heap.Pop(&k.queue).(*event)
		k.now = e.when
		e.handler.ProcessEvent(e.payload, e.kind)
	}
}
