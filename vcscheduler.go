package flitsim

import "math/rand"

//
// VcScheduler: wraps a bipartite Allocator (clients x VCs). Clients
// submit a request each Router cycle; one allocation round runs per
// cycle and each requesting client is called back with the VC it won,
// or NoneVC. Grounded on spec.md §4.8 and
// original_source/src/architecture/VcScheduler_TEST.cc (setClient,
// request, releaseVc, vcSchedulerResponse wiring and re-request loop).
//

// VcSchedulerClient receives the outcome of a VC allocation round.
type VcSchedulerClient interface {
	VcSchedulerResponse(vc uint32)
}

// VcScheduler runs one allocation round per Router cycle over
// numClients clients contending for totalVcs virtual channels.
type VcScheduler struct {
	*Component

	numClients uint32
	totalVcs   uint32
	clock      Clock

	clients  []VcSchedulerClient
	held     []bool // vc -> currently granted and not yet released
	pending  []Request
	pendingAt uint64 // cycle the pending batch belongs to; 0 means none scheduled

	allocator *Allocator
}

// NewVcScheduler creates a VcScheduler driven by clock (ordinarily
// ClockRouter).
func NewVcScheduler(kernel *Kernel, reg *registry, name string, parent *Component, numClients, totalVcs uint32, clock Clock, settings AllocatorSettings, rng *rand.Rand) *VcScheduler {
	vs := &VcScheduler{
		Component:  NewComponent(kernel, reg, name, parent),
		numClients: numClients,
		totalVcs:   totalVcs,
		clock:      clock,
		clients:    make([]VcSchedulerClient, numClients),
		held:       make([]bool, totalVcs),
		allocator:  NewAllocator(settings, numClients, totalVcs, rng),
	}
	vs.SetHandler(EventHandlerFunc(vs.processEvent))
	return vs
}

// NumClients returns the configured client count.
func (vs *VcScheduler) NumClients() uint32 { return vs.numClients }

// TotalVcs returns the configured VC count.
func (vs *VcScheduler) TotalVcs() uint32 { return vs.totalVcs }

// SetClient links client id to its callback target.
func (vs *VcScheduler) SetClient(id uint32, client VcSchedulerClient) {
	vs.clients[id] = client
}

// Request submits client's bid for vc this cycle, with metadata used
// by a Comparing resource arbiter. The round runs, and every
// requesting client is called back, at this cycle's epsilon 1 when the
// request is made at epsilon 0 of a cycle boundary, and at the next
// cycle's epsilon 1 otherwise.
func (vs *VcScheduler) Request(client, vc uint32, metadata uint64) {
	vs.pending = append(vs.pending, Request{Client: client, Resource: vc, Metadata: metadata})
	cur := vs.Kernel().Clocks().Cycle(vs.clock, vs.Kernel().Now().Tick)
	if vs.pendingAt != cur+1 {
		vs.pendingAt = cur + 1
		when := vs.Kernel().Now()
		when.Epsilon = 1
		if vs.Kernel().Now().Epsilon < 1 && vs.Kernel().Clocks().IsCycle(vs.clock, when.Tick) {
			vs.AddEvent(when, nil, 0)
		} else {
			future := vs.Kernel().FutureCycle(vs.clock, 1)
			vs.AddEvent(VirtualTime{Tick: future, Epsilon: 1}, nil, 0)
		}
	}
}

// ReleaseVc frees vc so it may be granted again in future rounds.
func (vs *VcScheduler) ReleaseVc(vc uint32) {
	if !vs.held[vc] {
		panic("flitsim: releaseVc on a vc that was not held")
	}
	vs.held[vc] = false
}

func (vs *VcScheduler) processEvent(_ any, _ int32) {
	batch := vs.pending
	vs.pending = nil
	vs.pendingAt = 0

	var eligible []Request
	for _, r := range batch {
		if !vs.held[r.Resource] {
			eligible = append(eligible, r)
		}
	}
	grants := vs.allocator.Allocate(eligible)
	grantedVc := map[uint32]uint32{}
	for _, g := range grants {
		grantedVc[g.Client] = g.Resource
	}
	notified := map[uint32]bool{}
	for _, r := range batch {
		if notified[r.Client] {
			continue
		}
		notified[r.Client] = true
		vc, ok := grantedVc[r.Client]
		if !ok || vc == NoneVC {
			vs.clients[r.Client].VcSchedulerResponse(NoneVC)
			continue
		}
		vs.held[vc] = true
		vs.clients[r.Client].VcSchedulerResponse(vc)
	}
}
