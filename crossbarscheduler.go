package flitsim

import "math/rand"

//
// CrossbarScheduler: wraps a bipartite Allocator (clients x crossbar
// output ports), gated by per-VC credit counts, so that a client only
// wins a port if its target VC currently has room downstream.
// Grounded on original_source/src/architecture/CrossbarScheduler.h
// (Client interface, request/response shape, fullPacket_/packetLock_/
// idleUnlock_ flags, credit bookkeeping) and CrossbarScheduler_TEST.cc
// (request-response-decrementCredit-release lifecycle).
//

// CrossbarSchedulerClient receives the outcome of a crossbar
// allocation round: the granted (port, vcIdx), or (NonePort, NoneVC)
// if this round's request lost.
type CrossbarSchedulerClient interface {
	CrossbarSchedulerResponse(port, vcIdx uint32)
}

// CrossbarScheduler runs one allocation round per clock cycle over
// numClients input-queue clients contending for crossbarPorts output
// ports, gated by credit availability on totalVcs downstream VCs.
type CrossbarScheduler struct {
	*Component

	numClients     uint32
	totalVcs       uint32
	crossbarPorts  uint32
	globalVcOffset uint32
	clock          Clock

	fullPacket bool
	packetLock bool
	idleUnlock bool

	clients []CrossbarSchedulerClient

	credits    []uint32
	maxCredits []uint32

	lockedClient []uint32 // per port: client currently holding the lock, or NoneVC

	pending   []Request
	pendingFlit map[uint32]*Flit // client -> flit of its pending request
	pendingAt uint64

	allocator *Allocator
}

// NewCrossbarScheduler creates a CrossbarScheduler.
func NewCrossbarScheduler(kernel *Kernel, reg *registry, name string, parent *Component, numClients, totalVcs, crossbarPorts, globalVcOffset uint32, clock Clock, settings AllocatorSettings, fullPacket, packetLock, idleUnlock bool, rng *rand.Rand) *CrossbarScheduler {
	cs := &CrossbarScheduler{
		Component:      NewComponent(kernel, reg, name, parent),
		numClients:     numClients,
		totalVcs:       totalVcs,
		crossbarPorts:  crossbarPorts,
		globalVcOffset: globalVcOffset,
		clock:          clock,
		fullPacket:     fullPacket,
		packetLock:     packetLock,
		idleUnlock:     idleUnlock,
		clients:        make([]CrossbarSchedulerClient, numClients),
		credits:        make([]uint32, totalVcs),
		maxCredits:     make([]uint32, totalVcs),
		lockedClient:   make([]uint32, crossbarPorts),
		pendingFlit:    map[uint32]*Flit{},
		allocator:      NewAllocator(settings, numClients, crossbarPorts, rng),
	}
	for i := range cs.lockedClient {
		cs.lockedClient[i] = NoneVC
	}
	cs.SetHandler(EventHandlerFunc(cs.processEvent))
	return cs
}

// NumClients returns the configured client count.
func (cs *CrossbarScheduler) NumClients() uint32 { return cs.numClients }

// TotalVcs returns the configured VC count.
func (cs *CrossbarScheduler) TotalVcs() uint32 { return cs.totalVcs }

// CrossbarPorts returns the configured output port count.
func (cs *CrossbarScheduler) CrossbarPorts() uint32 { return cs.crossbarPorts }

// SetClient links client id to its callback target.
func (cs *CrossbarScheduler) SetClient(id uint32, client CrossbarSchedulerClient) {
	cs.clients[id] = client
}

// InitCredits records the initial and maximum credit count for vcIdx.
func (cs *CrossbarScheduler) InitCredits(vcIdx uint32, credits uint32) {
	cs.maxCredits[vcIdx] += credits
	cs.credits[vcIdx] += credits
}

// IncrementCredit records a credit returned from downstream.
func (cs *CrossbarScheduler) IncrementCredit(vcIdx uint32) {
	if cs.credits[vcIdx] >= cs.maxCredits[vcIdx] {
		panic("flitsim: crossbar scheduler credit count exceeds maximum")
	}
	cs.credits[vcIdx]++
}

// DecrementCredit records a credit consumed locally by a granted flit.
func (cs *CrossbarScheduler) DecrementCredit(vcIdx uint32) {
	if cs.credits[vcIdx] == 0 {
		panic("flitsim: crossbar scheduler credit count underflow")
	}
	cs.credits[vcIdx]--
}

// GetCreditCount returns the current free-credit count for vcIdx.
func (cs *CrossbarScheduler) GetCreditCount(vcIdx uint32) uint32 { return cs.credits[vcIdx] }

func (cs *CrossbarScheduler) creditAvailable(vcIdx uint32, flit *Flit) bool {
	if cs.fullPacket && flit.Head {
		return cs.credits[vcIdx] >= flit.Packet.Length()
	}
	return cs.credits[vcIdx] > 0
}

// Request submits client's bid to send flit out on port via vcIdx. A
// bid made at epsilon 0 of a cycle boundary is decided at epsilon 1 of
// the same cycle; any other bid is decided at epsilon 1 of the next
// cycle.
func (cs *CrossbarScheduler) Request(client, port, vcIdx uint32, flit *Flit) {
	cs.pending = append(cs.pending, Request{Client: client, Resource: port, Metadata: uint64(vcIdx)})
	cs.pendingFlit[client] = flit
	cur := cs.Kernel().Clocks().Cycle(cs.clock, cs.Kernel().Now().Tick)
	if cs.pendingAt != cur+1 {
		cs.pendingAt = cur + 1
		when := cs.Kernel().Now()
		when.Epsilon = 1
		if cs.Kernel().Now().Epsilon < 1 && cs.Kernel().Clocks().IsCycle(cs.clock, when.Tick) {
			cs.AddEvent(when, nil, 0)
		} else {
			future := cs.Kernel().FutureCycle(cs.clock, 1)
			cs.AddEvent(VirtualTime{Tick: future, Epsilon: 1}, nil, 0)
		}
	}
}

func (cs *CrossbarScheduler) processEvent(_ any, _ int32) {
	batch := cs.pending
	cs.pending = nil
	cs.pendingAt = 0
	flits := cs.pendingFlit
	cs.pendingFlit = map[uint32]*Flit{}

	grantedVc := map[uint32]uint32{} // client -> vcIdx granted this round
	grantedPort := map[uint32]uint32{}
	wantsPort := make([]bool, cs.crossbarPorts)
	var eligible []Request

	for _, r := range batch {
		vcIdx := uint32(r.Metadata)
		flit := flits[r.Client]
		wantsPort[r.Resource] = true

		if cs.packetLock && cs.lockedClient[r.Resource] == r.Client {
			// already holds the lock: auto-grant if credit allows.
			if cs.creditAvailable(vcIdx, flit) {
				grantedVc[r.Client] = vcIdx
				grantedPort[r.Client] = r.Resource
				if flit.Tail {
					cs.lockedClient[r.Resource] = NoneVC
				}
			}
			continue
		}
		if cs.packetLock && cs.lockedClient[r.Resource] != NoneVC {
			continue // port locked by someone else this round
		}
		if !cs.creditAvailable(vcIdx, flit) {
			continue
		}
		eligible = append(eligible, Request{Client: r.Client, Resource: r.Resource, Metadata: r.Metadata})
	}

	if cs.idleUnlock {
		for port, holder := range cs.lockedClient {
			if holder != NoneVC && !wantsPort[port] {
				cs.lockedClient[port] = NoneVC
			}
		}
	}

	if len(eligible) > 0 {
		for _, g := range cs.allocator.Allocate(eligible) {
			if g.Resource == NoneVC {
				continue
			}
			grantedVc[g.Client] = uint32(reqMetadataFor(batch, g.Client))
			grantedPort[g.Client] = g.Resource
			if cs.packetLock {
				flit := flits[g.Client]
				if !flit.Tail {
					cs.lockedClient[g.Resource] = g.Client
				}
			}
		}
	}

	for _, r := range batch {
		if port, ok := grantedPort[r.Client]; ok {
			cs.clients[r.Client].CrossbarSchedulerResponse(port, grantedVc[r.Client])
		} else {
			cs.clients[r.Client].CrossbarSchedulerResponse(NonePort, NoneVC)
		}
	}
}

func reqMetadataFor(batch []Request, client uint32) uint64 {
	for _, r := range batch {
		if r.Client == client {
			return r.Metadata
		}
	}
	panic("flitsim: no pending request for granted client")
}
