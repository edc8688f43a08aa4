package flitsim

import "math/rand"

//
// Allocator: abstract bipartite matching between clients and
// resources, with pluggable client-side and resource-side arbitration.
// Grounded on spec.md §4.9 (the Allocator class itself lives outside
// original_source's retrieved tree; CrossbarScheduler.h/VcScheduler
// confirm the shape: a Request grid in, a Grant grid out, one
// allocation round per cycle).
//

// ArbiterPolicy selects how an Arbiter breaks ties among requestors.
type ArbiterPolicy uint8

const (
	// ArbiterRandom picks uniformly among the requestors.
	ArbiterRandom ArbiterPolicy = iota
	// ArbiterComparing picks the requestor with the largest metadata
	// value (ties broken randomly).
	ArbiterComparing
	// ArbiterLSLP implements least-recently-served-last-priority: the
	// requestor that has gone longest without winning is favored.
	ArbiterLSLP
)

// Arbiter picks one winner among a set of requesting indices each
// cycle, given an optional per-requestor metadata value used by the
// Comparing policy.
type Arbiter struct {
	policy  ArbiterPolicy
	rng     *rand.Rand
	size    uint32
	lastWon []uint64 // LSLP: cycle number each index last won, or 0
	cycle   uint64
}

// NewArbiter creates an Arbiter over size requestor indices.
func NewArbiter(policy ArbiterPolicy, size uint32, rng *rand.Rand) *Arbiter {
	a := &Arbiter{policy: policy, rng: rng, size: size}
	if policy == ArbiterLSLP {
		a.lastWon = make([]uint64, size)
	}
	return a
}

// Arbitrate picks a winner among requestors (indices into [0,size)),
// consulting metadata[i] (meaningful only for ArbiterComparing, keyed
// by requestor index) for tie-breaking. Panics if requestors is empty.
func (a *Arbiter) Arbitrate(requestors []uint32, metadata map[uint32]uint64) uint32 {
	if len(requestors) == 0 {
		panic("flitsim: arbiter invoked with no requestors")
	}
	a.cycle++
	switch a.policy {
	case ArbiterRandom:
		return requestors[a.rng.Intn(len(requestors))]

	case ArbiterComparing:
		best := requestors[0]
		bestVal := metadata[best]
		var tied []uint32
		tied = append(tied, best)
		for _, r := range requestors[1:] {
			v := metadata[r]
			if v > bestVal {
				best, bestVal = r, v
				tied = tied[:0]
				tied = append(tied, r)
			} else if v == bestVal {
				tied = append(tied, r)
			}
		}
		if len(tied) == 1 {
			return tied[0]
		}
		return tied[a.rng.Intn(len(tied))]

	case ArbiterLSLP:
		best := requestors[0]
		for _, r := range requestors[1:] {
			if a.lastWon[r] < a.lastWon[best] {
				best = r
			}
		}
		a.lastWon[best] = a.cycle
		return best

	default:
		panic("flitsim: unknown arbiter policy")
	}
}

// AllocatorStrategy names a built-in Allocator matching strategy (spec
// §4.9).
type AllocatorStrategy uint8

const (
	// StrategyRSeparable: one resource-side arbiter per resource,
	// iterated exactly once.
	StrategyRSeparable AllocatorStrategy = iota
	// StrategyRCSeparable: separable input-first-then-output-first
	// matching repeated for Iterations rounds.
	StrategyRCSeparable
)

// AllocatorSettings configures an Allocator (spec §4.9 and §6's
// `allocator: {type, resource_arbiter, client_arbiter, iterations,
// slip_latch}`).
type AllocatorSettings struct {
	Strategy        AllocatorStrategy
	ResourceArbiter ArbiterPolicy
	ClientArbiter   ArbiterPolicy
	Iterations      uint32 // rc_separable only; must be >= 1
	SlipLatch       bool
}

// Allocator performs one bipartite match per call between numClients
// clients and numResources resources. No client is granted more than
// one resource and no resource is granted to more than one client.
type Allocator struct {
	settings      AllocatorSettings
	numClients    uint32
	numResources  uint32
	resourceArb   []*Arbiter // one per resource
	clientArb     []*Arbiter // one per client (rc_separable only)
	slipBias      []uint32  // per resource: client index favored downward
	rng           *rand.Rand
}

// NewAllocator creates an Allocator over numClients x numResources.
func NewAllocator(settings AllocatorSettings, numClients, numResources uint32, rng *rand.Rand) *Allocator {
	if settings.Strategy == StrategyRCSeparable && settings.Iterations == 0 {
		panic("flitsim: rc_separable allocator requires iterations >= 1")
	}
	al := &Allocator{settings: settings, numClients: numClients, numResources: numResources, rng: rng}
	al.resourceArb = make([]*Arbiter, numResources)
	for i := range al.resourceArb {
		al.resourceArb[i] = NewArbiter(settings.ResourceArbiter, numClients, rng)
	}
	if settings.Strategy == StrategyRCSeparable {
		al.clientArb = make([]*Arbiter, numClients)
		for i := range al.clientArb {
			al.clientArb[i] = NewArbiter(settings.ClientArbiter, numResources, rng)
		}
	}
	if settings.SlipLatch {
		al.slipBias = make([]uint32, numResources)
		for i := range al.slipBias {
			al.slipBias[i] = NoneVC
		}
	}
	return al
}

// Request is one client's bid for one resource, carrying an opaque
// metadata value consulted by ArbiterComparing.
type Request struct {
	Client   uint32
	Resource uint32
	Metadata uint64
}

// Grant is the Allocator's answer: client is matched to resource, or
// resource == NoneVC if the client was not granted anything this round.
type Grant struct {
	Client   uint32
	Resource uint32
}

// Allocate runs one allocation round and returns exactly one Grant per
// distinct client that made a Request (resource == NoneVC if unmatched).
func (al *Allocator) Allocate(requests []Request) []Grant {
	switch al.settings.Strategy {
	case StrategyRSeparable:
		return al.allocateRSeparable(requests)
	case StrategyRCSeparable:
		return al.allocateRCSeparable(requests)
	default:
		panic("flitsim: unknown allocator strategy")
	}
}

func (al *Allocator) byResource(requests []Request) map[uint32][]Request {
	m := map[uint32][]Request{}
	for _, r := range requests {
		m[r.Resource] = append(m[r.Resource], r)
	}
	return m
}

// allocateRSeparable picks a winner for each resource in a single
// pass, then grants each client at most one resource: the first of its
// winning resources in request order. Any other resource that client
// won is left unassigned for this round.
func (al *Allocator) allocateRSeparable(requests []Request) []Grant {
	byRes := al.byResource(requests)
	winners := map[uint32]uint32{} // resource -> client
	for res, reqs := range byRes {
		winners[res] = al.pickForResource(res, reqs)
	}
	seenClient := map[uint32]bool{}
	var grants []Grant
	for _, r := range requests {
		if client, ok := winners[r.Resource]; ok && client == r.Client && !seenClient[r.Client] {
			seenClient[r.Client] = true
			grants = append(grants, Grant{Client: r.Client, Resource: r.Resource})
		}
	}
	for _, r := range requests {
		if !seenClient[r.Client] {
			seenClient[r.Client] = true
			grants = append(grants, Grant{Client: r.Client, Resource: NoneVC})
		}
	}
	return grants
}

func (al *Allocator) pickForResource(res uint32, reqs []Request) uint32 {
	idx := make([]uint32, len(reqs))
	meta := map[uint32]uint64{}
	for i, r := range reqs {
		idx[i] = r.Client
		meta[r.Client] = r.Metadata
	}
	if al.settings.SlipLatch && al.slipBias[res] != NoneVC {
		idx = deprioritize(idx, al.slipBias[res])
	}
	winner := al.resourceArb[res].Arbitrate(idx, meta)
	if al.settings.SlipLatch {
		al.slipBias[res] = winner
	}
	return winner
}

// allocateRCSeparable runs the separable input-first/output-first
// algorithm for Iterations rounds: each round, every unmatched
// resource picks among its remaining requestors, then every unmatched
// client picks among the resources that picked it; a double-accept
// finalizes the match for both sides.
func (al *Allocator) allocateRCSeparable(requests []Request) []Grant {
	remaining := append([]Request(nil), requests...)
	matchedClient := map[uint32]uint32{}   // client -> resource
	matchedResource := map[uint32]bool{}

	for iter := uint32(0); iter < al.settings.Iterations && len(remaining) > 0; iter++ {
		byRes := al.byResource(remaining)
		resourcePick := map[uint32]uint32{} // resource -> client it picked
		for res, reqs := range byRes {
			if matchedResource[res] {
				continue
			}
			resourcePick[res] = al.pickForResource(res, reqs)
		}

		byClient := map[uint32][]uint32{} // client -> resources that picked it
		for res, client := range resourcePick {
			byClient[client] = append(byClient[client], res)
		}

		newlyMatched := map[uint32]bool{}
		for client, resources := range byClient {
			if _, already := matchedClient[client]; already {
				continue
			}
			var chosen uint32
			if len(resources) == 1 {
				chosen = resources[0]
			} else {
				meta := map[uint32]uint64{}
				chosen = al.clientArb[client].Arbitrate(resources, meta)
			}
			matchedClient[client] = chosen
			matchedResource[chosen] = true
			newlyMatched[client] = true
		}

		var next []Request
		for _, r := range remaining {
			if newlyMatched[r.Client] || matchedResource[r.Resource] {
				continue
			}
			next = append(next, r)
		}
		remaining = next
	}

	var grants []Grant
	seen := map[uint32]bool{}
	for _, r := range requests {
		if seen[r.Client] {
			continue
		}
		seen[r.Client] = true
		if res, ok := matchedClient[r.Client]; ok {
			grants = append(grants, Grant{Client: r.Client, Resource: res})
		} else {
			grants = append(grants, Grant{Client: r.Client, Resource: NoneVC})
		}
	}
	return grants
}

// deprioritize moves favored to the back of idx so an arbiter
// consulted with these indices in order considers it last,
// implementing the iSLIP-style slip_latch downward bias (spec §4.9).
func deprioritize(idx []uint32, favored uint32) []uint32 {
	out := make([]uint32, 0, len(idx))
	var tail []uint32
	for _, i := range idx {
		if i == favored {
			tail = append(tail, i)
		} else {
			out = append(out, i)
		}
	}
	return append(out, tail...)
}
