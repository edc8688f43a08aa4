package flitsim

//
// RoutingAlgorithm: the pluggable per-input-port/per-input-vc routing
// function. A client submits a flit for routing; latency Router
// cycles later the algorithm is asked to compute candidates and the
// client is called back. Grounded on
// original_source/src/network/RoutingAlgorithm.{h,cc}.
//

// RoutingResponse is an ordered list of (port, vc) candidates a
// routing algorithm considers acceptable for a flit; the downstream
// VC allocator picks among them (spec §4.10).
type RoutingResponse struct {
	entries []routingCandidate
}

type routingCandidate struct {
	port, vc uint32
}

// Clear empties the response for reuse.
func (r *RoutingResponse) Clear() { r.entries = r.entries[:0] }

// Add appends a (port, vc) candidate.
func (r *RoutingResponse) Add(port, vc uint32) {
	r.entries = append(r.entries, routingCandidate{port, vc})
}

// Size returns the number of candidates.
func (r *RoutingResponse) Size() uint32 { return uint32(len(r.entries)) }

// Get returns the port and vc of the candidate at index.
func (r *RoutingResponse) Get(index uint32) (port, vc uint32) {
	e := r.entries[index]
	return e.port, e.vc
}

// RoutingAlgorithmClient receives the outcome of a routing request.
type RoutingAlgorithmClient interface {
	RoutingAlgorithmResponse(response *RoutingResponse)
}

// RoutingFunc computes the candidate output set for flit into
// response. It is not passed the algorithm's attachment point
// (inputPort/inputVc) or VC subrange; implementations read those and
// any router topology/state through whatever closures/fields they
// were built with (spec §4.10's `processRequest`); this package only fixes the
// pluggable contract and its scheduling.
type RoutingFunc func(flit *Flit, response *RoutingResponse)

// RoutingAlgorithm schedules a routing decision latency Router cycles
// after request is called, then invokes compute and calls the client
// back with the populated Response.
type RoutingAlgorithm struct {
	*Component

	baseVc    uint32
	numVcs    uint32
	inputPort uint32
	inputVc   uint32
	latency   uint32

	compute RoutingFunc
}

type routingEventPackage struct {
	client   RoutingAlgorithmClient
	flit     *Flit
	response *RoutingResponse
}

// NewRoutingAlgorithm creates a RoutingAlgorithm attached at
// (inputPort, inputVc) — use NonePort/NoneVC when an attachment point
// doesn't apply — covering the VC subrange [baseVc, baseVc+numVcs).
func NewRoutingAlgorithm(kernel *Kernel, reg *registry, name string, parent *Component, baseVc, numVcs, inputPort, inputVc, latency uint32, compute RoutingFunc) *RoutingAlgorithm {
	if latency == 0 {
		panic("flitsim: routing algorithm latency must be positive")
	}
	ra := &RoutingAlgorithm{
		Component: NewComponent(kernel, reg, name, parent),
		baseVc:    baseVc,
		numVcs:    numVcs,
		inputPort: inputPort,
		inputVc:   inputVc,
		latency:   latency,
		compute:   compute,
	}
	ra.SetHandler(EventHandlerFunc(ra.processEvent))
	return ra
}

func (ra *RoutingAlgorithm) Latency() uint32   { return ra.latency }
func (ra *RoutingAlgorithm) BaseVc() uint32    { return ra.baseVc }
func (ra *RoutingAlgorithm) NumVcs() uint32    { return ra.numVcs }
func (ra *RoutingAlgorithm) InputPort() uint32 { return ra.inputPort }
func (ra *RoutingAlgorithm) InputVc() uint32   { return ra.inputVc }

// Request submits flit for a routing decision; client is called back
// with response populated, latency Router cycles from now.
func (ra *RoutingAlgorithm) Request(client RoutingAlgorithmClient, flit *Flit, response *RoutingResponse) {
	when := ra.Kernel().FutureCycle(ClockRouter, ra.latency)
	ra.AddEvent(VirtualTime{Tick: when, Epsilon: 0}, &routingEventPackage{client, flit, response}, 0)
}

// VcScheduled notifies the algorithm that flit was granted (port, vc)
// by the downstream VC allocator, for algorithms that track per-flit
// routing history (e.g. adaptive algorithms updating a routing
// extension). The default is a no-op; stateful algorithms should
// close over their own tracking in compute and ignore this hook, or
// wrap RoutingAlgorithm to intercept it.
func (ra *RoutingAlgorithm) VcScheduled(flit *Flit, port, vc uint32) {}

func (ra *RoutingAlgorithm) processEvent(payload any, _ int32) {
	evt := payload.(*routingEventPackage)
	evt.response.Clear()
	ra.compute(evt.flit, evt.response)
	if evt.response.Size() == 0 {
		panic("flitsim: routing algorithm produced no candidates")
	}
	for _, c := range evt.response.entries {
		if c.vc < ra.baseVc || c.vc >= ra.baseVc+ra.numVcs {
			panic("flitsim: routing algorithm candidate vc out of configured subrange")
		}
	}
	evt.client.RoutingAlgorithmResponse(evt.response)
}
