package flitsim

//
// Crossbar: batches one destination-output map per Router cycle,
// transferring every mapped flit latency cycles later. Grounded on
// original_source/src/architecture/Crossbar.h and
// router/common/Crossbar.cc.
//

type crossbarDestMap struct {
	flits []*Flit
}

// Crossbar fans flits injected from numInputs input ports out to
// numOutputs output receivers, one destination map per clock cycle.
type Crossbar struct {
	*Component

	clock      Clock
	latency    uint32
	numInputs  uint32
	numOutputs uint32

	receiverPort []uint32
	receiver     []FlitReceiver

	nextTime   uint64
	nextTimeOk bool
	destMaps   []*crossbarDestMap // FIFO, oldest at index 0
}

// NewCrossbar creates a Crossbar with the given transfer latency in
// clock cycles.
func NewCrossbar(kernel *Kernel, reg *registry, name string, parent *Component, numInputs, numOutputs uint32, clock Clock, latency uint32) *Crossbar {
	if latency == 0 {
		panic("flitsim: crossbar latency must be positive")
	}
	cb := &Crossbar{
		Component:    NewComponent(kernel, reg, name, parent),
		clock:        clock,
		latency:      latency,
		numInputs:    numInputs,
		numOutputs:   numOutputs,
		receiverPort: make([]uint32, numOutputs),
		receiver:     make([]FlitReceiver, numOutputs),
	}
	for i := range cb.receiverPort {
		cb.receiverPort[i] = NonePort
	}
	cb.SetHandler(EventHandlerFunc(cb.processEvent))
	return cb
}

func (cb *Crossbar) NumInputs() uint32  { return cb.numInputs }
func (cb *Crossbar) NumOutputs() uint32 { return cb.numOutputs }

// SetReceiver attaches the FlitReceiver that destID maps to, and the
// port it should be told the flit arrived on.
func (cb *Crossbar) SetReceiver(destID uint32, receiver FlitReceiver, destPort uint32) {
	cb.receiverPort[destID] = destPort
	cb.receiver[destID] = receiver
}

// Inject maps flit to destID for this Router cycle's transfer; call
// once per destID per cycle (multiple distinct destIDs in one cycle
// is a multicast). Double-booking a destID in the same cycle is a
// program bug.
func (cb *Crossbar) Inject(flit *Flit, srcID, destID uint32) {
	nextTime := cb.Kernel().FutureCycle(cb.clock, 1)
	if !cb.nextTimeOk || cb.nextTime != nextTime {
		cb.nextTime = nextTime
		cb.nextTimeOk = true
		cb.destMaps = append(cb.destMaps, &crossbarDestMap{flits: make([]*Flit, cb.numOutputs)})
		deliverAt := cb.Kernel().FutureCycle(cb.clock, cb.latency)
		cb.AddEvent(VirtualTime{Tick: deliverAt, Epsilon: 1}, nil, 0)
	}

	m := cb.destMaps[len(cb.destMaps)-1]
	if m.flits[destID] != nil {
		panic("flitsim: crossbar output double-booked in the same cycle")
	}
	m.flits[destID] = flit
}

func (cb *Crossbar) processEvent(_ any, _ int32) {
	if len(cb.destMaps) == 0 {
		panic("flitsim: crossbar event fired with no pending destination map")
	}
	m := cb.destMaps[0]
	cb.destMaps = cb.destMaps[1:]

	for destID, flit := range m.flits {
		if flit == nil {
			continue
		}
		port := cb.receiverPort[destID]
		if port == NonePort {
			panic("flitsim: crossbar has no receiver bound for this destination")
		}
		cb.receiver[destID].ReceiveFlit(port, flit)
	}
}
