package flitsim

import (
	"math/rand"
	"strconv"
)

//
// Router: the full per-hop pipeline assembly, in both the
// input-queued and input-output-queued microarchitecture variants
// named by spec.md §6's router.type. Grounded on
// original_source/src/router/Router.h (shared base contract) and its
// two specializations, router/inputqueued/Router.cc and
// router/inputoutputqueued/Router.cc.
//

// RouterKind selects the router microarchitecture.
type RouterKind uint8

const (
	// RouterInputQueued buffers only at the input side; the main
	// crossbar's one-flit-per-output-per-cycle guarantee is sufficient
	// downstream pacing, so output ports need only a plain FIFO.
	RouterInputQueued RouterKind = iota

	// RouterInputOutputQueued adds a second buffering+arbitration stage
	// after the main crossbar, trading extra buffering for a
	// fully-decoupled, higher-throughput switch.
	RouterInputOutputQueued
)

// RouterCongestionMode selects which buffer occupancy a router's
// CongestionSensor credits are driven from.
type RouterCongestionMode uint8

const (
	// RouterCongestionOutput credits the sensor from the local output
	// (or output-queue) buffer.
	RouterCongestionOutput RouterCongestionMode = iota
	// RouterCongestionDownstream credits the sensor from the next hop's
	// input buffer, via returned credits.
	RouterCongestionDownstream
	// RouterCongestionOutputAndDownstream credits from both (only
	// meaningful for RouterInputOutputQueued, which has both stages).
	RouterCongestionOutputAndDownstream
)

// InputQueueMode selects how an input queue's depth is derived.
type InputQueueMode uint8

const (
	// InputQueueFixed uses a single configured depth for every port.
	InputQueueFixed InputQueueMode = iota
	// InputQueueTailored derives depth per-port from the attached
	// input channel's latency (spec §6 "tailored" input queue sizing).
	InputQueueTailored
)

// computeTailoredBufferLength derives a per-port buffer depth from a
// channel's round-trip latency, clamped to [min, max]. Grounded on
// spec.md §6's description of tailored sizing; original_source's
// architecture/util.cc (the literal formula Router.cc calls) was not
// present in the retrieved tree, so the clamp-around-a-multiplier
// shape here is a direct, conservative reading of that description
// rather than a ported formula.
func computeTailoredBufferLength(mult float64, min, max, channelLatency uint32) uint32 {
	depth := uint32(mult * float64(channelLatency))
	if depth < min {
		depth = min
	}
	if depth > max {
		depth = max
	}
	return depth
}

// RouterSettings carries every tunable knob of a Router, mirroring the
// JSON settings tree spec.md §6 assigns to a router.
type RouterSettings struct {
	Kind           RouterKind
	CongestionMode RouterCongestionMode

	InputQueueMode       InputQueueMode
	InputQueueDepth      uint32  // InputQueueFixed depth, or InputQueueTailored's output-side depth fallback
	InputQueueTailorMult float64 // InputQueueTailored multiplier applied to channel latency
	InputQueueMin        uint32
	InputQueueMax        uint32

	VcaSwaWait       bool
	OutputQueueDepth uint32 // required > 0 for both kinds

	VcSchedulerSettings             AllocatorSettings
	CrossbarSchedulerSettings       AllocatorSettings
	OutputCrossbarSchedulerSettings AllocatorSettings // RouterInputOutputQueued only
	CrossbarLatency                 uint32
	OutputCrossbarLatency           uint32 // RouterInputOutputQueued only

	// NewCongestionSensor builds this router's congestion sensor given
	// its port/vc shape; supplied by the network assembly since sensor
	// choice is a per-router config, not a router-intrinsic one.
	NewCongestionSensor func(device *PortedDevice) CongestionSensor

	// NewRoutingFunc builds the RoutingFunc attached at (port, vc);
	// supplied by the topology, since routing decisions need topology
	// knowledge the router itself doesn't have.
	NewRoutingFunc func(port, vc uint32) RoutingFunc
	RoutingLatency uint32

	// OnPacketArrival/OnPacketDeparture are optional hooks for
	// logging/metrics, called whenever a packet's head flit arrives at
	// or departs from this router.
	OnPacketArrival   func(port uint32, packet *Packet)
	OnPacketDeparture func(port uint32, packet *Packet)

	Rng *rand.Rand
}

// Router assembles the routing algorithms, input queues, VC/crossbar
// schedulers, crossbar(s), and output stage for one hop, and bridges
// between its attached input/output Channels and that pipeline.
type Router struct {
	*Component
	device PortedDevice

	kind           RouterKind
	congestionMode RouterCongestionMode
	creditSize     uint32

	settings RouterSettings

	congestionSensor  CongestionSensor
	crossbar          *Crossbar
	vcScheduler       *VcScheduler
	crossbarScheduler *CrossbarScheduler

	routingAlgorithms []*RoutingAlgorithm
	inputQueues       []*InputQueue

	// RouterInputQueued
	simpleOutputQueues []*SimpleOutputQueue

	// RouterInputOutputQueued
	outputQueues             []*OutputQueue
	outputCrossbarSchedulers []*CrossbarScheduler
	outputCrossbars          []*Crossbar
	ejectors                 []*Ejector

	inputChannels  []*Channel
	outputChannels []*Channel
}

// NewRouter builds a Router of the given shape and settings.
func NewRouter(kernel *Kernel, reg *registry, name string, parent *Component, id uint32, address []uint32, numPorts, numVcs uint32, settings RouterSettings) *Router {
	if settings.OutputQueueDepth == 0 {
		panic("flitsim: router output queue depth must be positive")
	}
	r := &Router{
		Component:      NewComponent(kernel, reg, name, parent),
		device:         NewPortedDevice(id, address, numPorts, numVcs),
		kind:           settings.Kind,
		congestionMode: settings.CongestionMode,
		settings:       settings,
		inputChannels:  make([]*Channel, numPorts),
		outputChannels: make([]*Channel, numPorts),
	}

	channelPeriod := kernel.Clocks().Period(ClockChannel)
	routerPeriod := kernel.Clocks().Period(ClockRouter)
	creditVcsPerSlot := (channelPeriod + routerPeriod - 1) / routerPeriod
	r.creditSize = numVcs * uint32(creditVcsPerSlot)

	r.congestionSensor = settings.NewCongestionSensor(&r.device)

	r.crossbar = NewCrossbar(kernel, reg, "Crossbar", r.Component, numPorts*numVcs, crossbarOutputs(settings.Kind, numPorts, numVcs), ClockRouter, settings.CrossbarLatency)
	r.vcScheduler = NewVcScheduler(kernel, reg, "VcScheduler", r.Component, numPorts*numVcs, numPorts*numVcs, ClockRouter, settings.VcSchedulerSettings, settings.Rng)
	r.crossbarScheduler = NewCrossbarScheduler(kernel, reg, "CrossbarScheduler", r.Component, numPorts*numVcs, numPorts*numVcs, crossbarOutputs(settings.Kind, numPorts, numVcs), 0, ClockRouter, settings.CrossbarSchedulerSettings, false, false, false, settings.Rng)

	r.routingAlgorithms = make([]*RoutingAlgorithm, numPorts*numVcs)
	r.inputQueues = make([]*InputQueue, numPorts*numVcs)
	for port := uint32(0); port < numPorts; port++ {
		for vc := uint32(0); vc < numVcs; vc++ {
			vcIdx := r.device.VcIndex(port, vc)
			suffix := portVcSuffix(port, vc)

			rf := NewRoutingAlgorithm(kernel, reg, "RoutingAlgorithm"+suffix, r.Component, 0, numVcs, port, vc, settings.RoutingLatency, settings.NewRoutingFunc(port, vc))
			r.routingAlgorithms[vcIdx] = rf

			decrWatcher := settings.CongestionMode == RouterCongestionOutput || settings.CongestionMode == RouterCongestionOutputAndDownstream
			iq := NewInputQueue(kernel, reg, "InputQueue"+suffix, r.Component, 0, port, vc, settings.VcaSwaWait, rf, r.vcScheduler, vcIdx, r.crossbarScheduler, vcIdx, r.crossbar, vcIdx, r.congestionSensor, decrWatcher, r.SendCredit)
			r.inputQueues[vcIdx] = iq
		}
	}

	switch settings.Kind {
	case RouterInputQueued:
		r.simpleOutputQueues = make([]*SimpleOutputQueue, numPorts)
		for port := uint32(0); port < numPorts; port++ {
			oq := NewSimpleOutputQueue(kernel, reg, "OutputQueue_"+uintToString(port), r.Component, settings.OutputQueueDepth, port, r.sendFlit)
			r.simpleOutputQueues[port] = oq
			r.crossbar.SetReceiver(port, oq, 0)
		}

	case RouterInputOutputQueued:
		incrWatcher := settings.CongestionMode == RouterCongestionOutput
		decrWatcher := settings.CongestionMode == RouterCongestionDownstream

		r.outputQueues = make([]*OutputQueue, numPorts*numVcs)
		r.outputCrossbarSchedulers = make([]*CrossbarScheduler, numPorts)
		r.outputCrossbars = make([]*Crossbar, numPorts)
		r.ejectors = make([]*Ejector, numPorts)
		for port := uint32(0); port < numPorts; port++ {
			ocs := NewCrossbarScheduler(kernel, reg, "OutputCrossbarScheduler_"+uintToString(port), r.Component, numVcs, numVcs, 1, port*numVcs, ClockChannel, settings.OutputCrossbarSchedulerSettings, false, false, false, settings.Rng)
			r.outputCrossbarSchedulers[port] = ocs

			ocb := NewCrossbar(kernel, reg, "OutputCrossbar_"+uintToString(port), r.Component, numVcs, 1, ClockChannel, settings.OutputCrossbarLatency)
			r.outputCrossbars[port] = ocb

			ej := NewEjector(kernel, reg, "Ejector_"+uintToString(port), r.Component, port, flitReceiverFunc(r.sendFlit))
			r.ejectors[port] = ej
			ocb.SetReceiver(0, ej, 0)

			for vc := uint32(0); vc < numVcs; vc++ {
				vcIdx := r.device.VcIndex(port, vc)
				oq := NewOutputQueue(kernel, reg, "OutputQueue"+portVcSuffix(port, vc), r.Component, settings.OutputQueueDepth, port, vc, ocs, vc, ocb, vc, r.crossbarScheduler, vcIdx, r.congestionSensor, vcIdx, incrWatcher, decrWatcher)
				r.outputQueues[vcIdx] = oq
				r.crossbar.SetReceiver(vcIdx, oq, 0)
			}
		}
	}

	return r
}

func crossbarOutputs(kind RouterKind, numPorts, numVcs uint32) uint32 {
	if kind == RouterInputQueued {
		return numPorts
	}
	return numPorts * numVcs
}

func uintToString(i uint32) string { return strconv.FormatUint(uint64(i), 10) }

func portVcSuffix(port, vc uint32) string {
	return "_" + uintToString(port) + "_" + uintToString(vc)
}

// Device returns this router's port/address descriptor.
func (r *Router) Device() *PortedDevice { return &r.device }

// SetInputChannel attaches the Channel delivering flits into port.
func (r *Router) SetInputChannel(port uint32, channel *Channel) {
	if r.inputChannels[port] != nil {
		panic("flitsim: router input channel already set")
	}
	r.inputChannels[port] = channel
	channel.SetSink(r, port)
}

// GetInputChannel returns the Channel attached to port, or nil.
func (r *Router) GetInputChannel(port uint32) *Channel { return r.inputChannels[port] }

// SetOutputChannel attaches the Channel carrying flits out of port.
func (r *Router) SetOutputChannel(port uint32, channel *Channel) {
	if r.outputChannels[port] != nil {
		panic("flitsim: router output channel already set")
	}
	r.outputChannels[port] = channel
	channel.SetSource(r, port)
}

// GetOutputChannel returns the Channel attached to port, or nil.
func (r *Router) GetOutputChannel(port uint32) *Channel { return r.outputChannels[port] }

// flitReceiverFunc adapts a plain function to FlitReceiver, used to
// wire a router's port-local ejector straight back to the router's
// own sendFlit without exposing sendFlit itself as public API.
type flitReceiverFunc func(port uint32, flit *Flit)

func (f flitReceiverFunc) ReceiveFlit(port uint32, flit *Flit) { f(port, flit) }

// Initialize sets tailored input queue depths and seeds every credit
// counter; call once, after all channels are attached.
func (r *Router) Initialize() {
	numPorts := r.device.NumPorts()
	numVcs := r.device.NumVcs()

	for port := uint32(0); port < numPorts; port++ {
		queueDepth := r.settings.InputQueueDepth
		if r.settings.InputQueueMode == InputQueueTailored {
			if ch := r.inputChannels[port]; ch != nil {
				queueDepth = computeTailoredBufferLength(r.settings.InputQueueTailorMult, r.settings.InputQueueMin, r.settings.InputQueueMax, ch.Latency())
			} else {
				queueDepth = 0
			}
		}
		for vc := uint32(0); vc < numVcs; vc++ {
			r.inputQueues[r.device.VcIndex(port, vc)].SetDepth(queueDepth)
		}
	}

	for port := uint32(0); port < numPorts; port++ {
		for vc := uint32(0); vc < numVcs; vc++ {
			vcIdx := r.device.VcIndex(port, vc)

			switch r.kind {
			case RouterInputQueued:
				r.crossbarScheduler.InitCredits(vcIdx, r.settings.OutputQueueDepth)
				r.congestionSensor.InitCredits(vcIdx, r.settings.OutputQueueDepth)

			case RouterInputOutputQueued:
				r.crossbarScheduler.InitCredits(vcIdx, r.settings.OutputQueueDepth)
				if r.congestionMode == RouterCongestionDownstream || r.congestionMode == RouterCongestionOutputAndDownstream {
					r.congestionSensor.InitCredits(vcIdx, r.settings.InputQueueDepth)
				}
				r.outputCrossbarSchedulers[port].InitCredits(vc, r.settings.InputQueueDepth)
				if r.congestionMode == RouterCongestionOutput || r.congestionMode == RouterCongestionOutputAndDownstream {
					r.congestionSensor.InitCredits(vcIdx, r.settings.OutputQueueDepth)
				}
				if r.congestionMode == RouterCongestionOutputAndDownstream {
					r.congestionSensor.InitCredits(vcIdx, 1)
				}
			}
		}
	}
}

// ReceiveFlit implements FlitReceiver: a neighbor delivered a flit on
// port.
func (r *Router) ReceiveFlit(port uint32, flit *Flit) {
	iq := r.inputQueues[r.device.VcIndex(port, flit.VC)]
	iq.ReceiveFlit(0, flit)
	if flit.Head {
		r.Debugf("packet %d arrived on port %d vc %d", flit.Packet.ID, port, flit.VC)
		if r.settings.OnPacketArrival != nil {
			r.settings.OnPacketArrival(port, flit.Packet)
		}
	}
}

// ReceiveCredit implements CreditReceiver: a neighbor returned credit
// on port.
func (r *Router) ReceiveCredit(port uint32, credit *Credit) {
	for credit.More() {
		vc := credit.GetVc()
		switch r.kind {
		case RouterInputQueued:
			vcIdx := r.device.VcIndex(port, vc)
			r.crossbarScheduler.IncrementCredit(vcIdx)
			if r.congestionMode == RouterCongestionDownstream {
				r.congestionSensor.IncrementCredit(vcIdx)
			}
		case RouterInputOutputQueued:
			r.outputCrossbarSchedulers[port].IncrementCredit(vc)
			if r.congestionMode == RouterCongestionDownstream || r.congestionMode == RouterCongestionOutputAndDownstream {
				vcIdx := r.device.VcIndex(port, vc)
				r.congestionSensor.IncrementCredit(vcIdx)
			}
		}
	}
}

// SendCredit implements CreditSender: returns one credit for vc on
// port, batching into the single outstanding credit for this Channel
// cycle if one already exists.
func (r *Router) SendCredit(port, vc uint32) {
	ch := r.inputChannels[port]
	credit := ch.GetNextCredit()
	if credit == nil {
		credit = NewCredit(r.creditSize)
		ch.SetNextCredit(credit)
	}
	credit.PutVc(vc)
}

func (r *Router) sendFlit(port uint32, flit *Flit) {
	ch := r.outputChannels[port]
	if ch.GetNextFlit() != nil {
		panic("flitsim: router output channel already has a flit this cycle")
	}
	ch.SetNextFlit(flit)
	if flit.Head && r.settings.OnPacketDeparture != nil {
		r.settings.OnPacketDeparture(port, flit.Packet)
	}
}

// CongestionStatus reports the post-processed congestion value for
// routing from (inputPort, inputVc) towards (outputPort, outputVc).
func (r *Router) CongestionStatus(inputPort, inputVc, outputPort, outputVc uint32) float64 {
	return r.congestionSensor.Status(inputPort, inputVc, outputPort, outputVc)
}

var (
	_ FlitReceiver   = &Router{}
	_ CreditReceiver = &Router{}
	_ CreditSender   = &Router{}
)
