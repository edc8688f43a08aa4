package flitsim

//
// InputQueue: a per-(input-port, input-VC) FIFO plus the three-stage
// router pipeline (RFE route-function execution, VCA VC allocation,
// SWA switch allocation). Grounded on spec.md §4.6 and
// original_source/src/router/inputoutputqueued/InputQueue.h (pipeline
// register shapes, FSM name, single-flit-per-cycle receive guard).
//

// PipelineFSM is the state of one InputQueue pipeline stage.
type PipelineFSM uint8

const (
	PipelineEmpty PipelineFSM = iota
	PipelineWaitingToRequest
	PipelineWaitingForResponse
	PipelineReadyToAdvance
)

type rfeStage struct {
	fsm   PipelineFSM
	flit  *Flit
	route RoutingResponse
}

type vcaStage struct {
	fsm            PipelineFSM
	flit           *Flit
	route          RoutingResponse
	allocatedPort  uint32
	allocatedVc    uint32
	allocatedVcIdx uint32
}

type swaStage struct {
	fsm           PipelineFSM
	flit          *Flit
	allocatedPort uint32
	allocatedVc   uint32
}

type activeGrant struct {
	port, vc uint32
	valid    bool
}

// InputQueue owns the buffer and pipeline registers for one input
// (port, vc). It is the RoutingAlgorithm/VcScheduler/CrossbarScheduler
// client for its VC and the FlitReceiver the upstream Channel delivers
// to.
type InputQueue struct {
	*Component

	depth uint32
	port  uint32
	vc    uint32

	vcaSwaWait bool

	routingAlgorithm *RoutingAlgorithm

	vcScheduler      *VcScheduler
	vcSchedulerIndex uint32

	crossbarScheduler      *CrossbarScheduler
	crossbarSchedulerIndex uint32

	crossbar      *Crossbar
	crossbarIndex uint32

	creditWatcher     CreditWatcher
	decrCreditWatcher bool

	// sendCredit returns one credit for (port, vc) to the upstream
	// sender, called whenever a flit leaves the buffer and frees a slot.
	sendCredit func(port, vc uint32)

	lastReceivedTime   uint64
	lastReceivedTimeOk bool

	eventPending bool

	buffer []*Flit

	rfe rfeStage
	vca vcaStage
	swa swaStage

	active activeGrant // remembered VC grant reused by body/tail flits

	vcaLocked bool // vcaSwaWait: VCA stays occupied until SWA drains
}

// NewInputQueue creates an InputQueue for (port, vc).
// crossbarSchedulerIndex is this queue's client id on crossbarScheduler;
// vcSchedulerIndex is its client id on vcScheduler. creditWatcher may
// be nil. sendCredit is the owning Router's SendCredit method, called
// with (port, vc) whenever a flit leaves the buffer, so the upstream
// sender's crossbar-scheduler credits are replenished (spec §4.8;
// original_source/src/router/inputoutputqueued/InputQueue.h's
// router_ back-pointer, used the same way by
// router/inputqueued/Router.cc's credit return path).
func NewInputQueue(kernel *Kernel, reg *registry, name string, parent *Component, depth, port, vc uint32, vcaSwaWait bool, routingAlgorithm *RoutingAlgorithm, vcScheduler *VcScheduler, vcSchedulerIndex uint32, crossbarScheduler *CrossbarScheduler, crossbarSchedulerIndex uint32, crossbar *Crossbar, crossbarIndex uint32, creditWatcher CreditWatcher, decrCreditWatcher bool, sendCredit func(port, vc uint32)) *InputQueue {
	iq := &InputQueue{
		Component:              NewComponent(kernel, reg, name, parent),
		depth:                  depth,
		port:                   port,
		vc:                     vc,
		vcaSwaWait:             vcaSwaWait,
		routingAlgorithm:       routingAlgorithm,
		vcScheduler:            vcScheduler,
		vcSchedulerIndex:       vcSchedulerIndex,
		crossbarScheduler:      crossbarScheduler,
		crossbarSchedulerIndex: crossbarSchedulerIndex,
		crossbar:               crossbar,
		crossbarIndex:          crossbarIndex,
		creditWatcher:          creditWatcher,
		decrCreditWatcher:      decrCreditWatcher,
		sendCredit:             sendCredit,
	}
	iq.SetHandler(EventHandlerFunc(iq.processEvent))
	vcScheduler.SetClient(vcSchedulerIndex, iq)
	crossbarScheduler.SetClient(crossbarSchedulerIndex, iq)
	return iq
}

// SetDepth changes the buffer capacity (tailor mode, spec §6).
func (iq *InputQueue) SetDepth(depth uint32) { iq.depth = depth }

// ReceiveFlit enqueues flit, enforcing the at-most-one-flit-per-cycle
// receive guard, and kicks the pipeline.
func (iq *InputQueue) ReceiveFlit(_ uint32, flit *Flit) {
	now := iq.Kernel().Now().Tick
	if iq.lastReceivedTimeOk && iq.lastReceivedTime == now {
		panic("flitsim: input queue received more than one flit in the same cycle")
	}
	iq.lastReceivedTime = now
	iq.lastReceivedTimeOk = true
	if iq.depth > 0 && uint32(len(iq.buffer)) >= iq.depth {
		panic("flitsim: input queue buffer overflow")
	}
	iq.buffer = append(iq.buffer, flit)
	iq.setPipelineEvent()
}

func (iq *InputQueue) setPipelineEvent() {
	if iq.eventPending {
		return
	}
	iq.eventPending = true
	when := iq.Kernel().Now()
	if when.Epsilon < 1 {
		when.Epsilon = 1
	} else {
		future := iq.Kernel().FutureCycle(ClockRouter, 1)
		when = VirtualTime{Tick: future, Epsilon: 1}
	}
	iq.AddEvent(when, nil, 0)
}

func (iq *InputQueue) processEvent(_ any, _ int32) {
	iq.eventPending = false
	iq.processPipeline()
}

func (iq *InputQueue) processPipeline() {
	// RFE: route-function execution, head flits only.
	if iq.rfe.fsm == PipelineEmpty && len(iq.buffer) > 0 && iq.buffer[0].Head {
		iq.rfe.flit = iq.buffer[0]
		iq.buffer = iq.buffer[1:]
		iq.sendCredit(iq.port, iq.vc)
		iq.rfe.fsm = PipelineWaitingToRequest
	}
	if iq.rfe.fsm == PipelineWaitingToRequest {
		iq.rfe.route.Clear()
		iq.routingAlgorithm.Request(iq, iq.rfe.flit, &iq.rfe.route)
		iq.rfe.fsm = PipelineWaitingForResponse
	}
	if iq.rfe.fsm == PipelineReadyToAdvance && iq.vca.fsm == PipelineEmpty && !iq.vcaLocked {
		iq.vca.flit = iq.rfe.flit
		iq.vca.route = iq.rfe.route
		iq.vca.fsm = PipelineWaitingToRequest
		iq.rfe.flit = nil
		iq.rfe.fsm = PipelineEmpty
		iq.setPipelineEvent()
	}

	// VCA: VC allocation, head flits only; body/tail flits bypass VCA
	// entirely via the remembered active grant.
	if iq.vca.fsm == PipelineWaitingToRequest {
		for i := uint32(0); i < iq.vca.route.Size(); i++ {
			port, vc := iq.vca.route.Get(i)
			iq.vcScheduler.Request(iq.vcSchedulerIndex, vc, uint64(iq.vca.flit.Packet.Hops))
			_ = port
		}
		iq.vca.fsm = PipelineWaitingForResponse
	}
	if iq.vca.fsm == PipelineReadyToAdvance && iq.swa.fsm == PipelineEmpty {
		iq.swa.flit = iq.vca.flit
		iq.swa.allocatedPort = iq.vca.allocatedPort
		iq.swa.allocatedVc = iq.vca.allocatedVc
		iq.swa.fsm = PipelineWaitingToRequest
		iq.active = activeGrant{port: iq.vca.allocatedPort, vc: iq.vca.allocatedVc, valid: true}
		iq.vca.flit = nil
		iq.vca.fsm = PipelineEmpty
		if iq.vcaSwaWait {
			iq.vcaLocked = true
		}
		iq.setPipelineEvent()
	}

	// Body/tail flits: go straight to SWA using the remembered grant.
	if iq.swa.fsm == PipelineEmpty && len(iq.buffer) > 0 && !iq.buffer[0].Head && iq.active.valid {
		iq.swa.flit = iq.buffer[0]
		iq.buffer = iq.buffer[1:]
		iq.sendCredit(iq.port, iq.vc)
		iq.swa.allocatedPort = iq.active.port
		iq.swa.allocatedVc = iq.active.vc
		iq.swa.fsm = PipelineWaitingToRequest
	}

	// SWA: switch allocation.
	if iq.swa.fsm == PipelineWaitingToRequest {
		vcIdx := VcIndex(iq.swa.allocatedPort, iq.swa.allocatedVc, iq.vcScheduler.TotalVcs()/iq.crossbarScheduler.CrossbarPorts())
		iq.crossbarScheduler.Request(iq.crossbarSchedulerIndex, iq.swa.allocatedPort, vcIdx, iq.swa.flit)
		iq.swa.fsm = PipelineWaitingForResponse
	}
	if iq.swa.fsm == PipelineReadyToAdvance {
		iq.crossbar.Inject(iq.swa.flit, iq.crossbarIndex, iq.swa.allocatedPort)
		if iq.swa.flit.Tail {
			iq.vcScheduler.ReleaseVc(iq.swa.allocatedVc)
			iq.active.valid = false
			iq.active.port, iq.active.vc = NonePort, NoneVC
		}
		iq.swa.flit = nil
		iq.swa.fsm = PipelineEmpty
		iq.vcaLocked = false
		iq.setPipelineEvent()
	}
}

// VcIndex is a package-level convenience mirroring PortedDevice's
// formula, usable where only a port/vc width pair (not a full
// PortedDevice) is in scope.
func VcIndex(port, vc, numVcs uint32) uint32 { return port*numVcs + vc }

// RoutingAlgorithmResponse implements RoutingAlgorithmClient.
func (iq *InputQueue) RoutingAlgorithmResponse(response *RoutingResponse) {
	iq.rfe.fsm = PipelineReadyToAdvance
	iq.setPipelineEvent()
}

// VcSchedulerResponse implements VcSchedulerClient.
func (iq *InputQueue) VcSchedulerResponse(vc uint32) {
	if vc == NoneVC {
		iq.vca.fsm = PipelineWaitingToRequest
		iq.setPipelineEvent() // re-request next round
		return
	}
	iq.vca.allocatedVc = vc
	for i := uint32(0); i < iq.vca.route.Size(); i++ {
		p, v := iq.vca.route.Get(i)
		if v == vc {
			iq.vca.allocatedPort = p
			break
		}
	}
	iq.vca.fsm = PipelineReadyToAdvance
	iq.setPipelineEvent()
}

// CrossbarSchedulerResponse implements CrossbarSchedulerClient.
func (iq *InputQueue) CrossbarSchedulerResponse(port, vcIdx uint32) {
	if port == NonePort {
		iq.swa.fsm = PipelineWaitingToRequest
		iq.setPipelineEvent() // re-request next round
		return
	}
	if iq.decrCreditWatcher && iq.creditWatcher != nil {
		iq.creditWatcher.DecrementCredit(vcIdx)
	}
	iq.crossbarScheduler.DecrementCredit(vcIdx)
	iq.swa.fsm = PipelineReadyToAdvance
	iq.setPipelineEvent()
}
