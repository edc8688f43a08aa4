package flitsim

//
// InjectionQueue: a terminal interface's per-VC buffer between
// message injection and the interface's own small injection crossbar.
// Grounded on original_source/src/interface/standard/OutputQueue.h,
// the same SWA-only pipeline shape as the router's OutputQueue but
// feeding a single-port crossbar with no upstream main-crossbar
// scheduler to notify.
//

// InjectionQueue buffers flits handed to it by message injection and
// arbitrates them onto the interface's crossbar, telling watcher
// (the interface's own adaptive-injection occupancy bookkeeping) when
// a flit leaves the buffer.
type InjectionQueue struct {
	*Component

	vc uint32

	crossbarScheduler      *CrossbarScheduler
	crossbarSchedulerIndex uint32
	crossbar               *Crossbar
	crossbarIndex          uint32

	watcher CreditWatcher

	eventPending bool

	buffer []*Flit
	swa    swaStage
}

// NewInjectionQueue creates an InjectionQueue for vc.
func NewInjectionQueue(kernel *Kernel, reg *registry, name string, parent *Component, crossbarScheduler *CrossbarScheduler, crossbarSchedulerIndex uint32, crossbar *Crossbar, crossbarIndex, vc uint32, watcher CreditWatcher) *InjectionQueue {
	iq := &InjectionQueue{
		Component:              NewComponent(kernel, reg, name, parent),
		vc:                     vc,
		crossbarScheduler:      crossbarScheduler,
		crossbarSchedulerIndex: crossbarSchedulerIndex,
		crossbar:               crossbar,
		crossbarIndex:          crossbarIndex,
		watcher:                watcher,
	}
	iq.SetHandler(EventHandlerFunc(iq.processEvent))
	crossbarScheduler.SetClient(crossbarSchedulerIndex, iq)
	return iq
}

// ReceiveFlit accepts one flit for injection. Unlike a router
// InputQueue, which receives at most one flit per cycle from a
// Channel, Interface.injectMessage hands an entire packet's flits to
// its target VC's InjectionQueue in one pass (spec §4.4 "enqueue all
// flits into per-VC output queues"; original_source's
// interface/standard/Interface.cc's injectMessage loop), so there is
// no single-flit-per-cycle arrival guard here.
func (iq *InjectionQueue) ReceiveFlit(_ uint32, flit *Flit) {
	iq.buffer = append(iq.buffer, flit)
	iq.setPipelineEvent()
}

func (iq *InjectionQueue) setPipelineEvent() {
	if iq.eventPending {
		return
	}
	iq.eventPending = true
	when := iq.Kernel().Now()
	if when.Epsilon < 1 {
		when.Epsilon = 1
	} else {
		future := iq.Kernel().FutureCycle(ClockChannel, 1)
		when = VirtualTime{Tick: future, Epsilon: 1}
	}
	iq.AddEvent(when, nil, 0)
}

func (iq *InjectionQueue) processEvent(_ any, _ int32) {
	iq.eventPending = false
	iq.processPipeline()
}

func (iq *InjectionQueue) processPipeline() {
	if iq.swa.fsm == PipelineEmpty && len(iq.buffer) > 0 {
		iq.swa.flit = iq.buffer[0]
		iq.buffer = iq.buffer[1:]
		iq.swa.fsm = PipelineWaitingToRequest
	}
	if iq.swa.fsm == PipelineWaitingToRequest {
		iq.crossbarScheduler.Request(iq.crossbarSchedulerIndex, 0, iq.vc, iq.swa.flit)
		iq.swa.fsm = PipelineWaitingForResponse
	}
	if iq.swa.fsm == PipelineReadyToAdvance {
		if iq.watcher != nil {
			iq.watcher.DecrementCredit(iq.vc)
		}
		iq.crossbar.Inject(iq.swa.flit, iq.crossbarIndex, 0)
		iq.swa.flit = nil
		iq.swa.fsm = PipelineEmpty
		iq.setPipelineEvent()
	}
}

// CrossbarSchedulerResponse implements CrossbarSchedulerClient.
func (iq *InjectionQueue) CrossbarSchedulerResponse(port, vcIdx uint32) {
	if port == NonePort {
		iq.swa.fsm = PipelineWaitingToRequest
		iq.setPipelineEvent()
		return
	}
	iq.crossbarScheduler.DecrementCredit(vcIdx)
	iq.swa.fsm = PipelineReadyToAdvance
	iq.setPipelineEvent()
}
