package flitsim

//
// OutputQueue: the input-output-queued router's second switch
// allocation stage, buffering flits after the main crossbar and
// arbitrating for a small secondary crossbar (per output port) before
// handing off to the Channel/Ejector. Grounded on
// original_source/src/router/inputoutputqueued/OutputQueue.h.
//

// OutputQueue buffers flits that already won the main crossbar and
// arbitrates them onto the router's per-port output crossbar, telling
// the upstream main crossbar scheduler's credit watcher when a flit
// leaves the buffer.
type OutputQueue struct {
	*Component

	depth uint32
	port  uint32
	vc    uint32

	outputCrossbarScheduler      *CrossbarScheduler
	crossbarSchedulerIndex       uint32
	crossbar                     *Crossbar
	crossbarIndex                uint32
	mainCrossbarScheduler        *CrossbarScheduler
	mainCrossbarSchedulerVcID    uint32
	creditWatcher                CreditWatcher
	creditWatcherVcID            uint32
	incrCreditWatcher            bool
	decrCreditWatcher            bool

	lastReceivedTime   uint64
	lastReceivedTimeOk bool

	eventPending bool

	buffer []*Flit
	swa    swaStage
}

// NewOutputQueue creates an OutputQueue for (port, vc).
func NewOutputQueue(kernel *Kernel, reg *registry, name string, parent *Component, depth, port, vc uint32, outputCrossbarScheduler *CrossbarScheduler, crossbarSchedulerIndex uint32, crossbar *Crossbar, crossbarIndex uint32, mainCrossbarScheduler *CrossbarScheduler, mainCrossbarSchedulerVcID uint32, creditWatcher CreditWatcher, creditWatcherVcID uint32, incrCreditWatcher, decrCreditWatcher bool) *OutputQueue {
	oq := &OutputQueue{
		Component:                 NewComponent(kernel, reg, name, parent),
		depth:                     depth,
		port:                      port,
		vc:                        vc,
		outputCrossbarScheduler:   outputCrossbarScheduler,
		crossbarSchedulerIndex:    crossbarSchedulerIndex,
		crossbar:                  crossbar,
		crossbarIndex:             crossbarIndex,
		mainCrossbarScheduler:     mainCrossbarScheduler,
		mainCrossbarSchedulerVcID: mainCrossbarSchedulerVcID,
		creditWatcher:             creditWatcher,
		creditWatcherVcID:         creditWatcherVcID,
		incrCreditWatcher:         incrCreditWatcher,
		decrCreditWatcher:         decrCreditWatcher,
	}
	oq.SetHandler(EventHandlerFunc(oq.processEvent))
	outputCrossbarScheduler.SetClient(crossbarSchedulerIndex, oq)
	return oq
}

// ReceiveFlit implements FlitReceiver: called by the main router
// crossbar when this (port, vc)'s flit wins.
func (oq *OutputQueue) ReceiveFlit(_ uint32, flit *Flit) {
	now := oq.Kernel().Now().Tick
	if oq.lastReceivedTimeOk && oq.lastReceivedTime == now {
		panic("flitsim: output queue received more than one flit in the same cycle")
	}
	oq.lastReceivedTime = now
	oq.lastReceivedTimeOk = true
	if oq.depth > 0 && uint32(len(oq.buffer)) >= oq.depth {
		panic("flitsim: output queue buffer overflow")
	}
	if oq.incrCreditWatcher && oq.creditWatcher != nil {
		oq.creditWatcher.IncrementCredit(oq.creditWatcherVcID)
	}
	oq.mainCrossbarScheduler.IncrementCredit(oq.mainCrossbarSchedulerVcID)
	oq.buffer = append(oq.buffer, flit)
	oq.setPipelineEvent()
}

func (oq *OutputQueue) setPipelineEvent() {
	if oq.eventPending {
		return
	}
	oq.eventPending = true
	when := oq.Kernel().Now()
	if when.Epsilon < 1 {
		when.Epsilon = 1
	} else {
		future := oq.Kernel().FutureCycle(ClockRouter, 1)
		when = VirtualTime{Tick: future, Epsilon: 1}
	}
	oq.AddEvent(when, nil, 0)
}

func (oq *OutputQueue) processEvent(_ any, _ int32) {
	oq.eventPending = false
	oq.processPipeline()
}

func (oq *OutputQueue) processPipeline() {
	if oq.swa.fsm == PipelineEmpty && len(oq.buffer) > 0 {
		oq.swa.flit = oq.buffer[0]
		oq.buffer = oq.buffer[1:]
		oq.swa.fsm = PipelineWaitingToRequest
	}
	if oq.swa.fsm == PipelineWaitingToRequest {
		oq.outputCrossbarScheduler.Request(oq.crossbarSchedulerIndex, 0, oq.vc, oq.swa.flit)
		oq.swa.fsm = PipelineWaitingForResponse
	}
	if oq.swa.fsm == PipelineReadyToAdvance {
		if oq.decrCreditWatcher && oq.creditWatcher != nil {
			oq.creditWatcher.DecrementCredit(oq.creditWatcherVcID)
		}
		oq.outputCrossbarScheduler.DecrementCredit(oq.vc)
		oq.crossbar.Inject(oq.swa.flit, oq.crossbarIndex, 0)
		oq.swa.flit = nil
		oq.swa.fsm = PipelineEmpty
		oq.setPipelineEvent()
	}
}

// CrossbarSchedulerResponse implements CrossbarSchedulerClient.
func (oq *OutputQueue) CrossbarSchedulerResponse(port, _ uint32) {
	if port == NonePort {
		oq.swa.fsm = PipelineWaitingToRequest
		oq.setPipelineEvent()
		return
	}
	oq.swa.fsm = PipelineReadyToAdvance
	oq.setPipelineEvent()
}
