package flitsim

//
// SimpleOutputQueue: the input-queued router variant's per-port output
// stage — a plain depth-limited FIFO draining one flit per Router
// cycle straight onto the router's output channel, with no secondary
// crossbar of its own (the main crossbar already guarantees at most
// one flit per output port per cycle). Grounded on
// original_source/src/router/inputqueued/OutputQueue.h.
//

// FlitSenderFunc adapts a plain function to the single call
// SimpleOutputQueue needs of its owning router.
type FlitSenderFunc func(port uint32, flit *Flit)

// SimpleOutputQueue buffers flits arriving from the main crossbar for
// one output port and hands them to sender one at a time, at most one
// per Router cycle.
type SimpleOutputQueue struct {
	*Component

	depth uint32
	port  uint32

	sender FlitSenderFunc

	lastReceivedTime   uint64
	lastReceivedTimeOk bool

	eventPending bool
	buffer       []*Flit
}

// NewSimpleOutputQueue creates a SimpleOutputQueue for port, forwarding
// drained flits to sender.
func NewSimpleOutputQueue(kernel *Kernel, reg *registry, name string, parent *Component, depth, port uint32, sender FlitSenderFunc) *SimpleOutputQueue {
	oq := &SimpleOutputQueue{
		Component: NewComponent(kernel, reg, name, parent),
		depth:     depth,
		port:      port,
		sender:    sender,
	}
	oq.SetHandler(EventHandlerFunc(oq.processEvent))
	return oq
}

// ReceiveFlit implements FlitReceiver: called by the main crossbar.
func (oq *SimpleOutputQueue) ReceiveFlit(_ uint32, flit *Flit) {
	now := oq.Kernel().Now().Tick
	if oq.lastReceivedTimeOk && oq.lastReceivedTime == now {
		panic("flitsim: output queue received more than one flit in the same cycle")
	}
	oq.lastReceivedTime = now
	oq.lastReceivedTimeOk = true
	if oq.depth > 0 && uint32(len(oq.buffer)) >= oq.depth {
		panic("flitsim: output queue buffer overflow")
	}
	oq.buffer = append(oq.buffer, flit)
	oq.setPipelineEvent()
}

func (oq *SimpleOutputQueue) setPipelineEvent() {
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

func (oq *SimpleOutputQueue) processEvent(_ any, _ int32) {
	oq.eventPending = false
	if len(oq.buffer) == 0 {
		return
	}
	flit := oq.buffer[0]
	oq.buffer = oq.buffer[1:]
	oq.sender(oq.port, flit)
	if len(oq.buffer) > 0 {
		oq.setPipelineEvent()
	}
}
