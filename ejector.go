package flitsim

//
// Ejector: the router-side terminus of a crossbar output port that
// feeds a terminal interface rather than another Channel. Grounded on
// original_source/src/router/inputoutputqueued/Ejector.h.
//

// Ejector forwards flits arriving from a router's crossbar to the
// attached terminal interface's FlitReceiver, enforcing the
// at-most-one-flit-per-cycle discipline every crossbar output keeps.
type Ejector struct {
	*Component

	portID uint32
	sink   FlitReceiver

	lastSetTime   uint64
	lastSetTimeOk bool
}

// NewEjector creates an Ejector for portID, forwarding to sink.
func NewEjector(kernel *Kernel, reg *registry, name string, parent *Component, portID uint32, sink FlitReceiver) *Ejector {
	return &Ejector{
		Component: NewComponent(kernel, reg, name, parent),
		portID:    portID,
		sink:      sink,
	}
}

// ReceiveFlit implements FlitReceiver.
func (e *Ejector) ReceiveFlit(_ uint32, flit *Flit) {
	now := e.Kernel().Now().Tick
	if e.lastSetTimeOk && e.lastSetTime == now {
		panic("flitsim: ejector received more than one flit in the same cycle")
	}
	e.lastSetTime = now
	e.lastSetTimeOk = true
	e.sink.ReceiveFlit(e.portID, flit)
}
