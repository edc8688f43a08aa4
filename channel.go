package flitsim

//
// Channel: a directed point-to-point link carrying at most one
// in-flight flit and one in-flight credit per Channel cycle. Grounded
// on original_source/src/network/Channel.{h,cc}.
//

const (
	eventKindFlit int32 = iota
	eventKindCredit
)

// Channel is a directed point-to-point link from a source (a
// CreditReceiver sending flits out) to a sink (a FlitReceiver
// receiving them), parameterized by a latency in Channel cycles and a
// VC count (spec §4.3).
type Channel struct {
	*Component

	latency uint32
	numVcs  uint32

	source     CreditReceiver
	sourcePort uint32
	sink       FlitReceiver
	sinkPort   uint32

	nextFlitTime   uint64
	nextFlitTimeOk bool
	nextFlit       *Flit

	nextCreditTime   uint64
	nextCreditTimeOk bool
	nextCredit       *Credit

	monitoring    bool
	monitorStart  uint64
	monitorTicks  uint64
	monitorCounts []uint64 // indexed 0..numVcs-1 plus one aggregate slot at numVcs
}

// NewChannel creates a Channel with the given latency (in Channel
// cycles, must be > 0) and VC count.
func NewChannel(kernel *Kernel, reg *registry, name string, parent *Component, latency, numVcs uint32) *Channel {
	if latency == 0 {
		panic("flitsim: channel latency must be positive")
	}
	if numVcs == 0 {
		panic("flitsim: channel must have at least one vc")
	}
	ch := &Channel{
		Component:     NewComponent(kernel, reg, name, parent),
		latency:       latency,
		numVcs:        numVcs,
		monitorCounts: make([]uint64, numVcs+1),
	}
	ch.SetHandler(EventHandlerFunc(ch.processEvent))
	return ch
}

// Latency returns the channel's latency in Channel cycles.
func (ch *Channel) Latency() uint32 { return ch.latency }

// SetSource attaches the CreditReceiver that will receive credits sent
// back across this channel, and the port to deliver them on.
func (ch *Channel) SetSource(source CreditReceiver, port uint32) {
	ch.source = source
	ch.sourcePort = port
}

// SetSink attaches the FlitReceiver that will receive flits sent
// across this channel, and the port to deliver them on.
func (ch *Channel) SetSink(sink FlitReceiver, port uint32) {
	ch.sink = sink
	ch.sinkPort = port
}

// StartMonitoring begins a utilization measurement window.
func (ch *Channel) StartMonitoring() {
	if ch.monitoring {
		panic("flitsim: channel already monitoring")
	}
	ch.monitoring = true
	ch.monitorStart = ch.Kernel().Now().Tick
	for i := range ch.monitorCounts {
		ch.monitorCounts[i] = 0
	}
}

// EndMonitoring ends the current utilization measurement window.
func (ch *Channel) EndMonitoring() {
	if !ch.monitoring {
		panic("flitsim: channel not monitoring")
	}
	ch.monitoring = false
	ch.monitorTicks = ch.Kernel().Now().Tick - ch.monitorStart
}

// Utilization returns the fraction of Channel cycles, during the most
// recently closed monitoring window, that carried a flit on the given
// VC. Pass NoneVC (ALL) for the aggregate over every VC.
func (ch *Channel) Utilization(vc uint32) float64 {
	if ch.monitoring {
		panic("flitsim: channel still monitoring")
	}
	var count uint64
	if vc == NoneVC {
		count = ch.monitorCounts[ch.numVcs]
	} else {
		count = ch.monitorCounts[vc]
	}
	cycleTime := ch.Kernel().Clocks().Period(ClockChannel)
	return float64(count) / (float64(ch.monitorTicks) / float64(cycleTime))
}

// GetNextFlit returns the flit scheduled for the next Channel cycle
// slot, or nil if none was set.
func (ch *Channel) GetNextFlit() *Flit {
	nextSlot := ch.Kernel().FutureCycle(ClockChannel, 1)
	if !ch.nextFlitTimeOk || ch.nextFlitTime != nextSlot {
		return nil
	}
	return ch.nextFlit
}

// SetNextFlit schedules flit to traverse the channel, delivering it at
// the sink after latency Channel cycles. It may be called at most once
// per Channel cycle; a second call in the same cycle is a program bug.
// Returns the injection time (guaranteed to be in the future).
func (ch *Channel) SetNextFlit(flit *Flit) uint64 {
	nextSlot := ch.Kernel().FutureCycle(ClockChannel, 1)
	if ch.nextFlitTimeOk && ch.nextFlitTime == nextSlot {
		panic("flitsim: setNextFlit called twice in the same channel cycle")
	}
	ch.nextFlitTime = nextSlot
	ch.nextFlitTimeOk = true
	ch.nextFlit = flit

	deliverAt := ch.Kernel().FutureCycle(ClockChannel, ch.latency)
	ch.AddEvent(VirtualTime{Tick: deliverAt, Epsilon: 1}, flit, eventKindFlit)

	if flit.VC >= ch.numVcs {
		panic("flitsim: flit vc out of range for channel")
	}
	if ch.monitoring {
		ch.monitorCounts[flit.VC]++
		ch.monitorCounts[ch.numVcs]++
	}
	return ch.nextFlitTime
}

// GetNextCredit returns the credit scheduled for the next Channel
// cycle slot, or nil if none was set.
func (ch *Channel) GetNextCredit() *Credit {
	nextSlot := ch.Kernel().FutureCycle(ClockChannel, 1)
	if !ch.nextCreditTimeOk || ch.nextCreditTime != nextSlot {
		return nil
	}
	return ch.nextCredit
}

// SetNextCredit schedules credit to traverse the channel upstream,
// delivering it at the source after latency Channel cycles. Same
// once-per-cycle restriction as SetNextFlit.
func (ch *Channel) SetNextCredit(credit *Credit) uint64 {
	nextSlot := ch.Kernel().FutureCycle(ClockChannel, 1)
	if ch.nextCreditTimeOk && ch.nextCreditTime == nextSlot {
		panic("flitsim: setNextCredit called twice in the same channel cycle")
	}
	ch.nextCreditTime = nextSlot
	ch.nextCreditTimeOk = true
	ch.nextCredit = credit

	deliverAt := ch.Kernel().FutureCycle(ClockChannel, ch.latency)
	ch.AddEvent(VirtualTime{Tick: deliverAt, Epsilon: 1}, credit, eventKindCredit)
	return ch.nextCreditTime
}

func (ch *Channel) processEvent(payload any, kind int32) {
	if ch.Kernel().Now().Epsilon != 1 {
		panic("flitsim: channel event must land on epsilon 1")
	}
	switch kind {
	case eventKindFlit:
		flit := payload.(*Flit)
		if flit.Head {
			flit.Packet.IncrementHops()
		}
		ch.sink.ReceiveFlit(ch.sinkPort, flit)
	case eventKindCredit:
		credit := payload.(*Credit)
		ch.source.ReceiveCredit(ch.sourcePort, credit)
	default:
		panic("flitsim: unknown channel event kind")
	}
}
