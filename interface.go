package flitsim

import (
	"math/rand"
	"strconv"
)

//
// Interface: the terminal-side bridge between a workload and the
// network, converting injected Messages into flits on VCs dedicated
// to each protocol class, and reassembling flits arriving from the
// network back into Messages. Grounded on
// original_source/src/interface/Interface.h (shared base contract:
// protocol-class VC ranges, packet arrival/departure hooks, owned
// reassemblers) and interface/standard/Interface.{h,cc} (the single
// concrete implementation: single-ported crossbar+scheduler injection
// stage, adaptive/fixed VC selection, tailored credit init).
//

// MessageReceiver accepts a fully reassembled Message delivered at its
// destination terminal. A workload's sink implements this.
type MessageReceiver interface {
	ReceiveMessage(msg *Message)
}

// ProtocolClassVcs names the [BaseVc, BaseVc+NumVcs) range of virtual
// channels dedicated to one protocol class (spec.md §3 "protocol
// class", §6 "message_classes"). Index in the slice is the protocol
// class id.
type ProtocolClassVcs struct {
	BaseVc uint32
	NumVcs uint32
}

// InterfaceInputQueueMode mirrors InputQueueMode for the
// interface's own injection-side credit sizing.
type InterfaceInputQueueMode uint8

const (
	// InterfaceInputQueueFixed uses a single configured credit count.
	InterfaceInputQueueFixed InterfaceInputQueueMode = iota
	// InterfaceInputQueueTailored derives credits from the attached
	// output channel's latency (spec §6 "tailored" sizing).
	InterfaceInputQueueTailored
)

// InterfaceSettings carries every tunable knob of an Interface,
// mirroring spec.md §6's interface settings tree.
type InterfaceSettings struct {
	InitCreditsMode InterfaceInputQueueMode
	InitCredits     uint32  // InterfaceInputQueueFixed credit count
	InputQueueMult  float64 // InterfaceInputQueueTailored multiplier
	InputQueueMin   uint32
	InputQueueMax   uint32

	// Adaptive selects the least-occupied VC within a protocol class's
	// range at injection time, rather than a uniformly random one
	// (spec §6 "adaptive" injection VC selection).
	Adaptive bool

	// FixedMsgVc makes every packet of one message share the VC chosen
	// for its first packet, rather than re-selecting per packet.
	FixedMsgVc bool

	CrossbarSchedulerSettings AllocatorSettings
	CrossbarLatency           uint32

	MetadataHandler MetadataHandler // optional; defaults to NullMetadataHandler
	Rng             *rand.Rand
}

// Interface bridges one terminal's workload traffic to the network:
// packet injection (VC selection, per-VC buffering, arbitration onto
// a single output Channel) and reassembly of arriving flits back into
// delivered Messages.
type Interface struct {
	*Component
	device PortedDevice

	protocolClassVcs []ProtocolClassVcs
	settings         InterfaceSettings
	metadataHandler  MetadataHandler

	messageReceiver MessageReceiver

	inputChannel  *Channel
	outputChannel *Channel

	crossbar          *Crossbar
	crossbarScheduler *CrossbarScheduler
	injectionQueues   []*InjectionQueue
	ejector           *Ejector

	packetReassemblers []*PacketReassembler
	messageReassembler *MessageReassembler

	// queueOccupancy tracks outstanding (not-yet-sent) flits per VC,
	// incremented at injection time and decremented as each flit
	// leaves its InjectionQueue; drives adaptive VC selection.
	queueOccupancy []uint32

	// monitoring backs Rates (spec.md §6 rate_log): counts of flits
	// supplied, injected, delivered, and ejected since StartMonitoring.
	monitoring      bool
	monitorStart    VirtualTime
	monitorDuration VirtualTime
	supplyCount     uint64
	injectionCount  uint64
	deliveredCount  uint64
	ejectionCount   uint64
}

const interfaceInjectMessageEvent = 1

// NewInterface builds an Interface with numVcs virtual channels
// partitioned per protocolClassVcs.
func NewInterface(kernel *Kernel, reg *registry, name string, parent *Component, id uint32, address []uint32, numVcs uint32, protocolClassVcs []ProtocolClassVcs, settings InterfaceSettings) *Interface {
	mh := settings.MetadataHandler
	if mh == nil {
		mh = NullMetadataHandler{}
	}

	ifc := &Interface{
		Component:          NewComponent(kernel, reg, name, parent),
		device:             NewPortedDevice(id, address, 1, numVcs),
		protocolClassVcs:   protocolClassVcs,
		settings:           settings,
		metadataHandler:    mh,
		messageReassembler: NewMessageReassembler(),
		queueOccupancy:     make([]uint32, numVcs),
	}
	ifc.SetHandler(EventHandlerFunc(ifc.processEvent))

	ifc.crossbar = NewCrossbar(kernel, reg, "Crossbar", ifc.Component, numVcs, 1, ClockChannel, settings.CrossbarLatency)
	ifc.crossbarScheduler = NewCrossbarScheduler(kernel, reg, "CrossbarScheduler", ifc.Component, numVcs, numVcs, 1, 0, ClockChannel, settings.CrossbarSchedulerSettings, false, false, false, settings.Rng)

	ifc.injectionQueues = make([]*InjectionQueue, numVcs)
	ifc.packetReassemblers = make([]*PacketReassembler, numVcs)
	for vc := uint32(0); vc < numVcs; vc++ {
		suffix := "_" + strconv.FormatUint(uint64(vc), 10)
		iq := NewInjectionQueue(kernel, reg, "InjectionQueue"+suffix, ifc.Component, ifc.crossbarScheduler, vc, ifc.crossbar, vc, vc, ifc)
		ifc.injectionQueues[vc] = iq
		ifc.packetReassemblers[vc] = NewPacketReassembler()
	}

	ifc.ejector = NewEjector(kernel, reg, "Ejector", ifc.Component, 0, flitReceiverFunc(ifc.sendFlit))
	ifc.crossbar.SetReceiver(0, ifc.ejector, 0)

	return ifc
}

// Device returns this interface's port/address descriptor (always one
// port: port 0).
func (ifc *Interface) Device() *PortedDevice { return &ifc.device }

// SetMessageReceiver attaches the destination of reassembled messages.
func (ifc *Interface) SetMessageReceiver(receiver MessageReceiver) {
	ifc.messageReceiver = receiver
}

// SetInputChannel attaches the Channel delivering flits from the
// network into this terminal.
func (ifc *Interface) SetInputChannel(channel *Channel) {
	if ifc.inputChannel != nil {
		panic("flitsim: interface input channel already set")
	}
	ifc.inputChannel = channel
	channel.SetSink(ifc, 0)
}

// GetInputChannel returns the attached input Channel, or nil.
func (ifc *Interface) GetInputChannel() *Channel { return ifc.inputChannel }

// SetOutputChannel attaches the Channel carrying flits from this
// terminal into the network.
func (ifc *Interface) SetOutputChannel(channel *Channel) {
	if ifc.outputChannel != nil {
		panic("flitsim: interface output channel already set")
	}
	ifc.outputChannel = channel
	channel.SetSource(ifc, 0)
}

// GetOutputChannel returns the attached output Channel, or nil.
func (ifc *Interface) GetOutputChannel() *Channel { return ifc.outputChannel }

// Initialize seeds the injection crossbar scheduler's credit counts
// from the attached output channel's latency (or a fixed count); call
// once, after both channels are attached.
func (ifc *Interface) Initialize() {
	credits := ifc.settings.InitCredits
	if ifc.settings.InitCreditsMode == InterfaceInputQueueTailored {
		credits = computeTailoredBufferLength(ifc.settings.InputQueueMult, ifc.settings.InputQueueMin, ifc.settings.InputQueueMax, ifc.outputChannel.Latency())
	}
	for vc := uint32(0); vc < ifc.device.NumVcs(); vc++ {
		ifc.crossbarScheduler.InitCredits(vc, credits)
	}
}

// ReceiveMessage is the workload-facing injection entry point: it
// assigns an injection VC to each packet (random or adaptive within
// its protocol class's range, optionally fixed across one message's
// packets), stamps send times, and schedules the actual hand-off to
// the injection queues for the next epsilon phase so every flit in
// the message is visible to congestion-sensitive VC selection before
// any of them move.
func (ifc *Interface) ReceiveMessage(msg *Message) {
	now := ifc.Kernel().Now()
	if now.Epsilon != 0 {
		panic("flitsim: message injection must occur at epsilon 0")
	}

	ifc.Debugf("injecting message %d (%d flits) to terminal %d", msg.ID, msg.NumFlits(), msg.DestinationID)
	for _, packet := range msg.Packets {
		ifc.packetArrival(packet)
		for _, flit := range packet.Flits {
			flit.SendTime = now
		}
	}
	if ifc.monitoring {
		n := uint64(msg.NumFlits())
		ifc.supplyCount += n
		ifc.injectionCount += n
	}

	pc := msg.TrafficClass
	if pc >= uint32(len(ifc.protocolClassVcs)) {
		panic("flitsim: message traffic class has no VC range configured")
	}

	pktVc := NoneVC
	for _, packet := range msg.Packets {
		if !ifc.settings.FixedMsgVc || pktVc == NoneVC {
			pktVc = ifc.chooseInjectionVc(ifc.protocolClassVcs[pc])
		}
		for _, flit := range packet.Flits {
			flit.VC = pktVc
		}
		ifc.queueOccupancy[pktVc] += packet.Length()
	}

	ifc.AddEvent(VirtualTime{Tick: now.Tick, Epsilon: 1}, msg, interfaceInjectMessageEvent)
}

// chooseInjectionVc picks a VC within [r.BaseVc, r.BaseVc+r.NumVcs),
// uniformly at random, or (if Adaptive) uniformly among the
// currently least-occupied VCs in that range.
func (ifc *Interface) chooseInjectionVc(r ProtocolClassVcs) uint32 {
	if !ifc.settings.Adaptive {
		return r.BaseVc + uint32(ifc.settings.Rng.Int63n(int64(r.NumVcs)))
	}

	var minOccupancyVcs []uint32
	minOccupancy := ^uint32(0)
	for vc := r.BaseVc; vc < r.BaseVc+r.NumVcs; vc++ {
		occupancy := ifc.queueOccupancy[vc]
		if occupancy < minOccupancy {
			minOccupancy = occupancy
			minOccupancyVcs = minOccupancyVcs[:0]
		}
		if occupancy <= minOccupancy {
			minOccupancyVcs = append(minOccupancyVcs, vc)
		}
	}
	return minOccupancyVcs[ifc.settings.Rng.Intn(len(minOccupancyVcs))]
}

func (ifc *Interface) processEvent(event any, eventType int32) {
	switch eventType {
	case interfaceInjectMessageEvent:
		ifc.injectMessage(event.(*Message))
	default:
		panic("flitsim: interface received unknown event type")
	}
}

func (ifc *Interface) injectMessage(msg *Message) {
	for _, packet := range msg.Packets {
		for _, flit := range packet.Flits {
			ifc.injectionQueues[flit.VC].ReceiveFlit(0, flit)
		}
	}
}

// StartMonitoring begins a rate measurement window (spec.md §6
// rate_log), mirroring Channel.StartMonitoring.
func (ifc *Interface) StartMonitoring() {
	if ifc.monitoring {
		panic("flitsim: interface already monitoring")
	}
	ifc.monitoring = true
	ifc.monitorStart = ifc.Kernel().Now()
	ifc.supplyCount, ifc.injectionCount, ifc.deliveredCount, ifc.ejectionCount = 0, 0, 0, 0
}

// EndMonitoring closes the current rate measurement window.
func (ifc *Interface) EndMonitoring() {
	if !ifc.monitoring {
		panic("flitsim: interface not monitoring")
	}
	ifc.monitoring = false
	now := ifc.Kernel().Now()
	ifc.monitorDuration = VirtualTime{Tick: now.Tick - ifc.monitorStart.Tick, Epsilon: 0}
}

// Rates returns the supply, injection, delivered, and ejection flit
// rates (flits per Interface cycle) over the most recently closed
// monitoring window (spec.md §6 rate_log).
func (ifc *Interface) Rates() (supply, injection, delivered, ejection float64) {
	if ifc.monitoring {
		panic("flitsim: interface still monitoring")
	}
	cycleTime := ifc.Kernel().Clocks().Period(ClockInterface)
	cycles := float64(ifc.monitorDuration.Tick) / float64(cycleTime)
	if cycles == 0 {
		return 0, 0, 0, 0
	}
	return float64(ifc.supplyCount) / cycles,
		float64(ifc.injectionCount) / cycles,
		float64(ifc.deliveredCount) / cycles,
		float64(ifc.ejectionCount) / cycles
}

// IncrementCredit implements CreditWatcher: an InjectionQueue's flit
// left the buffer, so one less flit is outstanding on vc.
func (ifc *Interface) IncrementCredit(vc uint32) {
	if ifc.queueOccupancy[vc] == 0 {
		panic("flitsim: interface queue occupancy underflow")
	}
	ifc.queueOccupancy[vc]--
}

// DecrementCredit implements CreditWatcher; the InjectionQueue calls
// this (not IncrementCredit) on dequeue since it is itself the credit
// source, not a consumer of upstream credit. See ReceiveMessage above
// for the occupancy increment at injection time.
func (ifc *Interface) DecrementCredit(vc uint32) {
	ifc.IncrementCredit(vc)
}

// InitCredits implements CreditWatcher; queue occupancy bookkeeping
// has no credit ceiling of its own, so this is a no-op.
func (ifc *Interface) InitCredits(uint32, uint32) {}

// packetArrival notifies the metadata handler and stamps metadata for
// a packet now entering the network at this interface.
func (ifc *Interface) packetArrival(packet *Packet) {
	ifc.metadataHandler.PacketInterfaceArrival(packet)
}

// packetDeparture notifies the metadata handler for a packet now
// departing this interface into the network.
func (ifc *Interface) packetDeparture(packet *Packet) {
	ifc.metadataHandler.PacketInterfaceDeparture(packet)
}

func (ifc *Interface) sendFlit(_ uint32, flit *Flit) {
	if ifc.outputChannel.GetNextFlit() != nil {
		panic("flitsim: interface output channel already has a flit this cycle")
	}
	ifc.outputChannel.SetNextFlit(flit)
	if flit.Head {
		ifc.packetDeparture(flit.Packet)
	}
}

// ReceiveFlit implements FlitReceiver: the network delivered a flit
// destined for this terminal.
func (ifc *Interface) ReceiveFlit(_ uint32, flit *Flit) {
	ifc.SendCredit(0, flit.VC)

	flit.ReceiveTime = ifc.Kernel().Now()
	if ifc.monitoring {
		ifc.ejectionCount++
	}

	packet := ifc.packetReassemblers[flit.VC].ReceiveFlit(flit)
	if packet == nil {
		return
	}
	msg := ifc.messageReassembler.ReceivePacket(packet)
	if msg == nil {
		return
	}
	if ifc.monitoring {
		ifc.deliveredCount += uint64(msg.NumFlits())
	}
	ifc.Debugf("delivering message %d (%d flits) from terminal %d", msg.ID, msg.NumFlits(), msg.SourceID)
	if ifc.messageReceiver != nil {
		ifc.messageReceiver.ReceiveMessage(msg)
	}
}

// SendCredit implements CreditSender: returns one credit for vc,
// batching into the single outstanding credit for this Channel cycle.
func (ifc *Interface) SendCredit(_, vc uint32) {
	credit := ifc.inputChannel.GetNextCredit()
	if credit == nil {
		credit = NewCredit(ifc.device.NumVcs())
		ifc.inputChannel.SetNextCredit(credit)
	}
	credit.PutVc(vc)
}

// ReceiveCredit implements CreditReceiver: the network returned
// credit for the injection-side crossbar scheduler.
func (ifc *Interface) ReceiveCredit(_ uint32, credit *Credit) {
	for credit.More() {
		ifc.crossbarScheduler.IncrementCredit(credit.GetVc())
	}
}

var (
	_ FlitReceiver    = &Interface{}
	_ CreditReceiver  = &Interface{}
	_ CreditSender    = &Interface{}
	_ MessageReceiver = &Interface{}
	_ CreditWatcher   = &Interface{}
)
