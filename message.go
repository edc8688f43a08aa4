package flitsim

//
// Message: one or more packets forming an application-level datagram.
// Grounded on original_source/src/types/MessageOwner.h (the owner
// notification contract) and application/Messenger.{h,cc} (message
// shape: ordered packets, opaque user data, traffic class, ids).
//

// MessageOwner is notified of ownership-relevant lifecycle events for
// a Message it currently (or recently) held. Spec §3 "Ownership":
// a Message is owned by exactly one party at a time, transferred
// explicitly at send and at delivery.
type MessageOwner interface {
	// MessageEnteredInterface informs the owner that msg has entered
	// the network interface, so it may safely generate further
	// messages without queuing concerns of its own.
	MessageEnteredInterface(msg *Message)

	// MessageDelivered informs the current owner that msg has a new
	// owner and this one no longer needs to track it.
	MessageDelivered(msg *Message)
}

// Message owns an ordered array of Packets plus opaque user data, a
// traffic/protocol class, a transaction id, source/destination ids
// and addresses, and an owner back-pointer.
type Message struct {
	// ID identifies this message within its source terminal.
	ID uint32

	// TransactionID uniquely identifies a request/response pair,
	// spanning possibly more than one Message (spec §3 invariant:
	// each "create" is matched by exactly one "end").
	TransactionID uint64

	// TrafficClass names the protocol/traffic class this message
	// belongs to, which selects the dedicated VC subrange (spec
	// glossary "Protocol/traffic class").
	TrafficClass uint32

	// SourceID and DestinationID are terminal ids.
	SourceID, DestinationID uint32

	// SourceAddress and DestinationAddress are topology-level
	// addresses (opaque to the core; interpreted by Topology).
	SourceAddress, DestinationAddress []uint32

	// Packets is the ordered packet array.
	Packets []*Packet

	// UserData is opaque application payload, untouched by the core.
	UserData any

	// Owner is the current holder of this message (spec §3
	// "Ownership"): source terminal -> interface -> network ->
	// interface -> destination terminal.
	Owner MessageOwner
}

// NewMessage creates an empty Message; packets are appended with
// AddPacket.
func NewMessage(id uint32, transactionID uint64, trafficClass, sourceID, destID uint32) *Message {
	return &Message{
		ID:            id,
		TransactionID: transactionID,
		TrafficClass:  trafficClass,
		SourceID:      sourceID,
		DestinationID: destID,
	}
}

// AddPacket appends a packet to this message and links its back-pointer.
func (m *Message) AddPacket(p *Packet) {
	p.Message = m
	m.Packets = append(m.Packets, p)
}

// NumFlits returns the total flit count across all packets.
func (m *Message) NumFlits() uint32 {
	var n uint32
	for _, p := range m.Packets {
		n += p.Length()
	}
	return n
}

// SetOwner transfers ownership, notifying the previous owner (if any)
// that the message has been delivered onward.
func (m *Message) SetOwner(owner MessageOwner) {
	if m.Owner != nil {
		m.Owner.MessageDelivered(m)
	}
	m.Owner = owner
}
