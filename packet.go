package flitsim

//
// Packet: an ordered, contiguously-routed sequence of flits.
// Grounded on original_source/src/types (Flit.h and the Packet
// references throughout router/, interface/standard).
//

// RoutingExtension is per-packet scratch state an adaptive routing
// algorithm may stash across hops (spec §9 "per-packet heap extension
// for routing state"). It is mutable and singly-owned by the packet
// until the last hop's routing algorithm clears it (Open Question (a)
// in spec §9, resolved: mutable, singly-owned).
type RoutingExtension interface {
	// Clear releases any resources held by the extension. Called by
	// the routing algorithm that consumes it at the packet's last hop.
	Clear()
}

// Packet owns an ordered array of Flits, a hop counter, a packet id, a
// metadata word, and an opaque routing-extension slot.
type Packet struct {
	// ID is this packet's id, unique within its owning Message.
	ID uint32

	// Message is a non-owning back-pointer to the owning message.
	Message *Message

	// Flits is the ordered flit array: head, body..., tail.
	Flits []*Flit

	// Hops is the number of channels this packet has traversed since
	// injection; incremented whenever the head flit is delivered on a
	// channel (spec §4.3 "Hop counting").
	Hops uint32

	// Metadata is set by the configured metadata handler at injection.
	Metadata uint64

	// RoutingExtension is owned by the packet until the routing
	// algorithm that consumes it frees it at the last hop.
	RoutingExtension RoutingExtension
}

// NewPacket creates a Packet with numFlits flits (numFlits >= 1,
// head+tail collapse to the same flit when numFlits == 1).
func NewPacket(id uint32, msg *Message, numFlits uint32) *Packet {
	if numFlits == 0 {
		panic("flitsim: packet must have at least one flit")
	}
	p := &Packet{ID: id, Message: msg, Flits: make([]*Flit, numFlits)}
	for i := uint32(0); i < numFlits; i++ {
		p.Flits[i] = NewFlit(p, i, i == 0, i == numFlits-1)
	}
	return p
}

// Length returns the number of flits in this packet.
func (p *Packet) Length() uint32 { return uint32(len(p.Flits)) }

// HeadFlit returns the packet's head flit.
func (p *Packet) HeadFlit() *Flit { return p.Flits[0] }

// TailFlit returns the packet's tail flit.
func (p *Packet) TailFlit() *Flit { return p.Flits[len(p.Flits)-1] }

// IncrementHops bumps the hop counter; called whenever this packet's
// head flit is delivered across a channel.
func (p *Packet) IncrementHops() { p.Hops++ }

// ReleaseRoutingExtension clears and drops the packet's routing
// extension. Called by a routing algorithm at a packet's final hop.
func (p *Packet) ReleaseRoutingExtension() {
	if p.RoutingExtension != nil {
		p.RoutingExtension.Clear()
		p.RoutingExtension = nil
	}
}
