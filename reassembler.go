package flitsim

//
// Reassembly: the terminal-side inverse of injection, rebuilding a
// Packet from its flits, then a Message from its packets. Grounded on
// original_source/src/interface/standard/{PacketReassembler,
// MessageReassembler}.{h,cc}.
//

// PacketReassembler enforces in-order flit delivery for a single VC
// and reconstructs each complete Packet. One instance exists per VC,
// since flits of distinct packets are never interleaved on the same
// VC (spec §3 "a VC holds flits from at most one packet at a time").
type PacketReassembler struct {
	expSourceID uint32
	expPacketID uint32
	expFlitID   uint32
	havePacket  bool
}

// NewPacketReassembler creates an empty PacketReassembler.
func NewPacketReassembler() *PacketReassembler {
	return &PacketReassembler{}
}

// ReceiveFlit feeds one flit arriving on this reassembler's VC. It
// returns the completed Packet once its tail flit arrives, else nil.
func (pr *PacketReassembler) ReceiveFlit(flit *Flit) *Packet {
	sourceID := flit.Packet.Message.SourceID
	packetID := flit.Packet.ID
	flitID := flit.PacketFlitID

	if !pr.havePacket {
		if flitID != 0 {
			panic("flitsim: packet reassembler expected a head flit")
		}
		pr.expSourceID = sourceID
		pr.expPacketID = packetID
		pr.havePacket = true
	}

	if sourceID != pr.expSourceID {
		panic("flitsim: packet reassembler source id mismatch")
	}
	if packetID != pr.expPacketID {
		panic("flitsim: packet reassembler packet id mismatch")
	}
	if flitID != pr.expFlitID {
		panic("flitsim: packet reassembler flit id out of order")
	}
	if flitID >= flit.Packet.Length() {
		panic("flitsim: packet reassembler flit id out of range")
	}

	if flitID == flit.Packet.Length()-1 {
		pr.havePacket = false
		pr.expFlitID = 0
		return flit.Packet
	}
	pr.expFlitID = flitID + 1
	return nil
}

// messageKey uniquely identifies a message within a run: its source
// terminal's id paired with the message's own id (unique per source).
type messageKey struct {
	sourceID  uint32
	messageID uint32
}

type messageProgress struct {
	message        *Message
	packetsSeen    []bool
	receivedCount  uint32
}

// MessageReassembler tracks in-flight messages across a terminal's
// VCs and reconstructs each complete Message once every packet of it
// has arrived, regardless of arrival order across VCs/packets.
type MessageReassembler struct {
	pending map[messageKey]*messageProgress
}

// NewMessageReassembler creates an empty MessageReassembler.
func NewMessageReassembler() *MessageReassembler {
	return &MessageReassembler{pending: map[messageKey]*messageProgress{}}
}

// ReceivePacket feeds one completed packet. It returns the owning
// Message once every packet of it has arrived, else nil.
func (mr *MessageReassembler) ReceivePacket(packet *Packet) *Message {
	msg := packet.Message
	key := messageKey{sourceID: msg.SourceID, messageID: msg.ID}

	prog, ok := mr.pending[key]
	if !ok {
		prog = &messageProgress{
			message:     msg,
			packetsSeen: make([]bool, len(msg.Packets)),
		}
		mr.pending[key] = prog
	}
	if prog.message != msg {
		panic("flitsim: message reassembler id collision")
	}
	if prog.packetsSeen[packet.ID] {
		panic("flitsim: message reassembler received duplicate packet")
	}
	prog.packetsSeen[packet.ID] = true
	prog.receivedCount++

	if prog.receivedCount == uint32(len(msg.Packets)) {
		delete(mr.pending, key)
		return msg
	}
	return nil
}
