package flitsim

//
// MetadataHandler: sets a packet's opaque metadata word at the points
// spec.md §3 calls out ("a metadata word, set by the metadata
// handler"). Grounded on original_source/src/metadata/{MetadataHandler,
// ZeroMetadataHandler,LocalTimestampMetadataHandler}.{h,cc}. The
// original's Application-injection and Router hooks are out of this
// module's scope (the router already has its own
// OnPacketArrival/OnPacketDeparture hooks); only the two Interface-facing
// hooks spec.md's Packet.Metadata field actually needs are kept.
//

// MetadataHandler stamps Packet.Metadata at well-defined lifecycle
// points. A concrete handler implements both methods;
// NullMetadataHandler implements both as no-ops, mirroring the C++
// base class's empty virtual bodies.
type MetadataHandler interface {
	// PacketInterfaceArrival is called when a packet enters its source
	// interface from the workload, before any of its flits are queued
	// for injection.
	PacketInterfaceArrival(packet *Packet)

	// PacketInterfaceDeparture is called when a packet's head flit
	// departs its source interface into the network.
	PacketInterfaceDeparture(packet *Packet)
}

// NullMetadataHandler leaves Packet.Metadata at its zero value.
// Grounded on ZeroMetadataHandler, which only overrides packetInjection
// (out of this module's scope) and otherwise uses the empty base.
type NullMetadataHandler struct{}

var _ MetadataHandler = NullMetadataHandler{}

func (NullMetadataHandler) PacketInterfaceArrival(*Packet)   {}
func (NullMetadataHandler) PacketInterfaceDeparture(*Packet) {}

// LocalTimestampMetadataHandler stamps Packet.Metadata with the
// current virtual time tick whenever a packet arrives locally, so a
// downstream consumer can measure e.g. router residency.
type LocalTimestampMetadataHandler struct {
	kernel *Kernel
}

var _ MetadataHandler = &LocalTimestampMetadataHandler{}

// NewLocalTimestampMetadataHandler creates a handler that reads the
// current time from kernel.
func NewLocalTimestampMetadataHandler(kernel *Kernel) *LocalTimestampMetadataHandler {
	return &LocalTimestampMetadataHandler{kernel: kernel}
}

func (h *LocalTimestampMetadataHandler) PacketInterfaceArrival(packet *Packet) {
	packet.Metadata = h.kernel.Now().Tick
}

func (h *LocalTimestampMetadataHandler) PacketInterfaceDeparture(*Packet) {}
