package flitsim

//
// Network: owns every Router, Interface, and Channel in one topology
// instance. It has no explicit teardown step; its components are
// released together once the Network is unreferenced. Grounded on
// original_source/src/network/Network.h (the shared base contract:
// numRouters/numInterfaces/getRouter/getInterface/address
// translation/collectChannels) and network/torus/Network.cc (the one
// fully retrieved concrete wiring: create routers, create inter-router
// channels, create interfaces plus their external channels, in that
// order). Per spec.md §1's explicit non-goal, this module does not
// reimplement any topology enumerator (torus/folded-Clos/dragonfly/
// hyperX/slimfly): those become a single pluggable `Topology`
// contract, and the concrete wiring in `original_source`'s many
// `network/<topology>/Network.cc` files is replaced by whatever
// Topology implementation the caller supplies (see topology.go for
// the one minimal fixture this repo carries).
//

// Topology supplies everything network assembly needs but cannot
// know on its own: port counts, addresses, per-(router,port,vc)
// routing-function construction, and the actual channel wiring
// between routers and between routers and interfaces (spec.md §1:
// "The core consumes only a Topology interface giving radix, address
// translation, and per-interface routing-algorithm construction").
type Topology interface {
	// NumRouters returns the number of routers in this topology.
	NumRouters() uint32

	// NumInterfaces returns the number of terminal interfaces.
	NumInterfaces() uint32

	// RouterRadix returns the port count of router routerID.
	RouterRadix(routerID uint32) uint32

	// RouterAddress returns the topology-level address of router
	// routerID (opaque to the core; used only for component naming
	// and passed through to RoutingFunc).
	RouterAddress(routerID uint32) []uint32

	// InterfaceAddress returns the topology-level address of
	// interface interfaceID.
	InterfaceAddress(interfaceID uint32) []uint32

	// NewRoutingFunc builds the routing function a RoutingAlgorithm at
	// router routerID's (port, vc) input should run.
	NewRoutingFunc(routerID, port, vc uint32) RoutingFunc

	// Wire is called once, after every Router and Interface has been
	// constructed (but not yet Initialize()d), to create every Channel
	// and attach it via net.ConnectRouters/net.ConnectInterface.
	Wire(net *Network)
}

// NetworkSettings carries everything needed to construct every
// Router and Interface in a topology, plus the two Channel latency
// classes spec.md §6 names (`internal_channel`, `external_channel`).
type NetworkSettings struct {
	NumVcs           uint32
	ProtocolClassVcs []ProtocolClassVcs

	InternalChannelLatency uint32
	ExternalChannelLatency uint32

	// RouterSettings builds the settings for router routerID. Its
	// NewRoutingFunc/NewCongestionSensor fields are expected to
	// already close over routerID (e.g. via topology.NewRoutingFunc).
	RouterSettings func(routerID uint32) RouterSettings

	// InterfaceSettings builds the settings for interface interfaceID.
	InterfaceSettings func(interfaceID uint32) InterfaceSettings
}

// Network assembles and owns one topology instance's full object
// graph: every Router, Interface, and Channel, wired together by the
// supplied Topology and then Initialize()d in construction order.
type Network struct {
	*Component

	topology Topology
	numVcs   uint32

	internalChannelLatency uint32
	externalChannelLatency uint32

	routers    []*Router
	interfaces []*Interface
	channels   []*Channel
}

// NewNetwork builds every Router and Interface named by topology,
// hands control to topology.Wire to create channels and connect them,
// then initializes every component (tailored buffer/credit sizing
// depends on channel latency, so it must happen after wiring).
func NewNetwork(kernel *Kernel, reg *registry, name string, parent *Component, topology Topology, settings NetworkSettings) *Network {
	net := &Network{
		Component:              NewComponent(kernel, reg, name, parent),
		topology:               topology,
		numVcs:                 settings.NumVcs,
		internalChannelLatency: settings.InternalChannelLatency,
		externalChannelLatency: settings.ExternalChannelLatency,
	}

	numRouters := topology.NumRouters()
	net.routers = make([]*Router, numRouters)
	for id := uint32(0); id < numRouters; id++ {
		address := topology.RouterAddress(id)
		radix := topology.RouterRadix(id)
		rs := settings.RouterSettings(id)
		net.routers[id] = NewRouter(kernel, reg, "Router_"+addressString(address), net.Component, id, address, radix, settings.NumVcs, rs)
	}

	numInterfaces := topology.NumInterfaces()
	net.interfaces = make([]*Interface, numInterfaces)
	for id := uint32(0); id < numInterfaces; id++ {
		address := topology.InterfaceAddress(id)
		is := settings.InterfaceSettings(id)
		net.interfaces[id] = NewInterface(kernel, reg, "Interface_"+addressString(address), net.Component, id, address, settings.NumVcs, settings.ProtocolClassVcs, is)
	}

	topology.Wire(net)

	for _, r := range net.routers {
		r.Initialize()
	}
	for _, i := range net.interfaces {
		i.Initialize()
	}

	return net
}

func addressString(address []uint32) string {
	s := ""
	for i, a := range address {
		if i > 0 {
			s += "-"
		}
		s += uintToString(a)
	}
	return s
}

// NumRouters returns the router count.
func (n *Network) NumRouters() uint32 { return uint32(len(n.routers)) }

// NumInterfaces returns the interface count.
func (n *Network) NumInterfaces() uint32 { return uint32(len(n.interfaces)) }

// Router returns router id.
func (n *Network) Router(id uint32) *Router { return n.routers[id] }

// Interface returns interface id.
func (n *Network) Interface(id uint32) *Interface { return n.interfaces[id] }

// Channels returns every channel this network owns, in construction
// order, for use by a channel-utilization log writer.
func (n *Network) Channels() []*Channel { return n.channels }

// NewInternalChannel creates a router-to-router Channel using this
// network's configured internal latency, registers it for ownership,
// and returns it for the topology to attach via ConnectRouters.
func (n *Network) NewInternalChannel(name string) *Channel {
	ch := NewChannel(n.kernel, n.registry, name, n.Component, n.internalChannelLatency, n.numVcs)
	n.channels = append(n.channels, ch)
	return ch
}

// NewExternalChannel creates an interface-to-router Channel using
// this network's configured external latency.
func (n *Network) NewExternalChannel(name string) *Channel {
	ch := NewChannel(n.kernel, n.registry, name, n.Component, n.externalChannelLatency, n.numVcs)
	n.channels = append(n.channels, ch)
	return ch
}

// ConnectRouters wires a bidirectional pair of Channels between two
// router ports: aID:aPort -> bID:bPort and bID:bPort -> aID:aPort.
func (n *Network) ConnectRouters(aID, aPort, bID, bPort uint32, name string) {
	fwd := n.NewInternalChannel(name + "_fwd")
	n.routers[aID].SetOutputChannel(aPort, fwd)
	n.routers[bID].SetInputChannel(bPort, fwd)

	rev := n.NewInternalChannel(name + "_rev")
	n.routers[bID].SetOutputChannel(bPort, rev)
	n.routers[aID].SetInputChannel(aPort, rev)
}

// ConnectInterface wires an Interface to one Router port with a pair
// of external Channels (interface-to-router and router-to-interface).
func (n *Network) ConnectInterface(interfaceID, routerID, routerPort uint32, name string) {
	toRouter := n.NewExternalChannel(name + "_to_router")
	n.interfaces[interfaceID].SetOutputChannel(toRouter)
	n.routers[routerID].SetInputChannel(routerPort, toRouter)

	toInterface := n.NewExternalChannel(name + "_to_interface")
	n.routers[routerID].SetOutputChannel(routerPort, toInterface)
	n.interfaces[interfaceID].SetInputChannel(toInterface)
}
