package flitsim

//
// PointToPointTopology: the minimal fixture topology, two routers each
// with one local interface and one link to the other router. Grounded
// on spec.md §8 scenario 1 ("topology = point-to-point, 1 VC, latency
// = 1 Router cycle") — the degenerate two-node case every richer
// original_source topology (torus/folded-Clos/hyperX/dragonfly/
// slimfly) generalizes from, none of which this repo ports (spec.md
// §1 non-goal: the core consumes only a Topology interface).
//

// PointToPointTopology wires exactly two routers, each radix 2: port 0
// to its local Interface, port 1 to the other router. Both interfaces
// can route to either terminal in a single hop.
type PointToPointTopology struct {
	numVcs uint32
}

// NewPointToPointTopology creates a two-router, two-interface topology
// with numVcs virtual channels per port.
func NewPointToPointTopology(numVcs uint32) *PointToPointTopology {
	return &PointToPointTopology{numVcs: numVcs}
}

var _ Topology = &PointToPointTopology{}

// NumRouters always returns 2.
func (t *PointToPointTopology) NumRouters() uint32 { return 2 }

// NumInterfaces always returns 2.
func (t *PointToPointTopology) NumInterfaces() uint32 { return 2 }

// RouterRadix always returns 2: port 0 local interface, port 1 peer
// router.
func (t *PointToPointTopology) RouterRadix(uint32) uint32 { return 2 }

// RouterAddress returns the router's own id as a one-element address.
func (t *PointToPointTopology) RouterAddress(routerID uint32) []uint32 {
	return []uint32{routerID}
}

// InterfaceAddress returns the interface's own id as a one-element
// address; interface i is always attached to router i.
func (t *PointToPointTopology) InterfaceAddress(interfaceID uint32) []uint32 {
	return []uint32{interfaceID}
}

// NewRoutingFunc returns a single-candidate routing function: port 0
// (the local interface) if the flit's destination terminal is this
// router's own id, else port 1 (the only link to the other router).
// Every VC routes to itself, since a 2-router/1-link topology never
// needs a VC subrange split to break deadlock.
func (t *PointToPointTopology) NewRoutingFunc(routerID, _, _ uint32) RoutingFunc {
	return func(flit *Flit, response *RoutingResponse) {
		if flit.Packet.Message.DestinationID == routerID {
			response.Add(0, flit.VC)
			return
		}
		response.Add(1, flit.VC)
	}
}

// Wire connects interface i to router i's port 0, and links the two
// routers' port 1s to each other.
func (t *PointToPointTopology) Wire(net *Network) {
	net.ConnectInterface(0, 0, 0, "Terminal0")
	net.ConnectInterface(1, 1, 0, "Terminal1")
	net.ConnectRouters(0, 1, 1, 1, "Link")
}
