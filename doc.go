// Package flitsim is a cycle-accurate, event-driven simulator of
// interconnection networks: the fabrics that link processors, memory,
// and accelerators inside a supercomputer or datacenter. It models
// flit-level traffic through routers and channels, including
// virtual-channel arbitration, credit-based flow control,
// congestion-sensitive adaptive routing, and pluggable workloads.
//
// The package does not know how to build a topology (mesh, torus,
// folded-Clos, dragonfly, ...) or how to generate traffic (blast,
// all-to-all, simple-mem, ...); it consumes the Topology and
// MessageSource/MessageSink contracts and drives everything else:
// the discrete-event kernel, the router datapath and its allocators,
// and the routing/congestion layer.
package flitsim
