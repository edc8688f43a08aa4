package flitsim

//
// Virtual clock domains
//

// Clock names one of the three clock domains that drive the
// simulation: the physical channel, the router pipeline, and the
// terminal-facing interface. Each has its own integer period in
// ticks (spec §3 "Clocks").
type Clock uint8

const (
	// ClockChannel is the clock domain of Channel flit/credit transport.
	ClockChannel Clock = iota

	// ClockRouter is the clock domain of the router pipeline.
	ClockRouter

	// ClockInterface is the clock domain of interface injection/ejection.
	ClockInterface
)

func (c Clock) String() string {
	switch c {
	case ClockChannel:
		return "channel"
	case ClockRouter:
		return "router"
	case ClockInterface:
		return "interface"
	default:
		return "unknown"
	}
}

// Clocks holds the configured period, in ticks, of each clock domain.
type Clocks struct {
	periods [3]uint64
}

// NewClocks builds a Clocks table from the three configured periods.
// Every period must be strictly positive.
func NewClocks(channel, router, iface uint64) *Clocks {
	if channel == 0 || router == 0 || iface == 0 {
		panic("flitsim: clock periods must be positive")
	}
	return &Clocks{periods: [3]uint64{channel, router, iface}}
}

// Period returns the period, in ticks, of the given clock domain.
func (c *Clocks) Period(clock Clock) uint64 {
	return c.periods[clock]
}

// Cycle returns the index of the cycle containing tick t, for the
// given clock domain: floor(t / period).
func (c *Clocks) Cycle(clock Clock, t uint64) uint64 {
	return t / c.periods[clock]
}

// IsCycle reports whether tick t lands exactly on a cycle boundary of
// the given clock domain.
func (c *Clocks) IsCycle(clock Clock, t uint64) bool {
	return t%c.periods[clock] == 0
}

// FutureCycle returns the tick of the n-th cycle boundary of clock
// strictly after t (n must be >= 1). It always advances at least one
// period, even when t itself is already a boundary: this matches
// original_source's Simulator::futureCycle, which rounds up to the
// next boundary then adds n-1 more periods.
func (c *Clocks) FutureCycle(clock Clock, t uint64, n uint32) uint64 {
	if n == 0 {
		panic("flitsim: FutureCycle requires n >= 1")
	}
	period := c.periods[clock]
	return period * (c.Cycle(clock, t) + uint64(n))
}
