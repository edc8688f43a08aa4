package flitsim

import (
	"fmt"
	"math/rand"
)

//
// String-keyed factories: translate the JSON config's `type`/
// `algorithm`/`mode` string fields into the package's typed enums and
// constructors. Grounded on original_source's many `*Factory.cc` files
// (RouterFactory.cc, CongestionSensorFactory.cc, ReductionFactory.cc,
// AllocatorFactory.cc, ArbiterFactory.cc), each a simple string-switch
// dispatching to a concrete constructor; spec.md §7 names an unknown
// factory key as a decode-time fatal error, ported here as
// ErrUnknownFactory rather than original_source's fatal() call.
//

// ParseArbiterPolicy maps a `resource_arbiter`/`client_arbiter` config
// string to an ArbiterPolicy. Grounded on ArbiterFactory.cc's
// "random"/"comparing"/"lslp" switch.
func ParseArbiterPolicy(name string) (ArbiterPolicy, error) {
	switch name {
	case "random":
		return ArbiterRandom, nil
	case "comparing":
		return ArbiterComparing, nil
	case "lslp":
		return ArbiterLSLP, nil
	default:
		return 0, fmt.Errorf("%w: arbiter %q", ErrUnknownFactory, name)
	}
}

// ParseAllocatorStrategy maps an `allocator.type` config string to an
// AllocatorStrategy. Grounded on AllocatorFactory.cc's
// "r_separable"/"rc_separable" switch.
func ParseAllocatorStrategy(name string) (AllocatorStrategy, error) {
	switch name {
	case "r_separable":
		return StrategyRSeparable, nil
	case "rc_separable":
		return StrategyRCSeparable, nil
	default:
		return 0, fmt.Errorf("%w: allocator %q", ErrUnknownFactory, name)
	}
}

// ParseRouterKind maps a `router.type` config string to a RouterKind.
func ParseRouterKind(name string) (RouterKind, error) {
	switch name {
	case "input_queued":
		return RouterInputQueued, nil
	case "input_output_queued":
		return RouterInputOutputQueued, nil
	default:
		return 0, fmt.Errorf("%w: router type %q", ErrUnknownFactory, name)
	}
}

// ParseRouterCongestionMode maps a `router.congestion_mode` config
// string to a RouterCongestionMode.
func ParseRouterCongestionMode(name string) (RouterCongestionMode, error) {
	switch name {
	case "output":
		return RouterCongestionOutput, nil
	case "downstream":
		return RouterCongestionDownstream, nil
	case "output_and_downstream":
		return RouterCongestionOutputAndDownstream, nil
	default:
		return 0, fmt.Errorf("%w: congestion mode %q", ErrUnknownFactory, name)
	}
}

// ParseInputQueueMode maps a `router.input_queue_mode` config string
// to an InputQueueMode.
func ParseInputQueueMode(name string) (InputQueueMode, error) {
	switch name {
	case "fixed":
		return InputQueueFixed, nil
	case "tailored":
		return InputQueueTailored, nil
	default:
		return 0, fmt.Errorf("%w: input queue mode %q", ErrUnknownFactory, name)
	}
}

// ParseInterfaceInputQueueMode maps an `interface.init_credits_mode`
// config string to an InterfaceInputQueueMode.
func ParseInterfaceInputQueueMode(name string) (InterfaceInputQueueMode, error) {
	switch name {
	case "fixed":
		return InterfaceInputQueueFixed, nil
	case "tailored":
		return InterfaceInputQueueTailored, nil
	default:
		return 0, fmt.Errorf("%w: init credits mode %q", ErrUnknownFactory, name)
	}
}

// ParseReductionMode maps a `routing.mode` config string to a
// ReductionMode.
func ParseReductionMode(name string) (ReductionMode, error) {
	switch name {
	case "vc":
		return ReductionModeVc, nil
	case "port":
		return ReductionModePort, nil
	default:
		return 0, fmt.Errorf("%w: reduction mode %q", ErrUnknownFactory, name)
	}
}

// ParseNonMinimalWeightFunc maps a `routing.reduction.nonminimal_weight` config
// string to a NonMinimalWeightFunc. Grounded on the five variants
// spec.md §4.10 names (regular, bimodal, differential, proportional,
// proportional-differential).
func ParseNonMinimalWeightFunc(name string) (NonMinimalWeightFunc, error) {
	switch name {
	case "regular":
		return RegularWeight, nil
	case "bimodal":
		return BimodalWeight, nil
	case "differential":
		return DifferentialWeight, nil
	case "proportional":
		return ProportionalWeight, nil
	case "proportional_differential":
		return ProportionalDifferentialWeight, nil
	default:
		return nil, fmt.Errorf("%w: nonminimal weight function %q", ErrUnknownFactory, name)
	}
}

// ReductionStrategyConfig carries the JSON-decodable knobs needed to
// build a ReductionStrategy (spec.md §4.10's `routing.reduction`).
type ReductionStrategyConfig struct {
	Algorithm       string  `json:"algorithm"`
	CongestionBias  float64 `json:"congestion_bias"`
	IndependentBias float64 `json:"independent_bias"`
	NonMinimalWeight string `json:"nonminimal_weight"`
}

// NewReductionStrategy builds a ReductionStrategy from config.
// Grounded on ReductionFactory.cc's "least_congested_minimal"/
// "weighted" switch.
func NewReductionStrategy(cfg ReductionStrategyConfig) (ReductionStrategy, error) {
	switch cfg.Algorithm {
	case "least_congested_minimal":
		return LeastCongestedMinimal{}, nil
	case "weighted":
		weightFunc, err := ParseNonMinimalWeightFunc(cfg.NonMinimalWeight)
		if err != nil {
			return nil, err
		}
		return Weighted{
			CongestionBias:  cfg.CongestionBias,
			IndependentBias: cfg.IndependentBias,
			WeightFunc:      weightFunc,
		}, nil
	default:
		return nil, fmt.Errorf("%w: reduction algorithm %q", ErrUnknownFactory, cfg.Algorithm)
	}
}

// CongestionSensorConfig carries the JSON-decodable knobs needed to
// build a CongestionSensor (spec.md §6's `congestion_sensor: {algorithm,
// mode, granularity, minimum, offset, ...}`).
type CongestionSensorConfig struct {
	Algorithm   string  `json:"algorithm"`
	Mode        string  `json:"mode"`
	Granularity uint32  `json:"granularity"`
	Minimum     float64 `json:"minimum"`
	Offset      float64 `json:"offset"`
	Phantom     bool    `json:"phantom"`
	ValueCoeff  float64 `json:"value_coeff"`
	LengthCoeff float64 `json:"length_coeff"`
}

// NewCongestionSensor builds a CongestionSensor for device from
// config. Grounded on CongestionSensorFactory.cc's
// "null"/"buffer_occupancy" switch.
func NewCongestionSensor(device *PortedDevice, cfg CongestionSensorConfig) (CongestionSensor, error) {
	settings := CongestionSensorSettings{Granularity: cfg.Granularity, Minimum: cfg.Minimum, Offset: cfg.Offset}
	switch cfg.Algorithm {
	case "null":
		return NewNullSensor(), nil
	case "buffer_occupancy":
		mode, err := parseBufferOccupancyMode(cfg.Mode)
		if err != nil {
			return nil, err
		}
		return NewBufferOccupancy(device, settings, mode, cfg.Phantom, cfg.ValueCoeff, cfg.LengthCoeff), nil
	default:
		return nil, fmt.Errorf("%w: congestion sensor algorithm %q", ErrUnknownFactory, cfg.Algorithm)
	}
}

func parseBufferOccupancyMode(name string) (BufferOccupancyMode, error) {
	switch name {
	case "vc":
		return BufferOccupancyVc, nil
	case "port":
		return BufferOccupancyPort, nil
	default:
		return 0, fmt.Errorf("%w: buffer occupancy mode %q", ErrUnknownFactory, name)
	}
}

// AllocatorSettingsConfig is the JSON shape of spec.md §6's
// `allocator: {type, resource_arbiter, client_arbiter, iterations,
// slip_latch}`.
type AllocatorSettingsConfig struct {
	Type            string `json:"type"`
	ResourceArbiter string `json:"resource_arbiter"`
	ClientArbiter   string `json:"client_arbiter"`
	Iterations      uint32 `json:"iterations"`
	SlipLatch       bool   `json:"slip_latch"`
}

// Build decodes cfg into an AllocatorSettings, looking up its named
// arbiter policies and strategy.
func (cfg AllocatorSettingsConfig) Build() (AllocatorSettings, error) {
	strategy, err := ParseAllocatorStrategy(cfg.Type)
	if err != nil {
		return AllocatorSettings{}, err
	}
	resourceArb, err := ParseArbiterPolicy(cfg.ResourceArbiter)
	if err != nil {
		return AllocatorSettings{}, err
	}
	clientArb, err := ParseArbiterPolicy(cfg.ClientArbiter)
	if err != nil {
		return AllocatorSettings{}, err
	}
	return AllocatorSettings{
		Strategy:        strategy,
		ResourceArbiter: resourceArb,
		ClientArbiter:   clientArb,
		Iterations:      cfg.Iterations,
		SlipLatch:       cfg.SlipLatch,
	}, nil
}

// seededRNG builds a *rand.Rand for a named component whose allocator/
// routing decisions should be reproducible across a run but distinct
// per-component, matching original_source's per-object RNG instance
// convention (gSim->rnd reseeded per constructor call site).
func seededRNG(seed int64, salt string) *rand.Rand {
	return NewPRNG(seed ^ int64(fnv1a(salt)))
}

func fnv1a(s string) uint64 {
	const offset = 14695981039346656037
	const prime = 1099511628211
	h := uint64(offset)
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime
	}
	return h
}
