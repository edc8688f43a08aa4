package flitsim

import "math/rand"

//
// Reduction: compresses the many (port, vc, hops, congestion)
// candidates a routing algorithm gathers down to a bounded output
// set. Grounded on original_source/src/routing/Reduction.{h,cc}
// (add/reduce state machine, minimal/non-minimal partitioning, the
// uniform-random down-sample to maxOutputs) and
// WeightedReduction.{h,cc} (the weighted strategy's minimal-then-
// non-minimal weight comparison) plus
// LeastCongestedMinimalReduction_TEST.cc (minimal-only, lowest
// congestion wins, ties broken by reduce's random down-sample).
//

// ReductionMode names whether candidates are tracked per-VC or
// per-port (spec §4.10's RoutingMode).
type ReductionMode uint8

const (
	ReductionModeVc ReductionMode = iota
	ReductionModePort
)

// reductionCandidate is one (port, vc, hops, congestion) tuple
// submitted to a Reduction via Add.
type reductionCandidate struct {
	port, vc, hops uint32
	congestion     float64
}

// ReductionStrategy computes the candidate output set given the
// minimal-hop-count value and the minimal/non-minimal candidate
// partitions; it reports whether the chosen set is entirely minimal.
type ReductionStrategy interface {
	Process(minHops uint32, minimal, nonMinimal []reductionCandidate) (outputs []routingCandidate, allMinimal bool)
}

// Reduction runs one add/reduce cycle per flit routing decision: add
// is called once per candidate, then reduce partitions into minimal
// (hops == minHops) vs non-minimal, delegates to a ReductionStrategy,
// and randomly down-samples the result to maxOutputs.
type Reduction struct {
	device            *PortedDevice
	mode              ReductionMode
	maxOutputs        uint32
	ignoreDuplicates  bool
	strategy          ReductionStrategy
	rng               *rand.Rand

	started   bool
	seen      map[uint32]bool
	minHops   uint32
	minimal   []reductionCandidate
	nonMinimal []reductionCandidate
}

// NewReduction creates a Reduction. maxOutputs == 0 means unbounded.
func NewReduction(device *PortedDevice, mode ReductionMode, maxOutputs uint32, ignoreDuplicates bool, strategy ReductionStrategy, rng *rand.Rand) *Reduction {
	return &Reduction{
		device:           device,
		mode:             mode,
		maxOutputs:       maxOutputs,
		ignoreDuplicates: ignoreDuplicates,
		strategy:         strategy,
		rng:              rng,
		started:          true,
		seen:             map[uint32]bool{},
	}
}

// Add records one candidate (spec §4.10). Calling Add after a prior
// Reduce call resets the accumulation state first.
func (r *Reduction) Add(port, vc, hops uint32, congestion float64) {
	if r.started {
		r.seen = map[uint32]bool{}
		r.minimal = r.minimal[:0]
		r.nonMinimal = r.nonMinimal[:0]
		r.minHops = ^uint32(0)
		r.started = false
	}

	var input uint32
	if r.mode == ReductionModePort {
		input = port
	} else {
		input = r.device.VcIndex(port, vc)
	}
	if !r.ignoreDuplicates && r.seen[input] {
		panic("flitsim: reduction input added twice in the same round")
	}
	r.seen[input] = true

	c := reductionCandidate{port: port, vc: vc, hops: hops, congestion: congestion}
	switch {
	case hops < r.minHops:
		r.nonMinimal = append(r.nonMinimal, r.minimal...)
		r.minimal = r.minimal[:0]
		r.minHops = hops
		r.minimal = append(r.minimal, c)
	case hops == r.minHops:
		r.minimal = append(r.minimal, c)
	default:
		r.nonMinimal = append(r.nonMinimal, c)
	}
}

// Reduce computes the final bounded candidate set and whether it is
// entirely composed of minimal-hop candidates.
func (r *Reduction) Reduce() (outputs []routingCandidate, allMinimal bool) {
	if r.started {
		panic("flitsim: reduce called with no candidates added")
	}
	r.started = true
	if len(r.minimal) == 0 {
		panic("flitsim: reduction has no minimal candidates")
	}

	intermediate, allMin := r.strategy.Process(r.minHops, r.minimal, r.nonMinimal)
	if len(intermediate) == 0 {
		panic("flitsim: reduction strategy produced no candidates")
	}

	if r.maxOutputs == 0 || uint32(len(intermediate)) <= r.maxOutputs {
		return intermediate, allMin
	}
	picked := make([]routingCandidate, 0, r.maxOutputs)
	pool := append([]routingCandidate(nil), intermediate...)
	for uint32(len(picked)) < r.maxOutputs {
		i := r.rng.Intn(len(pool))
		picked = append(picked, pool[i])
		pool[i] = pool[len(pool)-1]
		pool = pool[:len(pool)-1]
	}
	return picked, allMin
}

// LeastCongestedMinimal picks, among the minimal-hop candidates only,
// those with the lowest congestion value (non-minimal candidates are
// never considered). Grounded on LeastCongestedMinimalReduction_TEST.cc.
type LeastCongestedMinimal struct{}

func (LeastCongestedMinimal) Process(_ uint32, minimal, _ []reductionCandidate) ([]routingCandidate, bool) {
	best := minimal[0].congestion
	for _, c := range minimal[1:] {
		if c.congestion < best {
			best = c.congestion
		}
	}
	var out []routingCandidate
	for _, c := range minimal {
		if c.congestion == best {
			out = append(out, routingCandidate{port: c.port, vc: c.vc})
		}
	}
	return out, true
}

// NonMinimalWeightFunc computes the weight of a non-minimal
// candidate, given the minimal hop count, this candidate's hop count,
// the best minimal congestion value, this candidate's congestion
// value, and the configured congestion/independent biases. Spec §4.10
// names five variants (regular, bimodal, differential, proportional,
// proportional-differential); original_source's NonMinimalWeightFunc.cc
// was not part of the retrieved sources, so these five are the
// student's own reconstruction from the UGAL weighting literature the
// spec's naming points to, documented as an Open Question resolution
// in DESIGN.md.
type NonMinimalWeightFunc func(minHops, hops uint32, minCongestion, congestion, congestionBias, independentBias float64) float64

// RegularWeight: hops * congestion, biased by both constants.
func RegularWeight(_ uint32, hops uint32, _ /* minCongestion */, congestion, congestionBias, independentBias float64) float64 {
	return float64(hops)*congestion + congestionBias + independentBias
}

// BimodalWeight: penalizes non-minimal candidates an extra
// congestionBias whenever their congestion is no better than the best
// minimal candidate's.
func BimodalWeight(_ uint32, hops uint32, minCongestion, congestion, congestionBias, independentBias float64) float64 {
	w := float64(hops)*congestion + independentBias
	if congestion >= minCongestion {
		w += congestionBias
	}
	return w
}

// DifferentialWeight: weighs the gap between this candidate's
// congestion and the best minimal candidate's.
func DifferentialWeight(_ uint32, hops uint32, minCongestion, congestion, congestionBias, independentBias float64) float64 {
	return float64(hops)*congestion + congestionBias*(congestion-minCongestion) + independentBias
}

// ProportionalWeight: scales congestion by the extra hop count
// relative to minHops before biasing.
func ProportionalWeight(minHops, hops uint32, _ float64, congestion, congestionBias, independentBias float64) float64 {
	extra := float64(hops - minHops)
	return float64(hops)*congestion*(1.0+extra*congestionBias) + independentBias
}

// ProportionalDifferentialWeight combines Proportional's extra-hop
// scaling with Differential's congestion-gap term.
func ProportionalDifferentialWeight(minHops, hops uint32, minCongestion, congestion, congestionBias, independentBias float64) float64 {
	extra := float64(hops - minHops)
	return float64(hops)*congestion + congestionBias*(congestion-minCongestion)*(1.0+extra) + independentBias
}

// Weighted picks the minimum-weight candidate across both minimal and
// non-minimal sets: minimal candidates weigh congestion*minHops;
// non-minimal candidates are weighed by the configured
// NonMinimalWeightFunc. Ties accumulate into the output set. Grounded
// on WeightedReduction.cc.
type Weighted struct {
	CongestionBias  float64
	IndependentBias float64
	WeightFunc      NonMinimalWeightFunc
}

func (w Weighted) Process(minHops uint32, minimal, nonMinimal []reductionCandidate) ([]routingCandidate, bool) {
	minWeight := minimal[0].congestion * float64(minHops)
	minCongestion := minimal[0].congestion
	var outputs []routingCandidate
	outputs = append(outputs, routingCandidate{port: minimal[0].port, vc: minimal[0].vc})

	for _, c := range minimal[1:] {
		weight := c.congestion * float64(minHops)
		switch {
		case weight < minWeight:
			minCongestion = c.congestion
			minWeight = weight
			outputs = outputs[:0]
			outputs = append(outputs, routingCandidate{port: c.port, vc: c.vc})
		case weight == minWeight:
			outputs = append(outputs, routingCandidate{port: c.port, vc: c.vc})
		}
	}

	nonMin := false
	for _, c := range nonMinimal {
		weight := w.WeightFunc(minHops, c.hops, minCongestion, c.congestion, w.CongestionBias, w.IndependentBias)
		switch {
		case weight < minWeight:
			nonMin = true
			minWeight = weight
			outputs = outputs[:0]
			outputs = append(outputs, routingCandidate{port: c.port, vc: c.vc})
		case weight == minWeight && nonMin:
			outputs = append(outputs, routingCandidate{port: c.port, vc: c.vc})
		}
	}

	return outputs, !nonMin
}
