package flitsim

import "math/rand"

//
// A single seeded PRNG shared by every stochastic decision in a run
// (random arbiters, random VC selection, random traffic), so that a
// fixed seed makes one single-threaded run bit-exact reproducible
// (spec §7 "Determinism"). Grounded on original_source's gSim->rnd,
// a simulator-global random source threaded through every consumer
// (Reduction.cc, Interface.cc, VcScheduler_TEST.cc, etc.) rather than
// ad hoc per-component sources.
//

// NewPRNG creates the run's single random source from seed.
func NewPRNG(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}
