package flitsim

import "errors"

//
// Sentinel errors for decode-time and configuration failures (spec.md
// §7 "fatal misconfiguration"). Grounded on ooni-netem's package-level
// `var Err... = errors.New(...)` convention (topology.go, dissect.go,
// dnsclient.go); runtime invariant violations inside the simulation
// core stay as panics per rtx.go's Must0/Must1/Must2, matching
// original_source's assert-is-fatal discipline (spec.md §9).
//

// ErrUnknownFactory is returned when a config names a factory key
// (arbiter, allocator strategy, congestion sensor algorithm, reduction
// strategy) that has no registered constructor.
var ErrUnknownFactory = errors.New("flitsim: unknown factory key")

// ErrInvalidConfig is returned for a structurally valid but
// semantically inconsistent configuration (e.g. zero VCs, a protocol
// class referencing an out-of-range VC range).
var ErrInvalidConfig = errors.New("flitsim: invalid configuration")
