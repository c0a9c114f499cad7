// Package rng builds the seeded pseudo-random sources used by the ensembles.
//
// Every random draw in the engine comes from a generator derived from
// (seed, stream, index). Streams keep unrelated draws apart, so that turning
// dropout on, for example, never shifts the bootstrap rows of a bagging
// member. No package-level generator exists.
package rng

import (
	"math/rand/v2"
)

// Stream identifies one family of random draws.
type Stream uint32

const (
	// StreamWeights draws the augmenter's hidden weights and biases.
	StreamWeights Stream = iota + 1
	// StreamDropout draws per-round (or per-member) dropout masks.
	StreamDropout
	// StreamBootstrap draws bagging row indices per member.
	StreamBootstrap
	// StreamSampleWeights draws AdaBoost initial sample weights.
	StreamSampleWeights
	// StreamResample draws weighted resamples for learners without native weights.
	StreamResample
	// StreamLearner seeds randomized base learners such as extra trees.
	StreamLearner
)

// DefaultSeed is used when no seed is configured.
const DefaultSeed uint64 = 42

// NewSource returns a PCG source for (seed, stream, index). index is the
// round, member or class number; pass 0 for one-off draws.
func NewSource(seed uint64, stream Stream, index int) *rand.PCG {
	return rand.NewPCG(seed, uint64(stream)<<32|uint64(uint32(index)))
}

// New returns a *rand.Rand over NewSource.
func New(seed uint64, stream Stream, index int) *rand.Rand {
	return rand.New(NewSource(seed, stream, index))
}
