package ports

import (
	"context"
	"math/rand"
)

// RNGPort hands out seeded random streams so that jitter and shuffle
// stages reproduce exactly for the same run seed.
type RNGPort interface {
	// SeededStream returns a generator for a named concern (e.g.
	// "stability-jitter"), derived from that name and the run seed so
	// two concerns sharing a seed never share a sequence.
	SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error)

	// RunStream scopes a stream to one run and stage, for stages that
	// may execute several times within a process lifetime.
	RunStream(ctx context.Context, runID, stage string, baseSeed int64) (*rand.Rand, error)

	// ValidateSeed checks that a named stream reproduces an expected
	// prefix, guarding the determinism contract in tests and health
	// checks.
	ValidateSeed(ctx context.Context, name string, seed int64, expected []float64) error
}
