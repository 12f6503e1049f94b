// Package rng implements ports.RNGPort: deterministic, per-stage seeded
// random streams derived from a run's base seed, so jitter, shuffle, and
// any other run-level randomness reproduces exactly across runs with the
// same seed and data versions.
package rng

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"

	"sitegen/ports"
)

// Adapter is the default RNGPort implementation: every named stream is a
// fresh *rand.Rand seeded from a deterministic hash of (name, baseSeed)
// or (runID, stage, baseSeed).
type Adapter struct{}

func New() *Adapter { return &Adapter{} }

func (a *Adapter) SeededStream(_ context.Context, name string, seed int64) (*rand.Rand, error) {
	if name == "" {
		return nil, fmt.Errorf("rng: stream name must not be empty")
	}
	return rand.New(rand.NewSource(deriveSeed(name, seed))), nil
}

func (a *Adapter) RunStream(_ context.Context, runID, stage string, baseSeed int64) (*rand.Rand, error) {
	if runID == "" || stage == "" {
		return nil, fmt.Errorf("rng: runID and stage must not be empty")
	}
	return rand.New(rand.NewSource(deriveSeed(runID+"|"+stage, baseSeed))), nil
}

func (a *Adapter) ValidateSeed(ctx context.Context, name string, seed int64, expected []float64) error {
	r, err := a.SeededStream(ctx, name, seed)
	if err != nil {
		return err
	}
	for i, want := range expected {
		got := r.Float64()
		if got != want {
			return fmt.Errorf("rng: seed %d stream %q diverged at index %d: got %v want %v", seed, name, i, got, want)
		}
	}
	return nil
}

func deriveSeed(name string, seed int64) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	mixed := int64(h.Sum64()) ^ seed
	if mixed == 0 {
		mixed = 1
	}
	return mixed
}

var _ ports.RNGPort = (*Adapter)(nil)
