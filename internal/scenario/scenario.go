// Package scenario implements ScenarioService: instant re-scoring from
// cached features under named weight-multiplier profiles (Defend,
// Balanced, Blitz), with a process-scoped cache keyed by
// (mode, candidate-id-set hash, config hash). The cache is explicit
// process-wide state with init at construction, never a hidden
// singleton. Entries carry no expiry and are never evicted.
package scenario

import (
	"sync"

	"sitegen/domain/core"
	"sitegen/domain/site"
	"sitegen/internal/constraint"
	"sitegen/internal/pareto"
	"sitegen/internal/portfolio"
	"sitegen/internal/scoring"
)

// Mode is one of the three named scenario profiles.
type Mode string

const (
	ModeDefend   Mode = "Defend"
	ModeBalanced Mode = "Balanced"
	ModeBlitz    Mode = "Blitz"
)

var multipliers = map[Mode]site.Weights{
	ModeDefend:   {Population: 0.9, Gap: 1.0, Anchor: 1.1, Performance: 1.2, Saturation: 1.3},
	ModeBalanced: {Population: 1.0, Gap: 1.0, Anchor: 1.0, Performance: 1.0, Saturation: 1.0},
	ModeBlitz:    {Population: 1.2, Gap: 1.1, Anchor: 0.9, Performance: 0.8, Saturation: 0.7},
}

// ValidMode reports whether mode names one of the three scenarios.
func ValidMode(mode Mode) bool {
	_, ok := multipliers[mode]
	return ok
}

// ApplyMultipliers scales base weights by mode's per-factor multipliers
// and renormalizes.
func ApplyMultipliers(base site.Weights, mode Mode) site.Weights {
	m := multipliers[mode]
	scaled := site.Weights{
		Population:  base.Population * m.Population,
		Gap:         base.Gap * m.Gap,
		Anchor:      base.Anchor * m.Anchor,
		Performance: base.Performance * m.Performance,
		Saturation:  base.Saturation * m.Saturation,
	}
	return scaled.Normalized()
}

// Result is one scenario evaluation.
type Result struct {
	Mode      Mode
	Weights   site.Weights
	Portfolio portfolio.Result
	Frontier  []site.ParetoPoint
	CacheHit  bool
}

type cacheEntry struct {
	result Result
}

// Service implements the N component. Cache entries are process-scoped
// and never expire within a run; the cache key already encodes every
// input that could change the result.
type Service struct {
	scoring     *scoring.Service
	portfolios  *portfolio.Service
	pareto      *pareto.Service

	mu    sync.Mutex
	cache map[string]cacheEntry
}

func New(scoringSvc *scoring.Service, portfolios *portfolio.Service, paretoSvc *pareto.Service) *Service {
	return &Service{scoring: scoringSvc, portfolios: portfolios, pareto: paretoSvc, cache: make(map[string]cacheEntry)}
}

// cacheKey is (mode, sorted-candidate-id-list hash, config hash).
func cacheKey(mode Mode, candidates []*site.Candidate, configHash core.ConfigHash) string {
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID.String()
	}
	idHash := core.ComputeSortedHash(ids)
	return string(mode) + "|" + idHash.String() + "|" + configHash.String()
}

// Switch re-scores candidates under mode's multipliers, rebuilds the
// portfolio and Pareto frontier, and caches the result. A second call with
// identical (mode, candidates, config) returns the cached result with
// CacheHit=true rather than recomputing.
func (s *Service) Switch(mode Mode, candidates []*site.Candidate, baseWeights site.Weights, stores []site.ExistingStore, cfg constraint.Config, country site.CountryConfig, targetK int, configHash core.ConfigHash) (Result, error) {
	if !ValidMode(mode) {
		return Result{}, core.ErrUnknownMode
	}

	key := cacheKey(mode, candidates, configHash)

	s.mu.Lock()
	if entry, ok := s.cache[key]; ok {
		s.mu.Unlock()
		hit := entry.result
		hit.CacheHit = true
		return hit, nil
	}
	s.mu.Unlock()

	weights := ApplyMultipliers(baseWeights, mode)

	working := cloneCandidates(candidates)
	s.scoring.ScoreAll(working, weights)
	scoring.Rank(working)

	built := s.portfolios.Build(working, stores, cfg, targetK)
	frontier := s.pareto.Sweep(working, stores, cfg, country)

	result := Result{Mode: mode, Weights: weights, Portfolio: built, Frontier: frontier, CacheHit: false}

	s.mu.Lock()
	s.cache[key] = cacheEntry{result: result}
	s.mu.Unlock()

	return result, nil
}

// cloneCandidates deep-copies the candidate slice so scenario re-scoring
// never mutates the caller's cached-feature candidates; only Scores,
// Status, and Constraint are meant to change per scenario.
func cloneCandidates(candidates []*site.Candidate) []*site.Candidate {
	out := make([]*site.Candidate, len(candidates))
	for i, c := range candidates {
		clone := *c
		out[i] = &clone
	}
	return out
}
