// Package refinement implements RefinementService: recomputing features
// for the shortlist at wider radii, partitioned over GridService windows
// and run with bounded fan-out via errgroup. Windows are independent;
// overlap between them is resolved by first-win deduplication.
package refinement

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"sitegen/domain/core"
	"sitegen/domain/site"
	"sitegen/internal/feature"
	"sitegen/internal/grid"
)

// Report summarizes one refinement pass.
type Report struct {
	Processed  int
	Improved   int
	Efficiency float64
}

// Service implements the R component.
type Service struct {
	features       *feature.Service
	grid           *grid.Service
	travelMinutes  int // 0 disables the isochrone path
	maxConcurrency int
}

// New constructs a RefinementService. travelMinutes enables the
// travel-time variant of ComputeRefinedFeatures when > 0.
func New(features *feature.Service, gridSvc *grid.Service, travelMinutes, maxConcurrency int) *Service {
	if maxConcurrency <= 0 {
		maxConcurrency = 8
	}
	return &Service{features: features, grid: gridSvc, travelMinutes: travelMinutes, maxConcurrency: maxConcurrency}
}

// claimSet is a single-writer-per-id dedup helper: overlapping windows may
// both contain the same candidate cell; the first window to claim an id
// wins and later claims are skipped.
type claimSet struct {
	mu   sync.Mutex
	seen map[core.CandidateID]bool
}

func (cs *claimSet) claim(id core.CandidateID) bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.seen[id] {
		return false
	}
	cs.seen[id] = true
	return true
}

func (cs *claimSet) count() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return len(cs.seen)
}

// Refine recomputes features for every shortlisted candidate, grouped by
// windows. Per-candidate failures keep the candidate's prior state rather
// than failing the whole window; ComputeRefinedFeatures itself cannot
// error today (the isochrone fallback is internal to it), but the
// structure stays fallible so a future flaky feature source slots in
// without changing callers.
func (s *Service) Refine(ctx context.Context, candidates []*site.Candidate, windows []grid.Window) Report {
	if len(candidates) == 0 {
		return Report{}
	}

	byID := make(map[core.CandidateID]*site.Candidate, len(candidates))
	for _, c := range candidates {
		byID[c.ID] = c
	}

	claims := &claimSet{seen: make(map[core.CandidateID]bool, len(candidates))}
	improved := make(map[core.CandidateID]bool)
	var improvedMu sync.Mutex

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(s.maxConcurrency)

	for wi := range windows {
		window := windows[wi]
		group.Go(func() error {
			for _, cell := range window.Cells {
				c, ok := byID[core.CandidateID(cell.Index)]
				if !ok {
					continue
				}
				if !claims.claim(c.ID) {
					continue
				}

				before := c.Features
				refined, flags := s.features.ComputeRefinedFeatures(gctx, c.Point, s.travelMinutes)
				c.Features = refined
				c.Quality.Estimated.Population = flags.Population
				c.Quality.Estimated.TravelTime = flags.TravelTime
				c.Quality = site.QualityFromEstimation(c.Quality.Estimated)

				if refined.Population > before.Population ||
					refined.Anchors.DiminishingScore > before.Anchors.DiminishingScore ||
					refined.PerformanceProxy > before.PerformanceProxy {
					improvedMu.Lock()
					improved[c.ID] = true
					improvedMu.Unlock()
				}
			}
			return nil
		})
	}
	_ = group.Wait()

	processed := claims.count()
	efficiency := 1.0
	if len(candidates) > 0 {
		efficiency = float64(processed) / float64(len(candidates))
	}

	return Report{Processed: processed, Improved: len(improved), Efficiency: efficiency}
}
