// Package stability implements StabilityService: weight-jitter robustness
// analysis over N iterations, tracking per-candidate selection rate and
// rank-change statistics across jittered re-scorings.
package stability

import (
	"context"
	"math"
	"sort"

	mstats "github.com/montanaflynn/stats"

	"sitegen/domain/core"
	"sitegen/domain/site"
	"sitegen/internal/constraint"
	"sitegen/internal/portfolio"
	"sitegen/internal/scoring"
	"sitegen/ports"
)

const (
	DefaultIterations = 50
	jitterBand        = 0.10
)

// SiteResult is one candidate's robustness summary across jitter
// iterations.
type SiteResult struct {
	CandidateID    core.CandidateID
	SelectionRate  float64
	AvgRankChange  float64
	MaxRankChange  int
	Confidence     string // high | medium | low
	TopContributors [2]string
}

// PortfolioResult is the whole-run summary.
type PortfolioResult struct {
	Sites                 []SiteResult
	OverallStability       float64
	StableCount            int
	Recommendations        []string
}

// Service implements the U component.
type Service struct {
	scoring     *scoring.Service
	portfolios  *portfolio.Service
	rng         ports.RNGPort
	iterations  int
}

func New(scoringSvc *scoring.Service, portfolios *portfolio.Service, rng ports.RNGPort, iterations int) *Service {
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	return &Service{scoring: scoringSvc, portfolios: portfolios, rng: rng, iterations: iterations}
}

// Analyze runs the weight-jitter loop and returns per-site and
// portfolio-level stability statistics.
func (s *Service) Analyze(ctx context.Context, candidates []*site.Candidate, baseWeights site.Weights, stores []site.ExistingStore, cfg constraint.Config, targetK int, runID string, baseSeed int64) (PortfolioResult, error) {
	if len(candidates) == 0 {
		return PortfolioResult{}, nil
	}

	stream, err := s.rng.RunStream(ctx, runID, "stability", baseSeed)
	if err != nil {
		return PortfolioResult{}, err
	}

	selections := make(map[core.CandidateID]int)
	ranks := make(map[core.CandidateID][]int)
	topContribSums := make(map[core.CandidateID]map[string]float64)

	rankOf := func(working []*site.Candidate) map[core.CandidateID]int {
		m := make(map[core.CandidateID]int, len(working))
		for i, c := range working {
			m[c.ID] = i + 1
		}
		return m
	}

	baseWorking := cloneAll(candidates)
	s.scoring.ScoreAll(baseWorking, baseWeights)
	scoring.Rank(baseWorking)
	baseRanks := rankOf(baseWorking)

	for iter := 0; iter < s.iterations; iter++ {
		jittered := jitterWeights(baseWeights, stream)

		working := cloneAll(candidates)
		s.scoring.ScoreAll(working, jittered)
		scoring.Rank(working)

		built := s.portfolios.Build(working, stores, cfg, targetK)
		selectedSet := make(map[core.CandidateID]bool, len(built.Selected))
		for _, c := range built.Selected {
			selectedSet[c.ID] = true
		}

		iterRanks := rankOf(working)
		for _, c := range working {
			id := c.ID
			if selectedSet[id] {
				selections[id]++
			}
			ranks[id] = append(ranks[id], iterRanks[id])

			if topContribSums[id] == nil {
				topContribSums[id] = make(map[string]float64)
			}
			topContribSums[id]["population"] += c.Scores.Population * jittered.Population
			topContribSums[id]["gap"] += c.Scores.Gap * jittered.Gap
			topContribSums[id]["anchor"] += c.Scores.Anchor * jittered.Anchor
			topContribSums[id]["performance"] += c.Scores.Performance * jittered.Performance
			topContribSums[id]["saturation"] += c.Scores.SaturationPenalty * jittered.Saturation
		}
	}

	var results []SiteResult
	stableCount := 0
	var lowConfidenceCount int

	for _, c := range candidates {
		id := c.ID
		selRate := float64(selections[id]) / float64(s.iterations)

		rankSeq := ranks[id]
		var rankChanges []float64
		baseRank := float64(baseRanks[id])
		maxChange := 0
		for _, r := range rankSeq {
			delta := math.Abs(float64(r) - baseRank)
			rankChanges = append(rankChanges, delta)
			if int(delta) > maxChange {
				maxChange = int(delta)
			}
		}
		avgChange, _ := mstats.Mean(rankChanges)

		confidence := "low"
		switch {
		case selRate >= 0.8:
			confidence = "high"
			stableCount++
		case selRate >= 0.5:
			confidence = "medium"
		default:
			lowConfidenceCount++
		}

		results = append(results, SiteResult{
			CandidateID:     id,
			SelectionRate:   selRate,
			AvgRankChange:   avgChange,
			MaxRankChange:   maxChange,
			Confidence:      confidence,
			TopContributors: topTwoContributors(topContribSums[id]),
		})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].CandidateID < results[j].CandidateID })

	var meanSelRate float64
	for _, r := range results {
		meanSelRate += r.SelectionRate
	}
	if len(results) > 0 {
		meanSelRate /= float64(len(results))
	}

	var recommendations []string
	if len(results) > 0 && float64(lowConfidenceCount)/float64(len(results)) > 0.3 {
		recommendations = append(recommendations, "review data quality: over 30% of sites have low selection confidence")
	}

	return PortfolioResult{
		Sites:           results,
		OverallStability: meanSelRate,
		StableCount:     stableCount,
		Recommendations: recommendations,
	}, nil
}

// jitterWeights samples u in [-0.1,0.1] uniformly per weight, multiplies
// w*(1+u) floored at 0, and renormalizes.
func jitterWeights(base site.Weights, r interface{ Float64() float64 }) site.Weights {
	jitter := func(w float64) float64 {
		u := (r.Float64()*2 - 1) * jitterBand
		v := w * (1 + u)
		if v < 0 {
			v = 0
		}
		return v
	}
	return site.Weights{
		Population:  jitter(base.Population),
		Gap:         jitter(base.Gap),
		Anchor:      jitter(base.Anchor),
		Performance: jitter(base.Performance),
		Saturation:  jitter(base.Saturation),
	}.Normalized()
}

func topTwoContributors(sums map[string]float64) [2]string {
	type kv struct {
		k string
		v float64
	}
	var list []kv
	for k, v := range sums {
		list = append(list, kv{k, v})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].v != list[j].v {
			return list[i].v > list[j].v
		}
		return list[i].k < list[j].k
	})
	var out [2]string
	for i := 0; i < 2 && i < len(list); i++ {
		out[i] = list[i].k
	}
	return out
}

func cloneAll(candidates []*site.Candidate) []*site.Candidate {
	out := make([]*site.Candidate, len(candidates))
	for i, c := range candidates {
		clone := *c
		out[i] = &clone
	}
	return out
}
