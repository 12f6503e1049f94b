// Package scoring implements ScoringService: per-candidate sub-scores,
// the data-quality weight adjustment, run-wide normalization, and ranking.
// The distribution summary (mean/median/std) is computed with gonum.
package scoring

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"sitegen/domain/site"
)

// Service implements the S component.
type Service struct{}

func New() *Service { return &Service{} }

// PopulationScore is min(pop/100_000, 1), 0 if pop<=0.
func PopulationScore(population int) float64 {
	if population <= 0 {
		return 0
	}
	return math.Min(float64(population)/100000.0, 1)
}

// GapScore averages the brand-distance term and the competitor-density
// term.
func GapScore(nearestBrandKm, competitorDensity float64) float64 {
	distanceTerm := 1.0
	if !math.IsInf(nearestBrandKm, 1) {
		distanceTerm = math.Min(nearestBrandKm/20.0, 1)
	}
	competitionTerm := math.Max(0, 1-10*competitorDensity)
	return (distanceTerm + competitionTerm) / 2
}

// AnchorScore is min(diminishingScore/15, 1), 0 if the score is 0.
func AnchorScore(diminishingScore float64) float64 {
	if diminishingScore <= 0 {
		return 0
	}
	return math.Min(diminishingScore/15.0, 1)
}

// PerformanceScore clamps performanceProxy to [0,1].
func PerformanceScore(performanceProxy float64) float64 {
	if performanceProxy < 0 {
		return 0
	}
	if performanceProxy > 1 {
		return 1
	}
	return performanceProxy
}

// SaturationPenalty combines the density term and the too-close-to-brand
// term, capped at 1.
func SaturationPenalty(competitorDensity, nearestBrandKm float64) float64 {
	penalty := math.Min(5*competitorDensity, 0.5)
	if nearestBrandKm < 1 {
		penalty += 0.3
	}
	return math.Min(penalty, 1)
}

// AdjustWeights applies the data-quality weight adjustment:
// reduce wPopulation 50% on estimated population, wAnchor 50% on estimated
// anchors, wPerformance 20% on estimated travel time; the removed mass
// moves to wGap, then the result is renormalized.
func AdjustWeights(w site.Weights, estimated site.EstimationFlags) site.Weights {
	adjusted := w
	var removed float64

	if estimated.Population {
		cut := adjusted.Population * 0.5
		adjusted.Population -= cut
		removed += cut
	}
	if estimated.Anchors {
		cut := adjusted.Anchor * 0.5
		adjusted.Anchor -= cut
		removed += cut
	}
	if estimated.TravelTime {
		cut := adjusted.Performance * 0.2
		adjusted.Performance -= cut
		removed += cut
	}

	adjusted.Gap += removed
	return adjusted.Normalized()
}

// ComputeSubScores derives the full SubScores bundle for one candidate's
// features under the (already data-quality-adjusted) weights. Final is
// clamped to [0,1].
func ComputeSubScores(f site.Features, w site.Weights) site.SubScores {
	pop := PopulationScore(f.Population)
	gap := GapScore(f.NearestBrandKm, f.CompetitorDensity)
	anchor := AnchorScore(f.Anchors.DiminishingScore)
	perf := PerformanceScore(f.PerformanceProxy)
	sat := SaturationPenalty(f.CompetitorDensity, f.NearestBrandKm)

	weighted := w.Population*pop + w.Gap*gap + w.Anchor*anchor + w.Performance*perf
	final := weighted * (1 - sat*w.Saturation)
	if final < 0 {
		final = 0
	}
	if final > 1 {
		final = 1
	}

	return site.SubScores{
		Population:        pop,
		Gap:               gap,
		Anchor:            anchor,
		Performance:       perf,
		SaturationPenalty: sat,
		Final:             final,
	}
}

// ScoreCandidate runs the data-quality adjustment and sub-score formula
// for one candidate in place, returning the weights actually used.
func (s *Service) ScoreCandidate(c *site.Candidate, baseWeights site.Weights) site.Weights {
	adjusted := AdjustWeights(baseWeights, c.Quality.Estimated)
	c.Scores = ComputeSubScores(c.Features, adjusted)
	return adjusted
}

// ScoreAll scores every candidate under baseWeights, then normalizes each
// sub-score and Final across the whole set.
func (s *Service) ScoreAll(candidates []*site.Candidate, baseWeights site.Weights) {
	for _, c := range candidates {
		s.ScoreCandidate(c, baseWeights)
	}
	Normalize(candidates)
}

// Normalize linearly rescales each sub-score and Final to [0,1] across all
// candidates. A zero-range field becomes 0.5 for every candidate.
func Normalize(candidates []*site.Candidate) {
	if len(candidates) == 0 {
		return
	}

	normalizeField(candidates,
		func(c *site.Candidate) float64 { return c.Scores.Population },
		func(c *site.Candidate, v float64) { c.Scores.Population = v })
	normalizeField(candidates,
		func(c *site.Candidate) float64 { return c.Scores.Gap },
		func(c *site.Candidate, v float64) { c.Scores.Gap = v })
	normalizeField(candidates,
		func(c *site.Candidate) float64 { return c.Scores.Anchor },
		func(c *site.Candidate, v float64) { c.Scores.Anchor = v })
	normalizeField(candidates,
		func(c *site.Candidate) float64 { return c.Scores.Performance },
		func(c *site.Candidate, v float64) { c.Scores.Performance = v })
	normalizeField(candidates,
		func(c *site.Candidate) float64 { return c.Scores.SaturationPenalty },
		func(c *site.Candidate, v float64) { c.Scores.SaturationPenalty = v })
	normalizeField(candidates,
		func(c *site.Candidate) float64 { return c.Scores.Final },
		func(c *site.Candidate, v float64) { c.Scores.Final = v })
}

func normalizeField(candidates []*site.Candidate, get func(*site.Candidate) float64, set func(*site.Candidate, float64)) {
	min, max := get(candidates[0]), get(candidates[0])
	for _, c := range candidates[1:] {
		v := get(c)
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	rng := max - min
	for _, c := range candidates {
		if rng == 0 {
			set(c, 0.5)
			continue
		}
		set(c, (get(c)-min)/rng)
	}
}

// Rank sorts candidates descending by Final, breaking ties by id for a
// deterministic order.
func Rank(candidates []*site.Candidate) {
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Scores.Final != candidates[j].Scores.Final {
			return candidates[i].Scores.Final > candidates[j].Scores.Final
		}
		return candidates[i].ID.String() < candidates[j].ID.String()
	})
}

// DistributionStats is the mean/median/std/min/max of final scores.
type DistributionStats struct {
	Mean   float64
	Median float64
	StdDev float64
	Min    float64
	Max    float64
}

// ComputeDistribution summarizes the Final scores of candidates using
// gonum's stat package.
func ComputeDistribution(candidates []*site.Candidate) DistributionStats {
	if len(candidates) == 0 {
		return DistributionStats{}
	}
	values := make([]float64, len(candidates))
	for i, c := range candidates {
		values[i] = c.Scores.Final
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	mean := stat.Mean(values, nil)
	std := 0.0
	if len(values) > 1 {
		std = stat.StdDev(values, nil)
	}
	median := stat.Quantile(0.5, stat.Empirical, sorted, nil)

	return DistributionStats{
		Mean:   mean,
		Median: median,
		StdDev: std,
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
	}
}
