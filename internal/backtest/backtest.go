// Package backtest implements BacktestService: mask-and-predict
// validation against the existing store network, reporting hit rate,
// median distance, coverage uplift, and precision/recall. Each iteration
// masks a deterministic slice of the store network, rebuilds a portfolio
// from what remains, and measures how well the predictions recover the
// masked stores.
package backtest

import (
	"math"
	"math/rand"

	mstats "github.com/montanaflynn/stats"

	"sitegen/domain/site"
	"sitegen/internal/constraint"
	"sitegen/internal/portfolio"
)

const (
	DefaultIterations      = 1
	DefaultMaskPercentage  = 0.10
	DefaultDistanceThresholdKm = 2.5

	hitRateThreshold   = 0.6
	medianDistThreshold = 2.5
	upliftThreshold     = 0.1
)

// Metrics is one iteration's measured outcome.
type Metrics struct {
	HitRate        float64
	MedianDistance float64
	CoverageUplift float64
	Precision      float64
	Recall         float64
}

// Result aggregates every iteration plus the pass/fail validation.
type Result struct {
	Iterations      []Metrics
	Mean            Metrics
	Passed          bool
	Recommendations []string
}

// Service implements the K component.
type Service struct {
	portfolios *portfolio.Service
}

func New(portfolios *portfolio.Service) *Service {
	return &Service{portfolios: portfolios}
}

// Run executes iterations backtest passes. Each pass deterministically
// shuffles stores from seed, masks maskPercentage of them, rebuilds a
// portfolio from the remaining stores, and measures against the masked
// set.
func (s *Service) Run(candidates []*site.Candidate, stores []site.ExistingStore, cfg constraint.Config, targetK, iterations int, maskPercentage, distanceThresholdKm float64, country site.CountryConfig, seed int64) Result {
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	if maskPercentage <= 0 {
		maskPercentage = DefaultMaskPercentage
	}
	if distanceThresholdKm <= 0 {
		distanceThresholdKm = DefaultDistanceThresholdKm
	}

	var all []Metrics
	for iter := 0; iter < iterations; iter++ {
		r := rand.New(rand.NewSource(seed + int64(iter)))
		remaining, masked := maskStores(stores, maskPercentage, r)

		built := s.portfolios.Build(candidates, remaining, cfg, targetK)
		metrics := measure(built.Selected, masked, remaining, country, distanceThresholdKm)
		all = append(all, metrics)
	}

	mean := meanMetrics(all)
	passed := mean.HitRate >= hitRateThreshold && mean.MedianDistance <= medianDistThreshold && mean.CoverageUplift >= upliftThreshold

	var recs []string
	if mean.HitRate < hitRateThreshold {
		recs = append(recs, "hit rate below target: widen candidate coverage or relax spacing constraints")
	}
	if mean.MedianDistance > medianDistThreshold {
		recs = append(recs, "median distance above target: increase grid resolution near masked stores")
	}
	if mean.CoverageUplift < upliftThreshold {
		recs = append(recs, "coverage uplift below target: raise targetK or revisit weighting toward population")
	}

	return Result{Iterations: all, Mean: mean, Passed: passed, Recommendations: recs}
}

func maskStores(stores []site.ExistingStore, pct float64, r *rand.Rand) (remaining, masked []site.ExistingStore) {
	shuffled := append([]site.ExistingStore(nil), stores...)
	r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	n := int(float64(len(shuffled)) * pct)
	if n > len(shuffled) {
		n = len(shuffled)
	}
	masked = shuffled[:n]
	remaining = shuffled[n:]
	return remaining, masked
}

func measure(selected []*site.Candidate, masked, remaining []site.ExistingStore, country site.CountryConfig, thresholdKm float64) Metrics {
	if len(masked) == 0 || len(selected) == 0 {
		return Metrics{}
	}

	var hits int
	var distances []float64
	for _, m := range masked {
		best := math.Inf(1)
		for _, c := range selected {
			d := site.HaversineKm(m.Point, c.Point)
			if d < best {
				best = d
			}
		}
		distances = append(distances, best)
		if best <= thresholdKm {
			hits++
		}
	}

	hitRate := float64(hits) / float64(len(masked))
	median, _ := mstats.Median(distances)

	baselineCoverage := coverage(remaining, nil, country)
	withPredictions := coverage(remaining, selected, country)
	uplift := 0.0
	if baselineCoverage > 0 {
		uplift = (withPredictions - baselineCoverage) / baselineCoverage
	}

	// Recall: masked stores recovered by a nearby prediction. Precision:
	// predictions that land near some masked store.
	recall := hitRate
	var precise int
	for _, c := range selected {
		best := math.Inf(1)
		for _, m := range masked {
			if d := site.HaversineKm(m.Point, c.Point); d < best {
				best = d
			}
		}
		if best <= thresholdKm {
			precise++
		}
	}
	precision := float64(precise) / float64(len(selected))

	return Metrics{
		HitRate:        hitRate,
		MedianDistance: median,
		CoverageUplift: uplift,
		Precision:      precision,
		Recall:         recall,
	}
}

// coverage is a simplified regional-coverage proxy: the fraction of
// regions that hold at least one store or selected candidate.
func coverage(stores []site.ExistingStore, candidates []*site.Candidate, country site.CountryConfig) float64 {
	if len(country.Regions) == 0 {
		return 0
	}
	covered := make(map[string]bool)
	for _, st := range stores {
		if r, ok := constraint.ResolveRegion(st.Point, country); ok {
			covered[r.ID] = true
		}
	}
	for _, c := range candidates {
		covered[c.RegionID] = true
	}
	return float64(len(covered)) / float64(len(country.Regions))
}

func meanMetrics(all []Metrics) Metrics {
	if len(all) == 0 {
		return Metrics{}
	}
	var m Metrics
	for _, a := range all {
		m.HitRate += a.HitRate
		m.MedianDistance += a.MedianDistance
		m.CoverageUplift += a.CoverageUplift
		m.Precision += a.Precision
		m.Recall += a.Recall
	}
	n := float64(len(all))
	m.HitRate /= n
	m.MedianDistance /= n
	m.CoverageUplift /= n
	m.Precision /= n
	m.Recall /= n
	return m
}
