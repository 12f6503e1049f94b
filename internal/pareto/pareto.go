// Package pareto implements ParetoService: the K-sweep that rebuilds a
// portfolio at each swept size, computes (roi, risk, coverage), prunes
// dominated points, and finds the frontier's knee. The risk term uses a
// gonum-based coefficient of variation over site coordinates as its
// geographic-concentration component.
package pareto

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"sitegen/domain/core"
	"sitegen/domain/site"
	"sitegen/internal/constraint"
	"sitegen/internal/portfolio"
)

const denseSweepMax = 20

// Service implements the A component.
type Service struct {
	portfolios *portfolio.Service
}

func New(portfolios *portfolio.Service) *Service {
	return &Service{portfolios: portfolios}
}

// sweepKs returns the K values to evaluate: dense 5..20, then a step of
// max(5, (max-20)/10) up to max(len(candidates), 300).
func sweepKs(numCandidates int) []int {
	max := numCandidates
	if max < 300 {
		max = 300
	}

	var ks []int
	for k := 5; k <= denseSweepMax && k <= max; k++ {
		ks = append(ks, k)
	}
	if max <= denseSweepMax {
		return ks
	}

	step := (max - denseSweepMax) / 10
	if step < 5 {
		step = 5
	}
	for k := denseSweepMax + step; k <= max; k += step {
		ks = append(ks, k)
	}
	return ks
}

// Sweep builds a portfolio at every swept K, computes its (roi, risk,
// coverage) triple, prunes dominated points, and marks the knee. Only
// the surviving frontier is returned, sorted by ROI descending; the
// antichain invariant holds for every returned point.
func (s *Service) Sweep(candidates []*site.Candidate, stores []site.ExistingStore, cfg constraint.Config, country site.CountryConfig) []site.ParetoPoint {
	if len(candidates) == 0 {
		return nil
	}

	var totalCountryPop int64
	for _, r := range country.Regions {
		totalCountryPop += r.Population
	}

	ks := sweepKs(len(candidates))
	points := make([]site.ParetoPoint, 0, len(ks))

	for _, k := range ks {
		result := s.portfolios.Build(candidates, stores, cfg, k)
		if len(result.Selected) == 0 {
			continue
		}
		roi := computeROI(result.Selected, k)
		risk := computeRisk(result.Selected)
		coverage := computeCoverage(result.Selected, country, totalCountryPop)

		ids := make([]core.CandidateID, len(result.Selected))
		for i, c := range result.Selected {
			ids[i] = c.ID
		}

		points = append(points, site.ParetoPoint{
			K:         k,
			ROI:       roi,
			Risk:      risk,
			Coverage:  coverage,
			Portfolio: ids,
		})
	}

	prune(points)
	markKnee(points)

	frontier := make([]site.ParetoPoint, 0, len(points))
	for _, p := range points {
		if !p.IsDominated {
			frontier = append(frontier, p)
		}
	}
	sort.Slice(frontier, func(i, j int) bool { return frontier[i].ROI > frontier[j].ROI })
	return frontier
}

// computeROI is a deliberately uncalibrated linear proxy; swapping it
// out does not affect the frontier algorithm.
func computeROI(selected []*site.Candidate, k int) float64 {
	var sum float64
	for _, c := range selected {
		sum += c.Scores.Population*500000 + c.Scores.Performance*200000 + c.Scores.Gap*300000
	}
	return sum/(300000*float64(k)) - 1
}

func computeRisk(selected []*site.Candidate) float64 {
	n := len(selected)
	var meanCompleteness, meanSaturation float64
	lats := make([]float64, n)
	lngs := make([]float64, n)
	for i, c := range selected {
		meanCompleteness += c.Quality.Completeness
		meanSaturation += c.Scores.SaturationPenalty
		lats[i] = c.Point.Lat
		lngs[i] = c.Point.Lng
	}
	meanCompleteness /= float64(n)
	meanSaturation /= float64(n)

	geoDispersion := (coefficientOfVariation(lats) + coefficientOfVariation(lngs)) / 2

	return ((1 - meanCompleteness) + geoDispersion + meanSaturation) / 3
}

func coefficientOfVariation(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := stat.Mean(values, nil)
	if mean == 0 {
		return 0
	}
	std := stat.StdDev(values, nil)
	return math.Abs(std / mean)
}

func computeCoverage(selected []*site.Candidate, country site.CountryConfig, totalCountryPop int64) float64 {
	var selectedPop float64
	regionsWithSite := make(map[string]bool)
	for _, c := range selected {
		selectedPop += float64(c.Features.Population)
		regionsWithSite[c.RegionID] = true
	}

	popTerm := 1.0
	if totalCountryPop > 0 {
		popTerm = math.Min(1, selectedPop/(0.1*float64(totalCountryPop)))
	}

	regionTerm := 0.0
	if len(country.Regions) > 0 {
		regionTerm = float64(len(regionsWithSite)) / float64(len(country.Regions))
	}

	return 0.7*popTerm + 0.3*regionTerm
}

// prune marks every point dominated by another as IsDominated, in place.
// p is dominated by q iff q.ROI>=p.ROI, q.Coverage>=p.Coverage,
// q.Risk<=p.Risk, with at least one strict inequality.
func prune(points []site.ParetoPoint) {
	for i := range points {
		for j := range points {
			if i == j {
				continue
			}
			p, q := points[i], points[j]
			if q.ROI >= p.ROI && q.Coverage >= p.Coverage && q.Risk <= p.Risk &&
				(q.ROI > p.ROI || q.Coverage > p.Coverage || q.Risk < p.Risk) {
				points[i].IsDominated = true
				break
			}
		}
	}
}

// markKnee finds the interior surviving point whose change in slope
// (deltaROI/deltaRisk) between its two neighbor segments is maximal. For
// two or fewer surviving points, the first one is marked.
func markKnee(points []site.ParetoPoint) {
	survivors := make([]int, 0, len(points))
	for i, p := range points {
		if !p.IsDominated {
			survivors = append(survivors, i)
		}
	}
	if len(survivors) == 0 {
		return
	}
	sort.Slice(survivors, func(a, b int) bool { return points[survivors[a]].K < points[survivors[b]].K })

	if len(survivors) <= 2 {
		points[survivors[0]].IsKnee = true
		return
	}

	bestIdx := survivors[1]
	bestDelta := math.Inf(-1)
	for i := 1; i < len(survivors)-1; i++ {
		prev, cur, next := points[survivors[i-1]], points[survivors[i]], points[survivors[i+1]]
		slopeBefore := slope(prev, cur)
		slopeAfter := slope(cur, next)
		delta := math.Abs(slopeAfter - slopeBefore)
		if delta > bestDelta {
			bestDelta = delta
			bestIdx = survivors[i]
		}
	}
	points[bestIdx].IsKnee = true
}

func slope(a, b site.ParetoPoint) float64 {
	dRisk := b.Risk - a.Risk
	if dRisk == 0 {
		return 0
	}
	return (b.ROI - a.ROI) / dRisk
}
