// Package portfolio implements PortfolioService: greedy constraint-aware
// selection to K, an optional swap-based local optimization pass, and the
// portfolio-level metrics and validation. Every rejection carries its
// structured constraint reasons so diagnostics can break them down.
package portfolio

import (
	"sort"

	"sitegen/domain/site"
	"sitegen/internal/constraint"
)

// Result is the outcome of a greedy build: the selected and rejected
// candidates plus the reason each rejection carries.
type Result struct {
	Selected []*site.Candidate
	Rejected []*site.Candidate
}

// Service implements the P component.
type Service struct {
	constraints *constraint.Service
}

func New(constraints *constraint.Service) *Service {
	return &Service{constraints: constraints}
}

// Build runs the greedy selection: sort by Final descending, admit a
// candidate iff it carries zero constraint violations against the stores
// and already-selected set, stop at targetK and mark every remaining
// candidate rejected for capacity.
func (s *Service) Build(candidates []*site.Candidate, stores []site.ExistingStore, cfg constraint.Config, targetK int) Result {
	// The regional cap keys off the portfolio's intended size, which
	// only the builder knows; pin it so every admission check agrees.
	cfg.TargetK = targetK

	sorted := append([]*site.Candidate(nil), candidates...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Scores.Final != sorted[j].Scores.Final {
			return sorted[i].Scores.Final > sorted[j].Scores.Final
		}
		return sorted[i].ID.String() < sorted[j].ID.String()
	})

	var selected, rejected []*site.Candidate

	for _, c := range sorted {
		if len(selected) >= targetK {
			c.Status = site.StatusRejected
			c.Constraint = site.ConstraintStatus{Violations: []site.ConstraintViolation{{
				Reason:      site.ReasonCapacity,
				Detail:      "target portfolio size already reached",
				Remediation: "raise targetK or replace a lower-scoring selection",
			}}}
			rejected = append(rejected, c)
			continue
		}

		violations := s.constraints.Violations(c, stores, selected, cfg)
		c.Constraint = site.ConstraintStatus{Violations: violations}
		if len(violations) == 0 {
			c.Status = site.StatusSelected
			selected = append(selected, c)
		} else {
			c.Status = site.StatusRejected
			rejected = append(rejected, c)
		}
	}

	return Result{Selected: selected, Rejected: rejected}
}

// Optimize runs the swap-based local optimization pass: for each rejected
// candidate in descending Final order, try to swap it in for the
// lowest-scoring selected candidate whose removal lets it pass every
// constraint. Swaps with a positive score delta are kept; the pass repeats
// until no swap improves the portfolio.
func (s *Service) Optimize(result Result, stores []site.ExistingStore, cfg constraint.Config) Result {
	selected := append([]*site.Candidate(nil), result.Selected...)
	rejected := append([]*site.Candidate(nil), result.Rejected...)

	for {
		improved := false

		sort.Slice(rejected, func(i, j int) bool { return rejected[i].Scores.Final > rejected[j].Scores.Final })
		sort.Slice(selected, func(i, j int) bool { return selected[i].Scores.Final < selected[j].Scores.Final })

		for ri, candidate := range rejected {
			if len(selected) == 0 {
				break
			}

			// Find the lowest-scoring selected candidate whose removal
			// lets this one pass every constraint with a positive delta.
			swapAt := -1
			for si, weakest := range selected {
				if candidate.Scores.Final <= weakest.Scores.Final {
					break
				}
				remaining := append(append([]*site.Candidate(nil), selected[:si]...), selected[si+1:]...)
				if len(s.constraints.Violations(candidate, stores, remaining, cfg)) == 0 {
					swapAt = si
					break
				}
			}
			if swapAt < 0 {
				continue
			}

			weakest := selected[swapAt]
			candidate.Status = site.StatusSelected
			candidate.Constraint = site.ConstraintStatus{}
			weakest.Status = site.StatusRejected
			weakest.Constraint = site.ConstraintStatus{Violations: []site.ConstraintViolation{{
				Reason:      site.ReasonCapacity,
				Detail:      "displaced by a higher-scoring candidate during swap optimization",
				Remediation: "none; the replacement scores strictly higher under current constraints",
			}}}

			selected = append(append(append([]*site.Candidate(nil), selected[:swapAt]...), selected[swapAt+1:]...), candidate)
			rejected = append(append([]*site.Candidate(nil), rejected[:ri]...), rejected[ri+1:]...)
			rejected = append(rejected, weakest)
			improved = true
			break
		}

		if !improved {
			break
		}
	}

	sort.Slice(selected, func(i, j int) bool { return selected[i].Scores.Final > selected[j].Scores.Final })
	return Result{Selected: selected, Rejected: rejected}
}

// Metrics is the portfolio-level summary reported with a built portfolio.
type Metrics struct {
	TotalScore         float64
	MeanScore          float64
	MeanSubScores       site.SubScores
	MeanCompleteness   float64
	EstimatedDataPct   float64
	LatRange           [2]float64
	LngRange           [2]float64
	Centroid           site.LatLng
}

func ComputeMetrics(selected []*site.Candidate) Metrics {
	if len(selected) == 0 {
		return Metrics{}
	}
	var m Metrics
	var completeness float64
	var estimatedCount int
	points := make([]site.LatLng, len(selected))

	m.LatRange = [2]float64{selected[0].Point.Lat, selected[0].Point.Lat}
	m.LngRange = [2]float64{selected[0].Point.Lng, selected[0].Point.Lng}

	for i, c := range selected {
		m.TotalScore += c.Scores.Final
		m.MeanSubScores.Population += c.Scores.Population
		m.MeanSubScores.Gap += c.Scores.Gap
		m.MeanSubScores.Anchor += c.Scores.Anchor
		m.MeanSubScores.Performance += c.Scores.Performance
		m.MeanSubScores.SaturationPenalty += c.Scores.SaturationPenalty
		completeness += c.Quality.Completeness

		if c.Quality.Estimated.Population || c.Quality.Estimated.Anchors || c.Quality.Estimated.TravelTime {
			estimatedCount++
		}

		points[i] = c.Point
		if c.Point.Lat < m.LatRange[0] {
			m.LatRange[0] = c.Point.Lat
		}
		if c.Point.Lat > m.LatRange[1] {
			m.LatRange[1] = c.Point.Lat
		}
		if c.Point.Lng < m.LngRange[0] {
			m.LngRange[0] = c.Point.Lng
		}
		if c.Point.Lng > m.LngRange[1] {
			m.LngRange[1] = c.Point.Lng
		}
	}

	n := float64(len(selected))
	m.MeanScore = m.TotalScore / n
	m.MeanSubScores.Population /= n
	m.MeanSubScores.Gap /= n
	m.MeanSubScores.Anchor /= n
	m.MeanSubScores.Performance /= n
	m.MeanSubScores.SaturationPenalty /= n
	m.MeanCompleteness = completeness / n
	m.EstimatedDataPct = float64(estimatedCount) / n
	m.Centroid = site.Centroid(points)

	return m
}

// ValidationIssue is a warning or issue surfaced by ValidatePortfolio.
type ValidationIssue struct {
	Code    string
	Message string
}

// Validate checks the acceptance bar: selected count at least
// 0.8*targetK, metro coverage (warning if missing), regional fairness
// violations surfaced.
func Validate(selected []*site.Candidate, targetK int, country site.CountryConfig) []ValidationIssue {
	var issues []ValidationIssue

	if float64(len(selected)) < 0.8*float64(targetK) {
		issues = append(issues, ValidationIssue{
			Code:    "UNDERSIZED_PORTFOLIO",
			Message: "selected count is below 80% of targetK",
		})
	}

	coverage := constraint.MetropolitanCoverage(selected, country)
	for _, metro := range country.MajorMetropolitanAreas {
		if !coverage[metro] {
			issues = append(issues, ValidationIssue{
				Code:    "MISSING_METRO_COVERAGE",
				Message: "no selected candidate covers metropolitan area " + metro,
			})
		}
	}

	for _, r := range constraint.RegionalShareWeighted(selected, country) {
		if r.Overrepresented {
			issues = append(issues, ValidationIssue{
				Code:    "REGIONAL_FAIRNESS_VIOLATION",
				Message: "region " + r.RegionID + " is more than 2x its population-weighted expected share",
			})
		}
	}

	return issues
}
