// Package fairness implements RegionalFairnessService: population-weighted
// per-region distribution of the selected portfolio and rebalancing
// recommendations.
package fairness

import (
	"math"
	"sort"

	"sitegen/domain/site"
)

const DefaultTheta = 0.2

// Status is the per-region fairness classification.
type Status string

const (
	StatusUnder    Status = "under"
	StatusBalanced Status = "balanced"
	StatusOver     Status = "over"
)

// RegionFairness is one region's population/site share comparison.
type RegionFairness struct {
	RegionID        string
	PopulationShare float64
	SiteShare       float64
	FairnessRatio   float64
	Status          Status
}

// Report is the whole-portfolio fairness summary.
type Report struct {
	Regions         []RegionFairness
	OverallFairness float64
}

// Service implements the J component.
type Service struct{}

func New() *Service { return &Service{} }

// Analyze computes per-region fairness at threshold theta (default 0.2)
// and the clamped-to-[0,1] overall fairness score.
func (s *Service) Analyze(selected []*site.Candidate, country site.CountryConfig, theta float64) Report {
	if theta <= 0 {
		theta = DefaultTheta
	}
	if len(country.Regions) == 0 {
		return Report{}
	}

	var totalPop int64
	for _, r := range country.Regions {
		totalPop += r.Population
	}
	counts := make(map[string]int)
	for _, c := range selected {
		counts[c.RegionID]++
	}
	total := len(selected)

	var regions []RegionFairness
	var deviationSum float64

	for _, r := range country.Regions {
		popShare := 0.0
		if totalPop > 0 {
			popShare = float64(r.Population) / float64(totalPop)
		}
		siteShare := 0.0
		if total > 0 {
			siteShare = float64(counts[r.ID]) / float64(total)
		}
		ratio := 0.0
		if popShare > 0 {
			ratio = siteShare / popShare
		}

		status := StatusBalanced
		switch {
		case ratio < 1-theta:
			status = StatusUnder
		case ratio > 1+theta:
			status = StatusOver
		}

		deviationSum += math.Abs(siteShare - popShare)

		regions = append(regions, RegionFairness{
			RegionID:        r.ID,
			PopulationShare: popShare,
			SiteShare:       siteShare,
			FairnessRatio:   ratio,
			Status:          status,
		})
	}

	overall := 1 - deviationSum/(0.5*float64(len(country.Regions)))
	if overall < 0 {
		overall = 0
	}
	if overall > 1 {
		overall = 1
	}

	return Report{Regions: regions, OverallFairness: overall}
}

// RebalanceRecommendation is one suggested swap to improve fairness.
type RebalanceRecommendation struct {
	RegionID    string
	CandidateID string
	Reason      string
}

// GetFairnessAdjustedRecommendations fills under-represented regions
// first (by each region's best-scoring unselected candidate), then tops up
// remaining slots by score across the whole pool.
func (s *Service) GetFairnessAdjustedRecommendations(report Report, pool []*site.Candidate, selected []*site.Candidate, slotsAvailable int) []RebalanceRecommendation {
	if slotsAvailable <= 0 {
		return nil
	}

	selectedSet := make(map[string]bool, len(selected))
	for _, c := range selected {
		selectedSet[c.ID.String()] = true
	}

	byRegion := make(map[string][]*site.Candidate)
	for _, c := range pool {
		if selectedSet[c.ID.String()] {
			continue
		}
		byRegion[c.RegionID] = append(byRegion[c.RegionID], c)
	}
	for region := range byRegion {
		sort.Slice(byRegion[region], func(i, j int) bool { return byRegion[region][i].Scores.Final > byRegion[region][j].Scores.Final })
	}

	var recs []RebalanceRecommendation
	underRegions := make([]RegionFairness, 0)
	for _, r := range report.Regions {
		if r.Status == StatusUnder {
			underRegions = append(underRegions, r)
		}
	}
	sort.Slice(underRegions, func(i, j int) bool { return underRegions[i].FairnessRatio < underRegions[j].FairnessRatio })

	used := make(map[string]bool)
	for _, r := range underRegions {
		if len(recs) >= slotsAvailable {
			break
		}
		candidates := byRegion[r.RegionID]
		if len(candidates) == 0 {
			continue
		}
		best := candidates[0]
		if used[best.ID.String()] {
			continue
		}
		used[best.ID.String()] = true
		recs = append(recs, RebalanceRecommendation{
			RegionID:    r.RegionID,
			CandidateID: best.ID.String(),
			Reason:      "fills under-represented region toward its population-weighted share",
		})
	}

	if len(recs) < slotsAvailable {
		var remaining []*site.Candidate
		for _, c := range pool {
			if selectedSet[c.ID.String()] || used[c.ID.String()] {
				continue
			}
			remaining = append(remaining, c)
		}
		sort.Slice(remaining, func(i, j int) bool { return remaining[i].Scores.Final > remaining[j].Scores.Final })
		for _, c := range remaining {
			if len(recs) >= slotsAvailable {
				break
			}
			recs = append(recs, RebalanceRecommendation{
				RegionID:    c.RegionID,
				CandidateID: c.ID.String(),
				Reason:      "top score among remaining unselected candidates",
			})
		}
	}

	return recs
}
