// Package shortlist implements ShortlistService: the national + regional
// top-slice selection that narrows the full candidate grid down to the
// small set RefinementService will recompute with wider radii.
package shortlist

import (
	"math"
	"sort"

	"sitegen/domain/core"
	"sitegen/domain/site"
)

// Result is the shortlist plus the quality signals callers should check
// before spending refinement work on it.
type Result struct {
	Candidates    []*site.Candidate
	RegionsCount  int
	MeanFinal     float64
}

// MinSize is max(5*targetK, 50).
func MinSize(targetK int) int {
	return max(5*targetK, 50)
}

// Build selects at least MinSize(targetK) candidates: a national top slice
// by gap score, a per-region top slice allocated proportionally to
// population, then a final top-up by Final score if still short. The
// result is capped at 2*MinSize(targetK).
func Build(candidates []*site.Candidate, country site.CountryConfig, targetK int) Result {
	minShortlist := MinSize(targetK)
	n := len(candidates)
	if n == 0 {
		return Result{}
	}

	nationalCount := max(ceil(float64(n)*0.015), ceil(0.7*float64(minShortlist)))
	national := topByGap(candidates, nationalCount)

	regional := regionalTop(candidates, country, minShortlist)

	selected := make(map[core.CandidateID]*site.Candidate)
	order := make([]*site.Candidate, 0, len(national)+len(regional))
	for _, c := range national {
		if _, ok := selected[keyOf(c)]; !ok {
			selected[keyOf(c)] = c
			order = append(order, c)
		}
	}
	for _, c := range regional {
		if _, ok := selected[keyOf(c)]; !ok {
			selected[keyOf(c)] = c
			order = append(order, c)
		}
	}

	if len(order) < minShortlist {
		byFinal := append([]*site.Candidate(nil), candidates...)
		sort.Slice(byFinal, func(i, j int) bool { return byFinal[i].Scores.Final > byFinal[j].Scores.Final })
		for _, c := range byFinal {
			if len(order) >= minShortlist {
				break
			}
			if _, ok := selected[keyOf(c)]; !ok {
				selected[keyOf(c)] = c
				order = append(order, c)
			}
		}
	}

	cap := 2 * minShortlist
	if len(order) > cap {
		sort.Slice(order, func(i, j int) bool { return order[i].Scores.Final > order[j].Scores.Final })
		order = order[:cap]
	}

	return Result{
		Candidates:   order,
		RegionsCount: countRegions(order),
		MeanFinal:    meanFinal(order),
	}
}

// Qualifies reports whether a shortlist meets the quality bar: at least
// 3 regions, mean final >= 0.3, size >= minimum.
func (r Result) Qualifies(targetK int) bool {
	return r.RegionsCount >= 3 && r.MeanFinal >= 0.3 && len(r.Candidates) >= MinSize(targetK)
}

func topByGap(candidates []*site.Candidate, n int) []*site.Candidate {
	sorted := append([]*site.Candidate(nil), candidates...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Scores.Gap > sorted[j].Scores.Gap })
	if n > len(sorted) {
		n = len(sorted)
	}
	return sorted[:n]
}

// regionalTop allocates shortlist slots per region proportional to
// population (at least 1 each) and takes each region's top candidates by
// gap score.
func regionalTop(candidates []*site.Candidate, country site.CountryConfig, minShortlist int) []*site.Candidate {
	if len(country.Regions) == 0 {
		return nil
	}

	byRegion := make(map[string][]*site.Candidate)
	for _, c := range candidates {
		byRegion[c.RegionID] = append(byRegion[c.RegionID], c)
	}

	var totalPop int64
	for _, r := range country.Regions {
		totalPop += r.Population
	}

	var out []*site.Candidate
	for _, r := range country.Regions {
		pool := byRegion[r.ID]
		if len(pool) == 0 {
			continue
		}
		share := 1.0 / float64(len(country.Regions))
		if totalPop > 0 {
			share = float64(r.Population) / float64(totalPop)
		}
		allocation := max(1, ceil(share*float64(minShortlist)))

		sort.Slice(pool, func(i, j int) bool { return pool[i].Scores.Gap > pool[j].Scores.Gap })
		if allocation > len(pool) {
			allocation = len(pool)
		}
		out = append(out, pool[:allocation]...)
	}
	return out
}

func countRegions(candidates []*site.Candidate) int {
	seen := make(map[string]bool)
	for _, c := range candidates {
		seen[c.RegionID] = true
	}
	return len(seen)
}

func meanFinal(candidates []*site.Candidate) float64 {
	if len(candidates) == 0 {
		return 0
	}
	var sum float64
	for _, c := range candidates {
		sum += c.Scores.Final
	}
	return sum / float64(len(candidates))
}

func ceil(v float64) int {
	return int(math.Ceil(v))
}

func keyOf(c *site.Candidate) core.CandidateID {
	return c.ID
}
