// Package counterfactual implements CounterfactualService: for a target
// site, the minimal per-feature change needed to reach a better rank,
// derived from a local linear inversion of the scoring formulas, ranked
// into a human-readable list of "what would it take" statements.
package counterfactual

import (
	"fmt"
	"math"
	"sort"

	"sitegen/domain/core"
	"sitegen/domain/site"
)

// TargetRank names the rank tier a counterfactual analysis targets.
type TargetRank string

const (
	TargetNextRank TargetRank = "next_rank"
	TargetTop10    TargetRank = "top_10"
	TargetTop5     TargetRank = "top_5"
)

// Likelihood classifies how feasible a threshold is to reach.
type Likelihood string

const (
	LikelihoodHigh   Likelihood = "high"
	LikelihoodMedium Likelihood = "medium"
	LikelihoodLow    Likelihood = "low"
)

// Direction says whether the underlying feature must increase or decrease.
type Direction string

const (
	DirectionIncrease Direction = "increase"
	DirectionDecrease Direction = "decrease"
)

// Threshold is one feature's required level to close a site's score gap.
type Threshold struct {
	Feature     string
	Direction   Direction
	Required    float64
	Impact      string
	Likelihood  Likelihood
	DisplayName string
	Unit        string
}

// Result is the full counterfactual analysis for one candidate.
type Result struct {
	CandidateID      core.CandidateID
	CurrentRank      int
	TargetRank       int
	Thresholds       []Threshold
	EasiestPath      *Threshold
	PrimaryThresholds []Threshold
}

// resolveTargetRank turns a named tier into a concrete rank number.
func resolveTargetRank(currentRank int, target TargetRank) int {
	switch target {
	case TargetTop10:
		return min(currentRank, 10)
	case TargetTop5:
		return min(currentRank, 5)
	default: // next_rank
		if currentRank <= 1 {
			return 1
		}
		return currentRank - 1
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Analyze computes the counterfactual thresholds for candidate within a
// Final-ranked candidate list, given the weights that produced that
// ranking.
func Analyze(ranked []*site.Candidate, candidateID core.CandidateID, target TargetRank, weights site.Weights) (Result, bool) {
	currentRank, idx := -1, -1
	for i, c := range ranked {
		if c.ID == candidateID {
			currentRank = i + 1
			idx = i
			break
		}
	}
	if idx < 0 {
		return Result{}, false
	}

	targetRank := resolveTargetRank(currentRank, target)
	if targetRank < 1 {
		targetRank = 1
	}
	targetScore := ranked[targetRank-1].Scores.Final
	current := ranked[idx]
	scoreGap := targetScore - current.Scores.Final
	if scoreGap < 0 {
		scoreGap = 0
	}

	thresholds := buildThresholds(current, weights, scoreGap)
	sort.SliceStable(thresholds, func(i, j int) bool {
		return likelihoodRank(thresholds[i].Likelihood) < likelihoodRank(thresholds[j].Likelihood)
	})

	var easiest *Threshold
	for i := range thresholds {
		if thresholds[i].Likelihood != LikelihoodLow {
			easiest = &thresholds[i]
			break
		}
	}
	if easiest == nil && len(thresholds) > 0 {
		easiest = &thresholds[0]
	}

	primary := thresholds
	if len(primary) > 2 {
		primary = primary[:2]
	}

	return Result{
		CandidateID:       candidateID,
		CurrentRank:       currentRank,
		TargetRank:        targetRank,
		Thresholds:        thresholds,
		EasiestPath:       easiest,
		PrimaryThresholds: primary,
	}, true
}

func likelihoodRank(l Likelihood) int {
	switch l {
	case LikelihoodHigh:
		return 0
	case LikelihoodMedium:
		return 1
	default:
		return 2
	}
}

func buildThresholds(c *site.Candidate, w site.Weights, scoreGap float64) []Threshold {
	var out []Threshold

	// Population.
	if w.Population > 0 && c.Scores.Population > 0 {
		requiredPopScore := c.Scores.Population + scoreGap/w.Population
		requiredPopScore = math.Min(requiredPopScore, 1)
		requiredPop := float64(c.Features.Population) * (requiredPopScore / c.Scores.Population)
		increasePct := (requiredPop - float64(c.Features.Population)) / math.Max(1, float64(c.Features.Population))
		out = append(out, Threshold{
			Feature:     "population",
			Direction:   DirectionIncrease,
			Required:    requiredPop,
			Impact:      fmt.Sprintf("catchment population would need to reach ~%.0f", requiredPop),
			Likelihood:  populationLikelihood(increasePct),
			DisplayName: "Catchment population",
			Unit:        "people",
		})
	}

	// Nearest brand distance.
	if w.Gap > 0 {
		delta := (scoreGap / w.Gap) / 0.05
		required := c.Features.NearestBrandKm + delta
		out = append(out, Threshold{
			Feature:     "nearestBrandKm",
			Direction:   DirectionIncrease,
			Required:    required,
			Impact:      fmt.Sprintf("nearest existing store would need to be ~%.2f km away", required),
			Likelihood:  distanceLikelihood(delta),
			DisplayName: "Distance to nearest store",
			Unit:        "km",
		})
	}

	// Anchors.
	if w.Anchor > 0 {
		additional := math.Ceil(scoreGap / w.Anchor / 0.1)
		out = append(out, Threshold{
			Feature:     "anchors",
			Direction:   DirectionIncrease,
			Required:    float64(c.Features.Anchors.Deduplicated) + additional,
			Impact:      fmt.Sprintf("roughly %.0f more distinct anchor clusters nearby", additional),
			Likelihood:  anchorLikelihood(additional),
			DisplayName: "Nearby anchors",
			Unit:        "clusters",
		})
	}

	// Competitor density.
	if w.Saturation > 0 && c.Features.CompetitorDensity > 0 {
		reduction := 0.2 * scoreGap / w.Saturation
		required := c.Features.CompetitorDensity - reduction
		if required < 0 {
			required = 0
		}
		out = append(out, Threshold{
			Feature:     "competitorDensity",
			Direction:   DirectionDecrease,
			Required:    required,
			Impact:      fmt.Sprintf("competitor density would need to fall to ~%.3f/km²", required),
			Likelihood:  densityLikelihood(reduction),
			DisplayName: "Competitor density",
			Unit:        "per km²",
		})
	}

	return out
}

func populationLikelihood(increasePct float64) Likelihood {
	switch {
	case increasePct <= 0.1:
		return LikelihoodHigh
	case increasePct <= 0.3:
		return LikelihoodMedium
	default:
		return LikelihoodLow
	}
}

func distanceLikelihood(deltaKm float64) Likelihood {
	switch {
	case deltaKm <= 1:
		return LikelihoodHigh
	case deltaKm <= 5:
		return LikelihoodMedium
	default:
		return LikelihoodLow
	}
}

func anchorLikelihood(additional float64) Likelihood {
	switch {
	case additional <= 1:
		return LikelihoodHigh
	case additional <= 3:
		return LikelihoodMedium
	default:
		return LikelihoodLow
	}
}

func densityLikelihood(reduction float64) Likelihood {
	switch {
	case reduction <= 0.05:
		return LikelihoodHigh
	case reduction <= 0.2:
		return LikelihoodMedium
	default:
		return LikelihoodLow
	}
}
