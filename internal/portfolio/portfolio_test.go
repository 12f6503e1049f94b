package portfolio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitegen/domain/core"
	"sitegen/domain/site"
	"sitegen/internal/constraint"
)

func scoredCandidate(id, region string, final float64, lat, lng float64) *site.Candidate {
	return &site.Candidate{
		ID:       core.CandidateID(id),
		RegionID: region,
		Point:    site.LatLng{Lat: lat, Lng: lng},
		Scores:   site.SubScores{Final: final},
		Quality:  site.DataQuality{Completeness: 1.0},
	}
}

func TestBuildSelectsTopKByFinalWithinConstraints(t *testing.T) {
	candidates := []*site.Candidate{
		scoredCandidate("a", "r1", 0.9, 0, 0),
		scoredCandidate("b", "r1", 0.8, 10, 10),
		scoredCandidate("c", "r1", 0.7, 20, 20),
	}
	svc := New(constraint.New())
	cfg := constraint.Config{MinSpacingM: 100, MinCompleteness: 0.5, Country: site.CountryConfig{MaxRegionShare: 1.0}}

	result := svc.Build(candidates, nil, cfg, 2)
	require.Len(t, result.Selected, 2)
	assert.Equal(t, core.CandidateID("a"), result.Selected[0].ID)
	assert.Equal(t, core.CandidateID("b"), result.Selected[1].ID)
	require.Len(t, result.Rejected, 1)
	assert.Equal(t, site.ReasonCapacity, result.Rejected[0].Constraint.Violations[0].Reason)
}

func TestBuildSelectsNonEmptyPortfolioUnderRealisticRegionShare(t *testing.T) {
	candidates := []*site.Candidate{
		scoredCandidate("a", "r1", 0.9, 0, 0),
		scoredCandidate("b", "r1", 0.85, 10, 10),
		scoredCandidate("c", "r2", 0.8, 20, 20),
		scoredCandidate("d", "r2", 0.75, 30, 30),
		scoredCandidate("e", "r3", 0.7, 40, 40),
	}
	svc := New(constraint.New())
	cfg := constraint.Config{MinSpacingM: 100, MinCompleteness: 0.5, Country: site.CountryConfig{MaxRegionShare: 0.4}}

	result := svc.Build(candidates, nil, cfg, 5)
	require.NotEmpty(t, result.Selected)
	assert.Len(t, result.Selected, 5)

	// floor(5 * 0.4) = 2 per region.
	counts := make(map[string]int)
	for _, c := range result.Selected {
		counts[c.RegionID]++
	}
	for region, n := range counts {
		assert.LessOrEqual(t, n, 2, region)
	}
}

func TestBuildRejectsCandidateViolatingSpacing(t *testing.T) {
	candidates := []*site.Candidate{
		scoredCandidate("a", "r1", 0.9, 52.5, 13.4),
		scoredCandidate("b", "r1", 0.8, 52.5001, 13.4001),
	}
	svc := New(constraint.New())
	cfg := constraint.Config{MinSpacingM: 500, MinCompleteness: 0.5, Country: site.CountryConfig{MaxRegionShare: 1.0}}

	result := svc.Build(candidates, nil, cfg, 2)
	assert.Len(t, result.Selected, 1)
	assert.Len(t, result.Rejected, 1)
}

func TestOptimizeSwapsInHigherScoringRejectedCandidate(t *testing.T) {
	weakSelected := scoredCandidate("weak", "r1", 0.5, 0, 0)
	strongRejected := scoredCandidate("strong", "r2", 0.9, 50, 50)
	strongRejected.Status = site.StatusRejected
	strongRejected.Constraint = site.ConstraintStatus{Violations: []site.ConstraintViolation{{Reason: site.ReasonCapacity}}}

	result := Result{Selected: []*site.Candidate{weakSelected}, Rejected: []*site.Candidate{strongRejected}}
	svc := New(constraint.New())
	cfg := constraint.Config{MinSpacingM: 100, MinCompleteness: 0.5, Country: site.CountryConfig{MaxRegionShare: 1.0}}

	optimized := svc.Optimize(result, nil, cfg)
	require.Len(t, optimized.Selected, 1)
	assert.Equal(t, core.CandidateID("strong"), optimized.Selected[0].ID)
	require.Len(t, optimized.Rejected, 1)
	assert.Equal(t, core.CandidateID("weak"), optimized.Rejected[0].ID)
}

func TestOptimizeNoSwapWhenRejectedScoresLower(t *testing.T) {
	selected := scoredCandidate("a", "r1", 0.9, 0, 0)
	rejected := scoredCandidate("b", "r1", 0.1, 50, 50)

	result := Result{Selected: []*site.Candidate{selected}, Rejected: []*site.Candidate{rejected}}
	svc := New(constraint.New())
	cfg := constraint.Config{MinSpacingM: 100, MinCompleteness: 0.5, Country: site.CountryConfig{MaxRegionShare: 1.0}}

	optimized := svc.Optimize(result, nil, cfg)
	assert.Equal(t, core.CandidateID("a"), optimized.Selected[0].ID)
	assert.Len(t, optimized.Rejected, 1)
}

func TestComputeMetricsEmptySelection(t *testing.T) {
	assert.Equal(t, Metrics{}, ComputeMetrics(nil))
}

func TestComputeMetricsAveragesAndBounds(t *testing.T) {
	selected := []*site.Candidate{
		scoredCandidate("a", "r1", 0.8, 10, 20),
		scoredCandidate("b", "r1", 0.4, 30, 40),
	}
	selected[0].Scores.Population = 0.6
	selected[1].Scores.Population = 0.2

	m := ComputeMetrics(selected)
	assert.InDelta(t, 0.6, m.MeanScore, 1e-9)
	assert.InDelta(t, 0.4, m.MeanSubScores.Population, 1e-9)
	assert.Equal(t, [2]float64{10, 30}, m.LatRange)
	assert.Equal(t, [2]float64{20, 40}, m.LngRange)
}

func TestValidateFlagsUndersizedPortfolio(t *testing.T) {
	selected := []*site.Candidate{scoredCandidate("a", "r1", 0.5, 0, 0)}
	issues := Validate(selected, 10, site.CountryConfig{})

	found := false
	for _, i := range issues {
		if i.Code == "UNDERSIZED_PORTFOLIO" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidateFlagsMissingMetroCoverage(t *testing.T) {
	country := site.CountryConfig{MajorMetropolitanAreas: []string{"Capital"}}
	issues := Validate(nil, 0, country)

	found := false
	for _, i := range issues {
		if i.Code == "MISSING_METRO_COVERAGE" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidateNoIssuesWhenHealthy(t *testing.T) {
	selected := []*site.Candidate{
		scoredCandidate("a", "r1", 0.5, 0, 0),
		scoredCandidate("b", "r1", 0.5, 1, 1),
	}
	issues := Validate(selected, 2, site.CountryConfig{})
	assert.Empty(t, issues)
}
