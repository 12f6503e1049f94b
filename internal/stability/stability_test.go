package stability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitegen/adapters/rng"
	"sitegen/domain/core"
	"sitegen/domain/site"
	"sitegen/internal/constraint"
	"sitegen/internal/portfolio"
	"sitegen/internal/scoring"
)

func TestNewDefaultsIterations(t *testing.T) {
	svc := New(scoring.New(), portfolio.New(constraint.New()), rng.New(), 0)
	assert.Equal(t, DefaultIterations, svc.iterations)
}

func TestAnalyzeEmptyCandidatesReturnsZeroValue(t *testing.T) {
	svc := New(scoring.New(), portfolio.New(constraint.New()), rng.New(), 5)
	result, err := svc.Analyze(context.Background(), nil, site.DefaultWeights(), nil, constraint.Config{}, 5, "run1", 1)
	require.NoError(t, err)
	assert.Equal(t, PortfolioResult{}, result)
}

func stableCandidate(id string, population int, lat, lng float64) *site.Candidate {
	return &site.Candidate{
		ID:       core.CandidateID(id),
		RegionID: "r1",
		Point:    site.LatLng{Lat: lat, Lng: lng},
		Features: site.Features{Population: population, NearestBrandKm: 10, PerformanceProxy: 0.5},
		Quality:  site.DataQuality{Completeness: 1.0},
	}
}

func TestAnalyzeProducesOneResultPerCandidate(t *testing.T) {
	candidates := []*site.Candidate{
		stableCandidate("a", 200000, 0, 0),
		stableCandidate("b", 1000, 5, 5),
		stableCandidate("c", 100000, 10, 10),
	}
	cfg := constraint.Config{MinSpacingM: 1, Country: site.CountryConfig{MaxRegionShare: 1.0}}
	svc := New(scoring.New(), portfolio.New(constraint.New()), rng.New(), 10)

	result, err := svc.Analyze(context.Background(), candidates, site.DefaultWeights(), nil, cfg, 2, "run1", 1)
	require.NoError(t, err)
	assert.Len(t, result.Sites, 3)
	assert.GreaterOrEqual(t, result.OverallStability, 0.0)
	assert.LessOrEqual(t, result.OverallStability, 1.0)
}

func TestAnalyzeIsDeterministicForSameSeed(t *testing.T) {
	candidates := func() []*site.Candidate {
		return []*site.Candidate{
			stableCandidate("a", 200000, 0, 0),
			stableCandidate("b", 1000, 5, 5),
		}
	}
	cfg := constraint.Config{MinSpacingM: 1, Country: site.CountryConfig{MaxRegionShare: 1.0}}
	svc := New(scoring.New(), portfolio.New(constraint.New()), rng.New(), 10)

	first, err := svc.Analyze(context.Background(), candidates(), site.DefaultWeights(), nil, cfg, 1, "run1", 42)
	require.NoError(t, err)
	second, err := svc.Analyze(context.Background(), candidates(), site.DefaultWeights(), nil, cfg, 1, "run1", 42)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestJitterWeightsStaysNormalizedAndNonNegative(t *testing.T) {
	r, err := rng.New().SeededStream(context.Background(), "test", 1)
	require.NoError(t, err)

	jittered := jitterWeights(site.DefaultWeights(), r)
	assert.InDelta(t, 1.0, jittered.Sum(), 1e-9)
	assert.GreaterOrEqual(t, jittered.Population, 0.0)
	assert.GreaterOrEqual(t, jittered.Gap, 0.0)
	assert.GreaterOrEqual(t, jittered.Anchor, 0.0)
	assert.GreaterOrEqual(t, jittered.Performance, 0.0)
	assert.GreaterOrEqual(t, jittered.Saturation, 0.0)
}

func TestTopTwoContributorsOrdersBySumDescending(t *testing.T) {
	sums := map[string]float64{"population": 0.5, "gap": 0.9, "anchor": 0.1}
	top := topTwoContributors(sums)
	assert.Equal(t, [2]string{"gap", "population"}, top)
}

func TestTopTwoContributorsHandlesFewerThanTwoEntries(t *testing.T) {
	top := topTwoContributors(map[string]float64{"population": 0.5})
	assert.Equal(t, [2]string{"population", ""}, top)
}
