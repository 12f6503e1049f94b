package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitegen/domain/site"
	"sitegen/internal/constraint"
	"sitegen/internal/feature"
	"sitegen/internal/grid"
	"sitegen/internal/guardrail"
	"sitegen/internal/operations"
	"sitegen/internal/portfolio"
	"sitegen/internal/scoring"
)

func berlinCountry() site.CountryConfig {
	boundary := site.Polygon{Rings: [][]site.LatLng{{
		{Lat: 52.4, Lng: 13.2},
		{Lat: 52.4, Lng: 13.6},
		{Lat: 52.6, Lng: 13.6},
		{Lat: 52.6, Lng: 13.2},
	}}}
	return site.CountryConfig{
		CountryCode: "DE",
		Boundary:    boundary,
		Regions: []site.AdministrativeRegion{
			{ID: "berlin-mitte", Name: "Mitte", Boundary: boundary, Population: 1000000},
		},
		MaxRegionShare: 0.5,
	}
}

func newGenerator() *LocationGenerator {
	constraints := constraint.New()
	return NewLocationGenerator(
		grid.New(),
		scoring.New(),
		constraints,
		portfolio.New(constraints),
		guardrail.New(),
		operations.New(operations.Config{}),
	)
}

func validRequest() Request {
	return Request{
		Country:      berlinCountry(),
		Weights:      site.DefaultWeights().Normalized(),
		TargetK:      3,
		MinSpacingKm: 1.0,
	}
}

func TestValidateAcceptsWellFormedRequest(t *testing.T) {
	assert.NoError(t, validRequest().Validate())
}

func TestValidateRejectsBadWeightSum(t *testing.T) {
	req := validRequest()
	req.Weights = site.Weights{Population: 0.5, Gap: 0.5, Anchor: 0.5, Performance: 0.5, Saturation: 0.5}
	assert.Error(t, req.Validate())
}

func TestValidateRejectsUnknownMode(t *testing.T) {
	req := validRequest()
	req.Mode = "Retreat"
	assert.Error(t, req.Validate())
}

func TestValidateRejectsOutOfRangeStoreCoordinates(t *testing.T) {
	req := validRequest()
	req.Stores = []site.ExistingStore{{ID: "s1", Point: site.LatLng{Lat: 95, Lng: 13.4}}}
	assert.Error(t, req.Validate())
}

func TestValidateRejectsZeroTargetK(t *testing.T) {
	req := validRequest()
	req.TargetK = 0
	assert.Error(t, req.Validate())
}

func TestGenerateEmptyBoundaryYieldsEmptyResultWithoutError(t *testing.T) {
	g := newGenerator()
	result, err := g.Generate(context.Background(), Request{Country: site.CountryConfig{}, Seed: 3})
	require.NoError(t, err)
	assert.Empty(t, result.Sites)
	assert.Zero(t, result.Portfolio.SelectedCount)
	assert.Equal(t, int64(3), result.Reproducibility.Seed)
}

func TestGenerateProducesRankedSitesAndPortfolio(t *testing.T) {
	g := newGenerator()
	req := Request{
		Country:      berlinCountry(),
		Weights:      site.DefaultWeights(),
		TargetK:      3,
		MinSpacingKm: 1.0,
		Seed:         42,
		DataVersions: map[string]string{"population": "v1"},
		Resolution:   7,
		Population: []feature.PopulationCell{
			{Point: site.LatLng{Lat: 52.52, Lng: 13.40}, Population: 20000},
			{Point: site.LatLng{Lat: 52.50, Lng: 13.38}, Population: 15000},
		},
		Stores: []site.ExistingStore{
			{ID: "s1", Name: "Existing Store", Point: site.LatLng{Lat: 52.55, Lng: 13.45}},
		},
	}

	result, err := g.Generate(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.NotEmpty(t, result.Sites)
	assert.NotEmpty(t, result.RunID.String())
	assert.Equal(t, int64(42), result.Reproducibility.Seed)
	assert.Equal(t, "v1", result.Reproducibility.DataVersions["population"])
	assert.NotEmpty(t, result.Reproducibility.ScenarioHash)
	assert.GreaterOrEqual(t, result.Portfolio.SelectedCount, 1)
	assert.LessOrEqual(t, result.Portfolio.SelectedCount, req.TargetK)

	for i := 1; i < len(result.Sites); i++ {
		assert.GreaterOrEqual(t, result.Sites[i-1].Scores.Final, result.Sites[i].Scores.Final)
	}
}

func TestGenerateSelectsAcrossRegionsUnderRealisticShare(t *testing.T) {
	boundary := site.Polygon{Rings: [][]site.LatLng{{
		{Lat: 52.4, Lng: 13.2}, {Lat: 52.4, Lng: 13.6}, {Lat: 52.6, Lng: 13.6}, {Lat: 52.6, Lng: 13.2},
	}}}
	west := site.Polygon{Rings: [][]site.LatLng{{
		{Lat: 52.4, Lng: 13.2}, {Lat: 52.4, Lng: 13.4}, {Lat: 52.6, Lng: 13.4}, {Lat: 52.6, Lng: 13.2},
	}}}
	east := site.Polygon{Rings: [][]site.LatLng{{
		{Lat: 52.4, Lng: 13.4}, {Lat: 52.4, Lng: 13.6}, {Lat: 52.6, Lng: 13.6}, {Lat: 52.6, Lng: 13.4},
	}}}
	country := site.CountryConfig{
		CountryCode: "DE",
		Boundary:    boundary,
		Regions: []site.AdministrativeRegion{
			{ID: "west", Name: "West", Boundary: west, Population: 800000},
			{ID: "east", Name: "East", Boundary: east, Population: 700000},
		},
		MaxRegionShare: 0.4,
	}

	g := newGenerator()
	req := Request{
		Country:      country,
		Weights:      site.DefaultWeights(),
		TargetK:      4,
		MinSpacingKm: 1.0,
		Seed:         11,
		Resolution:   7,
		Population: []feature.PopulationCell{
			{Point: site.LatLng{Lat: 52.52, Lng: 13.30}, Population: 25000},
			{Point: site.LatLng{Lat: 52.48, Lng: 13.50}, Population: 18000},
		},
	}

	result, err := g.Generate(context.Background(), req)
	require.NoError(t, err)
	require.GreaterOrEqual(t, result.Portfolio.SelectedCount, 1)

	// floor(4 * 0.4) = 1 per region.
	for region, n := range result.Portfolio.RegionDistribution {
		assert.LessOrEqual(t, n, 1, region)
	}
}

func TestGenerateIsDeterministicForSameSeed(t *testing.T) {
	req := Request{
		Country:      berlinCountry(),
		Weights:      site.DefaultWeights(),
		TargetK:      3,
		MinSpacingKm: 1.0,
		Seed:         7,
		Resolution:   7,
		Population: []feature.PopulationCell{
			{Point: site.LatLng{Lat: 52.52, Lng: 13.40}, Population: 20000},
		},
	}

	first, err := newGenerator().Generate(context.Background(), req)
	require.NoError(t, err)
	second, err := newGenerator().Generate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.Reproducibility.ScenarioHash, second.Reproducibility.ScenarioHash)
	require.Len(t, second.Sites, len(first.Sites))
	for i := range first.Sites {
		assert.Equal(t, first.Sites[i].HexIndex, second.Sites[i].HexIndex)
	}
}

func TestGenerateAppliesGuardrailClampToOutOfRangePolicy(t *testing.T) {
	g := newGenerator()
	req := Request{
		Country:      berlinCountry(),
		Weights:      site.Weights{Population: 0.95, Gap: 0.01, Anchor: 0.01, Performance: 0.01, Saturation: 0.02},
		TargetK:      1000,
		MinSpacingKm: 1.0,
		Resolution:   7,
	}

	result, err := g.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.NotEmpty(t, result.GuardrailViolations)
	assert.InDelta(t, 1.0, result.Diagnostics.WeightsUsed.Sum(), 1e-9)
}
