package constraint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitegen/domain/core"
	"sitegen/domain/site"
)

func candidateAt(id string, lat, lng float64, region string) *site.Candidate {
	return &site.Candidate{ID: core.CandidateID(id), Point: site.LatLng{Lat: lat, Lng: lng}, RegionID: region}
}

func TestCheckSpacingViolatesAgainstExistingStore(t *testing.T) {
	candidate := candidateAt("c1", 52.5, 13.4, "")
	stores := []site.ExistingStore{{ID: "s1", Point: site.LatLng{Lat: 52.5001, Lng: 13.4001}}}

	v := CheckSpacing(candidate, stores, nil, 500)
	require.NotNil(t, v)
	assert.Equal(t, site.ReasonSpacingViolation, v.Reason)
}

func TestCheckSpacingIgnoresSelfInSelected(t *testing.T) {
	candidate := candidateAt("c1", 52.5, 13.4, "")
	v := CheckSpacing(candidate, nil, []*site.Candidate{candidate}, 500)
	assert.Nil(t, v)
}

func TestCheckSpacingPassesWhenFarEnough(t *testing.T) {
	candidate := candidateAt("c1", 52.5, 13.4, "")
	stores := []site.ExistingStore{{ID: "s1", Point: site.LatLng{Lat: 10, Lng: 10}}}
	selected := []*site.Candidate{candidateAt("c2", 20, 20, "")}

	assert.Nil(t, CheckSpacing(candidate, stores, selected, 500))
}

func TestCheckRegionalShareViolatesOverCap(t *testing.T) {
	candidate := candidateAt("c1", 0, 0, "north")
	selected := []*site.Candidate{
		candidateAt("c2", 0, 0, "north"),
		candidateAt("c3", 0, 0, "south"),
	}
	v := CheckRegionalShare(candidate, selected, 0.5, 2)
	require.NotNil(t, v)
	assert.Equal(t, site.ReasonRegionalShareExceeded, v.Reason)
}

func TestCheckRegionalSharePassesUnderCap(t *testing.T) {
	candidate := candidateAt("c1", 0, 0, "north")
	selected := []*site.Candidate{
		candidateAt("c2", 0, 0, "south"),
		candidateAt("c3", 0, 0, "east"),
	}
	assert.Nil(t, CheckRegionalShare(candidate, selected, 0.5, 6))
}

func TestCheckRegionalShareAllowsFirstCandidateOfRun(t *testing.T) {
	candidate := candidateAt("c1", 0, 0, "north")
	assert.Nil(t, CheckRegionalShare(candidate, nil, 0.4, 10))
}

func TestCheckRegionalShareCapKeysOffTargetK(t *testing.T) {
	// With 10 targeted and share 0.4 the per-region cap is 4: a fifth
	// candidate in the same region must be rejected.
	candidate := candidateAt("c1", 0, 0, "a")
	var selected []*site.Candidate
	for i := 0; i < 4; i++ {
		selected = append(selected, candidateAt(string(rune('w'+i)), 0, 0, "a"))
	}
	selected = append(selected,
		candidateAt("b1", 0, 0, "b"), candidateAt("b2", 0, 0, "b"), candidateAt("b3", 0, 0, "b"),
		candidateAt("c2", 0, 0, "c"), candidateAt("c3", 0, 0, "c"))

	v := CheckRegionalShare(candidate, selected, 0.4, 10)
	require.NotNil(t, v)
	assert.Equal(t, site.ReasonRegionalShareExceeded, v.Reason)
}

func TestCheckRegionalShareFallsBackToRunningCountWithoutTargetK(t *testing.T) {
	candidate := candidateAt("c1", 0, 0, "north")
	selected := []*site.Candidate{
		candidateAt("c2", 0, 0, "north"),
		candidateAt("c3", 0, 0, "south"),
		candidateAt("c4", 0, 0, "south"),
	}
	v := CheckRegionalShare(candidate, selected, 0.25, 0)
	require.NotNil(t, v)
}

func TestCheckSaturationViolatesAtCeiling(t *testing.T) {
	c := candidateAt("c1", 0, 0, "")
	c.Features.CompetitorDensity = 0.2 // density term maxes at 0.5
	c.Features.NearestBrandKm = 0.5    // proximity term adds 0.3
	v := CheckSaturation(c, 0)
	require.NotNil(t, v)
	assert.Equal(t, site.ReasonSaturationPenalty, v.Reason)
}

func TestCheckSaturationPassesBelowCeiling(t *testing.T) {
	c := candidateAt("c1", 0, 0, "")
	c.Features.CompetitorDensity = 0.05
	c.Features.NearestBrandKm = 5
	assert.Nil(t, CheckSaturation(c, 0))
}

func TestCheckDataQualityViolatesBelowMinimum(t *testing.T) {
	c := candidateAt("c1", 0, 0, "")
	c.Quality.Completeness = 0.2
	v := CheckDataQuality(c, 0.5)
	require.NotNil(t, v)
	assert.Equal(t, site.ReasonLowCompleteness, v.Reason)
}

func TestCheckDataQualityUsesDefaultWhenZero(t *testing.T) {
	c := candidateAt("c1", 0, 0, "")
	c.Quality.Completeness = 0.3
	v := CheckDataQuality(c, 0)
	require.NotNil(t, v)
	assert.Equal(t, site.ReasonLowCompleteness, v.Reason)
}

func TestCheckDataQualityPassesAtOrAboveMinimum(t *testing.T) {
	c := candidateAt("c1", 0, 0, "")
	c.Quality.Completeness = 0.8
	assert.Nil(t, CheckDataQuality(c, 0.5))
}

func TestViolationsAggregatesAllFailedChecks(t *testing.T) {
	candidate := candidateAt("c1", 52.5, 13.4, "north")
	candidate.Quality.Completeness = 0.1
	stores := []site.ExistingStore{{ID: "s1", Point: site.LatLng{Lat: 52.5001, Lng: 13.4001}}}
	selected := []*site.Candidate{candidateAt("c2", 0, 0, "north")}

	svc := New()
	cfg := Config{MinSpacingM: 500, MinCompleteness: 0.5, Country: site.CountryConfig{MaxRegionShare: 0.1}}

	violations := svc.Violations(candidate, stores, selected, cfg)
	require.Len(t, violations, 3)
}

func TestViolationsEmptyWhenAllChecksPass(t *testing.T) {
	candidate := candidateAt("c1", 52.5, 13.4, "north")
	candidate.Quality.Completeness = 0.9
	svc := New()
	cfg := Config{MinSpacingM: 100, MinCompleteness: 0.5, Country: site.CountryConfig{MaxRegionShare: 1.0}}

	assert.Empty(t, svc.Violations(candidate, nil, nil, cfg))
}

func TestRegionalShareWeightedFlagsOverrepresentation(t *testing.T) {
	country := site.CountryConfig{Regions: []site.AdministrativeRegion{
		{ID: "north", Population: 100},
		{ID: "south", Population: 900},
	}}
	selected := []*site.Candidate{
		candidateAt("c1", 0, 0, "north"),
		candidateAt("c2", 0, 0, "north"),
		candidateAt("c3", 0, 0, "north"),
	}
	results := RegionalShareWeighted(selected, country)
	require.Len(t, results, 2)

	var north RegionalShareWeightedResult
	for _, r := range results {
		if r.RegionID == "north" {
			north = r
		}
	}
	assert.True(t, north.Overrepresented)
	assert.InDelta(t, 1.0, north.ActualShare, 1e-9)
}

func TestRegionalShareWeightedEmptySelection(t *testing.T) {
	country := site.CountryConfig{Regions: []site.AdministrativeRegion{{ID: "north", Population: 100}}}
	results := RegionalShareWeighted(nil, country)
	require.Len(t, results, 1)
	assert.Equal(t, 0.0, results[0].ActualShare)
	assert.False(t, results[0].Overrepresented)
}

func TestMetropolitanCoverageMatchesByRegionName(t *testing.T) {
	country := site.CountryConfig{
		Regions:                []site.AdministrativeRegion{{ID: "r1", Name: "Greater Berlin"}},
		MajorMetropolitanAreas: []string{"Berlin"},
	}
	selected := []*site.Candidate{candidateAt("c1", 52.5, 13.4, "r1")}

	covered := MetropolitanCoverage(selected, country)
	assert.True(t, covered["Berlin"])
}

func TestMetropolitanCoverageFalseWhenNoMatch(t *testing.T) {
	country := site.CountryConfig{
		Regions:                []site.AdministrativeRegion{{ID: "r1", Name: "Rural Area"}},
		MajorMetropolitanAreas: []string{"Berlin"},
	}
	selected := []*site.Candidate{candidateAt("c1", 0, 0, "r1")}

	covered := MetropolitanCoverage(selected, country)
	assert.False(t, covered["Berlin"])
}

func TestResolveRegionFindsContainingRegion(t *testing.T) {
	boundary := site.Polygon{Rings: [][]site.LatLng{{
		{Lat: 52.4, Lng: 13.2}, {Lat: 52.4, Lng: 13.6}, {Lat: 52.6, Lng: 13.6}, {Lat: 52.6, Lng: 13.2},
	}}}
	country := site.CountryConfig{Regions: []site.AdministrativeRegion{{ID: "berlin", Boundary: boundary}}}

	region, ok := ResolveRegion(site.LatLng{Lat: 52.5, Lng: 13.4}, country)
	require.True(t, ok)
	assert.Equal(t, "berlin", region.ID)
}

func TestResolveRegionNoMatch(t *testing.T) {
	country := site.CountryConfig{Regions: []site.AdministrativeRegion{{ID: "berlin", Boundary: site.Polygon{}}}}
	_, ok := ResolveRegion(site.LatLng{Lat: 52.5, Lng: 13.4}, country)
	assert.False(t, ok)
}
