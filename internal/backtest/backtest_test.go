package backtest

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitegen/domain/core"
	"sitegen/domain/site"
	"sitegen/internal/constraint"
	"sitegen/internal/portfolio"
)

func storeAt(id string, lat, lng float64) site.ExistingStore {
	return site.ExistingStore{ID: id, Point: site.LatLng{Lat: lat, Lng: lng}}
}

func backtestCandidate(id string, lat, lng float64, region string) *site.Candidate {
	return &site.Candidate{
		ID:       core.CandidateID(id),
		RegionID: region,
		Point:    site.LatLng{Lat: lat, Lng: lng},
		Scores:   site.SubScores{Final: 1},
		Quality:  site.DataQuality{Completeness: 1},
	}
}

func TestMaskStoresSplitsByPercentageDeterministically(t *testing.T) {
	stores := []site.ExistingStore{
		storeAt("a", 0, 0), storeAt("b", 1, 1), storeAt("c", 2, 2), storeAt("d", 3, 3), storeAt("e", 4, 4),
	}
	r1 := rand.New(rand.NewSource(7))
	remaining1, masked1 := maskStores(stores, 0.4, r1)

	r2 := rand.New(rand.NewSource(7))
	remaining2, masked2 := maskStores(stores, 0.4, r2)

	assert.Equal(t, masked1, masked2)
	assert.Equal(t, remaining1, remaining2)
	assert.Len(t, masked1, 2)
	assert.Len(t, remaining1, 3)
}

func TestMeasureEmptyWhenNoMaskedOrNoSelected(t *testing.T) {
	assert.Equal(t, Metrics{}, measure(nil, []site.ExistingStore{storeAt("a", 0, 0)}, nil, site.CountryConfig{}, 2.5))
	assert.Equal(t, Metrics{}, measure([]*site.Candidate{backtestCandidate("a", 0, 0, "r1")}, nil, nil, site.CountryConfig{}, 2.5))
}

func TestMeasureComputesHitRateWithinThreshold(t *testing.T) {
	masked := []site.ExistingStore{storeAt("masked1", 52.5, 13.4)}
	selected := []*site.Candidate{backtestCandidate("c1", 52.5001, 13.4001, "r1")}

	m := measure(selected, masked, nil, site.CountryConfig{}, 2.5)
	assert.Equal(t, 1.0, m.HitRate)
	assert.Equal(t, m.HitRate, m.Precision)
	assert.Equal(t, m.HitRate, m.Recall)
}

func TestMeasureMissWhenBeyondThreshold(t *testing.T) {
	masked := []site.ExistingStore{storeAt("masked1", 10, 10)}
	selected := []*site.Candidate{backtestCandidate("c1", 52.5, 13.4, "r1")}

	m := measure(selected, masked, nil, site.CountryConfig{}, 2.5)
	assert.Equal(t, 0.0, m.HitRate)
}

func TestCoverageZeroWithNoRegions(t *testing.T) {
	assert.Equal(t, 0.0, coverage(nil, nil, site.CountryConfig{}))
}

func TestCoverageCountsDistinctRegions(t *testing.T) {
	country := site.CountryConfig{Regions: []site.AdministrativeRegion{{ID: "r1"}, {ID: "r2"}}}
	boundary := site.Polygon{Rings: [][]site.LatLng{{
		{Lat: 52.4, Lng: 13.2}, {Lat: 52.4, Lng: 13.6}, {Lat: 52.6, Lng: 13.6}, {Lat: 52.6, Lng: 13.2},
	}}}
	country.Regions[0].Boundary = boundary

	stores := []site.ExistingStore{storeAt("a", 52.5, 13.4)}
	candidates := []*site.Candidate{backtestCandidate("c1", 0, 0, "r2")}

	assert.Equal(t, 1.0, coverage(stores, candidates, country))
}

func TestMeanMetricsAveragesAcrossIterations(t *testing.T) {
	mean := meanMetrics([]Metrics{{HitRate: 0.4}, {HitRate: 0.6}})
	assert.InDelta(t, 0.5, mean.HitRate, 1e-9)
}

func TestMeanMetricsEmptyInput(t *testing.T) {
	assert.Equal(t, Metrics{}, meanMetrics(nil))
}

func TestRunDefaultsAppliedWhenZero(t *testing.T) {
	candidates := []*site.Candidate{backtestCandidate("c1", 52.5, 13.4, "r1")}
	stores := []site.ExistingStore{storeAt("s1", 52.5001, 13.4001), storeAt("s2", 10, 10)}
	cfg := constraint.Config{MinSpacingM: 1, Country: site.CountryConfig{MaxRegionShare: 1.0}}

	svc := New(portfolio.New(constraint.New()))
	result := svc.Run(candidates, stores, cfg, 1, 0, 0, 0, site.CountryConfig{}, 1)
	require.Len(t, result.Iterations, DefaultIterations)
}

func TestRunIsDeterministicForSameSeed(t *testing.T) {
	newCandidates := func() []*site.Candidate {
		return []*site.Candidate{
			backtestCandidate("c1", 52.5, 13.4, "r1"),
			backtestCandidate("c2", 10, 10, "r1"),
		}
	}
	stores := []site.ExistingStore{storeAt("s1", 52.5001, 13.4001), storeAt("s2", 10.001, 10.001), storeAt("s3", 60, 60)}
	cfg := constraint.Config{MinSpacingM: 1, Country: site.CountryConfig{MaxRegionShare: 1.0}}
	svc := New(portfolio.New(constraint.New()))

	first := svc.Run(newCandidates(), stores, cfg, 2, 3, 0.3, 2.5, site.CountryConfig{}, 99)
	second := svc.Run(newCandidates(), stores, cfg, 2, 3, 0.3, 2.5, site.CountryConfig{}, 99)
	assert.Equal(t, first, second)
}
