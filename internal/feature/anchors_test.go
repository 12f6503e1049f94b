package feature

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitegen/domain/site"
)

// Four MALL_TENANT anchors, three of which sit within the type's merge
// radius of one another, must cluster to raw=4, deduplicated=2.
func TestComputeAnchorsDedupMatchesScoringContractExample(t *testing.T) {
	anchors := []site.AnchorPoint{
		{ID: "a1", Type: site.AnchorMallTenant, Point: site.LatLng{Lat: 52.5, Lng: 13.4}},
		{ID: "a2", Type: site.AnchorMallTenant, Point: site.LatLng{Lat: 52.5001, Lng: 13.4001}},
		{ID: "a3", Type: site.AnchorMallTenant, Point: site.LatLng{Lat: 52.5002, Lng: 13.4002}},
		{ID: "a4", Type: site.AnchorMallTenant, Point: site.LatLng{Lat: 52.6, Lng: 13.5}},
	}
	svc := New(nil, nil, nil, anchors, nil)

	breakdown := svc.computeAnchors(site.LatLng{Lat: 52.55, Lng: 13.45}, 50, false)

	assert.Equal(t, 4, breakdown.Raw)
	assert.Equal(t, 2, breakdown.Deduplicated)
}

func TestComputeAnchorsFiltersByRadius(t *testing.T) {
	anchors := []site.AnchorPoint{
		{ID: "near", Type: site.AnchorGrocer, Point: site.LatLng{Lat: 52.501, Lng: 13.401}},
		{ID: "far", Type: site.AnchorGrocer, Point: site.LatLng{Lat: 10, Lng: 10}},
	}
	svc := New(nil, nil, nil, anchors, nil)

	breakdown := svc.computeAnchors(site.LatLng{Lat: 52.5, Lng: 13.4}, 1.0, false)
	assert.Equal(t, 1, breakdown.Raw)
	assert.Equal(t, 1, breakdown.Deduplicated)
}

func TestComputeAnchorsRefinedAppliesTypeMultiplierAndDecay(t *testing.T) {
	anchors := []site.AnchorPoint{
		{ID: "a1", Type: site.AnchorStationShops, Point: site.LatLng{Lat: 52.5, Lng: 13.4}},
	}
	center := site.LatLng{Lat: 52.5, Lng: 13.4}
	svc := New(nil, nil, nil, anchors, nil)

	plain := svc.computeAnchors(center, 5, false)
	refined := svc.computeAnchors(center, 5, true)

	require.Equal(t, 1, plain.Deduplicated)
	require.Equal(t, 1, refined.Deduplicated)
	// At distance ~0, decay term is ~1 and the station-shops multiplier
	// (1.3) dominates, so the refined score exceeds the unrefined one.
	assert.Greater(t, refined.DiminishingScore, plain.DiminishingScore)
}

func TestComputeAnchorsEmptyYieldsZeroScore(t *testing.T) {
	svc := New(nil, nil, nil, nil, nil)
	breakdown := svc.computeAnchors(site.LatLng{Lat: 0, Lng: 0}, 5, false)
	assert.Equal(t, 0, breakdown.Raw)
	assert.Equal(t, 0, breakdown.Deduplicated)
	assert.Equal(t, 0.0, breakdown.DiminishingScore)
}

func TestComputeAnchorsCapsDiminishingSeriesAtTwentyFive(t *testing.T) {
	anchors := make([]site.AnchorPoint, 0, 40)
	for i := 0; i < 40; i++ {
		anchors = append(anchors, site.AnchorPoint{
			ID:   string(rune('a' + i)),
			Type: site.AnchorRetail,
			// Spread points far enough apart (> merge radius) that none
			// merge, so Deduplicated == Raw == 40.
			Point: site.LatLng{Lat: 52.5 + float64(i)*0.01, Lng: 13.4},
		})
	}
	svc := New(nil, nil, nil, anchors, nil)
	breakdown := svc.computeAnchors(site.LatLng{Lat: 52.5, Lng: 13.4}, 1000, false)

	require.Equal(t, 40, breakdown.Raw)
	require.Equal(t, 40, breakdown.Deduplicated)

	var capped float64
	for i := 0; i < maxDiminishingAnchors; i++ {
		capped += 1.0 / math.Sqrt(float64(i+1))
	}
	assert.InDelta(t, capped, breakdown.DiminishingScore, 1e-9)
}

func TestSingleLinkageClustersMergesChain(t *testing.T) {
	points := []site.AnchorPoint{
		{ID: "a", Point: site.LatLng{Lat: 52.5000, Lng: 13.4000}},
		{ID: "b", Point: site.LatLng{Lat: 52.5001, Lng: 13.4001}},
		{ID: "c", Point: site.LatLng{Lat: 52.5002, Lng: 13.4002}},
	}
	clusters := singleLinkageClusters(points, 120)
	require.Len(t, clusters, 1)
	assert.Len(t, clusters[0], 3)
}

func TestSingleLinkageClustersEmptyInput(t *testing.T) {
	assert.Nil(t, singleLinkageClusters(nil, 100))
}

func TestShouldMergeClustersTrueWithinRadius(t *testing.T) {
	a := []site.AnchorPoint{{Point: site.LatLng{Lat: 52.5, Lng: 13.4}}}
	b := []site.AnchorPoint{{Point: site.LatLng{Lat: 52.5001, Lng: 13.4001}}}
	assert.True(t, shouldMergeClusters(a, b, 120))
}

func TestShouldMergeClustersFalseBeyondRadius(t *testing.T) {
	a := []site.AnchorPoint{{Point: site.LatLng{Lat: 52.5, Lng: 13.4}}}
	b := []site.AnchorPoint{{Point: site.LatLng{Lat: 10, Lng: 10}}}
	assert.False(t, shouldMergeClusters(a, b, 120))
}

func TestClusterRepresentativeSingleMember(t *testing.T) {
	p := site.LatLng{Lat: 52.5, Lng: 13.4}
	rep := clusterRepresentative([]site.AnchorPoint{{Point: p}})
	assert.Equal(t, p, rep)
}

func TestClusterRepresentativeChoosesMemberClosestToCentroid(t *testing.T) {
	cluster := []site.AnchorPoint{
		{Point: site.LatLng{Lat: 52.500, Lng: 13.400}},
		{Point: site.LatLng{Lat: 52.502, Lng: 13.400}},
		{Point: site.LatLng{Lat: 52.501, Lng: 13.400}}, // sits at the centroid
	}
	rep := clusterRepresentative(cluster)
	assert.Equal(t, site.LatLng{Lat: 52.501, Lng: 13.400}, rep)
}
