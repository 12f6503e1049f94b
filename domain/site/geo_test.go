package site

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversineKmZeroForSamePoint(t *testing.T) {
	p := LatLng{Lat: 52.5, Lng: 13.4}
	assert.InDelta(t, 0, HaversineKm(p, p), 1e-9)
}

func TestHaversineKmKnownDistance(t *testing.T) {
	// Berlin to Paris, roughly 878 km great-circle.
	berlin := LatLng{Lat: 52.5200, Lng: 13.4050}
	paris := LatLng{Lat: 48.8566, Lng: 2.3522}
	d := HaversineKm(berlin, paris)
	assert.InDelta(t, 878, d, 15)
}

func TestHaversineMIsThousandTimesHaversineKm(t *testing.T) {
	a := LatLng{Lat: 52.5, Lng: 13.4}
	b := LatLng{Lat: 52.6, Lng: 13.5}
	assert.InDelta(t, HaversineKm(a, b)*1000, HaversineM(a, b), 1e-6)
}

func TestCentroidOfEmptySet(t *testing.T) {
	assert.Equal(t, LatLng{}, Centroid(nil))
}

func TestCentroidAveragesPoints(t *testing.T) {
	points := []LatLng{{Lat: 0, Lng: 0}, {Lat: 2, Lng: 4}}
	c := Centroid(points)
	assert.InDelta(t, 1, c.Lat, 1e-9)
	assert.InDelta(t, 2, c.Lng, 1e-9)
}

func squareBoundary() Polygon {
	return Polygon{Rings: [][]LatLng{{
		{Lat: 0, Lng: 0}, {Lat: 0, Lng: 10}, {Lat: 10, Lng: 10}, {Lat: 10, Lng: 0},
	}}}
}

func TestPointInPolygonInsideAndOutside(t *testing.T) {
	poly := squareBoundary()
	assert.True(t, PointInPolygon(LatLng{Lat: 5, Lng: 5}, poly))
	assert.False(t, PointInPolygon(LatLng{Lat: 20, Lng: 20}, poly))
}

func TestPointInPolygonRespectsHoles(t *testing.T) {
	poly := squareBoundary()
	poly.Rings = append(poly.Rings, []LatLng{
		{Lat: 4, Lng: 4}, {Lat: 4, Lng: 6}, {Lat: 6, Lng: 6}, {Lat: 6, Lng: 4},
	})
	assert.False(t, PointInPolygon(LatLng{Lat: 5, Lng: 5}, poly))
	assert.True(t, PointInPolygon(LatLng{Lat: 1, Lng: 1}, poly))
}

func TestPointInPolygonEmptyIsFalse(t *testing.T) {
	assert.False(t, PointInPolygon(LatLng{Lat: 1, Lng: 1}, Polygon{}))
}

func TestBoundsAndContains(t *testing.T) {
	bb := Bounds(squareBoundary())
	assert.Equal(t, BoundingBox{MinLat: 0, MaxLat: 10, MinLng: 0, MaxLng: 10}, bb)
	assert.True(t, bb.Contains(LatLng{Lat: 5, Lng: 5}))
	assert.False(t, bb.Contains(LatLng{Lat: 20, Lng: 5}))
}

func TestPointInRegionFallsBackToBoundingBoxOnDegenerateRing(t *testing.T) {
	region := AdministrativeRegion{
		ID: "r1",
		Boundary: Polygon{Rings: [][]LatLng{
			{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 10}}, // only two points: degenerate
		}},
	}
	assert.True(t, PointInRegion(LatLng{Lat: 0, Lng: 5}, region))
}

func TestPointInRegionEmptyBoundaryIsFalse(t *testing.T) {
	region := AdministrativeRegion{ID: "r1"}
	assert.False(t, PointInRegion(LatLng{Lat: 0, Lng: 0}, region))
}

func TestPolygonEmpty(t *testing.T) {
	assert.True(t, Polygon{}.Empty())
	assert.True(t, Polygon{Rings: [][]LatLng{{{Lat: 0, Lng: 0}}}}.Empty())
	assert.False(t, squareBoundary().Empty())
}

func TestHaversineKmHandlesNaN(t *testing.T) {
	d := HaversineKm(LatLng{Lat: math.NaN(), Lng: 0}, LatLng{Lat: 0, Lng: 0})
	assert.True(t, math.IsNaN(d))
}
