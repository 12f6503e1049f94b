package site

import "math"

const earthRadiusKm = 6371.0088

// HaversineKm returns the great-circle distance between two points in
// kilometers.
func HaversineKm(a, b LatLng) float64 {
	lat1, lat2 := a.Lat*math.Pi/180, b.Lat*math.Pi/180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKm * c
}

// HaversineM is HaversineKm in meters, the unit minimum-spacing
// constraints are expressed in.
func HaversineM(a, b LatLng) float64 {
	return HaversineKm(a, b) * 1000
}

// Centroid returns the arithmetic mean of a point set. Used for
// anchor-cluster representative selection and portfolio geographic stats;
// it is deliberately not a spherical centroid since clusters here span at
// most a few hundred meters.
func Centroid(points []LatLng) LatLng {
	if len(points) == 0 {
		return LatLng{}
	}
	var sumLat, sumLng float64
	for _, p := range points {
		sumLat += p.Lat
		sumLng += p.Lng
	}
	n := float64(len(points))
	return LatLng{Lat: sumLat / n, Lng: sumLng / n}
}

// PointInPolygon runs a standard ray-casting test against the outer ring
// and subtracts any holes. This is the precise point-in-region test;
// BoundingBox.Contains is the fallback when the polygon is malformed.
func PointInPolygon(p LatLng, poly Polygon) bool {
	if poly.Empty() {
		return false
	}
	if !rayCast(p, poly.Rings[0]) {
		return false
	}
	for _, hole := range poly.Rings[1:] {
		if rayCast(p, hole) {
			return false
		}
	}
	return true
}

func rayCast(p LatLng, ring []LatLng) bool {
	if len(ring) < 3 {
		return false
	}
	inside := false
	n := len(ring)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		pi, pj := ring[i], ring[j]
		intersects := (pi.Lng > p.Lng) != (pj.Lng > p.Lng) &&
			p.Lat < (pj.Lat-pi.Lat)*(p.Lng-pi.Lng)/(pj.Lng-pi.Lng)+pi.Lat
		if intersects {
			inside = !inside
		}
	}
	return inside
}

// BoundingBox is the axis-aligned envelope of a ring, used both for the
// point-in-region fallback and for GridService window partitioning.
type BoundingBox struct {
	MinLat, MaxLat, MinLng, MaxLng float64
}

// Bounds computes the bounding box of a polygon's outer ring. An empty
// polygon yields a zero-value box.
func Bounds(poly Polygon) BoundingBox {
	if poly.Empty() {
		return BoundingBox{}
	}
	ring := poly.Rings[0]
	bb := BoundingBox{MinLat: ring[0].Lat, MaxLat: ring[0].Lat, MinLng: ring[0].Lng, MaxLng: ring[0].Lng}
	for _, p := range ring[1:] {
		bb.MinLat = math.Min(bb.MinLat, p.Lat)
		bb.MaxLat = math.Max(bb.MaxLat, p.Lat)
		bb.MinLng = math.Min(bb.MinLng, p.Lng)
		bb.MaxLng = math.Max(bb.MaxLng, p.Lng)
	}
	return bb
}

// Contains is the bounding-box point-in-region fallback.
func (bb BoundingBox) Contains(p LatLng) bool {
	return p.Lat >= bb.MinLat && p.Lat <= bb.MaxLat && p.Lng >= bb.MinLng && p.Lng <= bb.MaxLng
}

// PointInRegion is the constraint-layer entry point: precise
// point-in-polygon, falling back to the bounding box only when the
// boundary ring is too degenerate to ray-cast.
func PointInRegion(p LatLng, region AdministrativeRegion) bool {
	if len(region.Boundary.Rings) == 0 || len(region.Boundary.Rings[0]) == 0 {
		return false
	}
	if len(region.Boundary.Rings[0]) < 3 {
		return Bounds(region.Boundary).Contains(p)
	}
	return PointInPolygon(p, region.Boundary)
}
