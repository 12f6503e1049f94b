// Package grid implements GridService: mapping a country boundary to
// hexagonal cells via Uber's H3 indexing, windowing those cells for
// parallel refinement, and the neighbor/distance queries the rest of the
// pipeline needs. Cell indices are H3 strings throughout, so neighbor
// and ring queries stay cheap and deterministic.
package grid

import (
	"math"
	"sort"

	h3 "github.com/uber/h3-go/v4"

	"sitegen/domain/site"
)

const (
	MinResolution     = 6
	MaxResolution     = 10
	DefaultResolution = 8

	DefaultWindowSizeKm = 37.5
	DefaultBufferKm     = 7.5
)

// Cell is one hexagonal grid cell with its resolved center point.
type Cell struct {
	Index  string
	Center site.LatLng
}

// Window is a spatial partition of cells used to parallelize refinement.
type Window struct {
	ID    int
	Box   site.BoundingBox
	Cells []Cell
}

// Service implements the G component.
type Service struct{}

// New constructs a GridService. It carries no state: H3 operations are
// pure functions of the cell index.
func New() *Service {
	return &Service{}
}

// CellToLatLng resolves a cell index string to its center point.
func (s *Service) CellToLatLng(index string) (site.LatLng, bool) {
	var c h3.Cell
	if err := c.UnmarshalText([]byte(index)); err != nil || !c.IsValid() {
		return site.LatLng{}, false
	}
	ll, err := c.LatLng()
	if err != nil {
		return site.LatLng{}, false
	}
	return site.LatLng{Lat: ll.Lat, Lng: ll.Lng}, true
}

// LatLngToCell resolves a point to the cell index that contains it at
// resolution.
func (s *Service) LatLngToCell(p site.LatLng, resolution int) (Cell, bool) {
	resolution = clampResolution(resolution)
	c, err := h3.LatLngToCell(h3.NewLatLng(p.Lat, p.Lng), resolution)
	if err != nil || !c.IsValid() {
		return Cell{}, false
	}
	ll, err := c.LatLng()
	if err != nil {
		return Cell{}, false
	}
	return Cell{Index: c.String(), Center: site.LatLng{Lat: ll.Lat, Lng: ll.Lng}}, true
}

// ValidateGrid reports whether every cell's center plausibly lies within
// boundary's bounding box. It is a cheap sanity check, not a guarantee
// PolygonToCells produced an exact tiling; a malformed boundary (or one
// with zero cells) is considered valid by vacuous truth, matching
// GenerateCountryGrid's "no error on malformed input" contract.
func (s *Service) ValidateGrid(cells []Cell, boundary site.Polygon) bool {
	if boundary.Empty() || len(cells) == 0 {
		return true
	}
	bb := site.Bounds(boundary)
	for _, c := range cells {
		if !bb.Contains(c.Center) {
			return false
		}
	}
	return true
}

func clampResolution(res int) int {
	if res < MinResolution {
		return MinResolution
	}
	if res > MaxResolution {
		return MaxResolution
	}
	return res
}

// GenerateCountryGrid maps boundary to hex cells at resolution. A
// malformed or empty polygon yields an empty cell list rather than an
// error.
func (s *Service) GenerateCountryGrid(boundary site.Polygon, resolution int) []Cell {
	if boundary.Empty() {
		return nil
	}
	resolution = clampResolution(resolution)

	outer := toGeoLoop(boundary.Rings[0])
	holes := make([]h3.GeoLoop, 0, len(boundary.Rings)-1)
	for _, ring := range boundary.Rings[1:] {
		if len(ring) >= 3 {
			holes = append(holes, toGeoLoop(ring))
		}
	}
	poly := h3.GeoPolygon{GeoLoop: outer, Holes: holes}

	cells, err := h3.PolygonToCells(poly, resolution)
	if err != nil {
		return nil
	}
	out := make([]Cell, 0, len(cells))
	for _, c := range cells {
		if !c.IsValid() {
			continue
		}
		ll, err := c.LatLng()
		if err != nil {
			continue
		}
		out = append(out, Cell{Index: c.String(), Center: site.LatLng{Lat: ll.Lat, Lng: ll.Lng}})
	}
	return out
}

func toGeoLoop(ring []site.LatLng) h3.GeoLoop {
	loop := make(h3.GeoLoop, 0, len(ring))
	for _, p := range ring {
		loop = append(loop, h3.NewLatLng(p.Lat, p.Lng))
	}
	return loop
}

// ringCountForRadius derives a bounded ring count from the average H3 edge
// length at this resolution, so GetNeighbors never walks more rings than
// the requested radius could plausibly need.
var avgEdgeLengthKm = map[int]float64{
	6: 3.23, 7: 1.22, 8: 0.461, 9: 0.174, 10: 0.0659,
}

func ringCountForRadius(resolution int, radiusKm float64) int {
	edge, ok := avgEdgeLengthKm[resolution]
	if !ok {
		edge = avgEdgeLengthKm[DefaultResolution]
	}
	rings := int(radiusKm/edge) + 2
	if rings < 1 {
		rings = 1
	}
	if rings > 64 {
		rings = 64 // hard backstop against pathological radii
	}
	return rings
}

// GetNeighbors returns every cell within radiusKm of cell, bounded first by
// an H3 ring walk (cheap, resolution-aware) and then filtered by exact
// great-circle distance.
func (s *Service) GetNeighbors(cell Cell, radiusKm float64) []Cell {
	var origin h3.Cell
	if err := origin.UnmarshalText([]byte(cell.Index)); err != nil || !origin.IsValid() {
		return nil
	}
	rings := ringCountForRadius(origin.Resolution(), radiusKm)

	disk, err := origin.GridDisk(rings)
	if err != nil {
		return nil
	}

	out := make([]Cell, 0, len(disk))
	for _, c := range disk {
		if c == origin || !c.IsValid() {
			continue
		}
		ll, err := c.LatLng()
		if err != nil {
			continue
		}
		center := site.LatLng{Lat: ll.Lat, Lng: ll.Lng}
		if site.HaversineKm(cell.Center, center) <= radiusKm {
			out = append(out, Cell{Index: c.String(), Center: center})
		}
	}
	return out
}

// FindCellsWithinRadius filters an arbitrary cell set to those within
// radiusKm of origin, by exact great-circle distance.
func (s *Service) FindCellsWithinRadius(origin site.LatLng, cells []Cell, radiusKm float64) []Cell {
	out := make([]Cell, 0, len(cells))
	for _, c := range cells {
		if site.HaversineKm(origin, c.Center) <= radiusKm {
			out = append(out, c)
		}
	}
	return out
}

// HexDistance returns the H3 grid distance (ring count) between two
// cells, or -1 if they are not in a common, comparable grid.
func (s *Service) HexDistance(a, b Cell) int {
	var ca, cb h3.Cell
	if err := ca.UnmarshalText([]byte(a.Index)); err != nil {
		return -1
	}
	if err := cb.UnmarshalText([]byte(b.Index)); err != nil {
		return -1
	}
	d, err := ca.GridDistance(cb)
	if err != nil {
		return -1
	}
	return int(d)
}

// CreateWindows partitions the bounding box of cells into axis-aligned
// tiles of side windowSizeKm, each extended by bufferKm on every side.
// Overlaps between windows are intentional; windows with no cells are
// dropped.
func (s *Service) CreateWindows(cells []Cell, windowSizeKm, bufferKm float64) []Window {
	if len(cells) == 0 {
		return nil
	}
	if windowSizeKm <= 0 {
		windowSizeKm = DefaultWindowSizeKm
	}
	if bufferKm < 0 {
		bufferKm = DefaultBufferKm
	}

	minLat, maxLat := cells[0].Center.Lat, cells[0].Center.Lat
	minLng, maxLng := cells[0].Center.Lng, cells[0].Center.Lng
	for _, c := range cells[1:] {
		if c.Center.Lat < minLat {
			minLat = c.Center.Lat
		}
		if c.Center.Lat > maxLat {
			maxLat = c.Center.Lat
		}
		if c.Center.Lng < minLng {
			minLng = c.Center.Lng
		}
		if c.Center.Lng > maxLng {
			maxLng = c.Center.Lng
		}
	}

	// Convert the km tile size to degrees using a local approximation:
	// 1 degree latitude ~= 111.32 km everywhere, 1 degree longitude
	// shrinks with cos(latitude).
	const kmPerDegLat = 111.32
	midLat := (minLat + maxLat) / 2
	kmPerDegLng := kmPerDegLat * cosDeg(midLat)
	if kmPerDegLng < 1e-6 {
		kmPerDegLng = 1e-6
	}

	tileDegLat := windowSizeKm / kmPerDegLat
	tileDegLng := windowSizeKm / kmPerDegLng
	bufDegLat := bufferKm / kmPerDegLat
	bufDegLng := bufferKm / kmPerDegLng

	nLatTiles := int((maxLat-minLat)/tileDegLat) + 1
	nLngTiles := int((maxLng-minLng)/tileDegLng) + 1

	type key struct{ i, j int }
	buckets := make(map[key]*Window)

	for _, c := range cells {
		i := int((c.Center.Lat - minLat) / tileDegLat)
		j := int((c.Center.Lng - minLng) / tileDegLng)
		if i >= nLatTiles {
			i = nLatTiles - 1
		}
		if j >= nLngTiles {
			j = nLngTiles - 1
		}

		// A cell can belong to more than one window because extended
		// tiles overlap; check the (possibly several) tiles its own
		// bucket index and adjacent buckets imply.
		for di := -1; di <= 1; di++ {
			for dj := -1; dj <= 1; dj++ {
				ti, tj := i+di, j+dj
				if ti < 0 || ti >= nLatTiles || tj < 0 || tj >= nLngTiles {
					continue
				}
				tileMinLat := minLat + float64(ti)*tileDegLat - bufDegLat
				tileMaxLat := minLat + float64(ti+1)*tileDegLat + bufDegLat
				tileMinLng := minLng + float64(tj)*tileDegLng - bufDegLng
				tileMaxLng := minLng + float64(tj+1)*tileDegLng + bufDegLng

				if c.Center.Lat < tileMinLat || c.Center.Lat > tileMaxLat ||
					c.Center.Lng < tileMinLng || c.Center.Lng > tileMaxLng {
					continue
				}

				k := key{ti, tj}
				w, ok := buckets[k]
				if !ok {
					w = &Window{
						ID: ti*nLngTiles + tj,
						Box: site.BoundingBox{
							MinLat: tileMinLat, MaxLat: tileMaxLat,
							MinLng: tileMinLng, MaxLng: tileMaxLng,
						},
					}
					buckets[k] = w
				}
				w.Cells = append(w.Cells, c)
			}
		}
	}

	windows := make([]Window, 0, len(buckets))
	for _, w := range buckets {
		if len(w.Cells) == 0 {
			continue
		}
		windows = append(windows, *w)
	}
	sort.Slice(windows, func(i, j int) bool { return windows[i].ID < windows[j].ID })
	return windows
}

func cosDeg(deg float64) float64 {
	return math.Cos(deg * math.Pi / 180)
}
