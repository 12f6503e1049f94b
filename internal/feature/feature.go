// Package feature implements FeatureService: per-candidate population
// catchment, nearest-brand distance, competitor density, anchor clustering,
// and the performance proxy, in both the basic (national sweep) and
// refined (shortlist-only, wider radii) tiers. Every feature is an
// independent numeric computed from the shared inputs and a
// candidate point.
package feature

import (
	"context"
	"math"
	"sort"

	"sitegen/domain/site"
	"sitegen/ports"
)

const (
	basicPopulationRadiusKm  = 2.0
	basicCompetitorRadiusKm  = 2.0
	basicAnchorRadiusKm      = 1.0
	refinedPopulationRadiusKm = 5.0
	refinedCompetitorRadiusKm = 5.0
	refinedAnchorRadiusKm     = 2.0

	maxDiminishingAnchors = 25
)

var mergeRadiusM = map[site.AnchorType]float64{
	site.AnchorMallTenant:   120,
	site.AnchorStationShops: 100,
	site.AnchorGrocer:       60,
	site.AnchorRetail:       60,
}

var refinedTypeMultiplier = map[site.AnchorType]float64{
	site.AnchorMallTenant:   1.2,
	site.AnchorStationShops: 1.3,
	site.AnchorGrocer:       1.0,
	site.AnchorRetail:       0.8,
}

// PopulationCell is one demographic-grid cell.
type PopulationCell struct {
	Point      site.LatLng
	Population int64
}

// Service implements the F component against a fixed set of inputs for one
// run: the population grid, existing stores, competitors, and anchors.
type Service struct {
	population  []PopulationCell
	stores      []site.ExistingStore
	competitors []site.CompetitorLocation
	anchors     []site.AnchorPoint
	isochrone   ports.IsochroneProvider // optional, may be nil
}

// New constructs a FeatureService over one run's static inputs.
func New(population []PopulationCell, stores []site.ExistingStore, competitors []site.CompetitorLocation, anchors []site.AnchorPoint, isochrone ports.IsochroneProvider) *Service {
	return &Service{population: population, stores: stores, competitors: competitors, anchors: anchors, isochrone: isochrone}
}

// CalculatePopulation sums cell populations inside a radiusKm disk around
// (lat,lng). An empty disk falls back to averaging the three nearest
// cells and reports estimated=true.
func (s *Service) CalculatePopulation(center site.LatLng, radiusKm float64) (population int64, estimated bool) {
	var sum int64
	var found bool
	for _, c := range s.population {
		if site.HaversineKm(center, c.Point) <= radiusKm {
			sum += c.Population
			found = true
		}
	}
	if found {
		return sum, false
	}
	return s.nearestThreeAverage(center), true
}

func (s *Service) nearestThreeAverage(center site.LatLng) int64 {
	if len(s.population) == 0 {
		return 0
	}
	type distPop struct {
		dist float64
		pop  int64
	}
	ds := make([]distPop, 0, len(s.population))
	for _, c := range s.population {
		ds = append(ds, distPop{site.HaversineKm(center, c.Point), c.Population})
	}
	sort.Slice(ds, func(i, j int) bool { return ds[i].dist < ds[j].dist })
	n := 3
	if n > len(ds) {
		n = len(ds)
	}
	var sum int64
	for i := 0; i < n; i++ {
		sum += ds[i].pop
	}
	return sum / int64(n)
}

// CalculateNearestBrandDistance returns the great-circle distance in km to
// the nearest existing store, or +Inf if there are none.
func (s *Service) CalculateNearestBrandDistance(center site.LatLng) float64 {
	if math.IsNaN(center.Lat) || math.IsNaN(center.Lng) {
		return math.Inf(1)
	}
	best := math.Inf(1)
	for _, store := range s.stores {
		d := site.HaversineKm(center, store.Point)
		if d < best {
			best = d
		}
	}
	return best
}

// CalculateCompetitorDensity returns count-in-disk / (pi * r^2).
func (s *Service) CalculateCompetitorDensity(center site.LatLng, radiusKm float64) float64 {
	if radiusKm <= 0 {
		return 0
	}
	count := 0
	for _, comp := range s.competitors {
		if site.HaversineKm(center, comp.Point) <= radiusKm {
			count++
		}
	}
	return float64(count) / (math.Pi * radiusKm * radiusKm)
}

// CalculatePerformanceProxy is the bounded heuristic combining a
// population term and a competition penalty.
func (s *Service) CalculatePerformanceProxy(population int64, competitorDensity float64) float64 {
	popTerm := math.Min(float64(population)/10000.0, 1)
	compTerm := math.Min(competitorDensity*0.1, 0.5)
	v := popTerm - compTerm
	if v < 0 {
		return 0
	}
	return v
}

// ComputeBasicFeatures fills in the national-sweep feature tier for one
// point.
func (s *Service) ComputeBasicFeatures(center site.LatLng) (site.Features, site.EstimationFlags) {
	pop, popEstimated := s.CalculatePopulation(center, basicPopulationRadiusKm)
	nearest := s.CalculateNearestBrandDistance(center)
	density := s.CalculateCompetitorDensity(center, basicCompetitorRadiusKm)
	anchors := s.computeAnchors(center, basicAnchorRadiusKm, false)
	perf := s.CalculatePerformanceProxy(pop, density)

	flags := site.EstimationFlags{Population: popEstimated}
	return site.Features{
		Population:        int(pop),
		NearestBrandKm:    nearest,
		CompetitorDensity: density,
		Anchors:           anchors,
		PerformanceProxy:  perf,
	}, flags
}

// ComputeRefinedFeatures recomputes a candidate's features at the wider,
// shortlist-only radii. When minutes > 0 and an isochrone provider is
// configured, population is drawn from the travel-time catchment instead
// of the radial disk; on provider failure it falls back to radial
// population over a disk of 0.8 km per travel minute and reports
// estimated.travelTime=true.
func (s *Service) ComputeRefinedFeatures(ctx context.Context, center site.LatLng, minutes int) (site.Features, site.EstimationFlags) {
	var pop int64
	var popEstimated, travelTimeEstimated bool

	if s.isochrone != nil && minutes > 0 {
		catchmentPop, err := s.isochrone.CatchmentPopulation(ctx, center.Lat, center.Lng, minutes)
		if err != nil {
			// Substitute a radial catchment sized to the travel-time
			// budget: 0.8 km per minute.
			pop, popEstimated = s.CalculatePopulation(center, 0.8*float64(minutes))
			travelTimeEstimated = true
		} else {
			pop = catchmentPop
		}
	} else {
		pop, popEstimated = s.CalculatePopulation(center, refinedPopulationRadiusKm)
	}

	nearest := s.CalculateNearestBrandDistance(center)
	density := s.CalculateCompetitorDensity(center, refinedCompetitorRadiusKm)
	anchors := s.computeAnchors(center, refinedAnchorRadiusKm, true)
	perf := s.CalculatePerformanceProxy(pop, density)

	flags := site.EstimationFlags{Population: popEstimated, TravelTime: travelTimeEstimated}
	return site.Features{
		Population:        int(pop),
		NearestBrandKm:    nearest,
		CompetitorDensity: density,
		Anchors:           anchors,
		PerformanceProxy:  perf,
	}, flags
}
