package feature

import (
	"math"
	"sort"

	"sitegen/domain/site"
)

// computeAnchors filters anchors to within radiusKm, single-linkage
// clusters them per type at the type's merge radius, and scores the
// resulting representatives with diminishing returns. refined toggles
// the distance-decay and type-multiplier terms used by the wider
// refinement tier.
func (s *Service) computeAnchors(center site.LatLng, radiusKm float64, refined bool) site.AnchorBreakdown {
	inRange := make([]site.AnchorPoint, 0)
	for _, a := range s.anchors {
		if site.HaversineKm(center, a.Point) <= radiusKm {
			inRange = append(inRange, a)
		}
	}

	byType := make(map[site.AnchorType][]site.AnchorPoint)
	for _, a := range inRange {
		byType[a.Type] = append(byType[a.Type], a)
	}

	breakdown := make(map[site.AnchorType]int)
	type repDist struct {
		point site.LatLng
		typ   site.AnchorType
		dist  float64
	}
	var representatives []repDist

	for typ, pts := range byType {
		clusters := singleLinkageClusters(pts, mergeRadiusM[typ])
		breakdown[typ] = len(clusters)
		for _, cluster := range clusters {
			rep := clusterRepresentative(cluster)
			representatives = append(representatives, repDist{
				point: rep,
				typ:   typ,
				dist:  site.HaversineKm(center, rep),
			})
		}
	}

	sort.Slice(representatives, func(i, j int) bool { return representatives[i].dist < representatives[j].dist })

	n := len(representatives)
	if n > maxDiminishingAnchors {
		n = maxDiminishingAnchors
	}
	var score float64
	for i := 0; i < n; i++ {
		term := 1.0 / math.Sqrt(float64(i+1))
		if refined {
			rep := representatives[i]
			term *= math.Exp(-rep.dist / 0.5)
			if mult, ok := refinedTypeMultiplier[rep.typ]; ok {
				term *= mult
			}
		}
		score += term
	}

	return site.AnchorBreakdown{
		Raw:              len(inRange),
		Deduplicated:     len(representatives),
		DiminishingScore: score,
		BreakdownByType:  breakdown,
	}
}

// singleLinkageClusters merges anchors of one type into clusters such that
// any two clusters with a pairwise distance within radiusM get merged,
// iterating until stable. O(n^2) in the worst case, acceptable because
// anchor counts per cell-radius-type are small.
func singleLinkageClusters(points []site.AnchorPoint, radiusM float64) [][]site.AnchorPoint {
	if len(points) == 0 {
		return nil
	}
	clusters := make([][]site.AnchorPoint, len(points))
	for i, p := range points {
		clusters[i] = []site.AnchorPoint{p}
	}

	for {
		merged := false
		for i := 0; i < len(clusters); i++ {
			for j := i + 1; j < len(clusters); j++ {
				if shouldMergeClusters(clusters[i], clusters[j], radiusM) {
					clusters[i] = append(clusters[i], clusters[j]...)
					clusters = append(clusters[:j], clusters[j+1:]...)
					merged = true
					break
				}
			}
			if merged {
				break
			}
		}
		if !merged {
			break
		}
	}
	return clusters
}

// shouldMergeClusters reports whether any inter-cluster pair lies within
// radiusM of each other.
func shouldMergeClusters(a, b []site.AnchorPoint, radiusM float64) bool {
	radiusKm := radiusM / 1000.0
	for _, pa := range a {
		for _, pb := range b {
			if site.HaversineKm(pa.Point, pb.Point) <= radiusKm {
				return true
			}
		}
	}
	return false
}

// clusterRepresentative returns the member closest to the cluster's
// centroid.
func clusterRepresentative(cluster []site.AnchorPoint) site.LatLng {
	if len(cluster) == 1 {
		return cluster[0].Point
	}
	points := make([]site.LatLng, len(cluster))
	for i, a := range cluster {
		points[i] = a.Point
	}
	centroid := site.Centroid(points)

	best := cluster[0].Point
	bestDist := site.HaversineKm(centroid, best)
	for _, a := range cluster[1:] {
		d := site.HaversineKm(centroid, a.Point)
		if d < bestDist {
			bestDist = d
			best = a.Point
		}
	}
	return best
}
