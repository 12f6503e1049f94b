// Package site holds the pure domain types for the site-selection pipeline:
// candidates, features, scores, weights, country configuration, and the
// external-entity records (stores, competitors, anchors) the pipeline scores
// against. Nothing in this package talks to an external system.
package site

import (
	"math"

	"sitegen/domain/core"
)

// Status is the lifecycle state of a Candidate within a run.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusSelected Status = "SELECTED"
	StatusRejected Status = "REJECTED"
	StatusHold     Status = "HOLD"
)

// AnchorType is one of the four point-of-interest categories anchors are
// bucketed into for clustering and scoring.
type AnchorType string

const (
	AnchorMallTenant    AnchorType = "MALL_TENANT"
	AnchorStationShops  AnchorType = "STATION_SHOPS"
	AnchorGrocer        AnchorType = "GROCER"
	AnchorRetail        AnchorType = "RETAIL"
)

// LatLng is a bare geographic point in degrees.
type LatLng struct {
	Lat float64
	Lng float64
}

// AnchorBreakdown carries the anchor-clustering outputs for one candidate.
type AnchorBreakdown struct {
	Raw              int
	Deduplicated     int
	DiminishingScore float64
	BreakdownByType  map[AnchorType]int
}

// Features is the per-candidate feature bundle.
type Features struct {
	Population        int
	NearestBrandKm     float64 // math.Inf(1) when no existing stores
	CompetitorDensity float64
	Anchors           AnchorBreakdown
	PerformanceProxy  float64
}

// SubScores is every component of the multi-factor score, each in [0,1].
type SubScores struct {
	Population        float64
	Gap               float64
	Anchor            float64
	Performance       float64
	SaturationPenalty float64
	Final             float64
}

// Weights parameterizes the linear blend in the scoring service.
// DefaultWeights is the canonical default: 0.25/0.35/0.20/0.20/0.15.
type Weights struct {
	Population float64
	Gap        float64
	Anchor     float64
	Performance float64
	Saturation float64
}

// DefaultWeights returns the canonical default weight vector.
func DefaultWeights() Weights {
	return Weights{Population: 0.25, Gap: 0.35, Anchor: 0.20, Performance: 0.20, Saturation: 0.15}
}

// Sum returns the sum of all five weight components.
func (w Weights) Sum() float64 {
	return w.Population + w.Gap + w.Anchor + w.Performance + w.Saturation
}

// WithinTolerance reports whether the weights sum to 1 within tol.
func (w Weights) WithinTolerance(tol float64) bool {
	return math.Abs(w.Sum()-1.0) <= tol
}

// Normalized rescales the weights so they sum to exactly 1. A zero-sum
// vector returns DefaultWeights unchanged (summing to 1.15) to avoid
// propagating NaN.
func (w Weights) Normalized() Weights {
	sum := w.Sum()
	if sum <= 0 {
		return DefaultWeights()
	}
	return Weights{
		Population:  w.Population / sum,
		Gap:         w.Gap / sum,
		Anchor:      w.Anchor / sum,
		Performance: w.Performance / sum,
		Saturation:  w.Saturation / sum,
	}
}

// DataQuality flags which parts of a candidate's feature bundle were
// estimated rather than measured, and the resulting confidence numbers.
type DataQuality struct {
	Completeness float64
	Confidence   float64
	Estimated    EstimationFlags
}

// EstimationFlags records which features fell back to an estimate.
type EstimationFlags struct {
	Population bool
	Anchors    bool
	TravelTime bool
}

// QualityFromEstimation derives completeness and confidence from which
// of the three estimable features actually fell back to an estimate.
func QualityFromEstimation(estimated EstimationFlags) DataQuality {
	var estimatedCount float64
	if estimated.Population {
		estimatedCount++
	}
	if estimated.Anchors {
		estimatedCount++
	}
	if estimated.TravelTime {
		estimatedCount++
	}
	completeness := 1 - estimatedCount/3
	return DataQuality{
		Completeness: completeness,
		Confidence:   completeness,
		Estimated:    estimated,
	}
}

// ConstraintReason enumerates the structured violation reasons
// ConstraintService emits.
type ConstraintReason string

const (
	ReasonSpacingViolation       ConstraintReason = "SPACING_VIOLATION"
	ReasonRegionalShareExceeded  ConstraintReason = "REGIONAL_SHARE_EXCEEDED"
	ReasonLowCompleteness        ConstraintReason = "LOW_COMPLETENESS"
	ReasonSaturationPenalty      ConstraintReason = "SATURATION_PENALTY"
	ReasonCapacity               ConstraintReason = "CAPACITY"
)

// ConstraintViolation is one structured reason a candidate failed
// admission, with a short remediation hint for callers.
type ConstraintViolation struct {
	Reason      ConstraintReason
	Detail      string
	Remediation string
}

// ConstraintStatus bundles the outcome of the last constraint evaluation
// for a candidate.
type ConstraintStatus struct {
	Violations []ConstraintViolation
}

// Passed reports whether the candidate carries zero violations.
func (c ConstraintStatus) Passed() bool {
	return len(c.Violations) == 0
}

// Candidate is one hex-cell site under evaluation.
type Candidate struct {
	ID       core.CandidateID
	Point    LatLng
	HexIndex string
	RegionID string

	Features Features
	Scores   SubScores
	Quality  DataQuality
	Status   Status

	Constraint ConstraintStatus
}

// AdministrativeRegion is one entry of a CountryConfig's region list.
type AdministrativeRegion struct {
	ID         string
	Name       string
	Boundary   Polygon
	Population int64
}

// Polygon is a GeoJSON-like ring list: the first ring is the outer
// boundary, any further rings are holes.
type Polygon struct {
	Rings [][]LatLng
}

// Empty reports whether the polygon has no usable outer ring.
func (p Polygon) Empty() bool {
	return len(p.Rings) == 0 || len(p.Rings[0]) < 3
}

// CountryConfig is the geographic and administrative context for a run.
type CountryConfig struct {
	CountryCode           string
	Boundary              Polygon
	Regions               []AdministrativeRegion
	MajorMetropolitanAreas []string
	MaxRegionShare        float64
}

// ExistingStore is a brand location already on the ground.
type ExistingStore struct {
	ID       string
	Name     string
	Point    LatLng
	Turnover float64
}

// CompetitorLocation is a rival location.
type CompetitorLocation struct {
	Point LatLng
}

// AnchorPoint is a point-of-interest that can increase a site's
// attractiveness.
type AnchorPoint struct {
	ID   string
	Point LatLng
	Type AnchorType
}

// ParetoPoint is one (roi, risk, coverage) sample of the K-sweep.
type ParetoPoint struct {
	K           int
	ROI         float64
	Risk        float64
	Coverage    float64
	Portfolio   []core.CandidateID
	IsKnee      bool
	IsDominated bool
}
