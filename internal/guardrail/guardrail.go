// Package guardrail implements PolicyGuardrailService: absolute bounds
// plus optional drift bounds on weights and constraints, clamping out-of-
// range values and renormalizing rather than rejecting the run.
package guardrail

import "sitegen/domain/site"

// Field names used in Violation.Field.
const (
	FieldPopulationWeight  = "weights.population"
	FieldGapWeight         = "weights.gap"
	FieldAnchorWeight      = "weights.anchor"
	FieldPerformanceWeight = "weights.performance"
	FieldSaturationWeight  = "weights.saturation"
	FieldMinSpacingM       = "constraints.minSpacingM"
	FieldTargetK           = "constraints.targetK"
	FieldMaxRegionShare    = "constraints.maxRegionShare"
)

const (
	minSpacingKmLow  = 0.5
	minSpacingKmHigh = 6.0
	maxTargetK       = 100

	weightDriftPct     = 0.20
	constraintDriftPct = 0.30
)

var weightBounds = map[string][2]float64{
	FieldPopulationWeight:  {0.1, 0.4},
	FieldGapWeight:         {0.2, 0.5},
	FieldAnchorWeight:      {0.05, 0.3},
	FieldPerformanceWeight: {0.05, 0.3},
	FieldSaturationWeight:  {0.05, 0.25},
}

// Violation is one structured, non-fatal guardrail record.
type Violation struct {
	Field     string
	Requested float64
	Clamped   float64
	Bound     string // "absolute" or "drift"
	Reason    string
}

// Policy bundles everything guardrails can clamp for a single run.
type Policy struct {
	Weights        site.Weights
	MinSpacingKm   float64
	TargetK        int
	MaxRegionShare float64
}

// Baseline is the optional drift-bound reference.
type Baseline struct {
	Weights        site.Weights
	MinSpacingKm   float64
	MaxRegionShare float64
}

// Service implements the Y component.
type Service struct{}

func New() *Service { return &Service{} }

// Apply clamps policy against absolute bounds, and against baseline's
// drift bounds when baseline is non-nil, returning the corrected policy
// and every violation raised along the way.
func (s *Service) Apply(policy Policy, baseline *Baseline) (Policy, []Violation) {
	var violations []Violation

	weights := map[string]float64{
		FieldPopulationWeight:  policy.Weights.Population,
		FieldGapWeight:         policy.Weights.Gap,
		FieldAnchorWeight:      policy.Weights.Anchor,
		FieldPerformanceWeight: policy.Weights.Performance,
		FieldSaturationWeight:  policy.Weights.Saturation,
	}
	for field, bound := range weightBounds {
		v := weights[field]
		clamped := clamp(v, bound[0], bound[1])
		if clamped != v {
			violations = append(violations, Violation{
				Field: field, Requested: v, Clamped: clamped,
				Bound: "absolute", Reason: "outside allowed weight range",
			})
		}
		weights[field] = clamped
	}

	if baseline != nil {
		baselineWeights := map[string]float64{
			FieldPopulationWeight:  baseline.Weights.Population,
			FieldGapWeight:         baseline.Weights.Gap,
			FieldAnchorWeight:      baseline.Weights.Anchor,
			FieldPerformanceWeight: baseline.Weights.Performance,
			FieldSaturationWeight:  baseline.Weights.Saturation,
		}
		for field, base := range baselineWeights {
			v := weights[field]
			lo, hi := base*(1-weightDriftPct), base*(1+weightDriftPct)
			clamped := clamp(v, lo, hi)
			if clamped != v {
				violations = append(violations, Violation{
					Field: field, Requested: v, Clamped: clamped,
					Bound: "drift", Reason: "outside ±20% of baseline weight",
				})
			}
			weights[field] = clamped
		}
	}

	correctedWeights := site.Weights{
		Population:  weights[FieldPopulationWeight],
		Gap:         weights[FieldGapWeight],
		Anchor:      weights[FieldAnchorWeight],
		Performance: weights[FieldPerformanceWeight],
		Saturation:  weights[FieldSaturationWeight],
	}.Normalized()

	spacing := clamp(policy.MinSpacingKm, minSpacingKmLow, minSpacingKmHigh)
	if spacing != policy.MinSpacingKm {
		violations = append(violations, Violation{
			Field: FieldMinSpacingM, Requested: policy.MinSpacingKm, Clamped: spacing,
			Bound: "absolute", Reason: "outside allowed spacing range",
		})
	}
	if baseline != nil && baseline.MinSpacingKm > 0 {
		lo, hi := baseline.MinSpacingKm*(1-constraintDriftPct), baseline.MinSpacingKm*(1+constraintDriftPct)
		clamped := clamp(spacing, lo, hi)
		if clamped != spacing {
			violations = append(violations, Violation{
				Field: FieldMinSpacingM, Requested: spacing, Clamped: clamped,
				Bound: "drift", Reason: "outside ±30% of baseline spacing",
			})
			spacing = clamped
		}
	}

	targetK := policy.TargetK
	if targetK > maxTargetK {
		violations = append(violations, Violation{
			Field: FieldTargetK, Requested: float64(targetK), Clamped: float64(maxTargetK),
			Bound: "absolute", Reason: "exceeds maximum portfolio size",
		})
		targetK = maxTargetK
	}
	if targetK < 1 {
		violations = append(violations, Violation{
			Field: FieldTargetK, Requested: float64(targetK), Clamped: 1,
			Bound: "absolute", Reason: "below minimum portfolio size",
		})
		targetK = 1
	}

	maxRegionShare := clamp(policy.MaxRegionShare, 0.2, 0.6)
	if maxRegionShare != policy.MaxRegionShare {
		violations = append(violations, Violation{
			Field: FieldMaxRegionShare, Requested: policy.MaxRegionShare, Clamped: maxRegionShare,
			Bound: "absolute", Reason: "outside allowed regional share range",
		})
	}
	if baseline != nil && baseline.MaxRegionShare > 0 {
		lo, hi := baseline.MaxRegionShare*(1-constraintDriftPct), baseline.MaxRegionShare*(1+constraintDriftPct)
		clamped := clamp(maxRegionShare, lo, hi)
		if clamped != maxRegionShare {
			violations = append(violations, Violation{
				Field: FieldMaxRegionShare, Requested: maxRegionShare, Clamped: clamped,
				Bound: "drift", Reason: "outside ±30% of baseline regional share",
			})
			maxRegionShare = clamped
		}
	}

	return Policy{
		Weights:        correctedWeights,
		MinSpacingKm:   spacing,
		TargetK:        targetK,
		MaxRegionShare: maxRegionShare,
	}, violations
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
