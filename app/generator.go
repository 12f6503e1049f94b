// Package app orchestrates the per-run pipeline services into complete
// generation, scenario, and analysis workflows: one service struct per
// workflow, holding the ports and services it wires together, exposing a
// single top-level method that stitches the stages and returns a result
// plus an audit/reproducibility envelope.
package app

import (
	"context"
	"fmt"

	"sitegen/domain/core"
	"sitegen/domain/site"
	"sitegen/internal"
	"sitegen/internal/constraint"
	"sitegen/internal/errors"
	"sitegen/internal/feature"
	"sitegen/internal/grid"
	"sitegen/internal/guardrail"
	"sitegen/internal/operations"
	"sitegen/internal/portfolio"
	"sitegen/internal/refinement"
	"sitegen/internal/scenario"
	"sitegen/internal/scoring"
	"sitegen/internal/shortlist"
	"sitegen/ports"
)

// Request is one generation run's full input.
type Request struct {
	Country      site.CountryConfig
	Weights      site.Weights
	TargetK      int
	MinSpacingKm float64
	Seed         int64
	DataVersions map[string]string
	Resolution   int

	Population  []feature.PopulationCell
	Stores      []site.ExistingStore
	Competitors []site.CompetitorLocation
	Anchors     []site.AnchorPoint

	Isochrone        ports.IsochroneProvider
	TravelMinutes    int
	RefinementWindowKm float64

	Mode        string // optional scenario mode; empty means Balanced
	EnableAI    bool
	ExplainTopN int // 0 disables the explanation pass
}

// Validate fail-fasts on request-shape and numeric invariants before any
// processing. An empty boundary is NOT an error here; it yields an empty
// result from Generate instead.
func (r Request) Validate() error {
	if n := len(r.Country.CountryCode); n < 2 || n > 3 {
		return errors.Validation("countryCode", "must be a 2-3 letter ISO code")
	}
	if r.TargetK < 1 {
		return errors.Validation("targetK", "must be at least 1")
	}
	if r.MinSpacingKm <= 0 {
		return errors.Validation("minSpacingM", "must be positive")
	}
	if r.Resolution < 0 || r.Resolution > 15 {
		return errors.Validation("gridResolution", "must be between 0 and 15")
	}
	if !r.Weights.WithinTolerance(0.01) {
		return errors.Validation("weights", "must sum to 1 within 0.01")
	}
	for _, w := range []float64{r.Weights.Population, r.Weights.Gap, r.Weights.Anchor, r.Weights.Performance, r.Weights.Saturation} {
		if w < 0 || w > 1 {
			return errors.Validation("weights", "each weight must be in [0,1]")
		}
	}
	if r.Mode != "" && !scenario.ValidMode(scenario.Mode(r.Mode)) {
		return errors.Validation("mode", "must be one of Defend, Balanced, Blitz")
	}
	for _, s := range r.Stores {
		if s.Point.Lat < -90 || s.Point.Lat > 90 || s.Point.Lng < -180 || s.Point.Lng > 180 {
			return errors.Validation("stores", "latitude or longitude out of range")
		}
	}
	for _, c := range r.Population {
		if c.Population < 0 {
			return errors.Validation("populationCells", "population must not be negative")
		}
	}
	return nil
}

// PortfolioSummary is the portfolio-level slice of the result.
type PortfolioSummary struct {
	SelectedCount      int
	RejectedCount      int
	RegionDistribution map[string]int
	AcceptanceRate     float64
	Metrics            portfolio.Metrics
	ValidationIssues   []portfolio.ValidationIssue
}

// Diagnostics carries the run's introspection fields: the weight vector
// actually used, anchor dedup counts, rejection reasons, and the final
// score distribution.
type Diagnostics struct {
	WeightsUsed        site.Weights
	AnchorDedupReport  map[string]int // candidate id -> deduplicated anchor count
	RejectionBreakdown map[site.ConstraintReason]int
	ScoringDistribution scoring.DistributionStats
}

// Reproducibility is the run's reproducibility envelope.
type Reproducibility struct {
	Seed         int64
	DataVersions map[string]string
	ScenarioHash core.ScenarioHash
}

// Result is LocationGenerator's full output.
type Result struct {
	RunID       core.RunID
	Sites       []*site.Candidate
	Portfolio   PortfolioSummary
	Diagnostics Diagnostics
	Reproducibility Reproducibility
	GuardrailViolations []guardrail.Violation
	Degraded    bool
}

// LocationGenerator implements the L component: one full run of
// G -> F -> S -> H -> R -> S -> P. It does not run the explanation pass;
// callers run that against the returned sites.
type LocationGenerator struct {
	grid        *grid.Service
	scoring     *scoring.Service
	constraints *constraint.Service
	portfolios  *portfolio.Service
	guardrails  *guardrail.Service
	ops         *operations.Service
	log         *internal.Logger
}

func NewLocationGenerator(gridSvc *grid.Service, scoringSvc *scoring.Service, constraints *constraint.Service, portfolios *portfolio.Service, guardrails *guardrail.Service, ops *operations.Service) *LocationGenerator {
	return &LocationGenerator{
		grid:        gridSvc,
		scoring:     scoringSvc,
		constraints: constraints,
		portfolios:  portfolios,
		guardrails:  guardrails,
		ops:         ops,
		log:         internal.NewDefaultLogger("generator"),
	}
}

// Generate runs one full pipeline pass: grid, basic features, scoring,
// shortlist, refinement, rescoring, and portfolio build. Explanation is
// a separate caller-driven pass against the returned sites, since it
// needs the explanation service's cache and the run's token budget.
func (g *LocationGenerator) Generate(ctx context.Context, req Request) (*Result, error) {
	runID := core.RunID(core.NewID())

	policy, violations := g.guardrails.Apply(guardrail.Policy{
		Weights:        req.Weights,
		MinSpacingKm:   req.MinSpacingKm,
		TargetK:        req.TargetK,
		MaxRegionShare: req.Country.MaxRegionShare,
	}, nil)
	req.Country.MaxRegionShare = policy.MaxRegionShare

	cfg := constraint.Config{
		MinSpacingM:     policy.MinSpacingKm * 1000,
		MinCompleteness: constraint.DefaultMinCompleteness,
		TargetK:         policy.TargetK,
		Country:         req.Country,
	}

	resolution := req.Resolution
	if resolution <= 0 {
		resolution = grid.DefaultResolution
	}
	// An empty or malformed boundary yields an empty grid and an empty
	// result, never an error.
	cells := g.grid.GenerateCountryGrid(req.Country.Boundary, resolution)
	if len(cells) == 0 {
		g.log.Warn("run %s: empty grid for country %q, returning empty result", runID, req.Country.CountryCode)
		return &Result{
			RunID: runID,
			Diagnostics: Diagnostics{
				WeightsUsed:        policy.Weights,
				AnchorDedupReport:  map[string]int{},
				RejectionBreakdown: map[site.ConstraintReason]int{},
			},
			Reproducibility: Reproducibility{
				Seed:         req.Seed,
				DataVersions: req.DataVersions,
			},
			GuardrailViolations: violations,
			Degraded:            g.ops.Degraded(),
		}, nil
	}
	g.log.Info("run %s: %d grid cells at resolution %d for %s", runID, len(cells), resolution, req.Country.CountryCode)

	features := feature.New(req.Population, req.Stores, req.Competitors, req.Anchors, req.Isochrone)

	candidates := make([]*site.Candidate, 0, len(cells))
	for _, cell := range cells {
		f, estimated := features.ComputeBasicFeatures(cell.Center)
		region, _ := constraint.ResolveRegion(cell.Center, req.Country)

		candidates = append(candidates, &site.Candidate{
			ID:       core.NewCandidateID(cell.Index),
			Point:    cell.Center,
			HexIndex: cell.Index,
			RegionID: region.ID,
			Features: f,
			Quality:  site.QualityFromEstimation(estimated),
			Status:   site.StatusPending,
		})
	}

	g.scoring.ScoreAll(candidates, policy.Weights)
	scoring.Rank(candidates)

	short := shortlist.Build(candidates, req.Country, policy.TargetK)
	if !short.Qualifies(policy.TargetK) {
		g.log.Warn("run %s: shortlist below quality bar (%d candidates), flagging degraded", runID, len(short.Candidates))
		g.ops.SetDegraded()
	}

	windowKm := req.RefinementWindowKm
	if windowKm <= 0 {
		windowKm = grid.DefaultWindowSizeKm
	}
	windows := g.grid.CreateWindows(cells, windowKm, grid.DefaultBufferKm)
	refiner := refinement.New(features, g.grid, req.TravelMinutes, 8)
	refiner.Refine(ctx, short.Candidates, windows)

	g.scoring.ScoreAll(short.Candidates, policy.Weights)
	scoring.Rank(short.Candidates)

	built := g.portfolios.Build(short.Candidates, req.Stores, cfg, policy.TargetK)
	built = g.portfolios.Optimize(built, req.Stores, cfg)
	g.log.Info("run %s: portfolio selected %d of target %d (%d rejected)", runID, len(built.Selected), policy.TargetK, len(built.Rejected))

	scenarioHash := core.NewScenarioHash([]byte(fmt.Sprintf("%s|%d|%.6f|%.6f|%.6f|%.6f|%.6f|%d",
		req.Country.CountryCode, policy.TargetK,
		policy.Weights.Population, policy.Weights.Gap, policy.Weights.Anchor, policy.Weights.Performance, policy.Weights.Saturation,
		req.Seed)))

	anchorDedup := make(map[string]int, len(short.Candidates))
	for _, c := range short.Candidates {
		anchorDedup[c.ID.String()] = c.Features.Anchors.Deduplicated
	}

	rejectionBreakdown := make(map[site.ConstraintReason]int)
	for _, c := range built.Rejected {
		for _, v := range c.Constraint.Violations {
			rejectionBreakdown[v.Reason]++
		}
	}

	regionDist := make(map[string]int, len(req.Country.Regions))
	for _, c := range built.Selected {
		regionDist[c.RegionID]++
	}

	acceptance := 0.0
	if total := len(built.Selected) + len(built.Rejected); total > 0 {
		acceptance = float64(len(built.Selected)) / float64(total)
	}

	result := &Result{
		RunID: runID,
		Sites: short.Candidates,
		Portfolio: PortfolioSummary{
			SelectedCount:      len(built.Selected),
			RejectedCount:      len(built.Rejected),
			RegionDistribution: regionDist,
			AcceptanceRate:     acceptance,
			Metrics:            portfolio.ComputeMetrics(built.Selected),
			ValidationIssues:   portfolio.Validate(built.Selected, policy.TargetK, req.Country),
		},
		Diagnostics: Diagnostics{
			WeightsUsed:          policy.Weights,
			AnchorDedupReport:    anchorDedup,
			RejectionBreakdown:   rejectionBreakdown,
			ScoringDistribution:  scoring.ComputeDistribution(short.Candidates),
		},
		Reproducibility: Reproducibility{
			Seed:         req.Seed,
			DataVersions: req.DataVersions,
			ScenarioHash: scenarioHash,
		},
		GuardrailViolations: violations,
		Degraded:            g.ops.Degraded(),
	}

	// A breached run budget is fatal, but the caller still gets the
	// best-effort partial result alongside the structured failure.
	if err := g.ops.CheckRunBudget(0); err != nil {
		result.Degraded = true
		return result, fmt.Errorf("generate: %w", err)
	}
	return result, nil
}

