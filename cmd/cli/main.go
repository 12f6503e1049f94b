// Command sitegen-cli is the thin operator entry point over the
// generation pipeline and its post-hoc analyses: flag-based argument
// parsing, godotenv env bootstrap, and a direct sqlx.Connect for the
// optional run-history database.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	_ "github.com/lib/pq"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"

	"sitegen/adapters/excelio"
	"sitegen/adapters/llm"
	"sitegen/adapters/postgres"
	"sitegen/adapters/rng"
	"sitegen/app"
	"sitegen/domain/core"
	"sitegen/domain/site"
	"sitegen/internal/backtest"
	"sitegen/internal/config"
	"sitegen/internal/constraint"
	"sitegen/internal/counterfactual"
	"sitegen/internal/explanation"
	"sitegen/internal/fairness"
	"sitegen/internal/feature"
	"sitegen/internal/grid"
	"sitegen/internal/guardrail"
	"sitegen/internal/operations"
	"sitegen/internal/pareto"
	"sitegen/internal/portfolio"
	"sitegen/internal/scenario"
	"sitegen/internal/scoring"
	"sitegen/internal/stability"
	"sitegen/ports"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using system environment variables")
	}

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	ctx := context.Background()

	switch os.Args[1] {
	case "generate":
		runGenerate(ctx, cfg, os.Args[2:])
	case "pareto":
		runPareto(ctx, cfg, os.Args[2:])
	case "scenario":
		runScenario(ctx, cfg, os.Args[2:])
	case "stability":
		runStability(ctx, cfg, os.Args[2:])
	case "backtest":
		runBacktest(ctx, cfg, os.Args[2:])
	case "fairness":
		runFairness(ctx, cfg, os.Args[2:])
	case "counterfactual":
		runCounterfactual(ctx, cfg, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: sitegen-cli <generate|pareto|scenario|stability|backtest|fairness|counterfactual> -request <file.json> [-workbook <file.xlsx>]")
}

// scenarioFile is the JSON shape a run request is read from. It mirrors
// app.Request minus the collaborator ports (Isochrone), which have no
// JSON representation and default to nil (radial-population fallback).
type scenarioFile struct {
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

	TravelMinutes      int
	RefinementWindowKm float64

	Mode        string
	EnableAI    bool
	ExplainTopN int
}

func loadScenario(path string) (scenarioFile, error) {
	var sf scenarioFile
	data, err := os.ReadFile(path)
	if err != nil {
		return sf, fmt.Errorf("read request: %w", err)
	}
	if err := json.Unmarshal(data, &sf); err != nil {
		return sf, fmt.Errorf("parse request: %w", err)
	}
	return sf, nil
}

// mergeWorkbook folds an optional reference-data workbook's stores,
// competitors, and population cells into a scenarioFile that did not
// already carry them inline.
func mergeWorkbook(sf *scenarioFile, workbookPath string) error {
	if workbookPath == "" {
		return nil
	}
	wb, err := excelio.NewReader(workbookPath).Load()
	if err != nil {
		return fmt.Errorf("load workbook: %w", err)
	}
	if len(sf.Stores) == 0 {
		sf.Stores = wb.Stores
	}
	if len(sf.Competitors) == 0 {
		sf.Competitors = wb.Competitors
	}
	if len(sf.Population) == 0 {
		for _, row := range wb.PopulationCells {
			sf.Population = append(sf.Population, feature.PopulationCell{Point: row.Point, Population: row.Population})
		}
	}
	return nil
}

// services bundles every pipeline and analysis service cmd/cli wires,
// built once per invocation from the loaded configuration.
type services struct {
	generator    *app.LocationGenerator
	pareto       *pareto.Service
	scenario     *scenario.Service
	stability    *stability.Service
	backtest     *backtest.Service
	fairness     *fairness.Service
	constraints  *constraint.Service
	portfolios   *portfolio.Service
	explanations *explanation.Service
	ops          *operations.Service
	runs         *postgres.RunRepository
}

func buildServices(cfg *config.Config) *services {
	gridSvc := grid.New()
	scoringSvc := scoring.New()
	constraints := constraint.New()
	portfolios := portfolio.New(constraints)
	guardrails := guardrail.New()

	opsCfg := operations.Config{
		IsochroneConcurrency:   cfg.Operations.IsochroneConcurrency,
		ExplanationConcurrency: cfg.Operations.ExplanationConcurrency,
		IsochroneRatePerMin:    cfg.Operations.IsochroneRatePerMin,
		ExplanationRatePerMin:  cfg.Operations.ExplanationRatePerMin,
		TokenBudget:            cfg.Operations.TokenBudget,
		RequestTimeout:         cfg.Operations.RequestTimeout,
		MaxExecutionTime:       cfg.Operations.MaxExecutionTime,
		MemoryLimitMB:          cfg.Operations.MemoryLimitMB,
	}
	ops := operations.New(opsCfg)

	paretoSvc := pareto.New(portfolios)
	scenarioSvc := scenario.New(scoringSvc, portfolios, paretoSvc)
	rngAdapter := rng.New()
	stabilitySvc := stability.New(scoringSvc, portfolios, rngAdapter, 30)
	backtestSvc := backtest.New(portfolios)
	fairnessSvc := fairness.New()

	var remote ports.ExplanationProvider
	if cfg.Explanation.APIKey != "" {
		provider, err := llm.NewExplanationProvider(llm.Config{
			APIKey:      cfg.Explanation.APIKey,
			BaseURL:     cfg.Explanation.BaseURL,
			Model:       cfg.Explanation.Model,
			Timeout:     cfg.Explanation.Timeout,
			Temperature: cfg.Explanation.Temperature,
			MaxTokens:   cfg.Explanation.MaxTokens,
		}, func(tokens int) {
			if err := ops.ReserveTokens(int64(tokens)); err != nil {
				log.Printf("explanation token budget exceeded: %v", err)
			}
		})
		if err != nil {
			log.Printf("remote explanation provider unavailable, falling back to templates: %v", err)
		} else {
			remote = provider
		}
	}
	explanations := explanation.New(remote, cfg.Explanation.CacheTTL)

	var runs *postgres.RunRepository
	if cfg.Database.URL != "" {
		db, err := sqlx.Connect("postgres", cfg.Database.URL)
		if err != nil {
			log.Printf("run-history database unavailable, runs will not be persisted: %v", err)
		} else {
			runs = postgres.NewRunRepository(db)
		}
	} else {
		runs = postgres.NewRunRepository(nil)
	}

	generator := app.NewLocationGenerator(gridSvc, scoringSvc, constraints, portfolios, guardrails, ops)

	return &services{
		generator:    generator,
		pareto:       paretoSvc,
		scenario:     scenarioSvc,
		stability:    stabilitySvc,
		backtest:     backtestSvc,
		fairness:     fairnessSvc,
		constraints:  constraints,
		portfolios:   portfolios,
		explanations: explanations,
		ops:          ops,
		runs:         runs,
	}
}

func parseCommon(args []string) (requestPath, workbookPath string) {
	fs := flag.NewFlagSet("sitegen-cli", flag.ExitOnError)
	fs.StringVar(&requestPath, "request", "", "path to the generation request JSON file")
	fs.StringVar(&workbookPath, "workbook", "", "optional path to a reference-data workbook (stores/competitors/population)")
	_ = fs.Parse(args)
	if requestPath == "" {
		fmt.Fprintln(os.Stderr, "-request is required")
		os.Exit(2)
	}
	return requestPath, workbookPath
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Fatalf("encode result: %v", err)
	}
}

func buildRequest(sf scenarioFile) app.Request {
	return app.Request{
		Country:            sf.Country,
		Weights:            sf.Weights,
		TargetK:            sf.TargetK,
		MinSpacingKm:       sf.MinSpacingKm,
		Seed:               sf.Seed,
		DataVersions:       sf.DataVersions,
		Resolution:         sf.Resolution,
		Population:         sf.Population,
		Stores:             sf.Stores,
		Competitors:        sf.Competitors,
		Anchors:            sf.Anchors,
		TravelMinutes:      sf.TravelMinutes,
		RefinementWindowKm: sf.RefinementWindowKm,
		Mode:               sf.Mode,
		EnableAI:           sf.EnableAI,
		ExplainTopN:        sf.ExplainTopN,
	}
}

func runGenerate(ctx context.Context, cfg *config.Config, args []string) {
	requestPath, workbookPath := parseCommon(args)
	sf, err := loadScenario(requestPath)
	if err != nil {
		log.Fatal(err)
	}
	if err := mergeWorkbook(&sf, workbookPath); err != nil {
		log.Fatal(err)
	}

	svc := buildServices(cfg)

	req := buildRequest(sf)
	if err := req.Validate(); err != nil {
		log.Fatalf("invalid request: %v", err)
	}

	start := time.Now()
	result, err := svc.generator.Generate(ctx, req)
	if err != nil {
		log.Fatalf("generation failed: %v", err)
	}
	log.Printf("generated %d selected sites for %s in %s", result.Portfolio.SelectedCount, sf.Country.CountryCode, time.Since(start))

	if svc.runs != nil {
		record := ports.RunRecord{
			RunID:         result.RunID,
			CountryCode:   sf.Country.CountryCode,
			Seed:          strconv.FormatInt(sf.Seed, 10),
			ScenarioHash:  result.Reproducibility.ScenarioHash,
			DataVersions:  sf.DataVersions,
			SelectedCount: result.Portfolio.SelectedCount,
			CreatedAt:     core.Now(),
		}
		if err := svc.runs.SaveRun(ctx, record); err != nil {
			log.Printf("failed to persist run record: %v", err)
		}
	}

	explainTopN := req.ExplainTopN
	if explainTopN == 0 && req.EnableAI {
		explainTopN = 5
	}
	if explainTopN > 0 {
		type explainedSite struct {
			CandidateID string
			Explanation ports.ExplanationResult
			CacheHit    bool
			Degraded    bool
		}
		var explained []explainedSite
		for _, c := range result.Sites {
			if c.Status != site.StatusSelected {
				continue
			}
			if len(explained) >= explainTopN {
				break
			}
			expReq := ports.ExplanationRequest{
				Mode:              sf.Mode,
				Population:        c.Features.Population,
				NearestBrandKm:    c.Features.NearestBrandKm,
				CompetitorDensity: c.Features.CompetitorDensity,
				AnchorScore:       c.Features.Anchors.DiminishingScore,
				PerformanceProxy:  c.Features.PerformanceProxy,
				FinalScore:        c.Scores.Final,
			}
			exp, cacheHit, degraded := svc.explanations.Explain(ctx, sf.Country.CountryCode, expReq, "v1")
			explained = append(explained, explainedSite{CandidateID: c.ID.String(), Explanation: exp, CacheHit: cacheHit, Degraded: degraded})
		}
		printJSON(struct {
			Result       *app.Result
			Explanations []explainedSite
		}{result, explained})
		return
	}

	printJSON(result)
}

func runPareto(ctx context.Context, cfg *config.Config, args []string) {
	_ = ctx
	requestPath, workbookPath := parseCommon(args)
	sf, err := loadScenario(requestPath)
	if err != nil {
		log.Fatal(err)
	}
	if err := mergeWorkbook(&sf, workbookPath); err != nil {
		log.Fatal(err)
	}

	svc := buildServices(cfg)
	candidates := rankedCandidates(svc, sf)

	cfgC := constraint.Config{MinSpacingM: sf.MinSpacingKm * 1000, MinCompleteness: constraint.DefaultMinCompleteness, TargetK: sf.TargetK, Country: sf.Country}
	points := svc.pareto.Sweep(candidates, sf.Stores, cfgC, sf.Country)
	printJSON(points)
}

func runScenario(ctx context.Context, cfg *config.Config, args []string) {
	_ = ctx
	fs := flag.NewFlagSet("scenario", flag.ExitOnError)
	var requestPath, workbookPath, mode string
	fs.StringVar(&requestPath, "request", "", "path to the generation request JSON file")
	fs.StringVar(&workbookPath, "workbook", "", "optional reference-data workbook")
	fs.StringVar(&mode, "mode", string(scenario.ModeBalanced), "scenario mode: Defend|Balanced|Blitz")
	_ = fs.Parse(args)
	if requestPath == "" {
		log.Fatal("-request is required")
	}

	sf, err := loadScenario(requestPath)
	if err != nil {
		log.Fatal(err)
	}
	if err := mergeWorkbook(&sf, workbookPath); err != nil {
		log.Fatal(err)
	}

	svc := buildServices(cfg)
	candidates := rankedCandidates(svc, sf)
	cfgC := constraint.Config{MinSpacingM: sf.MinSpacingKm * 1000, MinCompleteness: constraint.DefaultMinCompleteness, TargetK: sf.TargetK, Country: sf.Country}

	result, err := svc.scenario.Switch(scenario.Mode(mode), candidates, sf.Weights, sf.Stores, cfgC, sf.Country, sf.TargetK, siteConfigHash(sf))
	if err != nil {
		log.Fatalf("scenario switch failed: %v", err)
	}
	printJSON(result)
}

func runStability(ctx context.Context, cfg *config.Config, args []string) {
	requestPath, workbookPath := parseCommon(args)
	sf, err := loadScenario(requestPath)
	if err != nil {
		log.Fatal(err)
	}
	if err := mergeWorkbook(&sf, workbookPath); err != nil {
		log.Fatal(err)
	}

	svc := buildServices(cfg)
	candidates := rankedCandidates(svc, sf)
	cfgC := constraint.Config{MinSpacingM: sf.MinSpacingKm * 1000, MinCompleteness: constraint.DefaultMinCompleteness, TargetK: sf.TargetK, Country: sf.Country}

	result, err := svc.stability.Analyze(ctx, candidates, sf.Weights, sf.Stores, cfgC, sf.TargetK, "cli-run", sf.Seed)
	if err != nil {
		log.Fatalf("stability analysis failed: %v", err)
	}
	printJSON(result)
}

func runBacktest(ctx context.Context, cfg *config.Config, args []string) {
	_ = ctx
	fs := flag.NewFlagSet("backtest", flag.ExitOnError)
	var requestPath, workbookPath string
	var iterations int
	var maskPct, distanceKm float64
	fs.StringVar(&requestPath, "request", "", "path to the generation request JSON file")
	fs.StringVar(&workbookPath, "workbook", "", "optional reference-data workbook")
	fs.IntVar(&iterations, "iterations", 20, "number of mask/measure iterations")
	fs.Float64Var(&maskPct, "mask-pct", 0.2, "fraction of existing stores to mask per iteration")
	fs.Float64Var(&distanceKm, "distance-threshold-km", 5.0, "hit distance threshold in km")
	_ = fs.Parse(args)
	if requestPath == "" {
		log.Fatal("-request is required")
	}

	sf, err := loadScenario(requestPath)
	if err != nil {
		log.Fatal(err)
	}
	if err := mergeWorkbook(&sf, workbookPath); err != nil {
		log.Fatal(err)
	}

	svc := buildServices(cfg)
	candidates := rankedCandidates(svc, sf)
	cfgC := constraint.Config{MinSpacingM: sf.MinSpacingKm * 1000, MinCompleteness: constraint.DefaultMinCompleteness, TargetK: sf.TargetK, Country: sf.Country}

	result := svc.backtest.Run(candidates, sf.Stores, cfgC, sf.TargetK, iterations, maskPct, distanceKm, sf.Country, sf.Seed)
	printJSON(result)
}

func runFairness(ctx context.Context, cfg *config.Config, args []string) {
	_ = ctx
	requestPath, workbookPath := parseCommon(args)
	sf, err := loadScenario(requestPath)
	if err != nil {
		log.Fatal(err)
	}
	if err := mergeWorkbook(&sf, workbookPath); err != nil {
		log.Fatal(err)
	}

	svc := buildServices(cfg)
	req := buildRequest(sf)
	if err := req.Validate(); err != nil {
		log.Fatalf("invalid request: %v", err)
	}
	result, err := svc.generator.Generate(ctx, req)
	if err != nil {
		log.Fatalf("generation failed: %v", err)
	}

	var selected []*site.Candidate
	for _, c := range result.Sites {
		if c.Status == site.StatusSelected {
			selected = append(selected, c)
		}
	}
	report := svc.fairness.Analyze(selected, sf.Country, 0.15)
	printJSON(report)
}

// rankedCandidates runs the grid/feature/scoring stages of Generate
// without the shortlist/refinement/portfolio stages, for the analyses
// that want the full scored candidate pool rather than one portfolio.
func rankedCandidates(svc *services, sf scenarioFile) []*site.Candidate {
	gridSvc := grid.New()
	scoringSvc := scoring.New()
	resolution := sf.Resolution
	if resolution <= 0 {
		resolution = grid.DefaultResolution
	}
	cells := gridSvc.GenerateCountryGrid(sf.Country.Boundary, resolution)

	features := feature.New(sf.Population, sf.Stores, sf.Competitors, sf.Anchors, nil)
	candidates := make([]*site.Candidate, 0, len(cells))
	for _, cell := range cells {
		f, estimated := features.ComputeBasicFeatures(cell.Center)
		region, _ := constraint.ResolveRegion(cell.Center, sf.Country)
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

	scoringSvc.ScoreAll(candidates, sf.Weights.Normalized())
	scoring.Rank(candidates)
	return candidates
}

func runCounterfactual(ctx context.Context, cfg *config.Config, args []string) {
	_ = ctx
	fs := flag.NewFlagSet("counterfactual", flag.ExitOnError)
	var requestPath, workbookPath, candidateID, target string
	fs.StringVar(&requestPath, "request", "", "path to the generation request JSON file")
	fs.StringVar(&workbookPath, "workbook", "", "optional reference-data workbook")
	fs.StringVar(&candidateID, "candidate", "", "candidate id to analyze")
	fs.StringVar(&target, "target", string(counterfactual.TargetNextRank), "target rank: next_rank|top_10|top_5")
	_ = fs.Parse(args)
	if requestPath == "" || candidateID == "" {
		log.Fatal("-request and -candidate are required")
	}

	sf, err := loadScenario(requestPath)
	if err != nil {
		log.Fatal(err)
	}
	if err := mergeWorkbook(&sf, workbookPath); err != nil {
		log.Fatal(err)
	}

	svc := buildServices(cfg)
	candidates := rankedCandidates(svc, sf)

	result, ok := counterfactual.Analyze(candidates, core.CandidateID(candidateID), counterfactual.TargetRank(target), sf.Weights.Normalized())
	if !ok {
		log.Fatalf("candidate %s not found in the ranked pool", candidateID)
	}
	printJSON(result)
}

func siteConfigHash(sf scenarioFile) core.ConfigHash {
	return core.NewConfigHash([]byte(fmt.Sprintf("%s|%d|%.6f", sf.Country.CountryCode, sf.TargetK, sf.MinSpacingKm)))
}
