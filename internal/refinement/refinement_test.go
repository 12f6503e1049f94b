package refinement

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitegen/domain/core"
	"sitegen/domain/site"
	"sitegen/internal/feature"
	"sitegen/internal/grid"
)

func TestRefineEmptyCandidatesIsNoop(t *testing.T) {
	features := feature.New(nil, nil, nil, nil, nil)
	svc := New(features, grid.New(), 0, 0)
	report := svc.Refine(context.Background(), nil, nil)
	assert.Equal(t, Report{}, report)
}

func TestRefineUpdatesCandidateFeaturesFromWindows(t *testing.T) {
	cells := []feature.PopulationCell{{Point: site.LatLng{Lat: 52.5, Lng: 13.4}, Population: 9000}}
	features := feature.New(cells, nil, nil, nil, nil)
	svc := New(features, grid.New(), 0, 4)

	candidates := []*site.Candidate{
		{ID: core.CandidateID("cellA"), Point: site.LatLng{Lat: 52.5, Lng: 13.4}},
	}
	windows := []grid.Window{
		{ID: 0, Cells: []grid.Cell{{Index: "cellA", Center: site.LatLng{Lat: 52.5, Lng: 13.4}}}},
	}

	report := svc.Refine(context.Background(), candidates, windows)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 1.0, report.Efficiency)
	assert.Equal(t, 9000, candidates[0].Features.Population)
}

func TestRefineOverlappingWindowsClaimCandidateOnce(t *testing.T) {
	cells := []feature.PopulationCell{{Point: site.LatLng{Lat: 52.5, Lng: 13.4}, Population: 1000}}
	features := feature.New(cells, nil, nil, nil, nil)
	svc := New(features, grid.New(), 0, 4)

	candidates := []*site.Candidate{{ID: core.CandidateID("cellA"), Point: site.LatLng{Lat: 52.5, Lng: 13.4}}}
	cell := grid.Cell{Index: "cellA", Center: site.LatLng{Lat: 52.5, Lng: 13.4}}
	windows := []grid.Window{
		{ID: 0, Cells: []grid.Cell{cell}},
		{ID: 1, Cells: []grid.Cell{cell}},
	}

	report := svc.Refine(context.Background(), candidates, windows)
	assert.Equal(t, 1, report.Processed)
}

func TestRefineSkipsCellsNotInCandidateSet(t *testing.T) {
	features := feature.New(nil, nil, nil, nil, nil)
	svc := New(features, grid.New(), 0, 4)

	candidates := []*site.Candidate{{ID: core.CandidateID("known"), Point: site.LatLng{Lat: 0, Lng: 0}}}
	windows := []grid.Window{
		{ID: 0, Cells: []grid.Cell{{Index: "unknown", Center: site.LatLng{Lat: 1, Lng: 1}}}},
	}

	report := svc.Refine(context.Background(), candidates, windows)
	assert.Equal(t, 0, report.Processed)
}

func TestNewDefaultsMaxConcurrency(t *testing.T) {
	svc := New(feature.New(nil, nil, nil, nil, nil), grid.New(), 0, 0)
	require.Equal(t, 8, svc.maxConcurrency)
}
