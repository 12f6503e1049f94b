// Package excelio reads the workbook input boundary: existing stores,
// competitor locations, and population cells as an alternative to the
// JSON generation request. Excel and CSV are accepted; sheet and column
// names are fixed by convention.
package excelio

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"sitegen/domain/site"
)

const (
	sheetStores      = "Stores"
	sheetCompetitors = "Competitors"
	sheetPopulation  = "Population"
)

// Reader loads reference data from a workbook.
type Reader struct {
	filePath string
}

func NewReader(filePath string) *Reader {
	return &Reader{filePath: filePath}
}

// PopulationRow is one population-grid cell from the Population sheet.
// HexIndex is optional; cells are matched by point downstream.
type PopulationRow struct {
	Point      site.LatLng
	Population int64
	HexIndex   string
}

// Workbook is everything the reader can extract from the file.
type Workbook struct {
	Stores          []site.ExistingStore
	Competitors     []site.CompetitorLocation
	PopulationCells []PopulationRow
}

// Load opens the workbook and reads each known sheet that is present.
// Sheets are optional: a workbook with only Stores is valid.
func (r *Reader) Load() (*Workbook, error) {
	start := time.Now()
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("excelio: open %s: %w", r.filePath, err)
	}
	defer f.Close()
	log.Printf("[excelio] opened %s in %.2fms", r.filePath, float64(time.Since(start).Nanoseconds())/1e6)

	wb := &Workbook{}

	if rows, err := f.GetRows(sheetStores); err == nil {
		wb.Stores, err = parseStores(rows)
		if err != nil {
			return nil, fmt.Errorf("excelio: sheet %s: %w", sheetStores, err)
		}
	}

	if rows, err := f.GetRows(sheetCompetitors); err == nil {
		wb.Competitors, err = parseCompetitors(rows)
		if err != nil {
			return nil, fmt.Errorf("excelio: sheet %s: %w", sheetCompetitors, err)
		}
	}

	if rows, err := f.GetRows(sheetPopulation); err == nil {
		wb.PopulationCells, err = parsePopulation(rows)
		if err != nil {
			return nil, fmt.Errorf("excelio: sheet %s: %w", sheetPopulation, err)
		}
	}

	return wb, nil
}

// expects header: id, name, lat, lng, turnover
func parseStores(rows [][]string) ([]site.ExistingStore, error) {
	if len(rows) < 2 {
		return nil, nil
	}
	var out []site.ExistingStore
	for i, row := range rows[1:] {
		if len(row) < 4 || allBlank(row) {
			continue
		}
		lat, err := parseFloat(row, 2)
		if err != nil {
			return nil, fmt.Errorf("row %d: lat: %w", i+2, err)
		}
		lng, err := parseFloat(row, 3)
		if err != nil {
			return nil, fmt.Errorf("row %d: lng: %w", i+2, err)
		}
		turnover := 0.0
		if len(row) > 4 {
			turnover, _ = strconv.ParseFloat(strings.TrimSpace(row[4]), 64)
		}
		out = append(out, site.ExistingStore{
			ID:       cell(row, 0),
			Name:     cell(row, 1),
			Point:    site.LatLng{Lat: lat, Lng: lng},
			Turnover: turnover,
		})
	}
	return out, nil
}

// expects header: lat, lng
func parseCompetitors(rows [][]string) ([]site.CompetitorLocation, error) {
	if len(rows) < 2 {
		return nil, nil
	}
	var out []site.CompetitorLocation
	for i, row := range rows[1:] {
		if len(row) < 2 || allBlank(row) {
			continue
		}
		lat, err := parseFloat(row, 0)
		if err != nil {
			return nil, fmt.Errorf("row %d: lat: %w", i+2, err)
		}
		lng, err := parseFloat(row, 1)
		if err != nil {
			return nil, fmt.Errorf("row %d: lng: %w", i+2, err)
		}
		out = append(out, site.CompetitorLocation{Point: site.LatLng{Lat: lat, Lng: lng}})
	}
	return out, nil
}

// expects header: lat, lng, population, hex_index (optional)
func parsePopulation(rows [][]string) ([]PopulationRow, error) {
	if len(rows) < 2 {
		return nil, nil
	}
	var out []PopulationRow
	for i, row := range rows[1:] {
		if len(row) < 3 || allBlank(row) {
			continue
		}
		lat, err := parseFloat(row, 0)
		if err != nil {
			return nil, fmt.Errorf("row %d: lat: %w", i+2, err)
		}
		lng, err := parseFloat(row, 1)
		if err != nil {
			return nil, fmt.Errorf("row %d: lng: %w", i+2, err)
		}
		pop, err := strconv.ParseInt(strings.TrimSpace(row[2]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: population: %w", i+2, err)
		}
		if pop < 0 {
			return nil, fmt.Errorf("row %d: population must not be negative", i+2)
		}
		out = append(out, PopulationRow{
			Point:      site.LatLng{Lat: lat, Lng: lng},
			Population: pop,
			HexIndex:   cell(row, 3),
		})
	}
	return out, nil
}

func cell(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func parseFloat(row []string, idx int) (float64, error) {
	if idx >= len(row) {
		return 0, fmt.Errorf("missing column %d", idx)
	}
	return strconv.ParseFloat(strings.TrimSpace(row[idx]), 64)
}

func allBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
