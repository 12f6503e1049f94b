// Package constraint implements ConstraintService: spacing, regional-share
// fairness, data-quality gating, metropolitan coverage, and point-in-region
// checks, plus the structured violation list the portfolio builder
// consumes. Each check is independent and produces a structured reason,
// so callers can report every violation rather than the first.
package constraint

import (
	"fmt"
	"math"
	"strings"

	"sitegen/domain/site"
	"sitegen/internal/scoring"
)

const (
	DefaultMinCompleteness = 0.5

	// DefaultMaxSaturation is the raw saturation-penalty ceiling: the
	// formula tops out at 0.8 (maximum competitor-density term plus the
	// brand-proximity term), so the default only rejects fully
	// saturated catchments.
	DefaultMaxSaturation = 0.8
)

// Config bundles the thresholds a constraint evaluation needs. TargetK
// is the portfolio's intended final size; the incremental regional cap
// keys off it rather than the running selection count.
type Config struct {
	MinSpacingM     float64
	MinCompleteness float64
	MaxSaturation   float64
	TargetK         int
	Country         site.CountryConfig
}

// Service implements the C component.
type Service struct{}

func New() *Service { return &Service{} }

// CheckSpacing reports a spacing violation when candidate lies closer than
// minSpacingM meters to any existing store or any already-selected
// candidate, ignoring the candidate itself if present in selected. It
// returns nil when every distance is at least minSpacingM.
func CheckSpacing(candidate *site.Candidate, stores []site.ExistingStore, selected []*site.Candidate, minSpacingM float64) *site.ConstraintViolation {
	for _, store := range stores {
		if site.HaversineM(candidate.Point, store.Point) < minSpacingM {
			return &site.ConstraintViolation{
				Reason:      site.ReasonSpacingViolation,
				Detail:      fmt.Sprintf("within %.0fm of existing store %s", minSpacingM, store.ID),
				Remediation: "choose a candidate further from existing brand locations",
			}
		}
	}
	for _, other := range selected {
		if other.ID == candidate.ID {
			continue
		}
		if site.HaversineM(candidate.Point, other.Point) < minSpacingM {
			return &site.ConstraintViolation{
				Reason:      site.ReasonSpacingViolation,
				Detail:      fmt.Sprintf("within %.0fm of selected candidate %s", minSpacingM, other.ID),
				Remediation: "increase spacing or drop one of the conflicting candidates",
			}
		}
	}
	return nil
}

// CheckRegionalShare reports the absolute regional cap violation: adding
// candidate to selected would make its region hold more than
// floor(finalCount * maxRegionShare) candidates. finalCount is targetK,
// the portfolio's intended size — keying the cap off the running
// selection count would make floor(1 * share) = 0 and reject the very
// first candidate of every build. A non-positive targetK falls back to
// the running count, which batch checks over completed sets rely on.
// The cap never drops below 1, so a selection can always bootstrap.
func CheckRegionalShare(candidate *site.Candidate, selected []*site.Candidate, maxRegionShare float64, targetK int) *site.ConstraintViolation {
	count := 1
	for _, other := range selected {
		if other.RegionID == candidate.RegionID {
			count++
		}
	}
	finalCount := targetK
	if finalCount <= 0 {
		finalCount = len(selected) + 1
	}
	cap := int(math.Floor(float64(finalCount) * maxRegionShare))
	if cap < 1 {
		cap = 1
	}
	if count > cap {
		return &site.ConstraintViolation{
			Reason:      site.ReasonRegionalShareExceeded,
			Detail:      fmt.Sprintf("region %s would hold %d candidates, cap is %d", candidate.RegionID, count, cap),
			Remediation: "select a candidate from an under-represented region instead",
		}
	}
	return nil
}

// CheckSaturation reports a violation when the candidate's raw
// saturation penalty (recomputed from competitor density and brand
// proximity, independent of run-wide normalization) reaches
// maxSaturation.
func CheckSaturation(candidate *site.Candidate, maxSaturation float64) *site.ConstraintViolation {
	if maxSaturation <= 0 {
		maxSaturation = DefaultMaxSaturation
	}
	penalty := scoring.SaturationPenalty(candidate.Features.CompetitorDensity, candidate.Features.NearestBrandKm)
	if penalty >= maxSaturation {
		return &site.ConstraintViolation{
			Reason:      site.ReasonSaturationPenalty,
			Detail:      fmt.Sprintf("saturation penalty %.2f at or above maximum %.2f", penalty, maxSaturation),
			Remediation: "target a less saturated catchment further from existing brand and competitor presence",
		}
	}
	return nil
}

// CheckDataQuality reports a violation when completeness falls below
// minCompleteness.
func CheckDataQuality(candidate *site.Candidate, minCompleteness float64) *site.ConstraintViolation {
	if minCompleteness <= 0 {
		minCompleteness = DefaultMinCompleteness
	}
	if candidate.Quality.Completeness < minCompleteness {
		return &site.ConstraintViolation{
			Reason:      site.ReasonLowCompleteness,
			Detail:      fmt.Sprintf("completeness %.2f below minimum %.2f", candidate.Quality.Completeness, minCompleteness),
			Remediation: "improve source data coverage for this cell or drop the candidate",
		}
	}
	return nil
}

// Violations runs every admission check against candidate and returns the
// full structured list (possibly empty).
func (s *Service) Violations(candidate *site.Candidate, stores []site.ExistingStore, selected []*site.Candidate, cfg Config) []site.ConstraintViolation {
	var out []site.ConstraintViolation
	if v := CheckSpacing(candidate, stores, selected, cfg.MinSpacingM); v != nil {
		out = append(out, *v)
	}
	if v := CheckRegionalShare(candidate, selected, cfg.Country.MaxRegionShare, cfg.TargetK); v != nil {
		out = append(out, *v)
	}
	if v := CheckDataQuality(candidate, cfg.MinCompleteness); v != nil {
		out = append(out, *v)
	}
	if v := CheckSaturation(candidate, cfg.MaxSaturation); v != nil {
		out = append(out, *v)
	}
	return out
}

// RegionalShareWeighted reports, for every region, whether its actual
// share of the selected set exceeds twice its population-weighted
// expected share.
type RegionalShareWeightedResult struct {
	RegionID        string
	ExpectedShare   float64
	ActualShare     float64
	Overrepresented bool
}

func RegionalShareWeighted(selected []*site.Candidate, country site.CountryConfig) []RegionalShareWeightedResult {
	var totalPop int64
	for _, r := range country.Regions {
		totalPop += r.Population
	}
	counts := make(map[string]int)
	for _, c := range selected {
		counts[c.RegionID]++
	}
	total := len(selected)

	out := make([]RegionalShareWeightedResult, 0, len(country.Regions))
	for _, r := range country.Regions {
		expected := 0.0
		if totalPop > 0 {
			expected = float64(r.Population) / float64(totalPop)
		}
		actual := 0.0
		if total > 0 {
			actual = float64(counts[r.ID]) / float64(total)
		}
		over := expected > 0 && actual/expected > 2.0
		out = append(out, RegionalShareWeightedResult{
			RegionID:        r.ID,
			ExpectedShare:   expected,
			ActualShare:     actual,
			Overrepresented: over,
		})
	}
	return out
}

// MetropolitanCoverage reports, per metro name, whether at least one
// selected candidate lies in a matching region: either the region name
// contains the metro name (case-insensitive) or the candidate's point
// precisely lies within that region's boundary.
func MetropolitanCoverage(selected []*site.Candidate, country site.CountryConfig) map[string]bool {
	covered := make(map[string]bool, len(country.MajorMetropolitanAreas))
	regionsByID := make(map[string]site.AdministrativeRegion, len(country.Regions))
	for _, r := range country.Regions {
		regionsByID[r.ID] = r
	}

	for _, metro := range country.MajorMetropolitanAreas {
		found := false
		lowerMetro := strings.ToLower(metro)
		for _, c := range selected {
			region, ok := regionsByID[c.RegionID]
			if !ok {
				continue
			}
			if strings.Contains(strings.ToLower(region.Name), lowerMetro) {
				found = true
				break
			}
			if site.PointInRegion(c.Point, region) {
				found = true
				break
			}
		}
		covered[metro] = found
	}
	return covered
}

// ResolveRegion finds the administrative region containing point, using
// the precise (or bounding-box fallback) point-in-region test. Returns
// false if no region matches.
func ResolveRegion(point site.LatLng, country site.CountryConfig) (site.AdministrativeRegion, bool) {
	for _, r := range country.Regions {
		if site.PointInRegion(point, r) {
			return r, true
		}
	}
	return site.AdministrativeRegion{}, false
}
