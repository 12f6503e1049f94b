// Package explanation implements ExplanationService: a deterministic
// template tier (always available) plus an optional remote tier behind
// a process-scoped TTL cache. The template tier turns a candidate's
// numerics into one short fixed-form sentence, so a run never depends on
// the remote tier being reachable.
package explanation

import (
	"fmt"
	"strings"

	"sitegen/ports"
)

const maxPrimaryReasonLen = 160

// Template deterministically renders an ExplanationResult from numerics
// alone. It never errors and never calls out.
func Template(req ports.ExplanationRequest) ports.ExplanationResult {
	primary := primarySentence(req)
	if len(primary) > maxPrimaryReasonLen {
		// "…" is 3 bytes; keep the total within the 160-byte contract.
		primary = primary[:maxPrimaryReasonLen-3] + "…"
	}

	return ports.ExplanationResult{
		PrimaryReason: primary,
		Risks:         risks(req),
		Actions:       actions(req),
		Confidence:    confidence(req),
	}
}

func primarySentence(req ports.ExplanationRequest) string {
	mode := strings.ToLower(req.Mode)
	if mode == "" {
		mode = "balanced"
	}
	return fmt.Sprintf(
		"Scored %.2f under %s mode: catchment population %d, nearest store %.1f km away, %.2f anchors/competitor-adjusted.",
		req.FinalScore, mode, req.Population, req.NearestBrandKm, req.AnchorScore,
	)
}

func risks(req ports.ExplanationRequest) []string {
	var out []string
	if req.CompetitorDensity > 0.5 {
		out = append(out, "competitor density is high in this catchment")
	}
	if req.NearestBrandKm < 1 {
		out = append(out, "close to an existing store, possible cannibalization")
	}
	if req.PerformanceProxy < 0.3 {
		out = append(out, "comparable site performance proxy is weak")
	}
	if len(out) == 0 {
		out = append(out, "no material risk flags from available numerics")
	}
	return out
}

func actions(req ports.ExplanationRequest) []string {
	var out []string
	if req.AnchorScore < 0.3 {
		out = append(out, "verify nearby anchor footfall on the ground before committing")
	}
	if req.Population < 5000 {
		out = append(out, "confirm catchment population with a secondary source")
	}
	out = append(out, "review against current scenario mode before finalizing")
	return out
}

func confidence(req ports.ExplanationRequest) string {
	switch {
	case req.FinalScore >= 0.7:
		return "high"
	case req.FinalScore >= 0.4:
		return "medium"
	default:
		return "low"
	}
}
