package explanation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"sitegen/ports"
)

const DefaultCacheTTL = 24 * time.Hour

type cacheEntry struct {
	result  ports.ExplanationResult
	expires time.Time
}

// Service implements the E component: template tier always, remote tier
// optionally behind a process-scoped cache with TTL eviction on read.
type Service struct {
	remote ports.ExplanationProvider
	ttl    time.Duration

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// New builds an explanation service. remote may be nil, in which case
// every call uses the template tier.
func New(remote ports.ExplanationProvider, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Service{remote: remote, ttl: ttl, cache: make(map[string]cacheEntry)}
}

// Explain returns a remote explanation on a cache hit or successful
// remote call, else the deterministic template. degraded is true when
// the remote tier was unavailable or failed and the template was used
// as a fallback rather than by configuration (remote == nil never
// counts as degraded: that is normal template-only operation).
func (s *Service) Explain(ctx context.Context, countryCode string, req ports.ExplanationRequest, version string) (result ports.ExplanationResult, cacheHit bool, degraded bool) {
	key := cacheKey(countryCode, req, version)

	s.mu.Lock()
	if entry, ok := s.cache[key]; ok {
		if time.Now().Before(entry.expires) {
			s.mu.Unlock()
			return entry.result, true, false
		}
		delete(s.cache, key)
	}
	s.mu.Unlock()

	if s.remote == nil {
		return Template(req), false, false
	}

	remoteResult, err := s.remote.Explain(ctx, req)
	if err != nil || !validResult(remoteResult) {
		return Template(req), false, true
	}

	s.mu.Lock()
	s.cache[key] = cacheEntry{result: remoteResult, expires: time.Now().Add(s.ttl)}
	s.mu.Unlock()

	return remoteResult, false, false
}

func validResult(r ports.ExplanationResult) bool {
	if len(r.PrimaryReason) == 0 || len(r.PrimaryReason) > maxPrimaryReasonLen {
		return false
	}
	switch r.Confidence {
	case "high", "medium", "low":
	default:
		return false
	}
	return true
}

func cacheKey(countryCode string, req ports.ExplanationRequest, version string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%d|%.4f|%.4f|%.4f|%.4f|%.4f|%s",
		countryCode, req.Mode, req.Population, req.NearestBrandKm, req.CompetitorDensity,
		req.AnchorScore, req.PerformanceProxy, req.FinalScore, version)
	return hex.EncodeToString(h.Sum(nil))
}
