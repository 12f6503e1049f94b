// Package operations implements OperationsService: concurrency admission,
// rate limiting, token budget accounting, per-request timeouts, and the
// run-level time/memory budget and health state. Admission is checked
// per named resource (isochrone calls, explanation calls, tokens), each
// with its own counter and limiter.
package operations

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"sitegen/internal/errors"
)

// Health is the run's derived operational state.
type Health string

const (
	HealthHealthy  Health = "healthy"
	HealthDegraded Health = "degraded"
	HealthCritical Health = "critical"
)

const (
	DefaultIsochroneConcurrency  = 10
	DefaultExplanationConcurrency = 5

	DefaultIsochroneRatePerMin  = 300
	DefaultExplanationRatePerMin = 60

	DefaultTokenBudget = 20000

	DefaultRequestTimeout    = 30 * time.Second
	DefaultMaxExecutionTime  = 10 * time.Minute
	DefaultMemoryLimitMB     = 2048
)

// bucket is a simple token-bucket rate limiter: capacity tokens refilled
// continuously at rate tokens/sec, drained one-per-call.
type bucket struct {
	mu       sync.Mutex
	capacity float64
	tokens   float64
	rate     float64 // tokens per second
	last     time.Time
}

func newBucket(perMinute int) *bucket {
	rate := float64(perMinute) / 60.0
	return &bucket{capacity: float64(perMinute), tokens: float64(perMinute), rate: rate, last: time.Now()}
}

// allow reports whether a slot is available, and if not, how long the
// caller should advise waiting before the next token arrives.
func (b *bucket) allow() (bool, time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(b.last).Seconds()
	b.tokens += elapsed * b.rate
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.last = now

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	wait := time.Duration((1 - b.tokens) / b.rate * float64(time.Second))
	return false, wait
}

// Config bundles the limits a Service enforces.
type Config struct {
	IsochroneConcurrency   int64
	ExplanationConcurrency int64
	IsochroneRatePerMin    int
	ExplanationRatePerMin  int
	TokenBudget            int64
	RequestTimeout         time.Duration
	MaxExecutionTime       time.Duration
	MemoryLimitMB          int64
}

// DefaultConfig returns the default operational limits.
func DefaultConfig() Config {
	return Config{
		IsochroneConcurrency:   DefaultIsochroneConcurrency,
		ExplanationConcurrency: DefaultExplanationConcurrency,
		IsochroneRatePerMin:    DefaultIsochroneRatePerMin,
		ExplanationRatePerMin:  DefaultExplanationRatePerMin,
		TokenBudget:            DefaultTokenBudget,
		RequestTimeout:         DefaultRequestTimeout,
		MaxExecutionTime:       DefaultMaxExecutionTime,
		MemoryLimitMB:          DefaultMemoryLimitMB,
	}
}

// Metrics is the live, read-only snapshot OperationsService exposes for
// health derivation and reporting.
type Metrics struct {
	IsochroneInFlight   int64
	ExplanationInFlight int64
	TokensUsed          int64
	TokenBudget         int64
	Elapsed             time.Duration
	MaxExecutionTime    time.Duration
	Health              Health
	Degraded            bool
}

// Service implements the O component. One Service is scoped to a single
// generation run.
type Service struct {
	cfg Config

	isochroneSem   *semaphore.Weighted
	explanationSem *semaphore.Weighted
	isochroneRate   *bucket
	explanationRate *bucket

	started time.Time

	mu             sync.Mutex
	tokensUsed     int64
	isochroneBusy   int64
	explanationBusy int64
	degraded        bool
}

func New(cfg Config) *Service {
	if cfg.IsochroneConcurrency <= 0 {
		cfg.IsochroneConcurrency = DefaultIsochroneConcurrency
	}
	if cfg.ExplanationConcurrency <= 0 {
		cfg.ExplanationConcurrency = DefaultExplanationConcurrency
	}
	if cfg.IsochroneRatePerMin <= 0 {
		cfg.IsochroneRatePerMin = DefaultIsochroneRatePerMin
	}
	if cfg.ExplanationRatePerMin <= 0 {
		cfg.ExplanationRatePerMin = DefaultExplanationRatePerMin
	}
	if cfg.TokenBudget <= 0 {
		cfg.TokenBudget = DefaultTokenBudget
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.MaxExecutionTime <= 0 {
		cfg.MaxExecutionTime = DefaultMaxExecutionTime
	}
	if cfg.MemoryLimitMB <= 0 {
		cfg.MemoryLimitMB = DefaultMemoryLimitMB
	}

	return &Service{
		cfg:             cfg,
		isochroneSem:    semaphore.NewWeighted(cfg.IsochroneConcurrency),
		explanationSem:  semaphore.NewWeighted(cfg.ExplanationConcurrency),
		isochroneRate:   newBucket(cfg.IsochroneRatePerMin),
		explanationRate: newBucket(cfg.ExplanationRatePerMin),
		started:         time.Now(),
	}
}

// AcquireIsochrone takes an isochrone rate-limit token, then blocks until
// a call slot is free or ctx/the request timeout expires. An exhausted
// rate limit fails at once with a retry-after hint instead of waiting.
func (s *Service) AcquireIsochrone(ctx context.Context) (release func(), err error) {
	return s.acquire(ctx, s.isochroneSem, s.isochroneRate, &s.isochroneBusy, "isochrone")
}

// AcquireExplanation takes an explanation rate-limit token, then blocks
// until a call slot is free or ctx/the request timeout expires. An
// exhausted rate limit fails at once with a retry-after hint instead of
// waiting.
func (s *Service) AcquireExplanation(ctx context.Context) (release func(), err error) {
	return s.acquire(ctx, s.explanationSem, s.explanationRate, &s.explanationBusy, "explanation")
}

func (s *Service) acquire(ctx context.Context, sem *semaphore.Weighted, rate *bucket, busy *int64, name string) (func(), error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	if ok, wait := rate.allow(); !ok {
		return nil, fmt.Errorf("operations: %s rate limit exceeded, retry after %v", name, wait)
	}
	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("operations: %s concurrency admission failed: %w", name, err)
	}

	s.mu.Lock()
	*busy++
	s.mu.Unlock()

	return func() {
		sem.Release(1)
		s.mu.Lock()
		*busy--
		s.mu.Unlock()
	}, nil
}

// ReserveTokens admits a token-budget spend, failing if it would exceed
// the run's total budget.
func (s *Service) ReserveTokens(count int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tokensUsed+count > s.cfg.TokenBudget {
		return errors.Degradation(fmt.Sprintf("token budget exhausted: used %d, requested %d, budget %d", s.tokensUsed, count, s.cfg.TokenBudget))
	}
	s.tokensUsed += count
	return nil
}

// SetDegraded flips the run into degraded mode. It is idempotent and
// monotonic: once degraded, a run never un-degrades.
func (s *Service) SetDegraded() {
	s.mu.Lock()
	s.degraded = true
	s.mu.Unlock()
}

// CheckRunBudget reports a fatal system-limit error once the run's
// elapsed wall time exceeds maxExecutionTime. Memory is not measured
// directly; callers pass their own estimate.
func (s *Service) CheckRunBudget(estimatedMemoryMB int64) error {
	if time.Since(s.started) > s.cfg.MaxExecutionTime {
		return errors.SystemLimit(fmt.Sprintf("run exceeded max execution time of %v", s.cfg.MaxExecutionTime))
	}
	if estimatedMemoryMB > s.cfg.MemoryLimitMB {
		return errors.SystemLimit(fmt.Sprintf("run exceeded memory limit of %d MB", s.cfg.MemoryLimitMB))
	}
	return nil
}

// Snapshot returns the live metrics and derived health state.
func (s *Service) Snapshot() Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()

	elapsed := time.Since(s.started)
	health := HealthHealthy
	switch {
	case elapsed > s.cfg.MaxExecutionTime:
		health = HealthCritical
	case s.degraded, elapsed > s.cfg.MaxExecutionTime/2, s.tokensUsed > s.cfg.TokenBudget*8/10:
		health = HealthDegraded
	}

	return Metrics{
		IsochroneInFlight:   s.isochroneBusy,
		ExplanationInFlight: s.explanationBusy,
		TokensUsed:          s.tokensUsed,
		TokenBudget:         s.cfg.TokenBudget,
		Elapsed:             elapsed,
		MaxExecutionTime:    s.cfg.MaxExecutionTime,
		Health:              health,
		Degraded:            s.degraded,
	}
}

// Degraded reports the monotonic degraded flag without the rest of the
// snapshot.
func (s *Service) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

// UniquenessGate evaluates rationale-uniqueness scores against the
// degraded-mode thresholds (mean <0.3 or 5th percentile <0.1) and flips
// the service degraded if either fails.
func (s *Service) UniquenessGate(scores []float64) {
	if len(scores) == 0 {
		return
	}
	var sum float64
	for _, v := range scores {
		sum += v
	}
	mean := sum / float64(len(scores))

	sorted := append([]float64(nil), scores...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	idx := int(0.05 * float64(len(sorted)-1))
	p5 := sorted[idx]

	if mean < 0.3 || p5 < 0.1 {
		s.SetDegraded()
	}
}
