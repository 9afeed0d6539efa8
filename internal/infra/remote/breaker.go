package remote

import (
	"errors"
	"sync"
	"time"

	"github.com/ecolearn/ecolearn/internal/infra/metrics"
)

// ErrBreakerOpen is returned while the backend is considered down.
var ErrBreakerOpen = errors.New("remote backend circuit open")

// ═══════════════════════════════════════════════════════════════════════════
// Circuit Breaker
// ═══════════════════════════════════════════════════════════════════════════

// BreakerState is the circuit state guarding backend pushes.
type BreakerState int

const (
	BreakerClosed   BreakerState = iota // pushes go through
	BreakerOpen                         // pushes are held back
	BreakerHalfOpen                     // probing with live pushes
)

// String returns a human-readable breaker state.
func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures a Breaker.
type BreakerConfig struct {
	FailureThreshold int           // consecutive-ish failures to trip (default 5)
	ResetTimeout     time.Duration // time open before probing (default 30s)
	HalfOpenProbes   int           // successes needed to close again (default 2)
}

// DefaultBreakerConfig returns production defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
		HalfOpenProbes:   2,
	}
}

// Breaker stops the syncer from hammering a backend that keeps failing.
// Safe for concurrent use.
type Breaker struct {
	mu        sync.Mutex
	cfg       BreakerConfig
	state     BreakerState
	failures  int
	successes int
	trippedAt time.Time
	trips     int
	now       func() time.Time
}

// NewBreaker creates a closed breaker. Zero config fields take defaults.
func NewBreaker(cfg BreakerConfig) *Breaker {
	def := DefaultBreakerConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = def.ResetTimeout
	}
	if cfg.HalfOpenProbes <= 0 {
		cfg.HalfOpenProbes = def.HalfOpenProbes
	}
	return &Breaker{cfg: cfg, now: time.Now}
}

// Allow reports whether a push may be attempted now.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.advance()
	if b.state == BreakerOpen {
		return ErrBreakerOpen
	}
	return nil
}

// Success records a push that went through.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerHalfOpen:
		b.successes++
		if b.successes >= b.cfg.HalfOpenProbes {
			b.set(BreakerClosed)
			b.failures = 0
		}
	case BreakerClosed:
		// Decay instead of reset so a flapping backend still trips.
		if b.failures > 0 {
			b.failures--
		}
	}
}

// Failure records a failed push and may trip the breaker.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.trip()
		}
	case BreakerHalfOpen:
		b.trip()
	}
}

// State returns the current state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advance()
	return b.state
}

// Trips returns how many times the breaker has opened.
func (b *Breaker) Trips() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.trips
}

// advance moves OPEN to HALF_OPEN once the reset timeout has elapsed.
// Caller holds mu.
func (b *Breaker) advance() {
	if b.state == BreakerOpen && b.now().Sub(b.trippedAt) >= b.cfg.ResetTimeout {
		b.set(BreakerHalfOpen)
	}
}

func (b *Breaker) trip() {
	b.set(BreakerOpen)
	b.trippedAt = b.now()
	b.trips++
}

func (b *Breaker) set(s BreakerState) {
	b.state = s
	b.successes = 0
	metrics.SyncBreakerState.Set(float64(s))
}
