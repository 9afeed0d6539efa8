package remote

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ecolearn/ecolearn/internal/infra/logger"
)

func newTestBreaker(threshold int) (*Breaker, *time.Time) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	b := NewBreaker(BreakerConfig{FailureThreshold: threshold, ResetTimeout: 30 * time.Second, HalfOpenProbes: 2})
	b.now = func() time.Time { return now }
	return b, &now
}

func TestBreaker_TripsAtThreshold(t *testing.T) {
	b, _ := newTestBreaker(3)
	for i := 0; i < 2; i++ {
		b.Failure()
	}
	if b.State() != BreakerClosed {
		t.Fatalf("expected closed below threshold, got %s", b.State())
	}
	b.Failure()
	if b.State() != BreakerOpen {
		t.Fatalf("expected open at threshold, got %s", b.State())
	}
	if !errors.Is(b.Allow(), ErrBreakerOpen) {
		t.Error("Allow should fail while open")
	}
	if b.Trips() != 1 {
		t.Errorf("expected 1 trip, got %d", b.Trips())
	}
}

func TestBreaker_SuccessDecaysFailures(t *testing.T) {
	b, _ := newTestBreaker(2)
	b.Failure()
	b.Success()
	b.Failure()
	if b.State() != BreakerClosed {
		t.Errorf("success should decay the failure count, got %s", b.State())
	}
}

func TestBreaker_HalfOpenRecovery(t *testing.T) {
	b, now := newTestBreaker(1)
	b.Failure()

	*now = now.Add(31 * time.Second)
	if err := b.Allow(); err != nil {
		t.Fatalf("expected probe allowed after reset timeout, got %v", err)
	}
	if b.State() != BreakerHalfOpen {
		t.Fatalf("expected half_open, got %s", b.State())
	}
	b.Success()
	if b.State() != BreakerHalfOpen {
		t.Fatal("one probe is not enough to close")
	}
	b.Success()
	if b.State() != BreakerClosed {
		t.Errorf("expected closed after probes, got %s", b.State())
	}
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b, now := newTestBreaker(1)
	b.Failure()
	*now = now.Add(time.Minute)
	_ = b.Allow()
	b.Failure()
	if b.State() != BreakerOpen || b.Trips() != 2 {
		t.Errorf("expected reopened with 2 trips, got %s / %d", b.State(), b.Trips())
	}
}

type flakyPusher struct {
	err  error
	hits int
}

func (p *flakyPusher) PushPoints(context.Context, string, int64) error {
	p.hits++
	return p.err
}

func TestSyncer_BreakerHoldsTotals(t *testing.T) {
	p := &flakyPusher{err: errors.New("503")}
	b, now := newTestBreaker(1)
	s := NewSyncer(p, logger.Nop(), time.Second)
	s.SetBreaker(b)

	s.Notify("ana", 10)
	if err := s.Drain(context.Background()); err == nil {
		t.Fatal("expected push error")
	}

	s.Notify("ana", 20)
	err := s.Drain(context.Background())
	if !errors.Is(err, ErrBreakerOpen) {
		t.Fatalf("expected ErrBreakerOpen, got %v", err)
	}
	if p.hits != 1 {
		t.Errorf("open breaker must not call the backend, got %d calls", p.hits)
	}
	if s.Pending() != 1 {
		t.Errorf("held total should stay queued, got %d pending", s.Pending())
	}

	// Backend recovers; the probe carries the held total.
	p.err = nil
	*now = now.Add(time.Minute)
	if err := s.Drain(context.Background()); err != nil {
		t.Fatalf("Drain after recovery: %v", err)
	}
	if p.hits != 2 || s.Pending() != 0 {
		t.Errorf("expected held total pushed, got %d calls / %d pending", p.hits, s.Pending())
	}
}
