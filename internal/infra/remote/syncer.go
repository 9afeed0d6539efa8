package remote

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ecolearn/ecolearn/internal/infra/logger"
	"github.com/ecolearn/ecolearn/internal/infra/metrics"
)

// Pusher is the write half of domain.RemoteSync.
type Pusher interface {
	PushPoints(ctx context.Context, userID string, total int64) error
}

// Syncer pushes point totals in the background. Notify never blocks; totals
// queued for the same user collapse to the latest one (last write wins).
// Failures are logged and counted, never retried on their own: the next
// Notify for that user carries the newer total anyway. While the breaker is
// open, totals stay queued and Run retries them every retry interval.
type Syncer struct {
	push    Pusher
	log     *logger.Logger
	timeout time.Duration
	breaker *Breaker // optional
	retry   time.Duration

	mu      sync.Mutex
	pending map[string]int64
	signal  chan struct{}
}

// NewSyncer creates a syncer. timeout bounds each push (default 15s).
func NewSyncer(p Pusher, log *logger.Logger, timeout time.Duration) *Syncer {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Syncer{
		push:    p,
		log:     log.With("service", "Syncer"),
		timeout: timeout,
		pending: make(map[string]int64),
		signal:  make(chan struct{}, 1),
	}
}

// SetBreaker guards pushes with b. Held totals are retried once per reset
// timeout of b.
func (s *Syncer) SetBreaker(b *Breaker) {
	s.breaker = b
	s.retry = b.cfg.ResetTimeout
}

// Notify queues total for userID and wakes the worker.
func (s *Syncer) Notify(userID string, total int64) {
	s.mu.Lock()
	s.pending[userID] = total
	n := len(s.pending)
	s.mu.Unlock()
	metrics.SyncPending.Set(float64(n))

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

// Pending returns the number of users waiting for a push.
func (s *Syncer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Run pushes queued totals until ctx is cancelled.
func (s *Syncer) Run(ctx context.Context) error {
	s.log.Info("sync worker started")

	var retry <-chan time.Time
	if s.retry > 0 {
		ticker := time.NewTicker(s.retry)
		defer ticker.Stop()
		retry = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			s.log.Info("sync worker stopped", "pending", s.Pending())
			return nil
		case <-s.signal:
			_ = s.flush(ctx)
		case <-retry:
			if s.Pending() > 0 {
				_ = s.flush(ctx)
			}
		}
	}
}

// Drain pushes everything queued right now and waits for the result.
// The CLI calls it before exiting.
func (s *Syncer) Drain(ctx context.Context) error {
	return s.flush(ctx)
}

func (s *Syncer) flush(ctx context.Context) error {
	s.mu.Lock()
	batch := s.pending
	s.pending = make(map[string]int64)
	s.mu.Unlock()
	metrics.SyncPending.Set(0)

	var errs []error
	for user, total := range batch {
		if err := s.pushOne(ctx, user, total); err != nil {
			errs = append(errs, fmt.Errorf("sync %s: %w", user, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Syncer) pushOne(ctx context.Context, user string, total int64) error {
	if s.breaker != nil {
		if err := s.breaker.Allow(); err != nil {
			metrics.SyncTotal.WithLabelValues("skipped").Inc()
			s.requeue(user, total)
			return err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	err := s.push.PushPoints(ctx, user, total)
	metrics.SyncLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		if s.breaker != nil {
			s.breaker.Failure()
		}
		metrics.SyncTotal.WithLabelValues("error").Inc()
		s.log.Warn("point sync failed", "user", user, "total", total, "error", err)
		return err
	}
	if s.breaker != nil {
		s.breaker.Success()
	}
	metrics.SyncTotal.WithLabelValues("ok").Inc()
	s.log.Debug("points synced", "user", user, "total", total)
	return nil
}

// requeue puts total back unless a newer one arrived meanwhile.
func (s *Syncer) requeue(user string, total int64) {
	s.mu.Lock()
	if _, newer := s.pending[user]; !newer {
		s.pending[user] = total
	}
	n := len(s.pending)
	s.mu.Unlock()
	metrics.SyncPending.Set(float64(n))
}
