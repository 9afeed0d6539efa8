// Package metrics provides Prometheus metrics for EcoLearn: engine outcomes,
// persistence, remote sync, leaderboard cache and health.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for EventsTotal.
const (
	OutcomeApplied     = "applied"
	OutcomeAlreadyDone = "already_done"
	OutcomeRejected    = "rejected"
)

// ─── Engine ─────────────────────────────────────────────────────────────────

// EventsTotal counts engine calls by event kind and outcome.
var EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ecolearn",
	Name:      "events_total",
	Help:      "Engine calls by event kind and outcome.",
}, []string{"kind", "outcome"})

// PointsAwarded tracks points granted by event kind.
var PointsAwarded = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ecolearn",
	Name:      "points_awarded_total",
	Help:      "Total points awarded by event kind.",
}, []string{"kind"})

// BadgesUnlocked tracks badge unlocks.
var BadgesUnlocked = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ecolearn",
	Name:      "badges_unlocked_total",
	Help:      "Total badge unlocks by badge id.",
}, []string{"badge"})

// LevelUps tracks level-up effects.
var LevelUps = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "ecolearn",
	Name:      "level_ups_total",
	Help:      "Total level-ups.",
})

// ─── Persistence ────────────────────────────────────────────────────────────

// PersistFailures tracks progress saves that failed after an engine call.
var PersistFailures = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "ecolearn",
	Name:      "persist_failures_total",
	Help:      "Progress saves that failed; in-memory state was kept.",
})

// ─── Remote ─────────────────────────────────────────────────────────────────

// SyncTotal tracks remote point pushes by result (ok, error, skipped).
var SyncTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ecolearn",
	Name:      "sync_total",
	Help:      "Remote point pushes by result.",
}, []string{"result"})

// SyncLatency tracks remote push duration.
var SyncLatency = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "ecolearn",
	Name:      "sync_latency_seconds",
	Help:      "Remote point push duration in seconds.",
	Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
})

// SyncPending tracks users waiting for a push.
var SyncPending = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "ecolearn",
	Name:      "sync_pending",
	Help:      "Users with a point total waiting to be pushed.",
})

// SyncBreakerState is the push circuit state (0 closed, 1 open, 2 half-open).
var SyncBreakerState = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "ecolearn",
	Name:      "sync_breaker_state",
	Help:      "Remote push circuit breaker state: 0 closed, 1 open, 2 half-open.",
})

// LeaderboardCache tracks leaderboard reads by result (hit, miss, error).
var LeaderboardCache = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ecolearn",
	Name:      "leaderboard_cache_total",
	Help:      "Leaderboard cache lookups by result.",
}, []string{"result"})

// ─── Health ─────────────────────────────────────────────────────────────────

// HealthCheckStatus tracks health check results (1=healthy, 0=unhealthy).
var HealthCheckStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "ecolearn",
	Name:      "health_check_status",
	Help:      "Health check result per component (1=healthy, 0=unhealthy).",
}, []string{"check"})

// HealthRecoveries tracks auto-recovery attempts.
var HealthRecoveries = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ecolearn",
	Name:      "health_recoveries_total",
	Help:      "Total auto-recovery attempts per check.",
}, []string{"check"})
