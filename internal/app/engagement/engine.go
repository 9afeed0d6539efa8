// Package engagement implements the EcoLearn gamification engine.
// One place computes points, streaks, levels and badges. Every entry point is
// a pure function of (state, event, today): it returns a new state and the
// Effects of the call, and never mutates its input or touches I/O.
package engagement

import (
	"math"

	"github.com/ecolearn/ecolearn/internal/domain"
)

// Config holds the tunable constants of one engine instance.
type Config struct {
	LevelSize          int64 // points per level
	BasePoints         int64 // daily login base award
	StreakCap          int   // max streak bonus added to the base award
	LargeMissionPoints int64 // single-mission payout that unlocks "sapling"
}

// DefaultConfig returns the XP-track constants observed in the dashboard.
func DefaultConfig() Config {
	return Config{
		LevelSize:          500,
		BasePoints:         10,
		StreakCap:          10,
		LargeMissionPoints: 50,
	}
}

// Engine applies events to ProgressState. It holds no per-user state and is
// safe for concurrent use.
type Engine struct {
	cfg    Config
	badges []domain.BadgeDefinition
	byID   map[domain.BadgeID]domain.BadgeDefinition
}

// New creates an engine. Zero config fields fall back to DefaultConfig;
// a nil badge catalog means DefaultBadges.
func New(cfg Config, badges []domain.BadgeDefinition) *Engine {
	def := DefaultConfig()
	if cfg.LevelSize <= 0 {
		cfg.LevelSize = def.LevelSize
	}
	if cfg.BasePoints < 0 {
		cfg.BasePoints = def.BasePoints
	}
	if cfg.StreakCap < 0 {
		cfg.StreakCap = def.StreakCap
	}
	if cfg.LargeMissionPoints <= 0 {
		cfg.LargeMissionPoints = def.LargeMissionPoints
	}
	if badges == nil {
		badges = DefaultBadges(cfg)
	}

	byID := make(map[domain.BadgeID]domain.BadgeDefinition, len(badges))
	for _, b := range badges {
		byID[b.ID] = b
	}
	return &Engine{cfg: cfg, badges: badges, byID: byID}
}

// Config returns the engine's effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// Badges returns the badge catalog in evaluation order.
func (e *Engine) Badges() []domain.BadgeDefinition {
	out := make([]domain.BadgeDefinition, len(e.badges))
	copy(out, e.badges)
	return out
}

// Badge looks up a catalog entry.
func (e *Engine) Badge(id domain.BadgeID) (domain.BadgeDefinition, bool) {
	b, ok := e.byID[id]
	return b, ok
}

// Apply dispatches ev to the matching entry point.
func (e *Engine) Apply(state domain.ProgressState, ev domain.Event, today domain.DateKey) (domain.ProgressState, domain.Effects) {
	switch ev := ev.(type) {
	case domain.DailyLogin:
		return e.DailyLogin(state, today)
	case domain.MissionCompleted:
		return e.MissionCompleted(state, ev)
	case domain.QuizFinished:
		return e.QuizFinished(state, ev)
	case domain.ChallengeJoined:
		return e.ChallengeJoined(state, ev)
	default:
		return state, rejected(domain.RejectUnknownEvent)
	}
}

// DailyLogin records today's check-in.
// A second login on the same day changes nothing and reports AlreadyDone.
func (e *Engine) DailyLogin(state domain.ProgressState, today domain.DateKey) (domain.ProgressState, domain.Effects) {
	if _, err := today.Time(); err != nil {
		return state, rejected(domain.RejectInvalidDay)
	}
	if state.LastActivityDay == today {
		return state, domain.Effects{AlreadyDone: true}
	}

	next := state.Clone()
	next.Streak = NextStreak(state.LastActivityDay, state.Streak, today)
	award := e.LoginAward(next.Streak)
	pts, ok := addPoints(state.Points, award)
	if !ok {
		return state, rejected(domain.RejectPointsOverflow)
	}
	next.Points = pts
	next.Attendance[today]++
	next.LastActivityDay = today

	return e.finish(state, next, domain.DailyLogin{}, award, nil)
}

// MissionCompleted pays a mission once. Repeats report AlreadyDone.
func (e *Engine) MissionCompleted(state domain.ProgressState, ev domain.MissionCompleted) (domain.ProgressState, domain.Effects) {
	switch {
	case ev.MissionID == "":
		return state, rejected(domain.RejectEmptyID)
	case ev.Points < 0:
		return state, rejected(domain.RejectNegativePoints)
	case state.HasCompleted(ev.MissionID):
		return state, domain.Effects{AlreadyDone: true}
	}

	pts, ok := addPoints(state.Points, ev.Points)
	if !ok {
		return state, rejected(domain.RejectPointsOverflow)
	}
	next := state.Clone()
	next.Points = pts
	next.CompletedMissionIDs[ev.MissionID] = true

	return e.finish(state, next, ev, ev.Points, nil)
}

// QuizFinished pays correct × points-per-question on the first completion
// only. Retakes report AlreadyDone and award nothing.
func (e *Engine) QuizFinished(state domain.ProgressState, ev domain.QuizFinished) (domain.ProgressState, domain.Effects) {
	switch {
	case ev.QuizID == "":
		return state, rejected(domain.RejectEmptyID)
	case ev.PointsPerQuestion < 0:
		return state, rejected(domain.RejectNegativePoints)
	case ev.TotalQuestions <= 0, ev.CorrectCount < 0, ev.CorrectCount > ev.TotalQuestions:
		return state, rejected(domain.RejectInvalidQuiz)
	case state.HasCompleted(ev.QuizID):
		return state, domain.Effects{AlreadyDone: true}
	}

	if ev.CorrectCount > 0 && ev.PointsPerQuestion > math.MaxInt64/int64(ev.CorrectCount) {
		return state, rejected(domain.RejectPointsOverflow)
	}
	earned := int64(ev.CorrectCount) * ev.PointsPerQuestion
	pts, ok := addPoints(state.Points, earned)
	if !ok {
		return state, rejected(domain.RejectPointsOverflow)
	}
	next := state.Clone()
	next.Points = pts
	next.CompletedMissionIDs[ev.QuizID] = true

	return e.finish(state, next, ev, earned, nil)
}

// ChallengeJoined pays a challenge once and grants its reward badge.
// Joining again reports AlreadyDone.
func (e *Engine) ChallengeJoined(state domain.ProgressState, ev domain.ChallengeJoined) (domain.ProgressState, domain.Effects) {
	switch {
	case ev.ChallengeID == "":
		return state, rejected(domain.RejectEmptyID)
	case ev.Points < 0:
		return state, rejected(domain.RejectNegativePoints)
	}
	if ev.BadgeReward != "" {
		if _, ok := e.byID[ev.BadgeReward]; !ok {
			return state, rejected(domain.RejectUnknownBadge)
		}
	}
	if state.HasCompleted(ev.ChallengeID) {
		return state, domain.Effects{AlreadyDone: true}
	}

	pts, ok := addPoints(state.Points, ev.Points)
	if !ok {
		return state, rejected(domain.RejectPointsOverflow)
	}
	next := state.Clone()
	next.Points = pts
	next.CompletedMissionIDs[ev.ChallengeID] = true

	var granted []domain.BadgeID
	if ev.BadgeReward != "" && !next.Badges[ev.BadgeReward] {
		next.Badges[ev.BadgeReward] = true
		granted = append(granted, ev.BadgeReward)
	}

	return e.finish(state, next, ev, ev.Points, granted)
}

// MergeRemote adopts a higher point total reported by the remote backend.
// A lower or equal remote total leaves the state unchanged, so points never
// decrease. Badge rules run with a nil event.
func (e *Engine) MergeRemote(state domain.ProgressState, remotePoints int64) (domain.ProgressState, domain.Effects) {
	if remotePoints <= state.Points {
		return state, domain.Effects{}
	}
	next := state.Clone()
	delta := remotePoints - state.Points
	next.Points = remotePoints
	return e.finish(state, next, nil, delta, nil)
}

// Normalize recomputes derived fields of a loaded state (level, nil maps).
func (e *Engine) Normalize(state domain.ProgressState) domain.ProgressState {
	next := state.Clone()
	if next.Points < 0 {
		next.Points = 0
	}
	if next.Streak < 0 {
		next.Streak = 0
	}
	next.Level = e.Level(next.Points)
	return next
}

// finish recomputes the level, runs the badge catalog and builds Effects.
func (e *Engine) finish(prev, next domain.ProgressState, ev domain.Event, awarded int64, granted []domain.BadgeID) (domain.ProgressState, domain.Effects) {
	next.Level = e.Level(next.Points)
	unlocked := append(granted, e.evaluate(&next, ev)...)

	return next, domain.Effects{
		PointsAwarded:  awarded,
		BadgesUnlocked: unlocked,
		LeveledUp:      next.Level != e.Level(prev.Points),
	}
}

// addPoints returns points+delta for a non-negative delta, or false when the
// sum does not fit in an int64.
func addPoints(points, delta int64) (int64, bool) {
	if points > 0 && delta > math.MaxInt64-points {
		return points, false
	}
	return points + delta, true
}

func rejected(reason domain.RejectReason) domain.Effects {
	return domain.Effects{Rejected: true, Reason: reason}
}
