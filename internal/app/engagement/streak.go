package engagement

import "github.com/ecolearn/ecolearn/internal/domain"

// NextStreak returns the streak after a login on today.
// Consecutive day: extend. No prior day, gap ≥2 days, or today earlier than
// last (clock moved backwards): start over at 1. A stored day that no longer
// parses counts as a gap.
func NextStreak(last domain.DateKey, current int, today domain.DateKey) int {
	if last.IsZero() {
		return 1
	}
	gap, err := domain.DaysBetween(last, today)
	if err != nil || gap != 1 {
		return 1
	}
	return current + 1
}

// LoginAward is the daily login payout for a streak: base + min(streak, cap).
func (e *Engine) LoginAward(streak int) int64 {
	return e.cfg.BasePoints + int64(min(streak, e.cfg.StreakCap))
}
