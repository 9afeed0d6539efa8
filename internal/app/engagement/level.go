package engagement

import "math"

// LevelFor returns floor(points/levelSize)+1. Negative points count as zero.
func LevelFor(points, levelSize int64) int {
	if points < 0 {
		points = 0
	}
	if levelSize <= 0 {
		return 1
	}
	return int(points/levelSize) + 1
}

// Level returns the level for a point total under this engine's level size.
func (e *Engine) Level(points int64) int {
	return LevelFor(points, e.cfg.LevelSize)
}

// Progress returns the fraction of the current level already earned,
// clamped to [0, 1] for display.
func (e *Engine) Progress(points int64) float64 {
	floor := e.cfg.LevelSize * int64(e.Level(points)-1)
	f := float64(points-floor) / float64(e.cfg.LevelSize)
	return math.Max(0, math.Min(1, f))
}

// ToNextLevel returns the points still needed to reach the next level.
func (e *Engine) ToNextLevel(points int64) int64 {
	if points < 0 {
		points = 0
	}
	return e.cfg.LevelSize*int64(e.Level(points)) - points
}

// ScorePercent is round(100*correct/total), a reporting value for quiz
// results. Zero when total is not positive.
func ScorePercent(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(correct) / float64(total)))
}
