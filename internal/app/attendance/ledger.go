// Package attendance projects the attendance map of a ProgressState into the
// heatmap grid shown on the dashboard. Everything here is read-only over the
// map it is given.
package attendance

import (
	"fmt"
	"sort"

	"github.com/ecolearn/ecolearn/internal/domain"
)

const (
	// DaysPerWeek is the row count of the grid.
	DaysPerWeek = 7
	// DefaultWeeks is the dashboard's heatmap window.
	DefaultWeeks = 16
	// MaxLevel is the hottest intensity bucket.
	MaxLevel = 4
)

// Cell is one day of the heatmap.
type Cell struct {
	Day   domain.DateKey `json:"day"`
	Count int            `json:"count"`
	Level int            `json:"level"`
}

// LevelFromCount buckets a check-in count: 0→0, 1→1, 2→2, 3→3, ≥4→4.
func LevelFromCount(count int) int {
	switch {
	case count <= 0:
		return 0
	case count >= MaxLevel:
		return MaxLevel
	default:
		return count
	}
}

// Project returns 7*windowWeeks cells ending at reference, oldest first.
func Project(attendance map[domain.DateKey]int, windowWeeks int, reference domain.DateKey) ([]Cell, error) {
	if windowWeeks <= 0 {
		return nil, fmt.Errorf("window must be at least one week, got %d", windowWeeks)
	}
	if _, err := reference.Time(); err != nil {
		return nil, err
	}

	n := windowWeeks * DaysPerWeek
	cells := make([]Cell, n)
	for i := 0; i < n; i++ {
		d, err := reference.AddDays(i - (n - 1))
		if err != nil {
			return nil, err
		}
		c := attendance[d]
		if c < 0 {
			c = 0
		}
		cells[i] = Cell{Day: d, Count: c, Level: LevelFromCount(c)}
	}
	return cells, nil
}

// Grid regroups projected cells into week columns: Grid[w][d] is day d of
// week w, oldest week first. A trailing partial week is kept.
func Grid(cells []Cell) [][]Cell {
	var weeks [][]Cell
	for start := 0; start < len(cells); start += DaysPerWeek {
		end := min(start+DaysPerWeek, len(cells))
		week := make([]Cell, end-start)
		copy(week, cells[start:end])
		weeks = append(weeks, week)
	}
	return weeks
}

// Stats summarizes an attendance map.
type Stats struct {
	TotalCheckIns int              `json:"total_check_ins"`
	ActiveDays    int              `json:"active_days"`
	Recent        []domain.DateKey `json:"recent"` // newest first
}

// Summary counts check-ins and lists up to recent most recent active days.
func Summary(attendance map[domain.DateKey]int, recent int) Stats {
	var s Stats
	days := make([]domain.DateKey, 0, len(attendance))
	for d, c := range attendance {
		if c <= 0 {
			continue
		}
		s.TotalCheckIns += c
		s.ActiveDays++
		days = append(days, d)
	}
	// YYYY-MM-DD sorts lexically
	sort.Slice(days, func(i, j int) bool { return days[i] > days[j] })
	if recent < len(days) {
		days = days[:max(recent, 0)]
	}
	s.Recent = days
	return s
}
