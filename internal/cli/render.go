package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"github.com/ecolearn/ecolearn/internal/app/attendance"
	"github.com/ecolearn/ecolearn/internal/app/dashboard"
	"github.com/ecolearn/ecolearn/internal/domain"
	"github.com/ecolearn/ecolearn/internal/infra/catalog"
)

// ─── Styles ─────────────────────────────────────────────────────────────────

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7BC96F"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	goodStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#40C463")).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	badgeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Background(lipgloss.Color("#216E39")).
			Padding(0, 1)

	// GitHub-style contribution greens, level 0..4.
	heatLevels = [attendance.MaxLevel + 1]lipgloss.Style{
		lipgloss.NewStyle().Foreground(lipgloss.Color("#3A3A3A")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("#9BE9A8")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("#40C463")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("#30A14E")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("#216E39")),
	}
	heatGlyphs = [attendance.MaxLevel + 1]string{"·", "░", "▒", "▓", "█"}
)

const barWidth = 30

// painter applies styles only when writing to a terminal.
type painter struct{ color bool }

func newPainter(w io.Writer) painter {
	f, ok := w.(*os.File)
	return painter{color: ok && term.IsTerminal(int(f.Fd()))}
}

func (p painter) paint(st lipgloss.Style, s string) string {
	if !p.color {
		return s
	}
	return st.Render(s)
}

// ─── Progress ───────────────────────────────────────────────────────────────

func renderProgress(w io.Writer, p painter, pr dashboard.Progress) {
	fmt.Fprintf(w, "%s  %s\n", p.paint(titleStyle, pr.UserID), p.paint(mutedStyle, "("+string(pr.Track)+" track)"))
	fmt.Fprintf(w, "Points   %s\n", humanize.Comma(pr.State.Points))
	fmt.Fprintf(w, "Level    %d  %s  %s to next\n", pr.State.Level, progressBar(pr.LevelProgress), humanize.Comma(pr.ToNextLevel))

	streak := fmt.Sprintf("%d day", pr.State.Streak)
	if pr.State.Streak != 1 {
		streak += "s"
	}
	if pr.LoggedInToday {
		streak += " " + p.paint(goodStyle, "(checked in today)")
	} else {
		streak += " " + p.paint(warnStyle, "(not checked in today)")
	}
	fmt.Fprintf(w, "Streak   %s\n", streak)

	var earned, locked []string
	for _, b := range pr.Badges {
		if b.Earned {
			earned = append(earned, p.paint(badgeStyle, b.Name))
		} else {
			locked = append(locked, b.Name)
		}
	}
	fmt.Fprintf(w, "Badges   %d/%d\n", len(earned), len(pr.Badges))
	if len(earned) > 0 {
		fmt.Fprintf(w, "  %s\n", strings.Join(earned, " "))
	}
	if len(locked) > 0 {
		fmt.Fprintf(w, "  %s\n", p.paint(mutedStyle, "locked: "+strings.Join(locked, ", ")))
	}
}

// progressBar draws [█████░░░░░] 42% for a fraction in [0,1].
func progressBar(frac float64) string {
	frac = max(0, min(frac, 1))
	filled := int(frac * barWidth)
	return fmt.Sprintf("[%s%s] %3d%%", strings.Repeat("█", filled), strings.Repeat("░", barWidth-filled), int(frac*100))
}

// ─── Results ────────────────────────────────────────────────────────────────

func renderResult(w io.Writer, p painter, what string, res dashboard.Result) {
	fx := res.Effects
	switch {
	case fx.Rejected:
		fmt.Fprintf(w, "%s %s: %s\n", p.paint(warnStyle, "rejected"), what, fx.Reason)
		return
	case fx.AlreadyDone:
		fmt.Fprintf(w, "%s already done, nothing awarded. Total %s points.\n", what, humanize.Comma(res.State.Points))
		return
	}

	fmt.Fprintf(w, "%s %s: +%s points, total %s\n",
		p.paint(goodStyle, "✓"), what, humanize.Comma(fx.PointsAwarded), humanize.Comma(res.State.Points))
	if fx.LeveledUp {
		fmt.Fprintf(w, "  %s reached level %d\n", p.paint(goodStyle, "▲"), res.State.Level)
	}
	for _, b := range fx.BadgesUnlocked {
		fmt.Fprintf(w, "  %s badge unlocked\n", p.paint(badgeStyle, string(b)))
	}
	if !res.Persisted {
		fmt.Fprintf(w, "  %s progress kept in memory only, save failed\n", p.paint(warnStyle, "!"))
	}
}

// ─── Heatmap ────────────────────────────────────────────────────────────────

// renderHeatmap draws one row per weekday offset and one column per week,
// oldest week on the left.
func renderHeatmap(w io.Writer, p painter, hm dashboard.Heatmap) {
	weeks := attendance.Grid(hm.Cells)
	if len(weeks) > 0 && len(weeks[0]) > 0 {
		last := weeks[len(weeks)-1]
		fmt.Fprintf(w, "%s  %s → %s\n", p.paint(titleStyle, "Attendance"),
			weeks[0][0].Day, last[len(last)-1].Day)
	}
	for d := 0; d < attendance.DaysPerWeek; d++ {
		var row strings.Builder
		for _, week := range weeks {
			if d >= len(week) {
				row.WriteString("  ")
				continue
			}
			lvl := week[d].Level
			row.WriteString(p.paint(heatLevels[lvl], heatGlyphs[lvl]))
			row.WriteByte(' ')
		}
		fmt.Fprintln(w, strings.TrimRight(row.String(), " "))
	}

	var legend strings.Builder
	for lvl := range heatGlyphs {
		legend.WriteString(p.paint(heatLevels[lvl], heatGlyphs[lvl]))
	}
	fmt.Fprintf(w, "less %s more\n", legend.String())

	fmt.Fprintf(w, "%s check-ins on %s active days\n",
		humanize.Comma(int64(hm.Stats.TotalCheckIns)), humanize.Comma(int64(hm.Stats.ActiveDays)))
	if len(hm.Stats.Recent) > 0 {
		recent := make([]string, len(hm.Stats.Recent))
		for i, d := range hm.Stats.Recent {
			recent[i] = d.String()
		}
		fmt.Fprintf(w, "Recent: %s\n", strings.Join(recent, ", "))
	}
}

// ─── Lists ──────────────────────────────────────────────────────────────────

func renderActivity(w io.Writer, items []domain.Activity, now time.Time) error {
	if len(items) == 0 {
		fmt.Fprintln(w, "No activity yet. Run 'ecolearn login' to get started.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tKIND\tREF\tPOINTS\tLEVEL\tBADGES")
	for _, a := range items {
		badges := make([]string, len(a.Badges))
		for i, b := range a.Badges {
			badges[i] = string(b)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%+d\t%d\t%s\n",
			humanize.RelTime(time.Unix(a.At, 0), now, "ago", "from now"),
			a.Kind, dash(a.Ref), a.Points, a.Level, dash(strings.Join(badges, ",")))
	}
	return tw.Flush()
}

func renderLeaderboard(w io.Writer, rows []domain.LeaderboardRow) error {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No institutions on the leaderboard yet.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tINSTITUTION\tPOINTS\tMEMBERS")
	for i, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", humanize.Ordinal(i+1), r.Name, humanize.Comma(r.TotalPoints), r.MemberCount)
	}
	return tw.Flush()
}

func renderCatalog(w io.Writer, p painter, c catalog.Content) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, p.paint(titleStyle, "MISSIONS"))
	fmt.Fprintln(tw, "ID\tKIND\tPOINTS\tTITLE")
	for _, m := range c.Missions {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", m.ID, m.Kind, m.Points, m.Title)
	}

	fmt.Fprintln(tw)
	fmt.Fprintln(tw, p.paint(titleStyle, "QUIZZES"))
	fmt.Fprintln(tw, "ID\tQUESTIONS\tPOINTS\tTITLE")
	for _, q := range c.Quizzes {
		fmt.Fprintf(tw, "%s\t%d\t%d each\t%s\n", q.ID, len(q.Questions), q.PointsPerQuestion, q.Title)
	}

	fmt.Fprintln(tw)
	fmt.Fprintln(tw, p.paint(titleStyle, "CHALLENGES"))
	fmt.Fprintln(tw, "ID\tPOINTS\tBADGE\tTITLE")
	for _, ch := range c.Challenges {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", ch.ID, ch.Points, dash(string(ch.BadgeReward)), ch.Title)
	}
	return tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
