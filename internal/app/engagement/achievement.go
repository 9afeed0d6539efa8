package engagement

import (
	"github.com/ecolearn/ecolearn/internal/domain"
)

// Badge ids referenced outside the catalog.
const (
	BadgeSeed              domain.BadgeID = "seed"
	BadgeRecycler          domain.BadgeID = "recycle"
	BadgeSapling           domain.BadgeID = "sapling"
	BadgeMentor            domain.BadgeID = "mentor"
	BadgeWeekWarrior       domain.BadgeID = "week_warrior"
	BadgeEcoWarrior        domain.BadgeID = "eco_warrior"
	BadgeQuizAce           domain.BadgeID = "quiz_ace"
	BadgeTreeHugger        domain.BadgeID = "tree_hugger"
	BadgeRecyclingChampion domain.BadgeID = "recycling_champion"
)

// evaluate runs every catalog rule against the post-event state, adds the
// badges that just became true and returns them in catalog order.
// ev is nil for remote merges.
func (e *Engine) evaluate(state *domain.ProgressState, ev domain.Event) []domain.BadgeID {
	var unlocked []domain.BadgeID
	for _, def := range e.badges {
		if def.Rule == nil || state.Badges[def.ID] {
			continue
		}
		if def.Rule(*state, ev) {
			state.Badges[def.ID] = true
			unlocked = append(unlocked, def.ID)
		}
	}
	return unlocked
}

// ─── Badge Catalog ──────────────────────────────────────────────────────────

// DefaultBadges returns the built-in catalog. Rules only look at
// non-decreasing quantities or at the triggering event, so once a badge is
// earned nothing in later state contradicts it.
func DefaultBadges(cfg Config) []domain.BadgeDefinition {
	large := cfg.LargeMissionPoints
	return []domain.BadgeDefinition{
		{
			ID: BadgeSeed, Name: "Seed Starter", Description: "First login", Icon: "🌱",
			Rule: func(s domain.ProgressState, _ domain.Event) bool { return !s.LastActivityDay.IsZero() },
		},
		{
			ID: BadgeRecycler, Name: "Recycler", Description: "Completed 5 missions, quizzes or challenges", Icon: "♻️",
			Rule: func(s domain.ProgressState, _ domain.Event) bool { return len(s.CompletedMissionIDs) >= 5 },
		},
		{
			ID: BadgeSapling, Name: "Sapling Planter", Description: "Completed a large mission", Icon: "🌿",
			Rule: func(_ domain.ProgressState, ev domain.Event) bool {
				m, ok := ev.(domain.MissionCompleted)
				return ok && m.Points >= large
			},
		},
		{
			ID: BadgeWeekWarrior, Name: "Week Warrior", Description: "Logged in 7 days in a row", Icon: "🔥",
			Rule: func(s domain.ProgressState, _ domain.Event) bool { return s.Streak >= 7 },
		},
		{
			ID: BadgeEcoWarrior, Name: "Eco Warrior", Description: "Reached level 5", Icon: "🛡️",
			Rule: func(s domain.ProgressState, _ domain.Event) bool { return s.Level >= 5 },
		},
		{
			ID: BadgeQuizAce, Name: "Quiz Ace", Description: "Perfect score on a quiz", Icon: "🧠",
			Rule: func(_ domain.ProgressState, ev domain.Event) bool {
				q, ok := ev.(domain.QuizFinished)
				return ok && q.TotalQuestions > 0 && q.CorrectCount == q.TotalQuestions
			},
		},

		// Reward-only
		{ID: BadgeMentor, Name: "Green Mentor", Description: "Invited a friend", Icon: "🤝"},
		{ID: BadgeTreeHugger, Name: "Tree Hugger", Description: "Joined the Plant a Tree challenge", Icon: "🌳"},
		{ID: BadgeRecyclingChampion, Name: "Recycling Champion", Description: "Joined the recycling challenge", Icon: "🏆"},
	}
}
