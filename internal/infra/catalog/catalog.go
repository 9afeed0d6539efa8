// Package catalog provides the registry of missions, quizzes and challenges
// the dashboard offers, with their point values and badge rewards.
// The built-in content can be replaced by a TOML file ([content] file).
package catalog

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"

	"github.com/ecolearn/ecolearn/internal/domain"
)

// Mission is a task that pays points once when marked done or uploaded.
type Mission struct {
	ID          string `toml:"id" json:"id" validate:"required"`
	Title       string `toml:"title" json:"title" validate:"required"`
	Description string `toml:"description" json:"description,omitempty"`
	Kind        string `toml:"kind" json:"kind" validate:"oneof=daily upload"`
	Media       string `toml:"media" json:"media,omitempty" validate:"omitempty,oneof=image video"`
	Points      int64  `toml:"points" json:"points" validate:"gte=0"`
}

// Event returns the engine event for completing m.
func (m Mission) Event() domain.MissionCompleted {
	return domain.MissionCompleted{MissionID: m.ID, Points: m.Points}
}

// Question is one multiple-choice quiz question.
type Question struct {
	Text    string   `toml:"text" json:"text" validate:"required"`
	Options []string `toml:"options" json:"options" validate:"min=2"`
	Correct int      `toml:"correct" json:"-" validate:"gte=0"`
}

// Quiz is a timed question set paying PointsPerQuestion per correct answer.
type Quiz struct {
	ID                string     `toml:"id" json:"id" validate:"required"`
	Title             string     `toml:"title" json:"title" validate:"required"`
	Category          string     `toml:"category" json:"category,omitempty"`
	Difficulty        string     `toml:"difficulty" json:"difficulty,omitempty"`
	Questions         []Question `toml:"questions" json:"questions" validate:"min=1,dive"`
	PointsPerQuestion int64      `toml:"points_per_question" json:"points_per_question" validate:"gte=0"`
	TimeLimitMinutes  int        `toml:"time_limit_minutes" json:"time_limit_minutes" validate:"gte=0"`
}

// Unanswered marks a question skipped or cut off by the timer.
const Unanswered = -1

// Grade counts correct answers. answers[i] is the chosen option index for
// question i; missing or Unanswered entries count as wrong, extras are ignored.
func (q Quiz) Grade(answers []int) int {
	correct := 0
	for i, question := range q.Questions {
		if i < len(answers) && answers[i] != Unanswered && answers[i] == question.Correct {
			correct++
		}
	}
	return correct
}

// Event grades answers and returns the engine event.
func (q Quiz) Event(answers []int) domain.QuizFinished {
	return domain.QuizFinished{
		QuizID:            q.ID,
		CorrectCount:      q.Grade(answers),
		TotalQuestions:    len(q.Questions),
		PointsPerQuestion: q.PointsPerQuestion,
	}
}

// Challenge is a community action paying once on join, optionally with a badge.
type Challenge struct {
	ID          string         `toml:"id" json:"id" validate:"required"`
	Title       string         `toml:"title" json:"title" validate:"required"`
	Description string         `toml:"description" json:"description,omitempty"`
	Difficulty  string         `toml:"difficulty" json:"difficulty,omitempty"`
	Category    string         `toml:"category" json:"category,omitempty"`
	Points      int64          `toml:"points" json:"points" validate:"gte=0"`
	BadgeReward domain.BadgeID `toml:"badge_reward" json:"badge_reward,omitempty"`
	Impact      string         `toml:"impact" json:"impact,omitempty"`
}

// Event returns the engine event for joining c.
func (c Challenge) Event() domain.ChallengeJoined {
	return domain.ChallengeJoined{ChallengeID: c.ID, Points: c.Points, BadgeReward: c.BadgeReward}
}

// Content is the whole catalog, also the shape of the TOML override file.
type Content struct {
	Missions   []Mission   `toml:"missions" json:"missions" validate:"dive"`
	Quizzes    []Quiz      `toml:"quizzes" json:"quizzes" validate:"dive"`
	Challenges []Challenge `toml:"challenges" json:"challenges" validate:"dive"`
}

// Catalog indexes Content by id.
type Catalog struct {
	content    Content
	missions   map[string]Mission
	quizzes    map[string]Quiz
	challenges map[string]Challenge
}

// New indexes content. Ids must be unique across missions, quizzes and
// challenges because they share one completion set.
func New(content Content) (*Catalog, error) {
	if err := validator.New().Struct(content); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}

	c := &Catalog{
		content:    content,
		missions:   make(map[string]Mission, len(content.Missions)),
		quizzes:    make(map[string]Quiz, len(content.Quizzes)),
		challenges: make(map[string]Challenge, len(content.Challenges)),
	}
	seen := map[string]bool{}
	claim := func(id string) error {
		if seen[id] {
			return fmt.Errorf("invalid catalog: duplicate id %q", id)
		}
		seen[id] = true
		return nil
	}

	for _, m := range content.Missions {
		if err := claim(m.ID); err != nil {
			return nil, err
		}
		c.missions[m.ID] = m
	}
	for _, q := range content.Quizzes {
		if err := claim(q.ID); err != nil {
			return nil, err
		}
		for i, question := range q.Questions {
			if question.Correct >= len(question.Options) {
				return nil, fmt.Errorf("invalid catalog: quiz %q question %d: correct option %d out of range", q.ID, i, question.Correct)
			}
		}
		c.quizzes[q.ID] = q
	}
	for _, ch := range content.Challenges {
		if err := claim(ch.ID); err != nil {
			return nil, err
		}
		c.challenges[ch.ID] = ch
	}
	return c, nil
}

// Load returns the built-in catalog, or the one in path when path is set.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return New(Default())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var content Content
	if err := toml.Unmarshal(data, &content); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return New(content)
}

// Content returns the catalog's entries in declaration order.
func (c *Catalog) Content() Content { return c.content }

// Mission looks up a mission.
func (c *Catalog) Mission(id string) (Mission, error) {
	m, ok := c.missions[id]
	if !ok {
		return Mission{}, fmt.Errorf("%w: %q", domain.ErrUnknownMission, id)
	}
	return m, nil
}

// Quiz looks up a quiz.
func (c *Catalog) Quiz(id string) (Quiz, error) {
	q, ok := c.quizzes[id]
	if !ok {
		return Quiz{}, fmt.Errorf("%w: %q", domain.ErrUnknownQuiz, id)
	}
	return q, nil
}

// Challenge looks up a challenge.
func (c *Catalog) Challenge(id string) (Challenge, error) {
	ch, ok := c.challenges[id]
	if !ok {
		return Challenge{}, fmt.Errorf("%w: %q", domain.ErrUnknownChallenge, id)
	}
	return ch, nil
}

// BadgeRewards lists every badge id a challenge can grant.
func (c *Catalog) BadgeRewards() []domain.BadgeID {
	var out []domain.BadgeID
	for _, ch := range c.content.Challenges {
		if ch.BadgeReward != "" {
			out = append(out, ch.BadgeReward)
		}
	}
	return out
}
