package catalog_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ecolearn/ecolearn/internal/app/engagement"
	"github.com/ecolearn/ecolearn/internal/domain"
	"github.com/ecolearn/ecolearn/internal/infra/catalog"
)

func TestDefault_Lookups(t *testing.T) {
	c, err := catalog.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	m, err := c.Mission("upload_nature_video")
	if err != nil {
		t.Fatalf("Mission: %v", err)
	}
	if m.Points != 120 {
		t.Errorf("expected 120 points, got %d", m.Points)
	}

	q, err := c.Quiz("q1")
	if err != nil {
		t.Fatalf("Quiz: %v", err)
	}
	if len(q.Questions) != 2 || q.PointsPerQuestion != 50 {
		t.Errorf("unexpected quiz %+v", q)
	}

	ch, err := c.Challenge("ch1")
	if err != nil {
		t.Fatalf("Challenge: %v", err)
	}
	if ch.Points != 200 || ch.BadgeReward != engagement.BadgeTreeHugger {
		t.Errorf("unexpected challenge %+v", ch)
	}
}

func TestUnknownIDs(t *testing.T) {
	c, _ := catalog.Load("")
	if _, err := c.Mission("nope"); !errors.Is(err, domain.ErrUnknownMission) {
		t.Errorf("expected ErrUnknownMission, got %v", err)
	}
	if _, err := c.Quiz("nope"); !errors.Is(err, domain.ErrUnknownQuiz) {
		t.Errorf("expected ErrUnknownQuiz, got %v", err)
	}
	if _, err := c.Challenge("nope"); !errors.Is(err, domain.ErrUnknownChallenge) {
		t.Errorf("expected ErrUnknownChallenge, got %v", err)
	}
}

func TestRewardBadgesExistInEngine(t *testing.T) {
	c, _ := catalog.Load("")
	e := engagement.New(engagement.DefaultConfig(), nil)
	for _, id := range c.BadgeRewards() {
		if _, ok := e.Badge(id); !ok {
			t.Errorf("challenge reward %q missing from badge catalog", id)
		}
	}
}

func TestQuizGrade(t *testing.T) {
	c, _ := catalog.Load("")
	q, _ := c.Quiz("q1")

	tests := []struct {
		name    string
		answers []int
		want    int
	}{
		{"all correct", []int{1, 2}, 2},
		{"one wrong", []int{1, 0}, 1},
		{"timer expired", []int{1}, 1},
		{"unanswered", []int{catalog.Unanswered, catalog.Unanswered}, 0},
		{"extra answers ignored", []int{1, 2, 3, 3}, 2},
		{"none", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := q.Grade(tt.answers); got != tt.want {
				t.Errorf("Grade(%v) = %d, want %d", tt.answers, got, tt.want)
			}
		})
	}

	ev := q.Event([]int{1, 2})
	if ev.QuizID != "q1" || ev.CorrectCount != 2 || ev.TotalQuestions != 2 || ev.PointsPerQuestion != 50 {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestLoad_TOMLOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "content.toml")
	data := `
[[missions]]
id = "plant_seed"
title = "Plant a seed"
kind = "daily"
points = 15

[[quizzes]]
id = "water"
title = "Water Saving"
points_per_question = 20

  [[quizzes.questions]]
  text = "Shorter showers save water?"
  options = ["Yes", "No"]
  correct = 0

[[challenges]]
id = "bike"
title = "Bike to school"
points = 80
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := catalog.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m, err := c.Mission("plant_seed"); err != nil || m.Points != 15 {
		t.Errorf("expected plant_seed with 15 points, got %+v, %v", m, err)
	}
	if q, err := c.Quiz("water"); err != nil || q.Grade([]int{0}) != 1 {
		t.Errorf("expected water quiz gradable, got %+v, %v", q, err)
	}
	if _, err := c.Mission("upload_plant_image"); err == nil {
		t.Error("override must replace built-in content")
	}
}

func TestNew_RejectsBadContent(t *testing.T) {
	tests := []struct {
		name    string
		content catalog.Content
	}{
		{"duplicate id", catalog.Content{
			Missions:   []catalog.Mission{{ID: "x", Title: "a", Kind: "daily"}},
			Challenges: []catalog.Challenge{{ID: "x", Title: "b"}},
		}},
		{"negative points", catalog.Content{
			Missions: []catalog.Mission{{ID: "x", Title: "a", Kind: "daily", Points: -1}},
		}},
		{"correct out of range", catalog.Content{
			Quizzes: []catalog.Quiz{{ID: "q", Title: "q", Questions: []catalog.Question{
				{Text: "?", Options: []string{"a", "b"}, Correct: 2},
			}}},
		}},
		{"no questions", catalog.Content{
			Quizzes: []catalog.Quiz{{ID: "q", Title: "q"}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := catalog.New(tt.content); err == nil {
				t.Error("expected error")
			}
		})
	}
}
