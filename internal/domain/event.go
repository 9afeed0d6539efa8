package domain

// ─── Events ─────────────────────────────────────────────────────────────────
// An Event is a user action fed to the engine. The set of variants is closed:
// only types in this package satisfy the interface.

// EventKind names an event variant for logs, metrics and the activity feed.
type EventKind string

const (
	KindDailyLogin       EventKind = "daily_login"
	KindMissionCompleted EventKind = "mission_completed"
	KindQuizFinished     EventKind = "quiz_finished"
	KindChallengeJoined  EventKind = "challenge_joined"
	KindRemoteMerge      EventKind = "remote_merge"
)

// Event is one of DailyLogin, MissionCompleted, QuizFinished, ChallengeJoined.
type Event interface {
	Kind() EventKind
	// Ref is the mission/quiz/challenge id, or "" for DailyLogin.
	Ref() string
	isEvent()
}

// DailyLogin is the "daily login" button.
type DailyLogin struct{}

// MissionCompleted fires when a mission is marked done or its upload finishes.
type MissionCompleted struct {
	MissionID string `json:"mission_id"`
	Points    int64  `json:"points"`
}

// QuizFinished fires on the last answer or on timer expiry.
type QuizFinished struct {
	QuizID            string `json:"quiz_id"`
	CorrectCount      int    `json:"correct_count"`
	TotalQuestions    int    `json:"total_questions"`
	PointsPerQuestion int64  `json:"points_per_question"`
}

// ChallengeJoined fires on "join challenge". BadgeReward may be empty.
type ChallengeJoined struct {
	ChallengeID string  `json:"challenge_id"`
	Points      int64   `json:"points"`
	BadgeReward BadgeID `json:"badge_reward,omitempty"`
}

func (DailyLogin) Kind() EventKind       { return KindDailyLogin }
func (MissionCompleted) Kind() EventKind { return KindMissionCompleted }
func (QuizFinished) Kind() EventKind     { return KindQuizFinished }
func (ChallengeJoined) Kind() EventKind  { return KindChallengeJoined }

func (DailyLogin) Ref() string         { return "" }
func (e MissionCompleted) Ref() string { return e.MissionID }
func (e QuizFinished) Ref() string     { return e.QuizID }
func (e ChallengeJoined) Ref() string  { return e.ChallengeID }

func (DailyLogin) isEvent()       {}
func (MissionCompleted) isEvent() {}
func (QuizFinished) isEvent()     {}
func (ChallengeJoined) isEvent()  {}
