// Package domain holds the progress, event and badge types of the EcoLearn
// gamification engine. Pure data; every rule that changes these values lives
// in internal/app/engagement.
package domain

import (
	"fmt"
	"sort"
	"strings"
)

// ─── Progress State ─────────────────────────────────────────────────────────

// BadgeID identifies a badge in the catalog.
type BadgeID string

// ProgressState is one user's progress on one track.
// Callers treat it as a value: engine functions return a new state and never
// mutate the one they were given.
type ProgressState struct {
	Points              int64            `json:"points"`
	Streak              int              `json:"streak"`
	LastActivityDay     DateKey          `json:"last_activity_day,omitempty"`
	Level               int              `json:"level"`
	Attendance          map[DateKey]int  `json:"attendance"`
	Badges              map[BadgeID]bool `json:"badges"`
	CompletedMissionIDs map[string]bool  `json:"completed_mission_ids"`
}

// NewProgressState returns an empty state with initialized maps at level 1.
func NewProgressState() ProgressState {
	return ProgressState{
		Level:               1,
		Attendance:          map[DateKey]int{},
		Badges:              map[BadgeID]bool{},
		CompletedMissionIDs: map[string]bool{},
	}
}

// Clone returns a deep copy of s. Nil maps come back initialized.
func (s ProgressState) Clone() ProgressState {
	cp := s
	cp.Attendance = make(map[DateKey]int, len(s.Attendance))
	for k, v := range s.Attendance {
		cp.Attendance[k] = v
	}
	cp.Badges = make(map[BadgeID]bool, len(s.Badges))
	for k, v := range s.Badges {
		if v {
			cp.Badges[k] = true
		}
	}
	cp.CompletedMissionIDs = make(map[string]bool, len(s.CompletedMissionIDs))
	for k, v := range s.CompletedMissionIDs {
		if v {
			cp.CompletedMissionIDs[k] = true
		}
	}
	return cp
}

// HasBadge reports whether the badge has been earned.
func (s ProgressState) HasBadge(id BadgeID) bool { return s.Badges[id] }

// HasCompleted reports whether a mission, quiz or challenge id already paid out.
func (s ProgressState) HasCompleted(id string) bool { return s.CompletedMissionIDs[id] }

// BadgeIDs returns earned badge ids in sorted order.
func (s ProgressState) BadgeIDs() []BadgeID {
	out := make([]BadgeID, 0, len(s.Badges))
	for id, ok := range s.Badges {
		if ok {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// CompletedIDs returns completed mission/quiz/challenge ids in sorted order.
func (s ProgressState) CompletedIDs() []string {
	out := make([]string, 0, len(s.CompletedMissionIDs))
	for id, ok := range s.CompletedMissionIDs {
		if ok {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// ─── Badges ─────────────────────────────────────────────────────────────────

// BadgeRule decides whether a badge unlocks. It sees the state after the
// event was applied. Rules must stay true once true along a trajectory.
type BadgeRule func(state ProgressState, ev Event) bool

// BadgeDefinition is a static catalog entry.
// A nil Rule marks a reward-only badge granted by ChallengeJoined.
type BadgeDefinition struct {
	ID          BadgeID   `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	Rule        BadgeRule `json:"-"`
}

// ─── Effects ────────────────────────────────────────────────────────────────

// RejectReason explains why an event was refused.
type RejectReason string

const (
	RejectNone           RejectReason = ""
	RejectEmptyID        RejectReason = "empty_id"
	RejectNegativePoints RejectReason = "negative_points"
	RejectInvalidQuiz    RejectReason = "invalid_quiz"
	RejectUnknownBadge   RejectReason = "unknown_badge"
	RejectInvalidDay     RejectReason = "invalid_day"
	RejectUnknownEvent   RejectReason = "unknown_event"
	RejectPointsOverflow RejectReason = "points_overflow"
)

// Effects are the one-time outcomes of a single engine call, used for
// toasts and animations. They are not persisted.
type Effects struct {
	PointsAwarded  int64        `json:"points_awarded"`
	BadgesUnlocked []BadgeID    `json:"badges_unlocked,omitempty"`
	LeveledUp      bool         `json:"leveled_up"`
	AlreadyDone    bool         `json:"already_done"`
	Rejected       bool         `json:"rejected"`
	Reason         RejectReason `json:"reason,omitempty"`
}

// Changed reports whether the call produced a new state.
func (e Effects) Changed() bool {
	return !e.Rejected && !e.AlreadyDone
}

// ─── Tracks ─────────────────────────────────────────────────────────────────

// Track names an independent progress model. The eco track is the
// badge-centric dashboard profile, the xp track the quiz/challenge XP profile.
type Track string

const (
	TrackEco Track = "eco"
	TrackXP  Track = "xp"
)

// ParseTrack accepts "eco" or "xp" in any case. The empty string is the eco
// track.
func ParseTrack(s string) (Track, error) {
	switch Track(strings.ToLower(strings.TrimSpace(s))) {
	case "", TrackEco:
		return TrackEco, nil
	case TrackXP:
		return TrackXP, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTrack, s)
	}
}

// ProgressKey is the persistence key for a user's track.
func ProgressKey(userID string, track Track) string {
	return userID + "/" + string(track)
}

// ─── Activity ───────────────────────────────────────────────────────────────

// Activity is one entry of the recent-activity feed.
type Activity struct {
	ID        string    `json:"id"`
	Key       string    `json:"key"`
	Kind      EventKind `json:"kind"`
	Ref       string    `json:"ref,omitempty"`
	Points    int64     `json:"points"`
	Badges    []BadgeID `json:"badges,omitempty"`
	Level     int       `json:"level"`
	LeveledUp bool      `json:"leveled_up"`
	At        int64     `json:"at"` // unix seconds
}

// ─── Leaderboard ────────────────────────────────────────────────────────────

// LeaderboardRow is one institution on the remote leaderboard.
type LeaderboardRow struct {
	Name        string `json:"name"`
	TotalPoints int64  `json:"total_points"`
	MemberCount int    `json:"member_count"`
}
