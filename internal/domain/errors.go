package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure: no infrastructure dependency.
// The engine itself never returns errors; these are for the layers around it.

var (
	// Input
	ErrInvalidDateKey = errors.New("invalid date key, want YYYY-MM-DD")
	ErrInvalidUserID  = errors.New("user id must not be empty")

	// Content lookups
	ErrUnknownMission   = errors.New("mission not found")
	ErrUnknownQuiz      = errors.New("quiz not found")
	ErrUnknownChallenge = errors.New("challenge not found")
	ErrUnknownTrack     = errors.New("unknown progress track")

	// Remote backend
	ErrRemoteDisabled = errors.New("remote backend not configured")
	ErrUserNotFound   = errors.New("user row not found on remote backend")
	ErrTrackNotSynced = errors.New("track does not sync with the remote backend")
)
