package domain

import "context"

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; application layer depends on them.

// ProgressStore persists ProgressState by key. Implemented by infra/sqlite.DB.
type ProgressStore interface {
	// Load returns the stored state and true, or a zero state and false when
	// nothing has been saved under key yet.
	Load(ctx context.Context, key string) (ProgressState, bool, error)

	// Save replaces the state stored under key.
	Save(ctx context.Context, key string, state ProgressState) error
}

// ActivityLog records and lists the recent-activity feed.
type ActivityLog interface {
	AppendActivity(ctx context.Context, a Activity) error
	ListActivity(ctx context.Context, key string, limit int) ([]Activity, error)
}

// RemoteSync is the hosted table backend. It is only ever called off the
// engine's path; failures are logged, never returned to engine callers.
type RemoteSync interface {
	// PushPoints records the user's new point total.
	PushPoints(ctx context.Context, userID string, total int64) error

	// FetchPoints returns the user's point total as the backend knows it.
	FetchPoints(ctx context.Context, userID string) (int64, error)

	// FetchLeaderboard returns institutions ordered by total points, highest first.
	FetchLeaderboard(ctx context.Context, limit int) ([]LeaderboardRow, error)
}
