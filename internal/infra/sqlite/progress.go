package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ecolearn/ecolearn/internal/domain"
)

// ─── Progress Repository ────────────────────────────────────────────────────

// Load reads the progress stored under key. ok is false when nothing is
// stored yet.
func (d *DB) Load(ctx context.Context, key string) (domain.ProgressState, bool, error) {
	st := domain.NewProgressState()

	var lastDay string
	err := d.db.QueryRowContext(ctx,
		`SELECT points, streak, last_day, level FROM progress WHERE key = ?`, key,
	).Scan(&st.Points, &st.Streak, &lastDay, &st.Level)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ProgressState{}, false, nil
	}
	if err != nil {
		return domain.ProgressState{}, false, fmt.Errorf("load progress %s: %w", key, err)
	}
	st.LastActivityDay = domain.DateKey(lastDay)

	if err := d.loadAttendance(ctx, key, st.Attendance); err != nil {
		return domain.ProgressState{}, false, err
	}
	if err := d.loadSet(ctx, func(v string) {
		st.Badges[domain.BadgeID(v)] = true
	}, `SELECT badge FROM progress_badges WHERE key = ?`, key); err != nil {
		return domain.ProgressState{}, false, fmt.Errorf("load badges %s: %w", key, err)
	}
	if err := d.loadSet(ctx, func(v string) {
		st.CompletedMissionIDs[v] = true
	}, `SELECT ref FROM completed_missions WHERE key = ?`, key); err != nil {
		return domain.ProgressState{}, false, fmt.Errorf("load completions %s: %w", key, err)
	}
	return st, true, nil
}

// Save writes state under key in one transaction. Attendance counts, badges
// and completions only ever grow, so rows are upserted and never deleted.
func (d *DB) Save(ctx context.Context, key string, state domain.ProgressState) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save %s: %w", key, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	now := time.Now().Unix()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO progress (key, points, streak, last_day, level, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
			points=excluded.points,
			streak=excluded.streak,
			last_day=excluded.last_day,
			level=excluded.level,
			updated_at=excluded.updated_at`,
		key, state.Points, state.Streak, string(state.LastActivityDay), state.Level, now,
	); err != nil {
		return fmt.Errorf("save progress %s: %w", key, err)
	}

	for day, count := range state.Attendance {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO attendance (key, day, count) VALUES (?, ?, ?)
			 ON CONFLICT(key, day) DO UPDATE SET count=excluded.count`,
			key, string(day), count,
		); err != nil {
			return fmt.Errorf("save attendance %s: %w", key, err)
		}
	}
	for badge, ok := range state.Badges {
		if !ok {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO progress_badges (key, badge, unlocked_at) VALUES (?, ?, ?)`,
			key, string(badge), now,
		); err != nil {
			return fmt.Errorf("save badges %s: %w", key, err)
		}
	}
	for ref, ok := range state.CompletedMissionIDs {
		if !ok {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO completed_missions (key, ref, completed_at) VALUES (?, ?, ?)`,
			key, ref, now,
		); err != nil {
			return fmt.Errorf("save completions %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save %s: %w", key, err)
	}
	return nil
}

// Keys lists every stored progress key.
func (d *DB) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := d.loadSet(ctx, func(v string) {
		keys = append(keys, v)
	}, `SELECT key FROM progress ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list progress keys: %w", err)
	}
	return keys, nil
}

func (d *DB) loadAttendance(ctx context.Context, key string, into map[domain.DateKey]int) error {
	rows, err := d.db.QueryContext(ctx, `SELECT day, count FROM attendance WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("load attendance %s: %w", key, err)
	}
	defer rows.Close()

	for rows.Next() {
		var day string
		var count int
		if err := rows.Scan(&day, &count); err != nil {
			return fmt.Errorf("scan attendance %s: %w", key, err)
		}
		into[domain.DateKey(day)] = count
	}
	return rows.Err()
}

// loadSet runs a single-column query and hands every value to add.
func (d *DB) loadSet(ctx context.Context, add func(string), query string, args ...any) error {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return err
		}
		add(v)
	}
	return rows.Err()
}
