package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ecolearn/ecolearn/internal/domain"
)

// ─── Activity Feed ──────────────────────────────────────────────────────────

// AppendActivity records one feed entry.
func (d *DB) AppendActivity(ctx context.Context, a domain.Activity) error {
	badges, err := json.Marshal(a.Badges)
	if err != nil {
		return fmt.Errorf("encode activity badges: %w", err)
	}
	if a.Badges == nil {
		badges = []byte("[]")
	}
	_, err = d.db.ExecContext(ctx,
		`INSERT INTO activity (id, key, kind, ref, points, badges, level, leveled_up, at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Key, string(a.Kind), a.Ref, a.Points, string(badges), a.Level, a.LeveledUp, a.At,
	)
	if err != nil {
		return fmt.Errorf("append activity %s: %w", a.Key, err)
	}
	return nil
}

// ListActivity returns the newest entries for key, newest first.
// limit <= 0 means no limit.
func (d *DB) ListActivity(ctx context.Context, key string, limit int) ([]domain.Activity, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, key, kind, ref, points, badges, level, leveled_up, at
		 FROM activity WHERE key = ? ORDER BY at DESC, seq DESC LIMIT ?`,
		key, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list activity %s: %w", key, err)
	}
	defer rows.Close()

	var out []domain.Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan activity %s: %w", key, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanActivity(s scanner) (domain.Activity, error) {
	var a domain.Activity
	var kind, badges string
	if err := s.Scan(&a.ID, &a.Key, &kind, &a.Ref, &a.Points, &badges, &a.Level, &a.LeveledUp, &a.At); err != nil {
		return domain.Activity{}, err
	}
	a.Kind = domain.EventKind(kind)
	if err := json.Unmarshal([]byte(badges), &a.Badges); err != nil {
		return domain.Activity{}, err
	}
	if len(a.Badges) == 0 {
		a.Badges = nil
	}
	return a, nil
}
