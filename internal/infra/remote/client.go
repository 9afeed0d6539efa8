// Package remote talks to the hosted table backend (a PostgREST/Supabase
// REST endpoint) that mirrors user point totals and keeps the institution
// leaderboard.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ecolearn/ecolearn/internal/domain"
	"github.com/ecolearn/ecolearn/internal/infra/logger"
)

// Config addresses the backend tables.
type Config struct {
	URL          string        // project URL, e.g. https://xyz.supabase.co
	Key          string        // anon or service key
	UsersTable   string        // default "UsersDatabase"
	SchoolsTable string        // default "Schools"
	UserColumn   string        // column matched against the user id, default "email"
	Timeout      time.Duration // per request, default 10s
}

func (c *Config) withDefaults() {
	if c.UsersTable == "" {
		c.UsersTable = "UsersDatabase"
	}
	if c.SchoolsTable == "" {
		c.SchoolsTable = "Schools"
	}
	if c.UserColumn == "" {
		c.UserColumn = "email"
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
}

// Client implements domain.RemoteSync over PostgREST.
type Client struct {
	cfg  Config
	base string
	http *http.Client
	log  *logger.Logger
}

var _ domain.RemoteSync = (*Client)(nil)

// NewClient returns ErrRemoteDisabled when no URL is configured.
func NewClient(cfg Config, log *logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, domain.ErrRemoteDisabled
	}
	cfg.withDefaults()
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, fmt.Errorf("remote url: %w", err)
	}
	return &Client{
		cfg:  cfg,
		base: strings.TrimRight(cfg.URL, "/") + "/rest/v1/",
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log.With("service", "RemoteClient"),
	}, nil
}

type userRow struct {
	EcoPoints   *int64  `json:"eco_points"`
	Institution *string `json:"institution"`
}

type schoolRow struct {
	Name           string `json:"name"`
	TotalEcoPoints int64  `json:"total_ecopoints"`
	MemberCount    int    `json:"member_count"`
}

// PushPoints mirrors the user's new total and moves the institution total by
// the same delta. Nothing is written when the remote total already matches.
func (c *Client) PushPoints(ctx context.Context, userID string, total int64) error {
	row, err := c.userRow(ctx, userID)
	if err != nil {
		return err
	}
	var current int64
	if row.EcoPoints != nil {
		current = *row.EcoPoints
	}
	delta := total - current
	if delta == 0 {
		return nil
	}

	q := url.Values{c.cfg.UserColumn: {"eq." + userID}}
	if err := c.do(ctx, http.MethodPatch, c.cfg.UsersTable, q, map[string]any{"eco_points": total}, nil); err != nil {
		return fmt.Errorf("update user points: %w", err)
	}

	if row.Institution == nil || *row.Institution == "" {
		return nil
	}
	if err := c.addToSchool(ctx, *row.Institution, delta); err != nil {
		return fmt.Errorf("update institution %q: %w", *row.Institution, err)
	}
	return nil
}

// FetchPoints returns the user's remote total (0 when unset).
func (c *Client) FetchPoints(ctx context.Context, userID string) (int64, error) {
	row, err := c.userRow(ctx, userID)
	if err != nil {
		return 0, err
	}
	if row.EcoPoints == nil {
		return 0, nil
	}
	return *row.EcoPoints, nil
}

// FetchLeaderboard returns institutions by total points, highest first.
func (c *Client) FetchLeaderboard(ctx context.Context, limit int) ([]domain.LeaderboardRow, error) {
	if limit <= 0 {
		limit = 3
	}
	q := url.Values{
		"select": {"name,total_ecopoints,member_count"},
		"order":  {"total_ecopoints.desc"},
		"limit":  {strconv.Itoa(limit)},
	}
	var rows []schoolRow
	if err := c.do(ctx, http.MethodGet, c.cfg.SchoolsTable, q, nil, &rows); err != nil {
		return nil, fmt.Errorf("fetch leaderboard: %w", err)
	}

	out := make([]domain.LeaderboardRow, 0, len(rows))
	for _, r := range rows {
		name := r.Name
		if name == "" {
			name = "Institution"
		}
		out = append(out, domain.LeaderboardRow{Name: name, TotalPoints: r.TotalEcoPoints, MemberCount: r.MemberCount})
	}
	return out, nil
}

// Ping checks that the schools table answers.
func (c *Client) Ping(ctx context.Context) error {
	q := url.Values{"select": {"name"}, "limit": {"1"}}
	var rows []schoolRow
	return c.do(ctx, http.MethodGet, c.cfg.SchoolsTable, q, nil, &rows)
}

func (c *Client) userRow(ctx context.Context, userID string) (userRow, error) {
	q := url.Values{
		"select":         {"eco_points,institution"},
		c.cfg.UserColumn: {"eq." + userID},
	}
	var rows []userRow
	if err := c.do(ctx, http.MethodGet, c.cfg.UsersTable, q, nil, &rows); err != nil {
		return userRow{}, fmt.Errorf("fetch user %s: %w", userID, err)
	}
	if len(rows) == 0 {
		return userRow{}, fmt.Errorf("%w: %s", domain.ErrUserNotFound, userID)
	}
	return rows[0], nil
}

func (c *Client) addToSchool(ctx context.Context, name string, delta int64) error {
	q := url.Values{
		"select": {"name,total_ecopoints,member_count"},
		"name":   {"eq." + name},
	}
	var rows []schoolRow
	if err := c.do(ctx, http.MethodGet, c.cfg.SchoolsTable, q, nil, &rows); err != nil {
		return err
	}
	if len(rows) > 0 {
		body := map[string]any{"total_ecopoints": rows[0].TotalEcoPoints + delta}
		return c.do(ctx, http.MethodPatch, c.cfg.SchoolsTable, url.Values{"name": {"eq." + name}}, body, nil)
	}
	body := map[string]any{"name": name, "total_ecopoints": max(delta, 0), "member_count": 1}
	return c.do(ctx, http.MethodPost, c.cfg.SchoolsTable, nil, body, nil)
}

// do sends one PostgREST request and decodes a JSON response into out.
func (c *Client) do(ctx context.Context, method, table string, q url.Values, body, out any) error {
	u := c.base + url.PathEscape(table)
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return err
	}
	req.Header.Set("apikey", c.cfg.Key)
	req.Header.Set("Authorization", "Bearer "+c.cfg.Key)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Prefer", "return=minimal")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	c.log.Debug("remote request", "method", method, "table", table, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", method, table, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
