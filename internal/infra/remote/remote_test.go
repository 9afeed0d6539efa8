package remote_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecolearn/ecolearn/internal/domain"
	"github.com/ecolearn/ecolearn/internal/infra/logger"
	"github.com/ecolearn/ecolearn/internal/infra/remote"
)

// fakeBackend is a minimal PostgREST stand-in for the two tables.
type fakeBackend struct {
	mu      sync.Mutex
	users   map[string]map[string]any // email -> row
	schools map[string]map[string]any // name -> row
	writes  int
	fail    bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{users: map[string]map[string]any{}, schools: map[string]map[string]any{}}
}

func eqValue(r *http.Request, col string) string {
	return strings.TrimPrefix(r.URL.Query().Get(col), "eq.")
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail {
		http.Error(w, `{"message":"boom"}`, http.StatusInternalServerError)
		return
	}
	if r.Header.Get("apikey") != "test-key" || r.Header.Get("Authorization") != "Bearer test-key" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var body map[string]any
	if r.Body != nil && r.Method != http.MethodGet {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	switch {
	case r.URL.Path == "/rest/v1/UsersDatabase" && r.Method == http.MethodGet:
		rows := []map[string]any{}
		if u, ok := f.users[eqValue(r, "email")]; ok {
			rows = append(rows, u)
		}
		_ = json.NewEncoder(w).Encode(rows)

	case r.URL.Path == "/rest/v1/UsersDatabase" && r.Method == http.MethodPatch:
		f.writes++
		if u, ok := f.users[eqValue(r, "email")]; ok {
			for k, v := range body {
				u[k] = v
			}
		}
		w.WriteHeader(http.StatusNoContent)

	case r.URL.Path == "/rest/v1/Schools" && r.Method == http.MethodGet:
		rows := []map[string]any{}
		if name := eqValue(r, "name"); name != "" {
			if s, ok := f.schools[name]; ok {
				rows = append(rows, s)
			}
		} else {
			for _, s := range f.schools {
				rows = append(rows, s)
			}
			sort.Slice(rows, func(i, j int) bool {
				return rows[i]["total_ecopoints"].(float64) > rows[j]["total_ecopoints"].(float64)
			})
			if lim, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && lim < len(rows) {
				rows = rows[:lim]
			}
		}
		_ = json.NewEncoder(w).Encode(rows)

	case r.URL.Path == "/rest/v1/Schools" && r.Method == http.MethodPatch:
		f.writes++
		if s, ok := f.schools[eqValue(r, "name")]; ok {
			for k, v := range body {
				s[k] = v
			}
		}
		w.WriteHeader(http.StatusNoContent)

	case r.URL.Path == "/rest/v1/Schools" && r.Method == http.MethodPost:
		f.writes++
		f.schools[body["name"].(string)] = body
		w.WriteHeader(http.StatusCreated)

	default:
		http.NotFound(w, r)
	}
}

func newClient(t *testing.T, f *fakeBackend) *remote.Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	c, err := remote.NewClient(remote.Config{URL: srv.URL, Key: "test-key", Timeout: 2 * time.Second}, logger.Nop())
	require.NoError(t, err)
	return c
}

// ─── Client ─────────────────────────────────────────────────────────────────

func TestNewClient_Disabled(t *testing.T) {
	_, err := remote.NewClient(remote.Config{}, logger.Nop())
	assert.ErrorIs(t, err, domain.ErrRemoteDisabled)
}

func TestPushPoints_UpdatesUserAndExistingSchool(t *testing.T) {
	f := newFakeBackend()
	f.users["ana@school.org"] = map[string]any{"eco_points": float64(100), "institution": "Green High"}
	f.schools["Green High"] = map[string]any{"name": "Green High", "total_ecopoints": float64(1000), "member_count": float64(12)}
	c := newClient(t, f)

	require.NoError(t, c.PushPoints(context.Background(), "ana@school.org", 150))

	assert.Equal(t, float64(150), f.users["ana@school.org"]["eco_points"])
	assert.Equal(t, float64(1050), f.schools["Green High"]["total_ecopoints"])
	assert.Equal(t, float64(12), f.schools["Green High"]["member_count"])
}

func TestPushPoints_InsertsNewSchool(t *testing.T) {
	f := newFakeBackend()
	f.users["ana@school.org"] = map[string]any{"eco_points": nil, "institution": "Lakeside"}
	c := newClient(t, f)

	require.NoError(t, c.PushPoints(context.Background(), "ana@school.org", 120))

	s, ok := f.schools["Lakeside"]
	require.True(t, ok, "school should be inserted")
	assert.Equal(t, float64(120), s["total_ecopoints"])
	assert.Equal(t, float64(1), s["member_count"])
}

func TestPushPoints_NegativeDeltaInsertsZero(t *testing.T) {
	f := newFakeBackend()
	f.users["ana@school.org"] = map[string]any{"eco_points": float64(300), "institution": "Lakeside"}
	c := newClient(t, f)

	require.NoError(t, c.PushPoints(context.Background(), "ana@school.org", 200))
	assert.Equal(t, float64(0), f.schools["Lakeside"]["total_ecopoints"])
}

func TestPushPoints_NoDeltaNoWrites(t *testing.T) {
	f := newFakeBackend()
	f.users["ana@school.org"] = map[string]any{"eco_points": float64(120), "institution": "Lakeside"}
	c := newClient(t, f)

	require.NoError(t, c.PushPoints(context.Background(), "ana@school.org", 120))
	assert.Zero(t, f.writes)
}

func TestPushPoints_NoInstitution(t *testing.T) {
	f := newFakeBackend()
	f.users["solo@example.org"] = map[string]any{"eco_points": float64(0)}
	c := newClient(t, f)

	require.NoError(t, c.PushPoints(context.Background(), "solo@example.org", 40))
	assert.Equal(t, 1, f.writes)
	assert.Empty(t, f.schools)
}

func TestPushPoints_UnknownUser(t *testing.T) {
	c := newClient(t, newFakeBackend())
	err := c.PushPoints(context.Background(), "ghost@example.org", 10)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestPushPoints_ServerError(t *testing.T) {
	f := newFakeBackend()
	f.fail = true
	c := newClient(t, f)

	err := c.PushPoints(context.Background(), "ana@school.org", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestFetchPoints(t *testing.T) {
	f := newFakeBackend()
	f.users["ana@school.org"] = map[string]any{"eco_points": float64(640)}
	f.users["new@school.org"] = map[string]any{"eco_points": nil}
	c := newClient(t, f)

	pts, err := c.FetchPoints(context.Background(), "ana@school.org")
	require.NoError(t, err)
	assert.Equal(t, int64(640), pts)

	pts, err = c.FetchPoints(context.Background(), "new@school.org")
	require.NoError(t, err)
	assert.Zero(t, pts)
}

func TestFetchLeaderboard(t *testing.T) {
	f := newFakeBackend()
	for i, name := range []string{"A", "B", "C", "D"} {
		f.schools[name] = map[string]any{"name": name, "total_ecopoints": float64(100 * (i + 1)), "member_count": float64(i + 1)}
	}
	c := newClient(t, f)

	rows, err := c.FetchLeaderboard(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "D", rows[0].Name)
	assert.Equal(t, int64(400), rows[0].TotalPoints)
	assert.Equal(t, "B", rows[2].Name)

	require.NoError(t, c.Ping(context.Background()))
}

// ─── Syncer ─────────────────────────────────────────────────────────────────

type recordingPusher struct {
	mu    sync.Mutex
	calls map[string][]int64
	err   error
	hits  atomic.Int32
}

func (p *recordingPusher) PushPoints(_ context.Context, user string, total int64) error {
	p.hits.Add(1)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.calls == nil {
		p.calls = map[string][]int64{}
	}
	p.calls[user] = append(p.calls[user], total)
	return p.err
}

func TestSyncer_DrainCollapsesToLatest(t *testing.T) {
	p := &recordingPusher{}
	s := remote.NewSyncer(p, logger.Nop(), time.Second)

	s.Notify("ana", 10)
	s.Notify("ana", 25)
	s.Notify("ben", 7)
	assert.Equal(t, 2, s.Pending())

	require.NoError(t, s.Drain(context.Background()))
	assert.Equal(t, []int64{25}, p.calls["ana"])
	assert.Equal(t, []int64{7}, p.calls["ben"])
	assert.Zero(t, s.Pending())
}

func TestSyncer_DrainReportsErrors(t *testing.T) {
	p := &recordingPusher{err: errors.New("offline")}
	s := remote.NewSyncer(p, logger.Nop(), time.Second)
	s.Notify("ana", 10)

	err := s.Drain(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "offline")
	assert.Zero(t, s.Pending(), "failed pushes are not requeued")
}

func TestSyncer_RunPushesInBackground(t *testing.T) {
	p := &recordingPusher{}
	s := remote.NewSyncer(p, logger.Nop(), time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = s.Run(ctx)
		close(done)
	}()

	s.Notify("ana", 42)
	assert.Eventually(t, func() bool { return p.hits.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestSyncer_RunRetriesHeldTotals(t *testing.T) {
	p := &recordingPusher{err: errors.New("503")}
	s := remote.NewSyncer(p, logger.Nop(), time.Second)
	s.SetBreaker(remote.NewBreaker(remote.BreakerConfig{FailureThreshold: 1, ResetTimeout: 200 * time.Millisecond, HalfOpenProbes: 1}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	// First push fails and opens the breaker.
	s.Notify("ana", 10)
	require.Eventually(t, func() bool { return p.hits.Load() == 1 }, 2*time.Second, 5*time.Millisecond)

	// Backend heals; the next total is held by the open breaker.
	p.mu.Lock()
	p.err = nil
	p.mu.Unlock()
	s.Notify("ana", 20)

	// No further Notify: the worker must retry on its own after the cooldown.
	require.Eventually(t, func() bool { return p.hits.Load() == 2 && s.Pending() == 0 }, 3*time.Second, 10*time.Millisecond)
	p.mu.Lock()
	defer p.mu.Unlock()
	assert.Equal(t, []int64{10, 20}, p.calls["ana"])
}

func TestSyncer_NotifyNeverBlocks(t *testing.T) {
	s := remote.NewSyncer(&recordingPusher{}, logger.Nop(), time.Second)
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			s.Notify("ana", int64(i))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked without a running worker")
	}
	assert.Equal(t, 1, s.Pending())
}

// ─── Leaderboard ────────────────────────────────────────────────────────────

type countingSource struct {
	calls atomic.Int32
	delay time.Duration
	err   error
}

func (s *countingSource) FetchLeaderboard(_ context.Context, limit int) ([]domain.LeaderboardRow, error) {
	s.calls.Add(1)
	time.Sleep(s.delay)
	if s.err != nil {
		return nil, s.err
	}
	rows := make([]domain.LeaderboardRow, limit)
	for i := range rows {
		rows[i] = domain.LeaderboardRow{Name: "S" + strconv.Itoa(i), TotalPoints: int64(100 - i)}
	}
	return rows, nil
}

type mapCache struct {
	mu sync.Mutex
	m  map[string][]byte
}

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, val []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.m == nil {
		c.m = map[string][]byte{}
	}
	c.m[key] = val
	return nil
}

func TestLeaderboard_CacheHit(t *testing.T) {
	src := &countingSource{}
	lb := remote.NewLeaderboard(src, &mapCache{}, time.Minute, logger.Nop())

	first, err := lb.Top(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, first, remote.DefaultLeaderboardSize)

	second, err := lb.Top(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestLeaderboard_SingleflightWithoutCache(t *testing.T) {
	src := &countingSource{delay: 50 * time.Millisecond}
	lb := remote.NewLeaderboard(src, nil, time.Minute, logger.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rows, err := lb.Top(context.Background(), 5)
			assert.NoError(t, err)
			assert.Len(t, rows, 5)
		}()
	}
	wg.Wait()
	assert.Less(t, src.calls.Load(), int32(10))
}

type gatedSource struct {
	calls   atomic.Int32
	release chan struct{}
}

func (s *gatedSource) FetchLeaderboard(ctx context.Context, _ int) ([]domain.LeaderboardRow, error) {
	s.calls.Add(1)
	select {
	case <-s.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return []domain.LeaderboardRow{{Name: "Green High", TotalPoints: 900}}, nil
}

func TestLeaderboard_CancelledCallerDoesNotFailOthers(t *testing.T) {
	src := &gatedSource{release: make(chan struct{})}
	lb := remote.NewLeaderboard(src, nil, time.Minute, logger.Nop())

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := lb.Top(first, 3)
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	type result struct {
		rows []domain.LeaderboardRow
		err  error
	}
	second := make(chan result, 1)
	go func() {
		rows, err := lb.Top(context.Background(), 3)
		second <- result{rows, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(src.release)
	select {
	case res := <-second:
		require.NoError(t, res.err)
		require.Len(t, res.rows, 1)
		assert.Equal(t, "Green High", res.rows[0].Name)
	case <-time.After(2 * time.Second):
		t.Fatal("waiting caller did not return")
	}
}

func TestLeaderboard_SourceError(t *testing.T) {
	src := &countingSource{err: errors.New("down")}
	lb := remote.NewLeaderboard(src, &mapCache{}, time.Minute, logger.Nop())
	_, err := lb.Top(context.Background(), 3)
	assert.Error(t, err)
}

func TestRedisCache(t *testing.T) {
	addr := os.Getenv("ECOLEARN_TEST_REDIS")
	if addr == "" {
		t.Skip("ECOLEARN_TEST_REDIS not set")
	}
	ctx := context.Background()
	c, err := remote.NewRedisCache(ctx, addr)
	require.NoError(t, err)
	defer c.Close()

	key := "test:" + strconv.FormatInt(time.Now().UnixNano(), 10)
	_, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, key, []byte("x"), time.Second))
	v, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("x"), v)
}
