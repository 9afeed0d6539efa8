// Package dashboard orchestrates a user action end to end: load progress,
// apply the engine, persist, queue the remote sync, record activity.
// It is the only caller of the engine and the only writer of progress.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/ecolearn/ecolearn/internal/app/attendance"
	"github.com/ecolearn/ecolearn/internal/app/engagement"
	"github.com/ecolearn/ecolearn/internal/domain"
	"github.com/ecolearn/ecolearn/internal/infra/catalog"
	"github.com/ecolearn/ecolearn/internal/infra/logger"
	"github.com/ecolearn/ecolearn/internal/infra/metrics"
)

// TrackConfig configures one progress track.
type TrackConfig struct {
	Engine     engagement.Config
	SeedPoints int64
	SeedStreak int
	SeedBadges []domain.BadgeID
}

// Notifier queues a point total for the remote backend.
type Notifier interface {
	Notify(userID string, total int64)
}

// PointsFetcher reads a user's remote point total.
type PointsFetcher interface {
	FetchPoints(ctx context.Context, userID string) (int64, error)
}

// LeaderboardReader returns the top institutions.
type LeaderboardReader interface {
	Top(ctx context.Context, limit int) ([]domain.LeaderboardRow, error)
}

// Options wires a Service. Store, Catalog and Tracks are required; the rest
// may be nil.
type Options struct {
	Tracks      map[domain.Track]TrackConfig
	Store       domain.ProgressStore
	Activity    domain.ActivityLog
	Catalog     *catalog.Catalog
	Sync        Notifier
	Remote      PointsFetcher
	Leaderboard LeaderboardReader
	Clock       domain.Clock
	Log         *logger.Logger

	// SyncTrack is the track whose totals mirror to the backend. Default eco.
	SyncTrack domain.Track
}

// Service is safe for concurrent use. Calls for the same user and track are
// serialized; different keys proceed in parallel.
type Service struct {
	engines     map[domain.Track]*engagement.Engine
	tracks      map[domain.Track]TrackConfig
	store       domain.ProgressStore
	activity    domain.ActivityLog
	catalog     *catalog.Catalog
	sync        Notifier
	remote      PointsFetcher
	leaderboard LeaderboardReader
	clock       domain.Clock
	log         *logger.Logger
	syncTrack   domain.Track

	// Both maps stay bounded: a lock lives only while someone holds or waits
	// for it, and cache only holds states whose last save failed.
	mu    sync.Mutex
	locks map[string]*keyLock
	cache map[string]domain.ProgressState
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewService builds a service with one engine per configured track.
func NewService(opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, errors.New("dashboard: progress store is required")
	}
	if opts.Catalog == nil {
		return nil, errors.New("dashboard: catalog is required")
	}
	if len(opts.Tracks) == 0 {
		return nil, errors.New("dashboard: at least one track is required")
	}
	if opts.Clock == nil {
		opts.Clock = domain.SystemClock{}
	}
	if opts.Log == nil {
		opts.Log = logger.Nop()
	}
	if opts.SyncTrack == "" {
		opts.SyncTrack = domain.TrackEco
	}

	s := &Service{
		engines:     make(map[domain.Track]*engagement.Engine, len(opts.Tracks)),
		tracks:      opts.Tracks,
		store:       opts.Store,
		activity:    opts.Activity,
		catalog:     opts.Catalog,
		sync:        opts.Sync,
		remote:      opts.Remote,
		leaderboard: opts.Leaderboard,
		clock:       opts.Clock,
		log:         opts.Log.With("service", "Dashboard"),
		syncTrack:   opts.SyncTrack,
		locks:       make(map[string]*keyLock),
		cache:       make(map[string]domain.ProgressState),
	}
	for track, tc := range opts.Tracks {
		eng := engagement.New(tc.Engine, nil)
		for _, b := range tc.SeedBadges {
			if _, ok := eng.Badge(b); !ok {
				return nil, fmt.Errorf("dashboard: track %s seeds unknown badge %q", track, b)
			}
		}
		for _, b := range opts.Catalog.BadgeRewards() {
			if _, ok := eng.Badge(b); !ok {
				return nil, fmt.Errorf("dashboard: challenge reward %q is not a badge", b)
			}
		}
		s.engines[track] = eng
	}
	return s, nil
}

// ─── Results ────────────────────────────────────────────────────────────────

// Result is the outcome of one user action.
type Result struct {
	UserID  string               `json:"user_id"`
	Track   domain.Track         `json:"track"`
	State   domain.ProgressState `json:"state"`
	Effects domain.Effects       `json:"effects"`
	// Persisted is false when the local save failed; State is still current.
	Persisted bool `json:"persisted"`
}

// QuizResult adds the graded score to Result.
type QuizResult struct {
	Result
	Correct      int `json:"correct"`
	Total        int `json:"total"`
	ScorePercent int `json:"score_percent"`
}

// BadgeView is a catalog badge with the user's earned flag.
type BadgeView struct {
	domain.BadgeDefinition
	Earned bool `json:"earned"`
}

// Progress is the dashboard header: totals, level progress, badge shelf.
type Progress struct {
	UserID        string               `json:"user_id"`
	Track         domain.Track         `json:"track"`
	State         domain.ProgressState `json:"state"`
	LevelProgress float64              `json:"level_progress"`
	ToNextLevel   int64                `json:"to_next_level"`
	Badges        []BadgeView          `json:"badges"`
	Today         domain.DateKey       `json:"today"`
	LoggedInToday bool                 `json:"logged_in_today"`
}

// Heatmap is the attendance projection plus summary.
type Heatmap struct {
	Weeks int               `json:"weeks"`
	Cells []attendance.Cell `json:"cells"`
	Stats attendance.Stats  `json:"stats"`
}

// ─── Actions ────────────────────────────────────────────────────────────────

// Login applies today's daily login.
func (s *Service) Login(ctx context.Context, userID string, track domain.Track) (Result, error) {
	return s.apply(ctx, userID, track, domain.DailyLogin{})
}

// CompleteMission pays a catalog mission.
func (s *Service) CompleteMission(ctx context.Context, userID string, track domain.Track, missionID string) (Result, error) {
	m, err := s.catalog.Mission(missionID)
	if err != nil {
		return Result{}, err
	}
	return s.apply(ctx, userID, track, m.Event())
}

// FinishQuiz grades answers and pays the quiz.
func (s *Service) FinishQuiz(ctx context.Context, userID string, track domain.Track, quizID string, answers []int) (QuizResult, error) {
	q, err := s.catalog.Quiz(quizID)
	if err != nil {
		return QuizResult{}, err
	}
	ev := q.Event(answers)
	res, err := s.apply(ctx, userID, track, ev)
	if err != nil {
		return QuizResult{}, err
	}
	return QuizResult{
		Result:       res,
		Correct:      ev.CorrectCount,
		Total:        ev.TotalQuestions,
		ScorePercent: engagement.ScorePercent(ev.CorrectCount, ev.TotalQuestions),
	}, nil
}

// JoinChallenge pays a catalog challenge and grants its badge.
func (s *Service) JoinChallenge(ctx context.Context, userID string, track domain.Track, challengeID string) (Result, error) {
	ch, err := s.catalog.Challenge(challengeID)
	if err != nil {
		return Result{}, err
	}
	return s.apply(ctx, userID, track, ch.Event())
}

// Refresh adopts a higher point total from the remote backend. Only the
// sync track mirrors the backend; other tracks return ErrTrackNotSynced.
func (s *Service) Refresh(ctx context.Context, userID string, track domain.Track) (Result, error) {
	if s.remote == nil {
		return Result{}, domain.ErrRemoteDisabled
	}
	eng, key, err := s.resolve(userID, track)
	if err != nil {
		return Result{}, err
	}
	if track != s.syncTrack {
		return Result{}, fmt.Errorf("%w: %s", domain.ErrTrackNotSynced, track)
	}
	remotePts, err := s.remote.FetchPoints(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("refresh %s: %w", key, err)
	}

	unlock := s.lockKey(key)
	defer unlock()

	state, _, err := s.stored(ctx, eng, key, track)
	if err != nil {
		return Result{}, err
	}
	next, fx := eng.MergeRemote(state, remotePts)
	res := Result{UserID: userID, Track: track, State: next, Effects: fx, Persisted: true}
	if next.Points == state.Points {
		return res, nil
	}

	s.recordEffects(domain.KindRemoteMerge, fx)
	res.Persisted = s.persist(ctx, key, next)
	s.appendActivity(ctx, key, domain.KindRemoteMerge, "", next, fx)
	s.log.Info("remote points merged", "user", userID, "track", track, "points", next.Points, "delta", fx.PointsAwarded)
	return res, nil
}

// ─── Queries ────────────────────────────────────────────────────────────────

// Progress returns the current state with derived level and badge views.
func (s *Service) Progress(ctx context.Context, userID string, track domain.Track) (Progress, error) {
	eng, key, err := s.resolve(userID, track)
	if err != nil {
		return Progress{}, err
	}
	unlock := s.lockKey(key)
	state, err := s.current(ctx, eng, userID, key, track)
	unlock()
	if err != nil {
		return Progress{}, err
	}

	defs := eng.Badges()
	views := make([]BadgeView, len(defs))
	for i, d := range defs {
		views[i] = BadgeView{BadgeDefinition: d, Earned: state.HasBadge(d.ID)}
	}
	today := domain.Today(s.clock)
	return Progress{
		UserID:        userID,
		Track:         track,
		State:         state,
		LevelProgress: eng.Progress(state.Points),
		ToNextLevel:   eng.ToNextLevel(state.Points),
		Badges:        views,
		Today:         today,
		LoggedInToday: state.LastActivityDay == today,
	}, nil
}

// Heatmap projects the attendance map over weeks ending today.
func (s *Service) Heatmap(ctx context.Context, userID string, track domain.Track, weeks int) (Heatmap, error) {
	if weeks <= 0 {
		weeks = attendance.DefaultWeeks
	}
	eng, key, err := s.resolve(userID, track)
	if err != nil {
		return Heatmap{}, err
	}
	unlock := s.lockKey(key)
	state, err := s.current(ctx, eng, userID, key, track)
	unlock()
	if err != nil {
		return Heatmap{}, err
	}

	cells, err := attendance.Project(state.Attendance, weeks, domain.Today(s.clock))
	if err != nil {
		return Heatmap{}, err
	}
	return Heatmap{Weeks: weeks, Cells: cells, Stats: attendance.Summary(state.Attendance, attendance.DaysPerWeek)}, nil
}

// Activity lists recent feed entries, newest first.
func (s *Service) Activity(ctx context.Context, userID string, track domain.Track, limit int) ([]domain.Activity, error) {
	_, key, err := s.resolve(userID, track)
	if err != nil {
		return nil, err
	}
	if s.activity == nil {
		return nil, nil
	}
	return s.activity.ListActivity(ctx, key, limit)
}

// Leaderboard returns the top institutions.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardRow, error) {
	if s.leaderboard == nil {
		return nil, domain.ErrRemoteDisabled
	}
	return s.leaderboard.Top(ctx, limit)
}

// Catalog returns the content catalog.
func (s *Service) Catalog() *catalog.Catalog { return s.catalog }

// Badges returns the badge catalog of a track.
func (s *Service) Badges(track domain.Track) ([]domain.BadgeDefinition, error) {
	eng, ok := s.engines[track]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownTrack, track)
	}
	return eng.Badges(), nil
}

// ─── Internals ──────────────────────────────────────────────────────────────

func (s *Service) apply(ctx context.Context, userID string, track domain.Track, ev domain.Event) (Result, error) {
	eng, key, err := s.resolve(userID, track)
	if err != nil {
		return Result{}, err
	}
	unlock := s.lockKey(key)
	defer unlock()

	state, err := s.current(ctx, eng, userID, key, track)
	if err != nil {
		return Result{}, err
	}

	next, fx := eng.Apply(state, ev, domain.Today(s.clock))
	s.recordEffects(ev.Kind(), fx)
	res := Result{UserID: userID, Track: track, State: next, Effects: fx, Persisted: true}

	switch {
	case fx.Rejected:
		s.log.Warn("event rejected", "user", userID, "track", track, "kind", ev.Kind(), "ref", ev.Ref(), "reason", fx.Reason)
		return res, nil
	case fx.AlreadyDone:
		s.log.Debug("event already applied", "user", userID, "track", track, "kind", ev.Kind(), "ref", ev.Ref())
		return res, nil
	}

	res.Persisted = s.persist(ctx, key, next)
	if res.Persisted && s.sync != nil && track == s.syncTrack {
		s.sync.Notify(userID, next.Points)
	}
	s.appendActivity(ctx, key, ev.Kind(), ev.Ref(), next, fx)

	s.log.Info("event applied",
		"user", userID, "track", track, "kind", ev.Kind(), "ref", ev.Ref(),
		"awarded", fx.PointsAwarded, "points", next.Points, "level", next.Level,
		"badges", fx.BadgesUnlocked, "leveled_up", fx.LeveledUp)
	return res, nil
}

func (s *Service) resolve(userID string, track domain.Track) (*engagement.Engine, string, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, "", domain.ErrInvalidUserID
	}
	eng, ok := s.engines[track]
	if !ok {
		return nil, "", fmt.Errorf("%w: %q", domain.ErrUnknownTrack, track)
	}
	return eng, domain.ProgressKey(userID, track), nil
}

// current returns the user's state: stored, or a first-time seed hydrated
// from the remote backend. Caller holds the key lock.
func (s *Service) current(ctx context.Context, eng *engagement.Engine, userID, key string, track domain.Track) (domain.ProgressState, error) {
	st, found, err := s.stored(ctx, eng, key, track)
	if err != nil || found {
		return st, err
	}
	return s.hydrate(ctx, eng, userID, track, st), nil
}

// stored returns the unsaved cached state, else the stored one. found is
// false when neither exists and st is the plain track seed.
func (s *Service) stored(ctx context.Context, eng *engagement.Engine, key string, track domain.Track) (st domain.ProgressState, found bool, err error) {
	s.mu.Lock()
	st, ok := s.cache[key]
	s.mu.Unlock()
	if ok {
		return st, true, nil
	}

	st, found, err = s.store.Load(ctx, key)
	if err != nil {
		return domain.ProgressState{}, false, fmt.Errorf("load %s: %w", key, err)
	}
	if !found {
		return eng.Normalize(s.seed(track)), false, nil
	}
	return eng.Normalize(st), true, nil
}

// hydrate raises a first-time seed to the remote total when the sync
// track's backend already holds more points. Remote errors only cost the
// merge.
func (s *Service) hydrate(ctx context.Context, eng *engagement.Engine, userID string, track domain.Track, seed domain.ProgressState) domain.ProgressState {
	if s.remote == nil || track != s.syncTrack {
		return seed
	}

	remotePts, err := s.remote.FetchPoints(ctx, userID)
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		s.log.Debug("no remote profile to hydrate from", "user", userID)
		return seed
	case err != nil:
		s.log.Warn("remote hydrate failed, using local seed", "user", userID, "error", err)
		return seed
	}
	merged, fx := eng.MergeRemote(seed, remotePts)
	if fx.PointsAwarded > 0 {
		s.log.Info("seed hydrated from remote", "user", userID, "track", track, "points", merged.Points)
	}
	return merged
}

func (s *Service) seed(track domain.Track) domain.ProgressState {
	tc := s.tracks[track]
	st := domain.NewProgressState()
	st.Points = tc.SeedPoints
	st.Streak = tc.SeedStreak
	for _, b := range tc.SeedBadges {
		st.Badges[b] = true
	}
	return st
}

// persist saves next. A failed save is logged and counted, and next stays
// cached as the authoritative state until a later save succeeds.
func (s *Service) persist(ctx context.Context, key string, next domain.ProgressState) bool {
	if err := s.store.Save(ctx, key, next); err != nil {
		metrics.PersistFailures.Inc()
		s.log.Error("progress save failed, keeping in-memory state", "key", key, "points", next.Points, "error", err)
		s.mu.Lock()
		s.cache[key] = next
		s.mu.Unlock()
		return false
	}
	s.mu.Lock()
	delete(s.cache, key)
	s.mu.Unlock()
	return true
}

func (s *Service) appendActivity(ctx context.Context, key string, kind domain.EventKind, ref string, next domain.ProgressState, fx domain.Effects) {
	if s.activity == nil {
		return
	}
	a := domain.Activity{
		ID:        uuid.NewString(),
		Key:       key,
		Kind:      kind,
		Ref:       ref,
		Points:    fx.PointsAwarded,
		Badges:    fx.BadgesUnlocked,
		Level:     next.Level,
		LeveledUp: fx.LeveledUp,
		At:        s.clock.Now().Unix(),
	}
	if err := s.activity.AppendActivity(ctx, a); err != nil {
		s.log.Warn("activity append failed", "key", key, "kind", kind, "error", err)
	}
}

func (s *Service) recordEffects(kind domain.EventKind, fx domain.Effects) {
	outcome := metrics.OutcomeApplied
	switch {
	case fx.Rejected:
		outcome = metrics.OutcomeRejected
	case fx.AlreadyDone:
		outcome = metrics.OutcomeAlreadyDone
	}
	metrics.EventsTotal.WithLabelValues(string(kind), outcome).Inc()
	if outcome != metrics.OutcomeApplied {
		return
	}
	metrics.PointsAwarded.WithLabelValues(string(kind)).Add(float64(fx.PointsAwarded))
	for _, b := range fx.BadgesUnlocked {
		metrics.BadgesUnlocked.WithLabelValues(string(b)).Inc()
	}
	if fx.LeveledUp {
		metrics.LevelUps.Inc()
	}
}

// lockKey serializes work on one progress key and returns the unlock func.
// The lock is dropped from the map once nobody holds or waits for it.
func (s *Service) lockKey(key string) func() {
	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &keyLock{}
		s.locks[key] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, key)
		}
		s.mu.Unlock()
	}
}

// tracked reports how many keys hold a lock or an unsaved state.
func (s *Service) tracked() (locks, cached int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks), len(s.cache)
}
