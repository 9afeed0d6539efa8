package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ecolearn/ecolearn/internal/api"
	"github.com/ecolearn/ecolearn/internal/app/dashboard"
	"github.com/ecolearn/ecolearn/internal/domain"
	"github.com/ecolearn/ecolearn/internal/health"
	"github.com/ecolearn/ecolearn/internal/infra/catalog"
	"github.com/ecolearn/ecolearn/internal/infra/logger"
	"github.com/ecolearn/ecolearn/internal/infra/remote"
	"github.com/ecolearn/ecolearn/internal/infra/sqlite"
)

// Version is stamped at build time.
var Version = "dev"

// syncBacklogLimit is the pending-push count above which health degrades.
const syncBacklogLimit = 1000

// Daemon is the core EcoLearn runtime. It wires together all services.
type Daemon struct {
	Config    Config
	Log       *logger.Logger
	DB        *sqlite.DB
	Catalog   *catalog.Catalog
	Dashboard *dashboard.Service
	Server    *api.Server
	Health    *health.Checker

	// Remote side; nil when [remote] url is empty.
	Remote      *remote.Client
	Syncer      *remote.Syncer
	Leaderboard *remote.Leaderboard
	Cache       *remote.RedisCache
}

// New creates and initializes a Daemon with all services wired.
func New(ctx context.Context) (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	return NewWithConfig(ctx, cfg, Home())
}

// NewWithConfig creates a Daemon with the given configuration, storing its
// database under dir.
func NewWithConfig(ctx context.Context, cfg Config, dir string) (*Daemon, error) {
	log, err := logger.New(cfg.Logging.Mode, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	// Open SQLite
	db, err := sqlite.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	cat, err := catalog.Load(cfg.Content.File)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("load content: %w", err)
	}

	d := &Daemon{
		Config:  cfg,
		Log:     log.With("service", "Daemon"),
		DB:      db,
		Catalog: cat,
	}

	opts := dashboard.Options{
		Tracks:   cfg.DashboardTracks(),
		Store:    db,
		Activity: db,
		Catalog:  cat,
		Log:      log,
	}
	checks := []health.Check{
		health.PingCheck("sqlite", db),
		health.DataDirCheck(dir),
	}

	// ─── Remote backend (optional) ─────────────────────────────────────

	client, err := remote.NewClient(cfg.RemoteClientConfig(), log)
	switch {
	case errors.Is(err, domain.ErrRemoteDisabled):
		d.Log.Info("remote sync disabled")
	case err != nil:
		db.Close()
		return nil, err
	default:
		d.Remote = client
		d.Syncer = remote.NewSyncer(client, log, 0)
		breaker := remote.NewBreaker(remote.DefaultBreakerConfig())
		d.Syncer.SetBreaker(breaker)

		var cache remote.Cache
		if cfg.Cache.RedisAddr != "" {
			rc, err := remote.NewRedisCache(ctx, cfg.Cache.RedisAddr)
			if err != nil {
				d.Log.Warn("redis unavailable, leaderboard cache disabled", "addr", cfg.Cache.RedisAddr, "error", err)
			} else {
				d.Cache = rc
				cache = rc
				checks = append(checks, health.PingCheck("redis", rc))
			}
		}
		d.Leaderboard = remote.NewLeaderboard(client, cache, parseDuration(cfg.Cache.TTL, time.Minute), log)

		opts.Sync = d.Syncer
		opts.Remote = client
		opts.Leaderboard = d.Leaderboard
		checks = append(checks,
			health.PingCheck("remote", client),
			health.BacklogCheck(d.Syncer.Pending, syncBacklogLimit),
			health.Check{
				Name: "sync_breaker",
				CheckFn: func(context.Context) error {
					if breaker.State() == remote.BreakerOpen {
						return remote.ErrBreakerOpen
					}
					return nil
				},
			},
		)
	}

	svc, err := dashboard.NewService(opts)
	if err != nil {
		d.closeStores()
		return nil, err
	}
	d.Dashboard = svc
	d.Health = health.NewChecker(30*time.Second, checks...)

	// Initialize API server
	srv := api.NewServer(svc, log)
	srv.SetVersion(Version)
	srv.SetHealth(d.Health)
	srv.SetCORSOrigins(cfg.API.CORSOrigins)
	if cfg.API.Metrics {
		srv.EnableMetrics()
	}
	d.Server = srv

	return d, nil
}

// Serve starts the HTTP server and background workers, and blocks until
// ctx is cancelled or SIGINT/SIGTERM arrives.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := fmt.Sprintf("%s:%d", d.Config.API.Host, d.Config.API.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      d.Server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		d.Health.Run(gctx)
		return nil
	})

	if d.Syncer != nil {
		g.Go(func() error { return d.Syncer.Run(gctx) })
	}

	g.Go(func() error {
		d.Log.Info("serving", "addr", "http://"+addr, "metrics", d.Config.API.Metrics, "remote", d.Remote != nil)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return err
}

// Close flushes queued remote pushes and releases all resources.
func (d *Daemon) Close(ctx context.Context) error {
	var errs []error
	if d.Syncer != nil {
		if err := d.Syncer.Drain(ctx); err != nil {
			errs = append(errs, fmt.Errorf("drain sync queue: %w", err))
		}
	}
	errs = append(errs, d.closeStores())
	d.Log.Sync()
	return errors.Join(errs...)
}

func (d *Daemon) closeStores() error {
	var errs []error
	if d.Cache != nil {
		errs = append(errs, d.Cache.Close())
	}
	if d.DB != nil {
		errs = append(errs, d.DB.Close())
	}
	return errors.Join(errs...)
}
