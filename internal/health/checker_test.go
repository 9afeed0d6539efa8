package health

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ecolearn/ecolearn/internal/infra/sqlite"
)

func newTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	dir := t.TempDir()
	db, err := sqlite.Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

// ─── Checker Tests ──────────────────────────────────────────────────────────

func TestChecker_RunAllHealthy(t *testing.T) {
	db := newTestDB(t)
	c := NewChecker(0, PingCheck("sqlite", db), DataDirCheck(t.TempDir()))
	c.RunOnce(context.Background())

	statuses := c.Statuses()
	if len(statuses) != 2 {
		t.Fatalf("Statuses() = %d, want 2", len(statuses))
	}
	for _, s := range statuses {
		if !s.Healthy {
			t.Errorf("check %q should be healthy, got error: %s", s.Name, s.Error)
		}
	}
	if !c.IsHealthy() {
		t.Error("IsHealthy() should be true when all checks pass")
	}
}

func TestChecker_IsHealthy_BeforeRun(t *testing.T) {
	c := NewChecker(0, PingCheck("x", pingFunc(func(context.Context) error { return errors.New("down") })))

	// Before any run, there are no statuses, so IsHealthy returns true (vacuously)
	if !c.IsHealthy() {
		t.Error("IsHealthy() should be true before first run (no statuses)")
	}
}

func TestChecker_FailingCheck(t *testing.T) {
	c := NewChecker(0,
		PingCheck("remote", pingFunc(func(context.Context) error { return errors.New("connection refused") })),
	)
	c.RunOnce(context.Background())

	if c.IsHealthy() {
		t.Error("IsHealthy() should be false")
	}
	s := c.Statuses()[0]
	if s.Healthy || s.Error != "connection refused" {
		t.Errorf("unexpected status %+v", s)
	}
}

func TestChecker_ClosedDatabase(t *testing.T) {
	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	db.Close()

	c := NewChecker(0, PingCheck("sqlite", db))
	c.RunOnce(context.Background())
	if c.IsHealthy() {
		t.Error("closed database should be unhealthy")
	}
}

func TestBacklogCheck(t *testing.T) {
	n := 0
	c := NewChecker(0, BacklogCheck(func() int { return n }, 5))

	c.RunOnce(context.Background())
	if !c.IsHealthy() {
		t.Error("empty backlog should be healthy")
	}

	n = 6
	c.RunOnce(context.Background())
	if c.IsHealthy() {
		t.Error("backlog over max should be unhealthy")
	}
}

func TestDataDirCheck_Recovers(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	c := NewChecker(0, DataDirCheck(dir))

	c.RunOnce(context.Background())
	if c.IsHealthy() {
		t.Error("missing dir should fail the first run")
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("recovery should recreate dir: %v", err)
	}

	c.RunOnce(context.Background())
	if !c.IsHealthy() {
		t.Errorf("dir should be healthy after recovery: %+v", c.Statuses())
	}
}

func TestChecker_RunStopsOnCancel(t *testing.T) {
	c := NewChecker(10*time.Millisecond, PingCheck("ok", pingFunc(func(context.Context) error { return nil })))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if len(c.Statuses()) != 1 {
		t.Error("expected statuses recorded")
	}
}
