package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ecolearn/ecolearn/internal/app/engagement"
	"github.com/ecolearn/ecolearn/internal/domain"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "127.0.0.1")
	}
	if cfg.API.Port != 8686 {
		t.Errorf("API.Port = %d, want %d", cfg.API.Port, 8686)
	}
	if cfg.Engine.BasePoints != 10 || cfg.Engine.StreakCap != 10 {
		t.Errorf("Engine = %+v, want base 10 cap 10", cfg.Engine)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestDashboardTracks(t *testing.T) {
	tracks := DefaultConfig().DashboardTracks()

	eco, ok := tracks[domain.TrackEco]
	if !ok {
		t.Fatal("eco track missing")
	}
	if eco.Engine.LevelSize != 100 || eco.SeedPoints != 120 || eco.SeedStreak != 3 {
		t.Errorf("eco = %+v, want level 100 seed 120/3", eco)
	}
	if len(eco.SeedBadges) != 1 || eco.SeedBadges[0] != engagement.BadgeSeed {
		t.Errorf("eco seed badges = %v, want [seed]", eco.SeedBadges)
	}

	xp := tracks[domain.TrackXP]
	if xp.Engine != engagement.DefaultConfig() {
		t.Errorf("xp engine = %+v, want defaults", xp.Engine)
	}
	if xp.SeedPoints != 0 || len(xp.SeedBadges) != 0 {
		t.Errorf("xp should start empty, got %+v", xp)
	}
}

func TestLoadConfigFrom_Missing(t *testing.T) {
	cfg, err := LoadConfigFrom(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("LoadConfigFrom: %v", err)
	}
	if cfg.API.Port != 8686 {
		t.Errorf("expected defaults, got port %d", cfg.API.Port)
	}
}

func TestLoadConfigFrom_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
[user]
email = "ada@example.com"

[api]
port = 9000

[remote]
url = "https://example.supabase.co"
timeout = "3s"

[tracks.eco]
level_size = 200
seed_points = 50
`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFrom(path)
	if err != nil {
		t.Fatalf("LoadConfigFrom: %v", err)
	}
	if cfg.API.Port != 9000 {
		t.Errorf("API.Port = %d, want 9000", cfg.API.Port)
	}
	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("unset fields keep defaults, got host %q", cfg.API.Host)
	}
	if cfg.DefaultUser() != "ada@example.com" {
		t.Errorf("DefaultUser = %q", cfg.DefaultUser())
	}
	rc := cfg.RemoteClientConfig()
	if rc.Timeout != 3*time.Second || rc.UsersTable != "UsersDatabase" {
		t.Errorf("remote = %+v", rc)
	}
	if got := cfg.DashboardTracks()[domain.TrackEco]; got.Engine.LevelSize != 200 || got.SeedPoints != 50 {
		t.Errorf("eco override not applied: %+v", got)
	}
	if _, ok := cfg.DashboardTracks()[domain.TrackXP]; !ok {
		t.Error("xp track should survive a partial tracks table")
	}
}

func TestLoadConfigFrom_Invalid(t *testing.T) {
	tests := map[string]string{
		"syntax":       "[api\nport = 1",
		"bad track":    "[tracks.gold]\nlevel_size = 5",
		"bad duration": "[cache]\nttl = \"soon\"",
		"bad port":     "[api]\nport = 70000",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(data), 0600); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadConfigFrom(path); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	t.Setenv("ECOLEARN_HOME", t.TempDir())

	cfg := DefaultConfig()
	cfg.User.ID = "u-42"
	cfg.Cache.RedisAddr = "localhost:6379"
	if err := SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	got, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if got.User.ID != "u-42" || got.Cache.RedisAddr != "localhost:6379" {
		t.Errorf("round trip lost fields: %+v", got)
	}
	if got.DefaultUser() != "u-42" {
		t.Errorf("DefaultUser = %q, want id fallback", got.DefaultUser())
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input string
		want  time.Duration
	}{
		{"5s", 5 * time.Second},
		{"", time.Minute},
		{"garbage", time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseDuration(tt.input, time.Minute); got != tt.want {
				t.Errorf("parseDuration(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
