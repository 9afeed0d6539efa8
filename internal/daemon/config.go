// Package daemon manages the EcoLearn runtime lifecycle and configuration.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/ecolearn/ecolearn/internal/app/dashboard"
	"github.com/ecolearn/ecolearn/internal/app/engagement"
	"github.com/ecolearn/ecolearn/internal/domain"
	"github.com/ecolearn/ecolearn/internal/infra/remote"
)

// Config holds all daemon configuration.
type Config struct {
	User    UserConfig             `toml:"user"`
	API     APIConfig              `toml:"api"`
	Engine  EngineConfig           `toml:"engine"`
	Tracks  map[string]TrackConfig `toml:"tracks"`
	Remote  RemoteConfig           `toml:"remote"`
	Cache   CacheConfig            `toml:"cache"`
	Content ContentConfig          `toml:"content"`
	Logging LoggingConfig          `toml:"logging"`
}

// UserConfig is the default identity for CLI commands.
type UserConfig struct {
	ID    string `toml:"id"`
	Email string `toml:"email"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host        string   `toml:"host"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	Metrics     bool     `toml:"metrics"`
}

// EngineConfig holds the award constants shared by every track.
type EngineConfig struct {
	BasePoints         int64 `toml:"base_points"`
	StreakCap          int   `toml:"streak_cap"`
	LargeMissionPoints int64 `toml:"large_mission_points"`
}

// TrackConfig configures one progress track.
type TrackConfig struct {
	LevelSize  int64    `toml:"level_size"`
	SeedPoints int64    `toml:"seed_points"`
	SeedStreak int      `toml:"seed_streak"`
	SeedBadges []string `toml:"seed_badges"`
}

// RemoteConfig addresses the hosted table backend. Empty URL disables sync.
type RemoteConfig struct {
	URL          string `toml:"url"`
	Key          string `toml:"key"`
	UsersTable   string `toml:"users_table"`
	SchoolsTable string `toml:"schools_table"`
	Timeout      string `toml:"timeout"`
}

// CacheConfig controls the leaderboard cache. Empty address disables Redis.
type CacheConfig struct {
	RedisAddr string `toml:"redis_addr"`
	TTL       string `toml:"ttl"`
}

// ContentConfig points at an optional content catalog file.
type ContentConfig struct {
	File string `toml:"file"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level string `toml:"level"`
	Mode  string `toml:"mode"` // dev | prod
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host:        "127.0.0.1",
			Port:        8686,
			CORSOrigins: []string{"*"},
			Metrics:     true,
		},
		Engine: EngineConfig{
			BasePoints:         10,
			StreakCap:          10,
			LargeMissionPoints: 50,
		},
		Tracks: map[string]TrackConfig{
			string(domain.TrackEco): {
				LevelSize:  100,
				SeedPoints: 120,
				SeedStreak: 3,
				SeedBadges: []string{string(engagement.BadgeSeed)},
			},
			string(domain.TrackXP): {
				LevelSize: 500,
			},
		},
		Remote: RemoteConfig{
			UsersTable:   "UsersDatabase",
			SchoolsTable: "Schools",
			Timeout:      "10s",
		},
		Cache: CacheConfig{
			TTL: "1m",
		},
		Logging: LoggingConfig{
			Level: "info",
			Mode:  "dev",
		},
	}
}

// LoadConfig reads config from $ECOLEARN_HOME/config.toml, falling back to defaults.
func LoadConfig() (Config, error) {
	return LoadConfigFrom(filepath.Join(ecolearnHome(), "config.toml"))
}

// LoadConfigFrom reads config from path. A missing file yields defaults.
func LoadConfigFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// SaveConfig writes the config to $ECOLEARN_HOME/config.toml.
func SaveConfig(cfg Config) error {
	path := filepath.Join(ecolearnHome(), "config.toml")
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// Validate checks values the decoder cannot.
func (c Config) Validate() error {
	if c.API.Port < 0 || c.API.Port > 65535 {
		return fmt.Errorf("api.port %d out of range", c.API.Port)
	}
	for name := range c.Tracks {
		if _, err := domain.ParseTrack(name); err != nil {
			return fmt.Errorf("tracks.%s: %w", name, err)
		}
	}
	for key, raw := range map[string]string{"remote.timeout": c.Remote.Timeout, "cache.ttl": c.Cache.TTL} {
		if raw == "" {
			continue
		}
		if _, err := time.ParseDuration(raw); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	return nil
}

// DashboardTracks converts the track sections into orchestrator config.
func (c Config) DashboardTracks() map[domain.Track]dashboard.TrackConfig {
	out := make(map[domain.Track]dashboard.TrackConfig, len(c.Tracks))
	for name, tc := range c.Tracks {
		track, err := domain.ParseTrack(name)
		if err != nil {
			continue
		}
		badges := make([]domain.BadgeID, len(tc.SeedBadges))
		for i, b := range tc.SeedBadges {
			badges[i] = domain.BadgeID(b)
		}
		out[track] = dashboard.TrackConfig{
			Engine: engagement.Config{
				LevelSize:          tc.LevelSize,
				BasePoints:         c.Engine.BasePoints,
				StreakCap:          c.Engine.StreakCap,
				LargeMissionPoints: c.Engine.LargeMissionPoints,
			},
			SeedPoints: tc.SeedPoints,
			SeedStreak: tc.SeedStreak,
			SeedBadges: badges,
		}
	}
	return out
}

// RemoteClientConfig converts the [remote] section.
func (c Config) RemoteClientConfig() remote.Config {
	return remote.Config{
		URL:          c.Remote.URL,
		Key:          c.Remote.Key,
		UsersTable:   c.Remote.UsersTable,
		SchoolsTable: c.Remote.SchoolsTable,
		Timeout:      parseDuration(c.Remote.Timeout, 10*time.Second),
	}
}

// DefaultUser returns the CLI identity: email first, then id.
func (c Config) DefaultUser() string {
	if c.User.Email != "" {
		return c.User.Email
	}
	return c.User.ID
}

// ecolearnHome returns the EcoLearn data directory.
func ecolearnHome() string {
	if env := os.Getenv("ECOLEARN_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".ecolearn")
}

// Home is exported for use by other packages.
func Home() string {
	return ecolearnHome()
}

// parseDuration parses a duration string, returning a fallback on error.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
