// Package config loads, validates and persists pointgate configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Ledger backends.
const (
	BackendJSON      = "json"
	BackendEncrypted = "encrypted"
)

// Config holds all tunables. Field names match the persisted YAML keys.
type Config struct {
	ProductivePointsPerMinute  int     `yaml:"productive_points_per_minute"`
	EntertainmentCostPerMinute int     `yaml:"entertainment_cost_per_minute"`
	StreakBonusMultiplier      float64 `yaml:"streak_bonus_multiplier"`
	MaxStreakBonus             float64 `yaml:"max_streak_bonus"`
	CheckIntervalSeconds       int     `yaml:"check_interval_seconds"`
	CacheTTLSeconds            int     `yaml:"cache_ttl_seconds"`

	ObserverIntervalSeconds int    `yaml:"observer_interval_seconds"`
	EnforcerIntervalSeconds int    `yaml:"enforcer_interval_seconds"`
	TerminateTimeoutSeconds int    `yaml:"terminate_timeout_seconds"`
	InstalledAppsTTLSeconds int    `yaml:"installed_apps_ttl_seconds"`
	BlockDurationMinutes    int    `yaml:"block_duration_minutes"`
	ChallengeTimeoutSeconds int    `yaml:"challenge_timeout_seconds"`
	GraceMinutes            int    `yaml:"grace_minutes"`
	EventBuffer             int    `yaml:"event_buffer"`
	LedgerBackend           string `yaml:"ledger_backend"`
}

// Default returns the bootstrap configuration.
func Default() Config {
	return Config{
		ProductivePointsPerMinute:  1,
		EntertainmentCostPerMinute: 2,
		StreakBonusMultiplier:      1.5,
		MaxStreakBonus:             3.0,
		CheckIntervalSeconds:       60,
		CacheTTLSeconds:            5,

		ObserverIntervalSeconds: 2,
		EnforcerIntervalSeconds: 1,
		TerminateTimeoutSeconds: 3,
		InstalledAppsTTLSeconds: 300,
		BlockDurationMinutes:    30,
		ChallengeTimeoutSeconds: 30,
		GraceMinutes:            5,
		EventBuffer:             64,
		LedgerBackend:           BackendJSON,
	}
}

// CheckInterval is the accrual tick and the streak continuity unit.
func (c Config) CheckInterval() time.Duration {
	return time.Duration(c.CheckIntervalSeconds) * time.Second
}

func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

func (c Config) ObserverInterval() time.Duration {
	return time.Duration(c.ObserverIntervalSeconds) * time.Second
}

func (c Config) EnforcerInterval() time.Duration {
	return time.Duration(c.EnforcerIntervalSeconds) * time.Second
}

func (c Config) TerminateTimeout() time.Duration {
	return time.Duration(c.TerminateTimeoutSeconds) * time.Second
}

func (c Config) InstalledAppsTTL() time.Duration {
	return time.Duration(c.InstalledAppsTTLSeconds) * time.Second
}

func (c Config) ChallengeTimeout() time.Duration {
	return time.Duration(c.ChallengeTimeoutSeconds) * time.Second
}

func (c Config) Grace() time.Duration {
	return time.Duration(c.GraceMinutes) * time.Minute
}

// Issue is a single invalid field found by Validate.
type Issue struct {
	Field  string
	Reason string
}

func (i Issue) String() string {
	return i.Field + ": " + i.Reason
}

// Validate range-checks every field against Default's expectations.
func (c Config) Validate() []Issue {
	var issues []Issue
	nonNegative := func(field string, v int) {
		if v < 0 {
			issues = append(issues, Issue{field, fmt.Sprintf("must be >= 0, got %d", v)})
		}
	}
	positive := func(field string, v int) {
		if v <= 0 {
			issues = append(issues, Issue{field, fmt.Sprintf("must be > 0, got %d", v)})
		}
	}

	nonNegative("productive_points_per_minute", c.ProductivePointsPerMinute)
	nonNegative("entertainment_cost_per_minute", c.EntertainmentCostPerMinute)
	if c.StreakBonusMultiplier < 0 {
		issues = append(issues, Issue{"streak_bonus_multiplier", fmt.Sprintf("must be >= 0, got %g", c.StreakBonusMultiplier)})
	}
	if c.MaxStreakBonus < 1 {
		issues = append(issues, Issue{"max_streak_bonus", fmt.Sprintf("must be >= 1, got %g", c.MaxStreakBonus)})
	}
	positive("check_interval_seconds", c.CheckIntervalSeconds)
	positive("cache_ttl_seconds", c.CacheTTLSeconds)
	positive("observer_interval_seconds", c.ObserverIntervalSeconds)
	positive("enforcer_interval_seconds", c.EnforcerIntervalSeconds)
	positive("terminate_timeout_seconds", c.TerminateTimeoutSeconds)
	positive("installed_apps_ttl_seconds", c.InstalledAppsTTLSeconds)
	nonNegative("block_duration_minutes", c.BlockDurationMinutes)
	positive("challenge_timeout_seconds", c.ChallengeTimeoutSeconds)
	nonNegative("grace_minutes", c.GraceMinutes)
	positive("event_buffer", c.EventBuffer)
	if c.LedgerBackend != BackendJSON && c.LedgerBackend != BackendEncrypted {
		issues = append(issues, Issue{"ledger_backend", fmt.Sprintf("must be %q or %q, got %q", BackendJSON, BackendEncrypted, c.LedgerBackend)})
	}
	return issues
}

// Sanitize replaces every invalid field with its default and returns the issues it fixed.
func (c Config) Sanitize() (Config, []Issue) {
	issues := c.Validate()
	if len(issues) == 0 {
		return c, nil
	}
	d := Default()
	for _, is := range issues {
		switch is.Field {
		case "productive_points_per_minute":
			c.ProductivePointsPerMinute = d.ProductivePointsPerMinute
		case "entertainment_cost_per_minute":
			c.EntertainmentCostPerMinute = d.EntertainmentCostPerMinute
		case "streak_bonus_multiplier":
			c.StreakBonusMultiplier = d.StreakBonusMultiplier
		case "max_streak_bonus":
			c.MaxStreakBonus = d.MaxStreakBonus
		case "check_interval_seconds":
			c.CheckIntervalSeconds = d.CheckIntervalSeconds
		case "cache_ttl_seconds":
			c.CacheTTLSeconds = d.CacheTTLSeconds
		case "observer_interval_seconds":
			c.ObserverIntervalSeconds = d.ObserverIntervalSeconds
		case "enforcer_interval_seconds":
			c.EnforcerIntervalSeconds = d.EnforcerIntervalSeconds
		case "terminate_timeout_seconds":
			c.TerminateTimeoutSeconds = d.TerminateTimeoutSeconds
		case "installed_apps_ttl_seconds":
			c.InstalledAppsTTLSeconds = d.InstalledAppsTTLSeconds
		case "block_duration_minutes":
			c.BlockDurationMinutes = d.BlockDurationMinutes
		case "challenge_timeout_seconds":
			c.ChallengeTimeoutSeconds = d.ChallengeTimeoutSeconds
		case "grace_minutes":
			c.GraceMinutes = d.GraceMinutes
		case "event_buffer":
			c.EventBuffer = d.EventBuffer
		case "ledger_backend":
			c.LedgerBackend = d.LedgerBackend
		}
	}
	return c, issues
}

// Store owns the live configuration. It is mutated only through Update.
type Store struct {
	mu     sync.RWMutex
	path   string
	cfg    Config
	logger *zap.Logger
}

// Load reads path, falling back to defaults on a missing or unreadable file.
// A missing file is bootstrapped with defaults. Invalid fields are reset with a warning.
func Load(path string, logger *zap.Logger) *Store {
	s := &Store{path: path, cfg: Default(), logger: logger}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		if err := s.write(s.cfg); err != nil {
			logger.Warn("failed to bootstrap config", zap.String("path", path), zap.Error(err))
		}
		return s
	case err != nil:
		logger.Warn("failed to read config, using defaults", zap.String("path", path), zap.Error(err))
		return s
	}

	// Start with defaults, YAML overwrites only specified fields
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		logger.Warn("failed to parse config, using defaults", zap.String("path", path), zap.Error(err))
		return s
	}

	cfg, issues := cfg.Sanitize()
	for _, is := range issues {
		logger.Warn("invalid config value, using default",
			zap.String("field", is.Field),
			zap.String("reason", is.Reason))
	}
	s.cfg = cfg
	return s
}

// NewStore wraps an in-memory config (no file). Used by tests and one-shot commands.
func NewStore(cfg Config, logger *zap.Logger) *Store {
	return &Store{cfg: cfg, logger: logger}
}

// Current returns a copy of the live configuration.
func (s *Store) Current() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Path returns the backing file, empty for in-memory stores.
func (s *Store) Path() string {
	return s.path
}

// Update validates cfg strictly and persists it. Invalid configs are rejected.
func (s *Store) Update(cfg Config) error {
	if issues := cfg.Validate(); len(issues) > 0 {
		return fmt.Errorf("invalid config: %s", issues[0])
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	s.cfg = cfg
	return nil
}

func (s *Store) write(cfg Config) error {
	if s.path == "" {
		return nil
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
