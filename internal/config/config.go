// Package config loads host settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds everything cmd/citysim needs to start a city.
type Config struct {
	Seed           int64
	Width          int
	Height         int
	Tick           time.Duration // Real time between simulation steps
	Speed          float64       // Game-time multiplier; 0 starts paused
	HoursPerSecond float64       // Game hours per simulated second
	StartHour      int
	DBPath         string // Empty disables the journal
	APIPort        int    // 0 disables the HTTP API
	AdminKey       string // Empty disables POST endpoints
	LogLevel       slog.Level
	StarterCity    bool
}

// Default returns the settings used when no environment overrides are set.
func Default() Config {
	return Config{
		Seed:           42,
		Width:          40,
		Height:         40,
		Tick:           50 * time.Millisecond,
		Speed:          1,
		HoursPerSecond: 0.05,
		StartHour:      6,
		DBPath:         "data/citysim.db",
		APIPort:        8080,
		LogLevel:       slog.LevelInfo,
		StarterCity:    true,
	}
}

// Load reads CITYSIM_* variables over the defaults and validates the result.
func Load() (Config, error) {
	d := Default()
	cfg := Config{
		Seed:           int64(envIntOrDefault("CITYSIM_SEED", int(d.Seed))),
		Width:          envIntOrDefault("CITYSIM_WIDTH", d.Width),
		Height:         envIntOrDefault("CITYSIM_HEIGHT", d.Height),
		Tick:           time.Duration(envIntOrDefault("CITYSIM_TICK_MS", int(d.Tick/time.Millisecond))) * time.Millisecond,
		Speed:          envFloatOrDefault("CITYSIM_SPEED", d.Speed),
		HoursPerSecond: envFloatOrDefault("CITYSIM_HOURS_PER_SECOND", d.HoursPerSecond),
		StartHour:      envIntOrDefault("CITYSIM_START_HOUR", d.StartHour),
		DBPath:         d.DBPath,
		APIPort:        envIntOrDefault("CITYSIM_API_PORT", d.APIPort),
		AdminKey:       os.Getenv("CITYSIM_ADMIN_KEY"),
		LogLevel:       parseLevel(os.Getenv("CITYSIM_LOG_LEVEL"), d.LogLevel),
		StarterCity:    envBoolOrDefault("CITYSIM_STARTER_CITY", d.StarterCity),
	}
	// An explicitly empty path turns the journal off.
	if v, ok := os.LookupEnv("CITYSIM_DB_PATH"); ok {
		cfg.DBPath = v
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the simulation cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Width <= 0 || c.Height <= 0 {
		errs = append(errs, fmt.Errorf("grid size must be positive, got %dx%d", c.Width, c.Height))
	}
	if c.Tick <= 0 {
		errs = append(errs, fmt.Errorf("tick interval must be positive, got %v", c.Tick))
	}
	if c.Speed < 0 {
		errs = append(errs, fmt.Errorf("speed must not be negative, got %g", c.Speed))
	}
	if c.HoursPerSecond <= 0 {
		errs = append(errs, fmt.Errorf("hours per second must be positive, got %g", c.HoursPerSecond))
	}
	if c.StartHour < 0 || c.StartHour > 23 {
		errs = append(errs, fmt.Errorf("start hour must be 0-23, got %d", c.StartHour))
	}
	if c.APIPort < 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid API port %d", c.APIPort))
	}
	return errors.Join(errs...)
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		slog.Warn("ignoring malformed integer", "key", key, "value", v)
	}
	return defaultVal
}

func envFloatOrDefault(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		slog.Warn("ignoring malformed number", "key", key, "value", v)
	}
	return defaultVal
}

func envBoolOrDefault(key string, defaultVal bool) bool {
	if b, err := strconv.ParseBool(envOrDefault(key, strconv.FormatBool(defaultVal))); err == nil {
		return b
	}
	return defaultVal
}

func parseLevel(s string, defaultVal slog.Level) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return defaultVal
}
