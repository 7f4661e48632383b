package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                string
	DBPath              string
	Timezone            string
	JWTSecret           string
	Env                 string
	PushURL             string
	PushKey             string
	HolidaysFile        string
	LeaderboardInterval time.Duration
	DispatchInterval    time.Duration
}

// Load reads configuration from the environment. A .env file in the
// working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:         getEnv("STUDYRANK_PORT", "8080"),
		DBPath:       getEnv("STUDYRANK_DB_PATH", ""),
		Timezone:     getEnv("STUDYRANK_TIMEZONE", "Asia/Tokyo"),
		JWTSecret:    getEnv("STUDYRANK_JWT_SECRET", ""),
		Env:          getEnv("STUDYRANK_ENV", "dev"),
		PushURL:      getEnv("STUDYRANK_PUSH_URL", "https://fcm.googleapis.com/fcm/send"),
		PushKey:      getEnv("STUDYRANK_PUSH_KEY", ""),
		HolidaysFile: getEnv("STUDYRANK_HOLIDAYS_FILE", ""),
	}

	var err error
	if cfg.LeaderboardInterval, err = getDuration("STUDYRANK_LEADERBOARD_INTERVAL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.DispatchInterval, err = getDuration("STUDYRANK_DISPATCH_INTERVAL", time.Minute); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("STUDYRANK_DB_PATH is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("STUDYRANK_JWT_SECRET is required")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("STUDYRANK_TIMEZONE %q: %w", c.Timezone, err)
	}
	if c.LeaderboardInterval <= 0 || c.DispatchInterval <= 0 {
		return fmt.Errorf("job intervals must be positive")
	}
	return nil
}

// Location returns the civil timezone every calendar date is anchored to.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
