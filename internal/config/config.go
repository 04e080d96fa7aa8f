package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"jobboard-bot/internal/models"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const (
	SessionBackendMemory = "memory"
	SessionBackendRedis  = "redis"
)

type Config struct {
	// Telegram
	TelegramToken   string        `yaml:"-"`
	AdminIDs        []int64       `yaml:"admin_ids"`
	DispatchTimeout time.Duration `yaml:"dispatch_timeout"`
	DispatchRate    float64       `yaml:"dispatch_rate"`

	// Database
	PostgresDSN   string `yaml:"-"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"-"`
	RedisDB       int    `yaml:"redis_db"`

	// Dialogue sessions
	SessionBackend string        `yaml:"session_backend"`
	SessionTTL     time.Duration `yaml:"session_ttl"`
	MaxSessions    int           `yaml:"max_sessions"`

	Schedule Schedule `yaml:"schedule"`

	// Logging
	LogLevel string `yaml:"log_level"`
}

// Schedule holds the notification cadences as cron expressions.
type Schedule struct {
	Timezone          string        `yaml:"timezone"`
	Immediate         string        `yaml:"immediate"`
	Daily             string        `yaml:"daily"`
	Weekly            string        `yaml:"weekly"`
	Cleanup           string        `yaml:"cleanup"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	StaleJobAge       time.Duration `yaml:"stale_job_age"`
	NotifiedRetention time.Duration `yaml:"notified_retention"`
}

func Default() *Config {
	return &Config{
		DispatchTimeout: 30 * time.Second,
		DispatchRate:    25,
		RedisAddr:       "localhost:6379",
		SessionBackend:  SessionBackendRedis,
		SessionTTL:      30 * time.Minute,
		MaxSessions:     10000,
		Schedule: Schedule{
			Immediate:         "@every 5m",
			Daily:             "0 9 * * *",
			Weekly:            "0 10 * * 1",
			Cleanup:           "0 2 * * *",
			PollInterval:      time.Minute,
			StaleJobAge:       90 * 24 * time.Hour,
			NotifiedRetention: 30 * 24 * time.Hour,
		},
		LogLevel: "info",
	}
}

// LoadEnvFile loads variables from a .env file. A missing file is not an
// error; variables already set in the environment win.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}

	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("%w: load env file %s: %v", models.ErrConfiguration, path, err)
	}

	return nil
}

// Load builds the config from defaults, the optional YAML file at path and
// the environment, in that order of precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: read config file: %v", models.ErrConfiguration, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parse config file: %v", models.ErrConfiguration, err)
		}
	}

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("%w: TELEGRAM_TOKEN is required", models.ErrConfiguration)
	}

	cfg.PostgresDSN = os.Getenv("POSTGRES_DSN")
	if cfg.PostgresDSN == "" {
		return nil, fmt.Errorf("%w: POSTGRES_DSN is required", models.ErrConfiguration)
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.RedisAddr = addr
	}

	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")

	if redisDB := os.Getenv("REDIS_DB"); redisDB != "" {
		db, err := strconv.Atoi(redisDB)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid REDIS_DB: %v", models.ErrConfiguration, err)
		}
		cfg.RedisDB = db
	}

	if backend := os.Getenv("SESSION_BACKEND"); backend != "" {
		cfg.SessionBackend = backend
	}

	if ttl := os.Getenv("SESSION_TTL"); ttl != "" {
		d, err := time.ParseDuration(ttl)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid SESSION_TTL: %v", models.ErrConfiguration, err)
		}
		cfg.SessionTTL = d
	}

	if admins := os.Getenv("ADMIN_IDS"); admins != "" {
		ids, err := parseIDs(admins)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid ADMIN_IDS: %v", models.ErrConfiguration, err)
		}
		cfg.AdminIDs = ids
	}

	if interval := os.Getenv("POLL_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid POLL_INTERVAL: %v", models.ErrConfiguration, err)
		}
		cfg.Schedule.PollInterval = d
	}

	if tz := os.Getenv("SCHEDULE_TZ"); tz != "" {
		cfg.Schedule.Timezone = tz
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		cfg.LogLevel = logLevel
	}

	return cfg, nil
}

func parseIDs(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (c *Config) Validate() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("%w: telegram token is empty", models.ErrConfiguration)
	}

	if c.PostgresDSN == "" {
		return fmt.Errorf("%w: postgres DSN is empty", models.ErrConfiguration)
	}

	switch c.SessionBackend {
	case SessionBackendMemory, SessionBackendRedis:
	default:
		return fmt.Errorf("%w: unknown session backend: %s", models.ErrConfiguration, c.SessionBackend)
	}

	if c.SessionTTL <= 0 {
		return fmt.Errorf("%w: session TTL must be positive", models.ErrConfiguration)
	}

	if c.MaxSessions < 1 {
		return fmt.Errorf("%w: max sessions must be at least 1", models.ErrConfiguration)
	}

	if c.DispatchTimeout <= 0 {
		return fmt.Errorf("%w: dispatch timeout must be positive", models.ErrConfiguration)
	}

	if c.DispatchRate <= 0 {
		return fmt.Errorf("%w: dispatch rate must be positive", models.ErrConfiguration)
	}

	if err := c.Schedule.Validate(); err != nil {
		return err
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("%w: invalid log level: %s", models.ErrConfiguration, c.LogLevel)
	}

	return nil
}

func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func (s Schedule) Validate() error {
	if s.PollInterval < time.Second {
		return fmt.Errorf("%w: poll interval too small: %v", models.ErrConfiguration, s.PollInterval)
	}

	if s.StaleJobAge <= 0 || s.NotifiedRetention <= 0 {
		return fmt.Errorf("%w: retention periods must be positive", models.ErrConfiguration)
	}

	if s.Timezone != "" {
		if _, err := time.LoadLocation(s.Timezone); err != nil {
			return fmt.Errorf("%w: invalid timezone %q: %v", models.ErrConfiguration, s.Timezone, err)
		}
	}

	specs := map[string]string{
		"immediate": s.Immediate,
		"daily":     s.Daily,
		"weekly":    s.Weekly,
		"cleanup":   s.Cleanup,
	}
	for name, expr := range specs {
		if _, err := cron.ParseStandard(s.Spec(expr)); err != nil {
			return fmt.Errorf("%w: invalid %s schedule %q: %v", models.ErrConfiguration, name, expr, err)
		}
	}

	return nil
}

// Spec applies the configured timezone to a cron expression. Descriptors
// such as "@every 5m" are returned unchanged.
func (s Schedule) Spec(expr string) string {
	if s.Timezone == "" || strings.HasPrefix(expr, "@") || strings.HasPrefix(expr, "CRON_TZ=") || strings.HasPrefix(expr, "TZ=") {
		return expr
	}
	return "CRON_TZ=" + s.Timezone + " " + expr
}
