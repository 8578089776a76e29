package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pixperk/flockq/pkg/logger"
	"github.com/pixperk/flockq/pkg/queue"
)

type Config struct {
	Queue QueueConfig
	Log   LogConfig
}

type QueueConfig struct {
	Dir           string
	ActivityLog   bool
	MaxExecutions int
	PerPeriod     time.Duration
	PollFloor     time.Duration
	PollStep      time.Duration
	PollMax       time.Duration
	SyncRemoval   bool
}

type LogConfig struct {
	Level    string
	Encoding string
}

func Load() (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	cfg := &Config{
		Queue: QueueConfig{
			Dir:           getEnv("FLOCKQ_DIR", filepath.Join(os.TempDir(), "flockq")),
			ActivityLog:   getEnvAsBool("FLOCKQ_ACTIVITY_LOG", false),
			MaxExecutions: getEnvAsInt("FLOCKQ_MAX_EXECUTIONS", 0),
			PerPeriod:     getEnvAsDuration("FLOCKQ_PER_PERIOD", 0),
			PollFloor:     getEnvAsDuration("FLOCKQ_POLL_FLOOR", queue.DefaultPollFloor),
			PollStep:      getEnvAsDuration("FLOCKQ_POLL_STEP", queue.DefaultPollStep),
			PollMax:       getEnvAsDuration("FLOCKQ_POLL_MAX", queue.DefaultPollMax),
			SyncRemoval:   getEnvAsBool("FLOCKQ_SYNC_REMOVAL", false),
		},
		Log: LogConfig{
			Level:    getEnv("LOG_LEVEL", "info"),
			Encoding: getEnv("LOG_ENCODING", "console"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Queue.Dir == "" {
		return fmt.Errorf("queue directory is required")
	}

	if err := queue.ValidateRateLimit(c.Queue.MaxExecutions, c.Queue.PerPeriod); err != nil {
		return err
	}

	if c.Queue.PollFloor < 0 || c.Queue.PollStep < 0 || c.Queue.PollMax < 0 {
		return fmt.Errorf("poll durations must not be negative")
	}

	return nil
}

// queue configuration for the named queue
func (c *Config) QueueConfig(name string, log logger.Logger) queue.Config {
	return queue.Config{
		Dir:           c.Queue.Dir,
		Name:          name,
		ActivityLog:   c.Queue.ActivityLog,
		MaxExecutions: c.Queue.MaxExecutions,
		PerPeriod:     c.Queue.PerPeriod,
		PollFloor:     c.Queue.PollFloor,
		PollStep:      c.Queue.PollStep,
		PollMax:       c.Queue.PollMax,
		SyncRemoval:   c.Queue.SyncRemoval,
		Logger:        log,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}
