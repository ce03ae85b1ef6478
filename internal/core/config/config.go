package config

import (
	"time"

	"github.com/arnotify/notifier/internal/infra/arweave"
	redisclient "github.com/arnotify/notifier/internal/infra/redis"
	"github.com/arnotify/notifier/internal/infra/storage/postgres"
	"github.com/arnotify/notifier/internal/notify"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server    ServerConfig        `yaml:"server"`
	Processes []ProcessConfig     `yaml:"processes"`
	Arweave   arweave.Config      `yaml:"arweave"`
	Redis     redisclient.Config  `yaml:"redis"`
	Database  postgres.Config     `yaml:"database"`
	Email     notify.EmailConfig  `yaml:"email"`
	Social    notify.SocialConfig `yaml:"social"`
	Monitor   MonitorConfig       `yaml:"monitor"`
	Logging   LoggingConfig       `yaml:"logging"`
}

// ServerConfig holds the ops HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// ProcessConfig holds the fetch settings for one AO process.
type ProcessConfig struct {
	ID            string        `yaml:"id"`
	Owners        []string      `yaml:"owners"`
	Actions       []string      `yaml:"actions"`
	PageSize      int           `yaml:"page_size"`
	PollInterval  time.Duration `yaml:"poll_interval"`
	CycleTimeout  time.Duration `yaml:"cycle_timeout"`
	SkipToCurrent bool          `yaml:"skip_to_current"`
}

// MonitorConfig holds the gateway monitor settings.
type MonitorConfig struct {
	SweepInterval time.Duration `yaml:"sweep_interval"`
	CheckTimeout  time.Duration `yaml:"check_timeout"`
	Concurrency   int           `yaml:"concurrency"`
	Retention     time.Duration `yaml:"retention"`
}
