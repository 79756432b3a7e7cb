package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"rafflebot/internal/backup"
	"rafflebot/internal/numbers"
	"rafflebot/internal/status"
	"rafflebot/internal/storage"
	logx "rafflebot/pkg/logx"
)

const (
	defaultPollTimeout    = 10 * time.Second
	defaultRatePerSec     = 2.0
	defaultBurst          = 5
	defaultMaxImportBytes = 5 << 20
	defaultBackupSchedule = "@daily"
	defaultBackupDir      = "./backups"
)

// Default returns the configuration used when no file is given: file storage
// under ./data, console logging at info.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Console: true},
		Storage: StorageConfig{Driver: "file", Path: "./data"},
	}
}

// Validate checks fields that can be checked without side effects.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.StorageRuntime(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.PollTimeout(); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(strings.TrimSpace(c.Status.Policy)) {
	case "", string(status.PolicyKeep), string(status.PolicyStack):
	default:
		errs = append(errs, fmt.Errorf("status.policy: unknown policy %q", c.Status.Policy))
	}
	if c.Numbers.MaxExpansion < 0 {
		errs = append(errs, errors.New("numbers.max_expansion must be >= 0"))
	}
	if c.Backup.Keep < 0 {
		errs = append(errs, errors.New("backup.keep must be >= 0"))
	}
	if c.Backup.Enabled {
		spec, _ := c.BackupSchedule()
		if err := backup.ParseSchedule(spec); err != nil {
			errs = append(errs, fmt.Errorf("backup.schedule: %w", err))
		}
		if tz := strings.TrimSpace(c.Backup.Timezone); tz != "" {
			if _, err := time.LoadLocation(tz); err != nil {
				errs = append(errs, fmt.Errorf("backup.timezone: %w", err))
			}
		}
	}
	return errors.Join(errs...)
}

// StorageRuntime converts the storage section.
func (c *Config) StorageRuntime() (storage.Config, error) {
	s := c.Storage
	busy, err := ParseDurationField("storage.busy_timeout", s.BusyTimeout)
	if err != nil {
		return storage.Config{}, err
	}
	dial, err := ParseDurationField("storage.redis.dial_timeout", s.Redis.DialTimeout)
	if err != nil {
		return storage.Config{}, err
	}
	life, err := ParseDurationField("storage.postgres.conn_max_lifetime", s.Postgres.ConnMaxLifetime)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      s.Driver,
		Path:        s.Path,
		Key:         s.Key,
		BusyTimeout: busy,
		Redis: storage.RedisConfig{
			Addr:        s.Redis.Addr,
			Password:    s.Redis.Password,
			DB:          s.Redis.DB,
			Prefix:      s.Redis.Prefix,
			DialTimeout: dial,
		},
		Postgres: storage.PostgresConfig{
			DSN:             s.Postgres.DSN,
			MaxOpenConns:    s.Postgres.MaxOpenConns,
			MaxIdleConns:    s.Postgres.MaxIdleConns,
			ConnMaxLifetime: life,
		},
	}, nil
}

// LoggingRuntime converts the logging section.
func (c *Config) LoggingRuntime() logx.Config {
	l := c.Logging
	return logx.Config{
		Level:   l.Level,
		Console: l.Console,
		File:    logx.FileConfig{Enabled: l.File.Enabled, Path: l.File.Path},
		Telegram: logx.TelegramConfig{
			Enabled:    l.Telegram.Enabled,
			ChatID:     l.Telegram.ChatID,
			ThreadID:   l.Telegram.ThreadID,
			MinLevel:   l.Telegram.MinLevel,
			RatePerSec: l.Telegram.RatePerSec,
		},
	}
}

func (c *Config) PollTimeout() (time.Duration, error) {
	return ParseDurationOrDefault("telegram.poll_timeout", c.Telegram.PollTimeout, defaultPollTimeout)
}

// Parser returns the bulk parser configured by the numbers section.
func (c *Config) Parser() numbers.Parser {
	return numbers.Parser{MaxExpansion: c.Numbers.MaxExpansion}
}

// StatusPolicy returns the feedback policy and stack depth.
func (c *Config) StatusPolicy() (status.Policy, int) {
	return status.ParsePolicy(c.Status.Policy), c.Status.MaxStack
}

// RateLimit returns the per-user command rate and burst.
func (c *Config) RateLimit() (perSec float64, burst int) {
	perSec, burst = c.Limits.RatePerSec, c.Limits.Burst
	if perSec <= 0 {
		perSec = defaultRatePerSec
	}
	if burst <= 0 {
		burst = defaultBurst
	}
	return perSec, burst
}

func (c *Config) MaxImportBytes() int64 {
	if c.Limits.MaxImportBytes <= 0 {
		return defaultMaxImportBytes
	}
	return c.Limits.MaxImportBytes
}

// BackupRuntime converts the backup section with defaults applied.
func (c *Config) BackupRuntime() backup.Config {
	spec, dir := c.BackupSchedule()
	return backup.Config{
		Enabled:  c.Backup.Enabled,
		Schedule: spec,
		Dir:      dir,
		Keep:     c.Backup.Keep,
		Timezone: strings.TrimSpace(c.Backup.Timezone),
	}
}

// BackupSchedule returns the cron spec and target directory with defaults.
func (c *Config) BackupSchedule() (spec, dir string) {
	spec, dir = strings.TrimSpace(c.Backup.Schedule), strings.TrimSpace(c.Backup.Dir)
	if spec == "" {
		spec = defaultBackupSchedule
	}
	if dir == "" {
		dir = defaultBackupDir
	}
	return spec, dir
}
