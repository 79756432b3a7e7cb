package config

// Config is the on-disk configuration (JSON or YAML).
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Storage  StorageConfig  `json:"storage"`
	Numbers  NumbersConfig  `json:"numbers,omitempty"`
	Status   StatusConfig   `json:"status,omitempty"`
	Limits   LimitsConfig   `json:"limits,omitempty"`
	Backup   BackupConfig   `json:"backup,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// OwnerUserIDs restricts the bot to these users. Empty allows everyone.
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ChatID     int64  `json:"chat_id"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// StorageConfig selects where the number record lives.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/raffle.db" }
type StorageConfig struct {
	Driver      string         `json:"driver"`
	Path        string         `json:"path"`
	Key         string         `json:"key,omitempty"`
	BusyTimeout string         `json:"busy_timeout,omitempty"` // sqlite only
	Redis       RedisConfig    `json:"redis,omitempty"`
	Postgres    PostgresConfig `json:"postgres,omitempty"`
}

type RedisConfig struct {
	Addr        string `json:"addr,omitempty"`
	Password    string `json:"password,omitempty"` // never logged
	DB          int    `json:"db,omitempty"`
	Prefix      string `json:"prefix,omitempty"`
	DialTimeout string `json:"dial_timeout,omitempty"`
}

type PostgresConfig struct {
	DSN             string `json:"dsn,omitempty"` // never logged
	MaxOpenConns    int    `json:"max_open_conns,omitempty"`
	MaxIdleConns    int    `json:"max_idle_conns,omitempty"`
	ConnMaxLifetime string `json:"conn_max_lifetime,omitempty"`
}

// NumbersConfig tunes parsing.
//
// Defaults (when omitted/zero):
//   - max_expansion: 100000
type NumbersConfig struct {
	MaxExpansion int `json:"max_expansion,omitempty"`
}

// StatusConfig controls the feedback area.
//
// Policy is "keep" (a new message is shown only when the area is empty) or
// "stack" (messages accumulate up to max_stack lines).
type StatusConfig struct {
	Policy   string `json:"policy,omitempty"`
	MaxStack int    `json:"max_stack,omitempty"`
}

// LimitsConfig guards the bot against floods.
//
// Defaults (when omitted/zero):
//   - rate_per_sec: 2 (commands per user)
//   - burst: 5
//   - max_import_bytes: 5 MiB
type LimitsConfig struct {
	RatePerSec     float64 `json:"rate_per_sec,omitempty"`
	Burst          int     `json:"burst,omitempty"`
	MaxImportBytes int64   `json:"max_import_bytes,omitempty"`
}

// BackupConfig schedules export snapshots.
//
// Schedule is a cron spec (5 fields or a descriptor such as "@daily").
// Keep is the number of newest backups to retain (0 keeps all).
type BackupConfig struct {
	Enabled  bool   `json:"enabled"`
	Schedule string `json:"schedule,omitempty"`
	Dir      string `json:"dir,omitempty"`
	Keep     int    `json:"keep,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}
