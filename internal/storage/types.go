package storage

import (
	"context"
	"errors"
	"time"
)

// DefaultKey is the record key the number set is stored under.
const DefaultKey = "raffle_numbers_v1"

var ErrClosed = errors.New("storage closed")

// Store is a byte key-value store. Put replaces the whole value of a key; a
// reader never observes a partially written value.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Put(ctx context.Context, key string, value []byte) error
	Close() error
}

// Config configures storage.
//
// Driver values:
//   - "memory": nothing is persisted across restarts
//   - "file": Path is a directory holding <key>.json documents
//   - "sqlite": Path is the database file
//   - "redis": see Redis
//   - "postgres": see Postgres
//
// An empty Driver means "file".
type Config struct {
	Driver      string
	Path        string
	Key         string
	BusyTimeout time.Duration // sqlite only; 0 means default

	Redis    RedisConfig
	Postgres PostgresConfig
}

type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	Prefix      string
	DialTimeout time.Duration
}

type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RecordKey returns the configured record key or DefaultKey.
func (c Config) RecordKey() string {
	if c.Key == "" {
		return DefaultKey
	}
	return c.Key
}
