package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	logx "rafflebot/pkg/logx"
)

// kvRecord is one row of the kv_records table.
type kvRecord struct {
	Key       string `gorm:"primaryKey;size:255"`
	Value     []byte `gorm:"not null"`
	UpdatedAt time.Time
}

func (kvRecord) TableName() string { return "kv_records" }

type postgresStore struct {
	db *gorm.DB
}

func openPostgres(cfg Config, log logx.Logger) (Store, error) {
	pc := cfg.Postgres
	if strings.TrimSpace(pc.DSN) == "" {
		return nil, errors.New("storage.postgres.dsn is required for postgres driver")
	}
	db, err := gorm.Open(postgres.Open(pc.DSN), &gorm.Config{
		Logger: newGormLogger(log),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if pc.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(pc.MaxOpenConns)
	}
	if pc.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(pc.MaxIdleConns)
	}
	if pc.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(pc.ConnMaxLifetime)
	}
	st, err := NewGormStore(db)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	log.Debug("postgres storage opened")
	return st, nil
}

// NewGormStore migrates kv_records on db and returns a Store backed by it.
func NewGormStore(db *gorm.DB) (Store, error) {
	if err := db.AutoMigrate(&kvRecord{}); err != nil {
		return nil, fmt.Errorf("migrate kv_records: %w", err)
	}
	return &postgresStore{db: db}, nil
}

func (s *postgresStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var rec kvRecord
	err := s.db.WithContext(ctx).First(&rec, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return rec.Value, true, nil
}

func (s *postgresStore) Put(ctx context.Context, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	rec := kvRecord{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&rec).Error
}

func (s *postgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// gormLogger routes GORM's logging into logx. Queries are traced, slow
// queries warn.
type gormLogger struct {
	log   logx.Logger
	level gormlogger.LogLevel
	slow  time.Duration
}

func newGormLogger(log logx.Logger) gormlogger.Interface {
	return &gormLogger{log: log.With(logx.String("comp", "gorm")), level: gormlogger.Warn, slow: 200 * time.Millisecond}
}

func (l *gormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cp := *l
	cp.level = level
	return &cp
}

func (l *gormLogger) Info(_ context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Info {
		l.log.Info(fmt.Sprintf(msg, args...))
	}
}

func (l *gormLogger) Warn(_ context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Warn {
		l.log.Warn(fmt.Sprintf(msg, args...))
	}
}

func (l *gormLogger) Error(_ context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Error {
		l.log.Error(fmt.Sprintf(msg, args...))
	}
}

func (l *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	took := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.level >= gormlogger.Error:
		sql, rows := fc()
		l.log.Error("query failed", logx.String("sql", sql), logx.Int64("rows", rows), logx.Duration("took", took), logx.Err(err))
	case took > l.slow && l.level >= gormlogger.Warn:
		sql, rows := fc()
		l.log.Warn("slow query", logx.String("sql", sql), logx.Int64("rows", rows), logx.Duration("took", took))
	case l.level >= gormlogger.Info:
		sql, rows := fc()
		l.log.Trace("query", logx.String("sql", sql), logx.Int64("rows", rows), logx.Duration("took", took))
	}
}
