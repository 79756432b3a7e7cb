package storage

import (
	"context"
	"fmt"

	"rafflebot/internal/numbers"
	logx "rafflebot/pkg/logx"
)

// Record persists the number set as a JSON array under one key.
// It implements numbers.Persister.
type Record struct {
	store Store
	key   string
	log   logx.Logger
}

var _ numbers.Persister = (*Record)(nil)

func NewRecord(store Store, key string, log logx.Logger) *Record {
	if key == "" {
		key = DefaultKey
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Record{store: store, key: key, log: log}
}

func (r *Record) Key() string { return r.key }

// Load returns the saved integers. A missing record is empty. Entries that
// are not integers are dropped one by one; a record that is not a JSON array
// at all is an error.
func (r *Record) Load(ctx context.Context) ([]int64, error) {
	b, ok, err := r.store.Get(ctx, r.key)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", r.key, err)
	}
	if !ok {
		return nil, nil
	}
	vals, dropped, err := numbers.DecodeImport(b)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", r.key, err)
	}
	if dropped > 0 {
		r.log.Warn("record had non-integer entries", logx.String("key", r.key), logx.Int("dropped", dropped))
	}
	return vals, nil
}

// Save replaces the record with values.
func (r *Record) Save(ctx context.Context, values []int64) error {
	if err := r.store.Put(ctx, r.key, numbers.EncodeRecord(values)); err != nil {
		return fmt.Errorf("write %s: %w", r.key, err)
	}
	return nil
}
