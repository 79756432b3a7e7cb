package numbers

import (
	"context"
	"errors"
	"sync"

	logx "rafflebot/pkg/logx"
)

// Persister durably holds the full membership under one record.
type Persister interface {
	// Load returns the saved integers. A missing record is an empty result.
	Load(ctx context.Context) ([]int64, error)
	// Save replaces the record with values in one write.
	Save(ctx context.Context, values []int64) error
}

// Store is the canonical membership set of a session.
//
// Every mutator saves the resulting membership through the Persister before
// it returns. When the save fails the in-memory set keeps its previous
// contents and the error is returned.
type Store struct {
	mu  sync.RWMutex
	set *Set
	p   Persister
	log logx.Logger
}

// Open loads the saved membership. A read failure is not fatal: the store
// starts empty and the failure is logged.
func Open(ctx context.Context, p Persister, log logx.Logger) *Store {
	s, err := open(ctx, p, log)
	if err != nil {
		s.log.Warn("numbers load failed; starting empty", logx.Err(err))
	}
	return s
}

// OpenStrict is Open for callers that must not replace a record they could
// not reach. A record whose content is not a JSON array still starts empty;
// a failed read (I/O, network) is returned instead.
func OpenStrict(ctx context.Context, p Persister, log logx.Logger) (*Store, error) {
	s, err := open(ctx, p, log)
	if err != nil {
		if !errors.Is(err, ErrMalformedImport) {
			return nil, err
		}
		s.log.Warn("numbers record unreadable; starting empty", logx.Err(err))
	}
	return s, nil
}

func open(ctx context.Context, p Persister, log logx.Logger) (*Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Store{set: NewSet(), p: p, log: log}
	vals, err := p.Load(ctx)
	if err != nil {
		return s, err
	}
	s.set.AddAll(vals)
	log.Debug("numbers loaded", logx.Int("count", s.set.Len()))
	return s, nil
}

// Add inserts n and reports whether it was new.
func (s *Store) Add(ctx context.Context, n int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.set.Clone()
	added := next.Add(n)
	if err := s.commitLocked(ctx, next); err != nil {
		return false, err
	}
	return added, nil
}

// AddMany inserts every value and returns how many were new.
func (s *Store) AddMany(ctx context.Context, ns []int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.set.Clone()
	added := next.AddAll(ns)
	if err := s.commitLocked(ctx, next); err != nil {
		return 0, err
	}
	return added, nil
}

// Clear empties the set.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commitLocked(ctx, NewSet())
}

func (s *Store) commitLocked(ctx context.Context, next *Set) error {
	if err := s.p.Save(ctx, next.Sorted()); err != nil {
		return err
	}
	s.set = next
	return nil
}

func (s *Store) Has(n int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.set.Has(n)
}

func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.set.Len()
}

// SnapshotSorted returns all members ascending.
func (s *Store) SnapshotSorted() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.set.Sorted()
}
