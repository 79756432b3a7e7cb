package router

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

// userLimiter keeps one token bucket per user. Buckets idle for longer than
// limiterIdleTTL are dropped on the next sweep.
type userLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	users     map[int64]*userBucket
	lastSweep time.Time
	now       func() time.Time
}

type userBucket struct {
	lim  *rate.Limiter
	seen time.Time
}

func newUserLimiter(perSec float64, burst int) *userLimiter {
	l := &userLimiter{users: map[int64]*userBucket{}, now: time.Now}
	l.Configure(perSec, burst)
	return l
}

// Configure changes the rate for all users. perSec <= 0 disables limiting.
func (l *userLimiter) Configure(perSec float64, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if burst <= 0 {
		burst = 1
	}
	l.limit = rate.Limit(perSec)
	if perSec <= 0 {
		l.limit = rate.Inf
	}
	l.burst = burst
	for _, b := range l.users {
		b.lim.SetLimit(l.limit)
		b.lim.SetBurst(l.burst)
	}
}

func (l *userLimiter) Allow(userID int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if now.Sub(l.lastSweep) > limiterIdleTTL {
		for id, b := range l.users {
			if now.Sub(b.seen) > limiterIdleTTL {
				delete(l.users, id)
			}
		}
		l.lastSweep = now
	}
	b := l.users[userID]
	if b == nil {
		b = &userBucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.users[userID] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1)
}

func (l *userLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.users)
}
