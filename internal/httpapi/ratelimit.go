package httpapi

import (
	"sync"

	"golang.org/x/time/rate"
)

// userLimiters throttles message sends per user. Limiters are created lazily
// and never evicted; the entry is two words plus the limiter, and the user set
// of a single deployment stays small enough not to matter.
type userLimiters struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

func newUserLimiters(perSecond float64, burst int) *userLimiters {
	return &userLimiters{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(perSecond),
		burst:    burst,
	}
}

func (l *userLimiters) Allow(userID string) bool {
	l.mu.Lock()
	limiter, ok := l.limiters[userID]
	if !ok {
		limiter = rate.NewLimiter(l.rate, l.burst)
		l.limiters[userID] = limiter
	}
	l.mu.Unlock()
	return limiter.Allow()
}
