package api

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/sells-group/truthstamp/internal/model"
)

// limiter holds one token bucket per signing address. Idle buckets expire
// from the cache and are dropped by sweep, so the set of tracked addresses
// stays bounded.
type limiter struct {
	buckets *gocache.Cache
	mu      sync.Mutex
	rps     rate.Limit
	burst   int
}

func newLimiter(rps float64, burst int, idle time.Duration) *limiter {
	if burst <= 0 {
		burst = 5
	}
	if idle <= 0 {
		idle = 10 * time.Minute
	}
	return &limiter{
		buckets: gocache.New(idle, 0),
		rps:     rate.Limit(rps),
		burst:   burst,
	}
}

// allow reports whether addr may make another request now. A non-positive
// rate disables limiting.
func (l *limiter) allow(addr model.Address) bool {
	if l.rps <= 0 {
		return true
	}
	return l.bucket(addr).Allow()
}

func (l *limiter) sweep() {
	l.buckets.DeleteExpired()
}

func (l *limiter) bucket(addr model.Address) *rate.Limiter {
	key := string(addr)

	l.mu.Lock()
	defer l.mu.Unlock()

	if v, ok := l.buckets.Get(key); ok {
		l.buckets.SetDefault(key, v)
		return v.(*rate.Limiter)
	}
	b := rate.NewLimiter(l.rps, l.burst)
	l.buckets.SetDefault(key, b)
	return b
}
