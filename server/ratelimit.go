package server

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

const maxTrackedClients = 10000

// ipLimiter holds one token bucket per client address. The least recently
// seen addresses are forgotten once maxTrackedClients is reached.
type ipLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters *lru.Cache[string, *rate.Limiter]
}

// newIPLimiter allows perSecond requests per address with the given burst.
// perSecond <= 0 disables limiting.
func newIPLimiter(perSecond float64, burst int) *ipLimiter {
	l := &ipLimiter{limit: rate.Limit(perSecond), burst: burst}
	if perSecond <= 0 {
		l.limit = rate.Inf
	}
	if l.burst < 1 {
		l.burst = 1
	}
	l.limiters, _ = lru.New[string, *rate.Limiter](maxTrackedClients)
	return l
}

func (l *ipLimiter) Allow(addr string) bool {
	if l.limit == rate.Inf {
		return true
	}
	l.mu.Lock()
	lim, ok := l.limiters.Get(addr)
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters.Add(addr, lim)
	}
	l.mu.Unlock()
	return lim.Allow()
}
