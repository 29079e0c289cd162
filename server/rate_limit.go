package server

import (
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	limiterIdleTTL   = 10 * time.Minute
	limiterSweepSize = 4096
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// loginLimiter keeps one token bucket per client address
type loginLimiter struct {
	mu       sync.Mutex
	perMin   int
	clients  map[string]*clientLimiter
	nowTime  func() time.Time
	disabled bool
}

// newLoginLimiter allows perMinute attempts per client, bursting to the same amount.
// A non-positive rate disables throttling.
func newLoginLimiter(perMinute int) *loginLimiter {
	return &loginLimiter{
		perMin:   perMinute,
		clients:  make(map[string]*clientLimiter),
		nowTime:  time.Now,
		disabled: perMinute <= 0,
	}
}

func (l *loginLimiter) Allow(remoteAddr string) bool {
	if l.disabled {
		return true
	}
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowTime()
	if len(l.clients) >= limiterSweepSize {
		for k, c := range l.clients {
			if now.Sub(c.lastSeen) > limiterIdleTTL {
				delete(l.clients, k)
			}
		}
	}

	c, ok := l.clients[host]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMin)), l.perMin)}
		l.clients[host] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}
