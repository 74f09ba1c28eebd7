package telegram

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// warnInterval throttles the "too many messages" reply itself, so a flooding
// sender does not get flooded back.
const warnInterval = 10 * time.Second

// InboundLimiter rate-limits inbound messages per chat.
type InboundLimiter struct {
	mu       sync.Mutex
	perMin   int
	limiters map[string]*chatLimiter
}

type chatLimiter struct {
	limiter  *rate.Limiter
	lastWarn time.Time
}

func NewInboundLimiter(perMinute int) *InboundLimiter {
	return &InboundLimiter{
		perMin:   perMinute,
		limiters: make(map[string]*chatLimiter),
	}
}

// Allow reports whether the message may be processed, and whether a warning
// reply should be sent for a rejected one.
func (l *InboundLimiter) Allow(chatID string, now time.Time) (allowed, warn bool) {
	if l.perMin <= 0 {
		return true, false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.limiters[chatID]
	if !ok {
		entry = &chatLimiter{
			limiter: rate.NewLimiter(rate.Limit(float64(l.perMin)/60.0), l.perMin),
		}
		l.limiters[chatID] = entry
	}
	if entry.limiter.AllowN(now, 1) {
		return true, false
	}
	if now.Sub(entry.lastWarn) >= warnInterval {
		entry.lastWarn = now
		return false, true
	}
	return false, false
}
