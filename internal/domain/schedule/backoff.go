package schedule

import (
	"time"

	"github.com/azrahudaya/remindcare/internal/domain/subject"
)

// Backoff maps a consecutive failure count to the delay before the next send
// attempt: 0 for the first attempt, then base doubling per failure, capped.
func Backoff(failures int, base, maxDelay time.Duration) time.Duration {
	if failures <= 0 {
		return 0
	}
	delay := base
	for i := 1; i < failures; i++ {
		if delay >= maxDelay {
			return maxDelay
		}
		delay *= 2
	}
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}

// RetryEligible gates a send attempt: always eligible with no failures,
// otherwise only once the backoff delay since the last attempt has elapsed.
func RetryEligible(r subject.RetryState, now time.Time, base, maxDelay time.Duration) bool {
	if r.Failures == 0 {
		return true
	}
	if !r.LastAttemptAt.Valid {
		return true
	}
	return now.Sub(r.LastAttemptAt.Time) >= Backoff(r.Failures, base, maxDelay)
}
