package queue

import (
	"math"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"
)

const (
	// MaxRetryDelay bounds every computed retry delay regardless of strategy
	MaxRetryDelay = time.Hour

	// DefaultJitterPercent is the ± spread applied when jitter is enabled
	DefaultJitterPercent = 10.0
)

// Backoff computes retry delays. The zero value uses MaxRetryDelay and DefaultJitterPercent.
// It holds no mutable state and is safe for concurrent use.
type Backoff struct {
	MaxDelay      time.Duration
	JitterPercent float64

	// rand returns a float in [0,1); nil means math/rand/v2
	rand func() float64
}

// DefaultBackoff is used by the package level helpers and by sweeps without an explicit Backoff
var DefaultBackoff = Backoff{MaxDelay: MaxRetryDelay, JitterPercent: DefaultJitterPercent}

// CalculateDelay returns the delay before retry attempt (1-indexed) using DefaultBackoff
func CalculateDelay(strategy BackoffStrategy, base time.Duration, attempt int, jitter bool) time.Duration {
	return DefaultBackoff.CalculateDelay(strategy, base, attempt, jitter)
}

// DelayForAttempt is CalculateDelay without jitter, for deterministic display
func DelayForAttempt(strategy BackoffStrategy, base time.Duration, attempt int) time.Duration {
	return DefaultBackoff.DelayForAttempt(strategy, base, attempt)
}

// RetrySchedule previews the delay before each attempt from 1 to maxAttempts
func RetrySchedule(strategy BackoffStrategy, base time.Duration, maxAttempts int) map[int]time.Duration {
	return DefaultBackoff.RetrySchedule(strategy, base, maxAttempts)
}

// CalculateDelay returns the delay before retry attempt (1-indexed).
// Unknown strategies fall back to exponential.
func (b Backoff) CalculateDelay(strategy BackoffStrategy, base time.Duration, attempt int, jitter bool) time.Duration {
	d := b.DelayForAttempt(strategy, base, attempt)
	if !jitter || d == 0 {
		return d
	}

	pct := b.JitterPercent
	if pct <= 0 {
		pct = DefaultJitterPercent
	}
	spread := float64(d) * pct / 100
	jittered := float64(d) + spread*(b.random()*2-1)

	return b.cap(jittered)
}

// DelayForAttempt returns the un-jittered delay before retry attempt (1-indexed)
func (b Backoff) DelayForAttempt(strategy BackoffStrategy, base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}

	var d float64
	switch strategy {
	case BackoffFixed:
		d = float64(base)
	case BackoffLinear:
		d = float64(base) * float64(attempt)
	default:
		d = float64(base) * math.Pow(2, float64(attempt-1))
	}

	return b.cap(d)
}

// RetrySchedule previews the delay before each attempt from 1 to maxAttempts
func (b Backoff) RetrySchedule(strategy BackoffStrategy, base time.Duration, maxAttempts int) map[int]time.Duration {
	schedule := make(map[int]time.Duration, max(maxAttempts, 0))
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		schedule[attempt] = b.DelayForAttempt(strategy, base, attempt)
	}
	return schedule
}

func (b Backoff) cap(d float64) time.Duration {
	ceiling := b.MaxDelay
	if ceiling <= 0 {
		ceiling = MaxRetryDelay
	}
	if d <= 0 {
		return 0
	}
	if d >= float64(ceiling) {
		return ceiling
	}
	return time.Duration(d)
}

func (b Backoff) random() float64 {
	if b.rand != nil {
		return b.rand()
	}
	return rand.Float64() //nolint:gosec // jitter does not need crypto randomness
}

// FormatDelay renders d for humans, e.g. 90s -> "1m 30s", 1h -> "1h"
func FormatDelay(d time.Duration) string {
	secs := int64(d.Round(time.Second) / time.Second)
	if secs <= 0 {
		return "0s"
	}

	h, m, s := secs/3600, secs%3600/60, secs%60
	parts := make([]string, 0, 3)
	if h > 0 {
		parts = append(parts, strconv.FormatInt(h, 10)+"h")
	}
	if m > 0 {
		parts = append(parts, strconv.FormatInt(m, 10)+"m")
	}
	if s > 0 {
		parts = append(parts, strconv.FormatInt(s, 10)+"s")
	}
	return strings.Join(parts, " ")
}
