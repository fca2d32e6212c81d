package recovery

import (
	"math"
	"time"
)

// Backoff computes waits between attempts, never exceeding Max.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// Exponential returns Base * 2^attempt for a 0-indexed attempt.
func (b Backoff) Exponential(attempt int) time.Duration {
	if b.Base <= 0 {
		return 0
	}
	if attempt < 0 {
		attempt = 0
	}
	delay := float64(b.Base) * math.Pow(2, float64(attempt))
	return b.cap(delay)
}

// Linear returns Base * n for a 1-indexed attempt.
func (b Backoff) Linear(n int) time.Duration {
	if n < 0 {
		n = 0
	}
	return b.cap(float64(b.Base) * float64(n))
}

func (b Backoff) cap(delay float64) time.Duration {
	if b.Max > 0 && delay > float64(b.Max) {
		return b.Max
	}
	return time.Duration(delay)
}
