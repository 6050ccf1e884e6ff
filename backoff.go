package syncpipe

import "time"

const (
	defaultBackoffInitial    = 4 * time.Second
	defaultBackoffMultiplier = 2.0
	defaultBackoffMax        = 10 * time.Second
)

// Backoff describes exponential delays between executor attempts.
type Backoff struct {
	// Initial is the delay before the first retry.
	Initial time.Duration
	// Multiplier scales the delay after each retry. Values below 1 are treated as 1.
	Multiplier float64
	// Max caps every delay.
	Max time.Duration
}

// DefaultBackoff returns the 4s, x2, capped at 10s policy.
func DefaultBackoff() Backoff {
	return Backoff{
		Initial:    defaultBackoffInitial,
		Multiplier: defaultBackoffMultiplier,
		Max:        defaultBackoffMax,
	}
}

// Delay returns the wait before the given retry (1-based). The sequence is non-decreasing.
func (b Backoff) Delay(retry int) time.Duration {
	if retry <= 0 || b.Initial <= 0 {
		return 0
	}
	mult := b.Multiplier
	if mult < 1 {
		mult = 1
	}

	delay := float64(b.Initial)
	for i := 1; i < retry; i++ {
		delay *= mult
		if b.Max > 0 && delay >= float64(b.Max) {
			return b.Max
		}
	}
	if b.Max > 0 && delay > float64(b.Max) {
		return b.Max
	}

	return time.Duration(delay)
}
