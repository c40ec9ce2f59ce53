// Package retry provides delay policies for retrying transient failures.
package retry

import "time"

// ExponentialBackoff returns the delay before the given zero-based retry
// attempt: base doubled per attempt, capped at max. A non-positive max
// disables the cap.
func ExponentialBackoff(attempt int, base, max time.Duration) time.Duration {
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if max > 0 && d >= max {
			return max
		}
	}
	return d
}
