package scheduler

import (
	"math"
	"math/rand"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/vigilops/vigil/internal/model"
)

// Scheduling constants shared by both substrates.
const (
	// FirstRunJitterMax bounds the randomized delay applied when a monitor is
	// (re)activated, so simultaneous activations do not produce a synchronized
	// burst of checks.
	FirstRunJitterMax = 10 * time.Second

	// MaxAttempts bounds broker-side retries of a failed job before it is
	// abandoned and the regular interval takes over.
	MaxAttempts = 3

	// RetryBaseDelay is the first retry backoff step.
	RetryBaseDelay = 2 * time.Second

	// RetryMaxDelay caps the exponential backoff.
	RetryMaxDelay = 30 * time.Second
)

// NextDelay computes how long to wait before the monitor's next check, measured
// from now rather than from the last run so that slow checks do not compress the
// effective interval. On first activation the delay is a bounded random jitter.
// A cron schedule on the monitor overrides the plain interval.
//
// The function keeps no state between calls, which makes it usable unchanged by
// both the local timer loop and the distributed workers.
func NextDelay(monitor *model.Monitor, firstRun bool) time.Duration {
	if firstRun {
		return Jitter(FirstRunJitterMax)
	}

	if monitor.Schedule != "" {
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
		if schedule, err := parser.Parse(monitor.Schedule); err == nil {
			if delay := time.Until(schedule.Next(time.Now())); delay > 0 {
				return delay
			}
			return 0
		}
		// An unparsable expression falls through to the plain interval; the
		// monitor validated at creation time, so this only happens on manual
		// document edits.
	}

	return monitor.Interval()
}

// Jitter returns a uniformly random duration in [0, max).
func Jitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(max)))
}

// RetryBackoff computes the broker retry delay for a given attempt using
// exponential backoff: delay = base * 2^(attempt-1), capped at RetryMaxDelay.
func RetryBackoff(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	delay := float64(RetryBaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(RetryMaxDelay) {
		delay = float64(RetryMaxDelay)
	}
	return time.Duration(delay)
}
