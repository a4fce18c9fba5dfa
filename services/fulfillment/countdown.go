package fulfillment

import (
	"context"
	"time"
)

const defaultCountdownSeconds = 15

// Countdown runs the fixed auto-redirect countdown: one decrement per
// interval, the elapsed callback fired exactly once when the count reaches
// zero, cancellable at any time.
type Countdown struct {
	Seconds  int
	Interval time.Duration
}

func NewCountdown() *Countdown {
	return &Countdown{Seconds: defaultCountdownSeconds, Interval: time.Second}
}

// Start begins ticking. onTick receives the remaining seconds after each
// decrement; onElapsed fires once at zero, never before. The returned
// canceler stops the countdown and suppresses onElapsed.
func (c *Countdown) Start(onTick func(remaining int), onElapsed func()) (cancel func()) {
	ctx, cancelCtx := context.WithCancel(context.Background())

	seconds := c.Seconds
	if seconds <= 0 {
		seconds = defaultCountdownSeconds
	}
	interval := c.Interval
	if interval <= 0 {
		interval = time.Second
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		remaining := seconds
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				remaining--
				if onTick != nil {
					onTick(remaining)
				}
				if remaining <= 0 {
					onElapsed()
					return
				}
			}
		}
	}()

	return cancelCtx
}
