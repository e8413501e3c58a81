package core

import (
	"time"
)

// NewTime creates a new time service
func NewTime(cfg TimeConfiguration) *Time {
	var interval time.Duration
	if cfg.FramesPerSecond <= 0 {
		interval = time.Millisecond
	} else {
		interval = time.Second / time.Duration(cfg.FramesPerSecond)
	}

	return &Time{
		fps:       cfg.FramesPerSecond,
		interval:  interval,
		fpsTicker: time.NewTicker(interval),
		started:   time.Now(),
	}
}

// Time contains the frame ticker and the clock scene animation runs on
type Time struct {
	fps       int
	interval  time.Duration
	fpsTicker *time.Ticker
	started   time.Time
}

// Fps gets the set frames per second
func (t *Time) Fps() int {
	return t.fps
}

// FpsTicker gets the initialized fps ticker
func (t *Time) FpsTicker() *time.Ticker {
	return t.fpsTicker
}

// FrameDelta is the nominal duration of one frame
func (t *Time) FrameDelta() time.Duration {
	return t.interval
}

// Elapsed returns time passed since the service was created
func (t *Time) Elapsed() time.Duration {
	return time.Since(t.started)
}

// Stop releases the ticker
func (t *Time) Stop() {
	t.fpsTicker.Stop()
}
