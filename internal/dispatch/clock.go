package dispatch

import (
	"context"
	"time"
)

// Clock abstracts time for the pacing engine so tests can fast-forward the
// inter-send gap.
type Clock interface {
	Now() time.Time
	// Sleep suspends the caller for d, returning early if ctx is done.
	Sleep(ctx context.Context, d time.Duration)
}

type realClock struct{}

// RealClock returns the wall clock.
func RealClock() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) Sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
