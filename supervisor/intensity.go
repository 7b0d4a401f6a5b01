package supervisor

import "time"

// intensity tracks restarts in a trailing window
type intensity struct {
	maxRestarts int
	period      time.Duration
	now         func() time.Time
	// restart times, oldest first
	restarts []time.Time
}

func newIntensity(maxRestarts int, period time.Duration) *intensity {
	return &intensity{
		maxRestarts: maxRestarts,
		period:      period,
		now:         time.Now,
	}
}

// record adds a restart and reports whether the restarts within the period now
// exceed the maximum
func (i *intensity) record() (exceeded bool) {
	now := i.now()
	windowStart := now.Add(-i.period)
	kept := i.restarts[:0]
	for _, t := range i.restarts {
		if t.After(windowStart) {
			kept = append(kept, t)
		}
	}
	i.restarts = append(kept, now)
	return len(i.restarts) > i.maxRestarts
}
