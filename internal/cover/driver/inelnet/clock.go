package inelnet

import "time"

// Clock abstracts wall time and deferred execution so tests can drive
// virtual time instead of sleeping. Scheduled functions run on their own
// goroutine; cancellation is logical, callers guard against stale fires.
type Clock interface {
	Now() time.Time
	Schedule(d time.Duration, fn func())
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) Schedule(d time.Duration, fn func()) {
	time.AfterFunc(d, fn)
}

// SystemClock is the Clock used outside of tests.
var SystemClock Clock = systemClock{}
