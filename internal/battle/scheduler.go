package battle

import "time"

// Timer is a cancelable scheduled callback.
type Timer interface {
	Stop() bool
}

// Scheduler runs callbacks after a delay. Matches take one so tests can drive
// rounds without sleeping.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
	Now() time.Time
}

type clockScheduler struct{}

// RealScheduler is backed by time.AfterFunc.
func RealScheduler() Scheduler { return clockScheduler{} }

func (clockScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

func (clockScheduler) Now() time.Time { return time.Now() }
