package clock

import "time"

// Clock abstracts time.Now so services and the cache sweep can be tested
// against a fixed instant.
type Clock interface {
	Now() time.Time
}

// NewSystem returns a Clock backed by time.Now in UTC.
func NewSystem() Clock {
	return systemClock{}
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// NewFixed returns a Clock frozen at t.
func NewFixed(t time.Time) Clock {
	return &fixedClock{now: t.UTC()}
}

type fixedClock struct {
	now time.Time
}

func (f *fixedClock) Now() time.Time {
	return f.now
}

// Advance moves a fixed clock forward by d. It panics on system clocks.
func Advance(c Clock, d time.Duration) {
	f := c.(*fixedClock)
	f.now = f.now.Add(d)
}
