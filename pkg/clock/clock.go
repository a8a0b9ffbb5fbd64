package clock

import (
	"sync"
	"time"
)

// Clock provides the current wall-clock time as seconds since the Unix
// epoch. Every time-dependent component takes a Clock so tests can advance
// time deterministically.
type Clock interface {
	Now() float64
}

// Real reads the system clock with microsecond precision.
type Real struct{}

func (Real) Now() float64 {
	return float64(time.Now().UnixMicro()) / 1e6
}

// Fake is a manually-advanced clock for tests.
type Fake struct {
	mu  sync.Mutex
	now float64
}

// NewFake creates a fake clock starting at the given epoch seconds.
func NewFake(start float64) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance moves the clock forward by the given number of seconds.
func (f *Fake) Advance(seconds float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now += seconds
}
