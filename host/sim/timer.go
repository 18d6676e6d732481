// Package sim runs the controller firmware on the host: a timer driver
// backed by a goroutine, simulated pins, ADC and shift register, and an
// in-memory serial link.
package sim

import (
	"errors"
	"math"
	"sync"
	"time"

	"tickmux/core"
)

// MinInterval bounds how fast the simulated timer fires
const MinInterval = 20 * time.Microsecond

var errNoHandler = errors.New("sim timer: no interrupt handler attached")

// Programming is one Program call seen by the timer
type Programming struct {
	Prescaler uint32
	Compare   uint32
	Interval  time.Duration
}

// Timer implements core.TimerDriver. Each Program starts a goroutine that
// calls the attached handler once per compare match, at wall clock speed
// divided by the time scale.
//
// Program and Stop are called with the scheduler's interrupt lock held and
// never wait for the tick goroutine. A tick already due when the timer is
// reprogrammed may still be delivered, like a latched interrupt flag.
type Timer struct {
	clockHz float64
	scale   float64
	limits  core.TimerConstraints

	mu      sync.Mutex
	handler func()
	stop    chan struct{}
	history []Programming
	ticks   uint64
	wg      sync.WaitGroup
}

// NewTimer creates a stopped 16-bit timer for a clockHz base clock
func NewTimer(clockHz uint32, scale float64) *Timer {
	if scale <= 0 {
		scale = 1
	}
	return &Timer{
		clockHz: float64(clockHz),
		scale:   scale,
		limits:  core.Timer16Constraints(),
	}
}

// Attach sets the compare match handler, normally Scheduler.Dispatch
func (t *Timer) Attach(handler func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = handler
}

func (t *Timer) Constraints() core.TimerConstraints {
	return t.limits
}

// Interval converts a timer setting to simulated wall clock time
func (t *Timer) Interval(prescaler, compare uint32) time.Duration {
	ns := float64(prescaler) * float64(compare) * float64(time.Second) / t.clockHz / t.scale
	d := time.Duration(math.Round(ns))
	if d < MinInterval {
		d = MinInterval
	}
	return d
}

func (t *Timer) Program(prescaler, compare uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.handler == nil {
		return errNoHandler
	}
	if compare == 0 || compare > t.limits.MaxTicks {
		return core.ErrResolution
	}
	valid := false
	for _, p := range t.limits.Prescalers {
		valid = valid || p == prescaler
	}
	if !valid {
		return core.ErrPrescaler
	}

	t.stopLocked()
	interval := t.Interval(prescaler, compare)
	t.history = append(t.history, Programming{prescaler, compare, interval})

	stop := make(chan struct{})
	t.stop = stop
	t.wg.Add(1)
	go t.run(interval, stop, t.handler)
	return nil
}

func (t *Timer) run(interval time.Duration, stop chan struct{}, handler func()) {
	defer t.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		t.mu.Lock()
		t.ticks++
		t.mu.Unlock()
		handler()
	}
}

func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

func (t *Timer) stopLocked() {
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
}

// Running reports whether a tick goroutine is active
func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stop != nil
}

// History returns every accepted Program call
func (t *Timer) History() []Programming {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Programming(nil), t.history...)
}

// Ticks returns the number of compare matches delivered
func (t *Timer) Ticks() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ticks
}

// Close stops the timer and waits for its goroutines. It must not be
// called with the scheduler's interrupt lock held.
func (t *Timer) Close() {
	t.Stop()
	t.wg.Wait()
}
