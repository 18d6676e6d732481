package appliance

import (
	"sync/atomic"

	"tickmux/core"
)

// KeyDebounceSamples is how many consecutive polls a new level must be
// seen before it is accepted.
const KeyDebounceSamples = 3

// Key is the panel push button, wired active low with the internal pull-up.
// Poll runs from the timer interrupt; the foreground consumes presses with
// Pressed.
type Key struct {
	gpio core.GPIODriver
	pin  core.GPIOPin

	// owned by Poll
	down  bool
	count uint8

	pending atomic.Uint32
}

// NewKey configures pin as a pulled-up input
func NewKey(gpio core.GPIODriver, pin core.GPIOPin) (*Key, error) {
	if err := gpio.ConfigureInputPullUp(pin); err != nil {
		return nil, err
	}
	return &Key{gpio: gpio, pin: pin}, nil
}

// Poll samples the key once. A debounced press (not a release) is counted.
func (k *Key) Poll() {
	level, err := k.gpio.GetPin(k.pin)
	if err != nil {
		return
	}
	down := !level
	if down == k.down {
		k.count = 0
		return
	}
	k.count++
	if k.count < KeyDebounceSamples {
		return
	}
	k.count = 0
	k.down = down
	if down {
		k.pending.Add(1)
	}
}

// Pressed consumes one pending press
func (k *Key) Pressed() bool {
	for {
		n := k.pending.Load()
		if n == 0 {
			return false
		}
		if k.pending.CompareAndSwap(n, n-1) {
			return true
		}
	}
}
