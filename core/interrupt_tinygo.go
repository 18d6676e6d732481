//go:build tinygo

package core

import "runtime/interrupt"

// disableInterrupts disables interrupts and returns the previous state
func disableInterrupts() interrupt.State {
	return interrupt.Disable()
}

// restoreInterrupts restores the interrupt state
func restoreInterrupts(state interrupt.State) {
	interrupt.Restore(state)
}

// enterInterrupt is a no-op: the timer interrupt is not reentrant and
// foreground code cannot run until the handler returns.
func enterInterrupt() interrupt.State {
	return 0
}

// exitInterrupt is a no-op, see enterInterrupt
func exitInterrupt(state interrupt.State) {}
