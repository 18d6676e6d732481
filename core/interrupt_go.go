//go:build !tinygo

package core

import "sync"

// State is a placeholder for interrupt state on regular Go
type State uintptr

// irqLock stands in for the interrupt mask on regular Go: foreground code
// and a simulated timer goroutine calling Dispatch exclude each other.
// It is not reentrant, so task callbacks must not call Register/Deregister.
var irqLock sync.Mutex

// disableInterrupts masks the simulated timer interrupt
func disableInterrupts() State {
	irqLock.Lock()
	return 0
}

// restoreInterrupts unmasks the simulated timer interrupt
func restoreInterrupts(state State) {
	irqLock.Unlock()
}

// enterInterrupt marks the start of a simulated interrupt handler
func enterInterrupt() State {
	irqLock.Lock()
	return 0
}

// exitInterrupt marks the end of a simulated interrupt handler
func exitInterrupt(state State) {
	irqLock.Unlock()
}
