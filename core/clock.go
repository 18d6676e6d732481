package core

// DefaultClockFreq is the base clock of the reference board (ATmega8 on
// its internal 1 MHz oscillator).
const DefaultClockFreq = 1000000

// clockFreq is the base clock feeding the timer prescaler, in Hz.
var clockFreq uint32 = DefaultClockFreq

// SetClockFreq sets the base clock frequency (called by target init code)
func SetClockFreq(hz uint32) {
	if hz != 0 {
		clockFreq = hz
	}
}

// ClockFreq returns the base clock frequency in Hz
func ClockFreq() uint32 {
	return clockFreq
}

// CyclesFromMicros converts microseconds to base clock cycles
func CyclesFromMicros(us uint32) uint32 {
	return uint32(uint64(us) * uint64(clockFreq) / 1000000)
}

// CyclesFromMillis converts milliseconds to base clock cycles
func CyclesFromMillis(ms uint32) uint32 {
	return uint32(uint64(ms) * uint64(clockFreq) / 1000)
}

// MicrosFromCycles converts base clock cycles to microseconds
func MicrosFromCycles(cycles uint64) uint64 {
	return cycles * 1000000 / uint64(clockFreq)
}
