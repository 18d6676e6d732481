package core

// TimerConstraints describes the single periodic timer of a target.
type TimerConstraints struct {
	// Prescalers lists the clock dividers the counter can be fed with.
	Prescalers []uint32

	// MaxTicks is the largest value the compare register holds.
	MaxTicks uint32
}

// Timer16Constraints matches an AVR 16-bit timer/counter (e.g. timer1):
// dividers 1, 8, 64, 256 and 1024 in front of a 16-bit compare register.
func Timer16Constraints() TimerConstraints {
	return TimerConstraints{
		Prescalers: []uint32{1, 8, 64, 256, 1024},
		MaxTicks:   65535,
	}
}

// TimerDriver is the abstract periodic-interrupt timer core code uses.
// Platform-specific implementations program the actual registers and call
// Scheduler.Dispatch from the compare-match interrupt.
type TimerDriver interface {
	// Constraints reports the prescaler set and counter width.
	Constraints() TimerConstraints

	// Program (re)starts the timer so that it interrupts every
	// prescaler*compare base clock cycles. It must validate its arguments
	// before touching hardware: on error the previous configuration keeps
	// running.
	Program(prescaler, compare uint32) error

	// Stop halts the counter. No interrupts fire until the next Program.
	Stop()
}
