package core

// Rate is a solved timer configuration.
type Rate struct {
	TickPeriod uint32 // base clock cycles between interrupts
	Prescaler  uint32 // clock divider feeding the counter
	Compare    uint32 // counter value raising the interrupt
}

// Ticks returns period expressed in tick periods.
func (r Rate) Ticks(period uint32) uint32 {
	if r.TickPeriod == 0 {
		return 0
	}
	return period / r.TickPeriod
}

// SolveRate derives one interrupt rate that realises every period exactly.
//
// The search walks the divisors of the smallest period from the largest
// down (S/1, S/2, S/3, ...) and accepts the first one dividing every period,
// so the rate stays as coarse as the task set allows. The largest prescaler
// dividing that tick period is then chosen to keep the compare value small.
// ErrResolution is returned when the compare value or any task's tick count
// does not fit c.MaxTicks.
//
// SolveRate has no side effects and does not allocate.
func SolveRate(periods []uint32, c TimerConstraints) (Rate, error) {
	if len(periods) == 0 {
		return Rate{}, ErrInvalidPeriod
	}

	smallest := periods[0]
	for _, p := range periods[1:] {
		if p < smallest {
			smallest = p
		}
	}
	if smallest == 0 {
		return Rate{}, ErrInvalidPeriod
	}

	tick := commonDivisor(periods, smallest)

	prescaler, ok := largestPrescaler(tick, c.Prescalers)
	if !ok {
		return Rate{}, ErrResolution
	}

	compare := tick / prescaler
	if compare > c.MaxTicks {
		return Rate{}, ErrResolution
	}

	for _, p := range periods {
		if p/tick > c.MaxTicks {
			return Rate{}, ErrResolution
		}
	}

	return Rate{TickPeriod: tick, Prescaler: prescaler, Compare: compare}, nil
}

// commonDivisor returns the largest smallest/j (j = 1, 2, ...) dividing
// every period. It ends at 1 at the latest.
func commonDivisor(periods []uint32, smallest uint32) uint32 {
	for j := uint32(1); j < smallest; j++ {
		if smallest%j != 0 {
			continue
		}
		candidate := smallest / j
		if dividesAll(periods, candidate) {
			return candidate
		}
	}
	return 1
}

func dividesAll(periods []uint32, d uint32) bool {
	for _, p := range periods {
		if p%d != 0 {
			return false
		}
	}
	return true
}

// largestPrescaler picks the biggest divider that splits tick evenly.
func largestPrescaler(tick uint32, prescalers []uint32) (uint32, bool) {
	var best uint32
	for _, p := range prescalers {
		if p != 0 && tick%p == 0 && p > best {
			best = p
		}
	}
	return best, best != 0
}
