//go:build avr

package main

import (
	"device/avr"
	"errors"

	"tickmux/core"
)

var errPrescaler = errors.New("timer1: unsupported prescaler")

// Timer1Driver drives timer1 in CTC mode: the counter clears on OCR1A and
// raises TIMER1_COMPA, whose handler calls Scheduler.Dispatch.
type Timer1Driver struct{}

func (Timer1Driver) Constraints() core.TimerConstraints {
	return core.Timer16Constraints()
}

// clockSelect maps a prescaler to the CS12:CS10 bits of TCCR1B
func clockSelect(prescaler uint32) (uint8, bool) {
	switch prescaler {
	case 1:
		return 1, true
	case 8:
		return 2, true
	case 64:
		return 3, true
	case 256:
		return 4, true
	case 1024:
		return 5, true
	}
	return 0, false
}

// Program restarts the counter with a new rate. It is called with the
// timer interrupt masked.
func (Timer1Driver) Program(prescaler, compare uint32) error {
	cs, ok := clockSelect(prescaler)
	if !ok {
		return errPrescaler
	}
	if compare == 0 || compare > 0xFFFF {
		return core.ErrResolution
	}

	// Stop, clear and reload; the counter matches OCR1A after compare
	// prescaled clocks.
	avr.TCCR1B.Set(0)
	avr.TCCR1A.Set(0)
	avr.TCNT1H.Set(0)
	avr.TCNT1L.Set(0)
	top := compare - 1
	avr.OCR1AH.Set(uint8(top >> 8)) // high byte first (TEMP register)
	avr.OCR1AL.Set(uint8(top))
	avr.TIFR1.Set(avr.TIFR1_OCF1A)
	avr.TIMSK1.SetBits(avr.TIMSK1_OCIE1A)
	avr.TCCR1B.Set(avr.TCCR1B_WGM12 | cs)
	return nil
}

// Stop halts the counter and disables the compare interrupt
func (Timer1Driver) Stop() {
	avr.TCCR1B.Set(0)
	avr.TIMSK1.ClearBits(avr.TIMSK1_OCIE1A)
}
