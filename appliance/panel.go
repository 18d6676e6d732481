package appliance

import (
	"sync/atomic"

	"tickmux/core"
)

// Panel LEDs, in the LED byte of the shift pattern
const (
	LEDOnOff = 0x01
	LEDWater = 0x04
	LEDCont  = 0x08
)

// 7-segment patterns, bit 0 = segment a ... bit 6 = segment g
const (
	segBlank = 0x00
	segDash  = 0x40
	segE     = 0x79
	segR     = 0x50
	segH     = 0x76
)

var segDigits = [10]uint8{0x3F, 0x06, 0x5B, 0x4F, 0x66, 0x6D, 0x7D, 0x07, 0x7F, 0x6F}

// Panel drives the operator panel: two multiplexed 7-segment digits and
// three LEDs behind one shift register. Refresh shows one digit per call
// and must be scheduled often enough for both digits to look steady.
//
// The display content is packed into one word so that foreground updates
// never tear a refresh: bits 0-7 left digit, 8-15 right digit, 16-23 LEDs.
type Panel struct {
	shift core.ShiftDriver
	gpio  core.GPIODriver
	dis   [2]core.GPIOPin

	content atomic.Uint32
	digit   uint8 // owned by Refresh
}

// NewPanel configures the two digit select pins and blanks the display.
func NewPanel(shift core.ShiftDriver, gpio core.GPIODriver, dis0, dis1 core.GPIOPin) (*Panel, error) {
	p := &Panel{shift: shift, gpio: gpio, dis: [2]core.GPIOPin{dis0, dis1}}
	for _, pin := range p.dis {
		if err := gpio.ConfigureOutput(pin); err != nil {
			return nil, err
		}
		if err := gpio.SetPin(pin, false); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// SetSegments sets the raw segment patterns of both digits
func (p *Panel) SetSegments(left, right uint8) {
	for {
		old := p.content.Load()
		v := old&^0xFFFF | uint32(right)<<8 | uint32(left)
		if p.content.CompareAndSwap(old, v) {
			return
		}
	}
}

// SetNumber shows n in decimal. Values outside 0-99 show "--".
func (p *Panel) SetNumber(n int) {
	if n < 0 || n > 99 {
		p.SetSegments(segDash, segDash)
		return
	}
	left := uint8(segBlank)
	if n >= 10 {
		left = segDigits[n/10]
	}
	p.SetSegments(left, segDigits[n%10])
}

// ShowError shows "Er"
func (p *Panel) ShowError() {
	p.SetSegments(segE, segR)
}

// ShowHumidity shows "H" followed by a one-digit level
func (p *Panel) ShowHumidity(level int) {
	if level < 0 || level > 9 {
		p.SetSegments(segH, segDash)
		return
	}
	p.SetSegments(segH, segDigits[level])
}

// SetLEDs replaces the LED state with mask (LEDOnOff, LEDWater, LEDCont)
func (p *Panel) SetLEDs(mask uint8) {
	for {
		old := p.content.Load()
		v := old&^(0xFF<<16) | uint32(mask)<<16
		if p.content.CompareAndSwap(old, v) {
			return
		}
	}
}

// LEDs returns the current LED mask
func (p *Panel) LEDs() uint8 {
	return uint8(p.content.Load() >> 16)
}

// Segments returns the current segment patterns
func (p *Panel) Segments() (left, right uint8) {
	v := p.content.Load()
	return uint8(v), uint8(v >> 8)
}

// Refresh blanks the active digit, shifts out the next digit's pattern
// and selects it. Called from the timer interrupt.
func (p *Panel) Refresh() {
	v := p.content.Load()
	next := p.digit ^ 1

	p.gpio.SetPin(p.dis[p.digit], false)
	seg := uint8(v >> (8 * next))
	leds := uint8(v >> 16)
	p.shift.WriteMask(uint32(leds)<<8 | uint32(seg))
	p.gpio.SetPin(p.dis[next], true)

	p.digit = next
}
