package appliance

import (
	"sync/atomic"

	"github.com/chewxy/math32"

	"tickmux/core"
)

// HumiditySamples is the number of readings in one humidity measurement
const HumiditySamples = 64

// Hygrometer measures a resistive humidity sensor driven with an AC square
// wave. Step runs from the timer interrupt once per excitation half period:
// it samples the divider, stores the reading (inverted while the excitation
// is reversed) and flips the excitation. After HumiditySamples readings it
// stops until the next Start. A failed ADC read keeps the excitation
// sequence going but invalidates the measurement.
type Hygrometer struct {
	gpio       core.GPIODriver
	exciP      core.GPIOPin
	exciM      core.GPIOPin
	adc        core.ADCDriver
	ch         core.ADCChannel
	positive   bool
	n          int
	failed     bool
	readings   [HumiditySamples]uint8
	done       atomic.Bool
	readErrors atomic.Uint32
}

// NewHygrometer configures the excitation pins and the sense channel.
// Both excitation pins rest high.
func NewHygrometer(gpio core.GPIODriver, exciP, exciM core.GPIOPin, adc core.ADCDriver, ch core.ADCChannel) (*Hygrometer, error) {
	for _, pin := range []core.GPIOPin{exciP, exciM} {
		if err := gpio.ConfigureOutput(pin); err != nil {
			return nil, err
		}
		if err := gpio.SetPin(pin, true); err != nil {
			return nil, err
		}
	}
	if err := adc.ConfigureChannel(ch); err != nil {
		return nil, err
	}
	h := &Hygrometer{gpio: gpio, exciP: exciP, exciM: exciM, adc: adc, ch: ch}
	h.done.Store(true)
	return h, nil
}

// Start begins a measurement with positive excitation. It must not run
// concurrently with Step, i.e. call it before the step task is registered.
func (h *Hygrometer) Start() {
	h.n = 0
	h.failed = false
	h.positive = true
	h.gpio.SetPin(h.exciM, false)
	h.gpio.SetPin(h.exciP, true)
	h.done.Store(false)
}

// Step takes one reading and reverses the excitation
func (h *Hygrometer) Step() {
	if h.done.Load() {
		return
	}
	v, err := h.adc.ReadRaw(h.ch)
	if err != nil {
		h.readErrors.Add(1)
		h.failed = true
	} else {
		r := v.High8()
		if !h.positive {
			r = 255 - r
		}
		h.readings[h.n] = r
	}
	h.n++

	h.positive = !h.positive
	h.gpio.SetPin(h.exciP, h.positive)
	h.gpio.SetPin(h.exciM, !h.positive)

	if h.n == HumiditySamples {
		h.done.Store(true)
	}
}

// Done reports whether the last measurement is complete
func (h *Hygrometer) Done() bool {
	return h.done.Load()
}

// Failed reports whether the last completed measurement lost a reading
func (h *Hygrometer) Failed() bool {
	return h.done.Load() && h.failed
}

// ReadErrors returns the number of failed ADC reads since startup
func (h *Hygrometer) ReadErrors() uint32 {
	return h.readErrors.Load()
}

// MeanSquare returns the mean of the squared readings of the completed
// measurement. ok is false while a measurement is in progress or when it
// Failed.
func (h *Hygrometer) MeanSquare() (ms uint16, ok bool) {
	if !h.done.Load() || h.n != HumiditySamples || h.failed {
		return 0, false
	}
	var sum uint32
	for _, r := range h.readings {
		sum += uint32(r) * uint32(r)
	}
	return uint16(sum / HumiditySamples), true
}

// RMS returns the root mean square of the completed measurement in ADC
// counts (0-255).
func (h *Hygrometer) RMS() (float32, bool) {
	ms, ok := h.MeanSquare()
	if !ok {
		return 0, false
	}
	return math32.Sqrt(float32(ms)), true
}
