package appliance

import "tickmux/core"

// Curve converts an 8-bit ADC reading of an NTC divider to degrees Celsius:
// a*x^2 + b*x + c, with x clamped to [Min, Max].
type Curve struct {
	A, B, C  float32
	Min, Max uint8
}

// Calibrated curves of the two sensors on the original board
var (
	AmbientCurve = Curve{A: 0.000640967, B: 0.1431304871, C: -11.6516721212, Min: 87, Max: 238}
	CoilCurve    = Curve{A: 0.0004351878, B: 0.2011721783, C: -10.5522104343, Min: 70, Max: 230}
)

// Celsius evaluates the curve. The result is truncated toward zero and
// saturates to the uint8 range.
func (c Curve) Celsius(raw uint8) uint8 {
	if raw < c.Min {
		raw = c.Min
	} else if raw > c.Max {
		raw = c.Max
	}
	x := float32(raw)
	t := c.A*x*x + c.B*x + c.C
	switch {
	case t <= 0:
		return 0
	case t >= 255:
		return 255
	}
	return uint8(t)
}

// Thermometer reads one temperature sensor with a single ADC conversion
type Thermometer struct {
	adc   core.ADCDriver
	ch    core.ADCChannel
	curve Curve
}

// NewThermometer configures ch as an analog input
func NewThermometer(adc core.ADCDriver, ch core.ADCChannel, curve Curve) (*Thermometer, error) {
	if err := adc.ConfigureChannel(ch); err != nil {
		return nil, err
	}
	return &Thermometer{adc: adc, ch: ch, curve: curve}, nil
}

// Read converts one sample to degrees Celsius
func (t *Thermometer) Read() (uint8, error) {
	v, err := t.adc.ReadRaw(t.ch)
	if err != nil {
		return 0, err
	}
	return t.curve.Celsius(v.High8()), nil
}
