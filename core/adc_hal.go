package core

// ADCChannel identifies a logical ADC channel (multiplexer input).
type ADCChannel uint8

// ADCValue is the "raw" ADC reading as seen by the rest of the firmware.
// Convention here: 16-bit left-aligned value, even if the underlying
// hardware converts fewer bits.
type ADCValue uint16

// High8 returns the 8 most significant bits of the reading.
func (v ADCValue) High8() uint8 {
	return uint8(v >> 8)
}

// ADCDriver is the abstract ADC interface that core code uses.
type ADCDriver interface {
	// ConfigureChannel prepares a channel for analog input.
	ConfigureChannel(ch ADCChannel) error

	// ReadRaw performs a one-shot sample from the given channel.
	// Must be bounded: it is called from timer callbacks.
	ReadRaw(ch ADCChannel) (ADCValue, error)
}

// ShiftDriver writes a parallel pattern through a serial shift register.
type ShiftDriver interface {
	// WriteMask shifts out mask and latches it onto the outputs.
	WriteMask(mask uint32)
}
