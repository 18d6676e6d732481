//go:build avr

package main

import (
	"errors"
	"machine"

	"tickmux/core"
)

var errADCChannel = errors.New("adc: no such channel")

// analog inputs ADC0-ADC5 sit on PC0-PC5
var adcPins = [...]machine.Pin{machine.PC0, machine.PC1, machine.PC2, machine.PC3, machine.PC4, machine.PC5}

// ADCDriver performs single conversions through machine.ADC. The result is
// left aligned to 16 bits.
type ADCDriver struct {
	adcs [len(adcPins)]machine.ADC
}

// NewADCDriver powers up the converter
func NewADCDriver() *ADCDriver {
	machine.InitADC()
	return &ADCDriver{}
}

func (d *ADCDriver) ConfigureChannel(ch core.ADCChannel) error {
	if int(ch) >= len(adcPins) {
		return errADCChannel
	}
	d.adcs[ch] = machine.ADC{Pin: adcPins[ch]}
	d.adcs[ch].Configure(machine.ADCConfig{})
	return nil
}

func (d *ADCDriver) ReadRaw(ch core.ADCChannel) (core.ADCValue, error) {
	if int(ch) >= len(adcPins) {
		return 0, errADCChannel
	}
	return core.ADCValue(d.adcs[ch].Get()), nil
}
