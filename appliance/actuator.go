// Package appliance implements the dehumidifier controller on top of the
// core scheduler: actuators, operator panel, sensors and the foreground
// control loop.
package appliance

import "tickmux/core"

// Actuator is a load switched by one output pin (fan, compressor).
type Actuator struct {
	name string
	gpio core.GPIODriver
	pin  core.GPIOPin
	on   bool
}

// NewActuator configures pin as an output and switches the load off.
func NewActuator(name string, gpio core.GPIODriver, pin core.GPIOPin) (*Actuator, error) {
	if err := gpio.ConfigureOutput(pin); err != nil {
		return nil, err
	}
	a := &Actuator{name: name, gpio: gpio, pin: pin}
	if err := a.Set(false); err != nil {
		return nil, err
	}
	return a, nil
}

// Set switches the load on or off
func (a *Actuator) Set(on bool) error {
	if err := a.gpio.SetPin(a.pin, on); err != nil {
		return err
	}
	a.on = on
	return nil
}

// Toggle inverts the load state
func (a *Actuator) Toggle() error {
	return a.Set(!a.on)
}

// On reports the last commanded state
func (a *Actuator) On() bool {
	return a.on
}

// Name returns the actuator name used in console output
func (a *Actuator) Name() string {
	return a.name
}
