//go:build avr

// Command avr is the dehumidifier controller firmware for an ATmega328p.
package main

import (
	"device/avr"
	"machine"
	"runtime/interrupt"

	"tinygo.org/x/drivers/shiftregister"

	"tickmux/appliance"
	"tickmux/core"
)

// Board wiring. The panel select lines moved off PB6/PB7 (crystal) and the
// shift latch off PC3 (ambient sensor input).
var pins = appliance.Pins{
	Fan:        core.GPIOPin(machine.PC0),
	Compressor: core.GPIOPin(machine.PD4),
	Key:        core.GPIOPin(machine.PC4),
	Dis0:       core.GPIOPin(machine.PB2),
	Dis1:       core.GPIOPin(machine.PB3),
	ExciP:      core.GPIOPin(machine.PD6),
	ExciM:      core.GPIOPin(machine.PD7),
	Ambient:    3,
	Coil:       1,
	Humidity:   2,
}

const (
	panelClock = machine.PD2
	panelData  = machine.PC5
	panelLatch = machine.PB1
)

var scheduler *core.Scheduler

func main() {
	machine.Serial.Configure(machine.UARTConfig{BaudRate: 9600})
	core.SetClockFreq(machine.CPUFrequency())

	scheduler = core.NewScheduler(Timer1Driver{})
	interrupt.New(avr.IRQ_TIMER1_COMPA, func(interrupt.Interrupt) {
		scheduler.Dispatch()
	})

	// 8 segment bits then 8 LED bits
	panel := shiftregister.New(shiftregister.SIXTEEN_BITS, panelLatch, panelClock, panelData)
	panel.Configure()

	hw := appliance.Hardware{
		GPIO:  GPIODriver{},
		ADC:   NewADCDriver(),
		Shift: panel,
		Pins:  pins,
	}
	ctrl, err := appliance.NewController(scheduler, hw, appliance.DefaultConfig(), machine.Serial)
	if err != nil {
		halt()
	}
	core.SetDebugWriter(ctrl.SendText)

	if err := ctrl.Start(); err != nil {
		ctrl.SendText("start failed: " + err.Error())
		halt()
	}

	for {
		for machine.Serial.Buffered() > 0 {
			key, err := machine.Serial.ReadByte()
			if err != nil {
				break
			}
			ctrl.HandleKey(key)
		}
		ctrl.Poll()
	}
}

// halt leaves the outputs as they are and spins
func halt() {
	for {
	}
}
