package sim

import (
	"context"
	"sync/atomic"
	"time"

	"tickmux/appliance"
	"tickmux/core"
	"tickmux/host/config"
)

// Pins is the simulated board wiring
var Pins = appliance.Pins{
	Fan: 1, Compressor: 2, Key: 3, Dis0: 4, Dis1: 5, ExciP: 6, ExciM: 7,
	Ambient: 3, Coil: 1, Humidity: 2,
}

// PollInterval is the foreground loop period of a simulated device
const PollInterval = 200 * time.Microsecond

// Device is the controller firmware wired to simulated hardware
type Device struct {
	Timer *Timer
	GPIO  *GPIO
	ADC   *ADC
	Shift *Shift
	Link  *Link
	Sched *core.Scheduler
	Ctrl  *appliance.Controller

	humidity atomic.Uint32
}

// NewDevice builds a device. app nil selects appliance.DefaultConfig for
// the configured clock.
func NewDevice(cfg config.SimConfig, app *appliance.Config) (*Device, error) {
	core.SetClockFreq(cfg.ClockHz)
	if app == nil {
		def := appliance.DefaultConfig()
		app = &def
	}

	d := &Device{
		Timer: NewTimer(core.ClockFreq(), cfg.TimeScale),
		GPIO:  NewGPIO(),
		ADC:   NewADC(),
		Shift: &Shift{},
		Link:  NewLink(64),
	}
	d.Sched = core.NewScheduler(d.Timer)
	d.Timer.Attach(d.Sched.Dispatch)

	d.SetTemperatures(cfg.Ambient, cfg.Coil)
	d.SetHumidity(cfg.Humidity)
	d.ADC.SetSource(Pins.Humidity, ACDivider(d.GPIO, Pins.ExciP, func() uint8 {
		return uint8(d.humidity.Load())
	}))

	hw := appliance.Hardware{GPIO: d.GPIO, ADC: d.ADC, Shift: d.Shift, Pins: Pins}
	ctrl, err := appliance.NewController(d.Sched, hw, *app, d.Link)
	if err != nil {
		return nil, err
	}
	d.Ctrl = ctrl
	// Debug output, the timing dump included, travels as text frames
	core.SetDebugWriter(ctrl.SendText)
	return d, nil
}

// SetTemperatures sets the raw readings of both NTC dividers
func (d *Device) SetTemperatures(ambient, coil uint8) {
	d.ADC.SetSource(Pins.Ambient, Constant(ambient))
	d.ADC.SetSource(Pins.Coil, Constant(coil))
}

// SetHumidity sets the humidity divider level seen under positive excitation
func (d *Device) SetHumidity(raw uint8) {
	d.humidity.Store(uint32(raw))
}

// Key holds the panel key down or releases it
func (d *Device) Key(down bool) {
	d.GPIO.Drive(Pins.Key, !down)
}

// Run starts the controller and runs its foreground loop until ctx is done.
// Console keys written to the host port are handled between polls.
func (d *Device) Run(ctx context.Context) error {
	if err := d.Ctrl.Start(); err != nil {
		return err
	}

	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		for {
			key, ok := d.Link.PollKey()
			if !ok {
				break
			}
			d.Ctrl.HandleKey(key)
		}
		d.Ctrl.Poll()
	}
}

// Close shuts the link, deregisters every task and stops the timer.
// Call it after Run has returned.
func (d *Device) Close() {
	d.Link.Close()
	d.Ctrl.Stop()
	d.Timer.Close()
}
