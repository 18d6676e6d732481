package appliance

import (
	"errors"
	"io"
	"sync/atomic"

	"tickmux/core"
	"tickmux/protocol"
)

// Config holds the task periods in base clock cycles
type Config struct {
	PanelRefresh   uint32 // one digit per call
	KeyPoll        uint32
	Excitation     uint32 // humidity excitation half period
	SensorInterval uint32 // temperature read and telemetry
	HumidityEvery  uint32 // sensor intervals between humidity measurements, 0 disables
}

// DefaultConfig returns the periods used on the original 1 MHz board.
// Call it after core.SetClockFreq.
func DefaultConfig() Config {
	return Config{
		PanelRefresh:   core.CyclesFromMillis(5),
		KeyPoll:        core.CyclesFromMillis(20),
		Excitation:     core.CyclesFromMillis(1),
		SensorInterval: core.CyclesFromMillis(1000),
		HumidityEvery:  10,
	}
}

// Pins maps the appliance signals to board pins and ADC channels
type Pins struct {
	Fan, Compressor core.GPIOPin
	Key             core.GPIOPin
	Dis0, Dis1      core.GPIOPin
	ExciP, ExciM    core.GPIOPin
	Ambient, Coil   core.ADCChannel
	Humidity        core.ADCChannel
}

// Hardware bundles the drivers a Controller runs on
type Hardware struct {
	GPIO  core.GPIODriver
	ADC   core.ADCDriver
	Shift core.ShiftDriver
	Pins  Pins
}

// DisplayMode selects what the panel shows
type DisplayMode uint8

const (
	ShowAmbient DisplayMode = iota
	ShowCoil
	ShowHumidity
	numDisplayModes
)

func (m DisplayMode) String() string {
	switch m {
	case ShowAmbient:
		return "ambient"
	case ShowCoil:
		return "coil"
	case ShowHumidity:
		return "humidity"
	default:
		return "unknown"
	}
}

// Reading is the latest sensor state seen by the foreground loop.
// A fault flag means the last read of that sensor failed; the value is
// the last good one.
type Reading struct {
	Ambient      uint8 // °C
	Coil         uint8 // °C
	HumidityMS   uint16
	HumidityRMS  float32
	HaveHumidity bool

	AmbientFault  bool
	CoilFault     bool
	HumidityFault bool
}

// Controller owns the appliance components and their scheduler tasks.
// Timer callbacks only touch the components they drive and set wake flags;
// everything else, telemetry included, happens in Poll.
type Controller struct {
	sched *core.Scheduler
	cfg   Config

	out     io.Writer
	scratch *protocol.ScratchOutput
	enc     *protocol.Encoder
	cmds    *core.CommandRegistry

	fan        *Actuator
	compressor *Actuator
	panel      *Panel
	key        *Key
	ambient    *Thermometer
	coil       *Thermometer
	hygro      *Hygrometer

	sensorTask core.TaskID
	keyTask    core.TaskID
	panelTask  core.TaskID
	exciteTask core.TaskID
	hasPanel   bool
	exciting   bool
	started    bool

	sensorWake atomic.Bool
	wakes      uint32
	mode       DisplayMode
	reading    Reading

	writeErrors uint32
}

// NewController configures every component on hw. Telemetry frames are
// written to out. No task is registered until Start.
func NewController(sched *core.Scheduler, hw Hardware, cfg Config, out io.Writer) (*Controller, error) {
	p := hw.Pins
	c := &Controller{
		sched:   sched,
		cfg:     cfg,
		out:     out,
		scratch: protocol.NewScratchOutput(),
		cmds:    core.NewCommandRegistry(),
	}
	c.enc = protocol.NewEncoder(c.scratch)

	var err error
	if c.fan, err = NewActuator("fan", hw.GPIO, p.Fan); err != nil {
		return nil, err
	}
	if c.compressor, err = NewActuator("compressor", hw.GPIO, p.Compressor); err != nil {
		return nil, err
	}
	if c.panel, err = NewPanel(hw.Shift, hw.GPIO, p.Dis0, p.Dis1); err != nil {
		return nil, err
	}
	if c.key, err = NewKey(hw.GPIO, p.Key); err != nil {
		return nil, err
	}
	if c.ambient, err = NewThermometer(hw.ADC, p.Ambient, AmbientCurve); err != nil {
		return nil, err
	}
	if c.coil, err = NewThermometer(hw.ADC, p.Coil, CoilCurve); err != nil {
		return nil, err
	}
	if c.hygro, err = NewHygrometer(hw.GPIO, p.ExciP, p.ExciM, hw.ADC, p.Humidity); err != nil {
		return nil, err
	}

	c.registerCommands()
	return c, nil
}

func (c *Controller) registerCommands() {
	c.cmds.Register('c', "toggle compressor", func() error {
		err := c.compressor.Toggle()
		c.sendActuators()
		return err
	})
	c.cmds.Register('f', "toggle fan", func() error {
		err := c.fan.Toggle()
		c.sendActuators()
		return err
	})
	c.cmds.Register('s', "status", func() error {
		c.ReportStatus()
		return nil
	})
	c.cmds.Register('d', "dump timing", func() error {
		core.DumpTimingRing()
		return nil
	})
	c.cmds.Register('h', "help", func() error {
		c.SendText(c.cmds.Help())
		return nil
	})
}

// Start registers the periodic tasks. The sensor and key tasks are
// required. The panel is dropped with a notice when its period cannot be
// combined with the others.
func (c *Controller) Start() error {
	if c.started {
		return nil
	}

	var err error
	if c.sensorTask, err = c.register(c.wakeSensors, c.cfg.SensorInterval); err != nil {
		return err
	}
	if c.keyTask, err = c.register(c.key.Poll, c.cfg.KeyPoll); err != nil {
		c.deregister(c.sensorTask)
		return err
	}
	c.panelTask, err = c.register(c.panel.Refresh, c.cfg.PanelRefresh)
	switch {
	case err == nil:
		c.hasPanel = true
	case errors.Is(err, core.ErrResolution):
		c.SendText("panel disabled: " + err.Error())
	default:
		c.deregister(c.keyTask)
		c.deregister(c.sensorTask)
		return err
	}

	c.started = true
	c.updatePanel()
	c.ReportStatus()
	return nil
}

// Stop deregisters every task; the scheduler goes idle
func (c *Controller) Stop() {
	if !c.started {
		return
	}
	if c.exciting {
		c.deregister(c.exciteTask)
		c.exciting = false
	}
	if c.hasPanel {
		c.deregister(c.panelTask)
		c.hasPanel = false
	}
	c.deregister(c.keyTask)
	c.deregister(c.sensorTask)
	c.started = false
	c.sendSchedulerState()
}

func (c *Controller) wakeSensors() {
	c.sensorWake.Store(true)
}

// Poll runs one step of the foreground loop. It never blocks.
func (c *Controller) Poll() {
	if c.key.Pressed() {
		c.mode = (c.mode + 1) % numDisplayModes
		c.updatePanel()
	}

	if c.exciting && c.hygro.Done() {
		c.finishHumidity()
	}

	if !c.sensorWake.Swap(false) {
		return
	}
	c.wakes++

	c.readTemperatures()
	if c.cfg.HumidityEvery > 0 && c.wakes%c.cfg.HumidityEvery == 0 && !c.exciting {
		c.startHumidity()
	}

	c.updatePanel()
	c.sendSensors()
	c.sendActuators()
}

func (c *Controller) readTemperatures() {
	t, err := c.ambient.Read()
	if err == nil {
		c.reading.Ambient = t
	}
	c.reading.AmbientFault = err != nil

	t, err = c.coil.Read()
	if err == nil {
		c.reading.Coil = t
	}
	c.reading.CoilFault = err != nil
}

// startHumidity registers the excitation task for one measurement. The
// timer rate is renegotiated for the short excitation period.
func (c *Controller) startHumidity() {
	c.hygro.Start()
	id, err := c.register(c.hygro.Step, c.cfg.Excitation)
	if err != nil {
		core.DebugPrintln("[APP] humidity measurement skipped: " + err.Error())
		return
	}
	c.exciteTask = id
	c.exciting = true
}

func (c *Controller) finishHumidity() {
	c.deregister(c.exciteTask)
	c.exciting = false

	ms, ok := c.hygro.MeanSquare()
	if !ok {
		if c.hygro.Failed() {
			c.reading.HumidityFault = true
			c.SendText("humidity read failed, " + core.Utoa(c.hygro.ReadErrors()) + " ADC errors")
		}
		return
	}
	rms, _ := c.hygro.RMS()
	core.DebugPrintln("[APP] humidity mean square " + core.Utoa(uint32(ms)))
	c.reading.HumidityFault = false
	c.reading.HumidityMS = ms
	c.reading.HumidityRMS = rms
	c.reading.HaveHumidity = true
}

func (c *Controller) updatePanel() {
	var leds uint8
	if c.fan.On() {
		leds |= LEDOnOff
	}
	if c.compressor.On() {
		leds |= LEDCont
	}
	c.panel.SetLEDs(leds)

	switch c.mode {
	case ShowAmbient:
		if c.reading.AmbientFault {
			c.panel.ShowError()
			return
		}
		c.panel.SetNumber(int(c.reading.Ambient))
	case ShowCoil:
		if c.reading.CoilFault {
			c.panel.ShowError()
			return
		}
		c.panel.SetNumber(int(c.reading.Coil))
	case ShowHumidity:
		if c.reading.HumidityFault {
			c.panel.ShowError()
			return
		}
		if !c.reading.HaveHumidity {
			c.panel.ShowHumidity(-1)
			return
		}
		c.panel.ShowHumidity(int(c.reading.HumidityRMS) * 10 / 256)
	}
}

// HandleKey runs the console command bound to key. Unknown keys are
// answered with a text frame and ErrUnknownCommand.
func (c *Controller) HandleKey(key byte) error {
	err := c.cmds.Dispatch(key)
	if errors.Is(err, core.ErrUnknownCommand) {
		c.SendText("unknown command " + string(key) + ", h for help")
	}
	return err
}

// ReportStatus sends the scheduler state followed by one frame per task.
// Failed telemetry writes since startup are reported as text.
func (c *Controller) ReportStatus() {
	c.sendSchedulerState()

	var buf [core.MaxTasks]core.TaskInfo
	for _, t := range c.sched.Tasks(buf[:0]) {
		c.send(protocol.MsgTaskState, func(out protocol.OutputBuffer) {
			protocol.EncodeVLQUint(out, uint32(t.ID))
			protocol.EncodeVLQUint(out, t.Period)
			protocol.EncodeVLQUint(out, t.Ticks)
			protocol.EncodeVLQUint(out, t.Countdown)
		})
	}
	if c.writeErrors > 0 {
		c.SendText("telemetry write errors " + core.Utoa(c.writeErrors))
	}
}

// Reading returns the latest sensor values
func (c *Controller) Reading() Reading {
	return c.reading
}

// Mode returns the current display mode
func (c *Controller) Mode() DisplayMode {
	return c.mode
}

// Fan returns the fan actuator
func (c *Controller) Fan() *Actuator {
	return c.fan
}

// Compressor returns the compressor actuator
func (c *Controller) Compressor() *Actuator {
	return c.compressor
}

// Panel returns the operator panel
func (c *Controller) Panel() *Panel {
	return c.panel
}

// HasPanel reports whether the panel refresh task is registered
func (c *Controller) HasPanel() bool {
	return c.hasPanel
}

// Measuring reports whether a humidity measurement is in progress
func (c *Controller) Measuring() bool {
	return c.exciting
}

func (c *Controller) register(fn core.TaskFunc, period uint32) (core.TaskID, error) {
	id, err := c.sched.Register(fn, period)
	if err != nil {
		c.sendTaskEvent(protocol.TaskEventRejected, 0xFF, period, errorCode(err))
		return 0, err
	}
	c.sendTaskEvent(protocol.TaskEventRegistered, uint8(id), period, protocol.CodeOK)
	return id, nil
}

func (c *Controller) deregister(id core.TaskID) {
	err := c.sched.Deregister(id)
	c.sendTaskEvent(protocol.TaskEventDeregistered, uint8(id), 0, errorCode(err))
}

func errorCode(err error) uint32 {
	switch {
	case err == nil:
		return protocol.CodeOK
	case errors.Is(err, core.ErrResourceExhausted):
		return protocol.CodeResourceExhausted
	case errors.Is(err, core.ErrResolution):
		return protocol.CodeResolution
	case errors.Is(err, core.ErrNotFound):
		return protocol.CodeNotFound
	default:
		return protocol.CodeOther
	}
}

func boolArg(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func (c *Controller) sendTaskEvent(kind, id uint8, period, code uint32) {
	c.send(protocol.MsgTaskEvent, func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, uint32(kind))
		protocol.EncodeVLQUint(out, uint32(id))
		protocol.EncodeVLQUint(out, period)
		protocol.EncodeVLQUint(out, code)
	})
}

func (c *Controller) sendSchedulerState() {
	rate := c.sched.Rate()
	running := c.sched.State() == core.StateRunning
	n := c.sched.Len()
	c.send(protocol.MsgSchedulerState, func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, rate.TickPeriod)
		protocol.EncodeVLQUint(out, rate.Prescaler)
		protocol.EncodeVLQUint(out, rate.Compare)
		protocol.EncodeVLQUint(out, boolArg(running))
		protocol.EncodeVLQUint(out, uint32(n))
	})
}

func (c *Controller) sendSensors() {
	r := c.reading
	c.send(protocol.MsgSensors, func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, uint32(r.Ambient))
		protocol.EncodeVLQUint(out, uint32(r.Coil))
		protocol.EncodeVLQUint(out, uint32(r.HumidityMS))
		protocol.EncodeVLQUint(out, uint32(r.HumidityRMS*100+0.5))
	})
}

func (c *Controller) sendActuators() {
	c.send(protocol.MsgActuators, func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, boolArg(c.fan.On()))
		protocol.EncodeVLQUint(out, boolArg(c.compressor.On()))
	})
}

// SendText sends s as text frames. It can serve as the core debug writer.
func (c *Controller) SendText(s string) {
	c.enc.SendText(s)
	c.flush()
}

func (c *Controller) send(id uint32, args func(protocol.OutputBuffer)) {
	c.enc.SendMessage(id, args)
	c.flush()
}

func (c *Controller) flush() {
	if b := c.scratch.Result(); len(b) > 0 && c.out != nil {
		if _, err := c.out.Write(b); err != nil {
			c.writeErrors++
		}
	}
	c.scratch.Reset()
}
