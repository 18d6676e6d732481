// Package monitor decodes controller telemetry on the host and keeps the
// latest view of the scheduler, its tasks and the appliance.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/emirpasic/gods/trees/redblacktree"
	"github.com/rs/zerolog"

	"tickmux/host/logging"
	"tickmux/protocol"
)

// SchedulerView is the last reported scheduler state
type SchedulerView struct {
	TickPeriod uint32
	Prescaler  uint32
	Compare    uint32
	Running    bool
	Tasks      int
}

// TaskView is the last reported state of one task. Ticks and Countdown
// are zero until a status report arrives.
type TaskView struct {
	ID        uint8
	Period    uint32
	Ticks     uint32
	Countdown uint32
}

// Sensors is the last sensor report
type Sensors struct {
	Ambient     uint32 // °C
	Coil        uint32 // °C
	HumidityMS  uint32
	HumidityRMS float64
}

// Actuators is the last actuator report
type Actuators struct {
	Fan        bool
	Compressor bool
}

// Stats counts frames seen by the monitor
type Stats struct {
	Frames   uint64
	Dropped  int
	Lost     int
	BadArgs  uint64
	Rejected uint64
}

// Monitor consumes the controller byte stream. Feed and Run may be used
// from one goroutine while views are read from others.
type Monitor struct {
	log  zerolog.Logger
	warn *logging.Throttle

	mu        sync.Mutex
	fifo      *protocol.FifoBuffer
	dec       *protocol.Decoder
	sched     SchedulerView
	tasks     *redblacktree.Tree // task id -> TaskView
	sensors   Sensors
	actuators Actuators
	stats     Stats
	onText    func(string)
}

// New creates a monitor logging through log. Repeated warnings about a bad
// line are limited by warn.
func New(log zerolog.Logger, warn *logging.Throttle, bufSize int) *Monitor {
	if bufSize < 2*protocol.MessageLengthMax {
		bufSize = 2 * protocol.MessageLengthMax
	}
	return &Monitor{
		log:   log,
		warn:  warn,
		fifo:  protocol.NewFifoBuffer(bufSize),
		dec:   protocol.NewDecoder(),
		tasks: redblacktree.NewWithIntComparator(),
	}
}

// OnText sets a callback for text frames from the controller
func (m *Monitor) OnText(fn func(string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onText = fn
}

// Feed decodes data appended to any partial frame left from the last call
func (m *Monitor) Feed(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for len(data) > 0 {
		n := m.fifo.Write(data)
		data = data[n:]
		dropped, lost := m.dec.Dropped(), m.dec.Lost()
		m.dec.Decode(m.fifo, m.handle)
		m.checkLine(dropped, lost)
		if n == 0 && m.fifo.Free() == 0 {
			// Full and nothing decoded: discard
			m.fifo.Reset()
		}
	}
}

func (m *Monitor) checkLine(dropped, lost int) {
	m.stats.Dropped = m.dec.Dropped()
	m.stats.Lost = m.dec.Lost()
	if m.stats.Dropped == dropped && m.stats.Lost == lost {
		return
	}
	if m.warn == nil || m.warn.Allow() {
		m.log.Warn().
			Int("dropped", m.stats.Dropped).
			Int("lost", m.stats.Lost).
			Msg("corrupt or missing frames")
	}
}

// Run reads from r until ctx is done or r fails. Read timeouts (io.EOF
// from a serial port with a read timeout) are retried.
func (m *Monitor) Run(ctx context.Context, r io.Reader) error {
	buf := make([]byte, 256)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		n, err := r.Read(buf)
		if n > 0 {
			m.Feed(buf[:n])
		}
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			time.Sleep(10 * time.Millisecond)
		default:
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("monitor read: %w", err)
		}
	}
}

// SendCommand writes one console key to the controller
func SendCommand(w io.Writer, key byte) error {
	if _, err := w.Write([]byte{key}); err != nil {
		return fmt.Errorf("send command %q: %w", key, err)
	}
	return nil
}

func (m *Monitor) handle(msg protocol.Message) {
	m.stats.Frames++
	args := msg.Args

	var err error
	switch msg.ID {
	case protocol.MsgSchedulerState:
		err = m.handleSchedulerState(&args)
	case protocol.MsgTaskState:
		err = m.handleTaskState(&args)
	case protocol.MsgTaskEvent:
		err = m.handleTaskEvent(&args)
	case protocol.MsgSensors:
		err = m.handleSensors(&args)
	case protocol.MsgActuators:
		err = m.handleActuators(&args)
	case protocol.MsgText:
		var s string
		if s, err = protocol.DecodeVLQString(&args); err == nil {
			m.log.Info().Str("text", s).Msg("controller")
			if m.onText != nil {
				m.onText(s)
			}
		}
	default:
		err = fmt.Errorf("unknown message id %d", msg.ID)
	}

	if err != nil {
		m.stats.BadArgs++
		if m.warn == nil || m.warn.Allow() {
			m.log.Warn().Err(err).
				Str("msg", protocol.MessageName(msg.ID)).
				Uint8("seq", msg.Sequence).
				Msg("undecodable frame")
		}
	}
}

// decodeArgs decodes len(dst) unsigned arguments
func decodeArgs(data *[]byte, dst ...*uint32) error {
	for _, p := range dst {
		v, err := protocol.DecodeVLQUint(data)
		if err != nil {
			return err
		}
		*p = v
	}
	return nil
}

func (m *Monitor) handleSchedulerState(args *[]byte) error {
	var tick, prescaler, compare, running, n uint32
	if err := decodeArgs(args, &tick, &prescaler, &compare, &running, &n); err != nil {
		return err
	}
	m.sched = SchedulerView{
		TickPeriod: tick,
		Prescaler:  prescaler,
		Compare:    compare,
		Running:    running != 0,
		Tasks:      int(n),
	}
	// A status report lists every task after this frame
	m.tasks.Clear()
	m.log.Debug().
		Uint32("tick", tick).
		Uint32("prescaler", prescaler).
		Uint32("compare", compare).
		Bool("running", running != 0).
		Uint32("tasks", n).
		Msg("scheduler state")
	return nil
}

func (m *Monitor) handleTaskState(args *[]byte) error {
	var id, period, ticks, countdown uint32
	if err := decodeArgs(args, &id, &period, &ticks, &countdown); err != nil {
		return err
	}
	m.tasks.Put(int(id), TaskView{ID: uint8(id), Period: period, Ticks: ticks, Countdown: countdown})
	return nil
}

func (m *Monitor) handleTaskEvent(args *[]byte) error {
	var kind, id, period, code uint32
	if err := decodeArgs(args, &kind, &id, &period, &code); err != nil {
		return err
	}

	switch kind {
	case protocol.TaskEventRegistered:
		m.tasks.Put(int(id), TaskView{ID: uint8(id), Period: period})
		m.log.Info().Uint32("id", id).Uint32("period", period).Msg("task registered")
	case protocol.TaskEventRejected:
		m.stats.Rejected++
		m.log.Warn().Uint32("period", period).Str("reason", CodeName(code)).Msg("task rejected")
	case protocol.TaskEventDeregistered:
		m.tasks.Remove(int(id))
		ev := m.log.Info()
		if code != protocol.CodeOK {
			ev = m.log.Warn().Str("reason", CodeName(code))
		}
		ev.Uint32("id", id).Msg("task deregistered")
	default:
		return fmt.Errorf("unknown task event kind %d", kind)
	}
	return nil
}

func (m *Monitor) handleSensors(args *[]byte) error {
	var s Sensors
	var rmsCenti uint32
	if err := decodeArgs(args, &s.Ambient, &s.Coil, &s.HumidityMS, &rmsCenti); err != nil {
		return err
	}
	s.HumidityRMS = float64(rmsCenti) / 100
	m.sensors = s
	m.log.Debug().
		Uint32("ambient", s.Ambient).
		Uint32("coil", s.Coil).
		Float64("humidity_rms", s.HumidityRMS).
		Msg("sensors")
	return nil
}

func (m *Monitor) handleActuators(args *[]byte) error {
	var fan, comp uint32
	if err := decodeArgs(args, &fan, &comp); err != nil {
		return err
	}
	a := Actuators{Fan: fan != 0, Compressor: comp != 0}
	if a != m.actuators {
		m.log.Info().Bool("fan", a.Fan).Bool("compressor", a.Compressor).Msg("actuators")
	}
	m.actuators = a
	return nil
}

// CodeName names a task event result code
func CodeName(code uint32) string {
	switch code {
	case protocol.CodeOK:
		return "ok"
	case protocol.CodeResourceExhausted:
		return "resource exhausted"
	case protocol.CodeResolution:
		return "no timer resolution"
	case protocol.CodeNotFound:
		return "not found"
	default:
		return "error"
	}
}

// Scheduler returns the last scheduler state
func (m *Monitor) Scheduler() SchedulerView {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sched
}

// Tasks returns the known tasks ordered by id
func (m *Monitor) Tasks() []TaskView {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]TaskView, 0, m.tasks.Size())
	for _, v := range m.tasks.Values() {
		out = append(out, v.(TaskView))
	}
	return out
}

// Task returns one task by id
func (m *Monitor) Task(id uint8) (TaskView, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.tasks.Get(int(id))
	if !ok {
		return TaskView{}, false
	}
	return v.(TaskView), true
}

// Sensors returns the last sensor report
func (m *Monitor) Sensors() Sensors {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sensors
}

// Actuators returns the last actuator report
func (m *Monitor) Actuators() Actuators {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.actuators
}

// Stats returns the frame counters
func (m *Monitor) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}
