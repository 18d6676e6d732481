package appliance

import (
	"bytes"
	"errors"
	"sync"

	"tickmux/core"
	"tickmux/protocol"
)

var (
	errBadPin = errors.New("bad pin")
	errADC    = errors.New("adc busy")
	errUART   = errors.New("uart overrun")
)

// mockGPIO records pin modes and levels
type mockGPIO struct {
	mu      sync.Mutex
	outputs map[core.GPIOPin]bool
	inputs  map[core.GPIOPin]bool
	levels  map[core.GPIOPin]bool
	writes  int
}

func newMockGPIO() *mockGPIO {
	return &mockGPIO{
		outputs: make(map[core.GPIOPin]bool),
		inputs:  make(map[core.GPIOPin]bool),
		levels:  make(map[core.GPIOPin]bool),
	}
}

func (g *mockGPIO) ConfigureOutput(pin core.GPIOPin) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if pin == 0xFF {
		return errBadPin
	}
	g.outputs[pin] = true
	return nil
}

func (g *mockGPIO) ConfigureInputPullUp(pin core.GPIOPin) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.inputs[pin] = true
	g.levels[pin] = true
	return nil
}

func (g *mockGPIO) SetPin(pin core.GPIOPin, value bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.levels[pin] = value
	g.writes++
	return nil
}

func (g *mockGPIO) GetPin(pin core.GPIOPin) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.levels[pin], nil
}

func (g *mockGPIO) level(pin core.GPIOPin) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.levels[pin]
}

// drive sets an input pin level as the outside world would
func (g *mockGPIO) drive(pin core.GPIOPin, level bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.levels[pin] = level
}

// mockADC returns a fixed value per channel. A channel listed in
// failEvery fails every nth read.
type mockADC struct {
	mu         sync.Mutex
	configured map[core.ADCChannel]bool
	values     map[core.ADCChannel]core.ADCValue
	failEvery  map[core.ADCChannel]int
	chReads    map[core.ADCChannel]int
	reads      int
}

func newMockADC() *mockADC {
	return &mockADC{
		configured: make(map[core.ADCChannel]bool),
		values:     make(map[core.ADCChannel]core.ADCValue),
		failEvery:  make(map[core.ADCChannel]int),
		chReads:    make(map[core.ADCChannel]int),
	}
}

func (a *mockADC) ConfigureChannel(ch core.ADCChannel) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.configured[ch] = true
	return nil
}

func (a *mockADC) ReadRaw(ch core.ADCChannel) (core.ADCValue, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reads++
	a.chReads[ch]++
	if n := a.failEvery[ch]; n > 0 && a.chReads[ch]%n == 0 {
		return 0, errADC
	}
	return a.values[ch], nil
}

func (a *mockADC) fail(ch core.ADCChannel, every int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failEvery[ch] = every
}

func (a *mockADC) set(ch core.ADCChannel, high8 uint8) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.values[ch] = core.ADCValue(high8) << 8
}

// flakyWriter fails the next fail writes
type flakyWriter struct {
	bytes.Buffer
	fail int
}

func (w *flakyWriter) Write(p []byte) (int, error) {
	if w.fail > 0 {
		w.fail--
		return 0, errUART
	}
	return w.Buffer.Write(p)
}

// mockShift records every latched pattern
type mockShift struct {
	masks []uint32
}

func (s *mockShift) WriteMask(mask uint32) {
	s.masks = append(s.masks, mask)
}

// mockTimer accepts every programming request
type mockTimer struct {
	prescaler, compare uint32
	running            bool
}

func (m *mockTimer) Constraints() core.TimerConstraints { return core.Timer16Constraints() }

func (m *mockTimer) Program(prescaler, compare uint32) error {
	m.prescaler, m.compare, m.running = prescaler, compare, true
	return nil
}

func (m *mockTimer) Stop() { m.running = false }

var testPins = Pins{
	Fan: 1, Compressor: 2, Key: 3, Dis0: 4, Dis1: 5, ExciP: 6, ExciM: 7,
	Ambient: 3, Coil: 1, Humidity: 2,
}

// decodeFrames parses every frame written to buf
func decodeFrames(buf *bytes.Buffer) []protocol.Message {
	var msgs []protocol.Message
	in := protocol.NewSliceInputBuffer(buf.Bytes())
	protocol.NewDecoder().Decode(in, func(m protocol.Message) {
		msgs = append(msgs, m)
	})
	buf.Reset()
	return msgs
}

func messageIDs(msgs []protocol.Message) []uint32 {
	ids := make([]uint32, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}
	return ids
}

func decodeArgs(m protocol.Message) []uint32 {
	var out []uint32
	data := m.Args
	for len(data) > 0 {
		v, err := protocol.DecodeVLQUint(&data)
		if err != nil {
			break
		}
		out = append(out, v)
	}
	return out
}
