package sim

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"tickmux/core"
)

var errNotConfigured = errors.New("sim: pin not configured")

type pinMode uint8

const (
	modeNone pinMode = iota
	modeOutput
	modeInputPullUp
)

type pinState struct {
	mode  pinMode
	level bool
	edges uint64
}

// GPIO is a simulated port. Outputs keep the written level; inputs read
// the level set with Drive, high by default (pull-up).
type GPIO struct {
	mu   sync.Mutex
	pins map[core.GPIOPin]*pinState
}

func NewGPIO() *GPIO {
	return &GPIO{pins: make(map[core.GPIOPin]*pinState)}
}

func (g *GPIO) pin(p core.GPIOPin) *pinState {
	s, ok := g.pins[p]
	if !ok {
		s = &pinState{}
		g.pins[p] = s
	}
	return s
}

func (g *GPIO) ConfigureOutput(p core.GPIOPin) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pin(p).mode = modeOutput
	return nil
}

func (g *GPIO) ConfigureInputPullUp(p core.GPIOPin) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := g.pin(p)
	s.mode = modeInputPullUp
	s.level = true
	return nil
}

func (g *GPIO) SetPin(p core.GPIOPin, value bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := g.pin(p)
	if s.mode != modeOutput {
		return fmt.Errorf("set pin %d: %w", p, errNotConfigured)
	}
	if s.level != value {
		s.edges++
	}
	s.level = value
	return nil
}

func (g *GPIO) GetPin(p core.GPIOPin) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.pins[p]
	if !ok || s.mode == modeNone {
		return false, fmt.Errorf("get pin %d: %w", p, errNotConfigured)
	}
	return s.level, nil
}

// Drive sets the external level of an input pin
func (g *GPIO) Drive(p core.GPIOPin, level bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pin(p).level = level
}

// Level returns the current level of a pin
func (g *GPIO) Level(p core.GPIOPin) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pin(p).level
}

// Edges returns how often an output changed level
func (g *GPIO) Edges(p core.GPIOPin) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pin(p).edges
}

// Source produces an 8-bit reading for one conversion
type Source func() uint8

// ADC is a simulated converter with one Source per channel
type ADC struct {
	mu      sync.Mutex
	sources map[core.ADCChannel]Source
	reads   uint64
}

func NewADC() *ADC {
	return &ADC{sources: make(map[core.ADCChannel]Source)}
}

func (a *ADC) ConfigureChannel(ch core.ADCChannel) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.sources[ch]; !ok {
		a.sources[ch] = Constant(0)
	}
	return nil
}

// ReadRaw returns the source value left aligned, like ADLAR on the AVR
func (a *ADC) ReadRaw(ch core.ADCChannel) (core.ADCValue, error) {
	a.mu.Lock()
	src, ok := a.sources[ch]
	a.reads++
	a.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("adc channel %d: %w", ch, errNotConfigured)
	}
	return core.ADCValue(src()) << 8, nil
}

// SetSource replaces the signal on ch
func (a *ADC) SetSource(ch core.ADCChannel, src Source) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sources[ch] = src
}

// Reads returns the number of conversions
func (a *ADC) Reads() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.reads
}

// Constant is a Source returning v
func Constant(v uint8) Source {
	return func() uint8 { return v }
}

// ACDivider models the humidity sensor divider under AC excitation: the
// reading is level while exciP is high and mirrored otherwise.
func ACDivider(g *GPIO, exciP core.GPIOPin, level func() uint8) Source {
	return func() uint8 {
		if g.Level(exciP) {
			return level()
		}
		return 255 - level()
	}
}

// Shift is a simulated shift register that keeps the last latched pattern
type Shift struct {
	last   atomic.Uint32
	writes atomic.Uint64
}

func (s *Shift) WriteMask(mask uint32) {
	s.last.Store(mask)
	s.writes.Add(1)
}

// Last returns the last latched pattern
func (s *Shift) Last() uint32 {
	return s.last.Load()
}

// Writes returns the number of latched patterns
func (s *Shift) Writes() uint64 {
	return s.writes.Load()
}
