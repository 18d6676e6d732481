package sim

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickmux/core"
)

func TestTimerInterval(t *testing.T) {
	tm := NewTimer(1000000, 1)
	assert.Equal(t, time.Millisecond, tm.Interval(8, 125))
	assert.Equal(t, 65535*1024*time.Microsecond, tm.Interval(1024, 65535))

	fast := NewTimer(1000000, 10)
	assert.Equal(t, 100*time.Microsecond, fast.Interval(8, 125))
	assert.Equal(t, MinInterval, fast.Interval(1, 1))
}

func TestTimerProgramValidates(t *testing.T) {
	tm := NewTimer(1000000, 1)
	assert.Error(t, tm.Program(8, 125), "no handler")

	tm.Attach(func() {})
	assert.ErrorIs(t, tm.Program(3, 125), core.ErrPrescaler)
	assert.ErrorIs(t, tm.Program(8, 0), core.ErrResolution)
	assert.ErrorIs(t, tm.Program(8, 70000), core.ErrResolution)
	assert.Empty(t, tm.History())
	assert.False(t, tm.Running())
}

func TestTimerFiresAndStops(t *testing.T) {
	var n atomic.Int64
	tm := NewTimer(1000000, 1)
	tm.Attach(func() { n.Add(1) })
	defer tm.Close()

	require.NoError(t, tm.Program(8, 125))
	assert.True(t, tm.Running())
	require.Eventually(t, func() bool { return n.Load() >= 5 }, 2*time.Second, time.Millisecond)

	tm.Stop()
	assert.False(t, tm.Running())
	time.Sleep(5 * time.Millisecond)
	stopped := n.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stopped, n.Load())
	assert.Equal(t, uint64(stopped), tm.Ticks())

	assert.Equal(t, []Programming{{Prescaler: 8, Compare: 125, Interval: time.Millisecond}}, tm.History())
}

func TestTimerDrivesScheduler(t *testing.T) {
	tm := NewTimer(1000000, 1)
	s := core.NewScheduler(tm)
	tm.Attach(s.Dispatch)
	defer tm.Close()

	var fired atomic.Int64
	_, err := s.Register(func() { fired.Add(1) }, 2000)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return fired.Load() >= 3 }, 2*time.Second, time.Millisecond)

	// Reprogramming from under the interrupt lock must not deadlock
	_, err = s.Register(func() {}, 3000)
	require.NoError(t, err)
	assert.Equal(t, core.Rate{TickPeriod: 1000, Prescaler: 8, Compare: 125}, s.Rate())
	assert.Len(t, tm.History(), 2)
}
