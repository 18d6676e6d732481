package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type programCall struct {
	Prescaler uint32
	Compare   uint32
}

// mockTimer is a test implementation of TimerDriver
type mockTimer struct {
	limits   TimerConstraints
	programs []programCall
	running  bool
	stops    int
	fail     error
}

func newMockTimer() *mockTimer {
	return &mockTimer{limits: Timer16Constraints()}
}

func (m *mockTimer) Constraints() TimerConstraints { return m.limits }

func (m *mockTimer) Program(prescaler, compare uint32) error {
	if m.fail != nil {
		return m.fail
	}
	m.programs = append(m.programs, programCall{prescaler, compare})
	m.running = true
	return nil
}

func (m *mockTimer) Stop() {
	m.running = false
	m.stops++
}

func nop() {}

func TestRegisterProgramsTimer(t *testing.T) {
	timer := newMockTimer()
	s := NewScheduler(timer)
	assert.Equal(t, StateIdle, s.State())

	for _, period := range []uint32{1024, 2048, 4096} {
		_, err := s.Register(nop, period)
		require.NoError(t, err)
	}

	assert.Equal(t, StateRunning, s.State())
	assert.Equal(t, Rate{TickPeriod: 1024, Prescaler: 1024, Compare: 1}, s.Rate())
	assert.True(t, timer.running)
	assert.Equal(t, programCall{1024, 1}, timer.programs[len(timer.programs)-1])
	assert.Len(t, timer.programs, 3)

	tasks := s.Tasks(nil)
	require.Len(t, tasks, 3)
	assert.Equal(t, []TaskInfo{
		{ID: 0, Period: 1024, Ticks: 1, Countdown: 1},
		{ID: 1, Period: 2048, Ticks: 2, Countdown: 2},
		{ID: 2, Period: 4096, Ticks: 4, Countdown: 4},
	}, tasks)
}

func TestRegisterRenegotiatesFinerRate(t *testing.T) {
	timer := newMockTimer()
	s := NewScheduler(timer)

	_, err := s.Register(nop, 1000)
	require.NoError(t, err)
	assert.Equal(t, uint32(1000), s.Rate().TickPeriod)

	_, err = s.Register(nop, 1500)
	require.NoError(t, err)
	assert.Equal(t, Rate{TickPeriod: 500, Prescaler: 1, Compare: 500}, s.Rate())

	tasks := s.Tasks(nil)
	assert.Equal(t, uint32(2), tasks[0].Ticks)
	assert.Equal(t, uint32(3), tasks[1].Ticks)
}

func TestRegisterInvalid(t *testing.T) {
	timer := newMockTimer()
	s := NewScheduler(timer)

	_, err := s.Register(nil, 1000)
	assert.ErrorIs(t, err, ErrInvalidPeriod)

	_, err = s.Register(nop, 0)
	assert.ErrorIs(t, err, ErrInvalidPeriod)

	assert.Equal(t, 0, s.Len())
	assert.Empty(t, timer.programs)
}

func TestRegisterResolutionErrorRollsBack(t *testing.T) {
	timer := newMockTimer()
	s := NewScheduler(timer)

	_, err := s.Register(nop, 1000)
	require.NoError(t, err)
	_, err = s.Register(nop, 2000)
	require.NoError(t, err)
	s.Dispatch()

	before := s.Tasks(nil)
	rate := s.Rate()
	programs := len(timer.programs)

	// gcd drops to 1, so the 2000 cycle task would need 2000 ticks and the
	// new one 70001: beyond a 16-bit counter.
	_, err = s.Register(nop, 70001)
	assert.ErrorIs(t, err, ErrResolution)

	assert.Equal(t, before, s.Tasks(nil))
	assert.Equal(t, rate, s.Rate())
	assert.Len(t, timer.programs, programs)
	assert.Equal(t, StateRunning, s.State())
}

func TestRegisterCapacity(t *testing.T) {
	timer := newMockTimer()
	s := NewScheduler(timer)

	for i := 0; i < MaxTasks; i++ {
		id, err := s.Register(nop, uint32(1000*(i+1)))
		require.NoError(t, err)
		assert.Equal(t, TaskID(i), id)
	}

	// Move countdowns off their reset values.
	s.Dispatch()
	s.Dispatch()
	before := s.Tasks(nil)

	_, err := s.Register(nop, 1000)
	assert.ErrorIs(t, err, ErrResourceExhausted)
	assert.Equal(t, before, s.Tasks(nil))
	assert.Len(t, timer.programs, MaxTasks)
}

func TestRegisterDriverErrorRollsBack(t *testing.T) {
	timer := newMockTimer()
	s := NewScheduler(timer)

	_, err := s.Register(nop, 1024)
	require.NoError(t, err)
	s.Dispatch()
	before := s.Tasks(nil)

	timer.fail = ErrPrescaler
	_, err = s.Register(nop, 3000)
	assert.True(t, errors.Is(err, ErrPrescaler))

	assert.Equal(t, before, s.Tasks(nil))
	assert.Equal(t, Rate{TickPeriod: 1024, Prescaler: 1024, Compare: 1}, s.Rate())

	// The slot stays free for the next registration.
	timer.fail = nil
	id, err := s.Register(nop, 2048)
	require.NoError(t, err)
	assert.Equal(t, TaskID(1), id)
}

func TestRegisterResetsPhase(t *testing.T) {
	s := NewScheduler(newMockTimer())

	_, err := s.Register(nop, 4000)
	require.NoError(t, err)
	_, err = s.Register(nop, 1000)
	require.NoError(t, err)

	s.Dispatch()
	assert.Equal(t, uint32(3), s.Tasks(nil)[0].Countdown)

	_, err = s.Register(nop, 2000)
	require.NoError(t, err)
	for _, task := range s.Tasks(nil) {
		assert.Equal(t, task.Ticks, task.Countdown, "task %d not reset", task.ID)
	}
}

func TestDeregister(t *testing.T) {
	timer := newMockTimer()
	s := NewScheduler(timer)

	id, err := s.Register(nop, 1000)
	require.NoError(t, err)

	require.NoError(t, s.Deregister(id))
	assert.Equal(t, StateIdle, s.State())
	assert.False(t, timer.running)
	assert.Equal(t, 1, timer.stops)
	assert.Empty(t, s.Tasks(nil))

	// The last rate is kept while idle.
	assert.Equal(t, uint32(1000), s.Rate().TickPeriod)
}

func TestDeregisterUnknown(t *testing.T) {
	timer := newMockTimer()
	s := NewScheduler(timer)

	_, err := s.Register(nop, 1000)
	require.NoError(t, err)
	before := s.Tasks(nil)

	assert.ErrorIs(t, s.Deregister(5), ErrNotFound)
	assert.ErrorIs(t, s.Deregister(MaxTasks+3), ErrNotFound)

	assert.Equal(t, before, s.Tasks(nil))
	assert.Equal(t, StateRunning, s.State())
	assert.Zero(t, timer.stops)
}

func TestDeregisterKeepsRate(t *testing.T) {
	timer := newMockTimer()
	s := NewScheduler(timer)

	keep, err := s.Register(nop, 1000)
	require.NoError(t, err)
	drop, err := s.Register(nop, 1500)
	require.NoError(t, err)

	require.NoError(t, s.Deregister(drop))

	assert.Equal(t, uint32(500), s.Rate().TickPeriod)
	tasks := s.Tasks(nil)
	require.Len(t, tasks, 1)
	assert.Equal(t, keep, tasks[0].ID)
	assert.Equal(t, uint32(2), tasks[0].Ticks)
	assert.Len(t, timer.programs, 2)
}

func TestTaskIDReuse(t *testing.T) {
	s := NewScheduler(newMockTimer())

	a, _ := s.Register(nop, 1000)
	b, _ := s.Register(nop, 2000)
	c, _ := s.Register(nop, 3000)
	assert.Equal(t, []TaskID{0, 1, 2}, []TaskID{a, b, c})

	require.NoError(t, s.Deregister(b))
	d, err := s.Register(nop, 4000)
	require.NoError(t, err)
	assert.Equal(t, b, d)

	ids := map[TaskID]bool{}
	for _, task := range s.Tasks(nil) {
		assert.False(t, ids[task.ID], "duplicate id %d", task.ID)
		ids[task.ID] = true
	}
}

func TestIdleToRunningAgain(t *testing.T) {
	timer := newMockTimer()
	s := NewScheduler(timer)

	id, _ := s.Register(nop, 1500)
	require.NoError(t, s.Deregister(id))
	assert.Equal(t, StateIdle, s.State())

	_, err := s.Register(nop, 4096)
	require.NoError(t, err)
	assert.Equal(t, StateRunning, s.State())
	assert.Equal(t, Rate{TickPeriod: 4096, Prescaler: 1024, Compare: 4}, s.Rate())
	assert.True(t, timer.running)
}

func TestSchedulerStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "unknown", SchedulerState(9).String())
}
