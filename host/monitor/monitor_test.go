package monitor

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickmux/host/logging"
	"tickmux/protocol"
)

// frames encodes messages the way the controller does
type frames struct {
	out *protocol.ScratchOutput
	enc *protocol.Encoder
}

func newFrames() *frames {
	out := protocol.NewScratchOutput()
	return &frames{out: out, enc: protocol.NewEncoder(out)}
}

func (f *frames) send(id uint32, args ...uint32) {
	f.enc.SendMessage(id, func(o protocol.OutputBuffer) {
		for _, a := range args {
			protocol.EncodeVLQUint(o, a)
		}
	})
}

func (f *frames) bytes() []byte {
	b := append([]byte(nil), f.out.Result()...)
	f.out.Reset()
	return b
}

func newTestMonitor(logBuf *bytes.Buffer) *Monitor {
	log := zerolog.New(logBuf).Level(zerolog.DebugLevel)
	return New(log, logging.NewThrottle(100, 100), 256)
}

func TestMonitorStatusReport(t *testing.T) {
	var logBuf bytes.Buffer
	m := newTestMonitor(&logBuf)

	f := newFrames()
	f.send(protocol.MsgSchedulerState, 5000, 8, 625, 1, 3)
	f.send(protocol.MsgTaskState, 2, 5000, 1, 1)
	f.send(protocol.MsgTaskState, 0, 1000000, 200, 17)
	f.send(protocol.MsgTaskState, 1, 20000, 4, 3)
	m.Feed(f.bytes())

	assert.Equal(t, SchedulerView{TickPeriod: 5000, Prescaler: 8, Compare: 625, Running: true, Tasks: 3}, m.Scheduler())
	tasks := m.Tasks()
	require.Len(t, tasks, 3)
	for i, task := range tasks {
		assert.Equal(t, uint8(i), task.ID, "ordered by id")
	}
	assert.Equal(t, TaskView{ID: 0, Period: 1000000, Ticks: 200, Countdown: 17}, tasks[0])
	assert.Equal(t, uint64(4), m.Stats().Frames)

	// A new report replaces the task list
	f.send(protocol.MsgSchedulerState, 5000, 8, 625, 1, 1)
	f.send(protocol.MsgTaskState, 1, 20000, 4, 4)
	m.Feed(f.bytes())
	tasks = m.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, uint8(1), tasks[0].ID)
}

func TestMonitorTaskEvents(t *testing.T) {
	var logBuf bytes.Buffer
	m := newTestMonitor(&logBuf)

	f := newFrames()
	f.send(protocol.MsgTaskEvent, protocol.TaskEventRegistered, 0, 1000000, protocol.CodeOK)
	f.send(protocol.MsgTaskEvent, protocol.TaskEventRegistered, 1, 20000, protocol.CodeOK)
	f.send(protocol.MsgTaskEvent, protocol.TaskEventRejected, 0xFF, 4999, protocol.CodeResolution)
	f.send(protocol.MsgTaskEvent, protocol.TaskEventDeregistered, 0, 0, protocol.CodeOK)
	m.Feed(f.bytes())

	tasks := m.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, TaskView{ID: 1, Period: 20000}, tasks[0])
	_, ok := m.Task(0)
	assert.False(t, ok)
	assert.Equal(t, uint64(1), m.Stats().Rejected)
	assert.Contains(t, logBuf.String(), "no timer resolution")
}

func TestMonitorSensorsAndActuators(t *testing.T) {
	var logBuf bytes.Buffer
	m := newTestMonitor(&logBuf)

	f := newFrames()
	f.send(protocol.MsgSensors, 24, 29, 16256, 12750)
	f.send(protocol.MsgActuators, 1, 0)
	m.Feed(f.bytes())

	s := m.Sensors()
	assert.Equal(t, uint32(24), s.Ambient)
	assert.Equal(t, uint32(29), s.Coil)
	assert.Equal(t, uint32(16256), s.HumidityMS)
	assert.InDelta(t, 127.5, s.HumidityRMS, 1e-9)
	assert.Equal(t, Actuators{Fan: true}, m.Actuators())
}

func TestMonitorText(t *testing.T) {
	var logBuf bytes.Buffer
	m := newTestMonitor(&logBuf)

	var got []string
	m.OnText(func(s string) { got = append(got, s) })

	f := newFrames()
	f.enc.SendText("panel disabled")
	m.Feed(f.bytes())
	assert.Equal(t, []string{"panel disabled"}, got)
}

func TestMonitorSplitFeed(t *testing.T) {
	var logBuf bytes.Buffer
	m := newTestMonitor(&logBuf)

	f := newFrames()
	for i := 0; i < 20; i++ {
		f.send(protocol.MsgActuators, uint32(i&1), 0)
	}
	data := f.bytes()
	for len(data) > 0 {
		n := 3
		if n > len(data) {
			n = len(data)
		}
		m.Feed(data[:n])
		data = data[n:]
	}
	assert.Equal(t, uint64(20), m.Stats().Frames)
	assert.Zero(t, m.Stats().Dropped)
	assert.Zero(t, m.Stats().Lost)
}

func TestMonitorCorruptFrame(t *testing.T) {
	var logBuf bytes.Buffer
	m := newTestMonitor(&logBuf)

	f := newFrames()
	f.send(protocol.MsgActuators, 1, 1)
	bad := f.bytes()
	bad[2] ^= 0x01 // payload bit flip, CRC mismatch
	f.send(protocol.MsgActuators, 0, 1)
	good := f.bytes()

	m.Feed(append(bad, good...))
	stats := m.Stats()
	assert.Equal(t, 1, stats.Dropped)
	assert.Equal(t, uint64(1), stats.Frames)
	assert.Equal(t, Actuators{Compressor: true}, m.Actuators())
	assert.Contains(t, logBuf.String(), "corrupt or missing frames")
}

func TestMonitorBadArgs(t *testing.T) {
	var logBuf bytes.Buffer
	m := newTestMonitor(&logBuf)

	f := newFrames()
	f.send(protocol.MsgSensors, 24) // truncated
	f.send(42)
	m.Feed(f.bytes())

	assert.Equal(t, uint64(2), m.Stats().BadArgs)
	assert.Contains(t, logBuf.String(), "undecodable frame")
}

func TestMonitorRun(t *testing.T) {
	var logBuf bytes.Buffer
	m := newTestMonitor(&logBuf)

	f := newFrames()
	f.send(protocol.MsgActuators, 1, 1)

	r, w := io.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- m.Run(ctx, r) }()

	_, err := w.Write(f.bytes())
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return m.Actuators() == Actuators{Fan: true, Compressor: true}
	}, time.Second, 5*time.Millisecond)

	w.CloseWithError(io.ErrClosedPipe)
	select {
	case err := <-done:
		assert.ErrorIs(t, err, io.ErrClosedPipe)
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}

func TestSendCommand(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, SendCommand(&buf, 'f'))
	assert.Equal(t, []byte{'f'}, buf.Bytes())
}

func TestCodeName(t *testing.T) {
	assert.Equal(t, "ok", CodeName(protocol.CodeOK))
	assert.Equal(t, "resource exhausted", CodeName(protocol.CodeResourceExhausted))
	assert.Equal(t, "not found", CodeName(protocol.CodeNotFound))
	assert.Equal(t, "error", CodeName(99))
}
