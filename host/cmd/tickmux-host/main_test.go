package main

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"tickmux/host/monitor"
	"tickmux/protocol"
)

func newTestShell() (*shell, *bytes.Buffer, *bytes.Buffer) {
	var port, out bytes.Buffer
	mon := monitor.New(zerolog.Nop(), nil, 256)
	return &shell{port: &port, mon: mon, out: &out}, &port, &out
}

func TestShellConsoleKeys(t *testing.T) {
	s, port, _ := newTestShell()
	for _, line := range []string{"fan", "comp", "status", "dump", "keys", `key "cf"`} {
		assert.False(t, s.exec(line), line)
	}
	assert.Equal(t, "fcsdhcf", port.String())
}

func TestShellQuitAndErrors(t *testing.T) {
	s, port, out := newTestShell()
	assert.True(t, s.exec("quit"))
	assert.False(t, s.exec(""))
	assert.False(t, s.exec("bogus"))
	assert.Contains(t, out.String(), "Unknown command: bogus")
	assert.False(t, s.exec(`key "unterminated`))
	assert.Contains(t, out.String(), "Error:")
	assert.False(t, s.exec("key"))
	assert.Contains(t, out.String(), "usage: key")
	assert.Zero(t, port.Len())
}

func TestShellTasks(t *testing.T) {
	s, _, out := newTestShell()

	scratch := protocol.NewScratchOutput()
	enc := protocol.NewEncoder(scratch)
	send := func(id uint32, args ...uint32) {
		enc.SendMessage(id, func(o protocol.OutputBuffer) {
			for _, a := range args {
				protocol.EncodeVLQUint(o, a)
			}
		})
	}
	send(protocol.MsgSchedulerState, 5000, 8, 625, 1, 1)
	send(protocol.MsgTaskState, 0, 1000000, 200, 12)
	s.mon.Feed(scratch.Result())

	s.exec("tasks")
	assert.Contains(t, out.String(), "scheduler running: tick=5000 prescaler=8 compare=625 tasks=1")
	assert.Contains(t, out.String(), "[0] period=1000000")

	s.exec("help")
	assert.Contains(t, out.String(), "Available commands")
}
