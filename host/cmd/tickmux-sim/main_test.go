package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickmux/host/config"
)

func TestRunSummary(t *testing.T) {
	cfg := config.Default()
	cfg.Sim.TimeScale = 100
	cfg.Sim.Duration = 500 * time.Millisecond
	cfg.Monitor.StatusInterval = 50 * time.Millisecond

	var out bytes.Buffer
	require.NoError(t, run(cfg, zerolog.Nop(), "f", &out))

	summary := out.String()
	assert.Contains(t, summary, "=== Simulation Summary ===")
	assert.Contains(t, summary, "prescaler=8")
	assert.Contains(t, summary, "fan=true")
	assert.Contains(t, summary, "ambient=24°C")
}
