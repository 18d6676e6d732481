// Package logging builds the zerolog loggers used by the host tools.
package logging

import (
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"tickmux/host/config"
)

const consoleTimeFormat = "15:04:05.000"

// ParseLevel maps a level name to a zerolog level, falling back to def
func ParseLevel(s string, def zerolog.Level) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || s == "" {
		return def
	}
	return lvl
}

// New builds a logger writing to w (stderr when nil). Console mode renders
// key=value lines, otherwise one JSON object per event.
func New(cfg config.LogConfig, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	if cfg.Console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: consoleTimeFormat}
	}
	lvl := ParseLevel(cfg.Level, zerolog.InfoLevel)
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// Throttle rate limits a repeating log event, e.g. corrupt frames on a
// noisy line, and counts what it drops.
type Throttle struct {
	limiter    *rate.Limiter
	suppressed atomic.Uint64
}

// NewThrottle allows perSec events per second with bursts of burst
func NewThrottle(perSec float64, burst int) *Throttle {
	if burst < 1 {
		burst = 1
	}
	return &Throttle{limiter: rate.NewLimiter(rate.Limit(perSec), burst)}
}

// Allow reports whether the event may be logged now
func (t *Throttle) Allow() bool {
	if t.limiter.Allow() {
		return true
	}
	t.suppressed.Add(1)
	return false
}

// Suppressed returns and resets the number of dropped events
func (t *Throttle) Suppressed() uint64 {
	return t.suppressed.Swap(0)
}
