// Command tickmux-sim runs the controller firmware against simulated
// hardware and decodes its telemetry with the host monitor.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"tickmux/host/config"
	"tickmux/host/logging"
	"tickmux/host/monitor"
	"tickmux/host/sim"
)

var (
	configPath = flag.String("config", "tickmux.yaml", "YAML configuration file")
	scale      = flag.Float64("scale", 0, "Time scale (overrides config, >1 is faster than real time)")
	duration   = flag.Duration("duration", 0, "Simulated run time in wall clock (overrides config, 0 = until interrupted)")
	keys       = flag.String("keys", "", "Console keys to send after start, e.g. \"fcs\"")
	logLevel   = flag.String("log-level", "", "Log level (overrides config)")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *scale > 0 {
		cfg.Sim.TimeScale = *scale
	}
	if *duration > 0 {
		cfg.Sim.Duration = *duration
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	log := logging.New(cfg.Log, os.Stderr)
	if err := run(cfg, log, *keys, os.Stdout); err != nil {
		log.Error().Err(err).Msg("simulation failed")
		os.Exit(1)
	}
}

func run(cfg *config.Config, log zerolog.Logger, keys string, out io.Writer) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if cfg.Sim.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Sim.Duration)
		defer cancel()
	}

	dev, err := sim.NewDevice(cfg.Sim, nil)
	if err != nil {
		return fmt.Errorf("build device: %w", err)
	}

	mon := monitor.New(log, logging.NewThrottle(cfg.Log.WarnPerSec, cfg.Log.WarnBurst), cfg.Monitor.ReadBuffer)
	host := dev.Link.Host()

	log.Info().
		Uint32("clock_hz", cfg.Sim.ClockHz).
		Float64("scale", cfg.Sim.TimeScale).
		Dur("duration", cfg.Sim.Duration).
		Msg("simulation started")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return dev.Run(gctx)
	})
	g.Go(func() error {
		return mon.Run(gctx, host)
	})
	g.Go(func() error {
		for i := 0; i < len(keys); i++ {
			if err := monitor.SendCommand(host, keys[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if cfg.Monitor.StatusInterval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(cfg.Monitor.StatusInterval)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					if err := monitor.SendCommand(host, 's'); err != nil {
						return err
					}
				}
			}
		})
	}

	// The monitor only returns once the link is closed
	go func() {
		<-gctx.Done()
		dev.Link.Close()
	}()
	err = g.Wait()
	dev.Close()

	printSummary(out, dev, mon)
	return err
}

func printSummary(out io.Writer, dev *sim.Device, mon *monitor.Monitor) {
	s := mon.Scheduler()
	fmt.Fprintln(out, "\n=== Simulation Summary ===")
	fmt.Fprintf(out, "Timer ticks: %d\n", dev.Timer.Ticks())
	fmt.Fprintf(out, "Last rate:   tick=%d prescaler=%d compare=%d\n", s.TickPeriod, s.Prescaler, s.Compare)
	fmt.Fprintln(out, "Timer programming:")
	for _, p := range dev.Timer.History() {
		fmt.Fprintf(out, "  prescaler=%-5d compare=%-6d interval=%v\n", p.Prescaler, p.Compare, p.Interval)
	}

	sensors := mon.Sensors()
	act := mon.Actuators()
	fmt.Fprintf(out, "Sensors:     ambient=%d°C coil=%d°C humidity_rms=%.2f\n",
		sensors.Ambient, sensors.Coil, sensors.HumidityRMS)
	fmt.Fprintf(out, "Actuators:   fan=%v compressor=%v\n", act.Fan, act.Compressor)

	stats := mon.Stats()
	fmt.Fprintf(out, "Frames:      %d (dropped %d, lost %d, rejected tasks %d)\n",
		stats.Frames, stats.Dropped, stats.Lost, stats.Rejected)
}
