// Command tickmux-host connects to the controller UART, logs its telemetry
// and forwards console commands.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/google/shlex"
	"github.com/rs/zerolog"

	"tickmux/host/config"
	"tickmux/host/logging"
	"tickmux/host/monitor"
	"tickmux/host/serial"
)

var (
	configPath = flag.String("config", "tickmux.yaml", "YAML configuration file")
	device     = flag.String("device", "", "Serial device path (overrides config)")
	baud       = flag.Int("baud", 0, "Baud rate (overrides config)")
	logLevel   = flag.String("log-level", "", "Log level (overrides config)")
	writeCfg   = flag.Bool("write-config", false, "Write the effective configuration and exit")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *device != "" {
		cfg.Serial.Device = *device
	}
	if *baud > 0 {
		cfg.Serial.Baud = *baud
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *writeCfg {
		if err := cfg.Save(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	log := logging.New(cfg.Log, os.Stderr)

	port, err := serial.Open(&cfg.Serial)
	if err != nil {
		log.Error().Err(err).Msg("connect failed")
		os.Exit(1)
	}
	defer port.Close()
	log.Info().Str("device", cfg.Serial.Device).Int("baud", cfg.Serial.Baud).Msg("connected")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	mon := monitor.New(log, logging.NewThrottle(cfg.Log.WarnPerSec, cfg.Log.WarnBurst), cfg.Monitor.ReadBuffer)
	go func() {
		if err := mon.Run(ctx, port); err != nil {
			log.Error().Err(err).Msg("serial read failed")
			stop()
		}
	}()
	if cfg.Monitor.StatusInterval > 0 {
		go requestStatus(ctx, port, cfg.Monitor.StatusInterval, log)
	}

	sh := &shell{port: port, mon: mon, out: os.Stdout}
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	fmt.Println("Enter commands (type 'help' for available commands, 'quit' to exit):")
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if quit := sh.exec(line); quit {
				return
			}
		}
	}
}

func requestStatus(ctx context.Context, w io.Writer, every time.Duration, log zerolog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := monitor.SendCommand(w, 's'); err != nil {
				log.Warn().Err(err).Msg("status request failed")
			}
		}
	}
}

// shell runs interactive commands against the controller
type shell struct {
	port io.Writer
	mon  *monitor.Monitor
	out  io.Writer
}

// consoleKeys maps shell commands to controller console keys
var consoleKeys = map[string]byte{
	"fan":        'f',
	"compressor": 'c',
	"comp":       'c',
	"status":     's',
	"dump":       'd',
	"keys":       'h',
}

// exec runs one input line and reports whether the shell should exit
func (s *shell) exec(line string) bool {
	args, err := shlex.Split(line)
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return false
	}
	if len(args) == 0 {
		return false
	}

	cmd := args[0]
	if key, ok := consoleKeys[cmd]; ok {
		if err := monitor.SendCommand(s.port, key); err != nil {
			fmt.Fprintf(s.out, "Error: %v\n", err)
		}
		return false
	}

	switch cmd {
	case "quit", "exit", "q":
		return true
	case "help", "?":
		s.printHelp()
	case "key":
		// Raw console keys, e.g. key "fc"
		if len(args) != 2 || args[1] == "" {
			fmt.Fprintln(s.out, "usage: key <chars>")
			return false
		}
		for i := 0; i < len(args[1]); i++ {
			if err := monitor.SendCommand(s.port, args[1][i]); err != nil {
				fmt.Fprintf(s.out, "Error: %v\n", err)
				return false
			}
		}
	case "tasks":
		s.printTasks()
	case "sensors":
		sensors := s.mon.Sensors()
		act := s.mon.Actuators()
		fmt.Fprintf(s.out, "ambient=%d°C coil=%d°C humidity_ms=%d humidity_rms=%.2f fan=%v compressor=%v\n",
			sensors.Ambient, sensors.Coil, sensors.HumidityMS, sensors.HumidityRMS, act.Fan, act.Compressor)
	case "stats":
		st := s.mon.Stats()
		fmt.Fprintf(s.out, "frames=%d dropped=%d lost=%d bad=%d rejected=%d\n",
			st.Frames, st.Dropped, st.Lost, st.BadArgs, st.Rejected)
	default:
		fmt.Fprintf(s.out, "Unknown command: %s (type 'help' for available commands)\n", cmd)
	}
	return false
}

func (s *shell) printTasks() {
	sched := s.mon.Scheduler()
	state := "idle"
	if sched.Running {
		state = "running"
	}
	fmt.Fprintf(s.out, "scheduler %s: tick=%d prescaler=%d compare=%d tasks=%d\n",
		state, sched.TickPeriod, sched.Prescaler, sched.Compare, sched.Tasks)
	for _, t := range s.mon.Tasks() {
		fmt.Fprintf(s.out, "  [%d] period=%-8d ticks=%-6d countdown=%d\n", t.ID, t.Period, t.Ticks, t.Countdown)
	}
}

func (s *shell) printHelp() {
	fmt.Fprintln(s.out, "\nAvailable commands:")
	fmt.Fprintln(s.out, "  fan            - Toggle the fan")
	fmt.Fprintln(s.out, "  compressor     - Toggle the compressor")
	fmt.Fprintln(s.out, "  status         - Request a scheduler status report")
	fmt.Fprintln(s.out, "  dump           - Dump the controller timing ring")
	fmt.Fprintln(s.out, "  keys           - Ask the controller for its key bindings")
	fmt.Fprintln(s.out, "  key <chars>    - Send raw console keys")
	fmt.Fprintln(s.out, "  tasks          - Show the last known scheduler and tasks")
	fmt.Fprintln(s.out, "  sensors        - Show the last sensor and actuator report")
	fmt.Fprintln(s.out, "  stats          - Show frame counters")
	fmt.Fprintln(s.out, "  quit/exit/q    - Exit the program")
	fmt.Fprintln(s.out)
}
