// Command tickmux-solve prints the timer rate the scheduler would pick for
// a set of task periods.
//
//	tickmux-solve -clock 1000000 5ms 20ms 1s
//	tickmux-solve -prescalers 1,8,32,64,128,256,1024 -max-ticks 255 1000 1500
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"tickmux/core"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("tickmux-solve", flag.ContinueOnError)
	fs.SetOutput(out)
	clock := fs.Uint("clock", core.DefaultClockFreq, "Base clock in Hz (for us/ms/s periods)")
	prescalers := fs.String("prescalers", "1,8,64,256,1024", "Comma separated prescaler set")
	maxTicks := fs.Uint("max-ticks", 65535, "Largest compare value and tick count")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("no periods given")
	}

	limits := core.TimerConstraints{MaxTicks: uint32(*maxTicks)}
	for _, s := range strings.Split(*prescalers, ",") {
		p, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
		if err != nil {
			return fmt.Errorf("bad prescaler %q: %w", s, err)
		}
		limits.Prescalers = append(limits.Prescalers, uint32(p))
	}

	periods := make([]uint32, 0, fs.NArg())
	for _, arg := range fs.Args() {
		p, err := parsePeriod(arg, uint32(*clock))
		if err != nil {
			return err
		}
		periods = append(periods, p)
	}

	rate, err := core.SolveRate(periods, limits)
	if err != nil {
		return fmt.Errorf("periods %v: %w", periods, err)
	}

	fmt.Fprintf(out, "tick period: %d cycles\n", rate.TickPeriod)
	fmt.Fprintf(out, "prescaler:   %d\n", rate.Prescaler)
	fmt.Fprintf(out, "compare:     %d\n", rate.Compare)
	for _, p := range periods {
		fmt.Fprintf(out, "  period %10d -> %5d ticks\n", p, rate.Ticks(p))
	}
	return nil
}

// parsePeriod accepts base clock cycles or a duration with a us, ms or s
// suffix converted at clock Hz
func parsePeriod(s string, clock uint32) (uint32, error) {
	unit := uint64(0)
	num := s
	switch {
	case strings.HasSuffix(s, "us"):
		unit, num = 1000000, strings.TrimSuffix(s, "us")
	case strings.HasSuffix(s, "ms"):
		unit, num = 1000, strings.TrimSuffix(s, "ms")
	case strings.HasSuffix(s, "s"):
		unit, num = 1, strings.TrimSuffix(s, "s")
	}

	v, err := strconv.ParseUint(num, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("bad period %q: %w", s, err)
	}
	if unit == 0 {
		return uint32(v), nil
	}
	cycles := v * uint64(clock)
	if cycles%unit != 0 {
		return 0, fmt.Errorf("period %q is not a whole number of cycles at %d Hz", s, clock)
	}
	cycles /= unit
	if cycles > 0xFFFFFFFF {
		return 0, fmt.Errorf("period %q overflows 32 bits", s)
	}
	return uint32(cycles), nil
}
