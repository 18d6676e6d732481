package core

// SchedulerState tells whether the hardware timer is counting.
type SchedulerState uint8

const (
	StateIdle    SchedulerState = iota // no live tasks, timer stopped
	StateRunning                       // at least one task, timer programmed
)

func (s SchedulerState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	default:
		return "unknown"
	}
}

// Scheduler multiplexes periodic tasks onto one hardware timer interrupt.
// A device has exactly one, created at startup and passed to every module
// that needs periodic work.
//
// Register and Deregister run in foreground context. Dispatch runs in the
// timer interrupt. Every update of shared state happens with the timer
// interrupt masked.
type Scheduler struct {
	driver TimerDriver
	limits TimerConstraints

	tasks  taskTable
	rate   Rate
	state  SchedulerState
	uptime uint64 // base clock cycles dispatched since the first Register
	gen    uint32 // bumped on every table change
}

// NewScheduler creates an idle scheduler driving the given timer.
func NewScheduler(driver TimerDriver) *Scheduler {
	return &Scheduler{
		driver: driver,
		limits: driver.Constraints(),
	}
}

// Register adds a task calling fn every period base clock cycles.
//
// The timer rate is renegotiated over all live periods plus the new one;
// on success every task's tick count is rewritten, all countdowns restart
// and the timer is reprogrammed, all in one critical section. On error
// nothing changes: existing tasks keep running on the previous rate.
func (s *Scheduler) Register(fn TaskFunc, period uint32) (TaskID, error) {
	if fn == nil || period == 0 {
		return 0, ErrInvalidPeriod
	}

	var buf [MaxTasks]uint32
	for {
		// Snapshot the periods, then solve with interrupts enabled so the
		// divisor search never adds to dispatch latency.
		state := disableInterrupts()
		slot, ok := s.tasks.freeSlot()
		if !ok {
			RecordTiming(EvtTaskReject, 0xFF, s.clock(), period, uint32(MaxTasks))
			restoreInterrupts(state)
			return 0, ErrResourceExhausted
		}
		gen := s.gen
		periods := append(s.tasks.periods(buf[:0]), period)
		restoreInterrupts(state)

		rate, err := SolveRate(periods, s.limits)

		state = disableInterrupts()
		if gen != s.gen {
			// Table changed while solving; start over.
			restoreInterrupts(state)
			continue
		}
		if err != nil {
			RecordTiming(EvtTaskReject, 0xFF, s.clock(), period, 0)
			restoreInterrupts(state)
			DebugPrintln("[SCHED] period " + utoa(period) + " rejected: " + err.Error())
			return 0, err
		}
		id, err := s.commit(slot, fn, period, rate)
		restoreInterrupts(state)
		if err != nil {
			return 0, err
		}

		DebugPrintln("[SCHED] task " + utoa(uint32(id)) + " period=" + utoa(period) +
			" tick=" + utoa(rate.TickPeriod) + " prescaler=" + utoa(rate.Prescaler) +
			" compare=" + utoa(rate.Compare))
		return id, nil
	}
}

// commit inserts the task and reprograms the timer. Interrupts must be
// masked. A driver error restores the previous table.
func (s *Scheduler) commit(slot int, fn TaskFunc, period uint32, rate Rate) (TaskID, error) {
	prev := s.tasks

	s.tasks.insert(slot, fn, period)
	s.tasks.rescale(rate.TickPeriod)

	if err := s.driver.Program(rate.Prescaler, rate.Compare); err != nil {
		s.tasks = prev
		return 0, err
	}

	s.rate = rate
	s.state = StateRunning
	s.gen++

	RecordTiming(EvtTaskRegister, uint8(slot), s.clock(), period, rate.TickPeriod)
	RecordTiming(EvtTimerProgram, uint8(slot), s.clock(), rate.Prescaler, rate.Compare)
	return TaskID(slot), nil
}

// Deregister removes a task. The timer rate is not renegotiated, so the
// remaining tasks keep the (possibly finer than needed) current rate.
// Removing the last task stops the timer.
func (s *Scheduler) Deregister(id TaskID) error {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	if !s.tasks.remove(id) {
		return ErrNotFound
	}
	s.gen++
	RecordTiming(EvtTaskDeregister, uint8(id), s.clock(), uint32(s.tasks.n), 0)

	if s.tasks.n == 0 {
		s.state = StateIdle
		s.driver.Stop()
		RecordTiming(EvtSchedIdle, 0, s.clock(), 0, 0)
	}
	return nil
}

// State reports whether the timer is running.
func (s *Scheduler) State() SchedulerState {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	return s.state
}

// Rate returns the last successfully programmed timer configuration.
// It is kept after the scheduler goes idle.
func (s *Scheduler) Rate() Rate {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	return s.rate
}

// Len returns the number of live tasks.
func (s *Scheduler) Len() int {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	return s.tasks.n
}

// Tasks appends a consistent snapshot of all live tasks to dst, in id order.
func (s *Scheduler) Tasks(dst []TaskInfo) []TaskInfo {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	return s.tasks.info(dst)
}

// Uptime returns the base clock cycles covered by dispatched ticks.
func (s *Scheduler) Uptime() uint64 {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	return s.uptime
}

// clock is the low word of uptime for timing ring entries.
func (s *Scheduler) clock() uint32 {
	return uint32(s.uptime)
}
