package core

// Dispatch is the timer interrupt handler. The target calls it once per
// compare match; every live task's countdown is decremented and due
// callbacks run synchronously, in slot order.
//
// A callback that runs longer than a tick delays the following dispatches;
// it never shifts another task's countdown.
func (s *Scheduler) Dispatch() {
	state := enterInterrupt()
	defer exitInterrupt(state)

	if s.state != StateRunning {
		return
	}
	s.uptime += uint64(s.rate.TickPeriod)

	for i := range s.tasks.slots {
		t := &s.tasks.slots[i]
		if !t.live {
			continue
		}
		t.Countdown--
		if t.Countdown == 0 {
			t.fn()
			t.Countdown = t.Ticks
			RecordTiming(EvtTaskFire, uint8(t.ID), uint32(s.uptime), t.Period, t.Ticks)
		}
	}
}
