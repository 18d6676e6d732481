package core

// MaxTasks is the fixed capacity of the task table.
const MaxTasks = 8

// TaskID identifies a registered task. IDs are slot indexes and are reused
// after deregistration.
type TaskID uint8

// TaskFunc is a periodic callback. It runs in interrupt context and must be
// short and non-blocking.
type TaskFunc func()

// Task is one slot of the task table.
type Task struct {
	ID        TaskID
	Period    uint32 // requested period in base clock cycles
	Ticks     uint32 // Period / tick period
	Countdown uint32 // ticks left until the next call

	fn   TaskFunc
	live bool
}

// TaskInfo is a copy of a task's scheduling state.
type TaskInfo struct {
	ID        TaskID
	Period    uint32
	Ticks     uint32
	Countdown uint32
}

// taskTable is a fixed slot array; removed slots are tombstones.
type taskTable struct {
	slots [MaxTasks]Task
	n     int
}

// freeSlot returns the lowest unused slot.
func (t *taskTable) freeSlot() (int, bool) {
	for i := range t.slots {
		if !t.slots[i].live {
			return i, true
		}
	}
	return 0, false
}

func (t *taskTable) insert(i int, fn TaskFunc, period uint32) {
	t.slots[i] = Task{
		ID:     TaskID(i),
		Period: period,
		fn:     fn,
		live:   true,
	}
	t.n++
}

func (t *taskTable) remove(id TaskID) bool {
	if int(id) >= len(t.slots) || !t.slots[id].live {
		return false
	}
	t.slots[id] = Task{ID: id}
	t.n--
	return true
}

// periods appends the period of every live task to dst.
func (t *taskTable) periods(dst []uint32) []uint32 {
	for i := range t.slots {
		if t.slots[i].live {
			dst = append(dst, t.slots[i].Period)
		}
	}
	return dst
}

// rescale recomputes every tick count for a new tick period and restarts
// all countdowns.
func (t *taskTable) rescale(tick uint32) {
	for i := range t.slots {
		s := &t.slots[i]
		if !s.live {
			continue
		}
		s.Ticks = s.Period / tick
		s.Countdown = s.Ticks
	}
}

// info appends a snapshot of every live task to dst.
func (t *taskTable) info(dst []TaskInfo) []TaskInfo {
	for i := range t.slots {
		s := &t.slots[i]
		if s.live {
			dst = append(dst, TaskInfo{
				ID:        s.ID,
				Period:    s.Period,
				Ticks:     s.Ticks,
				Countdown: s.Countdown,
			})
		}
	}
	return dst
}
