package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// TimingEvent captures a scheduler event for post-mortem analysis
type TimingEvent struct {
	EventType uint8  // Event type code
	ID        uint8  // Task ID (0xFF when none was assigned)
	Clock     uint32 // Low word of scheduler uptime at event
	Value1    uint32 // Context-dependent value
	Value2    uint32 // Context-dependent value
}

// Event type codes
const (
	EvtTaskRegister   = 1 // v1=period v2=tick period
	EvtTaskReject     = 2 // v1=period v2=capacity when the table was full
	EvtTaskDeregister = 3 // v1=remaining tasks
	EvtTimerProgram   = 4 // v1=prescaler v2=compare
	EvtTaskFire       = 5 // v1=period v2=ticks
	EvtSchedIdle      = 6 // last task removed, timer stopped
)

const (
	TimingRingSize = 32 // Keep last 32 events for post-mortem
)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {} // No-op by default

	// debugEnabled controls whether debug output is active
	debugEnabled bool = false

	// Timing capture ring buffer (non-blocking, for post-mortem).
	// Written with the timer interrupt masked or from the interrupt itself.
	timingRing     [TimingRingSize]TimingEvent
	timingRingHead uint8        // Next write position
	timingEnabled  bool  = true // Always capture timing events
)

// SetDebugWriter sets the platform-specific debug output function
// This allows platforms to redirect debug output to UART, USB, etc.
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// SetTimingEnabled turns timing capture on or off
func SetTimingEnabled(enabled bool) {
	timingEnabled = enabled
}

// DebugPrintln writes a debug message using the platform-specific writer.
// Foreground only: writers may block.
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// RecordTiming captures a timing event in the ring buffer.
// Non-blocking; safe from the timer interrupt.
func RecordTiming(eventType, id uint8, clock, value1, value2 uint32) {
	if !timingEnabled {
		return
	}
	idx := timingRingHead
	timingRing[idx] = TimingEvent{
		EventType: eventType,
		ID:        id,
		Clock:     clock,
		Value1:    value1,
		Value2:    value2,
	}
	timingRingHead = (idx + 1) % TimingRingSize
}

// TimingEvents copies the ring, oldest first, into dst
func TimingEvents(dst []TimingEvent) []TimingEvent {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	start := timingRingHead
	for i := uint8(0); i < TimingRingSize; i++ {
		evt := timingRing[(start+i)%TimingRingSize]
		if evt.EventType == 0 {
			continue // Empty slot
		}
		dst = append(dst, evt)
	}
	return dst
}

// TimingEventName returns a short label for an event code
func TimingEventName(eventType uint8) string {
	switch eventType {
	case EvtTaskRegister:
		return "REGISTER"
	case EvtTaskReject:
		return "REJECT!"
	case EvtTaskDeregister:
		return "DEREGISTER"
	case EvtTimerProgram:
		return "PROGRAM"
	case EvtTaskFire:
		return "FIRE"
	case EvtSchedIdle:
		return "IDLE"
	default:
		return "UNKNOWN"
	}
}

// DumpTimingRing outputs the timing ring buffer through the debug writer.
// Call from foreground code only.
func DumpTimingRing() {
	if debugPrintln == nil {
		return
	}

	var events [TimingRingSize]TimingEvent
	debugPrintln("[TIMING] === Timing Ring Dump ===")
	for _, evt := range TimingEvents(events[:0]) {
		debugPrintln("[TIMING] " + TimingEventName(evt.EventType) +
			" id=" + itoa(int(evt.ID)) +
			" clock=" + utoa(evt.Clock) +
			" v1=" + utoa(evt.Value1) +
			" v2=" + utoa(evt.Value2))
	}
	debugPrintln("[TIMING] === End Dump ===")
}

// ClearTimingRing clears the timing buffer
func ClearTimingRing() {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	for i := range timingRing {
		timingRing[i] = TimingEvent{}
	}
	timingRingHead = 0
}
