// Package protocol implements the telemetry framing between the controller
// and host tools: Klipper-style blocks of VLQ encoded messages.
package protocol

// Frame layout: [len][seq][payload...][crc hi][crc lo][sync]
const (
	MessageMax         = 512 // Scratch output buffer size
	MessageHeaderSize  = 2
	MessageTrailerSize = 3
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessageLengthMax   = 64
	MessagePositionLen = 0
	MessagePositionSeq = 1
	MessageTrailerCRC  = 3
	MessageTrailerSync = 1
	MessageValueSync   = 0x7E

	// Message sequence masks
	MessageSeqMask = 0x0F
)

// MessagePayloadMax is the largest payload that fits one frame
const MessagePayloadMax = MessageLengthMax - MessageLengthMin

// Message ids sent by the controller
const (
	MsgSchedulerState = 1 // tick_period prescaler compare running tasks
	MsgTaskState      = 2 // id period ticks countdown
	MsgTaskEvent      = 3 // kind id period code
	MsgSensors        = 4 // ambient_c coil_c humidity_ms humidity_rms_x100
	MsgActuators      = 5 // fan compressor
	MsgText           = 6 // text (%*s)
)

// Task event kinds carried by MsgTaskEvent
const (
	TaskEventRegistered   = 1
	TaskEventRejected     = 2
	TaskEventDeregistered = 3
)

// Task event codes carried by MsgTaskEvent
const (
	CodeOK                = 0
	CodeResourceExhausted = 1
	CodeResolution        = 2
	CodeNotFound          = 3
	CodeOther             = 4
)

// MessageName returns the name of a message id
func MessageName(id uint32) string {
	switch id {
	case MsgSchedulerState:
		return "scheduler_state"
	case MsgTaskState:
		return "task_state"
	case MsgTaskEvent:
		return "task_event"
	case MsgSensors:
		return "sensors"
	case MsgActuators:
		return "actuators"
	case MsgText:
		return "text"
	default:
		return "unknown"
	}
}
