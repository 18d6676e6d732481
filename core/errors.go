package core

import "errors"

// Scheduler errors. Callers compare with errors.Is.
var (
	// ErrInvalidPeriod is returned for a zero period or a nil callback.
	ErrInvalidPeriod = errors.New("invalid task period")

	// ErrResourceExhausted is returned when every task slot is in use.
	ErrResourceExhausted = errors.New("task table full")

	// ErrResolution is returned when no common divisor / prescaler
	// combination keeps the compare value within the counter width.
	ErrResolution = errors.New("periods not representable by timer")

	// ErrNotFound is returned when deregistering an unknown task id.
	ErrNotFound = errors.New("task not found")

	// ErrPrescaler is returned by timer drivers asked for a divider
	// they do not implement.
	ErrPrescaler = errors.New("unsupported prescaler")

	// ErrUnknownCommand is returned for console keys without a handler.
	ErrUnknownCommand = errors.New("unknown command")
)
