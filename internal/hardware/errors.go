package hardware

import "errors"

var (
	// ErrUnknownPin is returned for a pin identifier the board does not have.
	ErrUnknownPin = errors.New("hardware: unknown pin")

	// ErrPinInUse is returned when a line is already claimed by another handle.
	ErrPinInUse = errors.New("hardware: pin in use")

	// ErrNoReading is returned when a sensor produced no usable value.
	ErrNoReading = errors.New("hardware: no reading")

	// ErrHandleClosed is returned by operations on a closed handle.
	ErrHandleClosed = errors.New("hardware: handle closed")
)
