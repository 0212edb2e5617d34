package i2c

import (
	"errors"
	"fmt"
)

var (
	ErrDeviceDisconnected = errors.New("device disconnected")
	ErrShortRead          = errors.New("short read")
	ErrNack               = errors.New("device did not acknowledge")
	ErrInvalidAddress     = errors.New("invalid device address")
)

// TerminalError wraps an error after which the connection is unusable.
type TerminalError struct {
	wrapped error
}

func (e *TerminalError) Unwrap() error { return e.wrapped }
func (e *TerminalError) Is(target error) bool {
	return target == ErrDeviceDisconnected
}
func (e *TerminalError) Error() string {
	if e.wrapped == nil {
		return "i2c terminal error"
	}
	return fmt.Sprintf("i2c terminal error: %v", e.wrapped)
}

// TransportError reports a failed bus transaction.
type TransportError struct {
	Op            string
	DeviceAddress uint8
	Offset        int
	Length        int
	Err           error
}

func (e *TransportError) Unwrap() error { return e.Err }
func (e *TransportError) Error() string {
	return fmt.Sprintf("i2c: %s %d bytes at 0x%02x of device 0x%02x: %v", e.Op, e.Length, e.Offset, e.DeviceAddress, e.Err)
}

// ValidDeviceAddress rejects anything outside of the 7-bit address range.
func ValidDeviceAddress(deviceAddress uint8) error {
	if deviceAddress > 0x7F {
		return fmt.Errorf("i2c: 0x%02x: %w", deviceAddress, ErrInvalidAddress)
	}
	return nil
}
