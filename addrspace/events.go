package addrspace

import (
	"errors"
	"fmt"
)

var (
	ErrAddressNotSet        = errors.New("device address not set")
	ErrInvalidDeviceAddress = errors.New("device address is not a 7-bit address")
	ErrUnknownBlock         = errors.New("unknown block")
	ErrUnknownRegister      = errors.New("unknown register")
	ErrUnknownField         = errors.New("unknown decoded field")
	ErrDuplicateField       = errors.New("duplicate decoded field")
	ErrAddressOutOfRange    = errors.New("address range outside of memory")
	ErrShortRead            = errors.New("transport returned fewer bytes than requested")
)

// Transport performs raw byte-level access to the memory of a device on the bus.
type Transport interface {
	ReadDeviceMemory(deviceAddress uint8, offset, length int) ([]byte, error)
	WriteDeviceMemory(deviceAddress uint8, offset int, data []byte) error
}

// Modification is the ternary modification status of the memory image.
type Modification int8

const (
	Unknown Modification = iota
	Clean
	Dirty
)

func (m Modification) String() string {
	switch m {
	case Clean:
		return "false"
	case Dirty:
		return "true"
	default:
		return "Unknown"
	}
}

type Operation int

const (
	OpRead Operation = iota
	OpWrite
)

func (o Operation) String() string {
	if o == OpWrite {
		return "write"
	}
	return "read"
}

// OperationEvent is emitted after every successful read or write; observers should
// recompute the modification status.
type OperationEvent struct {
	Space         string
	Op            Operation
	DeviceAddress uint8
	Address       int
	Length        int
}

func (e OperationEvent) String() string {
	return fmt.Sprintf("%s: %s %d bytes at 0x%02x from device 0x%02x", e.Space, e.Op, e.Length, e.Address, e.DeviceAddress)
}

// ValueChangedEvent is emitted once per cell whose value settled to a new value after
// an edit or a read completed.
type ValueChangedEvent struct {
	Space string
	Key   string
	// Address is the register address, or -1 for decoded fields.
	Address int
	Value   string
}

func (e ValueChangedEvent) IsField() bool { return e.Address < 0 }

// DeviceAddressEvent is emitted when the target device address changes.
type DeviceAddressEvent struct {
	Space         string
	DeviceAddress uint8
	IsSet         bool
}
