package wsbridge

import (
	"errors"
	"fmt"

	"i2cgui/i2c"
	"i2cgui/interfaces"
)

const (
	opName  = "Name"
	opRead  = "Read"
	opWrite = "Write"
	opProbe = "Probe"

	codeNack         = "nack"
	codeDisconnected = "disconnected"
	codeError        = "error"
)

type bridgeCommand struct {
	Opcode string              `json:"Opcode"`
	Device uint8               `json:"Device"`
	Offset int                 `json:"Offset"`
	Length int                 `json:"Length,omitempty"`
	Data   interfaces.HexBytes `json:"Data,omitempty"`
	Name   string              `json:"Name,omitempty"`
}

type bridgeResult struct {
	Data    interfaces.HexBytes `json:"Data,omitempty"`
	Present bool                `json:"Present,omitempty"`
	Code    string              `json:"Code,omitempty"`
	Error   string              `json:"Error,omitempty"`
}

// RemoteError is a failure reported by the bridge for a single transaction.
type RemoteError struct {
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("wsbridge: remote %s: %s", e.Code, e.Message)
}

func (e *RemoteError) Is(target error) bool {
	switch e.Code {
	case codeNack:
		return target == i2c.ErrNack
	case codeDisconnected:
		return target == i2c.ErrDeviceDisconnected
	}
	return false
}

func resultError(err error) bridgeResult {
	code := codeError
	if errors.Is(err, i2c.ErrNack) {
		code = codeNack
	} else if errors.Is(err, i2c.ErrDeviceDisconnected) {
		code = codeDisconnected
	}
	return bridgeResult{Code: code, Error: err.Error()}
}

func (r *bridgeResult) err() error {
	if r.Code == "" {
		return nil
	}
	return &RemoteError{Code: r.Code, Message: r.Error}
}
