package regmap

import (
	"errors"
	"fmt"
)

var (
	ErrNoAddressing      = errors.New("block has neither a base address nor an indexer")
	ErrDuplicateRegister = errors.New("duplicate register")
	ErrDuplicateBlock    = errors.New("duplicate block")
	ErrOutOfBounds       = errors.New("address outside of memory")
	ErrUnboundVariable   = errors.New("index variable has no range")
	ErrInvalidMemorySize = errors.New("invalid memory size")
	ErrNegativeOffset    = errors.New("negative register offset")
)

// ConfigurationError rejects a malformed address space description at construction.
type ConfigurationError struct {
	Block string
	Err   error
}

func (e *ConfigurationError) Unwrap() error { return e.Err }
func (e *ConfigurationError) Error() string {
	if e.Block == "" {
		return fmt.Sprintf("regmap: %v", e.Err)
	}
	return fmt.Sprintf("regmap: block '%s': %v", e.Block, e.Err)
}
