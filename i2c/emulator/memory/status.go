package memory

import "sync/atomic"

// Status is a read-only region of device registers, like the status or identity
// registers of a sensor. Bus writes are dropped and counted; the device model
// updates values with Set.
type Status struct {
	state  []byte
	offset uint32

	rejected atomic.Int64
}

func NewStatus(size int, offset uint32) *Status {
	return &Status{state: make([]byte, size), offset: offset}
}

func (s *Status) Read(address uint32) (value byte) {
	return s.state[address-s.offset]
}

func (s *Status) Write(address uint32, value byte) {
	s.rejected.Add(1)
}

// Set updates a status register from the device side.
func (s *Status) Set(address uint32, value byte) {
	s.state[address-s.offset] = value
}

// Rejected returns the number of bus writes dropped so far.
func (s *Status) Rejected() int64 { return s.rejected.Load() }

func (s *Status) Shutdown() {}

func (s *Status) Size() uint32 {
	return uint32(len(s.state))
}

func (s *Status) Clear() {
	for i := range s.state {
		s.state[i] = 0
	}
}

func (s *Status) Dump(address uint32) []byte {
	return append([]byte(nil), s.state[address-s.offset:]...)
}
