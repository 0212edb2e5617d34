// Package memory provides regions that can be attached to an emulated device bus.
package memory

import "sync/atomic"

// RAM is a read-write region backed by a caller-owned slice; offset is the first bus
// address of the region.
type RAM struct {
	data   []byte
	offset uint32

	written atomic.Int64
}

func NewRAM(data []byte, offset uint32) *RAM {
	return &RAM{data: data, offset: offset}
}

func (m *RAM) Read(address uint32) byte {
	return m.data[address-m.offset]
}

func (m *RAM) Write(address uint32, value byte) {
	m.written.Add(1)
	m.data[address-m.offset] = value
}

// Written returns the number of bytes written over the bus so far.
func (m *RAM) Written() int64 { return m.written.Load() }

func (m *RAM) Shutdown() {}

func (m *RAM) Size() uint32 { return uint32(len(m.data)) }

func (m *RAM) Clear() {
	clear(m.data)
}

func (m *RAM) Dump(address uint32) []byte {
	return append([]byte(nil), m.data[address-m.offset:]...)
}
