package addrspace

import (
	"fmt"

	"i2cgui/bitfield"
	"i2cgui/regmap"

	"github.com/retroenv/retrogolib/log"
)

// ReadAll reads the whole memory of the device and replaces both the last read
// values and the edit buffer. It is the only operation that makes the modification
// status known.
func (s *AddressSpace) ReadAll() error {
	return s.read(0, len(s.cells), true)
}

// WriteAll writes the whole edit buffer to the device.
func (s *AddressSpace) WriteAll() error {
	return s.write(0, len(s.cells))
}

func (s *AddressSpace) ReadRegister(addr int) error {
	return s.read(addr, 1, false)
}

func (s *AddressSpace) WriteRegister(addr int) error {
	return s.write(addr, 1)
}

// ReadMemoryBlock reads length bytes starting at addr.
func (s *AddressSpace) ReadMemoryBlock(addr, length int) error {
	return s.read(addr, length, false)
}

// WriteMemoryBlock writes length pending bytes starting at addr.
func (s *AddressSpace) WriteMemoryBlock(addr, length int) error {
	return s.write(addr, length)
}

// ReadBlock reads every byte of a block. Like every other operation it does nothing
// while no device address is set, even for a name the map does not know.
func (s *AddressSpace) ReadBlock(name string) error {
	if !s.deviceReady(OpRead, log.String("block", name)) {
		return nil
	}
	b, err := s.resolveBlock(name)
	if err != nil {
		return err
	}
	return s.read(b.BaseAddress, b.Length, false)
}

func (s *AddressSpace) WriteBlock(name string) error {
	if !s.deviceReady(OpWrite, log.String("block", name)) {
		return nil
	}
	b, err := s.resolveBlock(name)
	if err != nil {
		return err
	}
	return s.write(b.BaseAddress, b.Length)
}

func (s *AddressSpace) ReadNamedRegister(block, register string) error {
	key := regmap.Key(block, register)
	if !s.deviceReady(OpRead, log.String("register", key)) {
		return nil
	}
	addr, err := s.resolveRegister(key)
	if err != nil {
		return err
	}
	return s.read(addr, 1, false)
}

func (s *AddressSpace) WriteNamedRegister(block, register string) error {
	key := regmap.Key(block, register)
	if !s.deviceReady(OpWrite, log.String("register", key)) {
		return nil
	}
	addr, err := s.resolveRegister(key)
	if err != nil {
		return err
	}
	return s.write(addr, 1)
}

func (s *AddressSpace) resolveBlock(name string) (regmap.Block, error) {
	b, ok := s.regs.Block(name)
	if !ok {
		return b, fmt.Errorf("addrspace: %s: '%s': %w", s.name, name, ErrUnknownBlock)
	}
	return b, nil
}

// deviceReady reports whether a device is targeted; without one, operations are
// skipped with a diagnostic.
func (s *AddressSpace) deviceReady(op Operation, target ...log.Field) bool {
	if s.hasDevice {
		return true
	}
	fields := append([]log.Field{log.String("space", s.name), log.Stringer("op", op)}, target...)
	s.log.Warn("operation skipped", append(fields, log.Err(ErrAddressNotSet))...)
	return false
}

func (s *AddressSpace) read(addr, length int, all bool) error {
	if !s.deviceReady(OpRead, log.Hex("address", addr), log.Int("length", length)) {
		return nil
	}
	if err := s.checkRange(addr, length); err != nil {
		return err
	}

	data, err := s.transport.ReadDeviceMemory(s.deviceAddress, addr, length)
	if err != nil {
		return fmt.Errorf("addrspace: %s: read %d bytes at 0x%02x: %w", s.name, length, addr, err)
	}
	if len(data) < length {
		return fmt.Errorf("addrspace: %s: read %d bytes at 0x%02x: got %d: %w", s.name, length, addr, len(data), ErrShortRead)
	}

	s.edit(func() {
		copy(s.lastRead[addr:addr+length], data)
		for i := 0; i < length; i++ {
			s.cells[addr+i].Set(bitfield.FormatRegister(data[i]))
		}
	})
	if all {
		s.known = true
	}

	s.log.Debug("read",
		log.String("space", s.name),
		log.Hex("device", s.deviceAddress),
		log.Hex("address", addr),
		log.Int("length", length))
	s.observers.Notify(OperationEvent{Space: s.name, Op: OpRead, DeviceAddress: s.deviceAddress, Address: addr, Length: length})
	return nil
}

// write sends pending bytes to the device. Written values are not verified by a
// read back; on transport failure the last read values are left untouched and the
// caller must re-read to resynchronize.
func (s *AddressSpace) write(addr, length int) error {
	if !s.deviceReady(OpWrite, log.Hex("address", addr), log.Int("length", length)) {
		return nil
	}
	if err := s.checkRange(addr, length); err != nil {
		return err
	}

	data := make([]byte, length)
	for i := range data {
		v, err := bitfield.ParseByte(s.cells[addr+i].text)
		if err != nil {
			return fmt.Errorf("addrspace: %s: register %s: %w", s.name, s.cells[addr+i].key, err)
		}
		data[i] = v
	}

	if err := s.transport.WriteDeviceMemory(s.deviceAddress, addr, data); err != nil {
		return fmt.Errorf("addrspace: %s: write %d bytes at 0x%02x: %w", s.name, length, addr, err)
	}
	copy(s.lastRead[addr:addr+length], data)

	s.log.Debug("write",
		log.String("space", s.name),
		log.Hex("device", s.deviceAddress),
		log.Hex("address", addr),
		log.Int("length", length))
	s.observers.Notify(OperationEvent{Space: s.name, Op: OpWrite, DeviceAddress: s.deviceAddress, Address: addr, Length: length})
	return nil
}
