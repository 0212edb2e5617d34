// Package emulator simulates devices on an I2C bus. Each device exposes a 256 byte
// register file through an 8-bit register pointer that wraps around.
package emulator

import (
	"fmt"
	"sort"
	"sync"

	"i2cgui/i2c/emulator/memory"

	"github.com/alttpo/snes/emulator/bus"
)

const RegisterFileSize = 0x100

type Device struct {
	Address uint8

	// register file as seen on the device's internal bus:
	Bus       *bus.Bus
	Registers [RegisterFileSize]byte
	RAM       *memory.RAM
	Status    *memory.Status
}

// NewDevice creates a device whose registers are all writable except the
// read-only status range [statusStart, statusEnd].
func NewDevice(address uint8, statusStart, statusEnd uint8) (d *Device, err error) {
	if address > 0x7F {
		return nil, fmt.Errorf("emulator: device address 0x%02x is not a 7-bit address", address)
	}

	d = &Device{Address: address}
	d.Bus, err = bus.NewWithSizeHint(2)
	if err != nil {
		return nil, err
	}

	d.RAM = memory.NewRAM(d.Registers[:], 0)
	err = d.Bus.Attach(
		d.RAM,
		"registers",
		0,
		RegisterFileSize-1,
	)
	if err != nil {
		return nil, err
	}

	// status registers are overlaid on top of the register file:
	if statusEnd >= statusStart {
		d.Status = memory.NewStatus(int(statusEnd-statusStart)+1, uint32(statusStart))
		overlay := memory.NewOverlay(d.Status, d.RAM, uint32(statusStart), uint32(statusEnd))
		start, end := overlay.Window()
		err = d.Bus.Attach(overlay, "status", start, end)
		if err != nil {
			return nil, err
		}
	}

	return d, nil
}

func (d *Device) Read(offset, length int) []byte {
	data := make([]byte, length)
	for i := range data {
		data[i] = d.Bus.EaRead(uint32((offset + i) % RegisterFileSize))
	}
	return data
}

func (d *Device) Write(offset int, data []byte) {
	for i, v := range data {
		d.Bus.EaWrite(uint32((offset+i)%RegisterFileSize), v)
	}
}

// System is a simulated bus with any number of attached devices.
type System struct {
	lock    sync.Mutex
	devices map[uint8]*Device
}

func NewSystem() *System {
	return &System{devices: make(map[uint8]*Device)}
}

func (s *System) Attach(d *Device) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if _, dup := s.devices[d.Address]; dup {
		return fmt.Errorf("emulator: device 0x%02x already attached", d.Address)
	}
	s.devices[d.Address] = d
	return nil
}

func (s *System) Detach(address uint8) {
	s.lock.Lock()
	defer s.lock.Unlock()
	delete(s.devices, address)
}

// Device returns the device answering to address, if any.
func (s *System) Device(address uint8) (d *Device, ok bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	d, ok = s.devices[address]
	return
}

func (s *System) Addresses() []uint8 {
	s.lock.Lock()
	defer s.lock.Unlock()
	list := make([]uint8, 0, len(s.devices))
	for a := range s.devices {
		list = append(list, a)
	}
	sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
	return list
}
