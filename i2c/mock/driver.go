// Package mock provides an in-memory bus of simulated devices.
package mock

import (
	"time"

	"i2cgui/i2c"
	"i2cgui/i2c/emulator"

	"github.com/retroenv/retrogolib/log"
)

const driverName = "mock"

// DefaultSystem is the simulated bus shared by every connection of the registered driver.
var DefaultSystem = NewDemoSystem()

type Driver struct {
	System  *emulator.System
	Latency time.Duration
}

func (d *Driver) DisplayOrder() int {
	return 1000
}

func (d *Driver) DisplayName() string {
	return "Mock Bus"
}

func (d *Driver) DisplayDescription() string {
	return "Connect to a simulated bus for testing"
}

func (d *Driver) Open(desc i2c.DeviceDescriptor, logger *log.Logger) (i2c.Conn, error) {
	return NewQueue(d.System, d.Latency, logger), nil
}

func (d *Driver) Detect() ([]i2c.DeviceDescriptor, error) {
	return []i2c.DeviceDescriptor{
		DeviceDescriptor{Name: "0"},
	}, nil
}

func (d *Driver) Empty() i2c.DeviceDescriptor {
	return &DeviceDescriptor{}
}

// NewDemoSystem simulates a sensor at 0x48 with read-only identity registers at
// 0xFC-0xFF.
func NewDemoSystem() *emulator.System {
	s := emulator.NewSystem()
	d, err := emulator.NewDevice(0x48, 0xFC, 0xFF)
	if err != nil {
		panic(err)
	}
	for i, v := range []byte{0x49, 0x32, 0x43, 0x01} {
		d.Status.Set(0xFC+uint32(i), v)
	}
	_ = s.Attach(d)
	return s
}

func init() {
	// 2ms per transaction simulates the delay of a USB adapter:
	i2c.Register(driverName, &Driver{System: DefaultSystem, Latency: 2 * time.Millisecond})
}
