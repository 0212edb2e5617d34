// Package i2c abstracts access to the memory of devices on an I2C bus behind a set
// of registered drivers: USB adapters, network bridges and in-memory simulations.
package i2c

import (
	"fmt"
	"sort"
	"sync"

	"github.com/retroenv/retrogolib/log"
)

type Driver interface {
	DriverDescriptor

	// Open connects to the bus behind the given device.
	Open(desc DeviceDescriptor, logger *log.Logger) (Conn, error)

	// Detect lists the devices the driver can currently reach.
	Detect() ([]DeviceDescriptor, error)

	// Empty returns a zero descriptor to unmarshal a device selection into.
	Empty() DeviceDescriptor
}

type DriverDescriptor interface {
	DisplayOrder() int
	DisplayName() string
	DisplayDescription() string
}

type DeviceDescriptor interface {
	GetId() string
	GetDisplayName() string
}

type NamedDriver struct {
	Driver Driver
	Name   string
}

type NamedDriverDevicePair struct {
	NamedDriver NamedDriver
	Device      DeviceDescriptor
}

// MarshaledDeviceDescriptor is the JSON shape of a detected device.
type MarshaledDeviceDescriptor struct {
	Id          string           `json:"id"`
	DisplayName string           `json:"displayName"`
	Device      DeviceDescriptor `json:"device"`
}

func MarshalDeviceDescriptor(desc DeviceDescriptor) MarshaledDeviceDescriptor {
	return MarshaledDeviceDescriptor{
		Id:          desc.GetId(),
		DisplayName: desc.GetDisplayName(),
		Device:      desc,
	}
}

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Driver)
)

// Register makes a bus driver available by the provided name.
// If Register is called twice with the same name or if driver is nil,
// it panics.
func Register(name string, driver Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if driver == nil {
		panic("i2c: Register driver is nil")
	}
	if _, dup := drivers[name]; dup {
		panic("i2c: Register called twice for driver " + name)
	}
	drivers[name] = driver
}

func unregisterAllDrivers() {
	driversMu.Lock()
	defer driversMu.Unlock()
	// For tests.
	drivers = make(map[string]Driver)
}

// Drivers returns the registered drivers sorted by display order, then name.
func Drivers() []NamedDriver {
	driversMu.RLock()
	defer driversMu.RUnlock()
	list := make([]NamedDriver, 0, len(drivers))
	for name, driver := range drivers {
		list = append(list, NamedDriver{Driver: driver, Name: name})
	}
	sort.Slice(list, func(i, j int) bool {
		if oi, oj := list[i].Driver.DisplayOrder(), list[j].Driver.DisplayOrder(); oi != oj {
			return oi < oj
		}
		return list[i].Name < list[j].Name
	})
	return list
}

func DriverByName(name string) (NamedDriver, bool) {
	driversMu.RLock()
	defer driversMu.RUnlock()
	d, ok := drivers[name]
	return NamedDriver{Driver: d, Name: name}, ok
}

func Open(driverName string, desc DeviceDescriptor, logger *log.Logger) (Conn, error) {
	named, ok := DriverByName(driverName)
	if !ok {
		return nil, fmt.Errorf("i2c: unknown driver %q (forgotten import?)", driverName)
	}

	return named.Driver.Open(desc, logger)
}
