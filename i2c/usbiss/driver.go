// Package usbiss drives a Devantech USB-ISS serial-to-I2C adapter.
package usbiss

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"i2cgui/i2c"
	"i2cgui/util"
	"i2cgui/util/env"

	"github.com/retroenv/retrogolib/log"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

const (
	driverName = "usbiss"

	vid = "04D8"
	pid = "FFEE"
)

var ErrNoDeviceFound = errors.New("usbiss: no device found among serial ports")

type Driver struct{}

func (d *Driver) DisplayOrder() int {
	return 0
}

func (d *Driver) DisplayName() string {
	return "USB-ISS"
}

func (d *Driver) DisplayDescription() string {
	return "Connect to a Devantech USB-ISS adapter over USB"
}

func (d *Driver) Empty() i2c.DeviceDescriptor {
	return &DeviceDescriptor{}
}

func (d *Driver) Detect() (devices []i2c.DeviceDescriptor, err error) {
	var ports []*enumerator.PortDetails

	ports, err = enumerator.GetDetailedPortsList()
	if err != nil {
		return
	}

	devices = make([]i2c.DeviceDescriptor, 0, len(ports))
	for _, port := range ports {
		if !port.IsUSB {
			continue
		}
		if !strings.EqualFold(port.VID, vid) || !strings.EqualFold(port.PID, pid) {
			continue
		}

		devices = append(devices, DeviceDescriptor{
			Port:         port.Name,
			VID:          port.VID,
			PID:          port.PID,
			SerialNumber: port.SerialNumber,
		})
	}

	return
}

func (d *Driver) Open(desc i2c.DeviceDescriptor, logger *log.Logger) (i2c.Conn, error) {
	var portName string
	switch dd := desc.(type) {
	case DeviceDescriptor:
		portName = dd.Port
	case *DeviceDescriptor:
		portName = dd.Port
	}

	if portName == "" {
		devices, err := d.Detect()
		if err != nil {
			return nil, err
		}
		if len(devices) == 0 {
			return nil, ErrNoDeviceFound
		}
		portName = devices[0].GetId()
	}

	// the adapter is a USB CDC device so the baud rate is not significant:
	f, err := serial.Open(portName, &serial.Mode{
		BaudRate: 115200,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("usbiss: failed to open serial port %s: %w", portName, err)
	}
	if err = f.SetReadTimeout(time.Second); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("usbiss: failed to set read timeout: %w", err)
	}

	q, err := newQueue(f, portName, logger)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return q, nil
}

func init() {
	if util.IsTruthy(env.GetOrDefault("I2CGUI_USBISS_DISABLE", "0")) {
		return
	}
	i2c.Register(driverName, &Driver{})
}
