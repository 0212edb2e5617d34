package engine

import (
	"errors"

	"i2cgui/i2c"
)

var ErrNotConnected = errors.New("engine: not connected to a bus")

// busConn routes traffic to whichever bus the view model is connected to at the
// time of the call. The address space and the bridge hold one for their lifetime.
type busConn struct {
	vm *ViewModel
}

func (c busConn) conn() (i2c.Conn, error) {
	c.vm.devLock.Lock()
	dev := c.vm.dev
	c.vm.devLock.Unlock()

	if dev == nil {
		return nil, ErrNotConnected
	}
	return dev, nil
}

func (c busConn) ReadDeviceMemory(deviceAddress uint8, offset, length int) ([]byte, error) {
	dev, err := c.conn()
	if err != nil {
		return nil, err
	}
	return dev.ReadDeviceMemory(deviceAddress, offset, length)
}

func (c busConn) WriteDeviceMemory(deviceAddress uint8, offset int, data []byte) error {
	dev, err := c.conn()
	if err != nil {
		return err
	}
	return dev.WriteDeviceMemory(deviceAddress, offset, data)
}

func (c busConn) Probe(deviceAddress uint8) (bool, error) {
	dev, err := c.conn()
	if err != nil {
		return false, err
	}
	return dev.Probe(deviceAddress)
}

// Close does nothing; the connection belongs to the view model.
func (c busConn) Close() error { return nil }
