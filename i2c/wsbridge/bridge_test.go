package wsbridge

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"i2cgui/i2c"
	"i2cgui/i2c/emulator"
	"i2cgui/i2c/mock"

	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
)

func newBridge(t *testing.T) (i2c.Conn, *mock.Queue, *emulator.Device) {
	t.Helper()
	logger := log.NewTestLogger(t)

	system := emulator.NewSystem()
	dev, err := emulator.NewDevice(0x48, 0xFF, 0xFF)
	assert.NoError(t, err)
	assert.NoError(t, system.Attach(dev))
	local := mock.NewQueue(system, 0, logger)

	srv := httptest.NewServer(NewServer(local, logger))
	t.Cleanup(func() {
		srv.Close()
		_ = local.Close()
	})

	drv := &Driver{}
	conn, err := drv.Open(DeviceDescriptor{URL: "ws" + strings.TrimPrefix(srv.URL, "http") + "/i2c"}, logger)
	assert.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn, local, dev
}

func TestBridge_ReadWrite(t *testing.T) {
	conn, _, dev := newBridge(t)

	assert.NoError(t, conn.WriteDeviceMemory(0x48, 0x10, []byte{0xDE, 0xAD}))
	assert.Equal(t, byte(0xAD), dev.Registers[0x11])

	data, err := conn.ReadDeviceMemory(0x48, 0x0F, 4)
	assert.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0xDE, 0xAD, 0x00}, data)

	present, err := conn.Probe(0x48)
	assert.NoError(t, err)
	assert.True(t, present)
}

func TestBridge_RemoteErrors(t *testing.T) {
	conn, local, _ := newBridge(t)

	_, err := conn.ReadDeviceMemory(0x49, 0, 1)
	assert.True(t, errors.Is(err, i2c.ErrNack))

	failure := errors.New("bus stuck")
	local.FailNext(failure)
	err = conn.WriteDeviceMemory(0x48, 0, []byte{1})
	assert.ErrorContains(t, err, "bus stuck")
	assert.False(t, errors.Is(err, i2c.ErrDeviceDisconnected))

	// the bridge stays usable after transaction errors:
	present, err := conn.Probe(0x49)
	assert.NoError(t, err)
	assert.False(t, present)
}

func TestDriver_DetectUnreachable(t *testing.T) {
	drv := &Driver{URL: "ws://127.0.0.1:1/i2c"}
	devices, err := drv.Detect()
	assert.NoError(t, err)
	assert.Len(t, devices, 0)
}
