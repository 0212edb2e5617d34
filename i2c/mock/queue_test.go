package mock

import (
	"errors"
	"testing"

	"i2cgui/i2c"
	"i2cgui/i2c/emulator"

	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
)

func newTestQueue(t *testing.T) (*Queue, *emulator.Device) {
	t.Helper()
	s := emulator.NewSystem()
	d, err := emulator.NewDevice(0x20, 0xFE, 0xFF)
	assert.NoError(t, err)
	assert.NoError(t, s.Attach(d))

	q := NewQueue(s, 0, log.NewTestLogger(t))
	t.Cleanup(func() { _ = q.Close() })
	return q, d
}

func TestQueue_ReadWrite(t *testing.T) {
	q, d := newTestQueue(t)

	assert.NoError(t, q.WriteDeviceMemory(0x20, 4, []byte{0xAA, 0xBB}))
	assert.Equal(t, byte(0xBB), d.Registers[5])

	data, err := q.ReadDeviceMemory(0x20, 3, 4)
	assert.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0xAA, 0xBB, 0x00}, data)

	reads, writes, probes := q.Transactions()
	assert.Equal(t, int64(1), reads)
	assert.Equal(t, int64(1), writes)
	assert.Equal(t, int64(0), probes)
}

func TestQueue_Nack(t *testing.T) {
	q, _ := newTestQueue(t)

	_, err := q.ReadDeviceMemory(0x21, 0, 1)
	assert.True(t, errors.Is(err, i2c.ErrNack))

	present, err := q.Probe(0x21)
	assert.NoError(t, err)
	assert.False(t, present)
	present, err = q.Probe(0x20)
	assert.NoError(t, err)
	assert.True(t, present)
}

func TestQueue_FailNext(t *testing.T) {
	q, _ := newTestQueue(t)

	failure := errors.New("arbitration lost")
	q.FailNext(failure)
	err := q.WriteDeviceMemory(0x20, 0, []byte{1})
	assert.True(t, errors.Is(err, failure))

	var terr *i2c.TransportError
	assert.True(t, errors.As(err, &terr))
	assert.Equal(t, uint8(0x20), terr.DeviceAddress)

	// one-shot:
	assert.NoError(t, q.WriteDeviceMemory(0x20, 0, []byte{1}))

	q.FailNext(i2c.ErrDeviceDisconnected)
	_, err = q.ReadDeviceMemory(0x20, 0, 1)
	assert.True(t, errors.Is(err, i2c.ErrDeviceDisconnected))
	<-q.Closed()
}

func TestDriver_DemoSystem(t *testing.T) {
	drv := &Driver{System: NewDemoSystem()}
	devices, err := drv.Detect()
	assert.NoError(t, err)
	assert.Len(t, devices, 1)

	conn, err := drv.Open(devices[0], log.NewTestLogger(t))
	assert.NoError(t, err)
	defer conn.Close()

	id, err := conn.ReadDeviceMemory(0x48, 0xFC, 4)
	assert.NoError(t, err)
	assert.Equal(t, []byte("I2C\x01"), id)
}

func TestDefaultSystem_IdentityWindow(t *testing.T) {
	d, ok := DefaultSystem.Device(0x48)
	assert.True(t, ok)

	// 0xF0-0xFB share a bus segment with the identity registers but stay writable:
	d.Write(0xFA, []byte{0x12, 0x34, 0x00})
	assert.Equal(t, []byte{0x12, 0x34, 0x49, 0x32, 0x43, 0x01}, d.Read(0xFA, 6))
}
