package usbiss

import (
	"errors"
	"testing"

	"i2cgui/i2c"

	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
)

// fakeAdapter answers USB-ISS frames for a single device at 0x20.
type fakeAdapter struct {
	module byte
	mem    [0x400]byte

	in     []byte
	out    []byte
	frames [][]byte
	closed bool
}

func (f *fakeAdapter) Write(p []byte) (int, error) {
	f.in = append(f.in, p...)
	f.process()
	return len(p), nil
}

func (f *fakeAdapter) Read(p []byte) (int, error) {
	n := copy(p, f.out)
	f.out = f.out[n:]
	return n, nil
}

func (f *fakeAdapter) Close() error {
	f.closed = true
	return nil
}

func (f *fakeAdapter) consume(n int) []byte {
	frame := append([]byte(nil), f.in[:n]...)
	f.in = f.in[n:]
	f.frames = append(f.frames, frame)
	return frame
}

func (f *fakeAdapter) transfer(header int, reg int) {
	dev, n := f.in[1], int(f.in[header-1])
	present := dev>>1 == 0x20
	if dev&1 == 1 {
		f.consume(header)
		f.out = append(f.out, f.mem[reg:reg+n]...)
		return
	}
	if len(f.in) < header+n {
		return
	}
	frame := f.consume(header + n)
	if !present {
		f.out = append(f.out, 0)
		return
	}
	copy(f.mem[reg:], frame[header:])
	f.out = append(f.out, 1)
}

func (f *fakeAdapter) process() {
	for len(f.in) >= 2 {
		switch f.in[0] {
		case cmdISS:
			if f.in[1] == issVersion {
				f.consume(2)
				f.out = append(f.out, f.module, 0x07, modeI2CH100KHz)
				continue
			}
			if len(f.in) < 4 {
				return
			}
			f.consume(4)
			f.out = append(f.out, 0xFF, 0x00)
		case cmdI2CAD1:
			if len(f.in) < 4 {
				return
			}
			f.transfer(4, int(f.in[2]))
		case cmdI2CAD2:
			if len(f.in) < 5 {
				return
			}
			f.transfer(5, int(f.in[2])<<8|int(f.in[3]))
		case cmdI2CTest:
			frame := f.consume(2)
			if frame[1]>>1 == 0x20 {
				f.out = append(f.out, 1)
			} else {
				f.out = append(f.out, 0)
			}
		default:
			return
		}
	}
}

func newTestQueue(t *testing.T) (*Queue, *fakeAdapter) {
	t.Helper()
	f := &fakeAdapter{module: moduleID}
	q, err := newQueue(f, "fake", log.NewTestLogger(t))
	assert.NoError(t, err)
	t.Cleanup(func() { _ = q.Close() })
	return q, f
}

func TestQueue_Handshake(t *testing.T) {
	q, f := newTestQueue(t)

	assert.Equal(t, byte(0x07), q.firmware)
	assert.Len(t, f.frames, 2)
	assert.Equal(t, []byte{cmdISS, issMode, modeI2CH100KHz, 0x00}, f.frames[1])

	_, err := newQueue(&fakeAdapter{module: 0x01}, "fake", log.NewTestLogger(t))
	assert.ErrorContains(t, err, "unexpected module id")
}

func TestQueue_ReadBatches(t *testing.T) {
	q, f := newTestQueue(t)
	for i := range f.mem {
		f.mem[i] = byte(i)
	}

	data, err := q.ReadDeviceMemory(0x20, 0x10, 130)
	assert.NoError(t, err)
	assert.Len(t, data, 130)
	assert.Equal(t, byte(0x10), data[0])
	assert.Equal(t, byte(0x91), data[129])

	frames := f.frames[2:]
	assert.Len(t, frames, 3)
	assert.Equal(t, []byte{cmdI2CAD1, 0x41, 0x10, 60}, frames[0])
	assert.Equal(t, []byte{cmdI2CAD1, 0x41, 0x4C, 60}, frames[1])
	assert.Equal(t, []byte{cmdI2CAD1, 0x41, 0x88, 10}, frames[2])
}

func TestQueue_WriteBatches(t *testing.T) {
	q, f := newTestQueue(t)

	data := make([]byte, 70)
	for i := range data {
		data[i] = byte(0x80 + i)
	}
	assert.NoError(t, q.WriteDeviceMemory(0x20, 0x100, data))
	assert.Equal(t, byte(0x80), f.mem[0x100])
	assert.Equal(t, byte(0x80+69), f.mem[0x100+69])

	frames := f.frames[2:]
	assert.Len(t, frames, 2)
	assert.Equal(t, []byte{cmdI2CAD2, 0x40, 0x01, 0x00, 59}, frames[0][:5])
	assert.Equal(t, []byte{cmdI2CAD2, 0x40, 0x01, 0x3B, 11}, frames[1][:5])
}

func TestQueue_Nack(t *testing.T) {
	q, _ := newTestQueue(t)

	err := q.WriteDeviceMemory(0x21, 0, []byte{1})
	assert.True(t, errors.Is(err, i2c.ErrNack))
	assert.False(t, errors.Is(err, i2c.ErrDeviceDisconnected))

	// still connected after a NACK:
	present, err := q.Probe(0x20)
	assert.NoError(t, err)
	assert.True(t, present)
	present, err = q.Probe(0x21)
	assert.NoError(t, err)
	assert.False(t, present)
}

func TestQueue_Close(t *testing.T) {
	q, f := newTestQueue(t)
	assert.NoError(t, q.Close())
	assert.True(t, f.closed)
}
