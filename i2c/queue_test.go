package i2c

import (
	"errors"
	"testing"

	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
)

var errBus = errors.New("bus error")

type testQueue struct {
	BaseQueue

	mem      [0x80][16]byte
	fail     error
	terminal bool
	closed   int
}

func newTestQueue(t *testing.T) *testQueue {
	t.Helper()
	q := &testQueue{}
	q.BaseInit("test", q, log.NewTestLogger(t))
	return q
}

func (q *testQueue) CloseDevice() error {
	q.closed++
	return nil
}

func (q *testQueue) IsTerminalError(err error) bool { return q.terminal }

func withCompletion(seq CommandSequence, complete Completion) CommandSequence {
	if complete != nil && len(seq) > 0 {
		seq[len(seq)-1].Completion = complete
	}
	return seq
}

func (q *testQueue) MakeReadCommands(reqs []Read, complete Completion) CommandSequence {
	seq := make(CommandSequence, 0, len(reqs))
	for _, req := range reqs {
		seq = append(seq, CommandWithCompletion{Command: &testRead{req}})
	}
	return withCompletion(seq, complete)
}

func (q *testQueue) MakeWriteCommands(reqs []Write, complete Completion) CommandSequence {
	seq := make(CommandSequence, 0, len(reqs))
	for _, req := range reqs {
		seq = append(seq, CommandWithCompletion{Command: &testWrite{req}})
	}
	return withCompletion(seq, complete)
}

func (q *testQueue) MakeProbeCommands(deviceAddress uint8, complete func(bool)) CommandSequence {
	return CommandSequence{{Command: &testProbe{deviceAddress, complete}}}
}

type testRead struct{ req Read }

func (c *testRead) Execute(queue Queue) error {
	q := queue.(*testQueue)
	if q.fail != nil {
		return q.fail
	}
	data := append([]byte(nil), q.mem[c.req.DeviceAddress][c.req.Offset:c.req.Offset+c.req.Length]...)
	c.req.Completion(Response{DeviceAddress: c.req.DeviceAddress, Offset: c.req.Offset, Data: data})
	return nil
}

type testWrite struct{ req Write }

func (c *testWrite) Execute(queue Queue) error {
	q := queue.(*testQueue)
	if q.fail != nil {
		return q.fail
	}
	copy(q.mem[c.req.DeviceAddress][c.req.Offset:], c.req.Data)
	return nil
}

type testProbe struct {
	deviceAddress uint8
	complete      func(bool)
}

func (c *testProbe) Execute(queue Queue) error {
	c.complete(c.deviceAddress == 0x40)
	return nil
}

func TestBaseQueue_ReadWrite(t *testing.T) {
	q := newTestQueue(t)
	defer q.Close()

	assert.NoError(t, q.WriteDeviceMemory(0x40, 2, []byte{1, 2, 3}))
	data, err := q.ReadDeviceMemory(0x40, 1, 4)
	assert.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 2, 3}, data)

	present, err := q.Probe(0x40)
	assert.NoError(t, err)
	assert.True(t, present)
	present, err = q.Probe(0x41)
	assert.NoError(t, err)
	assert.False(t, present)
}

func TestBaseQueue_InvalidAddress(t *testing.T) {
	q := newTestQueue(t)
	defer q.Close()

	_, err := q.ReadDeviceMemory(0x80, 0, 1)
	assert.True(t, errors.Is(err, ErrInvalidAddress))

	var terr *TransportError
	assert.True(t, errors.As(err, &terr))
	assert.Equal(t, "read", terr.Op)
}

func TestBaseQueue_RecoverableError(t *testing.T) {
	q := newTestQueue(t)
	defer q.Close()

	q.fail = errBus
	err := q.WriteDeviceMemory(0x10, 0, []byte{1})
	assert.True(t, errors.Is(err, errBus))
	assert.False(t, errors.Is(err, ErrDeviceDisconnected))
	assert.ErrorContains(t, err, "write 1 bytes at 0x00 of device 0x10")

	q.fail = nil
	assert.NoError(t, q.WriteDeviceMemory(0x10, 0, []byte{1}))
}

func TestBaseQueue_TerminalError(t *testing.T) {
	q := newTestQueue(t)

	q.fail, q.terminal = errBus, true
	_, err := q.ReadDeviceMemory(0x10, 0, 1)
	assert.True(t, errors.Is(err, errBus))
	assert.True(t, errors.Is(err, ErrDeviceDisconnected))

	<-q.Closed()
	_, err = q.ReadDeviceMemory(0x10, 0, 1)
	assert.True(t, errors.Is(err, ErrDeviceDisconnected))

	assert.NoError(t, q.Close())
	assert.Equal(t, 1, q.closed)
}

func TestBaseQueue_Close(t *testing.T) {
	q := newTestQueue(t)

	assert.NoError(t, q.Close())
	assert.NoError(t, q.Close())
	assert.Equal(t, 1, q.closed)

	err := q.WriteDeviceMemory(0x10, 0, []byte{1})
	assert.True(t, errors.Is(err, ErrDeviceDisconnected))
}
