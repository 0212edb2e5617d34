package mock

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"i2cgui/i2c"
	"i2cgui/i2c/emulator"

	"github.com/retroenv/retrogolib/log"
)

type Queue struct {
	i2c.BaseQueue

	system  *emulator.System
	latency time.Duration

	reads  atomic.Int64
	writes atomic.Int64
	probes atomic.Int64

	failLock sync.Mutex
	failNext error
}

func NewQueue(system *emulator.System, latency time.Duration, logger *log.Logger) *Queue {
	q := &Queue{system: system, latency: latency}
	q.BaseInit(driverName, q, logger)
	return q
}

func (q *Queue) CloseDevice() error { return nil }

func (q *Queue) IsTerminalError(err error) bool {
	return errors.Is(err, i2c.ErrDeviceDisconnected)
}

// FailNext makes the next transaction fail with err.
func (q *Queue) FailNext(err error) {
	q.failLock.Lock()
	q.failNext = err
	q.failLock.Unlock()
}

// Transactions returns the number of read, write and probe transactions executed.
func (q *Queue) Transactions() (reads, writes, probes int64) {
	return q.reads.Load(), q.writes.Load(), q.probes.Load()
}

func (q *Queue) transaction(deviceAddress uint8) (*emulator.Device, error) {
	q.failLock.Lock()
	err := q.failNext
	q.failNext = nil
	q.failLock.Unlock()
	if err != nil {
		return nil, err
	}

	if q.latency > 0 {
		<-time.After(q.latency)
	}

	d, ok := q.system.Device(deviceAddress)
	if !ok {
		return nil, fmt.Errorf("mock: device 0x%02x: %w", deviceAddress, i2c.ErrNack)
	}
	return d, nil
}

func (q *Queue) MakeReadCommands(reqs []i2c.Read, complete i2c.Completion) i2c.CommandSequence {
	seq := make(i2c.CommandSequence, 0, len(reqs))
	for _, req := range reqs {
		seq = append(seq, i2c.CommandWithCompletion{Command: &readCommand{req}})
	}
	if complete != nil && len(seq) > 0 {
		seq[len(seq)-1].Completion = complete
	}
	return seq
}

func (q *Queue) MakeWriteCommands(reqs []i2c.Write, complete i2c.Completion) i2c.CommandSequence {
	seq := make(i2c.CommandSequence, 0, len(reqs))
	for _, req := range reqs {
		seq = append(seq, i2c.CommandWithCompletion{Command: &writeCommand{req}})
	}
	if complete != nil && len(seq) > 0 {
		seq[len(seq)-1].Completion = complete
	}
	return seq
}

func (q *Queue) MakeProbeCommands(deviceAddress uint8, complete func(bool)) i2c.CommandSequence {
	return i2c.CommandSequence{{Command: &probeCommand{deviceAddress, complete}}}
}

type readCommand struct {
	Request i2c.Read
}

func (r *readCommand) Execute(queue i2c.Queue) error {
	q, ok := queue.(*Queue)
	if !ok {
		return fmt.Errorf("queue is not of expected internal type")
	}

	q.reads.Add(1)
	d, err := q.transaction(r.Request.DeviceAddress)
	if err != nil {
		return err
	}

	if r.Request.Completion != nil {
		r.Request.Completion(i2c.Response{
			IsWrite:       false,
			DeviceAddress: r.Request.DeviceAddress,
			Offset:        r.Request.Offset,
			Data:          d.Read(r.Request.Offset, r.Request.Length),
		})
	}
	return nil
}

type writeCommand struct {
	Request i2c.Write
}

func (w *writeCommand) Execute(queue i2c.Queue) error {
	q, ok := queue.(*Queue)
	if !ok {
		return fmt.Errorf("queue is not of expected internal type")
	}

	q.writes.Add(1)
	d, err := q.transaction(w.Request.DeviceAddress)
	if err != nil {
		return err
	}

	d.Write(w.Request.Offset, w.Request.Data)
	if w.Request.Completion != nil {
		w.Request.Completion(i2c.Response{
			IsWrite:       true,
			DeviceAddress: w.Request.DeviceAddress,
			Offset:        w.Request.Offset,
			Data:          w.Request.Data,
		})
	}
	return nil
}

type probeCommand struct {
	deviceAddress uint8
	complete      func(bool)
}

func (p *probeCommand) Execute(queue i2c.Queue) error {
	q, ok := queue.(*Queue)
	if !ok {
		return fmt.Errorf("queue is not of expected internal type")
	}

	q.probes.Add(1)
	_, err := q.transaction(p.deviceAddress)
	if errors.Is(err, i2c.ErrNack) {
		p.complete(false)
		return nil
	}
	if err != nil {
		return err
	}
	p.complete(true)
	return nil
}
