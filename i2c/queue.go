package i2c

import (
	"fmt"

	"github.com/retroenv/retrogolib/log"
)

const chanSize = 8

// Queue is implemented by drivers: it executes commands against the device on the
// queue's own goroutine. Drivers embed BaseQueue to get the synchronous Conn.
type Queue interface {
	Conn

	// CloseDevice releases the device; called once from the queue goroutine.
	CloseDevice() error

	// IsTerminalError reports whether err leaves the device unusable.
	IsTerminalError(err error) bool

	MakeReadCommands(reqs []Read, complete Completion) CommandSequence
	MakeWriteCommands(reqs []Write, complete Completion) CommandSequence
	MakeProbeCommands(deviceAddress uint8, complete func(present bool)) CommandSequence
}

type BaseQueue struct {
	// driver name
	name string
	log  *log.Logger

	// command execution queue:
	cq   chan CommandWithCompletion
	done chan struct{}

	// derived Queue struct:
	queue Queue
}

func (b *BaseQueue) BaseInit(name string, queue Queue, logger *log.Logger) {
	if queue == nil {
		panic("queue must not be nil")
	}

	b.name = name
	b.log = logger
	b.cq = make(chan CommandWithCompletion, chanSize)
	b.done = make(chan struct{})
	b.queue = queue

	go b.handleQueue()
}

func (b *BaseQueue) Name() string { return b.name }

// Closed is closed once the queue has stopped executing commands.
func (b *BaseQueue) Closed() <-chan struct{} { return b.done }

func (b *BaseQueue) Enqueue(cmd CommandWithCompletion) error {
	select {
	case <-b.done:
		return fmt.Errorf("i2c: %s: %w", b.name, ErrDeviceDisconnected)
	default:
	}

	select {
	case b.cq <- cmd:
		return nil
	case <-b.done:
		return fmt.Errorf("i2c: %s: %w", b.name, ErrDeviceDisconnected)
	}
}

func (b *BaseQueue) handleQueue() {
	q := b.queue

	defer func() {
		b.log.Debug("closing device", log.String("driver", b.name))
		if err := q.CloseDevice(); err != nil {
			b.log.Error("close device", log.String("driver", b.name), log.Err(err))
		}
		close(b.done)
		b.drain(ErrDeviceDisconnected)
	}()

	for pair := range b.cq {
		cmd := pair.Command
		if cmd == nil {
			break
		}

		terminal := false

		if _, ok := cmd.(*closeCommand); ok {
			b.log.Debug("closing queue", log.String("driver", b.name))
			terminal = true
		}

		err := cmd.Execute(q)
		// wrap the error if it is a terminal case:
		if err != nil && q.IsTerminalError(err) {
			err = &TerminalError{err}
			terminal = true
		}
		if pair.Completion != nil {
			pair.Completion(cmd, err)
		} else if err != nil {
			b.log.Error("command failed", log.String("driver", b.name), log.Err(err))
		}

		if terminal {
			break
		}
	}
}

// drain completes every pending command with err without executing it.
func (b *BaseQueue) drain(err error) {
	for {
		select {
		case pair := <-b.cq:
			if pair.Completion != nil {
				pair.Completion(pair.Command, err)
			}
		default:
			return
		}
	}
}

// submit runs seq as one command and waits for it to complete.
func (b *BaseQueue) submit(seq CommandSequence) error {
	complete := make(chan error, 1)
	err := b.Enqueue(CommandWithCompletion{
		Command:    seq,
		Completion: func(_ Command, err error) { complete <- err },
	})
	if err != nil {
		return err
	}

	select {
	case err = <-complete:
		return err
	case <-b.done:
		// the command may have completed just before the queue stopped:
		select {
		case err = <-complete:
			return err
		default:
			return fmt.Errorf("i2c: %s: %w", b.name, ErrDeviceDisconnected)
		}
	}
}

func (b *BaseQueue) ReadDeviceMemory(deviceAddress uint8, offset, length int) (data []byte, err error) {
	terr := &TransportError{Op: "read", DeviceAddress: deviceAddress, Offset: offset, Length: length}
	if terr.Err = ValidDeviceAddress(deviceAddress); terr.Err != nil {
		return nil, terr
	}

	seq := b.queue.MakeReadCommands([]Read{{
		DeviceAddress: deviceAddress,
		Offset:        offset,
		Length:        length,
		Completion:    func(rsp Response) { data = rsp.Data },
	}}, nil)
	if terr.Err = b.submit(seq); terr.Err != nil {
		return nil, terr
	}
	if len(data) != length {
		terr.Err = fmt.Errorf("%w: got %d bytes", ErrShortRead, len(data))
		return nil, terr
	}
	return data, nil
}

func (b *BaseQueue) WriteDeviceMemory(deviceAddress uint8, offset int, data []byte) error {
	terr := &TransportError{Op: "write", DeviceAddress: deviceAddress, Offset: offset, Length: len(data)}
	if terr.Err = ValidDeviceAddress(deviceAddress); terr.Err != nil {
		return terr
	}

	seq := b.queue.MakeWriteCommands([]Write{{
		DeviceAddress: deviceAddress,
		Offset:        offset,
		Data:          data,
	}}, nil)
	if terr.Err = b.submit(seq); terr.Err != nil {
		return terr
	}
	return nil
}

func (b *BaseQueue) Probe(deviceAddress uint8) (present bool, err error) {
	if err = ValidDeviceAddress(deviceAddress); err != nil {
		return
	}

	seq := b.queue.MakeProbeCommands(deviceAddress, func(p bool) { present = p })
	if err = b.submit(seq); err != nil {
		return false, &TransportError{Op: "probe", DeviceAddress: deviceAddress, Err: err}
	}
	return
}

// Close stops the queue after the commands already enqueued and waits for the
// device to be released.
func (b *BaseQueue) Close() error {
	_ = b.Enqueue(CommandWithCompletion{Command: &closeCommand{}})
	<-b.done
	return nil
}
