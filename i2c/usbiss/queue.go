package usbiss

import (
	"errors"
	"fmt"

	"i2cgui/i2c"

	"github.com/retroenv/retrogolib/log"
)

type Queue struct {
	i2c.BaseQueue

	// must be only accessed via Command.Execute
	f    port
	port string

	firmware byte
}

// newQueue identifies the adapter and switches it to 100kHz hardware I2C mode.
func newQueue(f port, portName string, logger *log.Logger) (*Queue, error) {
	q := &Queue{f: f, port: portName}

	if err := sendSerial(f, []byte{cmdISS, issVersion}); err != nil {
		return nil, fmt.Errorf("usbiss: %s: version: %w", portName, err)
	}
	version := make([]byte, 3)
	if err := recvSerial(f, version, 3); err != nil {
		return nil, fmt.Errorf("usbiss: %s: version: %w", portName, err)
	}
	if version[0] != moduleID {
		return nil, fmt.Errorf("usbiss: %s: unexpected module id 0x%02x", portName, version[0])
	}
	q.firmware = version[1]

	if err := sendSerial(f, []byte{cmdISS, issMode, modeI2CH100KHz, 0x00}); err != nil {
		return nil, fmt.Errorf("usbiss: %s: set mode: %w", portName, err)
	}
	rsp := make([]byte, 2)
	if err := recvSerial(f, rsp, 2); err != nil {
		return nil, fmt.Errorf("usbiss: %s: set mode: %w", portName, err)
	}
	if rsp[0] != 0xFF {
		return nil, fmt.Errorf("usbiss: %s: set mode rejected with error 0x%02x", portName, rsp[1])
	}

	logger.Info("usb-iss connected", log.String("port", portName), log.Hex("firmware", q.firmware))
	q.BaseInit(driverName, q, logger)
	return q, nil
}

func (q *Queue) CloseDevice() (err error) {
	err = q.f.Close()
	if err != nil {
		return fmt.Errorf("usbiss: could not close serial port: %w", err)
	}
	return
}

// IsTerminalError treats every serial port failure as fatal; a NACK only fails the
// transaction.
func (q *Queue) IsTerminalError(err error) bool {
	return !errors.Is(err, i2c.ErrNack)
}

func (q *Queue) MakeReadCommands(reqs []i2c.Read, batchComplete i2c.Completion) (cmds i2c.CommandSequence) {
	cmds = make(i2c.CommandSequence, 0, len(reqs))
	for _, req := range reqs {
		cmds = append(cmds, i2c.CommandWithCompletion{
			Command:    &readCommand{req},
			Completion: batchComplete,
		})
	}
	return
}

func (q *Queue) MakeWriteCommands(reqs []i2c.Write, batchComplete i2c.Completion) (cmds i2c.CommandSequence) {
	cmds = make(i2c.CommandSequence, 0, len(reqs))
	for _, req := range reqs {
		cmds = append(cmds, i2c.CommandWithCompletion{
			Command:    &writeCommand{req},
			Completion: batchComplete,
		})
	}
	return
}

func (q *Queue) MakeProbeCommands(deviceAddress uint8, complete func(bool)) i2c.CommandSequence {
	return i2c.CommandSequence{{Command: &probeCommand{deviceAddress, complete}}}
}

type readCommand struct {
	Request i2c.Read
}

func (r *readCommand) Execute(queue i2c.Queue) error {
	q := queue.(*Queue)
	req := r.Request

	data := make([]byte, req.Length)
	for o := 0; o < req.Length; {
		n := batchSize(req.Offset+o, req.Length-o)
		if err := sendSerial(q.f, readFrame(req.DeviceAddress, req.Offset+o, n)); err != nil {
			return err
		}
		if err := recvSerial(q.f, data[o:], n); err != nil {
			return err
		}
		o += n
	}

	if req.Completion != nil {
		req.Completion(i2c.Response{
			IsWrite:       false,
			DeviceAddress: req.DeviceAddress,
			Offset:        req.Offset,
			Data:          data,
		})
	}
	return nil
}

type writeCommand struct {
	Request i2c.Write
}

func (w *writeCommand) Execute(queue i2c.Queue) error {
	q := queue.(*Queue)
	req := w.Request

	ack := make([]byte, 1)
	for o := 0; o < len(req.Data); {
		n := batchSize(req.Offset+o, len(req.Data)-o)
		if err := sendSerial(q.f, writeFrame(req.DeviceAddress, req.Offset+o, req.Data[o:o+n])); err != nil {
			return err
		}
		if err := recvSerial(q.f, ack, 1); err != nil {
			return err
		}
		if ack[0] == 0 {
			return fmt.Errorf("usbiss: write at 0x%02x: %w", req.Offset+o, i2c.ErrNack)
		}
		o += n
	}

	if req.Completion != nil {
		req.Completion(i2c.Response{
			IsWrite:       true,
			DeviceAddress: req.DeviceAddress,
			Offset:        req.Offset,
			Data:          req.Data,
		})
	}
	return nil
}

type probeCommand struct {
	deviceAddress uint8
	complete      func(bool)
}

func (p *probeCommand) Execute(queue i2c.Queue) error {
	q := queue.(*Queue)

	if err := sendSerial(q.f, []byte{cmdI2CTest, addrWrite(p.deviceAddress)}); err != nil {
		return err
	}
	rsp := make([]byte, 1)
	if err := recvSerial(q.f, rsp, 1); err != nil {
		return err
	}
	p.complete(rsp[0] != 0)
	return nil
}
