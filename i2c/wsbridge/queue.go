package wsbridge

import (
	"errors"

	"i2cgui/i2c"
)

type Queue struct {
	i2c.BaseQueue

	// must be only accessed via Command.Execute
	client *client
}

func (q *Queue) CloseDevice() error {
	return q.client.Close()
}

// IsTerminalError reports websocket failures; errors reported by the bridge for a
// single transaction leave the connection usable.
func (q *Queue) IsTerminalError(err error) bool {
	var rerr *RemoteError
	if errors.As(err, &rerr) {
		return rerr.Code == codeDisconnected
	}
	return true
}

func (q *Queue) MakeReadCommands(reqs []i2c.Read, batchComplete i2c.Completion) i2c.CommandSequence {
	seq := make(i2c.CommandSequence, 0, len(reqs))
	for _, req := range reqs {
		seq = append(seq, i2c.CommandWithCompletion{
			Command:    &readCommand{req},
			Completion: batchComplete,
		})
	}
	return seq
}

func (q *Queue) MakeWriteCommands(reqs []i2c.Write, batchComplete i2c.Completion) i2c.CommandSequence {
	seq := make(i2c.CommandSequence, 0, len(reqs))
	for _, req := range reqs {
		seq = append(seq, i2c.CommandWithCompletion{
			Command:    &writeCommand{req},
			Completion: batchComplete,
		})
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
	q := queue.(*Queue)

	rsp, err := q.client.Do(bridgeCommand{
		Opcode: opRead,
		Device: r.Request.DeviceAddress,
		Offset: r.Request.Offset,
		Length: r.Request.Length,
	})
	if err != nil {
		return err
	}

	if r.Request.Completion != nil {
		r.Request.Completion(i2c.Response{
			IsWrite:       false,
			DeviceAddress: r.Request.DeviceAddress,
			Offset:        r.Request.Offset,
			Data:          rsp.Data,
		})
	}
	return nil
}

type writeCommand struct {
	Request i2c.Write
}

func (w *writeCommand) Execute(queue i2c.Queue) error {
	q := queue.(*Queue)

	_, err := q.client.Do(bridgeCommand{
		Opcode: opWrite,
		Device: w.Request.DeviceAddress,
		Offset: w.Request.Offset,
		Data:   w.Request.Data,
	})
	if err != nil {
		return err
	}

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
	q := queue.(*Queue)

	rsp, err := q.client.Do(bridgeCommand{Opcode: opProbe, Device: p.deviceAddress})
	if err != nil {
		return err
	}
	p.complete(rsp.Present)
	return nil
}
