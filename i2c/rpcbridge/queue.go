package rpcbridge

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"i2cgui/i2c"

	"github.com/retroenv/retrogolib/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const callTimeout = 5 * time.Second

type Queue struct {
	i2c.BaseQueue

	cc     *grpc.ClientConn
	client DeviceMemoryClient
}

// NewQueue takes ownership of cc.
func NewQueue(cc *grpc.ClientConn, logger *log.Logger) *Queue {
	q := &Queue{cc: cc, client: NewDeviceMemoryClient(cc)}
	q.BaseInit(driverName, q, logger)
	return q
}

func (q *Queue) CloseDevice() error {
	return q.cc.Close()
}

func (q *Queue) IsTerminalError(err error) bool {
	if st, ok := status.FromError(err); ok {
		if st.Code() == codes.Unavailable {
			return true
		}
		if st.Code() == codes.Internal {
			return true
		}
	}
	return false
}

// fromStatus maps bridge status codes back onto bus errors.
func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.FailedPrecondition:
		return fmt.Errorf("rpcbridge: %s: %w", st.Message(), i2c.ErrNack)
	case codes.InvalidArgument:
		return fmt.Errorf("rpcbridge: %s: %w", st.Message(), i2c.ErrInvalidAddress)
	}
	return err
}

func (q *Queue) MakeReadCommands(reqs []i2c.Read, batchComplete i2c.Completion) i2c.CommandSequence {
	seq := make(i2c.CommandSequence, 0, len(reqs))
	for _, req := range reqs {
		seq = append(seq, i2c.CommandWithCompletion{Command: &readCommand{req}, Completion: batchComplete})
	}
	return seq
}

func (q *Queue) MakeWriteCommands(reqs []i2c.Write, batchComplete i2c.Completion) i2c.CommandSequence {
	seq := make(i2c.CommandSequence, 0, len(reqs))
	for _, req := range reqs {
		seq = append(seq, i2c.CommandWithCompletion{Command: &writeCommand{req}, Completion: batchComplete})
	}
	return seq
}

func (q *Queue) MakeProbeCommands(deviceAddress uint8, complete func(bool)) i2c.CommandSequence {
	return i2c.CommandSequence{{Command: &probeCommand{deviceAddress, complete}}}
}

type readCommand struct {
	Request i2c.Read
}

func (r *readCommand) Execute(queue i2c.Queue) (err error) {
	q := queue.(*Queue)

	var in *structpb.Struct
	in, err = structpb.NewStruct(map[string]interface{}{
		"device": int(r.Request.DeviceAddress),
		"offset": r.Request.Offset,
		"length": r.Request.Length,
	})
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	var rsp *wrapperspb.BytesValue
	rsp, err = q.client.Read(ctx, in)
	if err != nil {
		return fromStatus(err)
	}

	if r.Request.Completion != nil {
		r.Request.Completion(i2c.Response{
			IsWrite:       false,
			DeviceAddress: r.Request.DeviceAddress,
			Offset:        r.Request.Offset,
			Data:          rsp.GetValue(),
		})
	}
	return
}

type writeCommand struct {
	Request i2c.Write
}

func (w *writeCommand) Execute(queue i2c.Queue) (err error) {
	q := queue.(*Queue)

	var in *structpb.Struct
	in, err = structpb.NewStruct(map[string]interface{}{
		"device": int(w.Request.DeviceAddress),
		"offset": w.Request.Offset,
		"data":   hex.EncodeToString(w.Request.Data),
	})
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	if _, err = q.client.Write(ctx, in); err != nil {
		return fromStatus(err)
	}

	if w.Request.Completion != nil {
		w.Request.Completion(i2c.Response{
			IsWrite:       true,
			DeviceAddress: w.Request.DeviceAddress,
			Offset:        w.Request.Offset,
			Data:          w.Request.Data,
		})
	}
	return
}

type probeCommand struct {
	deviceAddress uint8
	complete      func(bool)
}

func (p *probeCommand) Execute(queue i2c.Queue) error {
	q := queue.(*Queue)

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	rsp, err := q.client.Probe(ctx, wrapperspb.UInt32(uint32(p.deviceAddress)))
	if err != nil {
		return fromStatus(err)
	}
	p.complete(rsp.GetValue())
	return nil
}
