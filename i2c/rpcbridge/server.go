package rpcbridge

import (
	"context"
	"encoding/hex"
	"errors"

	"i2cgui/i2c"

	"github.com/retroenv/retrogolib/log"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Server serves a bus connection as the i2cgui.DeviceMemory service.
type Server struct {
	conn i2c.Conn
	log  *log.Logger
}

func NewServer(conn i2c.Conn, logger *log.Logger) *Server {
	return &Server{conn: conn, log: logger}
}

func statusOf(err error) error {
	switch {
	case errors.Is(err, i2c.ErrNack):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, i2c.ErrDeviceDisconnected):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, i2c.ErrInvalidAddress):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Aborted, err.Error())
	}
}

func deviceOf(v uint64) (uint8, error) {
	if v > 0x7F {
		return 0, status.Errorf(codes.InvalidArgument, "device address %#x is not a 7-bit address", v)
	}
	return uint8(v), nil
}

func (s *Server) Read(_ context.Context, in *structpb.Struct) (*wrapperspb.BytesValue, error) {
	f := in.GetFields()
	dev, err := deviceOf(uint64(f["device"].GetNumberValue()))
	if err != nil {
		return nil, err
	}

	data, err := s.conn.ReadDeviceMemory(dev, int(f["offset"].GetNumberValue()), int(f["length"].GetNumberValue()))
	if err != nil {
		s.log.Debug("rpcbridge: read", log.Hex("device", dev), log.Err(err))
		return nil, statusOf(err)
	}
	return wrapperspb.Bytes(data), nil
}

func (s *Server) Write(_ context.Context, in *structpb.Struct) (*emptypb.Empty, error) {
	f := in.GetFields()
	dev, err := deviceOf(uint64(f["device"].GetNumberValue()))
	if err != nil {
		return nil, err
	}
	data, err := hex.DecodeString(f["data"].GetStringValue())
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "data: %v", err)
	}

	if err = s.conn.WriteDeviceMemory(dev, int(f["offset"].GetNumberValue()), data); err != nil {
		s.log.Debug("rpcbridge: write", log.Hex("device", dev), log.Err(err))
		return nil, statusOf(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *Server) Probe(_ context.Context, in *wrapperspb.UInt32Value) (*wrapperspb.BoolValue, error) {
	dev, err := deviceOf(uint64(in.GetValue()))
	if err != nil {
		return nil, err
	}

	present, err := s.conn.Probe(dev)
	if err != nil {
		return nil, statusOf(err)
	}
	return wrapperspb.Bool(present), nil
}
