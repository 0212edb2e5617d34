// Package rpcbridge reaches a remote bus through the i2cgui.DeviceMemory gRPC
// service and serves a local bus the same way.
package rpcbridge

import (
	"context"
	"fmt"
	"time"

	"i2cgui/i2c"
	"i2cgui/util/env"

	"github.com/retroenv/retrogolib/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const driverName = "rpcbridge"

type Driver struct {
	Address string
}

func (d *Driver) DisplayOrder() int {
	return 2
}

func (d *Driver) DisplayName() string {
	return "gRPC Bridge"
}

func (d *Driver) DisplayDescription() string {
	return "Connect to a bus served by i2cbridge over gRPC"
}

func (d *Driver) Empty() i2c.DeviceDescriptor {
	return &DeviceDescriptor{}
}

// Detect reports the configured bridge if it is reachable.
func (d *Driver) Detect() ([]i2c.DeviceDescriptor, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	cc, err := grpc.DialContext(ctx, d.Address,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	)
	if err != nil {
		return nil, nil
	}
	_ = cc.Close()

	return []i2c.DeviceDescriptor{DeviceDescriptor{Address: d.Address}}, nil
}

func (d *Driver) Open(desc i2c.DeviceDescriptor, logger *log.Logger) (i2c.Conn, error) {
	address := d.Address
	switch dd := desc.(type) {
	case DeviceDescriptor:
		address = dd.Address
	case *DeviceDescriptor:
		address = dd.Address
	}

	cc, err := grpc.Dial(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("rpcbridge: dial %s: %w", address, err)
	}
	return NewQueue(cc, logger), nil
}

func init() {
	i2c.Register(driverName, &Driver{
		Address: env.GetOrDefault("I2CGUI_RPC_ADDRESS", "localhost:8191"),
	})
}
