package rpcbridge

import (
	"context"
	"errors"
	"net"
	"testing"

	"i2cgui/i2c"
	"i2cgui/i2c/emulator"
	"i2cgui/i2c/mock"

	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
)

func newBridge(t *testing.T) (*Queue, *mock.Queue, *emulator.Device) {
	t.Helper()
	logger := log.NewTestLogger(t)

	system := emulator.NewSystem()
	dev, err := emulator.NewDevice(0x50, 0xFF, 0xFF)
	assert.NoError(t, err)
	assert.NoError(t, system.Attach(dev))
	local := mock.NewQueue(system, 0, logger)

	lis := bufconn.Listen(1 << 16)
	srv := grpc.NewServer()
	RegisterDeviceMemoryServer(srv, NewServer(local, logger))
	go func() { _ = srv.Serve(lis) }()

	cc, err := grpc.DialContext(context.Background(), "bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	assert.NoError(t, err)

	q := NewQueue(cc, logger)
	t.Cleanup(func() {
		_ = q.Close()
		srv.Stop()
		_ = local.Close()
	})
	return q, local, dev
}

func TestBridge_ReadWrite(t *testing.T) {
	q, local, dev := newBridge(t)

	assert.NoError(t, q.WriteDeviceMemory(0x50, 0x20, []byte{0x01, 0x02, 0x03}))
	assert.Equal(t, byte(0x03), dev.Registers[0x22])

	data, err := q.ReadDeviceMemory(0x50, 0x20, 3)
	assert.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, data)

	present, err := q.Probe(0x50)
	assert.NoError(t, err)
	assert.True(t, present)

	reads, writes, probes := local.Transactions()
	assert.Equal(t, int64(1), reads)
	assert.Equal(t, int64(1), writes)
	assert.Equal(t, int64(1), probes)
}

func TestBridge_Errors(t *testing.T) {
	q, local, _ := newBridge(t)

	err := q.WriteDeviceMemory(0x51, 0, []byte{1})
	assert.True(t, errors.Is(err, i2c.ErrNack))

	local.FailNext(errors.New("bus stuck"))
	_, err = q.ReadDeviceMemory(0x50, 0, 1)
	assert.ErrorContains(t, err, "bus stuck")
	assert.False(t, errors.Is(err, i2c.ErrDeviceDisconnected))

	// still usable:
	_, err = q.ReadDeviceMemory(0x50, 0, 1)
	assert.NoError(t, err)
}
