package main

import (
	"context"
	"net"
	"testing"
	"time"

	"i2cgui/i2c/mock"
	"i2cgui/i2c/rpcbridge"
	"i2cgui/i2c/wsbridge"

	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NoError(t, err)
	addr := ln.Addr().String()
	assert.NoError(t, ln.Close())
	return addr
}

func TestOpenBus(t *testing.T) {
	logger := log.NewTestLogger(t)

	conn, err := openBus(options{Driver: "mock"}, logger)
	assert.NoError(t, err)
	assert.NoError(t, conn.Close())

	conn, err = openBus(options{Driver: "mock", Device: `{"name":"7"}`}, logger)
	assert.NoError(t, err)
	assert.NoError(t, conn.Close())

	_, err = openBus(options{Driver: "nope"}, logger)
	assert.Error(t, err)
	_, err = openBus(options{Driver: "mock", Device: "not json"}, logger)
	assert.Error(t, err)
}

func TestBridge_Run(t *testing.T) {
	logger := log.NewTestLogger(t)
	local := mock.NewQueue(mock.NewDemoSystem(), 0, logger)
	defer local.Close()

	wsAddr, rpcAddr := freeAddr(t), freeAddr(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	b := &bridge{log: logger, conn: local}
	go func() { done <- b.run(ctx, wsAddr, rpcAddr) }()

	var (
		ws  = &wsbridge.Driver{}
		rpc = &rpcbridge.Driver{}
	)

	// wait for the listeners:
	var err error
	for i := 0; i < 50; i++ {
		var c net.Conn
		if c, err = net.Dial("tcp", rpcAddr); err == nil {
			_ = c.Close()
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	assert.NoError(t, err)

	wsConn, err := ws.Open(wsbridge.DeviceDescriptor{URL: "ws://" + wsAddr + "/i2c"}, logger)
	assert.NoError(t, err)
	defer wsConn.Close()
	data, err := wsConn.ReadDeviceMemory(0x48, 0xFC, 2)
	assert.NoError(t, err)
	assert.Equal(t, []byte{0x49, 0x32}, data)

	rpcConn, err := rpc.Open(rpcbridge.DeviceDescriptor{Address: rpcAddr}, logger)
	assert.NoError(t, err)
	defer rpcConn.Close()
	assert.NoError(t, rpcConn.WriteDeviceMemory(0x48, 0x10, []byte{0xAA}))
	data, err = wsConn.ReadDeviceMemory(0x48, 0x10, 1)
	assert.NoError(t, err)
	assert.Equal(t, []byte{0xAA}, data)

	cancel()
	select {
	case err = <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("bridge did not shut down")
	}
}

func TestBridge_NothingToServe(t *testing.T) {
	b := &bridge{log: log.NewTestLogger(t)}
	assert.Error(t, b.run(context.Background(), "", ""))
}
