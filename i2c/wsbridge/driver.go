// Package wsbridge reaches a remote bus through a JSON protocol over websockets and
// serves a local bus the same way.
package wsbridge

import (
	"context"
	"fmt"
	"time"

	"i2cgui/i2c"
	"i2cgui/util/env"

	"github.com/gobwas/ws"
	"github.com/retroenv/retrogolib/log"
)

const (
	driverName = "wsbridge"
	appName    = "i2cgui"
)

type Driver struct {
	URL string
}

func (d *Driver) DisplayOrder() int {
	return 1
}

func (d *Driver) DisplayName() string {
	return "Websocket Bridge"
}

func (d *Driver) DisplayDescription() string {
	return "Connect to a bus served by i2cbridge over websockets"
}

func (d *Driver) Empty() i2c.DeviceDescriptor {
	return &DeviceDescriptor{}
}

// Detect reports the configured bridge if it accepts a websocket connection.
func (d *Driver) Detect() ([]i2c.DeviceDescriptor, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	conn, _, _, err := ws.Dial(ctx, d.URL)
	if err != nil {
		return nil, nil
	}
	_ = conn.Close()

	return []i2c.DeviceDescriptor{DeviceDescriptor{URL: d.URL}}, nil
}

func (d *Driver) Open(desc i2c.DeviceDescriptor, logger *log.Logger) (i2c.Conn, error) {
	url := d.URL
	switch dd := desc.(type) {
	case DeviceDescriptor:
		url = dd.URL
	case *DeviceDescriptor:
		url = dd.URL
	}
	if url == "" {
		return nil, fmt.Errorf("wsbridge: no bridge url")
	}

	c, err := dial(url, appName, logger)
	if err != nil {
		return nil, err
	}
	q := &Queue{client: c}
	q.BaseInit(driverName, q, logger)
	return q, nil
}

func init() {
	i2c.Register(driverName, &Driver{
		URL: env.GetOrDefault("I2CGUI_WS_URL", "ws://localhost:8090/i2c"),
	})
}
