package wsbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/retroenv/retrogolib/log"
)

const dialTimeout = 5 * time.Second

var errClosed = errors.New("websocket closed")

// client speaks the bridge protocol over one websocket: every command frame is
// answered by exactly one result frame.
type client struct {
	url  string
	name string
	log  *log.Logger

	conn net.Conn
	r    *wsutil.Reader
	w    *wsutil.Writer
	// replies to pings and close frames from the bridge
	control wsutil.FrameHandlerFunc
}

// dial connects to the bridge at url and introduces itself as name.
func dial(url, name string, logger *log.Logger) (*client, error) {
	c := &client{url: url, name: name, log: logger}

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	c.log.Debug("wsbridge: dial", log.String("url", url))
	conn, br, _, err := ws.Dial(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("wsbridge: dial %s: %w", url, err)
	}
	// the server may have sent frames along with the handshake response:
	var src io.Reader = conn
	if br != nil {
		src = io.MultiReader(br, conn)
	}

	c.conn = conn
	c.control = wsutil.ControlFrameHandler(conn, ws.StateClientSide)
	c.r = &wsutil.Reader{
		Source:         src,
		State:          ws.StateClientSide,
		CheckUTF8:      true,
		OnIntermediate: c.control,
	}
	c.w = wsutil.NewWriter(conn, ws.StateClientSide, ws.OpText)

	if err = c.send(bridgeCommand{Opcode: opName, Name: name}); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func (c *client) Close() error {
	if c.conn == nil {
		return nil
	}
	c.log.Debug("wsbridge: close", log.String("url", c.url))
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *client) send(cmd bridgeCommand) error {
	if c.conn == nil {
		return fmt.Errorf("wsbridge: %s: %w", cmd.Opcode, errClosed)
	}

	if err := json.NewEncoder(c.w).Encode(cmd); err != nil {
		return fmt.Errorf("wsbridge: %s: encode: %w", cmd.Opcode, err)
	}
	if err := c.w.Flush(); err != nil {
		return fmt.Errorf("wsbridge: %s: send: %w", cmd.Opcode, err)
	}
	return nil
}

// receive reads the next text message, handling control frames on the way.
func (c *client) receive(op string, rsp *bridgeResult) error {
	if c.conn == nil {
		return fmt.Errorf("wsbridge: %s: %w", op, errClosed)
	}

	for {
		hdr, err := c.r.NextFrame()
		if err != nil {
			return fmt.Errorf("wsbridge: %s: read: %w", op, err)
		}
		if hdr.OpCode.IsControl() {
			if err = c.control(hdr, c.r); err != nil {
				_ = c.Close()
				return fmt.Errorf("wsbridge: %s: %w", op, errClosed)
			}
			continue
		}

		msg, err := io.ReadAll(c.r)
		if err != nil {
			return fmt.Errorf("wsbridge: %s: read: %w", op, err)
		}
		if err = json.Unmarshal(msg, rsp); err != nil {
			return fmt.Errorf("wsbridge: %s: decode: %w", op, err)
		}
		return nil
	}
}

// Do sends cmd and waits for its result.
func (c *client) Do(cmd bridgeCommand) (rsp bridgeResult, err error) {
	if err = c.send(cmd); err != nil {
		return
	}
	if err = c.receive(cmd.Opcode, &rsp); err != nil {
		return
	}
	err = rsp.err()
	return
}
