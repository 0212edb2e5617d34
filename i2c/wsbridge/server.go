package wsbridge

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"

	"i2cgui/i2c"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/retroenv/retrogolib/log"
)

// Server exposes a bus connection to websocket clients.
type Server struct {
	conn i2c.Conn
	log  *log.Logger
}

func NewServer(conn i2c.Conn, logger *log.Logger) *Server {
	return &Server{conn: conn, log: logger}
}

func (s *Server) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	// UpgradeHTTP answers failed handshakes itself:
	conn, _, _, err := ws.UpgradeHTTP(req, rw)
	if err != nil {
		s.log.Error("wsbridge: upgrade", log.String("remote", req.RemoteAddr), log.Err(err))
		return
	}

	go s.handle(conn, req.RemoteAddr)
}

func (s *Server) handle(conn net.Conn, remote string) {
	defer conn.Close()

	var (
		control = wsutil.ControlFrameHandler(conn, ws.StateServerSide)
		r       = &wsutil.Reader{Source: conn, State: ws.StateServerSide, CheckUTF8: true, OnIntermediate: control}
		w       = wsutil.NewWriter(conn, ws.StateServerSide, ws.OpText)
		encoder = json.NewEncoder(w)
		client  = remote
	)

	for {
		hdr, err := r.NextFrame()
		if err != nil {
			s.log.Debug("wsbridge: read frame", log.String("client", client), log.Err(err))
			return
		}
		if hdr.OpCode.IsControl() {
			if err = control(hdr, r); err != nil {
				s.log.Debug("wsbridge: client left", log.String("client", client))
				return
			}
			continue
		}
		if hdr.OpCode != ws.OpText {
			if err = r.Discard(); err != nil {
				return
			}
			continue
		}

		msg, err := io.ReadAll(r)
		if err != nil {
			return
		}
		var cmd bridgeCommand
		if err = json.Unmarshal(msg, &cmd); err != nil {
			s.log.Warn("wsbridge: decode command", log.String("client", client), log.Err(err))
			return
		}

		if cmd.Opcode == opName {
			client = fmt.Sprintf("%s (%s)", cmd.Name, remote)
			s.log.Info("wsbridge: client connected", log.String("client", client))
			continue
		}

		rsp := s.execute(cmd)
		if err = encoder.Encode(&rsp); err != nil {
			s.log.Warn("wsbridge: encode result", log.String("client", client), log.Err(err))
			return
		}
		if err = w.Flush(); err != nil {
			return
		}
	}
}

func (s *Server) execute(cmd bridgeCommand) bridgeResult {
	switch cmd.Opcode {
	case opRead:
		data, err := s.conn.ReadDeviceMemory(cmd.Device, cmd.Offset, cmd.Length)
		if err != nil {
			return resultError(err)
		}
		return bridgeResult{Data: data}
	case opWrite:
		if err := s.conn.WriteDeviceMemory(cmd.Device, cmd.Offset, cmd.Data); err != nil {
			return resultError(err)
		}
		return bridgeResult{}
	case opProbe:
		present, err := s.conn.Probe(cmd.Device)
		if err != nil {
			return resultError(err)
		}
		return bridgeResult{Present: present}
	default:
		return bridgeResult{Code: codeError, Error: fmt.Sprintf("unknown opcode %q", cmd.Opcode)}
	}
}
