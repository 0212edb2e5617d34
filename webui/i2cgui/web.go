package main

import (
	"encoding/json"
	"io"
	"io/fs"
	"net"
	"net/http"
	"sync"

	"i2cgui/interfaces"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/retroenv/retrogolib/log"
)

// WebServer serves the browser UI and keeps one websocket per open page. View model
// updates are broadcast to every page; commands from any page go to the root view model.
type WebServer struct {
	listenAddr string
	log        *log.Logger

	commandHandler interfaces.ViewCommandHandler

	mux *http.ServeMux

	socketsLock sync.RWMutex
	sockets     []*viewSocket

	broadcast chan ViewModelUpdate
}

// ViewModelUpdate is the message pushed to the page for every changed view.
type ViewModelUpdate struct {
	View      string      `json:"v"`
	ViewModel interface{} `json:"m"`
}

// CommandRequest is the message a page sends to run a command of a view.
type CommandRequest struct {
	View    string          `json:"v"`
	Command string          `json:"c"`
	Args    json.RawMessage `json:"a"`
}

// NewWebServer serves the UI from content and talks to it over websockets at /ws/.
func NewWebServer(listenAddr string, content fs.FS, logger *log.Logger) *WebServer {
	s := &WebServer{
		listenAddr: listenAddr,
		log:        logger,
		mux:        http.NewServeMux(),
		broadcast:  make(chan ViewModelUpdate, 16),
	}

	s.mux.HandleFunc("/ws/", s.upgrade)
	s.mux.Handle("/", MaxAge(http.FileServer(http.FS(content))))

	go s.fanOut()
	return s
}

func (s *WebServer) Handler() http.Handler { return s.mux }

func (s *WebServer) Serve() error {
	return http.ListenAndServe(s.listenAddr, s.mux)
}

func (s *WebServer) ProvideViewCommandHandler(commandHandler interfaces.ViewCommandHandler) {
	s.commandHandler = commandHandler
}

// NotifyView queues an update for every connected page.
func (s *WebServer) NotifyView(view string, viewModel interface{}) {
	s.broadcast <- ViewModelUpdate{View: view, ViewModel: viewModel}
}

func (s *WebServer) upgrade(rw http.ResponseWriter, req *http.Request) {
	conn, _, _, err := ws.UpgradeHTTP(req, rw)
	if err != nil {
		s.log.Warn("Websocket upgrade failed", log.String("remote", req.RemoteAddr), log.Err(err))
		return
	}

	k := newViewSocket(s, req.RemoteAddr, conn)
	s.socketsLock.Lock()
	s.sockets = append(s.sockets, k)
	s.socketsLock.Unlock()

	s.log.Debug("Page connected", log.String("remote", k.remote))

	// a new page starts with every view:
	if s.commandHandler != nil {
		s.commandHandler.NotifyViewTo(k)
	}
}

func (s *WebServer) forget(k *viewSocket) {
	s.socketsLock.Lock()
	defer s.socketsLock.Unlock()

	for i, sk := range s.sockets {
		if sk == k {
			s.sockets = append(s.sockets[:i], s.sockets[i+1:]...)
			return
		}
	}
}

func (s *WebServer) fanOut() {
	for u := range s.broadcast {
		s.socketsLock.RLock()
		sockets := append([]*viewSocket(nil), s.sockets...)
		s.socketsLock.RUnlock()

		for _, k := range sockets {
			k.NotifyView(u.View, u.ViewModel)
		}
	}
}

// lockedWriter serializes frames written by the update loop and by control frame
// replies.
type lockedWriter struct {
	lock sync.Mutex
	w    io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.w.Write(p)
}

type viewSocket struct {
	s      *WebServer
	remote string
	conn   net.Conn
	out    *lockedWriter

	updates chan ViewModelUpdate
	// closed by the read loop, which owns the lifetime of the socket
	done chan struct{}
}

func newViewSocket(s *WebServer, remote string, conn net.Conn) *viewSocket {
	k := &viewSocket{
		s:       s,
		remote:  remote,
		conn:    conn,
		out:     &lockedWriter{w: conn},
		updates: make(chan ViewModelUpdate, 64),
		done:    make(chan struct{}),
	}

	go k.readLoop()
	go k.writeLoop()
	return k
}

func (k *viewSocket) NotifyView(view string, viewModel interface{}) {
	select {
	case k.updates <- ViewModelUpdate{View: view, ViewModel: viewModel}:
	case <-k.done:
	}
}

func (k *viewSocket) readLoop() {
	defer func() {
		close(k.done)
		_ = k.conn.Close()
		k.s.forget(k)
		k.s.log.Debug("Page disconnected", log.String("remote", k.remote))
	}()

	control := wsutil.ControlFrameHandler(k.out, ws.StateServerSide)
	r := &wsutil.Reader{
		Source:         k.conn,
		State:          ws.StateServerSide,
		CheckUTF8:      true,
		OnIntermediate: control,
	}

	for {
		hdr, err := r.NextFrame()
		if err != nil {
			return
		}
		if hdr.OpCode.IsControl() {
			// replies to pings; a close frame ends the loop:
			if err = control(hdr, r); err != nil {
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
		if err = k.execute(msg); err != nil {
			k.s.log.Warn("Command failed", log.String("remote", k.remote), log.Err(err))
		}
	}
}

func (k *viewSocket) execute(msg []byte) error {
	var creq CommandRequest
	if err := json.Unmarshal(msg, &creq); err != nil {
		return err
	}

	if k.s.commandHandler == nil {
		return errNoCommandHandler
	}

	ce, err := k.s.commandHandler.CommandFor(creq.View, creq.Command)
	if err != nil {
		return err
	}

	args := ce.CreateArgs()
	if args != nil && len(creq.Args) > 0 {
		if err = json.Unmarshal(creq.Args, args); err != nil {
			return err
		}
	}

	// failures reach the page through the status view:
	return ce.Execute(args)
}

func (k *viewSocket) writeLoop() {
	w := wsutil.NewWriter(k.out, ws.StateServerSide, ws.OpText)
	encoder := json.NewEncoder(w)

	for {
		var u ViewModelUpdate
		select {
		case u = <-k.updates:
		case <-k.done:
			return
		}

		if err := encoder.Encode(&u); err != nil {
			k.s.log.Warn("Could not encode view model", log.String("view", u.View), log.Err(err))
			w.Reset(k.out, ws.StateServerSide, ws.OpText)
			continue
		}
		if err := w.Flush(); err != nil {
			k.s.log.Debug("Websocket write failed", log.String("remote", k.remote), log.Err(err))
			return
		}
	}
}
