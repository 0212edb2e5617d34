package engine

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"i2cgui/i2c/wsbridge"
	"i2cgui/interfaces"

	"github.com/retroenv/retrogolib/log"
)

// BridgeViewModel shares the connected bus with other machines over the websocket
// bridge protocol.
type BridgeViewModel struct {
	commands map[string]interfaces.Command

	root *ViewModel

	lock    sync.Mutex
	isDirty bool
	server  *http.Server

	IsServing  bool   `json:"isServing"`
	ListenAddr string `json:"listenAddr"`
	Error      string `json:"error"`
}

type BridgeConfiguration struct {
	ListenAddr string `json:"listenAddr"`
	Serve      bool   `json:"serve"`
}

func NewBridgeViewModel(root *ViewModel) *BridgeViewModel {
	v := &BridgeViewModel{
		root:       root,
		ListenAddr: "localhost:8090",
		isDirty:    true,
	}

	v.commands = map[string]interfaces.Command{
		"start": &BridgeStartCommand{v},
		"stop":  &BridgeStopCommand{v},
	}

	return v
}

func (v *BridgeViewModel) LoadConfiguration(config *BridgeConfiguration) {
	if config == nil {
		return
	}
	if config.ListenAddr != "" {
		v.lock.Lock()
		v.ListenAddr = config.ListenAddr
		v.lock.Unlock()
	}
	if config.Serve {
		if err := v.Start(config.ListenAddr); err != nil {
			v.root.log.Warn("Could not start configured bridge", log.Err(err))
		}
	}
}

func (v *BridgeViewModel) SaveConfiguration(config *BridgeConfiguration) {
	if config == nil {
		return
	}

	defer v.lock.Unlock()
	v.lock.Lock()
	config.ListenAddr = v.ListenAddr
	config.Serve = v.IsServing
}

func (v *BridgeViewModel) IsDirty() bool {
	defer v.lock.Unlock()
	v.lock.Lock()
	return v.isDirty
}

func (v *BridgeViewModel) ClearDirty() {
	defer v.lock.Unlock()
	v.lock.Lock()
	v.isDirty = false
}

func (v *BridgeViewModel) MarkDirty() {
	defer v.lock.Unlock()
	v.lock.Lock()
	v.isDirty = true
}

func (v *BridgeViewModel) ViewModel() interface{} {
	defer v.lock.Unlock()
	v.lock.Lock()
	return &BridgeViewModel{
		IsServing:  v.IsServing,
		ListenAddr: v.ListenAddr,
		Error:      v.Error,
	}
}

func (v *BridgeViewModel) CommandFor(command string) (ce interfaces.Command, err error) {
	var ok bool
	ce, ok = v.commands[command]
	if !ok {
		err = fmt.Errorf("no command '%s' found", command)
	}
	return
}

// Start listens on listenAddr and serves the bridge at /i2c. An empty address keeps
// the current one.
func (v *BridgeViewModel) Start(listenAddr string) error {
	defer func() {
		v.root.UpdateAndNotifyView()
		v.root.SaveConfiguration()
	}()

	v.lock.Lock()
	defer v.lock.Unlock()

	if v.IsServing {
		return nil
	}
	if listenAddr != "" {
		v.ListenAddr = listenAddr
	}
	v.isDirty = true

	ln, err := net.Listen("tcp", v.ListenAddr)
	if err != nil {
		v.Error = err.Error()
		return fmt.Errorf("engine: bridge: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/i2c", wsbridge.NewServer(busConn{v.root}, v.root.log))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	v.server = srv
	v.IsServing = true
	v.Error = ""
	v.ListenAddr = ln.Addr().String()

	go func() {
		err := srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			return
		}

		v.root.log.Error("Bridge stopped", log.Err(err))
		v.lock.Lock()
		if v.server == srv {
			v.server = nil
			v.IsServing = false
			v.Error = err.Error()
			v.isDirty = true
		}
		v.lock.Unlock()
		v.root.UpdateAndNotifyView()
	}()

	v.root.log.Info("Bridge serving", log.String("listen", v.ListenAddr))
	return nil
}

// Stop shuts the bridge down; it is safe to call when not serving.
func (v *BridgeViewModel) Stop() {
	v.lock.Lock()
	srv := v.server
	v.server = nil
	v.IsServing = false
	v.isDirty = true
	v.lock.Unlock()

	if srv == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		v.root.log.Warn("Bridge shutdown", log.Err(err))
	}
	v.root.log.Info("Bridge stopped")
}

// Commands

type BridgeStartCommand struct{ v *BridgeViewModel }
type BridgeStartCommandArgs struct {
	ListenAddr string `json:"listenAddr"`
}

func (ce *BridgeStartCommand) CreateArgs() interfaces.CommandArgs {
	return &BridgeStartCommandArgs{}
}
func (ce *BridgeStartCommand) Execute(args interfaces.CommandArgs) error {
	ca, ok := args.(*BridgeStartCommandArgs)
	if !ok {
		return fmt.Errorf("command args not of expected type")
	}
	return ce.v.Start(ca.ListenAddr)
}

type BridgeStopCommand struct{ v *BridgeViewModel }

func (ce *BridgeStopCommand) CreateArgs() interfaces.CommandArgs { return nil }
func (ce *BridgeStopCommand) Execute(_ interfaces.CommandArgs) error {
	defer func() {
		ce.v.root.UpdateAndNotifyView()
		ce.v.root.SaveConfiguration()
	}()

	ce.v.Stop()
	return nil
}
