// Command i2cbridge shares a locally attached I2C bus with other machines. The bus
// is served twice: as the websocket protocol of the wsbridge driver and as the
// DeviceMemory gRPC service of the rpcbridge driver.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"i2cgui/i2c"
	"i2cgui/i2c/rpcbridge"
	"i2cgui/i2c/wsbridge"
	"i2cgui/util"
	"i2cgui/util/env"

	"github.com/retroenv/retrogolib/app"
	"github.com/retroenv/retrogolib/log"
	"google.golang.org/grpc"
)

// include these bus drivers:
import (
	_ "i2cgui/i2c/mock"
	_ "i2cgui/i2c/usbiss"
)

type options struct {
	Driver    string
	Device    string
	WSListen  string
	RPCListen string
	Debug     bool
	Quiet     bool
}

func readOptionFlags(flags *flag.FlagSet, opts *options) {
	flags.StringVar(&opts.Driver, "driver", env.GetOrDefault("I2CGUI_BRIDGE_DRIVER", "usbiss"), "local bus driver to share")
	flags.StringVar(&opts.Device, "device", env.GetOrDefault("I2CGUI_BRIDGE_DEVICE", ""), "device id of the bus adapter; the first detected device if empty")
	flags.StringVar(&opts.WSListen, "ws", env.GetOrDefault("I2CGUI_BRIDGE_WS_LISTEN", "localhost:8090"), "websocket listen address; empty disables it")
	flags.StringVar(&opts.RPCListen, "rpc", env.GetOrDefault("I2CGUI_BRIDGE_RPC_LISTEN", "localhost:8191"), "gRPC listen address; empty disables it")
	flags.BoolVar(&opts.Debug, "debug", false, "enable debugging options for extended logging")
	flags.BoolVar(&opts.Quiet, "q", false, "perform operations quietly")
}

func openBus(opts options, logger *log.Logger) (i2c.Conn, error) {
	named, ok := i2c.DriverByName(opts.Driver)
	if !ok {
		return nil, fmt.Errorf("unknown driver %q", opts.Driver)
	}

	devices, err := named.Driver.Detect()
	if err != nil {
		return nil, fmt.Errorf("detecting %s devices: %w", named.Name, err)
	}

	var desc i2c.DeviceDescriptor
	for _, d := range devices {
		if opts.Device == "" || d.GetId() == opts.Device {
			desc = d
			break
		}
	}
	if desc == nil {
		if opts.Device == "" {
			return nil, fmt.Errorf("no %s devices detected", named.Name)
		}
		desc = named.Driver.Empty()
		if err = json.Unmarshal([]byte(opts.Device), desc); err != nil {
			return nil, fmt.Errorf("device %q not detected and not a %s descriptor: %w", opts.Device, named.Name, err)
		}
	}

	logger.Info("Opening bus", log.String("driver", named.Name), log.String("device", desc.GetDisplayName()))
	return named.Driver.Open(desc, logger)
}

// bridge serves one bus connection until ctx is cancelled or the bus closes.
type bridge struct {
	log  *log.Logger
	conn i2c.Conn

	http *http.Server
	rpc  *grpc.Server
}

func (b *bridge) serveWebSocket(ln net.Listener, errs chan<- error) {
	mux := http.NewServeMux()
	mux.Handle("/i2c", wsbridge.NewServer(b.conn, b.log))
	b.http = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	b.log.Info("Serving websocket bridge", log.String("listen", ln.Addr().String()))
	go func() {
		if err := b.http.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("websocket bridge: %w", err)
		}
	}()
}

func (b *bridge) serveRPC(ln net.Listener, errs chan<- error) {
	b.rpc = grpc.NewServer()
	rpcbridge.RegisterDeviceMemoryServer(b.rpc, rpcbridge.NewServer(b.conn, b.log))

	b.log.Info("Serving gRPC bridge", log.String("listen", ln.Addr().String()))
	go func() {
		if err := b.rpc.Serve(ln); err != nil {
			errs <- fmt.Errorf("gRPC bridge: %w", err)
		}
	}()
}

func (b *bridge) run(ctx context.Context, wsListen, rpcListen string) error {
	if wsListen == "" && rpcListen == "" {
		return errors.New("nothing to serve: both listen addresses are empty")
	}

	errs := make(chan error, 2)
	if wsListen != "" {
		ln, err := net.Listen("tcp", wsListen)
		if err != nil {
			return err
		}
		b.serveWebSocket(ln, errs)
	}
	if rpcListen != "" {
		ln, err := net.Listen("tcp", rpcListen)
		if err != nil {
			b.shutdown()
			return err
		}
		b.serveRPC(ln, errs)
	}
	defer b.shutdown()

	// a nil channel never fires for buses that cannot close underneath us:
	var closed <-chan struct{}
	if closer, ok := b.conn.(interface{ Closed() <-chan struct{} }); ok {
		closed = closer.Closed()
	}

	select {
	case <-ctx.Done():
		b.log.Info("Shutting down")
		return nil
	case <-closed:
		return errors.New("bus connection closed")
	case err := <-errs:
		return err
	}
}

func (b *bridge) shutdown() {
	if b.rpc != nil {
		b.rpc.GracefulStop()
	}
	if b.http != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := b.http.Shutdown(ctx); err != nil {
			b.log.Warn("Websocket bridge shutdown", log.Err(err))
		}
	}
}

func main() {
	ctx := app.Context()

	var opts options
	flags := flag.NewFlagSet("i2cbridge", flag.ExitOnError)
	readOptionFlags(flags, &opts)
	_ = flags.Parse(os.Args[1:])

	logger := util.CreateLogger(opts.Debug, opts.Quiet)

	conn, err := openBus(opts, logger)
	if err != nil {
		logger.Fatal(err.Error())
	}

	b := &bridge{log: logger, conn: conn}
	err = b.run(ctx, opts.WSListen, opts.RPCListen)
	if cerr := conn.Close(); cerr != nil {
		logger.Warn("Closing bus failed", log.Err(cerr))
	}
	if err != nil {
		logger.Error("Bridge failed", log.Err(err))
		os.Exit(1)
	}
}
