// Command i2cgui serves a browser UI to read and edit the registers of a device on
// an I2C bus.
package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"i2cgui/config"
	"i2cgui/engine"
	"i2cgui/util"
	"i2cgui/util/env"
	"i2cgui/webui/dist"

	"github.com/retroenv/retrogolib/log"
	"github.com/skratchdot/open-golang/open"
)

// include these bus drivers:
import (
	_ "i2cgui/i2c/mock"
	_ "i2cgui/i2c/rpcbridge"
	_ "i2cgui/i2c/usbiss"
	_ "i2cgui/i2c/wsbridge"
)

const defaultListenPort = 27638

var errNoCommandHandler = errors.New("no view command handler provided")

var (
	logger      *log.Logger
	viewModel   *engine.ViewModel
	listenPort  int    // port number to listen on for webserver
	browserUrl  string // full URL that is sent to browser (composed of browserHost:listenPort)
	crashLogTag = "i2cgui"
)

func openCrashLog() {
	ts := time.Now().UTC().Format("2006-01-02T15-04-05")
	path := filepath.Join(os.TempDir(), fmt.Sprintf("%s-%s.log", crashLogTag, ts))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		logger.Warn("Could not open crash log", log.String("path", path), log.Err(err))
		return
	}
	util.NewPanicSafeLogger(f)
	logger.Debug("Crash log", log.String("path", path))
}

func loadSpace() (*config.File, error) {
	path := env.GetOrDefault("I2CGUI_CONFIG", "")
	if path == "" {
		logger.Info("No I2CGUI_CONFIG given, using the demo sensor description")
		return config.Demo(), nil
	}
	return config.Load(path)
}

func listenAddress() string {
	listenHost := env.GetOrDefault("I2CGUI_WEB_LISTEN_HOST", "0.0.0.0")

	var err error
	listenPort, err = strconv.Atoi(env.GetOrDefault("I2CGUI_WEB_LISTEN_PORT", strconv.Itoa(defaultListenPort)))
	if err != nil || listenPort <= 0 {
		listenPort = defaultListenPort
	}

	browserHost := env.GetOrDefault("I2CGUI_WEB_BROWSER_HOST", "127.0.0.1")
	browserUrl = fmt.Sprintf("http://%s/", net.JoinHostPort(browserHost, strconv.Itoa(listenPort)))

	return net.JoinHostPort(listenHost, strconv.Itoa(listenPort))
}

func main() {
	logger = util.CreateLogger(util.IsTruthy(env.GetOrDefault("I2CGUI_DEBUG", "")), false)
	openCrashLog()
	defer func() {
		if err := recover(); err != nil {
			util.LogPanic(logger, err)
			os.Exit(2)
		}
	}()

	file, err := loadSpace()
	if err != nil {
		logger.Fatal("Loading address space description failed", log.Err(err))
	}

	// construct our viewModel and web server:
	viewModel, err = engine.NewViewModel(file, logger)
	if err != nil {
		logger.Fatal("Creating address space failed", log.Err(err))
	}
	webServer := NewWebServer(listenAddress(), dist.Content, logger)

	// inform viewModel of web server and vice versa:
	viewModel.ProvideViewNotifier(webServer)
	webServer.ProvideViewCommandHandler(viewModel)

	// start the web server:
	go func() {
		logger.Info("Web UI listening", log.String("url", browserUrl))
		if err := webServer.Serve(); err != nil {
			logger.Fatal("Web server failed", log.Err(err))
		}
	}()

	// initialize viewModel now that all dependencies are set up:
	viewModel.Init()
	defer viewModel.Close()

	// start up a systray app (or just open web UI):
	createSystray()
}

func openWebUI() {
	if err := open.Start(browserUrl); err != nil {
		logger.Warn("Could not open browser", log.String("url", browserUrl), log.Err(err))
	}
}

// runCommand runs a command without arguments as if the page had sent it.
func runCommand(view, command string) bool {
	ce, err := viewModel.CommandFor(view, command)
	if err == nil {
		err = ce.Execute(ce.CreateArgs())
	}
	if err != nil {
		logger.Warn("Command failed", log.String("view", view), log.String("command", command), log.Err(err))
		return false
	}
	return true
}
