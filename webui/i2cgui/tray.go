//go:build !linux

package main

import (
	"github.com/getlantern/systray"
	"github.com/retroenv/retrogolib/log"
)

func createSystray() {
	systray.Run(trayStart, func() {
		logger.Info("Tray closed")
	})
}

func trayStart() {
	systray.SetTitle("i2cgui")
	systray.SetTooltip("i2cgui - I2C register editor")

	mOpenWeb := systray.AddMenuItem("Web UI", "Open the register editor in the default browser")
	mShare := systray.AddMenuItemCheckbox("Share bus", "Serve the connected bus to other machines", false)
	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Quit")

	go func() {
		for {
			select {
			case <-mOpenWeb.ClickedCh:
				openWebUI()
			case <-mShare.ClickedCh:
				if mShare.Checked() {
					runCommand("bridge", "stop")
					mShare.Uncheck()
				} else if runCommand("bridge", "start") {
					mShare.Check()
				}
			case <-mQuit.ClickedCh:
				logger.Info("Requesting quit", log.String("source", "tray"))
				systray.Quit()
				return
			}
		}
	}()
}
