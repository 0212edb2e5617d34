package main

import (
	"os"
	"os/signal"
	"syscall"
)

func createSystray() {
	// just open the browser UI on startup:
	openWebUI()

	// block the main goroutine until asked to stop:
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	logger.Info("Requesting quit")
}
