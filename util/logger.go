package util

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"

	"github.com/retroenv/retrogolib/log"
)

// CreateLogger creates the process logger; debug wins over quiet.
func CreateLogger(debug, quiet bool) *log.Logger {
	cfg := log.DefaultConfig()
	if debug {
		cfg.Level = log.DebugLevel
	} else if quiet {
		cfg.Level = log.ErrorLevel
	}
	return log.NewWithConfig(cfg)
}

// PanicSafeLogger mirrors crash reports into a file that is synced before the
// process dies.
type PanicSafeLogger struct {
	f  *os.File
	mw io.Writer
}

var std *PanicSafeLogger

func NewPanicSafeLogger(f *os.File) *PanicSafeLogger {
	std = &PanicSafeLogger{
		f:  f,
		mw: io.MultiWriter(f, os.Stderr),
	}
	return std
}

func (l *PanicSafeLogger) Write(p []byte) (n int, err error) {
	return l.mw.Write(p)
}

func (l *PanicSafeLogger) Flush() error {
	return l.f.Sync()
}

func FlushLogger() error {
	if std == nil {
		return nil
	}
	return std.Flush()
}

// LogPanic records a recovered panic with its stack. Call it from a deferred recover.
func LogPanic(logger *log.Logger, err any) {
	stack := debug.Stack()
	logger.Error("panicked", log.String("panic", fmt.Sprint(err)), log.String("stack", string(stack)))
	if std != nil {
		_, _ = std.f.Write(stack)
	}
	_ = FlushLogger()
}
