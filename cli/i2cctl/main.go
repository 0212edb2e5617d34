// Command i2cctl reads and writes the registers of a device on an I2C bus from the
// command line.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"i2cgui/util"

	"github.com/retroenv/retrogolib/app"
	"github.com/retroenv/retrogolib/log"
	"golang.org/x/term"
)

// include these bus drivers:
import (
	_ "i2cgui/i2c/mock"
	_ "i2cgui/i2c/rpcbridge"
	_ "i2cgui/i2c/usbiss"
	_ "i2cgui/i2c/wsbridge"
)

type options struct {
	Driver  string
	Device  string
	Config  string
	Address string
	Count   int
	Plain   bool
	Debug   bool
	Quiet   bool
}

// UsageError is returned for invalid command lines.
type UsageError struct {
	flags *flag.FlagSet
	msg   string
}

func (e *UsageError) Error() string {
	return e.msg
}

func (e *UsageError) ShowUsage(w io.Writer) {
	if e.msg != "" {
		fmt.Fprintf(w, "%s\n\n", e.msg)
	}
	fmt.Fprintf(w, "usage: i2cctl [options] <command> [arguments]\n\n")
	fmt.Fprintf(w, "commands:\n")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-30s %s\n", c.usage, c.help)
	}
	fmt.Fprintln(w)
	e.flags.SetOutput(w)
	e.flags.PrintDefaults()
}

func readOptionFlags(flags *flag.FlagSet, opts *options) {
	flags.StringVar(&opts.Driver, "driver", "mock", "bus driver to use (see the drivers command)")
	flags.StringVar(&opts.Device, "device", "", "device id of the bus adapter, or its JSON descriptor; the first detected device if empty")
	flags.StringVar(&opts.Config, "c", "", "address space description JSON file; the demo sensor if empty")
	flags.StringVar(&opts.Address, "a", "", "7-bit device address, overrides the description")
	flags.IntVar(&opts.Count, "n", 100, "number of transactions for bench")
	flags.BoolVar(&opts.Plain, "plain", false, "print plain key=value lines even on a terminal")
	flags.BoolVar(&opts.Debug, "debug", false, "enable debugging options for extended logging")
	flags.BoolVar(&opts.Quiet, "q", false, "perform operations quietly")
}

func parseFlags(args []string) (opts options, cmd *command, cmdArgs []string, err error) {
	flags := flag.NewFlagSet("i2cctl", flag.ContinueOnError)
	flags.SetOutput(io.Discard)
	readOptionFlags(flags, &opts)

	if err = flags.Parse(args); err != nil {
		return opts, nil, nil, &UsageError{flags: flags, msg: err.Error()}
	}

	rest := flags.Args()
	if len(rest) == 0 {
		return opts, nil, nil, &UsageError{flags: flags}
	}

	cmd, ok := commandByName(rest[0])
	if !ok {
		return opts, nil, nil, &UsageError{flags: flags, msg: fmt.Sprintf("unknown command %q", rest[0])}
	}
	if len(rest)-1 != cmd.args {
		return opts, nil, nil, &UsageError{flags: flags, msg: fmt.Sprintf("usage: i2cctl %s", cmd.usage)}
	}

	return opts, cmd, rest[1:], nil
}

func main() {
	ctx := app.Context()

	opts, cmd, args, err := parseFlags(os.Args[1:])
	logger := util.CreateLogger(opts.Debug, opts.Quiet)
	if err != nil {
		var usageErr *UsageError
		if errors.As(err, &usageErr) {
			usageErr.ShowUsage(os.Stderr)
			os.Exit(2)
		}
		logger.Fatal(err.Error())
	}

	s := &session{
		ctx:   ctx,
		log:   logger,
		opts:  opts,
		out:   os.Stdout,
		table: !opts.Plain && term.IsTerminal(int(os.Stdout.Fd())),
	}
	defer s.close()

	if err = cmd.run(s, args); err != nil {
		logger.Error("Command failed", log.String("command", cmd.name), log.Err(err))
		s.close()
		os.Exit(1)
	}
}
