package main

import (
	"fmt"
	"sort"
	"time"

	"i2cgui/addrspace"
	"i2cgui/bitfield"
	"i2cgui/i2c"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/retroenv/retrogolib/log"
)

type command struct {
	name  string
	usage string
	help  string
	args  int
	run   func(s *session, args []string) error
}

var commands []*command

func init() {
	commands = []*command{
		{name: "drivers", usage: "drivers", help: "list bus drivers and their detected devices", run: runDrivers},
		{name: "scan", usage: "scan", help: "probe every 7-bit device address", run: runScan},
		{name: "dump", usage: "dump", help: "read the whole address space and print registers and fields", run: runDump},
		{name: "read-block", usage: "read-block <block>", help: "read one block and print its registers", args: 1, run: runReadBlock},
		{name: "write-register", usage: "write-register <block/register> <value>", help: "write one register", args: 2, run: runWriteRegister},
		{name: "set-field", usage: "set-field <block/field> <value>", help: "read, modify and write back a decoded field", args: 2, run: runSetField},
		{name: "bench", usage: "bench <block>", help: "time repeated block reads and print a latency histogram", args: 1, run: runBench},
	}
}

func commandByName(name string) (*command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return nil, false
}

func runDrivers(s *session, _ []string) error {
	p := s.printer("Driver", "Name", "Device", "Id")
	for _, named := range i2c.Drivers() {
		devices, err := named.Driver.Detect()
		if err != nil {
			s.log.Warn("Detect failed", log.String("driver", named.Name), log.Err(err))
		}
		if len(devices) == 0 {
			p.row(named.Name, named.Driver.DisplayName(), "-", "-")
		}
		for _, d := range devices {
			p.row(named.Name, named.Driver.DisplayName(), d.GetDisplayName(), d.GetId())
		}
	}
	return p.flush()
}

func runScan(s *session, _ []string) error {
	conn, err := s.bus()
	if err != nil {
		return err
	}

	p := s.printer("Address")
	for addr := uint8(0x08); addr <= 0x77; addr++ {
		if err = s.ctx.Err(); err != nil {
			return err
		}
		present, err := conn.Probe(addr)
		if err != nil {
			return err
		}
		if present {
			p.row(fmt.Sprintf("0x%02x", addr))
		}
	}
	return p.flush()
}

func printRegisters(s *session, space *addrspace.AddressSpace, keep func(addr int) bool) error {
	p := s.printer("Register", "Address", "Value")
	for _, key := range space.Map().Registers() {
		addr, _ := space.Map().Address(key)
		if !keep(addr) {
			continue
		}
		value, err := space.RawValue(key)
		if err != nil {
			return err
		}
		p.row(key, fmt.Sprintf("0x%02x", addr), value)
	}
	return p.flush()
}

func runDump(s *session, _ []string) error {
	space, err := s.addressSpace()
	if err != nil {
		return err
	}
	if err = space.ReadAll(); err != nil {
		return err
	}

	if err = printRegisters(s, space, func(int) bool { return true }); err != nil {
		return err
	}

	fields := space.Fields()
	if len(fields) == 0 {
		return nil
	}
	fmt.Fprintln(s.out)
	p := s.printer("Field", "Width", "Value")
	for _, key := range fields {
		width, _ := space.DecodedWidth(key)
		value, _ := space.DecodedValue(key)
		p.row(key, fmt.Sprint(width), value)
	}
	return p.flush()
}

func runReadBlock(s *session, args []string) error {
	space, err := s.addressSpace()
	if err != nil {
		return err
	}
	block, ok := space.Map().Block(args[0])
	if !ok {
		return fmt.Errorf("%w: '%s'", addrspace.ErrUnknownBlock, args[0])
	}
	if err = space.ReadBlock(block.Name); err != nil {
		return err
	}

	return printRegisters(s, space, func(addr int) bool {
		return addr >= block.BaseAddress && addr < block.BaseAddress+block.Length
	})
}

func runWriteRegister(s *session, args []string) error {
	space, err := s.addressSpace()
	if err != nil {
		return err
	}
	addr, ok := space.Map().Address(args[0])
	if !ok {
		return fmt.Errorf("%w: '%s'", addrspace.ErrUnknownRegister, args[0])
	}

	if err = space.SetRawValue(args[0], args[1]); err != nil {
		return err
	}
	return space.WriteRegister(addr)
}

func runSetField(s *session, args []string) error {
	space, err := s.addressSpace()
	if err != nil {
		return err
	}
	if _, err = space.DecodedWidth(args[0]); err != nil {
		return err
	}

	if err = space.ReadAll(); err != nil {
		return err
	}
	if err = space.SetDecodedValue(args[0], args[1]); err != nil {
		return err
	}

	// write back only what the field touched:
	written := 0
	for addr := 0; addr < space.MemorySize(); addr++ {
		text, _ := space.RegisterValue(addr)
		last, _ := space.LastRead(addr)
		if text == bitfield.FormatRegister(last) {
			continue
		}
		if err = space.WriteRegister(addr); err != nil {
			return err
		}
		written++
	}
	s.log.Debug("Field written", log.String("field", args[0]), log.Int("registers", written))

	value, _ := space.DecodedValue(args[0])
	p := s.printer("Field", "Value")
	p.row(args[0], value)
	return p.flush()
}

func runBench(s *session, args []string) error {
	space, err := s.addressSpace()
	if err != nil {
		return err
	}
	if _, ok := space.Map().Block(args[0]); !ok {
		return fmt.Errorf("%w: '%s'", addrspace.ErrUnknownBlock, args[0])
	}
	if s.opts.Count < 1 {
		return fmt.Errorf("bench needs at least one transaction, got -n %d", s.opts.Count)
	}

	latencies := make([]float64, 0, s.opts.Count)
	for i := 0; i < s.opts.Count; i++ {
		if err = s.ctx.Err(); err != nil {
			break
		}
		start := time.Now()
		if err = space.ReadBlock(args[0]); err != nil {
			return err
		}
		latencies = append(latencies, float64(time.Since(start).Microseconds()))
	}
	if len(latencies) == 0 {
		return err
	}

	sorted := append([]float64(nil), latencies...)
	sort.Float64s(sorted)
	fmt.Fprintf(s.out, "%d reads of %s: min %.0fus median %.0fus max %.0fus\n\n",
		len(sorted), args[0], sorted[0], sorted[len(sorted)/2], sorted[len(sorted)-1])

	if sorted[0] == sorted[len(sorted)-1] {
		return nil
	}
	return histogram.Fprint(s.out, histogram.Hist(10, latencies), histogram.Linear(40))
}
