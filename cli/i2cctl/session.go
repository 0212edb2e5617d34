package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"i2cgui/addrspace"
	"i2cgui/config"
	"i2cgui/i2c"

	"github.com/retroenv/retrogolib/log"
)

// session lazily opens the bus and the address space a command needs.
type session struct {
	ctx   context.Context
	log   *log.Logger
	opts  options
	out   io.Writer
	table bool

	conn  i2c.Conn
	space *addrspace.AddressSpace
}

func (s *session) close() {
	if s.conn == nil {
		return
	}
	if err := s.conn.Close(); err != nil {
		s.log.Warn("Closing bus failed", log.Err(err))
	}
	s.conn = nil
}

func (s *session) device(named i2c.NamedDriver) (i2c.DeviceDescriptor, error) {
	devices, err := named.Driver.Detect()
	if err != nil {
		return nil, fmt.Errorf("detecting %s devices: %w", named.Name, err)
	}

	if s.opts.Device == "" {
		if len(devices) == 0 {
			return nil, fmt.Errorf("no %s devices detected", named.Name)
		}
		return devices[0], nil
	}

	for _, d := range devices {
		if d.GetId() == s.opts.Device {
			return d, nil
		}
	}

	// not detected, so it has to be a descriptor:
	desc := named.Driver.Empty()
	if err = json.Unmarshal([]byte(s.opts.Device), desc); err != nil {
		return nil, fmt.Errorf("device %q not detected and not a %s descriptor: %w", s.opts.Device, named.Name, err)
	}
	return desc, nil
}

func (s *session) bus() (i2c.Conn, error) {
	if s.conn != nil {
		return s.conn, nil
	}

	named, ok := i2c.DriverByName(s.opts.Driver)
	if !ok {
		return nil, fmt.Errorf("unknown driver %q", s.opts.Driver)
	}
	desc, err := s.device(named)
	if err != nil {
		return nil, err
	}

	s.log.Debug("Opening bus", log.String("driver", named.Name), log.String("device", desc.GetDisplayName()))
	if s.conn, err = named.Driver.Open(desc, s.log); err != nil {
		return nil, err
	}
	return s.conn, nil
}

func parseDeviceAddress(text string) (uint8, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(text), 0, 8)
	if err != nil || v > addrspace.MaxDeviceAddress {
		return 0, fmt.Errorf("%w: %q", addrspace.ErrInvalidDeviceAddress, text)
	}
	return uint8(v), nil
}

func (s *session) addressSpace() (*addrspace.AddressSpace, error) {
	if s.space != nil {
		return s.space, nil
	}

	file := config.Demo()
	if s.opts.Config != "" {
		var err error
		if file, err = config.Load(s.opts.Config); err != nil {
			return nil, err
		}
	}
	cfg, err := file.SpaceConfig()
	if err != nil {
		return nil, err
	}
	if s.opts.Address != "" {
		addr, err := parseDeviceAddress(s.opts.Address)
		if err != nil {
			return nil, err
		}
		cfg.DeviceAddress = &addr
	}
	if cfg.DeviceAddress == nil {
		return nil, fmt.Errorf("%w: pass -a", addrspace.ErrAddressNotSet)
	}

	conn, err := s.bus()
	if err != nil {
		return nil, err
	}
	if s.space, err = addrspace.New(cfg, conn, s.log); err != nil {
		return nil, err
	}
	return s.space, nil
}
