package engine

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"i2cgui/addrspace"
	"i2cgui/bitfield"
	"i2cgui/interfaces"

	"github.com/retroenv/retrogolib/log"
)

// Must be JSON serializable
type SpaceViewModel struct {
	commands map[string]interfaces.Command

	c       *ViewModel
	lock    sync.Mutex
	isClean bool

	Name          string `json:"name"`
	DeviceAddress string `json:"deviceAddress"`
	Modified      string `json:"modified"`
	LastOperation string `json:"lastOperation"`

	Blocks    []BlockViewModel    `json:"blocks"`
	Registers []RegisterViewModel `json:"registers"`
	Fields    []FieldViewModel    `json:"fields"`
}

type BlockViewModel struct {
	Name        string `json:"name"`
	BaseAddress string `json:"baseAddress"`
	Length      int    `json:"length"`
}

type RegisterViewModel struct {
	Key     string `json:"key"`
	Address string `json:"address"`
	Value   string `json:"value"`
	// LastRead is empty until the whole space has been read once.
	LastRead string `json:"lastRead"`
}

type FieldViewModel struct {
	Key   string `json:"key"`
	Width int    `json:"width"`
	Value string `json:"value"`
}

type SpaceConfiguration struct {
	DeviceAddress string `json:"deviceAddress"`
}

func NewSpaceViewModel(c *ViewModel) *SpaceViewModel {
	v := &SpaceViewModel{c: c}

	v.commands = map[string]interfaces.Command{
		"setAddress":    &setAddressCmd{v},
		"readAll":       &spaceCmd{v, "Read all", (*addrspace.AddressSpace).ReadAll},
		"writeAll":      &spaceCmd{v, "Write all", (*addrspace.AddressSpace).WriteAll},
		"readBlock":     &blockCmd{v, "Read block", (*addrspace.AddressSpace).ReadBlock},
		"writeBlock":    &blockCmd{v, "Write block", (*addrspace.AddressSpace).WriteBlock},
		"readRegister":  &registerCmd{v, "Read register", (*addrspace.AddressSpace).ReadRegister},
		"writeRegister": &registerCmd{v, "Write register", (*addrspace.AddressSpace).WriteRegister},
		"setRegister":   &setValueCmd{v, (*addrspace.AddressSpace).SetRawValue},
		"setField":      &setValueCmd{v, (*addrspace.AddressSpace).SetDecodedValue},
	}

	return v
}

func (v *SpaceViewModel) LoadConfiguration(config *SpaceConfiguration) {
	if config == nil || config.DeviceAddress == "" {
		return
	}

	if err := v.SetAddress(config.DeviceAddress); err != nil {
		v.c.log.Warn("Configured device address ignored",
			log.String("deviceAddress", config.DeviceAddress),
			log.Err(err))
	}
}

func (v *SpaceViewModel) SaveConfiguration(config *SpaceConfiguration) {
	if config == nil {
		return
	}

	defer v.lock.Unlock()
	v.lock.Lock()
	config.DeviceAddress = v.DeviceAddress
}

func (v *SpaceViewModel) IsDirty() bool {
	defer v.lock.Unlock()
	v.lock.Lock()
	return !v.isClean
}

func (v *SpaceViewModel) ClearDirty() {
	defer v.lock.Unlock()
	v.lock.Lock()
	v.isClean = true
}

func (v *SpaceViewModel) MarkDirty() {
	v.lock.Lock()
	v.isClean = false
	v.lock.Unlock()
}

// Notify receives address space events. It runs with the space lock held so it
// only records what happened.
func (v *SpaceViewModel) Notify(object interface{}) {
	v.lock.Lock()
	defer v.lock.Unlock()

	switch e := object.(type) {
	case addrspace.OperationEvent:
		v.LastOperation = e.String()
	case addrspace.DeviceAddressEvent:
		if !e.IsSet {
			v.LastOperation = "Device address cleared"
		}
	}
	v.isClean = false
}

// Update snapshots the address space.
func (v *SpaceViewModel) Update() {
	var (
		name, deviceAddress, modified string
		blocks                        []BlockViewModel
		registers                     []RegisterViewModel
		fields                        []FieldViewModel
	)

	_ = v.c.Space(func(s *addrspace.AddressSpace) error {
		name = s.Name()
		if addr, ok := s.DeviceAddress(); ok {
			deviceAddress = fmt.Sprintf("0x%02x", addr)
		}
		modified = s.IsModified().String()

		for _, b := range s.Map().Blocks() {
			blocks = append(blocks, BlockViewModel{
				Name:        b.Name,
				BaseAddress: fmt.Sprintf("0x%02x", b.BaseAddress),
				Length:      b.Length,
			})
		}

		for _, key := range s.Map().Registers() {
			addr, _ := s.Map().Address(key)
			value, _ := s.RawValue(key)
			rvm := RegisterViewModel{
				Key:     key,
				Address: fmt.Sprintf("0x%02x", addr),
				Value:   value,
			}
			if last, known := s.LastRead(addr); known {
				rvm.LastRead = bitfield.FormatRegister(last)
			}
			registers = append(registers, rvm)
		}

		for _, key := range s.Fields() {
			value, _ := s.DecodedValue(key)
			width, _ := s.DecodedWidth(key)
			fields = append(fields, FieldViewModel{Key: key, Width: width, Value: value})
		}
		return nil
	})

	defer v.lock.Unlock()
	v.lock.Lock()

	v.Name = name
	v.DeviceAddress = deviceAddress
	v.Modified = modified
	v.Blocks = blocks
	v.Registers = registers
	v.Fields = fields
	v.isClean = false
}

func (v *SpaceViewModel) ViewModel() interface{} {
	defer v.lock.Unlock()
	v.lock.Lock()

	return &SpaceViewModel{
		Name:          v.Name,
		DeviceAddress: v.DeviceAddress,
		Modified:      v.Modified,
		LastOperation: v.LastOperation,
		Blocks:        append([]BlockViewModel{}, v.Blocks...),
		Registers:     append([]RegisterViewModel{}, v.Registers...),
		Fields:        append([]FieldViewModel{}, v.Fields...),
	}
}

func (v *SpaceViewModel) CommandFor(command string) (ce interfaces.Command, err error) {
	var ok bool
	ce, ok = v.commands[command]
	if !ok {
		err = fmt.Errorf("no command '%s' found", command)
	}
	return
}

// run executes fn against the address space and reports failures in the status.
func (v *SpaceViewModel) run(what string, fn func(s *addrspace.AddressSpace) error) error {
	defer v.c.UpdateAndNotifyView()

	if err := v.c.Space(fn); err != nil {
		v.c.setStatus(fmt.Sprintf("%s failed: %v", what, err))
		return err
	}
	return nil
}

// SetAddress sets the target device; an empty address clears it.
func (v *SpaceViewModel) SetAddress(address string) error {
	address = strings.TrimSpace(address)
	if address == "" {
		err := v.run("Clear device address", func(s *addrspace.AddressSpace) error {
			s.ClearDeviceAddress()
			return nil
		})
		v.c.SaveConfiguration()
		return err
	}

	addr, err := strconv.ParseUint(address, 0, 8)
	if err != nil {
		err = fmt.Errorf("%w: %q", addrspace.ErrInvalidDeviceAddress, address)
		v.c.setStatus(err.Error())
		return err
	}

	err = v.run("Set device address", func(s *addrspace.AddressSpace) error {
		return s.SetDeviceAddress(uint8(addr))
	})
	if err == nil {
		v.c.SaveConfiguration()
	}
	return err
}

type setAddressCmd struct{ v *SpaceViewModel }
type setAddressArgs struct {
	Address string `json:"address"`
}

func (c *setAddressCmd) CreateArgs() interfaces.CommandArgs { return &setAddressArgs{} }
func (c *setAddressCmd) Execute(args interfaces.CommandArgs) error {
	a, ok := args.(*setAddressArgs)
	if !ok {
		return fmt.Errorf("command args not of expected type")
	}
	return c.v.SetAddress(a.Address)
}

type spaceCmd struct {
	v    *SpaceViewModel
	what string
	op   func(*addrspace.AddressSpace) error
}

func (c *spaceCmd) CreateArgs() interfaces.CommandArgs { return nil }
func (c *spaceCmd) Execute(_ interfaces.CommandArgs) error {
	return c.v.run(c.what, c.op)
}

type blockCmd struct {
	v    *SpaceViewModel
	what string
	op   func(*addrspace.AddressSpace, string) error
}
type blockArgs struct {
	Block string `json:"block"`
}

func (c *blockCmd) CreateArgs() interfaces.CommandArgs { return &blockArgs{} }
func (c *blockCmd) Execute(args interfaces.CommandArgs) error {
	a, ok := args.(*blockArgs)
	if !ok {
		return fmt.Errorf("command args not of expected type")
	}
	return c.v.run(c.what+" "+a.Block, func(s *addrspace.AddressSpace) error {
		return c.op(s, a.Block)
	})
}

type registerCmd struct {
	v    *SpaceViewModel
	what string
	op   func(*addrspace.AddressSpace, int) error
}

// registerArgs names a register by its "block/register" key.
type registerArgs struct {
	Register string `json:"register"`
}

func (c *registerCmd) CreateArgs() interfaces.CommandArgs { return &registerArgs{} }
func (c *registerCmd) Execute(args interfaces.CommandArgs) error {
	a, ok := args.(*registerArgs)
	if !ok {
		return fmt.Errorf("command args not of expected type")
	}
	return c.v.run(c.what+" "+a.Register, func(s *addrspace.AddressSpace) error {
		addr, ok := s.Map().Address(a.Register)
		if !ok {
			return fmt.Errorf("%w: '%s'", addrspace.ErrUnknownRegister, a.Register)
		}
		return c.op(s, addr)
	})
}

type setValueCmd struct {
	v  *SpaceViewModel
	op func(s *addrspace.AddressSpace, key, text string) error
}
type setValueArgs struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (c *setValueCmd) CreateArgs() interfaces.CommandArgs { return &setValueArgs{} }
func (c *setValueCmd) Execute(args interfaces.CommandArgs) error {
	a, ok := args.(*setValueArgs)
	if !ok {
		return fmt.Errorf("command args not of expected type")
	}
	return c.v.run("Set "+a.Key, func(s *addrspace.AddressSpace) error {
		return c.op(s, a.Key, a.Value)
	})
}
