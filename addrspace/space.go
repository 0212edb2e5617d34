// Package addrspace models the register memory of one device on the bus: the last
// values read from the device, the pending edit buffer, and decoded bit fields kept
// in sync with the registers they are sliced from.
//
// An AddressSpace is not safe for concurrent use; hosts calling it from several
// goroutines must serialize all calls with a single mutex.
package addrspace

import (
	"fmt"
	"sort"

	"i2cgui/bitfield"
	"i2cgui/interfaces"
	"i2cgui/regmap"

	"github.com/retroenv/retrogolib/log"
)

// MaxDeviceAddress is the highest 7-bit bus address.
const MaxDeviceAddress = 0x7F

type Config struct {
	Name          string
	DeviceAddress *uint8
	MemorySize    int
	Registers     regmap.Description
	// Decoded maps block names to the fields declared over that block's registers.
	Decoded map[string][]bitfield.Field
}

var _ interfaces.Observable = (*AddressSpace)(nil)

type AddressSpace struct {
	name      string
	log       *log.Logger
	transport Transport

	deviceAddress uint8
	hasDevice     bool

	regs *regmap.Map

	// memory image:
	lastRead []byte
	known    bool
	cells    []*Cell
	aliases  [][]string

	fields   map[string]*binding
	fieldKey []string

	propagating Direction
	depth       int
	changes     changeLog

	observers interfaces.ObserverList
}

func New(cfg Config, transport Transport, logger *log.Logger) (s *AddressSpace, err error) {
	var regs *regmap.Map
	if regs, err = regmap.Compile(cfg.Registers, cfg.MemorySize); err != nil {
		return nil, fmt.Errorf("addrspace: %s: %w", cfg.Name, err)
	}

	s = &AddressSpace{
		name:      cfg.Name,
		log:       logger,
		transport: transport,
		regs:      regs,
		lastRead:  make([]byte, cfg.MemorySize),
		cells:     make([]*Cell, cfg.MemorySize),
		aliases:   make([][]string, cfg.MemorySize),
		fields:    make(map[string]*binding),
	}
	s.changes.space = s

	for _, key := range regs.Registers() {
		addr, _ := regs.Address(key)
		s.aliases[addr] = append(s.aliases[addr], key)
	}
	for addr := range s.cells {
		text := bitfield.FormatRegister(0)
		if def, ok := regs.Default(addr); ok {
			text = bitfield.FormatRegister(def)
		}
		s.cells[addr] = newCell(s.registerKey(addr), addr, text)
		s.cells[addr].Subscribe(&s.changes)
	}

	if err = s.bindFields(cfg.Decoded); err != nil {
		return nil, fmt.Errorf("addrspace: %s: %w", cfg.Name, err)
	}
	// construction is not an observable edit:
	s.changes.reset()

	if cfg.DeviceAddress != nil {
		if err = s.SetDeviceAddress(*cfg.DeviceAddress); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func (s *AddressSpace) bindFields(decoded map[string][]bitfield.Field) error {
	blocks := make([]string, 0, len(decoded))
	for block := range decoded {
		blocks = append(blocks, block)
	}
	sort.Strings(blocks)

	for _, block := range blocks {
		for _, f := range decoded[block] {
			key := regmap.Key(block, f.Name)
			if _, dup := s.fields[key]; dup {
				return &regmap.ConfigurationError{Block: block, Err: fmt.Errorf("%w: '%s'", ErrDuplicateField, key)}
			}

			b, err := s.newBinding(block, key, f)
			if err != nil {
				return &regmap.ConfigurationError{Block: block, Err: err}
			}
			s.fields[key] = b
			s.fieldKey = append(s.fieldKey, key)
		}
	}
	return nil
}

func (s *AddressSpace) registerKey(addr int) string {
	if len(s.aliases[addr]) > 0 {
		return s.aliases[addr][0]
	}
	return fmt.Sprintf("0x%02x", addr)
}

func (s *AddressSpace) Name() string     { return s.name }
func (s *AddressSpace) MemorySize() int  { return len(s.cells) }
func (s *AddressSpace) Map() *regmap.Map { return s.regs }

// Fields returns decoded field keys in declaration order.
func (s *AddressSpace) Fields() []string { return append([]string(nil), s.fieldKey...) }

// Aliases returns every "block/register" key located at addr.
func (s *AddressSpace) Aliases(addr int) []string {
	if addr < 0 || addr >= len(s.aliases) {
		return nil
	}
	return append([]string(nil), s.aliases[addr]...)
}

func (s *AddressSpace) Subscribe(observer interfaces.Observer)   { s.observers.Subscribe(observer) }
func (s *AddressSpace) Unsubscribe(observer interfaces.Observer) { s.observers.Unsubscribe(observer) }

func (s *AddressSpace) DeviceAddress() (addr uint8, ok bool) {
	return s.deviceAddress, s.hasDevice
}

// SetDeviceAddress targets a new device. Changing the address invalidates everything
// read so far; setting the current address again does nothing.
func (s *AddressSpace) SetDeviceAddress(addr uint8) error {
	if addr > MaxDeviceAddress {
		return fmt.Errorf("addrspace: %s: 0x%02x: %w", s.name, addr, ErrInvalidDeviceAddress)
	}
	if s.hasDevice && s.deviceAddress == addr {
		return nil
	}

	s.deviceAddress, s.hasDevice = addr, true
	s.invalidate()

	s.log.Info("device address set", log.String("space", s.name), log.Hex("device", addr))
	s.observers.Notify(DeviceAddressEvent{Space: s.name, DeviceAddress: addr, IsSet: true})
	return nil
}

func (s *AddressSpace) ClearDeviceAddress() {
	if !s.hasDevice {
		return
	}

	s.deviceAddress, s.hasDevice = 0, false
	s.invalidate()

	s.log.Info("device address cleared", log.String("space", s.name))
	s.observers.Notify(DeviceAddressEvent{Space: s.name})
}

func (s *AddressSpace) invalidate() {
	s.known = false
	for i := range s.lastRead {
		s.lastRead[i] = 0
	}
}

// IsModified compares the edit buffer against the last values read from the device.
// Unparseable pending text counts as a modification.
func (s *AddressSpace) IsModified() Modification {
	if !s.known {
		return Unknown
	}
	for i, c := range s.cells {
		v, err := bitfield.ParseByte(c.text)
		if err != nil || v != s.lastRead[i] {
			return Dirty
		}
	}
	return Clean
}

// LastRead returns the last value read from or written to the device at addr and
// whether the memory image is known.
func (s *AddressSpace) LastRead(addr int) (v byte, known bool) {
	if addr < 0 || addr >= len(s.lastRead) {
		return 0, false
	}
	return s.lastRead[addr], s.known
}

func (s *AddressSpace) resolveRegister(key string) (int, error) {
	addr, ok := s.regs.Address(key)
	if !ok {
		return 0, fmt.Errorf("addrspace: %s: '%s': %w", s.name, key, ErrUnknownRegister)
	}
	return addr, nil
}

func (s *AddressSpace) checkRange(addr, length int) error {
	if addr < 0 || length < 0 || addr+length > len(s.cells) {
		return fmt.Errorf("addrspace: %s: [0x%02x, 0x%02x): %w", s.name, addr, addr+length, ErrAddressOutOfRange)
	}
	return nil
}

// RawValue returns the pending text of the named register.
func (s *AddressSpace) RawValue(key string) (string, error) {
	addr, err := s.resolveRegister(key)
	if err != nil {
		return "", err
	}
	return s.cells[addr].text, nil
}

// RegisterValue returns the pending text at addr.
func (s *AddressSpace) RegisterValue(addr int) (string, error) {
	if err := s.checkRange(addr, 1); err != nil {
		return "", err
	}
	return s.cells[addr].text, nil
}

// SetRawValue edits the pending text of the named register. The text is only
// validated when it is written to the device.
func (s *AddressSpace) SetRawValue(key string, text string) error {
	addr, err := s.resolveRegister(key)
	if err != nil {
		return err
	}
	s.edit(func() { s.cells[addr].Set(text) })
	return nil
}

func (s *AddressSpace) SetRegisterValue(addr int, v byte) error {
	if err := s.checkRange(addr, 1); err != nil {
		return err
	}
	s.edit(func() { s.cells[addr].Set(bitfield.FormatRegister(v)) })
	return nil
}

func (s *AddressSpace) DecodedValue(key string) (string, error) {
	b, ok := s.fields[key]
	if !ok {
		return "", fmt.Errorf("addrspace: %s: '%s': %w", s.name, key, ErrUnknownField)
	}
	return b.cell.text, nil
}

func (s *AddressSpace) DecodedWidth(key string) (int, error) {
	b, ok := s.fields[key]
	if !ok {
		return 0, fmt.Errorf("addrspace: %s: '%s': %w", s.name, key, ErrUnknownField)
	}
	return b.width, nil
}

// SetDecodedValue edits a decoded field and pushes its bits into the pending
// registers it is sliced from.
func (s *AddressSpace) SetDecodedValue(key string, text string) error {
	b, ok := s.fields[key]
	if !ok {
		return fmt.Errorf("addrspace: %s: '%s': %w", s.name, key, ErrUnknownField)
	}
	if _, err := bitfield.BitString(text, b.width); err != nil {
		return fmt.Errorf("addrspace: %s: '%s': %w", s.name, key, err)
	}

	s.edit(func() { b.cell.Set(text) })
	return nil
}

// edit runs fn as one observable edit; value change events are emitted after the
// outermost edit returns.
func (s *AddressSpace) edit(fn func()) {
	s.depth++
	defer func() {
		s.depth--
		if s.depth == 0 {
			s.flush()
		}
	}()
	fn()
}

func (s *AddressSpace) flush() {
	changed := s.changes.take()
	for _, c := range changed {
		s.observers.Notify(ValueChangedEvent{Space: s.name, Key: c.key, Address: c.address, Value: c.text})
	}
}

// changeLog records cells that changed during an edit, in first-change order.
type changeLog struct {
	space *AddressSpace
	order []*Cell
	seen  map[*Cell]struct{}
}

func (l *changeLog) Notify(object interface{}) {
	c, ok := object.(*Cell)
	if !ok {
		return
	}
	if l.seen == nil {
		l.seen = make(map[*Cell]struct{})
	}
	if _, ok = l.seen[c]; ok {
		return
	}
	l.seen[c] = struct{}{}
	l.order = append(l.order, c)
}

func (l *changeLog) take() []*Cell {
	order := l.order
	l.reset()
	return order
}

func (l *changeLog) reset() {
	l.order = nil
	l.seen = nil
}
