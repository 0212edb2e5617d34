package addrspace

import (
	"fmt"
	"strings"

	"i2cgui/bitfield"
	"i2cgui/regmap"

	"github.com/retroenv/retrogolib/log"
)

// Direction is the set of propagation directions currently in progress.
type Direction uint8

const (
	Idle                Direction = 0
	FromRegisterToField Direction = 1 << 0
	FromFieldToRegister Direction = 1 << 1
)

func (d Direction) String() string {
	if d == Idle {
		return "Idle"
	}
	var parts []string
	if d&FromRegisterToField != 0 {
		parts = append(parts, "FromRegisterToField")
	}
	if d&FromFieldToRegister != 0 {
		parts = append(parts, "FromFieldToRegister")
	}
	return "Propagating(" + strings.Join(parts, "|") + ")"
}

// PropagationState reports the directions being propagated; Idle outside of an edit.
func (s *AddressSpace) PropagationState() Direction { return s.propagating }

// propagate runs fn unless a propagation in direction d is already in progress.
func (s *AddressSpace) propagate(d Direction, fn func()) {
	if s.propagating&d != 0 {
		return
	}
	s.propagating |= d
	defer func() { s.propagating &^= d }()
	fn()
}

type boundSlice struct {
	address int
	bitfield.Slice
}

// binding keeps one decoded field consistent with the register cells it is sliced
// from. It observes its own field cell and every register cell it touches.
type binding struct {
	space  *AddressSpace
	width  int
	cell   *Cell
	slices []boundSlice
	// set while toRegisters is pushing this field's bits into its registers
	writing bool
}

func (s *AddressSpace) newBinding(block, key string, f bitfield.Field) (*binding, error) {
	slices, err := f.Compile()
	if err != nil {
		return nil, err
	}

	b := &binding{
		space:  s,
		width:  f.Width,
		cell:   newCell(key, -1, bitfield.FormatField(0, f.Width)),
		slices: make([]boundSlice, 0, len(slices)),
	}
	for _, sl := range slices {
		addr, ok := s.regs.Address(regmap.Key(block, sl.Register))
		if !ok {
			return nil, fmt.Errorf("field '%s': %w: '%s'", f.Name, ErrUnknownRegister, sl.Register)
		}
		b.slices = append(b.slices, boundSlice{address: addr, Slice: sl})
	}

	// start from the register defaults:
	b.toField()

	b.cell.Subscribe(&s.changes)
	b.cell.Subscribe(b)
	for _, sl := range b.slices {
		s.cells[sl.address].Subscribe(b)
	}
	return b, nil
}

func (b *binding) Notify(object interface{}) {
	if object == b.cell {
		b.space.propagate(FromFieldToRegister, b.toRegisters)
		return
	}
	if b.writing {
		return
	}
	b.space.propagate(FromRegisterToField, b.toField)
}

// toField rebuilds the field from its register slices in declaration order.
func (b *binding) toField() {
	text := b.cell.text
	for _, sl := range b.slices {
		next, err := sl.Extract(text, b.width, b.space.cells[sl.address].text)
		if err != nil {
			b.space.log.Warn("cannot decode field",
				log.String("space", b.space.name),
				log.String("field", b.cell.key),
				log.Hex("address", sl.address),
				log.Err(err))
			return
		}
		text = next
	}
	b.cell.Set(text)
}

// toRegisters injects the field into its registers. Other fields sliced from the same
// registers follow each register update; this field is rebuilt once at the end so it
// never passes through values decoded from partially updated registers.
func (b *binding) toRegisters() {
	b.writing = true
	defer func() { b.writing = false }()

	text := b.cell.text
	for _, sl := range b.slices {
		reg := b.space.cells[sl.address]
		next, err := sl.Inject(reg.text, text, b.width)
		if err != nil {
			b.space.log.Warn("cannot encode field",
				log.String("space", b.space.name),
				log.String("field", b.cell.key),
				log.Hex("address", sl.address),
				log.Err(err))
			return
		}
		reg.Set(next)
	}

	b.writing = false
	b.toField()
}
