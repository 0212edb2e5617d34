package regmap

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Block is a named contiguous range of addresses.
type Block struct {
	Name        string
	BaseAddress int
	Length      int
}

// Map is the compiled, immutable address table of one address space.
type Map struct {
	memorySize int

	blocks    map[string]Block
	registers map[string]int
	defaults  map[int]byte
}

// Key forms the flattened name of a register.
func Key(block, register string) string { return block + "/" + register }

// Compile expands the description into concrete blocks and register addresses.
func Compile(desc Description, memorySize int) (*Map, error) {
	if memorySize <= 0 {
		return nil, &ConfigurationError{Err: fmt.Errorf("%w: %d", ErrInvalidMemorySize, memorySize)}
	}

	m := &Map{
		memorySize: memorySize,
		blocks:     make(map[string]Block),
		registers:  make(map[string]int),
		defaults:   make(map[int]byte),
	}

	for _, name := range desc.names() {
		var err error
		switch d := desc[name].(type) {
		case FixedBlock:
			err = m.compileFixed(name, d)
		case IndexedBlock:
			err = m.compileIndexed(name, d)
		default:
			err = ErrNoAddressing
		}
		if err != nil {
			return nil, &ConfigurationError{Block: name, Err: err}
		}
	}

	return m, nil
}

func (m *Map) compileFixed(name string, d FixedBlock) (err error) {
	length, err := span(d.Registers)
	if err != nil {
		return
	}
	if err = m.addBlock(Block{Name: name, BaseAddress: d.BaseAddress, Length: length}); err != nil {
		return
	}

	for _, reg := range sortedRegisterNames(d.Registers) {
		r := d.Registers[reg]
		if err = m.addRegister(Key(name, reg), d.BaseAddress+r.Offset, r.Default); err != nil {
			return
		}
	}
	return
}

type tuple struct {
	key    []string
	params Params
}

func (t tuple) name() string { return strings.Join(t.key, ":") }

func (m *Map) compileIndexed(name string, d IndexedBlock) (err error) {
	if d.Indexer.AddressOf == nil {
		return ErrNoAddressing
	}

	// grow the cross product one variable at a time:
	tuples := []tuple{{params: Params{Values: map[string]int{}}}}
	for _, v := range d.Indexer.Vars {
		if !v.Ranged {
			if v.Name != BlockVar {
				return fmt.Errorf("%w: '%s'", ErrUnboundVariable, v.Name)
			}
			for i := range tuples {
				tuples[i].key = append(tuples[i].key, name)
				tuples[i].params.Block = name
			}
			continue
		}

		next := make([]tuple, 0, len(tuples)*maxInt(v.Max-v.Min, 0))
		for _, t := range tuples {
			for i := v.Min; i < v.Max; i++ {
				n := tuple{
					key:    append(append([]string(nil), t.key...), strconv.Itoa(i)),
					params: t.params.clone(),
				}
				n.params.Values[v.Name] = i
				next = append(next, n)
			}
		}
		tuples = next
	}

	bases := make([]int, len(tuples))
	minAddress, maxAddress := 0, -1
	for i, t := range tuples {
		if bases[i], err = d.Indexer.AddressOf(t.params); err != nil {
			return fmt.Errorf("address of '%s': %w", t.name(), err)
		}
		if i == 0 || bases[i] < minAddress {
			minAddress = bases[i]
		}
		if i == 0 || bases[i] > maxAddress {
			maxAddress = bases[i]
		}
	}

	length, err := span(d.Registers)
	if err != nil {
		return
	}

	regNames := sortedRegisterNames(d.Registers)
	for i, t := range tuples {
		blockName := t.name()
		if len(t.key) == 0 {
			blockName = name
		}

		if err = m.addBlock(Block{Name: blockName, BaseAddress: bases[i], Length: len(d.Registers)}); err != nil {
			return
		}
		for _, reg := range regNames {
			r := d.Registers[reg]
			if err = m.addRegister(Key(blockName, reg), bases[i]+r.Offset, r.Default); err != nil {
				return
			}
		}
	}

	// umbrella block spanning the whole repeated array:
	if len(tuples) > 1 && maxAddress >= minAddress {
		err = m.addBlock(Block{
			Name:        name,
			BaseAddress: minAddress,
			Length:      maxAddress - minAddress + length,
		})
	}
	return
}

// span returns the number of bytes from the first byte of a block to its highest
// register, so reads and writes of a fixed block cover registers behind gaps in the
// offsets.
func span(regs map[string]Register) (length int, err error) {
	for reg, r := range regs {
		if r.Offset < 0 {
			return 0, fmt.Errorf("%w: '%s'", ErrNegativeOffset, reg)
		}
		if r.Offset+1 > length {
			length = r.Offset + 1
		}
	}
	return length, nil
}

func (m *Map) addBlock(b Block) error {
	if _, dup := m.blocks[b.Name]; dup {
		return fmt.Errorf("%w: '%s'", ErrDuplicateBlock, b.Name)
	}
	if b.BaseAddress < 0 || b.BaseAddress+b.Length > m.memorySize {
		return fmt.Errorf("%w: block '%s' spans [%#x, %#x) of %#x bytes",
			ErrOutOfBounds, b.Name, b.BaseAddress, b.BaseAddress+b.Length, m.memorySize)
	}
	m.blocks[b.Name] = b
	return nil
}

func (m *Map) addRegister(key string, address int, def byte) error {
	if _, dup := m.registers[key]; dup {
		return fmt.Errorf("%w: '%s'", ErrDuplicateRegister, key)
	}
	if address < 0 || address >= m.memorySize {
		return fmt.Errorf("%w: register '%s' at %#x of %#x bytes", ErrOutOfBounds, key, address, m.memorySize)
	}
	m.registers[key] = address
	m.defaults[address] = def
	return nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func (m *Map) MemorySize() int { return m.memorySize }

// Block looks up a block by name, including umbrella blocks.
func (m *Map) Block(name string) (b Block, ok bool) {
	b, ok = m.blocks[name]
	return
}

// Address looks up the absolute address of a "block/register" key.
func (m *Map) Address(key string) (address int, ok bool) {
	address, ok = m.registers[key]
	return
}

// Default returns the declared default of the register at address.
func (m *Map) Default(address int) (def byte, ok bool) {
	def, ok = m.defaults[address]
	return
}

// Blocks returns all blocks ordered by base address then name.
func (m *Map) Blocks() []Block {
	blocks := make([]Block, 0, len(m.blocks))
	for _, b := range m.blocks {
		blocks = append(blocks, b)
	}
	sort.Slice(blocks, func(i, j int) bool {
		if blocks[i].BaseAddress != blocks[j].BaseAddress {
			return blocks[i].BaseAddress < blocks[j].BaseAddress
		}
		return blocks[i].Name < blocks[j].Name
	})
	return blocks
}

// Registers returns all register keys ordered by address then key.
func (m *Map) Registers() []string {
	keys := make([]string, 0, len(m.registers))
	for k := range m.registers {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ai, aj := m.registers[keys[i]], m.registers[keys[j]]
		if ai != aj {
			return ai < aj
		}
		return keys[i] < keys[j]
	})
	return keys
}
