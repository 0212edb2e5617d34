// Package config loads declarative address space descriptions from JSON.
//
// A description names its blocks, each either at a fixed base address or
// replicated by an indexer whose address is a Lua expression over the index
// variables, plus the decoded fields built from each block's registers.
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"i2cgui/addrspace"
	"i2cgui/bitfield"
	"i2cgui/regmap"
)

var (
	ErrAmbiguousAddressing = errors.New("block has both a base address and an indexer")
	ErrInvalidNumber       = errors.New("invalid number")
	ErrInvalidVar          = errors.New("invalid index variable")
)

//go:embed demo.json
var demo []byte

// Number is an integer written either as a JSON number or as a string in any
// base strconv understands ("0x2c", "0b1010", "44").
type Number int

func (n Number) MarshalJSON() ([]byte, error) {
	return json.Marshal(int(n))
}

func (n *Number) UnmarshalJSON(j []byte) error {
	j = bytes.TrimSpace(j)
	if len(j) > 0 && j[0] == '"' {
		var s string
		if err := json.Unmarshal(j, &s); err != nil {
			return err
		}
		v, err := strconv.ParseInt(strings.TrimSpace(s), 0, 64)
		if err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidNumber, s)
		}
		*n = Number(v)
		return nil
	}

	var v int
	if err := json.Unmarshal(j, &v); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidNumber, j)
	}
	*n = Number(v)
	return nil
}

type File struct {
	Name          string           `json:"name"`
	DeviceAddress *Number          `json:"deviceAddress,omitempty"`
	MemorySize    Number           `json:"memorySize"`
	Blocks        map[string]Block `json:"blocks"`
}

type Block struct {
	BaseAddress *Number             `json:"baseAddress,omitempty"`
	Indexer     *Indexer            `json:"indexer,omitempty"`
	Registers   map[string]Register `json:"registers"`
	Fields      []Field             `json:"fields,omitempty"`
}

type Register struct {
	Offset  Number `json:"offset"`
	Default Number `json:"default"`
}

type Indexer struct {
	Vars []Var `json:"vars"`
	// Address is a Lua expression evaluated once per index tuple.
	Address string `json:"address"`

	compiled *expression
}

// Var is ranged over [Min, Max) when both bounds are given; otherwise it must be
// the "block" variable.
type Var struct {
	Name string  `json:"name"`
	Min  *Number `json:"min,omitempty"`
	Max  *Number `json:"max,omitempty"`
}

type Field struct {
	Name      string     `json:"name"`
	Width     int        `json:"width"`
	Positions []Position `json:"positions"`
}

type Position struct {
	Register     string `json:"register"`
	RegisterBits string `json:"registerBits"`
	FieldBits    string `json:"fieldBits"`
}

// Load reads and parses the description at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return f, nil
}

// Demo returns the built-in description of the mock driver's demo sensor.
func Demo() *File {
	f, err := Parse(demo)
	if err != nil {
		panic(err)
	}
	return f
}

// Parse decodes a description and checks everything that can be checked without
// evaluating address expressions.
func Parse(data []byte) (f *File, err error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	f = &File{}
	if err = dec.Decode(f); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	for name, b := range f.Blocks {
		if b.BaseAddress != nil && b.Indexer != nil {
			return nil, &regmap.ConfigurationError{Block: name, Err: ErrAmbiguousAddressing}
		}
		if b.Indexer == nil {
			continue
		}
		if err = b.Indexer.validate(); err != nil {
			return nil, &regmap.ConfigurationError{Block: name, Err: err}
		}
		if b.Indexer.compiled, err = compileExpression(name, b.Indexer.Address); err != nil {
			return nil, &regmap.ConfigurationError{Block: name, Err: err}
		}
	}

	return f, nil
}

func (x *Indexer) validate() error {
	seen := make(map[string]bool, len(x.Vars))
	for _, v := range x.Vars {
		if v.Name == "" || seen[v.Name] {
			return fmt.Errorf("%w: '%s'", ErrInvalidVar, v.Name)
		}
		seen[v.Name] = true

		ranged := v.Min != nil && v.Max != nil
		if !ranged && (v.Min != nil || v.Max != nil) {
			return fmt.Errorf("%w: '%s' needs both min and max", ErrInvalidVar, v.Name)
		}
		if !ranged && v.Name != regmap.BlockVar {
			return fmt.Errorf("%w: '%s' has no range", ErrInvalidVar, v.Name)
		}
		if ranged && v.Name == regmap.BlockVar {
			return fmt.Errorf("%w: '%s' cannot be ranged", ErrInvalidVar, v.Name)
		}
	}
	return nil
}

// SpaceConfig converts the description into an address space configuration.
func (f *File) SpaceConfig() (cfg addrspace.Config, err error) {
	cfg = addrspace.Config{
		Name:       f.Name,
		MemorySize: int(f.MemorySize),
		Registers:  make(regmap.Description, len(f.Blocks)),
		Decoded:    make(map[string][]bitfield.Field),
	}

	if f.DeviceAddress != nil {
		if *f.DeviceAddress < 0 || *f.DeviceAddress > addrspace.MaxDeviceAddress {
			return cfg, fmt.Errorf("config: %w: %#x", addrspace.ErrInvalidDeviceAddress, int(*f.DeviceAddress))
		}
		addr := uint8(*f.DeviceAddress)
		cfg.DeviceAddress = &addr
	}

	for name, b := range f.Blocks {
		regs := make(map[string]regmap.Register, len(b.Registers))
		for rn, r := range b.Registers {
			if r.Default < 0 || r.Default > 0xFF {
				return cfg, &regmap.ConfigurationError{
					Block: name,
					Err:   fmt.Errorf("register '%s' default %#x: %w", rn, int(r.Default), bitfield.ErrOutOfRange),
				}
			}
			regs[rn] = regmap.Register{Offset: int(r.Offset), Default: byte(r.Default)}
		}

		switch {
		case b.BaseAddress != nil:
			cfg.Registers[name] = regmap.FixedBlock{BaseAddress: int(*b.BaseAddress), Registers: regs}
		case b.Indexer != nil:
			cfg.Registers[name] = regmap.IndexedBlock{Indexer: b.Indexer.indexer(), Registers: regs}
		default:
			// rejected by the compiler with ErrNoAddressing
			cfg.Registers[name] = nil
		}

		fields := make([]bitfield.Field, 0, len(b.Fields))
		for _, fd := range b.Fields {
			field := bitfield.Field{Name: fd.Name, Width: fd.Width}
			for _, p := range fd.Positions {
				field.Positions = append(field.Positions, bitfield.Position{
					Register:      p.Register,
					RegisterRange: p.RegisterBits,
					FieldRange:    p.FieldBits,
				})
			}
			fields = append(fields, field)
		}
		if len(fields) == 0 {
			continue
		}
		for _, concrete := range concreteBlocks(name, cfg.Registers[name], cfg.MemorySize) {
			cfg.Decoded[concrete] = fields
		}
	}

	return cfg, nil
}

// concreteBlocks lists the blocks a declaration expands to. Fields declared on an
// indexed block are replicated onto each of them.
func concreteBlocks(name string, def regmap.Definition, memorySize int) []string {
	if _, ok := def.(regmap.IndexedBlock); !ok {
		return []string{name}
	}

	m, err := regmap.Compile(regmap.Description{name: def}, memorySize)
	if err != nil {
		// the address space compiler reports this
		return []string{name}
	}

	blocks := m.Blocks()
	if len(blocks) == 1 {
		return []string{blocks[0].Name}
	}
	names := make([]string, 0, len(blocks)-1)
	for _, b := range blocks {
		if b.Name != name {
			names = append(names, b.Name)
		}
	}
	return names
}

func (x *Indexer) indexer() regmap.Indexer {
	vars := make([]regmap.IndexVar, 0, len(x.Vars))
	for _, v := range x.Vars {
		iv := regmap.IndexVar{Name: v.Name}
		if v.Min != nil && v.Max != nil {
			iv.Ranged = true
			iv.Min, iv.Max = int(*v.Min), int(*v.Max)
		}
		vars = append(vars, iv)
	}

	compiled := x.compiled
	return regmap.Indexer{
		Vars: vars,
		AddressOf: func(p regmap.Params) (int, error) {
			return compiled.eval(p)
		},
	}
}
