// Package regmap compiles a declarative description of an address space into a flat
// table of block and register addresses.
package regmap

import "sort"

// BlockVar is the index pseudo-variable bound to the declaring block's own name.
const BlockVar = "block"

// Register is a single byte cell declared relative to its block.
type Register struct {
	Offset  int
	Default byte
}

// Definition is either a FixedBlock or an IndexedBlock.
type Definition interface {
	registers() map[string]Register
}

// FixedBlock is a block at an explicit base address.
type FixedBlock struct {
	BaseAddress int
	Registers   map[string]Register
}

func (b FixedBlock) registers() map[string]Register { return b.Registers }

// IndexedBlock is a block template replicated once per point of its indexer's
// parameter space.
type IndexedBlock struct {
	Indexer   Indexer
	Registers map[string]Register
}

func (b IndexedBlock) registers() map[string]Register { return b.Registers }

// IndexVar is one dimension of an indexer. Ranged variables take every integer in
// [Min, Max); the unranged BlockVar binds to the block name.
type IndexVar struct {
	Name   string
	Ranged bool
	Min    int
	Max    int
}

// Indexer expands an IndexedBlock. AddressOf must be deterministic and free of side
// effects; distinct tuples may map to the same address.
type Indexer struct {
	Vars      []IndexVar
	AddressOf AddressFunc
}

// Params is one concrete point of an indexer's parameter space.
type Params struct {
	Block  string
	Values map[string]int
}

// Int returns the value bound to the named ranged variable.
func (p Params) Int(name string) int { return p.Values[name] }

func (p Params) clone() Params {
	values := make(map[string]int, len(p.Values)+1)
	for k, v := range p.Values {
		values[k] = v
	}
	return Params{Block: p.Block, Values: values}
}

type AddressFunc func(p Params) (int, error)

// Description maps block names to their definitions.
type Description map[string]Definition

func (d Description) names() []string {
	names := make([]string, 0, len(d))
	for name := range d {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedRegisterNames(regs map[string]Register) []string {
	names := make([]string, 0, len(regs))
	for name := range regs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
