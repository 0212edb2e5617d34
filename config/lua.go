package config

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"i2cgui/regmap"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
)

var ErrAddressExpression = errors.New("address expression")

// globals removed from the base library before evaluation:
var unsafeGlobals = []string{"dofile", "loadfile", "load", "loadstring", "require", "module", "print"}

type expression struct {
	source string
	proto  *lua.FunctionProto
}

func compileExpression(name, source string) (*expression, error) {
	if strings.TrimSpace(source) == "" {
		return nil, fmt.Errorf("%w: empty", ErrAddressExpression)
	}

	chunk, err := parse.Parse(strings.NewReader("return "+source), name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAddressExpression, err)
	}
	proto, err := lua.Compile(chunk, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAddressExpression, err)
	}

	return &expression{source: source, proto: proto}, nil
}

// eval runs the expression in a fresh state so evaluations cannot affect each other.
func (e *expression) eval(p regmap.Params) (int, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()

	for _, lib := range []struct {
		name string
		open lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.MathLibName, lua.OpenMath},
	} {
		if err := L.CallByParam(lua.P{Fn: L.NewFunction(lib.open), NRet: 0, Protect: true}, lua.LString(lib.name)); err != nil {
			return 0, err
		}
	}
	for _, name := range unsafeGlobals {
		L.SetGlobal(name, lua.LNil)
	}

	L.SetGlobal(regmap.BlockVar, lua.LString(p.Block))
	for name, v := range p.Values {
		L.SetGlobal(name, lua.LNumber(v))
	}

	L.Push(L.NewFunctionFromProto(e.proto))
	if err := L.PCall(0, 1, nil); err != nil {
		return 0, fmt.Errorf("%w '%s': %v", ErrAddressExpression, e.source, err)
	}
	ret := L.Get(-1)
	L.Pop(1)

	n, ok := ret.(lua.LNumber)
	if !ok {
		return 0, fmt.Errorf("%w '%s': returned %s, not a number", ErrAddressExpression, e.source, ret.Type().String())
	}
	f := float64(n)
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w '%s': returned non-integer %v", ErrAddressExpression, e.source, f)
	}

	return int(f), nil
}
