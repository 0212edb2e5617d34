package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"i2cgui/addrspace"
	"i2cgui/regmap"

	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
)

func TestNumber_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Number
		wantErr bool
	}{
		{name: "decimal", input: `44`, want: 44},
		{name: "hex string", input: `"0x2c"`, want: 0x2c},
		{name: "binary string", input: `"0b101"`, want: 5},
		{name: "decimal string", input: `" 17 "`, want: 17},
		{name: "garbage", input: `"0xzz"`, wantErr: true},
		{name: "float", input: `1.5`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var n Number
			err := n.UnmarshalJSON([]byte(tt.input))
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidNumber))
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, n)
		})
	}
}

func TestDemo(t *testing.T) {
	cfg, err := Demo().SpaceConfig()
	assert.NoError(t, err)
	assert.NotNil(t, cfg.DeviceAddress)
	assert.Equal(t, uint8(0x48), *cfg.DeviceAddress)

	s, err := addrspace.New(cfg, nil, log.NewTestLogger(t))
	assert.NoError(t, err)

	ch, ok := s.Map().Block("Channel:2")
	assert.True(t, ok)
	assert.Equal(t, 0x18, ch.BaseAddress)
	assert.Equal(t, 4, ch.Length)

	umbrella, ok := s.Map().Block("Channel")
	assert.True(t, ok)
	assert.Equal(t, 0x10, umbrella.BaseAddress)
	assert.Equal(t, 16, umbrella.Length)

	mode, err := s.RawValue("Control/Mode")
	assert.NoError(t, err)
	assert.Equal(t, "0xb4", mode)

	threshold, err := s.DecodedValue("Control/Threshold")
	assert.NoError(t, err)
	assert.Equal(t, "0x200", threshold)

	// fields of an indexed block exist once per concrete block:
	for _, key := range []string{"Channel:0/Result", "Channel:3/Result"} {
		width, err := s.DecodedWidth(key)
		assert.NoError(t, err, key)
		assert.Equal(t, 16, width)
	}
	_, err = s.DecodedValue("Channel/Result")
	assert.True(t, errors.Is(err, addrspace.ErrUnknownField))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "space.json")
	assert.NoError(t, os.WriteFile(path, []byte(`{
		"name": "Grid",
		"memorySize": "0x400",
		"blocks": {
			"Pixel": {
				"indexer": {
					"vars": [{"name": "row", "min": 0, "max": 4}, {"name": "col", "min": 0, "max": 4}],
					"address": "0x100 + row * 0x20 + col * 2"
				},
				"registers": {"Cfg": {"offset": 0}, "Status": {"offset": 1, "default": 3}}
			},
			"Bank": {
				"indexer": {
					"vars": [{"name": "block"}],
					"address": "({Bank = 0x300})[block]"
				},
				"registers": {"Sel": {"offset": 0}}
			}
		}
	}`), 0o644))

	f, err := Load(path)
	assert.NoError(t, err)
	cfg, err := f.SpaceConfig()
	assert.NoError(t, err)
	assert.True(t, cfg.DeviceAddress == nil)

	m, err := regmap.Compile(cfg.Registers, cfg.MemorySize)
	assert.NoError(t, err)

	addr, ok := m.Address("3:2/Status")
	assert.True(t, ok)
	assert.Equal(t, 0x100+3*0x20+2*2+1, addr)

	// single tuple, so no umbrella:
	bank, ok := m.Block("Bank")
	assert.True(t, ok)
	assert.Equal(t, 0x300, bank.BaseAddress)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{
			name:  "both addressings",
			input: `{"memorySize": 16, "blocks": {"A": {"baseAddress": 0, "indexer": {"vars": [], "address": "0"}, "registers": {}}}}`,
			want:  ErrAmbiguousAddressing,
		},
		{
			name:  "unranged variable",
			input: `{"memorySize": 16, "blocks": {"A": {"indexer": {"vars": [{"name": "i"}], "address": "i"}, "registers": {}}}}`,
			want:  ErrInvalidVar,
		},
		{
			name:  "half range",
			input: `{"memorySize": 16, "blocks": {"A": {"indexer": {"vars": [{"name": "i", "min": 0}], "address": "i"}, "registers": {}}}}`,
			want:  ErrInvalidVar,
		},
		{
			name:  "duplicate variable",
			input: `{"memorySize": 16, "blocks": {"A": {"indexer": {"vars": [{"name": "i", "min": 0, "max": 1}, {"name": "i", "min": 0, "max": 1}], "address": "i"}, "registers": {}}}}`,
			want:  ErrInvalidVar,
		},
		{
			name:  "syntax error",
			input: `{"memorySize": 16, "blocks": {"A": {"indexer": {"vars": [], "address": "1 +"}, "registers": {}}}}`,
			want:  ErrAddressExpression,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			assert.True(t, errors.Is(err, tt.want))

			var ce *regmap.ConfigurationError
			assert.True(t, errors.As(err, &ce))
			assert.Equal(t, "A", ce.Block)
		})
	}

	_, err := Parse([]byte(`{"memorySize": 16, "colour": "blue"}`))
	assert.ErrorContains(t, err, "unknown field")
}

func TestSpaceConfig_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{
			name:  "no addressing",
			input: `{"memorySize": 16, "blocks": {"A": {"registers": {"R": {"offset": 0}}}}}`,
			want:  regmap.ErrNoAddressing,
		},
		{
			name:  "expression returns a string",
			input: `{"memorySize": 16, "blocks": {"A": {"indexer": {"vars": [{"name": "block"}], "address": "block"}, "registers": {"R": {"offset": 0}}}}}`,
			want:  ErrAddressExpression,
		},
		{
			name:  "expression is fractional",
			input: `{"memorySize": 16, "blocks": {"A": {"indexer": {"vars": [{"name": "i", "min": 0, "max": 2}], "address": "i / 2"}, "registers": {"R": {"offset": 0}}}}}`,
			want:  ErrAddressExpression,
		},
		{
			name:  "sandboxed",
			input: `{"memorySize": 16, "blocks": {"A": {"indexer": {"vars": [], "address": "dofile('x')"}, "registers": {"R": {"offset": 0}}}}}`,
			want:  ErrAddressExpression,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Parse([]byte(tt.input))
			assert.NoError(t, err)
			cfg, err := f.SpaceConfig()
			assert.NoError(t, err)

			_, err = addrspace.New(cfg, nil, log.NewTestLogger(t))
			assert.True(t, errors.Is(err, tt.want))
		})
	}

	f, err := Parse([]byte(`{"memorySize": 16, "blocks": {"A": {"baseAddress": 0, "registers": {"R": {"offset": 0, "default": 256}}}}}`))
	assert.NoError(t, err)
	_, err = f.SpaceConfig()
	assert.Error(t, err)

	f, err = Parse([]byte(`{"deviceAddress": "0x80", "memorySize": 16, "blocks": {}}`))
	assert.NoError(t, err)
	_, err = f.SpaceConfig()
	assert.True(t, errors.Is(err, addrspace.ErrInvalidDeviceAddress))
}
