package bitfield

import (
	"errors"
	"testing"

	"github.com/retroenv/retrogolib/assert"
)

func TestParseRange(t *testing.T) {
	tests := []struct {
		name    string
		spec    string
		width   int
		want    Range
		wantErr bool
	}{
		{name: "span", spec: "5-3", width: 8, want: Range{Hi: 5, Lo: 3}},
		{name: "single bit", spec: "7", width: 8, want: Range{Hi: 7, Lo: 7}},
		{name: "whole byte", spec: "7-0", width: 8, want: Range{Hi: 7, Lo: 0}},
		{name: "spaces", spec: " 2 - 1 ", width: 3, want: Range{Hi: 2, Lo: 1}},
		{name: "reversed", spec: "3-5", width: 8, wantErr: true},
		{name: "too high", spec: "8", width: 8, wantErr: true},
		{name: "negative", spec: "-1", width: 8, wantErr: true},
		{name: "garbage", spec: "a-b", width: 8, wantErr: true},
		{name: "three parts", spec: "5-3-1", width: 8, wantErr: true},
		{name: "zero width", spec: "0", width: 0, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRange(tt.spec, tt.width)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRange_Bounds(t *testing.T) {
	min, max := Range{Hi: 5, Lo: 3}.Bounds(8)
	assert.Equal(t, 2, min)
	assert.Equal(t, 5, max)

	// a single bit is one character wide:
	min, max = Range{Hi: 0, Lo: 0}.Bounds(8)
	assert.Equal(t, 7, min)
	assert.Equal(t, 8, max)
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		text    string
		want    uint64
		wantErr bool
	}{
		{text: "", want: 0},
		{text: "0x", want: 0},
		{text: "0x2c", want: 0x2c},
		{text: "0b101", want: 5},
		{text: "42", want: 42},
		{text: " 7 ", want: 7},
		{text: "-1", wantErr: true},
		{text: "zz", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, err := ParseValue(tt.text)
			if tt.wantErr {
				var parseErr *ParseError
				assert.True(t, errors.As(err, &parseErr))
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseByte(t *testing.T) {
	v, err := ParseByte("0xff")
	assert.NoError(t, err)
	assert.Equal(t, byte(0xff), v)

	_, err = ParseByte("0x100")
	assert.True(t, errors.Is(err, ErrOutOfRange))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "0x0a", FormatRegister(10))
	assert.Equal(t, "1", FormatField(1, 1))
	assert.Equal(t, "0x6", FormatField(6, 3))
	assert.Equal(t, "0x006", FormatField(6, 10))
	assert.Equal(t, "0x00ff", FormatField(0xff, 16))
}

func TestSlice_ExtractInject(t *testing.T) {
	f := Field{
		Name:  "DAC",
		Width: 3,
		Positions: []Position{
			{Register: "R0", RegisterRange: "5-3", FieldRange: "2-0"},
		},
	}
	slices, err := f.Compile()
	assert.NoError(t, err)
	assert.Len(t, slices, 1)

	value, err := slices[0].Extract("", f.Width, "0b10110100")
	assert.NoError(t, err)
	assert.Equal(t, "0x6", value)

	reg, err := slices[0].Inject("0b10110100", "5", f.Width)
	assert.NoError(t, err)
	assert.Equal(t, FormatRegister(0b10101100), reg)
}

func TestSlice_MultiRegister(t *testing.T) {
	// a 10 bit value: low byte in R0, top two bits in R1[1-0]
	f := Field{
		Name:  "TH",
		Width: 10,
		Positions: []Position{
			{Register: "R0", RegisterRange: "7-0", FieldRange: "7-0"},
			{Register: "R1", RegisterRange: "1-0", FieldRange: "9-8"},
		},
	}
	slices, err := f.Compile()
	assert.NoError(t, err)

	value := ""
	value, err = slices[0].Extract(value, f.Width, "0x34")
	assert.NoError(t, err)
	value, err = slices[1].Extract(value, f.Width, "0xfe")
	assert.NoError(t, err)
	assert.Equal(t, "0x234", value)

	r0, err := slices[0].Inject("0x00", "0x1ff", f.Width)
	assert.NoError(t, err)
	r1, err := slices[1].Inject("0xf0", "0x1ff", f.Width)
	assert.NoError(t, err)
	assert.Equal(t, "0xff", r0)
	assert.Equal(t, "0xf1", r1)
}

func TestSlice_SingleBit(t *testing.T) {
	f := Field{Name: "EN", Width: 1, Positions: []Position{{Register: "R0", RegisterRange: "6", FieldRange: "0"}}}
	slices, err := f.Compile()
	assert.NoError(t, err)

	value, err := slices[0].Extract("0", f.Width, "0x40")
	assert.NoError(t, err)
	assert.Equal(t, "1", value)

	reg, err := slices[0].Inject("0xff", "0", f.Width)
	assert.NoError(t, err)
	assert.Equal(t, "0xbf", reg)
}

func TestField_Compile(t *testing.T) {
	tests := []struct {
		name  string
		field Field
		err   error
	}{
		{
			name:  "width mismatch",
			field: Field{Name: "x", Width: 4, Positions: []Position{{Register: "R", RegisterRange: "2-0", FieldRange: "3-0"}}},
			err:   ErrWidthMismatch,
		},
		{
			name: "field bits overlap",
			field: Field{Name: "x", Width: 4, Positions: []Position{
				{Register: "R0", RegisterRange: "2-0", FieldRange: "2-0"},
				{Register: "R1", RegisterRange: "1-0", FieldRange: "3-2"},
			}},
			err: ErrOverlap,
		},
		{
			name: "register bits overlap",
			field: Field{Name: "x", Width: 4, Positions: []Position{
				{Register: "R0", RegisterRange: "1-0", FieldRange: "1-0"},
				{Register: "R0", RegisterRange: "2-1", FieldRange: "3-2"},
			}},
			err: ErrOverlap,
		},
		{
			name:  "range outside field",
			field: Field{Name: "x", Width: 2, Positions: []Position{{Register: "R", RegisterRange: "2-0", FieldRange: "2-0"}}},
			err:   ErrInvalidRange,
		},
		{
			name:  "no positions",
			field: Field{Name: "x", Width: 2},
			err:   ErrNoPositions,
		},
		{
			name:  "too wide",
			field: Field{Name: "x", Width: 65, Positions: []Position{{Register: "R", RegisterRange: "0", FieldRange: "0"}}},
			err:   ErrInvalidWidth,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.field.Compile()
			assert.True(t, errors.Is(err, tt.err))
		})
	}
}
