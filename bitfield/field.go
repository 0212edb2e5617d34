package bitfield

import (
	"errors"
	"fmt"
)

var (
	ErrWidthMismatch = errors.New("register and field ranges differ in width")
	ErrOverlap       = errors.New("positions overlap")
	ErrNoPositions   = errors.New("field has no positions")
)

// Position maps a range of bits of one register onto a range of bits of a field.
// Ranges are written "hi-lo" or as a single bit.
type Position struct {
	Register      string
	RegisterRange string
	FieldRange    string
}

// Field is the declaration of a decoded value reconstructed from register slices
// concatenated in declaration order.
type Field struct {
	Name      string
	Width     int
	Positions []Position
}

// Slice is a validated Position.
type Slice struct {
	Register     string
	RegisterBits Range
	FieldBits    Range
}

// Compile validates the field declaration and returns its slices in declaration order.
func (f Field) Compile() (slices []Slice, err error) {
	if f.Width < 1 || f.Width > MaxFieldWidth {
		return nil, fmt.Errorf("bitfield: field '%s' width %d: %w", f.Name, f.Width, ErrInvalidWidth)
	}
	if len(f.Positions) == 0 {
		return nil, fmt.Errorf("bitfield: field '%s': %w", f.Name, ErrNoPositions)
	}

	slices = make([]Slice, 0, len(f.Positions))
	for _, p := range f.Positions {
		var s Slice
		s.Register = p.Register
		if s.RegisterBits, err = ParseRange(p.RegisterRange, RegisterWidth); err != nil {
			return nil, fmt.Errorf("bitfield: field '%s' register '%s': %w", f.Name, p.Register, err)
		}
		if s.FieldBits, err = ParseRange(p.FieldRange, f.Width); err != nil {
			return nil, fmt.Errorf("bitfield: field '%s' register '%s': %w", f.Name, p.Register, err)
		}
		if s.RegisterBits.Width() != s.FieldBits.Width() {
			return nil, fmt.Errorf("bitfield: field '%s' register '%s' [%s] vs [%s]: %w",
				f.Name, p.Register, s.RegisterBits, s.FieldBits, ErrWidthMismatch)
		}

		for _, o := range slices {
			if o.FieldBits.overlaps(s.FieldBits) {
				return nil, fmt.Errorf("bitfield: field '%s' bits [%s] and [%s]: %w",
					f.Name, o.FieldBits, s.FieldBits, ErrOverlap)
			}
			if o.Register == s.Register && o.RegisterBits.overlaps(s.RegisterBits) {
				return nil, fmt.Errorf("bitfield: field '%s' register '%s' bits [%s] and [%s]: %w",
					f.Name, s.Register, o.RegisterBits, s.RegisterBits, ErrOverlap)
			}
		}

		slices = append(slices, s)
	}
	return
}

// Splice copies src[srcRange] into dst[dstRange], both MSB-first bit strings.
func Splice(dst string, dstRange Range, src string, srcRange Range) string {
	dmin, dmax := dstRange.Bounds(len(dst))
	smin, smax := srcRange.Bounds(len(src))

	b := []byte(dst)
	copy(b[dmin:dmax], src[smin:smax])
	return string(b)
}

// Extract returns the field text after overwriting the slice's field bits with the
// slice's register bits taken from registerText.
func (s Slice) Extract(fieldText string, fieldWidth int, registerText string) (string, error) {
	reg, err := BitString(registerText, RegisterWidth)
	if err != nil {
		return "", err
	}
	val, err := BitString(fieldText, fieldWidth)
	if err != nil {
		return "", err
	}

	val = Splice(val, s.FieldBits, reg, s.RegisterBits)
	return FormatField(parseBits(val), fieldWidth), nil
}

// Inject returns the register text after overwriting the slice's register bits with the
// slice's field bits taken from fieldText.
func (s Slice) Inject(registerText string, fieldText string, fieldWidth int) (string, error) {
	reg, err := BitString(registerText, RegisterWidth)
	if err != nil {
		return "", err
	}
	val, err := BitString(fieldText, fieldWidth)
	if err != nil {
		return "", err
	}

	reg = Splice(reg, s.RegisterBits, val, s.FieldBits)
	return FormatRegister(byte(parseBits(reg))), nil
}
