// Package bitfield implements the bit-slicing arithmetic used to keep decoded register
// fields and raw register bytes in step.
//
// Bits are numbered from 0 at the least significant end. Internally values are rendered
// as fixed-width binary strings, most significant bit first, and ranges are converted to
// slice bounds into those strings.
package bitfield

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// RegisterWidth is the width in bits of one addressable register.
const RegisterWidth = 8

// MaxFieldWidth is the widest decoded field that can be represented.
const MaxFieldWidth = 64

var (
	ErrInvalidRange = errors.New("invalid bit range")
	ErrInvalidWidth = errors.New("invalid bit width")
)

// Range is an inclusive range of bits, Hi >= Lo.
type Range struct {
	Hi int
	Lo int
}

// ParseRange parses a range given either as "hi-lo" or as a single bit index "b",
// and checks that it fits inside a value of the given width.
func ParseRange(spec string, width int) (r Range, err error) {
	if width < 1 || width > MaxFieldWidth {
		err = fmt.Errorf("bitfield: width %d: %w", width, ErrInvalidWidth)
		return
	}

	parts := strings.Split(strings.TrimSpace(spec), "-")
	if len(parts) > 2 {
		err = fmt.Errorf("bitfield: range %q: %w", spec, ErrInvalidRange)
		return
	}

	bits := make([]int, len(parts))
	for i, part := range parts {
		bits[i], err = strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			err = fmt.Errorf("bitfield: range %q: %w", spec, ErrInvalidRange)
			return
		}
	}

	r.Hi = bits[0]
	r.Lo = bits[0]
	if len(bits) == 2 {
		r.Lo = bits[1]
	}

	if r.Lo < 0 || r.Hi < r.Lo || r.Hi >= width {
		err = fmt.Errorf("bitfield: range %q does not fit in %d bits: %w", spec, width, ErrInvalidRange)
		return
	}
	return
}

func (r Range) Width() int { return r.Hi - r.Lo + 1 }

// Bounds returns the [min, max) slice indices of the range within an MSB-first bit string
// of the given width.
func (r Range) Bounds(width int) (min, max int) {
	min = width - r.Hi - 1
	max = width - r.Lo
	return
}

func (r Range) overlaps(o Range) bool {
	return r.Lo <= o.Hi && o.Lo <= r.Hi
}

func (r Range) String() string {
	if r.Hi == r.Lo {
		return strconv.Itoa(r.Hi)
	}
	return fmt.Sprintf("%d-%d", r.Hi, r.Lo)
}
