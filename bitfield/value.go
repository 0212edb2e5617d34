package bitfield

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrOutOfRange = errors.New("value out of range")

// ParseError reports cell text that is not an acceptable unsigned value.
type ParseError struct {
	Text string
	Err  error
}

func (e *ParseError) Unwrap() error { return e.Err }
func (e *ParseError) Error() string {
	return fmt.Sprintf("bitfield: cannot parse %q: %v", e.Text, e.Err)
}

// ParseValue parses an unsigned integer literal in any base Go recognises.
// Empty text and a bare "0x" read as zero.
func ParseValue(text string) (uint64, error) {
	t := strings.TrimSpace(text)
	if t == "" || t == "0x" || t == "0X" {
		return 0, nil
	}

	v, err := strconv.ParseUint(t, 0, 64)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) {
			err = numErr.Err
		}
		return 0, &ParseError{Text: text, Err: err}
	}
	return v, nil
}

// ParseByte parses text as a register value.
func ParseByte(text string) (byte, error) {
	v, err := ParseValue(text)
	if err != nil {
		return 0, err
	}
	if v > 0xFF {
		return 0, &ParseError{Text: text, Err: ErrOutOfRange}
	}
	return byte(v), nil
}

// BitString renders text as a zero-padded binary string of exactly width bits.
func BitString(text string, width int) (string, error) {
	v, err := ParseValue(text)
	if err != nil {
		return "", err
	}
	if width < MaxFieldWidth && v>>uint(width) != 0 {
		return "", &ParseError{Text: text, Err: ErrOutOfRange}
	}
	return fmt.Sprintf("%0*b", width, v), nil
}

// FormatRegister formats a register value as two hex digits.
func FormatRegister(v byte) string {
	return fmt.Sprintf("0x%02x", v)
}

// FormatField formats a decoded value: single bits as "0"/"1", wider values as hex
// zero-padded to the number of nibbles the width needs.
func FormatField(v uint64, width int) string {
	if width == 1 {
		return strconv.FormatUint(v&1, 10)
	}
	return fmt.Sprintf("0x%0*x", (width+3)/4, v)
}

func parseBits(bits string) uint64 {
	// bits only ever holds '0'/'1' built by BitString and Splice:
	v, _ := strconv.ParseUint(bits, 2, 64)
	return v
}
