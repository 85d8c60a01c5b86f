// Package addr implements the addressing-mode helpers ISO-TP's codec
// depends on: the address-extension prefix length per mode, and the
// payload capacity that leaves for the ISO-TP layer.
package addr

import (
	"errors"

	"github.com/canbus-go/isotp/internal/link"
)

// Mode is one of the four ISO-TP addressing modes.
type Mode uint8

const (
	Normal Mode = iota
	NormalFixed
	Extended
	Mixed
)

var ErrInvalidMode = errors.New("isotp/addr: invalid addressing mode")

// Len returns the number of address-extension bytes a mode contributes
// to the CAN payload: 0 for Normal/NormalFixed, 1 for Extended/Mixed.
func Len(mode Mode) (int, error) {
	switch mode {
	case Normal, NormalFixed:
		return 0, nil
	case Extended, Mixed:
		return 1, nil
	default:
		return 0, ErrInvalidMode
	}
}

// MaxISOTPDatalen returns the CAN payload left over for ISO-TP framing
// once the addressing prefix is removed.
func MaxISOTPDatalen(mode Mode, format link.Format) (int, error) {
	maxDatalen, err := link.MaxDatalen(format)
	if err != nil {
		return 0, err
	}
	aeLen, err := Len(mode)
	if err != nil {
		return 0, err
	}
	if aeLen >= maxDatalen {
		return 0, ErrInvalidMode
	}
	return maxDatalen - aeLen, nil
}

// MaxSFDatalen returns the largest payload a Single Frame can carry for
// mode/format, with or without the FD-only SF_DL escape byte.
func MaxSFDatalen(mode Mode, format link.Format, escape bool) (int, error) {
	maxIsotp, err := MaxISOTPDatalen(mode, format)
	if err != nil {
		return 0, err
	}
	if escape {
		return maxIsotp - 2, nil
	}
	return maxIsotp - 1, nil
}
