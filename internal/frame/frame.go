// Package frame implements the ISO-TP frame codec: parsing and
// preparing Single, First, Consecutive and Flow-Control frames for the
// four addressing modes and both CAN payload-length encodings, over a
// caller-owned scratch buffer.
//
// Every function here is a pure transform over its arguments: no state
// is retained between calls, matching the codec/engine split called for
// by the protocol's design notes (the session engine owns the scratch
// buffer and all I/O; the codec just encodes and decodes it).
package frame

import (
	"errors"

	"github.com/canbus-go/isotp/internal/addr"
	"github.com/canbus-go/isotp/internal/link"
)

// FlowStatus is the FS field of a Flow Control frame.
type FlowStatus uint8

const (
	CTS   FlowStatus = 0
	WAIT  FlowStatus = 1
	OVFLW FlowStatus = 2
)

// Params bundles the per-context configuration the codec needs: format,
// addressing mode and the address-extension byte to stamp outgoing
// frames with.
type Params struct {
	Format link.Format
	Mode   addr.Mode
	AE     uint8
}

var (
	ErrOverflow     = errors.New("isotp/frame: payload exceeds frame capacity")
	ErrBadMessage   = errors.New("isotp/frame: malformed frame")
	ErrNotSupported = errors.New("isotp/frame: reserved or unsupported encoding")
	ErrNoBufSpace   = errors.New("isotp/frame: caller buffer too small")
)

// pciNibble returns the high nibble of the first ISO-TP byte after any
// address-extension prefix.
func pciNibble(b byte) byte { return b >> 4 }

// aeLen is a small wrapper that never fails for the four known modes
// (addr.Len already validates Mode elsewhere, at Context construction).
func aeLen(mode addr.Mode) int {
	n, _ := addr.Len(mode)
	return n
}

// FFDLMin returns the minimum valid First-Frame length announcement for
// the given format/mode: one more byte than the largest payload a
// Single Frame could carry (using the SF escape when the format
// supports it). A First Frame announcing fewer bytes than this should
// have been sent as a Single Frame instead and is silently ignored on
// receive (ISO §9.6.3.2).
func FFDLMin(p Params) (int, error) {
	escape := p.Format == link.FD
	maxSF, err := addr.MaxSFDatalen(p.Mode, p.Format, escape)
	if err != nil {
		return 0, err
	}
	return maxSF + 1, nil
}
