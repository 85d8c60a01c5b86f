package frame

import (
	"github.com/canbus-go/isotp/internal/addr"
	"github.com/canbus-go/isotp/internal/link"
)

// PrepareSF encodes payload as a Single Frame into scratch, chooses the
// escape (2-byte SF_DL) encoding automatically when format/mode and
// payload length require it, pads the result, and returns the final
// on-wire frame length.
func PrepareSF(p Params, scratch []byte, payload []byte) (frameLen int, err error) {
	ae := aeLen(p.Mode)
	maxDatalen, err := link.MaxDatalen(p.Format)
	if err != nil {
		return 0, err
	}
	if len(scratch) < maxDatalen {
		return 0, ErrNoBufSpace
	}

	noEscapeCap, err := escapeCap(p, false)
	if err != nil {
		return 0, err
	}
	escapeCapN, escErr := escapeCap(p, true)

	var useEscape bool
	switch {
	case len(payload) <= noEscapeCap:
		useEscape = false
	case p.Format == link.FD && escErr == nil && len(payload) <= escapeCapN:
		useEscape = true
	default:
		return 0, ErrOverflow
	}

	off := 0
	if ae > 0 {
		scratch[0] = p.AE
		off = 1
	}
	if useEscape {
		scratch[off] = 0x00
		scratch[off+1] = byte(len(payload))
		off += 2
	} else {
		scratch[off] = byte(len(payload) & 0x0F)
		off++
	}
	copy(scratch[off:], payload)
	total := off + len(payload)
	return link.PadFrame(scratch, total, p.Format)
}

// escapeCap returns the SF payload capacity with or without the escape
// byte. Escape capacity is only meaningful for FD; it is computed for
// Classic too, so callers check the format before using the escape form.
func escapeCap(p Params, escape bool) (int, error) {
	return maxSFDatalen(p, escape)
}

func maxSFDatalen(p Params, escape bool) (int, error) {
	max, err := maxISOTPDatalen(p)
	if err != nil {
		return 0, err
	}
	if escape {
		return max - 2, nil
	}
	// The no-escape SF_DL lives in the low nibble of the PCI byte and
	// must be nonzero (0 signals the escape form). Extended and Mixed
	// addressing reserve one more code point of that nibble for the
	// address-extension byte's effect on SF_DL == FF_DL continuity, so
	// they top out at 6 where Normal/NormalFixed top out at 7.
	noEscapeLimit := 7
	switch p.Mode {
	case addr.Extended, addr.Mixed:
		noEscapeLimit = 6
	}
	noEscape := max - 1
	if noEscape > noEscapeLimit {
		noEscape = noEscapeLimit
	}
	return noEscape, nil
}

func maxISOTPDatalen(p Params) (int, error) {
	maxDatalen, err := link.MaxDatalen(p.Format)
	if err != nil {
		return 0, err
	}
	return maxDatalen - aeLen(p.Mode), nil
}

// ParseSF decodes a received Single Frame in can (the full, possibly
// padded, CAN payload) and writes SF_DL bytes into out. It returns the
// number of bytes written and the address-extension byte seen on the
// frame (0 if the mode carries none).
func ParseSF(p Params, can []byte, out []byte) (n int, ae uint8, err error) {
	maxDatalen, err := link.MaxDatalen(p.Format)
	if err != nil {
		return 0, 0, err
	}
	if len(can) > maxDatalen {
		return 0, 0, ErrBadMessage
	}
	off := 0
	if aeLen(p.Mode) > 0 {
		if len(can) < 1 {
			return 0, 0, ErrBadMessage
		}
		ae = can[0]
		off = 1
	}
	if len(can) < off+1 {
		return 0, 0, ErrBadMessage
	}
	if pciNibble(can[off]) != 0x0 {
		return 0, 0, ErrBadMessage
	}

	var sfdl int
	low := can[off] & 0x0F
	if low == 0x00 {
		// Escape encoding: only valid for FD.
		if p.Format != link.FD {
			return 0, 0, ErrNotSupported
		}
		if len(can) < off+2 {
			return 0, 0, ErrBadMessage
		}
		sfdl = int(can[off+1])
		off += 2
	} else {
		sfdl = int(low)
		off++
	}

	noEscapeCap, _ := maxSFDatalen(p, false)
	escapeCapN, escErr := maxSFDatalen(p, true)

	switch {
	case sfdl == 0:
		return 0, ae, ErrNotSupported
	case low != 0x00 && sfdl <= noEscapeCap:
		// ordinary no-escape SF, nothing further to validate
	case low == 0x00 && escErr == nil && sfdl > 0 && sfdl <= escapeCapN:
		// valid escape SF
	default:
		return 0, ae, ErrNotSupported
	}

	if len(can) < off+sfdl {
		return 0, ae, ErrBadMessage
	}
	if len(out) < sfdl {
		return 0, ae, ErrNoBufSpace
	}
	copy(out, can[off:off+sfdl])
	return sfdl, ae, nil
}
