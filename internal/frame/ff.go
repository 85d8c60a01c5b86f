package frame

import (
	"encoding/binary"

	"github.com/canbus-go/isotp/internal/link"
)

const noEscapeFFDLMax = 4095

// PrepareFF encodes the First Frame of a multi-frame transfer into
// scratch: header (no-escape 12-bit FF_DL, or escape 32-bit FF_DL for
// totals above 4095) plus as much of payload as the frame can carry. It
// returns the final on-wire frame length and the number of payload
// bytes copied; the caller tracks total/remaining datalen itself.
func PrepareFF(p Params, scratch []byte, payload []byte) (frameLen, copied int, err error) {
	total := len(payload)
	ffdlMin, err := FFDLMin(p)
	if err != nil {
		return 0, 0, err
	}
	if total < ffdlMin {
		return 0, 0, ErrBadMessage
	}

	maxDatalen, err := link.MaxDatalen(p.Format)
	if err != nil {
		return 0, 0, err
	}
	if len(scratch) < maxDatalen {
		return 0, 0, ErrNoBufSpace
	}

	off := 0
	if aeLen(p.Mode) > 0 {
		scratch[off] = p.AE
		off++
	}

	if total <= noEscapeFFDLMax {
		scratch[off] = 0x10 | byte((total>>8)&0x0F)
		scratch[off+1] = byte(total)
		off += 2
	} else {
		scratch[off] = 0x10
		scratch[off+1] = 0x00
		binary.BigEndian.PutUint32(scratch[off+2:off+6], uint32(total))
		off += 6
	}

	avail := maxDatalen - off
	if avail > total {
		avail = total
	}
	copy(scratch[off:off+avail], payload[:avail])

	return maxDatalen, avail, nil
}

// ParseFF decodes a received First Frame in can, writing as many
// payload bytes as it carries into out starting at offset 0 (a First
// Frame always begins a transfer). It returns the announced total
// length (FF_DL) and the number of bytes copied into out.
//
// If FF_DL exceeds len(out), ErrOverflow is returned with total still
// set so the caller can reply with a Flow Control OVFLW before
// aborting.
func ParseFF(p Params, can []byte, out []byte) (total, copied int, ae uint8, err error) {
	off := 0
	if aeLen(p.Mode) > 0 {
		if len(can) < 1 {
			return 0, 0, 0, ErrBadMessage
		}
		ae = can[0]
		off = 1
	}
	if len(can) < off+2 {
		return 0, 0, ae, ErrBadMessage
	}
	if pciNibble(can[off]) != 0x1 {
		return 0, 0, ae, ErrBadMessage
	}

	var headerLen int
	lowNibble := can[off] & 0x0F
	if lowNibble == 0 && can[off+1] == 0x00 {
		if len(can) < off+6 {
			return 0, 0, ae, ErrBadMessage
		}
		total = int(binary.BigEndian.Uint32(can[off+2 : off+6]))
		headerLen = 6
	} else {
		total = int(lowNibble)<<8 | int(can[off+1])
		headerLen = 2
	}

	ffdlMin, err := FFDLMin(p)
	if err != nil {
		return 0, 0, ae, err
	}
	if total < ffdlMin {
		// Silently ignored per ISO §9.6.3.2: not a usable First Frame.
		return 0, 0, ae, ErrBadMessage
	}

	if total > len(out) {
		return total, 0, ae, ErrOverflow
	}

	payload := can[off+headerLen:]
	copied = len(payload)
	if copied > total {
		copied = total
	}
	copy(out[:copied], payload[:copied])
	return total, copied, ae, nil
}
