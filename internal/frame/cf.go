package frame

import "github.com/canbus-go/isotp/internal/link"

// PrepareCF encodes one Consecutive Frame into scratch, carrying up to
// the frame's payload capacity of sendBuf[offset:offset+remaining],
// pads the result and returns the final frame length plus the number
// of payload bytes copied.
func PrepareCF(p Params, scratch []byte, sendBuf []byte, offset, remaining int, seqNum uint8) (frameLen, copied int, err error) {
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
	scratch[off] = 0x20 | (seqNum & 0x0F)
	off++

	capacity := maxDatalen - off
	if capacity > remaining {
		copied = remaining
	} else {
		copied = capacity
	}
	if offset+copied > len(sendBuf) {
		return 0, 0, ErrNoBufSpace
	}
	copy(scratch[off:off+copied], sendBuf[offset:offset+copied])

	frameLen, err = link.PadFrame(scratch, off+copied, p.Format)
	return frameLen, copied, err
}

// ParseCF decodes one received Consecutive Frame in can, copying up to
// remaining bytes into recvBuf[offset:]. It returns the frame's 4-bit
// sequence number and the number of bytes copied; the caller compares
// the sequence number against its own expectation (out-of-order
// handling is session-engine state, not codec state).
func ParseCF(p Params, can []byte, recvBuf []byte, offset, remaining int) (sn uint8, copied int, err error) {
	off := 0
	if aeLen(p.Mode) > 0 {
		if len(can) < 1 {
			return 0, 0, ErrBadMessage
		}
		off = 1
	}
	if len(can) < off+1 {
		return 0, 0, ErrBadMessage
	}
	if pciNibble(can[off]) != 0x2 {
		return 0, 0, ErrBadMessage
	}
	sn = can[off] & 0x0F
	off++

	available := len(can) - off
	if available > remaining {
		copied = remaining
	} else {
		copied = available
	}
	if copied < 0 {
		copied = 0
	}
	if offset+copied > len(recvBuf) {
		return sn, 0, ErrNoBufSpace
	}
	copy(recvBuf[offset:offset+copied], can[off:off+copied])
	return sn, copied, nil
}
