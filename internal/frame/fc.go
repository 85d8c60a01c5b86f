package frame

import "github.com/canbus-go/isotp/internal/link"

// PrepareFC encodes a Flow Control frame into scratch and pads it.
func PrepareFC(p Params, scratch []byte, fs FlowStatus, bs uint8, stMinUs uint32) (frameLen int, err error) {
	maxDatalen, err := link.MaxDatalen(p.Format)
	if err != nil {
		return 0, err
	}
	if len(scratch) < maxDatalen {
		return 0, ErrNoBufSpace
	}

	off := 0
	if aeLen(p.Mode) > 0 {
		scratch[off] = p.AE
		off++
	}
	scratch[off] = 0x30 | (byte(fs) & 0x0F)
	scratch[off+1] = bs
	scratch[off+2] = USToSTminCode(stMinUs)
	off += 3

	return link.PadFrame(scratch, off, p.Format)
}

// ParseFC decodes a received Flow Control frame in can.
func ParseFC(p Params, can []byte) (fs FlowStatus, bs uint8, stMinUs uint32, ae uint8, err error) {
	off := 0
	if aeLen(p.Mode) > 0 {
		if len(can) < 1 {
			return 0, 0, 0, 0, ErrBadMessage
		}
		ae = can[0]
		off = 1
	}
	if len(can) < off+3 {
		return 0, 0, 0, ae, ErrBadMessage
	}
	if pciNibble(can[off]) != 0x3 {
		return 0, 0, 0, ae, ErrBadMessage
	}
	fsVal := can[off] & 0x0F
	switch FlowStatus(fsVal) {
	case CTS, WAIT, OVFLW:
		fs = FlowStatus(fsVal)
	default:
		return 0, 0, 0, ae, ErrBadMessage
	}
	bs = can[off+1]
	stMinUs = STminToUs(can[off+2])
	return fs, bs, stMinUs, ae, nil
}
