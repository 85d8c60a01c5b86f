package isotp

import (
	"github.com/canbus-go/isotp/internal/addr"
	"github.com/canbus-go/isotp/internal/frame"
	"github.com/canbus-go/isotp/internal/link"
)

// CANFormat selects Classic (8-byte) or FD (up to 64-byte) CAN framing.
type CANFormat = link.Format

const (
	Classic = link.Classic
	FD      = link.FD
)

// AddressingMode selects one of the four ISO-TP addressing schemes.
type AddressingMode = addr.Mode

const (
	Normal      = addr.Normal
	NormalFixed = addr.NormalFixed
	Extended    = addr.Extended
	Mixed       = addr.Mixed
)

// FlowStatus is the FS field carried by a Flow Control frame.
type FlowStatus = frame.FlowStatus

const (
	CTS   = frame.CTS
	WAIT  = frame.WAIT
	OVFLW = frame.OVFLW
)

// DefaultTimeoutUs is substituted for any zero timeout field, per
// ISO-15765's recommended default of one second.
const DefaultTimeoutUs int64 = 1_000_000

// Timeouts enumerates the four ISO-15765 protocol timers in
// microseconds. A zero value in any field is replaced by
// DefaultTimeoutUs; N_Ar is carried as configuration only and is not
// independently enforced (see DESIGN.md).
type Timeouts struct {
	NAsUs int64
	NArUs int64
	NBsUs int64
	NCrUs int64
}

func (t Timeouts) withDefaults() Timeouts {
	fill := func(v int64) int64 {
		if v <= 0 {
			return DefaultTimeoutUs
		}
		return v
	}
	return Timeouts{
		NAsUs: fill(t.NAsUs),
		NArUs: fill(t.NArUs),
		NBsUs: fill(t.NBsUs),
		NCrUs: fill(t.NCrUs),
	}
}

// RxFunc blocks until a CAN frame is available, the driver context's
// own timeout expires, or the driver errors. On success it returns the
// number of bytes placed into buf.
type RxFunc func(driverCtx any, buf []byte, timeoutUs int64) (int, error)

// TxFunc blocks until a CAN frame carried by buf has been handed to the
// link, the timeout expires, or the driver errors. On success it
// returns the number of bytes drained from buf.
type TxFunc func(driverCtx any, buf []byte, timeoutUs int64) (int, error)
