package isotp

import (
	"github.com/canbus-go/isotp/internal/addr"
	"github.com/canbus-go/isotp/internal/clock"
	"github.com/canbus-go/isotp/internal/link"
	"github.com/canbus-go/isotp/pkg/metrics"
	log "github.com/sirupsen/logrus"
)

// seqPoisoned is the out-of-band sequence_num value set after an
// out-of-order Consecutive Frame (invariant I7): every CF parsed while
// poisoned fails until Reset.
const seqPoisoned uint8 = 0xFF

// phase tracks which of idle/sending/receiving a Context is in
// (invariant I5: never both at once).
type phase uint8

const (
	phaseIdle phase = iota
	phaseSending
	phaseReceiving
	// phaseAborted marks a transfer that failed; only Reset clears it,
	// so a caller cannot start a new transfer without acknowledging
	// the abort (spec: "Callers must call reset before starting a new
	// transfer on the same context after any abort").
	phaseAborted
)

// Context is a caller-allocated ISO-TP session. It is not safe for
// concurrent Send/Recv calls and must not be copied by value once
// initialized (see SPEC_FULL.md §5): hold it behind a pointer.
type Context struct {
	// immutable after NewContext
	format   CANFormat
	mode     AddressingMode
	aeLen    int
	fcWaitMax uint32
	timeouts  Timeouts

	// mutable addressing, updated from the most recently received frame
	ae uint8

	// per-transfer state
	phase         phase
	totalLen      int
	remainingLen  int
	seqNum        uint8
	peerBlockSize uint8
	peerSTminUs   uint32
	fcWaitCount   uint32

	timer    clock.Timer
	scratch  [64]byte

	driverCtx any
	rxFunc    RxFunc
	txFunc    TxFunc

	metrics *metrics.Recorder
	logger  *log.Entry
}

// Option configures optional Context wiring (logger, metrics) beyond
// NewContext's required positional parameters.
type Option func(*Context)

// WithLogger attaches a logrus entry; by default Context logs through
// logrus's standard logger tagged with its addressing mode and format.
func WithLogger(entry *log.Entry) Option {
	return func(c *Context) { c.logger = entry }
}

// WithMetrics attaches a Prometheus recorder; by default no metrics are
// recorded (Recorder is nil-safe, so this is purely additive).
func WithMetrics(rec *metrics.Recorder) Option {
	return func(c *Context) { c.metrics = rec }
}

// NewContext initializes a new ISO-TP session context. fcWaitMax of 0
// disables FC.WAIT-overrun enforcement. A nil timeouts uses
// DefaultTimeoutUs for all four timers.
func NewContext(
	format CANFormat,
	mode AddressingMode,
	fcWaitMax uint32,
	timeouts *Timeouts,
	driverCtx any,
	rx RxFunc,
	tx TxFunc,
	opts ...Option,
) (*Context, error) {
	if rx == nil || tx == nil {
		return nil, ErrInvalidArg
	}
	if _, err := link.MaxDatalen(format); err != nil {
		return nil, ErrInvalidArg
	}
	ae, err := addr.Len(mode)
	if err != nil {
		return nil, ErrInvalidArg
	}

	var t Timeouts
	if timeouts != nil {
		t = *timeouts
	}
	t = t.withDefaults()

	c := &Context{
		format:    format,
		mode:      mode,
		aeLen:     ae,
		fcWaitMax: fcWaitMax,
		timeouts:  t,
		driverCtx: driverCtx,
		rxFunc:    rx,
		txFunc:    tx,
		logger:    log.WithFields(log.Fields{"format": formatName(format), "mode": modeName(mode)}),
	}
	c.Reset()
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Reset clears per-transfer counters and timers but preserves immutable
// configuration and the current address extension. Callers must call
// Reset before starting a new transfer after any aborted one.
func (c *Context) Reset() {
	c.phase = phaseIdle
	c.totalLen = 0
	c.remainingLen = 0
	c.seqNum = 1
	c.peerBlockSize = 0
	c.peerSTminUs = 0
	c.fcWaitCount = 0
	c.scratch = [64]byte{}
}

// AddressExtension returns the current address-extension byte.
func (c *Context) AddressExtension() uint8 { return c.ae }

// SetAddressExtension sets the address-extension byte used on the next
// outgoing frame for Extended/Mixed addressing.
func (c *Context) SetAddressExtension(ae uint8) { c.ae = ae }

func formatName(f CANFormat) string {
	if f == FD {
		return "fd"
	}
	return "classic"
}

func modeName(m AddressingMode) string {
	switch m {
	case Normal:
		return "normal"
	case NormalFixed:
		return "normal-fixed"
	case Extended:
		return "extended"
	case Mixed:
		return "mixed"
	default:
		return "unknown"
	}
}
