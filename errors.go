package isotp

import "errors"

// Kind is a small stable error code, chosen to match common POSIX errno
// spellings so callers familiar with errno recognize the values.
type Kind int

const (
	KindOK                Kind = 0
	KindOutOfMemory       Kind = 12
	KindFault             Kind = 14
	KindInvalidArg        Kind = 22
	KindRange             Kind = 34
	KindOverflow          Kind = 75
	KindTime              Kind = 84
	KindMessageSize       Kind = 90
	KindNoMessage         Kind = 91
	KindBadMessage        Kind = 92
	KindNoBufSpace        Kind = 105
	KindTimedOut          Kind = 110
	KindConnectionAborted Kind = 130
	KindNotSupported      Kind = 134
)

// protoError pairs a Kind with a message, the way the teacher pairs a flat
// var block of sentinel errors.New(...) values with its own wording.
type protoError struct {
	kind Kind
	msg  string
}

func (e *protoError) Error() string { return e.msg }

func (e *protoError) Kind() Kind { return e.kind }

func newErr(kind Kind, msg string) error {
	return &protoError{kind: kind, msg: msg}
}

var (
	ErrInvalidArg        = newErr(KindInvalidArg, "invalid argument")
	ErrRange             = newErr(KindRange, "value out of range")
	ErrOverflow          = newErr(KindOverflow, "payload exceeds frame capacity")
	ErrBadMessage        = newErr(KindBadMessage, "unparsable or unexpected frame")
	ErrNoMessage         = newErr(KindNoMessage, "no frame available")
	ErrTimedOut          = newErr(KindTimedOut, "protocol timer expired")
	ErrConnectionAborted = newErr(KindConnectionAborted, "connection aborted")
	ErrNoBufSpace        = newErr(KindNoBufSpace, "caller buffer too small")
	ErrNotSupported      = newErr(KindNotSupported, "reserved or unsupported encoding")
)

// KindOf extracts the Kind carried by err, or KindOK if err is nil and
// KindFault if err does not carry a Kind (e.g. it came from a driver
// callback rather than this package).
func KindOf(err error) Kind {
	if err == nil {
		return KindOK
	}
	var ke interface{ Kind() Kind }
	if errors.As(err, &ke) {
		return ke.Kind()
	}
	return KindFault
}
