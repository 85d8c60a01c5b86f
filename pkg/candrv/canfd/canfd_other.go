//go:build !linux

package canfd

import (
	"errors"

	"github.com/canbus-go/isotp"
)

// Bus is a stub on non-Linux platforms; SocketCAN-FD is Linux-only.
type Bus struct{}

var errUnsupported = errors.New("canfd: SocketCAN-FD is only supported on linux")

func Open(name string, txID, rxID uint32) (*Bus, error) {
	return nil, errUnsupported
}

func (b *Bus) Close() error { return errUnsupported }

func (b *Bus) Context() any       { return b }
func (b *Bus) Recv() isotp.RxFunc { return Recv }
func (b *Bus) Send() isotp.TxFunc { return Send }

func Recv(driverCtx any, buf []byte, timeoutUs int64) (int, error) {
	return 0, errUnsupported
}

func Send(driverCtx any, buf []byte, timeoutUs int64) (int, error) {
	return 0, errUnsupported
}
