// Package candrv adapts github.com/brutella/can's callback-based
// SocketCAN bus onto the blocking isotp.RxFunc/isotp.TxFunc contract,
// the way the teacher's pkg/can/socketcan wraps the same library for
// canopen.Bus's Subscribe/Send shape. Where the teacher hands received
// frames straight to a long-lived FrameListener, Bus queues them on a
// channel so a single-threaded Context.Recv can pull one frame per
// call instead of running its own listener goroutine.
package candrv

import (
	"context"
	"fmt"
	"time"

	sockcan "github.com/brutella/can"

	"github.com/canbus-go/isotp"
)

// Driver is the shape every candrv backend (this package, canfd,
// virtual) satisfies: its own lifecycle plus the driverCtx/RxFunc/TxFunc
// trio isotp.NewContext needs. cmd/isotp-send and cmd/isotp-recv open
// one of these behind a single flag-driven switch and wire it into
// NewContext identically regardless of which backend was picked, the
// way the teacher's pkg/can/bus.go Bus interface lets canopen.Network
// swap SocketCAN/kvaser/virtual backends behind one
// RegisterInterface/NewBus registry.
type Driver interface {
	Context() any
	Recv() isotp.RxFunc
	Send() isotp.TxFunc
	Close() error
}

// Bus is a Classic-CAN (8-byte) SocketCAN link scoped to one pair of
// arbitration IDs: everything with TxID is transmitted, everything
// with RxID is queued for Recv; frames under other IDs are dropped.
type Bus struct {
	iface *sockcan.Bus
	txID  uint32
	rxID  uint32
	rx    chan [8]byte
	rxLen chan uint8
}

// Open binds to the named SocketCAN interface (e.g. "can0") and starts
// listening in the background. txID/rxID are 11- or 29-bit CAN
// arbitration IDs (NormalFixed/Mixed addressing already folds the
// source/target address into these).
func Open(name string, txID, rxID uint32) (*Bus, error) {
	iface, err := sockcan.NewBusForInterfaceWithName(name)
	if err != nil {
		return nil, fmt.Errorf("candrv: open %s: %w", name, err)
	}
	b := &Bus{
		iface: iface,
		txID:  txID,
		rxID:  rxID,
		rx:    make(chan [8]byte, 64),
		rxLen: make(chan uint8, 64),
	}
	iface.Subscribe(b)
	go iface.ConnectAndPublish()
	return b, nil
}

// Handle implements brutella/can's Handler interface.
func (b *Bus) Handle(frame sockcan.Frame) {
	if frame.ID != b.rxID {
		return
	}
	select {
	case b.rx <- frame.Data:
		b.rxLen <- frame.Length
	default:
		// Queue full: drop the frame rather than block the driver's
		// own receive goroutine.
	}
}

// Close disconnects the underlying interface.
func (b *Bus) Close() error {
	return b.iface.Disconnect()
}

// Context, Recv and Send implement Driver.
func (b *Bus) Context() any       { return b }
func (b *Bus) Recv() isotp.RxFunc { return Recv }
func (b *Bus) Send() isotp.TxFunc { return Send }

// Recv implements isotp.RxFunc bound to driverCtx == this *Bus.
func Recv(driverCtx any, buf []byte, timeoutUs int64) (int, error) {
	b := driverCtx.(*Bus)
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutUs)*time.Microsecond)
	defer cancel()
	select {
	case data := <-b.rx:
		length := <-b.rxLen
		n := copy(buf, data[:length])
		return n, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Send implements isotp.TxFunc bound to driverCtx == this *Bus.
func Send(driverCtx any, buf []byte, timeoutUs int64) (int, error) {
	b := driverCtx.(*Bus)
	if len(buf) > 8 {
		return 0, fmt.Errorf("candrv: classic frame payload %d exceeds 8 bytes", len(buf))
	}
	var data [8]byte
	copy(data[:], buf)
	err := b.iface.Publish(sockcan.Frame{
		ID:     b.txID,
		Length: uint8(len(buf)),
		Data:   data,
	})
	if err != nil {
		return 0, err
	}
	return len(buf), nil
}
