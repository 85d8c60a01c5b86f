//go:build linux

// Package canfd drives a Linux SocketCAN-FD interface directly through
// golang.org/x/sys/unix, the same package the root module's
// internal/clock uses for CLOCK_MONOTONIC. brutella/can only frames
// Classic 8-byte CAN, so FD (up to 64 bytes) needs the raw
// AF_CAN/CAN_RAW socket and CAN_RAW_FD_FRAMES setsockopt directly.
package canfd

import (
	"encoding/binary"
	"fmt"
	"net"
	"time"

	"golang.org/x/sys/unix"

	"github.com/canbus-go/isotp"
)

const (
	canMTU   = 16 // struct can_frame
	canFDMTU = 72 // struct canfd_frame
)

// Bus is a CAN-FD SocketCAN link scoped to one pair of arbitration IDs.
type Bus struct {
	fd   int
	txID uint32
	rxID uint32
}

// Open binds a CAN_RAW socket with FD frames enabled to the named
// interface (e.g. "can0").
func Open(name string, txID, rxID uint32) (*Bus, error) {
	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW, unix.CAN_RAW)
	if err != nil {
		return nil, fmt.Errorf("canfd: socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_CAN_RAW, unix.CAN_RAW_FD_FRAMES, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("canfd: enable fd frames: %w", err)
	}

	ifi, err := net.InterfaceByName(name)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("canfd: lookup interface %s: %w", name, err)
	}

	addr := &unix.SockaddrCAN{Ifindex: ifi.Index}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("canfd: bind %s: %w", name, err)
	}

	return &Bus{fd: fd, txID: txID, rxID: rxID}, nil
}

// Close releases the underlying socket.
func (b *Bus) Close() error {
	return unix.Close(b.fd)
}

// Context, Recv and Send implement candrv.Driver structurally, without
// importing that package back (Open callers that want the interface
// assign the *Bus to a candrv.Driver at the call site).
func (b *Bus) Context() any       { return b }
func (b *Bus) Recv() isotp.RxFunc { return Recv }
func (b *Bus) Send() isotp.TxFunc { return Send }

// Recv implements isotp.RxFunc bound to driverCtx == this *Bus. Each
// read waits at most for whatever remains of timeoutUs (SO_RCVTIMEO);
// frames under IDs other than rxID are discarded and the read repeated
// against the same deadline, so a burst of unrelated traffic on the bus
// cannot starve the caller indefinitely. A read that times out is
// returned as an error.
func Recv(driverCtx any, buf []byte, timeoutUs int64) (int, error) {
	b := driverCtx.(*Bus)
	deadline := time.Now().Add(time.Duration(timeoutUs) * time.Microsecond)
	raw := make([]byte, canFDMTU)

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return 0, fmt.Errorf("canfd: recv timeout")
		}
		tv := unix.NsecToTimeval(remaining.Nanoseconds())
		if err := unix.SetsockoptTimeval(b.fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
			return 0, fmt.Errorf("canfd: set recv timeout: %w", err)
		}

		n, err := unix.Read(b.fd, raw)
		if err != nil {
			return 0, fmt.Errorf("canfd: read: %w", err)
		}
		if n < 8 {
			continue
		}
		id, length, payload := decodeFrame(raw[:n])
		if id&unix.CAN_EFF_MASK != b.rxID {
			continue
		}
		return copy(buf, payload[:length]), nil
	}
}

// Send implements isotp.TxFunc bound to driverCtx == this *Bus.
func Send(driverCtx any, buf []byte, timeoutUs int64) (int, error) {
	b := driverCtx.(*Bus)
	if len(buf) > 64 {
		return 0, fmt.Errorf("canfd: payload %d exceeds 64 bytes", len(buf))
	}
	raw := encodeFrame(b.txID, buf)
	if _, err := unix.Write(b.fd, raw); err != nil {
		return 0, fmt.Errorf("canfd: write: %w", err)
	}
	return len(buf), nil
}

// encodeFrame builds a struct canfd_frame: 4-byte ID, 1-byte len,
// 3 reserved/flags bytes, then up to 64 bytes of payload.
func encodeFrame(id uint32, payload []byte) []byte {
	frame := make([]byte, canFDMTU)
	binary.LittleEndian.PutUint32(frame[0:4], id)
	frame[4] = byte(len(payload))
	copy(frame[8:], payload)
	return frame
}

func decodeFrame(raw []byte) (id uint32, length byte, payload []byte) {
	id = binary.LittleEndian.Uint32(raw[0:4])
	length = raw[4]
	if len(raw) >= int(8+length) {
		payload = raw[8 : 8+int(length)]
	}
	return id, length, payload
}
