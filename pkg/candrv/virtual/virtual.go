// Package virtual is a TCP-backed CAN bus for testing, adapted from
// the teacher's pkg/can/virtual broker client
// (https://github.com/windelbouwman/virtualcan wire format) onto the
// blocking isotp.RxFunc/isotp.TxFunc contract instead of an
// async FrameListener. Two processes pointed at the same broker
// address and swapped tx/rx IDs form a loopback pair for tests that
// want to exercise Context.Send/Recv without a real CAN interface.
package virtual

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net"
	"time"

	"github.com/canbus-go/isotp"
)

// wireFrame mirrors the broker's fixed-size frame layout: 4-byte ID,
// 1-byte length, 3 reserved bytes, 64-byte payload (zero-padded).
type wireFrame struct {
	ID      uint32
	Length  uint8
	_       [3]byte
	Payload [64]byte
}

// Bus is a virtual CAN link scoped to one pair of arbitration IDs,
// connected to a broker over TCP.
type Bus struct {
	conn net.Conn
	txID uint32
	rxID uint32
}

// Dial connects to a broker at addr (e.g. "localhost:18000").
func Dial(addr string, txID, rxID uint32) (*Bus, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("virtual: dial %s: %w", addr, err)
	}
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(true)
	}
	return &Bus{conn: conn, txID: txID, rxID: rxID}, nil
}

// Close disconnects from the broker.
func (b *Bus) Close() error {
	return b.conn.Close()
}

// Context, Recv and Send implement candrv.Driver structurally.
func (b *Bus) Context() any       { return b }
func (b *Bus) Recv() isotp.RxFunc { return Recv }
func (b *Bus) Send() isotp.TxFunc { return Send }

func serializeFrame(f wireFrame) []byte {
	buf := new(bytes.Buffer)
	_ = binary.Write(buf, binary.BigEndian, f)
	body := buf.Bytes()
	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, uint32(len(body)))
	return append(header, body...)
}

func deserializeFrame(body []byte) (wireFrame, error) {
	var f wireFrame
	err := binary.Read(bytes.NewReader(body), binary.BigEndian, &f)
	return f, err
}

// Recv implements isotp.RxFunc bound to driverCtx == this *Bus. Frames
// addressed to IDs other than rxID are skipped within the timeout
// budget, the way Context.Recv already skips stray frame kinds.
func Recv(driverCtx any, buf []byte, timeoutUs int64) (int, error) {
	b := driverCtx.(*Bus)
	deadline := time.Now().Add(time.Duration(timeoutUs) * time.Microsecond)

	for {
		if time.Now().After(deadline) {
			return 0, fmt.Errorf("virtual: recv timeout")
		}
		_ = b.conn.SetReadDeadline(deadline)

		header := make([]byte, 4)
		if _, err := readFull(b.conn, header); err != nil {
			return 0, fmt.Errorf("virtual: read header: %w", err)
		}
		length := binary.BigEndian.Uint32(header)
		body := make([]byte, length)
		if _, err := readFull(b.conn, body); err != nil {
			return 0, fmt.Errorf("virtual: read body: %w", err)
		}
		frame, err := deserializeFrame(body)
		if err != nil {
			return 0, fmt.Errorf("virtual: deserialize: %w", err)
		}
		if frame.ID != b.rxID {
			continue
		}
		return copy(buf, frame.Payload[:frame.Length]), nil
	}
}

// Send implements isotp.TxFunc bound to driverCtx == this *Bus.
func Send(driverCtx any, buf []byte, timeoutUs int64) (int, error) {
	b := driverCtx.(*Bus)
	if len(buf) > 64 {
		return 0, fmt.Errorf("virtual: payload %d exceeds 64 bytes", len(buf))
	}
	var f wireFrame
	f.ID = b.txID
	f.Length = uint8(len(buf))
	copy(f.Payload[:], buf)

	_ = b.conn.SetWriteDeadline(time.Now().Add(time.Duration(timeoutUs) * time.Microsecond))
	if _, err := b.conn.Write(serializeFrame(f)); err != nil {
		return 0, fmt.Errorf("virtual: write: %w", err)
	}
	return len(buf), nil
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
