package isotp

import (
	"errors"
	"testing"
	"time"

	"github.com/canbus-go/isotp/internal/frame"
	"github.com/canbus-go/isotp/internal/link"
	"github.com/stretchr/testify/assert"
)

// wire is an in-memory full-duplex CAN link for exercising Send/Recv
// without a real bus, the way the teacher's pkg/can/virtual test suite
// uses a local TCP loopback instead of hardware.
type wire struct {
	toB chan []byte
	toA chan []byte
}

func newWire() *wire {
	return &wire{toB: make(chan []byte, 16), toA: make(chan []byte, 16)}
}

type endpoint struct {
	w       *wire
	isSideA bool
}

func (e *endpoint) recv(driverCtx any, buf []byte, timeoutUs int64) (int, error) {
	ch := e.w.toA
	if e.isSideA {
		ch = e.w.toB
	}
	select {
	case data := <-ch:
		return copy(buf, data), nil
	case <-time.After(time.Duration(timeoutUs) * time.Microsecond):
		return 0, errors.New("wire: recv timeout")
	}
}

func (e *endpoint) send(driverCtx any, buf []byte, timeoutUs int64) (int, error) {
	ch := e.w.toB
	if e.isSideA {
		ch = e.w.toA
	}
	cp := make([]byte, len(buf))
	copy(cp, buf)
	select {
	case ch <- cp:
		return len(buf), nil
	case <-time.After(time.Duration(timeoutUs) * time.Microsecond):
		return 0, errors.New("wire: send timeout")
	}
}

// pollRecv is a non-blocking variant of recv: it reports "nothing yet"
// immediately instead of waiting out timeoutUs, the way a poll-driven
// driver's Recv would when nothing is queued. It lets a test drive the
// N_Cr timer directly instead of waiting on a wire-level timeout.
func (e *endpoint) pollRecv(driverCtx any, buf []byte, timeoutUs int64) (int, error) {
	ch := e.w.toA
	if e.isSideA {
		ch = e.w.toB
	}
	select {
	case data := <-ch:
		return copy(buf, data), nil
	default:
		return 0, nil
	}
}

func newLoopbackPair(t *testing.T, format CANFormat, mode AddressingMode, fcWaitMax uint32) (*Context, *Context) {
	t.Helper()
	w := newWire()
	sideA := &endpoint{w: w, isSideA: true}
	sideB := &endpoint{w: w, isSideA: false}

	sender, err := NewContext(format, mode, fcWaitMax, nil, nil, sideA.recv, sideA.send)
	assert.Nil(t, err)
	receiver, err := NewContext(format, mode, fcWaitMax, nil, nil, sideB.recv, sideB.send)
	assert.Nil(t, err)
	return sender, receiver
}

func TestSendRecvSingleFrame(t *testing.T) {
	sender, receiver := newLoopbackPair(t, Classic, Normal, 0)
	payload := []byte{1, 2, 3, 4, 5}

	recvBuf := make([]byte, 64)
	recvDone := make(chan struct{})
	var recvN int
	var recvErr error
	go func() {
		recvN, recvErr = receiver.Recv(recvBuf, 8, 0, 500_000)
		close(recvDone)
	}()

	n, err := sender.Send(payload, 500_000)
	assert.Nil(t, err)
	assert.Equal(t, len(payload), n)

	<-recvDone
	assert.Nil(t, recvErr)
	assert.Equal(t, len(payload), recvN)
	assert.Equal(t, payload, recvBuf[:recvN])
}

func TestSendRecvMultiFrameTwentyBytes(t *testing.T) {
	sender, receiver := newLoopbackPair(t, Classic, Normal, 0)
	payload := make([]byte, 20)
	for i := range payload {
		payload[i] = byte(i + 1)
	}

	recvBuf := make([]byte, 64)
	recvDone := make(chan struct{})
	var recvN int
	var recvErr error
	go func() {
		recvN, recvErr = receiver.Recv(recvBuf, 0, 0, 1_000_000)
		close(recvDone)
	}()

	n, err := sender.Send(payload, 1_000_000)
	assert.Nil(t, err)
	assert.Equal(t, len(payload), n)

	<-recvDone
	assert.Nil(t, recvErr)
	assert.Equal(t, len(payload), recvN)
	assert.Equal(t, payload, recvBuf[:recvN])
}

func TestSendRecvMultiFrameWithBlockSize(t *testing.T) {
	sender, receiver := newLoopbackPair(t, Classic, Normal, 0)
	payload := make([]byte, 40)
	for i := range payload {
		payload[i] = byte(i)
	}

	recvBuf := make([]byte, 64)
	recvDone := make(chan struct{})
	var recvN int
	var recvErr error
	go func() {
		// small block size forces multiple FC(CTS) rounds
		recvN, recvErr = receiver.Recv(recvBuf, 2, 0, 1_000_000)
		close(recvDone)
	}()

	n, err := sender.Send(payload, 1_000_000)
	assert.Nil(t, err)
	assert.Equal(t, len(payload), n)

	<-recvDone
	assert.Nil(t, recvErr)
	assert.Equal(t, len(payload), recvN)
	assert.Equal(t, payload, recvBuf[:recvN])
}

func TestRecvOverflowRepliesFCOverflow(t *testing.T) {
	sender, receiver := newLoopbackPair(t, Classic, Normal, 0)
	payload := make([]byte, 20)

	recvBuf := make([]byte, 5) // too small for the announced FF_DL
	recvDone := make(chan struct{})
	var recvErr error
	go func() {
		_, recvErr = receiver.Recv(recvBuf, 8, 0, 500_000)
		close(recvDone)
	}()

	_, sendErr := sender.Send(payload, 500_000)

	<-recvDone
	assert.Equal(t, ErrNoBufSpace, recvErr)
	assert.Equal(t, ErrConnectionAborted, sendErr)
	assert.Equal(t, phaseAborted, receiver.phase)
	assert.Equal(t, phaseAborted, sender.phase)
}

func TestSendFailsWithoutResetAfterAbort(t *testing.T) {
	sender, _ := newLoopbackPair(t, Classic, Normal, 0)
	sender.phase = phaseAborted

	_, err := sender.Send([]byte{1, 2, 3}, 10_000)
	assert.Equal(t, ErrConnectionAborted, err)

	sender.Reset()
	n, err := sender.Send([]byte{1, 2, 3}, 10_000)
	// No peer is listening, but the wire is buffered, so the Single
	// Frame is accepted; what matters is that it gets past the phase
	// check this time.
	assert.NotEqual(t, ErrConnectionAborted, err)
	_ = n
}

func TestRecvSequenceMismatchPoisonsContext(t *testing.T) {
	sender, receiver := newLoopbackPair(t, Classic, Normal, 0)

	recvBuf := make([]byte, 64)
	recvDone := make(chan struct{})
	var recvErr error
	go func() {
		_, recvErr = receiver.Recv(recvBuf, 0, 0, 300_000)
		close(recvDone)
	}()

	// Send a First Frame announcing 20 bytes, then inject a CF with the
	// wrong sequence number instead of letting Send's own loop run.
	params := sender.frameParams()
	maxDatalen, _ := link.MaxDatalen(sender.format)
	ffScratch := make([]byte, maxDatalen)
	ffLen, _, err := frame.PrepareFF(params, ffScratch, make([]byte, 20))
	assert.Nil(t, err)
	_, err = sender.send(ffScratch[:ffLen], 300_000)
	assert.Nil(t, err)

	// Drain the FC(CTS) the receiver sends back.
	fcBuf := make([]byte, maxDatalen)
	_, err = sender.rxFunc(sender.driverCtx, fcBuf, 300_000)
	assert.Nil(t, err)

	badCF := make([]byte, maxDatalen)
	badCF[0] = 0x25 // CF with sequence number 5 instead of expected 1
	_, err = sender.send(badCF, 300_000)
	assert.Nil(t, err)

	<-recvDone
	assert.Equal(t, ErrConnectionAborted, recvErr)
	assert.Equal(t, uint8(0xFF), receiver.seqNum)

	_, err = receiver.Recv(recvBuf, 0, 0, 10_000)
	assert.Equal(t, ErrConnectionAborted, err)

	receiver.Reset()
	assert.NotEqual(t, seqPoisoned, receiver.seqNum)
}

// TestRecvNCrTimeoutMidConsecutiveFrame covers a peer that answers the
// First Frame with FC(CTS) and then stalls: no Consecutive Frame ever
// follows. N_Cr, not the per-call I/O timeout, must be what ends the
// transfer.
func TestRecvNCrTimeoutMidConsecutiveFrame(t *testing.T) {
	w := newWire()
	sideA := &endpoint{w: w, isSideA: true}
	sideB := &endpoint{w: w, isSideA: false}

	sender, err := NewContext(Classic, Normal, 0, nil, nil, sideA.recv, sideA.send)
	assert.Nil(t, err)
	receiver, err := NewContext(Classic, Normal, 0, &Timeouts{NCrUs: 50_000}, nil, sideB.pollRecv, sideB.send)
	assert.Nil(t, err)

	recvDone := make(chan struct{})
	var recvErr error
	go func() {
		_, recvErr = receiver.Recv(make([]byte, 64), 0, 0, 1_000_000)
		close(recvDone)
	}()

	params := sender.frameParams()
	maxDatalen, err := link.MaxDatalen(sender.format)
	assert.Nil(t, err)
	ffScratch := make([]byte, maxDatalen)
	ffLen, _, err := frame.PrepareFF(params, ffScratch, make([]byte, 20))
	assert.Nil(t, err)
	_, err = sender.send(ffScratch[:ffLen], 300_000)
	assert.Nil(t, err)

	// Drain the FC(CTS) the receiver sends back, then never send a CF.
	fcBuf := make([]byte, maxDatalen)
	_, err = sender.rxFunc(sender.driverCtx, fcBuf, 300_000)
	assert.Nil(t, err)

	<-recvDone
	assert.Equal(t, ErrTimedOut, recvErr)
	assert.Equal(t, phaseAborted, receiver.phase)
}

// TestSendAbortsAfterFCWaitExceedsMax covers a peer that keeps replying
// FC(WAIT) past fc_wait_max: the sender must give up rather than wait
// forever.
func TestSendAbortsAfterFCWaitExceedsMax(t *testing.T) {
	w := newWire()
	sideA := &endpoint{w: w, isSideA: true}
	sideB := &endpoint{w: w, isSideA: false}

	const fcWaitMax = 2
	sender, err := NewContext(Classic, Normal, fcWaitMax, nil, nil, sideA.recv, sideA.send)
	assert.Nil(t, err)

	payload := make([]byte, 20)
	sendDone := make(chan struct{})
	var sendErr error
	go func() {
		_, sendErr = sender.Send(payload, 1_000_000)
		close(sendDone)
	}()

	maxDatalen, err := link.MaxDatalen(Classic)
	assert.Nil(t, err)

	// Drain the First Frame the sender transmits.
	ffBuf := make([]byte, maxDatalen)
	_, err = sideB.recv(nil, ffBuf, 500_000)
	assert.Nil(t, err)

	// Reply FC(WAIT) one more time than fc_wait_max allows.
	fcParams := frame.Params{Format: Classic, Mode: Normal}
	for i := 0; i < fcWaitMax+1; i++ {
		fcScratch := make([]byte, maxDatalen)
		fcLen, ferr := frame.PrepareFC(fcParams, fcScratch, WAIT, 0, 0)
		assert.Nil(t, ferr)
		_, err = sideB.send(nil, fcScratch[:fcLen], 500_000)
		assert.Nil(t, err)
	}

	<-sendDone
	assert.Equal(t, ErrConnectionAborted, sendErr)
	assert.Equal(t, phaseAborted, sender.phase)
	assert.Equal(t, uint32(fcWaitMax+1), sender.fcWaitCount)
}
