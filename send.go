package isotp

import (
	"github.com/canbus-go/isotp/internal/addr"
	"github.com/canbus-go/isotp/internal/clock"
	"github.com/canbus-go/isotp/internal/frame"
	"github.com/canbus-go/isotp/internal/link"
)

// Send transports buf to the peer, segmenting it into First/Consecutive
// Frames under Flow Control arbitration when it does not fit a Single
// Frame. On success it returns len(buf); on failure it returns a
// negative count and the failure, and the context must be Reset before
// starting a new transfer. timeoutUs is the per-call budget passed
// verbatim to the rx/tx callbacks; the protocol timers (N_As, N_Bs) are
// enforced in addition.
func (c *Context) Send(buf []byte, timeoutUs int64) (int, error) {
	if len(buf) == 0 || len(buf) > (1<<31)-2 {
		return -1, ErrRange
	}
	if c.phase != phaseIdle {
		return -1, ErrConnectionAborted
	}

	params := c.frameParams()
	maxDatalen, err := link.MaxDatalen(c.format)
	if err != nil {
		return -1, ErrInvalidArg
	}
	maxSF, err := addr.MaxSFDatalen(c.mode, c.format, c.format == FD)
	if err != nil {
		return -1, ErrInvalidArg
	}

	c.phase = phaseSending

	if len(buf) <= maxSF {
		frameLen, perr := frame.PrepareSF(params, c.scratch[:maxDatalen], buf)
		if perr != nil {
			c.phase = phaseAborted
			return -1, mapFrameErr(perr)
		}
		if _, err := c.send(c.scratch[:frameLen], timeoutUs); err != nil {
			c.phase = phaseAborted
			return -1, err
		}
		c.recordFrameSent("SF", c.scratch[:frameLen])
		c.phase = phaseIdle
		c.recordCompleted("send")
		return len(buf), nil
	}

	frameLen, copied, perr := frame.PrepareFF(params, c.scratch[:maxDatalen], buf)
	if perr != nil {
		c.phase = phaseAborted
		return -1, mapFrameErr(perr)
	}
	c.totalLen = len(buf)
	c.remainingLen = len(buf) - copied
	c.seqNum = 1
	if _, err := c.send(c.scratch[:frameLen], timeoutUs); err != nil {
		c.phase = phaseAborted
		return -1, err
	}
	c.recordFrameSent("FF", c.scratch[:frameLen])

	c.timer.Start()
	waitTimeoutUs := c.timeouts.NAsUs

	for {
		if c.timer.Expired(waitTimeoutUs) {
			c.phase = phaseAborted
			c.metrics.TimerExpired("wait_fc")
			c.metrics.TransferAborted("timeout")
			return -1, ErrTimedOut
		}

		n, rerr := c.rxFunc(c.driverCtx, c.scratch[:maxDatalen], timeoutUs)
		if rerr != nil {
			c.phase = phaseAborted
			c.metrics.TransferAborted("rx_error")
			return -1, rerr
		}
		if n <= 0 {
			continue
		}

		fs, bs, stMinUs, _, perr := frame.ParseFC(params, c.scratch[:n])
		if perr != nil {
			// Stray non-FC (or malformed) frame while waiting: ignored.
			continue
		}
		c.recordFrameReceived("FC")

		switch fs {
		case CTS:
			c.fcWaitCount = 0
			c.peerBlockSize = bs
			c.peerSTminUs = stMinUs
			blockCounter := bs
			for {
				cfLen, cfCopied, perr := frame.PrepareCF(params, c.scratch[:maxDatalen], buf, c.totalLen-c.remainingLen, c.remainingLen, c.seqNum)
				if perr != nil {
					c.phase = phaseAborted
					return -1, mapFrameErr(perr)
				}
				c.seqNum = (c.seqNum + 1) & 0x0F
				if _, err := c.send(c.scratch[:cfLen], timeoutUs); err != nil {
					c.phase = phaseAborted
					c.metrics.TransferAborted("tx_error")
					return -1, err
				}
				c.recordFrameSent("CF", c.scratch[:cfLen])
				c.remainingLen -= cfCopied
				if c.peerSTminUs > 0 {
					clock.SleepUs(int64(c.peerSTminUs))
				}
				if blockCounter > 0 {
					blockCounter--
				}

				if c.remainingLen == 0 {
					c.phase = phaseIdle
					c.recordCompleted("send")
					return len(buf), nil
				}
				if c.peerBlockSize > 0 && blockCounter == 0 {
					c.timer.Start()
					waitTimeoutUs = c.timeouts.NBsUs
					break // back to WAIT_FC
				}
				// BS == 0 (or block not yet exhausted): keep sending CFs.
			}

		case WAIT:
			c.fcWaitCount++
			c.timer.Start()
			waitTimeoutUs = c.timeouts.NBsUs
			c.metrics.FCWait()
			if c.fcWaitMax > 0 && c.fcWaitCount > c.fcWaitMax {
				c.phase = phaseAborted
				c.metrics.TransferAborted("fc_wait_overrun")
				return -1, ErrConnectionAborted
			}

		case OVFLW:
			c.phase = phaseAborted
			c.metrics.TransferAborted("fc_ovflw")
			return -1, ErrConnectionAborted
		}
	}
}

func (c *Context) send(wire []byte, timeoutUs int64) (int, error) {
	n, err := c.txFunc(c.driverCtx, wire, timeoutUs)
	if err != nil {
		c.logger.WithError(err).Warn("[SEND] tx callback failed")
		return n, err
	}
	return n, nil
}

func (c *Context) frameParams() frame.Params {
	return frame.Params{Format: c.format, Mode: c.mode, AE: c.ae}
}

func (c *Context) recordFrameSent(kind string, wire []byte) {
	c.logger.Debugf("[SEND][%s] wire=%x", kind, wire)
	c.metrics.FrameSent(kind)
}

func (c *Context) recordFrameReceived(kind string) {
	c.metrics.FrameReceived(kind)
}

func (c *Context) recordCompleted(direction string) {
	c.metrics.TransferCompleted(direction)
}

func mapFrameErr(err error) error {
	switch err {
	case frame.ErrOverflow:
		return ErrOverflow
	case frame.ErrBadMessage:
		return ErrBadMessage
	case frame.ErrNotSupported:
		return ErrNotSupported
	case frame.ErrNoBufSpace:
		return ErrNoBufSpace
	default:
		return err
	}
}
