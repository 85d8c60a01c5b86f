package isotp

import (
	"github.com/canbus-go/isotp/internal/frame"
	"github.com/canbus-go/isotp/internal/link"
)

// Recv reassembles one transfer from the peer into buf and returns the
// number of bytes written. recvBS and recvSTminUs are this context's
// own Flow-Control parameters, advertised to the peer on every FC(CTS)
// this call sends. timeoutUs is the per-call budget passed verbatim to
// the rx/tx callbacks; N_Cr is enforced in addition. On failure the
// context must be Reset before the next call.
func (c *Context) Recv(buf []byte, recvBS uint8, recvSTminUs uint32, timeoutUs int64) (int, error) {
	if c.phase != phaseIdle {
		return -1, ErrConnectionAborted
	}

	params := c.frameParams()
	maxDatalen, err := link.MaxDatalen(c.format)
	if err != nil {
		return -1, ErrInvalidArg
	}

	c.phase = phaseReceiving

	for {
		n, rerr := c.rxFunc(c.driverCtx, c.scratch[:maxDatalen], timeoutUs)
		if rerr != nil {
			c.phase = phaseAborted
			c.metrics.TransferAborted("rx_error")
			return -1, rerr
		}
		if n <= 0 {
			continue
		}

		raw := c.scratch[:n]
		aeOff := 0
		if c.aeLen > 0 {
			aeOff = 1
		}
		if len(raw) <= aeOff {
			continue
		}
		switch raw[aeOff] >> 4 {
		case 0x0: // SF
			sfdl, ae, perr := frame.ParseSF(params, raw, buf)
			if perr != nil {
				c.phase = phaseAborted
				return -1, mapFrameErr(perr)
			}
			c.ae = ae
			c.totalLen, c.remainingLen = 0, 0
			c.recordFrameReceived("SF")
			c.phase = phaseIdle
			c.recordCompleted("recv")
			return sfdl, nil

		case 0x1: // FF
			total, copied, ae, perr := frame.ParseFF(params, raw, buf)
			if perr == frame.ErrOverflow {
				c.ae = ae
				c.recordFrameReceived("FF")
				fcLen, fcErr := frame.PrepareFC(params, c.scratch[:maxDatalen], OVFLW, 0, 0)
				if fcErr == nil {
					if _, serr := c.send(c.scratch[:fcLen], timeoutUs); serr == nil {
						c.recordFrameSent("FC", c.scratch[:fcLen])
					}
				}
				c.phase = phaseAborted
				c.metrics.TransferAborted("no_buf_space")
				return -1, ErrNoBufSpace
			}
			if perr != nil {
				// FF_DL < FF_DLmin: silently ignored (ISO §9.6.3.2).
				continue
			}
			c.ae = ae
			c.totalLen = total
			c.remainingLen = total - copied
			c.seqNum = 1
			c.recordFrameReceived("FF")

			if c.remainingLen == 0 {
				c.phase = phaseIdle
				c.recordCompleted("recv")
				return total, nil
			}

			if err := c.sendFC(params, maxDatalen, CTS, recvBS, recvSTminUs, timeoutUs); err != nil {
				c.phase = phaseAborted
				return -1, err
			}

			blockCounter := recvBS
			c.timer.Start()

			for {
				if c.timer.Expired(c.timeouts.NCrUs) {
					c.phase = phaseAborted
					c.metrics.TimerExpired("n_cr")
					c.metrics.TransferAborted("timeout")
					return -1, ErrTimedOut
				}

				cn, crerr := c.rxFunc(c.driverCtx, c.scratch[:maxDatalen], timeoutUs)
				if crerr != nil {
					c.phase = phaseAborted
					c.metrics.TransferAborted("rx_error")
					return -1, crerr
				}
				if cn <= 0 {
					continue
				}
				craw := c.scratch[:cn]
				if len(craw) <= aeOff || craw[aeOff]>>4 != 0x2 {
					continue // non-CF frame ignored
				}

				if c.seqNum == seqPoisoned {
					c.phase = phaseAborted
					return -1, ErrConnectionAborted
				}

				sn, copied, perr := frame.ParseCF(params, craw, buf, c.totalLen-c.remainingLen, c.remainingLen)
				if perr != nil {
					c.phase = phaseAborted
					return -1, mapFrameErr(perr)
				}
				if sn != c.seqNum {
					c.seqNum = seqPoisoned
					c.phase = phaseAborted
					c.metrics.TransferAborted("sequence_mismatch")
					return -1, ErrConnectionAborted
				}
				c.recordFrameReceived("CF")
				c.seqNum = (c.seqNum + 1) & 0x0F
				c.remainingLen -= copied
				if blockCounter > 0 {
					blockCounter--
				}

				if c.remainingLen == 0 {
					c.phase = phaseIdle
					c.recordCompleted("recv")
					return c.totalLen, nil
				}

				if recvBS > 0 && blockCounter == 0 {
					if err := c.sendFC(params, maxDatalen, CTS, recvBS, recvSTminUs, timeoutUs); err != nil {
						c.phase = phaseAborted
						return -1, err
					}
					blockCounter = recvBS
				}
				c.timer.Start()
			}

		default: // stray FC or CF at IDLE: ignored
			continue
		}
	}
}

func (c *Context) sendFC(params frame.Params, maxDatalen int, fs FlowStatus, bs uint8, stMinUs uint32, timeoutUs int64) error {
	fcLen, err := frame.PrepareFC(params, c.scratch[:maxDatalen], fs, bs, stMinUs)
	if err != nil {
		return mapFrameErr(err)
	}
	if _, err := c.send(c.scratch[:fcLen], timeoutUs); err != nil {
		c.metrics.TransferAborted("tx_error")
		return err
	}
	c.recordFrameSent("FC", c.scratch[:fcLen])
	return nil
}
