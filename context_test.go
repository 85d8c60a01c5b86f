package isotp

import (
	"testing"

	"github.com/canbus-go/isotp/pkg/metrics"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func noopRx(driverCtx any, buf []byte, timeoutUs int64) (int, error) { return 0, nil }
func noopTx(driverCtx any, buf []byte, timeoutUs int64) (int, error) { return len(buf), nil }

func TestNewContextRejectsNilCallbacks(t *testing.T) {
	_, err := NewContext(Classic, Normal, 0, nil, nil, nil, noopTx)
	assert.Equal(t, ErrInvalidArg, err)

	_, err = NewContext(Classic, Normal, 0, nil, nil, noopRx, nil)
	assert.Equal(t, ErrInvalidArg, err)
}

func TestNewContextDefaultsTimeouts(t *testing.T) {
	ctx, err := NewContext(Classic, Normal, 0, nil, nil, noopRx, noopTx)
	assert.Nil(t, err)
	assert.Equal(t, DefaultTimeoutUs, ctx.timeouts.NAsUs)
	assert.Equal(t, DefaultTimeoutUs, ctx.timeouts.NBsUs)
}

func TestNewContextHonorsPartialTimeouts(t *testing.T) {
	ctx, err := NewContext(Classic, Normal, 0, &Timeouts{NAsUs: 42}, nil, noopRx, noopTx)
	assert.Nil(t, err)
	assert.Equal(t, int64(42), ctx.timeouts.NAsUs)
	assert.Equal(t, DefaultTimeoutUs, ctx.timeouts.NBsUs)
}

func TestNewContextAppliesOptions(t *testing.T) {
	rec := metrics.NewRecorder("opt-test")
	entry := log.WithField("component", "test")
	ctx, err := NewContext(Classic, Normal, 0, nil, nil, noopRx, noopTx, WithMetrics(rec), WithLogger(entry))
	assert.Nil(t, err)
	assert.Equal(t, rec, ctx.metrics)
	assert.Equal(t, entry, ctx.logger)
}

func TestResetClearsPerTransferState(t *testing.T) {
	ctx, err := NewContext(Classic, Normal, 0, nil, nil, noopRx, noopTx)
	assert.Nil(t, err)
	ctx.phase = phaseAborted
	ctx.seqNum = seqPoisoned
	ctx.remainingLen = 10

	ctx.Reset()
	assert.Equal(t, phaseIdle, ctx.phase)
	assert.Equal(t, uint8(1), ctx.seqNum)
	assert.Equal(t, 0, ctx.remainingLen)
}

func TestAddressExtensionRoundTrip(t *testing.T) {
	ctx, err := NewContext(Classic, Extended, 0, nil, nil, noopRx, noopTx)
	assert.Nil(t, err)
	assert.Equal(t, uint8(0), ctx.AddressExtension())
	ctx.SetAddressExtension(0x99)
	assert.Equal(t, uint8(0x99), ctx.AddressExtension())
}

func TestNewContextRejectsInvalidFormat(t *testing.T) {
	_, err := NewContext(CANFormat(99), Normal, 0, nil, nil, noopRx, noopTx)
	assert.Equal(t, ErrInvalidArg, err)
}
