package frame

import (
	"testing"

	"github.com/canbus-go/isotp/internal/addr"
	"github.com/canbus-go/isotp/internal/link"
	"github.com/stretchr/testify/assert"
)

func TestPrepareParseFFClassicNormal(t *testing.T) {
	p := Params{Format: link.Classic, Mode: addr.Normal}
	scratch := make([]byte, 8)
	payload := make([]byte, 20)
	for i := range payload {
		payload[i] = byte(i)
	}

	frameLen, copied, err := PrepareFF(p, scratch, payload)
	assert.Nil(t, err)
	assert.Equal(t, 8, frameLen)
	assert.Equal(t, 6, copied)
	assert.Equal(t, byte(0x10), scratch[0])
	assert.Equal(t, byte(20), scratch[1])

	out := make([]byte, 20)
	total, gotCopied, ae, err := ParseFF(p, scratch[:frameLen], out)
	assert.Nil(t, err)
	assert.Equal(t, 20, total)
	assert.Equal(t, 6, gotCopied)
	assert.Equal(t, uint8(0), ae)
	assert.Equal(t, payload[:6], out[:gotCopied])
}

func TestPrepareFFRejectsBelowFFDLMin(t *testing.T) {
	p := Params{Format: link.Classic, Mode: addr.Normal}
	scratch := make([]byte, 8)
	_, _, err := PrepareFF(p, scratch, make([]byte, 7))
	assert.Equal(t, ErrBadMessage, err)
}

func TestParseFFReturnsOverflowWithTotal(t *testing.T) {
	p := Params{Format: link.Classic, Mode: addr.Normal}
	scratch := make([]byte, 8)
	_, _, err := PrepareFF(p, scratch, make([]byte, 300))
	assert.Nil(t, err)

	out := make([]byte, 10)
	total, copied, _, err := ParseFF(p, scratch, out)
	assert.Equal(t, ErrOverflow, err)
	assert.Equal(t, 300, total)
	assert.Equal(t, 0, copied)
}

func TestPrepareParseFFEscapedLargeTotal(t *testing.T) {
	p := Params{Format: link.FD, Mode: addr.Normal}
	scratch := make([]byte, 64)
	payload := make([]byte, 5000)

	frameLen, copied, err := PrepareFF(p, scratch, payload)
	assert.Nil(t, err)
	assert.Equal(t, 64, frameLen)
	assert.Equal(t, byte(0x10), scratch[0])
	assert.Equal(t, byte(0x00), scratch[1])

	out := make([]byte, 5000)
	total, gotCopied, _, err := ParseFF(p, scratch[:frameLen], out)
	assert.Nil(t, err)
	assert.Equal(t, 5000, total)
	assert.Equal(t, copied, gotCopied)
}
