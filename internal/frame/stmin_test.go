package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSTminToUs(t *testing.T) {
	assert.Equal(t, uint32(0), STminToUs(0x00))
	assert.Equal(t, uint32(1000), STminToUs(0x01))
	assert.Equal(t, uint32(127000), STminToUs(0x7F))
	assert.Equal(t, uint32(100), STminToUs(0xF1))
	assert.Equal(t, uint32(900), STminToUs(0xF9))
	// reserved codes
	assert.Equal(t, uint32(127000), STminToUs(0x80))
	assert.Equal(t, uint32(127000), STminToUs(0xFA))
	assert.Equal(t, uint32(127000), STminToUs(0xFF))
}

func TestUSToSTminCode(t *testing.T) {
	assert.Equal(t, byte(0x00), USToSTminCode(0))
	assert.Equal(t, byte(0x01), USToSTminCode(1000))
	assert.Equal(t, byte(0x7F), USToSTminCode(127000))
	assert.Equal(t, byte(0xF1), USToSTminCode(100))
	assert.Equal(t, byte(0x7F), USToSTminCode(999999))
}

func TestSTminRoundTripMillisecondSteps(t *testing.T) {
	for ms := uint32(1); ms <= 127; ms++ {
		code := USToSTminCode(ms * 1000)
		assert.Equal(t, ms*1000, STminToUs(code))
	}
}
