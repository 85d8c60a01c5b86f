package isotp

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindOK, KindOf(nil))
	assert.Equal(t, KindRange, KindOf(ErrRange))
	assert.Equal(t, KindTimedOut, KindOf(ErrTimedOut))
	assert.Equal(t, KindNoBufSpace, KindOf(ErrNoBufSpace))
}

func TestKindOfWrappedError(t *testing.T) {
	wrapped := fmt.Errorf("send failed: %w", ErrConnectionAborted)
	assert.Equal(t, KindConnectionAborted, KindOf(wrapped))
}

func TestKindOfUnknownErrorIsFault(t *testing.T) {
	assert.Equal(t, KindFault, KindOf(fmt.Errorf("boom")))
}
