package transfer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionStateTransitions(t *testing.T) {
	s := NewSession(nil, nil, nil)
	assert.Equal(t, StateInit, s.State())
	s.SetState(StateTransfer)
	assert.Equal(t, StateTransfer, s.State())
}

func TestSessionCancelSkip(t *testing.T) {
	s := NewSession(nil, nil, nil)
	assert.Equal(t, CancelNone, s.CancelRequested())
	s.Cancel(CancelDeletePartial)
	assert.Equal(t, CancelDeletePartial, s.CancelRequested())

	s.Skip(SkipKeepPartial)
	assert.Equal(t, SkipKeepPartial, s.SkipRequested())
	// SkipRequested consumes the pending request.
	assert.Equal(t, SkipNone, s.SkipRequested())
}

func TestSessionErrorCounterCapsAtTen(t *testing.T) {
	s := NewSession(nil, nil, nil)
	var exceeded bool
	for i := 0; i < 10; i++ {
		exceeded = s.RecordError()
		assert.False(t, exceeded)
	}
	exceeded = s.RecordError()
	assert.True(t, exceeded)

	s.ResetErrors()
	assert.False(t, s.RecordError())
}
