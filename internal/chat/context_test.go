package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewContextStartsAtGreeting(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewContext("chat-1", now)
	assert.Equal(t, StageGreeting, c.Stage)
	assert.Equal(t, "chat-1", c.SessionID)
	assert.True(t, now.Equal(c.LastActivityAt))
	assert.NotNil(t, c.Collected)
}

func TestTransitionLegality(t *testing.T) {
	tests := []struct {
		from Stage
		to   Stage
		ok   bool
	}{
		{StageGreeting, StageChoice, true},
		{StageGreeting, StageHandoff, false},
		{StageChoice, StageForm, true},
		{StageChoice, StageGeneral, true},
		{StageChoice, StageHandoff, true},
		{StageForm, StageChoice, true},
		{StageForm, StageGeneral, false},
		{StageGeneral, StageHandoff, true},
		{StageHandoff, StageGeneral, true},
		{StageHandoff, StageForm, false},
		{StageTerminal, StageChoice, false},
	}
	for _, tt := range tests {
		c := Context{Stage: tt.from}
		err := c.Transition(tt.to)
		if tt.ok {
			require.NoError(t, err, "%s -> %s should be legal", tt.from, tt.to)
			assert.Equal(t, tt.to, c.Stage)
		} else {
			require.Error(t, err, "%s -> %s should be rejected", tt.from, tt.to)
			assert.Equal(t, tt.from, c.Stage, "failed transition must not move the stage")
		}
	}
}

func TestEveryStageCanTerminate(t *testing.T) {
	for _, from := range []Stage{StageGreeting, StageChoice, StageForm, StageGeneral, StageHandoff} {
		c := Context{Stage: from}
		assert.NoError(t, c.Transition(StageTerminal), "from %s", from)
	}
}
