package chat

import (
	"fmt"
	"time"
)

// Stage is the conversation's position in the dialogue state machine.
type Stage string

const (
	StageGreeting Stage = "greeting"
	StageChoice   Stage = "choice"
	StageForm     Stage = "form"
	StageGeneral  Stage = "general"
	StageHandoff  Stage = "handoff"
	StageTerminal Stage = "terminal"
)

// legalTransitions enumerates the state machine. Stage changes happen only
// through Context.Transition; arbitrary jumps are rejected.
var legalTransitions = map[Stage][]Stage{
	StageGreeting: {StageChoice, StageTerminal},
	StageChoice:   {StageForm, StageGeneral, StageHandoff, StageTerminal},
	StageForm:     {StageChoice, StageHandoff, StageTerminal},
	StageGeneral:  {StageChoice, StageHandoff, StageTerminal},
	StageHandoff:  {StageChoice, StageGeneral, StageTerminal},
	StageTerminal: {},
}

// Context tracks per-session conversation state. It is owned exclusively by
// the Orchestrator for the session's lifetime.
type Context struct {
	SessionID      string
	Stage          Stage
	Collected      map[string]string
	LastActivityAt time.Time
}

// NewContext creates a session context in the greeting stage.
func NewContext(sessionID string, now time.Time) Context {
	return Context{
		SessionID:      sessionID,
		Stage:          StageGreeting,
		Collected:      make(map[string]string),
		LastActivityAt: now,
	}
}

// Transition moves the context to next, enforcing the state machine.
func (c *Context) Transition(next Stage) error {
	for _, allowed := range legalTransitions[c.Stage] {
		if allowed == next {
			c.Stage = next
			return nil
		}
	}
	return fmt.Errorf("illegal stage transition %s -> %s", c.Stage, next)
}
