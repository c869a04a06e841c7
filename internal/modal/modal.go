// Package modal tracks which hand-off channel surface is currently open.
//
// The manager is a small explicit state machine: exactly one channel (or
// none) is open at a time, and state changes only through the named
// transitions Open and Close. It carries no rendering concerns, so it is
// testable independent of any UI framework.
package modal

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Channel identifies a hand-off surface.
type Channel string

const (
	ChannelNone        Channel = "none"
	ChannelMessage     Channel = "message"
	ChannelSMS         Channel = "sms"
	ChannelPhone       Channel = "phone"
	ChannelAppointment Channel = "appointment"
)

// ErrUnknownChannel is returned when Open is called with an unrecognized
// channel.
var ErrUnknownChannel = fmt.Errorf("unknown modal channel")

// Manager mediates transitions between hand-off channel surfaces.
type Manager struct {
	mu       sync.Mutex
	current  Channel
	onChange func(Channel)
	logger   *zap.Logger
}

// NewManager creates a manager with no channel open.
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		current: ChannelNone,
		logger:  logger,
	}
}

// OnChange registers a callback invoked after every transition with the new
// channel. Only one callback is held; later registrations replace earlier
// ones.
func (m *Manager) OnChange(fn func(Channel)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = fn
}

// Open switches to the given channel, implicitly closing any channel already
// open. Opening the channel that is already open is a no-op.
func (m *Manager) Open(ch Channel) error {
	switch ch {
	case ChannelMessage, ChannelSMS, ChannelPhone, ChannelAppointment:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownChannel, ch)
	}

	m.mu.Lock()
	if m.current == ch {
		m.mu.Unlock()
		return nil
	}
	previous := m.current
	m.current = ch
	fn := m.onChange
	m.mu.Unlock()

	m.logger.Debug("modal channel opened",
		zap.String("channel", string(ch)),
		zap.String("previous", string(previous)),
	)

	if fn != nil {
		fn(ch)
	}
	return nil
}

// Close dismisses the open channel, if any.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.current == ChannelNone {
		m.mu.Unlock()
		return
	}
	m.current = ChannelNone
	fn := m.onChange
	m.mu.Unlock()

	if fn != nil {
		fn(ChannelNone)
	}
}

// Current returns the channel that is open, or ChannelNone.
func (m *Manager) Current() Channel {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}
