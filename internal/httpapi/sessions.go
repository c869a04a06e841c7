package httpapi

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smarterpayouts/mint/internal/chat"
)

// ErrSessionNotFound is returned when a session id is unknown.
var ErrSessionNotFound = errors.New("session not found")

// SessionFactory builds an orchestrator for a new session. The manager
// supplies the session id and user name; everything else comes from server
// configuration.
type SessionFactory func(sessionID, userName string) (*chat.Orchestrator, error)

// SessionManager tracks live chat sessions by id.
type SessionManager struct {
	factory SessionFactory
	logger  *zap.Logger

	mu       sync.Mutex
	sessions map[string]*chat.Orchestrator
}

// NewSessionManager creates a manager that builds sessions via factory.
func NewSessionManager(factory SessionFactory, logger *zap.Logger) *SessionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionManager{
		factory:  factory,
		logger:   logger,
		sessions: make(map[string]*chat.Orchestrator),
	}
}

// Create builds and registers a new session. The welcome script starts
// revealing in the background; clients poll messages to see it appear.
func (m *SessionManager) Create(userName string) (string, *chat.Orchestrator, error) {
	id := uuid.NewString()
	o, err := m.factory(id, userName)
	if err != nil {
		return "", nil, err
	}

	m.mu.Lock()
	m.sessions[id] = o
	m.mu.Unlock()

	go func() {
		if err := o.Start(); err != nil && !errors.Is(err, chat.ErrSessionClosed) {
			m.logger.Error("session start failed", zap.String("session_id", id), zap.Error(err))
		}
	}()

	m.logger.Info("session created", zap.String("session_id", id))
	return id, o, nil
}

// Get returns the session for id.
func (m *SessionManager) Get(id string) (*chat.Orchestrator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return o, nil
}

// Close tears down and forgets the session for id.
func (m *SessionManager) Close(ctx context.Context, id string) error {
	m.mu.Lock()
	o, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	return o.Close(ctx)
}

// CloseAll tears down every live session. Used at shutdown.
func (m *SessionManager) CloseAll(ctx context.Context) {
	m.mu.Lock()
	sessions := make([]*chat.Orchestrator, 0, len(m.sessions))
	for _, o := range m.sessions {
		sessions = append(sessions, o)
	}
	m.sessions = make(map[string]*chat.Orchestrator)
	m.mu.Unlock()

	for _, o := range sessions {
		if err := o.Close(ctx); err != nil {
			m.logger.Warn("session close failed during shutdown", zap.Error(err))
		}
	}
}

// Count returns the number of live sessions.
func (m *SessionManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
