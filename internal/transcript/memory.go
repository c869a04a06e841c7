package transcript

import (
	"context"
	"sync"

	"github.com/smarterpayouts/mint/internal/chat"
)

// Memory is an in-memory chat.Store. Zero value is not usable; create with
// NewMemory.
type Memory struct {
	mu          sync.RWMutex
	transcripts map[string][]chat.Message
	handoffs    []chat.HandOffRequest
}

var _ chat.Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{transcripts: make(map[string][]chat.Message)}
}

// SaveTranscript stores a copy of msgs under chatID, replacing any previous
// transcript.
func (m *Memory) SaveTranscript(_ context.Context, chatID string, msgs []chat.Message) error {
	cp := make([]chat.Message, len(msgs))
	copy(cp, msgs)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.transcripts[chatID] = cp
	return nil
}

// LoadTranscript returns a copy of the stored transcript, or an empty slice
// when nothing is stored.
func (m *Memory) LoadTranscript(_ context.Context, chatID string) ([]chat.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stored := m.transcripts[chatID]
	cp := make([]chat.Message, len(stored))
	copy(cp, stored)
	return cp, nil
}

// DeleteTranscript removes the transcript for chatID, if any.
func (m *Memory) DeleteTranscript(_ context.Context, chatID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.transcripts, chatID)
	return nil
}

// LogHandOffRequest appends req to the hand-off log.
func (m *Memory) LogHandOffRequest(_ context.Context, req chat.HandOffRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handoffs = append(m.handoffs, req)
	return nil
}

// HandOffRequests returns a copy of the logged hand-off requests.
func (m *Memory) HandOffRequests() []chat.HandOffRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cp := make([]chat.HandOffRequest, len(m.handoffs))
	copy(cp, m.handoffs)
	return cp
}
