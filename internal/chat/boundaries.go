package chat

import "context"

// Store is the persistence boundary for conversation transcripts. The
// conversation logic never assumes a specific persistence technology, only
// this four-operation contract. All operations are independently failable.
type Store interface {
	// SaveTranscript persists the transcript for chatID. Idempotent: saving
	// twice with the same chatID overwrites rather than duplicates.
	SaveTranscript(ctx context.Context, chatID string, msgs []Message) error

	// LoadTranscript returns the stored transcript, or an empty slice (never
	// an error) when nothing is stored for chatID.
	LoadTranscript(ctx context.Context, chatID string) ([]Message, error)

	// DeleteTranscript removes the transcript. Deleting a non-existent
	// chatID is not an error.
	DeleteTranscript(ctx context.Context, chatID string) error

	// LogHandOffRequest records a hand-off request. Fire-and-forget from the
	// caller's perspective, but failures must not silently disappear: they
	// are logged with the chatID for operator follow-up.
	LogHandOffRequest(ctx context.Context, req HandOffRequest) error
}

// CompletionMessage is one turn passed to the completion boundary.
type CompletionMessage struct {
	Role    Sender `json:"role"`
	Content string `json:"content"`
}

// Completer is the generative completion boundary.
type Completer interface {
	// Complete returns a single reply for the given ordered history.
	Complete(ctx context.Context, msgs []CompletionMessage) (string, error)

	// CompleteStream streams reply chunks through onChunk in arrival order
	// and returns the concatenated reply. The chunk sequence is finite and
	// not restartable. onChunk may be nil.
	CompleteStream(ctx context.Context, msgs []CompletionMessage, onChunk func(chunk string) error) (string, error)
}

// Notifier is invoked out-of-band when a hand-off is logged. Paging a human
// is entirely outside this package's responsibility.
type Notifier interface {
	NotifyHandOff(ctx context.Context, n Notification) error
}
