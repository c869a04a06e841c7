package transcript

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/smarterpayouts/mint/internal/chat"
)

const instrumentationName = "github.com/smarterpayouts/mint/internal/transcript"

// SQLite is a durable chat.Store backed by a local SQLite database.
// Transcripts are stored as a JSON document per chat id; hand-off requests
// are append-only.
type SQLite struct {
	db     *sql.DB
	logger *zap.Logger

	tracer         trace.Tracer
	meter          metric.Meter
	saveCounter    metric.Int64Counter
	handoffCounter metric.Int64Counter
}

var _ chat.Store = (*SQLite)(nil)

// NewSQLite opens (or creates) the database at dbPath and initializes the
// schema. The caller owns the returned store and must Close it.
func NewSQLite(dbPath string, logger *zap.Logger) (*SQLite, error) {
	if dbPath == "" {
		return nil, errors.New("database path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL mode so reads don't block the orchestrator's writes.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLite{
		db:     db,
		logger: logger,
		tracer: otel.Tracer(instrumentationName),
		meter:  otel.Meter(instrumentationName),
	}

	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	s.initMetrics()

	return s, nil
}

func (s *SQLite) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS transcripts (
		chat_id TEXT PRIMARY KEY,
		messages_json TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS handoff_requests (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		chat_id TEXT NOT NULL,
		requested_at INTEGER NOT NULL,
		transcript_json TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_handoff_chat ON handoff_requests(chat_id);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *SQLite) initMetrics() {
	var err error

	s.saveCounter, err = s.meter.Int64Counter(
		"mint.transcript.saves_total",
		metric.WithDescription("Total number of transcripts saved"),
		metric.WithUnit("{save}"),
	)
	if err != nil {
		s.logger.Warn("failed to create save counter", zap.Error(err))
	}

	s.handoffCounter, err = s.meter.Int64Counter(
		"mint.transcript.handoffs_total",
		metric.WithDescription("Total number of hand-off requests logged"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		s.logger.Warn("failed to create handoff counter", zap.Error(err))
	}
}

// Ping verifies database connectivity.
func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveTranscript upserts the transcript for chatID.
func (s *SQLite) SaveTranscript(ctx context.Context, chatID string, msgs []chat.Message) error {
	ctx, span := s.tracer.Start(ctx, "transcript.save")
	defer span.End()
	span.SetAttributes(
		attribute.String("chat_id", chatID),
		attribute.Int("message_count", len(msgs)),
	)

	payload, err := json.Marshal(msgs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("encode transcript: %w", err)
	}

	query := `
	INSERT INTO transcripts (chat_id, messages_json, updated_at)
	VALUES (?, ?, ?)
	ON CONFLICT(chat_id) DO UPDATE SET
		messages_json = excluded.messages_json,
		updated_at = excluded.updated_at`

	if _, err := s.db.ExecContext(ctx, query, chatID, string(payload), time.Now().Unix()); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upsert transcript: %w", err)
	}

	if s.saveCounter != nil {
		s.saveCounter.Add(ctx, 1)
	}
	return nil
}

// LoadTranscript returns the stored transcript, or an empty slice when
// nothing is stored for chatID.
func (s *SQLite) LoadTranscript(ctx context.Context, chatID string) ([]chat.Message, error) {
	ctx, span := s.tracer.Start(ctx, "transcript.load")
	defer span.End()
	span.SetAttributes(attribute.String("chat_id", chatID))

	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT messages_json FROM transcripts WHERE chat_id = ?`, chatID,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return []chat.Message{}, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("query transcript: %w", err)
	}

	var msgs []chat.Message
	if err := json.Unmarshal([]byte(payload), &msgs); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("decode transcript: %w", err)
	}
	if msgs == nil {
		msgs = []chat.Message{}
	}
	return msgs, nil
}

// DeleteTranscript removes the transcript for chatID. Deleting a missing
// transcript is not an error.
func (s *SQLite) DeleteTranscript(ctx context.Context, chatID string) error {
	ctx, span := s.tracer.Start(ctx, "transcript.delete")
	defer span.End()
	span.SetAttributes(attribute.String("chat_id", chatID))

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM transcripts WHERE chat_id = ?`, chatID,
	); err != nil {
		span.RecordError(err)
		return fmt.Errorf("delete transcript: %w", err)
	}
	return nil
}

// LogHandOffRequest appends req to the hand-off log.
func (s *SQLite) LogHandOffRequest(ctx context.Context, req chat.HandOffRequest) error {
	ctx, span := s.tracer.Start(ctx, "transcript.log_handoff")
	defer span.End()
	span.SetAttributes(attribute.String("chat_id", req.ChatID))

	payload, err := json.Marshal(req.Transcript)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("encode handoff transcript: %w", err)
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO handoff_requests (chat_id, requested_at, transcript_json) VALUES (?, ?, ?)`,
		req.ChatID, req.Timestamp.Unix(), string(payload),
	); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("insert handoff request: %w", err)
	}

	if s.handoffCounter != nil {
		s.handoffCounter.Add(ctx, 1)
	}
	return nil
}

// HandOffRequests returns all logged hand-off requests for chatID, oldest
// first.
func (s *SQLite) HandOffRequests(ctx context.Context, chatID string) ([]chat.HandOffRequest, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chat_id, requested_at, transcript_json FROM handoff_requests WHERE chat_id = ? ORDER BY id`,
		chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("query handoff requests: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn("failed to close handoff rows", zap.Error(closeErr))
		}
	}()

	var out []chat.HandOffRequest
	for rows.Next() {
		var req chat.HandOffRequest
		var requestedAt int64
		var payload string
		if err := rows.Scan(&req.ChatID, &requestedAt, &payload); err != nil {
			return nil, fmt.Errorf("scan handoff row: %w", err)
		}
		req.Timestamp = time.Unix(requestedAt, 0).UTC()
		if err := json.Unmarshal([]byte(payload), &req.Transcript); err != nil {
			return nil, fmt.Errorf("decode handoff transcript: %w", err)
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate handoff requests: %w", err)
	}
	return out, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
