// Package notify delivers hand-off notifications to the team that staffs
// live channels. Delivery is fire-and-forget from the conversation's point
// of view; this package owns retries and connection state.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/smarterpayouts/mint/internal/chat"
)

// DefaultSubject is the NATS subject hand-off notifications publish to.
const DefaultSubject = "mint.chat.handoff"

// NATS publishes hand-off notifications to a NATS subject.
type NATS struct {
	conn    *nats.Conn
	subject string
	logger  *zap.Logger
}

var _ chat.Notifier = (*NATS)(nil)

// NewNATS connects to the NATS server at url. An empty subject uses
// DefaultSubject.
func NewNATS(url, subject string, logger *zap.Logger) (*NATS, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(1*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}

	logger.Info("connected to NATS", zap.String("url", url), zap.String("subject", subject))
	return &NATS{conn: conn, subject: subject, logger: logger}, nil
}

// NotifyHandOff publishes n as JSON to the configured subject.
func (p *NATS) NotifyHandOff(ctx context.Context, n chat.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := p.conn.Publish(p.subject, payload); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}

	p.logger.Debug("handoff notification published", zap.String("chat_id", n.ChatID))
	return nil
}

// Close drains the connection, flushing buffered publishes.
func (p *NATS) Close() {
	if err := p.conn.Drain(); err != nil {
		p.logger.Warn("failed to drain NATS connection", zap.Error(err))
	}
}

// Nop is a Notifier that does nothing, for deployments without a live team
// channel configured.
type Nop struct{}

var _ chat.Notifier = Nop{}

// NotifyHandOff discards the notification.
func (Nop) NotifyHandOff(context.Context, chat.Notification) error { return nil }
