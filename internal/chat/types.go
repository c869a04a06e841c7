package chat

import (
	"encoding/json"
	"fmt"
	"time"
)

// Sender identifies who produced a message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
	SenderSystem    Sender = "system"
)

// MessageKind discriminates the message metadata union.
type MessageKind string

const (
	// KindText is a plain text bubble with no metadata.
	KindText MessageKind = "text"
	// KindQuickReply carries tappable reply choices.
	KindQuickReply MessageKind = "quick_reply"
	// KindCard carries a rich card with an action.
	KindCard MessageKind = "card"
	// KindSystemNotice is an operational notice, stripped from completion
	// context.
	KindSystemNotice MessageKind = "system_notice"
)

// Metadata is the closed per-kind metadata union. Each message kind has its
// own variant with an explicit field set, so rendering logic can switch
// exhaustively instead of digging through untyped maps.
type Metadata interface {
	messageKind() MessageKind
}

// QuickReplyMeta lists the tappable choices attached to a quick_reply
// message.
type QuickReplyMeta struct {
	Choices []string `json:"choices"`
}

func (QuickReplyMeta) messageKind() MessageKind { return KindQuickReply }

// CardMeta describes a rich card message.
type CardMeta struct {
	Title        string `json:"title"`
	Body         string `json:"body"`
	ActionLabel  string `json:"action_label,omitempty"`
	ActionTarget string `json:"action_target,omitempty"`
}

func (CardMeta) messageKind() MessageKind { return KindCard }

// SystemNoticeMeta carries the machine-readable code of a system notice.
type SystemNoticeMeta struct {
	Code string `json:"code"`
}

func (SystemNoticeMeta) messageKind() MessageKind { return KindSystemNotice }

// Message is one transcript entry. Messages are immutable once appended;
// corrections append a new message rather than mutating history.
type Message struct {
	ID        string
	Content   string
	Sender    Sender
	Timestamp time.Time
	Kind      MessageKind
	Meta      Metadata
}

// wireMessage is the JSON representation of Message. Meta is encoded as a
// raw object and decoded by kind.
type wireMessage struct {
	ID        string          `json:"id"`
	Content   string          `json:"content"`
	Sender    Sender          `json:"sender"`
	Timestamp time.Time       `json:"timestamp"`
	Kind      MessageKind     `json:"kind"`
	Meta      json.RawMessage `json:"meta,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (m Message) MarshalJSON() ([]byte, error) {
	w := wireMessage{
		ID:        m.ID,
		Content:   m.Content,
		Sender:    m.Sender,
		Timestamp: m.Timestamp,
		Kind:      m.Kind,
	}
	if m.Meta != nil {
		raw, err := json.Marshal(m.Meta)
		if err != nil {
			return nil, fmt.Errorf("marshaling %s meta: %w", m.Kind, err)
		}
		w.Meta = raw
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler, decoding metadata into the
// variant matching the message kind.
func (m *Message) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	m.ID = w.ID
	m.Content = w.Content
	m.Sender = w.Sender
	m.Timestamp = w.Timestamp
	m.Kind = w.Kind
	m.Meta = nil

	if len(w.Meta) == 0 {
		return nil
	}
	switch w.Kind {
	case KindText:
		// Plain text carries no metadata; ignore any payload.
	case KindQuickReply:
		var meta QuickReplyMeta
		if err := json.Unmarshal(w.Meta, &meta); err != nil {
			return fmt.Errorf("decoding quick_reply meta: %w", err)
		}
		m.Meta = meta
	case KindCard:
		var meta CardMeta
		if err := json.Unmarshal(w.Meta, &meta); err != nil {
			return fmt.Errorf("decoding card meta: %w", err)
		}
		m.Meta = meta
	case KindSystemNotice:
		var meta SystemNoticeMeta
		if err := json.Unmarshal(w.Meta, &meta); err != nil {
			return fmt.Errorf("decoding system_notice meta: %w", err)
		}
		m.Meta = meta
	default:
		return fmt.Errorf("unknown message kind %q", w.Kind)
	}
	return nil
}

// Channel identifies a hand-off destination.
type Channel string

const (
	ChannelLiveChat    Channel = "live_chat"
	ChannelSMS         Channel = "sms"
	ChannelPhoneCall   Channel = "phone_call"
	ChannelAppointment Channel = "appointment"
)

// HandOffRequest is the write-once record persisted when a hand-off is
// requested. Never mutated after creation.
type HandOffRequest struct {
	ChatID     string    `json:"chat_id"`
	Timestamp  time.Time `json:"timestamp"`
	Transcript []Message `json:"transcript"`
}

// Notification is delivered to the notification boundary when a hand-off is
// logged. Delivery semantics are entirely the notifier's concern.
type Notification struct {
	ChatID    string    `json:"chat_id"`
	UserName  string    `json:"user_name"`
	Timestamp time.Time `json:"timestamp"`
}
