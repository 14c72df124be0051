package domain

import "time"

// MessageKind classifies an inbound chat event
type MessageKind string

const (
	KindPrivate MessageKind = "private"
	KindGroup   MessageKind = "group"
	KindOther   MessageKind = "other"
)

// CanonicalMessage is the normalized, store-ready form of one inbound chat event.
// ExternalID is the gateway's message id and is not required to be unique:
// ingestion is at-least-once and duplicates are tolerated.
type CanonicalMessage struct {
	ID         int64       `json:"id"`
	ExternalID string      `json:"msg_id"`
	Kind       MessageKind `json:"message_type"`
	SenderID   string      `json:"user_id"`
	SenderName string      `json:"sender_name"`
	GroupID    string      `json:"group_id"` // empty unless Kind == KindGroup
	GroupName  string      `json:"group_name"`
	Content    string      `json:"content"` // de-escaped, CQ codes translated
	RawJSON    string      `json:"raw_json"`
	Processed  bool        `json:"processed"`
	ReceivedAt time.Time   `json:"received_at"`
}

// Scene returns the human-readable origin of the message, used in prompts
// and in the rendered digest
func (m *CanonicalMessage) Scene() string {
	if m.GroupID != "" {
		name := m.GroupName
		if name == "" {
			name = m.GroupID
		}
		return "群[" + name + "]"
	}
	return "私聊"
}

// SenderLabel returns the best available sender identifier
func (m *CanonicalMessage) SenderLabel() string {
	if m.SenderName != "" {
		return m.SenderName
	}
	if m.SenderID != "" {
		return m.SenderID
	}
	return "unknown"
}

// Counts holds the store-wide counters shown on the dashboard
type Counts struct {
	Unprocessed int64 `json:"unprocessed_messages"`
	Total       int64 `json:"total_messages"`
	EmailsSent  int64 `json:"sent_emails"`
}
