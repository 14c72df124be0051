package domain

import "time"

// StructuredSummary is the model's parsed digest of one message batch
type StructuredSummary struct {
	Summary SummaryBody `json:"summary"`
}

// SummaryBody is the inner summary object of the model reply
type SummaryBody struct {
	TotalMessages int            `json:"total_messages"`
	TimeRange     string         `json:"time_range"`
	Groups        []SummaryGroup `json:"groups"`
}

// SummaryGroup is one per-chat section of the digest
type SummaryGroup struct {
	Name     string           `json:"name"`
	Type     string           `json:"type"` // "group" or "private"
	Messages []SummaryMessage `json:"messages"`
}

// SummaryMessage is one condensed item inside a digest group
type SummaryMessage struct {
	Priority string `json:"priority"` // high, medium, low
	Content  string `json:"content"`
	Sender   string `json:"sender"`
}

// FallbackSummary builds the empty-structure summary used when the model
// replied but its output could not be parsed. The raw batch is still
// rendered and delivered in full.
func FallbackSummary(batchSize int) *StructuredSummary {
	return &StructuredSummary{
		Summary: SummaryBody{
			TotalMessages: batchSize,
			TimeRange:     "未知",
		},
	}
}

// SummaryRecord is the durable result of one delivered cycle. It exists
// if and only if the email went out; MessageIDs are exactly the message
// rows marked processed in the same transaction.
type SummaryRecord struct {
	ID          int64     `json:"id"`
	MessageIDs  []int64   `json:"message_ids"`
	Payload     string    `json:"payload"` // structured summary JSON, "{}" when parsing failed
	CreatedAt   time.Time `json:"created_at"`
	EmailSent   bool      `json:"email_sent"`
	EmailSentAt time.Time `json:"email_sent_at"`
}
