package domain

import "time"

// CycleStatus names the terminal state of one delivery cycle
type CycleStatus string

const (
	// StatusOK: batch summarized, delivered and committed
	StatusOK CycleStatus = "ok"
	// StatusNoMessages: nothing unprocessed, store untouched (not an error)
	StatusNoMessages CycleStatus = "no_messages"
	// StatusAIFailed: model endpoint unreachable or erroring, store untouched
	StatusAIFailed CycleStatus = "ai_failed"
	// StatusEmailFailed: mail relay rejected the send, store untouched
	StatusEmailFailed CycleStatus = "email_failed"
	// StatusBusy: a cycle was already running, trigger ignored
	StatusBusy CycleStatus = "busy"
	// StatusFatal: email delivered but the processed marks could not be
	// written. The process stops rather than double-send the batch later.
	StatusFatal CycleStatus = "fatal"
)

// CycleOutcome is the result value every cycle run returns. The pipeline
// never surfaces faults to callers any other way.
type CycleOutcome struct {
	Status      CycleStatus `json:"status"`
	Message     string      `json:"message"`
	Count       int         `json:"count,omitempty"`
	TriggeredBy string      `json:"triggered_by,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
}

// IsError reports whether the outcome should alarm an operator surface.
// no_messages and busy are informational.
func (o CycleOutcome) IsError() bool {
	return o.Status == StatusAIFailed || o.Status == StatusEmailFailed || o.Status == StatusFatal
}
