package repo

import (
	"context"

	"github.com/hikoo/napcat-mailer/internal/biz/domain"
)

// GroupEntry is one distinct group seen in the store
type GroupEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// MessageRepo is the message store interface. It is the single source of
// truth for canonical messages and summary records; every other component
// works on copies. Implementations serialize all access internally and
// guarantee that multi-row mutations are atomic.
type MessageRepo interface {
	// Append stores a new unprocessed message and returns its row id
	Append(ctx context.Context, msg *domain.CanonicalMessage) (int64, error)

	// ListUnprocessed returns unprocessed messages ordered by received_at
	// ascending, truncated to limit (0 means no limit). An empty result is
	// the normal no-op signal for a cycle, not an error.
	ListUnprocessed(ctx context.Context, limit int) ([]*domain.CanonicalMessage, error)

	// MarkProcessed flags the given messages processed in one transaction
	MarkProcessed(ctx context.Context, ids []int64) error

	// CommitCycle marks the given messages processed AND appends the
	// delivered summary record in a single transaction. This pairing must
	// never be split.
	CommitCycle(ctx context.Context, ids []int64, payload string) error

	// Counts returns the dashboard counters
	Counts(ctx context.Context) (*domain.Counts, error)

	// Operator overrides
	SetProcessed(ctx context.Context, id int64, processed bool) error
	BatchSetProcessed(ctx context.Context, ids []int64, processed bool) error
	BatchDelete(ctx context.Context, ids []int64) error
	GetByID(ctx context.Context, id int64) (*domain.CanonicalMessage, error)
	ClearAll(ctx context.Context) error

	// Dashboard reads, newest first
	ListMessages(ctx context.Context, offset, limit int) ([]*domain.CanonicalMessage, int64, error)
	ListSummaries(ctx context.Context, offset, limit int) ([]*domain.SummaryRecord, int64, error)
	ListGroups(ctx context.Context) ([]GroupEntry, error)

	// LatestGroupName returns the most recent non-empty stored name for a
	// group, for when the gateway lookup is unavailable
	LatestGroupName(ctx context.Context, groupID string) (string, error)

	Close() error
}
