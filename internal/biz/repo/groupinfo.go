package repo

import "context"

// GroupInfoRepo resolves a group id to its display name via the gateway
// API. Lookups are best-effort with a short timeout; callers must treat
// any failure as "name unknown" and continue.
type GroupInfoRepo interface {
	GroupName(ctx context.Context, groupID string) (string, error)
}
