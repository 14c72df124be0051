package repo

import "context"

// MailRepo delivers one rendered digest to the configured recipient.
// Implementations never panic across this boundary; any session failure
// comes back as an error for the orchestrator's uniform recovery policy.
type MailRepo interface {
	Send(ctx context.Context, subject, htmlBody string) error
}
