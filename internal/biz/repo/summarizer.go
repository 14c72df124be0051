package repo

import (
	"context"

	"github.com/hikoo/napcat-mailer/internal/biz/domain"
)

// SummarizerRepo drives the model round-trip for one batch.
//
// A transport or endpoint failure is returned as a non-nil error: the cycle
// must abort with the store untouched. A reply the model did produce but
// that contains no parseable summary yields (nil, nil): the cycle continues
// with the fallback structure, since the raw batch is still worth sending.
type SummarizerRepo interface {
	Summarize(ctx context.Context, batch []*domain.CanonicalMessage) (*domain.StructuredSummary, error)
}
