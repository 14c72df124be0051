package usecase

import (
	"github.com/hikoo/napcat-mailer/internal/biz/domain"
	"github.com/hikoo/napcat-mailer/internal/conf"
)

// FilterUsecase decides whether an inbound message is retained at all.
// Rejected messages are dropped before storage and never retried.
type FilterUsecase struct {
	cfg *conf.Provider
}

// NewFilterUsecase creates a new filter usecase
func NewFilterUsecase(cfg *conf.Provider) *FilterUsecase {
	return &FilterUsecase{cfg: cfg}
}

// ShouldRetain applies the current filter configuration to one message.
// Private chats follow the private-chat toggle; groups follow the active
// blacklist or whitelist; any other kind passes (permissive default).
// Configuration is read per call, so runtime updates apply to the next
// event without reprocessing anything already stored.
func (uc *FilterUsecase) ShouldRetain(kind domain.MessageKind, groupID, senderID string) bool {
	filter := uc.cfg.Snapshot().Filter

	switch kind {
	case domain.KindPrivate:
		return filter.PrivateChatEnabled
	case domain.KindGroup:
		if filter.Mode == conf.FilterModeWhitelist {
			return containsID(filter.GroupWhitelist, groupID)
		}
		return !containsID(filter.GroupBlacklist, groupID)
	default:
		return true
	}
}

func containsID(list []string, id string) bool {
	for _, entry := range list {
		if entry == id {
			return true
		}
	}
	return false
}
