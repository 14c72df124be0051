package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hikoo/napcat-mailer/internal/biz/domain"
	"github.com/hikoo/napcat-mailer/internal/biz/repo"
)

// IngestUsecase normalizes raw gateway events into canonical messages,
// applies the eligibility filter and appends accepted messages to the
// store. It is the single entry point the transport listener calls.
type IngestUsecase struct {
	messageRepo repo.MessageRepo
	groupInfo   repo.GroupInfoRepo
	filterUC    *FilterUsecase
}

// NewIngestUsecase creates a new ingest usecase
func NewIngestUsecase(messageRepo repo.MessageRepo, groupInfo repo.GroupInfoRepo, filterUC *FilterUsecase) *IngestUsecase {
	return &IngestUsecase{
		messageRepo: messageRepo,
		groupInfo:   groupInfo,
		filterUC:    filterUC,
	}
}

// OnEvent handles one raw gateway frame. Non-message events and filtered
// messages are dropped silently; only store failures surface as errors.
// The listener treats this as fire-and-forget and just logs failures.
func (uc *IngestUsecase) OnEvent(ctx context.Context, raw []byte) error {
	var event map[string]any
	if err := json.Unmarshal(raw, &event); err != nil {
		// Not JSON; the gateway also sends lifecycle noise we don't consume
		return nil
	}

	if strField(event, "post_type", "postType") != "message" {
		return nil
	}
	switch strField(event, "message_type", "messageType") {
	case "private", "group":
	default:
		// Guild and other exotic scenes are out of scope for the digest
		return nil
	}

	msg := uc.Normalize(event, raw)
	if !uc.filterUC.ShouldRetain(msg.Kind, msg.GroupID, msg.SenderID) {
		fmt.Printf("[Ingest] Message filtered (kind=%s group=%s)\n", msg.Kind, msg.GroupID)
		return nil
	}

	if msg.Kind == domain.KindGroup && msg.GroupID != "" && msg.GroupName == "" {
		msg.GroupName = uc.resolveGroupName(ctx, msg.GroupID)
	}

	id, err := uc.messageRepo.Append(ctx, msg)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	fmt.Printf("[Ingest] Message id=%d kind=%s\n", id, msg.Kind)
	return nil
}

// Normalize converts one decoded gateway event into a canonical message.
// The gateway is inconsistent about key spelling, so every field is read
// under both its snake_case and camelCase names, first one present wins.
func (uc *IngestUsecase) Normalize(event map[string]any, raw []byte) *domain.CanonicalMessage {
	msg := &domain.CanonicalMessage{
		ExternalID: strField(event, "message_id", "messageId"),
		RawJSON:    string(raw),
		ReceivedAt: time.Now(),
	}

	sender, _ := event["sender"].(map[string]any)

	switch strField(event, "message_type", "messageType") {
	case "private":
		msg.Kind = domain.KindPrivate
		msg.SenderID = strField(event, "user_id", "userId")
		if msg.SenderID == "" {
			msg.SenderID = strField(sender, "user_id", "userId")
		}
		msg.SenderName = strField(sender, "nickname", "card", "username")
	case "group":
		msg.Kind = domain.KindGroup
		msg.GroupID = strField(event, "group_id", "groupId")
		msg.GroupName = strField(event, "group_name", "groupName")
		msg.SenderName = strField(sender, "nickname", "card", "username")
		msg.SenderID = strField(sender, "user_id", "userId")
		if msg.SenderID == "" {
			msg.SenderID = strField(event, "user_id", "userId")
		}
	default:
		msg.Kind = domain.KindOther
		msg.SenderID = strField(sender, "user_id", "userId")
		msg.SenderName = strField(sender, "nickname")
	}

	msg.Content = TranslateCQCodes(extractContent(event, raw))
	return msg
}

// extractContent pulls the best-effort text out of an event, in priority
// order: plain raw_message, plain message, joined message-chain segments,
// and finally a dump of the whole event
func extractContent(event map[string]any, raw []byte) string {
	if s, ok := event["raw_message"].(string); ok && s != "" {
		return s
	}
	if s, ok := event["message"].(string); ok && s != "" {
		return s
	}

	chain, ok := event["message_chain"]
	if !ok {
		chain, ok = event["messageChain"]
	}
	if ok {
		if segments, isList := chain.([]any); isList {
			joined := ""
			for i, seg := range segments {
				if i > 0 {
					joined += " "
				}
				joined += segmentText(seg)
			}
			return joined
		}
		return dumpJSON(chain)
	}

	return string(raw)
}

// segmentText extracts text from one message-chain segment, preferring its
// own text/content fields and falling back to a dump of the segment
func segmentText(seg any) string {
	if m, ok := seg.(map[string]any); ok {
		if s := strField(m, "text", "content"); s != "" {
			return s
		}
	}
	return dumpJSON(seg)
}

// resolveGroupName looks the name up at the gateway, falling back to the
// most recent name previously stored for that group. Never fails ingestion.
func (uc *IngestUsecase) resolveGroupName(ctx context.Context, groupID string) string {
	if uc.groupInfo != nil {
		if name, err := uc.groupInfo.GroupName(ctx, groupID); err == nil && name != "" {
			return name
		}
	}
	name, err := uc.messageRepo.LatestGroupName(ctx, groupID)
	if err != nil {
		return ""
	}
	return name
}

// strField returns the first present non-empty string under any of the
// given keys, stringifying numeric ids the gateway sometimes sends
func strField(m map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := m[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return trimFloat(v)
		case json.Number:
			return v.String()
		}
	}
	return ""
}

func trimFloat(f float64) string {
	// Gateway ids are integers; avoid the 1.23456789e+09 form
	return fmt.Sprintf("%.0f", f)
}

func dumpJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
