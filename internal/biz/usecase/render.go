package usecase

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/hikoo/napcat-mailer/internal/biz/domain"
)

var priorityIcons = map[string]string{
	"high":   "🔴",
	"medium": "🟡",
	"low":    "🟢",
}

// RenderEmail turns a structured summary plus the raw batch into the digest
// HTML. A nil summary falls back to the empty structure so the raw messages
// still go out in full. Pure function, deterministic for identical inputs.
func RenderEmail(summary *domain.StructuredSummary, batch []*domain.CanonicalMessage) string {
	if summary == nil {
		summary = domain.FallbackSummary(len(batch))
	}
	body := summary.Summary

	var b strings.Builder
	b.WriteString(`<div style="max-width: 720px; margin: 0 auto; background: white; border-radius: 12px; overflow: hidden;">`)

	// Header: total count and time range
	timeRange := body.TimeRange
	if timeRange == "" {
		timeRange = "消息汇总"
	}
	fmt.Fprintf(&b, `<div style="background: linear-gradient(135deg, #FF6B9D 0%%, #FF8FB3 100%%); padding: 24px; text-align: center; color: white;">
<h1 style="margin: 0; font-size: 28px;">💌 QQ 消息摘要</h1>
<p style="margin: 12px 0 0 0; font-size: 14px;">%s</p>
<p style="margin: 6px 0 0 0; font-size: 13px;">共 %d 条消息</p>
</div>`, html.EscapeString(timeRange), body.TotalMessages)

	// One collapsible section per summary group
	b.WriteString(`<div style="background: #FAFAFA; padding: 28px; color: #2C3E50; line-height: 1.8;">`)
	for _, group := range body.Groups {
		icon := "💬"
		if group.Type == "group" {
			icon = "👥"
		}
		fmt.Fprintf(&b, `<details style="margin-bottom: 20px; background: #FFF5F9; border-left: 4px solid #FF6B9D; border-radius: 8px;">
<summary style="cursor: pointer; padding: 16px; font-weight: 600; color: #FF6B9D;">%s %s (%d 条)</summary>
<div style="padding: 16px;"><ul style="margin: 0; padding-left: 0; list-style: none;">`,
			icon, html.EscapeString(group.Name), len(group.Messages))

		for _, msg := range group.Messages {
			icon, ok := priorityIcons[msg.Priority]
			if !ok {
				icon = "•"
			}
			fmt.Fprintf(&b, `<li style="margin-bottom: 12px; padding: 12px; background: white; border-radius: 6px;">
<span style="font-size: 16px;">%s</span>
<span style="font-weight: 600; color: #FF6B9D; font-size: 13px;">%s</span>
<div style="word-break: break-word;">%s</div>
</li>`, icon, html.EscapeString(msg.Sender), html.EscapeString(msg.Content))
		}
		b.WriteString(`</ul></div></details>`)
	}
	b.WriteString(`</div>`)

	// Trailing section: every raw message verbatim, so nothing is lost even
	// when the structured part is partial or absent
	b.WriteString(`<div style="background: #F5F7FA; padding: 20px;">
<details><summary style="font-weight: 600; color: #FF6B9D; font-size: 15px;">📂 原始消息详情（点击展开）</summary>
<div style="margin-top: 16px; background: white; border-radius: 8px;">`)
	for _, m := range batch {
		fmt.Fprintf(&b, `<div style="padding: 12px 16px; border-bottom: 1px solid #E8EEF5;">
<div style="color: #FF8FB3; font-size: 12px; font-weight: 600;">#%d · %s · %s</div>
<div style="font-size: 14px; word-break: break-word;">%s</div>
</div>`, m.ID, m.ReceivedAt.Format("2006-01-02 15:04:05"), html.EscapeString(rawScene(m)), html.EscapeString(m.Content))
	}
	b.WriteString(`</div></details></div>`)

	b.WriteString(`<div style="background: #F5F7FA; padding: 16px; text-align: center; color: #7F8FA3; font-size: 12px;">✨ 本邮件由 NapCat AI 助手自动生成</div>`)
	b.WriteString(`</div>`)
	return b.String()
}

func rawScene(m *domain.CanonicalMessage) string {
	if m.GroupID != "" {
		name := m.GroupName
		if name == "" {
			name = m.GroupID
		}
		return "群: " + name
	}
	return "私聊: " + m.SenderLabel()
}

// BuildSubject derives the digest subject from the batch time span
func BuildSubject(batch []*domain.CanonicalMessage, now time.Time) string {
	var min, max time.Time
	for _, m := range batch {
		if m.ReceivedAt.IsZero() {
			continue
		}
		if min.IsZero() || m.ReceivedAt.Before(min) {
			min = m.ReceivedAt
		}
		if max.IsZero() || m.ReceivedAt.After(max) {
			max = m.ReceivedAt
		}
	}
	if min.IsZero() {
		return "📬 QQ 摘要 - " + now.Format("2006-01-02")
	}
	return fmt.Sprintf("📬 QQ 摘要 - %s ~ %s", min.Format("2006-01-02 15:04"), max.Format("2006-01-02 15:04"))
}
