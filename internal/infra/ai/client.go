package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hikoo/napcat-mailer/internal/biz/domain"
	"github.com/hikoo/napcat-mailer/internal/biz/repo"
	"github.com/hikoo/napcat-mailer/internal/conf"
)

const systemPrompt = "你是专业的消息管理助手，必须返回有效的 JSON 格式，不要有任何额外文本。"

const promptTemplate = `你是信息浓缩专家。下面给你的是若干条 QQ 聊天消息，格式：
[时间] 场景 - 发送者 说：消息原文

你的任务：
1. 按发送者/群分组
2. 提炼核心信息
3. 标注优先级（high/medium/low）
4. 去重并按优先级排序

**必须返回 JSON 格式，不要返回其他内容**：
{
  "summary": {
    "total_messages": 数字,
    "time_range": "开始时间 ~ 结束时间",
    "groups": [
      {
        "name": "群名或私聊对象名",
        "type": "group 或 private",
        "messages": [
          {
            "priority": "high|medium|low",
            "content": "摘要内容",
            "sender": "发送者"
          }
        ]
      }
    ]
  }
}

现在开始处理，输出 JSON：

%s`

// Client summarizes message batches through an OpenAI-compatible chat
// completion endpoint. It reads the config snapshot on every call so that
// key, model and endpoint changes apply without a restart.
type Client struct {
	cfg *conf.Provider
}

var _ repo.SummarizerRepo = (*Client)(nil)

// NewClient creates a new summarizer client
func NewClient(cfg *conf.Provider) *Client {
	return &Client{cfg: cfg}
}

// Summarize sends the batch to the model and parses its reply. A transport
// or API error is returned as-is; a reply that carries no parseable JSON
// object yields (nil, nil) so the caller can fall back.
func (c *Client) Summarize(ctx context.Context, batch []*domain.CanonicalMessage) (*domain.StructuredSummary, error) {
	cfg := c.cfg.Snapshot()

	config := openai.DefaultConfig(cfg.AI.APIKey)
	// AI_API_URL is the full chat/completions URL; go-openai wants the base
	config.BaseURL = strings.TrimSuffix(strings.TrimSuffix(cfg.AI.APIURL, "/chat/completions"), "/")

	client := openai.NewClientWithConfig(config)

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: cfg.AI.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(batch)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response choices")
	}

	summary := ExtractSummary(resp.Choices[0].Message.Content)
	if summary == nil {
		fmt.Println("[AI] JSON 解析失败")
	}
	return summary, nil
}

// BuildPrompt formats the batch into the summarization prompt, one line
// per message
func BuildPrompt(batch []*domain.CanonicalMessage) string {
	var lines strings.Builder
	for _, m := range batch {
		fmt.Fprintf(&lines, "[%s] %s - %s 说：%s\n",
			m.ReceivedAt.Format("2006-01-02 15:04:05"), m.Scene(), m.SenderLabel(), m.Content)
	}
	return fmt.Sprintf(promptTemplate, lines.String())
}

// ExtractSummary pulls the first-to-last brace span out of the model reply
// and decodes it. Returns nil when no valid structure can be recovered.
func ExtractSummary(text string) *domain.StructuredSummary {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil
	}

	var summary domain.StructuredSummary
	if err := json.Unmarshal([]byte(text[start:end+1]), &summary); err != nil {
		return nil
	}
	return &summary
}
