package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hikoo/napcat-mailer/internal/biz/domain"
	"github.com/hikoo/napcat-mailer/internal/conf"
)

func TestBuildPrompt(t *testing.T) {
	batch := []*domain.CanonicalMessage{
		{
			Kind:       domain.KindGroup,
			GroupID:    "100",
			GroupName:  "技术群",
			SenderName: "小明",
			Content:    "发布了吗",
			ReceivedAt: time.Date(2026, 8, 30, 9, 15, 0, 0, time.Local),
		},
		{
			Kind:       domain.KindPrivate,
			SenderID:   "42",
			Content:    "在吗",
			ReceivedAt: time.Date(2026, 8, 30, 9, 20, 0, 0, time.Local),
		},
	}

	prompt := BuildPrompt(batch)

	if !strings.Contains(prompt, "[2026-08-30 09:15:00] 群[技术群] - 小明 说：发布了吗") {
		t.Errorf("group line missing or malformed:\n%s", prompt)
	}
	if !strings.Contains(prompt, "[2026-08-30 09:20:00] 私聊 - 42 说：在吗") {
		t.Errorf("private line missing or malformed:\n%s", prompt)
	}
	if !strings.Contains(prompt, "必须返回 JSON 格式") {
		t.Error("instruction block missing")
	}
}

func TestExtractSummary(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantNil bool
		total   int
	}{
		{
			name:  "clean json",
			text:  `{"summary":{"total_messages":3,"time_range":"a ~ b","groups":[]}}`,
			total: 3,
		},
		{
			name:  "json wrapped in prose",
			text:  "好的，结果如下：\n```json\n{\"summary\":{\"total_messages\":5}}\n```\n以上。",
			total: 5,
		},
		{
			name:    "no braces at all",
			text:    "抱歉，我无法处理这些消息。",
			wantNil: true,
		},
		{
			name:    "broken json inside braces",
			text:    `{"summary": not valid}`,
			wantNil: true,
		},
		{
			name:    "empty reply",
			text:    "",
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractSummary(tt.text)
			if tt.wantNil {
				if got != nil {
					t.Errorf("expected nil, got %+v", got)
				}
				return
			}
			if got == nil {
				t.Fatal("expected a summary, got nil")
			}
			if got.Summary.TotalMessages != tt.total {
				t.Errorf("total = %d, want %d", got.Summary.TotalMessages, tt.total)
			}
		})
	}
}

func newTestClient(endpoint string) *Client {
	return NewClient(conf.NewProvider(&conf.Config{
		AI: conf.AIConfig{
			APIURL: endpoint + "/chat/completions",
			APIKey: "test-key",
			Model:  "test-model",
		},
	}))
}

func chatReply(content string) map[string]interface{} {
	return map[string]interface{}{
		"id":     "cmpl-1",
		"object": "chat.completion",
		"model":  "test-model",
		"choices": []map[string]interface{}{
			{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]string{"role": "assistant", "content": content},
			},
		},
	}
}

func TestSummarizeParsesReply(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "test-model" {
			t.Errorf("model = %q", req.Model)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("unexpected message layout: %+v", req.Messages)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatReply(`{"summary":{"total_messages":1,"time_range":"x ~ y"}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	batch := []*domain.CanonicalMessage{{Content: "hi", ReceivedAt: time.Now()}}

	summary, err := client.Summarize(context.Background(), batch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary == nil || summary.Summary.TotalMessages != 1 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestSummarizeUnparseableReplyIsSoftFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatReply("我做不到"))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	summary, err := client.Summarize(context.Background(), []*domain.CanonicalMessage{{Content: "hi"}})

	if err != nil {
		t.Fatalf("parse failure must not surface as an error, got %v", err)
	}
	if summary != nil {
		t.Errorf("summary = %+v, want nil", summary)
	}
}

func TestSummarizeTransportErrorIsHardFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	summary, err := client.Summarize(context.Background(), []*domain.CanonicalMessage{{Content: "hi"}})

	if err == nil {
		t.Fatal("expected an error from the failing endpoint")
	}
	if summary != nil {
		t.Errorf("summary = %+v, want nil on hard failure", summary)
	}
}
