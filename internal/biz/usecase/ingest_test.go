package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hikoo/napcat-mailer/internal/biz/domain"
	"github.com/hikoo/napcat-mailer/internal/conf"
)

type mockGroupInfo struct {
	names map[string]string
	err   error
}

func (m *mockGroupInfo) GroupName(ctx context.Context, groupID string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.names[groupID], nil
}

func newIngest(store *mockStore, groupInfo *mockGroupInfo, filter conf.FilterConfig) *IngestUsecase {
	if filter.Mode == "" {
		filter.Mode = conf.FilterModeBlacklist
		filter.PrivateChatEnabled = true
	}
	provider := conf.NewProvider(&conf.Config{Filter: filter})
	return NewIngestUsecase(store, groupInfo, NewFilterUsecase(provider))
}

func normalize(t *testing.T, uc *IngestUsecase, raw string) *domain.CanonicalMessage {
	t.Helper()
	var event map[string]any
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		t.Fatalf("bad test event: %v", err)
	}
	return uc.Normalize(event, []byte(raw))
}

func TestNormalizeSnakeCaseFields(t *testing.T) {
	uc := newIngest(&mockStore{}, nil, conf.FilterConfig{})
	msg := normalize(t, uc, `{
		"post_type": "message",
		"message_type": "group",
		"message_id": 555,
		"group_id": 100,
		"group_name": "技术群",
		"sender": {"user_id": 42, "nickname": "小明"},
		"raw_message": "你好[CQ:face,id=5]"
	}`)

	if msg.Kind != domain.KindGroup {
		t.Errorf("kind = %s", msg.Kind)
	}
	if msg.ExternalID != "555" {
		t.Errorf("external id = %q", msg.ExternalID)
	}
	if msg.GroupID != "100" || msg.GroupName != "技术群" {
		t.Errorf("group = %q/%q", msg.GroupID, msg.GroupName)
	}
	if msg.SenderID != "42" || msg.SenderName != "小明" {
		t.Errorf("sender = %q/%q", msg.SenderID, msg.SenderName)
	}
	if msg.Content != "你好[表情:5]" {
		t.Errorf("content = %q, CQ codes should be translated", msg.Content)
	}
	if msg.ReceivedAt.IsZero() {
		t.Error("received time not set")
	}
}

func TestNormalizeCamelCaseFields(t *testing.T) {
	uc := newIngest(&mockStore{}, nil, conf.FilterConfig{})
	msg := normalize(t, uc, `{
		"postType": "message",
		"messageType": "private",
		"messageId": "m-1",
		"userId": "77",
		"sender": {"nickname": "阿强"},
		"message": "在吗"
	}`)

	if msg.Kind != domain.KindPrivate {
		t.Errorf("kind = %s", msg.Kind)
	}
	if msg.ExternalID != "m-1" {
		t.Errorf("external id = %q", msg.ExternalID)
	}
	if msg.SenderID != "77" {
		t.Errorf("sender id = %q", msg.SenderID)
	}
	if msg.Content != "在吗" {
		t.Errorf("content = %q", msg.Content)
	}
}

func TestNormalizeContentPriority(t *testing.T) {
	uc := newIngest(&mockStore{}, nil, conf.FilterConfig{})

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "raw_message wins over message",
			raw:  `{"message_type":"private","raw_message":"原始","message":"次选"}`,
			want: "原始",
		},
		{
			name: "message string used when raw_message absent",
			raw:  `{"message_type":"private","message":"次选"}`,
			want: "次选",
		},
		{
			name: "message chain segments joined",
			raw:  `{"message_type":"private","message_chain":[{"type":"text","text":"你好"},{"type":"text","content":"世界"}]}`,
			want: "你好 世界",
		},
		{
			name: "camelCase chain",
			raw:  `{"message_type":"private","messageChain":[{"text":"单独"}]}`,
			want: "单独",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := normalize(t, uc, tt.raw)
			if msg.Content != tt.want {
				t.Errorf("content = %q, want %q", msg.Content, tt.want)
			}
		})
	}
}

func TestOnEventIgnoresNonMessageEvents(t *testing.T) {
	store := &mockStore{}
	uc := newIngest(store, nil, conf.FilterConfig{})

	if err := uc.OnEvent(context.Background(), []byte(`{"post_type":"meta_event"}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := uc.OnEvent(context.Background(), []byte(`not json at all`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.unprocessed) != 0 {
		t.Error("nothing should be stored for non-message events")
	}
}

func TestOnEventIgnoresUnsupportedMessageTypes(t *testing.T) {
	store := &mockStore{}
	uc := newIngest(store, nil, conf.FilterConfig{})

	for _, raw := range []string{
		`{"post_type":"message","message_type":"guild","raw_message":"hi"}`,
		`{"post_type":"message","raw_message":"no type at all"}`,
	} {
		if err := uc.OnEvent(context.Background(), []byte(raw)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if len(store.unprocessed) != 0 {
		t.Error("only private and group messages may be stored")
	}
}

func TestOnEventDropsFilteredMessages(t *testing.T) {
	store := &mockStore{}
	uc := newIngest(store, nil, conf.FilterConfig{
		Mode:           conf.FilterModeBlacklist,
		GroupBlacklist: []string{"100"},
	})

	raw := `{"post_type":"message","message_type":"group","group_id":100,"raw_message":"hi"}`
	if err := uc.OnEvent(context.Background(), []byte(raw)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.unprocessed) != 0 {
		t.Error("blacklisted group message must not be stored")
	}
}

func TestOnEventResolvesMissingGroupName(t *testing.T) {
	store := &mockStore{}
	groupInfo := &mockGroupInfo{names: map[string]string{"100": "解析群"}}
	uc := newIngest(store, groupInfo, conf.FilterConfig{})

	raw := `{"post_type":"message","message_type":"group","group_id":100,"raw_message":"hi"}`
	if err := uc.OnEvent(context.Background(), []byte(raw)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.unprocessed) != 1 {
		t.Fatal("message should be stored")
	}
	if store.unprocessed[0].GroupName != "解析群" {
		t.Errorf("group name = %q, want the gateway lookup result", store.unprocessed[0].GroupName)
	}
}

func TestOnEventGroupNameLookupFailureIsNotFatal(t *testing.T) {
	store := &mockStore{}
	groupInfo := &mockGroupInfo{err: errors.New("gateway down")}
	uc := newIngest(store, groupInfo, conf.FilterConfig{})

	raw := `{"post_type":"message","message_type":"group","group_id":100,"raw_message":"hi"}`
	if err := uc.OnEvent(context.Background(), []byte(raw)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.unprocessed) != 1 {
		t.Fatal("message must still be stored when the lookup fails")
	}
}
