package onebot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hikoo/napcat-mailer/internal/biz/repo"
	"github.com/hikoo/napcat-mailer/internal/conf"
)

// GroupInfoClient resolves group names through the gateway's HTTP API.
// Lookups are best effort with a short timeout; a miss just means the
// digest shows the numeric group id.
type GroupInfoClient struct {
	cfg  *conf.Provider
	http *http.Client
}

var _ repo.GroupInfoRepo = (*GroupInfoClient)(nil)

// NewGroupInfoClient creates a new group info client
func NewGroupInfoClient(cfg *conf.Provider) *GroupInfoClient {
	return &GroupInfoClient{
		cfg:  cfg,
		http: &http.Client{Timeout: 3 * time.Second},
	}
}

type groupInfoResponse struct {
	Status  string          `json:"status"`
	Retcode *int            `json:"retcode"`
	Data    json.RawMessage `json:"data"`
}

type groupInfoData struct {
	GroupName      string `json:"group_name"`
	GroupNameCamel string `json:"groupName"`
}

// GroupName queries the gateway for the display name of groupID
func (c *GroupInfoClient) GroupName(ctx context.Context, groupID string) (string, error) {
	base := c.cfg.Snapshot().APIBaseURL
	reqURL := fmt.Sprintf("%s/get_group_info?group_id=%s", base, url.QueryEscape(groupID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build group info request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("group info request failed: %w", err)
	}
	defer resp.Body.Close()

	var body groupInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode group info: %w", err)
	}

	if body.Status != "ok" && (body.Retcode == nil || *body.Retcode != 0) {
		return "", fmt.Errorf("gateway rejected group info lookup: status=%q", body.Status)
	}

	var data groupInfoData
	if len(body.Data) > 0 {
		if err := json.Unmarshal(body.Data, &data); err != nil {
			return "", fmt.Errorf("failed to decode group info data: %w", err)
		}
	}
	if data.GroupName != "" {
		return data.GroupName, nil
	}
	return data.GroupNameCamel, nil
}
